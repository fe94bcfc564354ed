package listening

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// SQLStore implements Store over database/sql. Queries use $1 placeholders,
// which both the pgx stdlib driver and modernc sqlite accept.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

const testListCols = `id, title, version_id, total_items, is_active, is_archived, created_at`

func (s *SQLStore) ListTests(ctx context.Context) ([]Test, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+testListCols+` FROM tests
		 WHERE is_active AND NOT is_archived
		 ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Test
	for rows.Next() {
		var t Test
		if err := rows.Scan(&t.ID, &t.Title, &t.VersionID, &t.TotalItems, &t.IsActive, &t.IsArchived, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) getTest(ctx context.Context, q queryer, testID string) (Test, error) {
	var t Test
	err := q.QueryRowContext(ctx,
		`SELECT `+testListCols+` FROM tests WHERE id=$1`, testID).
		Scan(&t.ID, &t.Title, &t.VersionID, &t.TotalItems, &t.IsActive, &t.IsArchived, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Test{}, notFoundf("test %s", testID)
	}
	return t, err
}

func (s *SQLStore) GetItem(ctx context.Context, itemID string) (Item, error) {
	var it Item
	err := s.db.QueryRowContext(ctx,
		`SELECT id, test_id, item_type, difficulty, topic_tag, transcript,
		        audio_key, audio_url, thumbnail_key, thumbnail_url, ord
		 FROM items WHERE id=$1`, itemID).
		Scan(&it.ID, &it.TestID, &it.ItemType, &it.Difficulty, &it.TopicTag, &it.Transcript,
			&it.AudioKey, &it.AudioURL, &it.ThumbnailKey, &it.ThumbnailURL, &it.Order)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, notFoundf("item %s", itemID)
	}
	if err != nil {
		return Item{}, err
	}
	items := []Item{it}
	if err := s.attachQuestions(ctx, items, `q.item_id=$1`, itemID); err != nil {
		return Item{}, err
	}
	return items[0], nil
}

func (s *SQLStore) TestItems(ctx context.Context, testID string) ([]Item, error) {
	if _, err := s.getTest(ctx, s.db, testID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, test_id, item_type, difficulty, topic_tag, transcript,
		        audio_key, audio_url, thumbnail_key, thumbnail_url, ord
		 FROM items WHERE test_id=$1 ORDER BY ord`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.TestID, &it.ItemType, &it.Difficulty, &it.TopicTag, &it.Transcript,
			&it.AudioKey, &it.AudioURL, &it.ThumbnailKey, &it.ThumbnailURL, &it.Order); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachQuestions(ctx, items, `i.test_id=$1`, testID); err != nil {
		return nil, err
	}
	return items, nil
}

// attachQuestions loads questions and options for the given items in two
// queries and groups them in memory.
func (s *SQLStore) attachQuestions(ctx context.Context, items []Item, where string, arg interface{}) error {
	if len(items) == 0 {
		return nil
	}
	qRows, err := s.db.QueryContext(ctx,
		`SELECT q.id, q.item_id, q.text, q.question_type, q.score_weight, q.ord, q.explanation
		 FROM questions q JOIN items i ON q.item_id = i.id
		 WHERE `+where+` ORDER BY q.ord`, arg)
	if err != nil {
		return err
	}
	defer qRows.Close()
	byItem := map[string][]Question{}
	for qRows.Next() {
		var q Question
		if err := qRows.Scan(&q.ID, &q.ItemID, &q.Text, &q.QuestionType, &q.ScoreWeight, &q.Order, &q.Explanation); err != nil {
			return err
		}
		byItem[q.ItemID] = append(byItem[q.ItemID], q)
	}
	if err := qRows.Err(); err != nil {
		return err
	}
	qIndex := map[string]*Question{}
	for itemID := range byItem {
		qs := byItem[itemID]
		for i := range qs {
			qIndex[qs[i].ID] = &qs[i]
		}
	}

	oRows, err := s.db.QueryContext(ctx,
		`SELECT o.id, o.question_id, o.label, o.text, o.is_correct, o.ord
		 FROM options o
		 JOIN questions q ON o.question_id = q.id
		 JOIN items i ON q.item_id = i.id
		 WHERE `+where+` ORDER BY o.ord`, arg)
	if err != nil {
		return err
	}
	defer oRows.Close()
	for oRows.Next() {
		var o ChoiceOption
		if err := oRows.Scan(&o.ID, &o.QuestionID, &o.Label, &o.Text, &o.IsCorrect, &o.Order); err != nil {
			return err
		}
		if q := qIndex[o.QuestionID]; q != nil {
			q.Options = append(q.Options, o)
		}
	}
	if err := oRows.Err(); err != nil {
		return err
	}

	for i := range items {
		items[i].Questions = byItem[items[i].ID]
		if items[i].Questions == nil {
			items[i].Questions = []Question{}
		}
	}
	return nil
}

func (s *SQLStore) CountTestQuestions(ctx context.Context, testID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM questions q JOIN items i ON q.item_id = i.id WHERE i.test_id=$1`,
		testID).Scan(&n)
	return n, err
}

func (s *SQLStore) StartSession(ctx context.Context, userID, testID, mode string) (Session, error) {
	var t Test
	err := s.db.QueryRowContext(ctx,
		`SELECT `+testListCols+` FROM tests WHERE id=$1 AND is_active AND NOT is_archived`, testID).
		Scan(&t.ID, &t.Title, &t.VersionID, &t.TotalItems, &t.IsActive, &t.IsArchived, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, notFoundf("active test %s", testID)
	}
	if err != nil {
		return Session{}, err
	}
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TestID:    testID,
		Test:      t,
		Mode:      mode,
		Status:    StatusActive,
		StartTime: time.Now().Unix(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, test_id, mode, status, start_time)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		sess.ID, sess.UserID, sess.TestID, sess.Mode, sess.Status, sess.StartTime)
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *SQLStore) GetSession(ctx context.Context, sessionID, userID string) (Session, error) {
	var sess Session
	var end sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT s.id, s.user_id, s.test_id, s.mode, s.status, s.start_time, s.end_time,
		        t.id, t.title, t.version_id, t.total_items, t.is_active, t.is_archived, t.created_at
		 FROM sessions s JOIN tests t ON s.test_id = t.id
		 WHERE s.id=$1 AND s.user_id=$2`, sessionID, userID).
		Scan(&sess.ID, &sess.UserID, &sess.TestID, &sess.Mode, &sess.Status, &sess.StartTime, &end,
			&sess.Test.ID, &sess.Test.Title, &sess.Test.VersionID, &sess.Test.TotalItems,
			&sess.Test.IsActive, &sess.Test.IsArchived, &sess.Test.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, notFoundf("session %s", sessionID)
	}
	if err != nil {
		return Session{}, err
	}
	if end.Valid {
		sess.EndTime = &end.Int64
	}
	return sess, nil
}

func (s *SQLStore) SubmitAnswer(ctx context.Context, sessionID, questionID, optionID string, responseTimeMs *int) (AnswerResult, error) {
	var mode, status string
	err := s.db.QueryRowContext(ctx,
		`SELECT mode, status FROM sessions WHERE id=$1`, sessionID).Scan(&mode, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return AnswerResult{}, notFoundf("session %s", sessionID)
	}
	if err != nil {
		return AnswerResult{}, err
	}
	if status != StatusActive {
		return AnswerResult{}, invalidStatef("session %s is %s", sessionID, status)
	}

	var explanation string
	err = s.db.QueryRowContext(ctx,
		`SELECT explanation FROM questions WHERE id=$1`, questionID).Scan(&explanation)
	if errors.Is(err, sql.ErrNoRows) {
		return AnswerResult{}, notFoundf("question %s", questionID)
	}
	if err != nil {
		return AnswerResult{}, err
	}

	var isCorrect bool
	err = s.db.QueryRowContext(ctx,
		`SELECT is_correct FROM options WHERE id=$1 AND question_id=$2`, optionID, questionID).Scan(&isCorrect)
	if errors.Is(err, sql.ErrNoRows) {
		return AnswerResult{}, notFoundf("option %s for question %s", optionID, questionID)
	}
	if err != nil {
		return AnswerResult{}, err
	}

	var rt sql.NullInt64
	if responseTimeMs != nil {
		rt = sql.NullInt64{Int64: int64(*responseTimeMs), Valid: true}
	}
	// Correctness is judged at submission time; a later catalog edit does
	// not rewrite recorded answers.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_answers (session_id, question_id, option_id, is_correct, response_time_ms, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (session_id, question_id) DO UPDATE SET
		   option_id=EXCLUDED.option_id,
		   is_correct=EXCLUDED.is_correct,
		   response_time_ms=EXCLUDED.response_time_ms`,
		sessionID, questionID, optionID, isCorrect, rt, time.Now().Unix())
	if err != nil {
		return AnswerResult{}, err
	}

	var correctID string
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM options WHERE question_id=$1 AND is_correct ORDER BY ord LIMIT 1`,
		questionID).Scan(&correctID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return AnswerResult{}, err
	}

	if mode != ModePractice {
		explanation = ""
	}
	return AnswerResult{IsCorrect: isCorrect, CorrectOptionID: correctID, Explanation: explanation}, nil
}

// FinishSession flips the session to finished and writes the score report
// in one transaction. The guarded UPDATE is the atomic check-and-set: two
// racing finishes cannot both see an active row.
func (s *SQLStore) FinishSession(ctx context.Context, sessionID string) (ScoreReport, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ScoreReport{}, err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET status=$1, end_time=$2 WHERE id=$3 AND status=$4`,
		StatusFinished, now, sessionID, StatusActive)
	if err != nil {
		return ScoreReport{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return ScoreReport{}, err
	}
	if affected == 0 {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id=$1`, sessionID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ScoreReport{}, notFoundf("session %s", sessionID)
		}
		if err != nil {
			return ScoreReport{}, err
		}
		return ScoreReport{}, invalidStatef("session %s is %s", sessionID, status)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT q.question_type, a.is_correct
		 FROM user_answers a JOIN questions q ON a.question_id = q.id
		 WHERE a.session_id=$1`, sessionID)
	if err != nil {
		return ScoreReport{}, err
	}
	var scored []ScoredAnswer
	for rows.Next() {
		var sa ScoredAnswer
		if err := rows.Scan(&sa.Category, &sa.Correct); err != nil {
			rows.Close()
			return ScoreReport{}, err
		}
		scored = append(scored, sa)
	}
	if err := rows.Close(); err != nil {
		return ScoreReport{}, err
	}

	report := ComputeReport(sessionID, scored)
	report.CreatedAt = now
	_, err = tx.ExecContext(ctx,
		`INSERT INTO score_reports (session_id, total_score, main_idea, detail, inference, organization, pragmatic, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (session_id) DO UPDATE SET
		   total_score=EXCLUDED.total_score,
		   main_idea=EXCLUDED.main_idea,
		   detail=EXCLUDED.detail,
		   inference=EXCLUDED.inference,
		   organization=EXCLUDED.organization,
		   pragmatic=EXCLUDED.pragmatic,
		   created_at=EXCLUDED.created_at`,
		report.SessionID, report.TotalScore, report.MainIdea, report.Detail,
		report.Inference, report.Organization, report.Pragmatic, report.CreatedAt)
	if err != nil {
		return ScoreReport{}, err
	}
	if err := tx.Commit(); err != nil {
		return ScoreReport{}, err
	}
	return report, nil
}

func (s *SQLStore) GetScoreReport(ctx context.Context, sessionID string) (ScoreReport, error) {
	var r ScoreReport
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, total_score, main_idea, detail, inference, organization, pragmatic, created_at
		 FROM score_reports WHERE session_id=$1`, sessionID).
		Scan(&r.SessionID, &r.TotalScore, &r.MainIdea, &r.Detail, &r.Inference, &r.Organization, &r.Pragmatic, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ScoreReport{}, notFoundf("score report for session %s", sessionID)
	}
	return r, err
}

func (s *SQLStore) SessionAnswers(ctx context.Context, sessionID string) ([]AnswerDetail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT q.text, q.ord, a.is_correct,
		        COALESCE((SELECT o.text FROM options o WHERE o.question_id = q.id AND o.is_correct ORDER BY o.ord LIMIT 1), ''),
		        COALESCE((SELECT o.text FROM options o WHERE o.id = a.option_id), '')
		 FROM user_answers a JOIN questions q ON a.question_id = q.id
		 WHERE a.session_id=$1 ORDER BY q.ord`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AnswerDetail
	for rows.Next() {
		var d AnswerDetail
		if err := rows.Scan(&d.QuestionText, &d.QuestionOrder, &d.IsCorrect, &d.CorrectText, &d.SelectedText); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLStore) LogEvent(ctx context.Context, sessionID, eventType string, count int, extraJSON string) error {
	var exist int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id=$1`, sessionID).Scan(&exist)
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundf("session %s", sessionID)
	}
	if err != nil {
		return err
	}
	if extraJSON == "" {
		extraJSON = "{}"
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO anticheat_events (session_id, event_type, count, extra_data, occurred_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		sessionID, eventType, count, extraJSON, time.Now().Unix())
	return err
}

// PutTest replaces the whole item tree of a test in one transaction and
// refreshes the cached item count while it is at it.
func (s *SQLStore) PutTest(ctx context.Context, t Test) (Test, error) {
	if err := ValidateTest(&t); err != nil {
		return Test{}, err
	}
	AssignCatalogIDs(&t)
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().Unix()
	}
	t.TotalItems = len(t.Items)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Test{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tests (id, title, version_id, total_items, is_active, is_archived, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (id) DO UPDATE SET
		   title=EXCLUDED.title,
		   version_id=EXCLUDED.version_id,
		   total_items=EXCLUDED.total_items,
		   is_active=EXCLUDED.is_active,
		   is_archived=EXCLUDED.is_archived`,
		t.ID, t.Title, t.VersionID, t.TotalItems, t.IsActive, t.IsArchived, t.CreatedAt)
	if err != nil {
		return Test{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE test_id=$1`, t.ID); err != nil {
		return Test{}, err
	}
	for _, it := range t.Items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO items (id, test_id, item_type, difficulty, topic_tag, transcript,
			                    audio_key, audio_url, thumbnail_key, thumbnail_url, ord)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			it.ID, it.TestID, it.ItemType, it.Difficulty, it.TopicTag, it.Transcript,
			it.AudioKey, it.AudioURL, it.ThumbnailKey, it.ThumbnailURL, it.Order)
		if err != nil {
			return Test{}, err
		}
		for _, q := range it.Questions {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO questions (id, item_id, text, question_type, score_weight, ord, explanation)
				 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
				q.ID, q.ItemID, q.Text, q.QuestionType, q.ScoreWeight, q.Order, q.Explanation)
			if err != nil {
				return Test{}, err
			}
			for _, o := range q.Options {
				_, err := tx.ExecContext(ctx,
					`INSERT INTO options (id, question_id, label, text, is_correct, ord)
					 VALUES ($1,$2,$3,$4,$5,$6)`,
					o.ID, o.QuestionID, o.Label, o.Text, o.IsCorrect, o.Order)
				if err != nil {
					return Test{}, err
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return Test{}, err
	}
	return t, nil
}

// RefreshItemCount recomputes the cached total_items. The catalog
// collaborator calls this after item adds or removes instead of the count
// being maintained by an implicit write trigger.
func (s *SQLStore) RefreshItemCount(ctx context.Context, testID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tests SET total_items = (SELECT COUNT(*) FROM items WHERE test_id=$1) WHERE id=$1`,
		testID)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, notFoundf("test %s", testID)
	}
	var n int
	err = s.db.QueryRowContext(ctx, `SELECT total_items FROM tests WHERE id=$1`, testID).Scan(&n)
	return n, err
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
