package listening

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence boundary for catalog, sessions, answers,
// anti-cheat events and score reports.
type Store interface {
	// Catalog (read-mostly reference data).
	ListTests(ctx context.Context) ([]Test, error)
	GetItem(ctx context.Context, itemID string) (Item, error)
	TestItems(ctx context.Context, testID string) ([]Item, error)
	CountTestQuestions(ctx context.Context, testID string) (int, error)

	// Session lifecycle.
	StartSession(ctx context.Context, userID, testID, mode string) (Session, error)
	GetSession(ctx context.Context, sessionID, userID string) (Session, error)
	FinishSession(ctx context.Context, sessionID string) (ScoreReport, error)

	// Answers and telemetry.
	SubmitAnswer(ctx context.Context, sessionID, questionID, optionID string, responseTimeMs *int) (AnswerResult, error)
	SessionAnswers(ctx context.Context, sessionID string) ([]AnswerDetail, error)
	LogEvent(ctx context.Context, sessionID, eventType string, count int, extraJSON string) error
	GetScoreReport(ctx context.Context, sessionID string) (ScoreReport, error)

	// Catalog management (admin collaborator).
	PutTest(ctx context.Context, t Test) (Test, error)
	RefreshItemCount(ctx context.Context, testID string) (int, error)
}

type memoryStore struct {
	mu       sync.RWMutex
	tests    map[string]Test
	sessions map[string]Session
	answers  map[string]map[string]UserAnswer // sessionID -> questionID
	reports  map[string]ScoreReport
	events   []AntiCheatEvent
}

// NewMemoryStore backs tests and single-process dev runs.
func NewMemoryStore() Store {
	return &memoryStore{
		tests:    map[string]Test{},
		sessions: map[string]Session{},
		answers:  map[string]map[string]UserAnswer{},
		reports:  map[string]ScoreReport{},
	}
}

func (m *memoryStore) ListTests(_ context.Context) ([]Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Test, 0, len(m.tests))
	for _, t := range m.tests {
		if !t.IsActive || t.IsArchived {
			continue
		}
		t.Items = nil
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memoryStore) GetItem(_ context.Context, itemID string) (Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tests {
		for _, it := range t.Items {
			if it.ID == itemID {
				return it, nil
			}
		}
	}
	return Item{}, notFoundf("item %s", itemID)
}

func (m *memoryStore) TestItems(_ context.Context, testID string) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tests[testID]
	if !ok {
		return nil, notFoundf("test %s", testID)
	}
	items := make([]Item, len(t.Items))
	copy(items, t.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].Order < items[j].Order })
	return items, nil
}

func (m *memoryStore) CountTestQuestions(_ context.Context, testID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tests[testID]
	if !ok {
		return 0, notFoundf("test %s", testID)
	}
	n := 0
	for _, it := range t.Items {
		n += len(it.Questions)
	}
	return n, nil
}

func (m *memoryStore) StartSession(_ context.Context, userID, testID, mode string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[testID]
	if !ok || !t.IsActive || t.IsArchived {
		return Session{}, notFoundf("active test %s", testID)
	}
	s := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TestID:    testID,
		Mode:      mode,
		Status:    StatusActive,
		StartTime: time.Now().Unix(),
	}
	m.sessions[s.ID] = s
	s.Test = listForm(t)
	return s, nil
}

func (m *memoryStore) GetSession(_ context.Context, sessionID, userID string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.UserID != userID {
		return Session{}, notFoundf("session %s", sessionID)
	}
	s.Test = listForm(m.tests[s.TestID])
	return s, nil
}

func (m *memoryStore) SubmitAnswer(_ context.Context, sessionID, questionID, optionID string, responseTimeMs *int) (AnswerResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return AnswerResult{}, notFoundf("session %s", sessionID)
	}
	if s.Status != StatusActive {
		return AnswerResult{}, invalidStatef("session %s is %s", sessionID, s.Status)
	}
	q, ok := m.findQuestion(questionID)
	if !ok {
		return AnswerResult{}, notFoundf("question %s", questionID)
	}
	var opt *ChoiceOption
	var correctID string
	for i := range q.Options {
		o := &q.Options[i]
		if o.ID == optionID {
			opt = o
		}
		if o.IsCorrect && correctID == "" {
			correctID = o.ID
		}
	}
	if opt == nil {
		return AnswerResult{}, notFoundf("option %s for question %s", optionID, questionID)
	}

	if m.answers[sessionID] == nil {
		m.answers[sessionID] = map[string]UserAnswer{}
	}
	m.answers[sessionID][questionID] = UserAnswer{
		SessionID:      sessionID,
		QuestionID:     questionID,
		OptionID:       optionID,
		IsCorrect:      opt.IsCorrect,
		ResponseTimeMs: responseTimeMs,
		CreatedAt:      time.Now().Unix(),
	}

	explanation := ""
	if s.Mode == ModePractice {
		explanation = q.Explanation
	}
	return AnswerResult{IsCorrect: opt.IsCorrect, CorrectOptionID: correctID, Explanation: explanation}, nil
}

func (m *memoryStore) FinishSession(_ context.Context, sessionID string) (ScoreReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ScoreReport{}, notFoundf("session %s", sessionID)
	}
	if s.Status != StatusActive {
		return ScoreReport{}, invalidStatef("session %s is %s", sessionID, s.Status)
	}
	now := time.Now().Unix()
	s.Status = StatusFinished
	s.EndTime = &now
	m.sessions[sessionID] = s

	var scored []ScoredAnswer
	for qid, a := range m.answers[sessionID] {
		if q, ok := m.findQuestion(qid); ok {
			scored = append(scored, ScoredAnswer{Category: q.QuestionType, Correct: a.IsCorrect})
		}
	}
	report := ComputeReport(sessionID, scored)
	report.CreatedAt = now
	m.reports[sessionID] = report
	return report, nil
}

func (m *memoryStore) GetScoreReport(_ context.Context, sessionID string) (ScoreReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[sessionID]
	if !ok {
		return ScoreReport{}, notFoundf("score report for session %s", sessionID)
	}
	return r, nil
}

func (m *memoryStore) SessionAnswers(_ context.Context, sessionID string) ([]AnswerDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, notFoundf("session %s", sessionID)
	}
	var out []AnswerDetail
	for qid, a := range m.answers[sessionID] {
		q, ok := m.findQuestion(qid)
		if !ok {
			continue
		}
		d := AnswerDetail{
			QuestionText:  q.Text,
			QuestionOrder: q.Order,
			IsCorrect:     a.IsCorrect,
		}
		for _, o := range q.Options {
			if o.IsCorrect && d.CorrectText == "" {
				d.CorrectText = o.Text
			}
			if o.ID == a.OptionID {
				d.SelectedText = o.Text
			}
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionOrder < out[j].QuestionOrder })
	return out, nil
}

func (m *memoryStore) LogEvent(_ context.Context, sessionID, eventType string, count int, extraJSON string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return notFoundf("session %s", sessionID)
	}
	m.events = append(m.events, AntiCheatEvent{
		ID:         int64(len(m.events) + 1),
		SessionID:  sessionID,
		EventType:  eventType,
		Count:      count,
		ExtraJSON:  extraJSON,
		OccurredAt: time.Now().Unix(),
	})
	return nil
}

func (m *memoryStore) PutTest(_ context.Context, t Test) (Test, error) {
	if err := ValidateTest(&t); err != nil {
		return Test{}, err
	}
	AssignCatalogIDs(&t)
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.tests[t.ID]; ok && t.CreatedAt == 0 {
		t.CreatedAt = prev.CreatedAt
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().Unix()
	}
	t.TotalItems = len(t.Items)
	m.tests[t.ID] = t
	return t, nil
}

func (m *memoryStore) RefreshItemCount(_ context.Context, testID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[testID]
	if !ok {
		return 0, notFoundf("test %s", testID)
	}
	t.TotalItems = len(t.Items)
	m.tests[testID] = t
	return t.TotalItems, nil
}

func (m *memoryStore) findQuestion(questionID string) (Question, bool) {
	for _, t := range m.tests {
		for _, it := range t.Items {
			for _, q := range it.Questions {
				if q.ID == questionID {
					return q, true
				}
			}
		}
	}
	return Question{}, false
}

func listForm(t Test) Test {
	t.Items = nil
	return t
}
