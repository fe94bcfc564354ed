package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/listenlab/listening-backend/internal/auth"
	"github.com/listenlab/listening-backend/internal/listening"
	"github.com/listenlab/listening-backend/internal/storage"
)

const missingAnswerPlaceholder = "—"

// POST /sessions/start/  {test_id, mode}
func StartSessionHandler(store listening.Store, media storage.MediaStore) http.HandlerFunc {
	type startResponse struct {
		Session         listening.Session `json:"session"`
		CurrentItem     *itemView         `json:"current_item"`
		CurrentQuestion *questionView     `json:"current_question"`
		AllItems        []itemView        `json:"all_items"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TestID string `json:"test_id"`
			Mode   string `json:"mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid JSON body.")
			return
		}
		fields := map[string]string{}
		if req.TestID == "" {
			fields["test_id"] = "required"
		}
		if !listening.ValidMode(req.Mode) {
			fields["mode"] = "must be practice or exam"
		}
		if len(fields) > 0 {
			writeError(w, fieldErrors(fields))
			return
		}

		user := auth.SubjectFromContext(r.Context())
		sess, err := store.StartSession(r.Context(), user, req.TestID, req.Mode)
		if err != nil {
			writeError(w, err)
			return
		}
		items, err := store.TestItems(r.Context(), sess.TestID)
		if err != nil {
			writeError(w, err)
			return
		}

		hideCorrect := sess.Mode == listening.ModeExam
		resp := startResponse{Session: sess, AllItems: make([]itemView, 0, len(items))}
		for _, it := range items {
			resp.AllItems = append(resp.AllItems, newItemView(it, hideCorrect, media))
		}
		if len(resp.AllItems) > 0 {
			resp.CurrentItem = &resp.AllItems[0]
			if len(resp.AllItems[0].Questions) > 0 {
				resp.CurrentQuestion = &resp.AllItems[0].Questions[0]
			}
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

// GET /sessions/{sessionID}/
func GetSessionHandler(store listening.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := store.GetSession(r.Context(),
			chi.URLParam(r, "sessionID"), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

// POST /sessions/{sessionID}/answers/  {question_id, option_id, response_time_ms?}
func SubmitAnswerHandler(store listening.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := store.GetSession(r.Context(),
			chi.URLParam(r, "sessionID"), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		if sess.Status != listening.StatusActive {
			writeDetail(w, http.StatusBadRequest, "Session is not active.")
			return
		}

		var req struct {
			QuestionID     string `json:"question_id"`
			OptionID       string `json:"option_id"`
			ResponseTimeMs *int   `json:"response_time_ms"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid JSON body.")
			return
		}
		fields := map[string]string{}
		if req.QuestionID == "" {
			fields["question_id"] = "required"
		}
		if req.OptionID == "" {
			fields["option_id"] = "required"
		}
		if req.ResponseTimeMs != nil && *req.ResponseTimeMs < 0 {
			fields["response_time_ms"] = "must not be negative"
		}
		if len(fields) > 0 {
			writeError(w, fieldErrors(fields))
			return
		}

		result, err := store.SubmitAnswer(r.Context(), sess.ID, req.QuestionID, req.OptionID, req.ResponseTimeMs)
		if errors.Is(err, listening.ErrInvalidState) {
			writeDetail(w, http.StatusBadRequest, "Session is not active.")
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

// POST /sessions/{sessionID}/events/  {event_type, count?, extra_data?}
// Late telemetry flushes are fine: any session status is accepted.
func LogEventHandler(store listening.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := store.GetSession(r.Context(),
			chi.URLParam(r, "sessionID"), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}

		var req struct {
			EventType string          `json:"event_type"`
			Count     *int            `json:"count"`
			ExtraData json.RawMessage `json:"extra_data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid JSON body.")
			return
		}
		fields := map[string]string{}
		if !listening.ValidEventType(req.EventType) {
			fields["event_type"] = "must be focus_loss or replay"
		}
		count := 1
		if req.Count != nil {
			if *req.Count < 1 {
				fields["count"] = "must be at least 1"
			} else {
				count = *req.Count
			}
		}
		extra := "{}"
		if len(req.ExtraData) > 0 {
			var obj map[string]interface{}
			if err := json.Unmarshal(req.ExtraData, &obj); err != nil {
				fields["extra_data"] = "must be a JSON object"
			} else {
				extra = string(req.ExtraData)
			}
		}
		if len(fields) > 0 {
			writeError(w, fieldErrors(fields))
			return
		}

		if err := store.LogEvent(r.Context(), sess.ID, req.EventType, count, extra); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "logged"})
	}
}

// POST /sessions/{sessionID}/finish/
func FinishSessionHandler(store listening.Store) http.HandlerFunc {
	type detailedAnswer struct {
		ID            int    `json:"id"`
		QuestionText  string `json:"question_text"`
		CorrectAnswer string `json:"correct_answer"`
		YourAnswer    string `json:"your_answer"`
	}
	type finishResponse struct {
		listening.ScoreReport
		AnsweredCount   int              `json:"answered_count"`
		CorrectCount    int              `json:"correct_count"`
		TotalQuestions  int              `json:"total_questions"`
		DetailedAnswers []detailedAnswer `json:"detailed_answers"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := store.GetSession(r.Context(),
			chi.URLParam(r, "sessionID"), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}

		report, err := store.FinishSession(r.Context(), sess.ID)
		if errors.Is(err, listening.ErrInvalidState) {
			writeDetail(w, http.StatusBadRequest, "Session already finished.")
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}

		answers, err := store.SessionAnswers(r.Context(), sess.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		totalQuestions, err := store.CountTestQuestions(r.Context(), sess.TestID)
		if err != nil {
			writeError(w, err)
			return
		}

		resp := finishResponse{
			ScoreReport:     report,
			TotalQuestions:  totalQuestions,
			AnsweredCount:   len(answers),
			DetailedAnswers: make([]detailedAnswer, 0, len(answers)),
		}
		for i, a := range answers {
			if a.IsCorrect {
				resp.CorrectCount++
			}
			resp.DetailedAnswers = append(resp.DetailedAnswers, detailedAnswer{
				ID:            i + 1,
				QuestionText:  a.QuestionText,
				CorrectAnswer: orPlaceholder(a.CorrectText),
				YourAnswer:    orPlaceholder(a.SelectedText),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// GET /sessions/{sessionID}/score-report/
func ScoreReportHandler(store listening.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := store.GetSession(r.Context(),
			chi.URLParam(r, "sessionID"), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		report, err := store.GetScoreReport(r.Context(), sess.ID)
		if errors.Is(err, listening.ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "Score report not available yet.")
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func orPlaceholder(s string) string {
	if s == "" {
		return missingAnswerPlaceholder
	}
	return s
}
