package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/listenlab/listening-backend/internal/auth"
	"github.com/listenlab/listening-backend/internal/config"
	"github.com/listenlab/listening-backend/internal/listening"
)

const adminPass = "hunter2"

type fakeMedia struct {
	blobs map[string][]byte
}

func newFakeMedia() *fakeMedia { return &fakeMedia{blobs: map[string][]byte{}} }

func (m *fakeMedia) Put(key string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.blobs[key] = b
	return key, nil
}

func (m *fakeMedia) Get(key string) (io.ReadCloser, error) {
	b, ok := m.blobs[key]
	if !ok {
		return nil, errors.New("no such blob")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *fakeMedia) URL(key string) string {
	if key == "" {
		return ""
	}
	return "/assets/" + key
}

type testEnv struct {
	router  http.Handler
	store   listening.Store
	media   *fakeMedia
	auth    *auth.AuthService
	test    listening.Test
	authHdr string // basic auth header value for the admin user
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := listening.NewMemoryStore()
	stored, err := store.PutTest(context.Background(), listening.SampleTests()[0])
	if err != nil {
		t.Fatalf("seed test: %v", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPass), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	media := newFakeMedia()
	authSvc := auth.NewAuthService("test-secret")
	cfg := config.Config{
		EnableGuestAuth: true,
		AdminUser:       "admin",
		AdminPassHash:   string(hash),
	}
	return &testEnv{
		router: New(store, media, authSvc, cfg),
		store:  store,
		media:  media,
		auth:   authSvc,
		test:   stored,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, mod ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range mod {
		m(req)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func asAdmin(e *testEnv) func(*http.Request) {
	return func(r *http.Request) { r.SetBasicAuth("admin", adminPass) }
}

func (e *testEnv) startSession(t *testing.T, mode string) string {
	t.Helper()
	rec := e.do(t, "POST", "/sessions/start/",
		`{"test_id":"`+e.test.ID+`","mode":"`+mode+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start session: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	decodeBody(t, rec, &resp)
	return resp.Session.ID
}

func TestListTests(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "GET", "/tests/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var tests []map[string]interface{}
	decodeBody(t, rec, &tests)
	if len(tests) != 1 {
		t.Fatalf("expected 1 test, got %d", len(tests))
	}
	if tests[0]["title"] != "REAL 1" || tests[0]["total_items"] != float64(2) {
		t.Fatalf("unexpected listing: %v", tests[0])
	}
	if _, ok := tests[0]["items"]; ok {
		t.Fatal("listing must not embed items")
	}
}

func TestGetItem_AlwaysShowsCorrectness(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "GET", "/items/"+e.test.Items[0].ID+"/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"is_correct"`) {
		t.Fatal("item payload must carry is_correct")
	}

	rec = e.do(t, "GET", "/items/nope/", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown item: status %d", rec.Code)
	}
}

func TestStartSession_ExamHidesCorrectness(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "POST", "/sessions/start/",
		`{"test_id":"`+e.test.ID+`","mode":"exam"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if strings.Contains(body, `"is_correct"`) {
		t.Fatal("exam payload leaked is_correct")
	}
	if !strings.Contains(body, `"explanation"`) {
		t.Fatal("explanations stay in the payload even in exam mode")
	}

	var resp struct {
		CurrentItem     *itemView     `json:"current_item"`
		CurrentQuestion *questionView `json:"current_question"`
		AllItems        []itemView    `json:"all_items"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.AllItems) != 2 || resp.CurrentItem == nil || resp.CurrentQuestion == nil {
		t.Fatalf("unexpected shape: %+v", resp)
	}
	if resp.CurrentItem.ID != resp.AllItems[0].ID || resp.CurrentQuestion.ID != resp.AllItems[0].Questions[0].ID {
		t.Fatal("current item and question must point at the first of each")
	}
}

func TestStartSession_PracticeRevealsCorrectness(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "POST", "/sessions/start/",
		`{"test_id":"`+e.test.ID+`","mode":"practice"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"is_correct"`) {
		t.Fatal("practice payload must carry is_correct")
	}
}

func TestStartSession_Validation(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "POST", "/sessions/start/", `{"mode":"speedrun"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		Detail string            `json:"detail"`
		Fields map[string]string `json:"fields"`
	}
	decodeBody(t, rec, &resp)
	if resp.Fields["test_id"] == "" || resp.Fields["mode"] == "" {
		t.Fatalf("expected field errors, got %+v", resp)
	}

	rec = e.do(t, "POST", "/sessions/start/", `{"test_id":"missing","mode":"exam"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown test: status %d", rec.Code)
	}
}

func TestSubmitAnswer_PracticeRevealsExamConceals(t *testing.T) {
	e := newTestEnv(t)
	q := e.test.Items[0].Questions[0]
	var correct, wrong listening.ChoiceOption
	for _, o := range q.Options {
		if o.IsCorrect {
			correct = o
		} else {
			wrong = o
		}
	}

	sessionID := e.startSession(t, "practice")
	rec := e.do(t, "POST", "/sessions/"+sessionID+"/answers/",
		`{"question_id":"`+q.ID+`","option_id":"`+correct.ID+`","response_time_ms":4200}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var res listening.AnswerResult
	decodeBody(t, rec, &res)
	if !res.IsCorrect || res.CorrectOptionID != correct.ID || res.Explanation == "" {
		t.Fatalf("unexpected practice result: %+v", res)
	}

	examID := e.startSession(t, "exam")
	rec = e.do(t, "POST", "/sessions/"+examID+"/answers/",
		`{"question_id":"`+q.ID+`","option_id":"`+wrong.ID+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &res)
	if res.IsCorrect || res.CorrectOptionID != correct.ID || res.Explanation != "" {
		t.Fatalf("unexpected exam result: %+v", res)
	}
}

func TestSubmitAnswer_Validation(t *testing.T) {
	e := newTestEnv(t)
	sessionID := e.startSession(t, "practice")

	rec := e.do(t, "POST", "/sessions/"+sessionID+"/answers/", `{"response_time_ms":-1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	decodeBody(t, rec, &resp)
	for _, f := range []string{"question_id", "option_id", "response_time_ms"} {
		if resp.Fields[f] == "" {
			t.Errorf("missing field error for %s: %+v", f, resp.Fields)
		}
	}

	rec = e.do(t, "POST", "/sessions/missing/answers/", `{"question_id":"q","option_id":"o"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown session: status %d", rec.Code)
	}
}

func TestFinishSession_Payload(t *testing.T) {
	e := newTestEnv(t)
	q1 := e.test.Items[0].Questions[0]
	q2 := e.test.Items[0].Questions[1]
	var q1correct, q2wrong listening.ChoiceOption
	for _, o := range q1.Options {
		if o.IsCorrect {
			q1correct = o
		}
	}
	for _, o := range q2.Options {
		if !o.IsCorrect {
			q2wrong = o
			break
		}
	}

	sessionID := e.startSession(t, "practice")
	for _, body := range []string{
		`{"question_id":"` + q1.ID + `","option_id":"` + q1correct.ID + `"}`,
		`{"question_id":"` + q2.ID + `","option_id":"` + q2wrong.ID + `"}`,
	} {
		if rec := e.do(t, "POST", "/sessions/"+sessionID+"/answers/", body); rec.Code != http.StatusCreated {
			t.Fatalf("submit: status %d body %s", rec.Code, rec.Body.String())
		}
	}

	rec := e.do(t, "POST", "/sessions/"+sessionID+"/finish/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("finish: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		TotalScore      int `json:"total_score"`
		AnsweredCount   int `json:"answered_count"`
		CorrectCount    int `json:"correct_count"`
		TotalQuestions  int `json:"total_questions"`
		DetailedAnswers []struct {
			ID            int    `json:"id"`
			QuestionText  string `json:"question_text"`
			CorrectAnswer string `json:"correct_answer"`
			YourAnswer    string `json:"your_answer"`
		} `json:"detailed_answers"`
	}
	decodeBody(t, rec, &resp)
	if resp.AnsweredCount != 2 || resp.CorrectCount != 1 || resp.TotalQuestions != 3 {
		t.Fatalf("unexpected counts: %+v", resp)
	}
	if len(resp.DetailedAnswers) != 2 {
		t.Fatalf("expected 2 detailed answers, got %d", len(resp.DetailedAnswers))
	}
	first := resp.DetailedAnswers[0]
	if first.ID != 1 || first.QuestionText != q1.Text ||
		first.CorrectAnswer != q1correct.Text || first.YourAnswer != q1correct.Text {
		t.Fatalf("unexpected detailed answer: %+v", first)
	}

	// Finishing twice is an error and submitting afterwards is rejected.
	rec = e.do(t, "POST", "/sessions/"+sessionID+"/finish/", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("double finish: status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Session already finished.") {
		t.Fatalf("double finish body: %s", rec.Body.String())
	}
	rec = e.do(t, "POST", "/sessions/"+sessionID+"/answers/",
		`{"question_id":"`+q1.ID+`","option_id":"`+q1correct.ID+`"}`)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Session is not active.") {
		t.Fatalf("submit after finish: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, "GET", "/sessions/"+sessionID+"/score-report/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("score report: status %d", rec.Code)
	}
	var report listening.ScoreReport
	decodeBody(t, rec, &report)
	if report.TotalScore != resp.TotalScore {
		t.Fatalf("report mismatch: %d vs %d", report.TotalScore, resp.TotalScore)
	}
}

func TestScoreReport_BeforeFinish(t *testing.T) {
	e := newTestEnv(t)
	sessionID := e.startSession(t, "exam")
	rec := e.do(t, "GET", "/sessions/"+sessionID+"/score-report/", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Score report not available yet.") {
		t.Fatalf("body: %s", rec.Body.String())
	}
}

func TestSessionOwnership(t *testing.T) {
	e := newTestEnv(t)
	sessionID := e.startSession(t, "practice") // owned by the guest user

	tok, err := e.auth.IssueJWT("user-2")
	if err != nil {
		t.Fatal(err)
	}
	rec := e.do(t, "GET", "/sessions/"+sessionID+"/", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok)
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign user: status %d", rec.Code)
	}

	rec = e.do(t, "GET", "/sessions/"+sessionID+"/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("owner: status %d", rec.Code)
	}
	var sess listening.Session
	decodeBody(t, rec, &sess)
	if sess.ID != sessionID || sess.Status != listening.StatusActive {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestGuestLogin(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "POST", "/auth/guest", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		AccessToken string `json:"access_token"`
		Username    string `json:"username"`
	}
	decodeBody(t, rec, &resp)
	if resp.AccessToken == "" || resp.Username != "guest_listening" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	claims, err := e.auth.Parse(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Sub != auth.GuestUserID {
		t.Fatalf("token subject: %s", claims.Sub)
	}
}

func TestLogEvents(t *testing.T) {
	e := newTestEnv(t)
	sessionID := e.startSession(t, "exam")

	rec := e.do(t, "POST", "/sessions/"+sessionID+"/events/",
		`{"event_type":"focus_loss","count":2,"extra_data":{"reason":"blur"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"logged"`) {
		t.Fatalf("body: %s", rec.Body.String())
	}

	cases := map[string]string{
		"bad type":         `{"event_type":"tab_hop"}`,
		"zero count":       `{"event_type":"replay","count":0}`,
		"extra not object": `{"event_type":"replay","extra_data":[1,2]}`,
	}
	for name, body := range cases {
		rec := e.do(t, "POST", "/sessions/"+sessionID+"/events/", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d body %s", name, rec.Code, rec.Body.String())
		}
	}
}

func TestAdminAuth(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "POST", "/admin/tests/"+e.test.ID+"/recount", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no creds: status %d", rec.Code)
	}
	rec = e.do(t, "POST", "/admin/tests/"+e.test.ID+"/recount", "", func(r *http.Request) {
		r.SetBasicAuth("admin", "wrong")
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: status %d", rec.Code)
	}

	rec = e.do(t, "POST", "/admin/tests/"+e.test.ID+"/recount", "", asAdmin(e))
	if rec.Code != http.StatusOK {
		t.Fatalf("recount: status %d body %s", rec.Code, rec.Body.String())
	}
	var counted map[string]int
	decodeBody(t, rec, &counted)
	if counted["total_items"] != 2 {
		t.Fatalf("total_items: %v", counted)
	}
}

func TestAdminPutTest(t *testing.T) {
	e := newTestEnv(t)
	body, err := json.Marshal(listening.SampleTests()[1])
	if err != nil {
		t.Fatal(err)
	}
	rec := e.do(t, "PUT", "/admin/tests/real-2", string(body), asAdmin(e))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var stored listening.Test
	decodeBody(t, rec, &stored)
	if stored.ID != "real-2" || stored.TotalItems != 1 {
		t.Fatalf("unexpected stored test: %+v", stored)
	}

	// A test whose question has no correct option is rejected.
	broken := listening.SampleTests()[1]
	for i := range broken.Items[0].Questions[0].Options {
		broken.Items[0].Questions[0].Options[i].IsCorrect = false
	}
	body, err = json.Marshal(broken)
	if err != nil {
		t.Fatal(err)
	}
	rec = e.do(t, "PUT", "/admin/tests/real-2", string(body), asAdmin(e))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("broken key: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestMediaUploadAndServe(t *testing.T) {
	e := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "a.mp3")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("not really audio")); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/admin/media/audio/a.mp3", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetBasicAuth("admin", adminPass)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: status %d body %s", rec.Code, rec.Body.String())
	}
	var up map[string]string
	decodeBody(t, rec, &up)
	if up["key"] != "audio/a.mp3" || up["url"] != "/assets/audio/a.mp3" {
		t.Fatalf("unexpected upload response: %v", up)
	}

	rec = e.do(t, "GET", "/assets/audio/a.mp3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("serve: status %d", rec.Code)
	}
	if rec.Body.String() != "not really audio" {
		t.Fatalf("served body: %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct == "" {
		t.Fatal("missing content type")
	}

	rec = e.do(t, "GET", "/assets/missing.mp3", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing blob: status %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		if rec := e.do(t, "GET", path, ""); rec.Code != http.StatusOK {
			t.Errorf("%s: status %d", path, rec.Code)
		}
	}
}
