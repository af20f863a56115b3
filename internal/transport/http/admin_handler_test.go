package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, buf.Bytes()
}

func TestAdminSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	base := ts.server.URL + "/api/sessions"

	resp, body := doJSON(t, http.MethodPost, base, map[string]any{"quizId": "quiz-1", "title": "Friday quiz"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d body %s", resp.StatusCode, body)
	}
	var created sessionResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Session.Title != "Friday quiz" || created.Session.TotalQuestions != 2 {
		t.Fatalf("unexpected session: %+v", created.Session)
	}
	sid := created.Session.ID

	session, err := ts.manager.Session(sid)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	alice, err := ts.manager.Join(context.Background(), nopConn("alice"), sid, "Alice", "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	resp, body = doJSON(t, http.MethodPost, base+"/"+sid+"/questions/next", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("next: status %d body %s", resp.StatusCode, body)
	}
	if session.Snapshot().State != domain.StateQuestionActive {
		t.Fatalf("expected active question")
	}

	if err := ts.manager.SubmitAnswer(context.Background(), domain.AnswerSubmission{
		SessionID: sid, ParticipantID: alice.ID, Answer: 1,
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	resp, _ = doJSON(t, http.MethodPost, base+"/"+sid+"/questions/close", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("close: status %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, base+"/"+sid+"/questions/close", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second close: expected 409, got %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, base+"/"+sid+"/rankings", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rankings: status %d", resp.StatusCode)
	}
	var stats domain.SessionStatistics
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("decode rankings: %v", err)
	}
	if len(stats.Rankings) != 1 || stats.Rankings[0].TotalScore == 0 {
		t.Fatalf("unexpected rankings: %s", body)
	}

	resp, body = doJSON(t, http.MethodGet, base+"/"+sid+"/participants/"+alice.ID+"/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: status %d body %s", resp.StatusCode, body)
	}
	resp, _ = doJSON(t, http.MethodGet, base+"/"+sid+"/participants/nobody/stats", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown participant: expected 404, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, base+"/"+sid+"/end", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end: status %d", resp.StatusCode)
	}
	resp, body = doJSON(t, http.MethodPost, base+"/"+sid+"/questions/next", nil)
	if resp.StatusCode != http.StatusConflict || !bytes.Contains(body, []byte("SESSION_CLOSED")) {
		t.Fatalf("next after end: status %d body %s", resp.StatusCode, body)
	}
}

func TestAdminErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	base := ts.server.URL + "/api"

	resp, _ := doJSON(t, http.MethodGet, base+"/sessions/missing", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, base+"/sessions", map[string]any{"quizId": "missing"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown quiz, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, base+"/youtube-quizzes", map[string]any{"videoId": "abc"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid quiz, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, base+"/sessions", bytes.NewReader([]byte("{")))
	raw, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	raw.Body.Close()
	if raw.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", raw.StatusCode)
	}
}

func TestAdminVideoQuizCatalog(t *testing.T) {
	ts := newTestServer(t, nil)
	base := ts.server.URL + "/api/youtube-quizzes"

	quiz := map[string]any{
		"videoId":       "dQw4w9WgXcQ",
		"title":         "Never Gonna Give You Up",
		"question":      "What is never going to happen?",
		"correctAnswer": "Give you up",
		"options":       []string{"Let you down", "Give you up", "Run around"},
		"duration":      15,
	}
	resp, body := doJSON(t, http.MethodPost, base, quiz)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d body %s", resp.StatusCode, body)
	}
	var created domain.VideoQuiz
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	quiz["title"] = "Renamed"
	resp, body = doJSON(t, http.MethodPut, base+"/"+created.ID, quiz)
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte("Renamed")) {
		t.Fatalf("update: status %d body %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, base, nil)
	var list []domain.VideoQuiz
	if err := json.Unmarshal(body, &list); err != nil || len(list) != 1 {
		t.Fatalf("list: status %d body %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, ts.server.URL+"/api/sessions", map[string]any{"useYouTubeQuiz": true})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create video session: status %d body %s", resp.StatusCode, body)
	}
	var created2 sessionResponse
	_ = json.Unmarshal(body, &created2)
	resp, body = doJSON(t, http.MethodPost, ts.server.URL+"/api/sessions/"+created2.Session.ID+"/youtube-quizzes/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte(`"totalQuestions":1`)) {
		t.Fatalf("add to session: status %d body %s", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, http.MethodDelete, base+"/"+created.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, base+"/"+created.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted: expected 404, got %d", resp.StatusCode)
	}
}

type stubRankings struct {
	stats domain.SessionStatistics
}

func (s stubRankings) LoadRankings(_ context.Context, sessionID string) (domain.SessionStatistics, error) {
	if sessionID != s.stats.SessionID {
		return domain.SessionStatistics{}, domain.ErrSessionNotFound
	}
	return s.stats, nil
}

func (s stubRankings) TopScores(_ context.Context, sessionID string, n int64) ([]domain.LeaderboardEntry, error) {
	if sessionID != s.stats.SessionID {
		return nil, domain.ErrSessionNotFound
	}
	var entries []domain.LeaderboardEntry
	for _, r := range s.stats.Rankings {
		if int64(len(entries)) == n {
			break
		}
		entries = append(entries, domain.LeaderboardEntry{ParticipantID: r.ParticipantID, Score: r.TotalScore, Rank: r.Rank})
	}
	return entries, nil
}

func TestAdminRankingsFallBackToCache(t *testing.T) {
	ts := newTestServer(t, nil)
	handler := NewAdminHandler(ts.manager, stubRankings{stats: domain.SessionStatistics{SessionID: "archived", TopScore: 42}}, nil)
	router := NewRouter(NewWSHandler(ts.manager, nil), handler, RouterOptions{})

	rec := serve(router, http.MethodGet, "/api/sessions/archived/rankings", "")
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"topScore":42`)) {
		t.Fatalf("expected cached rankings, got %d %s", rec.Code, rec.Body.String())
	}
	rec = serve(router, http.MethodGet, "/api/sessions/other/rankings", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAdminLeaderboard(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()
	session, err := ts.manager.CreateSession(ctx, app.CreateSessionInput{QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sid := session.ID()
	alice, _ := ts.manager.Join(ctx, nopConn("alice"), sid, "Alice", "")
	bob, _ := ts.manager.Join(ctx, nopConn("bob"), sid, "Bob", "")
	if err := ts.manager.StartNextQuestion(ctx, sid); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := ts.manager.SubmitAnswer(ctx, domain.AnswerSubmission{SessionID: sid, ParticipantID: bob.ID, Answer: 1}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	resp, body := doJSON(t, http.MethodGet, ts.server.URL+"/api/sessions/"+sid+"/leaderboard?limit=1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leaderboard: status %d body %s", resp.StatusCode, body)
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].ParticipantID != bob.ID || entries[0].Rank != 1 || entries[0].Score <= 0 {
		t.Fatalf("unexpected leaderboard: %+v (alice %s)", entries, alice.ID)
	}

	for _, limit := range []string{"0", "abc", "101"} {
		resp, _ = doJSON(t, http.MethodGet, ts.server.URL+"/api/sessions/"+sid+"/leaderboard?limit="+limit, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("limit %s: expected 400, got %d", limit, resp.StatusCode)
		}
	}

	cached := stubRankings{stats: domain.SessionStatistics{SessionID: "archived", Rankings: []domain.RankingEntry{
		{ParticipantID: "p1", TotalScore: 900, Rank: 1},
		{ParticipantID: "p2", TotalScore: 300, Rank: 2},
	}}}
	router := NewRouter(NewWSHandler(ts.manager, nil), NewAdminHandler(ts.manager, cached, nil), RouterOptions{})
	rec := serve(router, http.MethodGet, "/api/sessions/archived/leaderboard", "")
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"participantId":"p2"`)) {
		t.Fatalf("expected cached leaderboard, got %d %s", rec.Code, rec.Body.String())
	}
	rec = serve(router, http.MethodGet, "/api/sessions/other/leaderboard", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAdminSummary(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()
	session, err := ts.manager.CreateSession(ctx, app.CreateSessionInput{QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sid := session.ID()
	alice, _ := ts.manager.Join(ctx, nopConn("alice"), sid, "Alice", "")
	_ = ts.manager.StartNextQuestion(ctx, sid)
	_ = ts.manager.SubmitAnswer(ctx, domain.AnswerSubmission{SessionID: sid, ParticipantID: alice.ID, Answer: 1})
	if err := ts.manager.EndSession(ctx, sid); err != nil {
		t.Fatalf("end: %v", err)
	}

	resp, body := doJSON(t, http.MethodGet, ts.server.URL+"/api/sessions/"+sid+"/summary", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary: status %d body %s", resp.StatusCode, body)
	}
	var summary domain.SessionSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.SessionID != sid || len(summary.FinalResults) != 1 || summary.EndedAt.IsZero() {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.server.URL+"/api/sessions/missing/summary", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAdminStoredQuizzes(t *testing.T) {
	ts := newTestServer(t, nil)
	base := ts.server.URL + "/api/quizzes"

	if _, err := ts.manager.StoredQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	resp, body := doJSON(t, http.MethodPut, base+"/quiz-1", map[string]any{
		"title": "Arithmetic v2",
		"questions": []map[string]any{
			{"question": "What is 1 + 1?", "options": []string{"2", "3"}, "correctAnswer": 0},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save: status %d body %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, base+"/quiz-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status %d body %s", resp.StatusCode, body)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(body, &quiz); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if quiz.Title != "Arithmetic v2" || len(quiz.Questions) != 1 || quiz.Questions[0].ID == "" {
		t.Fatalf("expected saved content past the cache, got %+v", quiz)
	}

	resp, body = doJSON(t, http.MethodPost, base, map[string]any{
		"title":     "Broken",
		"questions": []map[string]any{{"question": "?", "options": []string{"a", "b"}, "correctAnswer": 5}},
	})
	if resp.StatusCode != http.StatusBadRequest || !bytes.Contains(body, []byte("INVALID_QUIZ")) {
		t.Fatalf("expected 400 INVALID_QUIZ, got %d %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, base, map[string]any{
		"title":     "Fresh",
		"questions": []map[string]any{{"question": "Sky colour?", "options": []string{"blue", "green"}, "correctAnswer": 0}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create: status %d body %s", resp.StatusCode, body)
	}
	var created domain.Quiz
	if err := json.Unmarshal(body, &created); err != nil || created.ID == "" {
		t.Fatalf("expected minted id, got %+v %v", created, err)
	}
	resp, body = doJSON(t, http.MethodPost, ts.server.URL+"/api/sessions", map[string]any{"quizId": created.ID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("session from saved quiz: status %d body %s", resp.StatusCode, body)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		domain.ErrSessionNotFound:     http.StatusNotFound,
		domain.ErrDuplicateSubmission: http.StatusConflict,
		domain.ErrNoMoreQuestions:     http.StatusConflict,
		domain.ErrInvalidQuiz:         http.StatusBadRequest,
		errors.New("boom"):            http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := statusFor(err); got != want {
			t.Fatalf("statusFor(%v) = %d, want %d", err, got, want)
		}
	}
}

type nopConn string

func (c nopConn) ID() string              { return string(c) }
func (c nopConn) Send(domain.Event) error { return nil }
