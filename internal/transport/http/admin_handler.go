package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

// RankingsReader serves the last stored leaderboard of sessions no longer held in memory.
type RankingsReader interface {
	LoadRankings(ctx context.Context, sessionID string) (domain.SessionStatistics, error)
	TopScores(ctx context.Context, sessionID string, n int64) ([]domain.LeaderboardEntry, error)
}

// AdminHandler exposes the host controls and the video quiz catalog over REST.
type AdminHandler struct {
	manager  *app.Manager
	rankings RankingsReader
	log      *slog.Logger
}

func NewAdminHandler(manager *app.Manager, rankings RankingsReader, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{manager: manager, rankings: rankings, log: logger}
}

type createSessionRequest struct {
	Title        string            `json:"title"`
	QuizID       string            `json:"quizId"`
	Questions    []domain.Question `json:"questions"`
	VideoQuizIDs []string          `json:"youtubeQuizIds"`
	UseVideoQuiz bool              `json:"useYouTubeQuiz"`
}

type sessionResponse struct {
	Session      domain.Session       `json:"session"`
	Participants []domain.Participant `json:"participants"`
}

func newSessionResponse(session *app.Session) sessionResponse {
	return sessionResponse{Session: session.Snapshot(), Participants: session.Participants()}
}

func (h *AdminHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	session, err := h.manager.CreateSession(r.Context(), app.CreateSessionInput{
		Title:        req.Title,
		QuizID:       req.QuizID,
		Questions:    req.Questions,
		VideoQuizIDs: req.VideoQuizIDs,
		UseVideoQuiz: req.UseVideoQuiz,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(session))
}

func (h *AdminHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.manager.Session(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

func (h *AdminHandler) GetRankings(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	stats, err := h.manager.Rankings(sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) && h.rankings != nil {
		stats, err = h.rankings.LoadRankings(r.Context(), sessionID)
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxLeaderboardSize {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	sessionID := chi.URLParam(r, "id")
	entries, err := h.manager.Leaderboard(sessionID, limit)
	if errors.Is(err, domain.ErrSessionNotFound) && h.rankings != nil {
		entries, err = h.rankings.TopScores(r.Context(), sessionID, int64(limit))
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *AdminHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.manager.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *AdminHandler) GetParticipantStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.manager.ParticipantStats(chi.URLParam(r, "id"), chi.URLParam(r, "participantId"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) NextQuestion(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.manager.StartNextQuestion)
}

func (h *AdminHandler) CloseQuestion(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.manager.CloseQuestion)
}

func (h *AdminHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.manager.EndSession)
}

func (h *AdminHandler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, string) error) {
	sessionID := chi.URLParam(r, "id")
	if err := apply(r.Context(), sessionID); err != nil {
		h.fail(w, err)
		return
	}
	session, err := h.manager.Session(sessionID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (h *AdminHandler) AddQuizToSession(w http.ResponseWriter, r *http.Request) {
	sessionID, quizID := chi.URLParam(r, "id"), chi.URLParam(r, "quizId")
	total, err := h.manager.AddQuizToSession(r.Context(), sessionID, quizID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.QuizAddedPayload{SessionID: sessionID, QuizID: quizID, TotalQuestions: total})
}

func (h *AdminHandler) SaveQuiz(w http.ResponseWriter, r *http.Request) {
	var quiz domain.Quiz
	if err := json.NewDecoder(r.Body).Decode(&quiz); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		quiz.ID = id
	}
	saved, err := h.manager.SaveQuiz(r.Context(), quiz)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *AdminHandler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.manager.StoredQuiz(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *AdminHandler) ListVideoQuizzes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Catalog().List())
}

func (h *AdminHandler) GetVideoQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.manager.Catalog().Get(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *AdminHandler) CreateVideoQuiz(w http.ResponseWriter, r *http.Request) {
	var quiz domain.VideoQuiz
	if err := json.NewDecoder(r.Body).Decode(&quiz); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	created, err := h.manager.Catalog().Create(quiz)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *AdminHandler) UpdateVideoQuiz(w http.ResponseWriter, r *http.Request) {
	var quiz domain.VideoQuiz
	if err := json.NewDecoder(r.Body).Decode(&quiz); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	quiz.ID = chi.URLParam(r, "id")
	updated, err := h.manager.Catalog().Update(quiz)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) DeleteVideoQuiz(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Catalog().Delete(chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("admin request failed", "err", err)
		writeError(w, status, domain.ErrorCode(err), "internal error")
		return
	}
	writeError(w, status, domain.ErrorCode(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrUnknownParticipant):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionClosed),
		errors.Is(err, domain.ErrNotAcceptingAnswers),
		errors.Is(err, domain.ErrDuplicateSubmission),
		errors.Is(err, domain.ErrNoMoreQuestions):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidQuiz),
		errors.Is(err, domain.ErrInvalidAnswerIndex),
		errors.Is(err, domain.ErrQuizSourceMismatch),
		errors.Is(err, domain.ErrNotJoined):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, domain.ErrorPayload{Message: message, Code: code})
}
