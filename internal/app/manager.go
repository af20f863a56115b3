package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"live-quiz-service/internal/domain"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
	List() []*Session
}

// QuizRepository loads stored quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizStore persists stored quiz content.
type QuizStore interface {
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
}

// QuizCache is implemented by quiz repositories that keep content around after a load.
type QuizCache interface {
	Invalidate(ctx context.Context, quizID string) error
}

// RankingsSink receives every published leaderboard. Stats carry a Version; sinks may
// receive them out of order and should keep the highest.
type RankingsSink interface {
	StoreRankings(ctx context.Context, stats domain.SessionStatistics) error
}

// ResultArchive persists the outcome of ended sessions.
type ResultArchive interface {
	ArchiveSession(ctx context.Context, summary domain.SessionSummary) error
}

// SummaryLoader reads archived sessions back.
type SummaryLoader interface {
	LoadSummary(ctx context.Context, sessionID string) (domain.SessionSummary, error)
}

var errNoQuizStore = errors.New("no quiz store configured")

// ManagerOptions wires optional collaborators. Nil collaborators are skipped.
type ManagerOptions struct {
	Scoring           ScoringPolicy
	QuestionTimeLimit time.Duration
	// AutoClose closes a question when every participant has answered or its time limit
	// elapses.
	AutoClose bool
	Timer     QuestionTimer
	Quizzes   QuizRepository
	QuizStore QuizStore
	Rankings  RankingsSink
	Archive   ResultArchive
	Catalog   *VideoQuizCatalog
	Logger    *slog.Logger
	Now       func() time.Time
}

type membership struct {
	sessionID     string
	participantID string
}

// Manager is the top-level directory of quiz sessions. It routes inbound commands to the
// addressed session and reports failures to the originating connection only.
type Manager struct {
	sessions SessionRepository
	opts     ManagerOptions
	catalog  *VideoQuizCatalog
	log      *slog.Logger

	mu      sync.Mutex
	members map[string]membership
}

func NewManager(sessions SessionRepository, opts ManagerOptions) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Catalog == nil {
		opts.Catalog = NewVideoQuizCatalog()
	}
	return &Manager{
		sessions: sessions,
		opts:     opts,
		catalog:  opts.Catalog,
		log:      opts.Logger,
		members:  make(map[string]membership),
	}
}

// Catalog exposes the video quiz catalog.
func (m *Manager) Catalog() *VideoQuizCatalog {
	return m.catalog
}

// CreateSessionInput describes a new session. The queue is built from the stored quiz
// (if any), then inline questions, then catalog video quizzes.
type CreateSessionInput struct {
	Title        string
	QuizID       string
	Questions    []domain.Question
	VideoQuizIDs []string
	UseVideoQuiz bool
}

// CreateSession builds the quiz queue and registers a new pending session.
func (m *Manager) CreateSession(ctx context.Context, in CreateSessionInput) (*Session, error) {
	var queue []domain.QueueItem
	title := in.Title

	if in.QuizID != "" {
		if m.opts.Quizzes == nil {
			return nil, domain.ErrQuizNotFound
		}
		quiz, err := m.opts.Quizzes.GetQuiz(ctx, in.QuizID)
		if err != nil {
			return nil, err
		}
		queue = append(queue, quiz.Items(in.UseVideoQuiz)...)
		if title == "" {
			title = quiz.Title
		}
	}
	for i := range in.Questions {
		q := in.Questions[i]
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		queue = append(queue, domain.QueueItem{Text: &q})
	}
	for _, id := range in.VideoQuizIDs {
		v, err := m.catalog.Get(id)
		if err != nil {
			return nil, err
		}
		queue = append(queue, domain.QueueItem{Video: &v})
	}
	if title == "" {
		title = "Untitled quiz"
	}

	session, err := NewSession(uuid.NewString(), title, queue, in.UseVideoQuiz, m.sessionOptions())
	if err != nil {
		return nil, err
	}
	m.sessions.Put(session)
	m.log.Info("session created", "session_id", session.ID(), "questions", len(queue), "video", in.UseVideoQuiz)
	return session, nil
}

// SaveQuiz validates and stores quiz content, then drops any cached copy so the next
// session built from it sees the new content.
func (m *Manager) SaveQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	if m.opts.QuizStore == nil {
		return domain.Quiz{}, errNoQuizStore
	}
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	if len(quiz.Questions) == 0 && len(quiz.VideoQuizzes) == 0 {
		return domain.Quiz{}, fmt.Errorf("%w: quiz %q has no questions", domain.ErrInvalidQuiz, quiz.ID)
	}
	quiz.Questions = append([]domain.Question(nil), quiz.Questions...)
	for i := range quiz.Questions {
		if quiz.Questions[i].ID == "" {
			quiz.Questions[i].ID = uuid.NewString()
		}
	}
	quiz.VideoQuizzes = append([]domain.VideoQuiz(nil), quiz.VideoQuizzes...)
	for i := range quiz.VideoQuizzes {
		if quiz.VideoQuizzes[i].ID == "" {
			quiz.VideoQuizzes[i].ID = uuid.NewString()
		}
	}
	for _, video := range []bool{false, true} {
		for _, item := range quiz.Items(video) {
			if err := validateItem(item, video); err != nil {
				return domain.Quiz{}, err
			}
		}
	}

	if err := m.opts.QuizStore.SaveQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	if cache, ok := m.opts.Quizzes.(QuizCache); ok {
		if err := cache.Invalidate(ctx, quiz.ID); err != nil {
			m.log.Warn("invalidate cached quiz failed", "quiz_id", quiz.ID, "err", err)
		}
	}
	m.log.Info("quiz saved", "quiz_id", quiz.ID, "questions", len(quiz.Questions), "video_quizzes", len(quiz.VideoQuizzes))
	return quiz, nil
}

// StoredQuiz returns stored quiz content through the quiz repository.
func (m *Manager) StoredQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if m.opts.Quizzes == nil {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return m.opts.Quizzes.GetQuiz(ctx, quizID)
}

// GetOrCreateSession mints an empty session when sessionID is empty, otherwise looks it up.
func (m *Manager) GetOrCreateSession(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return m.CreateSession(ctx, CreateSessionInput{})
	}
	return m.Session(sessionID)
}

// Session looks up a session by id.
func (m *Manager) Session(sessionID string) (*Session, error) {
	session, ok := m.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Dispatch routes a command from conn. Domain failures are sent back to conn as an error
// event and also returned; nothing is broadcast for them.
func (m *Manager) Dispatch(ctx context.Context, conn Connection, cmd Command) error {
	err := m.dispatch(ctx, conn, cmd)
	if err != nil {
		if !domain.IsDomainError(err) {
			m.log.Error("command failed", "command", cmd.Name(), "connection_id", conn.ID(), "err", err)
		}
		if sendErr := conn.Send(domain.NewErrorEvent(err)); sendErr != nil {
			m.log.Warn("error delivery failed", "connection_id", conn.ID(), "err", sendErr)
		}
	}
	return err
}

func (m *Manager) dispatch(ctx context.Context, conn Connection, cmd Command) error {
	switch c := cmd.(type) {
	case JoinSession:
		_, err := m.Join(ctx, conn, c.SessionID, c.Username, c.UserID)
		return err
	case SubmitAnswer:
		return m.submitFromConnection(ctx, conn, c)
	case LeaveSession:
		m.Leave(ctx, conn, c.SessionID)
		return nil
	case CreateVideoQuiz:
		quiz, err := m.catalog.Create(c.Quiz)
		if err != nil {
			return err
		}
		return conn.Send(domain.Event{Type: domain.EventVideoQuizCreated, Payload: quiz})
	case UpdateVideoQuiz:
		quiz, err := m.catalog.Update(c.Quiz)
		if err != nil {
			return err
		}
		return conn.Send(domain.Event{Type: domain.EventVideoQuizUpdated, Payload: quiz})
	case DeleteVideoQuiz:
		if err := m.catalog.Delete(c.ID); err != nil {
			return err
		}
		return conn.Send(domain.Event{Type: domain.EventVideoQuizDeleted, Payload: map[string]string{"id": c.ID}})
	case AddQuizToSession:
		total, err := m.AddQuizToSession(ctx, c.SessionID, c.QuizID)
		if err != nil {
			return err
		}
		return conn.Send(domain.Event{Type: domain.EventQuizAddedToSession, Payload: domain.QuizAddedPayload{
			SessionID: c.SessionID, QuizID: c.QuizID, TotalQuestions: total,
		}})
	case StartVideoQuestion:
		return m.StartVideoQuestion(ctx, c.SessionID)
	case StartQuestion:
		return m.StartNextQuestion(ctx, c.SessionID)
	case CloseQuestion:
		return m.CloseQuestion(ctx, c.SessionID)
	case EndSession:
		return m.EndSession(ctx, c.SessionID)
	default:
		return fmt.Errorf("unsupported command %q", cmd.Name())
	}
}

// Join registers conn as a new participant of sessionID. A connection belongs to one
// session at a time: the previous session is left only once the new join succeeded, and
// joining the current session again resumes the existing participant.
func (m *Manager) Join(ctx context.Context, conn Connection, sessionID, username, userID string) (domain.Participant, error) {
	session, err := m.Session(sessionID)
	if err != nil {
		return domain.Participant{}, err
	}

	m.mu.Lock()
	prev, joined := m.members[conn.ID()]
	m.mu.Unlock()
	if joined && prev.sessionID == sessionID {
		participant, err := session.Resume(prev.participantID, conn)
		if !errors.Is(err, domain.ErrUnknownParticipant) {
			return participant, err
		}
	}

	participant, _, err := session.Join(username, userID, conn)
	if err != nil {
		return domain.Participant{}, err
	}
	if joined {
		m.Leave(ctx, conn, prev.sessionID)
	}
	m.mu.Lock()
	m.members[conn.ID()] = membership{sessionID: sessionID, participantID: participant.ID}
	m.mu.Unlock()
	return participant, nil
}

// Leave removes conn from its session. sessionID, when set, must match the joined session;
// otherwise the call is a no-op like any repeated leave.
func (m *Manager) Leave(ctx context.Context, conn Connection, sessionID string) {
	m.mu.Lock()
	mem, ok := m.members[conn.ID()]
	if !ok || (sessionID != "" && mem.sessionID != sessionID) {
		m.mu.Unlock()
		return
	}
	delete(m.members, conn.ID())
	m.mu.Unlock()

	session, ok := m.sessions.Get(mem.sessionID)
	if !ok {
		return
	}
	m.after(ctx, session, session.Leave(mem.participantID))
}

// Disconnect releases everything held for a closed connection.
func (m *Manager) Disconnect(ctx context.Context, conn Connection) {
	m.Leave(ctx, conn, "")
}

func (m *Manager) submitFromConnection(ctx context.Context, conn Connection, c SubmitAnswer) error {
	m.mu.Lock()
	mem, ok := m.members[conn.ID()]
	m.mu.Unlock()
	if !ok {
		return domain.ErrNotJoined
	}
	if c.SessionID != "" && c.SessionID != mem.sessionID {
		return domain.ErrNotJoined
	}
	if c.ParticipantID != "" && c.ParticipantID != mem.participantID {
		return domain.ErrUnknownParticipant
	}
	m.log.Debug("answer submitted", "session_id", mem.sessionID, "participant_id", mem.participantID,
		"question_id", c.QuestionID, "client_timestamp", c.Timestamp)
	return m.SubmitAnswer(ctx, domain.AnswerSubmission{
		SessionID:     mem.sessionID,
		QuestionID:    c.QuestionID,
		ParticipantID: mem.participantID,
		Answer:        c.Answer,
	})
}

// SubmitAnswer stamps the submission with the server clock and hands it to the session.
func (m *Manager) SubmitAnswer(ctx context.Context, sub domain.AnswerSubmission) error {
	session, err := m.Session(sub.SessionID)
	if err != nil {
		return err
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = m.opts.Now()
	}
	out, err := session.SubmitAnswer(sub)
	if err != nil {
		return err
	}
	m.after(ctx, session, out)
	return nil
}

// StartNextQuestion advances the session. On an exhausted queue the session ends and
// ErrNoMoreQuestions is returned after the end has been broadcast.
func (m *Manager) StartNextQuestion(ctx context.Context, sessionID string) error {
	session, err := m.Session(sessionID)
	if err != nil {
		return err
	}
	out, err := session.StartNextQuestion()
	m.after(ctx, session, out)
	return err
}

// StartVideoQuestion starts the next question of a video session.
func (m *Manager) StartVideoQuestion(ctx context.Context, sessionID string) error {
	session, err := m.Session(sessionID)
	if err != nil {
		return err
	}
	if !session.UsesVideoQuiz() {
		return domain.ErrQuizSourceMismatch
	}
	return m.StartNextQuestion(ctx, sessionID)
}

// CloseQuestion closes the live question regardless of what triggered it.
func (m *Manager) CloseQuestion(ctx context.Context, sessionID string) error {
	session, err := m.Session(sessionID)
	if err != nil {
		return err
	}
	out, err := session.CloseQuestion()
	if err != nil {
		return err
	}
	m.after(ctx, session, out)
	return nil
}

// EndSession terminates a session.
func (m *Manager) EndSession(ctx context.Context, sessionID string) error {
	session, err := m.Session(sessionID)
	if err != nil {
		return err
	}
	out, err := session.End()
	if err != nil {
		return err
	}
	m.after(ctx, session, out)
	return nil
}

// AddQuizToSession appends a catalog video quiz to a session queue and returns the new
// queue length.
func (m *Manager) AddQuizToSession(_ context.Context, sessionID, quizID string) (int, error) {
	session, err := m.Session(sessionID)
	if err != nil {
		return 0, err
	}
	quiz, err := m.catalog.Get(quizID)
	if err != nil {
		return 0, err
	}
	return session.AddVideoQuiz(quiz)
}

// Rankings returns the current leaderboard of a session.
func (m *Manager) Rankings(sessionID string) (domain.SessionStatistics, error) {
	session, err := m.Session(sessionID)
	if err != nil {
		return domain.SessionStatistics{}, err
	}
	return session.Rankings(), nil
}

// Leaderboard returns the top n entries of the current leaderboard.
func (m *Manager) Leaderboard(sessionID string, n int) ([]domain.LeaderboardEntry, error) {
	stats, err := m.Rankings(sessionID)
	if err != nil {
		return nil, err
	}
	if n < len(stats.Rankings) {
		stats.Rankings = stats.Rankings[:max(n, 0)]
	}
	entries := make([]domain.LeaderboardEntry, 0, len(stats.Rankings))
	for _, r := range stats.Rankings {
		entries = append(entries, domain.LeaderboardEntry{ParticipantID: r.ParticipantID, Score: r.TotalScore, Rank: r.Rank})
	}
	return entries, nil
}

// Summary returns the results of a session held in memory, or its archived summary once
// the session has been reaped.
func (m *Manager) Summary(ctx context.Context, sessionID string) (domain.SessionSummary, error) {
	if session, ok := m.sessions.Get(sessionID); ok {
		return session.Summary(), nil
	}
	if loader, ok := m.opts.Archive.(SummaryLoader); ok {
		return loader.LoadSummary(ctx, sessionID)
	}
	return domain.SessionSummary{}, domain.ErrSessionNotFound
}

// ParticipantStats returns one participant's statistics.
func (m *Manager) ParticipantStats(sessionID, participantID string) (domain.ParticipantStatistics, error) {
	session, err := m.Session(sessionID)
	if err != nil {
		return domain.ParticipantStatistics{}, err
	}
	return session.ParticipantStats(participantID)
}

// Broadcast delivers event to every connection of a session.
func (m *Manager) Broadcast(sessionID string, event domain.Event) error {
	session, err := m.Session(sessionID)
	if err != nil {
		return err
	}
	session.Broadcast(event)
	return nil
}

// ReapEnded drops sessions that ended before now-olderThan and returns how many were removed.
func (m *Manager) ReapEnded(olderThan time.Duration) int {
	cutoff := m.opts.Now().Add(-olderThan)
	removed := 0
	for _, session := range m.sessions.List() {
		endedAt, ended := session.EndedAt()
		if !ended || endedAt.After(cutoff) {
			continue
		}
		m.sessions.Delete(session.ID())
		if m.opts.Timer != nil {
			m.opts.Timer.Cancel(session.ID())
		}
		removed++
	}
	if removed > 0 {
		m.log.Info("reaped ended sessions", "count", removed)
	}
	return removed
}

func (m *Manager) sessionOptions() SessionOptions {
	return SessionOptions{
		Scoring:           m.opts.Scoring,
		QuestionTimeLimit: m.opts.QuestionTimeLimit,
		Now:               m.opts.Now,
		Logger:            m.log,
	}
}

// after feeds side collaborators once a transition has been applied.
func (m *Manager) after(ctx context.Context, session *Session, out Outcome) {
	if out.Rankings != nil && m.opts.Rankings != nil {
		if err := m.opts.Rankings.StoreRankings(ctx, *out.Rankings); err != nil {
			m.log.Warn("store rankings failed", "session_id", session.ID(), "err", err)
		}
	}

	if out.Ended != nil {
		if m.opts.Timer != nil {
			m.opts.Timer.Cancel(session.ID())
		}
		if m.opts.Archive != nil {
			if err := m.opts.Archive.ArchiveSession(ctx, *out.Ended); err != nil {
				m.log.Error("archive session failed", "session_id", session.ID(), "err", err)
			}
		}
		return
	}

	if !m.opts.AutoClose {
		return
	}
	if out.TimeLimit > 0 && m.opts.Timer != nil {
		n := out.QuestionNumber
		m.opts.Timer.Schedule(session.ID(), n, out.TimeLimit, func() {
			closed, err := session.CloseQuestionAt(n)
			if err != nil {
				return
			}
			m.after(context.Background(), session, closed)
		})
	}
	if out.AllAnswered {
		closed, err := session.CloseQuestionAt(out.QuestionNumber)
		if err != nil {
			if !errors.Is(err, domain.ErrNotAcceptingAnswers) {
				m.log.Warn("auto close failed", "session_id", session.ID(), "err", err)
			}
			return
		}
		if m.opts.Timer != nil {
			m.opts.Timer.Cancel(session.ID())
		}
		m.after(ctx, session, closed)
	}
}
