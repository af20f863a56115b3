package app

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// DefaultQuestionTimeLimit applies to questions that carry no time limit of their own.
const DefaultQuestionTimeLimit = 20 * time.Second

// SessionOptions tunes a Session. Zero values fall back to defaults.
type SessionOptions struct {
	Scoring           ScoringPolicy
	QuestionTimeLimit time.Duration
	Now               func() time.Time
	Logger            *slog.Logger
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.Scoring == (ScoringPolicy{}) {
		o.Scoring = DefaultScoringPolicy()
	}
	if o.QuestionTimeLimit <= 0 {
		o.QuestionTimeLimit = DefaultQuestionTimeLimit
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Outcome describes what a state transition produced. Events were already broadcast to the
// session's connections when the Outcome is returned.
type Outcome struct {
	Events         []domain.Event
	QuestionNumber int
	TimeLimit      time.Duration
	AllAnswered    bool
	Rankings       *domain.SessionStatistics
	Ended          *domain.SessionSummary
}

func (o *Outcome) add(event domain.Event) {
	o.Events = append(o.Events, event)
}

type answerRecord struct {
	participantID string
	username      string
	answer        int
	correct       bool
	points        int
	responseTime  time.Duration
	seq           int
}

// Session owns one quiz session: its participant registry, quiz queue and the
// pending -> question_active -> question_closed -> ended state machine. All methods are
// safe for concurrent use; every transition happens under a single per-session lock and
// broadcasts are delivered while holding it so clients observe events in state order.
type Session struct {
	id        string
	title     string
	useVideo  bool
	createdAt time.Time
	opts      SessionOptions
	log       *slog.Logger

	mu                sync.Mutex
	state             domain.SessionState
	queue             []domain.QueueItem
	current           int
	questionStartedAt time.Time
	endedAt           time.Time
	registry          *Registry
	answers           map[string]*answerRecord
	answerSeq         int
	results           []domain.QuestionResult
	rankingsVersion   int64
}

// NewSession creates a session in the pending state. Every queue item must match the quiz
// source selected by useVideoQuiz.
func NewSession(id, title string, queue []domain.QueueItem, useVideoQuiz bool, opts SessionOptions) (*Session, error) {
	for i, item := range queue {
		if err := validateItem(item, useVideoQuiz); err != nil {
			return nil, fmt.Errorf("queue item %d: %w", i, err)
		}
	}
	opts = opts.withDefaults()
	return &Session{
		id:        id,
		title:     title,
		useVideo:  useVideoQuiz,
		createdAt: opts.Now(),
		opts:      opts,
		log:       opts.Logger.With("session_id", id),
		state:     domain.StatePending,
		queue:     append([]domain.QueueItem(nil), queue...),
		registry:  newRegistry(),
		answers:   make(map[string]*answerRecord),
	}, nil
}

func validateItem(item domain.QueueItem, video bool) error {
	if (item.Text == nil) == (item.Video == nil) {
		return domain.ErrInvalidQuiz
	}
	if (item.Video != nil) != video {
		return domain.ErrQuizSourceMismatch
	}
	if item.OptionCount() == 0 {
		return domain.ErrInvalidQuiz
	}
	if item.Text != nil && (item.Text.CorrectIndex < 0 || item.Text.CorrectIndex >= len(item.Text.Options)) {
		return fmt.Errorf("%w: question %q has no valid correct option", domain.ErrInvalidQuiz, item.ID())
	}
	if item.Video != nil && item.Video.CorrectIndex() < 0 {
		return fmt.Errorf("%w: video quiz %q answer matches no option", domain.ErrInvalidQuiz, item.ID())
	}
	return nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Join registers a participant and announces it to the rest of the session.
func (s *Session) Join(displayName, userID string, conn Connection) (domain.Participant, Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out Outcome
	if s.state == domain.StateEnded {
		return domain.Participant{}, out, domain.ErrSessionClosed
	}

	p := s.registry.Join(displayName, userID, conn, s.opts.Now())
	s.sendLocked(conn, domain.Event{
		Type:    domain.EventSessionJoined,
		Payload: domain.SessionJoinedPayload{Session: s.snapshotLocked(), ParticipantID: p.ID},
	})
	s.broadcastLocked(&out, domain.Event{
		Type:    domain.EventParticipantJoined,
		Payload: domain.ParticipantJoinedPayload{Participant: p, ParticipantCount: s.registry.Len()},
	}, conn)
	s.log.Info("participant joined", "participant_id", p.ID, "username", displayName)
	return p, out, nil
}

// Resume re-sends session-joined for a participant that is already registered. Nothing
// else changes, so score and streak are kept.
func (s *Session) Resume(participantID string, conn Connection) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.StateEnded {
		return domain.Participant{}, domain.ErrSessionClosed
	}
	p, err := s.registry.Get(participantID)
	if err != nil {
		return domain.Participant{}, err
	}
	s.sendLocked(conn, domain.Event{
		Type:    domain.EventSessionJoined,
		Payload: domain.SessionJoinedPayload{Session: s.snapshotLocked(), ParticipantID: p.ID},
	})
	return p, nil
}

// Leave removes a participant. Leaving twice, or leaving an ended session, is a no-op.
func (s *Session) Leave(participantID string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out Outcome
	if !s.registry.Leave(participantID) {
		return out
	}
	s.broadcastLocked(&out, domain.Event{
		Type:    domain.EventParticipantLeft,
		Payload: domain.ParticipantLeftPayload{ParticipantID: participantID, ParticipantCount: s.registry.Len()},
	}, nil)
	if s.state == domain.StateQuestionActive {
		out.QuestionNumber = s.current
		out.AllAnswered = s.allAnsweredLocked()
	}
	s.log.Info("participant left", "participant_id", participantID)
	return out
}

// StartNextQuestion advances the queue. A live question is closed first. When the queue is
// exhausted the session ends and ErrNoMoreQuestions is returned alongside the end outcome.
func (s *Session) StartNextQuestion() (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out Outcome
	if s.state == domain.StateEnded {
		return out, domain.ErrSessionClosed
	}
	if s.state == domain.StateQuestionActive {
		s.closeLocked(&out)
	}
	if s.current >= len(s.queue) {
		s.endLocked(&out)
		return out, domain.ErrNoMoreQuestions
	}

	s.current++
	s.state = domain.StateQuestionActive
	s.questionStartedAt = s.opts.Now()
	s.answers = make(map[string]*answerRecord)
	s.answerSeq = 0

	item := s.queue[s.current-1]
	limit := item.TimeLimit(s.opts.QuestionTimeLimit)
	out.QuestionNumber = s.current
	out.TimeLimit = limit

	if item.Video != nil {
		s.broadcastLocked(&out, domain.Event{
			Type: domain.EventVideoQuestionStarted,
			Payload: domain.VideoQuestionStartedPayload{
				Quiz:           item.Video.Public(),
				QuestionNumber: s.current,
				TotalQuestions: len(s.queue),
				TimeLimitMs:    limit.Milliseconds(),
			},
		}, nil)
	} else {
		s.broadcastLocked(&out, domain.Event{
			Type: domain.EventQuestionStarted,
			Payload: domain.QuestionStartedPayload{
				Question:       item.Text.Public(),
				QuestionNumber: s.current,
				TotalQuestions: len(s.queue),
				TimeLimitMs:    limit.Milliseconds(),
			},
		}, nil)
	}
	s.log.Info("question started", "question_number", s.current, "question_id", item.ID())
	return out, nil
}

// SubmitAnswer records and scores an answer to the live question. Only an acknowledgment
// is broadcast; correctness is revealed when the question closes.
func (s *Session) SubmitAnswer(sub domain.AnswerSubmission) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out Outcome
	switch s.state {
	case domain.StateEnded:
		return out, domain.ErrSessionClosed
	case domain.StateQuestionActive:
	default:
		return out, domain.ErrNotAcceptingAnswers
	}

	item := s.queue[s.current-1]
	if sub.QuestionID != "" && sub.QuestionID != item.ID() {
		return out, domain.ErrNotAcceptingAnswers
	}
	p, ok := s.registry.participant(sub.ParticipantID)
	if !ok {
		return out, domain.ErrUnknownParticipant
	}
	if _, answered := s.answers[p.ID]; answered {
		return out, domain.ErrDuplicateSubmission
	}
	if sub.Answer < 0 || sub.Answer >= item.OptionCount() {
		return out, domain.ErrInvalidAnswerIndex
	}

	submittedAt := sub.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = s.opts.Now()
	}
	responseTime := submittedAt.Sub(s.questionStartedAt)
	if responseTime < 0 {
		responseTime = 0
	}

	correct := item.IsCorrect(sub.Answer)
	limit := item.TimeLimit(s.opts.QuestionTimeLimit)
	points := s.opts.Scoring.Score(correct, responseTime, limit, p.Streak)

	p.Score += points
	p.Streak = NextStreak(correct, p.Streak)
	if p.Streak > p.BestStreak {
		p.BestStreak = p.Streak
	}
	p.QuestionsAnswered++
	if correct {
		p.CorrectAnswers++
	}
	p.TotalResponseTime += responseTime

	s.answerSeq++
	s.answers[p.ID] = &answerRecord{
		participantID: p.ID,
		username:      p.Name,
		answer:        sub.Answer,
		correct:       correct,
		points:        points,
		responseTime:  responseTime,
		seq:           s.answerSeq,
	}

	s.broadcastLocked(&out, domain.Event{
		Type: domain.EventAnswerReceived,
		Payload: domain.AnswerReceivedPayload{
			ParticipantID:    p.ID,
			Username:         p.Name,
			AnsweredCount:    len(s.answers),
			ParticipantCount: s.registry.Len(),
		},
	}, nil)
	out.QuestionNumber = s.current
	out.AllAnswered = s.allAnsweredLocked()
	return out, nil
}

// CloseQuestion stops accepting answers for the live question, publishes its results and
// the refreshed rankings.
func (s *Session) CloseQuestion() (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCheckedLocked(0)
}

// CloseQuestionAt closes the live question only if it is still question number n. Timers
// and auto-close use it so a stale trigger never closes a later question.
func (s *Session) CloseQuestionAt(n int) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCheckedLocked(n)
}

func (s *Session) closeCheckedLocked(n int) (Outcome, error) {
	var out Outcome
	switch s.state {
	case domain.StateEnded:
		return out, domain.ErrSessionClosed
	case domain.StateQuestionActive:
	default:
		return out, domain.ErrNotAcceptingAnswers
	}
	if n > 0 && n != s.current {
		return out, domain.ErrNotAcceptingAnswers
	}
	s.closeLocked(&out)
	return out, nil
}

// End terminates the session. A live question is closed first. The session is read-only
// afterwards.
func (s *Session) End() (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out Outcome
	if s.state == domain.StateEnded {
		return out, domain.ErrSessionClosed
	}
	if s.state == domain.StateQuestionActive {
		s.closeLocked(&out)
	}
	s.endLocked(&out)
	return out, nil
}

// AddVideoQuiz appends a video quiz to the queue of a video session.
func (s *Session) AddVideoQuiz(quiz domain.VideoQuiz) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.StateEnded {
		return 0, domain.ErrSessionClosed
	}
	item := domain.QueueItem{Video: &quiz}
	if err := validateItem(item, s.useVideo); err != nil {
		return 0, err
	}
	s.queue = append(s.queue, item)
	return len(s.queue), nil
}

// UsesVideoQuiz reports the quiz source of the session.
func (s *Session) UsesVideoQuiz() bool {
	return s.useVideo
}

// Snapshot returns the current session view.
func (s *Session) Snapshot() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Rankings computes the current leaderboard.
func (s *Session) Rankings() domain.SessionStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rankingsLocked()
}

// ParticipantStats computes one participant's statistics.
func (s *Session) ParticipantStats(participantID string) (domain.ParticipantStatistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeParticipantStats(s.registry.List(), participantID)
}

// Participant returns one participant.
func (s *Session) Participant(participantID string) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Get(participantID)
}

// Participants lists participants in join order.
func (s *Session) Participants() []domain.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.List()
}

// Results returns the results of every closed question so far.
func (s *Session) Results() []domain.QuestionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.QuestionResult(nil), s.results...)
}

// Summary returns the results and rankings so far. EndedAt is zero while the session is live.
func (s *Session) Summary() domain.SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

// EndedAt reports when the session ended.
func (s *Session) EndedAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endedAt, s.state == domain.StateEnded
}

// Broadcast delivers an event to every connection registered in the session.
func (s *Session) Broadcast(event domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(nil, event, nil)
}

func (s *Session) closeLocked(out *Outcome) {
	item := s.queue[s.current-1]
	records := make([]*answerRecord, 0, len(s.answers))
	for _, rec := range s.answers {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.correct != b.correct {
			return a.correct
		}
		if a.correct && a.responseTime != b.responseTime {
			return a.responseTime < b.responseTime
		}
		return a.seq < b.seq
	})

	results := make([]domain.QuestionResult, 0, len(records))
	for i, rec := range records {
		results = append(results, domain.QuestionResult{
			ParticipantID:  rec.participantID,
			Username:       rec.username,
			QuestionID:     item.ID(),
			Answer:         rec.answer,
			Correct:        rec.correct,
			ResponseTimeMs: rec.responseTime.Milliseconds(),
			Rank:           i + 1,
			Points:         rec.points,
		})
	}

	// A missed question breaks the streak.
	for _, p := range s.registry.List() {
		if _, answered := s.answers[p.ID]; !answered {
			if live, ok := s.registry.participant(p.ID); ok {
				live.Streak = 0
			}
		}
	}

	s.results = append(s.results, results...)
	s.state = domain.StateQuestionClosed
	out.QuestionNumber = s.current

	s.broadcastLocked(out, domain.Event{Type: domain.EventQuestionResults, Payload: results}, nil)
	s.rankingsVersion++
	stats := s.rankingsLocked()
	out.Rankings = &stats
	s.broadcastLocked(out, domain.Event{Type: domain.EventRankingsUpdated, Payload: stats}, nil)
	s.log.Info("question closed", "question_number", s.current, "answers", len(results))
}

func (s *Session) endLocked(out *Outcome) {
	s.state = domain.StateEnded
	s.endedAt = s.opts.Now()
	s.rankingsVersion++

	summary := s.summaryLocked()
	out.Rankings = &summary.FinalRankings
	out.Ended = &summary
	s.broadcastLocked(out, domain.Event{
		Type:    domain.EventSessionEnded,
		Payload: domain.SessionEndedPayload{FinalResults: summary.FinalResults, FinalRankings: summary.FinalRankings},
	}, nil)
	s.log.Info("session ended", "questions_played", s.current, "participants", s.registry.Len())
}

func (s *Session) allAnsweredLocked() bool {
	if s.registry.Len() == 0 {
		return false
	}
	for _, p := range s.registry.List() {
		if _, ok := s.answers[p.ID]; !ok {
			return false
		}
	}
	return true
}

func (s *Session) rankingsLocked() domain.SessionStatistics {
	stats := ComputeRankings(s.id, s.registry.List(), len(s.queue), s.current, s.opts.Now())
	stats.Version = s.rankingsVersion
	return stats
}

func (s *Session) summaryLocked() domain.SessionSummary {
	return domain.SessionSummary{
		SessionID:     s.id,
		Title:         s.title,
		EndedAt:       s.endedAt,
		FinalResults:  append([]domain.QuestionResult(nil), s.results...),
		FinalRankings: s.rankingsLocked(),
	}
}

func (s *Session) snapshotLocked() domain.Session {
	snap := domain.Session{
		ID:               s.id,
		Title:            s.title,
		Status:           s.state.Status(),
		State:            s.state,
		Queue:            append([]domain.QueueItem(nil), s.queue...),
		TotalQuestions:   len(s.queue),
		CurrentQuestion:  s.current,
		UseVideoQuiz:     s.useVideo,
		ParticipantCount: s.registry.Len(),
		CreatedAt:        s.createdAt,
	}
	if !s.questionStartedAt.IsZero() {
		started := s.questionStartedAt
		snap.QuestionStartedAt = &started
	}
	if !s.endedAt.IsZero() {
		ended := s.endedAt
		snap.EndedAt = &ended
	}
	return snap
}

// broadcastLocked sends event to every connection except skip. Delivery is fire-and-forget:
// a failing connection is logged and the remaining ones still receive the event.
func (s *Session) broadcastLocked(out *Outcome, event domain.Event, skip Connection) {
	if out != nil {
		out.add(event)
	}
	for _, conn := range s.registry.connections() {
		if skip != nil && conn.ID() == skip.ID() {
			continue
		}
		s.sendLocked(conn, event)
	}
}

func (s *Session) sendLocked(conn Connection, event domain.Event) {
	if conn == nil {
		return
	}
	if err := conn.Send(event); err != nil {
		s.log.Warn("broadcast delivery failed", "connection_id", conn.ID(), "event", event.Type, "err", err)
	}
}
