package app

import "live-quiz-service/internal/domain"

// Command is an inbound client event decoded by a transport.
type Command interface {
	Name() string
}

type JoinSession struct {
	SessionID string
	Username  string
	UserID    string
}

type SubmitAnswer struct {
	SessionID     string
	QuestionID    string
	ParticipantID string
	Answer        int
	// Timestamp is the client clock in unix milliseconds. Response time is measured with
	// the server clock; the value is only logged.
	Timestamp int64
}

type LeaveSession struct {
	SessionID string
}

type CreateVideoQuiz struct {
	Quiz domain.VideoQuiz
}

type UpdateVideoQuiz struct {
	Quiz domain.VideoQuiz
}

type DeleteVideoQuiz struct {
	ID string
}

type AddQuizToSession struct {
	SessionID string
	QuizID    string
}

type StartVideoQuestion struct {
	SessionID string
}

type StartQuestion struct {
	SessionID string
}

type CloseQuestion struct {
	SessionID string
}

type EndSession struct {
	SessionID string
}

func (JoinSession) Name() string        { return domain.CommandJoinSession }
func (SubmitAnswer) Name() string       { return domain.CommandSubmitAnswer }
func (LeaveSession) Name() string       { return domain.CommandLeaveSession }
func (CreateVideoQuiz) Name() string    { return domain.CommandCreateVideoQuiz }
func (UpdateVideoQuiz) Name() string    { return domain.CommandUpdateVideoQuiz }
func (DeleteVideoQuiz) Name() string    { return domain.CommandDeleteVideoQuiz }
func (AddQuizToSession) Name() string   { return domain.CommandAddQuizToSession }
func (StartVideoQuestion) Name() string { return domain.CommandStartVideoQuestion }
func (StartQuestion) Name() string      { return domain.CommandStartQuestion }
func (CloseQuestion) Name() string      { return domain.CommandCloseQuestion }
func (EndSession) Name() string         { return domain.CommandEndSession }
