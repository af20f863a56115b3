package domain

// Outbound event types sent to clients.
const (
	EventSessionJoined        = "session-joined"
	EventParticipantJoined    = "participant-joined"
	EventParticipantLeft      = "participant-left"
	EventQuestionStarted      = "question-started"
	EventVideoQuestionStarted = "youtube-question-started"
	EventAnswerReceived       = "answer-received"
	EventQuestionResults      = "question-results"
	EventRankingsUpdated      = "rankings-updated"
	EventSessionEnded         = "session-ended"
	EventVideoQuizCreated     = "youtube-quiz-created"
	EventVideoQuizUpdated     = "youtube-quiz-updated"
	EventVideoQuizDeleted     = "youtube-quiz-deleted"
	EventQuizAddedToSession   = "quiz-added-to-session"
	EventError                = "error"
)

// Inbound event types received from clients.
const (
	CommandJoinSession        = "join-session"
	CommandSubmitAnswer       = "submit-answer"
	CommandLeaveSession       = "leave-session"
	CommandCreateVideoQuiz    = "create-youtube-quiz"
	CommandUpdateVideoQuiz    = "update-youtube-quiz"
	CommandDeleteVideoQuiz    = "delete-youtube-quiz"
	CommandAddQuizToSession   = "add-quiz-to-session"
	CommandStartVideoQuestion = "start-youtube-question"
	CommandStartQuestion      = "start-question"
	CommandCloseQuestion      = "close-question"
	CommandEndSession         = "end-session"
)

// Event is the envelope delivered to clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// SessionJoinedPayload confirms a join to the joining connection.
type SessionJoinedPayload struct {
	Session       Session `json:"session"`
	ParticipantID string  `json:"participantId"`
}

// ParticipantJoinedPayload announces a new participant.
type ParticipantJoinedPayload struct {
	Participant      Participant `json:"participant"`
	ParticipantCount int         `json:"participantCount"`
}

// ParticipantLeftPayload announces a departure.
type ParticipantLeftPayload struct {
	ParticipantID    string `json:"participantId"`
	ParticipantCount int    `json:"participantCount"`
}

// QuestionStartedPayload carries a live text question.
type QuestionStartedPayload struct {
	Question       PublicQuestion `json:"question"`
	QuestionNumber int            `json:"questionNumber"`
	TotalQuestions int            `json:"totalQuestions"`
	TimeLimitMs    int64          `json:"timeLimitMs"`
}

// VideoQuestionStartedPayload carries a live video question.
type VideoQuestionStartedPayload struct {
	Quiz           PublicVideoQuiz `json:"quiz"`
	QuestionNumber int             `json:"questionNumber"`
	TotalQuestions int             `json:"totalQuestions"`
	TimeLimitMs    int64           `json:"timeLimitMs"`
}

// AnswerReceivedPayload acknowledges a submission without revealing correctness.
type AnswerReceivedPayload struct {
	ParticipantID    string `json:"participantId"`
	Username         string `json:"username"`
	AnsweredCount    int    `json:"answeredCount"`
	ParticipantCount int    `json:"participantCount"`
}

// SessionEndedPayload carries the final outcome.
type SessionEndedPayload struct {
	FinalResults  []QuestionResult  `json:"finalResults"`
	FinalRankings SessionStatistics `json:"finalRankings"`
}

// QuizAddedPayload confirms a video quiz was appended to a session queue.
type QuizAddedPayload struct {
	SessionID      string `json:"sessionId"`
	QuizID         string `json:"quizId"`
	TotalQuestions int    `json:"totalQuestions"`
}

// ErrorPayload is sent only to the connection that caused the failure.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// NewErrorEvent builds an error event from err. Errors outside the session taxonomy are
// reported as a generic internal error; their text stays in the server log.
func NewErrorEvent(err error) Event {
	code := ErrorCode(err)
	message := err.Error()
	if code == "INTERNAL" {
		message = "internal error"
	}
	return Event{Type: EventError, Payload: ErrorPayload{Message: message, Code: code}}
}
