package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a quiz session id is unknown.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionClosed is returned for any mutation on an ended session.
	ErrSessionClosed = errors.New("quiz session has ended")
	// ErrUnknownParticipant is returned when a participant is not registered in the session.
	ErrUnknownParticipant = errors.New("participant not found in session")
	// ErrDuplicateSubmission is returned when a participant answers the same question twice.
	ErrDuplicateSubmission = errors.New("answer already submitted for this question")
	// ErrNotAcceptingAnswers is returned when no question is live.
	ErrNotAcceptingAnswers = errors.New("session is not accepting answers")
	// ErrNoMoreQuestions is returned when the quiz queue is exhausted.
	ErrNoMoreQuestions = errors.New("no more questions in quiz queue")
	// ErrInvalidAnswerIndex indicates the selected option does not exist.
	ErrInvalidAnswerIndex = errors.New("answer index out of range")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidQuiz indicates quiz content failed validation.
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrQuizSourceMismatch is returned when a queue item does not match the session's quiz source.
	ErrQuizSourceMismatch = errors.New("quiz does not match session quiz source")
	// ErrNotJoined is returned when a connection acts on a session it has not joined.
	ErrNotJoined = errors.New("connection has not joined a session")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrSessionNotFound, "SESSION_NOT_FOUND"},
	{ErrSessionClosed, "SESSION_CLOSED"},
	{ErrUnknownParticipant, "UNKNOWN_PARTICIPANT"},
	{ErrDuplicateSubmission, "DUPLICATE_SUBMISSION"},
	{ErrNotAcceptingAnswers, "NOT_ACCEPTING_ANSWERS"},
	{ErrNoMoreQuestions, "NO_MORE_QUESTIONS"},
	{ErrInvalidAnswerIndex, "INVALID_ANSWER_INDEX"},
	{ErrQuizNotFound, "QUIZ_NOT_FOUND"},
	{ErrInvalidQuiz, "INVALID_QUIZ"},
	{ErrQuizSourceMismatch, "QUIZ_SOURCE_MISMATCH"},
	{ErrNotJoined, "NOT_JOINED"},
}

// ErrorCode maps an error to the stable code sent to clients.
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL"
}

// IsDomainError reports whether err belongs to the session error taxonomy.
func IsDomainError(err error) bool {
	return ErrorCode(err) != "INTERNAL"
}
