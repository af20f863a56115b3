package domain

import (
	"strings"
	"time"
)

// SessionStatus is the coarse lifecycle status exposed to clients.
type SessionStatus string

const (
	StatusPending SessionStatus = "pending"
	StatusActive  SessionStatus = "active"
	StatusEnded   SessionStatus = "ended"
)

// SessionState is the state machine position of a session.
type SessionState string

const (
	StatePending        SessionState = "pending"
	StateQuestionActive SessionState = "question_active"
	StateQuestionClosed SessionState = "question_closed"
	StateEnded          SessionState = "ended"
)

// Status collapses the state machine position into the lifecycle status.
func (s SessionState) Status() SessionStatus {
	switch s {
	case StatePending:
		return StatusPending
	case StateEnded:
		return StatusEnded
	default:
		return StatusActive
	}
}

// Session is a read-only snapshot of a quiz session.
type Session struct {
	ID                string        `json:"id"`
	Title             string        `json:"title"`
	Status            SessionStatus `json:"status"`
	State             SessionState  `json:"state"`
	Queue             []QueueItem   `json:"-"`
	TotalQuestions    int           `json:"totalQuestions"`
	CurrentQuestion   int           `json:"currentQuestion"`
	UseVideoQuiz      bool          `json:"useYouTubeQuiz"`
	ParticipantCount  int           `json:"participantCount"`
	CreatedAt         time.Time     `json:"createdAt"`
	QuestionStartedAt *time.Time    `json:"questionStartedAt,omitempty"`
	EndedAt           *time.Time    `json:"endedAt,omitempty"`
}

// Participant is one connected player within a session.
type Participant struct {
	ID                string        `json:"id"`
	UserID            string        `json:"userId,omitempty"`
	Name              string        `json:"username"`
	Score             int           `json:"score"`
	Streak            int           `json:"streak"`
	BestStreak        int           `json:"bestStreak"`
	CorrectAnswers    int           `json:"correctAnswers"`
	QuestionsAnswered int           `json:"questionsAnswered"`
	TotalResponseTime time.Duration `json:"-"`
	JoinedAt          time.Time     `json:"joinedAt"`
}

// AverageResponseTime is the mean latency over answered questions.
func (p Participant) AverageResponseTime() time.Duration {
	if p.QuestionsAnswered == 0 {
		return 0
	}
	return p.TotalResponseTime / time.Duration(p.QuestionsAnswered)
}

// Question models a text multiple-choice question.
type Question struct {
	ID           string   `json:"id"`
	Text         string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctAnswer"`
	Timestamp    *float64 `json:"timestamp,omitempty"`
	TimeLimitMs  int64    `json:"timeLimitMs,omitempty"`
}

// Public returns a copy safe to send to participants while the question is live.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:          q.ID,
		Text:        q.Text,
		Options:     append([]string(nil), q.Options...),
		Timestamp:   q.Timestamp,
		TimeLimitMs: q.TimeLimitMs,
	}
}

// PublicQuestion is a question without its correct answer.
type PublicQuestion struct {
	ID          string   `json:"id"`
	Text        string   `json:"question"`
	Options     []string `json:"options"`
	Timestamp   *float64 `json:"timestamp,omitempty"`
	TimeLimitMs int64    `json:"timeLimitMs,omitempty"`
}

// VideoQuiz is a question attached to a clip of an external video.
type VideoQuiz struct {
	ID            string    `json:"id"`
	VideoID       string    `json:"videoId"`
	Title         string    `json:"title"`
	Channel       string    `json:"channel"`
	Thumbnail     string    `json:"thumbnail"`
	StartTime     float64   `json:"startTime"`
	Duration      float64   `json:"duration"`
	FadeOut       bool      `json:"fadeOut"`
	Question      string    `json:"question"`
	CorrectAnswer string    `json:"correctAnswer"`
	Options       []string  `json:"options"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CorrectIndex returns the option matching the free-text answer, or -1.
func (v VideoQuiz) CorrectIndex() int {
	want := normalizeAnswer(v.CorrectAnswer)
	for i, opt := range v.Options {
		if normalizeAnswer(opt) == want {
			return i
		}
	}
	return -1
}

// Public strips the correct answer.
func (v VideoQuiz) Public() PublicVideoQuiz {
	return PublicVideoQuiz{
		ID:        v.ID,
		VideoID:   v.VideoID,
		Title:     v.Title,
		Channel:   v.Channel,
		Thumbnail: v.Thumbnail,
		StartTime: v.StartTime,
		Duration:  v.Duration,
		FadeOut:   v.FadeOut,
		Question:  v.Question,
		Options:   append([]string(nil), v.Options...),
	}
}

// PublicVideoQuiz is a video quiz without its correct answer.
type PublicVideoQuiz struct {
	ID        string   `json:"id"`
	VideoID   string   `json:"videoId"`
	Title     string   `json:"title"`
	Channel   string   `json:"channel"`
	Thumbnail string   `json:"thumbnail"`
	StartTime float64  `json:"startTime"`
	Duration  float64  `json:"duration"`
	FadeOut   bool     `json:"fadeOut"`
	Question  string   `json:"question"`
	Options   []string `json:"options"`
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueueItem is one entry of a session's quiz queue; exactly one field is set.
type QueueItem struct {
	Text  *Question  `json:"text,omitempty"`
	Video *VideoQuiz `json:"video,omitempty"`
}

// ID returns the question identifier of the item.
func (i QueueItem) ID() string {
	if i.Video != nil {
		return i.Video.ID
	}
	if i.Text != nil {
		return i.Text.ID
	}
	return ""
}

// OptionCount returns how many answer options the item offers.
func (i QueueItem) OptionCount() int {
	if i.Video != nil {
		return len(i.Video.Options)
	}
	if i.Text != nil {
		return len(i.Text.Options)
	}
	return 0
}

// IsCorrect reports whether the selected option index is the right answer.
func (i QueueItem) IsCorrect(answer int) bool {
	if i.Video != nil {
		return answer == i.Video.CorrectIndex()
	}
	if i.Text != nil {
		return answer == i.Text.CorrectIndex
	}
	return false
}

// TimeLimit returns the item's own answer window, or fallback when it has none.
func (i QueueItem) TimeLimit(fallback time.Duration) time.Duration {
	if i.Video != nil && i.Video.Duration > 0 {
		return time.Duration(i.Video.Duration * float64(time.Second))
	}
	if i.Text != nil && i.Text.TimeLimitMs > 0 {
		return time.Duration(i.Text.TimeLimitMs) * time.Millisecond
	}
	return fallback
}

// AnswerSubmission is one participant's answer to the live question.
type AnswerSubmission struct {
	SessionID     string
	QuestionID    string
	ParticipantID string
	Answer        int
	SubmittedAt   time.Time
}

// QuestionResult is the per-participant outcome of a closed question.
type QuestionResult struct {
	ParticipantID  string `json:"participantId"`
	Username       string `json:"username"`
	QuestionID     string `json:"questionId"`
	Answer         int    `json:"answer"`
	Correct        bool   `json:"isCorrect"`
	ResponseTimeMs int64  `json:"responseTime"`
	Rank           int    `json:"rank"`
	Points         int    `json:"points"`
}

// RankingEntry is one leaderboard row.
type RankingEntry struct {
	ParticipantID     string `json:"participantId"`
	Name              string `json:"username"`
	TotalScore        int    `json:"totalScore"`
	CorrectAnswers    int    `json:"correctAnswers"`
	QuestionsAnswered int    `json:"totalQuestions"`
	AverageResponseMs int64  `json:"averageResponseTime"`
	Streak            int    `json:"streak"`
	BestStreak        int    `json:"bestStreak"`
	Rank              int    `json:"rank"`
}

// SessionStatistics is the aggregate leaderboard view of a session.
type SessionStatistics struct {
	SessionID        string         `json:"sessionId"`
	TotalQuestions   int            `json:"totalQuestions"`
	CurrentQuestion  int            `json:"currentQuestion"`
	ParticipantCount int            `json:"participantCount"`
	Rankings         []RankingEntry `json:"rankings"`
	AverageScore     float64        `json:"averageScore"`
	TopScore         int            `json:"topScore"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	// Version grows with every published leaderboard of the session.
	Version int64 `json:"version"`
}

// LeaderboardEntry is one row of a top-N leaderboard.
type LeaderboardEntry struct {
	ParticipantID string `json:"participantId"`
	Score         int    `json:"score"`
	Rank          int    `json:"rank"`
}

// ParticipantStatistics is the per-participant view of the leaderboard.
type ParticipantStatistics struct {
	ParticipantID     string  `json:"participantId"`
	Name              string  `json:"username"`
	TotalScore        int     `json:"totalScore"`
	CorrectAnswers    int     `json:"correctAnswers"`
	QuestionsAnswered int     `json:"totalQuestions"`
	Accuracy          float64 `json:"accuracy"`
	AverageResponseMs int64   `json:"averageResponseTime"`
	Streak            int     `json:"streak"`
	BestStreak        int     `json:"bestStreak"`
	Rank              int     `json:"rank"`
}

// SessionSummary is the archived outcome of an ended session.
type SessionSummary struct {
	SessionID     string            `json:"sessionId"`
	Title         string            `json:"title"`
	EndedAt       time.Time         `json:"endedAt"`
	FinalResults  []QuestionResult  `json:"finalResults"`
	FinalRankings SessionStatistics `json:"finalRankings"`
}

// Quiz is stored quiz content that can seed a session queue.
type Quiz struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Questions    []Question  `json:"questions"`
	VideoQuizzes []VideoQuiz `json:"videoQuizzes,omitempty"`
}

// Items converts the quiz content into queue items. Video quizzes are used when video is true.
func (q Quiz) Items(video bool) []QueueItem {
	if video {
		items := make([]QueueItem, 0, len(q.VideoQuizzes))
		for i := range q.VideoQuizzes {
			v := q.VideoQuizzes[i]
			items = append(items, QueueItem{Video: &v})
		}
		return items
	}
	items := make([]QueueItem, 0, len(q.Questions))
	for i := range q.Questions {
		question := q.Questions[i]
		items = append(items, QueueItem{Text: &question})
	}
	return items
}
