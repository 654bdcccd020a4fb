package models

import "time"

type Action string

const (
	ActionExplainTopic  Action = "explain_topic"
	ActionSolveProblem  Action = "solve_problem"
	ActionShortSummary  Action = "short_summary"
	ActionLongText      Action = "long_text"
	ActionImageGenerate Action = "image_generate"
	ActionPhotoAnalysis Action = "photo_analysis"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

type User struct {
	ID         int64
	TelegramID int64
	Username   string
	FirstName  string
	Language   string
	Plan       string
	IsBanned   bool

	MonthKey                 string
	MonthlyRequestsUsed      int
	MonthlyTokensUsed        int
	MonthlyImagesUsed        int
	MonthlyPhotoAnalysesUsed int
	MonthlyLongTextsUsed     int

	DayKey                 string
	DailyRequestsUsed      int
	DailyImagesUsed        int
	DailyPhotoAnalysesUsed int
	DailyLongTextsUsed     int

	BonusImageCredits int

	CreatedAt time.Time
	UpdatedAt time.Time
}

type QueryLog struct {
	ID           int64
	TelegramID   int64
	Action       Action
	Plan         string
	PromptText   string
	ResponseText string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	Status       string
	ErrorMessage string
	CreatedAt    time.Time
}
