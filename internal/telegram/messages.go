package telegram

import (
	"fmt"

	"github.com/alex199571/Student-Bot/internal/limits"
	"github.com/alex199571/Student-Bot/internal/models"
	"github.com/alex199571/Student-Bot/internal/plans"
)

// Main-menu button labels. The menu is a persistent reply keyboard, so
// inbound text equal to a label is a menu press, not free input.
const (
	menuExplain       = "📘 Explain topic"
	menuSolve         = "🧮 Solve problem"
	menuSummary       = "📝 Short summary"
	menuImage         = "🎨 Generate image"
	menuPhotoAnalysis = "📷 Photo analysis"
	menuLongText      = "📄 Long text"
	menuLimits        = "📊 My limits"
	menuInvite        = "👥 Invite a friend"
	menuSubscription  = "⭐ Subscription"
	menuLanguage      = "🌐 Language"
)

const (
	textStart = "Hi! I am your AI study assistant.\n\n" +
		"Pick an action from the menu: I can explain topics, solve problems, summarize texts, " +
		"write long structured texts, generate images, and analyze photos of tasks."
	textHelp = "Use the menu buttons to choose an action, then send your input.\n" +
		"/start — show the menu\n/cancel — cancel the current action\n/help — this message"
	textCancelled          = "Cancelled. Pick an action from the menu."
	textChooseLanguage     = "Choose the language for answers:"
	textRequestExplain     = "Send the topic you want explained."
	textRequestSolve       = "Send the problem you want solved."
	textRequestSummary     = "Send the text you want summarized."
	textRequestLongText    = "Describe the long text you need."
	textRequestImage       = "Describe the image you want generated."
	textRequestPhoto       = "Send a photo of the task (a caption with your question helps)."
	textGenerationFailed   = "Something went wrong while generating the answer. Your quota was not charged, please try again."
	textImageFailed        = "Image generation failed. Your quota was not charged, please try again."
	textPhotoFailed        = "Photo analysis failed. Your quota was not charged, please try again."
	textLongTextPaidOnly   = "Long texts are available on the student and pro plans."
	textImageNotAvailable  = "Image generation is available on the pro plan, or with bonus image credits."
	textUnsupportedMessage = "Please use the menu to pick an action."
)

// denyMessages maps every deny reason to its own user-facing message.
var denyMessages = map[limits.Reason]string{
	limits.ReasonMonthly:         "Monthly limit reached. It resets on the 1st, or upgrade your plan in ⭐ Subscription.",
	limits.ReasonDaily:           "Daily limit reached. Come back tomorrow, or upgrade your plan in ⭐ Subscription.",
	limits.ReasonLongTextPlan:    textLongTextPaidOnly,
	limits.ReasonLongTextMonthly: "Monthly long-text limit reached.",
	limits.ReasonLongTextDaily:   "Daily long-text limit reached, try again tomorrow.",
	limits.ReasonImagePlan:       textImageNotAvailable,
	limits.ReasonImageMonthly:    "Monthly image limit reached and no bonus credits left.",
	limits.ReasonImageDaily:      "Daily image limit reached, try again tomorrow.",
	limits.ReasonPhotoMonthly:    "Monthly photo-analysis limit reached.",
	limits.ReasonPhotoDaily:      "Daily photo-analysis limit reached, try again tomorrow.",
}

func denyMessage(reason limits.Reason) string {
	if msg, ok := denyMessages[reason]; ok {
		return msg
	}
	return "Limit reached."
}

func usageText(user *models.User, daily limits.DailyUsage) string {
	plan := plans.Get(user.Plan)
	return fmt.Sprintf(
		"Plan: %s\n\n"+
			"Requests: %d/%d today, %d/%d this month\n"+
			"Tokens: %d/%d this month\n"+
			"Images: %d/%d today, %d/%d this month\n"+
			"Photo analyses: %d/%d today, %d/%d this month\n"+
			"Long texts: %d/%d today, %d/%d this month\n"+
			"Bonus image credits: %d",
		user.Plan,
		daily.Requests, plan.DailyRequestsLimit,
		user.MonthlyRequestsUsed, plan.MonthlyRequestsLimit,
		user.MonthlyTokensUsed, plan.MonthlyTokensLimit,
		daily.Images, plan.DailyImagesLimit,
		user.MonthlyImagesUsed, plan.MonthlyImagesLimit,
		daily.PhotoAnalyses, plan.DailyPhotoAnalysisLimit,
		user.MonthlyPhotoAnalysesUsed, plan.MonthlyPhotoAnalysisLimit,
		daily.LongTexts, plan.DailyLongTextLimit,
		user.MonthlyLongTextsUsed, plan.MonthlyLongTextLimit,
		user.BonusImageCredits,
	)
}

// supportedLanguages drives the language keyboard; the code is stored on the
// account and steers only the answer language, not the UI strings.
var supportedLanguages = []struct {
	Code  string
	Label string
}{
	{"en", "English"},
	{"uk", "Українська"},
	{"ru", "Русский"},
	{"kk", "Қазақша"},
	{"pl", "Polski"},
	{"es", "Español"},
}

func isSupportedLanguage(code string) bool {
	for _, l := range supportedLanguages {
		if l.Code == code {
			return true
		}
	}
	return false
}
