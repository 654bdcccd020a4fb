package llm

import (
	"fmt"

	"github.com/alex199571/Student-Bot/internal/models"
)

// languageHint maps a stored language preference to the answer language the
// model is instructed to use. UI strings stay English; only answers follow
// the preference.
var languageHint = map[string]string{
	"en": "English",
	"uk": "Ukrainian",
	"ru": "Russian",
	"kk": "Kazakh",
	"pl": "Polish",
	"es": "Spanish",
}

// BuildPrompts assembles the system and user prompts for a text action.
func BuildPrompts(action models.Action, lang, userInput string) (string, string) {
	target, ok := languageHint[lang]
	if !ok {
		target = "English"
	}
	systemPrompt := fmt.Sprintf(
		"You are AI Student Bot for school students. Always answer strictly in %s. "+
			"Be clear, beginner-friendly, and concise. Use bullet points and small steps.", target)

	var userPrompt string
	switch action {
	case models.ActionExplainTopic:
		userPrompt = "Task mode: Explain topic.\n" +
			"Explain the following topic for a school student.\n" +
			"Include: simple definition, key facts, mini-example, and 3 short quiz questions.\n" +
			"Topic from user: " + userInput
	case models.ActionSolveProblem:
		userPrompt = "Task mode: Solve problem.\n" +
			"Solve the task step-by-step for a student.\n" +
			"Include: what is given, solution steps, final answer, and quick self-check.\n" +
			"Problem from user: " + userInput
	case models.ActionLongText:
		userPrompt = "Task mode: Long text.\n" +
			"Create a detailed, structured educational explanation.\n" +
			"Use sections with headings, examples, and practical tips.\n" +
			"User request: " + userInput
	default:
		userPrompt = "Task mode: Short summary.\n" +
			"Summarize the provided text in concise study notes.\n" +
			"Include: 5-8 key bullets and 1 short takeaway sentence.\n" +
			"Text from user: " + userInput
	}
	return systemPrompt, userPrompt
}
