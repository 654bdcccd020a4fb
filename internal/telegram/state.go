package telegram

import (
	"sync"
	"time"

	"github.com/alex199571/Student-Bot/internal/models"
)

// PendingAction marks which input the bot is waiting for next.
type PendingAction string

const (
	PendingNone         PendingAction = ""
	PendingExplainInput PendingAction = "await_explain_topic_input"
	PendingSolveInput   PendingAction = "await_solve_problem_input"
	PendingSummaryInput PendingAction = "await_short_summary_input"
	PendingLongInput    PendingAction = "await_long_text_input"
	PendingImagePrompt  PendingAction = "await_image_prompt"
	PendingPhotoUpload  PendingAction = "await_photo_upload"
)

// pendingTTL keeps a forgotten mode from swallowing unrelated messages days
// later.
const pendingTTL = 10 * time.Minute

// textAction maps a pending text-input marker to its action.
func (p PendingAction) textAction() (models.Action, bool) {
	switch p {
	case PendingExplainInput:
		return models.ActionExplainTopic, true
	case PendingSolveInput:
		return models.ActionSolveProblem, true
	case PendingSummaryInput:
		return models.ActionShortSummary, true
	case PendingLongInput:
		return models.ActionLongText, true
	default:
		return "", false
	}
}

type pendingEntry struct {
	action    PendingAction
	expiresAt time.Time
}

// StateManager tracks the short-lived pending action per chat.
type StateManager struct {
	mu      sync.Mutex
	pending map[int64]pendingEntry
}

func NewStateManager() *StateManager {
	return &StateManager{pending: make(map[int64]pendingEntry)}
}

func (m *StateManager) Get(chatID int64) PendingAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.pending[chatID]
	if !ok {
		return PendingNone
	}
	if time.Now().After(entry.expiresAt) {
		delete(m.pending, chatID)
		return PendingNone
	}
	return entry.action
}

func (m *StateManager) Set(chatID int64, action PendingAction) {
	m.mu.Lock()
	m.pending[chatID] = pendingEntry{action: action, expiresAt: time.Now().Add(pendingTTL)}
	m.mu.Unlock()
}

func (m *StateManager) Clear(chatID int64) {
	m.mu.Lock()
	delete(m.pending, chatID)
	m.mu.Unlock()
}
