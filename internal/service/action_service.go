package service

import (
	"context"
	"log/slog"

	"github.com/alex199571/Student-Bot/internal/limits"
	"github.com/alex199571/Student-Bot/internal/llm"
	"github.com/alex199571/Student-Bot/internal/models"
)

// photoInputTokens is added to the estimate for vision requests: the image
// itself consumes input tokens the text estimator cannot see.
const photoInputTokens = 300

// maxLoggedError bounds the error text stored in query logs.
const maxLoggedError = 500

// Generator is the generation backend the workflows call after reserving
// capacity. Any failure triggers the rollback path.
type Generator interface {
	EstimateTokens(text string) int
	Generate(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (*llm.Result, error)
	GenerateImage(ctx context.Context, prompt string) (*llm.ImageResult, error)
	AnalyzePhoto(ctx context.Context, imageURL, userPrompt string, maxOutputTokens int) (*llm.Result, error)
}

// QueryLogStore records one entry per handled action.
type QueryLogStore interface {
	Create(ctx context.Context, entry *models.QueryLog) error
}

// ActionResult is what a workflow hands back to the transport layer: either
// a denial with its machine-readable reason, or the generated content.
type ActionResult struct {
	Denied bool
	Reason limits.Reason
	Text   string
	Image  *llm.ImageResult
}

// ActionService runs the generation workflows: reserve quota, call the
// backend, settle actual usage on success or unwind every reservation on
// failure. It mutates the account in memory; the caller persists it once per
// action.
type ActionService struct {
	engine *limits.Engine
	gen    Generator
	logs   QueryLogStore
	log    *slog.Logger
}

func NewActionService(engine *limits.Engine, gen Generator, logs QueryLogStore, log *slog.Logger) *ActionService {
	return &ActionService{engine: engine, gen: gen, logs: logs, log: log}
}

func (s *ActionService) logEntry(ctx context.Context, entry *models.QueryLog) {
	if err := s.logs.Create(ctx, entry); err != nil {
		s.log.Error("write query log", "err", err)
	}
}

func (s *ActionService) logDenied(ctx context.Context, user *models.User, action models.Action, prompt string, reason limits.Reason) {
	s.logEntry(ctx, &models.QueryLog{
		TelegramID: user.TelegramID,
		Action:     action,
		Plan:       user.Plan,
		PromptText: prompt,
		Status:     "limit_" + string(reason),
	})
}

func (s *ActionService) logFailure(ctx context.Context, user *models.User, action models.Action, prompt string, genErr error) {
	msg := genErr.Error()
	if len(msg) > maxLoggedError {
		msg = msg[:maxLoggedError]
	}
	s.logEntry(ctx, &models.QueryLog{
		TelegramID:   user.TelegramID,
		Action:       action,
		Plan:         user.Plan,
		PromptText:   prompt,
		Status:       models.StatusError,
		ErrorMessage: msg,
	})
}

// rollback runs one undo step best-effort: failing to roll back only costs
// the user a slightly reduced quota, so log and continue.
func (s *ActionService) rollback(name string, err error) {
	if err != nil {
		s.log.Error("rollback failed", "step", name, "err", err)
	}
}

// RunText handles explain/solve/summary/long-text. The long_text action
// reserves its dedicated quota first; a later denial or failure rolls that
// reservation back before anything is sent to the user.
func (s *ActionService) RunText(ctx context.Context, user *models.User, action models.Action, input string) (*ActionResult, error) {
	systemPrompt, userPrompt := llm.BuildPrompts(action, user.Language, input)
	promptForLog := "SYSTEM: " + systemPrompt + "\n\nUSER: " + userPrompt

	longTextReserved := false
	if action == models.ActionLongText {
		verdict, err := s.engine.ReserveLongText(ctx, user)
		if err != nil {
			return nil, err
		}
		if !verdict.Allowed {
			s.logDenied(ctx, user, action, promptForLog, verdict.Reason)
			return &ActionResult{Denied: true, Reason: verdict.Reason}, nil
		}
		longTextReserved = true
	}

	estimated := s.gen.EstimateTokens(promptForLog)
	verdict, err := s.engine.ReserveRequest(ctx, user, estimated)
	if err != nil {
		if longTextReserved {
			s.rollback("long_text", s.engine.RollbackLongText(ctx, user))
		}
		return nil, err
	}
	if !verdict.Allowed {
		if longTextReserved {
			s.rollback("long_text", s.engine.RollbackLongText(ctx, user))
		}
		s.logDenied(ctx, user, action, promptForLog, verdict.Reason)
		return &ActionResult{Denied: true, Reason: verdict.Reason}, nil
	}

	result, err := s.gen.Generate(ctx, systemPrompt, userPrompt, verdict.MaxOutputTokens)
	if err != nil {
		s.rollback("request", s.engine.RollbackRequest(ctx, user))
		if longTextReserved {
			s.rollback("long_text", s.engine.RollbackLongText(ctx, user))
		}
		s.logFailure(ctx, user, action, promptForLog, err)
		return nil, err
	}

	s.engine.ConsumeMonthlyTokens(user, result.TotalTokens)
	s.logEntry(ctx, &models.QueryLog{
		TelegramID:   user.TelegramID,
		Action:       action,
		Plan:         user.Plan,
		PromptText:   promptForLog,
		ResponseText: result.Text,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		TotalTokens:  result.TotalTokens,
		Status:       models.StatusOK,
	})
	return &ActionResult{Text: result.Text}, nil
}

// RunImage handles image generation. The verdict remembers whether a bonus
// credit funded the reservation so a failure restores the right counter.
func (s *ActionService) RunImage(ctx context.Context, user *models.User, prompt string) (*ActionResult, error) {
	verdict, err := s.engine.ReserveImage(ctx, user)
	if err != nil {
		return nil, err
	}
	if !verdict.Allowed {
		s.logDenied(ctx, user, models.ActionImageGenerate, prompt, verdict.Reason)
		return &ActionResult{Denied: true, Reason: verdict.Reason}, nil
	}

	image, err := s.gen.GenerateImage(ctx, prompt)
	if err != nil {
		s.rollback("image", s.engine.RollbackImage(ctx, user, verdict.UsedBonusCredit))
		s.logFailure(ctx, user, models.ActionImageGenerate, prompt, err)
		return nil, err
	}

	s.logEntry(ctx, &models.QueryLog{
		TelegramID:   user.TelegramID,
		Action:       models.ActionImageGenerate,
		Plan:         user.Plan,
		PromptText:   prompt,
		ResponseText: "image_model=" + image.Model,
		Status:       models.StatusOK,
	})
	return &ActionResult{Image: image}, nil
}

// RunPhotoAnalysis handles photo analysis, which consumes both a generic
// request (reserved first, with the image overhead estimate) and a dedicated
// photo-analysis slot. A denial of the second rolls back the first; a
// backend failure rolls back both.
func (s *ActionService) RunPhotoAnalysis(ctx context.Context, user *models.User, imageURL, prompt string) (*ActionResult, error) {
	estimated := s.gen.EstimateTokens(prompt) + photoInputTokens
	requestVerdict, err := s.engine.ReserveRequest(ctx, user, estimated)
	if err != nil {
		return nil, err
	}
	if !requestVerdict.Allowed {
		s.logDenied(ctx, user, models.ActionPhotoAnalysis, prompt, requestVerdict.Reason)
		return &ActionResult{Denied: true, Reason: requestVerdict.Reason}, nil
	}

	photoVerdict, err := s.engine.ReservePhotoAnalysis(ctx, user)
	if err != nil {
		s.rollback("request", s.engine.RollbackRequest(ctx, user))
		return nil, err
	}
	if !photoVerdict.Allowed {
		s.rollback("request", s.engine.RollbackRequest(ctx, user))
		s.logDenied(ctx, user, models.ActionPhotoAnalysis, prompt, photoVerdict.Reason)
		return &ActionResult{Denied: true, Reason: photoVerdict.Reason}, nil
	}

	result, err := s.gen.AnalyzePhoto(ctx, imageURL, prompt, requestVerdict.MaxOutputTokens)
	if err != nil {
		s.rollback("photo_analysis", s.engine.RollbackPhotoAnalysis(ctx, user))
		s.rollback("request", s.engine.RollbackRequest(ctx, user))
		s.logFailure(ctx, user, models.ActionPhotoAnalysis, prompt, err)
		return nil, err
	}

	s.engine.ConsumeMonthlyTokens(user, result.TotalTokens)
	s.logEntry(ctx, &models.QueryLog{
		TelegramID:   user.TelegramID,
		Action:       models.ActionPhotoAnalysis,
		Plan:         user.Plan,
		PromptText:   prompt,
		ResponseText: result.Text,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		TotalTokens:  result.TotalTokens,
		Status:       models.StatusOK,
	})
	return &ActionResult{Text: result.Text}, nil
}
