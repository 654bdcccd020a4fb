package service

import (
	"context"
	"fmt"

	"github.com/alex199571/Student-Bot/internal/limits"
	"github.com/alex199571/Student-Bot/internal/models"
	"github.com/alex199571/Student-Bot/internal/plans"
	"github.com/alex199571/Student-Bot/internal/repository"
)

type UserService struct {
	users *repository.UserRepository
}

func NewUserService(users *repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// Ensure loads the account for a telegram user, creating it on first contact.
// Legacy plan names are normalized on load, never migrated in storage.
func (s *UserService) Ensure(ctx context.Context, telegramID int64, username, firstName, language string) (*models.User, bool, error) {
	user, created, err := s.users.Ensure(ctx, telegramID, username, firstName, language, limits.MonthKeyNow(), limits.DayKeyNow())
	if err != nil {
		return nil, false, fmt.Errorf("ensure user: %w", err)
	}
	user.Plan = plans.Normalize(user.Plan)
	return user, created, nil
}

func (s *UserService) FindByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	user, err := s.users.FindByTelegramID(ctx, telegramID)
	if err != nil || user == nil {
		return user, err
	}
	user.Plan = plans.Normalize(user.Plan)
	return user, nil
}

// Save persists the account once at the end of handling an action.
func (s *UserService) Save(ctx context.Context, user *models.User) error {
	return s.users.SaveUsage(ctx, user)
}

func (s *UserService) List(ctx context.Context, f repository.ListFilter) ([]*models.User, int, error) {
	return s.users.List(ctx, f)
}

func (s *UserService) ListAll(ctx context.Context) ([]*models.User, error) {
	return s.users.ListAll(ctx)
}

func (s *UserService) ListTelegramIDs(ctx context.Context) ([]int64, error) {
	return s.users.ListTelegramIDs(ctx)
}

func (s *UserService) Stats(ctx context.Context) (repository.UserStats, error) {
	return s.users.Stats(ctx)
}

func (s *UserService) SetBanned(ctx context.Context, user *models.User, banned bool) error {
	user.IsBanned = banned
	return s.users.SaveUsage(ctx, user)
}

func (s *UserService) ChangePlan(ctx context.Context, user *models.User, plan string) error {
	if !plans.IsValid(plan) {
		return fmt.Errorf("plan must be free, student, or pro")
	}
	user.Plan = plans.Normalize(plan)
	return s.users.SaveUsage(ctx, user)
}

// GrantImageCredits adds bonus image credits with a sanity ceiling on the
// single grant, not the resulting stock.
func (s *UserService) GrantImageCredits(ctx context.Context, user *models.User, amount int) error {
	if amount < 1 || amount > 1000 {
		return fmt.Errorf("amount must be between 1 and 1000")
	}
	user.BonusImageCredits += amount
	return s.users.SaveUsage(ctx, user)
}
