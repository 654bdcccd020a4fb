package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/alex199571/Student-Bot/internal/models"
)

const userColumns = `id, telegram_id, COALESCE(username, ''), COALESCE(first_name, ''), language, plan, is_banned,
month_key, monthly_requests_used, monthly_tokens_used, monthly_images_used, monthly_photo_analyses_used, monthly_long_texts_used,
day_key, daily_requests_used, daily_images_used, daily_photo_analyses_used, daily_long_texts_used,
bonus_image_credits, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	var banned int
	err := row.Scan(
		&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.Language, &u.Plan, &banned,
		&u.MonthKey, &u.MonthlyRequestsUsed, &u.MonthlyTokensUsed, &u.MonthlyImagesUsed,
		&u.MonthlyPhotoAnalysesUsed, &u.MonthlyLongTextsUsed,
		&u.DayKey, &u.DailyRequestsUsed, &u.DailyImagesUsed, &u.DailyPhotoAnalysesUsed, &u.DailyLongTextsUsed,
		&u.BonusImageCredits, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.IsBanned = banned != 0
	return &u, nil
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = ?`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	const query = `
INSERT INTO users (telegram_id, username, first_name, language, plan, month_key, day_key)
VALUES (?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		user.TelegramID, user.Username, user.FirstName, user.Language, user.Plan, user.MonthKey, user.DayKey)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	user.ID = id
	return user, nil
}

// SaveUsage persists everything an inbound action may have mutated: plan,
// language, window keys, all counters and bonus credits. Called once at the
// end of handling an action, giving last-writer-wins semantics for monthly
// counters when two actions for the same user race.
func (r *UserRepository) SaveUsage(ctx context.Context, user *models.User) error {
	const query = `
UPDATE users SET
    language = ?, plan = ?, is_banned = ?,
    month_key = ?, monthly_requests_used = ?, monthly_tokens_used = ?, monthly_images_used = ?,
    monthly_photo_analyses_used = ?, monthly_long_texts_used = ?,
    day_key = ?, daily_requests_used = ?, daily_images_used = ?, daily_photo_analyses_used = ?, daily_long_texts_used = ?,
    bonus_image_credits = ?, updated_at = NOW()
WHERE id = ?`
	banned := 0
	if user.IsBanned {
		banned = 1
	}
	_, err := r.db.ExecContext(ctx, query,
		user.Language, user.Plan, banned,
		user.MonthKey, user.MonthlyRequestsUsed, user.MonthlyTokensUsed, user.MonthlyImagesUsed,
		user.MonthlyPhotoAnalysesUsed, user.MonthlyLongTextsUsed,
		user.DayKey, user.DailyRequestsUsed, user.DailyImagesUsed, user.DailyPhotoAnalysesUsed, user.DailyLongTextsUsed,
		user.BonusImageCredits, user.ID,
	)
	if err != nil {
		return fmt.Errorf("save usage: %w", err)
	}
	return nil
}

// Ensure fetches the account for a telegram user, creating it on first
// contact with plan free and fresh window keys.
func (r *UserRepository) Ensure(ctx context.Context, telegramID int64, username, firstName, language, monthKey, dayKey string) (*models.User, bool, error) {
	user, err := r.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, false, err
	}
	if user != nil {
		return user, false, nil
	}
	created, err := r.Create(ctx, &models.User{
		TelegramID: telegramID,
		Username:   username,
		FirstName:  firstName,
		Language:   language,
		Plan:       "free",
		MonthKey:   monthKey,
		DayKey:     dayKey,
	})
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// ListFilter narrows and orders the admin user listing.
type ListFilter struct {
	Search    string
	Plan      string
	IsBanned  *bool
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

var userSortColumns = map[string]string{
	"telegram_id":                 "telegram_id",
	"username":                    "username",
	"language":                    "language",
	"plan":                        "plan",
	"is_banned":                   "is_banned",
	"month_key":                   "month_key",
	"monthly_requests_used":       "monthly_requests_used",
	"monthly_tokens_used":         "monthly_tokens_used",
	"monthly_images_used":         "monthly_images_used",
	"monthly_photo_analyses_used": "monthly_photo_analyses_used",
	"monthly_long_texts_used":     "monthly_long_texts_used",
	"bonus_image_credits":         "bonus_image_credits",
	"created_at":                  "created_at",
}

func (r *UserRepository) List(ctx context.Context, f ListFilter) ([]*models.User, int, error) {
	var conditions []string
	var args []any

	if f.Plan != "" {
		conditions = append(conditions, "plan = ?")
		args = append(args, f.Plan)
	}
	if f.IsBanned != nil {
		banned := 0
		if *f.IsBanned {
			banned = 1
		}
		conditions = append(conditions, "is_banned = ?")
		args = append(args, banned)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		conditions = append(conditions, `(CAST(telegram_id AS CHAR) LIKE ? OR COALESCE(username, '') LIKE ? OR COALESCE(first_name, '') LIKE ? OR language LIKE ? OR plan LIKE ?)`)
		args = append(args, like, like, like, like, like)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	sortColumn, ok := userSortColumns[f.SortBy]
	if !ok {
		sortColumn = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		order = "ASC"
	}

	query := `SELECT ` + userColumns + ` FROM users` + where +
		fmt.Sprintf(" ORDER BY %s %s LIMIT ? OFFSET ?", sortColumn, order)
	rows, err := r.db.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	countRow := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...)
	if err := countRow.Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

func (r *UserRepository) ListAll(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list all users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) ListTelegramIDs(ctx context.Context) ([]int64, error) {
	const query = `SELECT telegram_id FROM users`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list telegram ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan telegram id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UserStats aggregates account figures for the admin dashboard. Legacy paid
// accounts count as pro.
type UserStats struct {
	TotalUsers               int `json:"total_users"`
	FreeUsers                int `json:"free_users"`
	StudentUsers             int `json:"student_users"`
	ProUsers                 int `json:"pro_users"`
	BannedUsers              int `json:"banned_users"`
	MonthlyRequestsUsed      int `json:"monthly_requests_used"`
	MonthlyTokensUsed        int `json:"monthly_tokens_used"`
	MonthlyImagesUsed        int `json:"monthly_images_used"`
	MonthlyPhotoAnalysesUsed int `json:"monthly_photo_analyses_used"`
	MonthlyLongTextsUsed     int `json:"monthly_long_texts_used"`
	BonusImageCredits        int `json:"bonus_image_credits"`
}

func (r *UserRepository) Stats(ctx context.Context) (UserStats, error) {
	const query = `
SELECT COUNT(*),
    COALESCE(SUM(plan = 'free'), 0),
    COALESCE(SUM(plan = 'student'), 0),
    COALESCE(SUM(plan IN ('pro', 'paid')), 0),
    COALESCE(SUM(is_banned), 0),
    COALESCE(SUM(monthly_requests_used), 0),
    COALESCE(SUM(monthly_tokens_used), 0),
    COALESCE(SUM(monthly_images_used), 0),
    COALESCE(SUM(monthly_photo_analyses_used), 0),
    COALESCE(SUM(monthly_long_texts_used), 0),
    COALESCE(SUM(bonus_image_credits), 0)
FROM users`
	var s UserStats
	row := r.db.QueryRowContext(ctx, query)
	if err := row.Scan(
		&s.TotalUsers, &s.FreeUsers, &s.StudentUsers, &s.ProUsers, &s.BannedUsers,
		&s.MonthlyRequestsUsed, &s.MonthlyTokensUsed, &s.MonthlyImagesUsed,
		&s.MonthlyPhotoAnalysesUsed, &s.MonthlyLongTextsUsed, &s.BonusImageCredits,
	); err != nil {
		return UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	return s, nil
}
