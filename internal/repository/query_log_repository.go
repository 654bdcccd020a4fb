package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alex199571/Student-Bot/internal/models"
)

type QueryLogRepository struct {
	db *sql.DB
}

func NewQueryLogRepository(db *sql.DB) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

func (r *QueryLogRepository) Create(ctx context.Context, entry *models.QueryLog) error {
	const query = `
INSERT INTO query_logs (telegram_id, action, plan, prompt_text, response_text, input_tokens, output_tokens, total_tokens, status, error_message)
VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?, NULLIF(?, ''))`
	if _, err := r.db.ExecContext(ctx, query,
		entry.TelegramID, entry.Action, entry.Plan, entry.PromptText, entry.ResponseText,
		entry.InputTokens, entry.OutputTokens, entry.TotalTokens, entry.Status, entry.ErrorMessage,
	); err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	return nil
}

func (r *QueryLogRepository) List(ctx context.Context, limit, offset int, telegramID int64) ([]*models.QueryLog, error) {
	query := `
SELECT id, telegram_id, action, plan, prompt_text, COALESCE(response_text, ''), input_tokens, output_tokens, total_tokens, status, COALESCE(error_message, ''), created_at
FROM query_logs`
	var args []any
	if telegramID != 0 {
		query += ` WHERE telegram_id = ?`
		args = append(args, telegramID)
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list query logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.QueryLog
	for rows.Next() {
		var l models.QueryLog
		if err := rows.Scan(
			&l.ID, &l.TelegramID, &l.Action, &l.Plan, &l.PromptText, &l.ResponseText,
			&l.InputTokens, &l.OutputTokens, &l.TotalTokens, &l.Status, &l.ErrorMessage, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan query log: %w", err)
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

type QueryLogStats struct {
	TotalLogs         int `json:"total_logs"`
	OKLogs            int `json:"ok_logs"`
	ErrorLogs         int `json:"error_logs"`
	ImageLogs         int `json:"image_logs"`
	PhotoAnalysisLogs int `json:"photo_analysis_logs"`
	TotalTokensLogged int `json:"total_tokens_logged"`
}

func (r *QueryLogRepository) Stats(ctx context.Context) (QueryLogStats, error) {
	const query = `
SELECT COUNT(*),
    COALESCE(SUM(status = 'ok'), 0),
    COALESCE(SUM(status = 'error'), 0),
    COALESCE(SUM(action = 'image_generate'), 0),
    COALESCE(SUM(action = 'photo_analysis'), 0),
    COALESCE(SUM(total_tokens), 0)
FROM query_logs`
	var s QueryLogStats
	row := r.db.QueryRowContext(ctx, query)
	if err := row.Scan(&s.TotalLogs, &s.OKLogs, &s.ErrorLogs, &s.ImageLogs, &s.PhotoAnalysisLogs, &s.TotalTokensLogged); err != nil {
		return QueryLogStats{}, fmt.Errorf("query log stats: %w", err)
	}
	return s, nil
}
