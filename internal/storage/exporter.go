package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/alex199571/Student-Bot/internal/models"
)

type Config struct {
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UsePathStyle bool
	Prefix       string
}

// Exporter writes usage-report snapshots to S3-compatible storage.
type Exporter struct {
	cfg    Config
	client *s3.Client
}

func NewExporter(cfg Config) (*Exporter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 region is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials are required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "exports"
	}

	options := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return &Exporter{
		cfg:    cfg,
		client: s3.New(options),
	}, nil
}

// ExportUsers serializes the accounts as CSV and uploads the snapshot.
// It returns the object key.
func (e *Exporter) ExportUsers(ctx context.Context, users []*models.User) (string, error) {
	if len(users) == 0 {
		return "", fmt.Errorf("no users to export")
	}

	data, err := usersCSV(users)
	if err != nil {
		return "", err
	}

	key := e.generateKey()
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	return key, nil
}

func usersCSV(users []*models.User) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"telegram_id", "username", "first_name", "language", "plan", "banned",
		"month_key", "monthly_requests", "monthly_tokens", "monthly_images",
		"monthly_long_texts", "monthly_photos", "bonus_image_credits", "created_at",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, u := range users {
		row := []string{
			strconv.FormatInt(u.TelegramID, 10),
			u.Username,
			u.FirstName,
			u.Language,
			u.Plan,
			strconv.FormatBool(u.IsBanned),
			u.MonthKey,
			strconv.Itoa(u.MonthlyRequestsUsed),
			strconv.Itoa(u.MonthlyTokensUsed),
			strconv.Itoa(u.MonthlyImagesUsed),
			strconv.Itoa(u.MonthlyLongTextsUsed),
			strconv.Itoa(u.MonthlyPhotoAnalysesUsed),
			strconv.Itoa(u.BonusImageCredits),
			u.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *Exporter) generateKey() string {
	now := time.Now().UTC()
	prefix := strings.Trim(e.cfg.Prefix, "/")
	return path.Join(prefix, fmt.Sprintf("%04d/%02d/%02d", now.Year(), now.Month(), now.Day()), "users-"+uuid.NewString()+".csv")
}
