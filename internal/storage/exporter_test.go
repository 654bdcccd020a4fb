package storage

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/alex199571/Student-Bot/internal/models"
)

func TestUsersCSV(t *testing.T) {
	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	users := []*models.User{
		{
			TelegramID:          100,
			Username:            "alice",
			FirstName:           "Alice",
			Language:            "en",
			Plan:                "pro",
			MonthKey:            "2026-08",
			MonthlyRequestsUsed: 12,
			MonthlyTokensUsed:   3400,
			BonusImageCredits:   2,
			CreatedAt:           created,
		},
		{
			TelegramID: 200,
			Plan:       "free",
			IsBanned:   true,
			MonthKey:   "2026-08",
			CreatedAt:  created,
		},
	}

	data, err := usersCSV(users)
	if err != nil {
		t.Fatalf("usersCSV: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("rows = %d, want header plus 2", len(records))
	}
	if records[0][0] != "telegram_id" {
		t.Fatalf("header starts with %q", records[0][0])
	}
	if records[1][0] != "100" || records[1][4] != "pro" || records[1][12] != "2" {
		t.Fatalf("first row = %v", records[1])
	}
	if records[2][5] != "true" {
		t.Fatalf("banned column = %q, want true", records[2][5])
	}
	if records[1][13] != "2026-08-01T10:00:00Z" {
		t.Fatalf("created_at = %q", records[1][13])
	}
}

func TestNewExporterValidation(t *testing.T) {
	if _, err := NewExporter(Config{}); err == nil {
		t.Fatal("NewExporter accepted an empty config")
	}
	if _, err := NewExporter(Config{Bucket: "b", Region: "r"}); err == nil {
		t.Fatal("NewExporter accepted missing credentials")
	}
	exp, err := NewExporter(Config{Bucket: "b", Region: "r", AccessKey: "a", SecretKey: "s"})
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	if exp.cfg.Prefix != "exports" {
		t.Fatalf("default prefix = %q, want exports", exp.cfg.Prefix)
	}
}
