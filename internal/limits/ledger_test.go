package limits

import (
	"context"
	"testing"
	"time"

	"github.com/alex199571/Student-Bot/internal/models"
)

func TestAccountCounterIncrementAndGet(t *testing.T) {
	ctx := context.Background()
	c := NewAccountCounter()
	user := &models.User{TelegramID: 1, DayKey: DayKeyNow()}

	for want := 1; want <= 3; want++ {
		n, err := c.Increment(ctx, user, ResourceRequest)
		if err != nil {
			t.Fatalf("Increment: %v", err)
		}
		if n != want {
			t.Fatalf("Increment returned %d, want %d", n, want)
		}
	}

	got, err := c.Get(ctx, user, ResourceRequest)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != 3 {
		t.Fatalf("Get = %d, want 3", got)
	}
}

func TestAccountCounterDecrementClampsAtZero(t *testing.T) {
	ctx := context.Background()
	c := NewAccountCounter()
	user := &models.User{TelegramID: 1, DayKey: DayKeyNow()}

	if err := c.Decrement(ctx, user, ResourceImage); err != nil {
		t.Fatalf("Decrement on empty counter: %v", err)
	}
	got, err := c.Get(ctx, user, ResourceImage)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != 0 {
		t.Fatalf("counter went negative: %d", got)
	}
}

func TestAccountCounterResourceIsolation(t *testing.T) {
	ctx := context.Background()
	c := NewAccountCounter()
	user := &models.User{TelegramID: 1, DayKey: DayKeyNow()}

	if _, err := c.Increment(ctx, user, ResourceRequest); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	for _, res := range []Resource{ResourceImage, ResourcePhotoAnalysis, ResourceLongText} {
		got, err := c.Get(ctx, user, res)
		if err != nil {
			t.Fatalf("Get(%s): %v", res, err)
		}
		if got != 0 {
			t.Fatalf("resource %s leaked to %d", res, got)
		}
	}
}

func TestAccountCounterRollsOverStaleDay(t *testing.T) {
	ctx := context.Background()
	c := NewAccountCounter()
	user := &models.User{
		TelegramID:        1,
		DayKey:            "1999-12-31",
		DailyRequestsUsed: 5,
		DailyImagesUsed:   2,
	}

	n, err := c.Increment(ctx, user, ResourceRequest)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if n != 1 {
		t.Fatalf("first increment of a new day = %d, want 1", n)
	}
	if user.DayKey != DayKeyNow() {
		t.Fatalf("day key not rolled over: %q", user.DayKey)
	}
	if user.DailyImagesUsed != 0 {
		t.Fatalf("sibling daily counter survived rollover: %d", user.DailyImagesUsed)
	}
}

func TestAccountCounterUnknownResource(t *testing.T) {
	ctx := context.Background()
	c := NewAccountCounter()
	user := &models.User{TelegramID: 1, DayKey: DayKeyNow()}

	if _, err := c.Increment(ctx, user, Resource("bogus")); err == nil {
		t.Fatal("Increment accepted unknown resource")
	}
}

func TestSyncMonthResetsStaleMonth(t *testing.T) {
	user := &models.User{
		MonthKey:            "1999-12",
		MonthlyRequestsUsed: 40,
		MonthlyTokensUsed:   19_000,
		BonusImageCredits:   3,
	}
	SyncMonth(user)
	if user.MonthKey != MonthKeyNow() {
		t.Fatalf("month key not rolled over: %q", user.MonthKey)
	}
	if user.MonthlyRequestsUsed != 0 || user.MonthlyTokensUsed != 0 {
		t.Fatalf("monthly counters survived rollover: %d/%d", user.MonthlyRequestsUsed, user.MonthlyTokensUsed)
	}
	// Bonus credits are grants, not usage; rollover must not touch them.
	if user.BonusImageCredits != 3 {
		t.Fatalf("rollover consumed bonus credits: %d", user.BonusImageCredits)
	}
}

func TestSyncMonthIdempotentWithinMonth(t *testing.T) {
	user := &models.User{MonthKey: MonthKeyNow(), MonthlyRequestsUsed: 7}
	SyncMonth(user)
	if user.MonthlyRequestsUsed != 7 {
		t.Fatalf("same-month sync reset counters: %d", user.MonthlyRequestsUsed)
	}
}

func TestTTLUntilMidnight(t *testing.T) {
	noon := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if got := ttlUntilMidnight(noon); got != 12*time.Hour {
		t.Fatalf("ttl at noon = %v, want 12h", got)
	}

	lastSecond := time.Date(2026, 8, 30, 23, 59, 59, 0, time.UTC)
	if got := ttlUntilMidnight(lastSecond); got != minDailyTTL {
		t.Fatalf("ttl just before midnight = %v, want floor %v", got, minDailyTTL)
	}
}
