package limits

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/alex199571/Student-Bot/internal/models"
	"github.com/alex199571/Student-Bot/internal/plans"
)

// withBackends runs the same engine scenario against both daily-counter
// implementations; the decision logic must not depend on which one backs it.
func withBackends(t *testing.T, fn func(t *testing.T, engine *Engine)) {
	t.Helper()

	t.Run("account", func(t *testing.T) {
		fn(t, NewEngine(NewAccountCounter()))
	})
	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		fn(t, NewEngine(NewRedisCounter(rdb)))
	})
}

func testUser(plan string) *models.User {
	return &models.User{
		TelegramID: 1,
		Plan:       plan,
		MonthKey:   MonthKeyNow(),
		DayKey:     DayKeyNow(),
	}
}

func TestReserveRequestAllows(t *testing.T) {
	withBackends(t, func(t *testing.T, engine *Engine) {
		ctx := context.Background()
		user := testUser("free")

		v, err := engine.ReserveRequest(ctx, user, 100)
		if err != nil {
			t.Fatalf("ReserveRequest: %v", err)
		}
		if !v.Allowed {
			t.Fatalf("fresh user denied: %s", v.Reason)
		}
		if v.MaxOutputTokens != plans.Free.MaxOutputTokens {
			t.Fatalf("budget = %d, want plan ceiling %d", v.MaxOutputTokens, plans.Free.MaxOutputTokens)
		}
		if user.MonthlyRequestsUsed != 1 {
			t.Fatalf("monthly requests = %d, want 1", user.MonthlyRequestsUsed)
		}
		if v.DailyUsed != 1 {
			t.Fatalf("daily used = %d, want 1", v.DailyUsed)
		}
	})
}

func TestReserveRequestDailyLimit(t *testing.T) {
	withBackends(t, func(t *testing.T, engine *Engine) {
		ctx := context.Background()
		user := testUser("free")

		for i := 0; i < plans.Free.DailyRequestsLimit; i++ {
			v, err := engine.ReserveRequest(ctx, user, 10)
			if err != nil {
				t.Fatalf("ReserveRequest #%d: %v", i+1, err)
			}
			if !v.Allowed {
				t.Fatalf("request #%d denied: %s", i+1, v.Reason)
			}
		}

		v, err := engine.ReserveRequest(ctx, user, 10)
		if err != nil {
			t.Fatalf("ReserveRequest over limit: %v", err)
		}
		if v.Allowed {
			t.Fatal("request over the daily limit allowed")
		}
		if v.Reason != ReasonDaily {
			t.Fatalf("reason = %s, want %s", v.Reason, ReasonDaily)
		}
		// The speculative increment must be undone on denial.
		usage, err := engine.DailyUsage(ctx, user)
		if err != nil {
			t.Fatalf("DailyUsage: %v", err)
		}
		if usage.Requests != plans.Free.DailyRequestsLimit {
			t.Fatalf("daily requests after denial = %d, want %d", usage.Requests, plans.Free.DailyRequestsLimit)
		}
		if user.MonthlyRequestsUsed != plans.Free.DailyRequestsLimit {
			t.Fatalf("monthly requests after denial = %d, want %d", user.MonthlyRequestsUsed, plans.Free.DailyRequestsLimit)
		}
	})
}

func TestReserveRequestMonthlyLimit(t *testing.T) {
	withBackends(t, func(t *testing.T, engine *Engine) {
		ctx := context.Background()
		user := testUser("free")
		user.MonthlyRequestsUsed = plans.Free.MonthlyRequestsLimit

		v, err := engine.ReserveRequest(ctx, user, 10)
		if err != nil {
			t.Fatalf("ReserveRequest: %v", err)
		}
		if v.Allowed || v.Reason != ReasonMonthly {
			t.Fatalf("got allowed=%v reason=%s, want monthly denial", v.Allowed, v.Reason)
		}
	})
}

func TestReserveRequestTokenBudget(t *testing.T) {
	withBackends(t, func(t *testing.T, engine *Engine) {
		ctx := context.Background()

		// Enough room for the input but less than the plan ceiling: the
		// budget shrinks to the remaining room.
		user := testUser("free")
		user.MonthlyTokensUsed = plans.Free.MonthlyTokensLimit - 300
		v, err := engine.ReserveRequest(ctx, user, 100)
		if err != nil {
			t.Fatalf("ReserveRequest: %v", err)
		}
		if !v.Allowed {
			t.Fatalf("denied with token room left: %s", v.Reason)
		}
		if v.MaxOutputTokens != 200 {
			t.Fatalf("budget = %d, want 200", v.MaxOutputTokens)
		}

		// No room beyond the estimated input: deny as monthly.
		user = testUser("free")
		user.MonthlyTokensUsed = plans.Free.MonthlyTokensLimit - 100
		v, err = engine.ReserveRequest(ctx, user, 100)
		if err != nil {
			t.Fatalf("ReserveRequest: %v", err)
		}
		if v.Allowed || v.Reason != ReasonMonthly {
			t.Fatalf("got allowed=%v reason=%s, want monthly denial on exhausted tokens", v.Allowed, v.Reason)
		}
	})
}

func TestReserveRollbackRoundTrip(t *testing.T) {
	withBackends(t, func(t *testing.T, engine *Engine) {
		ctx := context.Background()
		user := testUser("pro")

		before := *user
		v, err := engine.ReserveRequest(ctx, user, 50)
		if err != nil {
			t.Fatalf("ReserveRequest: %v", err)
		}
		if !v.Allowed {
			t.Fatalf("denied: %s", v.Reason)
		}
		if err := engine.RollbackRequest(ctx, user); err != nil {
			t.Fatalf("RollbackRequest: %v", err)
		}

		if user.MonthlyRequestsUsed != before.MonthlyRequestsUsed {
			t.Fatalf("monthly requests = %d, want %d", user.MonthlyRequestsUsed, before.MonthlyRequestsUsed)
		}
		usage, err := engine.DailyUsage(ctx, user)
		if err != nil {
			t.Fatalf("DailyUsage: %v", err)
		}
		if usage.Requests != 0 {
			t.Fatalf("daily requests after rollback = %d, want 0", usage.Requests)
		}
	})
}

func TestReserveLongTextPlanGate(t *testing.T) {
	withBackends(t, func(t *testing.T, engine *Engine) {
		ctx := context.Background()
		user := testUser("free")

		v, err := engine.ReserveLongText(ctx, user)
		if err != nil {
			t.Fatalf("ReserveLongText: %v", err)
		}
		if v.Allowed || v.Reason != ReasonLongTextPlan {
			t.Fatalf("got allowed=%v reason=%s, want plan denial", v.Allowed, v.Reason)
		}
	})
}

func TestReserveLongTextLimits(t *testing.T) {
	withBackends(t, func(t *testing.T, engine *Engine) {
		ctx := context.Background()
		user := testUser("student")

		for i := 0; i < plans.Student.DailyLongTextLimit; i++ {
			v, err := engine.ReserveLongText(ctx, user)
			if err != nil {
				t.Fatalf("ReserveLongText #%d: %v", i+1, err)
			}
			if !v.Allowed {
				t.Fatalf("long text #%d denied: %s", i+1, v.Reason)
			}
		}

		v, err := engine.ReserveLongText(ctx, user)
		if err != nil {
			t.Fatalf("ReserveLongText over daily: %v", err)
		}
		if v.Allowed || v.Reason != ReasonLongTextDaily {
			t.Fatalf("got allowed=%v reason=%s, want daily denial", v.Allowed, v.Reason)
		}

		user.MonthlyLongTextsUsed = plans.Student.MonthlyLongTextLimit
		v, err = engine.ReserveLongText(ctx, user)
		if err != nil {
			t.Fatalf("ReserveLongText over monthly: %v", err)
		}
		if v.Allowed || v.Reason != ReasonLongTextMonthly {
			t.Fatalf("got allowed=%v reason=%s, want monthly denial", v.Allowed, v.Reason)
		}
	})
}

func TestReserveImagePlanAllotmentBeforeBonus(t *testing.T) {
	withBackends(t, func(t *testing.T, engine *Engine) {
		ctx := context.Background()
		user := testUser("pro")
		user.BonusImageCredits = 2

		v, err := engine.ReserveImage(ctx, user)
		if err != nil {
			t.Fatalf("ReserveImage: %v", err)
		}
		if !v.Allowed || v.UsedBonusCredit {
			t.Fatalf("got allowed=%v bonus=%v, want plan allotment first", v.Allowed, v.UsedBonusCredit)
		}
		if user.MonthlyImagesUsed != 1 || user.BonusImageCredits != 2 {
			t.Fatalf("counters = monthly %d bonus %d, want 1/2", user.MonthlyImagesUsed, user.BonusImageCredits)
		}
	})
}

func TestReserveImageBonusAfterAllotment(t *testing.T) {
	withBackends(t, func(t *testing.T, engine *Engine) {
		ctx := context.Background()
		user := testUser("pro")
		user.MonthlyImagesUsed = plans.Pro.MonthlyImagesLimit
		user.BonusImageCredits = 1

		v, err := engine.ReserveImage(ctx, user)
		if err != nil {
			t.Fatalf("ReserveImage: %v", err)
		}
		if !v.Allowed || !v.UsedBonusCredit {
			t.Fatalf("got allowed=%v bonus=%v, want bonus-funded image", v.Allowed, v.UsedBonusCredit)
		}
		if user.BonusImageCredits != 0 {
			t.Fatalf("bonus credits = %d, want 0", user.BonusImageCredits)
		}
		if user.MonthlyImagesUsed != plans.Pro.MonthlyImagesLimit {
			t.Fatalf("monthly images moved past the limit: %d", user.MonthlyImagesUsed)
		}
	})
}

func TestReserveImageFreePlanWithBonusCredits(t *testing.T) {
	withBackends(t, func(t *testing.T, engine *Engine) {
		ctx := context.Background()
		user := testUser("free")
		user.BonusImageCredits = 2

		v, err := engine.ReserveImage(ctx, user)
		if err != nil {
			t.Fatalf("ReserveImage: %v", err)
		}
		if !v.Allowed || !v.UsedBonusCredit {
			t.Fatalf("got allowed=%v bonus=%v, want bonus-funded image", v.Allowed, v.UsedBonusCredit)
		}

		// The free plan has no daily image allowance, so the bonus path is
		// capped at one image per day even with credits left.
		v, err = engine.ReserveImage(ctx, user)
		if err != nil {
			t.Fatalf("ReserveImage second: %v", err)
		}
		if v.Allowed || v.Reason != ReasonImageDaily {
			t.Fatalf("got allowed=%v reason=%s, want daily denial", v.Allowed, v.Reason)
		}
		if user.BonusImageCredits != 1 {
			t.Fatalf("denied attempt consumed a credit: %d left", user.BonusImageCredits)
		}
	})
}

func TestReserveImageMonthlyExhaustionWithoutCredits(t *testing.T) {
	withBackends(t, func(t *testing.T, engine *Engine) {
		ctx := context.Background()
		user := testUser("pro")
		user.MonthlyImagesUsed = plans.Pro.MonthlyImagesLimit

		v, err := engine.ReserveImage(ctx, user)
		if err != nil {
			t.Fatalf("ReserveImage: %v", err)
		}
		if v.Allowed || v.Reason != ReasonImageMonthly {
			t.Fatalf("got allowed=%v reason=%s, want monthly denial", v.Allowed, v.Reason)
		}
	})
}

// Two bonus credits on a plan without images fund one image per day for two
// days; the third attempt with no credits left denies on the plan gate.
func TestReserveImageBonusCreditsAcrossDays(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(NewAccountCounter())
	user := testUser("free")
	user.BonusImageCredits = 2

	for day := 1; day <= 2; day++ {
		v, err := engine.ReserveImage(ctx, user)
		if err != nil {
			t.Fatalf("ReserveImage day %d: %v", day, err)
		}
		if !v.Allowed || !v.UsedBonusCredit {
			t.Fatalf("day %d: got allowed=%v bonus=%v", day, v.Allowed, v.UsedBonusCredit)
		}
		// Force the next day's rollover.
		user.DayKey = "1999-12-31"
	}
	if user.BonusImageCredits != 0 {
		t.Fatalf("bonus credits = %d, want 0", user.BonusImageCredits)
	}

	v, err := engine.ReserveImage(ctx, user)
	if err != nil {
		t.Fatalf("ReserveImage third: %v", err)
	}
	if v.Allowed || v.Reason != ReasonImagePlan {
		t.Fatalf("got allowed=%v reason=%s, want plan denial", v.Allowed, v.Reason)
	}
}

func TestReserveImageDeniedWithoutPlanOrCredits(t *testing.T) {
	withBackends(t, func(t *testing.T, engine *Engine) {
		ctx := context.Background()
		user := testUser("student")

		v, err := engine.ReserveImage(ctx, user)
		if err != nil {
			t.Fatalf("ReserveImage: %v", err)
		}
		if v.Allowed || v.Reason != ReasonImagePlan {
			t.Fatalf("got allowed=%v reason=%s, want plan denial", v.Allowed, v.Reason)
		}
	})
}

func TestRollbackImageRestoresBonusCredit(t *testing.T) {
	withBackends(t, func(t *testing.T, engine *Engine) {
		ctx := context.Background()
		user := testUser("free")
		user.BonusImageCredits = 1

		v, err := engine.ReserveImage(ctx, user)
		if err != nil {
			t.Fatalf("ReserveImage: %v", err)
		}
		if !v.Allowed {
			t.Fatalf("denied: %s", v.Reason)
		}
		if err := engine.RollbackImage(ctx, user, v.UsedBonusCredit); err != nil {
			t.Fatalf("RollbackImage: %v", err)
		}
		if user.BonusImageCredits != 1 {
			t.Fatalf("bonus credits after rollback = %d, want 1", user.BonusImageCredits)
		}
		if user.MonthlyImagesUsed != 0 {
			t.Fatalf("plan counter touched by bonus rollback: %d", user.MonthlyImagesUsed)
		}
	})
}

func TestReservePhotoAnalysisLimits(t *testing.T) {
	withBackends(t, func(t *testing.T, engine *Engine) {
		ctx := context.Background()
		user := testUser("free")

		v, err := engine.ReservePhotoAnalysis(ctx, user)
		if err != nil {
			t.Fatalf("ReservePhotoAnalysis: %v", err)
		}
		if !v.Allowed {
			t.Fatalf("denied: %s", v.Reason)
		}

		v, err = engine.ReservePhotoAnalysis(ctx, user)
		if err != nil {
			t.Fatalf("ReservePhotoAnalysis second: %v", err)
		}
		if v.Allowed || v.Reason != ReasonPhotoDaily {
			t.Fatalf("got allowed=%v reason=%s, want daily denial", v.Allowed, v.Reason)
		}

		user.MonthlyPhotoAnalysesUsed = plans.Free.MonthlyPhotoAnalysisLimit
		v, err = engine.ReservePhotoAnalysis(ctx, user)
		if err != nil {
			t.Fatalf("ReservePhotoAnalysis monthly: %v", err)
		}
		if v.Allowed || v.Reason != ReasonPhotoMonthly {
			t.Fatalf("got allowed=%v reason=%s, want monthly denial", v.Allowed, v.Reason)
		}
	})
}

func TestReserveRequestRollsOverStaleMonth(t *testing.T) {
	withBackends(t, func(t *testing.T, engine *Engine) {
		ctx := context.Background()
		user := testUser("free")
		user.MonthKey = "1999-12"
		user.MonthlyRequestsUsed = plans.Free.MonthlyRequestsLimit
		user.MonthlyTokensUsed = plans.Free.MonthlyTokensLimit

		v, err := engine.ReserveRequest(ctx, user, 10)
		if err != nil {
			t.Fatalf("ReserveRequest: %v", err)
		}
		if !v.Allowed {
			t.Fatalf("stale month not rolled over, denied: %s", v.Reason)
		}
		if user.MonthKey != MonthKeyNow() {
			t.Fatalf("month key = %q, want current", user.MonthKey)
		}
		if user.MonthlyRequestsUsed != 1 {
			t.Fatalf("monthly requests after rollover = %d, want 1", user.MonthlyRequestsUsed)
		}
	})
}

func TestConsumeMonthlyTokens(t *testing.T) {
	engine := NewEngine(NewAccountCounter())
	user := testUser("free")

	engine.ConsumeMonthlyTokens(user, 150)
	engine.ConsumeMonthlyTokens(user, 0)
	engine.ConsumeMonthlyTokens(user, -5)
	if user.MonthlyTokensUsed != 150 {
		t.Fatalf("monthly tokens = %d, want 150", user.MonthlyTokensUsed)
	}
}

func TestResetDaily(t *testing.T) {
	withBackends(t, func(t *testing.T, engine *Engine) {
		ctx := context.Background()
		user := testUser("pro")

		if _, err := engine.ReserveRequest(ctx, user, 10); err != nil {
			t.Fatalf("ReserveRequest: %v", err)
		}
		if err := engine.ResetDaily(ctx, user); err != nil {
			t.Fatalf("ResetDaily: %v", err)
		}
		usage, err := engine.DailyUsage(ctx, user)
		if err != nil {
			t.Fatalf("DailyUsage: %v", err)
		}
		if usage.Requests != 0 {
			t.Fatalf("daily requests after reset = %d, want 0", usage.Requests)
		}
		// Monthly usage is untouched by the daily reset.
		if user.MonthlyRequestsUsed != 1 {
			t.Fatalf("monthly requests after daily reset = %d, want 1", user.MonthlyRequestsUsed)
		}
	})
}
