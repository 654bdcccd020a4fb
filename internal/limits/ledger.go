package limits

import (
	"context"
	"fmt"
	"time"

	"github.com/alex199571/Student-Bot/internal/models"
)

// Resource identifies one independently metered action kind.
type Resource string

const (
	ResourceRequest       Resource = "request"
	ResourceImage         Resource = "image"
	ResourcePhotoAnalysis Resource = "photo_analysis"
	ResourceLongText      Resource = "long_text"
)

var allResources = []Resource{ResourceRequest, ResourceImage, ResourcePhotoAnalysis, ResourceLongText}

// MonthKeyNow returns the current UTC month bucket, e.g. "2026-08".
func MonthKeyNow() string {
	return time.Now().UTC().Format("2006-01")
}

// DayKeyNow returns the current UTC day bucket, e.g. "2026-08-30".
func DayKeyNow() string {
	return time.Now().UTC().Format("2006-01-02")
}

// DailyCounter holds per-user daily usage for each resource kind. Two
// implementations exist: AccountCounter keeps counters on the account record
// itself, RedisCounter keeps them in Redis under keys that expire at UTC
// midnight. Both follow the increment-then-check protocol: Increment returns
// the post-increment value and the caller undoes the increment with Decrement
// when the value overshoots the ceiling.
type DailyCounter interface {
	Increment(ctx context.Context, user *models.User, res Resource) (int, error)
	Decrement(ctx context.Context, user *models.User, res Resource) error
	Get(ctx context.Context, user *models.User, res Resource) (int, error)
	Reset(ctx context.Context, user *models.User) error
}

// SyncMonth lazily rolls the monthly window over: if the stored month key no
// longer matches the current UTC month, all monthly counters reset to zero.
// Idempotent; called before every monthly read or write.
func SyncMonth(user *models.User) {
	if user.MonthKey != MonthKeyNow() {
		ResetMonthly(user)
	}
}

// ResetMonthly unconditionally zeroes the monthly counters and stamps the
// current month key. Used by the lazy rollover and by the admin reset.
func ResetMonthly(user *models.User) {
	user.MonthKey = MonthKeyNow()
	user.MonthlyRequestsUsed = 0
	user.MonthlyTokensUsed = 0
	user.MonthlyImagesUsed = 0
	user.MonthlyPhotoAnalysesUsed = 0
	user.MonthlyLongTextsUsed = 0
}

func resetDailyFields(user *models.User) {
	user.DayKey = DayKeyNow()
	user.DailyRequestsUsed = 0
	user.DailyImagesUsed = 0
	user.DailyPhotoAnalysesUsed = 0
	user.DailyLongTextsUsed = 0
}

// AccountCounter stores daily counters on the account record. The record is
// persisted once per inbound action by the caller, so increments are
// serialized per account by that save boundary.
type AccountCounter struct{}

func NewAccountCounter() AccountCounter {
	return AccountCounter{}
}

func (AccountCounter) syncDay(user *models.User) {
	if user.DayKey != DayKeyNow() {
		resetDailyFields(user)
	}
}

func (c AccountCounter) field(user *models.User, res Resource) (*int, error) {
	switch res {
	case ResourceRequest:
		return &user.DailyRequestsUsed, nil
	case ResourceImage:
		return &user.DailyImagesUsed, nil
	case ResourcePhotoAnalysis:
		return &user.DailyPhotoAnalysesUsed, nil
	case ResourceLongText:
		return &user.DailyLongTextsUsed, nil
	default:
		return nil, fmt.Errorf("unknown resource: %s", res)
	}
}

func (c AccountCounter) Increment(ctx context.Context, user *models.User, res Resource) (int, error) {
	c.syncDay(user)
	f, err := c.field(user, res)
	if err != nil {
		return 0, err
	}
	*f++
	return *f, nil
}

func (c AccountCounter) Decrement(ctx context.Context, user *models.User, res Resource) error {
	c.syncDay(user)
	f, err := c.field(user, res)
	if err != nil {
		return err
	}
	if *f > 0 {
		*f--
	}
	return nil
}

func (c AccountCounter) Get(ctx context.Context, user *models.User, res Resource) (int, error) {
	c.syncDay(user)
	f, err := c.field(user, res)
	if err != nil {
		return 0, err
	}
	return *f, nil
}

func (c AccountCounter) Reset(ctx context.Context, user *models.User) error {
	resetDailyFields(user)
	return nil
}
