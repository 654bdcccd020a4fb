package limits

import (
	"context"

	"github.com/alex199571/Student-Bot/internal/models"
	"github.com/alex199571/Student-Bot/internal/plans"
)

// Reason is the machine-readable explanation attached to a denied verdict.
// Callers must not collapse these into a generic "limit reached".
type Reason string

const (
	ReasonMonthly         Reason = "monthly"
	ReasonDaily           Reason = "daily"
	ReasonLongTextPlan    Reason = "long_text_plan"
	ReasonLongTextMonthly Reason = "long_text_monthly"
	ReasonLongTextDaily   Reason = "long_text_daily"
	ReasonImagePlan       Reason = "image_plan"
	ReasonImageMonthly    Reason = "image_monthly"
	ReasonImageDaily      Reason = "image_daily"
	ReasonPhotoMonthly    Reason = "photo_monthly"
	ReasonPhotoDaily      Reason = "photo_daily"
)

// Verdict is the result of one reservation attempt.
type Verdict struct {
	Allowed   bool
	Reason    Reason
	DailyUsed int
	// MaxOutputTokens is the dynamically computed output budget for generic
	// requests, bounded by the plan ceiling and the remaining monthly tokens.
	MaxOutputTokens int
	// UsedBonusCredit tells image rollback which counter to restore.
	UsedBonusCredit bool
}

func deny(reason Reason) Verdict {
	return Verdict{Allowed: false, Reason: reason}
}

// Engine makes the allow/deny decision for every inbound action, speculatively
// reserving capacity that the paired Rollback* call releases on failure.
// Monthly counters live on the account record and are committed by the
// caller's single save per action; daily counters live behind the
// DailyCounter interface.
type Engine struct {
	daily DailyCounter
}

func NewEngine(daily DailyCounter) *Engine {
	return &Engine{daily: daily}
}

// ReserveRequest reserves one generic request slot. Every text generation and
// photo analysis consumes one of these; the verdict carries the output-token
// budget the generation call must not exceed.
func (e *Engine) ReserveRequest(ctx context.Context, user *models.User, estimatedInputTokens int) (Verdict, error) {
	plan := plans.Get(user.Plan)
	SyncMonth(user)

	if user.MonthlyRequestsUsed >= plan.MonthlyRequestsLimit {
		return deny(ReasonMonthly), nil
	}

	remainingTokens := plan.MonthlyTokensLimit - user.MonthlyTokensUsed
	if remainingTokens <= estimatedInputTokens {
		return deny(ReasonMonthly), nil
	}

	budget := plan.MaxOutputTokens
	if room := remainingTokens - estimatedInputTokens; room < budget {
		budget = room
	}
	if budget <= 0 {
		return deny(ReasonMonthly), nil
	}

	n, err := e.daily.Increment(ctx, user, ResourceRequest)
	if err != nil {
		return Verdict{}, err
	}
	if n > plan.DailyRequestsLimit {
		if err := e.daily.Decrement(ctx, user, ResourceRequest); err != nil {
			return Verdict{Reason: ReasonDaily, DailyUsed: n}, err
		}
		return Verdict{Reason: ReasonDaily, DailyUsed: n}, nil
	}

	user.MonthlyRequestsUsed++
	return Verdict{Allowed: true, DailyUsed: n, MaxOutputTokens: budget}, nil
}

// ReserveLongText reserves a long-text slot. For the long_text action this
// runs before the generic request reservation; if that later reservation
// denies, the caller rolls this one back.
func (e *Engine) ReserveLongText(ctx context.Context, user *models.User) (Verdict, error) {
	plan := plans.Get(user.Plan)
	SyncMonth(user)

	if plan.MonthlyLongTextLimit <= 0 || plan.DailyLongTextLimit <= 0 {
		return deny(ReasonLongTextPlan), nil
	}
	if user.MonthlyLongTextsUsed >= plan.MonthlyLongTextLimit {
		return deny(ReasonLongTextMonthly), nil
	}

	n, err := e.daily.Increment(ctx, user, ResourceLongText)
	if err != nil {
		return Verdict{}, err
	}
	if n > plan.DailyLongTextLimit {
		if err := e.daily.Decrement(ctx, user, ResourceLongText); err != nil {
			return Verdict{Reason: ReasonLongTextDaily, DailyUsed: n}, err
		}
		return Verdict{Reason: ReasonLongTextDaily, DailyUsed: n}, nil
	}

	user.MonthlyLongTextsUsed++
	return Verdict{Allowed: true, DailyUsed: n}, nil
}

// ReserveImage reserves one image generation. Plan allotment is consumed
// first; bonus credits fund the image once the allotment is exhausted or the
// plan includes no images at all. Plans with no included images still get at
// most one bonus-funded image per day.
func (e *Engine) ReserveImage(ctx context.Context, user *models.User) (Verdict, error) {
	plan := plans.Get(user.Plan)
	SyncMonth(user)

	useBonus := false
	if plan.MonthlyImagesLimit <= 0 {
		if user.BonusImageCredits <= 0 {
			return deny(ReasonImagePlan), nil
		}
		useBonus = true
	} else if user.MonthlyImagesUsed >= plan.MonthlyImagesLimit {
		if user.BonusImageCredits <= 0 {
			return deny(ReasonImageMonthly), nil
		}
		useBonus = true
	}

	effectiveDaily := plan.DailyImagesLimit
	if effectiveDaily <= 0 {
		effectiveDaily = 1
	}

	n, err := e.daily.Increment(ctx, user, ResourceImage)
	if err != nil {
		return Verdict{}, err
	}
	if n > effectiveDaily {
		if err := e.daily.Decrement(ctx, user, ResourceImage); err != nil {
			return Verdict{Reason: ReasonImageDaily, DailyUsed: n}, err
		}
		return Verdict{Reason: ReasonImageDaily, DailyUsed: n}, nil
	}

	if useBonus {
		if user.BonusImageCredits > 0 {
			user.BonusImageCredits--
		}
	} else {
		user.MonthlyImagesUsed++
	}
	return Verdict{Allowed: true, DailyUsed: n, UsedBonusCredit: useBonus}, nil
}

// ReservePhotoAnalysis reserves a photo-analysis slot. The caller must have
// reserved a generic request first (photo analysis also consumes request and
// token quota) and rolls that back if this denies.
func (e *Engine) ReservePhotoAnalysis(ctx context.Context, user *models.User) (Verdict, error) {
	plan := plans.Get(user.Plan)
	SyncMonth(user)

	if user.MonthlyPhotoAnalysesUsed >= plan.MonthlyPhotoAnalysisLimit {
		return deny(ReasonPhotoMonthly), nil
	}

	n, err := e.daily.Increment(ctx, user, ResourcePhotoAnalysis)
	if err != nil {
		return Verdict{}, err
	}
	if n > plan.DailyPhotoAnalysisLimit {
		if err := e.daily.Decrement(ctx, user, ResourcePhotoAnalysis); err != nil {
			return Verdict{Reason: ReasonPhotoDaily, DailyUsed: n}, err
		}
		return Verdict{Reason: ReasonPhotoDaily, DailyUsed: n}, nil
	}

	user.MonthlyPhotoAnalysesUsed++
	return Verdict{Allowed: true, DailyUsed: n}, nil
}

// ConsumeMonthlyTokens settles actual token usage after a generation call
// returns. The addition is unconditional: the cap was enforced pre-flight via
// the dynamic output budget, so usage may overshoot the nominal limit by at
// most one granted budget.
func (e *Engine) ConsumeMonthlyTokens(user *models.User, totalTokens int) {
	SyncMonth(user)
	if totalTokens > 0 {
		user.MonthlyTokensUsed += totalTokens
	}
}

// RollbackRequest releases a generic request reservation.
func (e *Engine) RollbackRequest(ctx context.Context, user *models.User) error {
	if err := e.daily.Decrement(ctx, user, ResourceRequest); err != nil {
		return err
	}
	if user.MonthlyRequestsUsed > 0 {
		user.MonthlyRequestsUsed--
	}
	return nil
}

// RollbackLongText releases a long-text reservation.
func (e *Engine) RollbackLongText(ctx context.Context, user *models.User) error {
	if err := e.daily.Decrement(ctx, user, ResourceLongText); err != nil {
		return err
	}
	if user.MonthlyLongTextsUsed > 0 {
		user.MonthlyLongTextsUsed--
	}
	return nil
}

// RollbackImage releases an image reservation, restoring whichever counter
// the reservation consumed.
func (e *Engine) RollbackImage(ctx context.Context, user *models.User, usedBonusCredit bool) error {
	if err := e.daily.Decrement(ctx, user, ResourceImage); err != nil {
		return err
	}
	if usedBonusCredit {
		user.BonusImageCredits++
	} else if user.MonthlyImagesUsed > 0 {
		user.MonthlyImagesUsed--
	}
	return nil
}

// RollbackPhotoAnalysis releases a photo-analysis reservation.
func (e *Engine) RollbackPhotoAnalysis(ctx context.Context, user *models.User) error {
	if err := e.daily.Decrement(ctx, user, ResourcePhotoAnalysis); err != nil {
		return err
	}
	if user.MonthlyPhotoAnalysesUsed > 0 {
		user.MonthlyPhotoAnalysesUsed--
	}
	return nil
}

// DailyUsage reports today's counters for the usage view.
type DailyUsage struct {
	Requests      int
	Images        int
	PhotoAnalyses int
	LongTexts     int
}

func (e *Engine) DailyUsage(ctx context.Context, user *models.User) (DailyUsage, error) {
	var u DailyUsage
	var err error
	if u.Requests, err = e.daily.Get(ctx, user, ResourceRequest); err != nil {
		return u, err
	}
	if u.Images, err = e.daily.Get(ctx, user, ResourceImage); err != nil {
		return u, err
	}
	if u.PhotoAnalyses, err = e.daily.Get(ctx, user, ResourcePhotoAnalysis); err != nil {
		return u, err
	}
	if u.LongTexts, err = e.daily.Get(ctx, user, ResourceLongText); err != nil {
		return u, err
	}
	return u, nil
}

// ResetDaily forces the daily rollover unconditionally. Exposed to the admin
// surface; the lazy path never needs it.
func (e *Engine) ResetDaily(ctx context.Context, user *models.User) error {
	resetDailyFields(user)
	return e.daily.Reset(ctx, user)
}
