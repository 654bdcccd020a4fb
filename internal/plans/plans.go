package plans

// Plan bundles the limit parameters governing every resource kind for one tier.
type Plan struct {
	Name                      string
	MonthlyRequestsLimit      int
	DailyRequestsLimit        int
	MonthlyTokensLimit        int
	MaxOutputTokens           int
	MonthlyImagesLimit        int
	DailyImagesLimit          int
	MonthlyPhotoAnalysisLimit int
	DailyPhotoAnalysisLimit   int
	MonthlyLongTextLimit      int
	DailyLongTextLimit        int
}

var Free = Plan{
	Name:                      "free",
	MonthlyRequestsLimit:      50,
	DailyRequestsLimit:        5,
	MonthlyTokensLimit:        20_000,
	MaxOutputTokens:           400,
	MonthlyImagesLimit:        0,
	DailyImagesLimit:          0,
	MonthlyPhotoAnalysisLimit: 8,
	DailyPhotoAnalysisLimit:   1,
	MonthlyLongTextLimit:      0,
	DailyLongTextLimit:        0,
}

var Student = Plan{
	Name:                      "student",
	MonthlyRequestsLimit:      250,
	DailyRequestsLimit:        25,
	MonthlyTokensLimit:        120_000,
	MaxOutputTokens:           1_200,
	MonthlyImagesLimit:        0,
	DailyImagesLimit:          0,
	MonthlyPhotoAnalysisLimit: 60,
	DailyPhotoAnalysisLimit:   6,
	MonthlyLongTextLimit:      40,
	DailyLongTextLimit:        4,
}

var Pro = Plan{
	Name:                      "pro",
	MonthlyRequestsLimit:      1_000,
	DailyRequestsLimit:        100,
	MonthlyTokensLimit:        300_000,
	MaxOutputTokens:           2_400,
	MonthlyImagesLimit:        30,
	DailyImagesLimit:          2,
	MonthlyPhotoAnalysisLimit: 300,
	DailyPhotoAnalysisLimit:   30,
	MonthlyLongTextLimit:      120,
	DailyLongTextLimit:        12,
}

var catalog = map[string]Plan{
	"free":    Free,
	"student": Student,
	"pro":     Pro,
	"paid":    Pro, // legacy records may carry the old name indefinitely
}

// Get resolves a plan by name. The legacy "paid" alias maps to pro and
// unknown names fall back to free.
func Get(name string) Plan {
	if p, ok := catalog[name]; ok {
		return p
	}
	return Free
}

// Normalize maps the legacy "paid" alias to its current name.
func Normalize(name string) string {
	if name == "paid" {
		return "pro"
	}
	return name
}

// IsValid reports whether name resolves to a known tier, alias included.
func IsValid(name string) bool {
	_, ok := catalog[name]
	return ok
}
