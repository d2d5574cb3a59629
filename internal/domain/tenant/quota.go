package tenant

import (
	"fmt"
	"math"
	"time"
)

// SuggestUpgradeAt is the free-plan usage percentage from which an upgrade is suggested.
const SuggestUpgradeAt = 80

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Current   int    `json:"current"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Unlimited bool   `json:"unlimited"`
	Reason    string `json:"reason"`
}

// Decide applies the admission rule for one more active note given the
// current active count.
func Decide(sub Subscription, active int) Decision {
	if sub.Unlimited() {
		return Decision{
			Allowed:   true,
			Current:   active,
			Limit:     Unlimited,
			Remaining: Unlimited,
			Unlimited: true,
			Reason:    "Pro plan - unlimited notes",
		}
	}
	d := Decision{
		Allowed:   active < sub.NotesLimit,
		Current:   active,
		Limit:     sub.NotesLimit,
		Remaining: max(0, sub.NotesLimit-active),
	}
	if d.Allowed {
		d.Reason = fmt.Sprintf("%d notes remaining on Free plan", d.Remaining)
	} else {
		d.Reason = fmt.Sprintf("Free plan limit of %d notes reached", sub.NotesLimit)
	}
	return d
}

// Usage summarizes a tenant's note consumption against its plan.
type Usage struct {
	Plan            Plan       `json:"plan"`
	ActiveNotes     int        `json:"active_notes"`
	ArchivedNotes   int        `json:"archived_notes"`
	TotalNotes      int        `json:"total_notes"`
	Limit           int        `json:"limit"`
	Unlimited       bool       `json:"unlimited"`
	UpgradedAt      *time.Time `json:"upgraded_at,omitempty"`
	UsagePercentage *int       `json:"usage_percentage,omitempty"`
	Remaining       *int       `json:"remaining,omitempty"`
}

// NewUsage computes usage for sub. Percentage and remaining are only set
// for capped plans.
func NewUsage(sub Subscription, active, archived int) Usage {
	u := Usage{
		Plan:          sub.Plan,
		ActiveNotes:   active,
		ArchivedNotes: archived,
		TotalNotes:    active + archived,
		Limit:         sub.NotesLimit,
		Unlimited:     sub.Unlimited(),
		UpgradedAt:    sub.UpgradedAt,
	}
	if !u.Unlimited && sub.NotesLimit > 0 {
		pct := UsagePercentage(active, sub.NotesLimit)
		rem := max(0, sub.NotesLimit-active)
		u.UsagePercentage = &pct
		u.Remaining = &rem
	}
	return u
}

// UsagePercentage returns round(active/limit*100).
func UsagePercentage(active, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Round(float64(active) / float64(limit) * 100))
}

// Suggestion is the result of ShouldSuggestUpgrade.
type Suggestion struct {
	Suggest bool   `json:"suggest"`
	Reason  string `json:"reason"`
	Usage   *Usage `json:"usage,omitempty"`
}

// ShouldSuggestUpgrade recommends the pro plan when free usage reaches SuggestUpgradeAt.
func ShouldSuggestUpgrade(u Usage) Suggestion {
	if u.Unlimited {
		return Suggestion{Reason: "Already on Pro plan"}
	}
	if u.UsagePercentage != nil && *u.UsagePercentage >= SuggestUpgradeAt {
		return Suggestion{
			Suggest: true,
			Reason:  fmt.Sprintf("You've used %d%% of your Free plan limit", *u.UsagePercentage),
			Usage:   &u,
		}
	}
	return Suggestion{Reason: "Usage is within comfortable limits"}
}

// CheckDowngrade reports whether a tenant with active notes fits the free plan.
func CheckDowngrade(active int) (ok bool, excess int) {
	if active > FreeNotesLimit {
		return false, active - FreeNotesLimit
	}
	return true, 0
}
