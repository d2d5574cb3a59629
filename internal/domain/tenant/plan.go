package tenant

import (
	"fmt"
	"time"
)

// Plan is a subscription tier.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// Unlimited is the notes limit sentinel for plans without a cap.
const Unlimited = -1

// FreeNotesLimit is the number of active notes a free tenant may hold.
const FreeNotesLimit = 3

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPro
}

// Subscription is the plan state of a tenant.
// Plan pro always pairs with Unlimited and a set UpgradedAt; free pairs
// with FreeNotesLimit and a nil UpgradedAt.
type Subscription struct {
	Plan       Plan       `json:"plan"`
	NotesLimit int        `json:"notes_limit"`
	UpgradedAt *time.Time `json:"upgraded_at,omitempty"`
}

// Unlimited reports whether the subscription has no note cap.
func (s Subscription) Unlimited() bool {
	return s.NotesLimit == Unlimited
}

// DeriveLimit returns the notes limit implied by plan.
func DeriveLimit(plan Plan) (int, error) {
	switch plan {
	case PlanFree:
		return FreeNotesLimit, nil
	case PlanPro:
		return Unlimited, nil
	default:
		return 0, fmt.Errorf("unknown plan %q", plan)
	}
}

// NewSubscription builds a consistent subscription for plan. now is
// recorded as the upgrade time for paid plans.
func NewSubscription(plan Plan, now time.Time) (Subscription, error) {
	limit, err := DeriveLimit(plan)
	if err != nil {
		return Subscription{}, err
	}
	sub := Subscription{Plan: plan, NotesLimit: limit}
	if plan == PlanPro {
		t := now.UTC()
		sub.UpgradedAt = &t
	}
	return sub, nil
}

// PlanInfo describes a plan in the public catalogue.
type PlanInfo struct {
	Name       string   `json:"name"`
	Price      float64  `json:"price"`
	NotesLimit int      `json:"notes_limit"`
	Features   []string `json:"features"`
}

// Catalogue returns the public plan catalogue keyed by plan.
func Catalogue() map[Plan]PlanInfo {
	return map[Plan]PlanInfo{
		PlanFree: {
			Name:       "Free",
			Price:      0,
			NotesLimit: FreeNotesLimit,
			Features:   []string{"Up to 3 notes", "Basic note editing", "Search functionality", "Archive notes"},
		},
		PlanPro: {
			Name:       "Pro",
			Price:      9.99,
			NotesLimit: Unlimited,
			Features: []string{
				"Unlimited notes",
				"Advanced note editing",
				"Search functionality",
				"Archive notes",
				"Priority support",
				"Export functionality",
			},
		},
	}
}
