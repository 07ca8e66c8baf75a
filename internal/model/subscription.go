package model

import (
	"fmt"
	"time"
)

type Subscription struct {
	ID                     string     `db:"id" json:"id"`
	UserID                 string     `db:"user_id" json:"user_id"`
	PlanID                 string     `db:"plan_id" json:"plan_id"`
	Status                 string     `db:"status" json:"status"`
	Provider               string     `db:"provider" json:"provider"`
	ProviderCustomerID     *string    `db:"provider_customer_id" json:"-"`
	ProviderSubscriptionID *string    `db:"provider_subscription_id" json:"-"`
	CurrentPeriodEnd       *time.Time `db:"current_period_end" json:"current_period_end,omitempty"`
	Amount                 *int       `db:"amount" json:"amount,omitempty"`
	Currency               string     `db:"currency" json:"currency"`
	Interval               *string    `db:"interval" json:"interval,omitempty"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
)

const (
	ProviderPolar  = "polar"
	ProviderStripe = "stripe"
)

const (
	PlanFree    = "free"
	PlanPremium = "premium"
	PlanTeam    = "team"
)

const (
	IntervalMonthly = "monthly"
	IntervalYearly  = "yearly"
)

const (
	FeatureExport           = "export"
	FeatureCreateChallenges = "create_challenges"
	FeatureCalendarSync     = "calendar_sync"
)

// planLimits holds per plan quotas; -1 means unlimited.
var planLimits = map[string]struct {
	goals      int
	challenges int
}{
	PlanFree:    {goals: 3, challenges: 1},
	PlanPremium: {goals: 25, challenges: 10},
	PlanTeam:    {goals: -1, challenges: -1},
}

var planFeatures = map[string][]string{
	PlanFree:    {FeatureCreateChallenges},
	PlanPremium: {FeatureCreateChallenges, FeatureExport, FeatureCalendarSync},
	PlanTeam:    {FeatureCreateChallenges, FeatureExport, FeatureCalendarSync},
}

func ValidPlan(plan string) bool {
	_, ok := planLimits[plan]
	return ok
}

func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

func (s *Subscription) IsPaid() bool {
	return s.PlanID != PlanFree && s.IsActive()
}

// effectivePlan is the plan whose quotas apply right now.
func (s *Subscription) effectivePlan() string {
	if s == nil || !s.IsActive() {
		return PlanFree
	}
	if _, ok := planLimits[s.PlanID]; !ok {
		return PlanFree
	}
	return s.PlanID
}

// GoalLimit returns the maximum number of active goals, -1 for unlimited.
func (s *Subscription) GoalLimit() int {
	return planLimits[s.effectivePlan()].goals
}

// ChallengeLimit returns the maximum number of running challenges a user may own.
func (s *Subscription) ChallengeLimit() int {
	return planLimits[s.effectivePlan()].challenges
}

func (s *Subscription) HasFeature(feature string) bool {
	for _, f := range planFeatures[s.effectivePlan()] {
		if f == feature {
			return true
		}
	}
	return false
}

func (s *Subscription) FormatPrice() string {
	if s.Amount == nil || *s.Amount == 0 {
		return ""
	}

	symbol := map[string]string{"usd": "$", "eur": "€", "gbp": "£"}[s.Currency]
	if symbol == "" {
		symbol = "$"
	}

	per := "month"
	if s.Interval != nil && *s.Interval == IntervalYearly {
		per = "year"
	}

	return fmt.Sprintf("%s%.2f/%s", symbol, float64(*s.Amount)/100.0, per)
}
