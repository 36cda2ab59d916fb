package model

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ProfitabilityRecord is the per owner+client billing aggregate.
// Cost, Profit, Profitability and RemainingHours are derived
type ProfitabilityRecord struct {
	ID             string    `json:"id" bson:"_id"`
	OwnerID        string    `json:"owner_id" bson:"ownerId"`
	ClientID       string    `json:"client_id" bson:"clientId"`
	HourlyRate     float64   `json:"hourly_rate" bson:"hourlyRate"`
	TargetHours    float64   `json:"target_hours" bson:"targetHours"`
	ActualHours    float64   `json:"actual_hours" bson:"actualHours"`
	Revenue        float64   `json:"revenue" bson:"revenue"`
	Cost           float64   `json:"cost" bson:"cost"`
	Profit         float64   `json:"profit" bson:"profit"`
	Profitability  float64   `json:"profitability" bson:"profitability"`
	RemainingHours float64   `json:"remaining_hours" bson:"remainingHours"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updatedAt"`
}

// NewProfitabilityRecord derives the initial record for a client whose
// monthly budget is treated as revenue. targetHours = budget / rate
func NewProfitabilityRecord(id, ownerID, clientID string, hourlyRate, monthlyBudget float64, now time.Time) ProfitabilityRecord {
	p := ProfitabilityRecord{
		ID:       id,
		OwnerID:  ownerID,
		ClientID: clientID,
	}
	return p.Reprice(hourlyRate, monthlyBudget, now)
}

// Reprice changes rate and budget, keeping the hours already tracked
func (p ProfitabilityRecord) Reprice(hourlyRate, monthlyBudget float64, now time.Time) ProfitabilityRecord {
	p.HourlyRate = hourlyRate
	p.Revenue = monthlyBudget
	p.TargetHours = 0
	if hourlyRate > 0 {
		target := decimal.NewFromFloat(monthlyBudget).Div(decimal.NewFromFloat(hourlyRate))
		p.TargetHours = target.Round(4).InexactFloat64()
	}
	p.UpdatedAt = now
	return p.Recalculate()
}

// AddHours accumulates tracked hours and recomputes the derived values
func (p ProfitabilityRecord) AddHours(delta float64, now time.Time) ProfitabilityRecord {
	hours := decimal.NewFromFloat(p.ActualHours).Add(decimal.NewFromFloat(delta))
	p.ActualHours = hours.InexactFloat64()
	p.UpdatedAt = now
	return p.Recalculate()
}

// Recalculate derives cost, profit, profitability% and remaining hours
// from rate, actual hours, revenue and target hours
func (p ProfitabilityRecord) Recalculate() ProfitabilityRecord {
	rate := decimal.NewFromFloat(p.HourlyRate)
	actual := decimal.NewFromFloat(p.ActualHours)
	revenue := decimal.NewFromFloat(p.Revenue)

	cost := rate.Mul(actual)
	profit := revenue.Sub(cost)

	pct := decimal.Zero
	if revenue.IsPositive() {
		pct = profit.Mul(hundred).Div(revenue)
	}

	p.Cost = cost.Round(2).InexactFloat64()
	p.Profit = profit.Round(2).InexactFloat64()
	p.Profitability = pct.Round(2).InexactFloat64()
	p.RemainingHours = decimal.NewFromFloat(p.TargetHours).Sub(actual).Round(4).InexactFloat64()
	return p
}
