package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewProfitabilityRecord_DerivesTargetHours(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := NewProfitabilityRecord("p1", "o1", "c1", 100, 1000, now)

	assert.Equal(t, 10.0, p.TargetHours)
	assert.Equal(t, 0.0, p.ActualHours)
	assert.Equal(t, 0.0, p.Cost)
	assert.Equal(t, 1000.0, p.Profit)
	assert.Equal(t, 100.0, p.Profitability)
	assert.Equal(t, 10.0, p.RemainingHours)
	assert.Equal(t, now, p.UpdatedAt)
}

func TestProfitabilityRecord_AddHours(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := NewProfitabilityRecord("p1", "o1", "c1", 100, 1000, now)

	p = p.AddHours(5, now.Add(time.Hour))

	assert.Equal(t, 5.0, p.ActualHours)
	assert.Equal(t, 500.0, p.Cost)
	assert.Equal(t, 500.0, p.Profit)
	assert.Equal(t, 50.0, p.Profitability)
	assert.Equal(t, 5.0, p.RemainingHours)
	assert.Equal(t, now.Add(time.Hour), p.UpdatedAt)
}

func TestProfitabilityRecord_Overrun(t *testing.T) {
	now := time.Now()
	p := NewProfitabilityRecord("p1", "o1", "c1", 100, 1000, now).AddHours(12.5, now)

	assert.Equal(t, -2.5, p.RemainingHours)
	assert.Equal(t, -250.0, p.Profit)
	assert.Equal(t, -25.0, p.Profitability)
}

func TestProfitabilityRecord_ZeroRevenue(t *testing.T) {
	now := time.Now()
	p := NewProfitabilityRecord("p1", "o1", "c1", 80, 0, now).AddHours(2, now)

	assert.Equal(t, 0.0, p.Profitability)
	assert.Equal(t, -160.0, p.Profit)
	assert.Equal(t, 0.0, p.TargetHours)
	assert.Equal(t, -2.0, p.RemainingHours)
}

func TestProfitabilityRecord_ZeroRate(t *testing.T) {
	p := NewProfitabilityRecord("p1", "o1", "c1", 0, 500, time.Now())

	assert.Equal(t, 0.0, p.TargetHours)
	assert.Equal(t, 500.0, p.Profit)
}

func TestProfitabilityRecord_IncrementsDoNotDrift(t *testing.T) {
	now := time.Now()
	p := NewProfitabilityRecord("p1", "o1", "c1", 90, 900, now)
	for range 36 {
		p = p.AddHours(SecondsToHours(600), now)
	}

	assert.InDelta(t, 6.0, p.ActualHours, 1e-9)
	assert.Equal(t, 540.0, p.Cost)
	assert.Equal(t, 4.0, p.RemainingHours)
}

func TestProfitabilityRecord_Reprice(t *testing.T) {
	now := time.Now()
	p := NewProfitabilityRecord("p1", "o1", "c1", 100, 1000, now).AddHours(4, now)

	p = p.Reprice(50, 1000, now)

	assert.Equal(t, 4.0, p.ActualHours)
	assert.Equal(t, 20.0, p.TargetHours)
	assert.Equal(t, 200.0, p.Cost)
	assert.Equal(t, 80.0, p.Profitability)
	assert.Equal(t, 16.0, p.RemainingHours)
}
