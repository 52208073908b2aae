package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fptr(v float64) *float64 { return &v }
func bptr(v bool) *bool       { return &v }
func iptr(v int) *int         { return &v }

func TestResolvePrecedence(t *testing.T) {
	def := Limits{
		Enforce:        true,
		MaxDailyLoss:   1000,
		MaxPositionQty: 100,
		MaxOpenOrders:  10,
	}
	user := &Overrides{
		MaxDailyLoss:   fptr(2000),
		MaxPositionQty: fptr(200),
	}
	strat := &Overrides{
		MaxPositionQty: fptr(50),
	}

	lim := Resolve(def, user, strat)

	// strategy > user > default, field by field
	assert.Equal(t, 50.0, lim.MaxPositionQty)
	assert.Equal(t, 2000.0, lim.MaxDailyLoss)
	assert.Equal(t, 10, lim.MaxOpenOrders)
	assert.True(t, lim.Enforce)
}

func TestResolveNilLayers(t *testing.T) {
	def := Limits{Enforce: true, MaxDailyLoss: 1000}

	assert.Equal(t, def, Resolve(def, nil, nil))

	strat := &Overrides{
		Enforce:       bptr(false),
		MaxOpenOrders: iptr(3),
		Cutoff:        durptr(15 * time.Hour),
	}
	lim := Resolve(def, nil, strat)
	assert.False(t, lim.Enforce)
	assert.Equal(t, 3, lim.MaxOpenOrders)
	assert.Equal(t, 15*time.Hour, lim.Cutoff)
	assert.Equal(t, 1000.0, lim.MaxDailyLoss)
}

func durptr(d time.Duration) *time.Duration { return &d }
