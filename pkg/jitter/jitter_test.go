package jitter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDuration_WithinRange(t *testing.T) {
	base := 2 * time.Second
	for i := 0; i < 100; i++ {
		d := Duration(base, DefaultJitter)
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+time.Duration(DefaultJitter*float64(base)))
	}
}

func TestDuration_ZeroFactor(t *testing.T) {
	base := 500 * time.Millisecond
	assert.Equal(t, base, Duration(base, 0))
}

func TestExponentialBackoff_Doubles(t *testing.T) {
	base := time.Second
	max := time.Minute

	for attempt, want := range []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	} {
		got := ExponentialBackoff(base, max, attempt, 0)
		assert.Equal(t, want, got, "attempt %d", attempt)
	}
}

func TestExponentialBackoff_CappedAtMax(t *testing.T) {
	base := 2 * time.Second
	max := 30 * time.Second

	got := ExponentialBackoff(base, max, 10, 0)
	assert.Equal(t, max, got)

	// Джиттер применяется поверх потолка
	jittered := ExponentialBackoff(base, max, 10, DefaultJitter)
	assert.GreaterOrEqual(t, jittered, max)
	assert.LessOrEqual(t, jittered, max+time.Duration(DefaultJitter*float64(max)))
}
