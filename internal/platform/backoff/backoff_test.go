package backoff

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponential(t *testing.T) {
	base := 10 * time.Millisecond

	assert.Equal(t, base, Exponential(base, 0))
	assert.Equal(t, 40*time.Millisecond, Exponential(base, 2))
	assert.Equal(t, base, Exponential(base, -3))
	assert.Equal(t, time.Duration(0), Exponential(0, 5))
	assert.Equal(t, time.Duration(math.MaxInt64), Exponential(time.Hour, 100))
}

func TestFullJitter(t *testing.T) {
	assert.Equal(t, time.Duration(0), FullJitter(0))

	for i := 0; i < 100; i++ {
		d := ExponentialWithJitter(time.Millisecond, 3)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, 8*time.Millisecond)
	}
}

func TestSleepWithContext(t *testing.T) {
	assert.NoError(t, SleepWithContext(context.Background(), 0))
	assert.NoError(t, SleepWithContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := SleepWithContext(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
