package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	delays []time.Duration
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func testPolicy(r *recorder, attempts int) Policy {
	return Policy{
		MaxAttempts: attempts,
		BaseDelay:   2 * time.Second,
		MaxJitter:   time.Second,
		Sleep:       r.sleep,
		Jitter:      func(time.Duration) time.Duration { return 250 * time.Millisecond },
	}
}

func TestDo_SucceedsOnAttempt(t *testing.T) {
	tests := []struct {
		name       string
		succeedAt  int
		wantCalls  int
		wantDelays []time.Duration
	}{
		{
			name:      "first attempt",
			succeedAt: 1,
			wantCalls: 1,
		},
		{
			name:       "second attempt",
			succeedAt:  2,
			wantCalls:  2,
			wantDelays: []time.Duration{2250 * time.Millisecond},
		},
		{
			name:       "last attempt",
			succeedAt:  3,
			wantCalls:  3,
			wantDelays: []time.Duration{2250 * time.Millisecond, 4250 * time.Millisecond},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			calls := 0

			got, err := Do(context.Background(), testPolicy(rec, 3), func(context.Context) (string, error) {
				calls++
				if calls < tt.succeedAt {
					return "", fmt.Errorf("attempt %d failed", calls)
				}
				return "ok", nil
			})

			require.NoError(t, err)
			assert.Equal(t, "ok", got)
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantDelays, rec.delays)
		})
	}
}

func TestDo_Exhausted(t *testing.T) {
	rec := &recorder{}
	calls := 0
	errTimeout := errors.New("navigation timeout")

	_, err := Do(context.Background(), testPolicy(rec, 3), func(context.Context) (int, error) {
		calls++
		if calls == 3 {
			return 0, errTimeout
		}
		return 0, errors.New("earlier failure")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, rec.delays, 2)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errTimeout)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	p := Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	err := Run(ctx, p, func(context.Context) error {
		calls++
		return errors.New("boom")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{BaseDelay: 2 * time.Second}

	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(3))
	assert.Equal(t, 2*time.Second, p.Delay(0))
}

func TestRandomJitterBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		j := randomJitter(time.Second)
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.Less(t, j, time.Second)
	}
	assert.Equal(t, time.Duration(0), randomJitter(0))
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.BaseDelay)
	assert.Equal(t, time.Second, p.MaxJitter)
}
