package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockService is a mock implementation of Service.
type mockService struct {
	calls    int
	creditFn func(ctx context.Context, e Entry, call int) error
}

func (m *mockService) Credit(ctx context.Context, e Entry) error {
	m.calls++
	if m.creditFn != nil {
		return m.creditFn(ctx, e, m.calls)
	}
	return nil
}

func TestSettler_RetriesUnavailable(t *testing.T) {
	svc := &mockService{
		creditFn: func(ctx context.Context, e Entry, call int) error {
			if call < 3 {
				return unavailable(errors.New("connection reset"), "post credit")
			}
			return nil
		},
	}
	s := NewSettler(svc, time.Millisecond, time.Second)

	err := s.Settle(context.Background(), testEntry())

	require.NoError(t, err)
	assert.Equal(t, 3, svc.calls)
}

func TestSettler_InvalidAccountIsPermanent(t *testing.T) {
	svc := &mockService{
		creditFn: func(ctx context.Context, e Entry, call int) error {
			return ErrInvalidAccount
		},
	}
	s := NewSettler(svc, time.Millisecond, time.Second)

	err := s.Settle(context.Background(), testEntry())

	assert.True(t, errors.Is(err, ErrInvalidAccount))
	assert.Equal(t, 1, svc.calls, "permanent failures are not retried")
}

func TestSettler_GivesUpAfterMaxElapsed(t *testing.T) {
	svc := &mockService{
		creditFn: func(ctx context.Context, e Entry, call int) error {
			return unavailable(errors.New("connection refused"), "post credit")
		},
	}
	s := NewSettler(svc, time.Millisecond, 30*time.Millisecond)

	err := s.Settle(context.Background(), testEntry())

	require.Error(t, err)
	assert.True(t, IsRetryable(err), "the last transient failure is returned")
	assert.Greater(t, svc.calls, 1)
}

func TestSettler_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := &mockService{
		creditFn: func(ctx context.Context, e Entry, call int) error {
			cancel()
			return unavailable(errors.New("timeout"), "post credit")
		},
	}
	s := NewSettler(svc, 10*time.Millisecond, 0)

	err := s.Settle(ctx, testEntry())

	require.Error(t, err)
	assert.Equal(t, 1, svc.calls)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(unavailable(errors.New("boom"), "x")))
	assert.False(t, IsRetryable(ErrInvalidAccount))
	assert.False(t, IsRetryable(nil))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "claim:p1:bob", ClaimKey("p1", "bob"))
	assert.Equal(t, "refund:p1", RefundKey("p1"))
	assert.Equal(t, "send:p1", SendKey("p1"))
}
