package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func pgError(code string) error {
	return &pgconn.PgError{Code: code, Message: "boom"}
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, IsUniqueViolation(pgError("23505")))
	require.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", pgError("23505"))), "wrapped errors match")
	require.False(t, IsUniqueViolation(pgError("40001")))
	require.False(t, IsUniqueViolation(errors.New("boom")))
	require.False(t, IsUniqueViolation(nil))
}

func TestIsSerializationFailure(t *testing.T) {
	require.True(t, IsSerializationFailure(pgError("40001")))
	require.True(t, IsSerializationFailure(pgError("40P01")), "deadlocks are retryable too")
	require.True(t, IsSerializationFailure(fmt.Errorf("commit: %w", pgError("40001"))))
	require.False(t, IsSerializationFailure(pgError("23505")))
	require.False(t, IsSerializationFailure(errors.New("boom")))
	require.False(t, IsSerializationFailure(nil))
}

func TestRetryRerunsSerializationFailureOnce(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func() error {
		attempts++
		if attempts == 1 {
			return pgError("40001")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
}

func TestRetryGivesUpAfterSecondFailure(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func() error {
		attempts++
		return pgError("40001")
	})
	require.True(t, IsSerializationFailure(err))
	require.Equal(t, 2, attempts)
}

func TestRetryDoesNotRerunOtherErrors(t *testing.T) {
	attempts := 0
	sentinel := errors.New("not retryable")
	err := Retry(context.Background(), func() error {
		attempts++
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 1, attempts)
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Retry(ctx, func() error {
		attempts++
		cancel()
		return pgError("40001")
	})
	require.True(t, IsSerializationFailure(err))
	require.Equal(t, 1, attempts, "no re-run once the request is gone")
}
