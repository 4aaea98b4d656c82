package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logscrub/internal/constants"
	apperrors "logscrub/pkg/errors"
	"logscrub/pkg/models"
	"logscrub/pkg/retry"
)

func testEnvelope() models.Envelope {
	return models.Envelope{
		TenantID:     "acme",
		LogID:        "log_0123456789abcdef0123456789abcdef",
		OriginalText: "contact me at 555-1234",
		Source:       models.SourceJSONUpload,
		ReceivedAt:   time.Now().UTC(),
	}
}

func fastPolicy(maxAttempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts:     maxAttempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestDeliverSuccessOnFirstAttempt(t *testing.T) {
	calls := 0
	handler := func(ctx context.Context, env models.Envelope) error {
		calls++
		return nil
	}

	failure := deliver(context.Background(), testEnvelope(), handler, fastPolicy(5), time.Second, nil)

	assert.Nil(t, failure)
	assert.Equal(t, 1, calls)
}

func TestDeliverRetriesThenSucceeds(t *testing.T) {
	calls := 0
	handler := func(ctx context.Context, env models.Envelope) error {
		calls++
		if calls < 3 {
			return errors.New("transient failure")
		}
		return nil
	}

	failure := deliver(context.Background(), testEnvelope(), handler, fastPolicy(5), time.Second, nil)

	assert.Nil(t, failure)
	assert.Equal(t, 3, calls)
}

func TestDeliverExhaustsAttemptBound(t *testing.T) {
	calls := 0
	retries := 0
	handler := func(ctx context.Context, env models.Envelope) error {
		calls++
		return errors.New("transient failure")
	}

	failure := deliver(context.Background(), testEnvelope(), handler, fastPolicy(5), time.Second, func(attempt int, err error, nextDelay time.Duration) {
		retries++
	})

	require.NotNil(t, failure)
	assert.Equal(t, 5, calls)
	assert.Equal(t, 5, failure.attempts)
	assert.Equal(t, 4, retries)
	assert.Equal(t, constants.DLQReasonAttemptsExhausted, failure.reason)
}

func TestDeliverPermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	handler := func(ctx context.Context, env models.Envelope) error {
		calls++
		return apperrors.ErrValidation.WithMessage("tenant_id is empty")
	}

	failure := deliver(context.Background(), testEnvelope(), handler, fastPolicy(5), time.Second, nil)

	require.NotNil(t, failure)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, failure.attempts)
	assert.Equal(t, constants.DLQReasonPermanentFailure, failure.reason)
}

func TestDeliverPanicIsPermanent(t *testing.T) {
	calls := 0
	handler := func(ctx context.Context, env models.Envelope) error {
		calls++
		panic("boom")
	}

	failure := deliver(context.Background(), testEnvelope(), handler, fastPolicy(5), time.Second, nil)

	require.NotNil(t, failure)
	assert.Equal(t, 1, calls)
	assert.Equal(t, constants.DLQReasonPermanentFailure, failure.reason)
	assert.Contains(t, failure.err.Error(), "boom")
}

func TestDeliverAckDeadlineExpired(t *testing.T) {
	handler := func(ctx context.Context, env models.Envelope) error {
		<-ctx.Done()
		return ctx.Err()
	}

	failure := deliver(context.Background(), testEnvelope(), handler, fastPolicy(2), 10*time.Millisecond, nil)

	require.NotNil(t, failure)
	assert.Equal(t, 2, failure.attempts)
	assert.Equal(t, constants.DLQReasonAckDeadlineExpired, failure.reason)
}

func TestDeliverHonorsOuterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	handler := func(ctx context.Context, env models.Envelope) error {
		calls++
		cancel()
		return errors.New("transient failure")
	}

	failure := deliver(ctx, testEnvelope(), handler, fastPolicy(5), time.Second, nil)

	require.NotNil(t, failure)
	assert.Equal(t, 1, calls)
}
