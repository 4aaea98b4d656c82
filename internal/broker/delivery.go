package broker

import (
	"context"
	"errors"
	"time"

	"logscrub/internal/config"
	"logscrub/internal/constants"
	apperrors "logscrub/pkg/errors"
	"logscrub/pkg/models"
	"logscrub/pkg/retry"
)

// deliveryFailure describes an envelope the broker has given up on.
// reason is one of the constants.DLQReason* values and travels with
// the message to the dead-letter topic.
type deliveryFailure struct {
	err      error
	reason   string
	attempts int
}

// deliver runs handler against env under the redelivery contract:
// every attempt gets its own ack deadline, permanent errors stop the
// attempts immediately, and transient errors are retried with backoff
// until the policy's attempt bound. A nil return means the envelope
// was acknowledged.
func deliver(ctx context.Context, env models.Envelope, handler HandlerFunc, policy retry.Policy, ackDeadline time.Duration, onRetry func(attempt int, err error, nextDelay time.Duration)) *deliveryFailure {
	attempts := 0
	deadlineExpired := false

	attempt := func() (err error) {
		attempts++
		attemptCtx := ctx
		cancel := func() {}
		if ackDeadline > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, ackDeadline)
		}
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				err = apperrors.RecoverPanic(r)
			}
		}()

		err = handler(attemptCtx, env)
		// Distinguish the per-attempt deadline from an outer shutdown.
		deadlineExpired = err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
		return err
	}

	err := retry.RetryWithCallback(ctx, policy, attempt, onRetry)
	if err == nil {
		return nil
	}

	reason := constants.DLQReasonAttemptsExhausted
	switch {
	case apperrors.IsPermanent(err) || retry.IsFatal(err):
		reason = constants.DLQReasonPermanentFailure
	case deadlineExpired:
		reason = constants.DLQReasonAckDeadlineExpired
	}

	return &deliveryFailure{err: err, reason: reason, attempts: attempts}
}

// retryPolicy builds the delivery policy from broker config, filling
// unset fields from the defaults.
func retryPolicy(cfg config.RetryConfig) retry.Policy {
	policy := retry.Policy{
		MaxAttempts:     constants.DefaultMaxDeliveryAttempts,
		InitialInterval: constants.DefaultRetryInitialInterval,
		MaxInterval:     constants.DefaultRetryMaxInterval,
		Multiplier:      constants.DefaultRetryMultiplier,
	}

	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialInterval > 0 {
		policy.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		policy.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		policy.Multiplier = cfg.Multiplier
	}

	return policy
}
