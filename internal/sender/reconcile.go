package sender

import (
	"context"
	"errors"
	"time"

	"github.com/tinywideclouds/go-wakeup-service/pkg/wakeup"
)

// freshnessWindow is how recently a device registration must have been
// written for a gateway failure report against it to be treated as possibly
// stale. A report older than the window is trusted; one inside it may have
// raced a legitimate re-registration that is still settling, so it is
// ignored.
const freshnessWindow = 10 * time.Second

// reconcile applies one delivery outcome to registration state. It runs only
// on the worker goroutine. Nothing here is fatal: store failures are logged,
// the mutation is abandoned, and the lane keeps running.
func (s *Sender) reconcile(outcome wakeup.Outcome) {
	switch outcome.Code {
	case wakeup.OutcomeDelivered:
		s.metrics.MarkSuccess()
	case wakeup.OutcomeUnregistered, wakeup.OutcomeInvalidToken:
		s.clearRegistration(outcome)
	case wakeup.OutcomeCanonicalID:
		s.rotateRegistration(outcome)
	default:
		s.reportProviderError(outcome)
	}
}

func (s *Sender) clearRegistration(outcome wakeup.Outcome) {
	msg := outcome.Message
	s.logger.Info("Got unregistered notice from gateway",
		"account", msg.Account.String(),
		"device_id", msg.DeviceID,
	)

	ctx := context.Background()
	if account, device := s.accountForOutcome(ctx, msg); account != nil {
		device.PushToken = ""
		if err := s.store.Persist(ctx, account); err != nil {
			s.logger.Error("Failed to persist cleared registration",
				"err", err,
				"account", msg.Account.String(),
				"device_id", msg.DeviceID,
			)
		}
	}

	// Marked whether or not the guard let the mutation through: the outcome
	// was observed even when it is too stale to act on.
	s.metrics.MarkUnregistered()
}

func (s *Sender) rotateRegistration(outcome wakeup.Outcome) {
	msg := outcome.Message
	s.logger.Warn("Received canonical registration id from gateway",
		"canonical", outcome.CanonicalToken,
		"original", msg.Token,
		"account", msg.Account.String(),
		"device_id", msg.DeviceID,
	)

	ctx := context.Background()
	if account, device := s.accountForOutcome(ctx, msg); account != nil {
		device.PushToken = outcome.CanonicalToken
		if err := s.store.Persist(ctx, account); err != nil {
			s.logger.Error("Failed to persist rotated registration",
				"err", err,
				"account", msg.Account.String(),
				"device_id", msg.DeviceID,
			)
		}
	}

	s.metrics.MarkCanonical()
}

func (s *Sender) reportProviderError(outcome wakeup.Outcome) {
	msg := outcome.Message
	s.logger.Warn("Unrecoverable gateway error",
		"error_code", outcome.ErrorCode,
		"token", msg.Token,
		"account", msg.Account.String(),
		"device_id", msg.DeviceID,
	)
	s.metrics.MarkFailure()
}

// accountForOutcome is the race guard. It returns the account and device the
// outcome may mutate, or (nil, nil) when the outcome must be discarded:
// unknown account, unknown device, a token that no longer matches (the
// device re-registered since this wakeup was sent), or a registration write
// more recent than the freshness window. A stale outcome applied after a
// legitimate update is therefore always a no-op.
func (s *Sender) accountForOutcome(ctx context.Context, msg wakeup.Message) (*wakeup.Account, *wakeup.Device) {
	account, err := s.store.Lookup(ctx, msg.Account)
	if err != nil {
		if !errors.Is(err, wakeup.ErrAccountNotFound) {
			s.logger.Error("Account lookup failed",
				"err", err,
				"account", msg.Account.String(),
			)
		}
		return nil, nil
	}

	device := account.Device(msg.DeviceID)
	if device == nil {
		return nil, nil
	}

	if device.PushToken != msg.Token {
		s.logger.Debug("Outcome token no longer matches device; discarding",
			"account", msg.Account.String(),
			"device_id", msg.DeviceID,
		)
		return nil, nil
	}

	if device.LastPushMillis != 0 &&
		s.now().UnixMilli() <= device.LastPushMillis+freshnessWindow.Milliseconds() {
		s.logger.Debug("Device registration is fresher than the outcome; discarding",
			"account", msg.Account.String(),
			"device_id", msg.DeviceID,
		)
		return nil, nil
	}

	return account, device
}
