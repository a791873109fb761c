package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-wakeup-service/pkg/wakeup"
)

// WakeupSender is the submission side of a sender: non-blocking, no error
// return. Satisfied by *sender.Sender.
type WakeupSender interface {
	Send(msg wakeup.Message)
}

// NewProcessor creates the logic that resolves a wakeup request to a
// concrete device token and routes it to the sender for that device's
// platform. Unknown accounts, tokenless devices and unknown platforms are
// dropped (ack), store failures are returned (nack, retryable).
func NewProcessor(
	senders map[string]WakeupSender,
	store wakeup.AccountStore,
	logger *slog.Logger,
) messagepipeline.StreamProcessor[WakeupRequest] {

	return func(ctx context.Context, original messagepipeline.Message, request *WakeupRequest) error {
		procLogger := logger.With(
			"account", request.Account,
			"device_id", request.DeviceID,
			"pubsub_msg_id", original.ID,
		)

		account, err := store.Lookup(ctx, request.AccountURN)
		if err != nil {
			if errors.Is(err, wakeup.ErrAccountNotFound) {
				procLogger.Info("Account unknown; dropping wakeup")
				return nil
			}
			procLogger.Error("Account lookup failed", "err", err)
			return err
		}

		device := account.Device(request.DeviceID)
		if device == nil {
			procLogger.Info("Device unknown; dropping wakeup")
			return nil
		}
		if device.PushToken == "" {
			procLogger.Info("Device has no push token; dropping wakeup")
			return nil
		}

		snd, ok := senders[device.Platform]
		if !ok {
			procLogger.Warn("No sender for device platform; dropping wakeup", "platform", device.Platform)
			return nil
		}

		snd.Send(wakeup.Message{
			Token:    device.PushToken,
			Account:  account.ID,
			DeviceID: device.ID,
			Kind:     request.WakeupKind,
		})
		return nil
	}
}
