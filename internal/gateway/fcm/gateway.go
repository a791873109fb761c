// Package fcm adapts Firebase Cloud Messaging to the wakeup.PushGateway
// contract.
package fcm

import (
	"context"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/messaging"

	"github.com/tinywideclouds/go-wakeup-service/pkg/wakeup"
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// This interface allows us to mock the client for unit testing.
type MessagingClient interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

type Gateway struct {
	client MessagingClient
	logger *slog.Logger
}

// NewGateway accepts the concrete client but stores it as the interface.
// Note: *messaging.Client automatically satisfies MessagingClient.
func NewGateway(client MessagingClient, logger *slog.Logger) *Gateway {
	return &Gateway{
		client: client,
		logger: logger.With("component", "FCMGateway"),
	}
}

// Submit sends a high-priority, data-only wakeup to a single token and maps
// the SDK's error taxonomy onto delivery outcomes. Errors the SDK does not
// classify are returned as transport failures.
//
// The HTTP v1 API never reports canonical registration ids (a legacy-GCM
// concept), so this gateway never emits wakeup.OutcomeCanonicalID.
func (g *Gateway) Submit(ctx context.Context, msg wakeup.Message) (wakeup.Outcome, error) {
	req := &messaging.Message{
		Token: msg.Token,
		Data:  map[string]string{msg.Kind.String(): ""},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	id, err := g.client.Send(ctx, req)
	if err != nil {
		switch {
		case messaging.IsRegistrationTokenNotRegistered(err):
			return wakeup.Outcome{Code: wakeup.OutcomeUnregistered, Message: msg}, nil
		case messaging.IsInvalidArgument(err):
			return wakeup.Outcome{Code: wakeup.OutcomeInvalidToken, Message: msg}, nil
		case messaging.IsUnavailable(err), messaging.IsInternal(err):
			return wakeup.Outcome{
				Code:      wakeup.OutcomeProviderError,
				ErrorCode: err.Error(),
				Message:   msg,
			}, nil
		default:
			return wakeup.Outcome{}, fmt.Errorf("fcm transport failed: %w", err)
		}
	}

	g.logger.Debug("FCM wakeup accepted", "message_id", id)
	return wakeup.Outcome{Code: wakeup.OutcomeDelivered, Message: msg}, nil
}

// Shutdown is a no-op: the Firebase messaging client holds no resources that
// need explicit teardown.
func (g *Gateway) Shutdown() {}
