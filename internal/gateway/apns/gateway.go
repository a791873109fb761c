// Package apns adapts the Apple Push Notification service to the
// wakeup.PushGateway contract.
package apns

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	"github.com/tinywideclouds/go-wakeup-service/pkg/wakeup"
)

// reasonExpiredToken is APNs' "the device token has expired" rejection.
// apns2 has no constant for it yet.
const reasonExpiredToken = "ExpiredToken"

// APNSClient defines the subset of the apns2.Client methods we use.
// This allows mocking for unit tests.
type APNSClient interface {
	Push(n *apns2.Notification) (*apns2.Response, error)
}

// Config holds the credentials required to sign APNs tokens.
type Config struct {
	KeyID    string
	TeamID   string
	BundleID string
	// P8KeyContent is the raw string content of the .p8 file.
	P8KeyContent string
}

// Configured reports whether every credential field is present.
func (c Config) Configured() bool {
	return c.KeyID != "" && c.TeamID != "" && c.BundleID != "" && c.P8KeyContent != ""
}

type Gateway struct {
	client APNSClient
	topic  string
	logger *slog.Logger
}

// NewGateway creates a token-authenticated APNs gateway. It parses the P8
// key immediately to fail fast on startup if credentials are bad.
func NewGateway(cfg Config, logger *slog.Logger) (*Gateway, error) {
	authKey, err := token.AuthKeyFromBytes([]byte(cfg.P8KeyContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse APNs P8 key: %w", err)
	}

	tokenSource := &token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	}

	return &Gateway{
		client: apns2.NewTokenClient(tokenSource).Production(),
		topic:  cfg.BundleID,
		logger: logger.With("component", "APNSGateway"),
	}, nil
}

// Submit sends a content-available wakeup to one device token. APNs reason
// codes that mean the token is dead map to Unregistered/InvalidToken;
// everything else it rejects is a provider error. A request-level error is a
// transport failure.
func (g *Gateway) Submit(_ context.Context, msg wakeup.Message) (wakeup.Outcome, error) {
	n := &apns2.Notification{
		DeviceToken: msg.Token,
		Topic:       g.topic,
		Priority:    apns2.PriorityHigh,
		Payload:     payload.NewPayload().ContentAvailable().Custom(msg.Kind.String(), ""),
	}

	res, err := g.client.Push(n)
	if err != nil {
		return wakeup.Outcome{}, fmt.Errorf("apns transport failed: %w", err)
	}

	if res.Sent() {
		g.logger.Debug("APNs wakeup accepted", "apns_id", res.ApnsID)
		return wakeup.Outcome{Code: wakeup.OutcomeDelivered, Message: msg}, nil
	}

	switch res.Reason {
	case apns2.ReasonUnregistered, reasonExpiredToken:
		return wakeup.Outcome{Code: wakeup.OutcomeUnregistered, Message: msg}, nil
	case apns2.ReasonBadDeviceToken, apns2.ReasonDeviceTokenNotForTopic:
		return wakeup.Outcome{Code: wakeup.OutcomeInvalidToken, Message: msg}, nil
	default:
		return wakeup.Outcome{
			Code:      wakeup.OutcomeProviderError,
			ErrorCode: res.Reason,
			Message:   msg,
		}, nil
	}
}

// Shutdown is a no-op: the underlying HTTP/2 client needs no teardown.
func (g *Gateway) Shutdown() {}
