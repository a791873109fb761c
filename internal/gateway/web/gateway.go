// Package web adapts Web Push (VAPID) to the wakeup.PushGateway contract.
//
// A web device's push token is the JSON-encoded subscription object the
// browser handed out; the registration store treats it as an opaque string
// and this gateway decodes it at send time.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/tinywideclouds/go-wakeup-service/pkg/wakeup"
	"github.com/tinywideclouds/go-wakeup-service/wakeupservice/config"
)

type Gateway struct {
	subscriber string
	privateKey string
	publicKey  string
	logger     *slog.Logger
	httpClient *http.Client
}

func NewGateway(cfg config.VapidConfig, logger *slog.Logger) *Gateway {
	return &Gateway{
		privateKey: cfg.PrivateKey,
		publicKey:  cfg.PublicKey,
		subscriber: cfg.SubscriberEmail,
		logger:     logger.With("component", "WebPushGateway"),
		httpClient: &http.Client{},
	}
}

// Submit delivers a wakeup payload to one subscription. A token that does
// not decode into a subscription is reported as invalid; 404/410 from the
// push endpoint mean the subscription is gone.
func (g *Gateway) Submit(_ context.Context, msg wakeup.Message) (wakeup.Outcome, error) {
	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(msg.Token), &sub); err != nil || sub.Endpoint == "" {
		return wakeup.Outcome{Code: wakeup.OutcomeInvalidToken, Message: msg}, nil
	}

	payloadBytes, err := json.Marshal(map[string]string{msg.Kind.String(): ""})
	if err != nil {
		return wakeup.Outcome{}, fmt.Errorf("failed to marshal payload: %w", err)
	}

	resp, err := webpush.SendNotification(payloadBytes, &sub, &webpush.Options{
		Subscriber:      g.subscriber,
		VAPIDPublicKey:  g.publicKey,
		VAPIDPrivateKey: g.privateKey,
		TTL:             60,
		HTTPClient:      g.httpClient,
	})
	if err != nil {
		return wakeup.Outcome{}, fmt.Errorf("web push transport failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode < 300:
		g.logger.Debug("Web wakeup accepted", "status", resp.StatusCode)
		return wakeup.Outcome{Code: wakeup.OutcomeDelivered, Message: msg}, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return wakeup.Outcome{Code: wakeup.OutcomeUnregistered, Message: msg}, nil
	default:
		return wakeup.Outcome{
			Code:      wakeup.OutcomeProviderError,
			ErrorCode: fmt.Sprintf("status %d", resp.StatusCode),
			Message:   msg,
		}, nil
	}
}

// Shutdown releases idle connections held by the gateway's HTTP client.
func (g *Gateway) Shutdown() {
	g.httpClient.CloseIdleConnections()
}
