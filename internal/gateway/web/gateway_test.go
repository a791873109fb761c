package web_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"

	"github.com/tinywideclouds/go-wakeup-service/internal/gateway/web"
	"github.com/tinywideclouds/go-wakeup-service/pkg/wakeup"
	"github.com/tinywideclouds/go-wakeup-service/wakeupservice/config"
)

// subscriptionToken encodes a browser subscription the way the registration
// API stores it: as an opaque JSON string. A freshly generated VAPID public
// key doubles as a valid p256dh point for the payload encryption.
func subscriptionToken(t *testing.T, endpoint, p256dh string) string {
	t.Helper()
	sub := webpush.Subscription{
		Endpoint: endpoint,
		Keys: webpush.Keys{
			P256dh: p256dh,
			Auth:   base64.RawURLEncoding.EncodeToString([]byte("0123456789abcdef")),
		},
	}
	raw, err := json.Marshal(sub)
	require.NoError(t, err)
	return string(raw)
}

func TestSubmit_Lifecycle(t *testing.T) {
	// Simulates the browser vendor's push endpoint.
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/success":
			w.WriteHeader(http.StatusCreated) // 201
		case "/expired":
			w.WriteHeader(http.StatusGone) // 410
		case "/error":
			w.WriteHeader(http.StatusInternalServerError) // 500
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer mockServer.Close()

	// Real keys: the library signs the VAPID JWT and encrypts the payload, so
	// the key material has to parse even though the mock server ignores it.
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)

	gateway := web.NewGateway(config.VapidConfig{
		PrivateKey:      privateKey,
		PublicKey:       publicKey,
		SubscriberEmail: "mailto:test-runner@tinywideclouds.com",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer gateway.Shutdown()

	ctx := context.Background()
	accountURN, _ := urn.Parse("urn:sm:user:web-test")
	baseMsg := wakeup.Message{Account: accountURN, DeviceID: 5, Kind: wakeup.KindNotification}

	t.Run("Happy Path - Delivered", func(t *testing.T) {
		msg := baseMsg
		msg.Token = subscriptionToken(t, mockServer.URL+"/success", publicKey)

		outcome, err := gateway.Submit(ctx, msg)

		require.NoError(t, err)
		assert.Equal(t, wakeup.OutcomeDelivered, outcome.Code)
	})

	t.Run("Expired Subscription - Unregistered", func(t *testing.T) {
		msg := baseMsg
		msg.Token = subscriptionToken(t, mockServer.URL+"/expired", publicKey)

		outcome, err := gateway.Submit(ctx, msg)

		require.NoError(t, err)
		assert.Equal(t, wakeup.OutcomeUnregistered, outcome.Code)
	})

	t.Run("Push Service Error - Provider Error", func(t *testing.T) {
		msg := baseMsg
		msg.Token = subscriptionToken(t, mockServer.URL+"/error", publicKey)

		outcome, err := gateway.Submit(ctx, msg)

		require.NoError(t, err)
		assert.Equal(t, wakeup.OutcomeProviderError, outcome.Code)
		assert.Equal(t, "status 500", outcome.ErrorCode)
	})

	t.Run("Undecodable Token - Invalid", func(t *testing.T) {
		msg := baseMsg
		msg.Token = "not-a-subscription"

		outcome, err := gateway.Submit(ctx, msg)

		require.NoError(t, err)
		assert.Equal(t, wakeup.OutcomeInvalidToken, outcome.Code)
	})

	t.Run("Empty Endpoint - Invalid", func(t *testing.T) {
		msg := baseMsg
		msg.Token = `{"endpoint":"","keys":{"p256dh":"","auth":""}}`

		outcome, err := gateway.Submit(ctx, msg)

		require.NoError(t, err)
		assert.Equal(t, wakeup.OutcomeInvalidToken, outcome.Code)
	})
}
