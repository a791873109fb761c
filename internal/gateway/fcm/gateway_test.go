package fcm_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"

	"github.com/tinywideclouds/go-wakeup-service/internal/gateway/fcm"
	"github.com/tinywideclouds/go-wakeup-service/pkg/wakeup"
)

// MockClient satisfies the MessagingClient interface
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Send(ctx context.Context, msg *messaging.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubmit_Lifecycle(t *testing.T) {
	logger := newTestLogger()
	ctx := context.Background()
	accountURN, _ := urn.Parse("urn:sm:user:fcm-test")
	msg := wakeup.Message{
		Token:    "token-1",
		Account:  accountURN,
		DeviceID: 7,
		Kind:     wakeup.KindReceipt,
	}

	t.Run("Happy Path - Delivered", func(t *testing.T) {
		mockClient := new(MockClient)
		gateway := fcm.NewGateway(mockClient, logger)

		// Arrange: accept the message and capture its shape
		mockClient.On("Send", ctx, mock.MatchedBy(func(m *messaging.Message) bool {
			_, hasKey := m.Data["receipt"]
			return m.Token == "token-1" &&
				hasKey &&
				m.Android != nil && m.Android.Priority == "high"
		})).Return("projects/p/messages/1", nil)

		// Act
		outcome, err := gateway.Submit(ctx, msg)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, wakeup.OutcomeDelivered, outcome.Code)
		assert.Equal(t, msg, outcome.Message)
		mockClient.AssertExpectations(t)
	})

	t.Run("Notification Kind Uses Its Own Data Key", func(t *testing.T) {
		mockClient := new(MockClient)
		gateway := fcm.NewGateway(mockClient, logger)

		notificationMsg := msg
		notificationMsg.Kind = wakeup.KindNotification

		mockClient.On("Send", ctx, mock.MatchedBy(func(m *messaging.Message) bool {
			_, hasKey := m.Data["notification"]
			return hasKey && len(m.Data) == 1
		})).Return("projects/p/messages/2", nil)

		outcome, err := gateway.Submit(ctx, notificationMsg)

		require.NoError(t, err)
		assert.Equal(t, wakeup.OutcomeDelivered, outcome.Code)
		mockClient.AssertExpectations(t)
	})

	t.Run("Transport Failure (Retryable)", func(t *testing.T) {
		mockClient := new(MockClient)
		gateway := fcm.NewGateway(mockClient, logger)

		// Arrange: a failure the SDK does not classify (e.g. DNS error)
		mockClient.On("Send", ctx, mock.Anything).Return("", errors.New("network down"))

		// Act
		_, err := gateway.Submit(ctx, msg)

		// Assert
		require.Error(t, err)
		assert.Contains(t, err.Error(), "transport failed")
	})

	// Note: We rely on the Integration Test to verify the specific parsing of
	// IsRegistrationTokenNotRegistered errors, as mocking the internal error types
	// of the Firebase SDK is brittle.
}
