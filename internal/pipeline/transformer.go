// Package pipeline contains the message processing components that turn
// inbound wakeup requests into gateway submissions.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"

	"github.com/tinywideclouds/go-wakeup-service/pkg/wakeup"
)

// WakeupRequest is the inbound payload published by the messaging backend.
// It names the device that should be woken; the token itself is resolved
// from the registration store by the processor.
type WakeupRequest struct {
	Account  string `json:"account"`
	DeviceID int64  `json:"device_id"`
	Kind     string `json:"kind"`

	// Parsed forms, populated by the transformer.
	AccountURN urn.URN     `json:"-"`
	WakeupKind wakeup.Kind `json:"-"`
}

// WakeupRequestTransformer unmarshals and validates a raw message payload.
// Malformed payloads return skip=true so the streaming service can route
// them to the dead-letter path instead of retrying forever.
func WakeupRequestTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*WakeupRequest, bool, error) {
	var req WakeupRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal wakeup request from message %s: %w", msg.ID, err)
	}

	accountURN, err := urn.Parse(req.Account)
	if err != nil {
		return nil, true, fmt.Errorf("invalid account urn in message %s: %w", msg.ID, err)
	}
	req.AccountURN = accountURN

	kind, err := wakeup.ParseKind(req.Kind)
	if err != nil {
		return nil, true, fmt.Errorf("invalid wakeup kind in message %s: %w", msg.ID, err)
	}
	req.WakeupKind = kind

	if req.DeviceID <= 0 {
		return nil, true, fmt.Errorf("missing device id in message %s", msg.ID)
	}

	return &req, false, nil
}
