// Package wakeup contains the domain models and public contracts for the
// wakeup service: the messages it sends, the delivery outcomes it gets back
// from a push gateway, and the registration state it reconciles.
package wakeup

import (
	"errors"
	"fmt"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// Kind selects the single data field carried by a wakeup push. The client
// uses it to decide whether it woke up for a delivery receipt or for new
// message content; the service uses it to pick the outbound counter.
type Kind int

const (
	KindReceipt Kind = iota
	KindNotification
)

func (k Kind) String() string {
	if k == KindReceipt {
		return "receipt"
	}
	return "notification"
}

// ParseKind maps the wire form ("receipt" / "notification") back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "receipt":
		return KindReceipt, nil
	case "notification":
		return KindNotification, nil
	default:
		return 0, fmt.Errorf("unknown wakeup kind %q", s)
	}
}

// Platform identifiers for the gateways a device token can belong to.
const (
	PlatformFCM  = "fcm"
	PlatformAPNS = "apns"
	PlatformWeb  = "web"
)

// ValidPlatform reports whether s names a known push platform.
func ValidPlatform(s string) bool {
	return s == PlatformFCM || s == PlatformAPNS || s == PlatformWeb
}

// Message is a single wakeup request. It is immutable once built and is
// carried through the gateway call as correlation context, so a delivery
// outcome can always be traced back to the exact token it was sent to.
type Message struct {
	Token    string  `json:"token"`
	Account  urn.URN `json:"account"`
	DeviceID int64   `json:"device_id"`
	Kind     Kind    `json:"kind"`
}

// Device is one registered push destination within an account. An empty
// PushToken means the device is currently unreachable. LastPushMillis is
// the wall-clock time (unix millis) of the most recent registration write;
// the reconciler uses it to detect outcomes that raced a re-registration.
type Device struct {
	ID             int64  `json:"id"`
	Platform       string `json:"platform"`
	PushToken      string `json:"push_token,omitempty"`
	LastPushMillis int64  `json:"last_push_millis"`
}

// Account owns an ordered set of devices. Device ids are unique within an
// account. Accounts are read and persisted as a whole; the store adapter is
// responsible for atomicity across the persist call.
type Account struct {
	ID      urn.URN  `json:"id"`
	Devices []Device `json:"devices"`
}

// Device returns a mutable pointer to the device with the given id, or nil
// if the account has no such device.
func (a *Account) Device(id int64) *Device {
	for i := range a.Devices {
		if a.Devices[i].ID == id {
			return &a.Devices[i]
		}
	}
	return nil
}

// OutcomeCode tags the structured result a gateway reports for a submitted
// wakeup. Transport-level failures are not an OutcomeCode; they surface as a
// plain error from PushGateway.Submit and never reach the reconciler.
type OutcomeCode int

const (
	// OutcomeDelivered means the provider accepted the message.
	OutcomeDelivered OutcomeCode = iota
	// OutcomeUnregistered means the provider no longer knows the token.
	OutcomeUnregistered
	// OutcomeInvalidToken means the provider rejected the token as malformed.
	OutcomeInvalidToken
	// OutcomeCanonicalID means the token is now an alias and the provider
	// issued a replacement that must be adopted going forward.
	OutcomeCanonicalID
	// OutcomeProviderError covers every other structured provider failure.
	OutcomeProviderError
)

func (c OutcomeCode) String() string {
	switch c {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeUnregistered:
		return "unregistered"
	case OutcomeInvalidToken:
		return "invalid_token"
	case OutcomeCanonicalID:
		return "canonical_id"
	default:
		return "provider_error"
	}
}

// Outcome is the asynchronous delivery report for one wakeup. It carries the
// original Message back so the reconciler can check the outcome against the
// device's current registration state.
type Outcome struct {
	Code OutcomeCode

	// CanonicalToken is set only for OutcomeCanonicalID.
	CanonicalToken string
	// ErrorCode is set only for OutcomeProviderError.
	ErrorCode string

	Message Message
}

// ErrAccountNotFound is returned by AccountStore.Lookup when no account
// exists for the identifier. The reconciler treats it as a benign abort.
var ErrAccountNotFound = errors.New("wakeup: account not found")
