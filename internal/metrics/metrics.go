// Package metrics provides the OpenTelemetry counter taps for the wakeup
// dispatch path.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/tinywideclouds/go-wakeup-service/pkg/wakeup"
)

const meterName = "github.com/tinywideclouds/go-wakeup-service/internal/metrics"

// Counters implements wakeup.Metrics over OpenTelemetry instruments.
type Counters struct {
	outboundReceipt      metric.Int64Counter
	outboundNotification metric.Int64Counter
	sentSuccess          metric.Int64Counter
	sentFailure          metric.Int64Counter
	sentUnregistered     metric.Int64Counter
	sentCanonical        metric.Int64Counter
}

// NewCounters creates the six wakeup counters on the global meter provider.
func NewCounters() (*Counters, error) {
	meter := otel.Meter(meterName)

	outboundReceipt, err := meter.Int64Counter(
		"wakeup.outbound.receipt",
		metric.WithDescription("Receipt wakeups submitted to a push gateway"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	outboundNotification, err := meter.Int64Counter(
		"wakeup.outbound.notification",
		metric.WithDescription("Notification wakeups submitted to a push gateway"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	sentSuccess, err := meter.Int64Counter(
		"wakeup.sent.success",
		metric.WithDescription("Wakeups the provider reported as delivered"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	sentFailure, err := meter.Int64Counter(
		"wakeup.sent.failure",
		metric.WithDescription("Wakeups that failed with a provider error"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	sentUnregistered, err := meter.Int64Counter(
		"wakeup.sent.unregistered",
		metric.WithDescription("Wakeups reported against an unregistered or invalid token"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	sentCanonical, err := meter.Int64Counter(
		"wakeup.sent.canonical",
		metric.WithDescription("Wakeups that triggered a canonical registration id rotation"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	return &Counters{
		outboundReceipt:      outboundReceipt,
		outboundNotification: outboundNotification,
		sentSuccess:          sentSuccess,
		sentFailure:          sentFailure,
		sentUnregistered:     sentUnregistered,
		sentCanonical:        sentCanonical,
	}, nil
}

// MarkOutbound counts a submission by wakeup kind.
func (c *Counters) MarkOutbound(kind wakeup.Kind) {
	if kind == wakeup.KindReceipt {
		c.outboundReceipt.Add(context.Background(), 1)
		return
	}
	c.outboundNotification.Add(context.Background(), 1)
}

func (c *Counters) MarkSuccess() {
	c.sentSuccess.Add(context.Background(), 1)
}

func (c *Counters) MarkFailure() {
	c.sentFailure.Add(context.Background(), 1)
}

func (c *Counters) MarkUnregistered() {
	c.sentUnregistered.Add(context.Background(), 1)
}

func (c *Counters) MarkCanonical() {
	c.sentCanonical.Add(context.Background(), 1)
}
