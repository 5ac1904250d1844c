package transport

import (
	"context"
	"time"

	"github.com/sungwon/mailjobs/internal/metrics"
)

// Instrumented records send counts and latency for the wrapped transport.
type Instrumented struct {
	Transport
}

// Instrument wraps t with metrics.
func Instrument(t Transport) *Instrumented {
	return &Instrumented{Transport: t}
}

func (i *Instrumented) Send(ctx context.Context, msg *Message) (*Result, error) {
	name := i.GetName()
	start := time.Now()
	res, err := i.Transport.Send(ctx, msg)
	metrics.TransportSendDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.TransportSendsTotal.WithLabelValues(name, "error").Inc()
	case res.Sent():
		metrics.TransportSendsTotal.WithLabelValues(name, "sent").Inc()
	default:
		metrics.TransportSendsTotal.WithLabelValues(name, "rejected").Inc()
	}
	return res, err
}
