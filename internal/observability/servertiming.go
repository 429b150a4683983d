package observability

import (
	"context"
	"net/http"

	servertiming "github.com/mitchellh/go-server-timing"
)

// TimingMetric is one Server-Timing entry of the current HTTP response.
type TimingMetric struct {
	metric *servertiming.Metric
}

// Stop records the elapsed time. It is safe on a no-op metric.
func (m *TimingMetric) Stop() {
	if m != nil && m.metric != nil {
		m.metric.Stop()
	}
}

// StartTiming starts a Server-Timing metric when the request passed through
// ServerTimingMiddleware and returns a no-op metric otherwise.
func StartTiming(ctx context.Context, name, desc string) *TimingMetric {
	timing := servertiming.FromContext(ctx)
	if timing == nil {
		return &TimingMetric{}
	}
	m := timing.NewMetric(name)
	if desc != "" {
		m = m.WithDesc(desc)
	}
	return &TimingMetric{metric: m.Start()}
}

// ServerTimingMiddleware attaches a timing header collector to every request.
func ServerTimingMiddleware(next http.Handler) http.Handler {
	return servertiming.Middleware(next, nil)
}
