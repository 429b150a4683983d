package orchestrator

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"designbridge/internal/infra"
	"designbridge/internal/observability"
	"designbridge/internal/poller"
	"designbridge/internal/storage"
)

// DefaultNamespace prefixes every storage key.
const DefaultNamespace = "exports"

// Options wires the orchestrator's collaborators.
type Options struct {
	API       JobAPI
	Poller    *poller.Poller
	Policy    poller.Policy
	Sink      storage.Sink
	Namespace string
	Now       func() time.Time
	Logger    *infra.Logger
	Tracer    *observability.Tracer
	Metrics   *observability.Metrics
}

// Orchestrator holds only read-only collaborators; every chain keeps its own
// state, so a single instance serves concurrent requests.
type Orchestrator struct {
	api       JobAPI
	poller    *poller.Poller
	policy    poller.Policy
	sink      storage.Sink
	namespace string
	now       func() time.Time
	logger    *infra.Logger
	tracer    *observability.Tracer
	metrics   *observability.Metrics
}

// New validates opts and fills defaults.
func New(opts Options) (*Orchestrator, error) {
	if opts.API == nil {
		return nil, errors.New("orchestrator: job api is required")
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NewNoopMetrics()
	}
	p := opts.Poller
	if p == nil {
		p = poller.New(poller.Options{Logger: logger, Metrics: metrics})
	}
	sink := opts.Sink
	if sink == nil {
		sink = storage.Passthrough{}
	}
	namespace := strings.Trim(strings.TrimSpace(opts.Namespace), "/")
	if namespace == "" {
		namespace = DefaultNamespace
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = observability.NewNoopTracer()
	}
	return &Orchestrator{
		api:       opts.API,
		poller:    p,
		policy:    opts.Policy.Normalize(),
		sink:      sink,
		namespace: namespace,
		now:       now,
		logger:    logger,
		tracer:    tracer,
		metrics:   metrics,
	}, nil
}
