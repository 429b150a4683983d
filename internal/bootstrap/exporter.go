// Package bootstrap assembles the export pipeline from configuration. The
// api, worker and exportctl binaries share it so they run identical chains.
package bootstrap

import (
	"fmt"

	"go.opentelemetry.io/otel"

	"designbridge/internal/infra"
	"designbridge/internal/observability"
	"designbridge/internal/orchestrator"
	"designbridge/internal/poller"
	"designbridge/internal/providers/designapi"
	"designbridge/internal/storage"
)

// Exporter bundles the pieces built from one Config.
type Exporter struct {
	Client       *designapi.Client
	Sink         storage.Sink
	Orchestrator *orchestrator.Orchestrator
}

// PollPolicy reads the polling settings of cfg. Zero values fall back to
// the poller defaults.
func PollPolicy(cfg *infra.Config) poller.Policy {
	return poller.Policy{
		InitialDelay:  cfg.PollInitialDelay,
		MaxDelay:      cfg.PollMaxDelay,
		BackoffFactor: cfg.PollBackoffFactor,
		Deadline:      cfg.PollDeadline,
	}.Normalize()
}

// DesignClient builds the design API client of cfg.
func DesignClient(cfg *infra.Config, logger *infra.Logger) (*designapi.Client, error) {
	return designapi.NewClient(designapi.Options{
		BaseURL:          cfg.DesignAPIBaseURL,
		AuthorizeURL:     cfg.DesignAuthorizeURL,
		ClientID:         cfg.DesignClientID,
		ClientSecret:     cfg.DesignClientSecret,
		RedirectURI:      cfg.DesignRedirectURI,
		Scopes:           cfg.DesignScopes,
		Logger:           logger,
		RequestTimeout:   cfg.DesignRequestTimeout,
		MaxDownloadBytes: int64(cfg.DesignMaxArtifactMB) << 20,
	})
}

// NewExporter wires client, sink, poller and orchestrator. Traces and
// metrics go to the global OpenTelemetry providers, which are no-ops unless
// the process installs an SDK.
func NewExporter(cfg *infra.Config, logger *infra.Logger) (*Exporter, error) {
	client, err := DesignClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	sink, err := storage.NewSink(cfg.SinkConfig(), client)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: configure sink: %w", err)
	}
	metrics, err := observability.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return nil, fmt.Errorf("bootstrap: configure metrics: %w", err)
	}
	orch, err := orchestrator.New(orchestrator.Options{
		API:       client,
		Poller:    poller.New(poller.Options{Logger: logger, Metrics: metrics}),
		Policy:    PollPolicy(cfg),
		Sink:      sink,
		Namespace: cfg.SinkNamespace,
		Logger:    logger,
		Tracer:    observability.NewTracer(otel.GetTracerProvider()),
		Metrics:   metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Exporter{Client: client, Sink: sink, Orchestrator: orch}, nil
}
