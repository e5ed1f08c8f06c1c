/*
Package observability provides structured logging and Prometheus metrics for
every component of the media bot.

	Provider (one per process)
	    ├── Logger  (JSON lines for Loki, one per component)
	    └── Metrics (Prometheus vectors, one set per component)

Initialize once at startup and hand component scoped instances to
constructors:

	provider := observability.NewProvider(&observability.Config{
	    ServiceName: "mediabot",
	    Environment: cfg.Environment,
	    LogLevel:    cfg.LogLevel,
	})
	defer provider.Close()

	orch := orchestrator.New(deps,
	    provider.Logger("orchestrator"),
	    provider.Metrics("orchestrator"))

The logger copies task_id, user_id, trace_id and request_id from the context
into each entry. Use logger.WithTask to attach the task identifiers once at
the top of a task.

Metrics are registered with the default Prometheus registerer and served by
promhttp on /metrics:

  - {service}_{component}_processed_total{status,type}
  - {service}_{component}_errors_total{error_type,operation}
  - {service}_{component}_cache_lookups_total{result}
  - {service}_{component}_retries_total{kind}
  - {service}_{component}_duration_seconds{operation}
  - {service}_{component}_artifact_size_bytes{media_type}
  - {service}_{component}_in_progress{operation}

Tests use the testify mocks in the mocks subpackage.
*/
package observability
