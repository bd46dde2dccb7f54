/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the small set of instrumentation points the core exposes.
// Scraping/exporting them is the embedder's concern (§1 excludes
// observability sinks); the counters are registered against the default
// registry so an embedder can mount promhttp.Handler() if it wants to.
// No package in this module updates them, so they read zero unless the
// embedder does.
var Metrics = struct {
	Registrations        prometheus.Counter
	RegistrationFailures prometheus.Counter
	HeartbeatFailures    prometheus.Counter
	ExpiredResources     prometheus.Counter
	SubscriptionBacklog  prometheus.Gauge
	ActivationLatency    prometheus.Histogram
}{
	Registrations: prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nmos_registrations_total",
		Help: "Number of successful resource registrations sent to a Registry.",
	}),
	RegistrationFailures: prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nmos_registration_failures_total",
		Help: "Number of registration attempts that failed or were abandoned.",
	}),
	HeartbeatFailures: prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nmos_heartbeat_failures_total",
		Help: "Number of heartbeat POSTs that did not succeed.",
	}),
	ExpiredResources: prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nmos_expired_resources_total",
		Help: "Number of resources (including cascade deletes) expired by the garbage collector.",
	}),
	SubscriptionBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nmos_subscription_backlog",
		Help: "Sum of pending change records queued across all subscriptions.",
	}),
	ActivationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nmos_activation_latency_seconds",
		Help:    "Delay between a scheduled activation's requested time and when it actually fired.",
		Buckets: prometheus.DefBuckets,
	}),
}

func init() {
	prometheus.MustRegister(
		Metrics.Registrations,
		Metrics.RegistrationFailures,
		Metrics.HeartbeatFailures,
		Metrics.ExpiredResources,
		Metrics.SubscriptionBacklog,
		Metrics.ActivationLatency,
	)
}
