// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/samber/oops"
)

// DefaultPushJob is the Pushgateway job name for authcore commands.
const DefaultPushJob = "authcore"

// Pusher collects the counters of one short-lived command and sends them
// to a Prometheus Pushgateway when the command ends.
type Pusher struct {
	url      string
	job      string
	registry *prometheus.Registry
	metrics  *Metrics
}

// NewPusher creates a Pusher with its own registry. An empty job uses
// DefaultPushJob.
func NewPusher(url, job string) *Pusher {
	if job == "" {
		job = DefaultPushJob
	}
	registry := prometheus.NewRegistry()
	return &Pusher{
		url:      url,
		job:      job,
		registry: registry,
		metrics:  NewMetrics(registry),
	}
}

// Metrics returns the metrics recorded for this command.
func (p *Pusher) Metrics() *Metrics {
	return p.metrics
}

// Push replaces the command's metric group on the gateway. Each command
// keeps its own group so runs of different commands do not overwrite
// each other.
func (p *Pusher) Push(ctx context.Context, command string) error {
	err := push.New(p.url, p.job).
		Gatherer(p.registry).
		Grouping("command", command).
		PushContext(ctx)
	if err != nil {
		return oops.Code("METRICS_PUSH_FAILED").
			With("pushgateway", p.url).
			With("command", command).
			Wrap(err)
	}
	return nil
}
