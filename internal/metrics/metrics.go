/*
Copyright 2022 GramLabs, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics exports the final training metrics to a Prometheus Pushgateway.
package metrics

import (
	"context"
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// DefaultJob is the Pushgateway job name.
const DefaultJob = "optimize-train"

// Pusher sends the metrics of a run to a Pushgateway.
type Pusher struct {
	// URL of the Pushgateway.
	URL string
	// Job is the job name the metrics are grouped under.
	Job string
	// Client is used to make requests, the default client is used when nil.
	Client *http.Client
}

// NewTrainingMetric returns the gauge the training metrics are recorded in.
func NewTrainingMetric() *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "optimize_train_metric",
		Help: "Final value of a training evaluation metric",
	}, []string{"metric"})
}

// Push replaces the metrics of the named run.
func (p *Pusher) Push(ctx context.Context, run string, values map[string]float64) error {
	gauge := NewTrainingMetric()
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		gauge.WithLabelValues(k).Set(values[k])
	}

	job := p.Job
	if job == "" {
		job = DefaultJob
	}

	pusher := push.New(p.URL, job).Collector(gauge)
	if run != "" {
		pusher = pusher.Grouping("run", run)
	}
	if p.Client != nil {
		pusher = pusher.Client(p.Client)
	}
	return pusher.PushContext(ctx)
}
