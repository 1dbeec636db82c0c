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

// Package report records the outcome of a training run against the tracking server.
package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/thestormforge/optimize-train/internal/result"
	"github.com/thestormforge/optimize-train/internal/trainconfig"
)

// ErrNoResult is returned when the training engine did not produce a result; the run has failed.
var ErrNoResult = errors.New("training did not produce a result")

// ArtifactCategory is the category the trained weights are attached under.
const ArtifactCategory = "model"

// Canonical metric names and the result keys they are read from.
const (
	MetricMAP50     = "mAP50"
	MetricMAP5095   = "mAP50-95"
	MetricPrecision = "precision"
	MetricRecall    = "recall"
)

var metricKeys = []struct {
	name string
	key  string
}{
	{name: MetricMAP50, key: "metrics/mAP50(B)"},
	{name: MetricMAP5095, key: "metrics/mAP50-95(B)"},
	{name: MetricPrecision, key: "metrics/precision(B)"},
	{name: MetricRecall, key: "metrics/recall(B)"},
}

// Tracker receives the reported record; an open run scope satisfies it.
type Tracker interface {
	LogParams(ctx context.Context, params map[string]string) error
	LogMetrics(ctx context.Context, metrics map[string]float64) error
	LogArtifact(ctx context.Context, localPath, category string) error
}

// Record is everything reported for a run.
type Record struct {
	Params   map[string]string
	Metrics  map[string]float64
	Artifact string
}

// Metrics returns the canonical metric set of the result; missing metrics are zero.
func Metrics(res result.Result) map[string]float64 {
	metrics := make(map[string]float64, len(metricKeys))
	for _, m := range metricKeys {
		v, _ := res.Metric(m.key)
		metrics[m.name] = v
	}
	return metrics
}

// Reporter emits the record of a completed training run.
type Reporter struct {
	Tracker Tracker
	Layout  Layout
	Log     logr.Logger
}

// Report emits the parameters and metrics of the run and attaches the trained
// weights when they exist. A nil result is reported as ErrNoResult and nothing
// is emitted.
func (r *Reporter) Report(ctx context.Context, res result.Result, cfg trainconfig.Configuration) (Record, error) {
	if res == nil {
		r.Log.Error(ErrNoResult, "Training failed, no results to report")
		return Record{}, ErrNoResult
	}

	if err := result.Err(res); err != nil {
		r.Log.Error(err, "Unable to read training results, missing metrics are reported as zero")
	}

	rec := Record{
		Params:   cfg.Params(),
		Metrics:  Metrics(res),
		Artifact: r.Layout.WeightsPath(res, cfg),
	}

	if err := r.Tracker.LogParams(ctx, rec.Params); err != nil {
		return rec, fmt.Errorf("unable to log parameters: %w", err)
	}
	if err := r.Tracker.LogMetrics(ctx, rec.Metrics); err != nil {
		return rec, fmt.Errorf("unable to log metrics: %w", err)
	}
	r.Log.Info("Logged training metrics", metricValues(rec.Metrics)...)

	if !exists(rec.Artifact) {
		r.Log.Error(os.ErrNotExist, "Trained weights not found", "path", rec.Artifact)
		rec.Artifact = ""
		return rec, nil
	}

	if err := r.Tracker.LogArtifact(ctx, rec.Artifact, ArtifactCategory); err != nil {
		return rec, fmt.Errorf("unable to log trained weights: %w", err)
	}
	r.Log.Info("Logged trained weights", "path", rec.Artifact)

	return rec, nil
}

func metricValues(metrics map[string]float64) []interface{} {
	kv := make([]interface{}, 0, 2*len(metricKeys))
	for _, m := range metricKeys {
		kv = append(kv, m.name, metrics[m.name])
	}
	return kv
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

// DefaultLayout is the engine's conventional output layout.
var DefaultLayout = Layout{RunsRoot: "runs", Task: "detect", Weights: "best.pt"}

// Layout describes where the training engine writes its output.
type Layout struct {
	// RunsRoot is the directory holding all runs.
	RunsRoot string
	// Task is the sub-directory of the runs root for the training task.
	Task string
	// Weights is the file name of the trained weights.
	Weights string
}

// WeightsPath returns the expected location of the trained weights. The save
// directory of the result is preferred, otherwise the run name is used to locate
// the run directory. An empty string means the location cannot be determined.
func (l Layout) WeightsPath(res result.Result, cfg trainconfig.Configuration) string {
	weights := l.Weights
	if weights == "" {
		weights = DefaultLayout.Weights
	}

	if dir, ok := res.SaveDir(); ok {
		return filepath.Join(dir, "weights", weights)
	}

	if cfg.Name == "" {
		return ""
	}

	root, task := l.RunsRoot, l.Task
	if root == "" {
		root = DefaultLayout.RunsRoot
	}
	if task == "" {
		task = DefaultLayout.Task
	}
	return filepath.Join(root, task, cfg.Name, "weights", weights)
}
