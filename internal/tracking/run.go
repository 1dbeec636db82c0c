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

package tracking

import (
	"context"
	"errors"
	"sort"
	"time"
)

const (
	TagRunName    = "mlflow.runName"
	TagSourceName = "mlflow.source.name"
	TagSourceType = "mlflow.source.type"
	TagUser       = "mlflow.user"
	TagBaseModel  = "base_model"
)

// maxBatchParams is the largest number of parameters the server accepts in a single batch.
const maxBatchParams = 100

// SetExperiment returns the identifier of the named experiment, creating it if necessary.
func SetExperiment(ctx context.Context, api API, name string) (string, error) {
	exp, err := api.GetExperimentByName(ctx, name)
	if err == nil && exp.LifecycleStage != "deleted" {
		return exp.ExperimentID, nil
	}
	if err != nil && !IsNotFound(err) {
		return "", err
	}

	id, err := api.CreateExperiment(ctx, name)
	if err != nil {
		// Lost a race with someone else creating the same experiment
		var terr *Error
		if errors.As(err, &terr) && terr.Type == ErrExperimentAlreadyExists {
			exp, gerr := api.GetExperimentByName(ctx, name)
			if gerr != nil {
				return "", gerr
			}
			return exp.ExperimentID, nil
		}
		return "", err
	}
	return id, nil
}

// RunOptions describe a new run.
type RunOptions struct {
	// Name of the run.
	Name string
	// Source is the name of the program producing the run.
	Source string
	// Tags are additional run tags.
	Tags map[string]string
}

// ActiveRun is an open run scope; it must be closed with End.
type ActiveRun struct {
	api   API
	info  RunInfo
	ended bool
	now   func() time.Time
}

// StartRun opens a new run in the experiment.
func StartRun(ctx context.Context, api API, experimentID string, opts RunOptions) (*ActiveRun, error) {
	r := &ActiveRun{api: api, now: time.Now}

	tags := map[string]string{}
	for k, v := range opts.Tags {
		tags[k] = v
	}
	if opts.Name != "" {
		tags[TagRunName] = opts.Name
	}
	if opts.Source != "" {
		tags[TagSourceName] = opts.Source
		tags[TagSourceType] = "LOCAL"
	}

	run, err := api.CreateRun(ctx, CreateRunRequest{
		ExperimentID: experimentID,
		RunName:      opts.Name,
		StartTime:    NewMillis(r.now()),
		Tags:         sortedTags(tags),
	})
	if err != nil {
		return nil, err
	}
	r.info = run.Info
	return r, nil
}

// Info returns the metadata of the run.
func (r *ActiveRun) Info() RunInfo {
	return r.info
}

// LogParams records the run parameters.
func (r *ActiveRun) LogParams(ctx context.Context, params map[string]string) error {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for len(keys) > 0 {
		n := len(keys)
		if n > maxBatchParams {
			n = maxBatchParams
		}

		batch := LogBatchRequest{RunID: r.info.RunID}
		for _, k := range keys[:n] {
			batch.Params = append(batch.Params, Param{Key: k, Value: params[k]})
		}
		if err := r.api.LogBatch(ctx, batch); err != nil {
			return err
		}
		keys = keys[n:]
	}
	return nil
}

// LogMetrics records the final metric values of the run.
func (r *ActiveRun) LogMetrics(ctx context.Context, metrics map[string]float64) error {
	if len(metrics) == 0 {
		return nil
	}

	ts := NewMillis(r.now())
	batch := LogBatchRequest{RunID: r.info.RunID}
	for k, v := range metrics {
		batch.Metrics = append(batch.Metrics, Metric{Key: k, Value: v, Timestamp: ts})
	}
	sort.Slice(batch.Metrics, func(i, j int) bool { return batch.Metrics[i].Key < batch.Metrics[j].Key })
	return r.api.LogBatch(ctx, batch)
}

// LogArtifact attaches a local file to the run under the supplied category.
func (r *ActiveRun) LogArtifact(ctx context.Context, localPath, category string) error {
	return r.api.LogArtifact(ctx, r.info, localPath, category)
}

// End closes the run scope with the supplied status. Ending a run more than once has no effect.
func (r *ActiveRun) End(ctx context.Context, status RunStatus) error {
	if r.ended {
		return nil
	}
	r.ended = true

	info, err := r.api.UpdateRun(ctx, UpdateRunRequest{
		RunID:   r.info.RunID,
		Status:  status,
		EndTime: NewMillis(r.now()),
	})
	if err != nil {
		return err
	}
	if info.RunID != "" {
		r.info = info
	} else {
		r.info.Status = status
	}
	return nil
}

func sortedTags(tags map[string]string) []RunTag {
	result := make([]RunTag, 0, len(tags))
	for k, v := range tags {
		result = append(result, RunTag{Key: k, Value: v})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}
