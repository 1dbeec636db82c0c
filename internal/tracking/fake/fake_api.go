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

// Package fake is an in-memory tracking server.
package fake

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sync"

	"github.com/thestormforge/optimize-train/internal/tracking"
)

var _ tracking.API = &FakeAPI{}

// FakeAPI records everything sent to it.
type FakeAPI struct {
	mu          sync.Mutex
	experiments map[string]tracking.Experiment
	runs        map[string]*tracking.Run
	artifacts   map[string][]string
	nextID      int

	// Unhealthy makes the health check fail.
	Unhealthy bool
	// FailLogBatch makes every batch logging call fail.
	FailLogBatch bool
	// FailArtifacts makes every artifact upload fail.
	FailArtifacts bool
}

func NewFakeAPI() *FakeAPI {
	return &FakeAPI{
		experiments: make(map[string]tracking.Experiment),
		runs:        make(map[string]*tracking.Run),
		artifacts:   make(map[string][]string),
	}
}

func (f *FakeAPI) id() string {
	f.nextID++
	return fmt.Sprintf("%d", f.nextID)
}

func (f *FakeAPI) Health(context.Context) error {
	if f.Unhealthy {
		return &tracking.Error{Type: tracking.ErrUnexpected, Message: "unhealthy"}
	}
	return nil
}

func (f *FakeAPI) ServerVersion(context.Context) (string, error) {
	return "2.9.2", nil
}

func (f *FakeAPI) GetExperimentByName(_ context.Context, name string) (tracking.Experiment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.experiments[name]; ok {
		return e, nil
	}
	return tracking.Experiment{}, &tracking.Error{Type: tracking.ErrExperimentNotFound, Message: fmt.Sprintf(`experiment "%s" not found`, name)}
}

func (f *FakeAPI) CreateExperiment(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.experiments[name]; ok {
		return "", &tracking.Error{Type: tracking.ErrExperimentAlreadyExists, Code: "RESOURCE_ALREADY_EXISTS"}
	}
	e := tracking.Experiment{ExperimentID: f.id(), Name: name, LifecycleStage: "active"}
	f.experiments[name] = e
	return e.ExperimentID, nil
}

func (f *FakeAPI) CreateRun(_ context.Context, r tracking.CreateRunRequest) (tracking.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	found := false
	for _, e := range f.experiments {
		if e.ExperimentID == r.ExperimentID {
			found = true
		}
	}
	if !found {
		return tracking.Run{}, &tracking.Error{Type: tracking.ErrExperimentNotFound}
	}

	id := "run-" + f.id()
	run := &tracking.Run{
		Info: tracking.RunInfo{
			RunID:        id,
			ExperimentID: r.ExperimentID,
			RunName:      r.RunName,
			Status:       tracking.RunRunning,
			StartTime:    r.StartTime,
			ArtifactURI:  path.Join("mem:", r.ExperimentID, id, "artifacts"),
		},
		Data: tracking.RunData{Tags: r.Tags},
	}
	f.runs[id] = run
	return *run, nil
}

func (f *FakeAPI) UpdateRun(_ context.Context, r tracking.UpdateRunRequest) (tracking.RunInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[r.RunID]
	if !ok {
		return tracking.RunInfo{}, &tracking.Error{Type: tracking.ErrRunNotFound}
	}
	if r.Status != "" {
		run.Info.Status = r.Status
	}
	if r.EndTime != 0 {
		run.Info.EndTime = r.EndTime
	}
	return run.Info, nil
}

func (f *FakeAPI) LogBatch(_ context.Context, r tracking.LogBatchRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailLogBatch {
		return &tracking.Error{Type: tracking.ErrUnexpected, Message: "log batch failed"}
	}
	run, ok := f.runs[r.RunID]
	if !ok {
		return &tracking.Error{Type: tracking.ErrRunNotFound}
	}
	run.Data.Params = append(run.Data.Params, r.Params...)
	run.Data.Metrics = append(run.Data.Metrics, r.Metrics...)
	run.Data.Tags = append(run.Data.Tags, r.Tags...)
	return nil
}

func (f *FakeAPI) LogArtifact(_ context.Context, info tracking.RunInfo, localPath, artifactPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailArtifacts {
		return &tracking.Error{Type: tracking.ErrArtifactStore, Message: "artifact upload failed"}
	}
	if _, ok := f.runs[info.RunID]; !ok {
		return &tracking.Error{Type: tracking.ErrRunNotFound}
	}
	f.artifacts[info.RunID] = append(f.artifacts[info.RunID], path.Join(artifactPath, filepath.Base(localPath)))
	return nil
}

// Runs returns a copy of every run created so far.
func (f *FakeAPI) Runs() []tracking.Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]tracking.Run, 0, len(f.runs))
	for i := 1; i <= f.nextID; i++ {
		if run, ok := f.runs[fmt.Sprintf("run-%d", i)]; ok {
			result = append(result, *run)
		}
	}
	return result
}

// Artifacts returns the artifact paths recorded for a run.
func (f *FakeAPI) Artifacts(runID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.artifacts[runID]...)
}
