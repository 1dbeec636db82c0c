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
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

const (
	endpointHealth    = "/health"
	endpointVersion   = "/version"
	endpointMLflow    = "/api/2.0/mlflow/"
	endpointArtifacts = "/api/2.0/mlflow-artifacts/artifacts/"
)

type ErrorType string

const (
	ErrExperimentNotFound      ErrorType = "experiment-not-found"
	ErrExperimentAlreadyExists ErrorType = "experiment-already-exists"
	ErrRunNotFound             ErrorType = "run-not-found"
	ErrInvalidParameter        ErrorType = "invalid-parameter"
	ErrArtifactStore           ErrorType = "artifact-store-unsupported"
	ErrUnauthorized            ErrorType = "unauthorized"
	ErrUnexpected              ErrorType = "unexpected"
)

// Error represents the API specific error messages and may be used in response to HTTP status codes
type Error struct {
	Type     ErrorType `json:"-"`
	Code     string    `json:"error_code,omitempty"`
	Message  string    `json:"message"`
	Location string    `json:"-"`
}

func (e *Error) Error() string {
	return e.Message
}

// IsUnauthorized checks to see if the error is an "unauthorized" error
func IsUnauthorized(err error) bool {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode == 401 {
		return true
	}
	var terr *Error
	return errors.As(err, &terr) && terr.Type == ErrUnauthorized
}

// IsNotFound checks to see if the error is a "not found" error
func IsNotFound(err error) bool {
	var terr *Error
	return errors.As(err, &terr) && (terr.Type == ErrExperimentNotFound || terr.Type == ErrRunNotFound)
}

// Millis is a timestamp in milliseconds since the epoch. It is encoded as a number
// but tolerates the string encoding some servers use for 64-bit integers.
type Millis int64

// NewMillis returns the timestamp for the supplied time.
func NewMillis(t time.Time) Millis {
	return Millis(t.UnixNano() / int64(time.Millisecond))
}

func (m *Millis) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		var s string
		if serr := json.Unmarshal(b, &s); serr != nil {
			return err
		}
		n = json.Number(s)
	}
	if n == "" {
		*m = 0
		return nil
	}
	v, err := strconv.ParseInt(string(n), 10, 64)
	if err != nil {
		return err
	}
	*m = Millis(v)
	return nil
}

// Time returns the timestamp as a time.
func (m Millis) Time() time.Time {
	return time.Unix(0, int64(m)*int64(time.Millisecond))
}

// Experiment is a named group of runs.
type Experiment struct {
	ExperimentID     string `json:"experiment_id"`
	Name             string `json:"name"`
	ArtifactLocation string `json:"artifact_location,omitempty"`
	LifecycleStage   string `json:"lifecycle_stage,omitempty"`
}

type RunStatus string

const (
	RunRunning   RunStatus = "RUNNING"
	RunScheduled RunStatus = "SCHEDULED"
	RunFinished  RunStatus = "FINISHED"
	RunFailed    RunStatus = "FAILED"
	RunKilled    RunStatus = "KILLED"
)

// RunInfo is the metadata of a run.
type RunInfo struct {
	RunID          string    `json:"run_id"`
	ExperimentID   string    `json:"experiment_id"`
	RunName        string    `json:"run_name,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
	Status         RunStatus `json:"status,omitempty"`
	StartTime      Millis    `json:"start_time,omitempty"`
	EndTime        Millis    `json:"end_time,omitempty"`
	ArtifactURI    string    `json:"artifact_uri,omitempty"`
	LifecycleStage string    `json:"lifecycle_stage,omitempty"`
}

// Param is a single key/value run parameter.
type Param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Metric is a single observed metric value.
type Metric struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp Millis  `json:"timestamp"`
	Step      int64   `json:"step"`
}

// RunTag is a single key/value run tag.
type RunTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RunData is the recorded data of a run.
type RunData struct {
	Metrics []Metric `json:"metrics,omitempty"`
	Params  []Param  `json:"params,omitempty"`
	Tags    []RunTag `json:"tags,omitempty"`
}

// Run combines the metadata and data of a run.
type Run struct {
	Info RunInfo `json:"info"`
	Data RunData `json:"data"`
}

// CreateRunRequest describes a new run.
type CreateRunRequest struct {
	ExperimentID string   `json:"experiment_id"`
	RunName      string   `json:"run_name,omitempty"`
	StartTime    Millis   `json:"start_time,omitempty"`
	Tags         []RunTag `json:"tags,omitempty"`
}

// UpdateRunRequest changes the status of a run.
type UpdateRunRequest struct {
	RunID   string    `json:"run_id"`
	Status  RunStatus `json:"status,omitempty"`
	EndTime Millis    `json:"end_time,omitempty"`
	RunName string    `json:"run_name,omitempty"`
}

// LogBatchRequest records parameters, metrics and tags of a run in one call.
type LogBatchRequest struct {
	RunID   string   `json:"run_id"`
	Metrics []Metric `json:"metrics,omitempty"`
	Params  []Param  `json:"params,omitempty"`
	Tags    []RunTag `json:"tags,omitempty"`
}

// API provides bindings for the supported endpoints
type API interface {
	Health(context.Context) error
	ServerVersion(context.Context) (string, error)
	GetExperimentByName(context.Context, string) (Experiment, error)
	CreateExperiment(context.Context, string) (string, error)
	CreateRun(context.Context, CreateRunRequest) (Run, error)
	UpdateRun(context.Context, UpdateRunRequest) (RunInfo, error)
	LogBatch(context.Context, LogBatchRequest) error
	// LogArtifact stores the local file under the artifact path (category) of the run.
	LogArtifact(ctx context.Context, run RunInfo, localPath, artifactPath string) error
}
