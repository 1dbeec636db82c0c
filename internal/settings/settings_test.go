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

package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), s); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadBytes(t *testing.T) {
	s, err := LoadBytes([]byte(`
tracking:
  uri: https://mlflow.example.com
  experiment: coco
engine:
  command: [python, -m, ultralytics, train]
  output: json
runs:
  root: /data/runs
`))
	require.NoError(t, err)

	expected := Default()
	expected.Tracking.URI = "https://mlflow.example.com"
	expected.Tracking.Experiment = "coco"
	expected.Engine.Command = []string{"python", "-m", "ultralytics", "train"}
	expected.Engine.Output = "json"
	expected.Runs.Root = "/data/runs"
	if diff := cmp.Diff(expected, s); diff != "" {
		t.Errorf("LoadBytes() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("push:\n  url: http://pushgateway:9091\n"), 0644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://pushgateway:9091", s.Push.URL)
	assert.Equal(t, "optimize-train", s.Push.Job)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("MLFLOW_TRACKING_URI", "http://mlflow:5000")
	t.Setenv("MLFLOW_EXPERIMENT_NAME", "from-mlflow")
	t.Setenv("MLFLOW_TRACKING_TOKEN", "secret")
	t.Setenv("OPTIMIZE_TRAIN_TRACKING__EXPERIMENT", "from-prefix")
	t.Setenv("OPTIMIZE_TRAIN_ENGINE__COMMAND", "yolo segment train")
	t.Setenv("OPTIMIZE_TRAIN_RUNS__TASK", "segment")

	s, err := LoadBytes([]byte("tracking:\n  uri: http://file:5000\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://mlflow:5000", s.Tracking.URI)
	assert.Equal(t, "from-prefix", s.Tracking.Experiment)
	assert.Equal(t, "secret", s.Tracking.Token)
	assert.Equal(t, []string{"yolo", "segment", "train"}, s.Engine.Command)
	assert.Equal(t, "segment", s.Runs.Task)
}

func TestValidate(t *testing.T) {
	_, err := LoadBytes([]byte("engine:\n  output: xml\n"))
	assert.Error(t, err)

	_, err = LoadBytes([]byte("tracking:\n  experiment: \"\"\n"))
	assert.EqualError(t, err, "tracking.experiment is required")
}

func TestRedacted(t *testing.T) {
	s := Default()
	s.Tracking.Token = "secret"
	s.Tracking.Username = "user"

	r := s.Redacted()
	assert.Equal(t, "REDACTED", r.Tracking.Token)
	assert.Equal(t, "user", r.Tracking.Username)
	assert.Empty(t, r.Tracking.Password)
	assert.Equal(t, "secret", s.Tracking.Token)
}
