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
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T, h http.Handler) API {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)
	return NewAPI(c)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient(t *testing.T) {
	cases := []struct {
		desc     string
		address  string
		expected string
		err      bool
	}{
		{
			desc:     "plain",
			address:  "http://localhost:5000",
			expected: "http://localhost:5000/health",
		},
		{
			desc:     "trailing slash",
			address:  "https://example.com/mlflow/",
			expected: "https://example.com/mlflow/health",
		},
		{
			desc:    "no scheme",
			address: "localhost:5000",
			err:     true,
		},
		{
			desc:    "file",
			address: "file:///tmp/mlruns",
			err:     true,
		},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			client, err := NewClient(c.address, nil)
			if c.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.expected, client.URL(endpointHealth).String())
		})
	}
}

func TestHTTPAPI_Health(t *testing.T) {
	api := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			_, _ = io.WriteString(w, "OK")
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	assert.NoError(t, api.Health(context.Background()))

	api = newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	assert.Error(t, api.Health(context.Background()))
}

func TestHTTPAPI_ServerVersion(t *testing.T) {
	api := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/version", r.URL.Path)
		_, _ = io.WriteString(w, "2.9.2\n")
	}))
	v, err := api.ServerVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.9.2", v)
}

func TestHTTPAPI_GetExperimentByName(t *testing.T) {
	api := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/2.0/mlflow/experiments/get-by-name", r.URL.Path)
		switch r.URL.Query().Get("experiment_name") {
		case "yolo object detection":
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"experiment": map[string]interface{}{
					"experiment_id":   "7",
					"name":            "yolo object detection",
					"lifecycle_stage": "active",
				},
			})
		default:
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"error_code": "RESOURCE_DOES_NOT_EXIST",
				"message":    "Could not find experiment",
			})
		}
	}))

	exp, err := api.GetExperimentByName(context.Background(), "yolo object detection")
	require.NoError(t, err)
	assert.Equal(t, "7", exp.ExperimentID)

	_, err = api.GetExperimentByName(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
	assert.EqualError(t, err, `experiment "missing" not found`)
}

func TestHTTPAPI_CreateRun(t *testing.T) {
	var req CreateRunRequest
	api := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/2.0/mlflow/runs/create", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Some servers encode 64-bit integers as strings
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"run": map[string]interface{}{
				"info": map[string]interface{}{
					"run_id":        "abc",
					"experiment_id": req.ExperimentID,
					"status":        "RUNNING",
					"start_time":    "1700000000000",
					"artifact_uri":  "mlflow-artifacts:/7/abc/artifacts",
				},
			},
		})
	}))

	run, err := api.CreateRun(context.Background(), CreateRunRequest{
		ExperimentID: "7",
		RunName:      "exp1",
		StartTime:    1700000000000,
		Tags:         []RunTag{{Key: TagRunName, Value: "exp1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "exp1", req.RunName)
	assert.Equal(t, Millis(1700000000000), req.StartTime)
	assert.Equal(t, "abc", run.Info.RunID)
	assert.Equal(t, RunRunning, run.Info.Status)
	assert.Equal(t, Millis(1700000000000), run.Info.StartTime)
}

func TestHTTPAPI_Errors(t *testing.T) {
	cases := []struct {
		desc     string
		code     int
		body     interface{}
		expected ErrorType
		message  string
	}{
		{
			desc:     "invalid parameter",
			code:     http.StatusBadRequest,
			body:     map[string]string{"error_code": "INVALID_PARAMETER_VALUE", "message": "bad key"},
			expected: ErrInvalidParameter,
			message:  "bad key",
		},
		{
			desc:     "run not found",
			code:     http.StatusNotFound,
			body:     map[string]string{"error_code": "RESOURCE_DOES_NOT_EXIST", "message": "no run"},
			expected: ErrRunNotFound,
			message:  "no run",
		},
		{
			desc:     "proxy unauthorized",
			code:     http.StatusUnauthorized,
			expected: ErrUnauthorized,
			message:  "unauthorized",
		},
		{
			desc:     "server error",
			code:     http.StatusInternalServerError,
			expected: ErrUnexpected,
			message:  "unexpected server response (Internal Server Error)",
		},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			api := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if c.body == nil {
					w.WriteHeader(c.code)
					return
				}
				writeJSON(w, c.code, c.body)
			}))

			err := api.LogBatch(context.Background(), LogBatchRequest{RunID: "abc"})
			var terr *Error
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, c.expected, terr.Type)
			assert.Equal(t, c.message, terr.Message)
			assert.Contains(t, terr.Location, "/api/2.0/mlflow/runs/log-batch")
		})
	}
}

func TestHTTPAPI_LogArtifact(t *testing.T) {
	dir := t.TempDir()
	weights := filepath.Join(dir, "best.pt")
	require.NoError(t, os.WriteFile(weights, []byte("weights"), 0644))

	t.Run("proxy", func(t *testing.T) {
		var path, content string
		api := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			path = r.URL.Path
			b, _ := io.ReadAll(r.Body)
			content = string(b)
			writeJSON(w, http.StatusOK, map[string]interface{}{})
		}))

		err := api.LogArtifact(context.Background(), RunInfo{RunID: "abc", ArtifactURI: "mlflow-artifacts:/7/abc/artifacts"}, weights, "model")
		require.NoError(t, err)
		assert.Equal(t, "/api/2.0/mlflow-artifacts/artifacts/7/abc/artifacts/model/best.pt", path)
		assert.Equal(t, "weights", content)
	})

	t.Run("local", func(t *testing.T) {
		api := newTestAPI(t, http.NotFoundHandler())
		store := filepath.Join(dir, "mlruns", "7", "abc", "artifacts")

		err := api.LogArtifact(context.Background(), RunInfo{RunID: "abc", ArtifactURI: "file://" + filepath.ToSlash(store)}, weights, "model")
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(store, "model", "best.pt"))
		require.NoError(t, err)
		assert.Equal(t, "weights", string(b))
	})

	t.Run("unsupported", func(t *testing.T) {
		api := newTestAPI(t, http.NotFoundHandler())

		err := api.LogArtifact(context.Background(), RunInfo{RunID: "abc", ArtifactURI: "s3://bucket/7/abc/artifacts"}, weights, "model")
		var terr *Error
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, ErrArtifactStore, terr.Type)
	})
}

func TestAuthorize(t *testing.T) {
	cases := []struct {
		desc     string
		creds    Credentials
		expected string
	}{
		{
			desc: "anonymous",
		},
		{
			desc:     "token",
			creds:    Credentials{Token: "secret"},
			expected: "Bearer secret",
		},
		{
			desc:     "basic",
			creds:    Credentials{Username: "user", Password: "pass"},
			expected: "Basic dXNlcjpwYXNz",
		},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			var auth string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				auth = r.Header.Get("Authorization")
			}))
			defer srv.Close()

			client, err := NewClient(srv.URL, Authorize(nil, c.creds))
			require.NoError(t, err)
			require.NoError(t, NewAPI(client).Health(context.Background()))
			assert.Equal(t, c.expected, auth)
		})
	}
}
