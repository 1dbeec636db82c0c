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

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		desc     string
		name     string
		expected zapcore.Level
		err      bool
	}{
		{desc: "default", name: "", expected: zapcore.InfoLevel},
		{desc: "debug", name: "DEBUG", expected: zapcore.DebugLevel},
		{desc: "lower case", name: "warning", expected: zapcore.WarnLevel},
		{desc: "error", name: "Error", expected: zapcore.ErrorLevel},
		{desc: "invalid", name: "LOUD", err: true},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			level, err := ParseLevel(c.name)
			if c.err {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, c.expected, level)
		})
	}
}

func TestNew_Level(t *testing.T) {
	var out bytes.Buffer
	log, err := New(Options{Level: "INFO", Out: &out})
	require.NoError(t, err)

	log.WithName("train").Info("Starting run", "name", "exp1")
	log.V(1).Info("hidden")

	s := out.String()
	assert.Contains(t, s, " - INFO - train - Starting run")
	assert.Contains(t, s, `"name": "exp1"`)
	assert.NotContains(t, s, "hidden")

	out.Reset()
	log, err = New(Options{Level: "ERROR", Out: &out})
	require.NoError(t, err)
	log.Info("hidden")
	log.Error(errors.New("boom"), "Training failed")
	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "Training failed")
}

func TestNew_Debug(t *testing.T) {
	var out bytes.Buffer
	log, err := New(Options{Level: "debug", Out: &out})
	require.NoError(t, err)

	log.V(1).Info("visible")
	assert.Contains(t, out.String(), "visible")
}

func TestNew_File(t *testing.T) {
	file := filepath.Join(t.TempDir(), "train.log")
	var out bytes.Buffer
	log, err := New(Options{File: file, Out: &out})
	require.NoError(t, err)

	log.WithName("report").Info("Logged trained weights", "path", "best.pt")

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	entry := map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(b))), &entry))
	assert.Equal(t, "Logged trained weights", entry["msg"])
	assert.Equal(t, "report", entry["logger"])
	assert.Equal(t, "best.pt", entry["path"])
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(Options{Level: "LOUD"})
	assert.Error(t, err)
}
