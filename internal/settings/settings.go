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

// Package settings loads the process settings.
//
// Settings are layered: the built-in defaults are overridden by an optional
// YAML file, which is in turn overridden by the standard MLflow environment
// variables and finally by "OPTIMIZE_TRAIN_" prefixed environment variables
// (nested keys are separated by a double underscore, for example
// "OPTIMIZE_TRAIN_TRACKING__URI").
package settings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/thestormforge/optimize-train/internal/engine"
)

// EnvPrefix is the prefix of environment variables holding settings.
const EnvPrefix = "OPTIMIZE_TRAIN_"

// Settings are the process settings.
type Settings struct {
	Tracking Tracking `koanf:"tracking" json:"tracking"`
	Engine   Engine   `koanf:"engine" json:"engine"`
	Runs     Runs     `koanf:"runs" json:"runs"`
	Push     Push     `koanf:"push" json:"push"`
}

// Tracking describes the tracking server.
type Tracking struct {
	URI        string `koanf:"uri" json:"uri"`
	Experiment string `koanf:"experiment" json:"experiment"`
	Token      string `koanf:"token" json:"token,omitempty"`
	Username   string `koanf:"username" json:"username,omitempty"`
	Password   string `koanf:"password" json:"password,omitempty"`
}

// Engine describes the training program.
type Engine struct {
	Command []string `koanf:"command" json:"command"`
	Output  string   `koanf:"output" json:"output"`
	Dir     string   `koanf:"dir" json:"dir,omitempty"`
}

// Runs describes the output layout of the training program.
type Runs struct {
	Root    string `koanf:"root" json:"root"`
	Task    string `koanf:"task" json:"task"`
	Weights string `koanf:"weights" json:"weights"`
}

// Push describes the Prometheus Pushgateway.
type Push struct {
	URL string `koanf:"url" json:"url,omitempty"`
	Job string `koanf:"job" json:"job"`
}

// Default returns the default settings.
func Default() Settings {
	return Settings{
		Tracking: Tracking{
			URI:        "http://localhost:5000",
			Experiment: "yolo-object-detection",
		},
		Engine: Engine{
			Command: append([]string(nil), engine.DefaultCommand...),
			Output:  string(engine.OutputConsole),
		},
		Runs: Runs{
			Root:    "runs",
			Task:    "detect",
			Weights: "best.pt",
		},
		Push: Push{
			Job: "optimize-train",
		},
	}
}

// mlflowEnv maps the standard MLflow environment variables to setting keys.
var mlflowEnv = map[string]string{
	"MLFLOW_TRACKING_URI":      "tracking.uri",
	"MLFLOW_TRACKING_TOKEN":    "tracking.token",
	"MLFLOW_TRACKING_USERNAME": "tracking.username",
	"MLFLOW_TRACKING_PASSWORD": "tracking.password",
	"MLFLOW_EXPERIMENT_NAME":   "tracking.experiment",
}

// Load returns the settings read from the optional file.
func Load(path string) (Settings, error) {
	var src koanf.Provider
	if path != "" {
		src = file.Provider(path)
	}
	return load(src)
}

// LoadBytes returns the settings read from YAML content.
func LoadBytes(b []byte) (Settings, error) {
	return load(rawbytes.Provider(b))
}

func load(src koanf.Provider) (Settings, error) {
	s := Settings{}
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return s, err
	}

	if src != nil {
		if err := k.Load(src, yaml.Parser()); err != nil {
			return s, fmt.Errorf("unable to read settings: %w", err)
		}
	}

	if err := k.Load(env.ProviderWithValue("MLFLOW_", ".", mlflowValue), nil); err != nil {
		return s, err
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return s, err
	}

	if err := k.Unmarshal("", &s); err != nil {
		return s, err
	}
	return s, s.Validate()
}

func mlflowValue(key, value string) (string, interface{}) {
	return mlflowEnv[key], value
}

func envValue(key, value string) (string, interface{}) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if key == "engine.command" {
		return key, strings.Fields(value)
	}
	return key, value
}

// Validate checks the settings are usable.
func (s *Settings) Validate() error {
	var errs []error
	if s.Tracking.URI == "" {
		errs = append(errs, errors.New("tracking.uri is required"))
	}
	if s.Tracking.Experiment == "" {
		errs = append(errs, errors.New("tracking.experiment is required"))
	}
	if len(s.Engine.Command) == 0 {
		errs = append(errs, errors.New("engine.command is required"))
	}
	if _, err := engine.ParseOutputMode(s.Engine.Output); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Redacted returns a copy of the settings with the credentials hidden.
func (s Settings) Redacted() Settings {
	if s.Tracking.Token != "" {
		s.Tracking.Token = "REDACTED"
	}
	if s.Tracking.Password != "" {
		s.Tracking.Password = "REDACTED"
	}
	return s
}
