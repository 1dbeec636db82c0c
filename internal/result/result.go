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

// Package result normalizes the outcome of a training invocation.
//
// Training engines expose their results in different shapes: some hand back a
// plain dictionary, others a value that produces the dictionary on demand. Both
// are adapted to the Result interface at the engine boundary so that consumers
// only ever see one accessor.
package result

import (
	"encoding/json"
	"strconv"
	"strings"
)

// SaveDirKey is the result key holding the engine's output directory.
const SaveDirKey = "save_dir"

// Result is the present outcome of a training run. An absent outcome is represented by a nil Result.
type Result interface {
	// Metric returns the named metric value, if present and numeric.
	Metric(key string) (float64, bool)
	// SaveDir returns the directory the engine wrote its output to, if known.
	SaveDir() (string, bool)
}

// Dict is a dictionary-backed result.
type Dict map[string]interface{}

var _ Result = Dict{}

// Metric returns the numeric value stored under key.
func (d Dict) Metric(key string) (float64, bool) {
	v, ok := d[key]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// SaveDir returns the (non-empty) save directory stored in the dictionary.
func (d Dict) SaveDir() (string, bool) {
	s, ok := d[SaveDirKey].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// ResultsDicter produces a results dictionary on request.
type ResultsDicter interface {
	ResultsDict() (map[string]interface{}, error)
}

// FromResultsDict returns a method-backed result. The dictionary is produced lazily,
// on first access; a failure to produce it behaves as an empty dictionary. The save
// directory, when not empty, takes precedence over any directory in the dictionary.
func FromResultsDict(src ResultsDicter, saveDir string) Result {
	return &methodResult{src: src, saveDir: saveDir}
}

type methodResult struct {
	src     ResultsDicter
	saveDir string
	dict    Dict
	loaded  bool
	err     error
}

func (r *methodResult) load() Dict {
	if !r.loaded {
		r.loaded = true
		r.dict, r.err = r.src.ResultsDict()
	}
	return r.dict
}

func (r *methodResult) Metric(key string) (float64, bool) {
	return r.load().Metric(key)
}

func (r *methodResult) SaveDir() (string, bool) {
	if r.saveDir != "" {
		return r.saveDir, true
	}
	return r.load().SaveDir()
}

// Err returns the error, if any, encountered producing the dictionary.
func (r *methodResult) Err() error {
	r.load()
	return r.err
}

// Err returns the error encountered loading a method-backed result.
func Err(r Result) error {
	if e, ok := r.(interface{ Err() error }); ok {
		return e.Err()
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
