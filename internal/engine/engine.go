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

// Package engine drives the external training program.
package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/thestormforge/optimize-train/internal/result"
	"github.com/thestormforge/optimize-train/internal/trainconfig"
)

// Engine trains a pretrained model.
type Engine interface {
	// Train blocks until training completes. A nil result means the engine did not
	// produce one, the error (if any) describes why.
	Train(ctx context.Context, model string, args map[string]interface{}) (result.Result, error)
}

// OutputMode selects how the result is recovered from the training program.
type OutputMode string

const (
	// OutputConsole locates the save directory in the console output and reads its results table.
	OutputConsole OutputMode = "console"
	// OutputJSON reads the last JSON object written to standard output.
	OutputJSON OutputMode = "json"
)

// ParseOutputMode returns the output mode for the supplied name.
func ParseOutputMode(s string) (OutputMode, error) {
	switch OutputMode(s) {
	case OutputConsole, "":
		return OutputConsole, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown engine output mode %q, expected %q or %q", s, OutputConsole, OutputJSON)
	}
}

// Arguments returns the "key=value" arguments for the model and the training
// arguments, sorted by key. Empty string values are omitted.
func Arguments(model string, args map[string]interface{}) []string {
	keys := make([]string, 0, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(keys)+1)
	if model != "" {
		result = append(result, trainconfig.FieldModel+"="+model)
	}
	for _, k := range keys {
		result = append(result, k+"="+trainconfig.FormatValue(args[k]))
	}
	return result
}
