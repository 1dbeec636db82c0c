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

package result

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ResultsCSVName is the per-epoch results table written into the save directory.
const ResultsCSVName = "results.csv"

// ResultsCSV produces a results dictionary from the final row of an engine's
// per-epoch results table.
type ResultsCSV struct {
	// Path is the location of the results table.
	Path string
}

// NewResultsCSV returns a method-backed result reading the results table in the save directory.
func NewResultsCSV(saveDir string) Result {
	return FromResultsDict(&ResultsCSV{Path: filepath.Join(saveDir, ResultsCSVName)}, saveDir)
}

// ResultsDict reads the header and the last row of the table.
func (r *ResultsCSV) ResultsDict() (map[string]interface{}, error) {
	f, err := os.Open(r.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading %s header: %w", r.Path, err)
	}

	var last []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", r.Path, err)
		}
		last = rec
	}

	dict := make(map[string]interface{}, len(header))
	for i, h := range header {
		if i >= len(last) {
			break
		}
		// Older engine versions pad the column names to align them
		dict[strings.TrimSpace(h)] = strings.TrimSpace(last[i])
	}
	return dict, nil
}
