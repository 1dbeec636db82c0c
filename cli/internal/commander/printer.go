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

package commander

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

// ResourcePrinter formats an object to a byte stream
type ResourcePrinter interface {
	// PrintObj formats the specified object to the specified writer
	PrintObj(interface{}, io.Writer) error
}

// ResourcePrinterFunc allows a simple function to be used as resource printer
type ResourcePrinterFunc func(interface{}, io.Writer) error

func (rpf ResourcePrinterFunc) PrintObj(obj interface{}, w io.Writer) error {
	return rpf(obj, w)
}

// NoPrinterError is an error occurring when no suitable printer is available
type NoPrinterError struct {
	// OutputFormat is the requested output format
	OutputFormat string
	// AllowedFormats are the available output formats
	AllowedFormats []string
}

// Error returns a useful message for a "no printer" error
func (e NoPrinterError) Error() string {
	sort.Strings(e.AllowedFormats)
	return fmt.Sprintf("no printer for %s, allowed formats are: %s", e.OutputFormat, strings.Join(e.AllowedFormats, ","))
}

var allowedFormats = []string{"yaml", "json"}

// SetPrinter assigns the printer during the pre-run of the supplied command
func SetPrinter(printer *ResourcePrinter, cmd *cobra.Command) {
	outputFormat := allowedFormats[0]
	cmd.Flags().StringVarP(&outputFormat, "output", "o", outputFormat, "output `format`")
	SetFlagValues(cmd, "output", allowedFormats...)

	AddPreRunE(cmd, func(*cobra.Command, []string) error {
		p, err := newPrinter(outputFormat)
		if err != nil {
			return err
		}
		*printer = p
		return nil
	})
}

func newPrinter(outputFormat string) (ResourcePrinter, error) {
	switch strings.ToLower(outputFormat) {
	case "yaml", "":
		return &marshalPrinter{outputFormat: "yaml"}, nil
	case "json":
		return &marshalPrinter{outputFormat: "json"}, nil
	default:
		return nil, NoPrinterError{OutputFormat: outputFormat, AllowedFormats: append([]string(nil), allowedFormats...)}
	}
}

// marshalPrinter is a printer that generates output using some type of generic encoding (e.g. JSON)
type marshalPrinter struct {
	// outputFormat is the name of the marshaller to use, JSON will be used if it is unrecognized
	outputFormat string
}

// PrintObj will marshal the supplied object
func (p *marshalPrinter) PrintObj(obj interface{}, w io.Writer) error {
	if p.outputFormat == "yaml" {
		output, err := yaml.Marshal(obj)
		if err != nil {
			return err
		}
		_, err = w.Write(output)
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(obj)
}
