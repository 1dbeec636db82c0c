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

package version

import (
	"context"
	"fmt"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/thestormforge/optimize-train/cli/internal/commander"
	"github.com/thestormforge/optimize-train/internal/tracking"
	"github.com/thestormforge/optimize-train/internal/version"
)

// defaultTemplate is used to format the version information
const defaultTemplate = `{{range $key, $value := . }}{{$key}} version: {{$value}}
{{end}}`

// Options is the configuration for reporting version information
type Options struct {
	// Globals are the process settings
	*commander.Globals
	// TrackingAPI is used to interact with the tracking server
	TrackingAPI tracking.API
	// IOStreams are used to access the standard process streams
	commander.IOStreams

	// Product is the current product name
	Product string
	// Server includes the tracking server version
	Server bool
	// Debug enables error logging
	Debug bool
}

// NewCommand creates a new command for reporting version information
func NewCommand(o *Options) *cobra.Command {
	if o.Globals == nil {
		o.Globals = &commander.Globals{}
	}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Args:  cobra.NoArgs,

		PreRunE: func(cmd *cobra.Command, args []string) error {
			if o.Product == "" {
				o.Product = cmd.Root().Name()
			}
			commander.SetStreams(&o.IOStreams, cmd)
			if !o.Server || o.TrackingAPI != nil {
				return nil
			}
			return commander.SetTrackingAPI(&o.TrackingAPI, o.Settings, cmd)
		},
		RunE: commander.WithContextE(o.version),
	}

	cmd.Flags().BoolVar(&o.Server, "server", false, "include the tracking server version")
	cmd.Flags().BoolVar(&o.Debug, "debug", o.Debug, "display debugging information")

	return cmd
}

func (o *Options) version(ctx context.Context) error {
	// Collect all the version information into a map
	data := make(map[string]string, 2)
	data[o.Product] = version.GetInfo().String()

	if o.Server {
		if v, err := o.TrackingAPI.ServerVersion(ctx); err != nil {
			if o.Debug {
				_, _ = fmt.Fprintln(o.ErrOut, "tracking:", err.Error())
			}
		} else if v != "" {
			data["tracking"] = v
		}
	}

	// Format the template using the collected version information
	return template.Must(template.New("version").Parse(defaultTemplate)).Execute(o.Out, data)
}
