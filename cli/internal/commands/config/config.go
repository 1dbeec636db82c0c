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

package config

import (
	"github.com/spf13/cobra"
	"github.com/thestormforge/optimize-train/cli/internal/commander"
	"github.com/thestormforge/optimize-train/internal/settings"
	"github.com/thestormforge/optimize-train/internal/trainconfig"
)

// Options are the configuration for viewing the effective configuration
type Options struct {
	// Globals are the process settings
	*commander.Globals
	// Printer is the resource printer used to render the configuration
	Printer commander.ResourcePrinter
	// IOStreams are used to access the standard process streams
	commander.IOStreams

	// Set are "key=value" training configuration overrides
	Set []string
	// ShowSecrets includes the tracking credentials in the output
	ShowSecrets bool
}

// View is the effective configuration.
type View struct {
	Settings settings.Settings         `json:"settings"`
	Training trainconfig.Configuration `json:"training"`
}

// NewCommand creates a new command for viewing the configuration
func NewCommand(o *Options) *cobra.Command {
	if o.Globals == nil {
		o.Globals = &commander.Globals{}
	}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "View the effective configuration",
		Long:  "View the effective settings and the resolved training configuration",
		Args:  cobra.NoArgs,

		PreRun: commander.StreamsPreRun(&o.IOStreams),
		RunE:   commander.WithoutArgsE(o.view),
	}

	cmd.Flags().StringArrayVar(&o.Set, "set", nil, "training configuration `key=value`, may be repeated")
	cmd.Flags().BoolVar(&o.ShowSecrets, "show-secrets", false, "display credentials instead of redacting them")

	commander.SetPrinter(&o.Printer, cmd)

	return cmd
}

func (o *Options) view() error {
	overrides, err := trainconfig.ParseAssignments(o.Set)
	if err != nil {
		return err
	}

	cfg, err := trainconfig.Resolve(overrides)
	if err != nil {
		return err
	}

	v := View{Settings: o.Settings, Training: cfg}
	if !o.ShowSecrets {
		v.Settings = v.Settings.Redacted()
	}
	return o.Printer.PrintObj(v, o.Out)
}
