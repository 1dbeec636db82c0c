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

package commands

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"
	"github.com/thestormforge/optimize-train/cli/internal/commander"
	"github.com/thestormforge/optimize-train/cli/internal/commands/config"
	"github.com/thestormforge/optimize-train/cli/internal/commands/ping"
	"github.com/thestormforge/optimize-train/cli/internal/commands/train"
	"github.com/thestormforge/optimize-train/cli/internal/commands/version"
	"github.com/thestormforge/optimize-train/internal/tracking"
)

// NewRootCommand creates a new top-level command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "optimize-train",
		Short:             "Orchestrate object detection fine-tuning runs",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}

	// Create the global settings
	g := &commander.Globals{}
	commander.ConfigGlobals(g, rootCmd)

	rootCmd.AddCommand(train.NewCommand(&train.Options{Globals: g}))
	rootCmd.AddCommand(config.NewCommand(&config.Options{Globals: g}))
	rootCmd.AddCommand(ping.NewCommand(&ping.Options{Globals: g}))
	rootCmd.AddCommand(version.NewCommand(&version.Options{Globals: g}))

	commander.MapErrors(rootCmd, mapError)
	return rootCmd
}

// mapError intercepts errors returned by commands before they are reported.
func mapError(err error) error {
	if tracking.IsUnauthorized(err) {
		// Trust the error message we get from the tracking server
		var terr *tracking.Error
		if errors.As(err, &terr) && terr.Message != "unauthorized" {
			return fmt.Errorf("%w, check the tracking server credentials", err)
		}
		return fmt.Errorf("unauthorized, check the tracking server credentials (MLFLOW_TRACKING_TOKEN or MLFLOW_TRACKING_USERNAME/MLFLOW_TRACKING_PASSWORD)")
	}

	// It's really annoying to just get an "exit status was one" message.
	var e *exec.ExitError
	if errors.As(err, &e) && !e.Success() && len(e.Stderr) > 0 {
		return fmt.Errorf("%w\n%s", err, string(e.Stderr))
	}

	return err
}
