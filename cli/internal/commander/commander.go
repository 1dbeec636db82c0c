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
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/thestormforge/optimize-train/internal/logging"
	"github.com/thestormforge/optimize-train/internal/settings"
	"github.com/thestormforge/optimize-train/internal/tracking"
	"golang.org/x/oauth2"
)

// IOStreams allows individual commands access to standard process streams (or their overrides).
type IOStreams struct {
	// In is used to access the standard input stream (or it's override)
	In io.Reader
	// Out is used to access the standard output stream (or it's override)
	Out io.Writer
	// ErrOut is used to access the standard error output stream (or it's override)
	ErrOut io.Writer
}

// OpenFile returns a read closer for the specified filename. If the filename is logically
// empty (i.e. "-"), the input stream is returned.
func (s *IOStreams) OpenFile(filename string) (io.ReadCloser, error) {
	if filename == "-" {
		return io.NopCloser(s.In), nil
	}
	return os.Open(filename)
}

// SetStreams updates the streams using the supplied command
func SetStreams(streams *IOStreams, cmd *cobra.Command) {
	streams.Out = cmd.OutOrStdout()
	streams.ErrOut = cmd.ErrOrStderr()
	streams.In = cmd.InOrStdin()
}

// StreamsPreRun is intended to be used as a pre-run function for commands when no other action is required
func StreamsPreRun(streams *IOStreams) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		SetStreams(streams, cmd)
	}
}

// Globals are the process wide settings shared by every command.
type Globals struct {
	// SettingsFile is the path to the settings file, "-" reads the settings from the input stream
	SettingsFile string
	// LogLevel is the minimum level logged
	LogLevel string
	// LogFile is an optional path to a rotated log file
	LogFile string

	// Settings are the loaded settings
	Settings settings.Settings
	// Log is the process logger
	Log logr.Logger
}

// Load reads the settings and constructs the logger.
func (g *Globals) Load(streams IOStreams) error {
	log, err := logging.New(logging.Options{Level: g.LogLevel, File: g.LogFile, Out: streams.ErrOut})
	if err != nil {
		return err
	}
	g.Log = log

	switch g.SettingsFile {
	case "-":
		r, err := streams.OpenFile(g.SettingsFile)
		if err != nil {
			return err
		}
		defer r.Close()
		b, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		g.Settings, err = settings.LoadBytes(b)
		return err
	default:
		g.Settings, err = settings.Load(g.SettingsFile)
		return err
	}
}

// ConfigGlobals sets up persistent globals for the supplied configuration
func ConfigGlobals(g *Globals, cmd *cobra.Command) {
	// Make sure we get the root to make these globals
	root := cmd.Root()

	root.PersistentFlags().StringVar(&g.SettingsFile, "settings", g.SettingsFile, "path to the settings `file` to use")
	root.PersistentFlags().StringVar(&g.LogLevel, "log-level", "INFO", "minimum `level` of logged messages")
	root.PersistentFlags().StringVar(&g.LogFile, "log-file", "", "path to an additional, size rotated, log `file`")

	_ = root.MarkPersistentFlagFilename("settings", "yaml", "yml")
	SetFlagValues(root, "log-level", logging.Levels...)

	// Set the persistent pre-run on the root, individual commands can bypass this by supplying their own persistent pre-run
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		streams := IOStreams{}
		SetStreams(&streams, cmd)
		return g.Load(streams)
	}
}

// SetTrackingAPI creates a new tracking API interface from the supplied settings
func SetTrackingAPI(api *tracking.API, s settings.Settings, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Reuse the OAuth2 base transport (which carries the user agent) for the API calls
	t := tracking.Authorize(oauth2.NewClient(ctx, nil).Transport, tracking.Credentials{
		Token:    s.Tracking.Token,
		Username: s.Tracking.Username,
		Password: s.Tracking.Password,
	})

	c, err := tracking.NewClient(s.Tracking.URI, t)
	if err != nil {
		return err
	}

	*api = tracking.NewAPI(c)
	return nil
}

// WithContextE wraps a function that accepts a context in one that accepts a command and argument slice
func WithContextE(runE func(context.Context) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error { return runE(cmd.Context()) }
}

// WithoutArgsE wraps a no-argument function in one that accepts a command and argument slice
func WithoutArgsE(runE func() error) func(*cobra.Command, []string) error {
	return func(*cobra.Command, []string) error { return runE() }
}

// AddPreRunE adds an error returning pre-run function to the supplied command, existing pre-run actions will run AFTER
// the supplied function, and only if the supplied pre-run function does not return an error
func AddPreRunE(cmd *cobra.Command, preRunE func(*cobra.Command, []string) error) {
	// Nothing set yet, just add it
	if cmd.PreRunE == nil && cmd.PreRun == nil {
		cmd.PreRunE = preRunE
		return
	}

	// Capture the existing function
	oldPreRunE := cmd.PreRunE
	oldPreRun := cmd.PreRun

	// Redefine the pre-run
	cmd.PreRun = nil
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if err := preRunE(cmd, args); err != nil {
			return err
		}
		if oldPreRunE != nil {
			return oldPreRunE(cmd, args)
		}
		if oldPreRun != nil {
			oldPreRun(cmd, args)
		}
		return nil
	}
}

// SetFlagValues updates the named flag usage and completion to include possible choices.
func SetFlagValues(cmd *cobra.Command, flagName string, values ...string) {
	f := cmd.Flag(flagName)
	if f == nil {
		return
	}

	// Remove blank values
	tmp := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			tmp = append(tmp, v)
		}
	}
	values = tmp

	f.Usage = fmt.Sprintf("%s; one of: %s", f.Usage, strings.Join(values, "|"))
	_ = cmd.RegisterFlagCompletionFunc(flagName, func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		c := make([]string, 0, len(values))
		for _, v := range values {
			if strings.HasPrefix(v, toComplete) {
				c = append(c, v)
			}
		}
		return c, cobra.ShellCompDirectiveNoFileComp
	})
}

// MapErrors wraps all of the error returning functions on the supplied command (and it's sub-commands) so that
// they pass any errors through the mapping function.
func MapErrors(cmd *cobra.Command, f func(error) error) {
	// Define a function which passes all errors through the supplied mapping function
	wrapE := func(runE func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
		if runE != nil {
			return func(cmd *cobra.Command, args []string) error {
				return f(runE(cmd, args))
			}
		}
		return nil
	}

	// Wrap all the error returning functions
	cmd.PersistentPreRunE = wrapE(cmd.PersistentPreRunE)
	cmd.PreRunE = wrapE(cmd.PreRunE)
	cmd.RunE = wrapE(cmd.RunE)
	cmd.PostRunE = wrapE(cmd.PostRunE)
	cmd.PersistentPostRunE = wrapE(cmd.PersistentPostRunE)

	// Recurse and wrap errors for all of the sub-commands
	for _, c := range cmd.Commands() {
		MapErrors(c, f)
	}
}
