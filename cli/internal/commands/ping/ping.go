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

package ping

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/thestormforge/optimize-train/cli/internal/commander"
	"github.com/thestormforge/optimize-train/internal/tracking"
	"github.com/thestormforge/optimize-train/internal/version"
	"golang.org/x/oauth2"
)

// Options are the configuration for pinging the tracking server
type Options struct {
	// Globals are the process settings
	*commander.Globals
	// TrackingAPI is used to interact with the tracking server
	TrackingAPI tracking.API
	// IOStreams are used to access the standard process streams
	commander.IOStreams
}

// NewCommand creates a new command for pinging the tracking server
func NewCommand(o *Options) *cobra.Command {
	if o.Globals == nil {
		o.Globals = &commander.Globals{}
	}

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Ping the tracking server",

		PreRunE: func(cmd *cobra.Command, args []string) error {
			commander.SetStreams(&o.IOStreams, cmd)
			updateUserAgent(cmd.Context())
			if o.TrackingAPI != nil {
				return nil
			}
			return commander.SetTrackingAPI(&o.TrackingAPI, o.Settings, cmd)
		},
		RunE: commander.WithContextE(o.ping),
	}

	return cmd
}

func (o *Options) ping(ctx context.Context) error {
	_, _ = fmt.Fprintf(o.Out, "PING %s: HTTP/1.1 GET /health\n", o.Settings.Tracking.URI)

	start := time.Now()
	err := o.TrackingAPI.Health(ctx)
	dur := time.Since(start).Round(time.Microsecond)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(o.Out, "PONG time=%s\n", dur.String())
	return nil
}

// Adds a comment to the UA string so we know the source of all these health requests
func updateUserAgent(ctx context.Context) {
	if ctx == nil {
		return
	}
	if c, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok {
		if rt, ok := c.Transport.(*version.Transport); ok {
			rt.UserAgent += " (ping)"
		}
	}
}
