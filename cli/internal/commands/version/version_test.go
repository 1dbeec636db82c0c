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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thestormforge/optimize-train/internal/tracking/fake"
)

func TestVersion(t *testing.T) {
	cases := []struct {
		desc     string
		args     []string
		expected string
	}{
		{
			desc:     "client",
			expected: "optimize-train version: v0.0.0-source\n",
		},
		{
			desc:     "server",
			args:     []string{"--server"},
			expected: "optimize-train version: v0.0.0-source\ntracking version: 2.9.2\n",
		},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			cmd := NewCommand(&Options{Product: "optimize-train", TrackingAPI: fake.NewFakeAPI()})
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetArgs(c.args)
			require.NoError(t, cmd.Execute())
			assert.Equal(t, c.expected, out.String())
		})
	}
}
