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
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thestormforge/optimize-train/internal/tracking/fake"
)

func TestPing(t *testing.T) {
	api := fake.NewFakeAPI()
	cmd := NewCommand(&Options{TrackingAPI: api})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "GET /health")
	assert.Contains(t, out.String(), "PONG time=")

	api.Unhealthy = true
	out.Reset()
	assert.Error(t, cmd.ExecuteContext(context.Background()))
	assert.NotContains(t, out.String(), "PONG")
}
