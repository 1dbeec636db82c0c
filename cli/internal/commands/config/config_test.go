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
	"bytes"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/thestormforge/optimize-train/cli/internal/commander"
	"github.com/thestormforge/optimize-train/internal/settings"
)

func TestView(t *testing.T) {
	g := NewWithT(t)

	s := settings.Default()
	s.Tracking.Token = "secret"
	cmd := NewCommand(&Options{Globals: &commander.Globals{Settings: s}})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--set", "epochs=5", "--set", "name=run1"})

	g.Expect(cmd.Execute()).To(Succeed())
	g.Expect(out.String()).To(ContainSubstring("  epochs: 5\n"))
	g.Expect(out.String()).To(ContainSubstring("  name: run1\n"))
	g.Expect(out.String()).To(ContainSubstring("experiment: yolo-object-detection\n"))
	g.Expect(out.String()).To(ContainSubstring("token: REDACTED\n"))
	g.Expect(out.String()).NotTo(ContainSubstring("secret"))
}

func TestView_JSON(t *testing.T) {
	g := NewWithT(t)

	cmd := NewCommand(&Options{Globals: &commander.Globals{Settings: settings.Default()}})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-o", "json"})

	g.Expect(cmd.Execute()).To(Succeed())
	g.Expect(out.String()).To(ContainSubstring(`"model": "yolo26n.pt"`))
}
