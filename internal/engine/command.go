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

package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/thestormforge/optimize-train/internal/result"
	"sigs.k8s.io/yaml"
)

// DefaultCommand is the training program command line.
var DefaultCommand = []string{"yolo", "detect", "train"}

var _ Engine = &Command{}

// Command runs training as an external program.
type Command struct {
	// Path is the command line, the "key=value" arguments are appended to it.
	Path []string
	// Output selects how the result is recovered.
	Output OutputMode
	// Dir is the working directory of the program.
	Dir string
	// Env is additional environment for the program.
	Env []string
	// Stdout and Stderr receive the program's output as it is produced.
	Stdout io.Writer
	Stderr io.Writer
	// Log receives progress messages.
	Log logr.Logger
}

// CommandLine returns the full command line for the supplied training arguments.
func (c *Command) CommandLine(model string, args map[string]interface{}) []string {
	path := c.Path
	if len(path) == 0 {
		path = DefaultCommand
	}
	return append(append([]string(nil), path...), Arguments(model, args)...)
}

func (c *Command) Train(ctx context.Context, model string, args map[string]interface{}) (result.Result, error) {
	argv := c.CommandLine(model, args)
	c.Log.Info("Starting training", "command", strings.Join(argv, " "))

	rec := &recorder{}
	stdout, stderr := &lineWriter{rec: rec, stdout: true}, &lineWriter{rec: rec}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Stdout = io.MultiWriter(orDiscard(c.Stdout), stdout)
	cmd.Stderr = io.MultiWriter(orDiscard(c.Stderr), stderr)

	err := cmd.Run()
	stdout.flush()
	stderr.flush()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("training exited with status %d", exitErr.ExitCode())
		}
		return nil, fmt.Errorf("unable to run training: %w", err)
	}

	switch c.Output {
	case OutputJSON:
		return c.jsonResult(rec)
	default:
		return c.consoleResult(rec)
	}
}

func (c *Command) consoleResult(rec *recorder) (result.Result, error) {
	if rec.saveDir == "" {
		c.Log.Info("Training output did not include a save directory")
		return nil, nil
	}
	saveDir := c.resolve(rec.saveDir)
	c.Log.V(1).Info("Found save directory", "saveDir", saveDir)
	return result.NewResultsCSV(saveDir), nil
}

func (c *Command) jsonResult(rec *recorder) (result.Result, error) {
	if rec.lastJSON == nil {
		c.Log.Info("Training output did not include a JSON result")
		return nil, nil
	}

	d := result.Dict{}
	if err := yaml.Unmarshal(rec.lastJSON, &d); err != nil {
		return nil, fmt.Errorf("invalid training result: %w", err)
	}
	if dir, ok := d.SaveDir(); ok {
		d[result.SaveDirKey] = c.resolve(dir)
	} else if rec.saveDir != "" {
		d[result.SaveDirKey] = c.resolve(rec.saveDir)
	}
	return d, nil
}

// resolve makes a path reported by the program relative to the program's working directory.
func (c *Command) resolve(p string) string {
	if c.Dir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

var (
	ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)
	savedTo    = regexp.MustCompile(`Results saved to (.+)$`)
)

// recorder keeps the details of the program output needed to recover the result.
type recorder struct {
	mu       sync.Mutex
	saveDir  string
	lastJSON []byte
}

func (r *recorder) line(b []byte, stdout bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := strings.TrimSpace(ansiEscape.ReplaceAllString(string(b), ""))
	if m := savedTo.FindStringSubmatch(line); m != nil {
		r.saveDir = strings.TrimSpace(m[1])
	}
	if stdout && strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
		r.lastJSON = []byte(line)
	}
}

// lineWriter splits a stream into lines for the recorder.
type lineWriter struct {
	rec    *recorder
	stdout bool
	buf    bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		// Progress bars redraw using carriage returns
		i := bytes.IndexAny(w.buf.Bytes(), "\r\n")
		if i < 0 {
			break
		}
		line := w.buf.Next(i + 1)
		w.rec.line(line[:i], w.stdout)
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if w.buf.Len() > 0 {
		w.rec.line(w.buf.Bytes(), w.stdout)
		w.buf.Reset()
	}
}
