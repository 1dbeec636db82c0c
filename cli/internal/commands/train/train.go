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

package train

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thestormforge/optimize-train/cli/internal/commander"
	"github.com/thestormforge/optimize-train/internal/engine"
	"github.com/thestormforge/optimize-train/internal/metrics"
	"github.com/thestormforge/optimize-train/internal/report"
	"github.com/thestormforge/optimize-train/internal/tracking"
	"github.com/thestormforge/optimize-train/internal/trainconfig"
	"sigs.k8s.io/yaml"
)

// Source is recorded as the source of every run.
const Source = "optimize-train"

// overrideFlags are the configuration fields exposed as dedicated flags.
var overrideFlags = []string{
	trainconfig.FieldName,
	trainconfig.FieldModel,
	trainconfig.FieldEpochs,
	trainconfig.FieldBatch,
	trainconfig.FieldDevice,
	trainconfig.FieldOptimizer,
	trainconfig.FieldLR0,
	trainconfig.FieldWeightDecay,
	trainconfig.FieldDropout,
}

// Options are the configuration for a training run
type Options struct {
	// Globals are the process settings and logger
	*commander.Globals
	// TrackingAPI is used to record the run
	TrackingAPI tracking.API
	// Engine trains the model
	Engine engine.Engine
	// Pusher exports the final metrics, it is optional
	Pusher *metrics.Pusher
	// IOStreams are used to access the standard process streams
	commander.IOStreams

	// Overrides are the caller supplied configuration values
	Overrides trainconfig.Overrides
	// Set are additional "key=value" configuration overrides
	Set []string
	// DryRun prints the resolved configuration without training
	DryRun bool
}

// NewCommand creates a new command for fine-tuning a model
func NewCommand(o *Options) *cobra.Command {
	if o.Globals == nil {
		o.Globals = &commander.Globals{}
	}

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a pretrained detection model on a dataset",
		Long:  "Fine-tune a pretrained object detection model and record the run against the tracking server",
		Args:  cobra.NoArgs,

		PreRunE: func(cmd *cobra.Command, args []string) error {
			commander.SetStreams(&o.IOStreams, cmd)

			var err error
			if o.Overrides, err = overrides(cmd.Flags(), o.Set); err != nil {
				return err
			}

			if o.Engine == nil {
				o.Engine = o.newEngine()
			}
			if o.Pusher == nil && o.Settings.Push.URL != "" {
				o.Pusher = &metrics.Pusher{URL: o.Settings.Push.URL, Job: o.Settings.Push.Job}
			}
			if o.TrackingAPI == nil && !o.DryRun {
				return commander.SetTrackingAPI(&o.TrackingAPI, o.Settings, cmd)
			}
			return nil
		},
		RunE: commander.WithContextE(o.train),
	}

	defaults := trainconfig.Defaults()
	cmd.Flags().String(trainconfig.FieldName, "", "run `name`, also names the engine output directory")
	cmd.Flags().String(trainconfig.FieldModel, defaults.Model, "pretrained model `file` to fine-tune")
	cmd.Flags().Int(trainconfig.FieldEpochs, defaults.Epochs, "number of training `epochs`")
	cmd.Flags().Int(trainconfig.FieldBatch, defaults.Batch, "training batch `size`")
	cmd.Flags().String(trainconfig.FieldDevice, defaults.Device, "training `device`, for example 0, 0,1 or cpu")
	cmd.Flags().String(trainconfig.FieldOptimizer, defaults.Optimizer, "optimizer `name`, auto lets the engine choose")
	cmd.Flags().Float64(trainconfig.FieldLR0, defaults.LR0, "initial learning `rate`")
	cmd.Flags().Float64(trainconfig.FieldWeightDecay, defaults.WeightDecay, "optimizer weight `decay`")
	cmd.Flags().Float64(trainconfig.FieldDropout, defaults.Dropout, "dropout `rate`")
	cmd.Flags().StringArrayVar(&o.Set, "set", nil, "additional configuration `key=value`, may be repeated")
	cmd.Flags().BoolVar(&o.DryRun, "dry-run", false, "print the resolved configuration without training")

	_ = cmd.MarkFlagRequired(trainconfig.FieldName)
	_ = cmd.RegisterFlagCompletionFunc("set", func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var c []string
		for _, name := range trainconfig.FieldNames() {
			if strings.HasPrefix(name, toComplete) {
				c = append(c, name+"=")
			}
		}
		return c, cobra.ShellCompDirectiveNoSpace
	})

	return cmd
}

// overrides returns the configuration values explicitly supplied on the command line;
// dedicated flags take precedence over "--set" values.
func overrides(flags *pflag.FlagSet, set []string) (trainconfig.Overrides, error) {
	result, err := trainconfig.ParseAssignments(set)
	if err != nil {
		return nil, fmt.Errorf("invalid --set value: %w", err)
	}

	for _, name := range overrideFlags {
		if !flags.Changed(name) {
			continue
		}
		var v interface{}
		switch kind, _ := trainconfig.FieldKind(name); kind {
		case trainconfig.KindInt:
			v, err = flags.GetInt(name)
		case trainconfig.KindFloat:
			v, err = flags.GetFloat64(name)
		default:
			v, err = flags.GetString(name)
		}
		if err != nil {
			return nil, err
		}
		result[name] = v
	}
	return result, nil
}

func (o *Options) newEngine() engine.Engine {
	// Output mode was validated with the settings
	output, _ := engine.ParseOutputMode(o.Settings.Engine.Output)
	return &engine.Command{
		Path:   o.Settings.Engine.Command,
		Output: output,
		Dir:    o.Settings.Engine.Dir,
		Stdout: o.Out,
		Stderr: o.ErrOut,
		Log:    o.Log.WithName("engine"),
	}
}

func (o *Options) layout() report.Layout {
	return report.Layout{
		RunsRoot: o.Settings.Runs.Root,
		Task:     o.Settings.Runs.Task,
		Weights:  o.Settings.Runs.Weights,
	}
}

func (o *Options) train(ctx context.Context) (err error) {
	log := o.Log.WithName("train")

	cfg, err := trainconfig.Resolve(o.Overrides)
	if err != nil {
		return err
	}

	if o.DryRun {
		return o.dryRun(cfg)
	}

	experimentID, err := tracking.SetExperiment(ctx, o.TrackingAPI, o.Settings.Tracking.Experiment)
	if err != nil {
		return fmt.Errorf("unable to set experiment: %w", err)
	}

	run, err := tracking.StartRun(ctx, o.TrackingAPI, experimentID, tracking.RunOptions{
		Name:   cfg.Name,
		Source: Source,
		Tags:   map[string]string{tracking.TagBaseModel: cfg.Model},
	})
	if err != nil {
		return fmt.Errorf("unable to start run: %w", err)
	}
	log.Info("Started run", "runID", run.Info().RunID, "experiment", o.Settings.Tracking.Experiment)

	// The run is always closed, even when training fails or the context is cancelled
	status := tracking.RunFailed
	defer func() {
		if endErr := run.End(context.WithoutCancel(ctx), status); endErr != nil {
			log.Error(endErr, "Unable to end run", "runID", run.Info().RunID)
			if err == nil {
				err = endErr
			}
		}
	}()

	res, trainErr := o.Engine.Train(ctx, cfg.Model, cfg.TrainArgs())
	if trainErr != nil {
		log.Error(trainErr, "Training failed")
	}

	reporter := &report.Reporter{Tracker: run, Layout: o.layout(), Log: o.Log.WithName("report")}
	rec, err := reporter.Report(ctx, res, cfg)
	if err != nil {
		if errors.Is(err, report.ErrNoResult) && trainErr != nil {
			return fmt.Errorf("%w: %v", report.ErrNoResult, trainErr)
		}
		return err
	}
	status = tracking.RunFinished

	if o.Pusher != nil {
		if err := o.Pusher.Push(ctx, cfg.Name, rec.Metrics); err != nil {
			log.Error(err, "Unable to push metrics", "url", o.Pusher.URL)
		}
	}

	log.Info("Training complete", "runID", run.Info().RunID)
	return nil
}

func (o *Options) dryRun(cfg trainconfig.Configuration) error {
	output, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if _, err := o.Out.Write(output); err != nil {
		return err
	}

	if c, ok := o.Engine.(*engine.Command); ok {
		_, err = fmt.Fprintf(o.Out, "# %s\n", strings.Join(c.CommandLine(cfg.Model, cfg.TrainArgs()), " "))
	}
	return err
}
