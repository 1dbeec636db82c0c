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

// Package trainconfig resolves the complete configuration of a single training run
// from caller supplied overrides and a fixed set of defaults.
package trainconfig

import (
	"errors"
	"fmt"
)

// Configuration is the complete set of parameters governing one training invocation.
// Values are always fully populated, use Resolve (or Defaults) to obtain one.
type Configuration struct {
	// Model is the pretrained base model to load, it is the run's lineage rather than a tuned parameter.
	Model string `json:"model"`
	// Data is the dataset description.
	Data string `json:"data"`
	// Epochs is the number of training epochs.
	Epochs int `json:"epochs"`
	// Batch is the batch size.
	Batch int `json:"batch"`
	// ImgSz is the input image resolution.
	ImgSz int `json:"imgsz"`
	// Save toggles checkpoint persistence.
	Save bool `json:"save"`
	// SavePeriod is the checkpoint interval in epochs, -1 only saves the final and best weights.
	SavePeriod int `json:"save_period"`
	// Device is the compute target, e.g. an accelerator index or "cpu".
	Device string `json:"device"`
	// Name is the run (and output directory) label.
	Name string `json:"name,omitempty"`
	// Optimizer is the optimizer identifier, "auto" lets the engine decide.
	Optimizer string `json:"optimizer"`
	// Seed is the random seed.
	Seed int `json:"seed"`
	// LR0 is the initial learning rate.
	LR0 float64 `json:"lr0"`
	// WeightDecay is the optimizer weight decay.
	WeightDecay float64 `json:"weight_decay"`
	// Dropout is the dropout rate.
	Dropout float64 `json:"dropout"`
}

// Defaults returns the default configuration.
func Defaults() Configuration {
	return Configuration{
		Model:       "yolo26n.pt",
		Data:        "coco128.yaml",
		Epochs:      20,
		Batch:       4,
		ImgSz:       640,
		Save:        true,
		SavePeriod:  -1,
		Device:      "0",
		Optimizer:   "auto",
		Seed:        42,
		LR0:         0.01,
		WeightDecay: 0.0005,
		Dropout:     0.0,
	}
}

// Overrides maps configuration field names to caller supplied values. A nil value
// is treated as "not provided".
type Overrides map[string]interface{}

// Resolve merges the overrides over the defaults. Keys which do not name a
// configuration field are ignored.
func Resolve(overrides Overrides) (Configuration, error) {
	cfg := Defaults()
	for i := range fields {
		f := &fields[i]
		v, ok := overrides[f.Name]
		if !ok || v == nil {
			continue
		}
		if err := f.set(&cfg, v); err != nil {
			return Configuration{}, fmt.Errorf("invalid override %q: %w", f.Name, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}

// Validate checks the numeric constraints of the configuration.
func (c Configuration) Validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	nonNegative := func(name string, v float64) {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %g", name, v))
		}
	}

	positive(FieldEpochs, c.Epochs)
	positive(FieldBatch, c.Batch)
	positive(FieldImgSz, c.ImgSz)
	nonNegative(FieldLR0, c.LR0)
	nonNegative(FieldWeightDecay, c.WeightDecay)
	nonNegative(FieldDropout, c.Dropout)

	return errors.Join(errs...)
}

// Values returns every field keyed by name.
func (c Configuration) Values() map[string]interface{} {
	values := make(map[string]interface{}, len(fields))
	for i := range fields {
		values[fields[i].Name] = fields[i].get(&c)
	}
	return values
}

// TrainArgs returns the flat argument set handed to the training engine; the
// model is excluded because the engine loads it separately.
func (c Configuration) TrainArgs() map[string]interface{} {
	args := c.Values()
	delete(args, FieldModel)
	return args
}

// Params returns the tracked parameter set: every field except the model,
// formatted verbatim (sentinel values are not interpreted).
func (c Configuration) Params() map[string]string {
	params := make(map[string]string, len(fields)-1)
	for k, v := range c.TrainArgs() {
		params[k] = FormatValue(v)
	}
	return params
}
