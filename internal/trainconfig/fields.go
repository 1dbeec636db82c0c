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

package trainconfig

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Configuration field names, these double as override keys and tracked parameter names.
const (
	FieldModel       = "model"
	FieldData        = "data"
	FieldEpochs      = "epochs"
	FieldBatch       = "batch"
	FieldImgSz       = "imgsz"
	FieldSave        = "save"
	FieldSavePeriod  = "save_period"
	FieldDevice      = "device"
	FieldName        = "name"
	FieldOptimizer   = "optimizer"
	FieldSeed        = "seed"
	FieldLR0         = "lr0"
	FieldWeightDecay = "weight_decay"
	FieldDropout     = "dropout"
)

// Kind is the value type of a configuration field.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindFloat:
		return "float"
	}
	return "unknown"
}

type field struct {
	Name string
	Kind Kind
	get  func(*Configuration) interface{}
	put  func(*Configuration, interface{})
}

// set converts the value to the field kind before storing it
func (f *field) set(c *Configuration, v interface{}) error {
	var cv interface{}
	var err error
	switch f.Kind {
	case KindString:
		cv, err = toString(v)
	case KindInt:
		cv, err = toInt(v)
	case KindBool:
		cv, err = toBool(v)
	case KindFloat:
		cv, err = toFloat(v)
	}
	if err != nil {
		return err
	}
	f.put(c, cv)
	return nil
}

// fields is the static schema of recognized keys, in reporting order.
var fields = []field{
	{Name: FieldModel, Kind: KindString,
		get: func(c *Configuration) interface{} { return c.Model },
		put: func(c *Configuration, v interface{}) { c.Model = v.(string) }},
	{Name: FieldData, Kind: KindString,
		get: func(c *Configuration) interface{} { return c.Data },
		put: func(c *Configuration, v interface{}) { c.Data = v.(string) }},
	{Name: FieldEpochs, Kind: KindInt,
		get: func(c *Configuration) interface{} { return c.Epochs },
		put: func(c *Configuration, v interface{}) { c.Epochs = v.(int) }},
	{Name: FieldBatch, Kind: KindInt,
		get: func(c *Configuration) interface{} { return c.Batch },
		put: func(c *Configuration, v interface{}) { c.Batch = v.(int) }},
	{Name: FieldImgSz, Kind: KindInt,
		get: func(c *Configuration) interface{} { return c.ImgSz },
		put: func(c *Configuration, v interface{}) { c.ImgSz = v.(int) }},
	{Name: FieldSave, Kind: KindBool,
		get: func(c *Configuration) interface{} { return c.Save },
		put: func(c *Configuration, v interface{}) { c.Save = v.(bool) }},
	{Name: FieldSavePeriod, Kind: KindInt,
		get: func(c *Configuration) interface{} { return c.SavePeriod },
		put: func(c *Configuration, v interface{}) { c.SavePeriod = v.(int) }},
	{Name: FieldDevice, Kind: KindString,
		get: func(c *Configuration) interface{} { return c.Device },
		put: func(c *Configuration, v interface{}) { c.Device = v.(string) }},
	{Name: FieldName, Kind: KindString,
		get: func(c *Configuration) interface{} { return c.Name },
		put: func(c *Configuration, v interface{}) { c.Name = v.(string) }},
	{Name: FieldOptimizer, Kind: KindString,
		get: func(c *Configuration) interface{} { return c.Optimizer },
		put: func(c *Configuration, v interface{}) { c.Optimizer = v.(string) }},
	{Name: FieldSeed, Kind: KindInt,
		get: func(c *Configuration) interface{} { return c.Seed },
		put: func(c *Configuration, v interface{}) { c.Seed = v.(int) }},
	{Name: FieldLR0, Kind: KindFloat,
		get: func(c *Configuration) interface{} { return c.LR0 },
		put: func(c *Configuration, v interface{}) { c.LR0 = v.(float64) }},
	{Name: FieldWeightDecay, Kind: KindFloat,
		get: func(c *Configuration) interface{} { return c.WeightDecay },
		put: func(c *Configuration, v interface{}) { c.WeightDecay = v.(float64) }},
	{Name: FieldDropout, Kind: KindFloat,
		get: func(c *Configuration) interface{} { return c.Dropout },
		put: func(c *Configuration, v interface{}) { c.Dropout = v.(float64) }},
}

var fieldIndex = func() map[string]*field {
	idx := make(map[string]*field, len(fields))
	for i := range fields {
		idx[fields[i].Name] = &fields[i]
	}
	return idx
}()

// FieldNames returns the recognized field names in their declared order.
func FieldNames() []string {
	names := make([]string, len(fields))
	for i := range fields {
		names[i] = fields[i].Name
	}
	return names
}

// IsField checks if the name is a recognized configuration field.
func IsField(name string) bool {
	_, ok := fieldIndex[name]
	return ok
}

// FieldKind returns the kind of the named field.
func FieldKind(name string) (Kind, bool) {
	f, ok := fieldIndex[name]
	if !ok {
		return 0, false
	}
	return f.Kind, true
}

// ParseOverride converts a textual value (e.g. from a `key=value` flag) for the named field.
func ParseOverride(name, value string) (interface{}, error) {
	f, ok := fieldIndex[name]
	if !ok {
		return nil, fmt.Errorf("unknown configuration field %q", name)
	}

	switch f.Kind {
	case KindInt:
		return strconv.Atoi(strings.TrimSpace(value))
	case KindBool:
		return strconv.ParseBool(strings.TrimSpace(value))
	case KindFloat:
		return strconv.ParseFloat(strings.TrimSpace(value), 64)
	default:
		return value, nil
	}
}

// FormatValue renders a configuration value as a tracked parameter value.
func FormatValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toString(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		return nil, fmt.Errorf("expected a string, got %T", v)
	}
}

func toInt(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int32:
		return int(t), nil
	case int64:
		return int(t), nil
	case float64:
		// Decoded JSON and YAML numbers
		if t != math.Trunc(t) {
			return nil, fmt.Errorf("expected an integer, got %g", t)
		}
		return int(t), nil
	default:
		return nil, fmt.Errorf("expected an integer, got %T", v)
	}
}

func toBool(v interface{}) (interface{}, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return nil, fmt.Errorf("expected a boolean, got %T", v)
}

func toFloat(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	default:
		return nil, fmt.Errorf("expected a number, got %T", v)
	}
}

// ParseAssignments converts "key=value" assignments into overrides. Assignments to
// unknown fields are dropped; later assignments replace earlier ones.
func ParseAssignments(assignments []string) (Overrides, error) {
	overrides := make(Overrides, len(assignments))
	for _, kv := range assignments {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid assignment %q, expected key=value", kv)
		}
		k = strings.TrimSpace(k)
		if !IsField(k) {
			continue
		}
		val, err := ParseOverride(k, v)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", k, err)
		}
		overrides[k] = val
	}
	return overrides, nil
}
