// Package manifest reads the YAML file that lists the units of a suite.
//
//	units:
//	  - name: login
//	    command: ./run-test login
//	    timeout: 5m
//	  - name: checkout
//	    command: [./run-test, checkout]
//	    depends_on: login
//	    delay: 2.5
package manifest

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/shlex"
	"gopkg.in/yaml.v3"

	"github.com/me/relay/pkg/model"
)

// File is the top-level manifest document.
type File struct {
	Units []Entry `yaml:"units" validate:"dive"`
}

// Entry is one unit as written in the manifest.
type Entry struct {
	Name      string            `yaml:"name" validate:"required"`
	Command   Command           `yaml:"command" validate:"required"`
	Env       map[string]string `yaml:"env"`
	Dir       string            `yaml:"dir"`
	Timeout   string            `yaml:"timeout"`
	DependsOn *string           `yaml:"depends_on"`
	// Delay is in minutes.
	Delay *float64 `yaml:"delay" validate:"omitempty,gte=0"`
}

// Command is an argv. In YAML it is either a list or a single string split
// with shell quoting rules.
type Command []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Command) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		parts, err := shlex.Split(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: split command: %w", node.Line, err)
		}
		*c = parts
		return nil
	case yaml.SequenceNode:
		var parts []string
		if err := node.Decode(&parts); err != nil {
			return err
		}
		*c = parts
		return nil
	default:
		return fmt.Errorf("line %d: command must be a string or a list", node.Line)
	}
}

// Load reads and parses the manifest at path.
func Load(path string) ([]model.UnitSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes a manifest. source names the document in error messages.
func Parse(data []byte, source string) ([]model.UnitSpec, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	if err := validator.New().Struct(&f); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return nil, fmt.Errorf("%s: %s: failed %q validation", source, fe.Namespace(), fe.Tag())
		}
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	specs := make([]model.UnitSpec, 0, len(f.Units))
	for _, e := range f.Units {
		spec, err := e.spec()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (e Entry) spec() (model.UnitSpec, error) {
	spec := model.UnitSpec{
		Name:         e.Name,
		Command:      []string(e.Command),
		Dir:          e.Dir,
		Env:          e.Env,
		DependsOn:    e.DependsOn,
		DelayMinutes: e.Delay,
	}

	if (e.DependsOn == nil) != (e.Delay == nil) {
		return spec, model.NewConfigError(model.ErrCodeInvalidDelay, e.Name,
			"depends_on and delay must be given together")
	}

	if e.Timeout != "" {
		d, err := time.ParseDuration(e.Timeout)
		if err != nil || d < 0 {
			return spec, model.NewConfigError(model.ErrCodeInvalidUnit, e.Name, "invalid timeout %q", e.Timeout)
		}
		spec.Timeout = d
	}
	return spec, nil
}

// Filter keeps the units named in only (all when empty) and drops those in
// exclude. Dependencies are not pulled in; a filtered-out dependency later
// fails tree validation.
func Filter(specs []model.UnitSpec, only, exclude []string) []model.UnitSpec {
	keep := toSet(only)
	drop := toSet(exclude)
	var out []model.UnitSpec
	for _, s := range specs {
		if len(keep) > 0 && !keep[s.Name] {
			continue
		}
		if drop[s.Name] {
			continue
		}
		out = append(out, s)
	}
	return out
}

func toSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
