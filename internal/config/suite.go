// Package config loads flowbench's two configuration layers: YAML suite
// documents (the pipeline plus its evaluation samples) and the runner
// settings file.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/flowbench/flowbench/internal/aggregate"
	"github.com/flowbench/flowbench/internal/errors"
	"github.com/flowbench/flowbench/internal/pipeline"
	"github.com/flowbench/flowbench/internal/sandbox"
)

// SuiteDoc is the YAML shape of a suite file. Step documents are flat;
// Convert turns them into the pipeline's tagged configs.
type SuiteDoc struct {
	Name     string      `yaml:"name"`
	Defaults DefaultsDoc `yaml:"defaults,omitempty"`
	Steps    []StepDoc   `yaml:"steps"`
	Samples  []SampleDoc `yaml:"samples"`
}

// DefaultsDoc fills in omitted per-step fields.
type DefaultsDoc struct {
	Language       string  `yaml:"language,omitempty"`
	TimeoutSeconds float64 `yaml:"timeout_seconds,omitempty"`
}

// StepDoc is one step as written in YAML.
type StepDoc struct {
	ID           string            `yaml:"id"`
	Kind         string            `yaml:"kind"`
	InputMapping map[string]string `yaml:"input_mapping,omitempty"`
	OutputKey    string            `yaml:"output_key"`

	// Code steps.
	Language       string            `yaml:"language,omitempty"`
	Source         string            `yaml:"source,omitempty"`
	File           string            `yaml:"file,omitempty"`
	TimeoutSeconds float64           `yaml:"timeout_seconds,omitempty"`
	Env            map[string]string `yaml:"env,omitempty"`

	// Agent steps.
	Flow   string         `yaml:"flow,omitempty"`
	Params map[string]any `yaml:"params,omitempty"`

	// Aggregate steps.
	Strategy  string   `yaml:"strategy,omitempty"`
	Separator string   `yaml:"separator,omitempty"`
	Fields    []string `yaml:"fields,omitempty"`
	Code      *StepDoc `yaml:"code,omitempty"`

	// Batch mode.
	Batch *BatchDoc `yaml:"batch,omitempty"`
}

// BatchDoc configures batch fan-out for a step.
type BatchDoc struct {
	Size       int  `yaml:"size"`
	Concurrent bool `yaml:"concurrent,omitempty"`
	MaxWorkers int  `yaml:"max_workers,omitempty"`
}

// SampleDoc is one evaluation sample as written in YAML.
type SampleDoc struct {
	ID         string                    `yaml:"id"`
	Inputs     map[string]any            `yaml:"inputs,omitempty"`
	StepInputs map[string]map[string]any `yaml:"step_inputs,omitempty"`
	Items      []any                     `yaml:"items,omitempty"`
	Expected   map[string]any            `yaml:"expected,omitempty"`
}

// Load reads and parses a suite file.
func Load(path string) (*SuiteDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewSuiteNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read suite file: "+path, err)
	}
	return Parse(data)
}

// Parse parses suite YAML.
func Parse(data []byte) (*SuiteDoc, error) {
	var doc SuiteDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigSuiteUnmarshal, "unmarshal suite", err).
			WithSuggestion("Check the YAML syntax of the suite file")
	}
	return &doc, nil
}

// Validate checks the document's structure and the pipeline it converts
// to. Agent invoker presence is checked at run time, not here.
func (d *SuiteDoc) Validate() error {
	if d.Name == "" {
		return errors.NewSuiteInvalidError("suite has no name")
	}
	if len(d.Steps) == 0 {
		return errors.NewSuiteInvalidError("suite has no steps")
	}
	if len(d.Samples) == 0 {
		return errors.NewSuiteInvalidError("suite has no samples")
	}

	seen := make(map[string]struct{}, len(d.Samples))
	for i, sample := range d.Samples {
		if sample.ID == "" {
			return errors.NewSuiteInvalidError(fmt.Sprintf("sample %d has no id", i))
		}
		if _, dup := seen[sample.ID]; dup {
			return errors.NewSuiteInvalidError("duplicate sample id: " + sample.ID)
		}
		seen[sample.ID] = struct{}{}
	}

	suite, err := d.Convert()
	if err != nil {
		return err
	}
	return pipeline.ValidateSteps(suite.Steps, true)
}

// Convert materializes the document into a runnable pipeline.Suite,
// applying suite defaults to omitted step fields.
func (d *SuiteDoc) Convert() (pipeline.Suite, error) {
	suite := pipeline.Suite{Name: d.Name}

	for _, doc := range d.Steps {
		step, err := d.convertStep(doc)
		if err != nil {
			return pipeline.Suite{}, err
		}
		suite.Steps = append(suite.Steps, step)
	}

	for _, doc := range d.Samples {
		suite.Samples = append(suite.Samples, pipeline.Sample{
			ID:         doc.ID,
			Inputs:     doc.Inputs,
			StepInputs: doc.StepInputs,
			Items:      doc.Items,
			Expected:   doc.Expected,
		})
	}

	return suite, nil
}

func (d *SuiteDoc) convertStep(doc StepDoc) (pipeline.StepConfig, error) {
	step := pipeline.StepConfig{
		ID:           doc.ID,
		Kind:         pipeline.StepKind(doc.Kind),
		InputMapping: doc.InputMapping,
		OutputKey:    doc.OutputKey,
	}

	if doc.Batch != nil {
		step.Batch = &pipeline.BatchSpec{
			Size:       doc.Batch.Size,
			Concurrent: doc.Batch.Concurrent,
			MaxWorkers: doc.Batch.MaxWorkers,
		}
	}

	switch step.Kind {
	case pipeline.KindCode:
		spec, err := d.codeSpec(doc)
		if err != nil {
			return pipeline.StepConfig{}, err
		}
		step.Code = spec

	case pipeline.KindAgent:
		step.Agent = &pipeline.AgentSpec{Flow: doc.Flow, Params: doc.Params}

	case pipeline.KindAggregate:
		// Normalize the strategy name; Validate rejects unknown ones.
		strategy := aggregate.Strategy(doc.Strategy)
		if parsed, err := aggregate.ParseStrategy(doc.Strategy); err == nil {
			strategy = parsed
		}
		agg := &pipeline.AggregateSpec{
			Strategy:  strategy,
			Separator: doc.Separator,
			Fields:    doc.Fields,
		}
		if doc.Code != nil {
			spec, err := d.codeSpec(*doc.Code)
			if err != nil {
				return pipeline.StepConfig{}, err
			}
			agg.Code = spec
		}
		step.Aggregate = agg
	}

	return step, nil
}

func (d *SuiteDoc) codeSpec(doc StepDoc) (*sandbox.CodeSpec, error) {
	langName := doc.Language
	if langName == "" {
		langName = d.Defaults.Language
	}
	language, err := sandbox.ParseLanguage(langName)
	if err != nil {
		return nil, err
	}

	timeout := doc.TimeoutSeconds
	if timeout == 0 {
		timeout = d.Defaults.TimeoutSeconds
	}
	if timeout == 0 {
		timeout = sandbox.DefaultTimeoutSeconds
	}

	return &sandbox.CodeSpec{
		Language:       language,
		Source:         doc.Source,
		FilePath:       doc.File,
		TimeoutSeconds: timeout,
		Env:            doc.Env,
	}, nil
}

// Fingerprint computes the blake3 hash of the canonical JSON rendering
// of the converted suite. Semantically identical documents fingerprint
// identically regardless of YAML formatting.
func (d *SuiteDoc) Fingerprint() (string, error) {
	suite, err := d.Convert()
	if err != nil {
		return "", err
	}

	canonical, err := json.Marshal(suite)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeConfigSuiteInvalid, "canonicalize suite", err)
	}

	hasher := blake3.New()
	hasher.Write(canonical)
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}
