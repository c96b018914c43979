package workflowconfig

import (
	"encoding/json"
	"fmt"

	"claimflow/internal/domain"
)

// StepKind tags a generic delegate step.
type StepKind string

const (
	StepSetProcessVariables StepKind = "SetProcessVariables"
	StepUploadToStorage     StepKind = "UploadToS3"
	StepSQLQuery            StepKind = "SqlQueryExecution"
)

// Step is one strongly typed step of a generic delegate.
type Step interface {
	Kind() StepKind
	StepName() string
}

// SetVariablesStep assigns resolved templates to pipeline variables.
type SetVariablesStep struct {
	Name      string            `json:"name"`
	Variables map[string]string `json:"variables"`
}

func (s *SetVariablesStep) Kind() StepKind   { return StepSetProcessVariables }
func (s *SetVariablesStep) StepName() string { return s.Name }

// UploadStep stores the value of a pipeline variable as an artifact.
type UploadStep struct {
	Name           string            `json:"name"`
	SourceVariable string            `json:"sourceVariable"`
	ArtifactName   string            `json:"artifactName"`
	Stage          string            `json:"stage"`
	FolderRole     domain.FolderRole `json:"folderRole"`
	KeyVariable    string            `json:"keyVariable"`
}

func (s *UploadStep) Kind() StepKind   { return StepUploadToStorage }
func (s *UploadStep) StepName() string { return s.Name }

// SQLQueryStep runs a read query and stores its rows in a variable. Params are
// templates resolved against pipeline variables and bound positionally.
type SQLQueryStep struct {
	Name           string   `json:"name"`
	Query          string   `json:"query"`
	Params         []string `json:"params"`
	ResultVariable string   `json:"resultVariable"`
	SingleRow      bool     `json:"singleRow"`
}

func (s *SQLQueryStep) Kind() StepKind   { return StepSQLQuery }
func (s *SQLQueryStep) StepName() string { return s.Name }

var stepDecoders = map[StepKind]func(json.RawMessage) (Step, error){
	StepSetProcessVariables: func(raw json.RawMessage) (Step, error) {
		s := &SetVariablesStep{}
		if err := json.Unmarshal(raw, s); err != nil {
			return nil, err
		}
		if len(s.Variables) == 0 {
			return nil, domain.MissingConfig("variables for step %q", s.Name)
		}
		return s, nil
	},
	StepUploadToStorage: func(raw json.RawMessage) (Step, error) {
		s := &UploadStep{}
		if err := json.Unmarshal(raw, s); err != nil {
			return nil, err
		}
		if s.SourceVariable == "" {
			return nil, domain.MissingConfig("sourceVariable for step %q", s.Name)
		}
		if s.FolderRole == "" {
			s.FolderRole = domain.FolderTaskDocs
		}
		return s, nil
	},
	StepSQLQuery: func(raw json.RawMessage) (Step, error) {
		s := &SQLQueryStep{}
		if err := json.Unmarshal(raw, s); err != nil {
			return nil, err
		}
		if s.Query == "" || s.ResultVariable == "" {
			return nil, domain.MissingConfig("query and resultVariable for step %q", s.Name)
		}
		return s, nil
	},
}

// DelegateConfig is one genericWorkflowDelegateConfigurations entry. Steps are
// decoded into their typed variants once, when the configuration is loaded.
type DelegateConfig struct {
	// InitialVariablesRootObj lists variables that must be set before the steps run.
	InitialVariablesRootObj []string
	Steps                   []Step
}

type stepEnvelope struct {
	Type   StepKind        `json:"type"`
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config"`
}

func (d *DelegateConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		InitialVariablesRootObj []string       `json:"initialVariablesRootObj"`
		Steps                   []stepEnvelope `json:"steps"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.InitialVariablesRootObj = raw.InitialVariablesRootObj
	d.Steps = make([]Step, 0, len(raw.Steps))
	for i, env := range raw.Steps {
		decode, ok := stepDecoders[env.Type]
		if !ok {
			return fmt.Errorf("%w: step %d has unknown type %q", domain.ErrInvalidInput, i, env.Type)
		}
		cfg := env.Config
		if len(cfg) == 0 {
			cfg = json.RawMessage("{}")
		}
		step, err := decode(cfg)
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i, env.Type, err)
		}
		switch {
		case env.Name != "":
			setStepName(step, env.Name)
		case step.StepName() == "":
			setStepName(step, fmt.Sprintf("%s-%d", step.Kind(), i))
		}
		d.Steps = append(d.Steps, step)
	}
	return nil
}

func setStepName(step Step, name string) {
	switch s := step.(type) {
	case *SetVariablesStep:
		s.Name = name
	case *UploadStep:
		s.Name = name
	case *SQLQueryStep:
		s.Name = name
	}
}
