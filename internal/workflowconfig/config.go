// Package workflowconfig decodes the per-tenant, per-workflow configuration
// blob that drives the pipeline: which agents run, in what order and with what
// request/response shape.
package workflowconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"claimflow/internal/domain"
)

const defaultSuccessCode = 200

// WorkflowConfig is the decoded configuration of one (workflowKey, tenantID) pair.
type WorkflowConfig struct {
	TenantID    string `json:"-"`
	WorkflowKey string `json:"-"`

	ExternalAPIs  ExternalAPIs               `json:"externalAPIs"`
	Agents        []AgentConfig              `json:"agents"`
	Scoring       map[string]ScoringConfig   `json:"scoring"`
	Delegates     map[string]*DelegateConfig `json:"genericWorkflowDelegateConfigurations"`
	Stages        map[string]int             `json:"stages"`
	StageFallback domain.StageFallback       `json:"stageFallback"`
	TicketPrefix  string                     `json:"ticketPrefix"`
	Storage       StorageSelection           `json:"storage"`
	Consolidation ConsolidationConfig        `json:"consolidation"`
}

// ExternalAPIs holds the base endpoints shared by agents of a workflow.
type ExternalAPIs struct {
	SpringAPI EndpointConfig `json:"springAPI"`
	AgentAPI  EndpointConfig `json:"agentAPI"`
}

// EndpointConfig describes where and how an agent is called.
type EndpointConfig struct {
	BaseURL        string            `json:"baseUrl"`
	Route          string            `json:"route"`
	AuthMethod     domain.AuthMethod `json:"authMethod"`
	ProviderPrefix string            `json:"providerPrefix"`
	SuccessCode    int               `json:"successCode"`
	TimeoutSecs    int               `json:"timeoutSecs"`
}

// URL joins base URL and route with exactly one slash.
func (e EndpointConfig) URL() string {
	base := strings.TrimRight(e.BaseURL, "/")
	route := strings.TrimLeft(e.Route, "/")
	if route == "" {
		return base
	}
	return base + "/" + route
}

// AgentConfig is one configured agent. It is read-only per invocation and may
// be reused across documents.
type AgentConfig struct {
	AgentID     string        `json:"agentId"`
	DisplayName string        `json:"displayName"`
	Enabled     bool          `json:"enabled"`
	Order       int           `json:"order"`
	Stage       string        `json:"stage"`
	Config      AgentSettings `json:"config"`
}

// AgentSettings carries the request/response shape of an agent.
type AgentSettings struct {
	Endpoint        EndpointConfig         `json:"endpoint"`
	InputMapping    InputMapping           `json:"inputMapping"`
	OutputMapping   map[string]OutputField `json:"outputMapping"`
	ArtifactMapping map[string]string      `json:"artifactMapping"`
	ErrorHandling   ErrorHandling          `json:"errorHandling"`
}

// DynamicField names a generator for a per-request value.
type DynamicField string

const (
	DynamicUUID          DynamicField = "uuid"
	DynamicTimestamp     DynamicField = "timestamp"
	DynamicTransactionID DynamicField = "transactionId"
)

// InputMapping builds the "data" object of an agent request.
type InputMapping struct {
	StaticFields    map[string]any          `json:"staticFields"`
	DynamicFields   map[string]DynamicField `json:"dynamicFields"`
	VariableMapping map[string]string       `json:"variableMapping"`
}

// ValueType is the target type of a projected value.
type ValueType string

const (
	TypeRaw     ValueType = "raw"
	TypeString  ValueType = "string"
	TypeInteger ValueType = "integer"
	TypeNumber  ValueType = "number"
)

// OutputField maps a response path to a variable. It decodes from either a
// bare path string or {"path": ..., "type": ...}.
type OutputField struct {
	Path string    `json:"path"`
	Type ValueType `json:"type,omitempty"`
}

func (o *OutputField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var path string
		if err := json.Unmarshal(data, &path); err != nil {
			return err
		}
		*o = OutputField{Path: path, Type: TypeRaw}
		return nil
	}
	type plain OutputField
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Type == "" {
		p.Type = TypeRaw
	}
	*o = OutputField(p)
	return nil
}

// ErrorHandling decides whether an agent failure is stage-fatal. OnFailure is
// the code reported to the workflow engine.
type ErrorHandling struct {
	OnFailure       string `json:"onFailure"`
	ContinueOnError bool   `json:"continueOnError"`
}

// FailureCode returns OnFailure or "<name>Failed".
func (e ErrorHandling) FailureCode(name string) string {
	if e.OnFailure != "" {
		return e.OnFailure
	}
	return name + "Failed"
}

// ScoringConfig configures one scoring type.
type ScoringConfig struct {
	Enabled         bool                   `json:"enabled"`
	AgentID         string                 `json:"agentId"`
	Stage           string                 `json:"stage"`
	Endpoint        EndpointConfig         `json:"endpoint"`
	RequestTemplate map[string]any         `json:"requestTemplate"`
	ResponseMapping map[string]OutputField `json:"responseMapping"`
	ErrorHandling   ErrorHandling          `json:"errorHandling"`
}

// StorageSelection picks the object-store provider for a tenant.
type StorageSelection struct {
	Provider string `json:"provider"`
	Bucket   string `json:"bucket"`
}

// ConsolidationConfig tells the consolidator where per-document extraction
// results live and how to read them.
type ConsolidationConfig struct {
	SourceStage  string `json:"sourceStage"`
	ExtractPath  string `json:"extractPath"`
	Stage        string `json:"stage"`
	ArtifactName string `json:"artifactName"`
}

// Parse decodes and validates a configuration blob.
func Parse(tenantID, workflowKey string, blob []byte) (*WorkflowConfig, error) {
	var cfg WorkflowConfig
	if err := json.Unmarshal(blob, &cfg); err != nil {
		return nil, fmt.Errorf("decoding workflow config %s/%s: %w", tenantID, workflowKey, err)
	}
	cfg.TenantID = tenantID
	cfg.WorkflowKey = workflowKey
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *WorkflowConfig) applyDefaults() {
	if c.StageFallback == "" {
		c.StageFallback = domain.StageFallbackPrevious
	}
	if c.TicketPrefix == "" {
		c.TicketPrefix = "CLM"
	}
	if c.ExternalAPIs.AgentAPI.AuthMethod == "" {
		c.ExternalAPIs.AgentAPI.AuthMethod = domain.AuthNone
	}
	if c.ExternalAPIs.AgentAPI.SuccessCode == 0 {
		c.ExternalAPIs.AgentAPI.SuccessCode = defaultSuccessCode
	}
	if c.Consolidation.ExtractPath == "" {
		c.Consolidation.ExtractPath = "$.apiResponse.answer"
	}
	if c.Consolidation.Stage == "" {
		c.Consolidation.Stage = "consolidation"
	}
}

func (c *WorkflowConfig) validate() error {
	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.AgentID == "" {
			return domain.MissingConfig("agentId for agent %q in %s/%s", a.DisplayName, c.TenantID, c.WorkflowKey)
		}
		if seen[a.AgentID] {
			return fmt.Errorf("%w: duplicate agentId %q", domain.ErrInvalidInput, a.AgentID)
		}
		seen[a.AgentID] = true
	}
	switch c.StageFallback {
	case domain.StageFallbackPrevious, domain.StageFallbackSentinel:
	default:
		return fmt.Errorf("%w: unknown stageFallback %q", domain.ErrInvalidInput, c.StageFallback)
	}
	for key, d := range c.Delegates {
		if d == nil {
			return domain.MissingConfig("delegate %q", key)
		}
	}
	return nil
}

// Agent returns the agent with the given id.
func (c *WorkflowConfig) Agent(agentID string) (*AgentConfig, error) {
	for i := range c.Agents {
		if c.Agents[i].AgentID == agentID {
			return &c.Agents[i], nil
		}
	}
	return nil, domain.MissingConfig("agent %q in %s/%s", agentID, c.TenantID, c.WorkflowKey)
}

// AgentsForStage returns the enabled agents of stage sorted by order.
func (c *WorkflowConfig) AgentsForStage(stage string) []AgentConfig {
	var out []AgentConfig
	for _, a := range c.Agents {
		if a.Enabled && strings.EqualFold(a.Stage, stage) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Endpoint merges the agent's own endpoint over the workflow agent API.
func (c *WorkflowConfig) Endpoint(override EndpointConfig) EndpointConfig {
	ep := c.ExternalAPIs.AgentAPI
	if override.BaseURL != "" {
		ep.BaseURL = override.BaseURL
	}
	if override.Route != "" {
		ep.Route = override.Route
	}
	if override.AuthMethod != "" {
		ep.AuthMethod = override.AuthMethod
	}
	if override.ProviderPrefix != "" {
		ep.ProviderPrefix = override.ProviderPrefix
	}
	if override.SuccessCode != 0 {
		ep.SuccessCode = override.SuccessCode
	}
	if override.TimeoutSecs != 0 {
		ep.TimeoutSecs = override.TimeoutSecs
	}
	return ep
}

// ScoringFor returns the scoring configuration of the given type.
func (c *WorkflowConfig) ScoringFor(scoringType string) (*ScoringConfig, error) {
	sc, ok := c.Scoring[scoringType]
	if !ok {
		return nil, domain.MissingConfig("scoring %q in %s/%s", scoringType, c.TenantID, c.WorkflowKey)
	}
	return &sc, nil
}

// Delegate returns the generic delegate configuration with the given key.
func (c *WorkflowConfig) Delegate(key string) (*DelegateConfig, error) {
	d, ok := c.Delegates[key]
	if !ok || d == nil {
		return nil, domain.MissingConfig("genericWorkflowDelegateConfigurations.%s in %s/%s", key, c.TenantID, c.WorkflowKey)
	}
	return d, nil
}
