package domain

import "time"

// PipelineContext identifies one workflow instance and tracks its current stage.
// Tenant, workflow and ticket never change after the ID-generation stage.
type PipelineContext struct {
	TenantID    string `db:"tenant_id" json:"tenantId"`
	WorkflowKey string `db:"workflow_key" json:"workflowKey"`
	TicketID    string `db:"ticket_id" json:"ticketId"`
	StageNumber int    `db:"stage_number" json:"stageNumber"`
	StageName   string `db:"stage_name" json:"stageName"`
}

// StageResult is the record a stage delegate leaves for one document.
type StageResult struct {
	AgentID     string    `json:"agentId,omitempty"`
	StageNumber int       `json:"stageNumber"`
	StorageKey  string    `json:"storageKey,omitempty"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	RecordedAt  time.Time `json:"recordedAt"`
}

// DocumentEntry holds every stage result recorded for one uploaded document.
type DocumentEntry struct {
	Filename string                 `json:"filename"`
	Stages   map[string]StageResult `json:"stages"`
}

// PerDocumentState maps filename to stage results. Entries keep the order in
// which documents were discovered, consolidation depends on it.
type PerDocumentState struct {
	Documents []DocumentEntry `json:"documents"`
}

// NewPerDocumentState creates one empty entry per filename, ignoring duplicates.
func NewPerDocumentState(filenames []string) PerDocumentState {
	s := PerDocumentState{Documents: make([]DocumentEntry, 0, len(filenames))}
	for _, name := range filenames {
		s.Add(name)
	}
	return s
}

// Add registers a document. It reports false when the filename already exists.
func (s *PerDocumentState) Add(filename string) bool {
	if filename == "" || s.Get(filename) != nil {
		return false
	}
	s.Documents = append(s.Documents, DocumentEntry{Filename: filename, Stages: map[string]StageResult{}})
	return true
}

// Get returns the entry for filename or nil.
func (s *PerDocumentState) Get(filename string) *DocumentEntry {
	for i := range s.Documents {
		if s.Documents[i].Filename == filename {
			return &s.Documents[i]
		}
	}
	return nil
}

// Record stores the result of stage for filename, replacing a previous result
// for the same stage name.
func (s *PerDocumentState) Record(filename, stage string, result StageResult) error {
	entry := s.Get(filename)
	if entry == nil {
		return ErrUnknownDocument
	}
	if entry.Stages == nil {
		entry.Stages = map[string]StageResult{}
	}
	entry.Stages[stage] = result
	return nil
}

// Filenames returns filenames in discovery order.
func (s *PerDocumentState) Filenames() []string {
	out := make([]string, 0, len(s.Documents))
	for _, d := range s.Documents {
		out = append(out, d.Filename)
	}
	return out
}

// PipelineInstance is the persisted state of one ticket.
type PipelineInstance struct {
	Context   PipelineContext
	Variables map[string]any
	Documents PerDocumentState
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MergeVariables overlays vars onto the instance variables.
func (p *PipelineInstance) MergeVariables(vars map[string]any) {
	if p.Variables == nil {
		p.Variables = make(map[string]any, len(vars))
	}
	for k, v := range vars {
		p.Variables[k] = v
	}
}
