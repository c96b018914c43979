package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"claimflow/internal/consolidation"
	"claimflow/internal/domain"
	"claimflow/internal/jsonpath"
	"claimflow/internal/placeholder"
	"claimflow/internal/resultstore"
	"claimflow/internal/workflowconfig"
)

func (s *pipelineService) Consolidate(ctx context.Context, input *ConsolidateInput) (*ConsolidationOutcome, error) {
	var cc workflowconfig.ConsolidationConfig
	stageName := s.consolidationStage(ctx, input)
	run, err := s.advance(ctx, input.TenantID, input.TicketID, stageName, false,
		func(cfg *workflowconfig.WorkflowConfig, _ *domain.PipelineInstance) error {
			if cfg.Consolidation.SourceStage == "" {
				return domain.MissingConfig("consolidation.sourceStage in %s/%s", cfg.TenantID, cfg.WorkflowKey)
			}
			cc = cfg.Consolidation
			return nil
		})
	if err != nil {
		return nil, escalate(err)
	}

	result, err := consolidation.NewConsolidator(run.store, s.fetchConcurrency).
		Consolidate(ctx, run.docs, cc.SourceStage, cc.ExtractPath)
	if err != nil {
		if errors.Is(err, domain.ErrNothingToMerge) {
			return nil, &domain.StageError{Code: CodeConsolidationFailed, Message: err.Error(), Err: err}
		}
		if errors.Is(err, jsonpath.ErrInvalidPath) {
			return nil, invalidConfig(err)
		}
		return nil, escalate(err)
	}

	key, err := run.store.Store(ctx, run.pc, stageName, cc.ArtifactName, result.Structure)
	if err != nil {
		return nil, escalate(err)
	}

	updates := map[string]any{
		consolidatedKeyVariable: key.String(),
		consolidationSkipVar:    int64(result.SkipCount()),
	}
	if err := s.commit(ctx, run.pc, updates, nil); err != nil {
		return nil, err
	}

	out := &ConsolidationOutcome{
		StorageKey:  key,
		StageNumber: run.pc.StageNumber,
		Contributed: result.Contributed,
		SkipCount:   result.SkipCount(),
		Structure:   result.Structure,
	}
	for _, sk := range result.Skipped {
		out.Skipped = append(out.Skipped, SkippedDocument(sk))
	}

	zap.L().Info("pipelineService.Consolidate: stored",
		zap.String("ticket_id", input.TicketID),
		zap.String("key", key.String()),
		zap.Int("contributed", len(result.Contributed)),
		zap.Int("skipped", result.SkipCount()))
	return out, nil
}

func (s *pipelineService) consolidationStage(ctx context.Context, input *ConsolidateInput) string {
	_, cfg, err := s.load(ctx, input.TenantID, input.TicketID)
	if err != nil || cfg.Consolidation.Stage == "" {
		return "consolidation"
	}
	return cfg.Consolidation.Stage
}

func (s *pipelineService) RunSteps(ctx context.Context, input *RunStepsInput) (*StepsOutcome, error) {
	stageName := input.StageName
	if stageName == "" {
		stageName = input.DelegateKey
	}

	var delegate *workflowconfig.DelegateConfig
	run, err := s.advance(ctx, input.TenantID, input.TicketID, stageName, input.Loop,
		func(cfg *workflowconfig.WorkflowConfig, inst *domain.PipelineInstance) error {
			d, err := cfg.Delegate(input.DelegateKey)
			if err != nil {
				return err
			}
			for _, name := range d.InitialVariablesRootObj {
				if _, ok := inst.Variables[name]; !ok {
					return domain.MissingConfig("variable %q required by delegate %s", name, input.DelegateKey)
				}
			}
			delegate = d
			return nil
		})
	if err != nil {
		return nil, escalate(err)
	}

	updates := map[string]any{}
	out := &StepsOutcome{DelegateKey: input.DelegateKey, StageNumber: run.pc.StageNumber, Variables: updates}
	set := func(name string, v any) {
		updates[name] = v
		run.vars[name] = v
	}

	for _, step := range delegate.Steps {
		var err error
		switch st := step.(type) {
		case *workflowconfig.SetVariablesStep:
			s.setVariables(st, run, set)
		case *workflowconfig.UploadStep:
			err = s.uploadVariable(ctx, st, run, stageName, set)
		case *workflowconfig.SQLQueryStep:
			err = s.runQuery(ctx, st, run, set)
		default:
			err = invalidConfig(fmt.Errorf("step %q has unsupported kind %s", step.StepName(), step.Kind()))
		}
		if err != nil {
			err = escalate(err)
			var se *domain.StageError
			if errors.As(err, &se) {
				return nil, err
			}
			return nil, &domain.StageError{
				Code:    input.DelegateKey + "Failed",
				Message: fmt.Sprintf("step %s: %v", step.StepName(), err),
				Err:     err,
			}
		}
		out.Steps = append(out.Steps, step.StepName())
	}

	if err := s.commit(ctx, run.pc, updates, nil); err != nil {
		return nil, err
	}

	zap.L().Info("pipelineService.RunSteps: completed",
		zap.String("ticket_id", input.TicketID),
		zap.String("delegate", input.DelegateKey),
		zap.Int("steps", len(out.Steps)),
		zap.Int("variables", len(updates)))
	return out, nil
}

func (s *pipelineService) setVariables(st *workflowconfig.SetVariablesStep, run *ticketRun, set func(string, any)) {
	names := make([]string, 0, len(st.Variables))
	for name := range st.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		set(name, placeholder.ResolveTyped(st.Variables[name], run.vars, s.props))
	}
}

func (s *pipelineService) uploadVariable(ctx context.Context, st *workflowconfig.UploadStep, run *ticketRun, stageName string, set func(string, any)) error {
	value, ok := run.vars[st.SourceVariable]
	if !ok {
		return domain.MissingConfig("variable %q for step %s", st.SourceVariable, st.Name)
	}
	artifact := st.SourceVariable
	if st.ArtifactName != "" {
		artifact = placeholder.Resolve(st.ArtifactName, run.vars, s.props)
	}
	target := stageName
	if st.Stage != "" {
		target = st.Stage
	}

	var key domain.StorageKey
	var err error
	if st.FolderRole == domain.FolderTaskDocs {
		key, err = run.store.Store(ctx, run.pc, target, artifact, value)
	} else {
		pc := run.pc
		pc.StageName = target
		var body []byte
		body, err = marshalValue(value)
		if err == nil {
			key, err = run.store.StoreDocument(ctx, pc, st.FolderRole, resultstore.SanitizeName(artifact)+".json", body, "application/json")
		}
	}
	if err != nil {
		return escalate(err)
	}
	if st.KeyVariable != "" {
		set(st.KeyVariable, key.String())
	}
	return nil
}

func (s *pipelineService) runQuery(ctx context.Context, st *workflowconfig.SQLQueryStep, run *ticketRun, set func(string, any)) error {
	if s.queries == nil {
		return domain.MissingConfig("query runner for step %s", st.Name)
	}
	args := make([]any, len(st.Params))
	for i, p := range st.Params {
		args[i] = placeholder.ResolveTyped(p, run.vars, s.props)
	}
	rows, err := s.queries.Query(ctx, st.Query, args...)
	if err != nil {
		return err
	}
	if !st.SingleRow {
		list := make([]any, len(rows))
		for i, r := range rows {
			list[i] = r
		}
		set(st.ResultVariable, list)
		return nil
	}
	if len(rows) == 0 {
		set(st.ResultVariable, nil)
		return nil
	}
	set(st.ResultVariable, rows[0])
	return nil
}

func marshalValue(v any) ([]byte, error) {
	if s, ok := v.(string); ok && json.Valid([]byte(s)) {
		return []byte(s), nil
	}
	return json.Marshal(v)
}
