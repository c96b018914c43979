package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"claimflow/internal/domain"
	"claimflow/internal/jsonpath"
	"claimflow/internal/placeholder"
	"claimflow/internal/port"
	"claimflow/internal/projector"
	"claimflow/internal/workflowconfig"
)

const defaultScoringStage = "scoring"

// agentCall is one invocation within a ticketRun.
type agentCall struct {
	agentID      string
	stageName    string
	filename     string
	endpoint     workflowconfig.EndpointConfig
	data         map[string]any
	outputs      map[string]workflowconfig.OutputField
	artifacts    map[string]string
	artifactName string
	// record stores the result in PerDocumentState under stageName.
	record bool
}

func (s *pipelineService) RunAgent(ctx context.Context, input *RunAgentInput) (*AgentOutcome, error) {
	var agentCfg workflowconfig.AgentConfig
	run, err := s.advance(ctx, input.TenantID, input.TicketID, input.StageName, input.Loop,
		func(cfg *workflowconfig.WorkflowConfig, inst *domain.PipelineInstance) error {
			a, err := cfg.Agent(input.AgentID)
			if err != nil {
				return err
			}
			if !a.Enabled {
				return domain.ErrAgentDisabled
			}
			if input.Filename != "" && inst.Documents.Get(input.Filename) == nil {
				return fmt.Errorf("%w: %s", domain.ErrUnknownDocument, input.Filename)
			}
			agentCfg = *a
			return nil
		})
	if errors.Is(err, domain.ErrAgentDisabled) {
		zap.L().Info("pipelineService.RunAgent: agent disabled, skipping",
			zap.String("ticket_id", input.TicketID), zap.String("agent_id", input.AgentID))
		return &AgentOutcome{AgentID: input.AgentID, Disabled: true}, nil
	}
	if err != nil {
		return nil, escalate(err)
	}

	call, err := s.prepareAgentCall(run, agentCfg, input.StageName, input.Filename)
	if err != nil {
		return nil, err
	}
	call.record = input.Filename != ""

	outcome, err := s.callAgent(ctx, run, call)
	if err != nil {
		return nil, err
	}
	if !outcome.Success && !agentCfg.Config.ErrorHandling.ContinueOnError {
		return nil, &domain.StageError{
			Code:    agentCfg.Config.ErrorHandling.FailureCode(agentCfg.AgentID),
			Message: outcome.Error,
			Err:     outcome.callErr,
		}
	}
	return outcome, nil
}

func (s *pipelineService) RunStage(ctx context.Context, input *RunStageInput) (*StageOutcome, error) {
	var agents []workflowconfig.AgentConfig
	run, err := s.advance(ctx, input.TenantID, input.TicketID, input.StageName, input.Loop,
		func(cfg *workflowconfig.WorkflowConfig, inst *domain.PipelineInstance) error {
			agents = cfg.AgentsForStage(input.StageName)
			if len(agents) == 0 {
				return domain.MissingConfig("enabled agents for stage %q in %s/%s", input.StageName, cfg.TenantID, cfg.WorkflowKey)
			}
			if input.Filename != "" && inst.Documents.Get(input.Filename) == nil {
				return fmt.Errorf("%w: %s", domain.ErrUnknownDocument, input.Filename)
			}
			return nil
		})
	if err != nil {
		return nil, escalate(err)
	}

	out := &StageOutcome{StageName: input.StageName, StageNumber: run.pc.StageNumber}
	var last *AgentOutcome
	var firstFatal *workflowconfig.AgentConfig
	for i := range agents {
		a := agents[i]
		call, err := s.prepareAgentCall(run, a, input.StageName, input.Filename)
		if err != nil {
			return nil, err
		}
		outcome, err := s.callAgent(ctx, run, call)
		if err != nil {
			return nil, err
		}
		out.Agents = append(out.Agents, outcome)
		if outcome.Success {
			last = outcome
			// later agents of the stage see what earlier ones projected
			for k, v := range outcome.Variables {
				run.vars[k] = jsonpath.DeepCopy(v)
			}
			continue
		}
		out.Failed++
		if firstFatal == nil && !a.Config.ErrorHandling.ContinueOnError {
			firstFatal = &agents[i]
		}
	}

	if input.Filename != "" {
		result := domain.StageResult{StageNumber: run.pc.StageNumber, RecordedAt: s.now().UTC()}
		if last != nil {
			result.AgentID = last.AgentID
			result.StorageKey = last.StorageKey.String()
			result.Success = true
		} else {
			result.Error = fmt.Sprintf("all %d agents failed", len(agents))
		}
		if err := s.commit(ctx, run.pc, nil, func(inst *domain.PipelineInstance) error {
			return inst.Documents.Record(input.Filename, input.StageName, result)
		}); err != nil {
			return nil, err
		}
	}

	if out.Failed == len(agents) && firstFatal != nil {
		return nil, &domain.StageError{
			Code:    firstFatal.Config.ErrorHandling.FailureCode(firstFatal.AgentID),
			Message: fmt.Sprintf("stage %s: all %d agents failed", input.StageName, len(agents)),
		}
	}

	zap.L().Info("pipelineService.RunStage: completed",
		zap.String("ticket_id", input.TicketID),
		zap.String("stage", input.StageName),
		zap.Int("stage_number", run.pc.StageNumber),
		zap.Int("agents", len(agents)),
		zap.Int("failed", out.Failed))
	return out, nil
}

func (s *pipelineService) RunScoring(ctx context.Context, input *RunScoringInput) (*AgentOutcome, error) {
	var sc workflowconfig.ScoringConfig
	stageName := s.scoringStage(ctx, input)
	run, err := s.advance(ctx, input.TenantID, input.TicketID, stageName, input.Loop,
		func(cfg *workflowconfig.WorkflowConfig, _ *domain.PipelineInstance) error {
			c, err := cfg.ScoringFor(input.ScoringType)
			if err != nil {
				return err
			}
			if !c.Enabled {
				return domain.ErrAgentDisabled
			}
			sc = *c
			return nil
		})
	if errors.Is(err, domain.ErrAgentDisabled) {
		return &AgentOutcome{AgentID: scoringAgentID(input.ScoringType, ""), Disabled: true}, nil
	}
	if err != nil {
		return nil, escalate(err)
	}

	data, ok := placeholder.ResolveValue(jsonpath.DeepCopy(sc.RequestTemplate), run.vars, s.props).(map[string]any)
	if !ok || data == nil {
		data = map[string]any{}
	}
	agentID := scoringAgentID(input.ScoringType, sc.AgentID)

	outcome, err := s.callAgent(ctx, run, agentCall{
		agentID:      agentID,
		stageName:    stageName,
		endpoint:     run.cfg.Endpoint(sc.Endpoint),
		data:         data,
		outputs:      sc.ResponseMapping,
		artifactName: agentID,
	})
	if err != nil {
		return nil, err
	}
	if !outcome.Success && !sc.ErrorHandling.ContinueOnError {
		return nil, &domain.StageError{
			Code:    sc.ErrorHandling.FailureCode(input.ScoringType + "Scoring"),
			Message: outcome.Error,
			Err:     outcome.callErr,
		}
	}
	return outcome, nil
}

// scoringStage peeks at the configured stage of a scoring type so the ticket
// can be advanced to it. Lookup errors are reported by the advance check.
func (s *pipelineService) scoringStage(ctx context.Context, input *RunScoringInput) string {
	_, cfg, err := s.load(ctx, input.TenantID, input.TicketID)
	if err != nil {
		return defaultScoringStage
	}
	if sc, ok := cfg.Scoring[input.ScoringType]; ok && sc.Stage != "" {
		return sc.Stage
	}
	return defaultScoringStage
}

func scoringAgentID(scoringType, configured string) string {
	if configured != "" {
		return configured
	}
	return "scoring_" + scoringType
}

// prepareAgentCall builds the request payload of a configured agent.
func (s *pipelineService) prepareAgentCall(run *ticketRun, a workflowconfig.AgentConfig, stageName, filename string) (agentCall, error) {
	vars := run.vars
	if filename != "" {
		vars = make(map[string]any, len(run.vars)+1)
		for k, v := range run.vars {
			vars[k] = v
		}
		vars["fileName"] = filename
	}

	data, err := s.payloads.Build(a.Config.InputMapping, vars, s.props)
	if err != nil {
		return agentCall{}, invalidConfig(fmt.Errorf("agent %s request: %w", a.AgentID, err))
	}

	artifact := a.AgentID
	if filename != "" {
		artifact = filename + "_" + a.AgentID
	}
	return agentCall{
		agentID:      a.AgentID,
		stageName:    stageName,
		filename:     filename,
		endpoint:     run.cfg.Endpoint(a.Config.Endpoint),
		data:         data,
		outputs:      a.Config.OutputMapping,
		artifacts:    a.Config.ArtifactMapping,
		artifactName: artifact,
		record:       false,
	}, nil
}

// callAgent invokes, stores the envelope, projects the response and commits
// the variables. An agent failure is reported in the outcome; configuration and
// storage failures are returned as errors.
func (s *pipelineService) callAgent(ctx context.Context, run *ticketRun, call agentCall) (*AgentOutcome, error) {
	outcome := &AgentOutcome{AgentID: call.agentID, StageNumber: run.pc.StageNumber}

	env, err := s.invoker.Invoke(ctx, port.AgentRequest{
		TenantID: run.pc.TenantID,
		AgentID:  call.agentID,
		Endpoint: call.endpoint,
		Data:     call.data,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrAgentCallFailed) {
			return nil, escalate(err)
		}
		outcome.Error = err.Error()
		outcome.callErr = err
		zap.L().Warn("pipelineService.callAgent: agent failed",
			zap.String("ticket_id", run.pc.TicketID), zap.String("agent_id", call.agentID), zap.Error(err))
		if call.record {
			failed := domain.StageResult{
				AgentID:     call.agentID,
				StageNumber: run.pc.StageNumber,
				Error:       outcome.Error,
				RecordedAt:  s.now().UTC(),
			}
			if err := s.commit(ctx, run.pc, nil, func(inst *domain.PipelineInstance) error {
				return inst.Documents.Record(call.filename, call.stageName, failed)
			}); err != nil {
				return nil, err
			}
		}
		return outcome, nil
	}

	doc := projector.EnvelopeDocument(env)
	updates := map[string]any{}
	report := projector.ProjectVariables(doc, call.outputs, updates)
	if len(updates) > 0 {
		env.ExtractedData = updates
	}

	key, err := run.store.Store(ctx, run.pc, call.stageName, call.artifactName, env)
	if err != nil {
		return nil, escalate(err)
	}

	artifacts, artifactReport, err := projector.ProjectArtifacts(ctx, run.store, run.pc, call.stageName, doc, call.artifacts)
	if err != nil {
		return nil, escalate(err)
	}

	var record func(*domain.PipelineInstance) error
	if call.record {
		result := domain.StageResult{
			AgentID:     call.agentID,
			StageNumber: run.pc.StageNumber,
			StorageKey:  key.String(),
			Success:     true,
			RecordedAt:  s.now().UTC(),
		}
		record = func(inst *domain.PipelineInstance) error {
			return inst.Documents.Record(call.filename, call.stageName, result)
		}
	}
	if err := s.commit(ctx, run.pc, updates, record); err != nil {
		return nil, err
	}

	outcome.Success = true
	outcome.StorageKey = key
	outcome.Variables = updates
	if len(artifacts) > 0 {
		outcome.Artifacts = artifacts
	}
	for _, skip := range append(report.Skipped, artifactReport.Skipped...) {
		outcome.Skipped = append(outcome.Skipped, SkippedProjection(skip))
	}

	zap.L().Info("pipelineService.callAgent: completed",
		zap.String("ticket_id", run.pc.TicketID),
		zap.String("agent_id", call.agentID),
		zap.String("key", key.String()),
		zap.Int("variables", len(updates)),
		zap.Int("skipped", len(outcome.Skipped)))
	return outcome, nil
}
