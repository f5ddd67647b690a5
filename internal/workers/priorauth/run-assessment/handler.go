// internal/workers/priorauth/run-assessment/handler.go
package runassessment

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"priorauth-engine/internal/common/errors"
	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/waypoint"
)

const (
	TaskType = "run-assessment"
)

// Assessor runs one request through the assessment pipeline. Satisfied
// by engine.Engine.
type Assessor interface {
	Assess(ctx context.Context, raw json.RawMessage) (*waypoint.Waypoint, error)
}

type Handler struct {
	config   *Config
	assessor Assessor
	logger   logger.Logger
}

func NewHandler(config *Config, assessor Assessor, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		assessor: assessor,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		var stdErr *errors.StandardError
		if stderrors.As(err, &stdErr) {
			bpmnErr := errors.ConvertToBPMNError(stdErr)
			h.failJob(client, job, bpmnErr.Code, bpmnErr.Message)
			return
		}
		h.failJob(client, job, "ASSESSMENT_FAILED", err.Error())
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if len(input.Request) == 0 {
		return nil, errors.NewSchemaViolationError("missing request variable")
	}

	w, err := h.assessor.Assess(ctx, input.Request)
	if err != nil {
		return nil, err
	}

	rec := w.Recommendation()
	output := &Output{
		RequestID:        w.RequestID(),
		Decision:         string(rec.Decision),
		ConfidenceScore:  rec.ConfidenceScore,
		Borderline:       rec.Borderline,
		CriteriaMetRatio: rec.CriteriaMetRatio,
		Rationale:        rec.Rationale,
		Warnings:         w.Warnings(),
		AssessedAt:       w.CreatedAt().Format(time.RFC3339),
	}
	for _, g := range rec.Gaps {
		output.Gaps = append(output.Gaps, GapSummary{
			Description:    g.Description,
			RequiredAction: g.RequiredAction,
			Critical:       g.Critical,
		})
	}

	h.logger.Info("assessment completed", map[string]interface{}{
		"requestId":  output.RequestID,
		"decision":   output.Decision,
		"confidence": output.ConfidenceScore,
		"borderline": output.Borderline,
		"gaps":       len(output.Gaps),
	})
	return output, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
