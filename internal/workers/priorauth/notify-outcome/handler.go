// internal/workers/priorauth/notify-outcome/handler.go
package notifyoutcome

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"priorauth-engine/internal/common/errors"
	"priorauth-engine/internal/common/logger"
)

const (
	TaskType = "notify-outcome"
)

// Define interfaces for mocking. Satisfied by aws.SESClient and
// aws.SNSClient.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

type SMSSender interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

type Handler struct {
	config *Config
	email  EmailSender
	sms    SMSSender
	logger logger.Logger
}

func NewHandler(config *Config, email EmailSender, sms SMSSender, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		email:  email,
		sms:    sms,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
		h.failJob(client, job, string(errors.ErrCodeNotificationSendFailed), err.Error())
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	sentAt := time.Now().UTC().Format(time.RFC3339)

	// Approvals are auto-finalized; only pended cases reach a reviewer.
	if input.Decision != "PEND" {
		return &Output{
			NotificationID: uuid.New().String(),
			Status:         StatusSkipped,
			SentAt:         sentAt,
		}, nil
	}

	notificationID := uuid.New().String()
	var channels []string

	if h.config.EmailEnabled && h.config.ReviewerEmail != "" {
		subject, body := h.reviewMessage(input)
		if err := h.sendEmail(ctx, h.config.ReviewerEmail, subject, body); err != nil {
			h.logger.Error("email send failed", map[string]interface{}{
				"error":     err,
				"requestId": input.RequestID,
			})
			return nil, errors.NewNotificationSendFailedError(ChannelEmail, err)
		}
		channels = append(channels, ChannelEmail)
	}

	// SMS is reserved for borderline cases awaiting medical-director
	// review.
	if h.config.SMSEnabled && h.config.ReviewerPhone != "" && input.Borderline {
		message := fmt.Sprintf(
			"Borderline prior-auth %s pended at %.1f confidence; medical director review required.",
			input.RequestID, input.ConfidenceScore,
		)
		if err := h.sendSMS(ctx, h.config.ReviewerPhone, message); err != nil {
			h.logger.Error("SMS send failed", map[string]interface{}{
				"error":     err,
				"requestId": input.RequestID,
			})
			return nil, errors.NewNotificationSendFailedError(ChannelSMS, err)
		}
		channels = append(channels, ChannelSMS)
	}

	status := StatusDisabled
	if len(channels) > 0 {
		status = StatusSent
	}

	h.logger.Info("outcome notification processed", map[string]interface{}{
		"requestId":      input.RequestID,
		"notificationId": notificationID,
		"status":         status,
		"channels":       channels,
	})

	return &Output{
		NotificationID: notificationID,
		Status:         status,
		Channels:       channels,
		SentAt:         sentAt,
	}, nil
}

func (h *Handler) reviewMessage(input *Input) (string, string) {
	subject := fmt.Sprintf("Prior authorization %s pended for review", input.RequestID)
	if input.Borderline {
		subject = fmt.Sprintf("Prior authorization %s pended: medical director review", input.RequestID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Request %s was pended at %.1f confidence.\n", input.RequestID, input.ConfidenceScore)
	if input.Rationale != "" {
		fmt.Fprintf(&b, "\n%s\n", input.Rationale)
	}
	if len(input.Gaps) > 0 {
		b.WriteString("\nOutstanding gaps:\n")
		for _, g := range input.Gaps {
			marker := "-"
			if g.Critical {
				marker = "!"
			}
			fmt.Fprintf(&b, "%s %s", marker, g.Description)
			if g.RequiredAction != "" {
				fmt.Fprintf(&b, " (action: %s)", g.RequiredAction)
			}
			b.WriteString("\n")
		}
	}
	return subject, b.String()
}

func (h *Handler) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := h.email.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(h.config.FromEmail),
	})
	return err
}

func (h *Handler) sendSMS(ctx context.Context, to, message string) error {
	_, err := h.sms.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
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
