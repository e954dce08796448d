package gtm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/inflect-gtm/inflect/pkg/adapter"
	"github.com/inflect-gtm/inflect/pkg/agent"
	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/inflect-gtm/inflect/pkg/tool"
	"github.com/inflect-gtm/inflect/pkg/usecase/followup"
	"github.com/inflect-gtm/inflect/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrFollowupNotConfigured = goerr.New("follow-up pipeline is not configured")
	ErrMalformedEmail        = goerr.New("LLM response is not an email")
)

var emailSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"subject": {Type: "string", Description: "Email subject line"},
		"body":    {Type: "string", Description: "Plain text email body including the signature"},
	},
	Required: []string{"subject", "body"},
}

// PostDemoInput tunes one post-demo run
type PostDemoInput struct {
	// To overrides the recipients resolved from the calendar
	To []string
	// DryRun drafts the email without sending or recording it
	DryRun bool
}

// PostDemoResult is the outcome of PostDemo
type PostDemoResult struct {
	Pipeline *followup.Result   `json:"pipeline"`
	Email    *model.Email       `json:"email"`
	To       []string           `json:"to"`
	Sent     *model.EmailRecord `json:"sent,omitempty"`
}

// PostDemo drafts a follow-up for a demo meeting log and sends it to the
// participants. The email is rejected with tool.ErrMissingRecipient before
// any send when no recipient is known.
func (u *UseCase) PostDemo(ctx context.Context, log string, input PostDemoInput) (*PostDemoResult, error) {
	if u.followup == nil {
		return nil, ErrFollowupNotConfigured
	}

	var mailer tool.Mailer
	if !input.DryRun {
		m, err := u.tools.RequireMailer()
		if err != nil {
			return nil, err
		}
		mailer = m
	}

	pipeline, err := u.followup.Run(ctx, log, u.profile(agent.PostDemo, adapter.WithSchema(emailSchema))...)
	result := &PostDemoResult{Pipeline: pipeline}
	if err != nil {
		return result, goerr.Wrap(err, "follow-up pipeline failed")
	}

	if err := u.RecordRun(ctx, pipeline); err != nil {
		return result, err
	}

	email, err := decodeEmail(ctx, pipeline.Response)
	if err != nil {
		return result, err
	}
	result.Email = email

	result.To = recipients(input.To, pipeline.Resolved)
	if len(result.To) == 0 {
		return result, goerr.Wrap(tool.ErrMissingRecipient, "no participant email was resolved",
			goerr.V("subject", email.Subject))
	}

	if input.DryRun {
		return result, nil
	}

	sent, err := mailer.Send(ctx, result.To, email.Subject, email.Body)
	if err != nil {
		return result, goerr.Wrap(err, "failed to send follow-up email", goerr.V("to", result.To))
	}

	record := &model.EmailRecord{
		ID:        model.NewEmailID(),
		To:        result.To,
		Subject:   email.Subject,
		Body:      email.Body,
		MessageID: sent.MessageID,
		SentAt:    u.now(),
	}
	if err := u.repo.PutEmail(ctx, record); err != nil {
		return result, goerr.Wrap(err, "failed to record sent email", goerr.V("message_id", sent.MessageID))
	}
	result.Sent = record

	if u.tools.Notifier != nil {
		text := fmt.Sprintf("Follow-up sent to %s: %s", strings.Join(result.To, ", "), email.Subject)
		if err := u.tools.Notifier.Post(ctx, text); err != nil {
			logging.From(ctx).Warn("failed to notify about sent email", "error", err)
		}
	}

	logging.From(ctx).Info("follow-up email sent", "to", result.To, "message_id", sent.MessageID)
	return result, nil
}

// RecordRun stores the outcome summary of a pipeline run
func (u *UseCase) RecordRun(ctx context.Context, result *followup.Result) error {
	run := &model.FollowupRun{
		ID:            model.NewRunID(),
		ParseFailed:   result.ParseFailure != nil,
		RetrievedDocs: len(result.Documents),
		CreatedAt:     u.now(),
	}
	if result.Meeting != nil {
		run.Subject = result.Meeting.Subject
		run.Summary = result.Meeting.Summary
	}
	if result.Resolved != nil {
		run.Source = result.Resolved.Source
	}

	if err := u.repo.PutFollowupRun(ctx, run); err != nil {
		return goerr.Wrap(err, "failed to record follow-up run")
	}
	return nil
}

// decodeEmail reads the structured email. Output that is not JSON falls back
// to a "Subject:" line followed by the body.
func decodeEmail(ctx context.Context, raw string) (*model.Email, error) {
	var email model.Email
	err := adapter.DecodeStructured(emailSchema, raw, &email)
	if err == nil && strings.TrimSpace(email.Subject) != "" {
		email.Subject = strings.TrimSpace(email.Subject)
		email.Body = strings.TrimSpace(email.Body)
		return &email, nil
	}

	logging.From(ctx).Warn("email response is not structured, looking for a subject line", "error", err)
	if fallback := splitSubject(raw); fallback != nil {
		return fallback, nil
	}
	return nil, goerr.Wrap(ErrMalformedEmail, "no subject found", goerr.V("response", raw))
}

func splitSubject(text string) *model.Email {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	var subject string
	body := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if subject == "" && len(trimmed) > len("subject:") && strings.EqualFold(trimmed[:len("subject:")], "subject:") {
			subject = strings.TrimSpace(trimmed[len("subject:"):])
			continue
		}
		body = append(body, line)
	}
	if subject == "" {
		return nil
	}
	return &model.Email{
		Subject: subject,
		Body:    strings.TrimSpace(strings.Join(body, "\n")),
	}
}

func recipients(override []string, resolved *model.ResolvedEvent) []string {
	var to []string
	source := override
	if len(source) == 0 && resolved != nil {
		source = resolved.Emails
	}
	for _, addr := range source {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	return to
}
