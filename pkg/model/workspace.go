package model

import (
	"time"

	"github.com/google/uuid"
)

type RunID string

func NewRunID() RunID {
	return RunID(uuid.New().String())
}

// FollowupRun records one follow-up pipeline invocation for progress reporting.
// Intermediate artifacts are not kept; only the outcome summary is.
type FollowupRun struct {
	ID            RunID       `json:"id"`
	Subject       string      `json:"subject"`
	Summary       string      `json:"summary"`
	Source        EventSource `json:"source"`
	ParseFailed   bool        `json:"parse_failed"`
	RetrievedDocs int         `json:"retrieved_docs"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Workspace is the typed state shared by the GTM agents. Each agent reads and
// writes only the fields it declares.
type Workspace struct {
	Customers      []*Customer      `json:"customers"`
	Segmentation   *Segmentation    `json:"segmentation,omitempty"`
	OnboardingDocs []*OnboardingDoc `json:"onboarding_docs"`
	EmailsSent     []*EmailRecord   `json:"emails_sent"`
	FollowupRuns   []*FollowupRun   `json:"followup_runs"`
}
