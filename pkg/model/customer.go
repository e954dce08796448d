package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidSegmentMethod = goerr.New("invalid segmentation method")
)

type CustomerID string

// NewCustomerID generates a new unique CustomerID
func NewCustomerID() CustomerID {
	return CustomerID(uuid.New().String())
}

// Customer is one spreadsheet row keyed by header name
type Customer struct {
	ID        CustomerID        `json:"id"`
	Fields    map[string]string `json:"fields"`
	Segment   string            `json:"segment,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Name returns the best display name the row offers
func (c *Customer) Name() string {
	for _, key := range []string{"name", "Name", "company", "Company", "customer", "Customer"} {
		if v := c.Fields[key]; v != "" {
			return v
		}
	}
	return string(c.ID)
}

type SegmentationID string

func NewSegmentationID() SegmentationID {
	return SegmentationID(uuid.New().String())
}

type SegmentMethod string

const (
	SegmentMethodPolicy SegmentMethod = "policy"
	SegmentMethodLLM    SegmentMethod = "llm"
)

func (m SegmentMethod) Validate() error {
	switch m {
	case SegmentMethodPolicy, SegmentMethodLLM:
		return nil
	default:
		return goerr.Wrap(ErrInvalidSegmentMethod, "unknown method", goerr.V("method", m))
	}
}

// Segment groups customers under one engagement strategy
type Segment struct {
	Name        string       `json:"name"`
	CustomerIDs []CustomerID `json:"customer_ids"`
	Strategy    string       `json:"strategy"`
}

// Segmentation is one analyst run over the customer list
type Segmentation struct {
	ID        SegmentationID `json:"id"`
	Method    SegmentMethod  `json:"method"`
	Fields    []string       `json:"fields,omitempty"`
	Segments  []*Segment     `json:"segments"`
	CreatedAt time.Time      `json:"created_at"`
}

type OnboardingDocID string

func NewOnboardingDocID() OnboardingDocID {
	return OnboardingDocID(uuid.New().String())
}

// OnboardingDoc is a drafted onboarding document for one segment
type OnboardingDoc struct {
	ID        OnboardingDocID `json:"id"`
	Segment   string          `json:"segment"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	URL       string          `json:"url,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type EmailID string

func NewEmailID() EmailID {
	return EmailID(uuid.New().String())
}

// EmailRecord is a follow-up email that was handed to the mail collaborator
type EmailRecord struct {
	ID        EmailID   `json:"id"`
	To        []string  `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	MessageID string    `json:"message_id,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// Email is a drafted message before sending
type Email struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
