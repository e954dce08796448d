package repository

import (
	"context"

	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var ErrNotFound = goerr.New("record not found")

// Repository persists the GTM workspace shared by the agents
type Repository interface {
	// PutCustomers replaces the whole customer list, keeping the given order
	PutCustomers(ctx context.Context, customers []*model.Customer) error
	ListCustomers(ctx context.Context) ([]*model.Customer, error)

	PutSegmentation(ctx context.Context, seg *model.Segmentation) error
	// GetLatestSegmentation returns ErrNotFound when no segmentation exists
	GetLatestSegmentation(ctx context.Context) (*model.Segmentation, error)

	PutOnboardingDoc(ctx context.Context, doc *model.OnboardingDoc) error
	ListOnboardingDocs(ctx context.Context) ([]*model.OnboardingDoc, error)

	PutEmail(ctx context.Context, email *model.EmailRecord) error
	// GetEmail returns ErrNotFound for an unknown ID
	GetEmail(ctx context.Context, id model.EmailID) (*model.EmailRecord, error)
	// ListEmails returns the newest emails first, at most limit when limit > 0
	ListEmails(ctx context.Context, limit int) ([]*model.EmailRecord, error)

	PutFollowupRun(ctx context.Context, run *model.FollowupRun) error
	// ListFollowupRuns returns the newest runs first, at most limit when limit > 0
	ListFollowupRuns(ctx context.Context, limit int) ([]*model.FollowupRun, error)
}

// LoadWorkspace collects every record into one snapshot
func LoadWorkspace(ctx context.Context, repo Repository) (*model.Workspace, error) {
	ws := &model.Workspace{}

	customers, err := repo.ListCustomers(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list customers")
	}
	ws.Customers = customers

	seg, err := repo.GetLatestSegmentation(ctx)
	switch {
	case err == nil:
		ws.Segmentation = seg
	case !isNotFound(err):
		return nil, goerr.Wrap(err, "failed to get segmentation")
	}

	if ws.OnboardingDocs, err = repo.ListOnboardingDocs(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to list onboarding docs")
	}
	if ws.EmailsSent, err = repo.ListEmails(ctx, 0); err != nil {
		return nil, goerr.Wrap(err, "failed to list emails")
	}
	if ws.FollowupRuns, err = repo.ListFollowupRuns(ctx, 0); err != nil {
		return nil, goerr.Wrap(err, "failed to list follow-up runs")
	}

	return ws, nil
}
