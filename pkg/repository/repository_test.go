package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/inflect-gtm/inflect/pkg/repository"
	"github.com/m-mizutani/gt"
)

// testRepository runs the shared behavior checks against one backend
func testRepository(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	t.Run("customers keep order and are replaced", func(t *testing.T) {
		first := []*model.Customer{
			{ID: model.NewCustomerID(), Fields: map[string]string{"Name": "Acme"}, CreatedAt: base},
			{ID: model.NewCustomerID(), Fields: map[string]string{"Name": "Globex"}, CreatedAt: base},
			{ID: model.NewCustomerID(), Fields: map[string]string{"Name": "Initech"}, CreatedAt: base},
		}
		gt.NoError(t, repo.PutCustomers(ctx, first))

		got, err := repo.ListCustomers(ctx)
		gt.NoError(t, err)
		gt.A(t, got).Length(3)
		gt.Equal(t, got[0].Name(), "Acme")
		gt.Equal(t, got[2].Name(), "Initech")

		first[1].Segment = "enterprise"
		gt.NoError(t, repo.PutCustomers(ctx, first[1:2]))
		got, err = repo.ListCustomers(ctx)
		gt.NoError(t, err)
		gt.A(t, got).Length(1)
		gt.Equal(t, got[0].ID, first[1].ID)
		gt.Equal(t, got[0].Segment, "enterprise")
	})

	t.Run("latest segmentation wins", func(t *testing.T) {
		older := &model.Segmentation{
			ID:        model.NewSegmentationID(),
			Method:    model.SegmentMethodPolicy,
			Segments:  []*model.Segment{{Name: "smb"}},
			CreatedAt: base.Add(-time.Hour),
		}
		newer := &model.Segmentation{
			ID:     model.NewSegmentationID(),
			Method: model.SegmentMethodLLM,
			Fields: []string{"Industry"},
			Segments: []*model.Segment{
				{Name: "retail", CustomerIDs: []model.CustomerID{"c1"}, Strategy: "Lead with integrations"},
			},
			CreatedAt: base,
		}
		gt.NoError(t, repo.PutSegmentation(ctx, newer))
		gt.NoError(t, repo.PutSegmentation(ctx, older))

		got, err := repo.GetLatestSegmentation(ctx)
		gt.NoError(t, err)
		gt.Equal(t, got.ID, newer.ID)
		gt.Equal(t, got.Method, model.SegmentMethodLLM)
		gt.Equal(t, got.Segments[0].Strategy, "Lead with integrations")
		gt.Equal(t, got.Segments[0].CustomerIDs, []model.CustomerID{"c1"})
	})

	t.Run("emails newest first with limit", func(t *testing.T) {
		var ids []model.EmailID
		for i := 0; i < 3; i++ {
			rec := &model.EmailRecord{
				ID:      model.NewEmailID(),
				To:      []string{"sarah@x.com"},
				Subject: "Follow-up",
				Body:    "Hello",
				SentAt:  base.Add(time.Duration(i) * time.Minute),
			}
			ids = append(ids, rec.ID)
			gt.NoError(t, repo.PutEmail(ctx, rec))
		}

		got, err := repo.ListEmails(ctx, 2)
		gt.NoError(t, err)
		gt.A(t, got).Length(2)
		gt.Equal(t, got[0].ID, ids[2])
		gt.Equal(t, got[1].ID, ids[1])

		one, err := repo.GetEmail(ctx, ids[0])
		gt.NoError(t, err)
		gt.Equal(t, one.To, []string{"sarah@x.com"})

		_, err = repo.GetEmail(ctx, model.EmailID("missing"))
		gt.True(t, errors.Is(err, repository.ErrNotFound))
	})

	t.Run("workspace snapshot", func(t *testing.T) {
		gt.NoError(t, repo.PutOnboardingDoc(ctx, &model.OnboardingDoc{
			ID: model.NewOnboardingDocID(), Segment: "retail", Title: "Welcome", Body: "...", CreatedAt: base,
		}))
		gt.NoError(t, repo.PutFollowupRun(ctx, &model.FollowupRun{
			ID: model.NewRunID(), Subject: "Demo", Source: model.EventSourceCalendar, RetrievedDocs: 2, CreatedAt: base,
		}))

		ws, err := repository.LoadWorkspace(ctx, repo)
		gt.NoError(t, err)
		gt.NotNil(t, ws.Segmentation)
		gt.A(t, ws.Customers).Length(1)
		gt.A(t, ws.EmailsSent).Longer(2)
		gt.A(t, ws.OnboardingDocs).Longer(0)
		gt.A(t, ws.FollowupRuns).Longer(0)
		gt.Equal(t, ws.FollowupRuns[0].Source, model.EventSourceCalendar)
	})
}

func TestMemory(t *testing.T) {
	testRepository(t, repository.NewMemory())
}

func TestMemoryEmptyWorkspace(t *testing.T) {
	repo := repository.NewMemory()
	_, err := repo.GetLatestSegmentation(context.Background())
	gt.True(t, errors.Is(err, repository.ErrNotFound))

	ws, err := repository.LoadWorkspace(context.Background(), repo)
	gt.NoError(t, err)
	gt.V(t, ws.Segmentation).Nil()
	gt.A(t, ws.Customers).Length(0)
}

func TestSQLite(t *testing.T) {
	repo, err := repository.NewSQLite(filepath.Join(t.TempDir(), "workspace.db"))
	gt.NoError(t, err)
	defer repo.Close()

	testRepository(t, repo)
}

func TestSQLiteReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "workspace.db")

	repo, err := repository.NewSQLite(path)
	gt.NoError(t, err)
	_, err = repo.GetLatestSegmentation(ctx)
	gt.True(t, errors.Is(err, repository.ErrNotFound))
	gt.NoError(t, repo.PutFollowupRun(ctx, &model.FollowupRun{ID: model.NewRunID(), Subject: "kept", CreatedAt: time.Now()}))
	gt.NoError(t, repo.Close())

	reopened, err := repository.NewSQLite(path)
	gt.NoError(t, err)
	defer reopened.Close()

	runs, err := reopened.ListFollowupRuns(ctx, 0)
	gt.NoError(t, err)
	gt.A(t, runs).Length(1)
	gt.Equal(t, runs[0].Subject, "kept")
}
