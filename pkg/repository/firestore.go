package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionCustomers     = "customers"
	collectionSegmentations = "segmentations"
	collectionDocs          = "onboarding_docs"
	collectionEmails        = "emails"
	collectionRuns          = "followup_runs"
)

// Firestore stores workspace records in Cloud Firestore
type Firestore struct {
	client *firestore.Client
}

var _ Repository = (*Firestore)(nil)

// customerDoc adds the list position so order survives round trips
type customerDoc struct {
	Position int
	Customer *model.Customer
}

// NewFirestore connects to the given Firestore database
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID))
	}
	return &Firestore{client: client}, nil
}

func (r *Firestore) Close() error {
	return r.client.Close()
}

func (r *Firestore) PutCustomers(ctx context.Context, customers []*model.Customer) error {
	col := r.client.Collection(collectionCustomers)

	existing, err := col.Documents(ctx).GetAll()
	if err != nil {
		return goerr.Wrap(err, "failed to list existing customers")
	}

	bw := r.client.BulkWriter(ctx)
	keep := make(map[string]bool, len(customers))
	for i, c := range customers {
		keep[string(c.ID)] = true
		if _, err := bw.Set(col.Doc(string(c.ID)), &customerDoc{Position: i, Customer: c}); err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to enqueue customer", goerr.V("id", c.ID))
		}
	}
	for _, snap := range existing {
		if keep[snap.Ref.ID] {
			continue
		}
		if _, err := bw.Delete(snap.Ref); err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to enqueue customer delete", goerr.V("id", snap.Ref.ID))
		}
	}
	bw.End()

	return nil
}

func (r *Firestore) ListCustomers(ctx context.Context) ([]*model.Customer, error) {
	iter := r.client.Collection(collectionCustomers).OrderBy("Position", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var customers []*model.Customer
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate customers")
		}

		var cd customerDoc
		if err := doc.DataTo(&cd); err != nil {
			return nil, goerr.Wrap(err, "failed to decode customer", goerr.V("id", doc.Ref.ID))
		}
		customers = append(customers, cd.Customer)
	}
	return customers, nil
}

func (r *Firestore) PutSegmentation(ctx context.Context, seg *model.Segmentation) error {
	return r.set(ctx, collectionSegmentations, string(seg.ID), seg)
}

func (r *Firestore) GetLatestSegmentation(ctx context.Context) (*model.Segmentation, error) {
	segs, err := list[model.Segmentation](ctx,
		r.client.Collection(collectionSegmentations).OrderBy("CreatedAt", firestore.Desc).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, ErrNotFound
	}
	return segs[0], nil
}

func (r *Firestore) PutOnboardingDoc(ctx context.Context, doc *model.OnboardingDoc) error {
	return r.set(ctx, collectionDocs, string(doc.ID), doc)
}

func (r *Firestore) ListOnboardingDocs(ctx context.Context) ([]*model.OnboardingDoc, error) {
	return list[model.OnboardingDoc](ctx, r.client.Collection(collectionDocs).OrderBy("CreatedAt", firestore.Asc))
}

func (r *Firestore) PutEmail(ctx context.Context, email *model.EmailRecord) error {
	return r.set(ctx, collectionEmails, string(email.ID), email)
}

func (r *Firestore) ListEmails(ctx context.Context, limit int) ([]*model.EmailRecord, error) {
	q := r.client.Collection(collectionEmails).OrderBy("SentAt", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return list[model.EmailRecord](ctx, q)
}

func (r *Firestore) PutFollowupRun(ctx context.Context, run *model.FollowupRun) error {
	return r.set(ctx, collectionRuns, string(run.ID), run)
}

func (r *Firestore) ListFollowupRuns(ctx context.Context, limit int) ([]*model.FollowupRun, error) {
	q := r.client.Collection(collectionRuns).OrderBy("CreatedAt", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return list[model.FollowupRun](ctx, q)
}

// GetEmail returns one sent email by ID
func (r *Firestore) GetEmail(ctx context.Context, id model.EmailID) (*model.EmailRecord, error) {
	doc, err := r.client.Collection(collectionEmails).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "email not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get email", goerr.V("id", id))
	}

	var email model.EmailRecord
	if err := doc.DataTo(&email); err != nil {
		return nil, goerr.Wrap(err, "failed to decode email", goerr.V("id", id))
	}
	return &email, nil
}

func (r *Firestore) set(ctx context.Context, collection, id string, v any) error {
	if _, err := r.client.Collection(collection).Doc(id).Set(ctx, v); err != nil {
		return goerr.Wrap(err, "failed to put document",
			goerr.V("collection", collection),
			goerr.V("id", id))
	}
	return nil
}

func list[T any](ctx context.Context, q firestore.Query) ([]*T, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*T
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate documents")
		}

		var v T
		if err := doc.DataTo(&v); err != nil {
			return nil, goerr.Wrap(err, "failed to decode document", goerr.V("id", doc.Ref.ID))
		}
		out = append(out, &v)
	}
	return out, nil
}
