package gtm

import (
	"context"
	"errors"

	"github.com/inflect-gtm/inflect/pkg/agent"
	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/inflect-gtm/inflect/pkg/repository"
	"github.com/inflect-gtm/inflect/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

func onboardingTitle(segment string) string {
	return "Onboarding guide: " + segment
}

// WriteOnboardingDocs drafts one onboarding document per segment of the
// latest segmentation and stores it. With publishing enabled each document
// is also created through the Docs collaborator.
func (u *UseCase) WriteOnboardingDocs(ctx context.Context) ([]*model.OnboardingDoc, error) {
	logger := logging.From(ctx)

	seg, err := u.repo.GetLatestSegmentation(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, goerr.Wrap(ErrNoSegmentation, "run segment first")
		}
		return nil, goerr.Wrap(err, "failed to get segmentation")
	}

	customers, err := u.loadCustomers(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[model.CustomerID]*model.Customer, len(customers))
	for _, c := range customers {
		byID[c.ID] = c
	}

	if u.publishDocs && u.tools.Docs == nil {
		logger.Warn("docs collaborator is disabled, documents are stored locally only")
	}

	var docs []*model.OnboardingDoc
	for _, s := range seg.Segments {
		var members []map[string]string
		for _, id := range s.CustomerIDs {
			if c, ok := byID[id]; ok {
				members = append(members, c.Fields)
			}
			if len(members) == sampleSize {
				break
			}
		}
		membersJSON, err := toJSON(members)
		if err != nil {
			return nil, err
		}

		strategy := s.Strategy
		if strategy == "" {
			strategy = DefaultStrategy
		}

		prompt, err := render("onboarding.md", map[string]any{
			"Segment":   s.Name,
			"Strategy":  strategy,
			"Customers": membersJSON,
		})
		if err != nil {
			return nil, err
		}

		body, err := u.llm.Generate(ctx, prompt, u.profile(agent.Writer)...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to generate onboarding document", goerr.V("segment", s.Name))
		}

		doc := &model.OnboardingDoc{
			ID:        model.NewOnboardingDocID(),
			Segment:   s.Name,
			Title:     onboardingTitle(s.Name),
			Body:      body,
			CreatedAt: u.now(),
		}

		if u.publishDocs && u.tools.Docs != nil {
			ref, err := u.tools.Docs.Create(ctx, doc.Title, doc.Body)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to publish onboarding document", goerr.V("segment", s.Name))
			}
			doc.URL = ref.URL
		}

		if err := u.repo.PutOnboardingDoc(ctx, doc); err != nil {
			return nil, goerr.Wrap(err, "failed to store onboarding document", goerr.V("segment", s.Name))
		}

		logger.Info("onboarding document written", "segment", s.Name, "url", doc.URL)
		docs = append(docs, doc)
	}

	return docs, nil
}
