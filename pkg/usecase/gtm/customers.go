package gtm

import (
	"context"

	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/inflect-gtm/inflect/pkg/tool/sheets"
	"github.com/inflect-gtm/inflect/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// FetchCustomers reads rng of spreadsheet and replaces the stored customer
// list. The first row of the range is the header row.
func (u *UseCase) FetchCustomers(ctx context.Context, spreadsheet, rng string) ([]*model.Customer, error) {
	sh, err := u.tools.RequireSheets()
	if err != nil {
		return nil, err
	}

	rows, err := sh.ReadRange(ctx, spreadsheet, rng)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read customer sheet",
			goerr.V("spreadsheet", spreadsheet),
			goerr.V("range", rng))
	}

	records := sheets.ParseRows(rows)
	if len(records) == 0 {
		return nil, goerr.Wrap(ErrNoCustomers, "sheet range has no data rows",
			goerr.V("spreadsheet", spreadsheet),
			goerr.V("range", rng))
	}

	now := u.now()
	customers := make([]*model.Customer, 0, len(records))
	for _, fields := range records {
		customers = append(customers, &model.Customer{
			ID:        model.NewCustomerID(),
			Fields:    fields,
			CreatedAt: now,
		})
	}

	if err := u.repo.PutCustomers(ctx, customers); err != nil {
		return nil, goerr.Wrap(err, "failed to store customers")
	}

	logging.From(ctx).Info("customers fetched", "count", len(customers), "spreadsheet", spreadsheet)
	return customers, nil
}

func (u *UseCase) loadCustomers(ctx context.Context) ([]*model.Customer, error) {
	customers, err := u.repo.ListCustomers(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list customers")
	}
	if len(customers) == 0 {
		return nil, goerr.Wrap(ErrNoCustomers, "run customers fetch first")
	}
	return customers, nil
}

func customerSample(customers []*model.Customer) (string, error) {
	n := min(len(customers), sampleSize)
	sample := make([]map[string]string, 0, n)
	for _, c := range customers[:n] {
		sample = append(sample, c.Fields)
	}
	return toJSON(sample)
}
