package gtm

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/inflect-gtm/inflect/pkg/adapter"
	"github.com/inflect-gtm/inflect/pkg/agent"
	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/inflect-gtm/inflect/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultStrategy is used for segments the LLM gave no strategy for
const DefaultStrategy = "Use general onboarding."

const unknownValue = "unknown"

var ErrNoSegmentFields = goerr.New("no usable segmentation fields")

var attributeSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"fields": {
			Type:        "array",
			Items:       &jsonschema.Schema{Type: "string"},
			Description: "Customer field names to group by",
		},
	},
	Required: []string{"fields"},
}

var strategySchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"strategies": {
			Type: "array",
			Items: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"segment":  {Type: "string"},
					"strategy": {Type: "string"},
				},
				Required: []string{"segment", "strategy"},
			},
		},
	},
	Required: []string{"strategies"},
}

type attributeChoice struct {
	Fields []string `json:"fields"`
}

type strategyList struct {
	Strategies []struct {
		Segment  string `json:"segment"`
		Strategy string `json:"strategy"`
	} `json:"strategies"`
}

// Segment groups the stored customers and assigns a strategy to every
// segment. Rego policies decide when configured; otherwise the LLM picks the
// fields to group by. The segmentation and updated customers are stored.
func (u *UseCase) Segment(ctx context.Context) (*model.Segmentation, error) {
	customers, err := u.loadCustomers(ctx)
	if err != nil {
		return nil, err
	}

	seg := &model.Segmentation{
		ID:        model.NewSegmentationID(),
		CreatedAt: u.now(),
	}

	if u.policy.Enabled() {
		seg.Method = model.SegmentMethodPolicy
		if seg.Segments, err = u.policy.Group(ctx, customers); err != nil {
			return nil, goerr.Wrap(err, "failed to apply segment policy")
		}
	} else {
		seg.Method = model.SegmentMethodLLM
		if seg.Fields, err = u.chooseFields(ctx, customers); err != nil {
			return nil, err
		}
		seg.Segments = groupByFields(customers, seg.Fields)
	}

	if err := u.assignStrategies(ctx, seg.Segments, customers); err != nil {
		return nil, err
	}

	if err := u.repo.PutCustomers(ctx, customers); err != nil {
		return nil, goerr.Wrap(err, "failed to store segmented customers")
	}
	if err := u.repo.PutSegmentation(ctx, seg); err != nil {
		return nil, goerr.Wrap(err, "failed to store segmentation")
	}

	logging.From(ctx).Info("customers segmented",
		"method", seg.Method,
		"segments", len(seg.Segments),
		"customers", len(customers))
	return seg, nil
}

func (u *UseCase) chooseFields(ctx context.Context, customers []*model.Customer) ([]string, error) {
	available := fieldNames(customers)
	sample, err := customerSample(customers)
	if err != nil {
		return nil, err
	}

	prompt, err := render("attributes.md", map[string]any{
		"Sample": sample,
		"Fields": available,
	})
	if err != nil {
		return nil, err
	}

	raw, err := u.llm.Generate(ctx, prompt, u.profile(agent.Analyst, adapter.WithSchema(attributeSchema))...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate segmentation fields")
	}

	var choice attributeChoice
	if err := adapter.DecodeStructured(attributeSchema, raw, &choice); err != nil {
		return nil, goerr.Wrap(ErrNoSegmentFields, err.Error(), goerr.V("response", raw))
	}

	var fields []string
	for _, f := range choice.Fields {
		f = strings.TrimSpace(f)
		if slices.Contains(available, f) && !slices.Contains(fields, f) {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return nil, goerr.Wrap(ErrNoSegmentFields, "LLM chose no known field",
			goerr.V("chosen", choice.Fields),
			goerr.V("available", available))
	}
	return fields, nil
}

func fieldNames(customers []*model.Customer) []string {
	set := make(map[string]struct{})
	for _, c := range customers {
		for k := range c.Fields {
			set[k] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// groupByFields builds one segment per distinct value combination, in
// first-seen order
func groupByFields(customers []*model.Customer, fields []string) []*model.Segment {
	var segments []*model.Segment
	index := make(map[string]*model.Segment)

	for _, c := range customers {
		values := make([]string, 0, len(fields))
		for _, f := range fields {
			v := strings.TrimSpace(c.Fields[f])
			if v == "" {
				v = unknownValue
			}
			values = append(values, v)
		}
		name := strings.Join(values, " / ")
		c.Segment = name

		seg, ok := index[name]
		if !ok {
			seg = &model.Segment{Name: name}
			index[name] = seg
			segments = append(segments, seg)
		}
		seg.CustomerIDs = append(seg.CustomerIDs, c.ID)
	}

	return segments
}

// assignStrategies asks the LLM for the segments without a strategy. A
// malformed answer leaves them on DefaultStrategy.
func (u *UseCase) assignStrategies(ctx context.Context, segments []*model.Segment, customers []*model.Customer) error {
	var missing []*model.Segment
	for _, s := range segments {
		if s.Strategy == "" {
			missing = append(missing, s)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	sample, err := customerSample(customers)
	if err != nil {
		return err
	}
	prompt, err := render("strategy.md", map[string]any{
		"Segments": missing,
		"Sample":   sample,
	})
	if err != nil {
		return err
	}

	raw, err := u.llm.Generate(ctx, prompt, u.profile(agent.Analyst, adapter.WithSchema(strategySchema))...)
	if err != nil {
		return goerr.Wrap(err, "failed to generate segment strategies")
	}

	strategies := make(map[string]string)
	var list strategyList
	if err := adapter.DecodeStructured(strategySchema, raw, &list); err != nil {
		logging.From(ctx).Warn("strategy response is malformed, using default strategy", "error", err)
	} else {
		for _, s := range list.Strategies {
			strategies[strings.TrimSpace(s.Segment)] = strings.TrimSpace(s.Strategy)
		}
	}

	for _, s := range missing {
		s.Strategy = strategies[s.Name]
		if s.Strategy == "" {
			s.Strategy = DefaultStrategy
		}
	}
	return nil
}
