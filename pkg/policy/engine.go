package policy

import (
	"context"
	"fmt"

	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/inflect-gtm/inflect/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

// Unsegmented collects customers for which no policy rule decided a segment
const Unsegmented = "unsegmented"

type printHook struct {
	ctx context.Context
}

func (h *printHook) Print(pctx print.Context, message string) error {
	logging.From(h.ctx).Debug("rego print", "message", message)
	return nil
}

// Engine assigns customers to segments with Rego rules. A policy looks like:
//
//	package segment
//
//	name = "enterprise" if { to_number(input.fields.Seats) >= 100 }
//	strategy := "Assign a dedicated CSM" if { name == "enterprise" }
type Engine struct {
	query *rego.PreparedEvalQuery
}

// Decision is the outcome of evaluating one customer
type Decision struct {
	Segment  string
	Strategy string
}

// New loads the policies in policyDir. Without any .rego file the engine is disabled.
func New(ctx context.Context, policyDir string) (*Engine, error) {
	if policyDir == "" {
		return &Engine{}, nil
	}

	modules, err := loadModules(policyDir)
	if err != nil {
		return nil, err
	}
	return NewFromModules(ctx, modules)
}

// NewFromModules compiles policy sources keyed by file name
func NewFromModules(ctx context.Context, modules map[string]string) (*Engine, error) {
	if len(modules) == 0 {
		return &Engine{}, nil
	}

	q, err := prepareQuery(ctx, modules, SegmentQuery)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare segment query")
	}
	return &Engine{query: q}, nil
}

// Enabled reports whether any policy was loaded
func (e *Engine) Enabled() bool {
	return e != nil && e.query != nil
}

// Evaluate decides the segment of one customer
func (e *Engine) Evaluate(ctx context.Context, customer *model.Customer) (*Decision, error) {
	if !e.Enabled() {
		return &Decision{Segment: Unsegmented}, nil
	}

	input := map[string]any{
		"id":     string(customer.ID),
		"fields": customer.Fields,
	}

	rs, err := e.query.Eval(ctx, rego.EvalInput(input), rego.EvalPrintHook(&printHook{ctx: ctx}))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate segment policy", goerr.V("customer_id", customer.ID))
	}

	decision := &Decision{Segment: Unsegmented}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return decision, nil
	}

	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return nil, goerr.New("invalid segment result: not an object", goerr.V("customer_id", customer.ID))
	}

	if name := getString(data, "name"); name != "" {
		decision.Segment = name
	}
	decision.Strategy = getString(data, "strategy")

	return decision, nil
}

// Group evaluates every customer and returns segments in first-seen order.
// Each customer's Segment field is set to its decision.
func (e *Engine) Group(ctx context.Context, customers []*model.Customer) ([]*model.Segment, error) {
	var segments []*model.Segment
	index := make(map[string]*model.Segment)

	for _, c := range customers {
		d, err := e.Evaluate(ctx, c)
		if err != nil {
			return nil, err
		}
		c.Segment = d.Segment

		seg, ok := index[d.Segment]
		if !ok {
			seg = &model.Segment{Name: d.Segment}
			index[d.Segment] = seg
			segments = append(segments, seg)
		}
		seg.CustomerIDs = append(seg.CustomerIDs, c.ID)
		if seg.Strategy == "" {
			seg.Strategy = d.Strategy
		}
	}

	return segments, nil
}

func getString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
