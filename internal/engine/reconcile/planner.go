package reconcile

import (
	"context"

	"cardsheets/internal/platform/docstore"

	"github.com/rs/zerolog"
)

// Planner turns a request into a Plan. All reads go through reader and see
// only committed state; nothing is written.
type Planner struct {
	reader  docstore.Reader
	log     zerolog.Logger
	metrics *Metrics
}

func NewPlanner(reader docstore.Reader, log zerolog.Logger, metrics *Metrics) *Planner {
	return &Planner{reader: reader, log: log, metrics: metrics}
}

// Plan processes profiles first, then legacy template updates, each in input
// order. A profile's previous name is read from committed state, so a rename
// staged earlier in the same request is not visible to later entries.
func (p *Planner) Plan(ctx context.Context, req *Request) (*Plan, error) {
	plan := &Plan{}

	for i := range req.Profiles {
		if err := p.planProfile(ctx, req.BusinessID, &req.Profiles[i], plan); err != nil {
			return nil, err
		}
	}

	for i := range req.Updates {
		p.planTemplateUpdate(ctx, req.BusinessID, &req.Updates[i], plan)
	}

	return plan, nil
}

func (p *Planner) softFailure(plan *Plan, err error, msg string) {
	plan.SoftFailures++
	p.metrics.softFailure()
	p.log.Warn().Err(err).Msg(msg)
}
