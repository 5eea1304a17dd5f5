package stage

import (
	"context"

	"slidecast/internal/store"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *store.Presentation) error
	Execute(context.Context, *store.Presentation) error
	HealthCheck(context.Context) Health
}

// InputGate is implemented by handlers whose work depends on assets supplied
// from outside the pipeline. A presentation the gate rejects stays in the
// stage's start status and is reconsidered on a later poll instead of being
// failed.
type InputGate interface {
	ReadyForWork(ctx context.Context, pres *store.Presentation) (ready bool, reason string, err error)
}
