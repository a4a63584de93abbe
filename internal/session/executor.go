package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greyhoundforty/blueterm/internal/cloud"
)

// Outcome is the resolution of a PendingAction.
type Outcome struct {
	Succeeded  bool
	Err        error
	ResolvedAt time.Time
}

// PendingAction is one submitted action. It is returned to the caller for a
// status message and not retained by the session.
type PendingAction struct {
	ID          string
	ResourceID  string
	Name        string
	Kind        cloud.ActionKind
	SubmittedAt time.Time
	Outcome     *Outcome
}

// Message renders the outcome for a status bar.
func (p PendingAction) Message() string {
	label := p.Name
	if label == "" {
		label = p.ResourceID
	}
	switch {
	case p.Outcome == nil:
		return string(p.Kind) + " " + label + " submitted"
	case p.Outcome.Succeeded:
		return string(p.Kind) + " " + label + " accepted"
	default:
		return string(p.Kind) + " " + label + " failed: " + p.Outcome.Err.Error()
	}
}

// Executor validates and submits actions against the active selection.
type Executor struct {
	coord  *Coordinator
	logger *zap.Logger
	now    func() time.Time
}

// NewExecutor creates an executor bound to coord.
func NewExecutor(coord *Coordinator, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{coord: coord, logger: logger.Named("executor"), now: coord.now}
}

// Perform validates kind against the resource's last known status, applies
// the optimistic status and submits the action. Invalid requests fail before
// any network call. A failed submission reverts the optimistic status and is
// not retried.
func (e *Executor) Perform(ctx context.Context, id string, kind cloud.ActionKind) (PendingAction, error) {
	pa := PendingAction{
		ID:          uuid.NewString(),
		ResourceID:  id,
		Kind:        kind,
		SubmittedAt: e.now(),
	}

	cl, err := e.coord.claimAction(id, kind)
	pa.Name = cl.res.Name
	if err != nil {
		return e.resolve(pa, err)
	}

	e.logger.Info("submitting action",
		zap.String("action_id", pa.ID),
		zap.String("kind", string(kind)),
		zap.String("resource", id),
		zap.String("region", cl.region))

	if err := cl.provider.PerformAction(ctx, cl.region, id, kind); err != nil {
		if cl.applied {
			e.coord.revertOptimistic(cl.opt)
		}
		e.coord.noteAuth(err)
		return e.resolve(pa, err)
	}
	return e.resolve(pa, nil)
}

func (e *Executor) resolve(pa PendingAction, err error) (PendingAction, error) {
	pa.Outcome = &Outcome{Succeeded: err == nil, Err: err, ResolvedAt: e.now()}
	if err != nil {
		e.logger.Warn("action failed",
			zap.String("action_id", pa.ID),
			zap.String("kind", string(pa.Kind)),
			zap.String("resource", pa.ResourceID),
			zap.Error(err))
	}
	return pa, err
}
