package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/paycheck/paycheck-backend/database"
	"github.com/paycheck/paycheck-backend/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// write saves one document. On success it returns a func that puts the
// document back the way it was before the save.
type write struct {
	label string
	apply func(ctx context.Context) (undo func(context.Context) error, err error)
}

func (o *Orchestrator) orgWrite(before, after *model.Organization) write {
	return write{
		label: "organization " + after.Key,
		apply: func(ctx context.Context) (func(context.Context) error, error) {
			saved, err := o.store.SaveOrganization(ctx, after)
			if err != nil {
				return nil, err
			}
			return func(ctx context.Context) error {
				restore := before.Clone()
				restore.Rev = saved.Rev
				_, err := o.store.SaveOrganization(ctx, restore)
				return err
			}, nil
		},
	}
}

func (o *Orchestrator) userWrite(before, after *model.User) write {
	return write{
		label: "user " + after.Key,
		apply: func(ctx context.Context) (func(context.Context) error, error) {
			saved, err := o.store.SaveUser(ctx, after)
			if err != nil {
				return nil, err
			}
			return func(ctx context.Context) error {
				restore := before.Clone()
				restore.Rev = saved.Rev
				_, err := o.store.SaveUser(ctx, restore)
				return err
			}, nil
		},
	}
}

// commit issues all writes concurrently. If any fails, the ones that
// succeeded are undone. failed is false only when every write landed.
func (o *Orchestrator) commit(ctx context.Context, op string, writes []write) (Result, bool) {
	undos := make([]func(context.Context) error, len(writes))
	errs := make([]error, len(writes))

	var g errgroup.Group
	for i, w := range writes {
		g.Go(func() error {
			undos[i], errs[i] = w.apply(ctx)
			return nil
		})
	}
	_ = g.Wait()

	var failures []error
	onlyConflicts := true
	for i, err := range errs {
		if err == nil {
			continue
		}
		failures = append(failures, fmt.Errorf("%s: %w", writes[i].label, err))
		if !errors.Is(err, database.ErrConflict) {
			onlyConflicts = false
		}
	}
	if len(failures) == 0 {
		return Result{}, false
	}
	writeErr := errors.Join(failures...)

	// Undo must run even if the request context is gone.
	undoCtx := context.WithoutCancel(ctx)
	var stranded []string
	for i, undo := range undos {
		if undo == nil {
			continue
		}
		if err := undo(undoCtx); err != nil {
			o.logger.Error("Failed to roll back write",
				zap.String("op", op),
				zap.String("document", writes[i].label),
				zap.Error(err))
			stranded = append(stranded, writes[i].label)
			continue
		}
		o.logger.Warn("Rolled back write after sibling write failed",
			zap.String("op", op),
			zap.String("document", writes[i].label))
	}

	if len(stranded) > 0 {
		err := &PartialWriteError{Applied: stranded, Err: writeErr}
		partialWriteCounter.WithLabelValues(op).Inc()
		o.logger.Error("Partial write left in store", zap.String("op", op), zap.Error(err))
		return Result{Status: StatusFailed, Err: err}, true
	}

	if onlyConflicts {
		return Result{Status: StatusFailed, Err: writeErr, retryable: true}, true
	}

	o.logger.Error("Write failed", zap.String("op", op), zap.Error(writeErr))
	return Result{Status: StatusFailed, Err: writeErr}, true
}
