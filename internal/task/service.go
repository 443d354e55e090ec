package task

import (
	"context"
	"time"

	"github.com/AntoineXev/miniorg/internal/model"
)

// Store is the slice of the persistence contract the task service needs.
type Store interface {
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	UpdateTask(ctx context.Context, task model.Task) error
	GetEventByID(ctx context.Context, id string) (*model.Event, error)
	UpdateEvent(ctx context.Context, ev model.Event) error
	GetEventsForTask(ctx context.Context, taskID string) ([]model.Event, error)
}

// Propagator pushes updated exported events to their provider. Its error
// isolation contract (best-effort, loud only on a dead connection) is
// owned by the sync package.
type Propagator interface {
	UpdateExportedEvent(ctx context.Context, eventID string) error
}

// Service applies the derivation rules against the store on the task and
// event mutations the CRUD layer performs.
type Service struct {
	store      Store
	propagator Propagator
	now        func() time.Time
}

// NewService creates a task service. propagator may be nil when no
// export connection exists.
func NewService(s Store, propagator Propagator) *Service {
	return &Service{store: s, propagator: propagator, now: time.Now}
}

// Complete marks a task done. A same-day locally authored event linked
// to the task gets its end snapped to now (preserving duration) so the
// logged time reflects actual completion; if that event was exported,
// the time change is propagated.
func (s *Service) Complete(ctx context.Context, taskID string) error {
	t, err := s.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return err
	}
	if t.IsDone() {
		return nil
	}

	now := s.now()
	MarkDone(t, now)

	events, err := s.store.GetEventsForTask(ctx, taskID)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if ev.Source != model.SourceMiniorg || !sameDay(ev.StartTime, now) {
			continue
		}
		ev.StartTime, ev.EndTime = SnapEnd(ev.StartTime, ev.EndTime, now)
		if err := s.store.UpdateEvent(ctx, ev); err != nil {
			return err
		}
		if ev.IsExported() && s.propagator != nil {
			if err := s.propagator.UpdateExportedEvent(ctx, ev.ID); err != nil {
				return err
			}
		}
	}

	return s.store.UpdateTask(ctx, *t)
}

// Uncomplete reverts an explicit completion and re-derives the status
// from the scheduled date.
func (s *Service) Uncomplete(ctx context.Context, taskID string) error {
	t, err := s.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return err
	}
	UnmarkDone(t)
	return s.store.UpdateTask(ctx, *t)
}

// SetScheduledDate changes the task's scheduled date and re-derives its
// status, so clearing the date demotes a task to backlog and setting one
// promotes it to planned, without ever overriding an explicit done.
func (s *Service) SetScheduledDate(ctx context.Context, taskID string, date *time.Time) error {
	t, err := s.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return err
	}
	t.ScheduledDate = date
	t.Status = DeriveStatus(date, t.Status)
	return s.store.UpdateTask(ctx, *t)
}

// LinkEvent attaches an event to the task and recomputes the task's
// duration from its full linked set.
func (s *Service) LinkEvent(ctx context.Context, taskID, eventID string) error {
	ev, err := s.store.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}
	ev.TaskID = &taskID
	if err := s.store.UpdateEvent(ctx, *ev); err != nil {
		return err
	}
	return s.RecomputeDuration(ctx, taskID)
}

// UnlinkEvent detaches an event from its task and recomputes the task's
// duration.
func (s *Service) UnlinkEvent(ctx context.Context, taskID, eventID string) error {
	ev, err := s.store.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}
	ev.TaskID = nil
	if err := s.store.UpdateEvent(ctx, *ev); err != nil {
		return err
	}
	return s.RecomputeDuration(ctx, taskID)
}

// RecomputeDuration re-aggregates the task's duration from its linked
// events. With no linked events the stored duration is left untouched.
func (s *Service) RecomputeDuration(ctx context.Context, taskID string) error {
	events, err := s.store.GetEventsForTask(ctx, taskID)
	if err != nil {
		return err
	}
	minutes, ok := DeriveDuration(events)
	if !ok {
		return nil
	}

	t, err := s.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return err
	}
	t.DurationMin = &minutes
	return s.store.UpdateTask(ctx, *t)
}
