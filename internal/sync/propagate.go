package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AntoineXev/miniorg/internal/model"
	"github.com/AntoineXev/miniorg/internal/provider"
	"github.com/AntoineXev/miniorg/internal/token"
)

// Propagator pushes local event mutations to the owning provider.
//
// Every operation is best-effort: a provider failure is recorded on the
// event's sync status and swallowed, so the caller's primary local
// mutation never fails or rolls back merely because the external
// calendar was unreachable. The single exception is a rejected refresh
// token (provider.ErrRefreshFailed), which propagates because the
// connection is dead until the user reconnects.
type Propagator struct {
	store       Store
	tokens      *token.Manager
	providers   *provider.Registry
	callTimeout time.Duration
	now         func() time.Time
}

// NewPropagator creates a propagator over the given collaborators. A
// callTimeout of zero selects the default per-call deadline.
func NewPropagator(s Store, tokens *token.Manager, providers *provider.Registry, callTimeout time.Duration) *Propagator {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &Propagator{
		store:       s,
		tokens:      tokens,
		providers:   providers,
		callTimeout: callTimeout,
		now:         time.Now,
	}
}

// callCtx bounds one provider call so an unresponsive provider cannot
// hang the caller's local mutation.
func (p *Propagator) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.callTimeout)
}

// ExportEvent creates the event on the connection's external calendar and
// stamps the local copy with the returned external id.
func (p *Propagator) ExportEvent(ctx context.Context, connectionID, eventID string) error {
	conn, err := p.store.GetConnectionByID(ctx, connectionID)
	if err != nil {
		return err
	}
	ev, err := p.store.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}

	accessToken, err := p.tokens.EnsureValidToken(ctx, conn.ID)
	if err != nil {
		return p.recordFailure(ctx, ev.ID, err)
	}

	adapter, err := p.providers.Get(conn.Provider)
	if err != nil {
		return err
	}

	callCtx, cancel := p.callCtx(ctx)
	externalID, err := adapter.CreateEvent(callCtx, accessToken, conn.CalendarID, providerEvent(ev))
	cancel()
	if err != nil {
		return p.recordFailure(ctx, ev.ID, err)
	}

	return p.store.LinkEventExternal(ctx, ev.ID, externalID, conn.ID, p.now())
}

// UpdateExportedEvent pushes the event's current local field values to
// its remote copy.
func (p *Propagator) UpdateExportedEvent(ctx context.Context, eventID string) error {
	ev, err := p.store.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}
	if !ev.IsExported() {
		return fmt.Errorf("event %s: %w", eventID, ErrNotExported)
	}

	conn, err := p.store.GetConnectionByID(ctx, *ev.ConnectionID)
	if err != nil {
		return err
	}

	accessToken, err := p.tokens.EnsureValidToken(ctx, conn.ID)
	if err != nil {
		return p.recordFailure(ctx, ev.ID, err)
	}

	adapter, err := p.providers.Get(conn.Provider)
	if err != nil {
		return err
	}

	patch := provider.EventPatch{
		Title:       &ev.Title,
		Description: &ev.Description,
		Start:       &ev.StartTime,
		End:         &ev.EndTime,
		AllDay:      &ev.IsAllDay,
	}
	if ev.Color != "" {
		patch.Color = &ev.Color
	}

	callCtx, cancel := p.callCtx(ctx)
	err = adapter.UpdateEvent(callCtx, accessToken, conn.CalendarID, *ev.ExternalID, patch)
	cancel()
	if err != nil {
		return p.recordFailure(ctx, ev.ID, err)
	}

	return p.store.MarkEventSynced(ctx, ev.ID, p.now())
}

// DeleteExportedEvent removes the event's remote copy. A failed provider
// call is swallowed so the caller can proceed to delete the local row; a
// stale or already-removed remote copy must never block local deletion.
func (p *Propagator) DeleteExportedEvent(ctx context.Context, eventID string) error {
	ev, err := p.store.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}
	if !ev.IsExported() {
		return fmt.Errorf("event %s: %w", eventID, ErrNotExported)
	}

	conn, err := p.store.GetConnectionByID(ctx, *ev.ConnectionID)
	if err != nil {
		return err
	}

	accessToken, err := p.tokens.EnsureValidToken(ctx, conn.ID)
	if err != nil {
		if errors.Is(err, provider.ErrRefreshFailed) {
			return err
		}
		return nil
	}

	adapter, err := p.providers.Get(conn.Provider)
	if err != nil {
		return err
	}

	callCtx, cancel := p.callCtx(ctx)
	err = adapter.DeleteEvent(callCtx, accessToken, conn.CalendarID, *ev.ExternalID)
	cancel()
	if err != nil {
		if errors.Is(err, provider.ErrRefreshFailed) {
			return err
		}
		return nil
	}
	return nil
}

// recordFailure writes the failure onto the event's sync status and
// swallows it, except for a rejected refresh which must surface.
func (p *Propagator) recordFailure(ctx context.Context, eventID string, cause error) error {
	if errors.Is(cause, provider.ErrRefreshFailed) {
		return cause
	}
	if markErr := p.store.MarkEventSyncError(ctx, eventID, cause.Error()); markErr != nil {
		return markErr
	}
	return nil
}

// providerEvent maps a local event to the provider-neutral wire shape.
func providerEvent(ev *model.Event) provider.Event {
	return provider.Event{
		Title:       ev.Title,
		Description: ev.Description,
		Start:       ev.StartTime,
		End:         ev.EndTime,
		AllDay:      ev.IsAllDay,
		Color:       ev.Color,
	}
}
