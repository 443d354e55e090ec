package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AntoineXev/miniorg/internal/model"
	"github.com/AntoineXev/miniorg/internal/provider"
)

var (
	syncStart = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	syncEnd   = time.Date(2026, 3, 23, 0, 0, 0, 0, time.UTC)
)

func TestSyncConnectionCommitsCursorAfterSuccess(t *testing.T) {
	fake := &fakeProvider{listFn: func(string) (*provider.ListResult, error) {
		return &provider.ListResult{
			Events:        []provider.Event{remoteEvent("r1", "Standup")},
			NextSyncToken: "cursor-1",
		}, nil
	}}
	st, svc := newTestEngine(t, fake)
	ctx := context.Background()
	conn := createTestConnection(t, st, nil)

	if err := svc.SyncConnection(ctx, conn.ID, syncStart, syncEnd); err != nil {
		t.Fatalf("SyncConnection: %v", err)
	}

	after, err := st.GetConnectionByID(ctx, conn.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if after.SyncToken == nil || *after.SyncToken != "cursor-1" {
		t.Error("sync cursor must be committed after a successful batch")
	}
	if after.LastSyncAt == nil {
		t.Error("last sync timestamp must be committed after a successful batch")
	}
}

func TestSyncConnectionKeepsCursorOnListFailure(t *testing.T) {
	fake := &fakeProvider{listFn: func(string) (*provider.ListResult, error) {
		return nil, &provider.ProviderError{Provider: "google", Status: 500, Body: "boom"}
	}}
	st, svc := newTestEngine(t, fake)
	ctx := context.Background()
	conn := createTestConnection(t, st, func(c *model.Connection) {
		tok := "cursor-0"
		c.SyncToken = &tok
	})

	if err := svc.SyncConnection(ctx, conn.ID, syncStart, syncEnd); err == nil {
		t.Fatal("a failed list must surface to the caller")
	}

	after, _ := st.GetConnectionByID(ctx, conn.ID)
	if after.SyncToken == nil || *after.SyncToken != "cursor-0" {
		t.Error("a failed batch must not advance the sync cursor")
	}
	if after.LastSyncAt != nil {
		t.Error("a failed batch must not stamp last sync time")
	}
}

func TestSyncConnectionRetriesFullScanOnExpiredCursor(t *testing.T) {
	var gotTokens []string
	fake := &fakeProvider{listFn: func(syncToken string) (*provider.ListResult, error) {
		gotTokens = append(gotTokens, syncToken)
		if syncToken != "" {
			return nil, provider.ErrSyncTokenExpired
		}
		return &provider.ListResult{NextSyncToken: "cursor-fresh"}, nil
	}}
	st, svc := newTestEngine(t, fake)
	ctx := context.Background()
	conn := createTestConnection(t, st, func(c *model.Connection) {
		tok := "cursor-stale"
		c.SyncToken = &tok
	})

	if err := svc.SyncConnection(ctx, conn.ID, syncStart, syncEnd); err != nil {
		t.Fatalf("SyncConnection: %v", err)
	}
	if len(gotTokens) != 2 || gotTokens[0] != "cursor-stale" || gotTokens[1] != "" {
		t.Errorf("list calls = %v, want incremental then full scan", gotTokens)
	}

	after, _ := st.GetConnectionByID(ctx, conn.ID)
	if after.SyncToken == nil || *after.SyncToken != "cursor-fresh" {
		t.Error("the full-scan cursor must replace the expired one")
	}
}

func TestSyncConnectionClearsExpiredCursorWhenNoneReturned(t *testing.T) {
	fake := &fakeProvider{listFn: func(syncToken string) (*provider.ListResult, error) {
		if syncToken != "" {
			return nil, provider.ErrSyncTokenExpired
		}
		return &provider.ListResult{}, nil
	}}
	st, svc := newTestEngine(t, fake)
	ctx := context.Background()
	conn := createTestConnection(t, st, func(c *model.Connection) {
		tok := "cursor-stale"
		c.SyncToken = &tok
	})

	if err := svc.SyncConnection(ctx, conn.ID, syncStart, syncEnd); err != nil {
		t.Fatalf("SyncConnection: %v", err)
	}

	// Keeping a cursor the provider already rejected would repeat the
	// expired-cursor round trip on every sync.
	after, _ := st.GetConnectionByID(ctx, conn.ID)
	if after.SyncToken != nil {
		t.Errorf("sync token = %q, a rejected cursor must be cleared", *after.SyncToken)
	}
}

func TestSyncConnectionPreservesCursorWhenNoneReturned(t *testing.T) {
	fake := &fakeProvider{listFn: func(string) (*provider.ListResult, error) {
		return &provider.ListResult{}, nil
	}}
	st, svc := newTestEngine(t, fake)
	ctx := context.Background()
	conn := createTestConnection(t, st, func(c *model.Connection) {
		tok := "cursor-0"
		c.SyncToken = &tok
	})

	if err := svc.SyncConnection(ctx, conn.ID, syncStart, syncEnd); err != nil {
		t.Fatalf("SyncConnection: %v", err)
	}
	after, _ := st.GetConnectionByID(ctx, conn.ID)
	if after.SyncToken == nil || *after.SyncToken != "cursor-0" {
		t.Error("an empty next cursor must not clear the stored one")
	}
}

func TestSyncConnectionSkipsInactiveConnection(t *testing.T) {
	fake := &fakeProvider{listFn: func(string) (*provider.ListResult, error) {
		t.Error("an inactive connection must not reach the provider")
		return &provider.ListResult{}, nil
	}}
	st, svc := newTestEngine(t, fake)
	ctx := context.Background()
	conn := createTestConnection(t, st, nil)
	if err := st.SetConnectionActive(ctx, conn.ID, false); err != nil {
		t.Fatalf("SetConnectionActive: %v", err)
	}

	if err := svc.SyncConnection(ctx, conn.ID, syncStart, syncEnd); err != nil {
		t.Fatalf("SyncConnection on inactive connection: %v", err)
	}
}

func TestSyncConnectionSurfacesRefreshFailure(t *testing.T) {
	fake := &fakeProvider{refreshFn: func(string) (*provider.TokenSet, error) {
		return nil, provider.ErrRefreshFailed
	}}
	st, svc := newTestEngine(t, fake)
	conn := createTestConnection(t, st, func(c *model.Connection) {
		c.TokenExpiresAt = time.Now().Add(-time.Minute)
	})

	err := svc.SyncConnection(context.Background(), conn.ID, syncStart, syncEnd)
	if !errors.Is(err, provider.ErrRefreshFailed) {
		t.Errorf("err = %v, want ErrRefreshFailed", err)
	}
}

func TestConnectCreatesActiveConnection(t *testing.T) {
	st, svc := newTestEngine(t, &fakeProvider{})
	ctx := context.Background()

	conn, err := svc.Connect(ctx, "u1", model.ProviderGoogle, "auth-code", "http://localhost/cb", "primary")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !conn.IsActive {
		t.Error("a freshly connected calendar must be active")
	}
	if conn.IsExportTarget {
		t.Error("connecting must not implicitly select an export target")
	}
	if _, err := st.GetConnectionByID(ctx, conn.ID); err != nil {
		t.Errorf("connection must be persisted: %v", err)
	}
}
