// miniorg is a small CLI around the calendar sync engine: it connects
// external calendars over OAuth, lists them, and runs on-demand pull
// syncs. The planner UI and HTTP API live elsewhere and consume the same
// packages.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/AntoineXev/miniorg/internal/credential"
	"github.com/AntoineXev/miniorg/internal/model"
	"github.com/AntoineXev/miniorg/internal/provider"
	"github.com/AntoineXev/miniorg/internal/provider/google"
	"github.com/AntoineXev/miniorg/internal/provider/outlook"
	"github.com/AntoineXev/miniorg/internal/store"
	"github.com/AntoineXev/miniorg/internal/sync"
	"github.com/AntoineXev/miniorg/internal/token"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "Path to the config file")
	userID := flag.String("user", "local", "User id the command acts for")
	providerName := flag.String("provider", "google", "Calendar provider (google|outlook)")
	calendarID := flag.String("calendar", "primary", "External calendar id")
	authURL := flag.Bool("auth-url", false, "Print the provider consent URL and exit")
	code := flag.String("code", "", "Authorization code to exchange for a new connection")
	listCalendars := flag.Bool("calendars", false, "List calendars for the given connection id")
	connectionID := flag.String("connection", "", "Connection id for -calendars")
	doSync := flag.Bool("sync", false, "Pull-sync all active connections")
	days := flag.Int("days", 0, "Sync window in days (overrides config)")
	flag.Parse()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Error opening store: %v", err)
	}
	defer st.Close()

	registry := provider.NewRegistry()
	for name, oc := range cfg.OAuth {
		secret := oc.Secret
		if secret == "" {
			if s, err := credential.Get(credential.ClientSecretKey(name)); err == nil {
				secret = s
			}
		}
		switch model.Provider(name) {
		case model.ProviderGoogle:
			registry.Register(google.NewAdapter(oc.ClientID, secret))
		case model.ProviderOutlook:
			registry.Register(outlook.NewAdapter(oc.ClientID, secret))
		}
	}

	callTimeout := time.Duration(cfg.Sync.CallTimeoutSec) * time.Second
	tokens := token.NewManager(st, registry, callTimeout)
	svc := sync.NewService(st, tokens, registry, callTimeout)

	ctx := context.Background()
	prov := model.Provider(*providerName)
	redirectURI := ""
	if oc, ok := cfg.OAuth[*providerName]; ok {
		redirectURI = oc.RedirectURI
	}

	switch {
	case *authURL:
		url, err := svc.AuthURL(prov, redirectURI, "miniorg-connect")
		if err != nil {
			log.Fatalf("Error building auth URL: %v", err)
		}
		fmt.Printf("Open the following URL in your browser to authorize miniorg:\n%s\n", url)

	case *code != "":
		conn, err := svc.Connect(ctx, *userID, prov, *code, redirectURI, *calendarID)
		if err != nil {
			log.Fatalf("Error connecting calendar: %v", err)
		}
		fmt.Printf("Connected %s calendar %s (connection %s)\n", conn.Provider, conn.CalendarID, conn.ID)

	case *listCalendars:
		if *connectionID == "" {
			log.Fatal("-calendars requires -connection")
		}
		accessToken, err := tokens.EnsureValidToken(ctx, *connectionID)
		if err != nil {
			log.Fatalf("Error getting token: %v", err)
		}
		conn, err := st.GetConnectionByID(ctx, *connectionID)
		if err != nil {
			log.Fatalf("Error loading connection: %v", err)
		}
		adapter, err := registry.Get(conn.Provider)
		if err != nil {
			log.Fatalf("%v", err)
		}
		cals, err := adapter.ListCalendars(ctx, accessToken)
		if err != nil {
			log.Fatalf("Error listing calendars: %v", err)
		}
		for _, c := range cals {
			marker := " "
			if c.Primary {
				marker = "*"
			}
			fmt.Printf("%s %s\t%s\n", marker, c.ID, c.Name)
		}

	case *doSync:
		window := cfg.Sync.WindowDays
		if *days > 0 {
			window = *days
		}
		start := time.Now()
		end := start.AddDate(0, 0, window)

		conns, err := st.GetConnections(ctx, *userID)
		if err != nil {
			log.Fatalf("Error loading connections: %v", err)
		}
		failed := 0
		for _, conn := range conns {
			if !conn.IsActive {
				continue
			}
			if err := svc.SyncConnection(ctx, conn.ID, start, end); err != nil {
				// A single dead connection must not stop the others.
				switch {
				case errors.Is(err, provider.ErrRefreshFailed):
					log.Printf("sync %s (%s): reconnect required: %v", conn.ID, conn.Provider, err)
				case provider.IsProviderError(err):
					log.Printf("sync %s (%s): provider error, will retry on next sync: %v", conn.ID, conn.Provider, err)
				default:
					log.Printf("sync %s (%s): %v", conn.ID, conn.Provider, err)
				}
				failed++
				continue
			}
			fmt.Printf("Synced %s calendar %s\n", conn.Provider, conn.CalendarID)
		}
		if failed > 0 {
			os.Exit(1)
		}

	default:
		flag.Usage()
		os.Exit(2)
	}
}
