package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/oauth2"

	"github.com/ba1int/schedule-to-calendar/internal/auth"
	calclient "github.com/ba1int/schedule-to-calendar/internal/calendar"
	"github.com/ba1int/schedule-to-calendar/internal/config"
	"github.com/ba1int/schedule-to-calendar/internal/gmail"
	"github.com/ba1int/schedule-to-calendar/internal/schedule"
	"github.com/ba1int/schedule-to-calendar/internal/store"
	syncer "github.com/ba1int/schedule-to-calendar/internal/sync"
)

func printHelp() {
	fmt.Fprintf(os.Stderr, `Schedule Sync Tool

Keeps a Google Calendar (or CalDAV calendar) in sync with the work-shift
schedule emails a workplace sends: parses the shift table out of each
notification and creates, updates, or deletes the matching calendar
events. Shifts that disappear from a reissued schedule are removed from
the calendar; unrelated calendar entries are never touched.

USAGE:
    %s [OPTIONS]

OPTIONS:
    -h, --help              Show this help message and exit
    --config FILE           Path to JSON config file (optional)
    --credentials PATH      Path to Google OAuth credentials JSON file
                            (overrides config file and GOOGLE_CREDENTIALS_PATH env var)
    --token-path PATH       Path to store the OAuth token
                            (overrides config file and TOKEN_PATH env var)
    --title STRING          Calendar event title marking managed events
                            (overrides config file and EVENT_SUMMARY env var)
    --backfill              Process ALL schedule emails ever received, oldest
                            first, instead of only the recent ones
    --schedule EXPR         Keep running and re-sync on a cron schedule
                            (e.g. "*/30 * * * *")

CONFIGURATION PRECEDENCE (highest to lowest):
    1. Command-line flags
    2. Environment variables (GOOGLE_CREDENTIALS_PATH, TOKEN_PATH,
       EVENT_SUMMARY, SCHEDULE_TIMEZONE, GRACE_MINUTES)
    3. Config file (--config)
    4. Defaults

CONFIG FILE:
    All settings are optional except the credentials path. Example:
    {
      "google_credentials_path": "/path/to/credentials.json",
      "token_path": "/path/to/token.json",
      "calendar_name": "Work Schedule",
      "event_title": "Work at McDonald's",
      "timezone": "Europe/Budapest",
      "grace_minutes": 20,
      "sender": "mymenu-support@ext.mcdonalds.com",
      "subjects": ["Beosztásod megváltozott", "Új beosztásod"],
      "max_results": 10,
      "newer_than": "2m",
      "state_path": ".schedsync.db"
    }

    To target a CalDAV server (e.g. iCloud) instead of Google Calendar,
    add a "caldav" section with server_url, username, password and
    calendar_name. The CalDAV calendar must already exist; Gmail access
    still uses the Google credentials.

DESCRIPTION:
    On each run the tool searches Gmail for schedule notifications,
    processes them oldest first, and reconciles the dedicated calendar:
    a shift on a day with no managed event is created, a changed shift
    updates the existing event in place, and days the latest schedule no
    longer lists are cleared. Deletion only considers days within the
    span the processed notification actually covers, so an old email can
    never erase newer schedule information.

    Already-processed emails are remembered in a small state database
    and skipped on later runs.

    Authentication is OAuth 2.0; you'll be prompted in the browser on
    first run.

EXAMPLES:
    # One-shot sync of recent schedule emails
    %s --credentials /path/to/credentials.json

    # Import the complete schedule history
    %s --config config.json --backfill

    # Run as a daemon, re-syncing every 30 minutes
    %s --config config.json --schedule "*/30 * * * *"

`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	helpFlag := flag.Bool("help", false, "Show help message")
	helpFlagShort := flag.Bool("h", false, "Show help message (shorthand)")
	configFile := flag.String("config", "", "Path to JSON config file (optional)")
	credentialsPath := flag.String("credentials", "", "Path to Google OAuth credentials JSON file (overrides config file and GOOGLE_CREDENTIALS_PATH env var)")
	tokenPath := flag.String("token-path", "", "Path to store the OAuth token (overrides config file and TOKEN_PATH env var)")
	eventTitle := flag.String("title", "", "Calendar event title marking managed events (overrides config file and EVENT_SUMMARY env var)")
	backfill := flag.Bool("backfill", false, "Process all schedule emails ever received, oldest first")
	scheduleExpr := flag.String("schedule", "", "Keep running and re-sync on a cron schedule (e.g. \"*/30 * * * *\")")
	flag.Parse()

	if *helpFlag || *helpFlagShort {
		printHelp()
		os.Exit(0)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	ctx := context.Background()

	cfg, err := config.LoadConfig(*configFile, *credentialsPath, *tokenPath, *eventTitle)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Authentication and setup failures are the only fatal errors;
	// everything later is isolated per email.
	log.Printf("Authenticating with Google Services...")

	clientID, clientSecret, err := config.LoadGoogleCredentials(cfg.GoogleCredentialsPath)
	if err != nil {
		log.Fatalf("Failed to load Google credentials: %v", err)
	}

	oauthConfig := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  "http://127.0.0.1:8080", // Will be updated dynamically by auth flow
		Scopes:       auth.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}

	tokenStore := auth.NewFileTokenStore(cfg.TokenPath)
	httpClient, err := auth.GetAuthenticatedClient(ctx, oauthConfig, tokenStore)
	if err != nil {
		log.Fatalf("Failed to authenticate: %v", err)
	}

	gmailClient, err := gmail.NewClient(ctx, httpClient)
	if err != nil {
		log.Fatalf("Failed to create gmail client: %v", err)
	}

	var calendarClient calclient.Client
	if cfg.CalDAV != nil {
		caldav, err := calclient.NewCalDAVClient(cfg.CalDAV.ServerURL, cfg.CalDAV.Username, cfg.CalDAV.Password, cfg.Timezone)
		if err != nil {
			log.Fatalf("Failed to create CalDAV client: %v", err)
		}
		path, err := caldav.FindCalendar(cfg.CalDAV.CalendarName)
		if err != nil {
			log.Fatalf("Failed to find CalDAV calendar: %v", err)
		}
		log.Printf("Using CalDAV calendar: %s (%s)", cfg.CalDAV.CalendarName, path)
		calendarClient = caldav
	} else {
		google, err := calclient.NewGoogleClient(ctx, httpClient, cfg.Timezone)
		if err != nil {
			log.Fatalf("Failed to create calendar client: %v", err)
		}
		calendarID, err := google.FindOrCreateCalendar(ctx, cfg.CalendarName)
		if err != nil {
			log.Fatalf("Failed to find or create calendar: %v", err)
		}
		log.Printf("Using calendar: %s (ID: %s)", cfg.CalendarName, calendarID)
		calendarClient = google
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("Failed to load time zone %q: %v", cfg.Timezone, err)
	}

	parser := schedule.NewParser(schedule.Options{
		Title:      cfg.EventTitle,
		Grace:      time.Duration(cfg.GraceMinutes) * time.Minute,
		Location:   loc,
		DayHeader:  cfg.DayHeader,
		DateHeader: cfg.DateHeader,
	})

	ledger, err := store.Open(cfg.StatePath)
	if err != nil {
		log.Fatalf("Failed to open state database: %v", err)
	}
	defer ledger.Close()

	processor := syncer.NewProcessor(gmailClient, parser, syncer.NewReconciler(calendarClient), ledger)

	run := func() {
		query := gmail.Query{
			Sender:   cfg.Sender,
			Subjects: cfg.Subjects,
		}
		if *backfill {
			log.Printf("Searching for ALL schedule emails (this might take a while)...")
		} else {
			log.Printf("Searching for recent schedule emails...")
			query.MaxResults = cfg.MaxResults
			query.NewerThan = cfg.NewerThan
		}

		messageIDs, err := gmailClient.Search(ctx, query)
		if err != nil {
			log.Printf("Error searching for schedule emails: %v", err)
			return
		}
		if len(messageIDs) == 0 {
			log.Printf("No schedule emails found.")
			return
		}

		// Gmail lists newest first; the deletion window logic needs
		// oldest first so newer notifications always win.
		reverse(messageIDs)

		added, updated, deleted := processor.Process(ctx, messageIDs)
		log.Printf("Done! Added: %d, Updated: %d, Deleted: %d", added, updated, deleted)
	}

	if *scheduleExpr == "" {
		run()
		return
	}

	// Daemon mode: run immediately, then on the cron schedule until
	// interrupted.
	run()

	c := cron.New()
	if _, err := c.AddFunc(*scheduleExpr, run); err != nil {
		log.Fatalf("Invalid --schedule expression %q: %v", *scheduleExpr, err)
	}
	c.Start()
	log.Printf("Scheduled re-sync with %q; waiting...", *scheduleExpr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received %s, shutting down", sig)

	<-c.Stop().Done()
}

// reverse flips messageIDs in place.
func reverse(ids []string) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}
