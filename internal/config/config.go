// Package config loads the tool's configuration from a JSON file,
// environment variables and command-line flags, with documented
// precedence. The extractor and reconciler receive plain values from
// here; nothing in the core reads the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Defaults for the schedule convention this tool was written for.
const (
	DefaultCalendarName = "Work Schedule"
	DefaultEventTitle   = "Work at McDonald's"
	DefaultTimezone     = "Europe/Budapest"
	DefaultGraceMinutes = 20
	DefaultDayHeader    = "Nap"
	DefaultDateHeader   = "Dátum"
	DefaultSender       = "mymenu-support@ext.mcdonalds.com"
	DefaultMaxResults   = 10
	DefaultNewerThan    = "2m"
	DefaultTokenPath    = "token.json"
	DefaultStatePath    = ".schedsync.db"
)

// DefaultSubjects are the notification subjects the Gmail search
// matches ("your schedule changed" / "your new schedule").
var DefaultSubjects = []string{"Beosztásod megváltozott", "Új beosztásod"}

// GoogleCredentials represents the structure of Google OAuth credentials JSON file.
type GoogleCredentials struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"installed"`
	Web struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"web"`
}

// LoadGoogleCredentials loads Google OAuth credentials from a JSON file.
func LoadGoogleCredentials(path string) (clientID, clientSecret string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds GoogleCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", "", fmt.Errorf("failed to parse credentials file: %w", err)
	}

	// Try "installed" first (for desktop apps), then "web"
	if creds.Installed.ClientID != "" {
		return creds.Installed.ClientID, creds.Installed.ClientSecret, nil
	}
	if creds.Web.ClientID != "" {
		return creds.Web.ClientID, creds.Web.ClientSecret, nil
	}

	return "", "", fmt.Errorf("no client_id found in credentials file (expected 'installed' or 'web' section)")
}

// CalDAVDestination configures an optional CalDAV target calendar used
// instead of Google Calendar.
type CalDAVDestination struct {
	ServerURL    string `json:"server_url"`              // e.g. "https://caldav.icloud.com"
	Username     string `json:"username"`                // account email
	Password     string `json:"password"`                // app-specific password
	CalendarName string `json:"calendar_name,omitempty"` // must already exist on the server
}

// Config holds the configuration for the schedule sync tool.
type Config struct {
	GoogleCredentialsPath string `json:"google_credentials_path,omitempty"`
	TokenPath             string `json:"token_path,omitempty"`

	CalendarName string `json:"calendar_name,omitempty"` // dedicated target calendar
	EventTitle   string `json:"event_title,omitempty"`   // title marking managed events
	Timezone     string `json:"timezone,omitempty"`      // IANA zone of the schedule
	GraceMinutes int    `json:"grace_minutes,omitempty"` // subtracted from shift starts

	// Localized header tokens of the schedule table's day/date columns.
	DayHeader  string `json:"day_header,omitempty"`
	DateHeader string `json:"date_header,omitempty"`

	// Gmail search parameters.
	Sender     string   `json:"sender,omitempty"`
	Subjects   []string `json:"subjects,omitempty"`
	MaxResults int64    `json:"max_results,omitempty"`
	NewerThan  string   `json:"newer_than,omitempty"`

	// StatePath is the processed-message ledger database.
	StatePath string `json:"state_path,omitempty"`

	// CalDAV, when set, replaces Google Calendar as the target.
	CalDAV *CalDAVDestination `json:"caldav,omitempty"`
}

// LoadConfigFromFile loads configuration from a JSON file.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// LoadConfig loads configuration with the following precedence (highest to lowest):
// 1. Command-line flags
// 2. Environment variables
// 3. Config file
// 4. Defaults
// Returns an error if any required value is missing.
func LoadConfig(configFile, credentialsPathFlag, tokenPathFlag, eventTitleFlag string) (*Config, error) {
	var config Config

	// Step 1: Load from config file if provided
	if configFile != "" {
		fileConfig, err := LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
		config = *fileConfig
	}

	// Step 2: Override with environment variables
	if credentialsPath := os.Getenv("GOOGLE_CREDENTIALS_PATH"); credentialsPath != "" {
		config.GoogleCredentialsPath = credentialsPath
	}
	if tokenPath := os.Getenv("TOKEN_PATH"); tokenPath != "" {
		config.TokenPath = tokenPath
	}
	// EVENT_SUMMARY is the historical name for the managed-event title.
	if eventTitle := os.Getenv("EVENT_SUMMARY"); eventTitle != "" {
		config.EventTitle = eventTitle
	}
	if timezone := os.Getenv("SCHEDULE_TIMEZONE"); timezone != "" {
		config.Timezone = timezone
	}
	if graceMinutes := os.Getenv("GRACE_MINUTES"); graceMinutes != "" {
		parsed, err := strconv.Atoi(graceMinutes)
		if err != nil {
			return nil, fmt.Errorf("invalid GRACE_MINUTES value: %w", err)
		}
		config.GraceMinutes = parsed
	}

	// Step 3: Override with command-line flags (highest priority)
	if credentialsPathFlag != "" {
		config.GoogleCredentialsPath = credentialsPathFlag
	}
	if tokenPathFlag != "" {
		config.TokenPath = tokenPathFlag
	}
	if eventTitleFlag != "" {
		config.EventTitle = eventTitleFlag
	}

	// Step 4: Apply defaults and validate required fields
	if config.GoogleCredentialsPath == "" {
		return nil, fmt.Errorf("google_credentials_path must be provided via --credentials flag, GOOGLE_CREDENTIALS_PATH environment variable, or config file")
	}

	if config.TokenPath == "" {
		config.TokenPath = DefaultTokenPath
	}
	if config.CalendarName == "" {
		config.CalendarName = DefaultCalendarName
	}
	if config.EventTitle == "" {
		config.EventTitle = DefaultEventTitle
	}
	if config.Timezone == "" {
		config.Timezone = DefaultTimezone
	}
	if config.GraceMinutes == 0 {
		config.GraceMinutes = DefaultGraceMinutes
	}
	if config.DayHeader == "" {
		config.DayHeader = DefaultDayHeader
	}
	if config.DateHeader == "" {
		config.DateHeader = DefaultDateHeader
	}
	if config.Sender == "" {
		config.Sender = DefaultSender
	}
	if len(config.Subjects) == 0 {
		config.Subjects = DefaultSubjects
	}
	if config.MaxResults == 0 {
		config.MaxResults = DefaultMaxResults
	}
	if config.NewerThan == "" {
		config.NewerThan = DefaultNewerThan
	}
	if config.StatePath == "" {
		config.StatePath = DefaultStatePath
	}

	if config.CalDAV != nil {
		if config.CalDAV.ServerURL == "" {
			return nil, fmt.Errorf("caldav.server_url must be provided when a CalDAV destination is configured")
		}
		if config.CalDAV.Username == "" || config.CalDAV.Password == "" {
			return nil, fmt.Errorf("caldav.username and caldav.password must be provided when a CalDAV destination is configured")
		}
		if config.CalDAV.CalendarName == "" {
			config.CalDAV.CalendarName = config.CalendarName
		}
	}

	return &config, nil
}
