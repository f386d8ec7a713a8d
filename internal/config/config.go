package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

type Config struct {
	DBPath    string
	OutputDir string

	LogLevel       string
	LogDevelopment bool
	LogFile        string

	MailProvider     string
	MailboxAddress   string
	MailLabel        string
	MailFetchMax     int
	MailPageSize     int
	ListenerSchedule string

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	BatchWorkers    int
	MessageTimeout  time.Duration
	TaskQueueSize   int
	TaskWorkers     int
	TaskMaxAttempts int

	MapboxToken       string
	MapboxBaseURL     string
	GeocodeCountry    string
	GeocodePerMinute  int
	GeocodeDailyLimit int
	GeocodeTimeout    time.Duration
	GeocodeDelivery   bool

	RegionalRadiusMiles float64

	HotLoadSenderDomains  []string
	HotLoadSubjectMarkers []string
	HotLoadBodyMarkers    []string
	NetworkSenderDomains  []string
	NetworkSubjectMarkers []string
	NetworkBodyMarkers    []string
	DefaultDialect        string

	MetricsAddr string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, eris.Wrap(err, "config: resolve working dir")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v, cwd)

	cfg := Config{
		DBPath:    v.GetString("DB_PATH"),
		OutputDir: v.GetString("OUTPUT_DIR"),

		LogLevel:       v.GetString("LOG_LEVEL"),
		LogDevelopment: v.GetBool("LOG_DEVELOPMENT"),
		LogFile:        v.GetString("LOG_FILE"),

		MailProvider:     strings.ToLower(strings.TrimSpace(v.GetString("MAIL_PROVIDER"))),
		MailboxAddress:   strings.TrimSpace(v.GetString("MAILBOX_ADDRESS")),
		MailLabel:        v.GetString("MAIL_LABEL"),
		MailFetchMax:     v.GetInt("MAIL_FETCH_MAX"),
		MailPageSize:     v.GetInt("MAIL_PAGE_SIZE"),
		ListenerSchedule: v.GetString("LISTENER_SCHEDULE"),

		GmailClientID:     v.GetString("GMAIL_CLIENT_ID"),
		GmailClientSecret: v.GetString("GMAIL_CLIENT_SECRET"),
		GmailRedirectURI:  v.GetString("GMAIL_REDIRECT_URI"),
		GmailRefreshToken: v.GetString("GMAIL_REFRESH_TOKEN"),

		IMAPHost:     v.GetString("IMAP_HOST"),
		IMAPPort:     v.GetInt("IMAP_PORT"),
		IMAPSecure:   v.GetBool("IMAP_SECURE"),
		IMAPUser:     v.GetString("IMAP_USER"),
		IMAPPassword: v.GetString("IMAP_PASSWORD"),
		IMAPMarkSeen: v.GetBool("IMAP_MARK_SEEN"),

		BatchWorkers:    v.GetInt("BATCH_WORKERS"),
		MessageTimeout:  v.GetDuration("MESSAGE_TIMEOUT"),
		TaskQueueSize:   v.GetInt("TASK_QUEUE_SIZE"),
		TaskWorkers:     v.GetInt("TASK_WORKERS"),
		TaskMaxAttempts: v.GetInt("TASK_MAX_ATTEMPTS"),

		MapboxToken:       v.GetString("MAPBOX_TOKEN"),
		MapboxBaseURL:     v.GetString("MAPBOX_BASE_URL"),
		GeocodeCountry:    v.GetString("GEOCODE_COUNTRY"),
		GeocodePerMinute:  v.GetInt("GEOCODE_PER_MINUTE"),
		GeocodeDailyLimit: v.GetInt("GEOCODE_DAILY_LIMIT"),
		GeocodeTimeout:    v.GetDuration("GEOCODE_TIMEOUT"),
		GeocodeDelivery:   v.GetBool("GEOCODE_DELIVERY"),

		RegionalRadiusMiles: v.GetFloat64("REGIONAL_RADIUS_MILES"),

		HotLoadSenderDomains:  splitList(v.GetString("HOTLOAD_SENDER_DOMAINS")),
		HotLoadSubjectMarkers: splitList(v.GetString("HOTLOAD_SUBJECT_MARKERS")),
		HotLoadBodyMarkers:    splitList(v.GetString("HOTLOAD_BODY_MARKERS")),
		NetworkSenderDomains:  splitList(v.GetString("NETWORK_SENDER_DOMAINS")),
		NetworkSubjectMarkers: splitList(v.GetString("NETWORK_SUBJECT_MARKERS")),
		NetworkBodyMarkers:    splitList(v.GetString("NETWORK_BODY_MARKERS")),
		DefaultDialect:        v.GetString("DEFAULT_DIALECT"),

		MetricsAddr: v.GetString("METRICS_ADDR"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cwd string) {
	v.SetDefault("DB_PATH", filepath.Join(cwd, "data", "loadhunt.db"))
	v.SetDefault("OUTPUT_DIR", filepath.Join(cwd, "out"))

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEVELOPMENT", false)
	v.SetDefault("LOG_FILE", "")

	v.SetDefault("MAIL_PROVIDER", "gmail")
	v.SetDefault("MAILBOX_ADDRESS", "")
	v.SetDefault("MAIL_LABEL", "INBOX")
	v.SetDefault("MAIL_FETCH_MAX", 50)
	v.SetDefault("MAIL_PAGE_SIZE", 25)
	v.SetDefault("LISTENER_SCHEDULE", "@every 1m")

	v.SetDefault("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground")

	v.SetDefault("IMAP_PORT", 993)
	v.SetDefault("IMAP_SECURE", true)
	v.SetDefault("IMAP_MARK_SEEN", false)

	v.SetDefault("BATCH_WORKERS", 1)
	v.SetDefault("MESSAGE_TIMEOUT", 45*time.Second)
	v.SetDefault("TASK_QUEUE_SIZE", 256)
	v.SetDefault("TASK_WORKERS", 2)
	v.SetDefault("TASK_MAX_ATTEMPTS", 3)

	v.SetDefault("MAPBOX_BASE_URL", "https://api.mapbox.com/geocoding/v5/mapbox.places")
	v.SetDefault("GEOCODE_COUNTRY", "us")
	v.SetDefault("GEOCODE_PER_MINUTE", 60)
	v.SetDefault("GEOCODE_DAILY_LIMIT", 2000)
	v.SetDefault("GEOCODE_TIMEOUT", 10*time.Second)
	v.SetDefault("GEOCODE_DELIVERY", false)

	v.SetDefault("REGIONAL_RADIUS_MILES", 500.0)

	v.SetDefault("HOTLOAD_SENDER_DOMAINS", "hotloadalerts.com,loadblast.net")
	v.SetDefault("HOTLOAD_SUBJECT_MARKERS", "HOT LOAD,EXPEDITE NEEDED")
	v.SetDefault("HOTLOAD_BODY_MARKERS", "hotloadalerts.com,Call now to book")
	v.SetDefault("NETWORK_SENDER_DOMAINS", "freightnetwork.io")
	v.SetDefault("NETWORK_SUBJECT_MARKERS", "Network Posting,Load Posted")
	v.SetDefault("NETWORK_BODY_MARKERS", "app.freightnetwork.io,Submit Your Bid,freightnetwork")
	v.SetDefault("DEFAULT_DIALECT", "hot_load")

	v.SetDefault("METRICS_ADDR", "")
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return eris.Errorf("missing required env var: %s", name)
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
