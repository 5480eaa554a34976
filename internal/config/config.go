package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the application. It is built once at
// startup and passed by reference into every constructor; nothing reads the
// environment after startup.
type Config struct {
	DatabaseURL string

	// Webhook authentication.
	BearerToken string
	WebhookUser string
	WebhookPass string
	AllowedIPs  []string // "*" entry disables the address check

	// Expected notification channel constants.
	ChannelType    string
	ChannelSubType string

	// Matching constants.
	OrganizationName string
	ReceiverLast4    string

	// Spreadsheet sync.
	SheetID             string
	WorksheetName       string
	ServiceAccountFile  string
	SyncIntervalMinutes int

	// Evidence storage.
	UploadsDir string

	// Dashboard origin for CORS.
	DashboardOrigin string
}

// Load reads configuration from environment variables. Callers load .env via
// godotenv before calling this.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		BearerToken:         getEnv("AUTHORIZATION_TOKEN", ""),
		WebhookUser:         getEnv("VALID_USER_ID", ""),
		WebhookPass:         getEnv("VALID_PASSWORD", ""),
		AllowedIPs:          splitList(getEnv("ALLOWED_IPS", "127.0.0.1,::1")),
		ChannelType:         getEnv("EXPECTED_CHANNEL_TYPE", "MBL"),
		ChannelSubType:      getEnv("EXPECTED_CHANNEL_SUBTYPE", "CMS"),
		OrganizationName:    getEnv("ORGANIZATION_NAME", "Al-Khidmat Welfare Society"),
		ReceiverLast4:       getEnv("RECEIVER_ACCOUNT_LAST4", "2664"),
		SheetID:             getEnv("BANK_SHEET_ID", ""),
		WorksheetName:       getEnv("BANK_SHEET_NAME", "Sheet1"),
		ServiceAccountFile:  getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", "google_cred.json"),
		SyncIntervalMinutes: getEnvInt("BANK_SYNC_INTERVAL_MINUTES", 2),
		UploadsDir:          getEnv("UPLOADS_DIR", "uploads"),
		DashboardOrigin:     getEnv("DASHBOARD_ORIGIN", "http://localhost:3000"),
	}
	return cfg, nil
}

// MissingSecrets lists the required webhook secrets that are unset; used by
// the health endpoint.
func (c *Config) MissingSecrets() []string {
	var missing []string
	if c.BearerToken == "" {
		missing = append(missing, "AUTHORIZATION_TOKEN")
	}
	if c.WebhookUser == "" {
		missing = append(missing, "VALID_USER_ID")
	}
	if c.WebhookPass == "" {
		missing = append(missing, "VALID_PASSWORD")
	}
	return missing
}

// IPCheckDisabled reports whether the allow-list wildcard is configured.
func (c *Config) IPCheckDisabled() bool {
	for _, ip := range c.AllowedIPs {
		if ip == "*" {
			return true
		}
	}
	return false
}

// IPAllowed reports whether the given client address is allow-listed.
func (c *Config) IPAllowed(ip string) bool {
	for _, allowed := range c.AllowedIPs {
		if allowed == ip {
			return true
		}
	}
	return false
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
