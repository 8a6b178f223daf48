package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AuthentikAPIURL   string
	AuthentikAPIToken string
	MainGroupID       string
	FlowID            string
	BaseDomain        string
	InviteBaseURL     string
	LoginURL          string

	ShlinkURL      string
	ShlinkAPIToken string

	LocalDB                  string
	DirectoryRefreshTimeout  time.Duration
	DirectoryRefreshSchedule string

	WebhookURL             string
	WebhookSecret          string
	WebhookEnabled         bool
	WebhookUserCreated     bool
	WebhookPasswordReset   bool
	WebhookRatePerMinute   int
	SettingsFile           string
	PageTitle              string
	UpstreamRequestTimeout time.Duration

	MatrixHomeserver  string
	MatrixAccessToken string
	MatrixRoomIDs     []string

	ServerPort string
	LogLevel   string
}

func LoadConfig() (Config, error) {

	err := godotenv.Load()

	baseDomain := getEnv("BASE_DOMAIN", "")

	return Config{
		AuthentikAPIURL:   strings.TrimRight(getEnv("AUTHENTIK_API_URL", ""), "/"),
		AuthentikAPIToken: getEnv("AUTHENTIK_API_TOKEN", ""),
		MainGroupID:       getEnv("MAIN_GROUP_ID", ""),
		FlowID:            getEnv("FLOW_ID", ""),
		BaseDomain:        baseDomain,
		InviteBaseURL:     getEnv("INVITE_BASE_URL", fmt.Sprintf("https://sso.%s/if/flow/simple-enrollment-flow/", baseDomain)),
		LoginURL:          getEnv("LOGIN_URL", fmt.Sprintf("https://sso.%s/", baseDomain)),

		ShlinkURL:      strings.TrimRight(getEnv("SHLINK_URL", ""), "/"),
		ShlinkAPIToken: getEnv("SHLINK_API_TOKEN", ""),

		LocalDB:                  getEnv("LOCAL_DB", "users.csv"),
		DirectoryRefreshTimeout:  getDuration("DIRECTORY_REFRESH_TIMEOUT", 30*time.Second),
		DirectoryRefreshSchedule: getEnv("DIRECTORY_REFRESH_SCHEDULE", ""),

		WebhookURL:             getEnv("WEBHOOK_URL", ""),
		WebhookSecret:          getEnv("WEBHOOK_SECRET", ""),
		WebhookEnabled:         getBool("WEBHOOK_ENABLED", true),
		WebhookUserCreated:     getBool("WEBHOOK_USER_CREATED", true),
		WebhookPasswordReset:   getBool("WEBHOOK_PASSWORD_RESET", true),
		WebhookRatePerMinute:   getInt("WEBHOOK_RATE_PER_MINUTE", 60),
		SettingsFile:           getEnv("SETTINGS_FILE", "settings.yaml"),
		PageTitle:              getEnv("PAGE_TITLE", "Authentik Admin"),
		UpstreamRequestTimeout: getDuration("UPSTREAM_REQUEST_TIMEOUT", 15*time.Second),

		MatrixHomeserver:  strings.TrimRight(getEnv("MATRIX_HOMESERVER", ""), "/"),
		MatrixAccessToken: getEnv("MATRIX_ACCESS_TOKEN", ""),
		MatrixRoomIDs:     splitList(getEnv("MATRIX_ROOM_IDS", "")),

		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}, err
}

// Validate reports the required admin variables that are unset.
func (c Config) Validate() error {
	required := []envVar{
		{"AUTHENTIK_API_URL", c.AuthentikAPIURL},
		{"AUTHENTIK_API_TOKEN", c.AuthentikAPIToken},
		{"MAIN_GROUP_ID", c.MainGroupID},
		{"BASE_DOMAIN", c.BaseDomain},
		{"FLOW_ID", c.FlowID},
		{"SHLINK_URL", c.ShlinkURL},
		{"SHLINK_API_TOKEN", c.ShlinkAPIToken},
	}
	return missing(required)
}

// ValidateBot reports the required bot variables that are unset.
func (c Config) ValidateBot() error {
	if err := c.Validate(); err != nil {
		return err
	}
	rooms := ""
	if len(c.MatrixRoomIDs) > 0 {
		rooms = "set"
	}
	required := []envVar{
		{"MATRIX_HOMESERVER", c.MatrixHomeserver},
		{"MATRIX_ACCESS_TOKEN", c.MatrixAccessToken},
		{"MATRIX_ROOM_IDS", rooms},
	}
	return missing(required)
}

type envVar struct {
	name  string
	value string
}

func missing(vars []envVar) error {
	var names []string
	for _, v := range vars {
		if v.value == "" {
			names = append(names, v.name)
		}
	}
	if len(names) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(names, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
