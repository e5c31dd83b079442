package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"
)

// DefaultPath is where the binaries look for the YAML file when no -config flag is given.
const DefaultPath = "./config/config.yml"

// Config holds the main configuration for the application.
type Config struct {
	Display    Display    `mapstructure:"display"`
	Departures Departures `mapstructure:"departures"`
	Tasks      Tasks      `mapstructure:"tasks"`
	Device     Device     `mapstructure:"device"`
	HTTP       HTTP       `mapstructure:"http"`
	Storage    Storage    `mapstructure:"storage"`
	Kafka      Kafka      `mapstructure:"kafka"`
	Gallery    Gallery    `mapstructure:"gallery"`
}

// Display holds canvas and encoding settings shared by both boards.
type Display struct {
	Width        int    `mapstructure:"width"`          // canvas width in pixels
	Height       int    `mapstructure:"height"`         // canvas height in pixels
	Quality      int    `mapstructure:"quality"`        // JPEG quality 1..100
	FontPath     string `mapstructure:"font_path"`      // regular TTF, embedded Go font when empty
	BoldFontPath string `mapstructure:"bold_font_path"` // bold TTF, embedded Go Bold when empty
	Ellipsis     string `mapstructure:"ellipsis"`       // marker appended to cut text
	Timezone     string `mapstructure:"timezone"`       // IANA name for clocks, "Local" by default
}

// Departures holds the transit board configuration.
type Departures struct {
	APIURL          string          `mapstructure:"api_url"`
	StopID          string          `mapstructure:"stop_id"`
	RegionID        string          `mapstructure:"region_id"`
	MaxItems        int             `mapstructure:"max_items"`
	ImminentMinutes int             `mapstructure:"imminent_minutes"` // live departures at or below this use the imminent colour
	Output          string          `mapstructure:"output"`
	Colors          DepartureColors `mapstructure:"colors"`
}

// DepartureColors is the departures board palette (hex strings).
type DepartureColors struct {
	Background string `mapstructure:"background"`
	Header     string `mapstructure:"header"`
	Text       string `mapstructure:"text"`
	Muted      string `mapstructure:"muted"`
	Accent     string `mapstructure:"accent"`
	Imminent   string `mapstructure:"imminent"`
	Grid       string `mapstructure:"grid"`
	AltRow     string `mapstructure:"alt_row"`
}

// Tasks holds the task board configuration.
type Tasks struct {
	Provider         string      `mapstructure:"provider"` // "todoist" or "googletasks"
	APIURL           string      `mapstructure:"api_url"`
	SyncURL          string      `mapstructure:"sync_url"`
	Token            string      `mapstructure:"token"`
	Filter           string      `mapstructure:"filter"`
	IncludeCompleted bool        `mapstructure:"include_completed"`
	MaxItems         int         `mapstructure:"max_items"`
	Output           string      `mapstructure:"output"`
	Google           GoogleTasks `mapstructure:"google"`
	Colors           TaskColors  `mapstructure:"colors"`
}

// GoogleTasks holds the Google Tasks provider settings.
type GoogleTasks struct {
	ListID     string `mapstructure:"list_id"`
	ClientFile string `mapstructure:"client_file"` // OAuth client credentials JSON
	TokenFile  string `mapstructure:"token_file"`  // stored OAuth token JSON
}

// TaskColors is the task board palette (hex strings).
type TaskColors struct {
	Background string            `mapstructure:"background"`
	Text       string            `mapstructure:"text"`
	Accent     string            `mapstructure:"accent"`
	Completed  string            `mapstructure:"completed"`
	Border     string            `mapstructure:"border"`
	Muted      string            `mapstructure:"muted"`
	Priority   map[string]string `mapstructure:"priority"` // keys p1..p4
}

// Device holds the display gallery endpoint.
type Device struct {
	BaseURL    string `mapstructure:"base_url"`
	UploadPath string `mapstructure:"upload_path"`
	Dir        string `mapstructure:"dir"`
	Field      string `mapstructure:"field"`
}

// HTTP holds outbound HTTP settings.
type HTTP struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Storage holds the optional S3-compatible mirror; disabled when Endpoint is empty.
type Storage struct {
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	Region     string `mapstructure:"region"`
	Prefix     string `mapstructure:"prefix"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// Kafka holds the optional event topic; disabled when Brokers is empty.
type Kafka struct {
	Topic   string   `mapstructure:"topic"`
	Brokers []string `mapstructure:"brokers"`
}

// Gallery holds the gallery emulator settings.
type Gallery struct {
	HTTPPort               string `mapstructure:"http_port"`
	Dir                    string `mapstructure:"dir"`
	MalformedContentLength bool   `mapstructure:"malformed_content_length"`
}

// Enabled reports whether the bucket mirror is configured.
func (s Storage) Enabled() bool { return strings.TrimSpace(s.Endpoint) != "" }

// Enabled reports whether event publishing is configured.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

// Location resolves Display.Timezone.
func (d Display) Location() (*time.Location, error) {
	if d.Timezone == "" || d.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid display.timezone %q: %w", d.Timezone, err)
	}
	return loc, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("display.width", 240)
	v.SetDefault("display.height", 240)
	v.SetDefault("display.quality", 95)
	v.SetDefault("display.font_path", "")
	v.SetDefault("display.bold_font_path", "")
	v.SetDefault("display.ellipsis", "...")
	v.SetDefault("display.timezone", "Local")

	v.SetDefault("departures.api_url", "https://citymapper.com/api/1/departures")
	v.SetDefault("departures.stop_id", "WarsawStop_Centrum_01")
	v.SetDefault("departures.region_id", "pl-warsaw")
	v.SetDefault("departures.max_items", 4)
	v.SetDefault("departures.imminent_minutes", 1)
	v.SetDefault("departures.output", "departures.jpg")
	v.SetDefault("departures.colors.background", "#000000")
	v.SetDefault("departures.colors.header", "#1a1a1a")
	v.SetDefault("departures.colors.text", "#FFFFFF")
	v.SetDefault("departures.colors.muted", "#888888")
	v.SetDefault("departures.colors.accent", "#FFA500")
	v.SetDefault("departures.colors.imminent", "#FF3B30")
	v.SetDefault("departures.colors.grid", "#2a2a2a")
	v.SetDefault("departures.colors.alt_row", "#0a0a0a")

	v.SetDefault("tasks.provider", "todoist")
	v.SetDefault("tasks.api_url", "https://api.todoist.com/rest/v2/tasks")
	v.SetDefault("tasks.sync_url", "https://api.todoist.com/sync/v9/completed/get_all")
	v.SetDefault("tasks.token", "")
	v.SetDefault("tasks.filter", "today")
	v.SetDefault("tasks.include_completed", true)
	v.SetDefault("tasks.max_items", 6)
	v.SetDefault("tasks.output", "todoist_today.jpg")
	v.SetDefault("tasks.google.list_id", "@default")
	v.SetDefault("tasks.google.client_file", "oauth_client.json")
	v.SetDefault("tasks.google.token_file", "token.json")
	v.SetDefault("tasks.colors.background", "#1a1a1a")
	v.SetDefault("tasks.colors.text", "#ffffff")
	v.SetDefault("tasks.colors.accent", "#de4c4a")
	v.SetDefault("tasks.colors.completed", "#6b6b6b")
	v.SetDefault("tasks.colors.border", "#2a2a2a")
	v.SetDefault("tasks.colors.muted", "#888888")
	v.SetDefault("tasks.colors.priority", map[string]string{
		"p1": "#d1453b", // urgent
		"p2": "#eb8909",
		"p3": "#4073ff",
		"p4": "#808080",
	})

	v.SetDefault("device.base_url", "")
	v.SetDefault("device.upload_path", "/doUpload")
	v.SetDefault("device.dir", "/image/")
	v.SetDefault("device.field", "file")

	v.SetDefault("http.timeout", 10*time.Second)

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket_name", "status-board")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.prefix", "boards")
	v.SetDefault("storage.use_ssl", false)

	v.SetDefault("kafka.topic", "status-board")
	v.SetDefault("kafka.brokers", []string{})

	v.SetDefault("gallery.http_port", ":8080")
	v.SetDefault("gallery.dir", "./gallery")
	v.SetDefault("gallery.malformed_content_length", false)
}

// bindEnv binds the environment variable names the boards have always used.
func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"tasks.token":          "TODOIST_API_TOKEN",
		"tasks.max_items":      "MAX_TASKS",
		"departures.max_items": "MAX_BUSES",
		"departures.stop_id":   "STOP_ID",
		"departures.region_id": "REGION_ID",
		"device.base_url":      "DEVICE_URL",
		"device.dir":           "UPLOAD_DIR",
	}

	for key, env := range bindings {
		// The structured name (TASKS_TOKEN, ...) stays bound too.
		structured := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, structured, env); err != nil {
			return fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	return nil
}

// LoadDotEnv loads variables from .env files into the process environment.
// Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	return nil
}

// Load reads defaults, the optional YAML file at path and the environment.
// A missing file is not an error; every value has a default.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
			zlog.Logger.Debug().Str("path", path).Msg("config file not found, using defaults and environment")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad loads the configuration from the specified file path.
// It panics if the configuration cannot be loaded or is invalid.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to load config")
	}

	return cfg
}

// Validate checks the values that have no sensible fallback.
func (c *Config) Validate() error {
	var errs []error

	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		errs = append(errs, fmt.Errorf("display size must be positive, got %dx%d", c.Display.Width, c.Display.Height))
	}
	if c.Display.Quality < 1 || c.Display.Quality > 100 {
		errs = append(errs, fmt.Errorf("display.quality must be in 1..100, got %d", c.Display.Quality))
	}
	if strings.TrimSpace(c.Display.Ellipsis) == "" {
		errs = append(errs, fmt.Errorf("display.ellipsis must be a visible marker, got %q", c.Display.Ellipsis))
	}
	if c.Departures.MaxItems < 1 {
		errs = append(errs, fmt.Errorf("departures.max_items must be at least 1, got %d", c.Departures.MaxItems))
	}
	if c.Tasks.MaxItems < 1 {
		errs = append(errs, fmt.Errorf("tasks.max_items must be at least 1, got %d", c.Tasks.MaxItems))
	}
	switch c.Tasks.Provider {
	case "todoist", "googletasks":
	default:
		errs = append(errs, fmt.Errorf("tasks.provider must be todoist or googletasks, got %q", c.Tasks.Provider))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("http.timeout must be positive, got %s", c.HTTP.Timeout))
	}
	if _, err := c.Display.Location(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
