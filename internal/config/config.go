package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration. Section and field names
// mirror the YAML config file, which uses PascalCase keys throughout.
type Config struct {
	General          GeneralConfig   `yaml:"General"`
	Log              LogConfig       `yaml:"Log"`
	ShellyDevices    ShellyDevices   `yaml:"ShellyDevices"`
	Location         LocationConfig  `yaml:"Location"`
	Schedules        []Schedule      `yaml:"Schedules"`
	LightingControl  []ControlRule   `yaml:"LightingControl"`
	InputControls    []InputRule     `yaml:"InputControls"`
	Files            FilesConfig     `yaml:"Files"`
	HeartbeatMonitor HeartbeatConfig `yaml:"HeartbeatMonitor"`
	Webhook          WebhookConfig   `yaml:"Webhook"`
}

// GeneralConfig contains application-wide settings
type GeneralConfig struct {
	AppName          string   `yaml:"AppName"`
	CheckInterval    Duration `yaml:"CheckInterval"`    // Control loop idle interval
	WebsiteBaseURL   string   `yaml:"WebsiteBaseURL"`   // Optional viewer endpoint base URL
	WebsiteAccessKey string   `yaml:"WebsiteAccessKey"` // Optional ?key= for the viewer endpoint
	WebsiteTimeout   Duration `yaml:"WebsiteTimeout"`   // HTTP timeout for viewer posts
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"Level"`
	JSON   bool   `yaml:"JSON"`
	Colors bool   `yaml:"Colors"`
}

// ShellyDevices contains the device fleet definition and RPC settings
type ShellyDevices struct {
	ResponseTimeout Duration `yaml:"ResponseTimeout"` // HTTP timeout for device RPC calls
	RateLimitRPS    float64  `yaml:"RateLimitRPS"`    // Device RPC rate limit
	Devices         []Device `yaml:"Devices"`
}

// Device describes a single Shelly device and its components
type Device struct {
	Name     string            `yaml:"Name"`
	Model    string            `yaml:"Model"`
	Hostname string            `yaml:"Hostname"`
	Port     int               `yaml:"Port"`
	Simulate bool              `yaml:"Simulate"` // In-memory device, no network I/O
	Inputs   []ComponentConfig `yaml:"Inputs"`
	Outputs  []OutputConfig    `yaml:"Outputs"`
}

// ComponentConfig identifies an input component on a device
type ComponentConfig struct {
	Name string `yaml:"Name"`
	ID   int    `yaml:"ID"`
}

// OutputConfig identifies a relay output on a device
type OutputConfig struct {
	Name  string `yaml:"Name"`
	Group string `yaml:"Group"`
	ID    int    `yaml:"ID"`
}

// LocationConfig contains coordinates for dawn/dusk calculation.
// Latitude/Longitude are pointers so that "not configured" is
// distinguishable from an explicit 0.0.
type LocationConfig struct {
	Name            string   `yaml:"Name"`
	Timezone        string   `yaml:"Timezone"`
	GoogleMapsURL   string   `yaml:"GoogleMapsURL"`
	Latitude        *float64 `yaml:"Latitude"`
	Longitude       *float64 `yaml:"Longitude"`
	UseShellyDevice string   `yaml:"UseShellyDevice"` // Ask this device for its location first
}

// Schedule is a named, ordered sequence of on/off events.
// Evaluation is first-match-wins, so event order is significant.
type Schedule struct {
	Name   string          `yaml:"Name" json:"Name"`
	Events []ScheduleEvent `yaml:"Events" json:"Events"`
}

// ScheduleEvent is a single on/off window. TurnOn and TurnOff are either
// "HH:MM" or "dawn"/"dusk" with an optional signed HH:MM offset.
type ScheduleEvent struct {
	TurnOn       string      `yaml:"TurnOn" json:"TurnOn"`
	TurnOff      string      `yaml:"TurnOff" json:"TurnOff"`
	RandomOffset int         `yaml:"RandomOffset,omitempty" json:"RandomOffset,omitempty"` // Max jitter in minutes
	DaysOfWeek   string      `yaml:"DaysOfWeek,omitempty" json:"DaysOfWeek,omitempty"`     // e.g. "Mon, Tue, Fri"; empty or "All" = every day
	DatesOff     []DateRange `yaml:"DatesOff,omitempty" json:"DatesOff,omitempty"`
}

// DateRange is an inclusive date range during which an event forces OFF
type DateRange struct {
	StartDate Date `yaml:"StartDate" json:"StartDate"`
	EndDate   Date `yaml:"EndDate" json:"EndDate"`
}

// ControlRule assigns a schedule to an output or output group.
// Type is one of "default", "switch" or "switch group".
type ControlRule struct {
	Type     string `yaml:"Type"`
	Target   string `yaml:"Target"`
	Schedule string `yaml:"Schedule"`
}

// InputRule assigns an override input to an output or output group.
// Type is one of "default", "switch" or "switch group".
type InputRule struct {
	Type   string `yaml:"Type"`
	Target string `yaml:"Target"`
	Input  string `yaml:"Input"`
}

// FilesConfig contains persistence settings
type FilesConfig struct {
	SavedStateFile             string `yaml:"SavedStateFile"`
	LedgerFile                 string `yaml:"LedgerFile"` // SQLite switch transition ledger
	MaxDaysSwitchChangeHistory int    `yaml:"MaxDaysSwitchChangeHistory"`
}

// HeartbeatConfig contains heartbeat monitor settings
type HeartbeatConfig struct {
	WebsiteURL       string   `yaml:"WebsiteURL"`
	HeartbeatTimeout Duration `yaml:"HeartbeatTimeout"`
}

// WebhookConfig contains webhook receiver settings
type WebhookConfig struct {
	Enabled bool   `yaml:"Enabled"`
	Host    string `yaml:"Host"`
	Port    int    `yaml:"Port"`
	Path    string `yaml:"Path"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling.
// Accepts either a duration string ("30s", "1h30m") or a bare number of
// seconds, so existing config files keep working.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if secs, err := strconv.Atoi(s); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Date is a calendar date (no time component) that unmarshals from
// "YYYY-MM-DD" in both YAML and JSON, and marshals back to the same form.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// UnmarshalYAML implements yaml.Unmarshaler for Date
func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

// MarshalJSON renders the date as a quoted ISO-8601 string
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

// UnmarshalJSON parses a quoted ISO-8601 date or null
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		d.Time = time.Time{}
		return nil
	}
	return d.parse(s)
}

func (d *Date) parse(s string) error {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	d.Time = t
	return nil
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	// General defaults
	if cfg.General.AppName == "" {
		cfg.General.AppName = "LightingControl"
	}
	if cfg.General.CheckInterval == 0 {
		cfg.General.CheckInterval = Duration(5 * time.Second)
	}
	if cfg.General.WebsiteTimeout == 0 {
		cfg.General.WebsiteTimeout = Duration(5 * time.Second)
	}

	// Log defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Device RPC defaults
	if cfg.ShellyDevices.ResponseTimeout == 0 {
		cfg.ShellyDevices.ResponseTimeout = Duration(5 * time.Second)
	}
	if cfg.ShellyDevices.RateLimitRPS == 0 {
		cfg.ShellyDevices.RateLimitRPS = 10.0
	}

	// Location defaults
	if cfg.Location.Timezone == "" {
		cfg.Location.Timezone = "UTC"
	}

	// Files defaults
	if cfg.Files.SavedStateFile == "" {
		cfg.Files.SavedStateFile = "system_state.json"
	}
	if cfg.Files.LedgerFile == "" {
		cfg.Files.LedgerFile = "lightingctl.sqlite"
	}
	if cfg.Files.MaxDaysSwitchChangeHistory == 0 {
		cfg.Files.MaxDaysSwitchChangeHistory = 30
	}

	// Heartbeat defaults
	if cfg.HeartbeatMonitor.HeartbeatTimeout == 0 {
		cfg.HeartbeatMonitor.HeartbeatTimeout = Duration(10 * time.Second)
	}

	// Webhook defaults
	if cfg.Webhook.Host == "" {
		cfg.Webhook.Host = "0.0.0.0"
	}
	if cfg.Webhook.Port == 0 {
		cfg.Webhook.Port = 8787
	}
	if cfg.Webhook.Path == "" {
		cfg.Webhook.Path = "/shelly/webhook"
	}
	if !strings.HasPrefix(cfg.Webhook.Path, "/") {
		cfg.Webhook.Path = "/" + cfg.Webhook.Path
	}

	return &cfg, nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
