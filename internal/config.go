package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dayplanner/internal/dailynote"
	"github.com/starford/dayplanner/internal/timeline"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Vault      VaultConfig       `yaml:"vault"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig        `yaml:"auth"`
	Planner    PlannerConfig     `yaml:"planner"`
	DailyNotes DailyNotesConfig  `yaml:"daily_notes"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Planner.Validate(); err != nil {
		return fmt.Errorf("planner: %w", err)
	}
	return c.DailyNotes.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// PlannerConfig holds display settings and derivation tuning.
type PlannerConfig struct {
	ZoomLevel       int           `yaml:"zoom_level"`
	StartHour       int           `yaml:"start_hour"`
	Heading         string        `yaml:"heading"`
	HeadingLevel    int           `yaml:"heading_level"`
	SnapStepMinutes int           `yaml:"snap_step_minutes"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	VisibleDays     int           `yaml:"visible_days"`
	CacheSize       int           `yaml:"cache_size"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
}

// Settings returns the display settings part of the configuration.
func (c *PlannerConfig) Settings() timeline.Settings {
	return timeline.Settings{
		ZoomLevel:           c.ZoomLevel,
		StartHour:           c.StartHour,
		PlannerHeading:      c.Heading,
		PlannerHeadingLevel: c.HeadingLevel,
		SnapStepMinutes:     c.SnapStepMinutes,
	}
}

// Validate validates the planner configuration.
func (c *PlannerConfig) Validate() error {
	if err := c.Settings().Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.RefreshInterval, validation.Required, validation.Min(100*time.Millisecond)),
		validation.Field(&c.VisibleDays, validation.Required, validation.Min(1), validation.Max(31)),
		validation.Field(&c.CacheSize, validation.Min(0)),
		validation.Field(&c.CacheTTL, validation.Min(time.Duration(0))),
	)
}

// DailyNotesConfig locates daily notes inside the vault.
type DailyNotesConfig struct {
	Folder string `yaml:"folder"`
	Format string `yaml:"format"`
}

// Validate validates the daily notes configuration.
func (c *DailyNotesConfig) Validate() error {
	if c.Format == "" {
		c.Format = dailynote.DefaultFormat
	}
	if time.Date(2001, 3, 4, 0, 0, 0, 0, time.UTC).Format(c.Format) == c.Format {
		return fmt.Errorf("daily_notes: format %q has no date fields", c.Format)
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	defaults := timeline.DefaultSettings()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./dayplanner.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Planner: PlannerConfig{
			ZoomLevel:       defaults.ZoomLevel,
			StartHour:       defaults.StartHour,
			Heading:         defaults.PlannerHeading,
			HeadingLevel:    defaults.PlannerHeadingLevel,
			SnapStepMinutes: defaults.SnapStepMinutes,
			RefreshInterval: 2 * time.Second,
			VisibleDays:     3,
			CacheSize:       128,
			CacheTTL:        10 * time.Minute,
		},
		DailyNotes: DailyNotesConfig{
			Format: dailynote.DefaultFormat,
		},
	}
}
