package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/autocode"
	"github.com/starford/ansuz/internal/segment"
	"github.com/starford/ansuz/internal/storage"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Workspace   WorkspaceConfig   `yaml:"workspace"`
	SQLite      SQLiteConfig      `yaml:"sqlite"`
	Project     ProjectConfig     `yaml:"project"`
	Autocode    AutocodeConfig    `yaml:"autocode"`
	Reliability ReliabilityConfig `yaml:"reliability"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Workspace.Validate(); err != nil {
		return fmt.Errorf("workspace: %w", err)
	}
	if err := c.SQLite.Validate(); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if err := c.Project.Validate(); err != nil {
		return fmt.Errorf("project: %w", err)
	}
	if err := c.Autocode.Validate(); err != nil {
		return fmt.Errorf("autocode: %w", err)
	}
	if err := c.Reliability.Validate(); err != nil {
		return fmt.Errorf("reliability: %w", err)
	}
	return nil
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

// WorkspaceConfig describes the folder transcripts are imported from.
type WorkspaceConfig struct {
	TranscriptsDir string   `yaml:"transcripts_dir"`
	Include        []string `yaml:"include"`
	Watch          bool     `yaml:"watch"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TranscriptsDir, validation.Required),
		validation.Field(&c.Include, validation.Required, validation.By(func(any) error {
			return storage.ValidatePatterns(c.Include)
		})),
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

// ProjectConfig names the project this instance serves.
type ProjectConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Validate validates the project configuration.
func (c *ProjectConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ID, validation.Required, validation.Length(1, 64)),
		validation.Field(&c.Name, validation.Required),
	)
}

// AutocodeConfig tunes auto-coding.
type AutocodeConfig struct {
	PreviewLimit int `yaml:"preview_limit"`
}

// Validate validates the auto-coding configuration.
func (c *AutocodeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PreviewLimit, validation.Required, validation.Min(1)),
	)
}

// ReliabilityConfig sets the default unit of agreement analysis.
type ReliabilityConfig struct {
	Segmentation segment.Mode `yaml:"segmentation"`
}

// Validate validates the reliability configuration.
func (c *ReliabilityConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Segmentation, validation.Required, validation.In(segment.Paragraph, segment.Sentence)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Workspace: WorkspaceConfig{
			TranscriptsDir: "./transcripts",
			Include:        []string{"**/*.txt", "**/*.md"},
			Watch:          true,
		},
		SQLite: SQLiteConfig{
			Path: "./ansuz.db",
		},
		Project: ProjectConfig{
			ID:   "default",
			Name: "Ansuz project",
		},
		Autocode: AutocodeConfig{
			PreviewLimit: autocode.DefaultPreviewLimit,
		},
		Reliability: ReliabilityConfig{
			Segmentation: segment.Paragraph,
		},
	}
}
