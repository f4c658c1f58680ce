package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codewithboateng/pylift/internal/parser"
	"github.com/codewithboateng/pylift/internal/rules"
)

type Config struct {
	Database struct {
		Driver string `yaml:"driver"` // "sqlite" (default)
		DSN    string `yaml:"dsn"`    // "./pylift.db"
	} `yaml:"database"`

	Analysis struct {
		Sources          []string          `yaml:"sources"`        // ["./src"]
		Include          []string          `yaml:"include"`        // ["*.py"]
		Jobs             int               `yaml:"jobs"`           // 0 = GOMAXPROCS
		MaxFileBytes     int64             `yaml:"max_file_bytes"` // 2 MiB
		Enabled          []string          `yaml:"enabled"`
		Disabled         []string          `yaml:"disabled"`
		SeverityOverride map[string]string `yaml:"severity_override"`
		MinSeverity      string            `yaml:"min_severity"`
		NullableCalls    []string          `yaml:"nullable_calls"`
		RulePacks        []string          `yaml:"rule_packs"`
	} `yaml:"analysis"`

	Reporting struct {
		OutDir string `yaml:"out_dir"` // "./reports"
		Format string `yaml:"format"`  // "text"|"json"|"sarif"
	} `yaml:"reporting"`

	Logging struct {
		Format string `yaml:"format"` // "json"|"text"
		Level  string `yaml:"level"`  // "info"|"debug"|"warn"|"error"
	} `yaml:"logging"`

	Server struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		SessionHours   int      `yaml:"session_hours"`
	} `yaml:"server"`
}

func DefaultConfig() Config {
	var c Config
	c.Database.Driver = "sqlite"
	c.Database.DSN = "./pylift.db"
	c.Analysis.Include = []string{"*.py"}
	c.Analysis.MaxFileBytes = parser.DefaultMaxFileSize
	c.Reporting.OutDir = "./reports"
	c.Reporting.Format = "text"
	c.Logging.Format = "text"
	c.Logging.Level = "info"
	c.Server.Addr = ":8080"
	c.Server.AllowedOrigins = []string{"*"}
	c.Server.SessionHours = 12
	return c
}

// LoadConfig layers defaults, the YAML file at path and PYLIFT_* env vars.
// A missing file is not an error; a malformed one is.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return c, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return c, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	// Env overrides (simple, explicit)
	if v := os.Getenv("PYLIFT_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("PYLIFT_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Analysis.Jobs = n
		}
	}
	if v := os.Getenv("PYLIFT_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("PYLIFT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PYLIFT_OUT_DIR"); v != "" {
		c.Reporting.OutDir = v
	}
	if v := os.Getenv("PYLIFT_ENABLED"); v != "" {
		c.Analysis.Enabled = splitList(v)
	}
	return c, nil
}

// Settings converts the analysis section into pattern settings.
func (c Config) Settings() rules.Settings {
	return rules.Settings{
		Enabled:          c.Analysis.Enabled,
		Disabled:         c.Analysis.Disabled,
		SeverityOverride: c.Analysis.SeverityOverride,
		MinSeverity:      c.Analysis.MinSeverity,
		NullableCalls:    c.Analysis.NullableCalls,
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
