package narlie

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/kolkov/narlie/internal/codegen"
	"github.com/kolkov/narlie/internal/runtime"
)

// Config holds compilation and execution options.
type Config struct {
	// TypeName is the name of the generated container type
	// (default: "Program").
	TypeName string `toml:"type_name"`

	// MethodName is the name of the entry method (default: "Main").
	MethodName string `toml:"method_name"`

	// Optimize enables the peephole pass over the generated bytecode.
	Optimize bool `toml:"optimize"`

	// Output, when set, is the path the compiled program is persisted to.
	Output string `toml:"output"`

	// Namespaces are searched for host types before any using form.
	// Entries may contain glob wildcards, e.g. "System.*".
	Namespaces []string `toml:"namespaces"`

	// AllowHost is a regular expression over qualified host type names.
	// Types that do not match are invisible to programs. Empty allows all.
	AllowHost string `toml:"allow_host"`

	// Cache is the path of a SQLite artifact cache. Empty disables caching.
	Cache string `toml:"cache"`

	// MetricsAddr is the listen address of the metrics endpoint used by
	// the command line tool.
	MetricsAddr string `toml:"metrics_addr"`

	// Filename is reported in error positions.
	Filename string `toml:"-"`

	// Stdout receives program output. If nil, output is captured and
	// returned from Run.
	Stdout io.Writer `toml:"-"`

	// Logger receives debug logs of the compile pipeline
	// (default: slog.Default()).
	Logger *slog.Logger `toml:"-"`
}

// applyDefaults fills in default values for unset Config fields.
func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.TypeName) == "" {
		c.TypeName = codegen.DefaultTypeName
	}
	if strings.TrimSpace(c.MethodName) == "" {
		c.MethodName = codegen.DefaultMethodName
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// validate reports configuration values that cannot be used.
func (c *Config) validate() error {
	for _, ns := range c.Namespaces {
		if strings.TrimSpace(ns) == "" {
			return fmt.Errorf("namespaces must not contain empty entries")
		}
	}
	if c.AllowHost != "" {
		if _, err := runtime.Compile(c.AllowHost); err != nil {
			return fmt.Errorf("allow_host: %w", err)
		}
	}
	return nil
}

// LoadConfig reads a Config from a TOML file.
//
// Example file:
//
//	type_name = "Hello"
//	namespaces = ["System"]
//	allow_host = "^System\\.(Math|Console)$"
//	cache = "narlie-cache.db"
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}
