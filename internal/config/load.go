package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/nfinit-engine/internal/observability"
)

const (
	DefaultAddr            = ":8000"
	DefaultKernel          = "facet"
	DefaultMaxRequestBytes = 1 << 20
)

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		d.Duration = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		u, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		return d.parse(u)
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a JSON string like \"5s\" or an int nanoseconds: %w", err)
	}
	d.Duration = time.Duration(n)
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	if node.Tag == "!!int" {
		n, err := strconv.ParseInt(node.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		d.Duration = time.Duration(n)
		return nil
	}
	if err := d.parse(node.Value); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	return nil
}

func (d *Duration) parse(s string) error {
	if strings.TrimSpace(s) == "" {
		d.Duration = 0
		return nil
	}
	dd, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	d.Duration = dd
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Env:         "development",
		ServiceName: "nfinit-engine",
		HTTP: HTTPConfig{
			Addr:              DefaultAddr,
			ReadHeaderTimeout: Duration{Duration: 5 * time.Second},
			IdleTimeout:       Duration{Duration: 2 * time.Minute},
			ShutdownTimeout:   Duration{Duration: 15 * time.Second},
			MaxRequestBytes:   DefaultMaxRequestBytes,
			CORSOrigins:       []string{"http://localhost:3000"},
		},
		Engine: EngineConfig{
			Kernel:        DefaultKernel,
			Timeout:       Duration{Duration: 30 * time.Second},
			MaxConcurrent: 8,
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{SampleRatio: 1},
		},
	}
}

// Load builds the configuration from defaults, an optional JSON or YAML file
// and environment overrides, in that order.
func Load() (*Config, error) {
	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("NFINIT_CONFIG_PATH"))
	if cfgPath == "" {
		cfgPath = findDefaultFile()
	}
	if cfgPath != "" {
		if err := loadFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", cfgPath, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findDefaultFile() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for _, name := range []string{"config.yaml", "config.yml", "config.json"} {
		p := filepath.Join(wd, "config", name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// loadFile decodes path over cfg, so keys the file omits keep their defaults.
func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

func applyEnv(cfg *Config) error {
	if v := env("LOG_MODE"); v != "" {
		cfg.Env = v
	}
	if v := env("NFINIT_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := env("NFINIT_MAX_REQUEST_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("NFINIT_MAX_REQUEST_BYTES: %w", err)
		}
		cfg.HTTP.MaxRequestBytes = n
	}
	if v := env("NFINIT_CORS_ORIGINS"); v != "" {
		cfg.HTTP.CORSOrigins = splitList(v)
	}
	if v := env("NFINIT_KERNEL"); v != "" {
		cfg.Engine.Kernel = v
	}
	if v := env("NFINIT_SCRIPT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("NFINIT_SCRIPT_TIMEOUT: %w", err)
		}
		cfg.Engine.Timeout = Duration{Duration: d}
	}
	if v := env("NFINIT_SCRIPT_MAX_STEPS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("NFINIT_SCRIPT_MAX_STEPS: %w", err)
		}
		cfg.Engine.MaxSteps = n
	}
	if v := env("NFINIT_MAX_CONCURRENT_SCRIPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NFINIT_MAX_CONCURRENT_SCRIPTS: %w", err)
		}
		cfg.Engine.MaxConcurrent = n
	}
	if v := env("NFINIT_EXPORT_TMPDIR"); v != "" {
		cfg.Export.TempDir = v
	}
	if v := env("METRICS_ENABLED"); v != "" {
		cfg.Observability.MetricsEnabled = parseBool(v)
	}

	tr := &cfg.Observability.Tracing
	if v := env("OTEL_ENABLED"); v != "" {
		tr.Enabled = parseBool(v)
	}
	if v := env("OTEL_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := env("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		tr.Endpoint = v
	}
	if v := env("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		tr.Headers = observability.ParseHeaders(v)
	}
	if v := env("OTEL_EXPORTER_OTLP_INSECURE"); v != "" {
		tr.Insecure = parseBool(v)
	}
	if v := env("OTEL_SAMPLE_RATIO"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("OTEL_SAMPLE_RATIO: %w", err)
		}
		tr.SampleRatio = f
	}
	return nil
}

// Validate fills blank values with defaults and rejects the rest.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "development"
	}
	if strings.TrimSpace(c.ServiceName) == "" {
		c.ServiceName = "nfinit-engine"
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		c.HTTP.Addr = DefaultAddr
	}
	if c.HTTP.MaxRequestBytes <= 0 {
		c.HTTP.MaxRequestBytes = DefaultMaxRequestBytes
	}
	if c.HTTP.ShutdownTimeout.Duration <= 0 {
		c.HTTP.ShutdownTimeout = Duration{Duration: 15 * time.Second}
	}
	c.Engine.Kernel = strings.ToLower(strings.TrimSpace(c.Engine.Kernel))
	if c.Engine.Kernel == "" {
		return errors.New("engine.kernel is required")
	}
	if c.Engine.Timeout.Duration < 0 {
		return fmt.Errorf("invalid engine.timeout %s", c.Engine.Timeout.Duration)
	}
	if c.Engine.MaxConcurrent < 0 {
		return fmt.Errorf("invalid engine.max_concurrent %d", c.Engine.MaxConcurrent)
	}
	if r := c.Observability.Tracing.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("invalid observability.tracing.sample_ratio %v", r)
	}
	if dir := strings.TrimSpace(c.Export.TempDir); dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("export.temp_dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("export.temp_dir %s is not a directory", dir)
		}
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	default:
		return false
	}
}
