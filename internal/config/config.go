package config

import "time"

type Duration struct {
	Duration time.Duration
}

type HTTPConfig struct {
	Addr              string   `json:"addr" yaml:"addr"`
	ReadHeaderTimeout Duration `json:"read_header_timeout" yaml:"read_header_timeout"`
	IdleTimeout       Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout   Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxRequestBytes   int64    `json:"max_request_bytes" yaml:"max_request_bytes"`

	// CORSOrigins are the browser origins allowed to call the API, with
	// credentials.
	CORSOrigins []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`
}

type EngineConfig struct {
	// Kernel is the registered geometry library scripts run against.
	Kernel string `json:"kernel" yaml:"kernel"`

	// Timeout bounds one script execution.
	Timeout Duration `json:"timeout" yaml:"timeout"`

	// MaxSteps bounds Starlark computation steps per execution. Zero means
	// no step budget; the timeout still applies.
	MaxSteps uint64 `json:"max_steps,omitempty" yaml:"max_steps,omitempty"`

	// MaxConcurrent bounds simultaneous executions across all requests.
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent"`
}

type ExportConfig struct {
	// TempDir is where per-request export directories are created. Empty
	// uses the system temp directory.
	TempDir string `json:"temp_dir,omitempty" yaml:"temp_dir,omitempty"`
}

type TracingConfig struct {
	Enabled     bool              `json:"enabled" yaml:"enabled"`
	Endpoint    string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Insecure    bool              `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	SampleRatio float64           `json:"sample_ratio" yaml:"sample_ratio"`
}

type ObservabilityConfig struct {
	MetricsEnabled bool          `json:"metrics_enabled" yaml:"metrics_enabled"`
	Tracing        TracingConfig `json:"tracing" yaml:"tracing"`
}

type Config struct {
	Env         string `json:"env" yaml:"env"`
	ServiceName string `json:"service_name" yaml:"service_name"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`

	HTTP          HTTPConfig          `json:"http" yaml:"http"`
	Engine        EngineConfig        `json:"engine" yaml:"engine"`
	Export        ExportConfig        `json:"export" yaml:"export"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}
