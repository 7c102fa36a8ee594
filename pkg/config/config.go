// Package config holds the boot configuration of the kernel. It can be
// populated from YAML at any URL the afs storage layer understands
// (file://, mem://, ...); the zero value of every section inherits the
// package defaults.
package config

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"kcore/pkg/mm"
)

// Config is the serialisable kernel configuration.
type Config struct {
	Sched  SchedConfig  `yaml:"sched"`
	Memory mm.Limits    `yaml:"memory"`
	Files  FilesConfig  `yaml:"files"`
	Log    LogConfig    `yaml:"log"`
	Trace  TraceConfig  `yaml:"trace"`
	Device DeviceConfig `yaml:"device"`
}

// SchedConfig sizes the process table and the clock.
type SchedConfig struct {
	// Tasks is the number of process table slots, slot 0 included.
	Tasks int `yaml:"tasks"`
	// HZ is the number of clock ticks per second.
	HZ int `yaml:"hz"`
	// TimerRequests is the capacity of the timer queue.
	TimerRequests int `yaml:"timerRequests"`
	// IdlePriority is the priority and initial counter of the idle process.
	IdlePriority int `yaml:"idlePriority"`
	// MaxTicks stops Run once reached; 0 means never.
	MaxTicks int64 `yaml:"maxTicks"`
}

// FilesConfig sizes the file layer.
type FilesConfig struct {
	// OpenFiles is the size of the system open file table.
	OpenFiles int `yaml:"openFiles"`
	// Terminals is the number of terminals.
	Terminals int `yaml:"terminals"`
}

// LogConfig selects the kernel log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// TraceConfig enables system call tracing.
type TraceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Output  string `yaml:"output"`
}

// DeviceConfig configures the simulated block device.
type DeviceConfig struct {
	// Latency is the number of ticks a block request takes.
	Latency int64 `yaml:"latency"`
}

// Default returns a Config describing a Linux 0.11 sized machine.
func Default() *Config {
	return &Config{
		Sched: SchedConfig{
			Tasks:         64,
			HZ:            100,
			TimerRequests: 64,
			IdlePriority:  15,
		},
		Memory: *mm.DefaultLimits(),
		Files: FilesConfig{
			OpenFiles: 64,
			Terminals: 3,
		},
		Log:    LogConfig{Level: "info"},
		Device: DeviceConfig{Latency: 5},
	}
}

// Validate returns an error describing the first invalid setting or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Sched.Tasks < 2 {
		return fmt.Errorf("sched.tasks must be >= 2")
	}
	if c.Sched.Tasks > 64 {
		return fmt.Errorf("sched.tasks must be <= 64")
	}
	if c.Sched.HZ <= 0 {
		return fmt.Errorf("sched.hz must be > 0")
	}
	if c.Sched.TimerRequests <= 0 {
		return fmt.Errorf("sched.timerRequests must be > 0")
	}
	if c.Sched.IdlePriority <= 0 {
		return fmt.Errorf("sched.idlePriority must be > 0")
	}
	if c.Sched.MaxTicks < 0 {
		return fmt.Errorf("sched.maxTicks must be >= 0")
	}
	if c.Files.OpenFiles <= 0 {
		return fmt.Errorf("files.openFiles must be > 0")
	}
	if c.Device.Latency < 0 {
		return fmt.Errorf("device.latency must be >= 0")
	}
	return c.Memory.Validate()
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Load downloads the YAML document at URL and parses it.
func Load(ctx context.Context, URL string) (*Config, error) {
	return LoadWith(ctx, afs.New(), URL)
}

// LoadWith is Load with an explicit storage service.
func LoadWith(ctx context.Context, fs afs.Service, URL string) (*Config, error) {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("config: download %v: %w", URL, err)
	}
	return Parse(data)
}
