// Package config provides CoreContext, the process-wide configuration
// and service-locator object that replaces the original project's
// static CollaboratorRegistry singleton and command-line flag parsing
// with a viper-backed, environment-overridable configuration layer.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// CoreContext holds every tunable this server reads at startup: listen
// address, per-collaborator throttle durations, and which domain
// collaborators are enabled for newly-opened buffers.
type CoreContext struct {
	ListenAddr string

	PushDelayFromIdle  time.Duration
	PushDelayFromStart time.Duration

	EnableFormatter       bool
	EnableDiagnostics     bool
	EnableFixit           bool
	EnableCompileExplorer bool
	EnableCodeIntel       bool
	EnableFileWatch       bool

	FormatterCommand string
	LinterCommand    string
	CompilerCommand  string

	LogLevel string
}

// Load reads configuration from (in increasing priority) built-in
// defaults, a config file named "annotext" on the given search paths,
// and ANNOTEXT_-prefixed environment variables.
func Load(searchPaths ...string) (*CoreContext, error) {
	v := viper.New()
	v.SetEnvPrefix("annotext")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("push_delay_from_idle", "200ms")
	v.SetDefault("push_delay_from_start", "2s")
	v.SetDefault("enable_formatter", true)
	v.SetDefault("enable_diagnostics", true)
	v.SetDefault("enable_fixit", true)
	v.SetDefault("enable_compile_explorer", false)
	v.SetDefault("enable_code_intel", false)
	v.SetDefault("enable_file_watch", true)
	v.SetDefault("formatter_command", "clang-format")
	v.SetDefault("linter_command", "")
	v.SetDefault("compiler_command", "")
	v.SetDefault("log_level", "info")

	v.SetConfigName("annotext")
	v.SetConfigType("yaml")
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	idle, err := time.ParseDuration(v.GetString("push_delay_from_idle"))
	if err != nil {
		return nil, fmt.Errorf("config: push_delay_from_idle: %w", err)
	}
	start, err := time.ParseDuration(v.GetString("push_delay_from_start"))
	if err != nil {
		return nil, fmt.Errorf("config: push_delay_from_start: %w", err)
	}

	return &CoreContext{
		ListenAddr:            v.GetString("listen_addr"),
		PushDelayFromIdle:     idle,
		PushDelayFromStart:    start,
		EnableFormatter:       v.GetBool("enable_formatter"),
		EnableDiagnostics:     v.GetBool("enable_diagnostics"),
		EnableFixit:           v.GetBool("enable_fixit"),
		EnableCompileExplorer: v.GetBool("enable_compile_explorer"),
		EnableCodeIntel:       v.GetBool("enable_code_intel"),
		EnableFileWatch:       v.GetBool("enable_file_watch"),
		FormatterCommand:      v.GetString("formatter_command"),
		LinterCommand:         v.GetString("linter_command"),
		CompilerCommand:       v.GetString("compiler_command"),
		LogLevel:              v.GetString("log_level"),
	}, nil
}
