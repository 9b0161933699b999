// Package config loads engine configuration from environment variables with
// optional overrides from a triad.yaml file in the config directory.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the fully resolved engine configuration.
type Config struct {
	// LLM provider settings.
	Provider    string `yaml:"provider"`
	APIKey      string `yaml:"-"`
	BaseURL     string `yaml:"base_url"`
	PlannerModel  string `yaml:"planner_model"`
	JudgeModel    string `yaml:"judge_model"`
	ExecutorModel string `yaml:"executor_model"`

	PlannerTemperature  float32 `yaml:"planner_temperature"`
	JudgeTemperature    float32 `yaml:"judge_temperature"`
	ExecutorTemperature float32 `yaml:"executor_temperature"`
	StrictJSONMode      bool    `yaml:"strict_json_mode"`
	MaxTokensPerStage   int     `yaml:"max_tokens_per_stage"`

	// Orchestrator budgets.
	MaxPlanIters       int           `yaml:"max_plan_iters"`
	MaxToolCallsPerAct int           `yaml:"max_tool_calls_per_act"`
	MaxTotalToolCalls  int           `yaml:"max_total_tool_calls"`
	MaxExecutionTime   time.Duration `yaml:"max_execution_time"`

	// Tooling.
	DesktopDir   string `yaml:"desktop_dir"`
	Timezone     string `yaml:"timezone"`
	ToolsEnabled bool   `yaml:"tools_enabled"`

	// Feature switches.
	RAGEnabled       bool `yaml:"rag_enabled"`
	UseM3Orchestrator bool `yaml:"use_m3_orchestrator"`

	// Server.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Observability.
	LogLevel      string `yaml:"log_level"`
	TelemetryFile string `yaml:"telemetry_file"`
}

// Validate checks the resolved configuration for internally consistent
// values. Called once at startup.
func (c *Config) Validate() error {
	if c.MaxPlanIters < 1 {
		return fmt.Errorf("max_plan_iters must be >= 1, got %d", c.MaxPlanIters)
	}
	if c.MaxToolCallsPerAct < 1 {
		return fmt.Errorf("max_tool_calls_per_act must be >= 1, got %d", c.MaxToolCallsPerAct)
	}
	if c.MaxTotalToolCalls < c.MaxToolCallsPerAct {
		return fmt.Errorf("max_total_tool_calls (%d) must be >= max_tool_calls_per_act (%d)",
			c.MaxTotalToolCalls, c.MaxToolCallsPerAct)
	}
	if c.MaxExecutionTime <= 0 {
		return fmt.Errorf("max_execution_time must be positive, got %s", c.MaxExecutionTime)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

// Location returns the configured timezone. Validate guarantees it parses.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv returns the environment variable or a default.
func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
