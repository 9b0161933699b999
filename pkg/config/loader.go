package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load .env from configDir (if present)
//  2. Resolve every key from the environment with defaults
//  3. Apply triad.yaml overrides from configDir (if present)
//  4. Validate the result
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	if configDir != "" {
		envPath := filepath.Join(configDir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
			}
			log.Info("Loaded environment file", "path", envPath)
		}
	}

	cfg := fromEnv()

	if configDir != "" {
		yamlPath := filepath.Join(configDir, "triad.yaml")
		if _, err := os.Stat(yamlPath); err == nil {
			if err := applyYAML(cfg, yamlPath); err != nil {
				return nil, fmt.Errorf("failed to apply %s: %w", yamlPath, err)
			}
			log.Info("Applied YAML overrides", "path", yamlPath)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Info("Configuration initialized",
		"provider", cfg.Provider,
		"planner_model", cfg.PlannerModel,
		"tools_enabled", cfg.ToolsEnabled)
	return cfg, nil
}

// fromEnv resolves every configuration key from the environment.
func fromEnv() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Provider:      getEnv("PROVIDER", "openai"),
		APIKey:        getEnv("LLM_API_KEY", os.Getenv("OPENAI_API_KEY")),
		BaseURL:       getEnv("LLM_BASE_URL", ""),
		PlannerModel:  getEnv("PLANNER_MODEL", "gpt-4o-mini"),
		JudgeModel:    getEnv("JUDGE_MODEL", "gpt-4o-mini"),
		ExecutorModel: getEnv("EXECUTOR_MODEL", "gpt-4o-mini"),

		PlannerTemperature:  getEnvFloat("PLANNER_TEMPERATURE", 0.2),
		JudgeTemperature:    getEnvFloat("JUDGE_TEMPERATURE", 0.2),
		ExecutorTemperature: getEnvFloat("EXECUTOR_TEMPERATURE", 0.1),
		StrictJSONMode:      getEnvBool("STRICT_JSON_MODE", true),
		MaxTokensPerStage:   getEnvInt("MAX_TOKENS_PER_STAGE", 2048),

		MaxPlanIters:       getEnvInt("MAX_PLAN_ITERS", 2),
		MaxToolCallsPerAct: getEnvInt("MAX_TOOL_CALLS_PER_ACT", 3),
		MaxTotalToolCalls:  getEnvInt("MAX_TOTAL_TOOL_CALLS", 6),
		MaxExecutionTime:   latencyBudget(),

		DesktopDir:   getEnv("DESKTOP_DIR", filepath.Join(home, "Desktop")),
		Timezone:     getEnv("TIMEZONE", "Europe/Amsterdam"),
		ToolsEnabled: getEnvBool("TOOLS_ENABLED", true),

		RAGEnabled:        getEnvBool("RAG_ENABLED", false),
		UseM3Orchestrator: getEnvBool("USE_M3_ORCHESTRATOR", true),

		Host: getEnv("HOST", "0.0.0.0"),
		Port: getEnvInt("PORT", 8080),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		TelemetryFile: getEnv("TELEMETRY_FILE", "logs/telemetry.jsonl"),
	}
}

// latencyBudget resolves the slice wall-clock budget. MAX_LATENCY_MS is the
// canonical key; MAX_EXECUTION_TIME is accepted as a duration-typed alias
// and wins when both are set.
func latencyBudget() time.Duration {
	budget := time.Duration(getEnvInt("MAX_LATENCY_MS", 20000)) * time.Millisecond
	return getEnvDuration("MAX_EXECUTION_TIME", budget)
}

// applyYAML overlays non-zero values from the YAML file onto cfg.
func applyYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading yaml: %w", err)
	}
	overlay := &Config{}
	if err := yaml.Unmarshal(data, overlay); err != nil {
		return fmt.Errorf("parsing yaml: %w", err)
	}
	mergeConfig(cfg, overlay)
	return nil
}

// mergeConfig copies every non-zero overlay field onto dst. The API key is
// environment-only and never read from YAML.
func mergeConfig(dst, overlay *Config) {
	if overlay.Provider != "" {
		dst.Provider = overlay.Provider
	}
	if overlay.BaseURL != "" {
		dst.BaseURL = overlay.BaseURL
	}
	if overlay.PlannerModel != "" {
		dst.PlannerModel = overlay.PlannerModel
	}
	if overlay.JudgeModel != "" {
		dst.JudgeModel = overlay.JudgeModel
	}
	if overlay.ExecutorModel != "" {
		dst.ExecutorModel = overlay.ExecutorModel
	}
	if overlay.PlannerTemperature != 0 {
		dst.PlannerTemperature = overlay.PlannerTemperature
	}
	if overlay.JudgeTemperature != 0 {
		dst.JudgeTemperature = overlay.JudgeTemperature
	}
	if overlay.ExecutorTemperature != 0 {
		dst.ExecutorTemperature = overlay.ExecutorTemperature
	}
	if overlay.MaxTokensPerStage != 0 {
		dst.MaxTokensPerStage = overlay.MaxTokensPerStage
	}
	if overlay.MaxPlanIters != 0 {
		dst.MaxPlanIters = overlay.MaxPlanIters
	}
	if overlay.MaxToolCallsPerAct != 0 {
		dst.MaxToolCallsPerAct = overlay.MaxToolCallsPerAct
	}
	if overlay.MaxTotalToolCalls != 0 {
		dst.MaxTotalToolCalls = overlay.MaxTotalToolCalls
	}
	if overlay.MaxExecutionTime != 0 {
		dst.MaxExecutionTime = overlay.MaxExecutionTime
	}
	if overlay.DesktopDir != "" {
		dst.DesktopDir = overlay.DesktopDir
	}
	if overlay.Timezone != "" {
		dst.Timezone = overlay.Timezone
	}
	if overlay.Host != "" {
		dst.Host = overlay.Host
	}
	if overlay.Port != 0 {
		dst.Port = overlay.Port
	}
	if overlay.LogLevel != "" {
		dst.LogLevel = overlay.LogLevel
	}
	if overlay.TelemetryFile != "" {
		dst.TelemetryFile = overlay.TelemetryFile
	}
}
