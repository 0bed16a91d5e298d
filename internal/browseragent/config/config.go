// Package config loads the runnable program's configuration: TaskOptions
// defaults, browser launch options, and model provider selection. Adapted
// from the teacher's internal/config package, which layers a YAML file
// under environment-variable overrides; this module reuses that layering
// but narrows the schema to what the orchestration core and its two
// concrete capability implementations need.
package config

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"browseragent/internal/browseragent/agent"
	"browseragent/internal/browseragent/browser"
	"browseragent/internal/browseragent/chatmodel"
)

// Config is the top-level program configuration.
type Config struct {
	Task     TaskConfig     `yaml:"task"`
	Browser  BrowserConfig  `yaml:"browser"`
	Provider ProviderConfig `yaml:"provider"`
}

// TaskConfig mirrors agent.TaskOptions in YAML-friendly form.
type TaskConfig struct {
	MaxSteps             int    `yaml:"max_steps"`
	MaxActionsPerStep     int    `yaml:"max_actions_per_step"`
	MaxConsecutiveFailures int   `yaml:"max_consecutive_failures"`
	MaxValidatorFailures  int    `yaml:"max_validator_failures"`
	UseVision             bool   `yaml:"use_vision"`
	UseVisionForPlanner   bool   `yaml:"use_vision_for_planner"`
	ValidateOutput        bool   `yaml:"validate_output"`
	PlanningInterval      int    `yaml:"planning_interval"`
}

// BrowserConfig mirrors browser.Config in YAML-friendly form.
type BrowserConfig struct {
	Headless       bool   `yaml:"headless"`
	ViewportWidth  int    `yaml:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height"`
	ChromeBin      string `yaml:"chrome_bin"`
}

// ProviderConfig selects and configures the ChatModel provider. APIKey, if
// empty, is resolved from the environment by ResolveChatModel via
// chatmodel.DetectProvider; Load leaves it empty.
type ProviderConfig struct {
	Name   string `yaml:"name"`
	Model  string `yaml:"model"`
	APIKey string `yaml:"api_key"`
}

// Default returns the built-in defaults, matching agent.DefaultTaskOptions
// and browser.DefaultConfig.
func Default() Config {
	taskOpts := agent.DefaultTaskOptions()
	browserCfg := browser.DefaultConfig()
	return Config{
		Task: TaskConfig{
			MaxSteps:               taskOpts.MaxSteps,
			MaxActionsPerStep:      taskOpts.MaxActionsPerStep,
			MaxConsecutiveFailures: taskOpts.MaxConsecutiveFailures,
			MaxValidatorFailures:   taskOpts.MaxValidatorFailures,
			UseVision:              taskOpts.UseVision,
			UseVisionForPlanner:    taskOpts.UseVisionForPlanner,
			ValidateOutput:         taskOpts.ValidateOutput,
			PlanningInterval:       taskOpts.PlanningInterval,
		},
		Browser: BrowserConfig{
			Headless:       browserCfg.Headless,
			ViewportWidth:  browserCfg.ViewportWidth,
			ViewportHeight: browserCfg.ViewportHeight,
		},
	}
}

// Load reads YAML from path over the defaults, then applies environment
// overrides on top: env vars win over file, file wins over defaults. A
// missing file is not an error; it simply means "use defaults", matching
// the teacher's internal/config tolerant-load behavior.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides layers BROWSERAGENT_* environment variables over the
// loaded config, following the teacher's internal/config named-variable
// pattern (env_override_test.go): a plain non-empty os.Getenv check per
// field, not a generic prefix-reflection scan.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BROWSERAGENT_PROVIDER"); v != "" {
		c.Provider.Name = v
	}
	if v := os.Getenv("BROWSERAGENT_MODEL"); v != "" {
		c.Provider.Model = v
	}
	if v := os.Getenv("BROWSERAGENT_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("BROWSERAGENT_CHROME_BIN"); v != "" {
		c.Browser.ChromeBin = v
	}
}

// TaskOptions converts the config's Task section into agent.TaskOptions,
// filling in the fields the YAML schema does not expose with
// agent.DefaultTaskOptions' constants.
func (c Config) TaskOptions() agent.TaskOptions {
	opts := agent.DefaultTaskOptions()
	opts.MaxSteps = c.Task.MaxSteps
	opts.MaxActionsPerStep = c.Task.MaxActionsPerStep
	opts.MaxConsecutiveFailures = c.Task.MaxConsecutiveFailures
	opts.MaxValidatorFailures = c.Task.MaxValidatorFailures
	opts.UseVision = c.Task.UseVision
	opts.UseVisionForPlanner = c.Task.UseVisionForPlanner
	opts.ValidateOutput = c.Task.ValidateOutput
	opts.PlanningInterval = c.Task.PlanningInterval
	return opts
}

// BrowserConfig converts the config's Browser section into browser.Config.
func (c Config) BrowserConfig() browser.Config {
	cfg := browser.DefaultConfig()
	cfg.Headless = c.Browser.Headless
	if c.Browser.ViewportWidth > 0 {
		cfg.ViewportWidth = c.Browser.ViewportWidth
	}
	if c.Browser.ViewportHeight > 0 {
		cfg.ViewportHeight = c.Browser.ViewportHeight
	}
	cfg.ChromeBin = c.Browser.ChromeBin
	return cfg
}

// ResolveChatModel builds a ChatModel from the provider section, falling
// back to environment auto-detection (chatmodel.DetectProvider) when Name
// is unset, mirroring the teacher's provider-selection priority order.
func (c Config) ResolveChatModel() (chatmodel.ChatModel, error) {
	if c.Provider.Name == "" {
		return chatmodel.NewClientFromEnv(context.Background())
	}
	apiKey := c.Provider.APIKey
	if apiKey == "" {
		if _, key, ok := chatmodel.DetectProvider(); ok {
			apiKey = key
		}
	}
	return chatmodel.NewClient(context.Background(), chatmodel.Provider(c.Provider.Name), apiKey, c.Provider.Model)
}
