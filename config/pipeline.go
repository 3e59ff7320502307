package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// PipelineConfig 管道行为配置,从 YAML 文件读取
// 未给出的字段取 Default 值
type PipelineConfig struct {
	Backend               string `yaml:"backend"`
	UseImputation         bool   `yaml:"useImputation"`
	ImputationStrategy    string `yaml:"imputationStrategy"`
	MaxRetries            int    `yaml:"maxRetries"`
	ValidateBeforeExtract bool   `yaml:"validateBeforeExtract"`
	BatchConcurrency      int    `yaml:"batchConcurrency"`
}

// DefaultPipelineConfig 返回默认管道配置
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		Backend:               "vision",
		UseImputation:         true,
		ImputationStrategy:    "forward_fill",
		MaxRetries:            3,
		ValidateBeforeExtract: true,
		BatchConcurrency:      4,
	}
}

// LoadPipelineConfig 读取 YAML 配置文件,path 为空时用默认值
// PIPELINE_BACKEND / PIPELINE_MAX_RETRIES 环境变量可覆盖文件值
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cfg := DefaultPipelineConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read pipeline config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse pipeline config: %w", err)
		}
	}

	if v := os.Getenv("PIPELINE_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("PIPELINE_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PIPELINE_MAX_RETRIES: %w", err)
		}
		cfg.MaxRetries = n
	}

	switch cfg.Backend {
	case "vision", "layout", "legacy":
	default:
		return nil, fmt.Errorf("unknown backend %q in pipeline config", cfg.Backend)
	}
	switch cfg.ImputationStrategy {
	case "forward_fill", "mean", "none":
	default:
		return nil, fmt.Errorf("unknown imputation strategy %q in pipeline config", cfg.ImputationStrategy)
	}

	return cfg, nil
}
