package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/XiaoConstantine/ramanujan-go/pkg/errors"
)

// Config represents the complete configuration for the discovery engine.
type Config struct {
	// Search configuration
	Search SearchConfig `yaml:"search,omitempty" validate:"omitempty"`

	// Producer swarm configuration
	Swarm SwarmConfig `yaml:"swarm,omitempty" validate:"omitempty"`

	// LLM producer configuration (optional)
	LLM LLMConfig `yaml:"llm,omitempty" validate:"omitempty"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging,omitempty" validate:"omitempty"`

	// Archive configuration
	Archive ArchiveConfig `yaml:"archive,omitempty" validate:"omitempty"`
}

// SearchConfig holds the evolutionary search parameters.
type SearchConfig struct {
	// Decimal digits used for big.Float evaluation. Double precision is not
	// enough: the verification threshold below is far under 1e-300's
	// float64 underflow cliff once expressions start composing, and error
	// comparison must stay meaningful at that scale.
	PrecisionDigits int `yaml:"precision_digits" validate:"min=100"`

	// Candidates produced per generation.
	PopulationSize int `yaml:"population_size" validate:"min=3"`

	// Generations per session unless stopped earlier.
	MaxGenerations int `yaml:"max_generations" validate:"min=1"`

	// Gene pool capacity K.
	GenePoolSize int `yaml:"gene_pool_size" validate:"min=1"`

	// Elegance = error * (1 + penalty * complexity).
	ComplexityPenalty float64 `yaml:"complexity_penalty" validate:"min=0"`

	// Absolute error below which a candidate becomes a Discovery. Decimal
	// string parsed at search precision.
	VerifyThreshold string `yaml:"verify_threshold" validate:"required"`

	// Parent selection slices for mutation and crossover.
	MutateParents    int `yaml:"mutate_parents" validate:"min=1"`
	CrossoverParents int `yaml:"crossover_parents" validate:"min=2"`

	// Pause between generation steps, bounds event emission rate.
	GenerationPause time.Duration `yaml:"generation_pause" validate:"min=0"`
}

// SwarmConfig controls the mix of grammar-backed producers.
type SwarmConfig struct {
	Explorers      int `yaml:"explorers" validate:"min=0"`
	Mutators       int `yaml:"mutators" validate:"min=0"`
	Hybrids        int `yaml:"hybrids" validate:"min=0"`
	MaxConcurrency int `yaml:"max_concurrency" validate:"min=1"`

	// Expressions requested from each producer per generation.
	ExpressionsPerProducer int `yaml:"expressions_per_producer" validate:"min=1"`
}

// LLMConfig configures the optional Anthropic-backed producer.
type LLMConfig struct {
	Enabled     bool    `yaml:"enabled"`
	APIKey      string  `yaml:"api_key,omitempty"`
	Model       string  `yaml:"model,omitempty"`
	// Anthropic rejects sampling temperatures above 1.
	Temperature float64 `yaml:"temperature" validate:"min=0,max=1"`
	MaxTokens   int     `yaml:"max_tokens" validate:"min=0"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR FATAL"`
	File  string `yaml:"file,omitempty"`
}

// ArchiveConfig configures durable discovery storage.
type ArchiveConfig struct {
	// SQLite database path; empty disables persistence, ":memory:" keeps
	// the archive process-local.
	Path string `yaml:"path,omitempty"`
}

// Load reads a YAML config file, applies defaults for unset fields and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.ResourceNotFound, "failed to read config file"),
			errors.Fields{"path": path},
		)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.InvalidInput, "failed to parse config file"),
			errors.Fields{"path": path},
		)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
