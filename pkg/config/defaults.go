package config

import "time"

// Default returns the configuration used when no file overrides are given.
// The search parameters mirror the values the engine was tuned with.
func Default() *Config {
	return &Config{
		Search: SearchConfig{
			PrecisionDigits:   1500,
			PopulationSize:    100,
			MaxGenerations:    100,
			GenePoolSize:      25,
			ComplexityPenalty: 0.03,
			VerifyThreshold:   "1e-50",
			MutateParents:     10,
			CrossoverParents:  15,
			GenerationPause:   100 * time.Millisecond,
		},
		Swarm: SwarmConfig{
			Explorers:              8,
			Mutators:               8,
			Hybrids:                4,
			MaxConcurrency:         8,
			ExpressionsPerProducer: 10,
		},
		LLM: LLMConfig{
			Enabled:     false,
			Model:       "claude-3-5-sonnet-20241022",
			Temperature: 1.0,
			MaxTokens:   1024,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}
