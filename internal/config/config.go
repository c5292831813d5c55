// Package config defines service configuration and its loading.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// QueueSize bounds the pending generation job queue.
	QueueSize int `koanf:"queue_size" validate:"min=1"`

	// WorkerCount sets the number of generation workers.
	WorkerCount int `koanf:"worker_count" validate:"min=1"`

	// DedupeSize bounds the pending-owner tracker.
	DedupeSize int `koanf:"dedupe_size" validate:"min=0"`

	// DatabasePath is the SQLite file. Empty keeps data in memory.
	DatabasePath string `koanf:"database_path"`

	// ImageRoot is the directory item image references resolve against.
	ImageRoot string `koanf:"image_root" validate:"required"`

	// EmbedCachePath is the Badger directory. Empty keeps the cache in memory.
	EmbedCachePath string `koanf:"embed_cache_path"`

	// WeightsPath is a JSON weights bundle. Empty uses seeded weights.
	WeightsPath string `koanf:"weights_path"`
	WeightsSeed int64  `koanf:"weights_seed"`

	// Model architecture used when no weights file is given.
	BackboneWidth   int `koanf:"backbone_width" validate:"min=32,multiple_of=32"`
	ImageResolution int `koanf:"image_resolution" validate:"min=8"`
	HiddenWidth     int `koanf:"hidden_width" validate:"min=1"`
	ProjectionWidth int `koanf:"projection_width" validate:"min=1"`

	// BatchSize is how many outfits share one scorer call.
	BatchSize int `koanf:"batch_size" validate:"min=1"`

	// MaxCandidates caps candidates per run. Zero disables the cap.
	MaxCandidates int `koanf:"max_candidates" validate:"min=0"`

	// EmbedConcurrency bounds parallel image embedding per run.
	EmbedConcurrency int `koanf:"embed_concurrency" validate:"min=1"`

	// ScaleAttentionScores divides attention scores by sqrt(key width).
	ScaleAttentionScores bool `koanf:"scale_attention_scores"`

	// RecommendThreshold is the default minimum event score for reads.
	RecommendThreshold float64 `koanf:"recommend_threshold" validate:"min=0,max=1"`

	// RunTimeoutSec bounds one generation run. Zero disables the bound.
	RunTimeoutSec int `koanf:"run_timeout_sec" validate:"min=0"`
}

// New returns a Config holding defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		QueueSize:          1024,
		WorkerCount:        runtime.NumCPU(),
		DedupeSize:         50_000,
		ImageRoot:          "uploads",
		WeightsSeed:        42,
		BackboneWidth:      2048,
		ImageResolution:    224,
		HiddenWidth:        1024,
		ProjectionWidth:    128,
		BatchSize:          1,
		MaxCandidates:      5000,
		EmbedConcurrency:   runtime.NumCPU(),
		RecommendThreshold: 0.60,
		RunTimeoutSec:      600,
	}
}
