package service

import (
	"github.com/vanshika/ringtrace/internal/config"
	"github.com/vanshika/ringtrace/internal/detection"
)

// ParamsFromConfig maps configured thresholds and weights onto detection
// parameters. Heuristic constants not exposed in configuration keep their
// defaults.
func ParamsFromConfig(cfg config.DetectionConfig) detection.Params {
	p := detection.DefaultParams()
	p.CycleMinLength = cfg.CycleMinLength
	p.CycleMaxLength = cfg.CycleMaxLength
	p.SmurfingThreshold = cfg.SmurfingThreshold
	p.SmurfingWindowHours = cfg.SmurfingWindowHours
	p.ShellMinChainLength = cfg.ShellMinChainLength
	p.ShellMaxIntermediateDegree = cfg.ShellMaxIntermediateDegree
	p.Grouping = detection.Grouping(cfg.Grouping)
	p.Parallel = cfg.Parallel
	p.Scoring.CycleWeight = cfg.CycleWeight
	p.Scoring.ShellWeight = cfg.ShellWeight
	p.Scoring.SmurfingWeight = cfg.SmurfingWeight
	p.Scoring.VelocityWeight = cfg.VelocityWeight
	return p
}

// ExportOptionsFromConfig maps the export section onto exporter options.
func ExportOptionsFromConfig(cfg config.ExportConfig) ExportOptions {
	return ExportOptions{
		Workers:         cfg.Workers,
		BatchSize:       cfg.BatchSize,
		BreakerFailures: cfg.BreakerFailures,
		BreakerTimeout:  cfg.BreakerTimeout,
	}
}
