// Package cmd implements the command-line interface for remapflame and
// drives the LOAD_MAPPING -> TRANSFORM -> DONE sequence of a run.
package cmd

import (
	"context"
	"log/slog"

	"remapflame/internal/config"
	"remapflame/internal/log"
	"remapflame/internal/pipeline"
	"remapflame/internal/watch"
)

func executeRemap(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("processing flame graph",
		slog.String("target", cfg.TargetFile),
		slog.String("mapping", cfg.MappingFile))

	p := pipeline.New(cfg, logger)
	summary, err := p.Run()
	if err != nil {
		return err
	}
	log.LogSummary(logger, summary)

	if cfg.Watch {
		w := watch.New(cfg.TargetFile, logger, func() error {
			summary, err := p.Transform()
			if err != nil {
				return err
			}
			log.LogSummary(logger, summary)
			return nil
		})
		if err := w.Watch(ctx); err != nil {
			return err
		}
	}

	logger.Info("done.")
	return nil
}
