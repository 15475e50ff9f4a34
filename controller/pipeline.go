package controller

import (
	"context"

	"muxsynth/utils"
	"muxsynth/views"
)

// RunPipeline executes every stage in order:
//
//	TrajectoryController ──► scan path ──► FieldController ──► field files
//	                                                              │
//	                                            ExportController ─┴─► muxed files + manifest
func RunPipeline(ctx context.Context, cfg *utils.Config) (*views.Manifest, error) {
	if err := NewTrajectoryController(cfg).Run(ctx); err != nil {
		return nil, err
	}
	if err := NewFieldController(cfg).Run(ctx); err != nil {
		return nil, err
	}
	return NewExportController(cfg).Run(ctx)
}
