package controller

import (
	"context"
	"fmt"
	"os"

	"muxsynth/models"
	"muxsynth/services/trajectory"
	"muxsynth/utils"
	"muxsynth/views"
)

// TrajectoryController is the first pipeline stage. It turns the scan
// plan into trajectory vertices and expands them into the per-sample
// scan path, writing both as interchange files:
//
//	segment tree ──► vertices ──► trajectory.msv
//	                     │
//	                 Densifier ──► simulated_path.msv
type TrajectoryController struct {
	cfg      *utils.Config
	vertices []models.Vec3
	samples  int64
}

func NewTrajectoryController(cfg *utils.Config) *TrajectoryController {
	return &TrajectoryController{cfg: cfg}
}

// Vertices builds (once) and returns the trajectory vertices.
func (tc *TrajectoryController) Vertices() ([]models.Vec3, error) {
	if tc.vertices != nil {
		return tc.vertices, nil
	}
	root, err := trajectory.Source(tc.cfg)
	if err != nil {
		return nil, err
	}
	vs, err := trajectory.Build(models.Vec3(tc.cfg.SystemParameters.Origin), root)
	if err != nil {
		return nil, fmt.Errorf("build trajectory: %w", err)
	}
	tc.vertices = vs
	tc.checkTiming(vs)
	utils.L().Info("trajectory: %d vertices, ends at %s", len(vs), models.FormatVec(vs[len(vs)-1], 3))
	return vs, nil
}

// checkTiming warns when a configured scan duration is shorter than the
// motion profile allows for the moves that use it. Each axis is reported
// once.
func (tc *TrajectoryController) checkTiming(vs []models.Vec3) {
	mp := tc.cfg.MotionProfile
	d := tc.cfg.ScanSetup.Durations
	accel := [3]float64{mp.Acceleration.X, mp.Acceleration.Y, mp.Acceleration.Z}
	vmax := [3]float64{mp.MaxVelocity.X, mp.MaxVelocity.Y, mp.MaxVelocity.Z}
	configured := [3]float64{d.XScan, d.YScan, d.ZScan}
	names := [3]string{"x_scan", "y_scan", "z_scan"}

	var warned [3]bool
	for i := 1; i < len(vs); i++ {
		move := vs[i].Sub(vs[i-1])
		a := move.DominantAxis()
		if warned[a] {
			continue
		}
		need := trajectory.MoveDuration(move[a], accel[a], vmax[a])
		if configured[a] < need {
			utils.L().Warn("trajectory: %s=%.2fs but a %.1f mm move needs %.2fs at the configured motion profile",
				names[a], configured[a], move[a], need)
			warned[a] = true
		}
	}
}

// SampleCount resolves how many samples of the dense path are recorded.
// Configured scan counts cap the path; without them the whole path is
// used.
func (tc *TrajectoryController) SampleCount(pathLen int64) (int64, error) {
	sc := tc.cfg.ScanSetup
	n, err := trajectory.CalculateNSamples(sc.Durations, sc.ScanCounts, tc.cfg.Sampling.RateHz)
	if err != nil {
		return 0, err
	}
	switch {
	case n == 0:
		return pathLen, nil
	case n > pathLen:
		utils.L().Warn("trajectory: scan_counts ask for %d samples, path has %d; using the full path", n, pathLen)
		return pathLen, nil
	default:
		return n, nil
	}
}

// Run writes the trajectory and scan path files.
func (tc *TrajectoryController) Run(ctx context.Context) error {
	if err := os.MkdirAll(tc.cfg.Files.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	comp, err := views.ParseCompression(tc.cfg.Export.Compression)
	if err != nil {
		return err
	}

	vs, err := tc.Vertices()
	if err != nil {
		return err
	}
	if err := views.WriteVecFile(tc.cfg.Path(tc.cfg.Files.Trajectory), vs, comp); err != nil {
		return err
	}

	dens, err := trajectory.NewDensifier(vs, trajectory.Timing{
		Rate:      tc.cfg.Sampling.RateHz,
		Durations: tc.cfg.ScanSetup.Durations,
	})
	if err != nil {
		return err
	}
	total, err := tc.SampleCount(dens.Len())
	if err != nil {
		return err
	}
	utils.L().Info("trajectory: scan path of %d samples (%.1f s at %g Hz)",
		total, float64(total)/tc.cfg.Sampling.RateHz, tc.cfg.Sampling.RateHz)

	w, err := views.CreateVecFile(tc.cfg.Path(tc.cfg.Files.ScanPath), comp, tc.cfg.Export.BufferSizeKB*1024)
	if err != nil {
		return err
	}
	prog := newProgress("path", total)
	buf := make([]models.Vec3, tc.cfg.Export.ChunkSamples)
	for left := total; left > 0; {
		if err := ctx.Err(); err != nil {
			w.Close()
			return err
		}
		chunk := buf
		if int64(len(chunk)) > left {
			chunk = chunk[:left]
		}
		n := dens.NextChunk(chunk)
		if n == 0 {
			break
		}
		if err := w.Write(chunk[:n]); err != nil {
			w.Close()
			return err
		}
		left -= int64(n)
		prog.add(n)
	}
	if err := w.Close(); err != nil {
		return err
	}
	prog.finish()
	tc.samples = prog.count()
	return nil
}

// Samples returns the length of the scan path written by Run.
func (tc *TrajectoryController) Samples() int64 { return tc.samples }
