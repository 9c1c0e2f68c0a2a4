package evcompbasic

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
)

const (
	// DefaultTestName names the run and its output artifacts.
	DefaultTestName = "test_ev_compensation_basic"

	// ConvergeAttempts is how many locked-AE captures are requested per EV
	// step. AE must report LOCKED in one of them.
	ConvergeAttempts = 8

	// closeTimeout bounds session teardown, which outlives the run context.
	closeTimeout = 5 * time.Second
)

// patch location used for all statistics, normalized to the frame size
const (
	patchX = 0.45
	patchY = 0.45
	patchW = 0.1
	patchH = 0.1
)

// RunOptions configures a single run.
type RunOptions struct {
	TestName  string
	OutputDir string
	HTMLChart bool
	// Report receives the human readable summary line. Nil discards it.
	Report io.Writer
}

func (o RunOptions) withDefaults() RunOptions {
	if o.TestName == "" {
		o.TestName = DefaultTestName
	}
	if o.OutputDir == "" {
		o.OutputDir = "."
	}
	if o.Report == nil {
		o.Report = io.Discard
	}
	return o
}

// PlotPath is where the luma-vs-EV PNG for a run is written.
func (o RunOptions) PlotPath() string {
	o = o.withDefaults()
	return filepath.Join(o.OutputDir, o.TestName+"_plot_means.png")
}

// ChartPath is where the HTML chart for a run is written.
func (o RunOptions) ChartPath() string {
	o = o.withDefaults()
	return filepath.Join(o.OutputDir, o.TestName+"_plot_means.html")
}

// Run opens a session, runs the EV compensation test on it and closes the
// session on every path, including cancellation of ctx. The returned error
// is reserved for device and I/O faults; a failed or skipped test is
// reported through Result.Outcome.
func Run(ctx context.Context, open SessionOpener, opts RunOptions, logger logging.Logger) (res *Result, err error) {
	opts = opts.withDefaults()

	sess, err := open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening device session: %w", err)
	}
	defer func() {
		// The session is released even when ctx was cancelled mid-run.
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if cerr := sess.Close(closeCtx); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("closing device session: %w", cerr))
		}
	}()

	return runSession(ctx, sess, opts, logger)
}

func runSession(ctx context.Context, sess Session, opts RunOptions, logger logging.Logger) (*Result, error) {
	res := &Result{
		RunID:     uuid.NewString(),
		TestName:  opts.TestName,
		StartedAt: time.Now(),
	}
	defer func() { res.Duration = time.Since(res.StartedAt) }()

	props, err := sess.GetCameraProperties(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting camera properties: %w", err)
	}
	if !(EVCompensation(props) && AELock(props)) {
		logger.Infof("%s skipped: device lacks EV compensation or AE lock", opts.TestName)
		return res.skip("device does not support EV compensation and AE lock"), nil
	}

	stepsPerEV, err := StepsPerEV(props)
	if err != nil {
		return res.fail(err.Error()), nil
	}
	if stepsPerEV < 1 {
		return res.fail(fmt.Sprintf("EV compensation step is larger than 1 EV (steps per EV = %d)", stepsPerEV)), nil
	}
	res.StepsPerEV = stepsPerEV
	evs := EVSweep(stepsPerEV)

	// AF is not triggered: very dark or bright scenes can keep it from
	// converging and sharpness does not matter here.
	if err := sess.Do3A(ctx, Do3AOptions{EVComp: 0, LockAE: true, DoAF: false}); err != nil {
		return nil, fmt.Errorf("running 3A: %w", err)
	}

	var series Series
	for _, ev := range evs {
		req := AutoCaptureRequest()
		req[keyAEExposureCompensation] = ev
		req[keyAELock] = true
		reqs := make([]CaptureRequest, ConvergeAttempts)
		for i := range reqs {
			reqs[i] = req
		}

		caps, err := sess.DoCapture(ctx, reqs)
		if err != nil {
			return nil, fmt.Errorf("capturing at EV %d: %w", ev, err)
		}

		locked := false
		for i, c := range caps {
			if !c.Locked() {
				continue
			}
			luma, rgb, err := patchStats(c)
			if err != nil {
				return nil, fmt.Errorf("extracting statistics at EV %d: %w", ev, err)
			}
			series.Append(luma, rgb)
			logger.Debugf("EV %d locked at capture %d: luma=%.4f rgb=%.4f,%.4f,%.4f",
				ev, i, luma, rgb[0], rgb[1], rgb[2])
			locked = true
			break
		}
		if !locked {
			res.EVs = evs[:series.Len()]
			res.RawSeries = series.Clone()
			return res.fail(fmt.Sprintf("AE did not lock within %d captures at EV %d", ConvergeAttempts, ev)), nil
		}
	}
	res.EVs = evs
	res.RawSeries = series.Clone()

	if err := plotMeans(opts.PlotPath(), evs, series.Lumas); err != nil {
		logger.Warnf("failed to write means plot: %v", err)
	} else {
		res.PlotPath = opts.PlotPath()
	}
	if opts.HTMLChart {
		if err := writeMeansChart(opts.ChartPath(), opts.TestName, evs, series); err != nil {
			logger.Warnf("failed to write means chart: %v", err)
		} else {
			res.ChartPath = opts.ChartPath()
		}
	}

	res.Trimmed = series.TrimSaturated()
	if res.Trimmed > 0 {
		logger.Infof("trimmed %d saturated samples from the top of the sweep", res.Trimmed)
	}
	res.Series = series

	minDiff, reason, ok := series.CheckMonotonic()
	if series.Len() >= minRetainedSamples {
		res.MinLumaDiff = minDiff
		res.HasMinDiff = true
		fmt.Fprintf(opts.Report, "Min of the luma value difference between adjacent ev comp: %v\n", minDiff)
	}
	if !ok {
		logger.Warnf("%s failed: %s", opts.TestName, reason)
		return res.fail(reason), nil
	}

	res.Outcome = OutcomePass
	logger.Infof("%s passed: %d samples, min luma diff %.4f", opts.TestName, series.Len(), minDiff)
	return res, nil
}

// patchStats returns the mean luma and mean RGB of the central patch.
func patchStats(c Capture) (float64, [3]float64, error) {
	planes, err := ConvertCaptureToPlanes(c)
	if err != nil {
		return 0, [3]float64{}, err
	}
	luma := ImageMeans(ImagePatch(planes[0], patchX, patchY, patchW, patchH))[0]

	rgbImg, err := ConvertCaptureToRGBImage(c)
	if err != nil {
		return 0, [3]float64{}, err
	}
	m := ImageMeans(ImagePatch(rgbImg, patchX, patchY, patchW, patchH))
	return luma, [3]float64{m[0], m[1], m[2]}, nil
}
