package evcompbasic

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	generic "go.viam.com/rdk/services/generic"
)

var EVCompensationBasic = resource.NewModel("camera-its", "scene1", "ev-compensation-basic")

func init() {
	resource.RegisterService(generic.API, EVCompensationBasic,
		resource.Registration[resource.Resource, *Config]{
			Constructor: newEVCompensationTest,
		},
	)
}

type Config struct {
	Camera          string  `json:"camera,omitempty"`
	UseMockDevice   bool    `json:"use_mock_device,omitempty"`
	OutputDir       string  `json:"output_dir,omitempty"`
	TestName        string  `json:"test_name,omitempty"`
	HTMLChart       *bool   `json:"html_chart,omitempty"`        // default: true
	MockSceneLuma   float64 `json:"mock_scene_luma,omitempty"`   // default: 0.18
	MockLockLatency *int    `json:"mock_lock_latency,omitempty"` // default: 2
	MockNeverLock   bool    `json:"mock_never_lock,omitempty"`
}

func (cfg *Config) Validate(path string) ([]string, []string, error) {
	if cfg.UseMockDevice {
		if cfg.MockSceneLuma < 0 {
			return nil, nil, fmt.Errorf("%s: mock_scene_luma must not be negative", path)
		}
		if cfg.MockLockLatency != nil && *cfg.MockLockLatency < 0 {
			return nil, nil, fmt.Errorf("%s: mock_lock_latency must not be negative", path)
		}
		return nil, nil, nil
	}
	if cfg.Camera == "" {
		return nil, nil, fmt.Errorf("%s: camera is required unless use_mock_device is set", path)
	}
	return []string{cfg.Camera}, nil, nil
}

func (cfg *Config) runOptions() RunOptions {
	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = os.TempDir()
	}
	html := true
	if cfg.HTMLChart != nil {
		html = *cfg.HTMLChart
	}
	return RunOptions{TestName: cfg.TestName, OutputDir: outputDir, HTMLChart: html}
}

func (cfg *Config) mockDeviceConfig() MockDeviceConfig {
	mc := DefaultMockDeviceConfig()
	if cfg.MockSceneLuma > 0 {
		mc.SceneLuma = cfg.MockSceneLuma
	}
	if cfg.MockLockLatency != nil {
		mc.LockLatency = *cfg.MockLockLatency
	}
	mc.NeverLock = cfg.MockNeverLock
	return mc
}

type evCompensationTest struct {
	resource.AlwaysRebuild

	name   resource.Name
	logger logging.Logger
	cfg    *Config
	opts   RunOptions
	open   SessionOpener

	mu      sync.Mutex
	running bool
	runs    int
	last    *Result
	lastErr error

	cancelCtx  context.Context
	cancelFunc func()
}

func newEVCompensationTest(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*Config](rawConf)
	if err != nil {
		return nil, err
	}

	return NewEVCompensationTest(ctx, deps, rawConf.ResourceName(), conf, logger)

}

func NewEVCompensationTest(ctx context.Context, deps resource.Dependencies, name resource.Name, conf *Config, logger logging.Logger) (resource.Resource, error) {
	var open SessionOpener
	if conf.UseMockDevice {
		dev := NewMockDevice(conf.mockDeviceConfig())
		open = dev.Open
		logger.Infof("ev-compensation-basic using simulated device (use_mock_device=true)")
	} else {
		cam, err := camera.FromDependencies(deps, conf.Camera)
		if err != nil {
			return nil, fmt.Errorf("getting camera: %w", err)
		}
		open = NewCameraSessionOpener(cam, logger)
		logger.Infof("ev-compensation-basic driving camera %q", conf.Camera)
	}

	cancelCtx, cancelFunc := context.WithCancel(context.Background())

	s := &evCompensationTest{
		name:       name,
		logger:     logger,
		cfg:        conf,
		opts:       conf.runOptions(),
		open:       open,
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
	}
	return s, nil
}

func (s *evCompensationTest) Name() resource.Name {
	return s.name
}

func (s *evCompensationTest) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	command, ok := cmd["command"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'command' field")
	}

	switch command {
	case "run":
		return s.handleRun(ctx)
	case "status":
		return s.GetState(), nil
	case "series":
		return s.handleSeries()
	default:
		return nil, fmt.Errorf("unknown command: %s", command)
	}
}

func (s *evCompensationTest) handleRun(ctx context.Context) (map[string]interface{}, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, fmt.Errorf("run already in progress")
	}
	s.running = true
	s.mu.Unlock()

	// Closing the service aborts an in-flight run.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.cancelCtx, cancel)
	defer stop()

	var report bytes.Buffer
	opts := s.opts
	opts.Report = &report
	res, err := Run(runCtx, s.open, opts, s.logger)

	s.mu.Lock()
	s.running = false
	s.runs++
	s.lastErr = err
	if res != nil {
		s.last = res
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	out := res.Readings()
	if report.Len() > 0 {
		out["report"] = report.String()
	}
	return out, nil
}

func (s *evCompensationTest) handleSeries() (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil, fmt.Errorf("no completed run")
	}
	return s.last.SeriesReadings(), nil
}

// GetState summarises the service and its most recent run.
func (s *evCompensationTest) GetState() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := "idle"
	if s.running {
		state = "running"
	}
	out := map[string]interface{}{
		"state":     state,
		"run_count": s.runs,
	}
	if s.lastErr != nil {
		out["last_error"] = s.lastErr.Error()
	}
	if s.last != nil {
		for k, v := range s.last.Readings() {
			out[k] = v
		}
	}
	return out
}

// GetSeries returns the samples of the most recent run, or nil before the
// first run.
func (s *evCompensationTest) GetSeries() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	return s.last.SeriesReadings()
}

func (s *evCompensationTest) Close(context.Context) error {
	s.cancelFunc()
	return nil
}
