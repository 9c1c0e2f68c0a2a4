package evcompbasic

import (
	"context"
	"errors"
	"image"
	"math"
	"sync"
)

// android.control.aeState values produced by the simulated device
const (
	aeStateInactive  = 0
	aeStateSearching = 1
)

// MockDeviceConfig describes the scene and behaviour of a simulated camera.
type MockDeviceConfig struct {
	// SceneLuma is the normalized luma of the grey scene at EV 0.
	SceneLuma float64
	// StepNumerator/StepDenominator give aeCompensationStep in EV.
	StepNumerator   int
	StepDenominator int
	// LockLatency is how many frames AE searches after an EV change.
	LockLatency int
	// NeverLock keeps AE searching forever.
	NeverLock bool
	// ChromaCb/ChromaCr offset the scene colour from neutral grey.
	ChromaCb int
	ChromaCr int

	NoEVCompensation bool
	NoAELock         bool

	Width  int
	Height int
}

// DefaultMockDeviceConfig is an 18% grey card on a device with 1/3 EV steps.
func DefaultMockDeviceConfig() MockDeviceConfig {
	return MockDeviceConfig{
		SceneLuma:       0.18,
		StepNumerator:   1,
		StepDenominator: 3,
		LockLatency:     2,
		Width:           64,
		Height:          48,
	}
}

// MockDevice simulates a camera whose brightness follows EV compensation.
type MockDevice struct {
	cfg MockDeviceConfig

	mu          sync.Mutex
	open        bool
	opens       int
	closes      int
	captures    int
	threeACalls []Do3AOptions
	ev          int
	lockAE      bool
	framesAtEV  int
}

// NewMockDevice returns a simulated device. Zero sized frames fall back to
// the defaults.
func NewMockDevice(cfg MockDeviceConfig) *MockDevice {
	def := DefaultMockDeviceConfig()
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.StepNumerator <= 0 || cfg.StepDenominator <= 0 {
		cfg.StepNumerator, cfg.StepDenominator = def.StepNumerator, def.StepDenominator
	}
	return &MockDevice{cfg: cfg}
}

// Open starts a session on the simulated device.
func (m *MockDevice) Open(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open {
		return nil, errors.New("mock device already has an open session")
	}
	m.open = true
	m.opens++
	m.ev = 0
	m.lockAE = false
	m.framesAtEV = 0
	return m, nil
}

func (m *MockDevice) GetCameraProperties(ctx context.Context) (map[string]interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return nil, errors.New("mock device session is closed")
	}
	steps := m.cfg.StepDenominator / m.cfg.StepNumerator
	props := map[string]interface{}{
		keyAECompensationStep: map[string]interface{}{
			"numerator":   float64(m.cfg.StepNumerator),
			"denominator": float64(m.cfg.StepDenominator),
		},
		keyAECompensationRange: []interface{}{float64(-4 * steps), float64(4 * steps)},
		keyAELockAvailable:     !m.cfg.NoAELock,
	}
	if m.cfg.NoEVCompensation {
		delete(props, keyAECompensationRange)
	}
	return props, nil
}

func (m *MockDevice) Do3A(ctx context.Context, opts Do3AOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return errors.New("mock device session is closed")
	}
	m.threeACalls = append(m.threeACalls, opts)
	m.ev = opts.EVComp
	m.lockAE = opts.LockAE
	m.framesAtEV = m.cfg.LockLatency
	return nil
}

func (m *MockDevice) DoCapture(ctx context.Context, reqs []CaptureRequest) ([]Capture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return nil, errors.New("mock device session is closed")
	}

	caps := make([]Capture, 0, len(reqs))
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ev := m.ev
		if v, ok := toFloat(req[keyAEExposureCompensation]); ok {
			ev = int(v)
		}
		if ev != m.ev {
			m.ev = ev
			m.framesAtEV = 0
		}
		if lock, ok := req[keyAELock].(bool); ok {
			m.lockAE = lock
		}

		state := aeStateSearching
		switch {
		case m.cfg.NeverLock:
		case !m.lockAE:
			state = aeStateInactive
		case m.framesAtEV >= m.cfg.LockLatency:
			state = aeStateLocked
		}
		m.framesAtEV++
		m.captures++

		caps = append(caps, Capture{
			Metadata: map[string]interface{}{
				keyAEState:                   float64(state),
				keyAEExposureCompensation:    float64(ev),
				"android.sensor.frameNumber": float64(m.captures),
			},
			Image: m.frame(ev),
		})
	}
	return caps, nil
}

func (m *MockDevice) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return errors.New("mock device session already closed")
	}
	m.open = false
	m.closes++
	return nil
}

// Stats reports session and capture counters.
func (m *MockDevice) Stats() (opens, closes, captures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens, m.closes, m.captures
}

// frame renders a uniform YCbCr frame for the given compensation value.
func (m *MockDevice) frame(ev int) *image.YCbCr {
	stepEV := float64(m.cfg.StepNumerator) / float64(m.cfg.StepDenominator)
	luma := m.cfg.SceneLuma * math.Pow(2, float64(ev)*stepEV)
	y := clampByte(math.Round(luma * 255))
	cb := clampByte(128 + float64(m.cfg.ChromaCb))
	cr := clampByte(128 + float64(m.cfg.ChromaCr))

	img := image.NewYCbCr(image.Rect(0, 0, m.cfg.Width, m.cfg.Height), image.YCbCrSubsampleRatio444)
	for i := range img.Y {
		img.Y[i] = y
	}
	for i := range img.Cb {
		img.Cb[i] = cb
		img.Cr[i] = cr
	}
	return img
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
