package evcompbasic

import (
	"context"
	"fmt"
	"image"
)

// Metadata keys used by the capture requests and results.
const (
	keyAEExposureCompensation = "android.control.aeExposureCompensation"
	keyAELock                 = "android.control.aeLock"
	keyAEState                = "android.control.aeState"
	keyAEMode                 = "android.control.aeMode"
	keyAWBMode                = "android.control.awbMode"
	keyAFMode                 = "android.control.afMode"
	keyControlMode            = "android.control.mode"
)

// aeStateLocked is the android.control.aeState value reported once AE is locked.
const aeStateLocked = 3

// CaptureRequest is a mutable request mapping sent to the device.
type CaptureRequest map[string]interface{}

// AutoCaptureRequest returns a request with 3A in auto mode.
func AutoCaptureRequest() CaptureRequest {
	return CaptureRequest{
		keyControlMode:            1,
		keyAEMode:                 1,
		keyAWBMode:                1,
		keyAFMode:                 1,
		keyAELock:                 false,
		keyAEExposureCompensation: 0,
	}
}

// Capture is one image/metadata pair returned for a single request.
type Capture struct {
	Metadata map[string]interface{}
	Image    image.Image
}

// AEState returns the auto-exposure state from the capture metadata, or -1
// when the key is missing or not numeric.
func (c Capture) AEState() int {
	v, ok := toFloat(c.Metadata[keyAEState])
	if !ok {
		return -1
	}
	return int(v)
}

// Locked reports whether AE was locked when the frame was captured.
func (c Capture) Locked() bool {
	return c.AEState() == aeStateLocked
}

// Do3AOptions controls the 3A convergence routine.
type Do3AOptions struct {
	EVComp int
	LockAE bool
	DoAF   bool
}

// Session is a device connection scoped to a single test run.
type Session interface {
	GetCameraProperties(ctx context.Context) (map[string]interface{}, error)
	Do3A(ctx context.Context, opts Do3AOptions) error
	DoCapture(ctx context.Context, reqs []CaptureRequest) ([]Capture, error)
	Close(ctx context.Context) error
}

// SessionOpener opens a new device session.
type SessionOpener func(ctx context.Context) (Session, error)

// RationalToFloat converts a {"numerator", "denominator"} mapping to a float.
func RationalToFloat(v interface{}) (float64, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("rational is not a mapping: %T", v)
	}
	num, ok := toFloat(m["numerator"])
	if !ok {
		return 0, fmt.Errorf("rational numerator missing or not numeric")
	}
	den, ok := toFloat(m["denominator"])
	if !ok {
		return 0, fmt.Errorf("rational denominator missing or not numeric")
	}
	if den == 0 {
		return 0, fmt.Errorf("rational denominator is zero")
	}
	return num / den, nil
}

// toFloat accepts the numeric types that show up after a DoCommand round trip
// (float64) as well as the ones built locally.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	default:
		return 0, false
	}
}
