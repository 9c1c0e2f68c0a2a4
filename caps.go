package evcompbasic

import "fmt"

const (
	keyAECompensationRange = "android.control.aeCompensationRange"
	keyAECompensationStep  = "android.control.aeCompensationStep"
	keyAELockAvailable     = "android.control.aeLockAvailable"
)

// EVCompensation reports whether the device supports a non-empty EV
// compensation range.
func EVCompensation(props map[string]interface{}) bool {
	v, ok := props[keyAECompensationRange]
	if !ok {
		return false
	}
	lo, hi, ok := compensationRange(v)
	if !ok {
		return false
	}
	return !(lo == 0 && hi == 0)
}

// AELock reports whether the device can lock auto-exposure.
func AELock(props map[string]interface{}) bool {
	switch v := props[keyAELockAvailable].(type) {
	case bool:
		return v
	default:
		n, ok := toFloat(v)
		return ok && n == 1
	}
}

// StepsPerEV returns how many compensation steps make up one EV. The step is
// truncated toward zero.
func StepsPerEV(props map[string]interface{}) (int, error) {
	raw, ok := props[keyAECompensationStep]
	if !ok {
		return 0, fmt.Errorf("%s missing from camera properties", keyAECompensationStep)
	}
	evPerStep, err := RationalToFloat(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", keyAECompensationStep, err)
	}
	if evPerStep <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", keyAECompensationStep, evPerStep)
	}
	return int(1.0 / evPerStep), nil
}

// EVSweep returns -2, -1, 0, +1, +2 EV expressed in compensation steps.
func EVSweep(stepsPerEV int) []int {
	if stepsPerEV < 1 {
		return nil
	}
	evs := make([]int, 0, 5)
	for ev := -2 * stepsPerEV; ev <= 2*stepsPerEV; ev += stepsPerEV {
		evs = append(evs, ev)
	}
	return evs
}

func compensationRange(v interface{}) (float64, float64, bool) {
	switch r := v.(type) {
	case []interface{}:
		if len(r) != 2 {
			return 0, 0, false
		}
		lo, ok1 := toFloat(r[0])
		hi, ok2 := toFloat(r[1])
		return lo, hi, ok1 && ok2
	case []int:
		if len(r) != 2 {
			return 0, 0, false
		}
		return float64(r[0]), float64(r[1]), true
	case []float64:
		if len(r) != 2 {
			return 0, 0, false
		}
		return r[0], r[1], true
	default:
		return 0, 0, false
	}
}
