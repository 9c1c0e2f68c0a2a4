package evcompbasic

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"testing"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/testutils/inject"
)

// serveMockDevice answers the capture-session DoCommands the way a camera
// module would, backed by a simulated device and PNG frames.
func serveMockDevice(dev *MockDevice) func(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	var sess Session
	return func(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
		switch cmd["command"] {
		case "open_session":
			s, err := dev.Open(ctx)
			sess = s
			return map[string]interface{}{}, err
		case "get_camera_properties":
			props, err := sess.GetCameraProperties(ctx)
			return map[string]interface{}{"properties": props}, err
		case "do_3a":
			ev, _ := toFloat(cmd["ev_comp"])
			lockAE, _ := cmd["lock_ae"].(bool)
			doAF, _ := cmd["do_af"].(bool)
			return map[string]interface{}{}, sess.Do3A(ctx, Do3AOptions{EVComp: int(ev), LockAE: lockAE, DoAF: doAF})
		case "do_capture":
			raw, _ := cmd["requests"].([]interface{})
			reqs := make([]CaptureRequest, len(raw))
			for i, r := range raw {
				reqs[i] = CaptureRequest(r.(map[string]interface{}))
			}
			caps, err := sess.DoCapture(ctx, reqs)
			if err != nil {
				return nil, err
			}
			out := make([]interface{}, len(caps))
			for i, c := range caps {
				var buf bytes.Buffer
				if err := png.Encode(&buf, c.Image); err != nil {
					return nil, err
				}
				out[i] = map[string]interface{}{
					"metadata":  c.Metadata,
					"image":     base64.StdEncoding.EncodeToString(buf.Bytes()),
					"mime_type": "image/png",
				}
			}
			return map[string]interface{}{"captures": out}, nil
		case "close_session":
			return map[string]interface{}{}, sess.Close(ctx)
		default:
			return nil, fmt.Errorf("unknown command: %v", cmd["command"])
		}
	}
}

func TestCameraSession_RunsAgainstCameraModule(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dev := NewMockDevice(DefaultMockDeviceConfig())
	cam := inject.NewCamera("cam")
	cam.DoFunc = serveMockDevice(dev)

	res, err := Run(context.Background(), NewCameraSessionOpener(cam, logger), testRunOptions(t, nil), logger)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Outcome != OutcomePass {
		t.Fatalf("outcome = %s (%s), want pass", res.Outcome, res.Reason)
	}
	if res.Series.Len() != 5 {
		t.Errorf("expected 5 samples, got %d", res.Series.Len())
	}

	opens, closes, _ := dev.Stats()
	if opens != 1 || closes != 1 {
		t.Errorf("expected one open and one close, got %d/%d", opens, closes)
	}
}

func TestCameraSession_ClosedAfterCancellation(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dev := NewMockDevice(DefaultMockDeviceConfig())
	serve := serveMockDevice(dev)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Like a gRPC transport, the camera rejects commands on a done context.
	captures := 0
	cam := inject.NewCamera("cam")
	cam.DoFunc = func(c context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
		if cmd["command"] == "do_capture" {
			captures++
			if captures == 2 {
				cancel()
			}
		}
		if err := c.Err(); err != nil {
			return nil, err
		}
		return serve(c, cmd)
	}

	_, err := Run(ctx, NewCameraSessionOpener(cam, logger), testRunOptions(t, nil), logger)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if strings.Contains(err.Error(), "closing device session") {
		t.Errorf("close_session should succeed after cancellation, got %v", err)
	}

	opens, closes, _ := dev.Stats()
	if opens != 1 || closes != 1 {
		t.Errorf("expected session to be closed after cancellation, got opens=%d closes=%d", opens, closes)
	}
}

func TestCameraSession_Do3ASendsOptions(t *testing.T) {
	var got map[string]interface{}
	cam := inject.NewCamera("cam")
	cam.DoFunc = func(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
		if cmd["command"] == "do_3a" {
			got = cmd
		}
		return map[string]interface{}{}, nil
	}

	sess, err := NewCameraSessionOpener(cam, logging.NewTestLogger(t))(context.Background())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := sess.Do3A(context.Background(), Do3AOptions{EVComp: 0, LockAE: true, DoAF: false}); err != nil {
		t.Fatalf("Do3A failed: %v", err)
	}
	if got["ev_comp"] != 0 || got["lock_ae"] != true || got["do_af"] != false {
		t.Errorf("unexpected do_3a command: %v", got)
	}
}

func TestCameraSession_Errors(t *testing.T) {
	newSession := func(t *testing.T, resp map[string]interface{}) Session {
		cam := inject.NewCamera("cam")
		cam.DoFunc = func(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
			if cmd["command"] == "open_session" {
				return map[string]interface{}{}, nil
			}
			return resp, nil
		}
		sess, err := NewCameraSessionOpener(cam, logging.NewTestLogger(t))(context.Background())
		if err != nil {
			t.Fatalf("open failed: %v", err)
		}
		return sess
	}

	t.Run("open failure", func(t *testing.T) {
		cam := inject.NewCamera("cam")
		cam.DoFunc = func(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
			return nil, errors.New("camera busy")
		}
		if _, err := NewCameraSessionOpener(cam, logging.NewTestLogger(t))(context.Background()); err == nil {
			t.Error("expected error when open_session fails")
		}
	})

	t.Run("properties missing", func(t *testing.T) {
		sess := newSession(t, map[string]interface{}{})
		if _, err := sess.GetCameraProperties(context.Background()); err == nil {
			t.Error("expected error for missing properties")
		}
	})

	t.Run("captures missing", func(t *testing.T) {
		sess := newSession(t, map[string]interface{}{})
		if _, err := sess.DoCapture(context.Background(), []CaptureRequest{AutoCaptureRequest()}); err == nil {
			t.Error("expected error for missing captures")
		}
	})

	t.Run("capture without metadata", func(t *testing.T) {
		sess := newSession(t, map[string]interface{}{
			"captures": []interface{}{map[string]interface{}{"image": ""}},
		})
		if _, err := sess.DoCapture(context.Background(), []CaptureRequest{AutoCaptureRequest()}); err == nil {
			t.Error("expected error for capture without metadata")
		}
	})

	t.Run("bad image payload", func(t *testing.T) {
		sess := newSession(t, map[string]interface{}{
			"captures": []interface{}{map[string]interface{}{
				"metadata": map[string]interface{}{keyAEState: 3.0},
				"image":    "not base64!",
			}},
		})
		if _, err := sess.DoCapture(context.Background(), []CaptureRequest{AutoCaptureRequest()}); err == nil {
			t.Error("expected error for undecodable image")
		}
	})
}
