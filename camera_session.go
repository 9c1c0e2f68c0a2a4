package evcompbasic

import (
	"context"
	"encoding/base64"
	"fmt"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/rimage"
	"go.viam.com/rdk/utils"
)

// Commander is the part of a camera resource used to drive a capture session.
type Commander interface {
	DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error)
}

// cameraSession drives a real device through its camera component's
// DoCommand interface.
type cameraSession struct {
	cam    Commander
	logger logging.Logger
}

// NewCameraSessionOpener returns an opener that starts a capture session on cam.
func NewCameraSessionOpener(cam Commander, logger logging.Logger) SessionOpener {
	return func(ctx context.Context) (Session, error) {
		if _, err := cam.DoCommand(ctx, map[string]interface{}{"command": "open_session"}); err != nil {
			return nil, fmt.Errorf("open_session: %w", err)
		}
		return &cameraSession{cam: cam, logger: logger}, nil
	}
}

func (s *cameraSession) GetCameraProperties(ctx context.Context) (map[string]interface{}, error) {
	resp, err := s.cam.DoCommand(ctx, map[string]interface{}{"command": "get_camera_properties"})
	if err != nil {
		return nil, fmt.Errorf("get_camera_properties: %w", err)
	}
	props, ok := resp["properties"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("get_camera_properties: response missing %q mapping", "properties")
	}
	return props, nil
}

func (s *cameraSession) Do3A(ctx context.Context, opts Do3AOptions) error {
	_, err := s.cam.DoCommand(ctx, map[string]interface{}{
		"command": "do_3a",
		"ev_comp": opts.EVComp,
		"lock_ae": opts.LockAE,
		"do_af":   opts.DoAF,
	})
	if err != nil {
		return fmt.Errorf("do_3a: %w", err)
	}
	return nil
}

func (s *cameraSession) DoCapture(ctx context.Context, reqs []CaptureRequest) ([]Capture, error) {
	wire := make([]interface{}, len(reqs))
	for i, r := range reqs {
		wire[i] = map[string]interface{}(r)
	}
	resp, err := s.cam.DoCommand(ctx, map[string]interface{}{
		"command":  "do_capture",
		"requests": wire,
	})
	if err != nil {
		return nil, fmt.Errorf("do_capture: %w", err)
	}

	raw, ok := resp["captures"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("do_capture: response missing %q list", "captures")
	}
	if len(raw) != len(reqs) {
		s.logger.Warnf("do_capture returned %d captures for %d requests", len(raw), len(reqs))
	}

	caps := make([]Capture, 0, len(raw))
	for i, item := range raw {
		c, err := decodeCapture(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("do_capture: capture %d: %w", i, err)
		}
		caps = append(caps, c)
	}
	return caps, nil
}

func (s *cameraSession) Close(ctx context.Context) error {
	if _, err := s.cam.DoCommand(ctx, map[string]interface{}{"command": "close_session"}); err != nil {
		return fmt.Errorf("close_session: %w", err)
	}
	return nil
}

func decodeCapture(ctx context.Context, item interface{}) (Capture, error) {
	m, ok := item.(map[string]interface{})
	if !ok {
		return Capture{}, fmt.Errorf("capture is not a mapping: %T", item)
	}
	md, ok := m["metadata"].(map[string]interface{})
	if !ok {
		return Capture{}, fmt.Errorf("capture missing metadata")
	}
	encoded, ok := m["image"].(string)
	if !ok {
		return Capture{}, fmt.Errorf("capture missing image")
	}
	mimeType, _ := m["mime_type"].(string)
	if mimeType == "" {
		mimeType = utils.MimeTypeJPEG
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Capture{}, fmt.Errorf("decoding image payload: %w", err)
	}
	img, err := rimage.DecodeImage(ctx, data, mimeType)
	if err != nil {
		return Capture{}, fmt.Errorf("decoding %s image: %w", mimeType, err)
	}
	return Capture{Metadata: md, Image: img}, nil
}
