//go:build e2e

package evcompbasic

import (
	"context"
	"os"
	"testing"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/robot/client"
	"go.viam.com/utils/rpc"
)

// TestE2E_EVCompensationOnLiveCamera runs the full test against a camera on a
// live machine. It needs EVCOMP_ROBOT_ADDRESS and EVCOMP_CAMERA, and a camera
// module that implements the capture-session DoCommands.
func TestE2E_EVCompensationOnLiveCamera(t *testing.T) {
	addr := os.Getenv("EVCOMP_ROBOT_ADDRESS")
	camName := os.Getenv("EVCOMP_CAMERA")
	if addr == "" || camName == "" {
		t.Skip("EVCOMP_ROBOT_ADDRESS and EVCOMP_CAMERA not set")
	}

	logger := logging.NewTestLogger(t)
	ctx := context.Background()

	machine, err := client.New(ctx, addr, logger, client.WithDialOptions(rpc.WithInsecure()))
	if err != nil {
		t.Fatalf("dialing machine: %v", err)
	}
	defer machine.Close(ctx)

	cam, err := camera.FromRobot(machine, camName)
	if err != nil {
		t.Fatalf("getting camera: %v", err)
	}

	res, err := Run(ctx, NewCameraSessionOpener(cam, logger), RunOptions{OutputDir: t.TempDir()}, logger)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	switch res.Outcome {
	case OutcomeSkip:
		t.Skipf("device skipped: %s", res.Reason)
	case OutcomeFail:
		t.Errorf("EV compensation check failed: %s", res.Reason)
	}
}
