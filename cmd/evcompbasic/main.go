// Command evcompbasic runs the EV compensation basic test once and exits with
// 0 on pass or skip, 1 on failure and 2 when the run could not complete.
//
// It takes no flags. EVCOMP_ROBOT_ADDRESS and EVCOMP_CAMERA select a camera on
// a live machine (EVCOMP_API_KEY_ID/EVCOMP_API_KEY authenticate); without an
// address the simulated device is used. EVCOMP_OUTPUT_DIR sets where the plot
// goes and EVCOMP_LOG_LEVEL=debug turns on per-EV logging.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"evcompbasic"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/robot/client"
	"go.viam.com/utils/rpc"
)

func main() {
	os.Exit(run())
}

func run() int {
	var logger logging.Logger
	if strings.EqualFold(os.Getenv("EVCOMP_LOG_LEVEL"), "debug") {
		logger = logging.NewDebugLogger("evcompbasic")
	} else {
		logger = logging.NewLogger("evcompbasic")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	open, closeDevice, err := deviceOpener(ctx, logger)
	if err != nil {
		logger.Errorf("connecting to device: %v", err)
		return 2
	}
	defer closeDevice()

	res, err := evcompbasic.Run(ctx, open, evcompbasic.RunOptions{
		TestName:  evcompbasic.DefaultTestName,
		OutputDir: os.Getenv("EVCOMP_OUTPUT_DIR"),
		HTMLChart: true,
		Report:    os.Stdout,
	}, logger)
	if err != nil {
		logger.Errorf("%s: %v", evcompbasic.DefaultTestName, err)
		return 2
	}

	switch res.Outcome {
	case evcompbasic.OutcomePass:
		fmt.Printf("%s: PASS\n", res.TestName)
		return 0
	case evcompbasic.OutcomeSkip:
		fmt.Printf("%s: SKIP (%s)\n", res.TestName, res.Reason)
		return 0
	default:
		fmt.Printf("%s: FAIL (%s)\n", res.TestName, res.Reason)
		return 1
	}
}

func deviceOpener(ctx context.Context, logger logging.Logger) (evcompbasic.SessionOpener, func(), error) {
	addr := os.Getenv("EVCOMP_ROBOT_ADDRESS")
	if addr == "" {
		logger.Infof("EVCOMP_ROBOT_ADDRESS not set, using simulated device")
		dev := evcompbasic.NewMockDevice(evcompbasic.DefaultMockDeviceConfig())
		return dev.Open, func() {}, nil
	}

	camName := os.Getenv("EVCOMP_CAMERA")
	if camName == "" {
		return nil, nil, fmt.Errorf("EVCOMP_CAMERA is required with EVCOMP_ROBOT_ADDRESS")
	}

	dialOpt := rpc.WithInsecure()
	if keyID := os.Getenv("EVCOMP_API_KEY_ID"); keyID != "" {
		dialOpt = rpc.WithEntityCredentials(keyID, rpc.Credentials{
			Type:    rpc.CredentialsTypeAPIKey,
			Payload: os.Getenv("EVCOMP_API_KEY"),
		})
	}
	machine, err := client.New(ctx, addr, logger, client.WithDialOptions(dialOpt))
	if err != nil {
		return nil, nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	closeMachine := func() {
		if err := machine.Close(context.Background()); err != nil {
			logger.Warnf("closing machine connection: %v", err)
		}
	}

	cam, err := camera.FromRobot(machine, camName)
	if err != nil {
		closeMachine()
		return nil, nil, fmt.Errorf("getting camera %q: %w", camName, err)
	}
	return evcompbasic.NewCameraSessionOpener(cam, logger), closeMachine, nil
}
