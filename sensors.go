package evcompbasic

import (
	"context"
	"fmt"

	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
)

var (
	// ResultSensor reports the state and verdict of the latest run.
	ResultSensor = resource.NewModel("camera-its", "scene1", "result-sensor")
	// SeriesSensor reports the per-EV samples of the latest run, so they can
	// be picked up by data capture.
	SeriesSensor = resource.NewModel("camera-its", "scene1", "series-sensor")
)

func init() {
	resource.RegisterComponent(sensor.API, ResultSensor,
		resource.Registration[sensor.Sensor, *SensorConfig]{
			Constructor: newResultSensor,
		},
	)
	resource.RegisterComponent(sensor.API, SeriesSensor,
		resource.Registration[sensor.Sensor, *SensorConfig]{
			Constructor: newSeriesSensor,
		},
	)
}

// SensorConfig is shared by both sensor models.
type SensorConfig struct {
	Controller string `json:"controller"`
}

func (cfg *SensorConfig) Validate(path string) ([]string, []string, error) {
	if cfg.Controller == "" {
		return nil, nil, fmt.Errorf("%s: controller is required", path)
	}
	// Return full resource name so Viam knows this is a generic service dependency
	dep := resource.NewName(resource.APINamespaceRDK.WithServiceType("generic"), cfg.Controller)
	return []string{dep.String()}, nil, nil
}

type stateProvider interface {
	GetState() map[string]interface{}
}

type seriesProvider interface {
	GetSeries() map[string]interface{}
}

// controllerSensor serves Readings from a func bound to the test service.
type controllerSensor struct {
	resource.AlwaysRebuild

	name     resource.Name
	logger   logging.Logger
	readings func() map[string]interface{}
}

func newResultSensor(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (sensor.Sensor, error) {
	ctrl, controller, err := controllerFromConfig(deps, rawConf)
	if err != nil {
		return nil, err
	}
	provider, ok := ctrl.(stateProvider)
	if !ok {
		return nil, fmt.Errorf("controller %q does not implement GetState", controller)
	}
	return &controllerSensor{
		name:     rawConf.ResourceName(),
		logger:   logger,
		readings: provider.GetState,
	}, nil
}

func newSeriesSensor(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (sensor.Sensor, error) {
	ctrl, controller, err := controllerFromConfig(deps, rawConf)
	if err != nil {
		return nil, err
	}
	provider, ok := ctrl.(seriesProvider)
	if !ok {
		return nil, fmt.Errorf("controller %q does not implement GetSeries", controller)
	}
	return &controllerSensor{
		name:     rawConf.ResourceName(),
		logger:   logger,
		readings: seriesReadings(provider),
	}, nil
}

// seriesReadings reports an empty series until the first run completes.
func seriesReadings(p seriesProvider) func() map[string]interface{} {
	return func() map[string]interface{} {
		if series := p.GetSeries(); series != nil {
			return series
		}
		return map[string]interface{}{"sample_count": 0}
	}
}

func controllerFromConfig(deps resource.Dependencies, rawConf resource.Config) (resource.Resource, string, error) {
	conf, err := resource.NativeConfig[*SensorConfig](rawConf)
	if err != nil {
		return nil, "", err
	}
	controllerName := resource.NewName(resource.APINamespaceRDK.WithServiceType("generic"), conf.Controller)
	ctrl, ok := deps[controllerName]
	if !ok {
		return nil, "", fmt.Errorf("controller %q not found in dependencies", conf.Controller)
	}
	return ctrl, conf.Controller, nil
}

func (s *controllerSensor) Name() resource.Name {
	return s.name
}

func (s *controllerSensor) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	return s.readings(), nil
}

func (s *controllerSensor) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return nil, fmt.Errorf("DoCommand not supported on sensor %q", s.name.Name)
}

func (s *controllerSensor) Close(context.Context) error {
	return nil
}
