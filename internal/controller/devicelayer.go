package controller

import (
	"context"

	"lightingctl/internal/config"
)

// ComponentKind selects between relay outputs and override inputs
type ComponentKind string

const (
	KindOutput ComponentKind = "output"
	KindInput  ComponentKind = "input"
)

// OutputInfo describes a known switchable output
type OutputInfo struct {
	Name  string
	Group string
}

// InputInfo describes a known override input
type InputInfo struct {
	Name string
}

// DeviceLocation is a device's reported location
type DeviceLocation struct {
	Timezone  string
	Latitude  float64
	Longitude float64
}

// Component is the live view of a single input or output
type Component struct {
	Name   string
	State  bool
	Online bool
}

// DeviceLayer is the capability the controller needs from the device fleet.
// Every method that touches the network may fail with a communication error;
// each failure is independently recoverable.
type DeviceLayer interface {
	// Outputs returns the configured outputs across all devices
	Outputs() []OutputInfo

	// Inputs returns the configured inputs across all devices
	Inputs() []InputInfo

	// DeviceLocation asks a device for its reported location
	DeviceLocation(ctx context.Context, device string) (*DeviceLocation, error)

	// RefreshStatus re-reads live component states from all devices.
	// An error means nothing usable was refreshed this cycle.
	RefreshStatus(ctx context.Context) error

	// Component returns the last refreshed state of a component
	Component(kind ComponentKind, name string) (*Component, error)

	// SetOutput commands an output on or off
	SetOutput(ctx context.Context, name string, on bool) error

	// Reconfigure rebuilds the fleet from updated configuration
	Reconfigure(cfg *config.ShellyDevices) error
}
