package controller

import (
	"context"
	"fmt"
	"time"

	"lightingctl/internal/config"
	"lightingctl/internal/history"
)

// fakeDevices is an in-memory DeviceLayer for tests
type fakeDevices struct {
	outputs    []OutputInfo
	inputs     []InputInfo
	components map[string]*Component // keyed "<kind>/<name>"
	location   *DeviceLocation
	refreshErr error
	setErr     map[string]error

	setCalls []setCall
}

type setCall struct {
	name string
	on   bool
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{
		components: make(map[string]*Component),
		setErr:     make(map[string]error),
	}
}

func (f *fakeDevices) addOutput(name, group string, on, online bool) {
	f.outputs = append(f.outputs, OutputInfo{Name: name, Group: group})
	f.components["output/"+name] = &Component{Name: name, State: on, Online: online}
}

func (f *fakeDevices) addInput(name string, on, online bool) {
	f.inputs = append(f.inputs, InputInfo{Name: name})
	f.components["input/"+name] = &Component{Name: name, State: on, Online: online}
}

func (f *fakeDevices) Outputs() []OutputInfo { return f.outputs }
func (f *fakeDevices) Inputs() []InputInfo   { return f.inputs }

func (f *fakeDevices) DeviceLocation(ctx context.Context, device string) (*DeviceLocation, error) {
	if f.location == nil {
		return nil, fmt.Errorf("no location for %q", device)
	}
	return f.location, nil
}

func (f *fakeDevices) RefreshStatus(ctx context.Context) error {
	return f.refreshErr
}

func (f *fakeDevices) Component(kind ComponentKind, name string) (*Component, error) {
	comp, ok := f.components[string(kind)+"/"+name]
	if !ok {
		return nil, fmt.Errorf("unknown %s %q", kind, name)
	}
	return comp, nil
}

func (f *fakeDevices) SetOutput(ctx context.Context, name string, on bool) error {
	if err := f.setErr[name]; err != nil {
		return err
	}
	f.setCalls = append(f.setCalls, setCall{name: name, on: on})
	if comp, ok := f.components["output/"+name]; ok {
		comp.State = on
	}
	return nil
}

func (f *fakeDevices) Reconfigure(cfg *config.ShellyDevices) error { return nil }

// newTestController builds a controller with a pinned clock and a
// deterministic random source. 2026-03-10 is a Tuesday.
func newTestController(cfg *config.Config, devices DeviceLayer) *Controller {
	if cfg == nil {
		cfg = &config.Config{}
	}
	c := New(cfg, nil, devices, nil, nil, nil, nil)
	c.now = func() time.Time {
		return time.Date(2026, 3, 10, 18, 25, 0, 0, time.UTC)
	}
	c.randInt = func(n int) int { return 0 }
	c.history = history.NewLog()
	return c
}

func strPtr(s string) *string { return &s }
