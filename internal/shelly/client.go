// Package shelly talks to Shelly Gen2 devices over their local HTTP RPC
// interface and presents the fleet as a flat set of named inputs and
// outputs.
package shelly

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"lightingctl/internal/config"
	"lightingctl/internal/controller"
)

// device is the runtime view of one configured Shelly device
type device struct {
	cfg    config.Device
	online bool

	// Component states from the last refresh, keyed by component ID
	outputStates map[int]bool
	inputStates  map[int]bool
}

// componentRef locates a named component on a device
type componentRef struct {
	dev  *device
	id   int
	kind controller.ComponentKind
}

// Control implements the controller's device layer over a fleet of Shelly
// Gen2 devices. Devices flagged Simulate are held entirely in memory, which
// keeps test and development configs free of network dependencies.
type Control struct {
	mu      sync.Mutex
	client  *http.Client
	limiter *rate.Limiter
	devices []*device
	byName  map[string]componentRef
}

// New builds the fleet from configuration
func New(cfg *config.ShellyDevices) (*Control, error) {
	c := &Control{
		client: &http.Client{Timeout: cfg.ResponseTimeout.Duration()},
	}
	if err := c.Reconfigure(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// Reconfigure rebuilds the fleet from updated configuration. Live state is
// discarded; the next refresh repopulates it.
func (c *Control) Reconfigure(cfg *config.ShellyDevices) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.client = &http.Client{Timeout: cfg.ResponseTimeout.Duration()}
	c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	c.devices = nil
	c.byName = make(map[string]componentRef)

	for i := range cfg.Devices {
		dc := cfg.Devices[i]
		d := &device{
			cfg:          dc,
			outputStates: make(map[int]bool),
			inputStates:  make(map[int]bool),
		}
		if dc.Simulate {
			// Simulated devices are always reachable
			d.online = true
		}
		c.devices = append(c.devices, d)

		for _, out := range dc.Outputs {
			if _, dup := c.byName[out.Name]; dup {
				return fmt.Errorf("duplicate component name %q", out.Name)
			}
			c.byName[out.Name] = componentRef{dev: d, id: out.ID, kind: controller.KindOutput}
		}
		for _, in := range dc.Inputs {
			if _, dup := c.byName[in.Name]; dup {
				return fmt.Errorf("duplicate component name %q", in.Name)
			}
			c.byName[in.Name] = componentRef{dev: d, id: in.ID, kind: controller.KindInput}
		}
	}

	log.Info().Int("devices", len(c.devices)).Int("components", len(c.byName)).Msg("Device fleet configured")
	return nil
}

// Outputs returns the configured outputs across all devices
func (c *Control) Outputs() []controller.OutputInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	var outputs []controller.OutputInfo
	for _, d := range c.devices {
		for _, out := range d.cfg.Outputs {
			outputs = append(outputs, controller.OutputInfo{Name: out.Name, Group: out.Group})
		}
	}
	return outputs
}

// Inputs returns the configured inputs across all devices
func (c *Control) Inputs() []controller.InputInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	var inputs []controller.InputInfo
	for _, d := range c.devices {
		for _, in := range d.cfg.Inputs {
			inputs = append(inputs, controller.InputInfo{Name: in.Name})
		}
	}
	return inputs
}

// sysConfig is the subset of Sys.GetConfig we care about
type sysConfig struct {
	Location struct {
		TZ  string  `json:"tz"`
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"location"`
}

// DeviceLocation asks a device for its configured location
func (c *Control) DeviceLocation(ctx context.Context, name string) (*controller.DeviceLocation, error) {
	d := c.findDevice(name)
	if d == nil {
		return nil, fmt.Errorf("unknown device %q", name)
	}
	if d.cfg.Simulate {
		return nil, fmt.Errorf("device %q is simulated and has no location", name)
	}

	var sys sysConfig
	if err := c.rpcGet(ctx, d, "Sys.GetConfig", &sys); err != nil {
		return nil, &controller.DeviceError{Op: "Sys.GetConfig " + name, Err: err}
	}

	return &controller.DeviceLocation{
		Timezone:  sys.Location.TZ,
		Latitude:  sys.Location.Lat,
		Longitude: sys.Location.Lon,
	}, nil
}

// RefreshStatus re-reads component states from every device. A device that
// fails to answer is marked offline and its components are skipped; the
// call errors only when no device answered at all, since then there is
// nothing to reconcile against.
func (c *Control) RefreshStatus(ctx context.Context) error {
	c.mu.Lock()
	devices := make([]*device, len(c.devices))
	copy(devices, c.devices)
	c.mu.Unlock()

	if len(devices) == 0 {
		return nil
	}

	reachable := 0
	for _, d := range devices {
		if d.cfg.Simulate {
			reachable++
			continue
		}

		var status map[string]json.RawMessage
		if err := c.rpcGet(ctx, d, "Shelly.GetStatus", &status); err != nil {
			log.Warn().Err(err).Str("device", d.cfg.Name).Msg("Device unreachable")
			c.mu.Lock()
			d.online = false
			c.mu.Unlock()
			continue
		}

		c.mu.Lock()
		d.online = true
		for _, out := range d.cfg.Outputs {
			key := fmt.Sprintf("switch:%d", out.ID)
			var sw struct {
				Output bool `json:"output"`
			}
			if raw, ok := status[key]; ok && json.Unmarshal(raw, &sw) == nil {
				d.outputStates[out.ID] = sw.Output
			}
		}
		for _, in := range d.cfg.Inputs {
			key := fmt.Sprintf("input:%d", in.ID)
			var inp struct {
				State bool `json:"state"`
			}
			if raw, ok := status[key]; ok && json.Unmarshal(raw, &inp) == nil {
				d.inputStates[in.ID] = inp.State
			}
		}
		c.mu.Unlock()
		reachable++
	}

	if reachable == 0 {
		return &controller.DeviceError{Op: "Shelly.GetStatus", Err: fmt.Errorf("all %d devices unreachable", len(devices))}
	}
	return nil
}

// Component returns the last refreshed state of a named component
func (c *Control) Component(kind controller.ComponentKind, name string) (*controller.Component, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ref, ok := c.byName[name]
	if !ok || ref.kind != kind {
		return nil, fmt.Errorf("unknown %s %q", kind, name)
	}

	comp := &controller.Component{Name: name, Online: ref.dev.online}
	if kind == controller.KindOutput {
		comp.State = ref.dev.outputStates[ref.id]
	} else {
		comp.State = ref.dev.inputStates[ref.id]
	}
	return comp, nil
}

// SetOutput commands an output on or off
func (c *Control) SetOutput(ctx context.Context, name string, on bool) error {
	c.mu.Lock()
	ref, ok := c.byName[name]
	c.mu.Unlock()
	if !ok || ref.kind != controller.KindOutput {
		return fmt.Errorf("unknown output %q", name)
	}

	if ref.dev.cfg.Simulate {
		c.mu.Lock()
		ref.dev.outputStates[ref.id] = on
		c.mu.Unlock()
		log.Debug().Str("output", name).Bool("on", on).Msg("Simulated output set")
		return nil
	}

	method := fmt.Sprintf("Switch.Set?id=%d&on=%t", ref.id, on)
	if err := c.rpcGet(ctx, ref.dev, method, nil); err != nil {
		return &controller.DeviceError{Op: "Switch.Set " + name, Err: err}
	}

	c.mu.Lock()
	ref.dev.outputStates[ref.id] = on
	c.mu.Unlock()
	return nil
}

// rpcGet performs a rate-limited GET against a device's RPC endpoint and
// decodes the JSON response into out (when out is non-nil).
func (c *Control) rpcGet(ctx context.Context, d *device, method string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	port := d.cfg.Port
	if port == 0 {
		port = 80
	}
	url := fmt.Sprintf("http://%s:%d/rpc/%s", d.cfg.Hostname, port, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc %s returned %s", method, resp.Status)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Control) findDevice(name string) *device {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.devices {
		if d.cfg.Name == name {
			return d
		}
	}
	return nil
}
