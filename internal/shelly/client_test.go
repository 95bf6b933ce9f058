package shelly

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"lightingctl/internal/config"
	"lightingctl/internal/controller"
)

func testFleetConfig(devices ...config.Device) *config.ShellyDevices {
	return &config.ShellyDevices{
		ResponseTimeout: config.Duration(time.Second),
		RateLimitRPS:    1000,
		Devices:         devices,
	}
}

// deviceAt builds a device config pointing at an httptest server
func deviceAt(t *testing.T, ts *httptest.Server, dev config.Device) config.Device {
	t.Helper()
	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	dev.Hostname = u.Hostname()
	dev.Port = port
	return dev
}

func TestSimulatedDevice(t *testing.T) {
	ctl, err := New(testFleetConfig(config.Device{
		Name:     "sim",
		Simulate: true,
		Outputs:  []config.OutputConfig{{Name: "Porch", Group: "Outside", ID: 0}},
		Inputs:   []config.ComponentConfig{{Name: "PorchButton", ID: 0}},
	}))
	if err != nil {
		t.Fatal(err)
	}

	if err := ctl.RefreshStatus(context.Background()); err != nil {
		t.Fatalf("RefreshStatus: %v", err)
	}

	comp, err := ctl.Component(controller.KindOutput, "Porch")
	if err != nil {
		t.Fatal(err)
	}
	if !comp.Online {
		t.Error("simulated output should be online")
	}
	if comp.State {
		t.Error("simulated output should start off")
	}

	if err := ctl.SetOutput(context.Background(), "Porch", true); err != nil {
		t.Fatal(err)
	}
	comp, _ = ctl.Component(controller.KindOutput, "Porch")
	if !comp.State {
		t.Error("simulated output did not retain commanded state")
	}

	outputs := ctl.Outputs()
	if len(outputs) != 1 || outputs[0].Group != "Outside" {
		t.Errorf("outputs = %+v, want Porch in group Outside", outputs)
	}
	inputs := ctl.Inputs()
	if len(inputs) != 1 || inputs[0].Name != "PorchButton" {
		t.Errorf("inputs = %+v, want PorchButton", inputs)
	}
}

func TestRefreshStatusParsesComponents(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rpc/Shelly.GetStatus" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{
			"switch:0": {"output": true, "apower": 12.5},
			"input:1": {"state": true}
		}`))
	}))
	defer ts.Close()

	ctl, err := New(testFleetConfig(deviceAt(t, ts, config.Device{
		Name:    "porch-controller",
		Outputs: []config.OutputConfig{{Name: "Porch", ID: 0}},
		Inputs:  []config.ComponentConfig{{Name: "PorchButton", ID: 1}},
	})))
	if err != nil {
		t.Fatal(err)
	}

	if err := ctl.RefreshStatus(context.Background()); err != nil {
		t.Fatalf("RefreshStatus: %v", err)
	}

	out, err := ctl.Component(controller.KindOutput, "Porch")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Online || !out.State {
		t.Errorf("output = %+v, want online and on", out)
	}

	in, err := ctl.Component(controller.KindInput, "PorchButton")
	if err != nil {
		t.Fatal(err)
	}
	if !in.Online || !in.State {
		t.Errorf("input = %+v, want online and closed", in)
	}
}

func TestRefreshStatusMarksUnreachableOffline(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"switch:0": {"output": false}}`))
	}))
	defer ts.Close()

	ctl, err := New(testFleetConfig(
		deviceAt(t, ts, config.Device{
			Name:    "reachable",
			Outputs: []config.OutputConfig{{Name: "Porch", ID: 0}},
		}),
		config.Device{
			Name:     "unreachable",
			Hostname: "127.0.0.1",
			Port:     1, // nothing listens here
			Outputs:  []config.OutputConfig{{Name: "Garden", ID: 0}},
		},
	))
	if err != nil {
		t.Fatal(err)
	}

	// One device answered, so the refresh as a whole succeeds
	if err := ctl.RefreshStatus(context.Background()); err != nil {
		t.Fatalf("RefreshStatus: %v", err)
	}

	porch, _ := ctl.Component(controller.KindOutput, "Porch")
	if !porch.Online {
		t.Error("reachable device's output should be online")
	}
	garden, _ := ctl.Component(controller.KindOutput, "Garden")
	if garden.Online {
		t.Error("unreachable device's output should be offline")
	}
}

func TestRefreshStatusAllUnreachable(t *testing.T) {
	ctl, err := New(testFleetConfig(config.Device{
		Name:     "unreachable",
		Hostname: "127.0.0.1",
		Port:     1,
		Outputs:  []config.OutputConfig{{Name: "Porch", ID: 0}},
	}))
	if err != nil {
		t.Fatal(err)
	}

	if err := ctl.RefreshStatus(context.Background()); err == nil {
		t.Error("expected error when no device answered")
	}
}

func TestSetOutputSendsRPC(t *testing.T) {
	var gotPath string
	var gotQuery url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"was_on": false}`))
	}))
	defer ts.Close()

	ctl, err := New(testFleetConfig(deviceAt(t, ts, config.Device{
		Name:    "porch-controller",
		Outputs: []config.OutputConfig{{Name: "Porch", ID: 2}},
	})))
	if err != nil {
		t.Fatal(err)
	}

	if err := ctl.SetOutput(context.Background(), "Porch", true); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/rpc/Switch.Set" {
		t.Errorf("path = %q, want /rpc/Switch.Set", gotPath)
	}
	if gotQuery.Get("id") != "2" || gotQuery.Get("on") != "true" {
		t.Errorf("query = %v, want id=2 on=true", gotQuery)
	}
}

func TestDuplicateComponentNames(t *testing.T) {
	_, err := New(testFleetConfig(config.Device{
		Name:     "sim",
		Simulate: true,
		Outputs: []config.OutputConfig{
			{Name: "Porch", ID: 0},
			{Name: "Porch", ID: 1},
		},
	}))
	if err == nil {
		t.Error("expected error for duplicate component names")
	}
}
