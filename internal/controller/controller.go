// Package controller implements the schedule evaluation and state
// reconciliation loop: it computes desired switch states from the
// configured schedules, drives the device fleet toward them, and persists
// a state snapshot every cycle.
package controller

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"

	"lightingctl/internal/config"
	"lightingctl/internal/heartbeat"
	"lightingctl/internal/history"
	"lightingctl/internal/ledger"
	"lightingctl/internal/viewer"
	"lightingctl/internal/wake"
)

// Controller owns the control loop and all per-cycle state. It is driven
// from a single goroutine; nothing here is safe for concurrent use except
// the wake signal, which exists to be poked from outside.
type Controller struct {
	cfg     *config.Config
	watcher *config.Watcher
	devices DeviceLayer
	wakeSig *wake.Signal
	ledger  *ledger.Ledger
	hb      *heartbeat.Pinger
	poster  *viewer.Poster

	tz            *time.Location
	dawnDusk      DawnDusk
	dawnDuskDate  string
	scheduleMap   map[string]string // output -> schedule name
	inputMap      map[string]string // output -> input name
	offsetCache   map[string]int    // day-scoped random offsets, minutes
	switchStates  []SwitchState
	history       *history.Log
	statePath     string
	checkInterval time.Duration

	// Injected for deterministic tests
	now     func() time.Time
	randInt func(n int) int
}

// New creates a Controller. The ledger, heartbeat pinger and poster may be
// nil; their features are then disabled.
func New(cfg *config.Config, watcher *config.Watcher, devices DeviceLayer, wakeSig *wake.Signal, lg *ledger.Ledger, hb *heartbeat.Pinger, poster *viewer.Poster) *Controller {
	return &Controller{
		cfg:         cfg,
		watcher:     watcher,
		devices:     devices,
		wakeSig:     wakeSig,
		ledger:      lg,
		hb:          hb,
		poster:      poster,
		tz:          time.UTC,
		offsetCache: make(map[string]int),
		history:     history.NewLog(),
		now:         time.Now,
		randInt:     rand.IntN,
	}
}

// initialise resolves everything derived from configuration: timezone,
// dawn/dusk, schedule and input assignments, and the persisted state from a
// previous run. Called at startup and again after every config reload.
func (c *Controller) initialise(ctx context.Context) error {
	c.statePath = c.cfg.Files.SavedStateFile
	c.checkInterval = c.cfg.General.CheckInterval.Duration()

	c.dawnDusk = c.resolveDawnDusk(ctx)
	c.dawnDuskDate = c.now().In(c.tz).Format("2006-01-02")

	scheduleMap, err := c.mapSchedulesToOutputs()
	if err != nil {
		return err
	}
	c.scheduleMap = scheduleMap
	c.inputMap = c.mapInputsToOutputs()

	saved, err := LoadState(c.statePath)
	if err != nil {
		return err
	}
	if saved != nil {
		if saved.RandomOffsets != nil {
			c.offsetCache = saved.RandomOffsets
		}
		c.history.Load(saved.SwitchEvents)
	}

	log.Info().
		Int("outputs", len(c.scheduleMap)).
		Int("schedules", len(c.cfg.Schedules)).
		Str("check_interval", c.checkInterval.String()).
		Msg("Controller initialised")

	return nil
}

// Run executes the control loop until the context is cancelled. Each cycle:
// pick up config changes, evaluate schedules, reconcile devices, persist
// state, post to the viewer, send a heartbeat, then wait for the next tick
// or an external wake.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.initialise(ctx); err != nil {
		return err
	}

	for {
		if ts, changed := c.watcher.Changed(); changed {
			if err := c.reloadConfig(ctx, ts); err != nil {
				return err
			}
		}

		// Dawn/dusk are valid for one calendar day only. Re-resolve when
		// the loop crosses midnight.
		if today := c.now().In(c.tz).Format("2006-01-02"); today != c.dawnDuskDate {
			c.dawnDusk = c.resolveDawnDusk(ctx)
			c.dawnDuskDate = today
		}

		states, err := c.evaluateSwitchStates()
		if err != nil {
			return err
		}
		c.switchStates = states

		if err := c.changeSwitchStates(ctx); err != nil {
			return err
		}
		c.trimLedger()

		snapshot, err := c.saveState("OK")
		if err != nil {
			return err
		}

		if err := c.poster.Post(ctx, snapshot); err != nil {
			log.Warn().Err(err).Msg("Failed to post state to viewer")
		}
		if err := c.hb.Ping(ctx, false); err != nil {
			log.Warn().Err(err).Msg("Failed to send heartbeat")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("Control loop stopping")
			return nil
		case <-time.After(c.checkInterval):
		case <-c.wakeSig.C():
			if p := c.wakeSig.Drain(); p != nil {
				log.Info().
					Str("id", p.ID).
					Str("component", p.Component).
					Str("event", p.Event).
					Msg("Woken by device event")
			}
		}
	}
}

// reloadConfig applies an on-disk configuration change without restarting
func (c *Controller) reloadConfig(ctx context.Context, modTime time.Time) error {
	log.Info().Str("modified", modTime.Format(time.RFC3339)).Msg("Config file changed, reloading")

	cfg, err := c.watcher.Reload()
	if err != nil {
		return configErrorf("failed to reload config: %v", err)
	}
	c.cfg = cfg

	if err := c.devices.Reconfigure(&cfg.ShellyDevices); err != nil {
		return err
	}

	return c.initialise(ctx)
}
