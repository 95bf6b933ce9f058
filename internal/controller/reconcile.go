package controller

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"lightingctl/internal/ledger"
)

// changeSwitchStates drives the physical outputs toward the evaluated
// desired states. A total status refresh failure aborts the pass (nothing
// trustworthy to reconcile against); per-output problems are logged and
// skipped so one bad device never blocks the rest.
func (c *Controller) changeSwitchStates(ctx context.Context) error {
	if err := c.devices.RefreshStatus(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to refresh device status, skipping reconciliation")
		return nil
	}

	for i := range c.switchStates {
		st := &c.switchStates[i]

		comp, err := c.devices.Component(KindOutput, st.Switch)
		if err != nil {
			log.Error().Err(err).Str("switch", st.Switch).Msg("Failed to read output state")
			continue
		}
		if !comp.Online {
			log.Debug().Str("switch", st.Switch).Msg("Output offline, skipping")
			continue
		}

		// Input override: a closed input forces the output ON for as long
		// as the input stays closed, regardless of the schedule.
		if inputName := c.inputMap[st.Switch]; inputName != "" {
			input, err := c.devices.Component(KindInput, inputName)
			if err != nil {
				log.Error().Err(err).Str("input", inputName).Msg("Failed to read input state")
			} else if input.Online {
				st.Input = &inputName
				inputState := StateOff
				if input.State {
					inputState = StateOn
				}
				st.InputState = &inputState

				if input.State {
					// The override's verdict is decided regardless of
					// whether the command lands; a failed command is
					// retried next cycle.
					st.State = StateOn
					if !comp.State {
						if err := c.devices.SetOutput(ctx, st.Switch, true); err != nil {
							log.Error().Err(err).Str("switch", st.Switch).Msg("Failed to turn switch on")
							continue
						}
						log.Info().
							Str("switch", st.Switch).
							Str("input", inputName).
							Msg("Input override, switch turned on")
						c.recordSwitchEvent(st.Switch, StateOn, ledger.CauseInput, inputName)
					}
					continue
				}
			}
		}

		desired := st.State == StateOn
		if comp.State == desired {
			continue
		}

		if err := c.devices.SetOutput(ctx, st.Switch, desired); err != nil {
			log.Error().Err(err).Str("switch", st.Switch).Str("state", st.State).Msg("Failed to change switch state")
			continue
		}
		log.Info().
			Str("switch", st.Switch).
			Str("schedule", st.Schedule).
			Str("state", st.State).
			Msg("Switch state changed")
		c.recordSwitchEvent(st.Switch, st.State, ledger.CauseSchedule, st.Schedule)
	}

	return nil
}

// recordSwitchEvent writes a transition to the in-memory day history (which
// lands in the state file) and, best effort, to the SQLite ledger.
func (c *Controller) recordSwitchEvent(switchName, state string, causeType ledger.CauseType, cause string) {
	now := c.now().In(c.tz)

	var scheduleName, inputName *string
	switch causeType {
	case ledger.CauseSchedule:
		scheduleName = &cause
	case ledger.CauseInput:
		inputName = &cause
	}
	c.history.Record(now, switchName, state, scheduleName, inputName)

	if c.ledger != nil {
		if err := c.ledger.Record(now, switchName, state, causeType, cause); err != nil {
			log.Warn().Err(err).Str("switch", switchName).Msg("Failed to record switch event in ledger")
		}
	}
}

// trimLedger prunes ledger rows older than the configured history window
func (c *Controller) trimLedger() {
	if c.ledger == nil {
		return
	}
	retention := time.Duration(c.cfg.Files.MaxDaysSwitchChangeHistory) * 24 * time.Hour
	deleted, err := c.ledger.DeleteOlderThan(retention)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to trim switch ledger")
		return
	}
	if deleted > 0 {
		log.Debug().Int64("deleted", deleted).Msg("Trimmed switch ledger")
	}
}
