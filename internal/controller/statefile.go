package controller

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"lightingctl/internal/config"
	"lightingctl/internal/history"
)

const (
	stateFileType = "LightingControl"
	deviceType    = "LightingController"

	// Files smaller than this cannot hold a valid state document and are
	// treated as absent rather than corrupt.
	minStateFileSize = 500
)

// PersistedState is the JSON document written to the state file every cycle.
// It doubles as the payload posted to the viewer endpoint.
type PersistedState struct {
	StateFileType     string              `json:"StateFileType"`
	LastStateSaveTime string              `json:"LastStateSaveTime"`
	DeviceType        string              `json:"DeviceType"`
	DeviceName        string              `json:"DeviceName"`
	LastStatusMessage string              `json:"LastStatusMessage"`
	Dawn              string              `json:"Dawn"` // "HH:MM"
	Dusk              string              `json:"Dusk"` // "HH:MM"
	RandomOffsets     map[string]int      `json:"RandomOffsets"`
	SwitchStates      []SwitchState       `json:"SwitchStates"`
	Schedules         []config.Schedule   `json:"Schedules"`
	SwitchEvents      []history.DayBucket `json:"SwitchEvents"`
}

// buildPersistedState assembles the current state document
func (c *Controller) buildPersistedState(statusMessage string) *PersistedState {
	return &PersistedState{
		StateFileType:     stateFileType,
		LastStateSaveTime: c.now().In(c.tz).Format(time.RFC3339),
		DeviceType:        deviceType,
		DeviceName:        c.cfg.General.AppName,
		LastStatusMessage: statusMessage,
		Dawn:              c.dawnDusk.Dawn.Format("15:04"),
		Dusk:              c.dawnDusk.Dusk.Format("15:04"),
		RandomOffsets:     c.offsetCache,
		SwitchStates:      c.switchStates,
		Schedules:         c.cfg.Schedules,
		SwitchEvents:      c.history.Days(),
	}
}

// saveState trims stale history and offsets, then writes the state file
// atomically: a temp file in the target directory renamed over the original,
// so a crash mid-write never leaves a truncated file behind. Returns the
// written snapshot so callers can reuse it for the viewer post.
func (c *Controller) saveState(statusMessage string) (*PersistedState, error) {
	now := c.now().In(c.tz)
	c.history.TrimAndSort(now, c.cfg.Files.MaxDaysSwitchChangeHistory)
	c.pruneOffsetCache()

	state := c.buildPersistedState(statusMessage)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, &PersistenceError{Path: c.statePath, Err: err}
	}

	dir := filepath.Dir(c.statePath)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return nil, &PersistenceError{Path: c.statePath, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, &PersistenceError{Path: c.statePath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, &PersistenceError{Path: c.statePath, Err: err}
	}
	if err := os.Rename(tmpName, c.statePath); err != nil {
		os.Remove(tmpName)
		return nil, &PersistenceError{Path: c.statePath, Err: err}
	}

	log.Debug().Str("path", c.statePath).Int("bytes", len(data)).Msg("State file saved")
	return state, nil
}

// LoadState reads a previously persisted state file. An absent or too-small
// file returns (nil, nil): the controller starts fresh. A present file that
// fails to parse is a fatal persistence error; starting fresh over a corrupt
// file would silently re-roll every random offset mid-day.
func LoadState(path string) (*PersistedState, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &PersistenceError{Path: path, Err: err}
	}
	if info.Size() < minStateFileSize {
		log.Warn().Str("path", path).Int64("size", info.Size()).Msg("State file too small, ignoring")
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PersistenceError{Path: path, Err: err}
	}

	var state PersistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, &PersistenceError{Path: path, Err: err}
	}

	log.Info().Str("path", path).Str("saved", state.LastStateSaveTime).Msg("Loaded saved state")
	return &state, nil
}
