package config

import (
	"fmt"

	"github.com/taptrack/taptrack/internal/storage"
)

// Mode is the operator's online/offline preference. The controller derives
// its online decision from the mode but never overwrites the stored
// preference itself.
type Mode string

const (
	// ModeAuto - online/offline decided by connectivity.
	ModeAuto Mode = "auto"
	// ModeForceOnline - always attempt to send; failed sends still queue.
	ModeForceOnline Mode = "force_online"
	// ModeForceOffline - never send; every registered tap queues.
	ModeForceOffline Mode = "force_offline"
)

// ParseMode validates an operator-supplied mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAuto, ModeForceOnline, ModeForceOffline:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want auto, force_online, or force_offline)", s)
}

// DeviceState is the persisted operator state.
type DeviceState struct {
	Mode Mode `json:"mode"`
}

// StateStore persists DeviceState as a whole JSON document.
type StateStore struct {
	path string
}

// NewStateStore creates a store backed by the document at path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Load reads the device state, defaulting to ModeAuto when no file exists
// or the stored mode is unrecognized.
func (s *StateStore) Load() (DeviceState, error) {
	state := DeviceState{Mode: ModeAuto}
	ok, err := storage.LoadJSON(s.path, &state)
	if err != nil {
		return state, fmt.Errorf("load device state: %w", err)
	}
	if !ok {
		return state, nil
	}
	if _, err := ParseMode(string(state.Mode)); err != nil {
		state.Mode = ModeAuto
	}
	return state, nil
}

// Save persists the device state atomically.
func (s *StateStore) Save(state DeviceState) error {
	if err := storage.SaveJSON(s.path, state); err != nil {
		return fmt.Errorf("save device state: %w", err)
	}
	return nil
}
