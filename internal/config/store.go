// Package config persists daemon settings as key-value files under the
// user config directory.
//
// Two files live in $XDG_CONFIG_HOME/librepods: daemon.conf holds the
// global ear-pause policy, devices.conf holds one section per device MAC
// address (colons replaced with underscores) with that device's saved
// preferences. All I/O failures are non-fatal; callers fall back to
// defaults.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"librepods/internal/airpods"
)

const (
	dirName     = "librepods"
	globalFile  = "daemon.conf"
	devicesFile = "devices.conf"

	settingsSection = "Settings"
)

// Store reads and writes the daemon's key-value files.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir, or at the default
// $XDG_CONFIG_HOME/librepods when dir is empty.
func NewStore(dir string) *Store {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			base = "."
		}
		dir = filepath.Join(base, dirName)
	}
	return &Store{dir: dir}
}

func (s *Store) ensureDir() error {
	return os.MkdirAll(s.dir, 0o755)
}

// LoadEarPauseMode reads the global ear-pause policy. Missing or invalid
// values yield the default one-out policy.
func (s *Store) LoadEarPauseMode() airpods.EarPauseMode {
	cfg, err := ini.Load(filepath.Join(s.dir, globalFile))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Failed to load config file: %v", err)
		}
		return airpods.EarPauseOneOut
	}

	mode := cfg.Section(settingsSection).Key("ear_pause_mode").MustInt(int(airpods.EarPauseOneOut))
	if mode < int(airpods.EarPauseDisabled) || mode > int(airpods.EarPauseBothOut) {
		return airpods.EarPauseOneOut
	}
	return airpods.EarPauseMode(mode)
}

// SaveEarPauseMode writes the global ear-pause policy.
func (s *Store) SaveEarPauseMode(mode airpods.EarPauseMode) error {
	if err := s.ensureDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(s.dir, globalFile)
	cfg, err := ini.Load(path)
	if err != nil {
		cfg = ini.Empty()
	}

	sec := cfg.Section(settingsSection)
	sec.Comment = "ear_pause_mode: 0=disabled, 1=pause when one removed, 2=pause when both removed"
	sec.Key("ear_pause_mode").SetValue(fmt.Sprintf("%d", int(mode)))

	if err := cfg.SaveTo(path); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// DeviceProfile is the saved per-device preference set.
type DeviceProfile struct {
	DisplayName             string
	ListeningModes          airpods.ListeningModes
	ConversationalAwareness bool
	AdaptiveLevel           int
	NoiseControlMode        airpods.NoiseMode
	HasSavedSettings        bool
}

// defaultProfile mirrors the state model's connected defaults.
func defaultProfile() DeviceProfile {
	return DeviceProfile{
		ListeningModes:   airpods.ListeningModes{Transparency: true, ANC: true, Adaptive: true},
		AdaptiveLevel:    50,
		NoiseControlMode: airpods.NoiseModeOff,
	}
}

// sectionForAddress derives the config section name for a MAC address.
func sectionForAddress(address string) string {
	return strings.ReplaceAll(address, ":", "_")
}

// LoadDeviceProfile reads the saved profile for a device. The second
// return value reports whether saved settings exist. When the device has
// no section the profile holds defaults; a section whose
// has_saved_settings flag is not set still yields its stored values.
func (s *Store) LoadDeviceProfile(address string) (DeviceProfile, bool) {
	profile := defaultProfile()

	cfg, err := ini.Load(filepath.Join(s.dir, devicesFile))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Failed to load device config: %v", err)
		}
		return profile, false
	}

	name := sectionForAddress(address)
	if !cfg.HasSection(name) {
		return profile, false
	}

	sec := cfg.Section(name)
	profile.DisplayName = sec.Key("display_name").String()
	profile.ListeningModes = airpods.ListeningModes{
		Off:          sec.Key("listening_mode_off").MustBool(false),
		Transparency: sec.Key("listening_mode_transparency").MustBool(true),
		ANC:          sec.Key("listening_mode_anc").MustBool(true),
		Adaptive:     sec.Key("listening_mode_adaptive").MustBool(true),
	}
	profile.ConversationalAwareness = sec.Key("conversational_awareness").MustBool(false)
	profile.AdaptiveLevel = sec.Key("adaptive_level").RangeInt(50, 0, 100)
	profile.NoiseControlMode = airpods.NoiseModeFromString(sec.Key("noise_control_mode").String())
	profile.HasSavedSettings = sec.Key("has_saved_settings").MustBool(false)

	return profile, profile.HasSavedSettings
}

// SaveDeviceProfile writes a device's profile, marking it as saved.
func (s *Store) SaveDeviceProfile(address string, profile DeviceProfile) error {
	if err := s.ensureDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(s.dir, devicesFile)
	cfg, err := ini.Load(path)
	if err != nil {
		cfg = ini.Empty()
	}

	sec := cfg.Section(sectionForAddress(address))
	sec.Key("display_name").SetValue(profile.DisplayName)
	sec.Key("listening_mode_off").SetValue(boolString(profile.ListeningModes.Off))
	sec.Key("listening_mode_transparency").SetValue(boolString(profile.ListeningModes.Transparency))
	sec.Key("listening_mode_anc").SetValue(boolString(profile.ListeningModes.ANC))
	sec.Key("listening_mode_adaptive").SetValue(boolString(profile.ListeningModes.Adaptive))
	sec.Key("conversational_awareness").SetValue(boolString(profile.ConversationalAwareness))
	sec.Key("adaptive_level").SetValue(fmt.Sprintf("%d", profile.AdaptiveLevel))
	sec.Key("noise_control_mode").SetValue(profile.NoiseControlMode.String())
	sec.Key("has_saved_settings").SetValue("true")

	if err := cfg.SaveTo(path); err != nil {
		return fmt.Errorf("failed to save device config: %w", err)
	}
	return nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
