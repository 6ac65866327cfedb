package config

import (
	"encoding/json"
	"os"

	"strobe/internal/logging"
	"strobe/internal/types"
)

// Settings holds the resolved, validated configuration values. Field
// names are Go-idiomatic; the JSON keys on disk follow the dotted
// lowerCamelCase names in settingsFile.
type Settings struct {
	EventsMaxPerSession int
	TestStatusRetryMs   int64
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		EventsMaxPerSession: 200_000,
		TestStatusRetryMs:   5_000,
	}
}

// settingsFile is the on-disk shape: every field optional so a file can
// supply a partial override.
type settingsFile struct {
	EventsMaxPerSession *int   `json:"events.maxPerSession"`
	TestStatusRetryMs   *int64 `json:"test.statusRetryMs"`
}

// Resolve merges defaults, then the global settings file, then the
// project settings file, in that order. Either path may be empty, in
// which case that layer is skipped. A missing or unreadable file
// causes that layer's contribution to be silently dropped, and invalid
// JSON drops it with a logged warning (neither is a hard error) —
// out-of-range individual keys are
// likewise ignored with a logged warning, falling back to whatever
// value the settings had before that file was applied.
func Resolve(log logging.Logger, globalPath, projectPath string) Settings {
	if log == nil {
		log = logging.Nop()
	}
	settings := DefaultSettings()
	applyFile(log, &settings, globalPath)
	applyFile(log, &settings, projectPath)
	return settings
}

func applyFile(log logging.Logger, settings *Settings, path string) {
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var file settingsFile
	if err := json.Unmarshal(data, &file); err != nil {
		log.Warn("invalid settings file, ignoring", logging.F("path", path), logging.F("err", err))
		return
	}
	if file.EventsMaxPerSession != nil {
		v := *file.EventsMaxPerSession
		if v >= types.MinEventLimit && v <= types.MaxEventLimit {
			settings.EventsMaxPerSession = v
		} else {
			log.Warn("events.maxPerSession out of range, using previous value",
				logging.F("value", v), logging.F("min", types.MinEventLimit), logging.F("max", types.MaxEventLimit))
		}
	}
	if file.TestStatusRetryMs != nil {
		v := *file.TestStatusRetryMs
		if v >= 500 && v <= 60_000 {
			settings.TestStatusRetryMs = v
		} else {
			log.Warn("test.statusRetryMs out of range, using previous value", logging.F("value", v))
		}
	}
}
