// Package config loads the watcher's settings.
//
// Settings live in a JSON file that is written back with defaults filled
// in, so operators always see every knob. Environment variables override
// the file in memory only. A missing or broken file never stops startup.
package config

import (
	"log"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	goccy "github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// =============================================================================
// WATCHER SETTINGS
// =============================================================================

// Settings are the operator-facing knobs, read once at startup.
type Settings struct {
	WebhookURL         string `json:"webhook_url" env:"ADMINWATCH_WEBHOOK_URL"`
	IntervalSeconds    int    `json:"interval_seconds" env:"ADMINWATCH_INTERVAL"`
	CancelAttack       bool   `json:"cancel_attack" env:"ADMINWATCH_CANCEL_ATTACK"`
	TurretExemption    bool   `json:"turret_exemption" env:"ADMINWATCH_TURRET_EXEMPTION"`
	AttacksBefore      int    `json:"attacks_before" env:"ADMINWATCH_ATTACKS_BEFORE"`
	KickAfterAttacking bool   `json:"kick_after_attacking" env:"ADMINWATCH_KICK_AFTER_ATTACKING"`
	AttackCount        int    `json:"attack_count" env:"ADMINWATCH_ATTACK_COUNT"`
}

// DefaultSettings returns the documented defaults
func DefaultSettings() Settings {
	return Settings{
		WebhookURL:         "",
		IntervalSeconds:    15,
		CancelAttack:       true,
		TurretExemption:    true,
		AttacksBefore:      10,
		KickAfterAttacking: true,
		AttackCount:        15,
	}
}

// Normalize replaces out-of-range values with defaults
func (s *Settings) Normalize() {
	def := DefaultSettings()
	if s.IntervalSeconds < 1 {
		s.IntervalSeconds = def.IntervalSeconds
	}
	if s.AttacksBefore < 0 {
		s.AttacksBefore = def.AttacksBefore
	}
	if s.AttackCount < 0 {
		s.AttackCount = def.AttackCount
	}
}

// LoadSettings reads path. A missing file yields defaults; keys absent from
// the file keep their defaults. The returned error is informational: the
// Settings are always usable.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return settings, nil
	}
	if err != nil {
		return settings, errors.Wrapf(err, "reading %q", path)
	}

	fromFile := DefaultSettings()
	if err := goccy.Unmarshal(data, &fromFile); err != nil {
		return settings, errors.Wrapf(err, "parsing %q", path)
	}
	fromFile.Normalize()
	return fromFile, nil
}

// SaveSettings writes settings to path as indented JSON
func SaveSettings(path string, settings Settings) error {
	data, err := goccy.MarshalIndent(settings, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding settings")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating %q", dir)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "writing %q", tmp)
	}
	return errors.WithStack(os.Rename(tmp, path))
}

// ApplyEnv overlays ADMINWATCH_* variables that are set
func ApplyEnv(settings *Settings) error {
	if err := env.Parse(settings); err != nil {
		return errors.Wrap(err, "parsing environment")
	}
	settings.Normalize()
	return nil
}

// Loaded is the result of Bootstrap
type Loaded struct {
	File      Settings // what the settings file holds (defaults filled in)
	Effective Settings // File plus environment overrides
	Writable  bool     // false when the file exists but could not be parsed
}

// Save persists File again, unless the file on disk was unreadable
func (l Loaded) Save(path string) {
	if !l.Writable {
		return
	}
	if err := SaveSettings(path, l.File); err != nil {
		log.Printf("⚠️ Could not persist settings: %v", err)
	}
}

// Bootstrap loads the settings file, persists it with defaults filled in
// (unless it could not be parsed, in which case it is left for the
// operator to fix) and then applies environment overrides.
func Bootstrap(path string) Loaded {
	settings, err := LoadSettings(path)
	loaded := Loaded{File: settings, Effective: settings, Writable: err == nil}
	if err != nil {
		log.Printf("⚠️ Using default settings: %v", err)
	}
	loaded.Save(path)

	effective := settings
	if err := ApplyEnv(&effective); err != nil {
		log.Printf("⚠️ Ignoring environment overrides: %v", err)
		return loaded
	}
	loaded.Effective = effective
	return loaded
}

// =============================================================================
// PROCESS CONFIGURATION
// =============================================================================

// Process holds deployment settings, environment only.
type Process struct {
	HTTPAddr       string `env:"ADMINWATCH_HTTP_ADDR" envDefault:":8080"`
	SettingsPath   string `env:"ADMINWATCH_SETTINGS" envDefault:"adminwatch.json"`
	LogFile        string `env:"ADMINWATCH_LOG_FILE" envDefault:"logs/adminwatch.log"`
	LogMaxSizeMB   int    `env:"ADMINWATCH_LOG_MAX_SIZE_MB" envDefault:"20"`
	LogMaxBackups  int    `env:"ADMINWATCH_LOG_MAX_BACKUPS" envDefault:"5"`
	AuditFile      string `env:"ADMINWATCH_AUDIT_FILE" envDefault:"logs/audit.jsonl"`
	BridgeToken    string `env:"ADMINWATCH_BRIDGE_TOKEN"`
	DisableLogging bool   `env:"ADMINWATCH_DISABLE_REQUEST_LOG"`
}

// LoadProcess reads Process from the environment. On a parse error the
// defaults are returned along with the error.
func LoadProcess() (Process, error) {
	var p Process
	if err := env.Parse(&p); err != nil {
		def := Process{}
		_ = env.ParseWithOptions(&def, env.Options{Environment: map[string]string{}})
		return def, errors.Wrap(err, "parsing process environment")
	}
	return p, nil
}
