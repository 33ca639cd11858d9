package routine

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// DefaultMessage is the banner text and title used when no message is configured.
const DefaultMessage = "User-Routine"

// minTick bounds how fast pause, step-gate and await loops poll.
const minTick = 10 * time.Millisecond

// Config is the immutable configuration of one run. Durations are milliseconds.
type Config struct {
	GlobalDelay         int     `mapstructure:"globalDelay"         yaml:"globalDelay"         json:"globalDelay"`
	AwaitTimeout        int     `mapstructure:"awaitTimeout"        yaml:"awaitTimeout"        json:"awaitTimeout"`
	AwaitInterval       int     `mapstructure:"awaitInterval"       yaml:"awaitInterval"       json:"awaitInterval"`
	ContinueOnFailure   bool    `mapstructure:"continueOnFailure"   yaml:"continueOnFailure"   json:"continueOnFailure"`
	Separator           string  `mapstructure:"separator"           yaml:"separator"           json:"separator"`
	SimultaneousAllowed bool    `mapstructure:"simultaneousAllowed" yaml:"simultaneousAllowed" json:"simultaneousAllowed"`
	TutorialMode        bool    `mapstructure:"tutorialMode"        yaml:"tutorialMode"        json:"tutorialMode"`
	DisplayMessage      bool    `mapstructure:"displayMessage"      yaml:"displayMessage"      json:"displayMessage"`
	DisplayProgress     bool    `mapstructure:"displayProgress"     yaml:"displayProgress"     json:"displayProgress"`
	DisplaySpeed        float64 `mapstructure:"displaySpeed"        yaml:"displaySpeed"        json:"displaySpeed"`
	KeyboardControls    bool    `mapstructure:"keyboardControls"    yaml:"keyboardControls"    json:"keyboardControls"`
	LogCollapse         bool    `mapstructure:"logCollapse"         yaml:"logCollapse"         json:"logCollapse"`
	LogProgress         bool    `mapstructure:"logProgress"         yaml:"logProgress"         json:"logProgress"`
	LogResult           bool    `mapstructure:"logResult"           yaml:"logResult"           json:"logResult"`
	Message             string  `mapstructure:"message"             yaml:"message"             json:"message"`
	MessageAttribution  string  `mapstructure:"messageAttribution"  yaml:"messageAttribution"  json:"messageAttribution"`
}

// DefaultConfig returns the configuration used when no options are given.
func DefaultConfig() Config {
	return Config{
		GlobalDelay:        500,
		AwaitTimeout:       15000,
		Separator:          " ",
		DisplayMessage:     true,
		DisplayProgress:    true,
		DisplaySpeed:       1,
		KeyboardControls:   true,
		LogProgress:        true,
		LogResult:          true,
		Message:            DefaultMessage,
		MessageAttribution: DefaultMessage,
	}
}

// NewConfig overlays options onto the defaults. Unknown keys and values of
// the wrong type are validation errors. The returned warnings describe
// options that tutorial mode overrode.
func NewConfig(options map[string]any) (Config, []string, error) {
	cfg := DefaultConfig()
	if options == nil {
		return cfg, nil, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return cfg, nil, err
	}
	if err := dec.Decode(options); err != nil {
		return DefaultConfig(), nil, fatalErr(ErrValidation, "Options argument is not valid", err.Error())
	}

	var warnings []string
	if cfg.TutorialMode {
		if hasOption(options, "displayProgress") && !cfg.DisplayProgress {
			warnings = append(warnings, "Cannot set displayProgress to false while tutorialMode is true. Setting displayProgress to true.")
		}
		if hasOption(options, "keyboardControls") && cfg.KeyboardControls {
			warnings = append(warnings, "Cannot set keyboardControls to true while tutorialMode is true. Setting keyboardControls to false.")
		}
		cfg.DisplayProgress = true
		cfg.KeyboardControls = false
	}
	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), nil, err
	}
	return cfg, warnings, nil
}

// hasOption reports whether the caller set key. Keys coming through viper
// are lowercased, so the lookup ignores case like the decoder does.
func hasOption(options map[string]any, key string) bool {
	for k := range options {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// MergeOptions overlays override onto base without touching either. Keys
// are compared ignoring case, so an override replaces a lowercased key
// loaded by viper instead of sitting next to it.
func MergeOptions(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		for existing := range out {
			if strings.EqualFold(existing, k) {
				delete(out, existing)
			}
		}
		out[k] = v
	}
	return out
}

// Validate checks the option ranges.
func (c Config) Validate() error {
	switch {
	case c.GlobalDelay < 0:
		return fatalErr(ErrValidation, "globalDelay must not be negative", fmt.Sprint(c.GlobalDelay))
	case c.AwaitTimeout < 0:
		return fatalErr(ErrValidation, "awaitTimeout must not be negative", fmt.Sprint(c.AwaitTimeout))
	case c.AwaitInterval < 0:
		return fatalErr(ErrValidation, "awaitInterval must not be negative", fmt.Sprint(c.AwaitInterval))
	case c.Separator == "":
		return fatalErr(ErrValidation, "separator must not be empty", "")
	case c.DisplaySpeed <= 0:
		return fatalErr(ErrValidation, "displaySpeed must be positive", fmt.Sprint(c.DisplaySpeed))
	}
	return nil
}

// Delay is the pause inserted before every action.
func (c Config) Delay() time.Duration {
	return time.Duration(c.GlobalDelay) * time.Millisecond
}

// Timeout bounds await commands.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.AwaitTimeout) * time.Millisecond
}

// SubInterval is the tick used while paused or waiting at a step gate.
func (c Config) SubInterval() time.Duration {
	return max(c.Delay()/2, minTick)
}

// PollInterval is the sleep between await checks.
func (c Config) PollInterval() time.Duration {
	if c.AwaitInterval > 0 {
		return time.Duration(c.AwaitInterval) * time.Millisecond
	}
	return c.SubInterval()
}

// Title is the heading printed before progress entries.
func (c Config) Title() string {
	if c.Message == DefaultMessage {
		return "[" + DefaultMessage + "]"
	}
	return "[" + DefaultMessage + "] " + c.Message
}
