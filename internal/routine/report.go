package routine

import (
	"errors"
	"fmt"
	"sync"
)

// Result is the report of a finished run.
type Result struct {
	Success       bool     `yaml:"success"       json:"success"`
	Log           []string `yaml:"log"           json:"log"`
	Message       string   `yaml:"message"       json:"message"`
	Configuration Config   `yaml:"configuration" json:"configuration"`
}

// reporter accumulates the append-only run log. success only ever flips
// from true to false.
type reporter struct {
	mu      sync.Mutex
	log     []string
	failed  bool
	emit    func(entry string, level Level)
	onFail func()
}

func (r *reporter) note(entry string) {
	r.mu.Lock()
	r.log = append(r.log, entry)
	r.mu.Unlock()
	r.emit(entry, LevelLog)
}

func (r *reporter) warn(entry string) {
	r.emit(entry, LevelWarn)
}

// fail records err and reports whether the run must halt.
func (r *reporter) fail(err error, continueOnFailure bool) bool {
	halt := !continueOnFailure
	var se *StepError
	if errors.As(err, &se) && se.Fatal() {
		halt = true
	}
	suffix := "Continuing execution."
	if halt {
		suffix = "Halting execution."
	}
	entry := fmt.Sprintf("FAIL: %s. %s", err.Error(), suffix)

	r.mu.Lock()
	r.log = append(r.log, entry)
	r.failed = true
	r.mu.Unlock()
	r.emit(entry, LevelError)
	if r.onFail != nil {
		r.onFail()
	}
	return halt
}

func (r *reporter) success() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.failed
}

func (r *reporter) finish(cfg Config) Result {
	success := r.success()
	r.note(fmt.Sprintf("Done, success: %t", success))

	r.mu.Lock()
	defer r.mu.Unlock()
	return Result{
		Success:       success,
		Log:           append([]string(nil), r.log...),
		Message:       cfg.Message,
		Configuration: cfg,
	}
}
