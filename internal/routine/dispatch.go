package routine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/mj1618/user-routine/internal/platform"
)

// dispatch executes one action. It returns the keyword for metrics, the
// success log entry ("" for none) or the failure.
func (r *Runner) dispatch(ctx context.Context, a Action) (string, string, error) {
	if a.IsFunc() {
		entry, err := r.callback(ctx, a.fn)
		return "func", entry, err
	}
	cmd, err := ParseCommand(a.raw, r.cfg)
	if err != nil {
		return "unknown", "", err
	}
	r.logger.Debug("dispatch",
		zap.Int("step", r.step),
		zap.String("kind", cmd.Name()),
		zap.String("selector", cmd.Selector))

	var entry string
	switch cmd.Kind {
	case KindNoop:
	case KindClick:
		entry, err = r.click(ctx, cmd)
	case KindExists:
		entry, err = r.exists(ctx, cmd)
	case KindValue:
		entry, err = r.value(ctx, cmd)
	case KindFill, KindWrite, KindAppend:
		entry, err = r.input(ctx, cmd)
	case KindLog:
		entry, err = r.log(ctx, cmd)
	case KindComment:
		entry, err = r.comment(ctx, cmd)
	case KindNav:
		entry, err = r.nav(ctx, cmd)
	case KindWait:
		entry, err = r.wait(ctx, cmd)
	case KindAwait:
		entry, err = r.await(ctx, cmd)
	default:
		err = stepErr(ErrUnrecognizedCommand, "Action string keyword not recognized, got", cmd.Raw)
	}
	if err != nil && !errors.Is(err, ErrStopped) {
		var se *StepError
		if !errors.As(err, &se) {
			err = r.envFail(ctx, err)
		}
	}
	return cmd.Name(), entry, err
}

// envFail classifies an error from the document. Errors caused by a stop
// or a canceled context become ErrStopped.
func (r *Runner) envFail(ctx context.Context, err error) error {
	if r.stopRequested(ctx) {
		return ErrStopped
	}
	return envErr(err)
}

func (r *Runner) callback(ctx context.Context, fn Callback) (entry string, err error) {
	r.announce(ctx, nil, "Running provided function", StatusInfo, false)
	defer func() {
		if p := recover(); p != nil {
			err = &StepError{Kind: ErrCallback, Message: "Error running provided function", Value: fmt.Sprint(p)}
		}
	}()
	if cerr := fn(ctx); cerr != nil {
		return "", &StepError{Kind: ErrCallback, Message: "Error running provided function", Value: cerr.Error(), Err: cerr}
	}
	return "Ran provided function", nil
}

func (r *Runner) click(ctx context.Context, cmd Command) (string, error) {
	if cmd.HasText {
		el, err := ResolveSpecific(ctx, r.doc, cmd.Selector, cmd.Text)
		if err != nil {
			return "", err
		}
		if el == nil {
			return "", stepErr(ErrSelectorNotFound, "Could not find selector to click: "+cmd.Target(), "")
		}
		tag, err := el.TagName(ctx)
		if err != nil {
			return "", err
		}
		r.announce(ctx, el, fmt.Sprintf("Clicking text '%s'", cmd.Text), StatusInfo, false)
		if err := el.Click(ctx); err != nil {
			return "", err
		}
		return fmt.Sprintf("Clicked text '%s' inside %s (clicked on %s)", cmd.Text, cmd.Selector, tag), nil
	}

	el, err := ResolveOne(ctx, r.doc, cmd.Selector)
	if err != nil {
		return "", err
	}
	if el == nil {
		return "", stepErr(ErrSelectorNotFound, "CSS Selector not found", cmd.Selector)
	}
	r.announce(ctx, el, "Clicking "+cmd.Selector, StatusInfo, false)
	if err := el.Click(ctx); err != nil {
		return "", err
	}
	return "Clicked " + cmd.Selector, nil
}

func (r *Runner) exists(ctx context.Context, cmd Command) (string, error) {
	var (
		el  platform.Element
		err error
	)
	if cmd.HasText {
		el, err = ResolveSpecific(ctx, r.doc, cmd.Selector, cmd.Text)
	} else {
		el, err = ResolveOne(ctx, r.doc, cmd.Selector)
	}
	if err != nil {
		return "", err
	}

	target := cmd.Target()
	switch {
	case el != nil && !cmd.Negate:
		r.announce(ctx, el, "Confirmed exists", StatusInfo, false)
		return "Confirmed exists: " + target, nil
	case el == nil && !cmd.Negate:
		return "", stepErr(ErrAssertion, "Did not exist: "+target, "")
	case el != nil:
		r.blame(el)
		return "", stepErr(ErrAssertion, "Incorrectly exists: "+target, "")
	default:
		return "Confirmed does not exist: " + target, nil
	}
}

func (r *Runner) value(ctx context.Context, cmd Command) (string, error) {
	el, err := ResolveOne(ctx, r.doc, cmd.Selector)
	if err != nil {
		return "", err
	}
	if el == nil {
		return "", stepErr(ErrSelectorNotFound, "CSS Selector not found", cmd.Selector)
	}
	v, ok, err := el.Value(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		tag, err := el.TagName(ctx)
		if err != nil {
			return "", err
		}
		return "", stepErr(ErrAssertion, fmt.Sprintf("Element %s (%s) did not have a value attribute", cmd.Selector, tag), "")
	}

	if !cmd.HasText {
		if v == "" {
			return "", stepErr(ErrAssertion, fmt.Sprintf("Element '%s' did not have a value", cmd.Selector), "")
		}
		r.announce(ctx, el, "Has a value", StatusInfo, false)
		return fmt.Sprintf("Element '%s' had a value ('%s')", cmd.Selector, v), nil
	}
	if v != cmd.Text {
		r.blame(el)
		return "", stepErr(ErrAssertion, fmt.Sprintf("Element '%s' has an incorrect value, expected '%s' but saw '%s'", cmd.Selector, cmd.Text, v), "")
	}
	r.announce(ctx, el, "Correct value", StatusInfo, false)
	return fmt.Sprintf("Element '%s' has the correct value: '%s'", cmd.Selector, v), nil
}

// input handles fill, write and append.
func (r *Runner) input(ctx context.Context, cmd Command) (string, error) {
	el, err := ResolveOne(ctx, r.doc, cmd.Selector)
	if err != nil {
		return "", err
	}
	if el == nil {
		return "", stepErr(ErrSelectorNotFound, "CSS Selector not found", cmd.Selector)
	}

	switch cmd.Kind {
	case KindFill:
		r.announce(ctx, el, "Filling value", StatusInfo, false)
		if err := el.SetValue(ctx, cmd.Text); err != nil {
			return "", err
		}
		return fmt.Sprintf("Filled the value of %s to '%s'", cmd.Selector, cmd.Text), nil
	case KindWrite:
		r.announce(ctx, el, "Writing text", StatusInfo, false)
		if err := el.SetText(ctx, cmd.Text); err != nil {
			return "", err
		}
		return fmt.Sprintf("Wrote '%s' over %s", cmd.Text, cmd.Selector), nil
	default:
		r.announce(ctx, el, "Appending text", StatusInfo, false)
		if err := el.AppendText(ctx, cmd.Text); err != nil {
			return "", err
		}
		return fmt.Sprintf("Appended '%s' to %s", cmd.Text, cmd.Selector), nil
	}
}

func (r *Runner) log(ctx context.Context, cmd Command) (string, error) {
	r.state.resetAdvance()
	r.announce(ctx, nil, cmd.Text, StatusInfo, r.cfg.TutorialMode)
	if r.cfg.TutorialMode {
		if err := r.gate(ctx); err != nil {
			return "", err
		}
	}
	return cmd.Text, nil
}

func (r *Runner) comment(ctx context.Context, cmd Command) (string, error) {
	el, err := ResolveOne(ctx, r.doc, cmd.Selector)
	if err != nil {
		return "", err
	}
	if el == nil {
		return "", stepErr(ErrSelectorNotFound, "CSS Selector not found", cmd.Selector)
	}
	r.state.resetAdvance()
	r.announce(ctx, el, cmd.Text, StatusInfo, r.cfg.TutorialMode)
	if r.cfg.TutorialMode {
		if err := r.gate(ctx); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("Commented on %s: '%s'", cmd.Selector, cmd.Text), nil
}

func (r *Runner) nav(ctx context.Context, cmd Command) (string, error) {
	r.announce(ctx, nil, "Navigating to "+cmd.Text, StatusInfo, false)
	if err := r.doc.Navigate(ctx, cmd.Text); err != nil {
		return "", err
	}
	return "Navigated to " + cmd.Text, nil
}

func (r *Runner) wait(ctx context.Context, cmd Command) (string, error) {
	entry := fmt.Sprintf("Waiting %s second(s)", seconds(cmd.Wait.Milliseconds()))
	r.announce(ctx, nil, entry, StatusInfo, false)
	if err := r.sleep(ctx, cmd.Wait); err != nil {
		return "", err
	}
	return entry, nil
}

func (r *Runner) await(ctx context.Context, cmd Command) (string, error) {
	target := cmd.Target()
	msg := "Awaiting " + target
	if cmd.Negate {
		msg += " to not exist"
	}
	msg += "..."
	r.logger.Info(msg, zap.Int("step", r.step))
	r.announce(ctx, nil, msg, StatusInfo, false)

	var found platform.Element
	cond := func(ctx context.Context) (bool, error) {
		var err error
		if cmd.HasText {
			found, err = firstContaining(ctx, r.doc, cmd.Selector, cmd.Text)
		} else {
			found, err = ResolveOne(ctx, r.doc, cmd.Selector)
		}
		return found != nil, err
	}
	met, err := Await(ctx, cond, r.cfg.Timeout(), r.cfg.PollInterval(), cmd.Negate, r.sleep)
	if err != nil {
		return "", err
	}

	switch {
	case met && !cmd.Negate:
		r.announce(ctx, found, "Found", StatusInfo, false)
		return "...Found " + target, nil
	case !cmd.Negate:
		return "", stepErr(ErrTimeout, fmt.Sprintf("Timed out after %s second(s) awaiting %s", seconds(int64(r.cfg.AwaitTimeout)), target), "")
	case met:
		return "..." + target + " disappeared", nil
	default:
		return "", stepErr(ErrTimeout, "...Timed out awaiting "+target+" to not exist", "")
	}
}

func seconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', -1, 64)
}
