// Package runner interprets plans: it walks the ordered steps, dispatches
// each by action to the browser session and the rule table, accumulates a
// log trail and assembles a best-effort result. Step-local failures are
// logged and skipped; only session acquisition failures and navigation
// failures past the retry budget abort a plan.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/webrunner/webrunner/config"
	"github.com/webrunner/webrunner/log"
	"github.com/webrunner/webrunner/rules"
)

const readySelectorTimeout = 20 * time.Second

// Runner executes plans. It is safe for concurrent use; every Execute call
// owns its own session.
type Runner struct {
	cfg    *config.Config
	opener SessionOpener
	table  *rules.Table
}

func New(cfg *config.Config, opener SessionOpener, table *rules.Table) *Runner {
	return &Runner{cfg: cfg, opener: opener, table: table}
}

// RunResult carries the full log trail, the last successful extraction and,
// when the plan aborted, the fatal error.
type RunResult struct {
	Logs   []string     `json:"logs"`
	Result []rules.Item `json:"result"`
	Err    error        `json:"-"`
}

// trail is the append-only step log, mirrored line by line to slog.
type trail struct {
	logger *slog.Logger
	lines  []string
}

func (t *trail) logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	t.logger.Info(line)
	t.lines = append(t.lines, line)
}

// outcome is what every step handler returns. A nil err means the step
// succeeded; fatal marks the error as plan-aborting.
type outcome struct {
	err   error
	fatal bool
}

func stepOK() outcome              { return outcome{} }
func stepFailed(err error) outcome { return outcome{err: err} }
func planFatal(err error) outcome  { return outcome{err: err, fatal: true} }

// Execute runs the whole plan against one fresh browser session. It never
// panics across its boundary and always returns the accumulated logs; the
// session is closed on every exit path.
func (r *Runner) Execute(ctx context.Context, plan Plan) *RunResult {
	runID := uuid.NewString()[:8]
	logger := log.LoggerFromContext(ctx).With(slog.String("run", runID))
	ctx = log.ContextWithLogger(ctx, logger)

	if r.cfg.PlanBudgetMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.PlanBudget())
		defer cancel()
	}

	t := &trail{logger: logger}
	res := &RunResult{Result: []rules.Item{}}
	defer func() { res.Logs = t.lines }()

	if r.cfg.Proxy.Enabled() {
		t.logf("launching chrome with proxy %s...", r.cfg.Proxy.ServerURL())
	} else {
		t.logf("launching chrome...")
	}
	sess, err := r.opener.NewSession(ctx, false)
	if err != nil {
		err = fmt.Errorf("failed to launch browser: %w", err)
		t.logf("FATAL: %v", err)
		res.Err = err
		return res
	}
	defer func() { sess.Close() }()

	t.logf("plan contains %d steps", len(plan))

	for i, step := range plan {
		t.logf("--- step %d/%d ---", i+1, len(plan))
		if raw, merr := json.Marshal(step); merr == nil {
			t.logf("%s", raw)
		}

		out := r.runStep(ctx, t, &sess, step, res)
		if out.err != nil {
			if out.fatal {
				t.logf("FATAL: %v", out.err)
				res.Err = out.err
				return res
			}
			t.logf("step %d failed: %v (continuing)", i+1, out.err)
		}
		if ctx.Err() != nil {
			err := fmt.Errorf("plan budget exceeded: %w", ctx.Err())
			t.logf("FATAL: %v", err)
			res.Err = err
			return res
		}
	}
	return res
}

func (r *Runner) runStep(ctx context.Context, t *trail, sess *PageSession, step Step, res *RunResult) outcome {
	switch step.Action {
	case ActionOpenPage:
		return r.openPage(ctx, t, sess, step)
	case ActionWait:
		ms := step.waitMillis()
		t.logf("waiting %dms", ms)
		return r.sleep(ctx, ms)
	case ActionClick:
		if step.Selector == "" {
			return stepFailed(errors.New("click step is missing its selector"))
		}
		t.logf("clicking %s", step.Selector)
		if err := (*sess).Click(ctx, step.Selector); err != nil {
			return stepFailed(fmt.Errorf("click %s: %w", step.Selector, err))
		}
		return stepOK()
	case ActionType:
		if step.Selector == "" {
			return stepFailed(errors.New("type step is missing its selector"))
		}
		if step.Text == "" {
			return stepFailed(errors.New("type step is missing its text"))
		}
		t.logf("typing into %s", step.Selector)
		if err := (*sess).Type(ctx, step.Selector, step.Text); err != nil {
			return stepFailed(fmt.Errorf("type into %s: %w", step.Selector, err))
		}
		return stepOK()
	case ActionExtractList:
		return r.extractList(ctx, t, *sess, step, res)
	default:
		t.logf("unknown action %q, skipping", step.Action)
		return stepOK()
	}
}

// openPage navigates with a bounded timeout, then lets client-side
// rendering settle and triggers a scroll pass. When a proxy is configured
// and navigation fails, the session is swapped once for a direct one.
func (r *Runner) openPage(ctx context.Context, t *trail, sess *PageSession, step Step) outcome {
	if step.URL == "" {
		return stepFailed(errors.New("open_page step is missing its url"))
	}
	t.logf("opening page: %s", step.URL)

	err := (*sess).Navigate(ctx, step.URL, r.cfg.NavTimeout())
	if err != nil && r.cfg.Proxy.Enabled() {
		t.logf("navigation through proxy failed (%v), retrying without proxy", err)
		(*sess).Close()
		direct, derr := r.opener.NewSession(ctx, true)
		if derr != nil {
			return planFatal(fmt.Errorf("failed to relaunch browser without proxy: %w", derr))
		}
		*sess = direct
		err = direct.Navigate(ctx, step.URL, r.cfg.NavTimeout())
	}
	if err != nil {
		return planFatal(fmt.Errorf("failed to open %s: %w", step.URL, err))
	}

	if r.cfg.NavWait == "ready" {
		if !(*sess).WaitReady(ctx, r.cfg.NavTimeout()) {
			t.logf("document never reached readyState complete, continuing with current state")
		}
	}
	if out := r.sleep(ctx, r.cfg.SettleDelayMS); out.err != nil {
		return out
	}
	t.logf("auto scrolling...")
	(*sess).AutoScroll(ctx, r.cfg.ScrollIterations)
	return stepOK()
}

// extractList resolves a rule from the current url (or the step's explicit
// selector/target), waits for the rule's ready selector and runs the
// extraction. Each successful extract overwrites the plan's running result.
func (r *Runner) extractList(ctx context.Context, t *trail, sess PageSession, step Step, res *RunResult) outcome {
	t.logf("extracting list...")
	pageURL, err := sess.CurrentURL(ctx)
	if err != nil {
		return stepFailed(fmt.Errorf("could not determine current url: %w", err))
	}

	rule := r.resolveRule(t, step, pageURL)
	t.logf("%s extractor active", rule.Name)

	// final scroll pass to flush lazy-loaded content
	sess.AutoScroll(ctx, rule.ScrollIterations)
	if out := r.sleep(ctx, r.cfg.ExtractSettleMS); out.err != nil {
		return out
	}

	if rule.ReadySelector != "" {
		if !sess.WaitVisible(ctx, rule.ReadySelector, readySelectorTimeout) {
			t.logf("ready selector %q did not appear, extracting anyway", rule.ReadySelector)
		}
	}

	var items []rules.Item
	if rule.InPage() {
		if err := sess.Evaluate(ctx, rule.Script, &items); err != nil {
			return stepFailed(fmt.Errorf("in-page extraction failed: %w", err))
		}
	} else {
		htmlStr, err := sess.OuterHTML(ctx)
		if err != nil {
			return stepFailed(fmt.Errorf("could not capture page content: %w", err))
		}
		items, err = rules.ExtractFromHTML(htmlStr, pageURL, rule)
		if err != nil {
			return stepFailed(fmt.Errorf("extraction failed: %w", err))
		}
	}

	items = rules.Sanitize(items, step.resolveLimit(r.cfg.ExtractLimit))
	if len(items) == 0 {
		t.logf("extracted 0 items (rule %s matched nothing)", rule.Name)
	} else {
		t.logf("extracted %d items", len(items))
	}
	res.Result = items
	return stepOK()
}

func (r *Runner) resolveRule(t *trail, step Step, pageURL string) rules.Rule {
	if step.Selector != "" {
		return rules.Generic(step.Selector)
	}
	if step.Target != "" {
		if rule, ok := rules.ForTarget(step.Target); ok {
			return rule
		}
		t.logf("unknown target %q, falling back to url-based rule", step.Target)
	}
	return r.table.Resolve(pageURL)
}

// sleep suspends the plan, honoring the plan budget.
func (r *Runner) sleep(ctx context.Context, ms int) outcome {
	if ms <= 0 {
		return stepOK()
	}
	select {
	case <-ctx.Done():
		return planFatal(fmt.Errorf("plan budget exceeded: %w", ctx.Err()))
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return stepOK()
	}
}
