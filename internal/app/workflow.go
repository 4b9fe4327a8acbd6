package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"poolbet/internal/domain"
	"poolbet/internal/engine"

	"gopkg.in/yaml.v3"
)

// Step is one scripted pool call. String args of the form "$name" or
// "$name+N" are replaced with a saved value; "start" is always defined.
type Step struct {
	At      int64          `yaml:"at"` // seconds after Start
	Caller  string         `yaml:"caller"`
	Command string         `yaml:"command"`
	Args    map[string]any `yaml:"args"`
	Save    string         `yaml:"save"`   // name for the id the call returns
	Expect  string         `yaml:"expect"` // error code the call must fail with
}

// Workflow is a scripted session against the pool.
type Workflow struct {
	Start int64  `yaml:"start"`
	Steps []Step `yaml:"steps"`
}

// StepResult is what one step did.
type StepResult struct {
	Step   int
	Seq    uint64
	Caller string
	Name   string
	Value  any
	Err    error
}

// LoadWorkflow reads a workflow file.
func LoadWorkflow(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &wf, nil
}

// RunWorkflow submits every step in order. It stops at the first step whose
// outcome differs from what the step expects.
func RunWorkflow(ctx context.Context, seq *engine.Sequencer, wf *Workflow) ([]StepResult, error) {
	vars := map[string]int64{"start": wf.Start}
	results := make([]StepResult, 0, len(wf.Steps))

	for i, step := range wf.Steps {
		args, err := substitute(step.Args, vars)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i, err)
		}
		payload, err := json.Marshal(args)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i, err)
		}
		cmd, err := engine.Decode(step.Command, payload)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i, err)
		}

		res, err := seq.SubmitAt(ctx, domain.Account(step.Caller), cmd, wf.Start+step.At)
		if err != nil {
			return results, err
		}
		results = append(results, StepResult{
			Step:   i,
			Seq:    res.Seq,
			Caller: step.Caller,
			Name:   step.Command,
			Value:  res.Value,
			Err:    res.Err,
		})

		if err := checkExpect(step.Expect, res.Err); err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i, step.Command, err)
		}
		if step.Save != "" && res.Err == nil {
			v, ok := savedValue(res.Value)
			if !ok {
				return results, fmt.Errorf("step %d (%s): nothing to save", i, step.Command)
			}
			vars[step.Save] = v
		}

		slog.Debug("workflow step",
			slog.Int("step", i),
			slog.Uint64("seq", res.Seq),
			slog.String("command", step.Command),
			slog.Any("value", res.Value),
			slog.Any("error", res.Err))
	}
	return results, nil
}

func checkExpect(expect string, err error) error {
	if expect == "" {
		if err != nil {
			return fmt.Errorf("unexpected error: %w", err)
		}
		return nil
	}
	var pe *domain.PoolError
	if !errors.As(err, &pe) {
		return fmt.Errorf("expected %s, got %v", expect, err)
	}
	if pe.Code != expect {
		return fmt.Errorf("expected %s, got %s", expect, pe.Code)
	}
	return nil
}

func savedValue(v any) (int64, bool) {
	switch x := v.(type) {
	case engine.BetResult:
		return int64(x.BetID), true
	case uint64:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}

func substitute(v any, vars map[string]int64) (any, error) {
	switch x := v.(type) {
	case string:
		if !strings.HasPrefix(x, "$") {
			return x, nil
		}
		return resolveVar(x[1:], vars)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			r, err := substitute(e, vars)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			r, err := substitute(e, vars)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}
	return v, nil
}

// resolveVar evaluates "name", "name+N" or "name-N".
func resolveVar(expr string, vars map[string]int64) (int64, error) {
	name, offset := expr, int64(0)
	if i := strings.IndexAny(expr, "+-"); i > 0 {
		n, err := strconv.ParseInt(expr[i:], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("bad offset in $%s: %w", expr, err)
		}
		name, offset = expr[:i], n
	}
	v, ok := vars[name]
	if !ok {
		return 0, fmt.Errorf("undefined variable $%s", name)
	}
	return v + offset, nil
}
