// Package console is an interactive terminal front end for the simulation
// panel: edit parameters, run simulations and follow their progress.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"goldenbatch/internal/types"
)

// Menu entries.
const (
	actionRun   = "Run simulation"
	actionReset = "Reset parameters"
	actionQuit  = "Quit"
)

// ParameterStore is the subset of params.Store used by the console.
type ParameterStore interface {
	Snapshot() types.ParameterSet
	Bounds() []types.ParameterBounds
	Set(name types.ParameterName, raw any) (types.ParameterSet, error)
	Reset() types.ParameterSet
}

// Simulator is the subset of simulation.Orchestrator used by the console.
type Simulator interface {
	Run(ctx context.Context) (types.Outcome, error)
	Subscribe(fn func(types.Outcome)) (unsubscribe func())
	Endpoint() string
}

// Session drives one interactive console.
type Session struct {
	store  ParameterStore
	sim    Simulator
	prompt Prompter
	out    io.Writer
}

// NewSession creates a Session writing to out.
func NewSession(store ParameterStore, sim Simulator, prompt Prompter, out io.Writer) *Session {
	return &Session{store: store, sim: sim, prompt: prompt, out: out}
}

// Loop shows the menu until the operator quits, interrupts a prompt or ctx is
// done. Quitting and interrupting are not errors.
func (s *Session) Loop(ctx context.Context) error {
	fmt.Fprintf(s.out, "Golden Batch simulator. Prediction service: %s\n", s.sim.Endpoint())
	s.printStatus(types.IdleOutcome())

	def := actionRun
	for {
		s.printParameters()

		choice, err := s.prompt.Select(ctx, "What next?", s.menu(), def)
		if err != nil {
			if errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		def = choice

		switch choice {
		case actionQuit:
			return nil
		case actionRun:
			s.runSimulation(ctx)
		case actionReset:
			ok, err := s.prompt.Confirm(ctx, "Restore default parameters?", true)
			if err != nil {
				if errors.Is(err, ErrAborted) {
					continue
				}
				return err
			}
			if ok {
				s.store.Reset()
			}
		default:
			name, ok := s.parameterFor(choice)
			if !ok {
				continue
			}
			if err := s.editParameter(ctx, name); err != nil {
				if errors.Is(err, ErrAborted) {
					continue
				}
				return err
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (s *Session) menu() []string {
	opts := make([]string, 0, len(types.ParameterNames)+3)
	for _, b := range s.store.Bounds() {
		opts = append(opts, editLabel(b.Name))
	}
	return append(opts, actionRun, actionReset, actionQuit)
}

func (s *Session) parameterFor(choice string) (types.ParameterName, bool) {
	for _, b := range s.store.Bounds() {
		if editLabel(b.Name) == choice {
			return b.Name, true
		}
	}
	return "", false
}

func (s *Session) editParameter(ctx context.Context, name types.ParameterName) error {
	current, err := s.store.Snapshot().Get(name)
	if err != nil {
		return err
	}
	bounds := s.boundsOf(name)

	help := fmt.Sprintf("Advisory range %s to %s %s (step %s). Non-numeric input becomes 0.",
		formatValue(bounds.Min), formatValue(bounds.Max), bounds.Unit, formatValue(bounds.Step))
	raw, err := s.prompt.Input(ctx, fmt.Sprintf("%s (%s)", title(name), bounds.Unit), formatValue(current), help)
	if err != nil {
		return err
	}

	values, err := s.store.Set(name, raw)
	if err != nil {
		return err
	}
	v, _ := values.Get(name)
	if !bounds.Contains(v) {
		fmt.Fprintf(s.out, "Note: %s %s is outside the advisory range.\n", formatValue(v), bounds.Unit)
	}
	return nil
}

// runSimulation blocks until the run is terminal, printing every publication.
func (s *Session) runSimulation(ctx context.Context) {
	unsubscribe := s.sim.Subscribe(s.printStatus)
	defer unsubscribe()

	if _, err := s.sim.Run(ctx); err != nil {
		fmt.Fprintf(s.out, "Cannot start: %v\n", err)
	}
}

func (s *Session) printStatus(o types.Outcome) {
	switch {
	case o.State == types.StateAttempting && o.Attempt > 0:
		fmt.Fprintf(s.out, "%s retry %d in %s\n", o.StatusText(), o.Attempt, o.Backoff)
	case o.State == types.StateFailed:
		fmt.Fprintf(s.out, "%s\n%s\n", o.StatusText(), o.Message)
	default:
		fmt.Fprintln(s.out, o.StatusText())
	}
}

func (s *Session) printParameters() {
	values := s.store.Snapshot()
	parts := make([]string, 0, len(types.ParameterNames))
	for _, b := range s.store.Bounds() {
		v, _ := values.Get(b.Name)
		parts = append(parts, fmt.Sprintf("%s %s %s", title(b.Name), formatValue(v), b.Unit))
	}
	fmt.Fprintf(s.out, "[%s]\n", strings.Join(parts, " | "))
}

func (s *Session) boundsOf(name types.ParameterName) types.ParameterBounds {
	for _, b := range s.store.Bounds() {
		if b.Name == name {
			return b
		}
	}
	return types.ParameterBounds{Name: name}
}

func editLabel(name types.ParameterName) string {
	return "Edit " + string(name)
}

func title(name types.ParameterName) string {
	s := string(name)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
