package policy

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/sirosfoundation/go-wssec/pkg/security"
)

var (
	// ErrPolicyViolation matches every ViolationError.
	ErrPolicyViolation = security.ErrPolicyViolation
	// ErrInvalidPolicy reports a policy that cannot be compiled.
	ErrInvalidPolicy = errors.New("invalid security policy")
)

// ViolationError lists every violated assertion of an exchange.
type ViolationError struct {
	Violations []string
}

func (e *ViolationError) Error() string {
	return ErrPolicyViolation.Error() + ": " + strings.Join(e.Violations, "; ")
}

func (e *ViolationError) Unwrap() error { return ErrPolicyViolation }

// Verdict is the outcome of a policy for one exchange.
type Verdict struct {
	Passed     bool
	Violations []string
	States     map[string]State
}

// Err returns a *ViolationError when the verdict failed.
func (v Verdict) Err() error {
	if v.Passed {
		return nil
	}
	return &ViolationError{Violations: append([]string(nil), v.Violations...)}
}

// Engine evaluates a policy over the security events of one exchange. It
// is not safe for concurrent use.
type Engine struct {
	states   []*AssertionState
	logger   *slog.Logger
	finished bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for violations.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine returns an engine with one Unknown state per assertion of p.
func NewEngine(p *Policy, opts ...Option) *Engine {
	e := &Engine{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("component", "policy"))
	if p != nil {
		for _, a := range p.Assertions {
			e.states = append(e.states, NewAssertionState(a))
		}
	}
	return e
}

// OnSecurityEvent offers ev to every state. Violations are collected for
// the verdict rather than returned.
func (e *Engine) OnSecurityEvent(ev security.Event) error {
	for _, s := range e.states {
		before := s.State()
		s.AssertEvent(ev)
		if before != Violated && s.State() == Violated {
			e.logger.Warn("policy assertion violated", "assertion", s.Assertion.String(), "event", string(ev.Type()))
		}
	}
	return nil
}

// States returns the assertion states in policy order.
func (e *Engine) States() []*AssertionState {
	return append([]*AssertionState(nil), e.states...)
}

// Verdict settles the undecided states and returns the outcome.
func (e *Engine) Verdict() Verdict {
	if !e.finished {
		e.finished = true
		for _, s := range e.states {
			s.finish()
		}
	}
	v := Verdict{Passed: true, States: make(map[string]State, len(e.states))}
	for _, s := range e.states {
		v.States[s.Assertion.String()] = s.State()
		if s.State() != Asserted {
			v.Passed = false
		}
		v.Violations = append(v.Violations, s.Messages()...)
	}
	return v
}
