package operations

import (
	"fmt"
	"sync"
	"time"

	"zentaocli/pkg/contracts/domain"
)

// Phase is a state of the export run.
type Phase string

const (
	PhaseInit           Phase = "INIT"
	PhaseBrowserReady   Phase = "BROWSER_READY"
	PhaseLoggedIn       Phase = "LOGGED_IN"
	PhaseEntityResolved Phase = "ENTITY_RESOLVED"
	PhaseExporting      Phase = "EXPORTING"
	PhaseDone           Phase = "DONE"
	PhaseFailed         Phase = "FAILED"
)

// Transition records one state change.
type Transition struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

// RunState tracks where a run is. FAILED is reachable from any state; no
// transition leaves DONE or FAILED.
type RunState struct {
	mu sync.RWMutex

	ID          string       `json:"id"`
	Phase       Phase        `json:"phase"`
	Target      string       `json:"target,omitempty"`
	StartTime   time.Time    `json:"start_time"`
	EndTime     *time.Time   `json:"end_time,omitempty"`
	Transitions []Transition `json:"transitions"`
	Error       error        `json:"-"`
}

// NewRunState creates a run in INIT
func NewRunState(id string) *RunState {
	return &RunState{
		ID:        id,
		Phase:     PhaseInit,
		StartTime: time.Now(),
	}
}

var allowed = map[Phase][]Phase{
	PhaseInit:           {PhaseBrowserReady},
	PhaseBrowserReady:   {PhaseLoggedIn},
	PhaseLoggedIn:       {PhaseEntityResolved, PhaseDone},
	PhaseEntityResolved: {PhaseExporting, PhaseDone},
	PhaseExporting:      {PhaseExporting, PhaseDone},
}

// Advance moves to next. target is set for EXPORTING only.
func (s *RunState) Advance(next Phase, target domain.ExportTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !canMove(s.Phase, next) {
		return fmt.Errorf("invalid transition %s -> %s", s.label(), next)
	}

	from := s.label()
	s.Phase = next
	s.Target = string(target)
	s.Transitions = append(s.Transitions, Transition{From: from, To: s.label(), At: time.Now()})
	if next == PhaseDone {
		now := time.Now()
		s.EndTime = &now
	}
	return nil
}

// Fail moves to FAILED unless the run already ended.
func (s *RunState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Phase == PhaseDone || s.Phase == PhaseFailed {
		return
	}
	now := time.Now()
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	s.Transitions = append(s.Transitions, Transition{From: s.label(), To: string(PhaseFailed), At: now, Reason: reason})
	s.Phase = PhaseFailed
	s.EndTime = &now
	s.Error = err
}

// Current returns the phase label, e.g. "EXPORTING(test_cases)".
func (s *RunState) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.label()
}

// History returns a copy of all transitions
func (s *RunState) History() []Transition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Transition(nil), s.Transitions...)
}

// Duration returns the elapsed run time
func (s *RunState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

func (s *RunState) label() string {
	if s.Phase == PhaseExporting && s.Target != "" {
		return fmt.Sprintf("%s(%s)", s.Phase, s.Target)
	}
	return string(s.Phase)
}

func canMove(from, to Phase) bool {
	for _, p := range allowed[from] {
		if p == to {
			return true
		}
	}
	return false
}
