package netjoin

import (
	"net/netip"
	"sync"
)

// Action is the side effect the owner of a JoinState must perform after
// applying an event.
type Action uint8

const (
	// ActionNone means nothing further is required.
	ActionNone Action = iota

	// ActionConnect means a connect request must be issued before the next
	// event is applied.
	ActionConnect

	// ActionIgnored means the event arrived after the terminal outcome.
	ActionIgnored
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "NONE"
	case ActionConnect:
		return "CONNECT"
	case ActionIgnored:
		return "IGNORED"
	default:
		return "UNKNOWN"
	}
}

// JoinState is the state of a single join attempt.
//
// The outcome is written once. The done channel is closed under the same
// lock that writes the terminal outcome, so a waiter that observes Pending
// and then blocks on Done cannot miss the wakeup.
type JoinState struct {
	mu sync.RWMutex

	outcome Outcome
	address netip.Addr
	retries *RetryBudget

	done chan struct{}
}

// NewJoinState creates a pending state with the given retry budget.
func NewJoinState(maxRetries int) *JoinState {
	return &JoinState{
		outcome: OutcomePending,
		retries: NewRetryBudget(maxRetries),
		done:    make(chan struct{}),
	}
}

// Apply handles one connectivity event and returns the action required of
// the caller.
func (s *JoinState) Apply(ev Event) Action {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outcome.Terminal() {
		return ActionIgnored
	}

	switch ev.Kind {
	case EventDriverStarted:
		return ActionConnect

	case EventDisconnected:
		if s.retries.Next() {
			return ActionConnect
		}
		s.finishLocked(OutcomeFailed)
		return ActionNone

	case EventAddressAcquired:
		s.retries.Reset()
		s.address = ev.Address
		s.finishLocked(OutcomeConnected)
		return ActionNone
	}

	return ActionNone
}

// Expire ends a pending attempt with OutcomeTimedOut. It returns the
// outcome that holds afterwards, which is the earlier terminal outcome if
// one was already posted.
func (s *JoinState) Expire() Outcome {
	o, _ := s.Finish(OutcomeTimedOut)
	return o
}

// Finish posts a terminal outcome if none has been posted yet. It returns
// the outcome that holds afterwards and whether this call posted it.
func (s *JoinState) Finish(o Outcome) (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outcome.Terminal() || !o.Terminal() {
		return s.outcome, false
	}
	s.finishLocked(o)
	return s.outcome, true
}

func (s *JoinState) finishLocked(o Outcome) {
	s.outcome = o
	close(s.done)
}

// Outcome returns the current outcome.
func (s *JoinState) Outcome() Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outcome
}

// RetryCount returns the number of retries issued so far.
func (s *JoinState) RetryCount() int {
	return s.retries.Attempts()
}

// MaxRetries returns the retry budget.
func (s *JoinState) MaxRetries() int {
	return s.retries.Max()
}

// Address returns the acquired address, valid once the outcome is
// OutcomeConnected.
func (s *JoinState) Address() netip.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address
}

// View is a consistent copy of a JoinState.
type View struct {
	Outcome    Outcome
	RetryCount int
	MaxRetries int
	Address    netip.Addr
}

// View returns the outcome, retry count and address as read under one
// lock, so a Connected view always carries the acquired address.
func (s *JoinState) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View{
		Outcome:    s.outcome,
		RetryCount: s.retries.Attempts(),
		MaxRetries: s.retries.Max(),
		Address:    s.address,
	}
}

// Done is closed when a terminal outcome is posted.
func (s *JoinState) Done() <-chan struct{} {
	return s.done
}
