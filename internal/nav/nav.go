package nav

import "sync"

// Portal routes the client moves between.
const (
	Login            = "/login"
	Register         = "/register"
	VerifyOTP        = "/verify-otp"
	StudentDashboard = "/student/dashboard"
	StudentJobs      = "/student/jobs"
	TPORegister      = "/tpo/register"
	TPOVerifyOTP     = "/tpo/verify-otp"
	TPODashboard     = "/tpo/dashboard"
)

// Navigator moves the user to a route, optionally carrying transient state
// such as a prefilled email.
type Navigator interface {
	Navigate(route string, state map[string]string)
}

// Func adapts a plain function to Navigator.
type Func func(route string, state map[string]string)

func (f Func) Navigate(route string, state map[string]string) { f(route, state) }

// Discard ignores navigation.
var Discard Navigator = Func(func(string, map[string]string) {})

// Visit is one recorded navigation.
type Visit struct {
	Route string
	State map[string]string
}

// Recorder keeps the navigation history. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	history []Visit
}

func (r *Recorder) Navigate(route string, state map[string]string) {
	copied := make(map[string]string, len(state))
	for k, v := range state {
		copied[k] = v
	}
	r.mu.Lock()
	r.history = append(r.history, Visit{Route: route, State: copied})
	r.mu.Unlock()
}

// Last returns the most recent visit.
func (r *Recorder) Last() (Visit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return Visit{}, false
	}
	return r.history[len(r.history)-1], true
}

// History returns a copy of every visit in order.
func (r *Recorder) History() []Visit {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Visit, len(r.history))
	copy(out, r.history)
	return out
}
