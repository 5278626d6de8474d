// Package sessionstate tracks per-launch and per-crash-interval counters
// and durations that must survive across process launches, including a
// crash. It is the Go realization of spec.md component B.
package sessionstate

import (
	"time"

	"github.com/sentrykit/sentrykit/docenc"
)

// State is the persistent session/launch record described by spec.md §3
// and §4.B. All time-valued fields are durations in seconds; transition
// timestamps are monotonic-clock-derived via the clock injected at
// construction (so tests can control time without sleeping).
type State struct {
	CrashedLastLaunch bool
	CrashedThisLaunch bool

	ApplicationIsActive       bool
	ApplicationIsInForeground bool

	LaunchesSinceLastCrash  int64
	SessionsSinceLastCrash  int64
	SessionsSinceLaunch     int64

	ActiveDurationSinceLaunch     float64
	ActiveDurationSinceLastCrash  float64
	BackgroundDurationSinceLaunch float64
	BackgroundDurationSinceLastCrash float64

	AppStateTransitionTime time.Time
	AppLaunchTime          time.Time
}

// Clock abstracts wall-clock access so transitions are testable without
// real sleeps; production code uses RealClock.
type Clock interface{ Now() time.Time }

type realClock struct{}

// RealClock is the production Clock, backed by time.Now.
var RealClock Clock = realClock{}

func (realClock) Now() time.Time { return time.Now() }

// Init loads state from path (tolerating absence), applies the per-launch
// reset rules from spec.md §4.B, and persists the result. clock provides
// AppLaunchTime and AppStateTransitionTime.
func Init(path string, clock Clock) (*State, error) {
	if clock == nil {
		clock = RealClock
	}
	now := clock.Now()

	s, err := Load(path)
	if err != nil {
		return nil, err
	}

	s.SessionsSinceLaunch = 1
	s.ActiveDurationSinceLaunch = 0
	s.BackgroundDurationSinceLaunch = 0
	s.CrashedThisLaunch = false
	s.AppLaunchTime = now
	s.AppStateTransitionTime = now
	s.ApplicationIsInForeground = true

	if s.CrashedLastLaunch {
		s.LaunchesSinceLastCrash = 0
		s.SessionsSinceLastCrash = 0
		s.ActiveDurationSinceLastCrash = 0
		s.BackgroundDurationSinceLastCrash = 0
	}
	s.LaunchesSinceLastCrash++
	s.SessionsSinceLastCrash++

	if err := Save(path, s); err != nil {
		return nil, err
	}
	return s, nil
}

// NotifyAppActive records an active/inactive transition. It does not
// persist, matching spec.md's "Does not persist" note for this hook.
func (s *State) NotifyAppActive(active bool, clock Clock) {
	if clock == nil {
		clock = RealClock
	}
	now := clock.Now()
	if active {
		s.AppStateTransitionTime = now
		s.ApplicationIsActive = true
		return
	}
	elapsed := now.Sub(s.AppStateTransitionTime).Seconds()
	s.ActiveDurationSinceLaunch += elapsed
	s.ActiveDurationSinceLastCrash += elapsed
	s.ApplicationIsActive = false
}

// NotifyAppInForeground records a foreground/background transition,
// persisting only on the entering-background edge (per spec.md §4.B).
func (s *State) NotifyAppInForeground(foreground bool, path string, clock Clock) error {
	if clock == nil {
		clock = RealClock
	}
	now := clock.Now()
	if foreground {
		elapsed := now.Sub(s.AppStateTransitionTime).Seconds()
		s.BackgroundDurationSinceLaunch += elapsed
		s.BackgroundDurationSinceLastCrash += elapsed
		s.SessionsSinceLastCrash++
		s.SessionsSinceLaunch++
		s.ApplicationIsInForeground = true
		return nil
	}
	s.AppStateTransitionTime = now
	s.ApplicationIsInForeground = false
	return Save(path, s)
}

// NotifyAppTerminate adds the elapsed background interval and persists.
func (s *State) NotifyAppTerminate(path string, clock Clock) error {
	if clock == nil {
		clock = RealClock
	}
	now := clock.Now()
	elapsed := now.Sub(s.AppStateTransitionTime).Seconds()
	s.BackgroundDurationSinceLastCrash += elapsed
	return Save(path, s)
}

// NotifyAppCrash accounts for the elapsed interval in whichever bucket
// (active/background) the app was in, marks CrashedThisLaunch, and
// persists using the allocation-light encode path. This method runs on
// the crash path and must remain async-signal-safe: it performs exactly
// one encode-and-write, using the caller-supplied scratch buffer.
func (s *State) NotifyAppCrash(path string, scratch []byte, clock Clock) error {
	if clock == nil {
		clock = RealClock
	}
	now := clock.Now()
	elapsed := now.Sub(s.AppStateTransitionTime).Seconds()
	if s.ApplicationIsActive {
		s.ActiveDurationSinceLaunch += elapsed
		s.ActiveDurationSinceLastCrash += elapsed
	} else {
		s.BackgroundDurationSinceLaunch += elapsed
		s.BackgroundDurationSinceLastCrash += elapsed
	}
	s.CrashedThisLaunch = true
	return saveWithScratch(path, s, scratch)
}

// fileVersion is the persisted schema version (spec.md §3).
const fileVersion = 1

// Load reads the state file at path, tolerating its absence (a missing
// file is not an error on first launch — it returns a zero-value State).
// Unknown fields are ignored.
func Load(path string) (*State, error) {
	s := &State{}
	data, err := readFileOrNil(path)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return s, nil
	}
	err = docenc.Decode(data, docenc.Callbacks{
		Bool: func(name string, hasName bool, val bool) {
			if name == "crashedLastLaunch" {
				s.CrashedLastLaunch = val
			}
		},
		Int: func(name string, hasName bool, val int64) {
			setCounterField(s, name, val)
		},
		Float: func(name string, hasName bool, val float64) {
			switch name {
			case "activeDurationSinceLastCrash":
				s.ActiveDurationSinceLastCrash = val
			case "backgroundDurationSinceLastCrash":
				s.BackgroundDurationSinceLastCrash = val
			case "version":
				// tolerate a version value encoded as a float
			}
		},
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func setCounterField(s *State, name string, val int64) {
	switch name {
	case "launchesSinceLastCrash":
		s.LaunchesSinceLastCrash = val
	case "sessionsSinceLastCrash":
		s.SessionsSinceLastCrash = val
	case "version":
		// ignored; fileVersion is fixed for now
	}
}

// Save persists s to path using a heap-allocated scratch buffer. It is the
// non-crash-path entry point; NotifyAppCrash calls saveWithScratch instead.
func Save(path string, s *State) error {
	return saveWithScratch(path, s, make([]byte, 512))
}

// saveWithScratch encodes s into the documented field layout and writes it
// to path in a single open/write/close, per spec.md §4.B's persistence
// rule: crashedLastLaunch is written from the live CrashedThisLaunch value
// so the next launch observes this launch's crash outcome.
func saveWithScratch(path string, s *State, scratch []byte) error {
	return writeFileAtomicish(path, scratch, func(e *docenc.Encoder) {
		e.BeginObjectUnnamed()
		e.AddInt("version", fileVersion)
		e.AddBool("crashedLastLaunch", s.CrashedThisLaunch)
		e.AddFloat("activeDurationSinceLastCrash", s.ActiveDurationSinceLastCrash)
		e.AddFloat("backgroundDurationSinceLastCrash", s.BackgroundDurationSinceLastCrash)
		e.AddInt("launchesSinceLastCrash", s.LaunchesSinceLastCrash)
		e.AddInt("sessionsSinceLastCrash", s.SessionsSinceLastCrash)
		e.EndContainer()
	})
}
