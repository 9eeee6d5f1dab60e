package fehu

import "sync"

// State is the module state shared by every participant of a scene.
type State struct {
	mutex           sync.Mutex
	prefetchStarted bool
}

// StartPrefetch reports whether the caller should run the scene prefetch.
// It returns true exactly once per scene.
func (s *State) StartPrefetch() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.prefetchStarted {
		return false
	}
	s.prefetchStarted = true
	return true
}
