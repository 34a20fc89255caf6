package auth

import "sync"

// Navigator performs a top-level browser navigation.
type Navigator interface {
	Navigate(target string)
}

// RecordingNavigator remembers the last navigation target. The HTTP layer
// turns it into a redirect once the handler returns.
type RecordingNavigator struct {
	mu     sync.Mutex
	target string
}

// Navigate records target, replacing any earlier one.
func (n *RecordingNavigator) Navigate(target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.target = target
}

// Target returns the recorded target and whether one was recorded.
func (n *RecordingNavigator) Target() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.target, n.target != ""
}
