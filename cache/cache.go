// Package cache keeps the most recent payload seen per subject. The CLI
// uses it to answer "what was the last value on this subject" from its
// status endpoint and console without replaying traffic.
package cache

type Store interface {
	// Put records payload as the latest value for subject.
	Put(subject string, payload []byte) error

	// Get returns the latest recorded value for subject.
	Get(subject string) ([]byte, bool)

	// Snapshot returns every recorded subject and value as one JSON
	// document.
	Snapshot() []byte
}
