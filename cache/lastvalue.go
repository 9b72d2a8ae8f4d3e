package cache

import (
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// LastValue stores the latest payload per subject inside one JSON document,
// keyed by the subject as a path. Dotted subjects nest naturally, so
// "orders.created" lands under {"orders":{"created":...}} and a snapshot of
// a subject subtree is a plain JSON object.
type LastValue struct {
	mu     sync.Mutex
	values []byte
}

func NewLastValue() *LastValue {
	return &LastValue{values: []byte{}}
}

// Put records payload under subject. A payload that is itself valid JSON is
// stored as that JSON value; anything else is stored as a JSON string.
func (l *LastValue) Put(subject string, payload []byte) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if gjson.ValidBytes(payload) {
		l.values, err = sjson.SetRawBytes(l.values, subject, payload)
	} else {
		l.values, err = sjson.SetBytes(l.values, subject, string(payload))
	}

	return err
}

// Get returns the raw JSON recorded for subject.
func (l *LastValue) Get(subject string) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := gjson.GetBytes(l.values, subject)
	if !result.Exists() {
		return nil, false
	}

	return []byte(result.Raw), true
}

// Snapshot returns the whole document. The returned slice is a copy, the
// caller may hold it across later Puts.
func (l *LastValue) Snapshot() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.values) == 0 {
		return []byte("{}")
	}

	snapshot := make([]byte, len(l.values))
	copy(snapshot, l.values)

	return snapshot
}

var _ Store = (*LastValue)(nil)
