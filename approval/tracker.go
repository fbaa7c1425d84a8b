package approval

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Fingerprint derives a stable identity for a proposed change from its
// target, operation, and rendered diff. Two byte-identical proposals share
// a fingerprint; any difference in content yields a new one.
func Fingerprint(path, operation, unified string) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(operation))
	h.Write([]byte{0})
	h.Write([]byte(unified))
	return hex.EncodeToString(h.Sum(nil))
}

// Tracker remembers which change fingerprints the user already approved in
// this session, so retries of the same edit do not re-prompt. Rejections
// are deliberately not remembered: the user may change their mind.
type Tracker struct {
	mu       sync.Mutex
	approved map[string]time.Time
}

func NewTracker() *Tracker {
	return &Tracker{approved: make(map[string]time.Time)}
}

// Approve records a fingerprint as approved.
func (t *Tracker) Approve(fp string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.approved[fp] = time.Now().UTC()
}

// IsApproved reports whether the fingerprint was approved earlier.
func (t *Tracker) IsApproved(fp string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.approved[fp]
	return ok
}

// Clear forgets all recorded approvals.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.approved = make(map[string]time.Time)
}
