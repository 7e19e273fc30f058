// Package metrics provides lock-free in-process counters for the auth
// subsystem. Counters live in cache-line-padded slots and are incremented
// atomically; the write path is allocation-free. Export (rendering,
// scraping) is the caller's concern and works off Snapshot values.
package metrics

import "sync/atomic"

// ID identifies one counter slot.
type ID uint16

const (
	LoginSuccess ID = iota
	LoginFailure
	RefreshSuccess
	RefreshFailure
	RefreshReuseDetected
	Logout
	BlacklistHit
	BlacklistFailOpen
	PasswordChangeSuccess
	PasswordChangeFailure
	PasswordResetRequest
	PasswordResetConfirm
	EmailVerified
	TenantRegistered
	TokensRevokedAll

	idCount
)

var names = [idCount]string{
	LoginSuccess:          "login_success",
	LoginFailure:          "login_failure",
	RefreshSuccess:        "refresh_success",
	RefreshFailure:        "refresh_failure",
	RefreshReuseDetected:  "refresh_reuse_detected",
	Logout:                "logout",
	BlacklistHit:          "blacklist_hit",
	BlacklistFailOpen:     "blacklist_fail_open",
	PasswordChangeSuccess: "password_change_success",
	PasswordChangeFailure: "password_change_failure",
	PasswordResetRequest:  "password_reset_request",
	PasswordResetConfirm:  "password_reset_confirm",
	EmailVerified:         "email_verified",
	TenantRegistered:      "tenant_registered",
	TokensRevokedAll:      "tokens_revoked_all",
}

// Name returns the stable exposition name for id, or "" for unknown ids.
func Name(id ID) string {
	if id >= idCount {
		return ""
	}
	return names[id]
}

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed-size counter set. A nil *Metrics is a no-op on every
// method, so callers never guard increments.
type Metrics struct {
	counters [idCount]paddedCounter
}

// New returns an empty counter set.
func New() *Metrics {
	return &Metrics{}
}

// Inc adds one to the counter. Unknown ids are ignored.
func (m *Metrics) Inc(id ID) {
	if m == nil || id >= idCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Get reads one counter.
func (m *Metrics) Get(id ID) uint64 {
	if m == nil || id >= idCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot returns a point-in-time copy of every counter keyed by
// exposition name.
func (m *Metrics) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, idCount)
	if m == nil {
		return out
	}
	for id := ID(0); id < idCount; id++ {
		out[names[id]] = atomic.LoadUint64(&m.counters[id].value)
	}
	return out
}
