// Package credential runs operations against the reasoning service under a
// primary credential set, falling back to a backup set when the primary
// attempt fails.
package credential

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrLeaseReleased is returned when a lease is read after its attempt ended.
var ErrLeaseReleased = eris.New("credential: lease released")

// ErrNoCredentials means the primary set is missing a reasoning key.
var ErrNoCredentials = eris.New("credential: no reasoning key")

// Credentials is one set of keys for the reasoning and search services.
type Credentials struct {
	ReasoningKey string `json:"reasoning_key" mapstructure:"reasoning_key"`
	SearchKey    string `json:"search_key,omitempty" mapstructure:"search_key"`
}

// Empty reports whether no key is set.
func (c Credentials) Empty() bool {
	return strings.TrimSpace(c.ReasoningKey) == "" && strings.TrimSpace(c.SearchKey) == ""
}

// Pair is a primary credential set with an optional backup.
type Pair struct {
	Primary Credentials
	Backup  *Credentials
}

// HasBackup reports whether a usable backup set is configured.
func (p Pair) HasBackup() bool {
	return p.Backup != nil && strings.TrimSpace(p.Backup.ReasoningKey) != ""
}

// Label values name the credential set used for an attempt.
const (
	LabelPrimary = "primary"
	LabelBackup  = "backup"
)

// Lease scopes a credential set to a single attempt. Once released, the keys
// are no longer readable, so nothing outlives the attempt that used them.
type Lease struct {
	mu    sync.Mutex
	creds *Credentials
	label string
}

func newLease(c Credentials, label string) *Lease {
	return &Lease{creds: &c, label: label}
}

// Credentials returns the leased keys, or ErrLeaseReleased after release.
func (l *Lease) Credentials() (Credentials, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.creds == nil {
		return Credentials{}, eris.Wrap(ErrLeaseReleased, l.label)
	}
	return *l.creds, nil
}

// Label names the set this lease holds.
func (l *Lease) Label() string { return l.label }

// Released reports whether the lease has ended.
func (l *Lease) Released() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.creds == nil
}

func (l *Lease) release() {
	l.mu.Lock()
	l.creds = nil
	l.mu.Unlock()
}

// FallbackError reports that both the primary and backup attempts failed.
// Its message always carries the primary failure.
type FallbackError struct {
	Primary error
	Backup  error
}

func (e *FallbackError) Error() string {
	return "primary credential failed: " + e.Primary.Error() + "; backup credential failed: " + e.Backup.Error()
}

// Unwrap exposes both failures to errors.Is and errors.As.
func (e *FallbackError) Unwrap() []error {
	return []error{e.Primary, e.Backup}
}

// WithFallback runs op under the primary credentials and, if that fails and
// a backup is configured, once more under the backup. Each attempt gets its
// own lease, released when the attempt returns or panics.
//
// A blank primary key counts as a failed primary attempt. With no backup the
// primary error is returned unchanged. When both attempts fail the result is
// a *FallbackError.
func WithFallback[T any](ctx context.Context, pair Pair, op func(ctx context.Context, lease *Lease) (T, error)) (T, error) {
	var zero T
	var primaryErr error
	if strings.TrimSpace(pair.Primary.ReasoningKey) == "" {
		primaryErr = ErrNoCredentials
	} else {
		v, err := attempt(ctx, pair.Primary, LabelPrimary, op)
		if err == nil {
			return v, nil
		}
		primaryErr = err
	}
	if !pair.HasBackup() {
		return zero, primaryErr
	}
	if ctx.Err() != nil {
		return zero, primaryErr
	}

	zap.L().Warn("primary credential failed, retrying with backup", zap.Error(primaryErr))

	v, backupErr := attempt(ctx, *pair.Backup, LabelBackup, op)
	if backupErr == nil {
		return v, nil
	}
	return zero, &FallbackError{Primary: primaryErr, Backup: backupErr}
}

func attempt[T any](ctx context.Context, c Credentials, label string, op func(context.Context, *Lease) (T, error)) (T, error) {
	lease := newLease(c, label)
	defer lease.release()
	return op(ctx, lease)
}
