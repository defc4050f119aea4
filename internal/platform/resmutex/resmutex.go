// Package resmutex provides keyed mutual exclusion with a TTL. A resource is
// held by at most one lease at a time; the lease records the purpose it was
// taken for so a holder can be identified in logs and in the backing store.
package resmutex

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// ErrUnavailable means the mutex could not be granted before the wait budget
// or the context ran out, or the backing store failed.
var ErrUnavailable = errors.New("resource mutex unavailable")

type Options struct {
	// TTL bounds how long a lease survives a holder that never releases it.
	TTL time.Duration
	// Wait bounds how long Acquire retries before giving up.
	Wait time.Duration
	// RetryBase is the mean delay between acquisition attempts.
	RetryBase time.Duration
}

// Normalize fills zero fields with defaults.
func Normalize(o Options) Options {
	if o.TTL <= 0 {
		o.TTL = 10 * time.Second
	}
	if o.Wait < 0 {
		o.Wait = 0
	}
	if o.Wait == 0 {
		o.Wait = 3 * time.Second
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 25 * time.Millisecond
	}
	return o
}

type Mutex interface {
	Acquire(ctx context.Context, resourceID, purpose string) (*Lease, error)
}

// Lease is a granted hold on one resource.
type Lease struct {
	ResourceID string
	Purpose    string
	Token      string

	release func(ctx context.Context) error
}

// Release gives the resource back. Releasing twice, or after the TTL expired
// and someone else took the resource, is a no-op.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.release == nil {
		return nil
	}
	rel := l.release
	l.release = nil
	return rel(ctx)
}

// Do runs fn while holding resourceID. The lease is released on every exit
// path, including a panic in fn.
func Do[T any](ctx context.Context, m Mutex, resourceID, purpose string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	lease, err := m.Acquire(ctx, resourceID, purpose)
	if err != nil {
		return zero, err
	}
	defer func() {
		_ = lease.Release(context.WithoutCancel(ctx))
	}()
	return fn(ctx)
}

// NewLease builds a lease for Mutex implementations outside this package.
func NewLease(resourceID, purpose, token string, release func(ctx context.Context) error) *Lease {
	return &Lease{ResourceID: resourceID, Purpose: purpose, Token: token, release: release}
}

// NewToken returns a lease value unique to one acquisition.
func NewToken(purpose string) string {
	return purpose + ":" + uuid.NewString()
}

// Retry calls try until it reports success, the wait budget is spent, or ctx
// is done.
func Retry(ctx context.Context, opts Options, try func(ctx context.Context) (bool, error)) error {
	deadline := time.Now().Add(opts.Wait)
	for {
		ok, err := try(ctx)
		if err != nil {
			return errors.Join(ErrUnavailable, err)
		}
		if ok {
			return nil
		}
		sleep := jitter(opts.RetryBase)
		if time.Now().Add(sleep).After(deadline) {
			return ErrUnavailable
		}
		t := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(ErrUnavailable, ctx.Err())
		case <-t.C:
		}
	}
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delta := float64(base) * 0.2
	low := float64(base) - delta
	return time.Duration(low + rand.Float64()*2*delta)
}

// Observed reports every acquisition attempt to observe: the purpose, how
// long it waited and whether it got the lease.
func Observed(m Mutex, observe func(purpose string, wait time.Duration, ok bool)) Mutex {
	if observe == nil {
		return m
	}
	return observedMutex{inner: m, observe: observe}
}

type observedMutex struct {
	inner   Mutex
	observe func(purpose string, wait time.Duration, ok bool)
}

func (o observedMutex) Acquire(ctx context.Context, resourceID, purpose string) (*Lease, error) {
	start := time.Now()
	lease, err := o.inner.Acquire(ctx, resourceID, purpose)
	o.observe(purpose, time.Since(start), err == nil)
	return lease, err
}
