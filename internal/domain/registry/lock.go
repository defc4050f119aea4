package registry

import (
	"fmt"
	"strings"
	"time"
)

type LockState int

// Values below lockTerminalFloor are active; at or above it the lock has been
// moved to the terminated table.
const (
	LockPrepared  LockState = 1
	LockCommitted LockState = 2

	lockTerminalFloor LockState = 10

	LockTimeout  LockState = 11
	LockAborted  LockState = 12
	LockReleased LockState = 21
)

// LockPreparedTimeout is how long a lock may sit in PREPARED before the next
// read reclaims it.
const LockPreparedTimeout = 5 * time.Minute

func (s LockState) String() string {
	switch s {
	case LockPrepared:
		return "PREPARED"
	case LockCommitted:
		return "COMMITTED"
	case LockTimeout:
		return "TIMEOUT"
	case LockAborted:
		return "ABORTED"
	case LockReleased:
		return "RELEASED"
	default:
		return fmt.Sprintf("LockState(%d)", int(s))
	}
}

func (s LockState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *LockState) UnmarshalText(b []byte) error {
	for _, c := range []LockState{LockPrepared, LockCommitted, LockTimeout, LockAborted, LockReleased} {
		if c.String() == strings.ToUpper(string(b)) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown lock state %q", string(b))
}

func (s LockState) Terminal() bool { return s >= lockTerminalFloor }

// CanTransitionLock reports whether from -> to is the immediate next step of
// the lock protocol.
func CanTransitionLock(from, to LockState) bool {
	switch from {
	case LockPrepared:
		return to == LockCommitted || to == LockAborted || to == LockTimeout
	case LockCommitted:
		return to == LockReleased
	default:
		return false
	}
}

// Lock grants one resource manager exclusive hold over an asset. The unique
// index on asset_id keeps at most one active lock per asset.
type Lock struct {
	ID             string    `gorm:"column:id;type:char(24);primaryKey" json:"id"`
	AssetID        string    `gorm:"column:asset_id;type:char(24);not null;uniqueIndex" json:"asset_id"`
	Locker         string    `gorm:"column:locker;not null" json:"locker"`
	IdempotentHash string    `gorm:"column:idempotent_hash;not null;default:''" json:"idempotent_hash,omitempty"`
	State          LockState `gorm:"column:state;not null" json:"state"`
	CreatedAt      time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Lock) TableName() string { return "locks" }

// Expired reports whether a PREPARED lock has outlived window at now.
func (l *Lock) Expired(now time.Time, window time.Duration) bool {
	return l.State == LockPrepared && now.Sub(l.UpdatedAt) > window
}

// TerminatedLock is the audit record of a lock that reached a terminal state.
type TerminatedLock struct {
	ID             string    `gorm:"column:id;type:char(24);primaryKey" json:"id"`
	AssetID        string    `gorm:"column:asset_id;type:char(24);not null;index" json:"asset_id"`
	Locker         string    `gorm:"column:locker;not null" json:"locker"`
	IdempotentHash string    `gorm:"column:idempotent_hash;not null;default:''" json:"idempotent_hash,omitempty"`
	State          LockState `gorm:"column:state;not null;index" json:"state"`
	CreatedAt      time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
	FinishedAt     time.Time `gorm:"column:finished_at;not null" json:"finished_at"`
}

func (TerminatedLock) TableName() string { return "locks_terminated" }

// Terminate builds the archive record for l entering the terminal state.
func (l *Lock) Terminate(state LockState, at time.Time) *TerminatedLock {
	return &TerminatedLock{
		ID:             l.ID,
		AssetID:        l.AssetID,
		Locker:         l.Locker,
		IdempotentHash: l.IdempotentHash,
		State:          state,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      at,
		FinishedAt:     at,
	}
}
