package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	repos "github.com/yungbote/asset-registry/internal/data/repos/registry"
	types "github.com/yungbote/asset-registry/internal/domain"
	"github.com/yungbote/asset-registry/internal/domain/registry"
	"github.com/yungbote/asset-registry/internal/modules/assetops"
	"github.com/yungbote/asset-registry/internal/observability"
	"github.com/yungbote/asset-registry/internal/platform/dbctx"
	"github.com/yungbote/asset-registry/internal/platform/logger"
	"github.com/yungbote/asset-registry/internal/platform/resmutex"
)

// LockStatus is what check(lockId) reports: the active lock, or the
// terminated record once the lock has finished.
type LockStatus struct {
	Lock       *types.Lock           `json:"lock"`
	Terminated *types.TerminatedLock `json:"terminated,omitempty"`
}

type LockService interface {
	Get(ctx context.Context, assetID string) (*types.Lock, error)
	Check(ctx context.Context, lockID string) (*LockStatus, error)
	Vote(ctx context.Context, assetID, serverID, idempotentHash string) (*types.Lock, error)
	Continue(ctx context.Context, lockID, serverID string) (*types.Lock, error)
	Abort(ctx context.Context, lockID, serverID string) (*types.Lock, error)
	// Release returns a nil lock when the asset was not locked.
	Release(ctx context.Context, assetID, serverID string) (*types.Lock, error)
	History(ctx context.Context, assetID string, limit int) ([]*types.TerminatedLock, error)

	assetops.HolderAuthority
}

type LockServiceConfig struct {
	PreparedTimeout time.Duration
	Now             func() time.Time
}

type lockService struct {
	db      *gorm.DB
	log     *logger.Logger
	locks   repos.LockRepo
	mutex   resmutex.Mutex
	timeout time.Duration
	now     func() time.Time
}

func NewLockService(db *gorm.DB, baseLog *logger.Logger, locks repos.LockRepo, mutex resmutex.Mutex, cfg LockServiceConfig) LockService {
	if cfg.PreparedTimeout <= 0 {
		cfg.PreparedTimeout = registry.LockPreparedTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &lockService{
		db:      db,
		log:     baseLog.With("service", "LockService"),
		locks:   locks,
		mutex:   mutex,
		timeout: cfg.PreparedTimeout,
		now:     cfg.Now,
	}
}

func (s *lockService) Get(ctx context.Context, assetID string) (*types.Lock, error) {
	assetID, err := registry.NormalizeID("asset_id", assetID)
	if err != nil {
		return nil, err
	}
	return s.ActiveLock(dbctx.Context{Ctx: ctx}, assetID)
}

func (s *lockService) Check(ctx context.Context, lockID string) (*LockStatus, error) {
	lockID, err := registry.NormalizeID("lock_id", lockID)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	l, err := s.lockByID(dbc, lockID)
	if err != nil {
		return nil, err
	}
	if l != nil {
		return &LockStatus{Lock: l}, nil
	}
	t, err := s.locks.GetTerminatedByID(dbc, lockID)
	if err != nil {
		return nil, storeFailure(err, "load terminated lock<%s>", lockID)
	}
	return &LockStatus{Terminated: t}, nil
}

func (s *lockService) Vote(ctx context.Context, assetID, serverID, idempotentHash string) (lock *types.Lock, err error) {
	assetID, err = registry.NormalizeID("asset_id", assetID)
	if err != nil {
		return nil, err
	}
	serverID = strings.TrimSpace(serverID)
	if err := requireCaller("server_id", serverID); err != nil {
		return nil, err
	}
	ctx, span := observability.StartSpan(ctx, "LockService.Vote",
		attribute.String("asset_id", assetID),
		attribute.String("server_id", serverID),
	)
	defer func() { observability.EndSpan(span, err) }()

	lock, err = resmutex.Do(ctx, s.mutex, assetID, "LockService.Vote", func(ctx context.Context) (*types.Lock, error) {
		dbc := dbctx.Context{Ctx: ctx}
		cur, err := s.ActiveLock(dbc, assetID)
		if err != nil {
			return nil, err
		}
		if cur != nil {
			if idempotentHash != "" && cur.Locker == serverID && cur.IdempotentHash == idempotentHash {
				return cur, nil
			}
			return nil, registry.Errorf(registry.CodeAlreadyLocked, "asset<%s> is already locked by %s", assetID, cur.Locker)
		}
		now := s.now().UTC()
		row := &types.Lock{
			ID:             registry.NewID(),
			AssetID:        assetID,
			Locker:         serverID,
			IdempotentHash: idempotentHash,
			State:          registry.LockPrepared,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.locks.Create(dbc, row); err != nil {
			if errors.Is(err, repos.ErrDuplicate) {
				return nil, registry.Errorf(registry.CodeAlreadyLocked, "asset<%s> is already locked", assetID)
			}
			return nil, storeFailure(err, "create lock for asset<%s>", assetID)
		}
		return row, nil
	})
	if err != nil {
		return nil, mutexFailure(err, assetID)
	}
	if lock.State == registry.LockPrepared {
		observability.Current().IncLockTransition("vote", lock.State.String())
	}
	s.log.Debug("lock voted", "lock_id", lock.ID, "asset_id", assetID, "locker", serverID)
	return lock, nil
}

func (s *lockService) Continue(ctx context.Context, lockID, serverID string) (lock *types.Lock, err error) {
	ctx, span := observability.StartSpan(ctx, "LockService.Continue", attribute.String("lock_id", lockID))
	defer func() { observability.EndSpan(span, err) }()

	dbc := dbctx.Context{Ctx: ctx}
	l, err := s.preparedLock(dbc, lockID, serverID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	ok, err := s.locks.Transition(dbc, l.ID, registry.LockPrepared, registry.LockCommitted, now)
	if err != nil {
		return nil, storeFailure(err, "commit lock<%s>", l.ID)
	}
	if !ok {
		return nil, registry.Errorf(registry.CodeNotPrepared, "lock<%s> is no longer PREPARED", l.ID)
	}
	l.State = registry.LockCommitted
	l.UpdatedAt = now
	observability.Current().IncLockTransition("continue", l.State.String())
	return l, nil
}

func (s *lockService) Abort(ctx context.Context, lockID, serverID string) (lock *types.Lock, err error) {
	ctx, span := observability.StartSpan(ctx, "LockService.Abort", attribute.String("lock_id", lockID))
	defer func() { observability.EndSpan(span, err) }()

	dbc := dbctx.Context{Ctx: ctx}
	l, err := s.preparedLock(dbc, lockID, serverID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	_, moved, err := s.locks.Terminate(dbc, l, registry.LockPrepared, registry.LockAborted, now)
	if err != nil {
		return nil, storeFailure(err, "abort lock<%s>", l.ID)
	}
	if !moved {
		return nil, registry.Errorf(registry.CodeNotPrepared, "lock<%s> is no longer PREPARED", l.ID)
	}
	l.State = registry.LockAborted
	l.UpdatedAt = now
	observability.Current().IncLockTransition("abort", l.State.String())
	return l, nil
}

func (s *lockService) Release(ctx context.Context, assetID, serverID string) (lock *types.Lock, err error) {
	assetID, err = registry.NormalizeID("asset_id", assetID)
	if err != nil {
		return nil, err
	}
	ctx, span := observability.StartSpan(ctx, "LockService.Release", attribute.String("asset_id", assetID))
	defer func() { observability.EndSpan(span, err) }()

	if err := requireCaller("server_id", serverID); err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	l, err := s.ActiveLock(dbc, assetID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, nil
	}
	if l.Locker != serverID {
		return nil, registry.Errorf(registry.CodeWrongLocker, "asset<%s> is locked by %s, not %s", assetID, l.Locker, serverID)
	}
	if l.State != registry.LockCommitted {
		return nil, registry.Errorf(registry.CodeNotCommitted, "lock<%s> is %s, not COMMITTED", l.ID, l.State)
	}
	if err := s.ReleaseHeld(dbc, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *lockService) History(ctx context.Context, assetID string, limit int) ([]*types.TerminatedLock, error) {
	assetID, err := registry.NormalizeID("asset_id", assetID)
	if err != nil {
		return nil, err
	}
	out, err := s.locks.ListTerminatedByAsset(dbctx.Context{Ctx: ctx}, assetID, limit)
	if err != nil {
		return nil, storeFailure(err, "list terminated locks of asset<%s>", assetID)
	}
	return out, nil
}

// ActiveLock implements assetops.HolderAuthority.
func (s *lockService) ActiveLock(dbc dbctx.Context, assetID string) (*types.Lock, error) {
	l, err := s.locks.GetByAssetID(dbc, assetID)
	if err != nil {
		return nil, storeFailure(err, "load lock of asset<%s>", assetID)
	}
	return s.reclaim(dbc, l)
}

// AcquireHeld leaves assetID held by locker in COMMITTED, walking a fresh
// lock through PREPARED first.
func (s *lockService) AcquireHeld(dbc dbctx.Context, assetID, locker string) (*types.Lock, error) {
	cur, err := s.ActiveLock(dbc, assetID)
	if err != nil {
		return nil, err
	}
	if cur != nil && cur.Locker != locker {
		return nil, registry.Errorf(registry.CodeAssetHeldByOther, "asset<%s> is held by %s", assetID, cur.Locker)
	}
	if cur != nil && cur.State == registry.LockCommitted {
		return cur, nil
	}
	if cur == nil {
		now := s.now().UTC()
		cur = &types.Lock{
			ID:        registry.NewID(),
			AssetID:   assetID,
			Locker:    locker,
			State:     registry.LockPrepared,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.locks.Create(dbc, cur); err != nil {
			if errors.Is(err, repos.ErrDuplicate) {
				return nil, registry.Errorf(registry.CodeAssetHeldByOther, "asset<%s> was locked concurrently", assetID)
			}
			return nil, storeFailure(err, "create lock for asset<%s>", assetID)
		}
		observability.Current().IncLockTransition("hold", cur.State.String())
	}
	now := s.now().UTC()
	ok, err := s.locks.Transition(dbc, cur.ID, registry.LockPrepared, registry.LockCommitted, now)
	if err != nil {
		return nil, storeFailure(err, "commit lock<%s>", cur.ID)
	}
	if !ok {
		return nil, registry.Errorf(registry.CodeNotPrepared, "lock<%s> left PREPARED concurrently", cur.ID)
	}
	cur.State = registry.LockCommitted
	cur.UpdatedAt = now
	observability.Current().IncLockTransition("hold", cur.State.String())
	return cur, nil
}

// ReleaseHeld moves a COMMITTED lock to RELEASED and archives it.
func (s *lockService) ReleaseHeld(dbc dbctx.Context, l *types.Lock) error {
	if l == nil {
		return fmt.Errorf("lock required")
	}
	if !registry.CanTransitionLock(l.State, registry.LockReleased) {
		return registry.Errorf(registry.CodeNotCommitted, "lock<%s> is %s, not COMMITTED", l.ID, l.State)
	}
	now := s.now().UTC()
	_, moved, err := s.locks.Terminate(dbc, l, registry.LockCommitted, registry.LockReleased, now)
	if err != nil {
		return storeFailure(err, "release lock<%s>", l.ID)
	}
	if !moved {
		return registry.Errorf(registry.CodeNotCommitted, "lock<%s> left COMMITTED concurrently", l.ID)
	}
	l.State = registry.LockReleased
	l.UpdatedAt = now
	observability.Current().IncLockTransition("release", l.State.String())
	s.log.Debug("lock released", "lock_id", l.ID, "asset_id", l.AssetID)
	return nil
}

// RetireHeld ends the active lock of an asset that is being burned. A
// PREPARED lock is aborted and a COMMITTED one released.
func (s *lockService) RetireHeld(dbc dbctx.Context, l *types.Lock) error {
	if l == nil {
		return fmt.Errorf("lock required")
	}
	to := registry.LockReleased
	if l.State == registry.LockPrepared {
		to = registry.LockAborted
	}
	if !registry.CanTransitionLock(l.State, to) {
		return registry.Errorf(registry.CodeNotCommitted, "lock<%s> is %s", l.ID, l.State)
	}
	now := s.now().UTC()
	_, moved, err := s.locks.Terminate(dbc, l, l.State, to, now)
	if err != nil {
		return storeFailure(err, "retire lock<%s>", l.ID)
	}
	if !moved {
		return registry.Errorf(registry.CodeNotCommitted, "lock<%s> left %s concurrently", l.ID, l.State)
	}
	l.State = to
	l.UpdatedAt = now
	observability.Current().IncLockTransition("retire", to.String())
	s.log.Info("lock retired with its asset", "lock_id", l.ID, "asset_id", l.AssetID, "state", to.String())
	return nil
}

func (s *lockService) lockByID(dbc dbctx.Context, lockID string) (*types.Lock, error) {
	l, err := s.locks.GetByID(dbc, lockID)
	if err != nil {
		return nil, storeFailure(err, "load lock<%s>", lockID)
	}
	return s.reclaim(dbc, l)
}

// reclaim applies the lazy timeout: a PREPARED lock idle past the window is
// archived as TIMEOUT and reported absent.
func (s *lockService) reclaim(dbc dbctx.Context, l *types.Lock) (*types.Lock, error) {
	now := s.now().UTC()
	if l == nil || !l.Expired(now, s.timeout) {
		return l, nil
	}
	_, moved, err := s.locks.Terminate(dbc, l, registry.LockPrepared, registry.LockTimeout, now)
	if err != nil {
		return nil, storeFailure(err, "time out lock<%s>", l.ID)
	}
	if moved {
		observability.Current().IncLockTransition("timeout", registry.LockTimeout.String())
		s.log.Info("lock timed out", "lock_id", l.ID, "asset_id", l.AssetID, "locker", l.Locker)
		return nil, nil
	}
	// someone else moved it first; report what is there now
	cur, err := s.locks.GetByID(dbc, l.ID)
	if err != nil {
		return nil, storeFailure(err, "reload lock<%s>", l.ID)
	}
	if cur != nil && cur.Expired(now, s.timeout) {
		return nil, nil
	}
	return cur, nil
}

// preparedLock loads lockID and checks it is PREPARED and owned by serverID.
func (s *lockService) preparedLock(dbc dbctx.Context, lockID, serverID string) (*types.Lock, error) {
	lockID, err := registry.NormalizeID("lock_id", lockID)
	if err != nil {
		return nil, err
	}
	if err := requireCaller("server_id", serverID); err != nil {
		return nil, err
	}
	l, err := s.lockByID(dbc, lockID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		t, err := s.locks.GetTerminatedByID(dbc, lockID)
		if err != nil {
			return nil, storeFailure(err, "load terminated lock<%s>", lockID)
		}
		if t == nil {
			return nil, registry.Errorf(registry.CodeLockNotFound, "lock<%s> not found", lockID)
		}
		if t.Locker != serverID {
			return nil, registry.Errorf(registry.CodeWrongLocker, "lock<%s> belongs to %s, not %s", lockID, t.Locker, serverID)
		}
		return nil, registry.Errorf(registry.CodeNotPrepared, "lock<%s> is %s, not PREPARED", lockID, t.State)
	}
	if l.Locker != serverID {
		return nil, registry.Errorf(registry.CodeWrongLocker, "lock<%s> belongs to %s, not %s", lockID, l.Locker, serverID)
	}
	if l.State != registry.LockPrepared {
		return nil, registry.Errorf(registry.CodeNotPrepared, "lock<%s> is %s, not PREPARED", lockID, l.State)
	}
	return l, nil
}
