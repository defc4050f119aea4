package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	repos "github.com/yungbote/asset-registry/internal/data/repos/registry"
	"github.com/yungbote/asset-registry/internal/data/repos/testutil"
	types "github.com/yungbote/asset-registry/internal/domain"
	"github.com/yungbote/asset-registry/internal/domain/registry"
	"github.com/yungbote/asset-registry/internal/modules/assetops"
	"github.com/yungbote/asset-registry/internal/platform/dbctx"
	"github.com/yungbote/asset-registry/internal/platform/resmutex"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	db     *gorm.DB
	clock  *testClock
	assets AssetService
	locks  LockService
	ledger OperationLedger
	coord  OperationCoordinator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithMutex(t, resmutex.NewLocal(resmutex.Options{
		TTL:       time.Minute,
		Wait:      5 * time.Second,
		RetryBase: time.Millisecond,
	}))
}

func newTestEnvWithMutex(t *testing.T, mutex resmutex.Mutex) *testEnv {
	t.Helper()
	return newTestEnvWith(t, mutex, nil)
}

// newTestEnvWith lets a test wrap the lock service before the handlers see
// it.
func newTestEnvWith(t *testing.T, mutex resmutex.Mutex, wrap func(assetops.HolderAuthority) assetops.HolderAuthority) *testEnv {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	clock := newTestClock()

	assetRepo := repos.NewAssetRepo(db, log)
	locks := NewLockService(db, log, repos.NewLockRepo(db, log), mutex, LockServiceConfig{Now: clock.Now})
	var holder assetops.HolderAuthority = locks
	if wrap != nil {
		holder = wrap(locks)
	}
	handlers, err := assetops.NewRegistry(assetops.Deps{
		Log:    log,
		Assets: assetRepo,
		Holder: holder,
		Now:    clock.Now,
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	ledger := NewOperationLedger(db, log, repos.NewOperationRepo(db, log), handlers, OperationLedgerConfig{Now: clock.Now})
	return &testEnv{
		db:     db,
		clock:  clock,
		assets: NewAssetService(log, assetRepo),
		locks:  locks,
		ledger: ledger,
		coord:  NewOperationCoordinator(log, mutex, ledger, handlers),
	}
}

func expectCode(t *testing.T, what string, err error, want registry.ErrorCode) {
	t.Helper()
	if got := registry.CodeOf(err); got != want {
		t.Fatalf("%s: expected %q, got %q (%v)", what, want, got, err)
	}
}

// issue creates an asset owned by owner and returns its id.
func (e *testEnv) issue(t *testing.T, creator, owner string) string {
	t.Helper()
	res, err := e.coord.Issue(context.Background(), creator, registry.NewID(), "", registry.IssueParams{
		OwnerID: owner,
		Data:    []byte(`{"v":1}`),
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return res.Asset.ID
}

// unavailableMutex never grants a lease.
type unavailableMutex struct{}

func (unavailableMutex) Acquire(context.Context, string, string) (*resmutex.Lease, error) {
	return nil, resmutex.ErrUnavailable
}

// failingHolder makes AcquireHeld fail with err after the real lookup.
type failingHolder struct {
	assetops.HolderAuthority
	err error
}

func (f failingHolder) AcquireHeld(dbc dbctx.Context, assetID, locker string) (*types.Lock, error) {
	if _, err := f.HolderAuthority.ActiveLock(dbc, assetID); err != nil {
		return nil, err
	}
	return nil, f.err
}

func dbcFor(ctx context.Context) dbctx.Context {
	return dbctx.Context{Ctx: ctx}
}
