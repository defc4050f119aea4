package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/asset-registry/internal/domain/registry"
)

func TestLockVoteContinueUpdate(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	assetID := e.issue(t, "svc1", "user-1")

	l, err := e.locks.Vote(ctx, assetID, "svc1", "")
	if err != nil {
		t.Fatalf("Vote(svc1): %v", err)
	}
	if l.State != registry.LockPrepared || l.Locker != "svc1" {
		t.Fatalf("Vote(svc1): got %#v", l)
	}
	_, err = e.locks.Vote(ctx, assetID, "svc2", "")
	expectCode(t, "Vote(svc2)", err, registry.CodeAlreadyLocked)

	l, err = e.locks.Continue(ctx, l.ID, "svc1")
	if err != nil || l.State != registry.LockCommitted {
		t.Fatalf("Continue: lock=%v err=%v", l, err)
	}

	res, err := e.coord.Update(ctx, "svc1", registry.NewID(), assetID, []byte(`{"v":2}`))
	if err != nil {
		t.Fatalf("Update(svc1): %v", err)
	}
	if string(res.Asset.Data) != `{"v":2}` {
		t.Fatalf("Update(svc1): data=%s", res.Asset.Data)
	}

	opID := registry.NewID()
	_, err = e.coord.Update(ctx, "svc2", opID, assetID, []byte(`{"v":3}`))
	expectCode(t, "Update(svc2)", err, registry.CodeAssetHeldByOther)

	op, err := e.ledger.Get(dbcFor(ctx), opID)
	if err != nil || op == nil {
		t.Fatalf("ledger.Get: op=%v err=%v", op, err)
	}
	if op.State != registry.OpAborted || op.ErrorCode != registry.CodeAssetHeldByOther {
		t.Fatalf("rejected op: state=%s error_code=%q", op.State, op.ErrorCode)
	}
	a, _ := e.assets.Get(ctx, assetID)
	if string(a.Data) != `{"v":2}` {
		t.Fatalf("rejected update changed data: %s", a.Data)
	}
}

func TestLockLazyTimeout(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	assetID := registry.NewID()

	l, err := e.locks.Vote(ctx, assetID, "svc1", "")
	if err != nil {
		t.Fatalf("Vote(svc1): %v", err)
	}

	e.clock.Advance(4 * time.Minute)
	if cur, err := e.locks.Get(ctx, assetID); err != nil || cur == nil {
		t.Fatalf("Get before timeout: lock=%v err=%v", cur, err)
	}

	e.clock.Advance(2 * time.Minute)
	cur, err := e.locks.Get(ctx, assetID)
	if err != nil || cur != nil {
		t.Fatalf("Get after timeout: lock=%v err=%v", cur, err)
	}
	status, err := e.locks.Check(ctx, l.ID)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if status.Lock != nil || status.Terminated == nil || status.Terminated.State != registry.LockTimeout {
		t.Fatalf("Check: got %#v", status)
	}

	next, err := e.locks.Vote(ctx, assetID, "svc2", "")
	if err != nil {
		t.Fatalf("Vote(svc2) after timeout: %v", err)
	}
	if next.ID == l.ID || next.State != registry.LockPrepared {
		t.Fatalf("Vote(svc2): got %#v", next)
	}

	_, err = e.locks.Continue(ctx, l.ID, "svc1")
	expectCode(t, "Continue(timed out)", err, registry.CodeNotPrepared)
}

func TestLockCommittedNeverTimesOut(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	assetID := registry.NewID()

	l, err := e.locks.Vote(ctx, assetID, "svc1", "")
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if _, err := e.locks.Continue(ctx, l.ID, "svc1"); err != nil {
		t.Fatalf("Continue: %v", err)
	}
	e.clock.Advance(time.Hour)
	cur, err := e.locks.Get(ctx, assetID)
	if err != nil || cur == nil || cur.State != registry.LockCommitted {
		t.Fatalf("Get: lock=%v err=%v", cur, err)
	}
}

func TestLockVoteIdempotentHash(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	assetID := registry.NewID()

	first, err := e.locks.Vote(ctx, assetID, "svc1", "h1")
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	again, err := e.locks.Vote(ctx, assetID, "svc1", "h1")
	if err != nil {
		t.Fatalf("Vote(same hash): %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("Vote(same hash): new lock %s, want %s", again.ID, first.ID)
	}
	_, err = e.locks.Vote(ctx, assetID, "svc1", "h2")
	expectCode(t, "Vote(other hash)", err, registry.CodeAlreadyLocked)
	_, err = e.locks.Vote(ctx, assetID, "svc1", "")
	expectCode(t, "Vote(no hash)", err, registry.CodeAlreadyLocked)
	_, err = e.locks.Vote(ctx, assetID, "svc2", "h1")
	expectCode(t, "Vote(other server)", err, registry.CodeAlreadyLocked)
}

func TestLockConcurrentVotes(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	assetID := registry.NewID()

	const voters = 8
	var (
		mu      sync.Mutex
		granted []string
		refused int
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < voters; i++ {
		server := "svc" + string(rune('a'+i))
		g.Go(func() error {
			l, err := e.locks.Vote(gctx, assetID, server, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				granted = append(granted, l.Locker)
			case registry.CodeOf(err) == registry.CodeAlreadyLocked:
				refused++
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if len(granted) != 1 || refused != voters-1 {
		t.Fatalf("expected exactly one grant, got granted=%v refused=%d", granted, refused)
	}
	cur, err := e.locks.Get(ctx, assetID)
	if err != nil || cur == nil || cur.Locker != granted[0] {
		t.Fatalf("Get: lock=%v err=%v", cur, err)
	}
}

func TestLockProtocolErrors(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	assetID := registry.NewID()

	_, err := e.locks.Vote(ctx, "not-an-id", "svc1", "")
	expectCode(t, "Vote(bad id)", err, registry.CodeInvalidIDFormat)
	_, err = e.locks.Vote(ctx, assetID, " ", "")
	expectCode(t, "Vote(no server)", err, registry.CodeMissingField)
	_, err = e.locks.Continue(ctx, registry.NewID(), "svc1")
	expectCode(t, "Continue(unknown)", err, registry.CodeLockNotFound)

	l, err := e.locks.Vote(ctx, assetID, "svc1", "")
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	_, err = e.locks.Continue(ctx, l.ID, "svc2")
	expectCode(t, "Continue(wrong locker)", err, registry.CodeWrongLocker)
	_, err = e.locks.Abort(ctx, l.ID, "svc2")
	expectCode(t, "Abort(wrong locker)", err, registry.CodeWrongLocker)
	_, err = e.locks.Release(ctx, assetID, "svc1")
	expectCode(t, "Release(prepared)", err, registry.CodeNotCommitted)

	aborted, err := e.locks.Abort(ctx, l.ID, "svc1")
	if err != nil || aborted.State != registry.LockAborted {
		t.Fatalf("Abort: lock=%v err=%v", aborted, err)
	}
	_, err = e.locks.Continue(ctx, l.ID, "svc1")
	expectCode(t, "Continue(aborted)", err, registry.CodeNotPrepared)
	_, err = e.locks.Abort(ctx, l.ID, "svc1")
	expectCode(t, "Abort(aborted)", err, registry.CodeNotPrepared)
	_, err = e.locks.Continue(ctx, l.ID, "svc2")
	expectCode(t, "Continue(aborted, other)", err, registry.CodeWrongLocker)

	released, err := e.locks.Release(ctx, assetID, "svc1")
	if err != nil || released != nil {
		t.Fatalf("Release(unlocked): lock=%v err=%v", released, err)
	}

	l, err = e.locks.Vote(ctx, assetID, "svc1", "")
	if err != nil {
		t.Fatalf("Vote again: %v", err)
	}
	if _, err := e.locks.Continue(ctx, l.ID, "svc1"); err != nil {
		t.Fatalf("Continue: %v", err)
	}
	_, err = e.locks.Continue(ctx, l.ID, "svc1")
	expectCode(t, "Continue(committed)", err, registry.CodeNotPrepared)
	_, err = e.locks.Abort(ctx, l.ID, "svc1")
	expectCode(t, "Abort(committed)", err, registry.CodeNotPrepared)
	_, err = e.locks.Release(ctx, assetID, "svc2")
	expectCode(t, "Release(wrong locker)", err, registry.CodeWrongLocker)

	released, err = e.locks.Release(ctx, assetID, "svc1")
	if err != nil || released == nil || released.State != registry.LockReleased {
		t.Fatalf("Release: lock=%v err=%v", released, err)
	}
	if cur, _ := e.locks.Get(ctx, assetID); cur != nil {
		t.Fatalf("Get after release: %v", cur)
	}
	hist, err := e.locks.History(ctx, assetID, 10)
	if err != nil || len(hist) != 2 {
		t.Fatalf("History: len=%d err=%v", len(hist), err)
	}
}
