package registry

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNormalizeID(t *testing.T) {
	id, err := NormalizeID("asset_id", " 0123456789ABCDEF01234567 ")
	if err != nil {
		t.Fatalf("NormalizeID: %v", err)
	}
	if id != "0123456789abcdef01234567" {
		t.Fatalf("NormalizeID: got %q", id)
	}

	if _, err := NormalizeID("asset_id", ""); CodeOf(err) != CodeMissingField {
		t.Fatalf("empty id: expected missing_field, got %v", err)
	}
	for _, bad := range []string{"abc", "0123456789abcdef0123456z", "0123456789abcdef012345678"} {
		if _, err := NormalizeID("op_id", bad); CodeOf(err) != CodeInvalidIDFormat {
			t.Fatalf("NormalizeID(%q): expected invalid_id_format, got %v", bad, err)
		}
	}
}

func TestNewID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewID()
		if !ValidID(id) || id != strings.ToLower(id) {
			t.Fatalf("NewID: %q is not a lowercase registry id", id)
		}
		if seen[id] {
			t.Fatalf("NewID: duplicate %q", id)
		}
		seen[id] = true
	}
}

func TestErrorMatching(t *testing.T) {
	err := Wrap(CodeStoreFailure, errors.New("conn reset"), "load asset")
	if !errors.Is(err, Sentinel(CodeStoreFailure)) {
		t.Fatalf("errors.Is should match on code")
	}
	if errors.Is(err, Sentinel(CodeLockNotFound)) {
		t.Fatalf("errors.Is matched a different code")
	}
	if CodeOf(errors.New("plain")) != CodeStoreFailure {
		t.Fatalf("uncoded errors should map to store_failure")
	}
	if CodeOf(nil) != CodeNone {
		t.Fatalf("nil error should have no code")
	}

	kinds := map[ErrorCode]ErrorKind{
		CodeInvalidIDFormat:   KindMalformed,
		CodeTransferToSelf:    KindMalformed,
		CodeAlreadyLocked:     KindState,
		CodeNotCommitted:      KindState,
		CodeWrongLocker:       KindOwnership,
		CodeOwnershipMismatch: KindOwnership,
		CodeAssetNotAlive:     KindNotFound,
		CodeMutexUnavailable:  KindDependency,
	}
	for code, want := range kinds {
		if got := code.Kind(); got != want {
			t.Fatalf("%s.Kind(): expected %s, got %s", code, want, got)
		}
	}
}

func TestCheckParams(t *testing.T) {
	cases := []struct {
		name string
		code OpCode
		p    Params
		want ErrorCode
	}{
		{"issue ok", OpIssue, IssueParams{OwnerID: "rm-1"}, CodeNone},
		{"issue missing owner", OpIssue, IssueParams{}, CodeInvalidParamsShape},
		{"issue bad data", OpIssue, IssueParams{OwnerID: "rm-1", Data: json.RawMessage("{")}, CodeInvalidParamsShape},
		{"update needs data", OpUpdate, UpdateParams{}, CodeInvalidParamsShape},
		{"update ok", OpUpdate, UpdateParams{Data: json.RawMessage(`{"lv":2}`)}, CodeNone},
		{"transfer missing to", OpTransfer, TransferParams{From: "a"}, CodeInvalidParamsShape},
		{"variant mismatch", OpBurn, HoldParams{}, CodeInvalidParamsShape},
		{"nil params", OpHold, nil, CodeInvalidParamsShape},
		{"unknown code", OpCode(42), BurnParams{}, CodeUnknownOpCode},
	}
	for _, tc := range cases {
		if got := CodeOf(CheckParams(tc.code, tc.p)); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestDecodeParams(t *testing.T) {
	p, err := DecodeParams(OpTransfer, []byte(`{"from":"a","to":"b"}`))
	if err != nil {
		t.Fatalf("DecodeParams: %v", err)
	}
	tp, ok := p.(TransferParams)
	if !ok || tp.From != "a" || tp.To != "b" {
		t.Fatalf("DecodeParams: got %#v", p)
	}

	if _, err := DecodeParams(OpBurn, nil); err != nil {
		t.Fatalf("empty burn params should decode: %v", err)
	}
	if _, err := DecodeParams(OpBurn, []byte(`{"owner_id":"x"}`)); CodeOf(err) != CodeInvalidParamsShape {
		t.Fatalf("foreign fields should be rejected, got %v", err)
	}
	if _, err := DecodeParams(OpNone, []byte(`{}`)); CodeOf(err) != CodeUnknownOpCode {
		t.Fatalf("expected unknown_op_code, got %v", err)
	}

	raw, err := EncodeParams(IssueParams{OwnerID: "rm-1", LogicMark: "hero"})
	if err != nil {
		t.Fatalf("EncodeParams: %v", err)
	}
	op := &Operation{OpCode: OpIssue, Params: raw}
	back, err := op.DecodedParams()
	if err != nil {
		t.Fatalf("DecodedParams: %v", err)
	}
	if back.(IssueParams).LogicMark != "hero" {
		t.Fatalf("DecodedParams: got %#v", back)
	}
}

func TestOpCodeText(t *testing.T) {
	code, err := ParseOpCode(" transfer ")
	if err != nil || code != OpTransfer {
		t.Fatalf("ParseOpCode: code=%v err=%v", code, err)
	}
	if _, err := ParseOpCode("mint"); CodeOf(err) != CodeUnknownOpCode {
		t.Fatalf("ParseOpCode(mint): expected unknown_op_code, got %v", err)
	}
	if _, err := OpCode(9).MarshalText(); err == nil {
		t.Fatalf("MarshalText should reject unknown codes")
	}
}

func TestLockTransitions(t *testing.T) {
	legal := [][2]LockState{
		{LockPrepared, LockCommitted},
		{LockPrepared, LockAborted},
		{LockPrepared, LockTimeout},
		{LockCommitted, LockReleased},
	}
	for _, tr := range legal {
		if !CanTransitionLock(tr[0], tr[1]) {
			t.Fatalf("%s -> %s should be legal", tr[0], tr[1])
		}
	}
	illegal := [][2]LockState{
		{LockCommitted, LockAborted},
		{LockCommitted, LockTimeout},
		{LockPrepared, LockReleased},
		{LockReleased, LockPrepared},
		{LockAborted, LockCommitted},
	}
	for _, tr := range illegal {
		if CanTransitionLock(tr[0], tr[1]) {
			t.Fatalf("%s -> %s should be illegal", tr[0], tr[1])
		}
	}
	if LockCommitted.Terminal() || !LockTimeout.Terminal() || !LockReleased.Terminal() {
		t.Fatalf("Terminal() misclassifies lock states")
	}
}

func TestOpTransitions(t *testing.T) {
	if !CanTransitionOp(OpInitialed, OpPrepared) || !CanTransitionOp(OpPrepared, OpTimeout) {
		t.Fatalf("expected legal op transitions")
	}
	if CanTransitionOp(OpCommitted, OpAborted) || CanTransitionOp(OpInitialed, OpCommitted) {
		t.Fatalf("expected illegal op transitions")
	}
	if OpPrepared.Terminal() || !OpTimeout.Terminal() {
		t.Fatalf("Terminal() misclassifies op states")
	}
}

func TestLockExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := &Lock{State: LockPrepared, UpdatedAt: now.Add(-6 * time.Minute)}
	if !l.Expired(now, LockPreparedTimeout) {
		t.Fatalf("prepared lock older than window should be expired")
	}
	l.UpdatedAt = now.Add(-4 * time.Minute)
	if l.Expired(now, LockPreparedTimeout) {
		t.Fatalf("fresh prepared lock should not be expired")
	}
	l.State = LockCommitted
	l.UpdatedAt = now.Add(-time.Hour)
	if l.Expired(now, LockPreparedTimeout) {
		t.Fatalf("committed locks never expire")
	}

	term := l.Terminate(LockReleased, now)
	if term.ID != l.ID || term.State != LockReleased || !term.FinishedAt.Equal(now) {
		t.Fatalf("Terminate: got %#v", term)
	}
}
