package http

import (
	"bytes"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	repos "github.com/yungbote/asset-registry/internal/data/repos/registry"
	"github.com/yungbote/asset-registry/internal/data/repos/testutil"
	"github.com/yungbote/asset-registry/internal/domain/registry"
	httpH "github.com/yungbote/asset-registry/internal/http/handlers"
	httpMW "github.com/yungbote/asset-registry/internal/http/middleware"
	"github.com/yungbote/asset-registry/internal/modules/assetops"
	"github.com/yungbote/asset-registry/internal/platform/resmutex"
	"github.com/yungbote/asset-registry/internal/services"
)

const testSecret = "test-secret"

type testServer struct {
	engine *gin.Engine
	auth   services.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)
	mutex := resmutex.NewLocal(resmutex.Options{Wait: 5 * time.Second, RetryBase: time.Millisecond})

	assetRepo := repos.NewAssetRepo(db, log)
	locks := services.NewLockService(db, log, repos.NewLockRepo(db, log), mutex, services.LockServiceConfig{})
	handlers, err := assetops.NewRegistry(assetops.Deps{Log: log, Assets: assetRepo, Holder: locks})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	ledger := services.NewOperationLedger(db, log, repos.NewOperationRepo(db, log), handlers, services.OperationLedgerConfig{})
	coord := services.NewOperationCoordinator(log, mutex, ledger, handlers)
	auth := services.NewAuthService(log, testSecret)

	engine := NewRouter(RouterConfig{
		Log:            log,
		AuthMiddleware: httpMW.NewAuthMiddleware(log, auth),
		HealthHandler:  httpH.NewHealthHandler(db),
		AssetHandler:   httpH.NewAssetHandler(services.NewAssetService(log, assetRepo), ledger, locks),
		LockHandler:    httpH.NewLockHandler(locks),
		OpHandler:      httpH.NewOpHandler(coord, ledger),
	})
	return &testServer{engine: engine, auth: auth}
}

func (s *testServer) token(t *testing.T, sid string) string {
	t.Helper()
	tok, err := s.auth.IssueToken(sid, "SERVICE", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.engine.ServeHTTP(rr, req)

	var out map[string]any
	if ct := rr.Header().Get("Content-Type"); len(ct) >= 16 && ct[:16] == "application/json" {
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response %q: %v", rr.Body.String(), err)
		}
	}
	return rr, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealthRoutes(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/healthcheck", "/readycheck"} {
		rr, _ := s.do(t, stdhttp.MethodGet, path, "", nil, nil)
		if rr.Code != stdhttp.StatusOK {
			t.Fatalf("%s: status %d", path, rr.Code)
		}
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	body := map[string]any{"asset_id": registry.NewID()}

	rr, out := s.do(t, stdhttp.MethodPost, "/api/locks/vote", "", body, nil)
	if rr.Code != stdhttp.StatusUnauthorized || errorCode(out) != "unauthorized" {
		t.Fatalf("no token: status=%d body=%v", rr.Code, out)
	}

	other := services.NewAuthService(testutil.Logger(t), "another-secret")
	forged, err := other.IssueToken("svc1", "SERVICE", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	rr, _ = s.do(t, stdhttp.MethodPost, "/api/locks/vote", forged, body, nil)
	if rr.Code != stdhttp.StatusUnauthorized {
		t.Fatalf("forged token: status=%d", rr.Code)
	}

	rr, _ = s.do(t, stdhttp.MethodPost, "/api/locks/vote", s.token(t, "svc1"), body, nil)
	if rr.Code != stdhttp.StatusOK {
		t.Fatalf("valid token: status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestOpsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	svc1 := s.token(t, "svc1")
	svc2 := s.token(t, "svc2")
	opID := registry.NewID()

	issue := map[string]any{"owner_id": "user-1", "logic_mark": "hero", "data": map[string]any{"v": 1}}
	rr, out := s.do(t, stdhttp.MethodPost, "/api/ops/issue", svc1, issue, map[string]string{"Idempotency-Key": opID})
	if rr.Code != stdhttp.StatusOK || out["is_new"] != true {
		t.Fatalf("issue: status=%d body=%v", rr.Code, out)
	}
	asset, _ := out["asset"].(map[string]any)
	assetID, _ := asset["id"].(string)
	if !registry.ValidID(assetID) {
		t.Fatalf("issue: asset id %q", assetID)
	}
	op, _ := out["operation"].(map[string]any)
	if op["id"] != opID || op["op_code"] != "ISSUE" || op["state"] != "COMMITTED" {
		t.Fatalf("issue: operation=%v", op)
	}

	issue["asset_id"] = assetID
	rr, out = s.do(t, stdhttp.MethodPost, "/api/ops/issue", svc1, issue, map[string]string{"Idempotency-Key": opID})
	if rr.Code != stdhttp.StatusOK || out["is_new"] != false {
		t.Fatalf("issue replay: status=%d body=%v", rr.Code, out)
	}

	rr, out = s.do(t, stdhttp.MethodPost, "/api/locks/vote", svc1, map[string]any{"asset_id": assetID}, nil)
	if rr.Code != stdhttp.StatusOK {
		t.Fatalf("vote: status=%d body=%v", rr.Code, out)
	}
	lock, _ := out["lock"].(map[string]any)
	lockID, _ := lock["id"].(string)

	rr, out = s.do(t, stdhttp.MethodPost, "/api/locks/vote", svc2, map[string]any{"asset_id": assetID}, nil)
	if rr.Code != stdhttp.StatusConflict || errorCode(out) != string(registry.CodeAlreadyLocked) {
		t.Fatalf("vote svc2: status=%d body=%v", rr.Code, out)
	}
	rr, out = s.do(t, stdhttp.MethodPost, "/api/locks/continue", svc2, map[string]any{"lock_id": lockID}, nil)
	if rr.Code != stdhttp.StatusForbidden || errorCode(out) != string(registry.CodeWrongLocker) {
		t.Fatalf("continue svc2: status=%d body=%v", rr.Code, out)
	}
	rr, _ = s.do(t, stdhttp.MethodPost, "/api/locks/continue", svc1, map[string]any{"lock_id": lockID}, nil)
	if rr.Code != stdhttp.StatusOK {
		t.Fatalf("continue svc1: status=%d", rr.Code)
	}

	update := map[string]any{"op_id": registry.NewID(), "asset_id": assetID, "data": map[string]any{"v": 2}}
	rr, out = s.do(t, stdhttp.MethodPost, "/api/ops/update", svc2, update, nil)
	if rr.Code != stdhttp.StatusForbidden || errorCode(out) != string(registry.CodeAssetHeldByOther) {
		t.Fatalf("update svc2: status=%d body=%v", rr.Code, out)
	}

	rr, out = s.do(t, stdhttp.MethodPost, "/api/ops/transfer", svc1, map[string]any{
		"op_id": registry.NewID(), "asset_id": assetID, "from": "user-1", "to": "user-1",
	}, nil)
	if rr.Code != stdhttp.StatusBadRequest || errorCode(out) != string(registry.CodeTransferToSelf) {
		t.Fatalf("transfer to self: status=%d body=%v", rr.Code, out)
	}

	rr, out = s.do(t, stdhttp.MethodPost, "/api/locks/release", svc1, map[string]any{"asset_id": assetID}, nil)
	if rr.Code != stdhttp.StatusOK {
		t.Fatalf("release: status=%d body=%v", rr.Code, out)
	}

	rr, out = s.do(t, stdhttp.MethodPost, "/api/ops/burn", svc2, map[string]any{"op_id": registry.NewID(), "asset_id": assetID}, nil)
	if rr.Code != stdhttp.StatusOK {
		t.Fatalf("burn: status=%d body=%v", rr.Code, out)
	}

	rr, out = s.do(t, stdhttp.MethodGet, "/api/assets/"+assetID, "", nil, nil)
	if rr.Code != stdhttp.StatusOK || out["asset"] != nil {
		t.Fatalf("get burned asset: status=%d body=%v", rr.Code, out)
	}
	rr, out = s.do(t, stdhttp.MethodGet, "/api/assets/"+assetID+"/archived", "", nil, nil)
	if rr.Code != stdhttp.StatusOK || out["asset"] == nil {
		t.Fatalf("get archived: status=%d body=%v", rr.Code, out)
	}
	rr, out = s.do(t, stdhttp.MethodGet, "/api/ops/"+opID, "", nil, nil)
	if rr.Code != stdhttp.StatusOK || out["operation"] == nil {
		t.Fatalf("get op: status=%d body=%v", rr.Code, out)
	}
	rr, out = s.do(t, stdhttp.MethodGet, "/api/assets/"+assetID+"/operations", "", nil, nil)
	if ops, _ := out["operations"].([]any); rr.Code != stdhttp.StatusOK || len(ops) != 4 {
		t.Fatalf("operations: status=%d body=%v", rr.Code, out)
	}
	rr, out = s.do(t, stdhttp.MethodGet, "/api/locks/check/"+lockID, "", nil, nil)
	if rr.Code != stdhttp.StatusOK || out["terminated"] == nil {
		t.Fatalf("check released lock: status=%d body=%v", rr.Code, out)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	s := newTestServer(t)
	svc1 := s.token(t, "svc1")

	rr, out := s.do(t, stdhttp.MethodGet, "/api/assets/xyz", "", nil, nil)
	if rr.Code != stdhttp.StatusBadRequest || errorCode(out) != string(registry.CodeInvalidIDFormat) {
		t.Fatalf("bad id: status=%d body=%v", rr.Code, out)
	}
	rr, out = s.do(t, stdhttp.MethodGet, "/api/assets", "", nil, nil)
	if rr.Code != stdhttp.StatusBadRequest || errorCode(out) != string(registry.CodeMissingField) {
		t.Fatalf("list without owner: status=%d body=%v", rr.Code, out)
	}
	rr, out = s.do(t, stdhttp.MethodPost, "/api/locks/continue", svc1, map[string]any{"lock_id": registry.NewID()}, nil)
	if rr.Code != stdhttp.StatusNotFound || errorCode(out) != string(registry.CodeLockNotFound) {
		t.Fatalf("continue unknown: status=%d body=%v", rr.Code, out)
	}
	rr, out = s.do(t, stdhttp.MethodPost, "/api/ops/burn", svc1, map[string]any{"op_id": registry.NewID(), "asset_id": registry.NewID()}, nil)
	if rr.Code != stdhttp.StatusNotFound || errorCode(out) != string(registry.CodeAssetNotAlive) {
		t.Fatalf("burn missing: status=%d body=%v", rr.Code, out)
	}
	rr, out = s.do(t, stdhttp.MethodPost, "/api/ops/update", svc1, map[string]any{"asset_id": registry.NewID(), "data": 1}, nil)
	if rr.Code != stdhttp.StatusBadRequest || errorCode(out) != string(registry.CodeMissingField) {
		t.Fatalf("update without op id: status=%d body=%v", rr.Code, out)
	}
}
