package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	types "github.com/yungbote/asset-registry/internal/domain"
	"github.com/yungbote/asset-registry/internal/domain/registry"
	"github.com/yungbote/asset-registry/internal/modules/assetops"
	"github.com/yungbote/asset-registry/internal/observability"
	"github.com/yungbote/asset-registry/internal/platform/dbctx"
	"github.com/yungbote/asset-registry/internal/platform/logger"
	"github.com/yungbote/asset-registry/internal/platform/resmutex"
)

// Result is what every coordinator call resolves to. A replayed op id yields
// IsNew=false, the stored operation, and how long ago it was created.
type Result struct {
	IsNew        bool             `json:"is_new"`
	Operation    *types.Operation `json:"operation"`
	Asset        *types.Asset     `json:"asset,omitempty"`
	TimeOffsetMs int64            `json:"time_offset_ms,omitempty"`
}

type OperationCoordinator interface {
	// Issue creates a new asset. An empty assetID gets a generated one.
	Issue(ctx context.Context, creator, opID, assetID string, params registry.IssueParams) (*Result, error)
	Burn(ctx context.Context, creator, opID, assetID string) (*Result, error)
	Update(ctx context.Context, creator, opID, assetID string, data json.RawMessage) (*Result, error)
	Transfer(ctx context.Context, creator, opID, assetID string, params registry.TransferParams) (*Result, error)
	Hold(ctx context.Context, creator, opID, assetID string) (*Result, error)
	Release(ctx context.Context, creator, opID, assetID string) (*Result, error)
	// Execute runs any op code; the verb methods are shorthands for it.
	Execute(ctx context.Context, creator, opID, assetID string, params types.Params) (*Result, error)
}

type operationCoordinator struct {
	log      *logger.Logger
	mutex    resmutex.Mutex
	ledger   OperationLedger
	handlers *assetops.Registry
	now      func() time.Time
}

func NewOperationCoordinator(baseLog *logger.Logger, mutex resmutex.Mutex, ledger OperationLedger, handlers *assetops.Registry) OperationCoordinator {
	return &operationCoordinator{
		log:      baseLog.With("service", "OperationCoordinator"),
		mutex:    mutex,
		ledger:   ledger,
		handlers: handlers,
		now:      time.Now,
	}
}

func (c *operationCoordinator) Issue(ctx context.Context, creator, opID, assetID string, params registry.IssueParams) (*Result, error) {
	if strings.TrimSpace(assetID) == "" {
		assetID = registry.NewID()
	}
	return c.Execute(ctx, creator, opID, assetID, params)
}

func (c *operationCoordinator) Burn(ctx context.Context, creator, opID, assetID string) (*Result, error) {
	return c.Execute(ctx, creator, opID, assetID, registry.BurnParams{})
}

func (c *operationCoordinator) Update(ctx context.Context, creator, opID, assetID string, data json.RawMessage) (*Result, error) {
	return c.Execute(ctx, creator, opID, assetID, registry.UpdateParams{Data: data})
}

func (c *operationCoordinator) Transfer(ctx context.Context, creator, opID, assetID string, params registry.TransferParams) (*Result, error) {
	return c.Execute(ctx, creator, opID, assetID, params)
}

func (c *operationCoordinator) Hold(ctx context.Context, creator, opID, assetID string) (*Result, error) {
	return c.Execute(ctx, creator, opID, assetID, registry.HoldParams{})
}

func (c *operationCoordinator) Release(ctx context.Context, creator, opID, assetID string) (*Result, error) {
	return c.Execute(ctx, creator, opID, assetID, registry.ReleaseParams{})
}

func (c *operationCoordinator) Execute(ctx context.Context, creator, opID, assetID string, params types.Params) (res *Result, err error) {
	if params == nil {
		return nil, registry.Errorf(registry.CodeInvalidParamsShape, "params are required")
	}
	code := params.OpCode()
	creator = strings.TrimSpace(creator)
	if err := requireCaller("creator", creator); err != nil {
		return nil, err
	}
	if opID, err = registry.NormalizeID("op_id", opID); err != nil {
		return nil, err
	}
	if assetID, err = registry.NormalizeID("asset_id", assetID); err != nil {
		return nil, err
	}
	if err := registry.CheckParams(code, params); err != nil {
		return nil, err
	}
	h, err := c.handlers.Handler(code)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "OperationCoordinator."+code.String(),
		attribute.String("op_id", opID),
		attribute.String("asset_id", assetID),
		attribute.String("creator", creator),
	)
	defer func() {
		outcome := string(registry.CodeOf(err))
		if err == nil {
			outcome = "replay"
			if res.IsNew {
				outcome = "new"
			}
		}
		observability.Current().ObserveOperation(code.String(), outcome, time.Since(start))
		observability.EndSpan(span, err)
	}()

	res, err = resmutex.Do(ctx, c.mutex, assetID, "OperationCoordinator."+code.String(), func(ctx context.Context) (*Result, error) {
		dbc := dbctx.Context{Ctx: ctx}
		existing, err := c.ledger.Get(dbc, opID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return c.replay(existing), nil
		}

		op, created, err := c.ledger.Create(dbc, creator, opID, assetID, code, params)
		if err != nil {
			return nil, err
		}
		if !created {
			return c.replay(op), nil
		}

		if verr := h.Validate(dbc, creator, assetID, params); verr != nil {
			if _, aerr := c.ledger.Abort(dbc, op, verr); aerr != nil {
				c.log.Error("abort after failed validation", "op_id", op.ID, "cause", verr, "error", aerr)
			}
			return nil, verr
		}

		committed, asset, err := c.ledger.Commit(dbc, op)
		if err != nil {
			return nil, err
		}
		return &Result{IsNew: true, Operation: committed, Asset: asset}, nil
	})
	if err != nil {
		return nil, mutexFailure(err, assetID)
	}
	c.log.Debug("operation done",
		"op_id", opID,
		"op_code", code.String(),
		"asset_id", assetID,
		"is_new", res.IsNew,
		"state", res.Operation.State.String(),
	)
	return res, nil
}

func (c *operationCoordinator) replay(op *types.Operation) *Result {
	return &Result{
		IsNew:        false,
		Operation:    op,
		TimeOffsetMs: c.now().Sub(op.CreatedAt).Milliseconds(),
	}
}
