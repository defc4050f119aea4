package handlers

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/asset-registry/internal/domain/registry"
	"github.com/yungbote/asset-registry/internal/http/response"
	"github.com/yungbote/asset-registry/internal/platform/ctxutil"
	"github.com/yungbote/asset-registry/internal/platform/dbctx"
	"github.com/yungbote/asset-registry/internal/services"
)

const headerIdempotencyKey = "Idempotency-Key"

type OpHandler struct {
	coord  services.OperationCoordinator
	ledger services.OperationLedger
}

func NewOpHandler(coord services.OperationCoordinator, ledger services.OperationLedger) *OpHandler {
	return &OpHandler{coord: coord, ledger: ledger}
}

type opRequest struct {
	OpID      string          `json:"op_id"`
	AssetID   string          `json:"asset_id"`
	OwnerID   string          `json:"owner_id"`
	LogicMark string          `json:"logic_mark"`
	Data      json.RawMessage `json:"data"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Memo      string          `json:"memo"`
}

func (h *OpHandler) bind(c *gin.Context) (*opRequest, bool) {
	var req opRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return nil, false
	}
	if strings.TrimSpace(req.OpID) == "" {
		req.OpID = strings.TrimSpace(c.GetHeader(headerIdempotencyKey))
	}
	return &req, true
}

func (h *OpHandler) run(c *gin.Context, build func(req *opRequest) registry.Params) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	var (
		res *services.Result
		err error
	)
	// issue is the only verb that may generate the asset id
	switch p := build(req).(type) {
	case registry.IssueParams:
		res, err = h.coord.Issue(ctx, ctxutil.CallerID(ctx), req.OpID, req.AssetID, p)
	default:
		res, err = h.coord.Execute(ctx, ctxutil.CallerID(ctx), req.OpID, req.AssetID, p)
	}
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/ops/issue
func (h *OpHandler) Issue(c *gin.Context) {
	h.run(c, func(req *opRequest) registry.Params {
		return registry.IssueParams{OwnerID: req.OwnerID, LogicMark: req.LogicMark, Data: req.Data}
	})
}

// POST /api/ops/burn
func (h *OpHandler) Burn(c *gin.Context) {
	h.run(c, func(*opRequest) registry.Params { return registry.BurnParams{} })
}

// POST /api/ops/update
func (h *OpHandler) Update(c *gin.Context) {
	h.run(c, func(req *opRequest) registry.Params { return registry.UpdateParams{Data: req.Data} })
}

// POST /api/ops/transfer
func (h *OpHandler) Transfer(c *gin.Context) {
	h.run(c, func(req *opRequest) registry.Params {
		return registry.TransferParams{From: req.From, To: req.To, Memo: req.Memo}
	})
}

// POST /api/ops/hold
func (h *OpHandler) Hold(c *gin.Context) {
	h.run(c, func(*opRequest) registry.Params { return registry.HoldParams{} })
}

// POST /api/ops/release
func (h *OpHandler) Release(c *gin.Context) {
	h.run(c, func(*opRequest) registry.Params { return registry.ReleaseParams{} })
}

// GET /api/ops/:op_id
func (h *OpHandler) Get(c *gin.Context) {
	op, err := h.ledger.Get(dbctx.Context{Ctx: c.Request.Context()}, c.Param("op_id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"operation": op})
}
