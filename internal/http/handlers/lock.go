package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/asset-registry/internal/http/response"
	"github.com/yungbote/asset-registry/internal/platform/ctxutil"
	"github.com/yungbote/asset-registry/internal/services"
)

type LockHandler struct {
	locks services.LockService
}

func NewLockHandler(locks services.LockService) *LockHandler {
	return &LockHandler{locks: locks}
}

// GET /api/locks/get/:asset_id
func (h *LockHandler) Get(c *gin.Context) {
	l, err := h.locks.Get(c.Request.Context(), c.Param("asset_id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"lock": l})
}

// GET /api/locks/check/:lock_id
func (h *LockHandler) Check(c *gin.Context) {
	st, err := h.locks.Check(c.Request.Context(), c.Param("lock_id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, st)
}

type voteRequest struct {
	AssetID        string `json:"asset_id"`
	IdempotentHash string `json:"idempotent_hash"`
}

// POST /api/locks/vote
func (h *LockHandler) Vote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	l, err := h.locks.Vote(ctx, req.AssetID, ctxutil.CallerID(ctx), req.IdempotentHash)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"lock": l})
}

type lockIDRequest struct {
	LockID string `json:"lock_id"`
}

// POST /api/locks/continue
func (h *LockHandler) Continue(c *gin.Context) {
	var req lockIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	l, err := h.locks.Continue(ctx, req.LockID, ctxutil.CallerID(ctx))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"lock": l})
}

// POST /api/locks/abort
func (h *LockHandler) Abort(c *gin.Context) {
	var req lockIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	l, err := h.locks.Abort(ctx, req.LockID, ctxutil.CallerID(ctx))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"lock": l})
}

type releaseRequest struct {
	AssetID string `json:"asset_id"`
}

// POST /api/locks/release
func (h *LockHandler) Release(c *gin.Context) {
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	l, err := h.locks.Release(ctx, req.AssetID, ctxutil.CallerID(ctx))
	if err != nil {
		respondErr(c, err)
		return
	}
	if l == nil {
		response.RespondOK(c, gin.H{"result": "ok"})
		return
	}
	response.RespondOK(c, gin.H{"lock": l})
}
