package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/asset-registry/internal/http/response"
	"github.com/yungbote/asset-registry/internal/services"
)

type AssetHandler struct {
	assets services.AssetService
	ledger services.OperationLedger
	locks  services.LockService
}

func NewAssetHandler(assets services.AssetService, ledger services.OperationLedger, locks services.LockService) *AssetHandler {
	return &AssetHandler{assets: assets, ledger: ledger, locks: locks}
}

// GET /api/assets?owner_id=&logic_mark=
func (h *AssetHandler) List(c *gin.Context) {
	out, err := h.assets.List(c.Request.Context(), c.Query("owner_id"), c.Query("logic_mark"))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"assets": out})
}

// GET /api/assets/:id
func (h *AssetHandler) Get(c *gin.Context) {
	a, err := h.assets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"asset": a})
}

// GET /api/assets/:id/archived
func (h *AssetHandler) GetArchived(c *gin.Context) {
	a, err := h.assets.GetArchived(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"asset": a})
}

// GET /api/assets/:id/operations?limit=
func (h *AssetHandler) Operations(c *gin.Context) {
	out, err := h.ledger.History(c.Request.Context(), c.Param("id"), queryLimit(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"operations": out})
}

// GET /api/assets/:id/locks?limit=
func (h *AssetHandler) Locks(c *gin.Context) {
	out, err := h.locks.History(c.Request.Context(), c.Param("id"), queryLimit(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"locks": out})
}

func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return n
}
