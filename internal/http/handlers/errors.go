package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/asset-registry/internal/domain/registry"
	"github.com/yungbote/asset-registry/internal/http/response"
	"github.com/yungbote/asset-registry/internal/platform/apierr"
)

var kindStatus = map[registry.ErrorKind]int{
	registry.KindMalformed:  http.StatusBadRequest,
	registry.KindState:      http.StatusConflict,
	registry.KindOwnership:  http.StatusForbidden,
	registry.KindNotFound:   http.StatusNotFound,
	registry.KindDependency: http.StatusServiceUnavailable,
}

// toAPIError maps a registry error onto its HTTP status. Dependency failures
// are marked retryable: the caller should retry with the same op id.
func toAPIError(err error) *apierr.Error {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae
	}
	code := registry.CodeOf(err)
	kind := code.Kind()
	status := kindStatus[kind]
	if kind == registry.KindDependency {
		return apierr.Retryable(status, string(code), err)
	}
	return apierr.New(status, string(code), err)
}

func respondErr(c *gin.Context, err error) {
	response.RespondAPIError(c, toAPIError(err))
}

func badRequest(c *gin.Context, err error) {
	response.RespondError(c, http.StatusBadRequest, string(registry.CodeInvalidParamsShape), err)
}
