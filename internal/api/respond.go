package api

import (
	"net/http"

	"shop-backend/internal/apperr"
	"shop-backend/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func respondOK(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, Response{Status: "success", Message: message, Data: data})
}

// respondError renders a taxonomy error as a structured response. Internal
// and upstream causes are logged but never leaked to the client.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	message := err.Error()

	if kind == apperr.KindInternal || kind == apperr.KindUpstream {
		util.GetLogger().Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		if e, ok := err.(*apperr.Error); ok {
			message = e.Message
		}
	}

	c.AbortWithStatusJSON(httpStatus(kind), Response{
		Status:  "error",
		Message: message,
		Data:    nil,
	})
}

func httpStatus(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindOutOfStock:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
