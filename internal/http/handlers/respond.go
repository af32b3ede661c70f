package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/readiness-backend/internal/http/response"
	"github.com/yungbote/readiness-backend/internal/platform/apierr"
)

func respondOK(c *gin.Context, payload any) {
	response.RespondOK(c, payload)
}

// respondErr writes err as the coded error envelope.
func respondErr(c *gin.Context, err error) {
	ae := apierr.FromError(err)
	response.RespondError(c, ae.Status, ae.Code, ae)
}
