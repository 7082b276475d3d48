package handlers

import (
	"log"
	"net/http"

	"colorgrid/services"

	"github.com/gin-gonic/gin"
)

func statusOf(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	case services.KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body. Internal errors are logged
// and masked.
func respondError(c *gin.Context, err error) {
	public := services.PublicError(err)
	if public.Kind == services.KindInternal {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(statusOf(public.Kind), gin.H{"error": public.Message, "code": public.Code})
}
