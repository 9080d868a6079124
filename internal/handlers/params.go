package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/microtask-api/internal/errors"
	"github.com/yukikurage/microtask-api/internal/utils"
)

// parseIDParam reads a positive numeric path parameter, writing a 400 on failure.
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		apierrors.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// parseDateQuery reads a required YYYY-MM-DD query parameter, writing a 400 on failure.
func parseDateQuery(c *gin.Context, name string, loc *time.Location) (time.Time, bool) {
	value := c.Query(name)
	if value == "" {
		apierrors.BadRequest(c, name+" is required")
		return time.Time{}, false
	}

	day, err := utils.ParseDate(value, loc)
	if err != nil {
		apierrors.BadRequest(c, err.Error())
		return time.Time{}, false
	}
	return day, true
}

// requestContext returns the request context, falling back to Background when no request is attached.
func requestContext(c *gin.Context) context.Context {
	if c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}
