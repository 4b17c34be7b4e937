package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/pkg/errors"
)

// Fail records err for the error middleware and stops the chain.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseID reads a UUID path parameter.
func ParseID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		Fail(c, errors.NewBadRequest(fmt.Sprintf("invalid %s", name), err))
		return uuid.Nil, false
	}
	return id, true
}

// BindJSON decodes the request body into obj.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		Fail(c, errors.NewBadRequest("invalid request body", err))
		return false
	}
	return true
}

// BindQuery decodes query parameters into obj.
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		Fail(c, errors.NewBadRequest("invalid query parameters", err))
		return false
	}
	return true
}

// DateRangeQuery reads the optional from/to query parameters (YYYY-MM-DD).
// to is inclusive of its whole day.
func DateRangeQuery(c *gin.Context) (model.DateRange, bool) {
	var r model.DateRange
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &r.From}, {"to", &r.To}} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			Fail(c, errors.NewBadRequest(fmt.Sprintf("invalid %s date", p.name), err))
			return r, false
		}
		*p.dst = t
	}
	if !r.To.IsZero() {
		r.To = r.To.AddDate(0, 0, 1)
	}
	return r, true
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, NewSuccessResponse(data))
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, NewSuccessResponse(data))
}

// Deleted answers a delete. A file cleanup failure does not undo the delete;
// it is reported as a warning on a successful response.
func Deleted(c *gin.Context, err error) {
	if err == nil {
		OK(c, nil)
		return
	}
	fcErr, ok := errors.AsFileCleanup(err)
	if !ok {
		Fail(c, err)
		return
	}
	resp := NewSuccessResponse(nil)
	for _, p := range fcErr.Paths {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("stored file %s could not be removed", p))
	}
	c.JSON(http.StatusOK, resp)
}
