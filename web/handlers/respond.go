package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wfm-core/errs"
	"wfm-core/perm"
	"wfm-core/store"
	"wfm-core/web/common"
)

// abortWithError maps the error taxonomy onto HTTP statuses: 400 for bad
// input, 403 for denied or protected, 404 for missing rows, 409 for
// invariant and concurrency conflicts.
func abortWithError(c *gin.Context, err error) {
	var denial *perm.Denial
	if errors.As(err, &denial) {
		c.AbortWithStatusJSON(http.StatusForbidden, common.NewCodedErrorResponse(denial.Clause, denial.Message))
		return
	}

	var norm *store.NormExceededError
	if errors.As(err, &norm) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"message":    norm.Error(),
			"violations": norm.Violations,
		})
		return
	}

	switch {
	case errors.Is(err, errs.ErrInvalidInput), errors.Is(err, errs.ErrNormExceeded):
		c.AbortWithStatusJSON(http.StatusBadRequest, common.NewErrorResponse(err.Error()))
	case errors.Is(err, errs.ErrPermissionDenied), errors.Is(err, errs.ErrProtectedDay):
		c.AbortWithStatusJSON(http.StatusForbidden, common.NewErrorResponse(err.Error()))
	case errors.Is(err, errs.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, common.NewErrorResponse(err.Error()))
	case errors.Is(err, errs.ErrInvariantViolation), errors.Is(err, errs.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, common.NewErrorResponse(err.Error()))
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, common.NewErrorResponse(err.Error()))
	}
}
