package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"wfm-core/store"
	"wfm-core/timesheet"
	"wfm-core/web/common"
)

type TimesheetHandler struct {
	Store   *store.Store
	Divider *timesheet.Divider
}

const monthLayout = "2006-01"

type timesheetQuery struct {
	EmployeeID int64  `form:"employee_id" binding:"required"`
	Month      string `form:"month" binding:"required"`
}

// Get handles GET /timesheet.
func (h *TimesheetHandler) Get(c *gin.Context) {
	var req timesheetQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}
	month, err := time.Parse(monthLayout, req.Month)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("month must be yyyy-MM"))
		return
	}

	items, err := h.Divider.Items(c.Request.Context(), req.EmployeeID, month)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(items))
}

type recalcRequest struct {
	ShopID      int64   `json:"shop_id"`
	EmployeeIDs []int64 `json:"employee_ids"`
	Month       string  `json:"month" binding:"required"`
}

// Recalc handles POST /timesheet/recalc: either a whole shop or an explicit
// employee list.
func (h *TimesheetHandler) Recalc(c *gin.Context) {
	var req recalcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}
	month, err := time.Parse(monthLayout, req.Month)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("month must be yyyy-MM"))
		return
	}
	if req.ShopID == 0 && len(req.EmployeeIDs) == 0 {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("shop_id or employee_ids is required"))
		return
	}

	if req.ShopID != 0 {
		cfg, err := h.Store.ShopNetworkConfig(c.Request.Context(), req.ShopID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if err := h.Divider.RecalcShop(c.Request.Context(), req.ShopID, month, cfg); err != nil {
			abortWithError(c, err)
			return
		}
	}

	for _, employeeID := range req.EmployeeIDs {
		cfg, err := h.Store.EmployeeNetworkConfig(c.Request.Context(), employeeID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if err := h.Divider.Recalc(c.Request.Context(), employeeID, month, cfg); err != nil {
			abortWithError(c, err)
			return
		}
	}

	c.Status(http.StatusNoContent)
}

type statsQuery struct {
	EmployeeIDs []int64 `form:"employee_ids"`
	Month       string  `form:"month" binding:"required"`
}

// Stats handles GET /timesheet/stats.
func (h *TimesheetHandler) Stats(c *gin.Context) {
	var req statsQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}
	month, err := time.Parse(monthLayout, req.Month)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("month must be yyyy-MM"))
		return
	}

	stats, err := h.Divider.Stats(c.Request.Context(), req.EmployeeIDs, month, nil)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(stats))
}

// Lines handles GET /timesheet/lines.
func (h *TimesheetHandler) Lines(c *gin.Context) {
	var req statsQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}
	month, err := time.Parse(monthLayout, req.Month)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("month must be yyyy-MM"))
		return
	}

	lines, err := h.Divider.Lines(c.Request.Context(), req.EmployeeIDs, month)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(lines))
}
