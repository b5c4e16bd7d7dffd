package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"wfm-core/model"
	"wfm-core/store"
	"wfm-core/web/common"
)

type AttendanceHandler struct {
	Store *store.Store
}

type attendanceRequest struct {
	EmployeeID *int64    `json:"employee_id"`
	UserID     *int64    `json:"user_id"`
	ShopID     int64     `json:"shop_id" binding:"required"`
	Dttm       time.Time `json:"dttm" binding:"required"`
	Type       string    `json:"type" binding:"omitempty,oneof=COMING LEAVING AUTO"`
	Terminal   bool      `json:"terminal"`
}

// Record handles POST /attendance_records.
func (h *AttendanceHandler) Record(c *gin.Context) {
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}

	record := &model.AttendanceRecord{
		EmployeeID: req.EmployeeID,
		UserID:     req.UserID,
		ShopID:     req.ShopID,
		Dttm:       req.Dttm,
		Type:       req.Type,
		Terminal:   req.Terminal,
	}
	if err := h.Store.RecordAttendance(c.Request.Context(), record); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewSuccessResponse(record))
}

type reconstructRequest struct {
	EmployeeID int64           `json:"employee_id" binding:"required"`
	DtFrom     common.DateOnly `json:"dt_from" binding:"required"`
	DtTo       common.DateOnly `json:"dt_to" binding:"required"`
}

// Reconstruct handles POST /attendance_records/reconstruct: a manual replay
// of the fact derivation over a range.
func (h *AttendanceHandler) Reconstruct(c *gin.Context) {
	var req reconstructRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}
	if err := h.Store.ReconstructFacts(c.Request.Context(), req.EmployeeID, req.DtFrom.Time, req.DtTo.Time); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type fixWDaysRequest struct {
	EmployeeIDs []int64         `json:"employee_ids"`
	DtFrom      common.DateOnly `json:"dt_from" binding:"required"`
	DtTo        common.DateOnly `json:"dt_to" binding:"required"`
}

// FixWDays handles POST /worker_day/fix_wdays.
func (h *AttendanceHandler) FixWDays(c *gin.Context) {
	var req fixWDaysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}

	result, err := h.Store.FixWDays(c.Request.Context(), req.EmployeeIDs, req.DtFrom.Time, req.DtTo.Time)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(result))
}
