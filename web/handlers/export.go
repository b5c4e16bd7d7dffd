package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"wfm-core/model"
	"wfm-core/store"
	"wfm-core/web/common"
	"wfm-core/web/middlewares"
	"wfm-core/xlsx"
)

type ExportHandler struct {
	Store *store.Store
}

// Export handles GET /worker_day/export: the current schedule as a
// workbook.
func (h *ExportHandler) Export(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}
	dtFrom, err := time.Parse("2006-01-02", req.DtFrom)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("dt_from must be yyyy-MM-dd"))
		return
	}
	dtTo, err := time.Parse("2006-01-02", req.DtTo)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("dt_to must be yyyy-MM-dd"))
		return
	}

	rows, err := h.Store.Search(c.Request.Context(), store.SearchQuery{
		EmployeeIDs: req.EmployeeIDs,
		ShopID:      req.ShopID,
		DtFrom:      dtFrom,
		DtTo:        dtTo,
		IsFact:      req.IsFact,
		IsApproved:  req.IsApproved,
		Types:       req.Types,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="worker_days.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := xlsx.ExportWorkerDays(c.Writer, rows); err != nil {
		abortWithError(c, err)
	}
}

// Import handles POST /worker_day/import: a workbook upload run through the
// regular batch upsert.
func (h *ExportHandler) Import(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("multipart field 'file' is required"))
		return
	}
	isFact := c.PostForm("is_fact") == "true"
	isApproved := c.PostForm("is_approved") == "true"

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error()))
		return
	}
	defer f.Close()

	inputs, err := xlsx.ImportWorkerDays(f, isFact, isApproved)
	if err != nil {
		abortWithError(c, err)
		return
	}

	result, err := h.Store.BatchUpsert(c.Request.Context(), middlewares.Actor(c), inputs, store.BatchOptions{
		UpdateKeyField: store.KeyByNatural,
		Source:         model.SourceUpload,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(result))
}
