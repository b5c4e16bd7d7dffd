package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"wfm-core/store"
	"wfm-core/web/common"
	"wfm-core/web/middlewares"
)

type WorkerDayHandler struct {
	Store *store.Store
}

type searchRequest struct {
	EmployeeIDs  []int64  `form:"employee_ids"`
	ShopID       *int64   `form:"shop_id"`
	DtFrom       string   `form:"dt_from" binding:"required"`
	DtTo         string   `form:"dt_to" binding:"required"`
	IsFact       *bool    `form:"is_fact"`
	IsApproved   *bool    `form:"is_approved"`
	Types        []string `form:"types"`
	OpenVacsOnly bool     `form:"open_vacancies"`
}

// List handles GET /worker_day.
func (h *WorkerDayHandler) List(c *gin.Context) {
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
		EmployeeIDs:  req.EmployeeIDs,
		ShopID:       req.ShopID,
		DtFrom:       dtFrom,
		DtTo:         dtTo,
		IsFact:       req.IsFact,
		IsApproved:   req.IsApproved,
		Types:        req.Types,
		OpenVacsOnly: req.OpenVacsOnly,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSearchResponse(rows, int64(len(rows))))
}

// ListVacancies handles GET /worker_day/vacancy. Same query as List, but
// only open vacancy rows come back.
func (h *WorkerDayHandler) ListVacancies(c *gin.Context) {
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
		ShopID:       req.ShopID,
		DtFrom:       dtFrom,
		DtTo:         dtTo,
		Types:        req.Types,
		OpenVacsOnly: true,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSearchResponse(rows, int64(len(rows))))
}

// Get handles GET /worker_day/:id.
func (h *WorkerDayHandler) Get(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("id must be an integer"))
		return
	}
	wd, err := h.Store.GetWorkerDay(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(wd))
}

// Delete handles DELETE /worker_day/:id.
func (h *WorkerDayHandler) Delete(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("id must be an integer"))
		return
	}
	if err := h.Store.DeleteWorkerDay(c.Request.Context(), middlewares.Actor(c), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func pathID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

type batchRequest struct {
	Data         []store.WorkerDayInput `json:"data" binding:"required"`
	UpdateKey    string                 `json:"update_key_field" binding:"omitempty,oneof=id code natural"`
	DeleteScopes []store.DeleteScope    `json:"delete_scope_values_list"`
	Source       string                 `json:"source"`
}

// BatchUpdateOrCreate handles POST /worker_day/batch_update_or_create.
func (h *WorkerDayHandler) BatchUpdateOrCreate(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}

	result, err := h.Store.BatchUpsert(c.Request.Context(), middlewares.Actor(c), req.Data, store.BatchOptions{
		UpdateKeyField: req.UpdateKey,
		DeleteScopes:   req.DeleteScopes,
		Source:         req.Source,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(result))
}

type approveRequest struct {
	ShopID          int64           `json:"shop_id" binding:"required"`
	DtFrom          common.DateOnly `json:"dt_from" binding:"required"`
	DtTo            common.DateOnly `json:"dt_to" binding:"required"`
	IsFact          bool            `json:"is_fact"`
	WdTypes         []string        `json:"wd_types"`
	EmployeeIDs     []int64         `json:"employee_ids"`
	ApproveOpenVacs bool            `json:"approve_open_vacs"`
}

// Approve handles POST /worker_day/approve.
func (h *WorkerDayHandler) Approve(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}

	changed, err := h.Store.Approve(c.Request.Context(), middlewares.Actor(c), store.ApproveInput{
		ShopID:          req.ShopID,
		DtFrom:          req.DtFrom.Time,
		DtTo:            req.DtTo.Time,
		IsFact:          req.IsFact,
		DayTypes:        req.WdTypes,
		EmployeeIDs:     req.EmployeeIDs,
		ApproveOpenVacs: req.ApproveOpenVacs,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{"cells_changed": changed}))
}

type exchangeRequest struct {
	Employee1ID int64             `json:"employee1_id" binding:"required"`
	Employee2ID int64             `json:"employee2_id" binding:"required"`
	Dates       []common.DateOnly `json:"dates" binding:"required,min=1"`
	IsApproved  bool              `json:"is_approved"`
}

// Exchange handles POST /worker_day/exchange.
func (h *WorkerDayHandler) Exchange(c *gin.Context) {
	var req exchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}

	result, err := h.Store.Exchange(c.Request.Context(), middlewares.Actor(c), store.ExchangeInput{
		Employee1ID: req.Employee1ID,
		Employee2ID: req.Employee2ID,
		Dates:       plainDates(req.Dates),
		IsApproved:  req.IsApproved,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(result))
}

type copyRangeRequest struct {
	FromEmployeeID int64             `json:"from_employee_id" binding:"required"`
	ToEmployeeID   int64             `json:"to_employee_id"`
	FromDates      []common.DateOnly `json:"from_dates" binding:"required,min=1"`
	ToDates        []common.DateOnly `json:"to_dates" binding:"required,min=1"`
	IsApproved     bool              `json:"is_approved"`
	IncludeSpaces  bool              `json:"include_spaces"`
}

// CopyRange handles POST /worker_day/copy_range.
func (h *WorkerDayHandler) CopyRange(c *gin.Context) {
	h.copyRange(c, false)
}

// Duplicate handles POST /worker_day/duplicate.
func (h *WorkerDayHandler) Duplicate(c *gin.Context) {
	h.copyRange(c, true)
}

func (h *WorkerDayHandler) copyRange(c *gin.Context, duplicate bool) {
	var req copyRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}

	in := store.CopyRangeInput{
		FromEmployeeID: req.FromEmployeeID,
		ToEmployeeID:   req.ToEmployeeID,
		FromDates:      plainDates(req.FromDates),
		ToDates:        plainDates(req.ToDates),
		IsApproved:     req.IsApproved,
		IncludeSpaces:  req.IncludeSpaces,
	}

	var result store.BatchResult
	var err error
	if duplicate {
		result, err = h.Store.Duplicate(c.Request.Context(), middlewares.Actor(c), in)
	} else {
		result, err = h.Store.CopyRange(c.Request.Context(), middlewares.Actor(c), in)
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(result))
}

type vacancyRequest struct {
	VacancyID  int64 `json:"vacancy_id" binding:"required"`
	EmployeeID int64 `json:"employee_id"`
}

// ApplyVacancy handles POST /worker_day/vacancy.
func (h *WorkerDayHandler) ApplyVacancy(c *gin.Context) {
	h.vacancyAction(c, func(req vacancyRequest) error {
		return h.Store.ApplyToVacancy(c.Request.Context(), middlewares.Actor(c), req.VacancyID, req.EmployeeID)
	})
}

// ConfirmVacancy handles POST /worker_day/confirm_vacancy.
func (h *WorkerDayHandler) ConfirmVacancy(c *gin.Context) {
	h.vacancyAction(c, func(req vacancyRequest) error {
		return h.Store.ConfirmVacancy(c.Request.Context(), middlewares.Actor(c), req.VacancyID, req.EmployeeID)
	})
}

// ReconfirmVacancy handles POST /worker_day/reconfirm_vacancy_to_worker.
func (h *WorkerDayHandler) ReconfirmVacancy(c *gin.Context) {
	h.vacancyAction(c, func(req vacancyRequest) error {
		return h.Store.ReconfirmVacancy(c.Request.Context(), middlewares.Actor(c), req.VacancyID, req.EmployeeID)
	})
}

// ApproveVacancy handles POST /worker_day/approve_vacancy.
func (h *WorkerDayHandler) ApproveVacancy(c *gin.Context) {
	h.vacancyAction(c, func(req vacancyRequest) error {
		return h.Store.ApproveVacancy(c.Request.Context(), middlewares.Actor(c), req.VacancyID)
	})
}

// RefuseVacancy handles POST /worker_day/refuse_vacancy.
func (h *WorkerDayHandler) RefuseVacancy(c *gin.Context) {
	h.vacancyAction(c, func(req vacancyRequest) error {
		return h.Store.RefuseVacancy(c.Request.Context(), middlewares.Actor(c), req.VacancyID)
	})
}

func (h *WorkerDayHandler) vacancyAction(c *gin.Context, action func(vacancyRequest) error) {
	var req vacancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}
	if err := action(req); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func plainDates(dates []common.DateOnly) []time.Time {
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Time)
	}
	return out
}
