package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"wfm-core/config"
	"wfm-core/errs"
	"wfm-core/events"
	"wfm-core/model"
	"wfm-core/perm"
	"wfm-core/utils"
)

// Update key fields for batch upsert.
const (
	KeyByID      = "id"
	KeyByCode    = "code"
	KeyByNatural = "natural"
)

type DetailInput struct {
	WorkTypeID int64           `json:"work_type_id"`
	WorkPart   decimal.Decimal `json:"work_part"`
}

// WorkerDayInput is a partial worker-day descriptor of one batch row.
type WorkerDayInput struct {
	ID            *int64         `json:"id"`
	Code          string         `json:"code"`
	EmployeeID    *int64         `json:"employee_id"`
	EmploymentID  *int64         `json:"employment_id"`
	Dt            time.Time      `json:"dt"`
	Type          string         `json:"type"`
	ShopID        *int64         `json:"shop_id"`
	DttmWorkStart *time.Time     `json:"dttm_work_start"`
	DttmWorkEnd   *time.Time     `json:"dttm_work_end"`
	WorkHours     *time.Duration `json:"work_hours"`
	IsFact        bool           `json:"is_fact"`
	IsApproved    bool           `json:"is_approved"`
	IsVacancy     bool           `json:"is_vacancy"`
	IsOutsource   bool           `json:"is_outsource"`
	Outsources    []int64        `json:"outsources"`
	IsBlocked     *bool          `json:"is_blocked"`
	Source        string         `json:"source"`
	Details       []DetailInput  `json:"details"`
}

// DeleteScope marks existing rows as candidates for deletion when the
// batch input carries no matching row ("synchronize" semantics).
type DeleteScope struct {
	EmployeeID int64     `json:"employee_id"`
	DtFrom     time.Time `json:"dt_from"`
	DtTo       time.Time `json:"dt_to"`
	IsFact     bool      `json:"is_fact"`
	IsApproved bool      `json:"is_approved"`
	Types      []string  `json:"types"`
}

type BatchOptions struct {
	UpdateKeyField string
	DeleteScopes   []DeleteScope
	Source         string

	// Internal flows (exchange, reconstruction) run with permissions
	// already established by their outer operation.
	SkipPermissions bool
}

type BatchResult struct {
	Created int     `json:"created"`
	Updated int     `json:"updated"`
	Deleted int     `json:"deleted"`
	IDs     []int64 `json:"ids"`
}

// BatchUpsert persists a list of partial worker-day descriptors and deletes
// rows falling out of the given scopes. All rows persist or none.
func (s *Store) BatchUpsert(ctx context.Context, actor *perm.Actor, rows []WorkerDayInput, opts BatchOptions) (BatchResult, error) {
	if opts.UpdateKeyField == "" {
		opts.UpdateKeyField = KeyByNatural
	}
	if opts.Source == "" {
		opts.Source = model.SourceManual
	}

	var result BatchResult
	err := s.inTx(ctx, func(tx *gorm.DB, hooks *events.Hooks) error {
		touched := map[model.CellKey]bool{}
		touchedIDs := map[int64]bool{}

		for i := range rows {
			wd, created, err := s.upsertOne(tx, hooks, actor, &rows[i], opts)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
			result.IDs = append(result.IDs, wd.ID)
			touched[wd.Cell()] = true
			touchedIDs[wd.ID] = true
		}

		deleted, err := s.applyDeleteScopes(tx, hooks, actor, opts, touchedIDs, touched)
		if err != nil {
			return err
		}
		result.Deleted = deleted

		return s.validateTouchedCells(tx, touched)
	})
	if err != nil {
		return BatchResult{}, err
	}
	return result, nil
}

func (s *Store) upsertOne(tx *gorm.DB, hooks *events.Hooks, actor *perm.Actor, in *WorkerDayInput, opts BatchOptions) (*model.WorkerDay, bool, error) {
	dayType, ok := s.registry.Lookup(in.Type)
	if !ok {
		return nil, false, fmt.Errorf("%w: unknown day type %q", errs.ErrInvalidInput, in.Type)
	}
	if !s.registry.UsableIn(in.Type, in.IsFact) {
		return nil, false, fmt.Errorf("%w: day type %q is not allowed in this graph", errs.ErrInvalidInput, in.Type)
	}

	if dayType.IsDayoff {
		// Invariant 3: day-offs carry no shop and no times.
		in.ShopID = nil
		in.DttmWorkStart = nil
		in.DttmWorkEnd = nil
		in.Details = nil
	} else {
		if in.DttmWorkStart == nil || in.DttmWorkEnd == nil || !in.DttmWorkEnd.After(*in.DttmWorkStart) {
			return nil, false, fmt.Errorf("%w: workday on %s needs dttm_work_start < dttm_work_end",
				errs.ErrInvariantViolation, in.Dt.Format(utils.DateLayout))
		}
		if len(in.Details) == 0 {
			return nil, false, fmt.Errorf("%w: workday on %s needs at least one detail",
				errs.ErrInvariantViolation, in.Dt.Format(utils.DateLayout))
		}
		sum := decimal.Zero
		for _, d := range in.Details {
			sum = sum.Add(d.WorkPart)
		}
		if !sum.Equal(decimal.NewFromInt(1)) {
			return nil, false, fmt.Errorf("%w: detail work parts must sum to 1, got %s", errs.ErrInvariantViolation, sum)
		}
	}

	existing, err := s.findExisting(tx, in, opts.UpdateKeyField)
	if err != nil {
		return nil, false, err
	}

	employee, employment, err := s.resolveEmployment(tx, in)
	if err != nil {
		return nil, false, err
	}

	var cfg config.NetworkConfig
	switch {
	case in.ShopID != nil:
		cfg, err = s.networkConfigFor(tx, *in.ShopID)
	case employee != nil:
		cfg, err = s.networkConfigForNetwork(tx, employee.NetworkID)
	default:
		cfg = config.DefaultNetworkConfig()
	}
	if err != nil {
		return nil, false, err
	}

	if !opts.SkipPermissions {
		action := model.ActionCreate
		if existing != nil {
			action = model.ActionUpdate
		}
		if err := s.checkRowPermission(tx, actor, action, in, employee, employment, existing, cfg); err != nil {
			return nil, false, err
		}
	}

	if in.IsBlocked != nil && (existing == nil || existing.IsBlocked != *in.IsBlocked) {
		// Invariant 6.
		if !opts.SkipPermissions && !actorHasProtectedPermission(actor) {
			return nil, false, fmt.Errorf("%w: changing is_blocked requires the protected-day permission", errs.ErrProtectedDay)
		}
	}

	wd := existing
	created := existing == nil
	if created {
		wd = &model.WorkerDay{}
	}

	source := in.Source
	if source == "" {
		source = opts.Source
	}

	// Integration rows keep their imported vacation hours; a manual
	// overwrite applies only to rows that never came from the ERP.
	preserveHours := !created && source == model.SourceIntegration &&
		existing.Code != "" && in.Type == model.DayTypeVacation && existing.Type == model.DayTypeVacation

	wd.EmployeeID = in.EmployeeID
	if employment != nil {
		wd.EmploymentID = &employment.ID
	} else {
		wd.EmploymentID = nil
	}
	wd.Dt = utils.TruncateToDay(in.Dt)
	wd.Type = in.Type
	wd.ShopID = in.ShopID
	wd.DttmWorkStart = in.DttmWorkStart
	wd.DttmWorkEnd = in.DttmWorkEnd
	wd.IsFact = in.IsFact
	wd.IsApproved = in.IsApproved
	wd.IsOutsource = in.IsOutsource
	wd.Outsources = in.Outsources
	wd.Source = source
	if in.Code != "" {
		wd.Code = in.Code
	}
	if in.IsBlocked != nil {
		wd.IsBlocked = *in.IsBlocked
	}
	if in.WorkHours != nil && !preserveHours {
		wd.WorkHours = *in.WorkHours
	}
	if actor != nil {
		if created {
			wd.CreatedByID = &actor.User.ID
		}
		wd.LastEditedByID = &actor.User.ID
	}

	// Invariant 5.
	wd.IsVacancy = s.computeVacancy(in, employment)

	if created && !in.IsApproved {
		s.linkDraftParent(tx, wd)
	}

	if err := tx.Omit("Details").Save(wd).Error; err != nil {
		return nil, false, err
	}

	// Details are replaced wholesale.
	if err := tx.Where("worker_day_id = ?", wd.ID).Delete(&model.WorkerDayDetail{}).Error; err != nil {
		return nil, false, err
	}
	wd.Details = wd.Details[:0]
	for _, d := range in.Details {
		detail := model.WorkerDayDetail{WorkerDayID: wd.ID, WorkTypeID: d.WorkTypeID, WorkPart: d.WorkPart}
		if err := tx.Create(&detail).Error; err != nil {
			return nil, false, err
		}
		wd.Details = append(wd.Details, detail)
	}

	if !preserveHours {
		if err := s.recomputeWorkHours(tx, wd, cfg); err != nil {
			return nil, false, err
		}
	}
	if err := tx.Omit("Details").Save(wd).Error; err != nil {
		return nil, false, err
	}

	if created && wd.IsVacancy && !wd.IsFact {
		s.registerVacancyEvent(tx, hooks, events.VacancyCreated, wd, actor)
	}

	return wd, created, nil
}

func (s *Store) findExisting(tx *gorm.DB, in *WorkerDayInput, keyField string) (*model.WorkerDay, error) {
	switch keyField {
	case KeyByID:
		if in.ID == nil {
			return nil, nil
		}
		return s.workerDayByID(tx, *in.ID, true)
	case KeyByCode:
		if in.Code == "" {
			return nil, fmt.Errorf("%w: update by code needs a non-empty code", errs.ErrInvalidInput)
		}
		var wd model.WorkerDay
		err := tx.Preload("Details").
			Where("code = ? AND is_fact = ? AND is_approved = ?", in.Code, in.IsFact, in.IsApproved).
			First(&wd).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &wd, nil
	case KeyByNatural:
		if in.EmployeeID == nil {
			return nil, nil
		}
		var wd model.WorkerDay
		err := tx.Preload("Details").
			Where("employee_id = ? AND dt = ? AND is_fact = ? AND is_approved = ?",
				*in.EmployeeID, utils.TruncateToDay(in.Dt).Format(utils.DateLayout), in.IsFact, in.IsApproved).
			First(&wd).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &wd, nil
	default:
		return nil, fmt.Errorf("%w: unknown update key field %q", errs.ErrInvalidInput, keyField)
	}
}

func (s *Store) resolveEmployment(tx *gorm.DB, in *WorkerDayInput) (*model.Employee, *model.Employment, error) {
	if in.EmployeeID == nil {
		// Open vacancy.
		return nil, nil, nil
	}

	employee, err := s.employeeByID(tx, *in.EmployeeID)
	if err != nil {
		return nil, nil, err
	}

	if in.EmploymentID != nil {
		employment, err := s.employmentByID(tx, *in.EmploymentID)
		if err != nil {
			return nil, nil, err
		}
		return employee, employment, nil
	}

	var shopID int64
	if in.ShopID != nil {
		shopID = *in.ShopID
	}
	var workTypeID *int64
	if len(in.Details) > 0 {
		workTypeID = &in.Details[0].WorkTypeID
	}

	employment := model.PickEmployment(employee.Employments, in.Dt, shopID, workTypeID)
	if employment == nil && !s.registry.IsDayOff(in.Type) {
		return nil, nil, fmt.Errorf("%w: employee %d has no active employment on %s",
			errs.ErrInvalidInput, employee.ID, in.Dt.Format(utils.DateLayout))
	}
	return employee, employment, nil
}

// computeVacancy applies invariant 5.
func (s *Store) computeVacancy(in *WorkerDayInput, employment *model.Employment) bool {
	if in.IsVacancy || in.IsOutsource {
		return true
	}
	if in.EmployeeID == nil {
		return true
	}
	if employment == nil {
		return false
	}
	if in.ShopID != nil && employment.ShopID != *in.ShopID {
		return true
	}
	if len(in.Details) > 0 && len(employment.WorkTypes) > 0 {
		for _, d := range in.Details {
			if !employment.HasWorkType(d.WorkTypeID) {
				return true
			}
		}
	}
	return false
}

// linkDraftParent points a fresh draft at its approved ancestor in the same
// cell (invariant 2).
func (s *Store) linkDraftParent(tx *gorm.DB, wd *model.WorkerDay) {
	if wd.EmployeeID == nil {
		return
	}
	var parent model.WorkerDay
	err := tx.Where("employee_id = ? AND dt = ? AND is_fact = ? AND is_approved = ?",
		*wd.EmployeeID, wd.Dt.Format(utils.DateLayout), wd.IsFact, true).
		Order("id").First(&parent).Error
	if err == nil {
		wd.ParentWorkerDayID = &parent.ID
	}
}

func (s *Store) checkRowPermission(tx *gorm.DB, actor *perm.Actor, action string, in *WorkerDayInput, employee *model.Employee, employment *model.Employment, existing *model.WorkerDay, cfg config.NetworkConfig) error {
	var shop *model.Shop
	if in.ShopID != nil {
		var err error
		shop, err = s.shopByID(tx, *in.ShopID)
		if err != nil {
			return err
		}
	}

	var groupID int64
	if employment != nil {
		groupID = employment.GroupID
	}

	graph := model.GraphPlan
	if in.IsFact {
		graph = model.GraphFact
	}

	return s.matrix.Allowed(perm.Check{
		Actor:          actor,
		Action:         action,
		GraphType:      graph,
		DayType:        in.Type,
		TargetEmployee: employee,
		TargetGroupID:  groupID,
		TargetShop:     shop,
		TargetDt:       in.Dt,
		IsVacancy:      in.IsVacancy || in.EmployeeID == nil,
		Existing:       existing,
		Today:          s.now(),
		Cfg:            cfg,
	})
}

func (s *Store) applyDeleteScopes(tx *gorm.DB, hooks *events.Hooks, actor *perm.Actor, opts BatchOptions, keepIDs map[int64]bool, touched map[model.CellKey]bool) (int, error) {
	deleted := 0
	for _, scope := range opts.DeleteScopes {
		rows, err := s.loadWorkerDays(tx, cellQuery{
			EmployeeIDs: []int64{scope.EmployeeID},
			DtFrom:      scope.DtFrom,
			DtTo:        scope.DtTo,
			IsFact:      utils.Ptr(scope.IsFact),
			IsApproved:  utils.Ptr(scope.IsApproved),
			Types:       scope.Types,
			ForUpdate:   true,
		})
		if err != nil {
			return 0, err
		}

		for i := range rows {
			wd := &rows[i]
			if keepIDs[wd.ID] {
				continue
			}
			if err := s.deleteWorkerDay(tx, hooks, actor, wd, opts.SkipPermissions); err != nil {
				return 0, err
			}
			deleted++
			touched[wd.Cell()] = true
		}
	}
	return deleted, nil
}

func (s *Store) deleteWorkerDay(tx *gorm.DB, hooks *events.Hooks, actor *perm.Actor, wd *model.WorkerDay, skipPermissions bool) error {
	if !skipPermissions {
		var cfg config.NetworkConfig
		var err error
		if wd.ShopID != nil {
			cfg, err = s.networkConfigFor(tx, *wd.ShopID)
			if err != nil {
				return err
			}
		} else {
			cfg = config.DefaultNetworkConfig()
		}

		var employee *model.Employee
		var employment *model.Employment
		if wd.EmployeeID != nil {
			employee, err = s.employeeByID(tx, *wd.EmployeeID)
			if err != nil {
				return err
			}
		}
		if wd.EmploymentID != nil {
			employment, _ = s.employmentByID(tx, *wd.EmploymentID)
		}

		in := &WorkerDayInput{
			EmployeeID: wd.EmployeeID,
			Dt:         wd.Dt,
			Type:       wd.Type,
			ShopID:     wd.ShopID,
			IsFact:     wd.IsFact,
			IsVacancy:  wd.IsVacancy,
		}
		if err := s.checkRowPermission(tx, actor, model.ActionDelete, in, employee, employment, wd, cfg); err != nil {
			return err
		}
	}

	if err := tx.Where("worker_day_id = ?", wd.ID).Delete(&model.WorkerDayDetail{}).Error; err != nil {
		return err
	}
	if err := tx.Delete(&model.WorkerDay{}, wd.ID).Error; err != nil {
		return err
	}

	if wd.IsVacancy && !wd.IsFact {
		eventType := events.VacancyDeleted
		if wd.EmployeeID != nil {
			eventType = events.EmployeeVacancyDeleted
		}
		s.registerVacancyEvent(tx, hooks, eventType, wd, actor)
	}
	return nil
}

// validateTouchedCells re-checks the overlap invariant over every mutated
// cell after all writes landed.
func (s *Store) validateTouchedCells(tx *gorm.DB, touched map[model.CellKey]bool) error {
	for cell := range touched {
		for _, approved := range []bool{false, true} {
			rows, err := s.loadWorkerDays(tx, cellQuery{
				EmployeeIDs: []int64{cell.EmployeeID},
				DtFrom:      utils.MustParseDate(cell.Dt),
				DtTo:        utils.MustParseDate(cell.Dt),
				IsFact:      utils.Ptr(cell.IsFact),
				IsApproved:  utils.Ptr(approved),
			})
			if err != nil {
				return err
			}
			if len(rows) < 2 {
				continue
			}

			types := utils.Map(rows, func(r model.WorkerDay) string { return r.Type })
			cfg := config.DefaultNetworkConfig()
			if rows[0].ShopID != nil {
				if c, err := s.networkConfigFor(tx, *rows[0].ShopID); err == nil {
					cfg = c
				}
			}
			if !cfg.AllowSeveralWDaysPerDate && !s.registry.MutuallyAdditional(types) {
				return fmt.Errorf("%w: several worker days on %s are not allowed", errs.ErrInvariantViolation, cell.Dt)
			}
			if s.overlapViolation(rows) {
				return fmt.Errorf("%w: overlapping shifts on %s", errs.ErrInvariantViolation, cell.Dt)
			}
		}
	}
	return nil
}

func actorHasProtectedPermission(actor *perm.Actor) bool {
	if actor == nil {
		return false
	}
	for _, g := range actor.Groups {
		if g.HasProtectedDayPermission {
			return true
		}
	}
	return false
}

func (s *Store) registerVacancyEvent(tx *gorm.DB, hooks *events.Hooks, eventType string, wd *model.WorkerDay, actor *perm.Actor) {
	payload := events.VacancyEventPayload{
		VacancyID:  wd.ID,
		EmployeeID: wd.EmployeeID,
		Dt:         wd.Dt.Format(utils.DateLayout),
	}
	if wd.ShopID != nil {
		if shop, err := s.shopByID(tx, *wd.ShopID); err == nil {
			payload.ShopCode = shop.Code
		}
	}
	if actor != nil {
		payload.Username = actor.User.Username
	}
	for _, d := range wd.Details {
		if wt, err := s.workTypeByID(tx, d.WorkTypeID); err == nil {
			payload.WorkTypes = append(payload.WorkTypes, wt.Name)
		}
	}

	hooks.Register(func() error {
		return s.bus.Publish(eventType, payload)
	})
}
