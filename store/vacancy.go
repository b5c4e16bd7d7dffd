package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"wfm-core/errs"
	"wfm-core/events"
	"wfm-core/model"
	"wfm-core/perm"
	"wfm-core/utils"
)

// ApplyToVacancy binds an employee to an open vacancy on their own
// initiative. Confirm is the same binding done by a manager.
func (s *Store) ApplyToVacancy(ctx context.Context, actor *perm.Actor, vacancyID, employeeID int64) error {
	return s.bindVacancy(ctx, actor, vacancyID, employeeID, events.VacancyConfirmed, true)
}

func (s *Store) ConfirmVacancy(ctx context.Context, actor *perm.Actor, vacancyID, employeeID int64) error {
	return s.bindVacancy(ctx, actor, vacancyID, employeeID, events.VacancyConfirmed, false)
}

// ReconfirmVacancy swaps the current applicant for another one, allowed only
// while nobody has clocked in against the vacancy.
func (s *Store) ReconfirmVacancy(ctx context.Context, actor *perm.Actor, vacancyID, employeeID int64) error {
	return s.inTx(ctx, func(tx *gorm.DB, hooks *events.Hooks) error {
		vacancy, err := s.vacancyForUpdate(tx, vacancyID)
		if err != nil {
			return err
		}
		if vacancy.EmployeeID == nil {
			return fmt.Errorf("%w: vacancy %d has no applicant to replace", errs.ErrInvalidInput, vacancyID)
		}
		if *vacancy.EmployeeID == employeeID {
			return nil
		}
		if err := s.ensureNoFactRow(tx, vacancy); err != nil {
			return err
		}
		if err := s.bindVacancyRow(tx, hooks, actor, vacancy, employeeID, events.VacancyReconfirmed, false); err != nil {
			return err
		}
		return nil
	})
}

// ApproveVacancy promotes a single vacancy's cell through the regular
// approve flow.
func (s *Store) ApproveVacancy(ctx context.Context, actor *perm.Actor, vacancyID int64) error {
	vacancy, err := s.workerDayByID(s.db.WithContext(ctx), vacancyID, false)
	if err != nil {
		return err
	}
	if !vacancy.IsVacancy {
		return fmt.Errorf("%w: worker day %d is not a vacancy", errs.ErrInvalidInput, vacancyID)
	}
	if vacancy.ShopID == nil {
		return fmt.Errorf("%w: vacancy %d has no shop", errs.ErrInvalidInput, vacancyID)
	}

	in := ApproveInput{
		ShopID:          *vacancy.ShopID,
		DtFrom:          vacancy.Dt,
		DtTo:            vacancy.Dt,
		IsFact:          vacancy.IsFact,
		DayTypes:        []string{vacancy.Type},
		ApproveOpenVacs: vacancy.EmployeeID == nil,
	}
	if vacancy.EmployeeID != nil {
		in.EmployeeIDs = []int64{*vacancy.EmployeeID}
	}
	_, err = s.Approve(ctx, actor, in)
	return err
}

// RefuseVacancy unbinds the applicant; the vacancy becomes open again.
func (s *Store) RefuseVacancy(ctx context.Context, actor *perm.Actor, vacancyID int64) error {
	return s.inTx(ctx, func(tx *gorm.DB, hooks *events.Hooks) error {
		vacancy, err := s.vacancyForUpdate(tx, vacancyID)
		if err != nil {
			return err
		}
		if vacancy.EmployeeID == nil {
			return nil
		}
		if err := s.ensureNoFactRow(tx, vacancy); err != nil {
			return err
		}

		if err := s.checkVacancyPermission(tx, actor, vacancy, model.ActionUpdate); err != nil {
			return err
		}

		vacancy.EmployeeID = nil
		vacancy.EmploymentID = nil
		vacancy.IsVacancy = true
		if actor != nil {
			vacancy.LastEditedByID = &actor.User.ID
		}
		if err := tx.Omit("Details").Save(vacancy).Error; err != nil {
			return err
		}

		s.registerVacancyEvent(tx, hooks, events.VacancyRefused, vacancy, actor)
		return nil
	})
}

func (s *Store) bindVacancy(ctx context.Context, actor *perm.Actor, vacancyID, employeeID int64, eventType string, selfApply bool) error {
	return s.inTx(ctx, func(tx *gorm.DB, hooks *events.Hooks) error {
		vacancy, err := s.vacancyForUpdate(tx, vacancyID)
		if err != nil {
			return err
		}
		return s.bindVacancyRow(tx, hooks, actor, vacancy, employeeID, eventType, selfApply)
	})
}

func (s *Store) bindVacancyRow(tx *gorm.DB, hooks *events.Hooks, actor *perm.Actor, vacancy *model.WorkerDay, employeeID int64, eventType string, selfApply bool) error {
	employee, err := s.employeeByID(tx, employeeID)
	if err != nil {
		return err
	}

	if err := s.checkOutsourceAccess(tx, vacancy, employee, selfApply); err != nil {
		return err
	}
	if err := s.checkVacancyOverlap(tx, vacancy, employeeID); err != nil {
		return err
	}
	if !selfApply {
		if err := s.checkVacancyPermission(tx, actor, vacancy, model.ActionUpdate); err != nil {
			return err
		}
	}

	var shopID int64
	if vacancy.ShopID != nil {
		shopID = *vacancy.ShopID
	}
	var workTypeID *int64
	if len(vacancy.Details) > 0 {
		workTypeID = &vacancy.Details[0].WorkTypeID
	}
	employment := model.PickEmployment(employee.Employments, vacancy.Dt, shopID, workTypeID)
	if employment == nil {
		return fmt.Errorf("%w: employee %d has no active employment on %s",
			errs.ErrInvalidInput, employeeID, vacancy.Dt.Format(utils.DateLayout))
	}

	// Binding an approved vacancy keeps a draft mirror so the change
	// still passes through approve.
	if vacancy.IsApproved {
		if err := s.mirrorVacancyDraft(tx, vacancy, employeeID, employment.ID); err != nil {
			return err
		}
	}

	vacancy.EmployeeID = &employeeID
	vacancy.EmploymentID = &employment.ID
	if actor != nil {
		vacancy.LastEditedByID = &actor.User.ID
	}

	cfg, err := s.networkConfigForNetwork(tx, employee.NetworkID)
	if err != nil {
		return err
	}
	if err := s.recomputeWorkHours(tx, vacancy, cfg); err != nil {
		return err
	}
	if err := tx.Omit("Details").Save(vacancy).Error; err != nil {
		return err
	}

	s.registerVacancyEvent(tx, hooks, eventType, vacancy, actor)
	return nil
}

func (s *Store) vacancyForUpdate(tx *gorm.DB, vacancyID int64) (*model.WorkerDay, error) {
	vacancy, err := s.workerDayByID(tx, vacancyID, true)
	if err != nil {
		return nil, err
	}
	if !vacancy.IsVacancy || vacancy.IsFact {
		return nil, fmt.Errorf("%w: worker day %d is not a vacancy", errs.ErrInvalidInput, vacancyID)
	}
	return vacancy, nil
}

// checkOutsourceAccess enforces the directed outsource relation: a worker of
// another network may take the vacancy only when their network is in the
// vacancy's outsource set, and self-applying may be forbidden network-wide.
func (s *Store) checkOutsourceAccess(tx *gorm.DB, vacancy *model.WorkerDay, employee *model.Employee, selfApply bool) error {
	if vacancy.ShopID == nil {
		return nil
	}
	shop, err := s.shopByID(tx, *vacancy.ShopID)
	if err != nil {
		return err
	}
	if shop.NetworkID == employee.NetworkID {
		return nil
	}

	if !vacancy.IsOutsource || !vacancy.Outsources.Contains(employee.NetworkID) {
		return fmt.Errorf("%w: network %d may not take this vacancy", errs.ErrPermissionDenied, employee.NetworkID)
	}

	if selfApply {
		cfg, err := s.networkConfigFor(tx, *vacancy.ShopID)
		if err != nil {
			return err
		}
		if cfg.ForbidApplyToOutsourceVacancies {
			return fmt.Errorf("%w: applying to outsource vacancies is disabled", errs.ErrPermissionDenied)
		}
	}
	return nil
}

// checkVacancyOverlap rejects the binding when the applicant's existing days
// intersect the vacancy interval and the types are not mutually additional.
func (s *Store) checkVacancyOverlap(tx *gorm.DB, vacancy *model.WorkerDay, employeeID int64) error {
	if !vacancy.HasTimes() {
		return nil
	}

	rows, err := s.loadWorkerDays(tx, cellQuery{
		EmployeeIDs: []int64{employeeID},
		DtFrom:      vacancy.Dt.AddDate(0, 0, -1),
		DtTo:        vacancy.Dt.AddDate(0, 0, 1),
		IsFact:      utils.Ptr(vacancy.IsFact),
		IsApproved:  utils.Ptr(vacancy.IsApproved),
	})
	if err != nil {
		return err
	}

	for i := range rows {
		if !rows[i].Overlaps(vacancy) {
			continue
		}
		if s.registry.MutuallyAdditional([]string{rows[i].Type, vacancy.Type}) {
			continue
		}
		return fmt.Errorf("%w: employee %d already works %s on %s",
			errs.ErrInvariantViolation, employeeID, rows[i].Type, vacancy.Dt.Format(utils.DateLayout))
	}
	return nil
}

func (s *Store) checkVacancyPermission(tx *gorm.DB, actor *perm.Actor, vacancy *model.WorkerDay, action string) error {
	check := perm.Check{
		Actor:     actor,
		Action:    action,
		GraphType: vacancy.GraphType(),
		DayType:   vacancy.Type,
		TargetDt:  vacancy.Dt,
		IsVacancy: true,
		Existing:  vacancy,
		Today:     s.now(),
	}

	if vacancy.ShopID != nil {
		shop, err := s.shopByID(tx, *vacancy.ShopID)
		if err != nil {
			return err
		}
		check.TargetShop = shop
		netCfg, err := s.networkConfigFor(tx, *vacancy.ShopID)
		if err != nil {
			return err
		}
		check.Cfg = netCfg
	}
	if vacancy.EmployeeID != nil {
		employee, err := s.employeeByID(tx, *vacancy.EmployeeID)
		if err != nil {
			return err
		}
		check.TargetEmployee = employee
	}
	if vacancy.EmploymentID != nil {
		if employment, err := s.employmentByID(tx, *vacancy.EmploymentID); err == nil {
			check.TargetGroupID = employment.GroupID
		}
	}

	return s.matrix.Allowed(check)
}

// ensureNoFactRow blocks modifying a vacancy once its current applicant has
// a fact row on the vacancy date.
func (s *Store) ensureNoFactRow(tx *gorm.DB, vacancy *model.WorkerDay) error {
	if vacancy.EmployeeID == nil {
		return nil
	}
	var count int64
	err := tx.Model(&model.WorkerDay{}).
		Where("employee_id = ? AND is_fact = ?", *vacancy.EmployeeID, true).
		Where("dt >= ? AND dt < ?",
			vacancy.Dt.Format(utils.DateLayout), vacancy.Dt.AddDate(0, 0, 1).Format(utils.DateLayout)).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: employee %d already clocked in on %s",
			errs.ErrConflict, *vacancy.EmployeeID, vacancy.Dt.Format(utils.DateLayout))
	}
	return nil
}

// mirrorVacancyDraft keeps a draft copy of an approved vacancy being bound,
// pointing at the approved row.
func (s *Store) mirrorVacancyDraft(tx *gorm.DB, vacancy *model.WorkerDay, employeeID, employmentID int64) error {
	draft := *vacancy
	draft.ID = 0
	draft.IsApproved = false
	draft.EmployeeID = &employeeID
	draft.EmploymentID = &employmentID
	draft.ParentWorkerDayID = &vacancy.ID
	draft.Details = nil
	draft.CreatedAt = time.Time{}
	draft.UpdatedAt = time.Time{}

	if err := tx.Omit("Details").Create(&draft).Error; err != nil {
		return err
	}
	for _, d := range vacancy.Details {
		detail := model.WorkerDayDetail{WorkerDayID: draft.ID, WorkTypeID: d.WorkTypeID, WorkPart: d.WorkPart}
		if err := tx.Create(&detail).Error; err != nil {
			return err
		}
	}
	return nil
}
