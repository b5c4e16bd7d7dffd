package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"wfm-core/events"
	"wfm-core/model"
	"wfm-core/utils"
)

type FixWDaysResult struct {
	Rebound  int `json:"rebound"`
	Detached int `json:"detached"`
	Retyped  int `json:"retyped"`
}

// FixWDays re-binds worker days to the employment that should own them
// after employment intervals or work-type priorities changed. A projection:
// running it twice changes nothing the second time.
func (s *Store) FixWDays(ctx context.Context, employeeIDs []int64, dtFrom, dtTo time.Time) (FixWDaysResult, error) {
	var result FixWDaysResult
	err := s.inTx(ctx, func(tx *gorm.DB, hooks *events.Hooks) error {
		rows, err := s.loadWorkerDays(tx, cellQuery{
			EmployeeIDs: employeeIDs,
			DtFrom:      dtFrom,
			DtTo:        dtTo,
			ForUpdate:   true,
		})
		if err != nil {
			return err
		}

		employees := map[int64]*model.Employee{}
		for i := range rows {
			wd := &rows[i]
			if wd.EmployeeID == nil {
				continue
			}

			employee, ok := employees[*wd.EmployeeID]
			if !ok {
				employee, err = s.employeeByID(tx, *wd.EmployeeID)
				if err != nil {
					return err
				}
				employees[*wd.EmployeeID] = employee
			}

			changed, err := s.fixOne(tx, wd, employee, &result)
			if err != nil {
				return err
			}
			if changed {
				if err := tx.Omit("Details").Save(wd).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return FixWDaysResult{}, err
	}
	return result, nil
}

func (s *Store) fixOne(tx *gorm.DB, wd *model.WorkerDay, employee *model.Employee, result *FixWDaysResult) (bool, error) {
	changed := false

	if s.employmentStale(employee, wd) {
		var shopID int64
		if wd.ShopID != nil {
			shopID = *wd.ShopID
		}
		var workTypeID *int64
		if len(wd.Details) > 0 {
			workTypeID = &wd.Details[0].WorkTypeID
		}

		employment := model.PickEmployment(employee.Employments, wd.Dt, shopID, workTypeID)
		switch {
		case employment == nil && wd.EmploymentID != nil:
			wd.EmploymentID = nil
			result.Detached++
			changed = true
		case employment != nil && (wd.EmploymentID == nil || *wd.EmploymentID != employment.ID):
			wd.EmploymentID = utils.Ptr(employment.ID)
			result.Rebound++
			changed = true
		}
	}

	retyped, err := s.fixDetailWorkType(tx, wd, employee)
	if err != nil {
		return changed, err
	}
	if retyped {
		result.Retyped++
	}
	return changed || retyped, nil
}

// employmentStale reports whether the row's employment no longer covers it:
// missing, gone from the employee, or with the date outside hire bounds.
func (s *Store) employmentStale(employee *model.Employee, wd *model.WorkerDay) bool {
	if wd.EmploymentID == nil {
		return true
	}
	for i := range employee.Employments {
		emp := &employee.Employments[i]
		if emp.ID != *wd.EmploymentID {
			continue
		}
		return !emp.ActiveOn(wd.Dt)
	}
	return true
}

// fixDetailWorkType reattaches a single-detail workday to the employment's
// highest-priority preferred work type. Vacancies and split days keep their
// details as assigned.
func (s *Store) fixDetailWorkType(tx *gorm.DB, wd *model.WorkerDay, employee *model.Employee) (bool, error) {
	if wd.IsVacancy || len(wd.Details) != 1 || s.registry.IsDayOff(wd.Type) {
		return false, nil
	}
	if wd.EmploymentID == nil {
		return false, nil
	}

	var employment *model.Employment
	for i := range employee.Employments {
		if employee.Employments[i].ID == *wd.EmploymentID {
			employment = &employee.Employments[i]
			break
		}
	}
	if employment == nil || len(employment.WorkTypes) == 0 {
		return false, nil
	}

	var best *model.EmploymentWorkType
	for i := range employment.WorkTypes {
		if best == nil || employment.WorkTypes[i].Priority > best.Priority {
			best = &employment.WorkTypes[i]
		}
	}
	if best == nil || wd.Details[0].WorkTypeID == best.WorkTypeID {
		return false, nil
	}

	err := tx.Model(&model.WorkerDayDetail{}).
		Where("id = ?", wd.Details[0].ID).
		Update("work_type_id", best.WorkTypeID).Error
	if err != nil {
		return false, err
	}
	wd.Details[0].WorkTypeID = best.WorkTypeID
	return true, nil
}
