package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"wfm-core/config"
	"wfm-core/errs"
	"wfm-core/events"
	"wfm-core/model"
	"wfm-core/utils"
)

// RecordAttendance stores one raw clock event, resolves AUTO into COMING or
// LEAVING by pairing, and rebuilds the fact rows around the event's date.
func (s *Store) RecordAttendance(ctx context.Context, record *model.AttendanceRecord) error {
	if record.EmployeeID == nil && record.UserID == nil {
		return fmt.Errorf("%w: attendance record needs an employee or a user", errs.ErrInvalidInput)
	}
	if record.EmployeeID == nil {
		var employee model.Employee
		err := s.db.WithContext(ctx).Where("user_id = ?", *record.UserID).First(&employee).Error
		if err != nil {
			return fmt.Errorf("%w: no employee for user %d", errs.ErrNotFound, *record.UserID)
		}
		record.EmployeeID = &employee.ID
	}

	switch record.Type {
	case model.AttendanceComing, model.AttendanceLeaving:
	case model.AttendanceAuto, "":
		inferred, err := s.inferAttendanceType(ctx, record)
		if err != nil {
			return err
		}
		record.Type = inferred
	default:
		return fmt.Errorf("%w: unknown attendance type %q", errs.ErrInvalidInput, record.Type)
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return err
	}

	// An overnight LEAVING belongs to the previous day's pair.
	dt := utils.TruncateToDay(record.Dttm)
	return s.ReconstructFacts(ctx, *record.EmployeeID, dt.AddDate(0, 0, -1), dt)
}

// inferAttendanceType resolves AUTO: a LEAVING when an unclosed COMING at
// the same shop sits within the shift window, otherwise a COMING.
func (s *Store) inferAttendanceType(ctx context.Context, record *model.AttendanceRecord) (string, error) {
	cfg, err := s.networkConfigFor(s.db.WithContext(ctx), record.ShopID)
	if err != nil {
		return "", err
	}

	var last model.AttendanceRecord
	err = s.db.WithContext(ctx).
		Where("employee_id = ? AND shop_id = ? AND dttm > ? AND dttm < ?",
			*record.EmployeeID, record.ShopID, record.Dttm.Add(-maxShiftSpan(cfg)), record.Dttm).
		Order("dttm DESC").First(&last).Error
	if err != nil {
		return model.AttendanceComing, nil
	}
	if last.Type == model.AttendanceComing {
		return model.AttendanceLeaving, nil
	}
	return model.AttendanceComing, nil
}

// ReconstructFacts derives fact rows from the attendance records of one
// employee over a date range. Auto-generated rows in the range are replaced;
// manually-edited ones are kept as they are.
func (s *Store) ReconstructFacts(ctx context.Context, employeeID int64, dtFrom, dtTo time.Time) error {
	key := fmt.Sprintf("attendance:%d:%s:%s",
		employeeID, dtFrom.Format(utils.DateLayout), dtTo.Format(utils.DateLayout))
	release, err := s.locker.Acquire(ctx, key, time.Minute)
	if err != nil {
		return err
	}
	defer release()

	return s.inTx(ctx, func(tx *gorm.DB, hooks *events.Hooks) error {
		employee, err := s.employeeByID(tx, employeeID)
		if err != nil {
			return err
		}
		cfg, err := s.networkConfigForNetwork(tx, employee.NetworkID)
		if err != nil {
			return err
		}

		// A pair opened on dtTo may close on the next day.
		var records []model.AttendanceRecord
		err = tx.Where("employee_id = ? AND dttm >= ? AND dttm < ?",
			employeeID, utils.TruncateToDay(dtFrom),
			utils.TruncateToDay(dtTo).AddDate(0, 0, 1).Add(maxShiftSpan(cfg))).
			Order("dttm").Find(&records).Error
		if err != nil {
			return err
		}

		if err := s.dropAutoFacts(tx, employeeID, dtFrom, dtTo); err != nil {
			return err
		}

		for _, pair := range pairAttendance(records, maxShiftSpan(cfg)) {
			dt := utils.TruncateToDay(pair.start)
			if dt.Before(utils.TruncateToDay(dtFrom)) || dt.After(utils.TruncateToDay(dtTo)) {
				continue
			}
			if err := s.createFactFromPair(tx, employee, pair, cfg); err != nil {
				return err
			}
		}
		return nil
	})
}

type attendancePair struct {
	shopID int64
	start  time.Time
	end    *time.Time
}

// pairAttendance matches COMING/LEAVING events of the same shop. A LEAVING
// closes the latest open COMING within the window; a COMING past the window
// abandons the previous one as an open pair.
func pairAttendance(records []model.AttendanceRecord, window time.Duration) []attendancePair {
	var pairs []attendancePair
	open := map[int64]int{} // shop id -> index into pairs

	for _, r := range records {
		switch r.Type {
		case model.AttendanceComing:
			open[r.ShopID] = len(pairs)
			pairs = append(pairs, attendancePair{shopID: r.ShopID, start: r.Dttm})
		case model.AttendanceLeaving:
			idx, ok := open[r.ShopID]
			if ok && r.Dttm.Sub(pairs[idx].start) <= window && r.Dttm.After(pairs[idx].start) {
				end := r.Dttm
				pairs[idx].end = &end
				delete(open, r.ShopID)
			}
			// A LEAVING with no open COMING is dropped.
		}
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].start.Before(pairs[j].start) })
	return pairs
}

// dropAutoFacts deletes the fact rows the previous reconstruction produced.
// Rows touched by a person survive, identified by a non-auto source or a
// recorded editor.
func (s *Store) dropAutoFacts(tx *gorm.DB, employeeID int64, dtFrom, dtTo time.Time) error {
	var rows []model.WorkerDay
	err := tx.Where("employee_id = ? AND is_fact = ? AND source = ? AND last_edited_by_id IS NULL", employeeID, true, model.SourceAuto).
		Where("dt BETWEEN ? AND ?", utils.TruncateToDay(dtFrom).Format(utils.DateLayout), utils.TruncateToDay(dtTo).Format(utils.DateLayout)).
		Find(&rows).Error
	if err != nil {
		return err
	}
	for i := range rows {
		if err := tx.Where("worker_day_id = ?", rows[i].ID).Delete(&model.WorkerDayDetail{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.WorkerDay{}, rows[i].ID).Error; err != nil {
			return err
		}
	}
	return nil
}

// createFactFromPair synthesizes one fact draft from a clock pair. An open
// pair (no LEAVING yet) still produces a row with only the start set.
func (s *Store) createFactFromPair(tx *gorm.DB, employee *model.Employee, pair attendancePair, cfg config.NetworkConfig) error {
	dt := utils.TruncateToDay(pair.start)

	workTypeID := s.pickFactWorkType(tx, employee, dt, pair.shopID)
	employment := model.PickEmployment(employee.Employments, dt, pair.shopID, workTypeID)

	wd := &model.WorkerDay{
		EmployeeID:    &employee.ID,
		Dt:            dt,
		Type:          model.DayTypeWorkday,
		ShopID:        &pair.shopID,
		DttmWorkStart: &pair.start,
		DttmWorkEnd:   pair.end,
		IsFact:        true,
		IsApproved:    false,
		Source:        model.SourceAuto,
	}
	if employment != nil {
		wd.EmploymentID = &employment.ID
	}

	if plan := s.resolveClosestPlan(tx, wd); plan != nil {
		wd.ClosestPlanApprovedID = &plan.ID
	}
	s.linkDraftParent(tx, wd)

	if err := tx.Omit("Details").Create(wd).Error; err != nil {
		return err
	}

	if workTypeID != nil {
		detail := model.WorkerDayDetail{
			WorkerDayID: wd.ID,
			WorkTypeID:  *workTypeID,
			WorkPart:    decimal.NewFromInt(1),
		}
		if err := tx.Create(&detail).Error; err != nil {
			return err
		}
		wd.Details = []model.WorkerDayDetail{detail}
	}

	if wd.HasTimes() {
		if err := s.recomputeWorkHours(tx, wd, cfg); err != nil {
			return err
		}
		if err := tx.Omit("Details").Save(wd).Error; err != nil {
			return err
		}
	}
	return nil
}

// pickFactWorkType prefers the approved plan's work type on the same date,
// then the employment's highest-priority preferred type, then the shop
// position default.
func (s *Store) pickFactWorkType(tx *gorm.DB, employee *model.Employee, dt time.Time, shopID int64) *int64 {
	plans, err := s.approvedPlansFor(tx, employee.ID, dt, dt)
	if err == nil {
		for i := range plans {
			if len(plans[i].Details) > 0 {
				return &plans[i].Details[0].WorkTypeID
			}
		}
	}

	if employment := model.PickEmployment(employee.Employments, dt, shopID, nil); employment != nil {
		var best *model.EmploymentWorkType
		for i := range employment.WorkTypes {
			if best == nil || employment.WorkTypes[i].Priority > best.Priority {
				best = &employment.WorkTypes[i]
			}
		}
		if best != nil {
			return &best.WorkTypeID
		}
		if employment.Position != nil && employment.Position.DefaultWorkTypeID != nil {
			return employment.Position.DefaultWorkTypeID
		}
	}
	return nil
}
