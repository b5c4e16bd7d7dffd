package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"wfm-core/config"
	"wfm-core/errs"
	"wfm-core/events"
	"wfm-core/jobs"
	"wfm-core/model"
	"wfm-core/perm"
	"wfm-core/utils"
)

type ApproveInput struct {
	ShopID          int64     `json:"shop_id"`
	DtFrom          time.Time `json:"dt_from"`
	DtTo            time.Time `json:"dt_to"`
	IsFact          bool      `json:"is_fact"`
	DayTypes        []string  `json:"wd_types"`
	EmployeeIDs     []int64   `json:"employee_ids"`
	ApproveOpenVacs bool      `json:"approve_open_vacs"`
}

// NormViolation describes one employee exceeding the monthly plan norm.
type NormViolation struct {
	EmployeeID int64   `json:"employee_id"`
	Month      string  `json:"month"`
	PlanHours  float64 `json:"plan_hours"`
	NormHours  float64 `json:"norm_hours"`
}

type NormExceededError struct {
	Violations []NormViolation
}

func (e *NormExceededError) Error() string {
	return fmt.Sprintf("monthly norm exceeded for %d employee(s)", len(e.Violations))
}

func (e *NormExceededError) Unwrap() error {
	return errs.ErrNormExceeded
}

// Approve promotes draft rows to approved over the selected cells by
// replacement: approved rows of a changed cell are deleted and the drafts
// cloned in their place. Cells whose draft set matches the approved set are
// skipped, which makes the operation idempotent.
func (s *Store) Approve(ctx context.Context, actor *perm.Actor, in ApproveInput) (int, error) {
	release, err := s.locker.Acquire(ctx, fmt.Sprintf("approve:%d", in.ShopID), time.Minute)
	if err != nil {
		return 0, err
	}
	defer release()

	cfg, err := s.networkConfigFor(s.db.WithContext(ctx), in.ShopID)
	if err != nil {
		return 0, err
	}

	changed := 0
	err = s.inTx(ctx, func(tx *gorm.DB, hooks *events.Hooks) error {
		// Both quadrants load over one cell universe: the explicit employee
		// list, or every employee with rows at the shop in the range.
		// Day-offs carry no shop, so the shop predicate must admit NULL.
		employeeIDs := in.EmployeeIDs
		if len(employeeIDs) == 0 {
			var err error
			employeeIDs, err = s.shopEmployeeIDs(tx, in.ShopID, in.DtFrom, in.DtTo)
			if err != nil {
				return err
			}
		}
		if len(employeeIDs) == 0 && !in.ApproveOpenVacs {
			return nil
		}

		scope := cellQuery{
			EmployeeIDs: employeeIDs,
			ShopOrNull:  utils.Ptr(in.ShopID),
			DtFrom:      in.DtFrom,
			DtTo:        in.DtTo,
			IsFact:      utils.Ptr(in.IsFact),
			ForUpdate:   true,
			OpenVacs:    in.ApproveOpenVacs,
		}
		if len(employeeIDs) == 0 {
			// Open vacancies only; they always carry the shop.
			scope.ShopOrNull = nil
			scope.ShopID = utils.Ptr(in.ShopID)
		}

		draftScope := scope
		draftScope.IsApproved = utils.Ptr(false)
		draftScope.Types = in.DayTypes
		drafts, err := s.loadWorkerDays(tx, draftScope)
		if err != nil {
			return err
		}

		approvedScope := scope
		approvedScope.IsApproved = utils.Ptr(true)
		approved, err := s.loadWorkerDays(tx, approvedScope)
		if err != nil {
			return err
		}

		draftCells := groupByCell(drafts)
		approvedCells := groupByCell(approved)

		// The type filter selects which cells get approved; within a chosen
		// cell every approved row is replaced, whatever its type.
		if len(in.DayTypes) > 0 {
			for key := range approvedCells {
				if _, ok := draftCells[key]; !ok {
					delete(approvedCells, key)
				}
			}
		}

		diffCells := diffCellKeys(draftCells, approvedCells)
		if len(diffCells) == 0 {
			return nil
		}

		if err := s.checkApprovePermissions(tx, actor, diffCells, draftCells, approvedCells, cfg); err != nil {
			return err
		}

		if !in.IsFact && cfg.CheckPlanNormOnApprove {
			if err := s.checkMonthlyNorm(tx, diffCells, cfg); err != nil {
				return err
			}
		}

		if cfg.RequestApproveWithTasksCheck {
			s.checkTaskViolations(tx, hooks, diffCells, draftCells)
		}

		var doctorEntries []jobs.DoctorScheduleEntry
		replaced := 0

		for _, cell := range diffCells {
			cellDrafts := draftCells[cell]
			cellApproved := approvedCells[cell]

			doctorEntries = append(doctorEntries, s.doctorEntriesForCell(tx, cellDrafts, cellApproved)...)

			for i := range cellApproved {
				if err := tx.Where("worker_day_id = ?", cellApproved[i].ID).Delete(&model.WorkerDayDetail{}).Error; err != nil {
					return err
				}
				if err := tx.Delete(&model.WorkerDay{}, cellApproved[i].ID).Error; err != nil {
					return err
				}
			}
			if len(cellApproved) > 0 {
				replaced++
			}

			for i := range cellDrafts {
				if _, err := s.promoteDraft(tx, &cellDrafts[i]); err != nil {
					return err
				}
			}

			changed++
		}

		// Re-link fact rows of the touched plan cells and re-cap their
		// hours under the new approved plan.
		if !in.IsFact {
			if err := s.relinkFacts(tx, diffCells, cfg); err != nil {
				return err
			}
		}

		s.registerApproveSideEffects(hooks, actor, in, cfg, changed, replaced, doctorEntries, diffCells, draftCells)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// promoteDraft clones a draft into the approved quadrant, keeping the code
// and last editor, and re-points the draft at its fresh ancestor.
func (s *Store) promoteDraft(tx *gorm.DB, draft *model.WorkerDay) (*model.WorkerDay, error) {
	clone := *draft
	clone.ID = 0
	clone.IsApproved = true
	clone.ParentWorkerDayID = nil
	clone.Details = nil
	clone.CreatedAt = time.Time{}
	clone.UpdatedAt = time.Time{}

	if err := tx.Omit("Details").Create(&clone).Error; err != nil {
		return nil, err
	}
	for _, d := range draft.Details {
		detail := model.WorkerDayDetail{WorkerDayID: clone.ID, WorkTypeID: d.WorkTypeID, WorkPart: d.WorkPart}
		if err := tx.Create(&detail).Error; err != nil {
			return nil, err
		}
	}

	draft.ParentWorkerDayID = &clone.ID
	if err := tx.Model(&model.WorkerDay{}).Where("id = ?", draft.ID).
		Update("parent_worker_day_id", clone.ID).Error; err != nil {
		return nil, err
	}
	return &clone, nil
}

func groupByCell(rows []model.WorkerDay) map[model.CellKey][]model.WorkerDay {
	return utils.GroupBy(rows, func(wd model.WorkerDay) model.CellKey { return wd.Cell() })
}

// diffCellKeys returns the cells whose draft snapshot set differs from the
// approved one, in deterministic order.
func diffCellKeys(drafts, approved map[model.CellKey][]model.WorkerDay) []model.CellKey {
	keys := map[model.CellKey]bool{}
	for k := range drafts {
		keys[k] = true
	}
	for k := range approved {
		keys[k] = true
	}

	var diff []model.CellKey
	for k := range keys {
		if cellSnapshot(drafts[k]) != cellSnapshot(approved[k]) {
			diff = append(diff, k)
		}
	}
	sort.Slice(diff, func(i, j int) bool {
		if diff[i].EmployeeID != diff[j].EmployeeID {
			return diff[i].EmployeeID < diff[j].EmployeeID
		}
		return diff[i].Dt < diff[j].Dt
	})
	return diff
}

func cellSnapshot(rows []model.WorkerDay) string {
	snaps := utils.Map(rows, func(wd model.WorkerDay) string { return wd.Snapshot() })
	sort.Strings(snaps)
	return strings.Join(snaps, "\n")
}

func (s *Store) checkApprovePermissions(tx *gorm.DB, actor *perm.Actor, cells []model.CellKey, drafts, approved map[model.CellKey][]model.WorkerDay, cfg config.NetworkConfig) error {
	var denials []string
	for _, cell := range cells {
		rows := drafts[cell]
		if len(rows) == 0 {
			// Empty draft promoting over approved rows: approving a
			// deletion of the approved day types.
			rows = approved[cell]
		}
		for i := range rows {
			wd := &rows[i]

			var employee *model.Employee
			var groupID int64
			if wd.EmployeeID != nil {
				var err error
				employee, err = s.employeeByID(tx, *wd.EmployeeID)
				if err != nil {
					return err
				}
			}
			if wd.EmploymentID != nil {
				if employment, err := s.employmentByID(tx, *wd.EmploymentID); err == nil {
					groupID = employment.GroupID
				}
			}
			var shop *model.Shop
			if wd.ShopID != nil {
				var err error
				shop, err = s.shopByID(tx, *wd.ShopID)
				if err != nil {
					return err
				}
			}

			var existing *model.WorkerDay
			if prior := approved[cell]; len(prior) > 0 {
				existing = &prior[0]
			}

			err := s.matrix.Allowed(perm.Check{
				Actor:          actor,
				Action:         model.ActionApprove,
				GraphType:      wd.GraphType(),
				DayType:        wd.Type,
				TargetEmployee: employee,
				TargetGroupID:  groupID,
				TargetShop:     shop,
				TargetDt:       wd.Dt,
				IsVacancy:      wd.IsVacancy,
				Existing:       existing,
				Draft:          wd,
				Today:          s.now(),
				Cfg:            cfg,
			})
			if err != nil {
				denials = append(denials, err.Error())
			}
		}
	}
	if len(denials) > 0 {
		return fmt.Errorf("%w: %s", errs.ErrPermissionDenied, strings.Join(denials, "; "))
	}
	return nil
}

// checkMonthlyNorm sums planned non-vacancy hours per (employee, month) of
// the touched cells against the SAWH norm scaled by the employment share.
func (s *Store) checkMonthlyNorm(tx *gorm.DB, cells []model.CellKey, cfg config.NetworkConfig) error {
	type empMonth struct {
		employeeID int64
		month      string
	}
	seen := map[empMonth]bool{}
	var violations []NormViolation

	for _, cell := range cells {
		if cell.EmployeeID == 0 {
			continue
		}
		first, last := utils.MonthBounds(utils.MustParseDate(cell.Dt))
		key := empMonth{cell.EmployeeID, first.Format("2006-01")}
		if seen[key] {
			continue
		}
		seen[key] = true

		employee, err := s.employeeByID(tx, cell.EmployeeID)
		if err != nil {
			return err
		}

		norm := s.sawhMonthHours(tx, employee.NetworkID, cfg.TimesheetDividerSAWHHoursKey, first)
		if norm <= 0 {
			continue
		}

		fraction := 1.0
		if employment := model.PickEmployment(employee.Employments, first, 0, nil); employment != nil {
			fraction = employment.NormWorkHours / 100.0
		}

		// Month plan = untouched drafts in store + drafts being approved.
		rows, err := s.loadWorkerDays(tx, cellQuery{
			EmployeeIDs: []int64{cell.EmployeeID},
			DtFrom:      first,
			DtTo:        last,
			IsFact:      utils.Ptr(false),
			IsApproved:  utils.Ptr(false),
		})
		if err != nil {
			return err
		}

		var planHours float64
		for i := range rows {
			if rows[i].IsVacancy {
				continue
			}
			planHours += rows[i].WorkHours.Hours()
		}

		limit := norm * fraction * (1 + cfg.PlanNormTolerance)
		if planHours > limit {
			violations = append(violations, NormViolation{
				EmployeeID: cell.EmployeeID,
				Month:      key.month,
				PlanHours:  planHours,
				NormHours:  limit,
			})
		}
	}

	if len(violations) > 0 {
		return &NormExceededError{Violations: violations}
	}
	return nil
}

// checkTaskViolations emits REQUEST_APPROVE_WITH_TASKS when assigned tasks
// fall outside the post-approve workday interval.
func (s *Store) checkTaskViolations(tx *gorm.DB, hooks *events.Hooks, cells []model.CellKey, drafts map[model.CellKey][]model.WorkerDay) {
	for _, cell := range cells {
		if cell.EmployeeID == 0 {
			continue
		}
		var tasks []model.Task
		if err := tx.Where("employee_id = ? AND dt = ?", cell.EmployeeID, cell.Dt).Find(&tasks).Error; err != nil {
			continue
		}
		if len(tasks) == 0 {
			continue
		}

		rows := drafts[cell]
		for _, task := range tasks {
			covered := false
			for i := range rows {
				if !rows[i].HasTimes() {
					continue
				}
				if !task.DttmStart.Before(*rows[i].DttmWorkStart) && !task.DttmEnd.After(*rows[i].DttmWorkEnd) {
					covered = true
					break
				}
			}
			if !covered {
				payload := map[string]interface{}{
					"employee_id": cell.EmployeeID,
					"dt":          cell.Dt,
					"task_id":     task.ID,
				}
				hooks.Register(func() error {
					return s.bus.Publish(events.RequestApproveTasks, payload)
				})
			}
		}
	}
}

// relinkFacts re-binds fact rows of the touched plan cells to the freshly
// approved plan and recomputes their capped hours.
func (s *Store) relinkFacts(tx *gorm.DB, cells []model.CellKey, cfg config.NetworkConfig) error {
	for _, cell := range cells {
		if cell.EmployeeID == 0 {
			continue
		}
		dt := utils.MustParseDate(cell.Dt)

		// A fact on dt or dt+1 may reference this plan date.
		facts, err := s.loadWorkerDays(tx, cellQuery{
			EmployeeIDs: []int64{cell.EmployeeID},
			DtFrom:      dt,
			DtTo:        dt.AddDate(0, 0, 1),
			IsFact:      utils.Ptr(true),
		})
		if err != nil {
			return err
		}

		for i := range facts {
			fact := &facts[i]
			if !fact.HasTimes() {
				continue
			}
			fact.ClosestPlanApprovedID = nil
			if err := s.recomputeWorkHours(tx, fact, cfg); err != nil {
				return err
			}
			if err := tx.Omit("Details").Save(fact).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) doctorEntriesForCell(tx *gorm.DB, drafts, approved []model.WorkerDay) []jobs.DoctorScheduleEntry {
	var entries []jobs.DoctorScheduleEntry

	action := "update"
	switch {
	case len(approved) == 0:
		action = "create"
	case len(drafts) == 0:
		action = "delete"
	}

	rows := drafts
	if len(rows) == 0 {
		rows = approved
	}

	for i := range rows {
		wd := &rows[i]
		if !wd.HasTimes() || !s.isDoctorDay(tx, wd) {
			continue
		}
		entry := jobs.DoctorScheduleEntry{
			Dt:            wd.Dt.Format(utils.DateLayout),
			DttmWorkStart: wd.DttmWorkStart.Format(time.RFC3339),
			DttmWorkEnd:   wd.DttmWorkEnd.Format(time.RFC3339),
			Action:        action,
		}
		if wd.ShopID != nil {
			if shop, err := s.shopByID(tx, *wd.ShopID); err == nil {
				entry.ShopCode = shop.Code
			}
		}
		if wd.EmployeeID != nil {
			var user model.User
			err := tx.Joins("JOIN wfm_employees ON wfm_employees.user_id = wfm_users.id").
				Where("wfm_employees.id = ?", *wd.EmployeeID).First(&user).Error
			if err == nil {
				entry.Username = user.Username
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

func (s *Store) isDoctorDay(tx *gorm.DB, wd *model.WorkerDay) bool {
	for _, d := range wd.Details {
		if wt, err := s.workTypeByID(tx, d.WorkTypeID); err == nil {
			if strings.Contains(strings.ToLower(wt.Code), "doctor") {
				return true
			}
		}
	}
	return false
}

func (s *Store) registerApproveSideEffects(hooks *events.Hooks, actor *perm.Actor, in ApproveInput, cfg config.NetworkConfig, changed, replaced int, doctorEntries []jobs.DoctorScheduleEntry, cells []model.CellKey, drafts map[model.CellKey][]model.WorkerDay) {
	payload := events.ApprovePayload{
		ShopID:       in.ShopID,
		DtFrom:       in.DtFrom.Format(utils.DateLayout),
		DtTo:         in.DtTo.Format(utils.DateLayout),
		IsFact:       in.IsFact,
		CellsChanged: changed,
	}
	if actor != nil {
		payload.ApprovedBy = actor.User.Username
	}

	hooks.Register(func() error {
		return s.bus.Publish(events.Approve, payload)
	})
	if replaced > 0 {
		hooks.Register(func() error {
			return s.bus.Publish(events.ApprovedNotFirst, payload)
		})
	}

	if len(doctorEntries) > 0 && cfg.DoctorScheduleWebhookURL != "" {
		job := jobs.DoctorWebhookJob{URL: cfg.DoctorScheduleWebhookURL, Entries: doctorEntries}
		hooks.Register(func() error {
			return s.queue.Enqueue(context.Background(), jobs.JobDoctorWebhook, job)
		})
	}

	// One timesheet recalc per touched (employee, month).
	type empMonth struct {
		employeeID int64
		month      string
	}
	seen := map[empMonth]bool{}
	for _, cell := range cells {
		if cell.EmployeeID == 0 {
			continue
		}
		first, _ := utils.MonthBounds(utils.MustParseDate(cell.Dt))
		key := empMonth{cell.EmployeeID, first.Format("2006-01")}
		if seen[key] {
			continue
		}
		seen[key] = true
		recalc := map[string]interface{}{"employee_id": key.employeeID, "month": key.month}
		hooks.Register(func() error {
			return s.queue.Enqueue(context.Background(), jobs.JobTimesheetRecalc, recalc)
		})
	}
}
