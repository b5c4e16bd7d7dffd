package store

import (
	"context"
	"fmt"
	"time"

	"wfm-core/errs"
	"wfm-core/model"
	"wfm-core/perm"
	"wfm-core/utils"
)

type ExchangeInput struct {
	Employee1ID int64       `json:"employee1_id"`
	Employee2ID int64       `json:"employee2_id"`
	Dates       []time.Time `json:"dates"`
	IsApproved  bool        `json:"is_approved"`
}

// Exchange swaps the plan days of two employees over the given dates with a
// symmetric clone: each employee receives copies of the other's rows, with
// the employment re-picked for the new owner. Empty cells swap too, so an
// exchange against a day off clears the counterpart.
func (s *Store) Exchange(ctx context.Context, actor *perm.Actor, in ExchangeInput) (BatchResult, error) {
	if in.Employee1ID == in.Employee2ID {
		return BatchResult{}, fmt.Errorf("%w: cannot exchange an employee with themselves", errs.ErrInvalidInput)
	}
	if len(in.Dates) == 0 {
		return BatchResult{}, fmt.Errorf("%w: no dates to exchange", errs.ErrInvalidInput)
	}

	dtFrom, dtTo := dateBounds(in.Dates)

	rows, err := s.loadWorkerDays(s.db.WithContext(ctx), cellQuery{
		EmployeeIDs: []int64{in.Employee1ID, in.Employee2ID},
		DtFrom:      dtFrom,
		DtTo:        dtTo,
		IsFact:      utils.Ptr(false),
		IsApproved:  utils.Ptr(in.IsApproved),
	})
	if err != nil {
		return BatchResult{}, err
	}

	wanted := map[string]bool{}
	for _, d := range in.Dates {
		wanted[utils.TruncateToDay(d).Format(utils.DateLayout)] = true
	}

	source := model.SourceExchange
	if in.IsApproved {
		source = model.SourceExchangeApproved
	}

	var inputs []WorkerDayInput
	for i := range rows {
		wd := &rows[i]
		if !wanted[wd.Dt.Format(utils.DateLayout)] {
			continue
		}
		if wd.IsBlocked && !actorHasProtectedPermission(actor) {
			return BatchResult{}, fmt.Errorf("%w: day %s is blocked", errs.ErrProtectedDay, wd.Dt.Format(utils.DateLayout))
		}

		otherID := in.Employee1ID
		if wd.EmployeeID != nil && *wd.EmployeeID == in.Employee1ID {
			otherID = in.Employee2ID
		}
		inputs = append(inputs, cloneForEmployee(wd, otherID, source))
	}

	var scopes []DeleteScope
	for _, d := range in.Dates {
		day := utils.TruncateToDay(d)
		for _, empID := range []int64{in.Employee1ID, in.Employee2ID} {
			scopes = append(scopes, DeleteScope{
				EmployeeID: empID,
				DtFrom:     day,
				DtTo:       day,
				IsFact:     false,
				IsApproved: in.IsApproved,
			})
		}
	}

	// KeyByID with no ids: every clone is a fresh row, the old rows of
	// both employees fall to the delete scopes.
	return s.BatchUpsert(ctx, actor, inputs, BatchOptions{
		UpdateKeyField: KeyByID,
		DeleteScopes:   scopes,
		Source:         source,
	})
}

// cloneForEmployee re-targets a row at another employee. The employment is
// left unset so the upsert re-picks it by the priority rule.
func cloneForEmployee(wd *model.WorkerDay, employeeID int64, source string) WorkerDayInput {
	in := WorkerDayInput{
		EmployeeID:    utils.Ptr(employeeID),
		Dt:            wd.Dt,
		Type:          wd.Type,
		ShopID:        wd.ShopID,
		DttmWorkStart: wd.DttmWorkStart,
		DttmWorkEnd:   wd.DttmWorkEnd,
		IsFact:        wd.IsFact,
		IsApproved:    wd.IsApproved,
		IsOutsource:   wd.IsOutsource,
		Outsources:    wd.Outsources,
		Source:        source,
	}
	for _, d := range wd.Details {
		in.Details = append(in.Details, DetailInput{WorkTypeID: d.WorkTypeID, WorkPart: d.WorkPart})
	}
	return in
}

func dateBounds(dates []time.Time) (time.Time, time.Time) {
	from, to := utils.TruncateToDay(dates[0]), utils.TruncateToDay(dates[0])
	for _, d := range dates[1:] {
		day := utils.TruncateToDay(d)
		if day.Before(from) {
			from = day
		}
		if day.After(to) {
			to = day
		}
	}
	return from, to
}
