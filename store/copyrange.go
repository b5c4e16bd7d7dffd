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

type CopyRangeInput struct {
	FromEmployeeID int64       `json:"from_employee_id"`
	ToEmployeeID   int64       `json:"to_employee_id"`
	FromDates      []time.Time `json:"from_dates"`
	ToDates        []time.Time `json:"to_dates"`
	IsApproved     bool        `json:"is_approved"`
	IncludeSpaces  bool        `json:"include_spaces"`
	Source         string      `json:"-"`
}

// CopyRange projects the source dates of one employee onto the destination
// dates of the same or another employee. The source pattern tiles cyclically
// when the destination list is longer. With include_spaces, an empty source
// cell clears the matching destination cell instead of leaving it untouched.
func (s *Store) CopyRange(ctx context.Context, actor *perm.Actor, in CopyRangeInput) (BatchResult, error) {
	if len(in.FromDates) == 0 || len(in.ToDates) == 0 {
		return BatchResult{}, fmt.Errorf("%w: both date lists must be non-empty", errs.ErrInvalidInput)
	}
	if in.ToEmployeeID == 0 {
		in.ToEmployeeID = in.FromEmployeeID
	}
	source := in.Source
	if source == "" {
		source = model.SourceCopyRange
	}

	dtFrom, dtTo := dateBounds(in.FromDates)
	rows, err := s.loadWorkerDays(s.db.WithContext(ctx), cellQuery{
		EmployeeIDs: []int64{in.FromEmployeeID},
		DtFrom:      dtFrom,
		DtTo:        dtTo,
		IsFact:      utils.Ptr(false),
		IsApproved:  utils.Ptr(in.IsApproved),
	})
	if err != nil {
		return BatchResult{}, err
	}

	byDate := utils.GroupBy(rows, func(wd model.WorkerDay) string {
		return wd.Dt.Format(utils.DateLayout)
	})

	var inputs []WorkerDayInput
	var scopes []DeleteScope

	for i, toDate := range in.ToDates {
		fromDate := utils.TruncateToDay(in.FromDates[i%len(in.FromDates)])
		toDay := utils.TruncateToDay(toDate)

		srcRows := byDate[fromDate.Format(utils.DateLayout)]
		if len(srcRows) == 0 {
			if in.IncludeSpaces {
				scopes = append(scopes, DeleteScope{
					EmployeeID: in.ToEmployeeID,
					DtFrom:     toDay,
					DtTo:       toDay,
					IsApproved: in.IsApproved,
				})
			}
			continue
		}

		for j := range srcRows {
			clone := cloneForEmployee(&srcRows[j], in.ToEmployeeID, source)
			clone.Dt = toDay
			clone.DttmWorkStart, clone.DttmWorkEnd = rebaseShift(srcRows[j].DttmWorkStart, srcRows[j].DttmWorkEnd, toDay)
			clone.IsVacancy = srcRows[j].IsVacancy
			inputs = append(inputs, clone)
		}

		// Destination cells are overwritten, not merged.
		scopes = append(scopes, DeleteScope{
			EmployeeID: in.ToEmployeeID,
			DtFrom:     toDay,
			DtTo:       toDay,
			IsApproved: in.IsApproved,
		})
	}

	return s.BatchUpsert(ctx, actor, inputs, BatchOptions{
		UpdateKeyField: KeyByID,
		DeleteScopes:   scopes,
		Source:         source,
	})
}

// Duplicate is copy-range with the duplicate source label; an exact repeat
// of one employee's pattern onto fresh dates.
func (s *Store) Duplicate(ctx context.Context, actor *perm.Actor, in CopyRangeInput) (BatchResult, error) {
	in.Source = model.SourceDuplicate
	return s.CopyRange(ctx, actor, in)
}

// rebaseShift keeps the time of day and the shift length while moving the
// shift to another date, so overnight shifts still end on the next day.
func rebaseShift(start, end *time.Time, day time.Time) (*time.Time, *time.Time) {
	if start == nil || end == nil {
		return nil, nil
	}
	newStart := time.Date(day.Year(), day.Month(), day.Day(),
		start.Hour(), start.Minute(), start.Second(), 0, start.Location())
	newEnd := newStart.Add(end.Sub(*start))
	return &newStart, &newEnd
}
