package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"wfm-core/events"
	"wfm-core/model"
	"wfm-core/perm"
)

// SearchQuery filters the worker-day listing.
type SearchQuery struct {
	EmployeeIDs  []int64   `form:"employee_ids"`
	ShopID       *int64    `form:"shop_id"`
	DtFrom       time.Time `form:"-"`
	DtTo         time.Time `form:"-"`
	IsFact       *bool     `form:"is_fact"`
	IsApproved   *bool     `form:"is_approved"`
	Types        []string  `form:"types"`
	OpenVacsOnly bool      `form:"open_vacancies"`
}

// Search lists worker days matching the query, most selective filters first.
func (s *Store) Search(ctx context.Context, q SearchQuery) ([]model.WorkerDay, error) {
	rows, err := s.loadWorkerDays(s.db.WithContext(ctx), cellQuery{
		EmployeeIDs: q.EmployeeIDs,
		ShopID:      q.ShopID,
		DtFrom:      q.DtFrom,
		DtTo:        q.DtTo,
		IsFact:      q.IsFact,
		IsApproved:  q.IsApproved,
		Types:       q.Types,
		OpenVacs:    true,
	})
	if err != nil {
		return nil, err
	}

	if q.OpenVacsOnly {
		filtered := rows[:0]
		for i := range rows {
			if rows[i].IsOpenVacancy() {
				filtered = append(filtered, rows[i])
			}
		}
		rows = filtered
	}
	return rows, nil
}

// GetWorkerDay loads one row with its details.
func (s *Store) GetWorkerDay(ctx context.Context, id int64) (*model.WorkerDay, error) {
	return s.workerDayByID(s.db.WithContext(ctx), id, false)
}

// DeleteWorkerDay removes one row after the delete permission check.
func (s *Store) DeleteWorkerDay(ctx context.Context, actor *perm.Actor, id int64) error {
	return s.inTx(ctx, func(tx *gorm.DB, hooks *events.Hooks) error {
		wd, err := s.workerDayByID(tx, id, true)
		if err != nil {
			return err
		}
		return s.deleteWorkerDay(tx, hooks, actor, wd, false)
	})
}
