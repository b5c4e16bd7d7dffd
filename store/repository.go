package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wfm-core/errs"
	"wfm-core/model"
	"wfm-core/utils"
)

func (s *Store) shopByID(tx *gorm.DB, id int64) (*model.Shop, error) {
	var shop model.Shop
	if err := tx.First(&shop, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: shop %d", errs.ErrNotFound, id)
		}
		return nil, err
	}
	return &shop, nil
}

func (s *Store) networkByID(tx *gorm.DB, id int64) (*model.Network, error) {
	var network model.Network
	if err := tx.First(&network, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: network %d", errs.ErrNotFound, id)
		}
		return nil, err
	}
	return &network, nil
}

func (s *Store) employeeByID(tx *gorm.DB, id int64) (*model.Employee, error) {
	var employee model.Employee
	err := tx.Preload("Employments.WorkTypes").Preload("Employments.Position").First(&employee, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: employee %d", errs.ErrNotFound, id)
		}
		return nil, err
	}
	return &employee, nil
}

func (s *Store) employmentByID(tx *gorm.DB, id int64) (*model.Employment, error) {
	var employment model.Employment
	err := tx.Preload("WorkTypes").Preload("Position").First(&employment, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: employment %d", errs.ErrNotFound, id)
		}
		return nil, err
	}
	return &employment, nil
}

func (s *Store) workTypeByID(tx *gorm.DB, id int64) (*model.WorkType, error) {
	var wt model.WorkType
	if err := tx.First(&wt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: work type %d", errs.ErrNotFound, id)
		}
		return nil, err
	}
	return &wt, nil
}

func (s *Store) workerDayByID(tx *gorm.DB, id int64, forUpdate bool) (*model.WorkerDay, error) {
	q := tx.Preload("Details")
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var wd model.WorkerDay
	if err := q.First(&wd, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: worker day %d", errs.ErrNotFound, id)
		}
		return nil, err
	}
	return &wd, nil
}

// cellQuery describes which worker-day rows to load. ShopOrNull admits
// rows without a shop (day-offs) alongside the shop's own.
type cellQuery struct {
	EmployeeIDs []int64
	ShopID      *int64
	ShopOrNull  *int64
	DtFrom      time.Time
	DtTo        time.Time
	IsFact      *bool
	IsApproved  *bool
	Types       []string
	ForUpdate   bool
	OpenVacs    bool
}

func (s *Store) loadWorkerDays(tx *gorm.DB, q cellQuery) ([]model.WorkerDay, error) {
	// Half-open upper bound: dt values may carry a time-of-day depending on
	// the driver, and the range is inclusive by calendar day.
	query := tx.Preload("Details").
		Where("dt >= ? AND dt < ?", q.DtFrom.Format(utils.DateLayout), q.DtTo.AddDate(0, 0, 1).Format(utils.DateLayout))

	switch {
	case len(q.EmployeeIDs) > 0 && q.OpenVacs:
		query = query.Where("employee_id IN ? OR employee_id IS NULL", q.EmployeeIDs)
	case len(q.EmployeeIDs) > 0:
		query = query.Where("employee_id IN ?", q.EmployeeIDs)
	case !q.OpenVacs:
		query = query.Where("employee_id IS NOT NULL")
	}

	switch {
	case q.ShopID != nil:
		query = query.Where("shop_id = ?", *q.ShopID)
	case q.ShopOrNull != nil:
		query = query.Where("shop_id = ? OR shop_id IS NULL", *q.ShopOrNull)
	}
	if q.IsFact != nil {
		query = query.Where("is_fact = ?", *q.IsFact)
	}
	if q.IsApproved != nil {
		query = query.Where("is_approved = ?", *q.IsApproved)
	}
	if len(q.Types) > 0 {
		query = query.Where("type IN ?", q.Types)
	}
	if q.ForUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var days []model.WorkerDay
	if err := query.Order("dt, id").Find(&days).Error; err != nil {
		return nil, err
	}
	return days, nil
}

// shopEmployeeIDs lists the employees having worker days at the shop in the
// range, in either quadrant.
func (s *Store) shopEmployeeIDs(tx *gorm.DB, shopID int64, dtFrom, dtTo time.Time) ([]int64, error) {
	var ids []int64
	err := tx.Model(&model.WorkerDay{}).
		Distinct("employee_id").
		Where("shop_id = ? AND employee_id IS NOT NULL", shopID).
		Where("dt >= ? AND dt < ?", dtFrom.Format(utils.DateLayout), dtTo.AddDate(0, 0, 1).Format(utils.DateLayout)).
		Order("employee_id").
		Pluck("employee_id", &ids).Error
	return ids, err
}

// approvedPlansFor loads the approved plan rows for an employee within
// [dtFrom, dtTo].
func (s *Store) approvedPlansFor(tx *gorm.DB, employeeID int64, dtFrom, dtTo time.Time) ([]model.WorkerDay, error) {
	return s.loadWorkerDays(tx, cellQuery{
		EmployeeIDs: []int64{employeeID},
		DtFrom:      dtFrom,
		DtTo:        dtTo,
		IsFact:      utils.Ptr(false),
		IsApproved:  utils.Ptr(true),
	})
}

// chooseClosestPlan picks, among approved plan rows, the one whose shift
// interval best matches the fact interval: a containing plan wins, then the
// one with the smallest total start/end displacement.
func chooseClosestPlan(plans []model.WorkerDay, factStart, factEnd time.Time) *model.WorkerDay {
	var best *model.WorkerDay
	bestContains := false
	var bestShift time.Duration

	for i := range plans {
		p := &plans[i]
		if !p.HasTimes() {
			continue
		}

		contains := !p.DttmWorkStart.After(factStart) && !p.DttmWorkEnd.Before(factEnd)
		shift := absDuration(p.DttmWorkStart.Sub(factStart)) + absDuration(p.DttmWorkEnd.Sub(factEnd))

		switch {
		case best == nil:
		case contains && !bestContains:
		case contains == bestContains && shift < bestShift:
		default:
			continue
		}
		best = p
		bestContains = contains
		bestShift = shift
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func (s *Store) sawhMonthHours(tx *gorm.DB, networkID int64, sawhKey string, month time.Time) float64 {
	if sawhKey == "" {
		return 0
	}
	var settings model.SAWHSettings
	err := tx.Where("network_id = ? AND sawh_key = ?", networkID, sawhKey).First(&settings).Error
	if err != nil {
		return 0
	}
	return settings.MonthHours[month.Format("2006-01")]
}
