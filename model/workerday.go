package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"wfm-core/utils"
)

// Worker-day sources.
const (
	SourceManual           = "manual"
	SourceUpload           = "upload"
	SourceExchange         = "exchange"
	SourceExchangeApproved = "exchange_approved"
	SourceCopyRange        = "copy_range"
	SourceDuplicate        = "duplicate"
	SourceChangeList       = "change_list"
	SourceIntegration      = "integration"
	SourceAuto             = "auto"
)

// WorkerDay is one row of the (employee, date) grid in one of the four
// quadrants plan/fact x draft/approved.
type WorkerDay struct {
	ID int64 `gorm:"primaryKey;column:id" json:"id"`

	EmployeeID   *int64 `gorm:"column:employee_id;index:idx_wd_cell" json:"employeeId"`
	EmploymentID *int64 `gorm:"column:employment_id" json:"employmentId"`

	Dt   time.Time `gorm:"column:dt;type:date;not null;index:idx_wd_cell" json:"dt"`
	Type string    `gorm:"column:type;type:varchar(8);not null" json:"type"`

	ShopID *int64 `gorm:"column:shop_id;index" json:"shopId"`

	DttmWorkStart *time.Time `gorm:"column:dttm_work_start" json:"dttmWorkStart"`
	DttmWorkEnd   *time.Time `gorm:"column:dttm_work_end" json:"dttmWorkEnd"`

	// Cropped interval used for the tabel when the shop-schedule crop is on.
	DttmWorkStartTabel *time.Time `gorm:"column:dttm_work_start_tabel" json:"dttmWorkStartTabel"`
	DttmWorkEndTabel   *time.Time `gorm:"column:dttm_work_end_tabel" json:"dttmWorkEndTabel"`

	WorkHours  time.Duration `gorm:"column:work_hours;not null;default:0" json:"workHours"`
	DayHours   time.Duration `gorm:"column:day_hours;not null;default:0" json:"dayHours"`
	NightHours time.Duration `gorm:"column:night_hours;not null;default:0" json:"nightHours"`

	IsFact     bool `gorm:"column:is_fact;not null;index:idx_wd_cell" json:"isFact"`
	IsApproved bool `gorm:"column:is_approved;not null;index:idx_wd_cell" json:"isApproved"`

	IsVacancy   bool       `gorm:"column:is_vacancy;not null;default:false" json:"isVacancy"`
	IsOutsource bool       `gorm:"column:is_outsource;not null;default:false" json:"isOutsource"`
	Outsources  Int64Array `gorm:"column:outsources;type:json" json:"outsources"`

	IsBlocked bool   `gorm:"column:is_blocked;not null;default:false" json:"isBlocked"`
	Code      string `gorm:"column:code;index" json:"code"`

	ClosestPlanApprovedID *int64 `gorm:"column:closest_plan_approved_id" json:"closestPlanApprovedId"`
	ParentWorkerDayID     *int64 `gorm:"column:parent_worker_day_id" json:"parentWorkerDayId"`

	Source string `gorm:"column:source;type:varchar(24);default:manual" json:"source"`

	CreatedByID    *int64 `gorm:"column:created_by_id" json:"createdById"`
	LastEditedByID *int64 `gorm:"column:last_edited_by_id" json:"lastEditedById"`

	Details []WorkerDayDetail `gorm:"foreignKey:WorkerDayID" json:"details,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;<-:create" json:"createdAt"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP on update CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (WorkerDay) TableName() string {
	return "wfm_worker_days"
}

func (wd *WorkerDay) GraphType() string {
	if wd.IsFact {
		return GraphFact
	}
	return GraphPlan
}

// IsOpenVacancy reports an unassigned vacancy.
func (wd *WorkerDay) IsOpenVacancy() bool {
	return wd.IsVacancy && wd.EmployeeID == nil
}

// Protected days may only be touched with the protected-day permission.
func (wd *WorkerDay) IsProtected(forbidIntegrationEdit bool) bool {
	if wd.IsBlocked {
		return true
	}
	return forbidIntegrationEdit && wd.Code != ""
}

func (wd *WorkerDay) HasTimes() bool {
	return wd.DttmWorkStart != nil && wd.DttmWorkEnd != nil
}

// TabelInterval is the billable interval: the cropped one when present,
// otherwise the raw shift times.
func (wd *WorkerDay) TabelInterval() (time.Time, time.Time, bool) {
	if wd.DttmWorkStartTabel != nil && wd.DttmWorkEndTabel != nil {
		return *wd.DttmWorkStartTabel, *wd.DttmWorkEndTabel, true
	}
	if wd.HasTimes() {
		return *wd.DttmWorkStart, *wd.DttmWorkEnd, true
	}
	return time.Time{}, time.Time{}, false
}

// Overlaps reports whether two rows' shift intervals intersect. Day-offs
// never overlap anything.
func (wd *WorkerDay) Overlaps(other *WorkerDay) bool {
	if !wd.HasTimes() || !other.HasTimes() {
		return false
	}
	return wd.DttmWorkStart.Before(*other.DttmWorkEnd) && other.DttmWorkStart.Before(*wd.DttmWorkEnd)
}

// CellKey identifies a (employee, dt, is_fact) cell. The approved flag is
// deliberately not part of the key: approve diffs draft against approved
// within one cell.
type CellKey struct {
	EmployeeID int64
	Dt         string
	IsFact     bool
}

func (wd *WorkerDay) Cell() CellKey {
	var empID int64
	if wd.EmployeeID != nil {
		empID = *wd.EmployeeID
	}
	return CellKey{EmployeeID: empID, Dt: wd.Dt.Format(utils.DateLayout), IsFact: wd.IsFact}
}

// Snapshot renders the approval-relevant content of a row. Two rows with
// equal snapshots need no re-approval.
func (wd *WorkerDay) Snapshot() string {
	s := fmt.Sprintf("%s|%v|%v|%v|%v|%v|%v|%v|%s",
		wd.Type,
		ptrVal(wd.ShopID),
		ptrTime(wd.DttmWorkStart),
		ptrTime(wd.DttmWorkEnd),
		wd.IsVacancy,
		wd.IsOutsource,
		ptrVal(wd.EmploymentID),
		wd.Outsources,
		wd.Code,
	)
	for _, d := range wd.Details {
		s += fmt.Sprintf("|%d:%s", d.WorkTypeID, d.WorkPart.String())
	}
	return s
}

func ptrVal(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func ptrTime(p *time.Time) string {
	if p == nil {
		return ""
	}
	return p.UTC().Format(time.RFC3339)
}

// WorkerDayDetail assigns a fractional share of a workday to a work type.
// Shares of one worker-day sum to 1.
type WorkerDayDetail struct {
	ID          int64           `gorm:"primaryKey;column:id" json:"id"`
	WorkerDayID int64           `gorm:"column:worker_day_id;not null;index" json:"workerDayId"`
	WorkTypeID  int64           `gorm:"column:work_type_id;not null" json:"workTypeId"`
	WorkPart    decimal.Decimal `gorm:"column:work_part;type:decimal(5,4);not null" json:"workPart"`
}

func (WorkerDayDetail) TableName() string {
	return "wfm_worker_day_details"
}
