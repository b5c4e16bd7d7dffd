package model

import (
	"time"

	"wfm-core/utils"
)

type User struct {
	ID        int64  `gorm:"primaryKey;column:id" json:"id"`
	NetworkID int64  `gorm:"column:network_id;not null;index" json:"networkId"`
	Username  string `gorm:"column:username;uniqueIndex" json:"username"`
	Email     string `gorm:"column:email" json:"email"`
	FirstName string `gorm:"column:first_name" json:"firstName"`
	LastName  string `gorm:"column:last_name" json:"lastName"`

	GroupIDs Int64Array `gorm:"column:group_ids;type:json" json:"groupIds"`
	ShopIDs  Int64Array `gorm:"column:shop_ids;type:json" json:"shopIds"`

	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;<-:create" json:"createdAt"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP on update CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (User) TableName() string {
	return "wfm_users"
}

type Employee struct {
	ID        int64   `gorm:"primaryKey;column:id" json:"id"`
	UserID    *int64  `gorm:"column:user_id;index" json:"userId"`
	NetworkID int64   `gorm:"column:network_id;not null;index" json:"networkId"`
	TabelCode *string `gorm:"column:tabel_code;index" json:"tabelCode"`

	Employments []Employment `gorm:"foreignKey:EmployeeID" json:"employments,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;<-:create" json:"createdAt"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP on update CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Employee) TableName() string {
	return "wfm_employees"
}

type Employment struct {
	ID         int64 `gorm:"primaryKey;column:id" json:"id"`
	EmployeeID int64 `gorm:"column:employee_id;not null;index" json:"employeeId"`
	ShopID     int64 `gorm:"column:shop_id;not null;index" json:"shopId"`
	PositionID int64 `gorm:"column:position_id;not null" json:"positionId"`
	GroupID    int64 `gorm:"column:group_id;not null" json:"groupId"`

	DtHired time.Time  `gorm:"column:dt_hired;type:date;not null" json:"dtHired"`
	DtFired *time.Time `gorm:"column:dt_fired;type:date" json:"dtFired"`

	// Full-time share in percent: 100, 50, ...
	NormWorkHours float64 `gorm:"column:norm_work_hours;not null" json:"normWorkHours"`
	IsVisible     bool    `gorm:"column:is_visible;default:true" json:"isVisible"`

	WorkTypes []EmploymentWorkType `gorm:"foreignKey:EmploymentID" json:"workTypes,omitempty"`

	Position *Position `gorm:"foreignKey:PositionID" json:"position,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;<-:create" json:"createdAt"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP on update CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Employment) TableName() string {
	return "wfm_employments"
}

// ActiveOn reports whether the employment covers date d and carries a
// positive norm share.
func (e *Employment) ActiveOn(d time.Time) bool {
	if e.NormWorkHours <= 0 {
		return false
	}
	d = utils.TruncateToDay(d)
	if d.Before(utils.TruncateToDay(e.DtHired)) {
		return false
	}
	if e.DtFired != nil && d.After(utils.TruncateToDay(*e.DtFired)) {
		return false
	}
	return true
}

func (e *Employment) HasWorkType(workTypeID int64) bool {
	for _, wt := range e.WorkTypes {
		if wt.WorkTypeID == workTypeID {
			return true
		}
	}
	return false
}

type EmploymentWorkType struct {
	ID           int64 `gorm:"primaryKey;column:id" json:"id"`
	EmploymentID int64 `gorm:"column:employment_id;not null;index" json:"employmentId"`
	WorkTypeID   int64 `gorm:"column:work_type_id;not null" json:"workTypeId"`
	Priority     int   `gorm:"column:priority;default:0" json:"priority"`
}

func (EmploymentWorkType) TableName() string {
	return "wfm_employment_work_types"
}

// PickEmployment chooses the employment a worker-day on date d should be
// attached to: visible first, then higher norm share, then matching shop,
// then matching work type, then work-type priority.
func PickEmployment(employments []Employment, d time.Time, shopID int64, workTypeID *int64) *Employment {
	var best *Employment
	bestRank := [5]int{-1, -1, -1, -1, -1}

	for i := range employments {
		emp := &employments[i]
		if !emp.ActiveOn(d) {
			continue
		}

		rank := [5]int{0, 0, 0, 0, 0}
		if emp.IsVisible {
			rank[0] = 1
		}
		rank[1] = int(emp.NormWorkHours)
		if emp.ShopID == shopID {
			rank[2] = 1
		}
		if workTypeID != nil && emp.HasWorkType(*workTypeID) {
			rank[3] = 1
			for _, wt := range emp.WorkTypes {
				if wt.WorkTypeID == *workTypeID {
					rank[4] = wt.Priority
				}
			}
		}

		if best == nil || rankGreater(rank, bestRank) {
			best = emp
			bestRank = rank
		}
	}

	return best
}

func rankGreater(a, b [5]int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}
