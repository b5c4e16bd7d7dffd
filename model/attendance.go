package model

import "time"

// Attendance event kinds.
const (
	AttendanceComing  = "COMING"
	AttendanceLeaving = "LEAVING"
	AttendanceAuto    = "AUTO"
)

// AttendanceRecord is a raw clock event from a kiosk or terminal.
type AttendanceRecord struct {
	ID         int64     `gorm:"primaryKey;column:id" json:"id"`
	EmployeeID *int64    `gorm:"column:employee_id;index" json:"employeeId"`
	UserID     *int64    `gorm:"column:user_id" json:"userId"`
	ShopID     int64     `gorm:"column:shop_id;not null;index" json:"shopId"`
	Dttm       time.Time `gorm:"column:dttm;not null;index" json:"dttm"`
	Type       string    `gorm:"column:type;type:varchar(8);not null" json:"type"`
	Terminal   bool      `gorm:"column:terminal;default:false" json:"terminal"`

	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;<-:create" json:"createdAt"`
}

func (AttendanceRecord) TableName() string {
	return "wfm_attendance_records"
}
