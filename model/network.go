package model

import "time"

type Network struct {
	ID       int64  `gorm:"primaryKey;column:id" json:"id"`
	Code     string `gorm:"column:code;uniqueIndex" json:"code"`
	Name     string `gorm:"column:name" json:"name"`
	Settings []byte `gorm:"column:settings;type:json" json:"settings"`

	Breaks BreakTriples `gorm:"column:breaks;type:json" json:"breaks"`

	// Outsource clients: networks whose vacancies this network's
	// employees may see and apply to.
	OutsourceClientIDs Int64Array `gorm:"column:outsource_client_ids;type:json" json:"outsourceClientIds"`

	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;<-:create" json:"createdAt"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP on update CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Network) TableName() string {
	return "wfm_networks"
}

func (n *Network) AllowsOutsourceTo(clientNetworkID int64) bool {
	return n.OutsourceClientIDs.Contains(clientNetworkID)
}

type Shop struct {
	ID        int64  `gorm:"primaryKey;column:id" json:"id"`
	NetworkID int64  `gorm:"column:network_id;not null;index" json:"networkId"`
	ParentID  *int64 `gorm:"column:parent_id" json:"parentId"`
	Code      string `gorm:"column:code;index" json:"code"`
	Name      string `gorm:"column:name" json:"name"`

	// Open/close clock strings per weekday, "15:04" format. Empty map
	// means the shop has no schedule and cropping is skipped.
	OpenTimes  StringMap `gorm:"column:open_times;type:json" json:"openTimes"`
	CloseTimes StringMap `gorm:"column:close_times;type:json" json:"closeTimes"`

	Breaks BreakTriples `gorm:"column:breaks;type:json" json:"breaks"`

	Timezone string     `gorm:"column:timezone;default:UTC" json:"timezone"`
	DtClosed *time.Time `gorm:"column:dt_closed;type:date" json:"dtClosed"`

	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;<-:create" json:"createdAt"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP on update CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Shop) TableName() string {
	return "wfm_shops"
}

type Position struct {
	ID                int64        `gorm:"primaryKey;column:id" json:"id"`
	NetworkID         int64        `gorm:"column:network_id;not null" json:"networkId"`
	Name              string       `gorm:"column:name" json:"name"`
	Code              string       `gorm:"column:code" json:"code"`
	Breaks            BreakTriples `gorm:"column:breaks;type:json" json:"breaks"`
	DefaultWorkTypeID *int64       `gorm:"column:default_work_type_id" json:"defaultWorkTypeId"`
}

func (Position) TableName() string {
	return "wfm_positions"
}

type WorkType struct {
	ID         int64  `gorm:"primaryKey;column:id" json:"id"`
	ShopID     int64  `gorm:"column:shop_id;not null;index" json:"shopId"`
	Name       string `gorm:"column:name" json:"name"`
	Code       string `gorm:"column:code" json:"code"`
	PositionID *int64 `gorm:"column:position_id" json:"positionId"`
}

func (WorkType) TableName() string {
	return "wfm_work_types"
}

// SAWHSettings holds the summarized annual working-hours budget of an
// employee: monthly quotas in hours keyed by "2006-01".
type SAWHSettings struct {
	ID         int64    `gorm:"primaryKey;column:id" json:"id"`
	NetworkID  int64    `gorm:"column:network_id;not null" json:"networkId"`
	Key        string   `gorm:"column:sawh_key;index" json:"key"`
	MonthHours FloatMap `gorm:"column:month_hours;type:json" json:"monthHours"`
}

func (SAWHSettings) TableName() string {
	return "wfm_sawh_settings"
}
