package model

// Permission actions and graph types.
const (
	ActionCreate  = "CREATE"
	ActionUpdate  = "UPDATE"
	ActionDelete  = "DELETE"
	ActionApprove = "APPROVE"

	GraphPlan = "PLAN"
	GraphFact = "FACT"
)

// Employee / shop scope values of a permission tuple.
const (
	EmployeeScopeSelf         = "SELF"
	EmployeeScopeMyNetwork    = "MY_NETWORK"
	EmployeeScopeOtherNetwork = "OTHER_NETWORK"
	EmployeeScopeSubordinate  = "SUBORDINATE"

	ShopScopeMyShops            = "MY_SHOPS"
	ShopScopeClientNetworkShops = "CLIENT_NETWORK_SHOPS"
)

type Group struct {
	ID        int64  `gorm:"primaryKey;column:id" json:"id"`
	NetworkID int64  `gorm:"column:network_id;not null;index" json:"networkId"`
	Name      string `gorm:"column:name" json:"name"`

	SubordinateGroupIDs Int64Array `gorm:"column:subordinate_group_ids;type:json" json:"subordinateGroupIds"`

	// When false the group may approve only drafts refining an already
	// approved day.
	AllowApproveFirst bool `gorm:"column:allow_approve_first;default:true" json:"allowApproveFirst"`

	// Super-permission to edit blocked or integration-originated days.
	HasProtectedDayPermission bool `gorm:"column:has_protected_day_permission" json:"hasProtectedDayPermission"`

	Permissions []GroupPermission `gorm:"foreignKey:GroupID" json:"permissions,omitempty"`
}

func (Group) TableName() string {
	return "wfm_groups"
}

// GroupPermission is one tuple of the permission matrix: may members of the
// group run action on graph-type rows of the given day type, and inside
// which date window and scopes.
type GroupPermission struct {
	ID          int64  `gorm:"primaryKey;column:id" json:"id"`
	GroupID     int64  `gorm:"column:group_id;not null;index" json:"groupId"`
	Action      string `gorm:"column:action;type:varchar(16);not null" json:"action"`
	GraphType   string `gorm:"column:graph_type;type:varchar(8);not null" json:"graphType"`
	DayTypeCode string `gorm:"column:day_type_code;type:varchar(8);not null" json:"dayTypeCode"`

	// Day limits relative to today; nil means unbounded.
	LimitDaysInPast   *int `gorm:"column:limit_days_in_past" json:"limitDaysInPast"`
	LimitDaysInFuture *int `gorm:"column:limit_days_in_future" json:"limitDaysInFuture"`

	EmployeeScope string `gorm:"column:employee_scope;type:varchar(24);default:MY_NETWORK" json:"employeeScope"`
	ShopScope     string `gorm:"column:shop_scope;type:varchar(24);default:MY_SHOPS" json:"shopScope"`
}

func (GroupPermission) TableName() string {
	return "wfm_group_permissions"
}
