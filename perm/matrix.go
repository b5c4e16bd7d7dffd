// Package perm decides whether an actor may create, update, delete or
// approve a worker-day for a given employee, shop and date.
package perm

import (
	"fmt"
	"time"

	"wfm-core/config"
	"wfm-core/errs"
	"wfm-core/model"
	"wfm-core/utils"
)

// Clause codes carried by a Denial.
const (
	ClauseNoGrant       = "no_grant"
	ClauseDateWindow    = "date_window"
	ClauseEmployeeScope = "employee_scope"
	ClauseShopScope     = "shop_scope"
	ClauseProtected     = "protected"
	ClauseApproveFirst  = "approve_first"
)

// Denial wraps errs.ErrPermissionDenied with a machine-readable clause.
type Denial struct {
	Clause  string
	Message string
}

func (d *Denial) Error() string {
	return fmt.Sprintf("permission denied (%s): %s", d.Clause, d.Message)
}

func (d *Denial) Unwrap() error {
	return errs.ErrPermissionDenied
}

func deny(clause, format string, args ...interface{}) *Denial {
	return &Denial{Clause: clause, Message: fmt.Sprintf(format, args...)}
}

// Actor is the resolved identity a check runs for.
type Actor struct {
	User      model.User
	NetworkID int64
	Groups    []model.Group
	Networks  map[int64]*model.Network
}

// Check is one permission decision input.
type Check struct {
	Actor     *Actor
	Action    string
	GraphType string
	DayType   string

	TargetEmployee *model.Employee
	TargetGroupID  int64
	TargetShop     *model.Shop
	TargetDt       time.Time
	IsVacancy      bool

	// Existing row, when the action touches one. Consulted for the
	// protection override.
	Existing *model.WorkerDay
	// Draft row being approved. Consulted for the first-approval rule.
	Draft *model.WorkerDay

	Today time.Time
	Cfg   config.NetworkConfig
}

// Matrix evaluates permission checks against the group and shop structure.
type Matrix struct {
	groupsByID map[int64]*model.Group
	shopsByID  map[int64]*model.Shop
}

func NewMatrix(groups []model.Group, shops []model.Shop) *Matrix {
	m := &Matrix{
		groupsByID: make(map[int64]*model.Group, len(groups)),
		shopsByID:  make(map[int64]*model.Shop, len(shops)),
	}
	for i := range groups {
		m.groupsByID[groups[i].ID] = &groups[i]
	}
	for i := range shops {
		m.shopsByID[shops[i].ID] = &shops[i]
	}
	return m
}

// Allowed runs the full decision of one check. A nil return grants.
func (m *Matrix) Allowed(c Check) error {
	if c.Actor == nil {
		return deny(ClauseNoGrant, "no actor")
	}

	var lastDenial *Denial
	granted := false

	for gi := range c.Actor.Groups {
		group := &c.Actor.Groups[gi]
		for pi := range group.Permissions {
			p := &group.Permissions[pi]
			if p.Action != c.Action || p.GraphType != c.GraphType || p.DayTypeCode != c.DayType {
				continue
			}

			if err := m.checkWindow(p, c); err != nil {
				lastDenial = err
				continue
			}
			if err := m.checkEmployeeScope(group, p, c); err != nil {
				lastDenial = err
				continue
			}
			if err := m.checkShopScope(p, c); err != nil {
				lastDenial = err
				continue
			}

			granted = true
		}
	}

	if !granted {
		if lastDenial != nil {
			return lastDenial
		}
		return deny(ClauseNoGrant, "no %s permission for %s/%s days", c.Action, c.GraphType, c.DayType)
	}

	if err := m.checkProtection(c); err != nil {
		return err
	}

	if c.Action == model.ActionApprove {
		if err := m.checkApproveFirst(c); err != nil {
			return err
		}
	}

	return nil
}

func (m *Matrix) checkWindow(p *model.GroupPermission, c Check) *Denial {
	today := utils.TruncateToDay(c.Today)
	dt := utils.TruncateToDay(c.TargetDt)

	if p.LimitDaysInPast != nil {
		earliest := today.AddDate(0, 0, -*p.LimitDaysInPast)
		if dt.Before(earliest) {
			return deny(ClauseDateWindow, "date %s is more than %d days in the past", dt.Format(utils.DateLayout), *p.LimitDaysInPast)
		}
	}
	if p.LimitDaysInFuture != nil {
		latest := today.AddDate(0, 0, *p.LimitDaysInFuture)
		if dt.After(latest) {
			return deny(ClauseDateWindow, "date %s is more than %d days in the future", dt.Format(utils.DateLayout), *p.LimitDaysInFuture)
		}
	}
	return nil
}

func (m *Matrix) checkEmployeeScope(group *model.Group, p *model.GroupPermission, c Check) *Denial {
	// Open vacancies have no target employee; they are scoped by shop only.
	if c.TargetEmployee == nil {
		if c.IsVacancy {
			return nil
		}
		return deny(ClauseEmployeeScope, "no target employee")
	}

	switch p.EmployeeScope {
	case model.EmployeeScopeSelf:
		if c.TargetEmployee.UserID == nil || *c.TargetEmployee.UserID != c.Actor.User.ID {
			return deny(ClauseEmployeeScope, "employee %d is not the actor", c.TargetEmployee.ID)
		}
	case model.EmployeeScopeMyNetwork:
		if c.TargetEmployee.NetworkID != c.Actor.NetworkID {
			return deny(ClauseEmployeeScope, "employee %d belongs to another network", c.TargetEmployee.ID)
		}
	case model.EmployeeScopeOtherNetwork:
		if c.TargetEmployee.NetworkID == c.Actor.NetworkID {
			return deny(ClauseEmployeeScope, "employee %d is in the actor's own network", c.TargetEmployee.ID)
		}
		if !m.hasOutsourceRelation(c.Actor, c.TargetEmployee.NetworkID) {
			return deny(ClauseEmployeeScope, "no outsource relation to network %d", c.TargetEmployee.NetworkID)
		}
	case model.EmployeeScopeSubordinate:
		if !m.isSubordinateGroup(group, c.TargetGroupID) {
			return deny(ClauseEmployeeScope, "group %d is not subordinate to %s", c.TargetGroupID, group.Name)
		}
		if c.TargetShop != nil && !m.shopInTree(c.Actor.User.ShopIDs, c.TargetShop.ID) {
			return deny(ClauseEmployeeScope, "shop %d is outside the actor's shop tree", c.TargetShop.ID)
		}
	default:
		return deny(ClauseEmployeeScope, "unknown employee scope %q", p.EmployeeScope)
	}
	return nil
}

func (m *Matrix) checkShopScope(p *model.GroupPermission, c Check) *Denial {
	if c.TargetShop == nil {
		// Day-offs carry no shop.
		return nil
	}

	switch p.ShopScope {
	case model.ShopScopeMyShops:
		if !m.shopInTree(c.Actor.User.ShopIDs, c.TargetShop.ID) {
			return deny(ClauseShopScope, "shop %d is not among the actor's shops", c.TargetShop.ID)
		}
	case model.ShopScopeClientNetworkShops:
		if c.TargetShop.NetworkID == c.Actor.NetworkID {
			return nil
		}
		if !m.hasOutsourceRelation(c.Actor, c.TargetShop.NetworkID) {
			return deny(ClauseShopScope, "shop %d is in a non-client network", c.TargetShop.ID)
		}
	default:
		return deny(ClauseShopScope, "unknown shop scope %q", p.ShopScope)
	}
	return nil
}

func (m *Matrix) checkProtection(c Check) error {
	if c.Existing == nil {
		return nil
	}
	if !c.Existing.IsProtected(c.Cfg.ForbidEditIntegrationWorkDays) {
		return nil
	}
	for _, g := range c.Actor.Groups {
		if g.HasProtectedDayPermission {
			return nil
		}
	}
	return fmt.Errorf("%w: day %s is protected", errs.ErrProtectedDay, utils.TruncateToDay(c.TargetDt).Format(utils.DateLayout))
}

func (m *Matrix) checkApproveFirst(c Check) *Denial {
	if c.Draft == nil {
		return nil
	}
	allowFirst := false
	for _, g := range c.Actor.Groups {
		if g.AllowApproveFirst {
			allowFirst = true
			break
		}
	}
	if allowFirst {
		return nil
	}
	if c.Draft.ParentWorkerDayID == nil {
		return deny(ClauseApproveFirst, "draft on %s introduces a new day and the group may not approve first", c.Draft.Dt.Format(utils.DateLayout))
	}
	return nil
}

// isSubordinateGroup walks the subordinate sets transitively.
func (m *Matrix) isSubordinateGroup(group *model.Group, targetGroupID int64) bool {
	seen := map[int64]bool{group.ID: true}
	queue := append([]int64{}, group.SubordinateGroupIDs...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		if id == targetGroupID {
			return true
		}
		if g, ok := m.groupsByID[id]; ok {
			queue = append(queue, g.SubordinateGroupIDs...)
		}
	}
	return false
}

// shopInTree reports whether the shop or any of its ancestors is among the
// actor's shops.
func (m *Matrix) shopInTree(actorShops model.Int64Array, shopID int64) bool {
	seen := map[int64]bool{}
	for id := &shopID; id != nil; {
		if seen[*id] {
			break
		}
		seen[*id] = true
		if actorShops.Contains(*id) {
			return true
		}
		shop, ok := m.shopsByID[*id]
		if !ok {
			break
		}
		id = shop.ParentID
	}
	return false
}

func (m *Matrix) hasOutsourceRelation(actor *Actor, clientNetworkID int64) bool {
	network, ok := actor.Networks[actor.NetworkID]
	if !ok {
		return false
	}
	return network.AllowsOutsourceTo(clientNetworkID)
}
