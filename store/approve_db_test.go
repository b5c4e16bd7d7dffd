package store

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wfm-core/core"
	"wfm-core/errs"
	"wfm-core/events"
	"wfm-core/model"
	"wfm-core/perm"
	"wfm-core/utils"
)

type nopLocker struct{}

func (nopLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}

type nopQueue struct{}

func (nopQueue) Enqueue(context.Context, string, interface{}) error { return nil }

var storeSchema = []string{
	`CREATE TABLE wfm_networks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT, name TEXT, settings TEXT, breaks TEXT,
		outsource_client_ids TEXT,
		created_at DATETIME, updated_at DATETIME)`,
	`CREATE TABLE wfm_shops (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		network_id INTEGER, parent_id INTEGER, code TEXT, name TEXT,
		open_times TEXT, close_times TEXT, breaks TEXT,
		timezone TEXT, dt_closed DATE,
		created_at DATETIME, updated_at DATETIME)`,
	`CREATE TABLE wfm_employees (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER, network_id INTEGER, tabel_code TEXT,
		created_at DATETIME, updated_at DATETIME)`,
	`CREATE TABLE wfm_employments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id INTEGER, shop_id INTEGER, position_id INTEGER,
		group_id INTEGER, dt_hired DATE, dt_fired DATE,
		norm_work_hours REAL, is_visible BOOLEAN,
		created_at DATETIME, updated_at DATETIME)`,
	`CREATE TABLE wfm_employment_work_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employment_id INTEGER, work_type_id INTEGER, priority INTEGER)`,
	`CREATE TABLE wfm_positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		network_id INTEGER, name TEXT, code TEXT, breaks TEXT,
		default_work_type_id INTEGER)`,
	`CREATE TABLE wfm_work_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		shop_id INTEGER, name TEXT, code TEXT, position_id INTEGER)`,
	`CREATE TABLE wfm_worker_days (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id INTEGER, employment_id INTEGER,
		dt DATE, type TEXT, shop_id INTEGER,
		dttm_work_start DATETIME, dttm_work_end DATETIME,
		dttm_work_start_tabel DATETIME, dttm_work_end_tabel DATETIME,
		work_hours INTEGER, day_hours INTEGER, night_hours INTEGER,
		is_fact BOOLEAN, is_approved BOOLEAN,
		is_vacancy BOOLEAN, is_outsource BOOLEAN, outsources TEXT,
		is_blocked BOOLEAN, code TEXT,
		closest_plan_approved_id INTEGER, parent_worker_day_id INTEGER,
		source TEXT, created_by_id INTEGER, last_edited_by_id INTEGER,
		created_at DATETIME, updated_at DATETIME)`,
	`CREATE TABLE wfm_worker_day_details (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		worker_day_id INTEGER, work_type_id INTEGER, work_part NUMERIC)`,
}

func storeRegistry() *core.DayTypeRegistry {
	return core.NewDayTypeRegistry([]model.DayType{
		{Code: model.DayTypeWorkday, IsWorkHours: true, UseInPlan: true, UseInFact: true},
		{Code: model.DayTypeHoliday, IsDayoff: true, UseInPlan: true, UseInFact: true},
		{Code: model.DayTypeBusinessTrip, GetWorkHoursMethod: model.WorkHoursManualOrSAWH, UseInPlan: true, UseInFact: true},
	})
}

func managerActor() (*perm.Actor, *perm.Matrix) {
	group := model.Group{ID: 1, NetworkID: 1, Name: "managers", AllowApproveFirst: true}
	for _, typ := range []string{model.DayTypeWorkday, model.DayTypeHoliday, model.DayTypeBusinessTrip} {
		for _, action := range []string{model.ActionApprove, model.ActionUpdate} {
			group.Permissions = append(group.Permissions, model.GroupPermission{
				GroupID:       1,
				Action:        action,
				GraphType:     model.GraphPlan,
				DayTypeCode:   typ,
				EmployeeScope: model.EmployeeScopeMyNetwork,
				ShopScope:     model.ShopScopeMyShops,
			})
		}
	}

	matrix := perm.NewMatrix([]model.Group{group}, nil)
	actor := &perm.Actor{
		User:      model.User{ID: 10, NetworkID: 1, ShopIDs: model.Int64Array{100, 200}},
		NetworkID: 1,
		Groups:    []model.Group{group},
		Networks:  map[int64]*model.Network{1: {ID: 1}},
	}
	return actor, matrix
}

// newApproveStore wires the store onto an in-memory database seeded with a
// network, two shops and two employees.
func newApproveStore(t *testing.T) (*Store, *perm.Actor) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	for _, ddl := range storeSchema {
		require.NoError(t, db.Exec(ddl).Error)
	}

	actor, matrix := managerActor()
	log := logrus.New()
	log.SetOutput(io.Discard)

	st := New(db, storeRegistry(), matrix, events.NopPublisher{}, nopQueue{}, nopLocker{}, log)
	st.now = func() time.Time { return time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, db.Create(&model.Network{ID: 1, Code: "net"}).Error)
	require.NoError(t, db.Create(&model.Shop{ID: 100, NetworkID: 1, Code: "s100"}).Error)
	require.NoError(t, db.Create(&model.Shop{ID: 200, NetworkID: 1, Code: "s200"}).Error)
	require.NoError(t, db.Create(&model.Employee{ID: 1, NetworkID: 1}).Error)
	require.NoError(t, db.Create(&model.Employee{ID: 2, NetworkID: 1}).Error)
	return st, actor
}

func storedRow(t *testing.T, db *gorm.DB, wd model.WorkerDay) int64 {
	t.Helper()
	details := wd.Details
	wd.Details = nil
	require.NoError(t, db.Create(&wd).Error)
	for _, d := range details {
		detail := model.WorkerDayDetail{WorkerDayID: wd.ID, WorkTypeID: d.WorkTypeID, WorkPart: d.WorkPart}
		require.NoError(t, db.Create(&detail).Error)
	}
	return wd.ID
}

func clock(dt time.Time, hhmm string) *time.Time {
	ts, err := utils.ParseTimeOnDate(dt, hhmm)
	if err != nil {
		panic(err)
	}
	return &ts
}

func marchRange() (time.Time, time.Time) {
	return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
}

func TestApproveReplacesRefinedCell(t *testing.T) {
	st, actor := newApproveStore(t)
	db := st.DB()
	dt := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	dtFrom, dtTo := marchRange()

	require.NoError(t, db.Create(&model.WorkType{ID: 7, ShopID: 100, Name: "Cashier", Code: "cashier"}).Error)

	// The cell holds an approved business trip without a shop; the draft
	// refines it into a workday at the shop.
	btID := storedRow(t, db, model.WorkerDay{
		EmployeeID: utils.Ptr(int64(1)),
		Dt:         dt,
		Type:       model.DayTypeBusinessTrip,
		IsApproved: true,
	})
	draftID := storedRow(t, db, model.WorkerDay{
		EmployeeID:    utils.Ptr(int64(1)),
		Dt:            dt,
		Type:          model.DayTypeWorkday,
		ShopID:        utils.Ptr(int64(100)),
		DttmWorkStart: clock(dt, "10:00"),
		DttmWorkEnd:   clock(dt, "19:00"),
		Details:       []model.WorkerDayDetail{{WorkTypeID: 7, WorkPart: decimal.NewFromInt(1)}},
	})

	in := ApproveInput{ShopID: 100, DtFrom: dtFrom, DtTo: dtTo, DayTypes: []string{model.DayTypeWorkday}}
	changed, err := st.Approve(context.Background(), actor, in)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	// The business trip is gone even though only W was requested: the type
	// filter picks the cell, the replacement covers the whole cell.
	var approved []model.WorkerDay
	require.NoError(t, db.Preload("Details").
		Where("is_approved = ? AND is_fact = ?", true, false).Find(&approved).Error)
	require.Len(t, approved, 1)
	assert.Equal(t, model.DayTypeWorkday, approved[0].Type)
	require.Len(t, approved[0].Details, 1)
	assert.Equal(t, int64(7), approved[0].Details[0].WorkTypeID)

	var leftover int64
	require.NoError(t, db.Model(&model.WorkerDay{}).Where("id = ?", btID).Count(&leftover).Error)
	assert.Zero(t, leftover)

	var draft model.WorkerDay
	require.NoError(t, db.First(&draft, draftID).Error)
	require.NotNil(t, draft.ParentWorkerDayID)
	assert.Equal(t, approved[0].ID, *draft.ParentWorkerDayID)

	// Re-running changes nothing.
	changed, err = st.Approve(context.Background(), actor, in)
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestApproveLoadsShoplessDayOffDrafts(t *testing.T) {
	st, actor := newApproveStore(t)
	db := st.DB()
	dt := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	dtFrom, dtTo := marchRange()

	// Approved workday at the shop; the refining draft is a day-off and
	// carries no shop at all.
	storedRow(t, db, model.WorkerDay{
		EmployeeID:    utils.Ptr(int64(1)),
		Dt:            dt,
		Type:          model.DayTypeWorkday,
		ShopID:        utils.Ptr(int64(100)),
		DttmWorkStart: clock(dt, "09:00"),
		DttmWorkEnd:   clock(dt, "18:00"),
		IsApproved:    true,
	})
	storedRow(t, db, model.WorkerDay{
		EmployeeID: utils.Ptr(int64(1)),
		Dt:         dt,
		Type:       model.DayTypeHoliday,
	})

	changed, err := st.Approve(context.Background(), actor, ApproveInput{
		ShopID: 100, DtFrom: dtFrom, DtTo: dtTo, EmployeeIDs: []int64{1},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	var approved []model.WorkerDay
	require.NoError(t, db.Where("is_approved = ?", true).Find(&approved).Error)
	require.Len(t, approved, 1)
	assert.Equal(t, model.DayTypeHoliday, approved[0].Type)
	assert.Nil(t, approved[0].ShopID)
}

func TestApproveLeavesOtherShopsAlone(t *testing.T) {
	st, actor := newApproveStore(t)
	db := st.DB()
	dt := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	dtFrom, dtTo := marchRange()

	otherID := storedRow(t, db, model.WorkerDay{
		EmployeeID:    utils.Ptr(int64(2)),
		Dt:            dt,
		Type:          model.DayTypeWorkday,
		ShopID:        utils.Ptr(int64(200)),
		DttmWorkStart: clock(dt, "09:00"),
		DttmWorkEnd:   clock(dt, "18:00"),
		IsApproved:    true,
	})
	storedRow(t, db, model.WorkerDay{
		EmployeeID:    utils.Ptr(int64(1)),
		Dt:            dt,
		Type:          model.DayTypeWorkday,
		ShopID:        utils.Ptr(int64(100)),
		DttmWorkStart: clock(dt, "10:00"),
		DttmWorkEnd:   clock(dt, "19:00"),
	})

	// No employee list: the scope is everyone with rows at shop 100.
	changed, err := st.Approve(context.Background(), actor, ApproveInput{
		ShopID: 100, DtFrom: dtFrom, DtTo: dtTo,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	var survived model.WorkerDay
	require.NoError(t, db.First(&survived, otherID).Error)
	assert.True(t, survived.IsApproved)
}

func TestApproveRelinksFactsToFreshPlan(t *testing.T) {
	st, actor := newApproveStore(t)
	db := st.DB()
	dt := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	dtFrom, dtTo := marchRange()

	oldPlanID := storedRow(t, db, model.WorkerDay{
		EmployeeID:    utils.Ptr(int64(1)),
		Dt:            dt,
		Type:          model.DayTypeWorkday,
		ShopID:        utils.Ptr(int64(100)),
		DttmWorkStart: clock(dt, "09:00"),
		DttmWorkEnd:   clock(dt, "20:00"),
		IsApproved:    true,
	})
	factID := storedRow(t, db, model.WorkerDay{
		EmployeeID:            utils.Ptr(int64(1)),
		Dt:                    dt,
		Type:                  model.DayTypeWorkday,
		ShopID:                utils.Ptr(int64(100)),
		DttmWorkStart:         clock(dt, "10:00"),
		DttmWorkEnd:           clock(dt, "19:00"),
		IsFact:                true,
		IsApproved:            true,
		ClosestPlanApprovedID: utils.Ptr(oldPlanID),
	})
	storedRow(t, db, model.WorkerDay{
		EmployeeID:    utils.Ptr(int64(1)),
		Dt:            dt,
		Type:          model.DayTypeWorkday,
		ShopID:        utils.Ptr(int64(100)),
		DttmWorkStart: clock(dt, "09:00"),
		DttmWorkEnd:   clock(dt, "21:00"),
	})

	changed, err := st.Approve(context.Background(), actor, ApproveInput{
		ShopID: 100, DtFrom: dtFrom, DtTo: dtTo, EmployeeIDs: []int64{1},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	// The plan-cap flag is off for this network, the link is still kept and
	// re-pointed at the replacement plan.
	var fact model.WorkerDay
	require.NoError(t, db.First(&fact, factID).Error)
	require.NotNil(t, fact.ClosestPlanApprovedID)
	assert.NotEqual(t, oldPlanID, *fact.ClosestPlanApprovedID)

	var plan model.WorkerDay
	require.NoError(t, db.First(&plan, *fact.ClosestPlanApprovedID).Error)
	assert.True(t, plan.IsApproved)
	assert.False(t, plan.IsFact)
}

func TestVacancyBindingChecksOverlap(t *testing.T) {
	st, actor := newApproveStore(t)
	db := st.DB()
	dt := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	hired := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, db.Create(&model.Employment{
		ID: 11, EmployeeID: 1, ShopID: 100, PositionID: 1, GroupID: 1,
		DtHired: hired, NormWorkHours: 100, IsVisible: true,
	}).Error)
	require.NoError(t, db.Create(&model.Employment{
		ID: 21, EmployeeID: 2, ShopID: 100, PositionID: 1, GroupID: 1,
		DtHired: hired, NormWorkHours: 100, IsVisible: true,
	}).Error)

	vacID := storedRow(t, db, model.WorkerDay{
		Dt:            dt,
		Type:          model.DayTypeWorkday,
		ShopID:        utils.Ptr(int64(100)),
		DttmWorkStart: clock(dt, "10:00"),
		DttmWorkEnd:   clock(dt, "19:00"),
		IsVacancy:     true,
	})
	// Employee 1 already works an intersecting shift that day.
	storedRow(t, db, model.WorkerDay{
		EmployeeID:    utils.Ptr(int64(1)),
		Dt:            dt,
		Type:          model.DayTypeWorkday,
		ShopID:        utils.Ptr(int64(100)),
		DttmWorkStart: clock(dt, "12:00"),
		DttmWorkEnd:   clock(dt, "20:00"),
	})

	err := st.ApplyToVacancy(context.Background(), actor, vacID, 1)
	assert.ErrorIs(t, err, errs.ErrInvariantViolation)

	// Employee 2 is free and gets bound with a picked employment.
	require.NoError(t, st.ApplyToVacancy(context.Background(), actor, vacID, 2))

	var vac model.WorkerDay
	require.NoError(t, db.First(&vac, vacID).Error)
	require.NotNil(t, vac.EmployeeID)
	assert.Equal(t, int64(2), *vac.EmployeeID)
	require.NotNil(t, vac.EmploymentID)
	assert.Equal(t, int64(21), *vac.EmploymentID)
	assert.Equal(t, 9*time.Hour, vac.WorkHours)
}
