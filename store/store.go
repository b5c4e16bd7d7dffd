// Package store holds the worker-day rows and runs every batch mutation
// over them: upsert, approve, exchange, copy, vacancies, attendance
// reconstruction and housekeeping. Each operation runs inside a single
// transaction; nothing partial is ever persisted.
package store

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"wfm-core/config"
	"wfm-core/core"
	"wfm-core/events"
	"wfm-core/perm"
)

// Locker takes advisory locks that serialize operations over the same
// scope across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Enqueuer hands side-effect jobs to the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload interface{}) error
}

type Store struct {
	db       *gorm.DB
	log      *logrus.Logger
	registry *core.DayTypeRegistry
	matrix   *perm.Matrix
	bus      events.Publisher
	queue    Enqueuer
	locker   Locker

	now func() time.Time
}

func New(db *gorm.DB, registry *core.DayTypeRegistry, matrix *perm.Matrix, bus events.Publisher, queue Enqueuer, locker Locker, log *logrus.Logger) *Store {
	return &Store{
		db:       db,
		log:      log,
		registry: registry,
		matrix:   matrix,
		bus:      bus,
		queue:    queue,
		locker:   locker,
		now:      time.Now,
	}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Registry() *core.DayTypeRegistry {
	return s.registry
}

// ShopNetworkConfig resolves the per-network flags applicable to a shop.
func (s *Store) ShopNetworkConfig(ctx context.Context, shopID int64) (config.NetworkConfig, error) {
	return s.networkConfigFor(s.db.WithContext(ctx), shopID)
}

// EmployeeNetworkConfig resolves the flags of an employee's own network.
func (s *Store) EmployeeNetworkConfig(ctx context.Context, employeeID int64) (config.NetworkConfig, error) {
	employee, err := s.employeeByID(s.db.WithContext(ctx), employeeID)
	if err != nil {
		return config.DefaultNetworkConfig(), err
	}
	return s.networkConfigForNetwork(s.db.WithContext(ctx), employee.NetworkID)
}

// inTx runs fn inside one transaction with a post-commit hook registry.
// Hooks registered by fn run only after the commit; a rollback discards
// them.
func (s *Store) inTx(ctx context.Context, fn func(tx *gorm.DB, hooks *events.Hooks) error) error {
	hooks := events.NewHooks(s.log)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, hooks)
	})
	if err != nil {
		hooks.Discard()
		return err
	}
	hooks.RunAfterCommit()
	return nil
}

// networkConfigFor resolves the per-network flags applicable to a shop.
func (s *Store) networkConfigFor(tx *gorm.DB, shopID int64) (config.NetworkConfig, error) {
	shop, err := s.shopByID(tx, shopID)
	if err != nil {
		return config.DefaultNetworkConfig(), err
	}
	return s.networkConfigForNetwork(tx, shop.NetworkID)
}

func (s *Store) networkConfigForNetwork(tx *gorm.DB, networkID int64) (config.NetworkConfig, error) {
	network, err := s.networkByID(tx, networkID)
	if err != nil {
		return config.DefaultNetworkConfig(), err
	}
	return config.ParseNetworkConfig(network.Settings)
}
