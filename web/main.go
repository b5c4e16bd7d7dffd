package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"wfm-core/config"
	"wfm-core/core"
	"wfm-core/events"
	"wfm-core/jobs"
	"wfm-core/model"
	"wfm-core/perm"
	"wfm-core/store"
	"wfm-core/timesheet"
	"wfm-core/web/handlers"
	"wfm-core/web/middlewares"
)

func main() {
	cfg := config.MustConfig()

	log := logrus.New()
	if cfg.Env == "prod" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		log.WithError(err).Fatal("cannot open database")
	}

	registry, err := loadRegistry(db, cfg)
	if err != nil {
		log.WithError(err).Fatal("cannot build day-type registry")
	}

	matrix, err := loadMatrix(db)
	if err != nil {
		log.WithError(err).Fatal("cannot build permission matrix")
	}

	var bus events.Publisher
	bus, err = events.NewBus(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ClientID, log)
	if err != nil {
		log.WithError(err).Warn("event bus unavailable, events disabled")
		bus = events.NopPublisher{}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	queue := jobs.NewQueue(rdb, "wfm:jobs", log)
	locker := jobs.NewRedisLocker(rdb)

	st := store.New(db, registry, matrix, bus, queue, locker, log)
	divider := timesheet.NewDivider(db, log, registry)

	notifier := events.NewNotifier(cfg.SlackWebhookURL, log)

	registerJobHandlers(queue, st, divider, cfg, log)
	go func() {
		if err := queue.Run(context.Background()); err != nil {
			log.WithError(err).Error("job queue stopped")
			notifier.Notify("wfm-core: job queue stopped: %v", err)
		}
	}()

	r := gin.Default()
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	wd := &handlers.WorkerDayHandler{Store: st}
	ts := &handlers.TimesheetHandler{Store: st, Divider: divider}
	att := &handlers.AttendanceHandler{Store: st}
	exp := &handlers.ExportHandler{Store: st}

	protected := r.Group("/api")
	protected.Use(middlewares.Authentication(db, []byte(cfg.JWTSecret)))
	{
		protected.GET("/worker_day", wd.List)
		protected.GET("/worker_day/:id", wd.Get)
		protected.DELETE("/worker_day/:id", wd.Delete)
		protected.POST("/worker_day/batch_update_or_create", wd.BatchUpdateOrCreate)
		protected.POST("/worker_day/approve", wd.Approve)
		protected.POST("/worker_day/exchange", wd.Exchange)
		protected.POST("/worker_day/copy_range", wd.CopyRange)
		protected.POST("/worker_day/duplicate", wd.Duplicate)
		protected.GET("/worker_day/vacancy", wd.ListVacancies)
		protected.POST("/worker_day/vacancy", wd.ApplyVacancy)
		protected.POST("/worker_day/confirm_vacancy", wd.ConfirmVacancy)
		protected.POST("/worker_day/reconfirm_vacancy_to_worker", wd.ReconfirmVacancy)
		protected.POST("/worker_day/refuse_vacancy", wd.RefuseVacancy)
		protected.POST("/worker_day/approve_vacancy", wd.ApproveVacancy)
		protected.POST("/worker_day/fix_wdays", att.FixWDays)
		protected.GET("/worker_day/export", exp.Export)
		protected.POST("/worker_day/import", exp.Import)

		protected.POST("/attendance_records", att.Record)
		protected.POST("/attendance_records/reconstruct", att.Reconstruct)

		protected.GET("/timesheet", ts.Get)
		protected.POST("/timesheet/recalc", ts.Recalc)
		protected.GET("/timesheet/stats", ts.Stats)
		protected.GET("/timesheet/lines", ts.Lines)
	}

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      r,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}
	log.WithField("address", cfg.HTTPServer.Address).Info("starting server")
	if err := srv.ListenAndServe(); err != nil {
		notifier.Notify("wfm-core: server stopped: %v", err)
		log.WithError(err).Fatal("server stopped")
	}
}

// loadRegistry prefers the day types stored in the database and falls back
// to the YAML seed on an empty installation.
func loadRegistry(db *gorm.DB, cfg *config.Config) (*core.DayTypeRegistry, error) {
	registry, err := core.LoadDayTypeRegistry(db)
	if err == nil && registry.Len() > 0 {
		return registry, nil
	}

	seed, seedErr := core.LoadDayTypeSeed(cfg.DayTypesPath)
	if seedErr != nil {
		if err != nil {
			return nil, err
		}
		return nil, seedErr
	}
	return core.NewDayTypeRegistry(seed), nil
}

func loadMatrix(db *gorm.DB) (*perm.Matrix, error) {
	var groups []model.Group
	if err := db.Preload("Permissions").Find(&groups).Error; err != nil {
		return nil, err
	}
	var shops []model.Shop
	if err := db.Find(&shops).Error; err != nil {
		return nil, err
	}
	return perm.NewMatrix(groups, shops), nil
}

func registerJobHandlers(queue *jobs.Queue, st *store.Store, divider *timesheet.Divider, cfg *config.Config, log *logrus.Logger) {
	sender := jobs.NewWebhookSender(cfg.WebhookTimeout, log)
	queue.Handle(jobs.JobDoctorWebhook, sender.DoctorWebhookHandler(), jobs.RetrySchedule{
		1: 30 * time.Second,
		2: 5 * time.Minute,
		3: 30 * time.Minute,
	})

	queue.Handle(jobs.JobTimesheetRecalc, func(ctx context.Context, payload json.RawMessage) error {
		var p struct {
			EmployeeID int64  `json:"employee_id"`
			Month      string `json:"month"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		month, err := time.Parse("2006-01", p.Month)
		if err != nil {
			return fmt.Errorf("bad month %q: %w", p.Month, err)
		}
		netCfg, err := st.EmployeeNetworkConfig(ctx, p.EmployeeID)
		if err != nil {
			return err
		}
		return divider.Recalc(ctx, p.EmployeeID, month, netCfg)
	}, nil)

	queue.Handle(jobs.JobAttendanceSync, func(ctx context.Context, payload json.RawMessage) error {
		var p struct {
			EmployeeID int64  `json:"employee_id"`
			DtFrom     string `json:"dt_from"`
			DtTo       string `json:"dt_to"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		dtFrom, err := time.Parse("2006-01-02", p.DtFrom)
		if err != nil {
			return err
		}
		dtTo, err := time.Parse("2006-01-02", p.DtTo)
		if err != nil {
			return err
		}
		return st.ReconstructFacts(ctx, p.EmployeeID, dtFrom, dtTo)
	}, nil)
}
