package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ambufleet/dispatch/api"
	"github.com/ambufleet/dispatch/config"
	"github.com/ambufleet/dispatch/core/booking"
	"github.com/ambufleet/dispatch/core/dispatch"
	"github.com/ambufleet/dispatch/core/fleet"
	coremetrics "github.com/ambufleet/dispatch/core/metrics"
	"github.com/ambufleet/dispatch/core/reconcile"
	"github.com/ambufleet/dispatch/core/schedule"
	"github.com/ambufleet/dispatch/infra/logger"
	"github.com/ambufleet/dispatch/infra/metrics"
	"github.com/ambufleet/dispatch/infra/notify"
	"github.com/ambufleet/dispatch/infra/postgres"
	"github.com/ambufleet/dispatch/internal/eventbus"
)

// Service wires the scheduler: stores, conflict detector, coordinator,
// availability tracker and the HTTP API.
type Service struct {
	Coordinator *dispatch.Coordinator
	Tracker     *fleet.Tracker
	Detector    *schedule.Detector
	Vehicles    fleet.Store
	Bookings    booking.Store
	Schedules   schedule.Store
	Unavail     *schedule.MemoryUnavailability

	server      *api.Server
	loop        *reconcile.Loop
	notifier    *notify.PahoNotifier
	bus         eventbus.EventBus
	pool        *pgxpool.Pool
	log         logger.Logger
	promEnabled bool
	promAddr    string
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var (
		vehicles  fleet.Store
		bookings  booking.Store
		schedules schedule.Store
		pool      *pgxpool.Pool
	)
	switch cfg.Storage {
	case config.StoragePostgres:
		p, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres pool: %w", err)
		}
		if err := postgres.Migrate(ctx, p); err != nil {
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		pool = p
		vehicles = postgres.NewFleetStore(p)
		bookings = postgres.NewBookingStore(p)
		schedules = postgres.NewScheduleStore(p)
	default:
		vehicles = fleet.NewMemoryStore()
		bookings = booking.NewMemoryStore()
		schedules = schedule.NewMemoryStore()
	}

	unavail := schedule.NewMemoryUnavailability()
	detector, err := schedule.NewDetector(schedules, unavail)
	if err != nil {
		return nil, fmt.Errorf("conflict detector: %w", err)
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.Sink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = coremetrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New()
	coordinator, err := dispatch.NewCoordinator(cfg.Dispatch, vehicles, bookings, schedules, detector, bus, sink, logger.New("dispatch"))
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}
	tracker, err := fleet.NewTracker(vehicles, bus, logger.New("fleet"))
	if err != nil {
		return nil, fmt.Errorf("tracker: %w", err)
	}
	server, err := api.NewServer(cfg.API, coordinator, tracker, detector, vehicles, bookings, schedules, logger.New("api"))
	if err != nil {
		return nil, fmt.Errorf("api server: %w", err)
	}

	var notifier *notify.PahoNotifier
	var loopNotifier reconcile.Notifier
	if cfg.Notify.Enabled {
		notifier, err = notify.NewPahoNotifier(cfg.Notify)
		if err != nil {
			return nil, fmt.Errorf("mqtt notifier: %w", err)
		}
		loopNotifier = notifier
	}
	src, err := reconcile.NewStoreSource(vehicles, bookings, schedules)
	if err != nil {
		return nil, fmt.Errorf("reconcile source: %w", err)
	}
	loop, err := reconcile.NewLoop(cfg.Reconcile, src, loopNotifier, sink, logger.New("reconcile"))
	if err != nil {
		return nil, fmt.Errorf("reconcile loop: %w", err)
	}

	return &Service{
		Coordinator: coordinator,
		Tracker:     tracker,
		Detector:    detector,
		Vehicles:    vehicles,
		Bookings:    bookings,
		Schedules:   schedules,
		Unavail:     unavail,
		server:      server,
		loop:        loop,
		notifier:    notifier,
		bus:         bus,
		pool:        pool,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promAddr:    cfg.Metrics.PrometheusAddr,
	}, nil
}

// Run serves the API, the metrics endpoint and the reconciliation loop until
// the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr, s.log); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	go s.loop.Run(ctx)
	return s.server.Start(ctx)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.notifier != nil {
		s.notifier.Close()
	}
	if s.bus != nil {
		s.bus.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
