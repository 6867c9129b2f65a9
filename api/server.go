package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/ambufleet/dispatch/core/booking"
	"github.com/ambufleet/dispatch/core/dispatch"
	"github.com/ambufleet/dispatch/core/fleet"
	"github.com/ambufleet/dispatch/core/logger"
	"github.com/ambufleet/dispatch/core/schedule"
)

// Server exposes the scheduler over HTTP. It is a thin layer: every handler
// decodes, validates, delegates to the coordinator or a store, and maps the
// error onto a status code.
type Server struct {
	cfg         Config
	coordinator *dispatch.Coordinator
	tracker     *fleet.Tracker
	detector    *schedule.Detector
	vehicles    fleet.Store
	bookings    booking.Store
	schedules   schedule.Store
	validate    *validator.Validate
	log         logger.Logger
}

// NewServer creates a Server.
func NewServer(cfg Config, coordinator *dispatch.Coordinator, tracker *fleet.Tracker, detector *schedule.Detector, vehicles fleet.Store, bookings booking.Store, schedules schedule.Store, log logger.Logger) (*Server, error) {
	if coordinator == nil || tracker == nil || detector == nil || vehicles == nil || bookings == nil || schedules == nil || log == nil {
		return nil, fmt.Errorf("api: nil parameter provided to NewServer")
	}
	cfg.SetDefaults()
	return &Server{
		cfg:         cfg,
		coordinator: coordinator,
		tracker:     tracker,
		detector:    detector,
		vehicles:    vehicles,
		bookings:    bookings,
		schedules:   schedules,
		validate:    validator.New(),
		log:         log,
	}, nil
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/vehicles", s.listVehicles).Methods(http.MethodGet)
	v1.HandleFunc("/vehicles/{id}/complete-mission", s.completeMission).Methods(http.MethodPost)

	v1.HandleFunc("/bookings", s.listBookings).Methods(http.MethodGet)
	v1.HandleFunc("/bookings/{id}", s.updateBooking).Methods(http.MethodPut)
	v1.HandleFunc("/bookings/{id}/detach-driver", s.detachDriver).Methods(http.MethodPost)
	v1.HandleFunc("/bookings/{id}/accept", s.acceptAssignment).Methods(http.MethodPost)
	v1.HandleFunc("/bookings/{id}/reject", s.rejectAssignment).Methods(http.MethodPost)
	v1.HandleFunc("/bookings/{id}/arrive", s.markArrived).Methods(http.MethodPost)
	v1.HandleFunc("/bookings/{id}/start-transport", s.startTransport).Methods(http.MethodPost)
	v1.HandleFunc("/bookings/{id}/complete", s.completeTransport).Methods(http.MethodPost)

	v1.HandleFunc("/schedules", s.listSchedules).Methods(http.MethodGet)
	v1.HandleFunc("/conflicts", s.findConflicts).Methods(http.MethodGet)

	v1.HandleFunc("/assignments/propose", s.proposeAssignment).Methods(http.MethodPost)
	v1.HandleFunc("/assignments/check", s.checkAssignment).Methods(http.MethodPost)
	v1.HandleFunc("/assignments/commit", s.commitAssignment).Methods(http.MethodPost)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	return r
}

// Start runs the HTTP server until ctx is cancelled, then drains it.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      http.TimeoutHandler(s.Router(), time.Duration(s.cfg.RequestTimeoutSeconds)*time.Second, "request timed out"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Duration(s.cfg.RequestTimeoutSeconds+5) * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("http api listening on %s", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("api: serve: %w", err)
	}
}
