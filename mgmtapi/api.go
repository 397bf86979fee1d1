// SPDX-License-Identifier: GPL-3.0-or-later

package mgmtapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/config"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/device"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/objtable"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/orchestrator"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simulation"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/statestore"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Backend is the simulator state served by the API.
//
// [*orchestrator.Orchestrator] implements this interface.
type Backend interface {
	Health() orchestrator.Health
	Devices() []device.Info
	Device(id uint32) (*device.Device, error)
	Objects(id uint32) ([]objtable.View, error)
	ReadObject(id uint32, key objtable.Key) (objtable.View, error)
	WriteObject(ctx context.Context, id uint32, key objtable.Key, value any, force bool) (objtable.View, error)
	Profile(id uint32) (orchestrator.ProfileInfo, error)
	SetProfile(id uint32, name config.ProfileName, custom *config.NetworkCustom) error
	StartSimulation(id uint32, key objtable.Key, params simulation.Params) (orchestrator.SimulationInfo, error)
	Simulation(id uint32, key objtable.Key) (orchestrator.SimulationInfo, error)
	StopSimulation(id uint32, key objtable.Key) error
	ResumeSimulation(id uint32, key objtable.Key) (orchestrator.SimulationInfo, error)
	Simulations() []orchestrator.SimulationInfo
	Snapshot() (statestore.Info, error)
	Snapshots() ([]statestore.Info, error)
	RestoreSnapshot(id string) (statestore.Result, error)
	DeleteSnapshot(id string) error
	Reset() (statestore.Result, error)
}

var _ Backend = &orchestrator.Orchestrator{}

// Default server timeouts.
const (
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// API is the management API.
//
// Construct using [New].
type API struct {
	// Logger is the optional structured logger for emitting
	// structured diagnostic events. If this field is nil, we
	// will not be emitting structured logs.
	Logger *slog.Logger

	// ShutdownTimeout is the maximum time [*API.Serve] waits for
	// in-flight requests after the context is done. If zero, we
	// use [DefaultShutdownTimeout].
	ShutdownTimeout time.Duration

	// TimeNow is the optional function to get the current time.
	// If this field is nil, we use [time.Now].
	TimeNow func() time.Time

	backend Backend
}

// New creates a new [*API] serving the given backend.
func New(backend Backend) *API {
	return &API{backend: backend}
}

// Handler returns the HTTP handler routing the API requests.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", a.live)
	r.Get("/health/ready", a.ready)

	r.Route("/api", func(r chi.Router) {
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", a.listDevices)
			r.Route("/{deviceId}", func(r chi.Router) {
				r.Get("/", a.getDevice)
				r.Get("/network-profile", a.getProfile)
				r.Put("/network-profile", a.putProfile)
				r.Get("/objects", a.listObjects)
				r.Route("/objects/{type}/{instance}", func(r chi.Router) {
					r.Get("/", a.readObject)
					r.Put("/", a.writeObject)
					r.Post("/simulation", a.startSimulation)
					r.Get("/simulation", a.getSimulation)
					r.Delete("/simulation", a.stopSimulation)
					r.Post("/simulation/resume", a.resumeSimulation)
				})
			})
		})
		r.Get("/simulations", a.listSimulations)
		r.Route("/snapshots", func(r chi.Router) {
			r.Post("/", a.createSnapshot)
			r.Get("/", a.listSnapshots)
			r.Post("/{snapshotId}/restore", a.restoreSnapshot)
			r.Delete("/{snapshotId}", a.deleteSnapshot)
		})
		r.Post("/reset", a.reset)
	})
	return r
}

// Serve serves the API on the given listener until the context is
// done, then gracefully shuts down the server.
func (a *API) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:      a.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errch := make(chan error, 1)
	go func() {
		errch <- srv.Serve(listener)
	}()
	a.logger().InfoContext(ctx, "apiServeStart", slog.String("localAddr", listener.Addr().String()))

	select {
	case err := <-errch:
		return err
	case <-ctx.Done():
	}

	timeout := a.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if serr := <-errch; !errors.Is(serr, http.ErrServerClosed) {
		err = errors.Join(err, serr)
	}
	a.logger().InfoContext(ctx, "apiServeDone", slog.Any("err", err))
	return err
}

// logRequests is the middleware logging each request.
func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t0 := a.timeNow()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger().InfoContext(
			r.Context(),
			"httpRequestDone",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remoteAddr", r.RemoteAddr),
			slog.String("requestId", middleware.GetReqID(r.Context())),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Time("t0", t0),
			slog.Time("t", a.timeNow()),
		)
	})
}

func (a *API) timeNow() time.Time {
	if a.TimeNow != nil {
		return a.TimeNow()
	}
	return time.Now()
}

func (a *API) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return discard
}

// discard is the logger used when Logger is nil.
var discard = slog.New(slog.NewTextHandler(io.Discard, nil))
