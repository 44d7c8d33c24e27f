package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/NordCoder/Upwatch/internal/domain/monitor"
	"github.com/NordCoder/Upwatch/internal/obs"
	"github.com/NordCoder/Upwatch/internal/repository/postgres"
)

const maxBody = 1 << 20

var errBadRequest = errors.New("bad request")

type handlerFunc func(w http.ResponseWriter, r *http.Request, p map[string]string) error

// Server exposes monitor management and the read surface as JSON routes on
// a grpc-gateway mux. Errors are rendered the way the gateway renders gRPC
// statuses.
type Server struct {
	log  *zap.Logger
	uc   *Usecase
	life Lifecycle
	mux  *runtime.ServeMux
}

func NewServer(log *zap.Logger, uc *Usecase, life Lifecycle) *Server {
	return &Server{log: log, uc: uc, life: life}
}

func (s *Server) Register(mux *runtime.ServeMux) error {
	s.mux = mux
	routes := []struct {
		method, path string
		h            handlerFunc
	}{
		{http.MethodPost, "/v1/monitors", s.createMonitor},
		{http.MethodGet, "/v1/monitors/{id}", s.getMonitor},
		{http.MethodPut, "/v1/monitors/{id}", s.updateMonitor},
		{http.MethodDelete, "/v1/monitors/{id}", s.deleteMonitor},
		{http.MethodPost, "/v1/monitors/{id}/pause", s.pauseMonitor},
		{http.MethodPost, "/v1/monitors/{id}/resume", s.resumeMonitor},
		{http.MethodGet, "/v1/monitors/{id}/checks/latest", s.latestCheck},
		{http.MethodGet, "/v1/monitors/{id}/checks", s.recentChecks},
		{http.MethodGet, "/v1/monitors/{id}/incidents", s.incidents},
		{http.MethodGet, "/v1/monitors/{id}/uptime", s.uptime},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.path, s.wrap(rt.h)); err != nil {
			return fmt.Errorf("route %s %s: %w", rt.method, rt.path, err)
		}
	}
	return nil
}

func (s *Server) wrap(h handlerFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, p map[string]string) {
		if err := h(w, r, p); err != nil {
			st := s.mapErr(r.Context(), r, err)
			_, outbound := runtime.MarshalerForRequest(s.mux, r)
			runtime.HTTPError(r.Context(), s.mux, outbound, w, r, st.Err())
		}
	}
}

func (s *Server) mapErr(ctx context.Context, r *http.Request, err error) *status.Status {
	switch {
	case errors.Is(err, postgres.ErrNotFound):
		return status.New(codes.NotFound, "monitor not found")
	case errors.Is(err, errBadRequest), errors.Is(err, ErrBadRange), isValidation(err):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.New(codes.Canceled, "request canceled")
	default:
		obs.WithTrace(ctx, s.log).Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		return status.New(codes.Internal, "internal error")
	}
}

func isValidation(err error) bool {
	for _, target := range []error{
		monitor.ErrInvalidURL,
		monitor.ErrInvalidMethod,
		monitor.ErrInvalidInterval,
		monitor.ErrInvalidTimeout,
		monitor.ErrInvalidStatus,
		monitor.ErrInvalidThreshold,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Server) createMonitor(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	var in MonitorInput
	if err := decode(w, r, &in); err != nil {
		return err
	}
	if in.OwnerID <= 0 {
		return fmt.Errorf("owner_id is required: %w", errBadRequest)
	}
	s.log.Info("CreateMonitor request", zap.Int64("owner_id", in.OwnerID), zap.String("url", in.URL))

	m := in.toDomain()
	created, err := s.life.Create(r.Context(), &m)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, toView(created))
}

func (s *Server) getMonitor(w http.ResponseWriter, r *http.Request, p map[string]string) error {
	id, err := pathID(p)
	if err != nil {
		return err
	}
	m, err := s.uc.Monitor(r.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, toView(m))
}

func (s *Server) updateMonitor(w http.ResponseWriter, r *http.Request, p map[string]string) error {
	id, err := pathID(p)
	if err != nil {
		return err
	}
	var in MonitorInput
	if err := decode(w, r, &in); err != nil {
		return err
	}
	s.log.Info("UpdateMonitor request", zap.Int64("id", id), zap.String("url", in.URL))

	next := in.toDomain()
	next.ID = id
	updated, err := s.life.Update(r.Context(), next)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, toView(updated))
}

func (s *Server) deleteMonitor(w http.ResponseWriter, r *http.Request, p map[string]string) error {
	id, err := pathID(p)
	if err != nil {
		return err
	}
	s.log.Info("DeleteMonitor request", zap.Int64("id", id))
	if err := s.life.Delete(r.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) pauseMonitor(w http.ResponseWriter, r *http.Request, p map[string]string) error {
	id, err := pathID(p)
	if err != nil {
		return err
	}
	m, err := s.life.Pause(r.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, toView(m))
}

func (s *Server) resumeMonitor(w http.ResponseWriter, r *http.Request, p map[string]string) error {
	id, err := pathID(p)
	if err != nil {
		return err
	}
	m, err := s.life.Resume(r.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, toView(m))
}

func (s *Server) latestCheck(w http.ResponseWriter, r *http.Request, p map[string]string) error {
	id, err := pathID(p)
	if err != nil {
		return err
	}
	c, err := s.uc.LatestCheck(r.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, c)
}

func (s *Server) recentChecks(w http.ResponseWriter, r *http.Request, p map[string]string) error {
	id, err := pathID(p)
	if err != nil {
		return err
	}
	limit, err := queryInt(r, "limit", MaxChecks)
	if err != nil {
		return err
	}
	list, err := s.uc.RecentChecks(r.Context(), id, limit)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"checks": list})
}

func (s *Server) incidents(w http.ResponseWriter, r *http.Request, p map[string]string) error {
	id, err := pathID(p)
	if err != nil {
		return err
	}
	limit, err := queryInt(r, "limit", defaultIncident)
	if err != nil {
		return err
	}
	list, err := s.uc.IncidentHistory(r.Context(), id, limit)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"incidents": list})
}

func (s *Server) uptime(w http.ResponseWriter, r *http.Request, p map[string]string) error {
	id, err := pathID(p)
	if err != nil {
		return err
	}
	days, err := queryInt(r, "days", DefaultDays)
	if err != nil {
		return err
	}
	rep, err := s.uc.Uptime(r.Context(), id, days)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, rep)
}

func pathID(p map[string]string) (int64, error) {
	id, err := strconv.ParseInt(p["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid monitor id %q: %w", p["id"], errBadRequest)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, errBadRequest)
	}
	return v, nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %v: %w", err, errBadRequest)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}
