package server

import (
	"encoding/json"
	"errors"
	"expvar"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wfunc/memoryserver/models"
	"github.com/wfunc/memoryserver/services"
	"github.com/wfunc/memoryserver/settings"
)

func (s *GameServer) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/ws", s.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))

		r.Get("/health", s.handleHealth)
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
		r.Handle("/debug/vars", expvar.Handler())

		r.Get("/areas", s.handleListAreas)
		r.Get("/areas/{areaID}", s.handleGetArea)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/settings/memory-game", s.handleGetMemoryGameSettings)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", s.handleAdminLogin)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Put("/settings/memory-game", s.handlePutMemoryGameSettings)
				r.Put("/leaderboard/settings", s.handlePutLeaderboardSettings)
				r.Post("/leaderboard/reset", s.handleResetLeaderboard)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found: "+r.URL.Path))
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"sessions": s.sessionManager.Count(),
		"areas":    len(s.roomManager.Areas()),
	})
}

func (s *GameServer) handleListAreas(w http.ResponseWriter, r *http.Request) {
	areas := s.roomManager.Areas()
	out := make([]models.AreaModel, 0, len(areas))
	for _, a := range areas {
		out = append(out, a.Model())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *GameServer) handleGetArea(w http.ResponseWriter, r *http.Request) {
	area, ok := s.roomManager.GetArea(chi.URLParam(r, "areaID"))
	if !ok {
		writeError(w, http.StatusNotFound, ErrAreaNotFound)
		return
	}
	writeJSON(w, http.StatusOK, area.Model())
}

func (s *GameServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	model, err := s.leaderboard.Model(LeaderboardAreaID, s.onlinePlayers(), r.URL.Query().Get("username"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, model)
}

func (s *GameServer) handleGetMemoryGameSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.defaults.Snapshot())
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *GameServer) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	token, exp, err := s.auth.Login(req.Username, req.Password)
	switch {
	case errors.Is(err, ErrAdminDisabled):
		writeError(w, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"token": token, "expiresAt": exp})
}

func (s *GameServer) handlePutMemoryGameSettings(w http.ResponseWriter, r *http.Request) {
	var update models.Settings
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.updateDefaults(currentAdmin(r), update); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, settings.ErrInvalidSettings) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, s.defaults.Snapshot())
}

func (s *GameServer) handlePutLeaderboardSettings(w http.ResponseWriter, r *http.Request) {
	var update models.LeaderboardSettings
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.leaderboard.ApplySettings(currentAdmin(r), update); err != nil {
		writeError(w, leaderboardStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s.leaderboard.Settings())
}

func (s *GameServer) handleResetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if err := s.leaderboard.Reset(currentAdmin(r)); err != nil {
		writeError(w, leaderboardStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func leaderboardStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrNotAdministrator):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNegativeDisplayCount), errors.Is(err, services.ErrUnknownField):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
