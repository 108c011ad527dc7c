package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/browningluke/FruitTycoon/internal/config"
	"github.com/browningluke/FruitTycoon/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server exposes the economy engine over HTTP. Identity is the opaque player
// id in the path; authentication is out of scope by design.
type Server struct {
	cfg  config.APIConfig
	log  *slog.Logger
	game *game.Service
	mux  *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, gameSvc *game.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:  cfg,
		log:  logger,
		game: gameSvc,
		mux:  chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/players", s.handleJoin)
		r.Get("/players/{id}", s.handleProfile)
		r.Delete("/players/{id}", s.handleRemove)
		r.Post("/players/{id}/harvest", s.handleHarvest)
		r.Post("/players/{id}/sell", s.handleSell)
		r.Post("/players/{id}/produce", s.handleProduce)
		r.Post("/players/{id}/upgrade", s.handleUpgrade)
		r.Post("/players/{id}/trades", s.handleProposeTrade)
		r.Post("/players/{id}/trades/{slot}/accept", s.handleAcceptTrade)
		r.Post("/players/{id}/trades/{slot}/decline", s.handleDeclineTrade)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/recipes", s.handleRecipes)
	})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ID    string `json:"id"`
		Fruit string `json:"fruit"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	player, err := s.game.Join(r.Context(), in.ID, game.Kind(in.Fruit))
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, player)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	removed, err := s.game.RemovePlayer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.Harvest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Kind     string `json:"kind"`
		Quantity int64  `json:"quantity"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.Sell(r.Context(), chi.URLParam(r, "id"), game.Kind(in.Kind), in.Quantity)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProduce(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Recipe   string   `json:"recipe"`
		Fruits   []string `json:"fruits"`
		Quantity int64    `json:"quantity"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	selections := make([]game.Kind, len(in.Fruits))
	for i, f := range in.Fruits {
		selections[i] = game.Kind(f)
	}
	out, err := s.game.Produce(r.Context(), chi.URLParam(r, "id"), in.Recipe, selections, in.Quantity)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, out)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Stat string `json:"stat"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch game.UpgradeKind(in.Stat) {
	case game.UpgradeSize, game.UpgradeMultiplier, game.UpgradeFarm:
	default:
		writeError(w, http.StatusBadRequest, "stat must be size, multiplier or farm")
		return
	}
	out, err := s.game.Upgrade(r.Context(), chi.URLParam(r, "id"), game.UpgradeKind(in.Stat))
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProposeTrade(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Recipient string     `json:"recipient"`
		Request   game.Stake `json:"request"`
		Offer     game.Stake `json:"offer"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.ProposeTrade(r.Context(), chi.URLParam(r, "id"), in.Recipient, in.Request, in.Offer)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleAcceptTrade(w http.ResponseWriter, r *http.Request) {
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "slot must be an integer")
		return
	}
	out, err := s.game.AcceptTrade(r.Context(), chi.URLParam(r, "id"), slot)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeclineTrade(w http.ResponseWriter, r *http.Request) {
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "slot must be an integer")
		return
	}
	out, err := s.game.DeclineTrade(r.Context(), chi.URLParam(r, "id"), slot)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	topN := s.cfg.LeaderboardSize
	if v := r.URL.Query().Get("top"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			topN = n
		}
	}
	rows, err := s.game.Leaderboard(r.Context(), topN)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Server) handleRecipes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"recipes": game.Recipes()})
}

// writeGameError maps an engine error kind onto a status code and the stable
// player-facing message; internal detail stays in the log.
func (s *Server) writeGameError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, game.ErrNotAPlayer), errors.Is(err, game.ErrEmptySlot):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrInvalidFruit), errors.Is(err, game.ErrInvalidSlot),
		errors.Is(err, game.ErrSelfTrade):
		status = http.StatusBadRequest
	case errors.Is(err, game.ErrAlreadyJoined), errors.Is(err, game.ErrInsufficientFunds),
		errors.Is(err, game.ErrInsufficientInventory), errors.Is(err, game.ErrInsufficientRequest),
		errors.Is(err, game.ErrInsufficientOffer), errors.Is(err, game.ErrNoFreeOutboundSlot),
		errors.Is(err, game.ErrNoFreeInboundSlot), errors.Is(err, game.ErrMaxLevelReached):
		status = http.StatusConflict
	case errors.Is(err, game.ErrAccessDenied):
		status = http.StatusForbidden
	case errors.Is(err, game.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("engine error", "err", err)
	}
	writeError(w, status, game.Message(err))
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
