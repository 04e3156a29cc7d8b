// Package dashboard is the owner's read-only HTTP view of the bot: login,
// task history, the player roster and the sudo list.
package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shinobicompass/bot/internal/auth"
	"github.com/shinobicompass/bot/internal/repository"
)

type Handler struct {
	authSvc auth.Service
	taskR   *repository.TaskRepo
	userR   *repository.UserRepo
	sudoR   *repository.SudoRepo
	log     *slog.Logger
}

func NewHandler(authSvc auth.Service, taskR *repository.TaskRepo, userR *repository.UserRepo,
	sudoR *repository.SudoRepo, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{authSvc: authSvc, taskR: taskR, userR: userR, sudoR: sudoR, log: log}
}

func (h *Handler) authorize(r *http.Request) bool {
	authz := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return false
	}
	token := strings.TrimSpace(authz[len(prefix):])
	if token == "" {
		return false
	}
	return h.authSvc.ValidateToken(r.Context(), token) == nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// POST /api/v1/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	token, err := h.authSvc.Login(r.Context(), req.Password)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// GET /api/v1/tasks
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	list, err := h.taskR.List(r.Context())
	if err != nil {
		h.log.Error("list tasks failed", "error", err)
		http.Error(w, "list tasks failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /api/v1/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	list, err := h.userR.List(r.Context())
	if err != nil {
		h.log.Error("list users failed", "error", err)
		http.Error(w, "list users failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /api/v1/sudo
func (h *Handler) ListSudo(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	list, err := h.sudoR.List(r.Context())
	if err != nil {
		h.log.Error("list sudo users failed", "error", err)
		http.Error(w, "list sudo users failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
