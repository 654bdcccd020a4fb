package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/alex199571/Student-Bot/internal/limits"
	"github.com/alex199571/Student-Bot/internal/models"
	"github.com/alex199571/Student-Bot/internal/repository"
	"github.com/alex199571/Student-Bot/internal/service"
	"github.com/alex199571/Student-Bot/internal/storage"
)

type Server struct {
	addr     string
	username string
	password string
	log      *slog.Logger
	users    *service.UserService
	logs     *repository.QueryLogRepository
	engine   *limits.Engine
	exporter *storage.Exporter
	bot      *tgbotapi.BotAPI
	router   *chi.Mux
}

func NewServer(addr, username, password string, log *slog.Logger, users *service.UserService, logs *repository.QueryLogRepository, engine *limits.Engine, exporter *storage.Exporter, bot *tgbotapi.BotAPI) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		addr:     addr,
		username: username,
		password: password,
		log:      log,
		users:    users,
		logs:     logs,
		engine:   engine,
		exporter: exporter,
		bot:      bot,
		router:   r,
	}
	r.Group(func(protected chi.Router) {
		protected.Use(s.basicAuthMiddleware())
		protected.Get("/users", s.handleListUsers)
		protected.Get("/users/{telegram_id}", s.handleGetUser)
		protected.Post("/users/{telegram_id}/ban", s.handleSetBanned(true))
		protected.Post("/users/{telegram_id}/unban", s.handleSetBanned(false))
		protected.Post("/users/{telegram_id}/plan/{plan}", s.handleChangePlan)
		protected.Post("/users/{telegram_id}/reset-limits", s.handleResetLimits)
		protected.Post("/users/{telegram_id}/grant-image-credits", s.handleGrantImageCredits)
		protected.Get("/query-logs", s.handleListQueryLogs)
		protected.Get("/stats", s.handleStats)
		protected.Post("/broadcast", s.handleBroadcast)
		protected.Post("/export", s.handleExport)
	})
	return s
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("admin shutdown error", "err", err)
		}
	}()

	s.log.Info("admin panel listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin listen: %w", err)
	}
	return nil
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.ListFilter{
		Search:    strings.TrimSpace(q.Get("search")),
		Plan:      strings.TrimSpace(q.Get("plan")),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
		Limit:     parseIntDefault(q.Get("limit"), 50),
		Offset:    parseIntDefault(q.Get("offset"), 0),
	}
	if v := q.Get("banned"); v != "" {
		banned, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "invalid banned filter", http.StatusBadRequest)
			return
		}
		filter.IsBanned = &banned
	}

	users, total, err := s.users.List(r.Context(), filter)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"total": total,
	})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := s.loadUser(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleSetBanned(banned bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.loadUser(w, r)
		if !ok {
			return
		}
		if err := s.users.SetBanned(r.Context(), user, banned); err != nil {
			s.internalError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, user)
	}
}

func (s *Server) handleChangePlan(w http.ResponseWriter, r *http.Request) {
	user, ok := s.loadUser(w, r)
	if !ok {
		return
	}
	if err := s.users.ChangePlan(r.Context(), user, chi.URLParam(r, "plan")); err != nil {
		s.badRequest(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

// handleResetLimits zeroes usage counters. The scope query parameter selects
// daily, monthly or all; the daily reset also clears external counters.
func (s *Server) handleResetLimits(w http.ResponseWriter, r *http.Request) {
	user, ok := s.loadUser(w, r)
	if !ok {
		return
	}
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = "all"
	}

	switch scope {
	case "daily":
		if err := s.engine.ResetDaily(r.Context(), user); err != nil {
			s.internalError(w, err)
			return
		}
	case "monthly":
		limits.ResetMonthly(user)
	case "all":
		limits.ResetMonthly(user)
		if err := s.engine.ResetDaily(r.Context(), user); err != nil {
			s.internalError(w, err)
			return
		}
	default:
		http.Error(w, "scope must be daily, monthly or all", http.StatusBadRequest)
		return
	}

	if err := s.users.Save(r.Context(), user); err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleGrantImageCredits(w http.ResponseWriter, r *http.Request) {
	user, ok := s.loadUser(w, r)
	if !ok {
		return
	}
	amount, err := strconv.Atoi(r.URL.Query().Get("amount"))
	if err != nil {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}
	if err := s.users.GrantImageCredits(r.Context(), user, amount); err != nil {
		s.badRequest(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleListQueryLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parseIntDefault(q.Get("limit"), 50)
	offset := parseIntDefault(q.Get("offset"), 0)
	var telegramID int64
	if v := q.Get("telegram_id"); v != "" {
		id, err := parseID(v)
		if err != nil {
			http.Error(w, "invalid telegram_id", http.StatusBadRequest)
			return
		}
		telegramID = id
	}

	logs, err := s.logs.List(r.Context(), limit, offset, telegramID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userStats, err := s.users.Stats(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	logStats, err := s.logs.Stats(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"users":      userStats,
		"query_logs": logStats,
	})
}

type broadcastRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	ids, err := s.users.ListTelegramIDs(ctx)
	if err != nil {
		s.internalError(w, err)
		return
	}

	count := 0
	for _, id := range ids {
		msg := tgbotapi.NewMessage(id, req.Message)
		if _, err := s.bot.Send(msg); err != nil {
			s.log.Error("send broadcast", "user", id, "err", err)
			continue
		}
		count++
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"sent":  count,
		"total": len(ids),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		http.Error(w, "export storage not configured", http.StatusConflict)
		return
	}
	users, err := s.users.ListAll(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	key, err := s.exporter.ExportUsers(r.Context(), users)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"key":   key,
		"users": len(users),
	})
}

// loadUser resolves the telegram_id path parameter to an account. It writes
// the error response itself when the lookup fails.
func (s *Server) loadUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	id, err := parseID(chi.URLParam(r, "telegram_id"))
	if err != nil {
		http.Error(w, "invalid telegram_id", http.StatusBadRequest)
		return nil, false
	}
	user, err := s.users.FindByTelegramID(r.Context(), id)
	if err != nil {
		s.internalError(w, err)
		return nil, false
	}
	if user == nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return nil, false
	}
	return user, true
}

func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != s.username || pass != s.password {
				w.Header().Set("WWW-Authenticate", `Basic realm="studentbot"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("admin handler error", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}

func parseIntDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil || i < 0 {
		return fallback
	}
	return i
}
