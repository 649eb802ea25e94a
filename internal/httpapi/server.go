package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mindbloom/mindbloom/internal/dto"
	"github.com/mindbloom/mindbloom/internal/eventbus"
	"github.com/mindbloom/mindbloom/internal/service"
)

// ScheduleInfo 当前定时任务
type ScheduleInfo interface {
	Current() (timeStr string, cronSpec string)
}

// Deps 路由依赖
type Deps struct {
	Sync        *service.SyncService
	Suggestions *service.SuggestionService
	Auth        *service.AuthService
	Schedule    ScheduleInfo
	Hub         *eventbus.Hub
	Degraded    []string
	Version     string
}

type Options struct {
	CORSOrigin   string
	RequireToken bool // 写接口需要 Bearer 令牌
}

type apiServer struct {
	deps      Deps
	startTime time.Time
}

// NewRouter 构建全部路由
func NewRouter(deps Deps, opts Options) http.Handler {
	a := &apiServer{deps: deps, startTime: time.Now()}

	origin := strings.TrimSpace(opts.CORSOrigin)
	if origin == "" {
		origin = "*"
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: strings.Split(origin, ","),
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", a.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/data", a.getData)
		r.Get("/user", a.getUser)
		r.Get("/events", a.handleSSE)
		r.Post("/login", a.login)

		r.Group(func(r chi.Router) {
			if opts.RequireToken {
				r.Use(a.requireToken)
			}
			r.Post("/data", a.postData)
			r.Post("/mood", a.postMood)
			r.Post("/task", a.postTask)
			r.Post("/ai-suggestion", a.postSuggestion)
			r.Post("/quote", a.postQuote)
			r.Put("/user", a.putUser)
			r.Post("/generate-ai-suggestion", a.generateSuggestion)
			r.Post("/generate-ai-quote", a.generateQuote)
			r.Post("/generate-daily-ai", a.generateDaily)
		})
	})

	return r
}

func (a *apiServer) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if _, err := a.deps.Auth.ValidateToken(token); err != nil {
			writeError(w, http.StatusUnauthorized, service.ErrUnauthorized.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Server 带优雅退出的 HTTP 服务
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Start 监听并在后台服务；ctx 取消时自动关闭
func Start(ctx context.Context, addr string, handler http.Handler) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("监听 %s 失败: %w", addr, err)
	}

	s := &Server{
		ln: ln,
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server 异常退出", "error", err)
		}
	}()

	slog.Info("HTTP 服务已启动", "addr", ln.Addr().String())
	return s, nil
}

func (s *Server) Addr() string {
	if s == nil || s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (a *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var sched dto.ScheduleDTO
	if a.deps.Schedule != nil {
		sched.Time, sched.Cron = a.deps.Schedule.Current()
	}
	writeJSON(w, http.StatusOK, dto.HealthDTO{
		Status:         "ok",
		Timestamp:      time.Now().UTC(),
		Version:        a.deps.Version,
		Schedule:       sched,
		DegradedTables: a.deps.Degraded,
	})
}

func (a *apiServer) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok || a.deps.Hub == nil {
		writeError(w, http.StatusInternalServerError, "stream not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	sub := a.deps.Hub.Subscribe(ctx, 32)

	_, _ = io.WriteString(w, "event: ready\ndata: {}\n\n")
	flusher.Flush()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		case evt, ok := <-sub:
			if !ok {
				return
			}
			b, _ := json.Marshal(evt)
			_, _ = io.WriteString(w, "event: "+sanitizeSSEName(evt.Type)+"\n")
			_, _ = io.WriteString(w, "data: ")
			_, _ = w.Write(b)
			_, _ = io.WriteString(w, "\n\n")
			flusher.Flush()
		}
	}
}

func sanitizeSSEName(name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return "message"
	}
	n = strings.ReplaceAll(n, "\n", "")
	n = strings.ReplaceAll(n, "\r", "")
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Success: false, Error: msg})
}

// writeServiceError 按错误类型映射状态码
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		// 不透出具体原因
		writeError(w, http.StatusUnauthorized, service.ErrInvalidCredentials.Error())
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, service.ErrUnauthorized.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		slog.Error("请求处理失败", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// readJSON 解析请求体；未知字段忽略，便于客户端把拉取到的数据原样推回
func readJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: 请求体不是合法 JSON: %v", service.ErrValidation, err)
	}
	return nil
}
