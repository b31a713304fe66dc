package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/teamcruz/academia/internal/aluno"
	"github.com/teamcruz/academia/internal/competicao"
	"github.com/teamcruz/academia/internal/config"
	"github.com/teamcruz/academia/internal/convenio"
	"github.com/teamcruz/academia/internal/convite"
	"github.com/teamcruz/academia/internal/email"
	"github.com/teamcruz/academia/internal/financeiro"
	"github.com/teamcruz/academia/internal/graduacao"
	httpmiddleware "github.com/teamcruz/academia/internal/http/middleware"
	"github.com/teamcruz/academia/internal/presenca"
	"github.com/teamcruz/academia/internal/repo"
	"github.com/teamcruz/academia/internal/service"
	"github.com/teamcruz/academia/internal/unidade"
	"github.com/teamcruz/academia/internal/viacep"
)

type Handler struct {
	cfg           *config.Config
	pool          *pgxpool.Pool
	redis         *redis.Client
	authService   *service.AuthService
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
	devCookies    bool
}

// NewRouter monta o roteador da API e liga os módulos da academia. A função
// devolvida interrompe os workers de fundo e deve ser chamada no shutdown.
func NewRouter(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, authService *service.AuthService) (http.Handler, func(), error) {
	devCookies := false
	for _, origin := range cfg.AllowOrigins {
		if strings.Contains(origin, "localhost") {
			devCookies = true
			break
		}
	}

	h := &Handler{
		cfg:           cfg,
		pool:          pool,
		redis:         redisClient,
		authService:   authService,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
		devCookies:    devCookies,
	}

	rbacService := service.NewRBACService(repo.New(pool))

	unidadeService := unidade.NewService(unidade.NewRepository(pool))
	unidadeHandler := unidade.NewHandler(unidadeService)

	alunoService := aluno.NewService(aluno.NewRepository(pool))
	alunoHandler := aluno.NewHandler(alunoService)

	graduacaoService := graduacao.NewService(graduacao.NewRepository(pool), pool, unidadeService)
	graduacaoHandler := graduacao.NewHandler(graduacaoService)

	convenioService := convenio.NewService(convenio.NewRepository(pool))
	convenioHandler := convenio.NewHandler(convenioService)

	presencaService := presenca.NewService(presenca.NewRepository(pool), redisClient, alunoService, graduacaoService, convenioService)
	presencaHandler := presenca.NewHandler(presencaService)

	financeiroService := financeiro.NewService(financeiro.NewRepository(pool))
	financeiroHandler := financeiro.NewHandler(financeiroService)

	mailer := email.NewMailer(*cfg, log.With().Str("component", "email").Logger())
	conviteService := convite.NewService(convite.NewRepository(pool), pool, mailer, graduacaoService, cfg.FrontendURL)
	conviteHandler := convite.NewHandler(conviteService)

	competicaoService := competicao.NewService(competicao.NewRepository(pool))
	competicaoHandler := competicao.NewHandler(competicaoService)

	viacepHandler := viacep.NewHandler(viacep.New(""))

	dispatcherLogger := log.With().Str("component", "convenio-dispatcher").Logger()
	dispatcher := convenio.NewDispatcher(convenio.NewRepository(pool), cfg.Convenio, dispatcherLogger)
	dispatcher.Start(context.Background())

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)

		public.Route("/auth", func(auth chi.Router) {
			auth.Post("/backoffice/login", h.LoginBackoffice)
			auth.Post("/app/login", h.LoginApp)
			auth.Post("/refresh", h.Refresh)
			auth.Post("/logout", h.Logout)
		})

		conviteHandler.RegisterPublicRoutes(public)
		viacepHandler.RegisterRoutes(public)
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(authService.JWT()))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))
		private.Use(httpmiddleware.Scope(rbacService))

		private.Get("/me", h.Me)

		unidadeHandler.RegisterRoutes(private)
		alunoHandler.RegisterRoutes(private)
		graduacaoHandler.RegisterRoutes(private)
		presencaHandler.RegisterRoutes(private)
		financeiroHandler.RegisterRoutes(private)
		convenioHandler.RegisterRoutes(private)
		conviteHandler.RegisterRoutes(private)
		competicaoHandler.RegisterRoutes(private)
	})

	return r, dispatcher.Stop, nil
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida conexões com Postgres e Redis.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbErr := h.pool.Ping(ctx)
	redisErr := h.redis.Ping(ctx).Err()

	if dbErr != nil || redisErr != nil {
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "dependências indisponíveis", map[string]any{
			"db":    errorString(dbErr),
			"redis": errorString(redisErr),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// LoginBackoffice autentica professores e administradores.
func (h *Handler) LoginBackoffice(w http.ResponseWriter, r *http.Request) {
	email, senha, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	result, err := h.authService.LoginBackoffice(r.Context(), email, senha)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	h.writeLoginSuccess(w, result)
}

// LoginApp autentica alunos e responsáveis no aplicativo.
func (h *Handler) LoginApp(w http.ResponseWriter, r *http.Request) {
	email, senha, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	result, err := h.authService.LoginApp(r.Context(), email, senha)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	h.writeLoginSuccess(w, result)
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	var payload struct {
		Email string `json:"email"`
		Senha string `json:"senha"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return "", "", false
	}

	if strings.TrimSpace(payload.Email) == "" || strings.TrimSpace(payload.Senha) == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "email e senha são obrigatórios", nil)
		return "", "", false
	}

	return payload.Email, payload.Senha, true
}

// Refresh rotaciona token de acesso.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	audience, token, err := getRefreshFromRequest(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "refresh ausente", nil)
		return
	}

	result, err := h.authService.Refresh(r.Context(), audience, token)
	if err != nil {
		if errors.Is(err, service.ErrRefreshInvalid) {
			WriteError(w, http.StatusUnauthorized, "AUTH", "refresh inválido", nil)
			return
		}
		if errors.Is(err, service.ErrNoEligibleRoles) {
			WriteError(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro ao renovar sessão", nil)
		return
	}

	h.writeLoginSuccess(w, result)
}

// Logout revoga refresh token atual.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if audience, token, err := getRefreshFromRequest(r); err == nil {
		_ = h.authService.Logout(r.Context(), audience, token)
	}

	h.clearRefreshCookie(w, "app")
	h.clearRefreshCookie(w, "backoffice")
	WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me retorna informações do usuário autenticado.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	subjectStr := httpmiddleware.GetSubject(r.Context())
	audience := httpmiddleware.GetAudience(r.Context())

	subject, err := uuid.Parse(subjectStr)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	profile, roles, err := h.authService.GetMe(r.Context(), audience, subject)
	if err != nil {
		if errors.Is(err, service.ErrNoEligibleRoles) {
			WriteError(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível carregar perfil", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"user":  profile,
		"roles": roles,
	})
}

func (h *Handler) handleAuthError(w http.ResponseWriter, err error) {
	switch err {
	case service.ErrInvalidCredentials:
		WriteError(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
	case service.ErrAccountDisabled:
		WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case service.ErrNoEligibleRoles:
		WriteError(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro ao autenticar", nil)
	}
}

func (h *Handler) writeLoginSuccess(w http.ResponseWriter, result *service.LoginResult) {
	h.setRefreshCookie(w, result.Audience, result.RefreshToken, result.RefreshExpiry)

	WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": result.AccessToken,
		"user":         result.Profile,
	})
}

const (
	refreshCookieApp        = "app"
	refreshCookieBackoffice = "backoffice"
)

func getRefreshFromRequest(r *http.Request) (string, string, error) {
	if c, err := r.Cookie(refreshCookieBackoffice); err == nil && c.Value != "" {
		return "backoffice", c.Value, nil
	}
	if c, err := r.Cookie(refreshCookieApp); err == nil && c.Value != "" {
		return "app", c.Value, nil
	}
	return "", "", errors.New("refresh ausente")
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, audience, token string, expires time.Time) {
	name := refreshCookieApp
	if audience == "backoffice" {
		name = refreshCookieBackoffice
	}
	secure := !h.devCookies
	sameSite := http.SameSiteNoneMode
	if h.devCookies {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter, audience string) {
	name := refreshCookieApp
	if audience == "backoffice" {
		name = refreshCookieBackoffice
	}
	secure := !h.devCookies
	sameSite := http.SameSiteNoneMode
	if h.devCookies {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}
