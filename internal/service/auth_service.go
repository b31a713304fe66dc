package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/teamcruz/academia/internal/auth"
	"github.com/teamcruz/academia/internal/repo"
	"github.com/teamcruz/academia/internal/util"
)

var (
	// ErrInvalidCredentials indica falha na autenticação.
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	// ErrAccountDisabled indica conta desativada.
	ErrAccountDisabled = errors.New("conta desativada")
	// ErrRefreshInvalid indica refresh token inválido ou expirado.
	ErrRefreshInvalid = errors.New("refresh token inválido")
	// ErrNoEligibleRoles indica ausência de papéis autorizados.
	ErrNoEligibleRoles = errors.New("usuário sem papel elegível")
)

var staffRoles = map[string]struct{}{
	"MASTER":          {},
	"ADMIN":           {},
	"FRANQUEADO":      {},
	"GERENTE_UNIDADE": {},
	"RECEPCIONISTA":   {},
	"PROFESSOR":       {},
	"TABLET_CHECKIN":  {},
}

var appRoles = map[string]struct{}{
	"ALUNO":       {},
	"RESPONSAVEL": {},
}

type authRepository interface {
	GetUsuarioByEmail(ctx context.Context, email string) (repo.Usuario, error)
	GetUsuarioByID(ctx context.Context, id uuid.UUID) (repo.Usuario, error)
	ListUnidadesByUsuario(ctx context.Context, usuarioID uuid.UUID) ([]repo.UnidadeComPapel, error)
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (repo.TokenRefresh, error)
	InsertRefreshToken(ctx context.Context, arg repo.InsertRefreshTokenParams) (repo.TokenRefresh, error)
	InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, audience, keepHash string) error
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AuthService concentra regras de autenticação e sessões.
type AuthService struct {
	repo       authRepository
	redis      redisCommander
	jwt        *auth.JWTManager
	refreshTTL time.Duration
}

// NewAuthService cria novo serviço.
func NewAuthService(r authRepository, redisClient redisCommander, jwtMgr *auth.JWTManager, refreshTTL time.Duration) *AuthService {
	return &AuthService{repo: r, redis: redisClient, jwt: jwtMgr, refreshTTL: refreshTTL}
}

// JWT expõe gerenciador de JWT (útil em middlewares).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// LoginResult representa retorno padrão de autenticações.
type LoginResult struct {
	Audience      string
	AccessToken   string
	RefreshToken  string
	Subject       uuid.UUID
	Roles         []string
	Profile       any
	RefreshHash   string
	RefreshExpiry time.Time
}

// Profile descreve o usuário autenticado com seus vínculos.
type Profile struct {
	ID       string           `json:"id"`
	Nome     string           `json:"nome"`
	Email    string           `json:"email"`
	Unidades []UnidadeVinculo `json:"unidades,omitempty"`
}

// UnidadeVinculo apresenta vínculo e papel em uma unidade.
type UnidadeVinculo struct {
	ID    string `json:"id"`
	Nome  string `json:"nome"`
	Slug  string `json:"slug"`
	Papel string `json:"papel"`
}

// LoginBackoffice autentica a equipe das unidades.
func (s *AuthService) LoginBackoffice(ctx context.Context, email, password string) (*LoginResult, error) {
	return s.login(ctx, email, password, "backoffice")
}

// LoginApp autentica alunos e responsáveis no app.
func (s *AuthService) LoginApp(ctx context.Context, email, password string) (*LoginResult, error) {
	return s.login(ctx, email, password, "app")
}

func (s *AuthService) login(ctx context.Context, email, password, audience string) (*LoginResult, error) {
	user, err := s.repo.GetUsuarioByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Str("audience", audience).Msg("login: usuário não encontrado")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := auth.Verify(password, user.SenhaHash)
	if err != nil {
		log.Warn().Err(err).Str("audience", audience).Msg("login: verify password failed")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		log.Warn().Str("audience", audience).Msg("login: senha inválida")
		return nil, ErrInvalidCredentials
	}

	if !user.Ativo {
		return nil, ErrAccountDisabled
	}

	return s.issueSession(ctx, user, audience)
}

func (s *AuthService) issueSession(ctx context.Context, user repo.Usuario, audience string) (*LoginResult, error) {
	unidades, err := s.repo.ListUnidadesByUsuario(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	roles := rolesForAudience(unidades, audience)
	if len(roles) == 0 {
		return nil, ErrNoEligibleRoles
	}

	token, _, err := s.jwt.GenerateAccessToken(user.ID.String(), audience, roles)
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	expires := util.Now().Add(s.refreshTTL)
	if err := s.persistRefresh(ctx, user.ID, audience, refreshHash, expires); err != nil {
		return nil, err
	}

	return &LoginResult{
		Audience:      audience,
		AccessToken:   token,
		RefreshToken:  rawRefresh,
		Subject:       user.ID,
		Roles:         roles,
		Profile:       buildProfile(user, unidades),
		RefreshHash:   refreshHash,
		RefreshExpiry: expires,
	}, nil
}

// GetUsuarioByID delega busca de usuário.
func (s *AuthService) GetUsuarioByID(ctx context.Context, id uuid.UUID) (repo.Usuario, error) {
	return s.repo.GetUsuarioByID(ctx, id)
}

// Refresh troca refresh token por novos tokens.
func (s *AuthService) Refresh(ctx context.Context, audience, rawToken string) (*LoginResult, error) {
	if rawToken == "" {
		return nil, ErrRefreshInvalid
	}

	hash := auth.HashRefreshToken(rawToken)
	record, err := s.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}

	if record.Revogado || time.Now().UTC().After(record.Expiracao) || record.Audience != audience {
		return nil, ErrRefreshInvalid
	}

	redisKey := auth.RefreshRedisKey(audience, hash)
	status, err := s.redis.Get(ctx, redisKey).Result()
	if err == redis.Nil {
		return nil, ErrRefreshInvalid
	}
	if err != nil {
		return nil, err
	}
	if status != "active" {
		return nil, ErrRefreshInvalid
	}

	user, err := s.repo.GetUsuarioByID(ctx, record.Subject)
	if err != nil {
		return nil, err
	}
	if !user.Ativo {
		return nil, ErrAccountDisabled
	}

	result, err := s.issueSession(ctx, user, audience)
	if err != nil {
		return nil, err
	}

	// Revoga token anterior (DB + Redis)
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return nil, err
	}

	return result, nil
}

// Logout revoga refresh token atual.
func (s *AuthService) Logout(ctx context.Context, audience, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	hash := auth.HashRefreshToken(rawToken)
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	redisKey := auth.RefreshRedisKey(audience, hash)
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// GetMe retorna perfil completo para subject/audience.
func (s *AuthService) GetMe(ctx context.Context, audience string, subject uuid.UUID) (any, []string, error) {
	user, err := s.repo.GetUsuarioByID(ctx, subject)
	if err != nil {
		return nil, nil, err
	}

	unidades, err := s.repo.ListUnidadesByUsuario(ctx, subject)
	if err != nil {
		return nil, nil, err
	}

	roles := rolesForAudience(unidades, audience)
	if len(roles) == 0 {
		return nil, nil, ErrNoEligibleRoles
	}

	return buildProfile(user, unidades), roles, nil
}

func (s *AuthService) persistRefresh(ctx context.Context, subject uuid.UUID, audience, hash string, expires time.Time) error {
	_, err := s.repo.InsertRefreshToken(ctx, repo.InsertRefreshTokenParams{
		ID:        uuid.New(),
		Subject:   subject,
		Audience:  audience,
		TokenHash: hash,
		Expiracao: expires,
		CriadoEm:  util.Now(),
	})
	if err != nil {
		return err
	}

	if err := s.repo.InvalidateOtherRefreshTokens(ctx, subject, audience, hash); err != nil {
		return err
	}

	return s.redis.Set(ctx, auth.RefreshRedisKey(audience, hash), "active", time.Until(expires)).Err()
}

func buildProfile(user repo.Usuario, unidades []repo.UnidadeComPapel) *Profile {
	profile := &Profile{
		ID:    user.ID.String(),
		Nome:  user.Nome,
		Email: user.Email,
	}
	for _, u := range unidades {
		profile.Unidades = append(profile.Unidades, UnidadeVinculo{
			ID:    u.UnidadeID.String(),
			Nome:  u.Unidade,
			Slug:  u.Slug,
			Papel: u.Papel,
		})
	}
	return profile
}

func rolesForAudience(unidades []repo.UnidadeComPapel, audience string) []string {
	var allowed map[string]struct{}
	switch audience {
	case "backoffice":
		allowed = staffRoles
	case "app":
		allowed = appRoles
	default:
		return nil
	}

	roles := make([]string, 0, len(unidades))
	for _, u := range unidades {
		role := strings.ToUpper(strings.TrimSpace(u.Papel))
		if _, ok := allowed[role]; !ok {
			continue
		}
		roles = appendIfMissing(roles, role)
	}
	return roles
}

func appendIfMissing(values []string, value string) []string {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return values
	}
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}
