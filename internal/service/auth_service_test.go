package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/teamcruz/academia/internal/auth"
	"github.com/teamcruz/academia/internal/repo"
)

type stubAuthRepo struct {
	user         repo.Usuario
	unidades     []repo.UnidadeComPapel
	tokens       map[string]repo.TokenRefresh
	refreshCalls int
}

func (s *stubAuthRepo) GetUsuarioByEmail(ctx context.Context, email string) (repo.Usuario, error) {
	if strings.EqualFold(email, s.user.Email) {
		return s.user, nil
	}
	return repo.Usuario{}, repo.ErrNotFound
}

func (s *stubAuthRepo) GetUsuarioByID(ctx context.Context, id uuid.UUID) (repo.Usuario, error) {
	if id == s.user.ID {
		return s.user, nil
	}
	return repo.Usuario{}, repo.ErrNotFound
}

func (s *stubAuthRepo) ListUnidadesByUsuario(ctx context.Context, usuarioID uuid.UUID) ([]repo.UnidadeComPapel, error) {
	return s.unidades, nil
}

func (s *stubAuthRepo) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (repo.TokenRefresh, error) {
	if tok, ok := s.tokens[tokenHash]; ok {
		return tok, nil
	}
	return repo.TokenRefresh{}, repo.ErrNotFound
}

func (s *stubAuthRepo) InsertRefreshToken(ctx context.Context, arg repo.InsertRefreshTokenParams) (repo.TokenRefresh, error) {
	s.refreshCalls++
	tok := repo.TokenRefresh{
		ID:        arg.ID,
		Subject:   arg.Subject,
		Audience:  arg.Audience,
		TokenHash: arg.TokenHash,
		Expiracao: arg.Expiracao,
		CriadoEm:  arg.CriadoEm,
	}
	if s.tokens == nil {
		s.tokens = make(map[string]repo.TokenRefresh)
	}
	s.tokens[arg.TokenHash] = tok
	return tok, nil
}

func (s *stubAuthRepo) InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, audience, keepHash string) error {
	return nil
}

func (s *stubAuthRepo) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	tok, ok := s.tokens[tokenHash]
	if !ok {
		return repo.ErrNotFound
	}
	tok.Revogado = true
	s.tokens[tokenHash] = tok
	return nil
}

type stubRedis struct {
	store map[string]string
}

func (s *stubRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if s.store == nil {
		s.store = make(map[string]string)
	}
	s.store[key] = fmt.Sprint(value)
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (s *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	val, ok := s.store[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := s.store[key]; ok {
			delete(s.store, key)
			removed++
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(removed)
	return cmd
}

func newTestService(repoStub *stubAuthRepo) *AuthService {
	jwtMgr := auth.NewJWTManager(strings.Repeat("a", 32), time.Minute)
	return NewAuthService(repoStub, &stubRedis{}, jwtMgr, time.Hour)
}

func TestLoginBackofficeComPapelDeEquipe(t *testing.T) {
	password := "SenhaForte123!"
	hash, err := auth.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	repoStub := &stubAuthRepo{
		user: repo.Usuario{
			ID:        uuid.New(),
			Nome:      "Gerente Teste",
			Email:     "gerente@teamcruz.com.br",
			SenhaHash: hash,
			Ativo:     true,
		},
		unidades: []repo.UnidadeComPapel{{UnidadeID: uuid.New(), Unidade: "Matriz", Slug: "matriz", Papel: "GERENTE_UNIDADE"}},
	}

	result, err := newTestService(repoStub).LoginBackoffice(context.Background(), "gerente@teamcruz.com.br", password)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if len(result.Roles) != 1 || result.Roles[0] != "GERENTE_UNIDADE" {
		t.Fatalf("expected roles [GERENTE_UNIDADE], got %v", result.Roles)
	}
	if repoStub.refreshCalls != 1 {
		t.Fatalf("expected 1 refresh token persisted, got %d", repoStub.refreshCalls)
	}
}

func TestLoginBackofficeRejeitaAlunoSemPapelDeEquipe(t *testing.T) {
	password := "SenhaForte123!"
	hash, err := auth.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	repoStub := &stubAuthRepo{
		user: repo.Usuario{
			ID:        uuid.New(),
			Nome:      "Aluno Teste",
			Email:     "aluno@example.com",
			SenhaHash: hash,
			Ativo:     true,
		},
		unidades: []repo.UnidadeComPapel{{UnidadeID: uuid.New(), Papel: "ALUNO"}},
	}

	result, err := newTestService(repoStub).LoginBackoffice(context.Background(), "aluno@example.com", password)
	if err == nil || !errors.Is(err, ErrNoEligibleRoles) {
		t.Fatalf("expected ErrNoEligibleRoles, got result=%v err=%v", result, err)
	}
}

func TestLoginAppAceitaResponsavel(t *testing.T) {
	password := "SenhaForte123!"
	hash, err := auth.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	repoStub := &stubAuthRepo{
		user: repo.Usuario{
			ID:        uuid.New(),
			Nome:      "Responsável Teste",
			Email:     "responsavel@example.com",
			SenhaHash: hash,
			Ativo:     true,
		},
		unidades: []repo.UnidadeComPapel{{UnidadeID: uuid.New(), Papel: "RESPONSAVEL"}},
	}

	result, err := newTestService(repoStub).LoginApp(context.Background(), "responsavel@example.com", password)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.Audience != "app" {
		t.Fatalf("expected audience app, got %s", result.Audience)
	}
}

func TestRefreshRotacionaToken(t *testing.T) {
	password := "SenhaForte123!"
	hash, err := auth.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	repoStub := &stubAuthRepo{
		user: repo.Usuario{
			ID:        uuid.New(),
			Nome:      "Recepção",
			Email:     "recepcao@teamcruz.com.br",
			SenhaHash: hash,
			Ativo:     true,
		},
		unidades: []repo.UnidadeComPapel{{UnidadeID: uuid.New(), Papel: "RECEPCIONISTA"}},
	}

	svc := newTestService(repoStub)
	login, err := svc.LoginBackoffice(context.Background(), "recepcao@teamcruz.com.br", password)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	renewed, err := svc.Refresh(context.Background(), "backoffice", login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if renewed.RefreshToken == login.RefreshToken {
		t.Fatal("expected rotated refresh token")
	}

	// token antigo não pode ser reutilizado
	if _, err := svc.Refresh(context.Background(), "backoffice", login.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid on reuse, got %v", err)
	}
}
