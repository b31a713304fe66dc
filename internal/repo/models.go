package repo

import (
	"time"

	"github.com/google/uuid"
)

// Usuario representa qualquer pessoa com acesso autenticado (equipe ou app do aluno).
type Usuario struct {
	ID        uuid.UUID
	Nome      string
	Email     string
	SenhaHash string
	Ativo     bool
	CriadoEm  time.Time
}

// UnidadeComPapel agrega unidade com o papel do usuário nela.
type UnidadeComPapel struct {
	UnidadeID uuid.UUID
	Unidade   string
	Slug      string
	Papel     string
}

// TokenRefresh modela tabela de refresh tokens.
type TokenRefresh struct {
	ID        uuid.UUID
	Subject   uuid.UUID
	Audience  string
	TokenHash string
	Expiracao time.Time
	CriadoEm  time.Time
	Revogado  bool
}

// InsertRefreshTokenParams agrupa campos para persistir refresh token.
type InsertRefreshTokenParams struct {
	ID        uuid.UUID
	Subject   uuid.UUID
	Audience  string
	TokenHash string
	Expiracao time.Time
	CriadoEm  time.Time
}
