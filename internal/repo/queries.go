package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 3 * time.Second

// Queries concentra acesso às tabelas de identidade e sessões.
type Queries struct {
	pool *pgxpool.Pool
}

// New cria instância de Queries.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// QueryRowContext expõe consulta direta para casos pontuais.
func (q *Queries) QueryRowContext(ctx context.Context, sql string, args ...any) pgx.Row {
	return q.pool.QueryRow(ctx, sql, args...)
}

// GetUsuarioByEmail busca usuário pelo e-mail normalizado.
func (q *Queries) GetUsuarioByEmail(ctx context.Context, email string) (Usuario, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var u Usuario
	err := q.pool.QueryRow(ctx, `
		SELECT id, nome, email, senha_hash, ativo, criado_em
		FROM teamcruz.usuarios
		WHERE lower(email) = lower($1)
	`, email).Scan(&u.ID, &u.Nome, &u.Email, &u.SenhaHash, &u.Ativo, &u.CriadoEm)
	if errors.Is(err, pgx.ErrNoRows) {
		return Usuario{}, ErrNotFound
	}
	return u, err
}

// GetUsuarioByID busca usuário pelo identificador.
func (q *Queries) GetUsuarioByID(ctx context.Context, id uuid.UUID) (Usuario, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var u Usuario
	err := q.pool.QueryRow(ctx, `
		SELECT id, nome, email, senha_hash, ativo, criado_em
		FROM teamcruz.usuarios
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Nome, &u.Email, &u.SenhaHash, &u.Ativo, &u.CriadoEm)
	if errors.Is(err, pgx.ErrNoRows) {
		return Usuario{}, ErrNotFound
	}
	return u, err
}

// ListUnidadesByUsuario lista unidades vinculadas ao usuário com papel.
func (q *Queries) ListUnidadesByUsuario(ctx context.Context, usuarioID uuid.UUID) ([]UnidadeComPapel, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := q.pool.Query(ctx, `
		SELECT uu.unidade_id, un.nome, un.slug, uu.papel
		FROM teamcruz.usuarios_unidades uu
		JOIN teamcruz.unidades un ON un.id = uu.unidade_id
		WHERE uu.usuario_id = $1
		ORDER BY un.nome
	`, usuarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vinculos []UnidadeComPapel
	for rows.Next() {
		var v UnidadeComPapel
		if err := rows.Scan(&v.UnidadeID, &v.Unidade, &v.Slug, &v.Papel); err != nil {
			return nil, err
		}
		vinculos = append(vinculos, v)
	}
	return vinculos, rows.Err()
}

// GetRefreshTokenByHash localiza refresh token pelo hash.
func (q *Queries) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (TokenRefresh, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var t TokenRefresh
	err := q.pool.QueryRow(ctx, `
		SELECT id, subject, audience, token_hash, expiracao, criado_em, revogado
		FROM teamcruz.tokens_refresh
		WHERE token_hash = $1
	`, tokenHash).Scan(&t.ID, &t.Subject, &t.Audience, &t.TokenHash, &t.Expiracao, &t.CriadoEm, &t.Revogado)
	if errors.Is(err, pgx.ErrNoRows) {
		return TokenRefresh{}, ErrNotFound
	}
	return t, err
}

// InsertRefreshToken persiste novo refresh token.
func (q *Queries) InsertRefreshToken(ctx context.Context, arg InsertRefreshTokenParams) (TokenRefresh, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var t TokenRefresh
	err := q.pool.QueryRow(ctx, `
		INSERT INTO teamcruz.tokens_refresh (id, subject, audience, token_hash, expiracao, criado_em, revogado)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING id, subject, audience, token_hash, expiracao, criado_em, revogado
	`, arg.ID, arg.Subject, arg.Audience, arg.TokenHash, arg.Expiracao, arg.CriadoEm).
		Scan(&t.ID, &t.Subject, &t.Audience, &t.TokenHash, &t.Expiracao, &t.CriadoEm, &t.Revogado)
	return t, err
}

// InvalidateOtherRefreshTokens revoga demais tokens do subject na mesma audience.
func (q *Queries) InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, audience, keepHash string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := q.pool.Exec(ctx, `
		UPDATE teamcruz.tokens_refresh
		SET revogado = TRUE
		WHERE subject = $1 AND audience = $2 AND token_hash <> $3 AND revogado = FALSE
	`, subject, audience, keepHash)
	return err
}

// RevokeRefreshToken revoga token específico pelo hash.
func (q *Queries) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := q.pool.Exec(ctx, `
		UPDATE teamcruz.tokens_refresh
		SET revogado = TRUE
		WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateUsuario atualiza nome e e-mail.
func (q *Queries) UpdateUsuario(ctx context.Context, id uuid.UUID, nome, email string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := q.pool.Exec(ctx, `
		UPDATE teamcruz.usuarios
		SET nome = $2, email = lower($3)
		WHERE id = $1
	`, id, nome, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
