package convite

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 3 * time.Second

const conviteColumns = `id, token, tipo_cadastro, unidade_id, nome_pre_cadastro, email,
	telefone, cpf, data_expiracao, usado, usado_em, usuario_criado_id, criado_por, criado_em`

// Repository persiste convites e executa o cadastro público em transação.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, c ConviteCadastro) (ConviteCadastro, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := r.pool.QueryRow(ctx, `
		INSERT INTO teamcruz.convites_cadastro
			(token, tipo_cadastro, unidade_id, nome_pre_cadastro, email, telefone, cpf,
			 data_expiracao, usado, criado_por)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9)
		RETURNING `+conviteColumns+`
	`, c.Token, c.TipoCadastro, c.UnidadeID, c.NomePreCadastro, c.Email, c.Telefone, c.CPF,
		c.DataExpiracao, c.CriadoPor).Scan(scanTargets(&c)...)
	return c, err
}

func (r *Repository) GetByToken(ctx context.Context, token string) (ConviteCadastro, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var c ConviteCadastro
	err := r.pool.QueryRow(ctx, `
		SELECT `+conviteColumns+`
		FROM teamcruz.convites_cadastro
		WHERE token = $1
	`, token).Scan(scanTargets(&c)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return ConviteCadastro{}, ErrConviteNaoEncontrado
	}
	return c, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (ConviteCadastro, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var c ConviteCadastro
	err := r.pool.QueryRow(ctx, `
		SELECT `+conviteColumns+`
		FROM teamcruz.convites_cadastro
		WHERE id = $1
	`, id).Scan(scanTargets(&c)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return ConviteCadastro{}, ErrConviteNaoEncontrado
	}
	return c, err
}

func (r *Repository) ListByUnidade(ctx context.Context, unidadeID *uuid.UUID, limit, offset int) ([]ConviteCadastro, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+conviteColumns+`
		FROM teamcruz.convites_cadastro
		WHERE ($1::uuid IS NULL OR unidade_id = $1)
		ORDER BY criado_em DESC
		LIMIT $2 OFFSET $3
	`, unidadeID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConviteCadastro
	for rows.Next() {
		var c ConviteCadastro
		if err := rows.Scan(scanTargets(&c)...); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RenovarExpiracao estende a validade de um convite ainda não utilizado.
func (r *Repository) RenovarExpiracao(ctx context.Context, id uuid.UUID, novaExpiracao time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
		UPDATE teamcruz.convites_cadastro
		SET data_expiracao = $2
		WHERE id = $1 AND usado = false
	`, id, novaExpiracao)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConviteNaoEncontrado
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
		DELETE FROM teamcruz.convites_cadastro WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConviteNaoEncontrado
	}
	return nil
}

func (r *Repository) GetUnidadeNome(ctx context.Context, unidadeID uuid.UUID) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var nome string
	err := r.pool.QueryRow(ctx, `
		SELECT nome FROM teamcruz.unidades WHERE id = $1
	`, unidadeID).Scan(&nome)
	return nome, err
}

func (r *Repository) CPFExiste(ctx context.Context, cpf string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var existe bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM teamcruz.alunos WHERE cpf = $1
			UNION ALL
			SELECT 1 FROM teamcruz.responsaveis WHERE cpf = $1
		)
	`, cpf).Scan(&existe)
	return existe, err
}

func (r *Repository) EmailUsuarioExiste(ctx context.Context, email string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var existe bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM teamcruz.usuarios WHERE lower(email) = lower($1))
	`, email).Scan(&existe)
	return existe, err
}

// --- Escritas transacionais do cadastro público ---

func (r *Repository) InsertEndereco(ctx context.Context, tx pgx.Tx, e Endereco) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO teamcruz.enderecos (cep, logradouro, numero, complemento, bairro, cidade, estado)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, e.CEP, e.Logradouro, e.Numero, e.Complemento, e.Bairro, e.Cidade, e.Estado).Scan(&id)
	return id, err
}

func (r *Repository) InsertUsuario(ctx context.Context, tx pgx.Tx, nome, email, senhaHash string) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO teamcruz.usuarios (nome, email, senha_hash, ativo)
		VALUES ($1, lower($2), $3, true)
		RETURNING id
	`, nome, email, senhaHash).Scan(&id)
	return id, err
}

func (r *Repository) VincularUsuarioUnidade(ctx context.Context, tx pgx.Tx, usuarioID, unidadeID uuid.UUID, papel string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO teamcruz.usuarios_unidades (usuario_id, unidade_id, papel)
		VALUES ($1, $2, $3)
		ON CONFLICT (usuario_id, unidade_id) DO UPDATE SET papel = EXCLUDED.papel
	`, usuarioID, unidadeID, papel)
	return err
}

func (r *Repository) InsertResponsavel(ctx context.Context, tx pgx.Tx, in NovoResponsavel) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO teamcruz.responsaveis (usuario_id, nome_completo, cpf, telefone, email, endereco_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, in.UsuarioID, in.NomeCompleto, in.CPF, in.Telefone, in.Email, in.EnderecoID).Scan(&id)
	return id, err
}

func (r *Repository) InsertAluno(ctx context.Context, tx pgx.Tx, in NovoAluno) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO teamcruz.alunos
			(usuario_id, unidade_id, nome_completo, cpf, data_nascimento, genero,
			 telefone, email, responsavel_id, endereco_id, status, data_matricula)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'ATIVO', $11)
		RETURNING id
	`, in.UsuarioID, in.UnidadeID, in.NomeCompleto, in.CPF, in.DataNascimento, in.Genero,
		in.Telefone, in.Email, in.ResponsavelID, in.EnderecoID, in.DataMatricula).Scan(&id)
	return id, err
}

func (r *Repository) MarcarUsado(ctx context.Context, tx pgx.Tx, conviteID uuid.UUID, usuarioCriadoID *uuid.UUID, quando time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE teamcruz.convites_cadastro
		SET usado = true, usado_em = $2, usuario_criado_id = $3
		WHERE id = $1 AND usado = false
	`, conviteID, quando, usuarioCriadoID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConviteUsado
	}
	return nil
}

func scanTargets(c *ConviteCadastro) []any {
	return []any{
		&c.ID, &c.Token, &c.TipoCadastro, &c.UnidadeID, &c.NomePreCadastro, &c.Email,
		&c.Telefone, &c.CPF, &c.DataExpiracao, &c.Usado, &c.UsadoEm, &c.UsuarioCriadoID,
		&c.CriadoPor, &c.CriadoEm,
	}
}
