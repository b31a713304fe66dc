package aluno

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indica aluno inexistente.
	ErrNotFound = errors.New("aluno não encontrado")
	// ErrCPFDuplicado indica CPF já cadastrado.
	ErrCPFDuplicado = errors.New("CPF já cadastrado")
)

const dbTimeout = 3 * time.Second

// Aluno representa um praticante matriculado em uma unidade.
type Aluno struct {
	ID             uuid.UUID  `json:"id"`
	UsuarioID      *uuid.UUID `json:"usuario_id,omitempty"`
	UnidadeID      uuid.UUID  `json:"unidade_id"`
	NomeCompleto   string     `json:"nome_completo"`
	CPF            string     `json:"cpf"`
	DataNascimento *time.Time `json:"data_nascimento,omitempty"`
	Genero         *string    `json:"genero,omitempty"`
	Telefone       *string    `json:"telefone,omitempty"`
	Email          *string    `json:"email,omitempty"`
	ResponsavelID  *uuid.UUID `json:"responsavel_id,omitempty"`
	Status         string     `json:"status"`
	CriadoEm       time.Time  `json:"criado_em"`
	AtualizadoEm   time.Time  `json:"atualizado_em"`
}

// UpdateAlunoInput agrupa campos editáveis.
type UpdateAlunoInput struct {
	NomeCompleto   *string
	DataNascimento *time.Time
	Genero         *string
	Telefone       *string
	Email          *string
	ResponsavelID  *uuid.UUID
	Status         *string
}

// Repository fornece acesso aos dados de alunos.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const alunoColumns = `id, usuario_id, unidade_id, nome_completo, cpf, data_nascimento, genero, telefone, email, responsavel_id, status, criado_em, atualizado_em`

func (r *Repository) Insert(ctx context.Context, a Aluno) (Aluno, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var existe bool
	if err := r.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM teamcruz.alunos WHERE cpf = $1)
	`, a.CPF).Scan(&existe); err != nil {
		return Aluno{}, err
	}
	if existe {
		return Aluno{}, ErrCPFDuplicado
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO teamcruz.alunos
			(usuario_id, unidade_id, nome_completo, cpf, data_nascimento, genero, telefone, email, responsavel_id, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,'ATIVO')
		RETURNING `+alunoColumns+`
	`, a.UsuarioID, a.UnidadeID, a.NomeCompleto, a.CPF, a.DataNascimento, a.Genero, a.Telefone, a.Email, a.ResponsavelID).
		Scan(scanTargets(&a)...)
	return a, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Aluno, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var a Aluno
	err := r.db.QueryRow(ctx, `
		SELECT `+alunoColumns+`
		FROM teamcruz.alunos
		WHERE id = $1
	`, id).Scan(scanTargets(&a)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Aluno{}, ErrNotFound
	}
	return a, err
}

func (r *Repository) GetByCPF(ctx context.Context, cpf string) (Aluno, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var a Aluno
	err := r.db.QueryRow(ctx, `
		SELECT `+alunoColumns+`
		FROM teamcruz.alunos
		WHERE cpf = $1
	`, cpf).Scan(scanTargets(&a)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Aluno{}, ErrNotFound
	}
	return a, err
}

func (r *Repository) GetByUsuarioID(ctx context.Context, usuarioID uuid.UUID) (Aluno, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var a Aluno
	err := r.db.QueryRow(ctx, `
		SELECT `+alunoColumns+`
		FROM teamcruz.alunos
		WHERE usuario_id = $1
	`, usuarioID).Scan(scanTargets(&a)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Aluno{}, ErrNotFound
	}
	return a, err
}

// SearchByNome busca por fragmento de nome (case-insensitive), limitado.
func (r *Repository) SearchByNome(ctx context.Context, unidadeID *uuid.UUID, nome string, limit int) ([]Aluno, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if limit <= 0 || limit > 50 {
		limit = 20
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+alunoColumns+`
		FROM teamcruz.alunos
		WHERE nome_completo ILIKE '%' || $1 || '%'
		  AND status = 'ATIVO'
		  AND ($2::uuid IS NULL OR unidade_id = $2)
		ORDER BY nome_completo
		LIMIT $3
	`, nome, unidadeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAlunos(rows)
}

// ListByUnidade pagina alunos da unidade.
func (r *Repository) ListByUnidade(ctx context.Context, unidadeID uuid.UUID, status string, limit, offset int) ([]Aluno, int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM teamcruz.alunos
		WHERE unidade_id = $1 AND ($2 = '' OR status = $2)
	`, unidadeID, status).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+alunoColumns+`
		FROM teamcruz.alunos
		WHERE unidade_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY nome_completo
		LIMIT $3 OFFSET $4
	`, unidadeID, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	alunos, err := collectAlunos(rows)
	return alunos, total, err
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, input UpdateAlunoInput) (Aluno, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var a Aluno
	err := r.db.QueryRow(ctx, `
		UPDATE teamcruz.alunos
		SET nome_completo   = COALESCE($2, nome_completo),
		    data_nascimento = COALESCE($3, data_nascimento),
		    genero          = COALESCE($4, genero),
		    telefone        = COALESCE($5, telefone),
		    email           = COALESCE($6, email),
		    responsavel_id  = COALESCE($7, responsavel_id),
		    status          = COALESCE($8, status),
		    atualizado_em   = now()
		WHERE id = $1
		RETURNING `+alunoColumns+`
	`, id, input.NomeCompleto, input.DataNascimento, input.Genero, input.Telefone, input.Email, input.ResponsavelID, input.Status).
		Scan(scanTargets(&a)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Aluno{}, ErrNotFound
	}
	return a, err
}

// SetStatus altera status sem tocar nos demais campos. Nunca apaga o registro.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE teamcruz.alunos
		SET status = $2, atualizado_em = now()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// EhResponsavel confere vínculo responsável -> dependente.
func (r *Repository) EhResponsavel(ctx context.Context, responsavelUsuarioID, dependenteID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var ok bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1
			FROM teamcruz.alunos dep
			JOIN teamcruz.alunos resp ON resp.id = dep.responsavel_id
			WHERE dep.id = $2 AND resp.usuario_id = $1
		)
	`, responsavelUsuarioID, dependenteID).Scan(&ok)
	return ok, err
}

func collectAlunos(rows pgx.Rows) ([]Aluno, error) {
	var alunos []Aluno
	for rows.Next() {
		var a Aluno
		if err := rows.Scan(scanTargets(&a)...); err != nil {
			return nil, err
		}
		alunos = append(alunos, a)
	}
	return alunos, rows.Err()
}

func scanTargets(a *Aluno) []any {
	return []any{
		&a.ID, &a.UsuarioID, &a.UnidadeID, &a.NomeCompleto, &a.CPF, &a.DataNascimento,
		&a.Genero, &a.Telefone, &a.Email, &a.ResponsavelID, &a.Status, &a.CriadoEm, &a.AtualizadoEm,
	}
}
