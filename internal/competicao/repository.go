package competicao

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 3 * time.Second

const competicaoColumns = `id, unidade_id, nome, local, data, observacao, criado_em, atualizado_em`

const resultadoColumns = `id, competicao_id, aluno_id, categoria, peso, colocacao, criado_em`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, c Competicao) (Competicao, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := r.pool.QueryRow(ctx, `
		INSERT INTO teamcruz.competicoes (unidade_id, nome, local, data, observacao)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+competicaoColumns+`
	`, c.UnidadeID, c.Nome, c.Local, c.Data, c.Observacao).Scan(competicaoTargets(&c)...)
	return c, err
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Competicao, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var c Competicao
	err := r.pool.QueryRow(ctx, `
		SELECT `+competicaoColumns+`
		FROM teamcruz.competicoes
		WHERE id = $1
	`, id).Scan(competicaoTargets(&c)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Competicao{}, ErrNotFound
	}
	return c, err
}

func (r *Repository) List(ctx context.Context, unidadeID *uuid.UUID, apenasFuturas bool, ref time.Time, limit, offset int) ([]Competicao, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+competicaoColumns+`
		FROM teamcruz.competicoes
		WHERE ($1::uuid IS NULL OR unidade_id = $1)
		  AND (NOT $2 OR data >= $3)
		ORDER BY data DESC
		LIMIT $4 OFFSET $5
	`, unidadeID, apenasFuturas, ref, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Competicao
	for rows.Next() {
		var c Competicao
		if err := rows.Scan(competicaoTargets(&c)...); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) Update(ctx context.Context, c Competicao) (Competicao, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := r.pool.QueryRow(ctx, `
		UPDATE teamcruz.competicoes
		SET nome = $2, local = $3, data = $4, observacao = $5, atualizado_em = now()
		WHERE id = $1
		RETURNING `+competicaoColumns+`
	`, c.ID, c.Nome, c.Local, c.Data, c.Observacao).Scan(competicaoTargets(&c)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Competicao{}, ErrNotFound
	}
	return c, err
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
		DELETE FROM teamcruz.competicoes WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) InsertResultado(ctx context.Context, res AlunoCompeticao) (AlunoCompeticao, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := r.pool.QueryRow(ctx, `
		INSERT INTO teamcruz.aluno_competicoes (competicao_id, aluno_id, categoria, peso, colocacao)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (competicao_id, aluno_id) DO NOTHING
		RETURNING `+resultadoColumns+`
	`, res.CompeticaoID, res.AlunoID, res.Categoria, res.Peso, res.Colocacao).Scan(resultadoTargets(&res)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return AlunoCompeticao{}, false, nil
	}
	if err != nil {
		return AlunoCompeticao{}, false, err
	}
	return res, true, nil
}

func (r *Repository) UpdateResultado(ctx context.Context, res AlunoCompeticao) (AlunoCompeticao, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := r.pool.QueryRow(ctx, `
		UPDATE teamcruz.aluno_competicoes
		SET categoria = $2, peso = $3, colocacao = $4
		WHERE id = $1
		RETURNING `+resultadoColumns+`
	`, res.ID, res.Categoria, res.Peso, res.Colocacao).Scan(resultadoTargets(&res)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return AlunoCompeticao{}, ErrResultadoNotFound
	}
	return res, err
}

func (r *Repository) DeleteResultado(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
		DELETE FROM teamcruz.aluno_competicoes WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrResultadoNotFound
	}
	return nil
}

func (r *Repository) ListResultados(ctx context.Context, competicaoID uuid.UUID) ([]AlunoCompeticao, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+resultadoColumns+`
		FROM teamcruz.aluno_competicoes
		WHERE competicao_id = $1
		ORDER BY colocacao NULLS LAST, criado_em
	`, competicaoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AlunoCompeticao
	for rows.Next() {
		var res AlunoCompeticao
		if err := rows.Scan(resultadoTargets(&res)...); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *Repository) ListResultadosDoAluno(ctx context.Context, alunoID uuid.UUID) ([]ResultadoDoAluno, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT ac.id, ac.competicao_id, ac.aluno_id, ac.categoria, ac.peso, ac.colocacao,
		       ac.criado_em, c.nome, c.data
		FROM teamcruz.aluno_competicoes ac
		JOIN teamcruz.competicoes c ON c.id = ac.competicao_id
		WHERE ac.aluno_id = $1
		ORDER BY c.data DESC
	`, alunoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResultadoDoAluno
	for rows.Next() {
		var res ResultadoDoAluno
		if err := rows.Scan(&res.ID, &res.CompeticaoID, &res.AlunoID, &res.Categoria,
			&res.Peso, &res.Colocacao, &res.CriadoEm, &res.CompeticaoNome, &res.CompeticaoData); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func competicaoTargets(c *Competicao) []any {
	return []any{&c.ID, &c.UnidadeID, &c.Nome, &c.Local, &c.Data, &c.Observacao, &c.CriadoEm, &c.AtualizadoEm}
}

func resultadoTargets(res *AlunoCompeticao) []any {
	return []any{&res.ID, &res.CompeticaoID, &res.AlunoID, &res.Categoria, &res.Peso, &res.Colocacao, &res.CriadoEm}
}
