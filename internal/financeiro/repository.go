package financeiro

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 3 * time.Second

// Repository fornece acesso aos dados financeiros.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const planoColumns = `id, unidade_id, nome, valor, duracao_meses, max_alunos, ativo, criado_em`

func scanPlano(row pgx.Row) (Plano, error) {
	var p Plano
	err := row.Scan(&p.ID, &p.UnidadeID, &p.Nome, &p.Valor, &p.DuracaoMeses, &p.MaxAlunos, &p.Ativo, &p.CriadoEm)
	if errors.Is(err, pgx.ErrNoRows) {
		return Plano{}, ErrPlanoNaoEncontrado
	}
	return p, err
}

func (r *Repository) GetPlano(ctx context.Context, id uuid.UUID) (Plano, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanPlano(r.db.QueryRow(ctx, `
		SELECT `+planoColumns+` FROM teamcruz.planos WHERE id = $1
	`, id))
}

func (r *Repository) ListPlanos(ctx context.Context, unidadeID uuid.UUID, somenteAtivos bool) ([]Plano, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+planoColumns+`
		FROM teamcruz.planos
		WHERE unidade_id = $1 AND ($2 = false OR ativo = true)
		ORDER BY nome
	`, unidadeID, somenteAtivos)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var planos []Plano
	for rows.Next() {
		p, err := scanPlano(rows)
		if err != nil {
			return nil, err
		}
		planos = append(planos, p)
	}
	return planos, rows.Err()
}

func (r *Repository) InsertPlano(ctx context.Context, p Plano) (Plano, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanPlano(r.db.QueryRow(ctx, `
		INSERT INTO teamcruz.planos (unidade_id, nome, valor, duracao_meses, max_alunos, ativo)
		VALUES ($1,$2,$3,$4,$5,true)
		RETURNING `+planoColumns+`
	`, p.UnidadeID, p.Nome, p.Valor, p.DuracaoMeses, p.MaxAlunos))
}

const assinaturaColumns = `id, aluno_id, plano_id, unidade_id, status, metodo_pagamento, valor, data_inicio, data_fim, proxima_cobranca, dia_vencimento, cancelado_por, cancelado_em, motivo_cancelamento, criado_em, atualizado_em`

func scanAssinatura(row pgx.Row) (Assinatura, error) {
	var a Assinatura
	err := row.Scan(&a.ID, &a.AlunoID, &a.PlanoID, &a.UnidadeID, &a.Status, &a.MetodoPagamento, &a.Valor,
		&a.DataInicio, &a.DataFim, &a.ProximaCobranca, &a.DiaVencimento,
		&a.CanceladoPor, &a.CanceladoEm, &a.MotivoCancelamento, &a.CriadoEm, &a.AtualizadoEm)
	if errors.Is(err, pgx.ErrNoRows) {
		return Assinatura{}, ErrAssinaturaNaoEncontrada
	}
	return a, err
}

func (r *Repository) GetAssinatura(ctx context.Context, id uuid.UUID) (Assinatura, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanAssinatura(r.db.QueryRow(ctx, `
		SELECT `+assinaturaColumns+` FROM teamcruz.assinaturas WHERE id = $1
	`, id))
}

func (r *Repository) ExisteAtivaDoAluno(ctx context.Context, alunoID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var existe bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM teamcruz.assinaturas WHERE aluno_id = $1 AND status = 'ATIVA')
	`, alunoID).Scan(&existe)
	return existe, err
}

func (r *Repository) CountAtivasDoPlano(ctx context.Context, planoID uuid.UUID) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM teamcruz.assinaturas WHERE plano_id = $1 AND status = 'ATIVA'
	`, planoID).Scan(&n)
	return n, err
}

func (r *Repository) AlunoExiste(ctx context.Context, alunoID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var existe bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM teamcruz.alunos WHERE id = $1)
	`, alunoID).Scan(&existe)
	return existe, err
}

func (r *Repository) InsertAssinatura(ctx context.Context, a Assinatura) (Assinatura, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanAssinatura(r.db.QueryRow(ctx, `
		INSERT INTO teamcruz.assinaturas
			(aluno_id, plano_id, unidade_id, status, metodo_pagamento, valor, data_inicio, data_fim, proxima_cobranca, dia_vencimento)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING `+assinaturaColumns+`
	`, a.AlunoID, a.PlanoID, a.UnidadeID, a.Status, a.MetodoPagamento, a.Valor, a.DataInicio, a.DataFim, a.ProximaCobranca, a.DiaVencimento))
}

// UpdateAssinatura persiste os campos mutáveis do ciclo de vida.
func (r *Repository) UpdateAssinatura(ctx context.Context, a Assinatura) (Assinatura, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanAssinatura(r.db.QueryRow(ctx, `
		UPDATE teamcruz.assinaturas
		SET status = $2, data_fim = $3, proxima_cobranca = $4,
		    cancelado_por = $5, cancelado_em = $6, motivo_cancelamento = $7,
		    atualizado_em = now()
		WHERE id = $1
		RETURNING `+assinaturaColumns+`
	`, a.ID, a.Status, a.DataFim, a.ProximaCobranca, a.CanceladoPor, a.CanceladoEm, a.MotivoCancelamento))
}

// ExpirarVencidas marca ATIVA com data_fim passada como EXPIRADA.
func (r *Repository) ExpirarVencidas(ctx context.Context, hoje time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE teamcruz.assinaturas
		SET status = 'EXPIRADA', atualizado_em = now()
		WHERE status = 'ATIVA' AND data_fim < $1
	`, hoje)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) ListAssinaturas(ctx context.Context, unidadeID uuid.UUID, status string, limit, offset int) ([]Assinatura, int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM teamcruz.assinaturas
		WHERE unidade_id = $1 AND ($2 = '' OR status = $2)
	`, unidadeID, status).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+assinaturaColumns+`
		FROM teamcruz.assinaturas
		WHERE unidade_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY criado_em DESC
		LIMIT $3 OFFSET $4
	`, unidadeID, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var assinaturas []Assinatura
	for rows.Next() {
		a, err := scanAssinatura(rows)
		if err != nil {
			return nil, 0, err
		}
		assinaturas = append(assinaturas, a)
	}
	return assinaturas, total, rows.Err()
}

func (r *Repository) ListByAluno(ctx context.Context, alunoID uuid.UUID) ([]Assinatura, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+assinaturaColumns+`
		FROM teamcruz.assinaturas
		WHERE aluno_id = $1
		ORDER BY criado_em DESC
	`, alunoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assinaturas []Assinatura
	for rows.Next() {
		a, err := scanAssinatura(rows)
		if err != nil {
			return nil, err
		}
		assinaturas = append(assinaturas, a)
	}
	return assinaturas, rows.Err()
}
