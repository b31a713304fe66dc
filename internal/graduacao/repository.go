package graduacao

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 3 * time.Second

// Repository fornece acesso aos dados de graduação.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const faixaDefColumns = `id, codigo, nome_exibicao, cor_hex, ordem, graus_max, aulas_por_grau, categoria, ativo`

func scanFaixaDef(row pgx.Row) (FaixaDef, error) {
	var f FaixaDef
	err := row.Scan(&f.ID, &f.Codigo, &f.NomeExibicao, &f.CorHex, &f.Ordem, &f.GrausMax, &f.AulasPorGrau, &f.Categoria, &f.Ativo)
	if errors.Is(err, pgx.ErrNoRows) {
		return FaixaDef{}, ErrFaixaNaoEncontrada
	}
	return f, err
}

func (r *Repository) ListFaixaDefs(ctx context.Context, categoria string) ([]FaixaDef, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+faixaDefColumns+`
		FROM teamcruz.faixa_defs
		WHERE ativo = true AND ($1 = '' OR categoria = $1)
		ORDER BY ordem
	`, categoria)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []FaixaDef
	for rows.Next() {
		f, err := scanFaixaDef(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, f)
	}
	return defs, rows.Err()
}

func (r *Repository) GetFaixaDefByID(ctx context.Context, id uuid.UUID) (FaixaDef, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanFaixaDef(r.db.QueryRow(ctx, `
		SELECT `+faixaDefColumns+` FROM teamcruz.faixa_defs WHERE id = $1
	`, id))
}

func (r *Repository) GetFaixaDefByCodigo(ctx context.Context, codigo string) (FaixaDef, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanFaixaDef(r.db.QueryRow(ctx, `
		SELECT `+faixaDefColumns+` FROM teamcruz.faixa_defs WHERE codigo = $1
	`, codigo))
}

const alunoFaixaColumns = `id, aluno_id, faixa_def_id, ativa, dt_inicio, dt_fim, graus_atual, presencas_no_ciclo, presencas_total_fx`

func scanAlunoFaixa(row pgx.Row) (AlunoFaixa, error) {
	var af AlunoFaixa
	err := row.Scan(&af.ID, &af.AlunoID, &af.FaixaDefID, &af.Ativa, &af.DtInicio, &af.DtFim, &af.GrausAtual, &af.PresencasNoCiclo, &af.PresencasTotalFx)
	if errors.Is(err, pgx.ErrNoRows) {
		return AlunoFaixa{}, ErrAlunoSemFaixa
	}
	return af, err
}

// GetFaixaAtiva retorna a faixa vigente do aluno.
func (r *Repository) GetFaixaAtiva(ctx context.Context, alunoID uuid.UUID) (AlunoFaixa, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanAlunoFaixa(r.db.QueryRow(ctx, `
		SELECT `+alunoFaixaColumns+`
		FROM teamcruz.aluno_faixas
		WHERE aluno_id = $1 AND ativa = true
	`, alunoID))
}

// GetFaixaAtivaForUpdate trava a linha da faixa vigente dentro da transação.
func (r *Repository) GetFaixaAtivaForUpdate(ctx context.Context, tx pgx.Tx, alunoID uuid.UUID) (AlunoFaixa, error) {
	return scanAlunoFaixa(tx.QueryRow(ctx, `
		SELECT `+alunoFaixaColumns+`
		FROM teamcruz.aluno_faixas
		WHERE aluno_id = $1 AND ativa = true
		FOR UPDATE
	`, alunoID))
}

func (r *Repository) CountFaixasAbertas(ctx context.Context, alunoID uuid.UUID, excluirID *uuid.UUID) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM teamcruz.aluno_faixas
		WHERE aluno_id = $1 AND dt_fim IS NULL
		  AND ($2::uuid IS NULL OR id <> $2)
	`, alunoID, excluirID).Scan(&n)
	return n, err
}

func (r *Repository) InsertAlunoFaixa(ctx context.Context, tx pgx.Tx, af AlunoFaixa) (AlunoFaixa, error) {
	err := tx.QueryRow(ctx, `
		INSERT INTO teamcruz.aluno_faixas
			(aluno_id, faixa_def_id, ativa, dt_inicio, dt_fim, graus_atual, presencas_no_ciclo, presencas_total_fx)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+alunoFaixaColumns+`
	`, af.AlunoID, af.FaixaDefID, af.Ativa, af.DtInicio, af.DtFim, af.GrausAtual, af.PresencasNoCiclo, af.PresencasTotalFx).
		Scan(&af.ID, &af.AlunoID, &af.FaixaDefID, &af.Ativa, &af.DtInicio, &af.DtFim, &af.GrausAtual, &af.PresencasNoCiclo, &af.PresencasTotalFx)
	return af, err
}

// EncerrarFaixa fecha a faixa vigente (dt_fim preenchida, ativa=false).
func (r *Repository) EncerrarFaixa(ctx context.Context, tx pgx.Tx, alunoFaixaID uuid.UUID, fim time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE teamcruz.aluno_faixas
		SET ativa = false, dt_fim = $2
		WHERE id = $1
	`, alunoFaixaID, fim)
	return err
}

// ConcederGrau incrementa o grau e zera o ciclo de presenças.
func (r *Repository) ConcederGrau(ctx context.Context, tx pgx.Tx, alunoFaixaID uuid.UUID) (AlunoFaixa, error) {
	var af AlunoFaixa
	err := tx.QueryRow(ctx, `
		UPDATE teamcruz.aluno_faixas
		SET graus_atual = graus_atual + 1, presencas_no_ciclo = 0
		WHERE id = $1
		RETURNING `+alunoFaixaColumns+`
	`, alunoFaixaID).
		Scan(&af.ID, &af.AlunoID, &af.FaixaDefID, &af.Ativa, &af.DtInicio, &af.DtFim, &af.GrausAtual, &af.PresencasNoCiclo, &af.PresencasTotalFx)
	return af, err
}

// IncrementarPresenca soma uma presença ao ciclo e ao total da faixa.
func (r *Repository) IncrementarPresenca(ctx context.Context, tx pgx.Tx, alunoFaixaID uuid.UUID) (AlunoFaixa, error) {
	var af AlunoFaixa
	err := tx.QueryRow(ctx, `
		UPDATE teamcruz.aluno_faixas
		SET presencas_no_ciclo = presencas_no_ciclo + 1,
		    presencas_total_fx = presencas_total_fx + 1
		WHERE id = $1
		RETURNING `+alunoFaixaColumns+`
	`, alunoFaixaID).
		Scan(&af.ID, &af.AlunoID, &af.FaixaDefID, &af.Ativa, &af.DtInicio, &af.DtFim, &af.GrausAtual, &af.PresencasNoCiclo, &af.PresencasTotalFx)
	return af, err
}

const grauColumns = `id, aluno_faixa_id, grau_num, origem, observacao, concedido_por, dt_concessao`

func (r *Repository) InsertGrau(ctx context.Context, tx pgx.Tx, g GrauHistorico) (GrauHistorico, error) {
	err := tx.QueryRow(ctx, `
		INSERT INTO teamcruz.aluno_faixa_graus
			(aluno_faixa_id, grau_num, origem, observacao, concedido_por, dt_concessao)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING `+grauColumns+`
	`, g.AlunoFaixaID, g.GrauNum, g.Origem, g.Observacao, g.ConcedidoPor, g.DtConcessao).
		Scan(&g.ID, &g.AlunoFaixaID, &g.GrauNum, &g.Origem, &g.Observacao, &g.ConcedidoPor, &g.DtConcessao)
	return g, err
}

// ListGrausByAluno lista todos os graus do aluno, mais recentes primeiro.
func (r *Repository) ListGrausByAluno(ctx context.Context, alunoID uuid.UUID) ([]GrauHistorico, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT g.id, g.aluno_faixa_id, g.grau_num, g.origem, g.observacao, g.concedido_por, g.dt_concessao
		FROM teamcruz.aluno_faixa_graus g
		JOIN teamcruz.aluno_faixas af ON af.id = g.aluno_faixa_id
		WHERE af.aluno_id = $1
		ORDER BY g.dt_concessao DESC
	`, alunoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var graus []GrauHistorico
	for rows.Next() {
		var g GrauHistorico
		if err := rows.Scan(&g.ID, &g.AlunoFaixaID, &g.GrauNum, &g.Origem, &g.Observacao, &g.ConcedidoPor, &g.DtConcessao); err != nil {
			return nil, err
		}
		graus = append(graus, g)
	}
	return graus, rows.Err()
}

const graduacaoColumns = `id, aluno_id, faixa_origem_id, faixa_destino_id, dt_inicio, dt_fim, evento, observacao, aprovado`

func scanGraduacao(row pgx.Row) (GraduacaoFaixa, error) {
	var g GraduacaoFaixa
	err := row.Scan(&g.ID, &g.AlunoID, &g.FaixaOrigemID, &g.FaixaDestinoID, &g.DtInicio, &g.DtFim, &g.Evento, &g.Observacao, &g.Aprovado)
	return g, err
}

func (r *Repository) ListGraduacoes(ctx context.Context, alunoID uuid.UUID) ([]GraduacaoFaixa, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+graduacaoColumns+`
		FROM teamcruz.aluno_graduacoes
		WHERE aluno_id = $1
		ORDER BY dt_inicio DESC
	`, alunoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grads []GraduacaoFaixa
	for rows.Next() {
		g, err := scanGraduacao(rows)
		if err != nil {
			return nil, err
		}
		grads = append(grads, g)
	}
	return grads, rows.Err()
}

// ExisteGraduacaoParaDestino confere promoção já registrada para a mesma faixa.
func (r *Repository) ExisteGraduacaoParaDestino(ctx context.Context, alunoID, faixaDestinoID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var existe bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM teamcruz.aluno_graduacoes
			WHERE aluno_id = $1 AND faixa_destino_id = $2 AND (dt_fim IS NULL OR aprovado = true)
		)
	`, alunoID, faixaDestinoID).Scan(&existe)
	return existe, err
}

func (r *Repository) InsertGraduacao(ctx context.Context, tx pgx.Tx, g GraduacaoFaixa) (GraduacaoFaixa, error) {
	return scanGraduacao(tx.QueryRow(ctx, `
		INSERT INTO teamcruz.aluno_graduacoes
			(aluno_id, faixa_origem_id, faixa_destino_id, dt_inicio, dt_fim, evento, observacao, aprovado)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+graduacaoColumns+`
	`, g.AlunoID, g.FaixaOrigemID, g.FaixaDestinoID, g.DtInicio, g.DtFim, g.Evento, g.Observacao, g.Aprovado))
}

// EncerrarGraduacaoAberta fecha o intervalo vigente do histórico de faixas.
func (r *Repository) EncerrarGraduacaoAberta(ctx context.Context, tx pgx.Tx, alunoID uuid.UUID, fim time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE teamcruz.aluno_graduacoes
		SET dt_fim = $2
		WHERE aluno_id = $1 AND dt_fim IS NULL
	`, alunoID, fim)
	return err
}

func (r *Repository) GetGraduacao(ctx context.Context, id uuid.UUID) (GraduacaoFaixa, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	g, err := scanGraduacao(r.db.QueryRow(ctx, `
		SELECT `+graduacaoColumns+`
		FROM teamcruz.aluno_graduacoes
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return GraduacaoFaixa{}, ErrFaixaNaoEncontrada
	}
	return g, err
}

func (r *Repository) UpdateGraduacao(ctx context.Context, g GraduacaoFaixa) (GraduacaoFaixa, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	atualizado, err := scanGraduacao(r.db.QueryRow(ctx, `
		UPDATE teamcruz.aluno_graduacoes
		SET faixa_destino_id = $2, dt_inicio = $3, dt_fim = $4, evento = $5, observacao = $6, aprovado = $7
		WHERE id = $1
		RETURNING `+graduacaoColumns+`
	`, g.ID, g.FaixaDestinoID, g.DtInicio, g.DtFim, g.Evento, g.Observacao, g.Aprovado))
	if errors.Is(err, pgx.ErrNoRows) {
		return GraduacaoFaixa{}, ErrFaixaNaoEncontrada
	}
	return atualizado, err
}

// GetUnidadeDoAluno resolve a unidade do aluno para aplicar overrides de regras.
func (r *Repository) GetUnidadeDoAluno(ctx context.Context, alunoID uuid.UUID) (uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var unidadeID uuid.UUID
	err := r.db.QueryRow(ctx, `
		SELECT unidade_id FROM teamcruz.alunos WHERE id = $1
	`, alunoID).Scan(&unidadeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, errors.New("aluno não encontrado")
	}
	return unidadeID, err
}

// ProximoGraduarRow combina aluno, faixa vigente e definição para o ranking.
type ProximoGraduarRow struct {
	Aluno        AlunoFaixa
	Def          FaixaDef
	NomeCompleto string
	UnidadeID    uuid.UUID
}

// FiltrosProximos restringe o ranking de próximos a graduar.
type FiltrosProximos struct {
	UnidadeID   *uuid.UUID
	Categoria   string
	FaixaCodigo string
}

// ListProximosGraduar ordena faixas ativas por presenças no ciclo.
func (r *Repository) ListProximosGraduar(ctx context.Context, f FiltrosProximos, limit, offset int) ([]ProximoGraduarRow, int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	const where = `
		FROM teamcruz.aluno_faixas af
		JOIN teamcruz.faixa_defs fd ON fd.id = af.faixa_def_id
		JOIN teamcruz.alunos a ON a.id = af.aluno_id
		WHERE af.ativa = true AND a.status = 'ATIVO'
		  AND ($1::uuid IS NULL OR a.unidade_id = $1)
		  AND ($2 = '' OR fd.categoria = $2)
		  AND ($3 = '' OR fd.codigo = $3)`

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*)`+where, f.UnidadeID, f.Categoria, f.FaixaCodigo).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT af.id, af.aluno_id, af.faixa_def_id, af.ativa, af.dt_inicio, af.dt_fim,
		       af.graus_atual, af.presencas_no_ciclo, af.presencas_total_fx,
		       fd.id, fd.codigo, fd.nome_exibicao, fd.cor_hex, fd.ordem, fd.graus_max, fd.aulas_por_grau, fd.categoria, fd.ativo,
		       a.nome_completo, a.unidade_id
		`+where+`
		ORDER BY af.presencas_no_ciclo DESC, a.nome_completo
		LIMIT $4 OFFSET $5
	`, f.UnidadeID, f.Categoria, f.FaixaCodigo, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []ProximoGraduarRow
	for rows.Next() {
		var row ProximoGraduarRow
		if err := rows.Scan(
			&row.Aluno.ID, &row.Aluno.AlunoID, &row.Aluno.FaixaDefID, &row.Aluno.Ativa, &row.Aluno.DtInicio, &row.Aluno.DtFim,
			&row.Aluno.GrausAtual, &row.Aluno.PresencasNoCiclo, &row.Aluno.PresencasTotalFx,
			&row.Def.ID, &row.Def.Codigo, &row.Def.NomeExibicao, &row.Def.CorHex, &row.Def.Ordem, &row.Def.GrausMax, &row.Def.AulasPorGrau, &row.Def.Categoria, &row.Def.Ativo,
			&row.NomeCompleto, &row.UnidadeID,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, row)
	}
	return out, total, rows.Err()
}
