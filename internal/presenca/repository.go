package presenca

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 3 * time.Second

// Repository fornece acesso aos dados de aulas e presenças.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const aulaColumns = `id, unidade_id, modalidade, dia_semana, to_char(hora_inicio, 'HH24:MI'), to_char(hora_fim, 'HH24:MI'), ativo`

func scanAula(row pgx.Row) (Aula, error) {
	var a Aula
	err := row.Scan(&a.ID, &a.UnidadeID, &a.Modalidade, &a.DiaSemana, &a.HoraInicio, &a.HoraFim, &a.Ativo)
	if errors.Is(err, pgx.ErrNoRows) {
		return Aula{}, ErrAulaNaoEncontrada
	}
	return a, err
}

func (r *Repository) GetAula(ctx context.Context, id uuid.UUID) (Aula, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanAula(r.db.QueryRow(ctx, `
		SELECT `+aulaColumns+`
		FROM teamcruz.aulas
		WHERE id = $1
	`, id))
}

// ListAulasDoDia lista aulas ativas da unidade no dia da semana informado.
func (r *Repository) ListAulasDoDia(ctx context.Context, unidadeID uuid.UUID, diaSemana int) ([]Aula, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+aulaColumns+`
		FROM teamcruz.aulas
		WHERE unidade_id = $1 AND dia_semana = $2 AND ativo = true
		ORDER BY hora_inicio
	`, unidadeID, diaSemana)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aulas []Aula
	for rows.Next() {
		a, err := scanAula(rows)
		if err != nil {
			return nil, err
		}
		aulas = append(aulas, a)
	}
	return aulas, rows.Err()
}

const presencaColumns = `id, aluno_id, aula_id, unidade_id, data_presenca, hora_checkin, metodo, status, observacoes, criado_em`

// InsertPresenca grava o check-in. Conflito em (aluno, aula, data) não insere
// e devolve inserted=false.
func (r *Repository) InsertPresenca(ctx context.Context, p Presenca) (Presenca, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO teamcruz.presencas
			(aluno_id, aula_id, unidade_id, data_presenca, hora_checkin, metodo, status, observacoes)
		VALUES ($1,$2,$3,$4,$5,$6,'PRESENTE',$7)
		ON CONFLICT (aluno_id, aula_id, data_presenca) DO NOTHING
		RETURNING `+presencaColumns+`
	`, p.AlunoID, p.AulaID, p.UnidadeID, p.DataPresenca, p.HoraCheckin, p.Metodo, p.Observacoes).
		Scan(&p.ID, &p.AlunoID, &p.AulaID, &p.UnidadeID, &p.DataPresenca, &p.HoraCheckin, &p.Metodo, &p.Status, &p.Observacoes, &p.CriadoEm)
	if errors.Is(err, pgx.ErrNoRows) {
		return Presenca{}, false, nil
	}
	if err != nil {
		return Presenca{}, false, err
	}
	return p, true, nil
}

// ListHistorico pagina presenças do aluno, mais recentes primeiro.
func (r *Repository) ListHistorico(ctx context.Context, alunoID uuid.UUID, limit, offset int) ([]Presenca, int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM teamcruz.presencas WHERE aluno_id = $1
	`, alunoID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+presencaColumns+`
		FROM teamcruz.presencas
		WHERE aluno_id = $1
		ORDER BY hora_checkin DESC
		LIMIT $2 OFFSET $3
	`, alunoID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var presencas []Presenca
	for rows.Next() {
		var p Presenca
		if err := rows.Scan(&p.ID, &p.AlunoID, &p.AulaID, &p.UnidadeID, &p.DataPresenca, &p.HoraCheckin, &p.Metodo, &p.Status, &p.Observacoes, &p.CriadoEm); err != nil {
			return nil, 0, err
		}
		presencas = append(presencas, p)
	}
	return presencas, total, rows.Err()
}

// CountNoPeriodo conta presenças do aluno no intervalo [inicio, fim).
func (r *Repository) CountNoPeriodo(ctx context.Context, alunoID uuid.UUID, inicio, fim time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM teamcruz.presencas
		WHERE aluno_id = $1 AND data_presenca >= $2 AND data_presenca < $3
	`, alunoID, inicio, fim).Scan(&n)
	return n, err
}

// DatasRecentes lista as últimas datas distintas com presença (desc).
func (r *Repository) DatasRecentes(ctx context.Context, alunoID uuid.UUID, limit int) ([]time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT data_presenca
		FROM teamcruz.presencas
		WHERE aluno_id = $1
		ORDER BY data_presenca DESC
		LIMIT $2
	`, alunoID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var datas []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		datas = append(datas, d)
	}
	return datas, rows.Err()
}

// UltimoCheckin devolve o horário do check-in mais recente, se houver.
func (r *Repository) UltimoCheckin(ctx context.Context, alunoID uuid.UUID) (*time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var t time.Time
	err := r.db.QueryRow(ctx, `
		SELECT hora_checkin
		FROM teamcruz.presencas
		WHERE aluno_id = $1
		ORDER BY hora_checkin DESC
		LIMIT 1
	`, alunoID).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
