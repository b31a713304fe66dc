package convenio

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 3 * time.Second

// Repository fornece acesso aos dados de convênios.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const convenioColumns = `id, codigo, nome, api_url, percentual_repasse_padrao, ativo, criado_em`

func scanConvenio(row pgx.Row) (Convenio, error) {
	var c Convenio
	err := row.Scan(&c.ID, &c.Codigo, &c.Nome, &c.APIURL, &c.PercentualRepassePadrao, &c.Ativo, &c.CriadoEm)
	if errors.Is(err, pgx.ErrNoRows) {
		return Convenio{}, ErrConvenioNaoEncontrado
	}
	return c, err
}

func (r *Repository) ListConvenios(ctx context.Context) ([]Convenio, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+convenioColumns+`
		FROM teamcruz.convenios
		WHERE ativo = true
		ORDER BY nome
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convenios []Convenio
	for rows.Next() {
		c, err := scanConvenio(rows)
		if err != nil {
			return nil, err
		}
		convenios = append(convenios, c)
	}
	return convenios, rows.Err()
}

func (r *Repository) GetConvenioByCodigo(ctx context.Context, codigo string) (Convenio, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanConvenio(r.db.QueryRow(ctx, `
		SELECT `+convenioColumns+` FROM teamcruz.convenios WHERE codigo = $1 AND ativo = true
	`, codigo))
}

// HabilitadoNaUnidade confere se a unidade aceita o convênio.
func (r *Repository) HabilitadoNaUnidade(ctx context.Context, unidadeID, convenioID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var ok bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM teamcruz.unidade_convenios
			WHERE unidade_id = $1 AND convenio_id = $2 AND ativo = true
		)
	`, unidadeID, convenioID).Scan(&ok)
	return ok, err
}

// HabilitarNaUnidade liga (ou religa) o convênio na unidade.
func (r *Repository) HabilitarNaUnidade(ctx context.Context, uc UnidadeConvenio) (UnidadeConvenio, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO teamcruz.unidade_convenios (unidade_id, convenio_id, percentual_repasse, ativo)
		VALUES ($1,$2,$3,true)
		ON CONFLICT (unidade_id, convenio_id)
		DO UPDATE SET percentual_repasse = EXCLUDED.percentual_repasse, ativo = true
		RETURNING id, unidade_id, convenio_id, percentual_repasse, ativo
	`, uc.UnidadeID, uc.ConvenioID, uc.PercentualRepasse).
		Scan(&uc.ID, &uc.UnidadeID, &uc.ConvenioID, &uc.PercentualRepasse, &uc.Ativo)
	return uc, err
}

func (r *Repository) DesabilitarNaUnidade(ctx context.Context, unidadeID, convenioID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE teamcruz.unidade_convenios SET ativo = false
		WHERE unidade_id = $1 AND convenio_id = $2
	`, unidadeID, convenioID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConvenioNaoEncontrado
	}
	return nil
}

// ExisteConvenioUserID confere duplicidade do identificador do parceiro.
func (r *Repository) ExisteConvenioUserID(ctx context.Context, convenioID uuid.UUID, convenioUserID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var existe bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM teamcruz.aluno_convenios
			WHERE convenio_id = $1 AND convenio_user_id = $2 AND status <> 'CANCELADO'
		)
	`, convenioID, convenioUserID).Scan(&existe)
	return existe, err
}

const alunoConvenioColumns = `id, aluno_id, convenio_id, unidade_id, convenio_user_id, status, data_ativacao, data_cancelamento, metadata`

func scanAlunoConvenio(row pgx.Row) (AlunoConvenio, error) {
	var ac AlunoConvenio
	var metadata []byte
	err := row.Scan(&ac.ID, &ac.AlunoID, &ac.ConvenioID, &ac.UnidadeID, &ac.ConvenioUserID, &ac.Status, &ac.DataAtivacao, &ac.DataCancelamento, &metadata)
	if errors.Is(err, pgx.ErrNoRows) {
		return AlunoConvenio{}, ErrVinculoNaoEncontrado
	}
	if err != nil {
		return AlunoConvenio{}, err
	}
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &ac.Metadata)
	}
	return ac, nil
}

func (r *Repository) InsertAlunoConvenio(ctx context.Context, ac AlunoConvenio) (AlunoConvenio, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	metadata, err := json.Marshal(ac.Metadata)
	if err != nil {
		return AlunoConvenio{}, err
	}

	return scanAlunoConvenio(r.db.QueryRow(ctx, `
		INSERT INTO teamcruz.aluno_convenios
			(aluno_id, convenio_id, unidade_id, convenio_user_id, status, data_ativacao, metadata)
		VALUES ($1,$2,$3,$4,'ATIVO',$5,$6)
		RETURNING `+alunoConvenioColumns+`
	`, ac.AlunoID, ac.ConvenioID, ac.UnidadeID, ac.ConvenioUserID, ac.DataAtivacao, metadata))
}

func (r *Repository) GetAlunoConvenio(ctx context.Context, id uuid.UUID) (AlunoConvenio, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanAlunoConvenio(r.db.QueryRow(ctx, `
		SELECT `+alunoConvenioColumns+` FROM teamcruz.aluno_convenios WHERE id = $1
	`, id))
}

// GetVinculoAtivoDoAluno devolve o vínculo ativo do aluno, se houver.
func (r *Repository) GetVinculoAtivoDoAluno(ctx context.Context, alunoID uuid.UUID) (AlunoConvenio, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanAlunoConvenio(r.db.QueryRow(ctx, `
		SELECT `+alunoConvenioColumns+`
		FROM teamcruz.aluno_convenios
		WHERE aluno_id = $1 AND status = 'ATIVO'
		ORDER BY data_ativacao DESC
		LIMIT 1
	`, alunoID))
}

func (r *Repository) UpdateStatusAlunoConvenio(ctx context.Context, id uuid.UUID, status string, cancelamento *time.Time) (AlunoConvenio, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanAlunoConvenio(r.db.QueryRow(ctx, `
		UPDATE teamcruz.aluno_convenios
		SET status = $2, data_cancelamento = COALESCE($3, data_cancelamento)
		WHERE id = $1
		RETURNING `+alunoConvenioColumns+`
	`, id, status, cancelamento))
}

func (r *Repository) ListAlunoConvenios(ctx context.Context, unidadeID *uuid.UUID, status string, limit, offset int) ([]AlunoConvenio, int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM teamcruz.aluno_convenios
		WHERE ($1::uuid IS NULL OR unidade_id = $1) AND ($2 = '' OR status = $2)
	`, unidadeID, status).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+alunoConvenioColumns+`
		FROM teamcruz.aluno_convenios
		WHERE ($1::uuid IS NULL OR unidade_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY data_ativacao DESC
		LIMIT $3 OFFSET $4
	`, unidadeID, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var vinculos []AlunoConvenio
	for rows.Next() {
		ac, err := scanAlunoConvenio(rows)
		if err != nil {
			return nil, 0, err
		}
		vinculos = append(vinculos, ac)
	}
	return vinculos, total, rows.Err()
}

const eventoColumns = `id, aluno_convenio_id, presenca_id, tipo, enviado, data_envio, response_status, tentativas, erro, criado_em`

func scanEvento(row pgx.Row) (EventoConvenio, error) {
	var e EventoConvenio
	err := row.Scan(&e.ID, &e.AlunoConvenioID, &e.PresencaID, &e.Tipo, &e.Enviado, &e.DataEnvio, &e.ResponseStatus, &e.Tentativas, &e.Erro, &e.CriadoEm)
	return e, err
}

func (r *Repository) InsertEvento(ctx context.Context, e EventoConvenio) (EventoConvenio, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanEvento(r.db.QueryRow(ctx, `
		INSERT INTO teamcruz.evento_convenios (aluno_convenio_id, presenca_id, tipo)
		VALUES ($1,$2,$3)
		RETURNING `+eventoColumns+`
	`, e.AlunoConvenioID, e.PresencaID, e.Tipo))
}

func (r *Repository) ListEventos(ctx context.Context, alunoConvenioID *uuid.UUID, limit, offset int) ([]EventoConvenio, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+eventoColumns+`
		FROM teamcruz.evento_convenios
		WHERE ($1::uuid IS NULL OR aluno_convenio_id = $1)
		ORDER BY criado_em DESC
		LIMIT $2 OFFSET $3
	`, alunoConvenioID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var eventos []EventoConvenio
	for rows.Next() {
		e, err := scanEvento(rows)
		if err != nil {
			return nil, err
		}
		eventos = append(eventos, e)
	}
	return eventos, rows.Err()
}

// ListEventosPendentes junta eventos não enviados com o destino do parceiro.
// Convênios sem api_url nunca entram na fila.
func (r *Repository) ListEventosPendentes(ctx context.Context, maxTentativas, limit int) ([]EventoPendente, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, `
		SELECT e.id, e.aluno_convenio_id, e.presenca_id, e.tipo, e.enviado, e.data_envio,
		       e.response_status, e.tentativas, e.erro, e.criado_em,
		       c.api_url, c.codigo, ac.convenio_user_id
		FROM teamcruz.evento_convenios e
		JOIN teamcruz.aluno_convenios ac ON ac.id = e.aluno_convenio_id
		JOIN teamcruz.convenios c ON c.id = ac.convenio_id
		WHERE e.enviado = false AND e.tentativas < $1 AND c.api_url IS NOT NULL
		ORDER BY e.criado_em
		LIMIT $2
	`, maxTentativas, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pendentes []EventoPendente
	for rows.Next() {
		var p EventoPendente
		if err := rows.Scan(
			&p.Evento.ID, &p.Evento.AlunoConvenioID, &p.Evento.PresencaID, &p.Evento.Tipo, &p.Evento.Enviado, &p.Evento.DataEnvio,
			&p.Evento.ResponseStatus, &p.Evento.Tentativas, &p.Evento.Erro, &p.Evento.CriadoEm,
			&p.APIURL, &p.ConvenioCodigo, &p.ConvenioUserID,
		); err != nil {
			return nil, err
		}
		pendentes = append(pendentes, p)
	}
	return pendentes, rows.Err()
}

// MarcarEnviado grava o sucesso do envio.
func (r *Repository) MarcarEnviado(ctx context.Context, eventoID uuid.UUID, responseStatus int, quando time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE teamcruz.evento_convenios
		SET enviado = true, data_envio = $2, response_status = $3, erro = NULL
		WHERE id = $1
	`, eventoID, quando, responseStatus)
	return err
}

// RegistrarFalha incrementa tentativas e guarda o erro e o status (se houver).
func (r *Repository) RegistrarFalha(ctx context.Context, eventoID uuid.UUID, responseStatus *int, erro string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE teamcruz.evento_convenios
		SET tentativas = tentativas + 1, response_status = $2, erro = $3
		WHERE id = $1
	`, eventoID, responseStatus, erro)
	return err
}
