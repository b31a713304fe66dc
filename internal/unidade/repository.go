package unidade

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 3 * time.Second

// Repository provê acesso ao armazenamento de unidades.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria um novo repositório de unidades.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const unidadeColumns = `id, nome, slug, cnpj, telefone, endereco, config, ativo, criado_em, atualizado_em`

// GetByID busca unidade pelo identificador.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Unidade, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
        SELECT `+unidadeColumns+`
        FROM teamcruz.unidades
        WHERE id = $1
    `, id)
	return scanUnidade(row)
}

// GetBySlug busca unidade pelo slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Unidade, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
        SELECT `+unidadeColumns+`
        FROM teamcruz.unidades
        WHERE slug = $1
    `, strings.ToLower(strings.TrimSpace(slug)))
	return scanUnidade(row)
}

// List devolve todas as unidades ordenadas por nome.
func (r *Repository) List(ctx context.Context, somenteAtivas bool) ([]Unidade, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
        SELECT `+unidadeColumns+`
        FROM teamcruz.unidades
        WHERE ($1 = FALSE OR ativo = TRUE)
        ORDER BY nome
    `, somenteAtivas)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var unidades []Unidade
	for rows.Next() {
		u, err := scanUnidade(rows)
		if err != nil {
			return nil, err
		}
		unidades = append(unidades, *u)
	}
	return unidades, rows.Err()
}

// Create insere uma nova unidade e devolve os dados persistidos.
func (r *Repository) Create(ctx context.Context, input CreateUnidadeInput) (*Unidade, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	configJSON, err := jsonMarshalMap(input.Config)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
        INSERT INTO teamcruz.unidades (nome, slug, cnpj, telefone, endereco, config, ativo)
        VALUES ($1, $2, $3, $4, $5, $6, TRUE)
        RETURNING `+unidadeColumns+`
    `,
		strings.TrimSpace(input.Nome),
		strings.TrimSpace(strings.ToLower(input.Slug)),
		input.CNPJ,
		input.Telefone,
		input.Endereco,
		configJSON,
	)
	return scanUnidade(row)
}

// UpdateConfig atualiza apenas o campo config e o timestamp.
func (r *Repository) UpdateConfig(ctx context.Context, unidadeID uuid.UUID, config map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	configJSON, err := jsonMarshalMap(config)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
        UPDATE teamcruz.unidades
        SET config = $2,
            atualizado_em = now()
        WHERE id = $1
    `, unidadeID, configJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUnidade(row pgx.Row) (*Unidade, error) {
	var (
		u         Unidade
		configRaw []byte
	)

	if err := row.Scan(&u.ID, &u.Nome, &u.Slug, &u.CNPJ, &u.Telefone, &u.Endereco, &configRaw, &u.Ativo, &u.CriadoEm, &u.AtualizadoEm); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	config, err := decodeJSONMap(configRaw)
	if err != nil {
		return nil, err
	}
	u.Config = config

	return &u, nil
}

func decodeJSONMap(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return map[string]any{}, nil
	}
	return result, nil
}

func jsonMarshalMap(m map[string]any) ([]byte, error) {
	if m == nil {
		m = map[string]any{}
	}
	return json.Marshal(m)
}
