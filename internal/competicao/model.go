package competicao

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("competição não encontrada")
	ErrResultadoNotFound  = errors.New("resultado não encontrado")
	ErrNomeObrigatorio    = errors.New("nome da competição é obrigatório")
	ErrDataObrigatoria    = errors.New("data da competição é obrigatória")
	ErrColocacaoInvalida  = errors.New("colocação deve ser maior que zero")
	ErrPesoInvalido       = errors.New("peso deve ser maior que zero")
	ErrResultadoDuplicado = errors.New("aluno já possui resultado nesta competição")
)

// Competicao é um campeonato do qual a equipe participa.
type Competicao struct {
	ID           uuid.UUID `json:"id"`
	UnidadeID    uuid.UUID `json:"unidade_id"`
	Nome         string    `json:"nome"`
	Local        *string   `json:"local,omitempty"`
	Data         time.Time `json:"data"`
	Observacao   *string   `json:"observacao,omitempty"`
	CriadoEm     time.Time `json:"criado_em"`
	AtualizadoEm time.Time `json:"atualizado_em"`
}

// AlunoCompeticao é o resultado de um aluno em uma competição.
type AlunoCompeticao struct {
	ID           uuid.UUID `json:"id"`
	CompeticaoID uuid.UUID `json:"competicao_id"`
	AlunoID      uuid.UUID `json:"aluno_id"`
	Categoria    *string   `json:"categoria,omitempty"`
	Peso         *float64  `json:"peso,omitempty"`
	Colocacao    *int      `json:"colocacao,omitempty"`
	CriadoEm     time.Time `json:"criado_em"`
}

// ResultadoDoAluno agrega o resultado ao cabeçalho da competição.
type ResultadoDoAluno struct {
	AlunoCompeticao
	CompeticaoNome string    `json:"competicao_nome"`
	CompeticaoData time.Time `json:"competicao_data"`
}
