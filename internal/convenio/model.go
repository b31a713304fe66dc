package convenio

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status do vínculo aluno-convênio.
const (
	StatusAtivo     = "ATIVO"
	StatusPausado   = "PAUSADO"
	StatusCancelado = "CANCELADO"
	StatusExpirado  = "EXPIRADO"
)

// Tipos de evento enviados ao parceiro.
const (
	EventoCheckin      = "check_in"
	EventoCheckout     = "check_out"
	EventoCancelamento = "cancelamento"
)

var (
	// ErrConvenioNaoEncontrado indica convênio inexistente.
	ErrConvenioNaoEncontrado = errors.New("convênio não encontrado")
	// ErrNaoHabilitado indica convênio não habilitado na unidade.
	ErrNaoHabilitado = errors.New("convênio não habilitado nesta unidade")
	// ErrUsuarioDuplicado indica identificador do parceiro já vinculado.
	ErrUsuarioDuplicado = errors.New("identificador do convênio já vinculado a outro aluno")
	// ErrVinculoNaoEncontrado indica vínculo aluno-convênio inexistente.
	ErrVinculoNaoEncontrado = errors.New("vínculo de convênio não encontrado")
	// ErrTransicaoInvalida indica mudança de status não permitida.
	ErrTransicaoInvalida = errors.New("transição de status não permitida")
)

// Convenio é um parceiro de planos (GYMPASS, TOTALPASS...).
type Convenio struct {
	ID                      uuid.UUID `json:"id"`
	Codigo                  string    `json:"codigo"`
	Nome                    string    `json:"nome"`
	APIURL                  *string   `json:"api_url,omitempty"`
	PercentualRepassePadrao float64   `json:"percentual_repasse_padrao"`
	Ativo                   bool      `json:"ativo"`
	CriadoEm                time.Time `json:"criado_em"`
}

// UnidadeConvenio habilita um convênio em uma unidade, com repasse opcional.
type UnidadeConvenio struct {
	ID                uuid.UUID `json:"id"`
	UnidadeID         uuid.UUID `json:"unidade_id"`
	ConvenioID        uuid.UUID `json:"convenio_id"`
	PercentualRepasse *float64  `json:"percentual_repasse,omitempty"`
	Ativo             bool      `json:"ativo"`
}

// AlunoConvenio vincula um aluno ao plano do parceiro.
type AlunoConvenio struct {
	ID               uuid.UUID      `json:"id"`
	AlunoID          uuid.UUID      `json:"aluno_id"`
	ConvenioID       uuid.UUID      `json:"convenio_id"`
	UnidadeID        uuid.UUID      `json:"unidade_id"`
	ConvenioUserID   string         `json:"convenio_user_id"`
	Status           string         `json:"status"`
	DataAtivacao     time.Time      `json:"data_ativacao"`
	DataCancelamento *time.Time     `json:"data_cancelamento,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// EventoConvenio é o registro de saída para o parceiro, com retentativas.
type EventoConvenio struct {
	ID              uuid.UUID  `json:"id"`
	AlunoConvenioID uuid.UUID  `json:"aluno_convenio_id"`
	PresencaID      *uuid.UUID `json:"presenca_id,omitempty"`
	Tipo            string     `json:"tipo"`
	Enviado         bool       `json:"enviado"`
	DataEnvio       *time.Time `json:"data_envio,omitempty"`
	ResponseStatus  *int       `json:"response_status,omitempty"`
	Tentativas      int        `json:"tentativas"`
	Erro            *string    `json:"erro,omitempty"`
	CriadoEm        time.Time  `json:"criado_em"`
}

// EventoPendente junta o evento com o destino do parceiro.
type EventoPendente struct {
	Evento         EventoConvenio `json:"evento"`
	APIURL         string         `json:"api_url"`
	ConvenioCodigo string         `json:"convenio_codigo"`
	ConvenioUserID string         `json:"convenio_user_id"`
}
