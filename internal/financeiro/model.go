package financeiro

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status possíveis de uma assinatura.
const (
	StatusAtiva        = "ATIVA"
	StatusPausada      = "PAUSADA"
	StatusCancelada    = "CANCELADA"
	StatusInadimplente = "INADIMPLENTE"
	StatusExpirada     = "EXPIRADA"
)

// Métodos de pagamento aceitos.
var metodosPagamento = map[string]bool{
	"PIX":           true,
	"CARTAO":        true,
	"BOLETO":        true,
	"DINHEIRO":      true,
	"TRANSFERENCIA": true,
}

var (
	// ErrPlanoNaoEncontrado indica plano inexistente ou inativo.
	ErrPlanoNaoEncontrado = errors.New("plano não encontrado")
	// ErrAssinaturaNaoEncontrada indica assinatura inexistente.
	ErrAssinaturaNaoEncontrada = errors.New("assinatura não encontrada")
	// ErrAssinaturaAtivaExiste indica aluno com assinatura ativa.
	ErrAssinaturaAtivaExiste = errors.New("aluno já possui assinatura ativa")
	// ErrPlanoLotado indica plano no limite de alunos.
	ErrPlanoLotado = errors.New("plano atingiu o limite de alunos")
	// ErrTransicaoInvalida indica mudança de status não permitida.
	ErrTransicaoInvalida = errors.New("transição de status não permitida")
	// ErrMetodoPagamento indica método de pagamento desconhecido.
	ErrMetodoPagamento = errors.New("método de pagamento inválido")
)

// Plano é um plano comercial da unidade.
type Plano struct {
	ID           uuid.UUID `json:"id"`
	UnidadeID    uuid.UUID `json:"unidade_id"`
	Nome         string    `json:"nome"`
	Valor        float64   `json:"valor"`
	DuracaoMeses int       `json:"duracao_meses"`
	MaxAlunos    *int      `json:"max_alunos,omitempty"`
	Ativo        bool      `json:"ativo"`
	CriadoEm     time.Time `json:"criado_em"`
}

// Assinatura vincula aluno a plano com ciclo de cobrança.
type Assinatura struct {
	ID                 uuid.UUID  `json:"id"`
	AlunoID            uuid.UUID  `json:"aluno_id"`
	PlanoID            uuid.UUID  `json:"plano_id"`
	UnidadeID          uuid.UUID  `json:"unidade_id"`
	Status             string     `json:"status"`
	MetodoPagamento    string     `json:"metodo_pagamento"`
	Valor              float64    `json:"valor"`
	DataInicio         time.Time  `json:"data_inicio"`
	DataFim            time.Time  `json:"data_fim"`
	ProximaCobranca    *time.Time `json:"proxima_cobranca,omitempty"`
	DiaVencimento      int        `json:"dia_vencimento"`
	CanceladoPor       *uuid.UUID `json:"cancelado_por,omitempty"`
	CanceladoEm        *time.Time `json:"cancelado_em,omitempty"`
	MotivoCancelamento *string    `json:"motivo_cancelamento,omitempty"`
	CriadoEm           time.Time  `json:"criado_em"`
	AtualizadoEm       time.Time  `json:"atualizado_em"`
}

// ProximaCobranca calcula o próximo vencimento a partir do dia de vencimento.
// Se o dia deste mês já passou, rola para o mês seguinte; dias maiores que o
// mês são ajustados para o último dia.
func ProximaCobranca(now time.Time, diaVencimento int) time.Time {
	if diaVencimento < 1 {
		diaVencimento = 1
	}
	if diaVencimento > 31 {
		diaVencimento = 31
	}

	cobranca := dataComDia(now.Year(), now.Month(), diaVencimento)
	hoje := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if cobranca.Before(hoje) {
		proximo := hoje.AddDate(0, 1, 0)
		cobranca = dataComDia(proximo.Year(), proximo.Month(), diaVencimento)
	}
	return cobranca
}

func dataComDia(ano int, mes time.Month, dia int) time.Time {
	primeiro := time.Date(ano, mes, 1, 0, 0, 0, 0, time.UTC)
	ultimo := primeiro.AddDate(0, 1, -1).Day()
	if dia > ultimo {
		dia = ultimo
	}
	return time.Date(ano, mes, dia, 0, 0, 0, 0, time.UTC)
}
