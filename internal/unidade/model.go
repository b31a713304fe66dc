package unidade

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("unidade não encontrada")
)

// Unidade representa uma academia da rede.
type Unidade struct {
	ID        uuid.UUID      `json:"id"`
	Nome      string         `json:"nome"`
	Slug      string         `json:"slug"`
	CNPJ      *string        `json:"cnpj,omitempty"`
	Telefone  *string        `json:"telefone,omitempty"`
	Endereco  *string        `json:"endereco,omitempty"`
	Config    map[string]any `json:"config"`
	Ativo     bool           `json:"ativo"`
	CriadoEm  time.Time      `json:"criado_em"`
	AtualizadoEm time.Time   `json:"atualizado_em"`
}

// CreateUnidadeInput contém os campos necessários para registrar uma unidade.
type CreateUnidadeInput struct {
	Nome     string
	Slug     string
	CNPJ     *string
	Telefone *string
	Endereco *string
	Config   map[string]any
}

// GraduacaoOverride permite ajustar regras de graduação por faixa na unidade.
// Chaves do mapa em Config["graduacao"]: codigo da faixa -> override.
type GraduacaoOverride struct {
	AulasPorGrau *int `json:"aulas_por_grau,omitempty"`
	GrausMax     *int `json:"graus_max,omitempty"`
	TempoMinimoMeses *int `json:"tempo_minimo_meses,omitempty"`
}

// OverrideGraduacao devolve o ajuste configurado para a faixa, se houver.
func (u Unidade) OverrideGraduacao(codigoFaixa string) *GraduacaoOverride {
	raw, ok := u.Config["graduacao"]
	if !ok {
		return nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var porFaixa map[string]GraduacaoOverride
	if err := json.Unmarshal(encoded, &porFaixa); err != nil {
		return nil
	}
	ov, ok := porFaixa[codigoFaixa]
	if !ok {
		return nil
	}
	return &ov
}
