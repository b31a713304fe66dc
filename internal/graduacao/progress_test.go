package graduacao

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func faixaTeste(codigo string, aulasPorGrau, grausMax, ordem int) FaixaDef {
	return FaixaDef{
		ID:           uuid.New(),
		Codigo:       codigo,
		NomeExibicao: codigo,
		Ordem:        ordem,
		GrausMax:     grausMax,
		AulasPorGrau: aulasPorGrau,
		Categoria:    CategoriaAdulto,
		Ativo:        true,
	}
}

func TestCalcularProgressoOitoDeDez(t *testing.T) {
	def := faixaTeste("BRANCA", 10, 4, 1)
	af := AlunoFaixa{
		FaixaDefID:       def.ID,
		Ativa:            true,
		DtInicio:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		PresencasNoCiclo: 8,
	}

	p := CalcularProgresso(af, def, RegrasPadrao(def), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	if p.ProgressoPercentual != 80 {
		t.Fatalf("esperava 80%%, veio %.2f", p.ProgressoPercentual)
	}
	if p.FaltamAulas != 2 {
		t.Fatalf("esperava faltar 2 aulas, veio %d", p.FaltamAulas)
	}
	if p.ProntoParaGrau {
		t.Fatal("com 8/10 o aluno não está pronto para grau")
	}
}

func TestCalcularProgressoSempreEntreZeroECem(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	inicio := now.AddDate(-1, 0, 0)

	casos := []struct {
		nome      string
		presencas int
		limiar    int
	}{
		{"acima do limiar", 50, 20},
		{"limiar zero", 5, 0},
		{"limiar negativo", 0, -3},
		{"zero presenças", 0, 20},
		{"contagem negativa", -2, 20},
	}

	for _, tc := range casos {
		t.Run(tc.nome, func(t *testing.T) {
			def := faixaTeste("AZUL", tc.limiar, 4, 2)
			af := AlunoFaixa{FaixaDefID: def.ID, Ativa: true, DtInicio: inicio, PresencasNoCiclo: tc.presencas}
			regras := Regras{AulasPorGrau: tc.limiar, GrausMax: 4}

			p := CalcularProgresso(af, def, regras, now)
			if p.ProgressoPercentual < 0 || p.ProgressoPercentual > 100 {
				t.Fatalf("percentual fora de [0,100]: %.2f", p.ProgressoPercentual)
			}
			if tc.limiar <= 0 && p.ProgressoPercentual != 100 {
				t.Fatalf("limiar não positivo deveria resultar em 100%%, veio %.2f", p.ProgressoPercentual)
			}
		})
	}
}

func TestCalcularProgressoLimiarCompletoProntoParaGrau(t *testing.T) {
	def := faixaTeste("ROXA", 40, 4, 3)
	af := AlunoFaixa{
		FaixaDefID:       def.ID,
		Ativa:            true,
		DtInicio:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		GrausAtual:       2,
		PresencasNoCiclo: 40,
	}

	p := CalcularProgresso(af, def, RegrasPadrao(def), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if !p.ProntoParaGrau {
		t.Fatal("ciclo completo com graus disponíveis deveria marcar pronto para grau")
	}

	af.GrausAtual = 4
	p = CalcularProgresso(af, def, RegrasPadrao(def), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if p.ProntoParaGrau {
		t.Fatal("aluno no limite de graus não recebe novo grau")
	}
	if !p.ProntoParaGraduar {
		t.Fatal("aluno com todos os graus deveria estar pronto para graduar")
	}
}

func TestCalcularProgressoPretaPorTempo(t *testing.T) {
	def := FaixaDef{
		ID:           uuid.New(),
		Codigo:       "PRETA",
		NomeExibicao: "PRETA",
		Ordem:        10,
		GrausMax:     6,
		AulasPorGrau: 0,
		Categoria:    CategoriaAdulto,
		Ativo:        true,
	}
	regras := RegrasPadrao(def)
	if regras.TempoMinimoMeses != 36 {
		t.Fatalf("faixa preta deveria ter 36 meses por padrão, veio %d", regras.TempoMinimoMeses)
	}

	inicio := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	af := AlunoFaixa{FaixaDefID: def.ID, Ativa: true, DtInicio: inicio, GrausAtual: 1}

	// Metade do ciclo de 36 meses.
	p := CalcularProgresso(af, def, regras, inicio.AddDate(0, 18, 0))
	if p.ProgressoPercentual < 49 || p.ProgressoPercentual > 51 {
		t.Fatalf("esperava ~50%% aos 18 meses, veio %.2f", p.ProgressoPercentual)
	}
	if p.ProntoParaGrau {
		t.Fatal("antes do tempo mínimo não há grau por tempo")
	}
	if p.DiasRestantes == 0 {
		t.Fatal("deveria restar tempo de faixa")
	}

	// Ciclo cumprido.
	p = CalcularProgresso(af, def, regras, inicio.AddDate(0, 37, 0))
	if !p.ProntoParaGrau {
		t.Fatal("tempo cumprido deveria marcar pronto para grau")
	}
	if p.ProgressoPercentual != 100 {
		t.Fatalf("tempo cumprido deveria ser 100%%, veio %.2f", p.ProgressoPercentual)
	}
}

func TestValidarFaixaHistorico(t *testing.T) {
	inicio := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	fimOK := inicio.AddDate(1, 0, 0)
	fimAntes := inicio.AddDate(0, 0, -1)

	casos := []struct {
		nome       string
		input      FaixaHistoricoInput
		esperaErro bool
	}{
		{"atual sem data final", FaixaHistoricoInput{FaixaDestinoCodigo: "AZUL", DtInicio: inicio, Atual: true}, false},
		{"atual com data final", FaixaHistoricoInput{FaixaDestinoCodigo: "AZUL", DtInicio: inicio, DtFim: &fimOK, Atual: true}, true},
		{"não atual sem data final", FaixaHistoricoInput{FaixaDestinoCodigo: "AZUL", DtInicio: inicio}, true},
		{"não atual com data final", FaixaHistoricoInput{FaixaDestinoCodigo: "AZUL", DtInicio: inicio, DtFim: &fimOK}, false},
		{"data final antes da inicial", FaixaHistoricoInput{FaixaDestinoCodigo: "AZUL", DtInicio: inicio, DtFim: &fimAntes}, true},
		{"sem faixa de destino", FaixaHistoricoInput{DtInicio: inicio, DtFim: &fimOK}, true},
		{"sem data de início", FaixaHistoricoInput{FaixaDestinoCodigo: "AZUL", DtFim: &fimOK}, true},
	}

	for _, tc := range casos {
		t.Run(tc.nome, func(t *testing.T) {
			err := ValidarFaixaHistorico(tc.input)
			if tc.esperaErro && err == nil {
				t.Fatal("esperava erro de validação")
			}
			if !tc.esperaErro && err != nil {
				t.Fatalf("não esperava erro, veio %v", err)
			}
		})
	}
}
