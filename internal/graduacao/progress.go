package graduacao

import "time"

// Regras são os parâmetros efetivos de progressão de uma faixa, já com
// eventuais ajustes da unidade aplicados.
type Regras struct {
	AulasPorGrau     int `json:"aulas_por_grau"`
	GrausMax         int `json:"graus_max"`
	TempoMinimoMeses int `json:"tempo_minimo_meses"`
}

// RegrasPadrao extrai as regras default da definição da faixa.
// Faixas por tempo (PRETA) usam 36 meses por grau quando nada é configurado.
func RegrasPadrao(def FaixaDef) Regras {
	r := Regras{
		AulasPorGrau: def.AulasPorGrau,
		GrausMax:     def.GrausMax,
	}
	if def.TempoBased() {
		r.TempoMinimoMeses = 36
	}
	return r
}

// Progresso é o retrato calculado da progressão do aluno na faixa atual.
type Progresso struct {
	FaixaDefID          string  `json:"faixa_def_id"`
	FaixaCodigo         string  `json:"faixa"`
	GrausAtual          int     `json:"graus_atual"`
	GrausMax            int     `json:"graus_max"`
	PresencasNoCiclo    int     `json:"presencas_no_ciclo"`
	PresencasTotalFaixa int     `json:"presencas_total_faixa"`
	AulasPorGrau        int     `json:"aulas_por_grau"`
	FaltamAulas         int     `json:"faltam_aulas"`
	ProgressoPercentual float64 `json:"progresso_percentual"`
	ProntoParaGrau      bool    `json:"pronto_para_grau"`
	ProntoParaGraduar   bool    `json:"pronto_para_graduar"`
	DiasNaFaixa         int     `json:"dias_na_faixa"`
	DiasRestantes       int     `json:"dias_restantes"`
}

// CalcularProgresso é uma função pura: não consulta banco nem relógio.
// Percentual sempre em [0,100]; limiar não positivo conta como ciclo completo.
func CalcularProgresso(af AlunoFaixa, def FaixaDef, regras Regras, now time.Time) Progresso {
	p := Progresso{
		FaixaDefID:          def.ID.String(),
		FaixaCodigo:         def.Codigo,
		GrausAtual:          af.GrausAtual,
		GrausMax:            regras.GrausMax,
		PresencasNoCiclo:    af.PresencasNoCiclo,
		PresencasTotalFaixa: af.PresencasTotalFx,
		AulasPorGrau:        regras.AulasPorGrau,
		DiasNaFaixa:         diasEntre(af.DtInicio, now),
	}

	if regras.TempoMinimoMeses > 0 {
		alvo := af.DtInicio.AddDate(0, regras.TempoMinimoMeses, 0)
		if now.Before(alvo) {
			p.DiasRestantes = diasEntre(now, alvo)
		}
	}

	if def.TempoBased() {
		// Faixas por tempo: o ciclo anda com o calendário, não com aulas.
		totalDias := diasEntre(af.DtInicio, af.DtInicio.AddDate(0, regras.TempoMinimoMeses, 0))
		p.ProgressoPercentual = percentual(p.DiasNaFaixa, totalDias)
		p.ProntoParaGrau = p.DiasRestantes == 0 && af.GrausAtual < regras.GrausMax
		p.ProntoParaGraduar = af.GrausAtual >= regras.GrausMax
		return p
	}

	p.ProgressoPercentual = percentual(af.PresencasNoCiclo, regras.AulasPorGrau)
	if faltam := regras.AulasPorGrau - af.PresencasNoCiclo; faltam > 0 {
		p.FaltamAulas = faltam
	}
	p.ProntoParaGrau = p.ProgressoPercentual >= 100 && af.GrausAtual < regras.GrausMax && p.DiasRestantes == 0
	p.ProntoParaGraduar = af.GrausAtual >= regras.GrausMax && p.DiasRestantes == 0
	return p
}

func percentual(feito, alvo int) float64 {
	if alvo <= 0 {
		return 100
	}
	pct := float64(feito) / float64(alvo) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func diasEntre(inicio, fim time.Time) int {
	if fim.Before(inicio) {
		return 0
	}
	return int(fim.Sub(inicio).Hours() / 24)
}
