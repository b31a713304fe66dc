package presenca

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Métodos de check-in aceitos.
const (
	MetodoQRCode      = "QR_CODE"
	MetodoCPF         = "CPF"
	MetodoNome        = "NOME"
	MetodoManual      = "MANUAL"
	MetodoResponsavel = "RESPONSAVEL"
	MetodoFacial      = "FACIAL"
)

var (
	// ErrQRInvalido indica payload de QR fora dos formatos aceitos.
	ErrQRInvalido = errors.New("QR Code inválido")
	// ErrAulaNaoEncontrada indica aula inexistente ou inativa.
	ErrAulaNaoEncontrada = errors.New("aula não encontrada")
	// ErrNenhumaAulaAtiva indica que não há aula aberta para check-in.
	ErrNenhumaAulaAtiva = errors.New("nenhuma aula aberta para check-in no momento")
	// ErrAulaFechada indica aula fora da janela de check-in.
	ErrAulaFechada = errors.New("aula fora da janela de check-in")
	// ErrCheckinDuplicado indica presença já registrada para a aula.
	ErrCheckinDuplicado = errors.New("check-in já registrado para esta aula")
	// ErrSemVinculo indica responsável sem vínculo com o dependente.
	ErrSemVinculo = errors.New("responsável sem vínculo com este aluno")
)

// margemCheckin é a tolerância antes e depois do horário da aula.
const margemCheckin = 30 * time.Minute

// Aula é uma sessão recorrente de treino aberta para check-in.
type Aula struct {
	ID         uuid.UUID `json:"id"`
	UnidadeID  uuid.UUID `json:"unidade_id"`
	Modalidade string    `json:"modalidade"`
	DiaSemana  int       `json:"dia_semana"`
	HoraInicio string    `json:"hora_inicio"`
	HoraFim    string    `json:"hora_fim"`
	Ativo      bool      `json:"ativo"`
}

// Presenca é o registro imutável de um check-in.
type Presenca struct {
	ID           uuid.UUID `json:"id"`
	AlunoID      uuid.UUID `json:"aluno_id"`
	AulaID       uuid.UUID `json:"aula_id"`
	UnidadeID    uuid.UUID `json:"unidade_id"`
	DataPresenca time.Time `json:"data_presenca"`
	HoraCheckin  time.Time `json:"hora_checkin"`
	Metodo       string    `json:"metodo"`
	Status       string    `json:"status"`
	Observacoes  *string   `json:"observacoes,omitempty"`
	CriadoEm     time.Time `json:"criado_em"`
}

// janela devolve o intervalo da aula no dia de referência, sem margem.
func (a Aula) janela(ref time.Time) (time.Time, time.Time, bool) {
	inicio, err1 := horaNoDia(a.HoraInicio, ref)
	fim, err2 := horaNoDia(a.HoraFim, ref)
	if err1 != nil || err2 != nil {
		return time.Time{}, time.Time{}, false
	}
	return inicio, fim, true
}

// AbertaParaCheckin confere dia da semana e janela com margem de 30 minutos.
func (a Aula) AbertaParaCheckin(now time.Time) bool {
	if !a.Ativo || int(now.Weekday()) != a.DiaSemana {
		return false
	}
	inicio, fim, ok := a.janela(now)
	if !ok {
		return false
	}
	return !now.Before(inicio.Add(-margemCheckin)) && !now.After(fim.Add(margemCheckin))
}

// EscolherAulaAtiva seleciona a aula aberta no momento, preferindo aulas em
// andamento sobre aulas só alcançáveis pela margem.
func EscolherAulaAtiva(aulas []Aula, now time.Time) (Aula, bool) {
	var naMargem *Aula
	for i := range aulas {
		a := aulas[i]
		if !a.AbertaParaCheckin(now) {
			continue
		}
		inicio, fim, ok := a.janela(now)
		if !ok {
			continue
		}
		if !now.Before(inicio) && !now.After(fim) {
			return a, true
		}
		if naMargem == nil {
			naMargem = &a
		}
	}
	if naMargem != nil {
		return *naMargem, true
	}
	return Aula{}, false
}

// ParseQRPayload reconhece os formatos QR-AULA-<uuid> e QR-UNIDADE-<uuid>.
func ParseQRPayload(payload string) (aulaID, unidadeID uuid.UUID, err error) {
	payload = strings.TrimSpace(payload)
	switch {
	case strings.HasPrefix(payload, "QR-AULA-"):
		id, perr := uuid.Parse(strings.TrimPrefix(payload, "QR-AULA-"))
		if perr != nil {
			return uuid.Nil, uuid.Nil, ErrQRInvalido
		}
		return id, uuid.Nil, nil
	case strings.HasPrefix(payload, "QR-UNIDADE-"):
		id, perr := uuid.Parse(strings.TrimPrefix(payload, "QR-UNIDADE-"))
		if perr != nil {
			return uuid.Nil, uuid.Nil, ErrQRInvalido
		}
		return uuid.Nil, id, nil
	default:
		return uuid.Nil, uuid.Nil, ErrQRInvalido
	}
}

func horaNoDia(hhmm string, ref time.Time) (time.Time, error) {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		// Aceita também segundos, como vem de colunas TIME.
		parsed, err = time.Parse("15:04:05", hhmm)
		if err != nil {
			return time.Time{}, err
		}
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day(), parsed.Hour(), parsed.Minute(), parsed.Second(), 0, ref.Location()), nil
}
