package graduacao

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Categorias de faixa.
const (
	CategoriaAdulto   = "ADULTO"
	CategoriaInfantil = "INFANTIL"
	CategoriaMestre   = "MESTRE"
)

// Origem de um grau concedido.
const (
	OrigemManual     = "MANUAL"
	OrigemAutomatico = "AUTOMATICO"
	OrigemImportado  = "IMPORTADO"
	OrigemMigrado    = "MIGRADO"
)

var (
	// ErrFaixaNaoEncontrada indica código de faixa desconhecido.
	ErrFaixaNaoEncontrada = errors.New("faixa não encontrada")
	// ErrAlunoSemFaixa indica aluno sem faixa ativa.
	ErrAlunoSemFaixa = errors.New("aluno não possui faixa ativa")
	// ErrGrausMaximos indica que a faixa atual já atingiu o limite de graus.
	ErrGrausMaximos = errors.New("aluno já atingiu o número máximo de graus desta faixa")
	// ErrPromocaoInvalida indica tentativa de graduar para faixa igual ou inferior.
	ErrPromocaoInvalida = errors.New("graduação deve ser para uma faixa superior")
	// ErrPromocaoDuplicada indica promoção já registrada para a faixa de destino.
	ErrPromocaoDuplicada = errors.New("já existe graduação registrada para esta faixa")
	// ErrIntervaloAberto indica que já existe faixa vigente para o aluno.
	ErrIntervaloAberto = errors.New("aluno já possui uma faixa vigente")
	// ErrDatasInvalidas indica datas de histórico inconsistentes.
	ErrDatasInvalidas = errors.New("data final deve ser maior ou igual à data inicial")
)

// FaixaDef define uma faixa do catálogo (regras padrão de progressão).
type FaixaDef struct {
	ID           uuid.UUID `json:"id"`
	Codigo       string    `json:"codigo"`
	NomeExibicao string    `json:"nome_exibicao"`
	CorHex       string    `json:"cor_hex"`
	Ordem        int       `json:"ordem"`
	GrausMax     int       `json:"graus_max"`
	AulasPorGrau int       `json:"aulas_por_grau"`
	Categoria    string    `json:"categoria"`
	Ativo        bool      `json:"ativo"`
}

// TempoBased indica faixa que progride por tempo (meses) e não por aulas.
func (f FaixaDef) TempoBased() bool {
	return f.AulasPorGrau <= 0 && f.Categoria != CategoriaMestre
}

// AlunoFaixa é o vínculo do aluno com uma faixa. No máximo um registro
// ativo (dt_fim nula) por aluno.
type AlunoFaixa struct {
	ID               uuid.UUID  `json:"id"`
	AlunoID          uuid.UUID  `json:"aluno_id"`
	FaixaDefID       uuid.UUID  `json:"faixa_def_id"`
	Ativa            bool       `json:"ativa"`
	DtInicio         time.Time  `json:"dt_inicio"`
	DtFim            *time.Time `json:"dt_fim,omitempty"`
	GrausAtual       int        `json:"graus_atual"`
	PresencasNoCiclo int        `json:"presencas_no_ciclo"`
	PresencasTotalFx int        `json:"presencas_total_fx"`
}

// GrauHistorico registra cada grau concedido dentro de uma faixa.
type GrauHistorico struct {
	ID           uuid.UUID  `json:"id"`
	AlunoFaixaID uuid.UUID  `json:"aluno_faixa_id"`
	GrauNum      int        `json:"grau_num"`
	Origem       string     `json:"origem"`
	Observacao   *string    `json:"observacao,omitempty"`
	ConcedidoPor *uuid.UUID `json:"concedido_por,omitempty"`
	DtConcessao  time.Time  `json:"dt_concessao"`
}

// GraduacaoFaixa registra intervalos de faixa do aluno (histórico de promoções).
type GraduacaoFaixa struct {
	ID             uuid.UUID  `json:"id"`
	AlunoID        uuid.UUID  `json:"aluno_id"`
	FaixaOrigemID  *uuid.UUID `json:"faixa_origem_id,omitempty"`
	FaixaDestinoID uuid.UUID  `json:"faixa_destino_id"`
	DtInicio       time.Time  `json:"dt_inicio"`
	DtFim          *time.Time `json:"dt_fim,omitempty"`
	Evento         *string    `json:"evento,omitempty"`
	Observacao     *string    `json:"observacao,omitempty"`
	Aprovado       bool       `json:"aprovado"`
}
