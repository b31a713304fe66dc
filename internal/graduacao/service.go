package graduacao

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/teamcruz/academia/internal/db"
	"github.com/teamcruz/academia/internal/unidade"
)

// graduacaoRepository é o recorte do repositório usado pelo serviço;
// testes substituem por um stub em memória.
type graduacaoRepository interface {
	ListFaixaDefs(ctx context.Context, categoria string) ([]FaixaDef, error)
	GetFaixaDefByID(ctx context.Context, id uuid.UUID) (FaixaDef, error)
	GetFaixaDefByCodigo(ctx context.Context, codigo string) (FaixaDef, error)
	GetFaixaAtiva(ctx context.Context, alunoID uuid.UUID) (AlunoFaixa, error)
	GetFaixaAtivaForUpdate(ctx context.Context, tx pgx.Tx, alunoID uuid.UUID) (AlunoFaixa, error)
	CountFaixasAbertas(ctx context.Context, alunoID uuid.UUID, excluirID *uuid.UUID) (int, error)
	InsertAlunoFaixa(ctx context.Context, tx pgx.Tx, af AlunoFaixa) (AlunoFaixa, error)
	EncerrarFaixa(ctx context.Context, tx pgx.Tx, alunoFaixaID uuid.UUID, fim time.Time) error
	ConcederGrau(ctx context.Context, tx pgx.Tx, alunoFaixaID uuid.UUID) (AlunoFaixa, error)
	IncrementarPresenca(ctx context.Context, tx pgx.Tx, alunoFaixaID uuid.UUID) (AlunoFaixa, error)
	InsertGrau(ctx context.Context, tx pgx.Tx, g GrauHistorico) (GrauHistorico, error)
	ListGrausByAluno(ctx context.Context, alunoID uuid.UUID) ([]GrauHistorico, error)
	ListGraduacoes(ctx context.Context, alunoID uuid.UUID) ([]GraduacaoFaixa, error)
	ExisteGraduacaoParaDestino(ctx context.Context, alunoID, faixaDestinoID uuid.UUID) (bool, error)
	InsertGraduacao(ctx context.Context, tx pgx.Tx, g GraduacaoFaixa) (GraduacaoFaixa, error)
	EncerrarGraduacaoAberta(ctx context.Context, tx pgx.Tx, alunoID uuid.UUID, fim time.Time) error
	GetGraduacao(ctx context.Context, id uuid.UUID) (GraduacaoFaixa, error)
	UpdateGraduacao(ctx context.Context, g GraduacaoFaixa) (GraduacaoFaixa, error)
	GetUnidadeDoAluno(ctx context.Context, alunoID uuid.UUID) (uuid.UUID, error)
	ListProximosGraduar(ctx context.Context, f FiltrosProximos, limit, offset int) ([]ProximoGraduarRow, int, error)
}

// Service concentra as regras de graduação (graus, faixas, histórico).
type Service struct {
	repo     graduacaoRepository
	pool     db.Beginner
	unidades *unidade.Service
}

func NewService(repo graduacaoRepository, pool db.Beginner, unidades *unidade.Service) *Service {
	return &Service{repo: repo, pool: pool, unidades: unidades}
}

func (s *Service) ListarFaixas(ctx context.Context, categoria string) ([]FaixaDef, error) {
	return s.repo.ListFaixaDefs(ctx, categoria)
}

// regrasPara resolve as regras efetivas: override da unidade primeiro,
// default da faixa depois.
func (s *Service) regrasPara(ctx context.Context, def FaixaDef, unidadeID uuid.UUID) Regras {
	regras := RegrasPadrao(def)
	if s.unidades == nil || unidadeID == uuid.Nil {
		return regras
	}
	u, err := s.unidades.Get(ctx, unidadeID)
	if err != nil {
		log.Warn().Err(err).Str("unidade", unidadeID.String()).Msg("override de graduação indisponível, usando regras padrão")
		return regras
	}
	ov := u.OverrideGraduacao(def.Codigo)
	if ov == nil {
		return regras
	}
	if ov.AulasPorGrau != nil {
		regras.AulasPorGrau = *ov.AulasPorGrau
	}
	if ov.GrausMax != nil {
		regras.GrausMax = *ov.GrausMax
	}
	if ov.TempoMinimoMeses != nil {
		regras.TempoMinimoMeses = *ov.TempoMinimoMeses
	}
	return regras
}

// StatusAluno agrega a faixa vigente e o progresso calculado.
type StatusAluno struct {
	Faixa     AlunoFaixa `json:"faixa"`
	Def       FaixaDef   `json:"def"`
	Progresso Progresso  `json:"progresso"`
}

// StatusGraduacao recalcula o progresso do aluno a cada leitura.
func (s *Service) StatusGraduacao(ctx context.Context, alunoID uuid.UUID, now time.Time) (StatusAluno, error) {
	af, err := s.repo.GetFaixaAtiva(ctx, alunoID)
	if err != nil {
		return StatusAluno{}, err
	}
	def, err := s.repo.GetFaixaDefByID(ctx, af.FaixaDefID)
	if err != nil {
		return StatusAluno{}, err
	}
	unidadeID, err := s.repo.GetUnidadeDoAluno(ctx, alunoID)
	if err != nil {
		return StatusAluno{}, err
	}
	regras := s.regrasPara(ctx, def, unidadeID)
	return StatusAluno{
		Faixa:     af,
		Def:       def,
		Progresso: CalcularProgresso(af, def, regras, now),
	}, nil
}

// ProximoGraduar é um item do ranking de alunos próximos da graduação.
type ProximoGraduar struct {
	AlunoID      uuid.UUID `json:"aluno_id"`
	NomeCompleto string    `json:"nome_completo"`
	UnidadeID    uuid.UUID `json:"unidade_id"`
	Progresso    Progresso `json:"progresso"`
}

func (s *Service) ProximosGraduar(ctx context.Context, filtros FiltrosProximos, limit, offset int, now time.Time) ([]ProximoGraduar, int, error) {
	rows, total, err := s.repo.ListProximosGraduar(ctx, filtros, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	itens := make([]ProximoGraduar, 0, len(rows))
	for _, row := range rows {
		regras := s.regrasPara(ctx, row.Def, row.UnidadeID)
		itens = append(itens, ProximoGraduar{
			AlunoID:      row.Aluno.AlunoID,
			NomeCompleto: row.NomeCompleto,
			UnidadeID:    row.UnidadeID,
			Progresso:    CalcularProgresso(row.Aluno, row.Def, regras, now),
		})
	}
	return itens, total, nil
}

// ConcederGrauInput descreve uma concessão manual de grau.
type ConcederGrauInput struct {
	Origem       string
	Observacao   *string
	ConcedidoPor *uuid.UUID
}

// ConcederGrau concede um grau ao aluno respeitando o limite da faixa.
func (s *Service) ConcederGrau(ctx context.Context, alunoID uuid.UUID, input ConcederGrauInput, now time.Time) (GrauHistorico, error) {
	if input.Origem == "" {
		input.Origem = OrigemManual
	}

	var grau GrauHistorico
	err := db.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		af, err := s.repo.GetFaixaAtivaForUpdate(ctx, tx, alunoID)
		if err != nil {
			return err
		}
		def, err := s.repo.GetFaixaDefByID(ctx, af.FaixaDefID)
		if err != nil {
			return err
		}
		unidadeID, err := s.repo.GetUnidadeDoAluno(ctx, alunoID)
		if err != nil {
			return err
		}
		regras := s.regrasPara(ctx, def, unidadeID)
		if af.GrausAtual >= regras.GrausMax {
			return ErrGrausMaximos
		}

		atualizada, err := s.repo.ConcederGrau(ctx, tx, af.ID)
		if err != nil {
			return err
		}
		grau, err = s.repo.InsertGrau(ctx, tx, GrauHistorico{
			AlunoFaixaID: af.ID,
			GrauNum:      atualizada.GrausAtual,
			Origem:       input.Origem,
			Observacao:   input.Observacao,
			ConcedidoPor: input.ConcedidoPor,
			DtConcessao:  now,
		})
		return err
	})
	return grau, err
}

// IncrementarPresenca registra uma aula no ciclo e concede grau automático
// quando o ciclo atinge o limiar da faixa. Chamado pelo check-in.
func (s *Service) IncrementarPresenca(ctx context.Context, alunoID uuid.UUID, now time.Time) (bool, error) {
	grauConcedido := false
	err := db.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		af, err := s.repo.GetFaixaAtivaForUpdate(ctx, tx, alunoID)
		if err != nil {
			return err
		}
		def, err := s.repo.GetFaixaDefByID(ctx, af.FaixaDefID)
		if err != nil {
			return err
		}
		unidadeID, err := s.repo.GetUnidadeDoAluno(ctx, alunoID)
		if err != nil {
			return err
		}
		regras := s.regrasPara(ctx, def, unidadeID)

		af, err = s.repo.IncrementarPresenca(ctx, tx, af.ID)
		if err != nil {
			return err
		}

		if def.TempoBased() || regras.AulasPorGrau <= 0 {
			return nil
		}
		if af.GrausAtual >= regras.GrausMax || af.PresencasNoCiclo < regras.AulasPorGrau {
			return nil
		}

		atualizada, err := s.repo.ConcederGrau(ctx, tx, af.ID)
		if err != nil {
			return err
		}
		if _, err := s.repo.InsertGrau(ctx, tx, GrauHistorico{
			AlunoFaixaID: af.ID,
			GrauNum:      atualizada.GrausAtual,
			Origem:       OrigemAutomatico,
			DtConcessao:  now,
		}); err != nil {
			return err
		}
		grauConcedido = true
		return nil
	})
	return grauConcedido, err
}

// GraduarFaixaInput descreve uma promoção de faixa.
type GraduarFaixaInput struct {
	FaixaDestinoCodigo string
	Evento             *string
	Observacao         *string
}

// GraduarFaixa promove o aluno para uma faixa superior: encerra o vínculo e o
// intervalo vigentes e abre os novos na mesma transação.
func (s *Service) GraduarFaixa(ctx context.Context, alunoID uuid.UUID, input GraduarFaixaInput, now time.Time) (StatusAluno, error) {
	atual, err := s.repo.GetFaixaAtiva(ctx, alunoID)
	if err != nil {
		return StatusAluno{}, err
	}
	defAtual, err := s.repo.GetFaixaDefByID(ctx, atual.FaixaDefID)
	if err != nil {
		return StatusAluno{}, err
	}
	destino, err := s.repo.GetFaixaDefByCodigo(ctx, input.FaixaDestinoCodigo)
	if err != nil {
		return StatusAluno{}, err
	}
	if destino.Ordem <= defAtual.Ordem {
		return StatusAluno{}, ErrPromocaoInvalida
	}
	duplicada, err := s.repo.ExisteGraduacaoParaDestino(ctx, alunoID, destino.ID)
	if err != nil {
		return StatusAluno{}, err
	}
	if duplicada {
		return StatusAluno{}, ErrPromocaoDuplicada
	}

	var nova AlunoFaixa
	err = db.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		travada, err := s.repo.GetFaixaAtivaForUpdate(ctx, tx, alunoID)
		if err != nil {
			return err
		}
		if err := s.repo.EncerrarFaixa(ctx, tx, travada.ID, now); err != nil {
			return err
		}
		if err := s.repo.EncerrarGraduacaoAberta(ctx, tx, alunoID, now); err != nil {
			return err
		}
		nova, err = s.repo.InsertAlunoFaixa(ctx, tx, AlunoFaixa{
			AlunoID:    alunoID,
			FaixaDefID: destino.ID,
			Ativa:      true,
			DtInicio:   now,
		})
		if err != nil {
			return err
		}
		origem := defAtual.ID
		_, err = s.repo.InsertGraduacao(ctx, tx, GraduacaoFaixa{
			AlunoID:        alunoID,
			FaixaOrigemID:  &origem,
			FaixaDestinoID: destino.ID,
			DtInicio:       now,
			Evento:         input.Evento,
			Observacao:     input.Observacao,
			Aprovado:       true,
		})
		return err
	})
	if err != nil {
		return StatusAluno{}, err
	}

	unidadeID, err := s.repo.GetUnidadeDoAluno(ctx, alunoID)
	if err != nil {
		return StatusAluno{}, err
	}
	regras := s.regrasPara(ctx, destino, unidadeID)
	return StatusAluno{Faixa: nova, Def: destino, Progresso: CalcularProgresso(nova, destino, regras, now)}, nil
}

// IniciarFaixa abre o primeiro vínculo de faixa do aluno (matrícula).
func (s *Service) IniciarFaixa(ctx context.Context, alunoID uuid.UUID, faixaCodigo string, inicio time.Time) (AlunoFaixa, error) {
	abertas, err := s.repo.CountFaixasAbertas(ctx, alunoID, nil)
	if err != nil {
		return AlunoFaixa{}, err
	}
	if abertas > 0 {
		return AlunoFaixa{}, ErrIntervaloAberto
	}
	def, err := s.repo.GetFaixaDefByCodigo(ctx, faixaCodigo)
	if err != nil {
		return AlunoFaixa{}, err
	}

	var af AlunoFaixa
	err = db.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		af, err = s.repo.InsertAlunoFaixa(ctx, tx, AlunoFaixa{
			AlunoID:    alunoID,
			FaixaDefID: def.ID,
			Ativa:      true,
			DtInicio:   inicio,
		})
		if err != nil {
			return err
		}
		_, err = s.repo.InsertGraduacao(ctx, tx, GraduacaoFaixa{
			AlunoID:        alunoID,
			FaixaDestinoID: def.ID,
			DtInicio:       inicio,
			Aprovado:       true,
		})
		return err
	})
	return af, err
}

// GrauHistoricoInput descreve um grau retroativo (backfill administrativo).
type GrauHistoricoInput struct {
	FaixaCodigo  string
	GrauNum      int
	DtConcessao  time.Time
	Observacao   *string
	ConcedidoPor *uuid.UUID
}

// AdicionarGrauHistorico registra um grau antigo na faixa informada.
func (s *Service) AdicionarGrauHistorico(ctx context.Context, alunoID uuid.UUID, input GrauHistoricoInput) (GrauHistorico, error) {
	if input.FaixaCodigo == "" {
		return GrauHistorico{}, errors.New("informe a faixa")
	}
	if input.DtConcessao.IsZero() {
		return GrauHistorico{}, errors.New("informe a data de concessão")
	}
	def, err := s.repo.GetFaixaDefByCodigo(ctx, input.FaixaCodigo)
	if err != nil {
		return GrauHistorico{}, err
	}

	af, err := s.repo.GetFaixaAtiva(ctx, alunoID)
	if err != nil || af.FaixaDefID != def.ID {
		return GrauHistorico{}, errors.New("aluno não possui vínculo com esta faixa")
	}

	var grau GrauHistorico
	err = db.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		grau, err = s.repo.InsertGrau(ctx, tx, GrauHistorico{
			AlunoFaixaID: af.ID,
			GrauNum:      input.GrauNum,
			Origem:       OrigemImportado,
			Observacao:   input.Observacao,
			ConcedidoPor: input.ConcedidoPor,
			DtConcessao:  input.DtConcessao,
		})
		return err
	})
	return grau, err
}

// FaixaHistoricoInput descreve um intervalo de faixa retroativo.
type FaixaHistoricoInput struct {
	FaixaDestinoCodigo string
	DtInicio           time.Time
	DtFim              *time.Time
	Atual              bool
	Observacao         *string
}

// ValidarFaixaHistorico aplica as regras de datas do editor de histórico.
func ValidarFaixaHistorico(input FaixaHistoricoInput) error {
	if input.FaixaDestinoCodigo == "" {
		return errors.New("informe a faixa de destino")
	}
	if input.DtInicio.IsZero() {
		return errors.New("informe a data de início")
	}
	if input.Atual {
		if input.DtFim != nil {
			return errors.New("faixa atual não pode ter data final")
		}
		return nil
	}
	if input.DtFim == nil {
		return errors.New("faixa não atual exige data final")
	}
	if input.DtFim.Before(input.DtInicio) {
		return ErrDatasInvalidas
	}
	return nil
}

// AdicionarFaixaHistorico registra um intervalo antigo de faixa.
func (s *Service) AdicionarFaixaHistorico(ctx context.Context, alunoID uuid.UUID, input FaixaHistoricoInput) (GraduacaoFaixa, error) {
	if err := ValidarFaixaHistorico(input); err != nil {
		return GraduacaoFaixa{}, err
	}
	def, err := s.repo.GetFaixaDefByCodigo(ctx, input.FaixaDestinoCodigo)
	if err != nil {
		return GraduacaoFaixa{}, err
	}
	if input.Atual {
		abertas, err := s.repo.CountFaixasAbertas(ctx, alunoID, nil)
		if err != nil {
			return GraduacaoFaixa{}, err
		}
		if abertas > 0 {
			return GraduacaoFaixa{}, ErrIntervaloAberto
		}
	}

	var grad GraduacaoFaixa
	err = db.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := s.repo.InsertAlunoFaixa(ctx, tx, AlunoFaixa{
			AlunoID:    alunoID,
			FaixaDefID: def.ID,
			Ativa:      input.Atual,
			DtInicio:   input.DtInicio,
			DtFim:      input.DtFim,
		}); err != nil {
			return err
		}
		grad, err = s.repo.InsertGraduacao(ctx, tx, GraduacaoFaixa{
			AlunoID:        alunoID,
			FaixaDestinoID: def.ID,
			DtInicio:       input.DtInicio,
			DtFim:          input.DtFim,
			Observacao:     input.Observacao,
			Aprovado:       true,
		})
		return err
	})
	return grad, err
}

// EditarFaixaHistorico atualiza um intervalo já registrado, com as mesmas
// validações de datas da inclusão.
func (s *Service) EditarFaixaHistorico(ctx context.Context, id uuid.UUID, input FaixaHistoricoInput) (GraduacaoFaixa, error) {
	if err := ValidarFaixaHistorico(input); err != nil {
		return GraduacaoFaixa{}, err
	}
	atual, err := s.repo.GetGraduacao(ctx, id)
	if err != nil {
		return GraduacaoFaixa{}, err
	}
	def, err := s.repo.GetFaixaDefByCodigo(ctx, input.FaixaDestinoCodigo)
	if err != nil {
		return GraduacaoFaixa{}, err
	}
	if input.Atual {
		abertas, err := s.repo.CountFaixasAbertas(ctx, atual.AlunoID, nil)
		if err != nil {
			return GraduacaoFaixa{}, err
		}
		// A única faixa aberta admissível é a do próprio intervalo editado.
		if abertas > 0 && atual.DtFim != nil {
			return GraduacaoFaixa{}, ErrIntervaloAberto
		}
	}

	atual.FaixaDestinoID = def.ID
	atual.DtInicio = input.DtInicio
	atual.DtFim = input.DtFim
	atual.Observacao = input.Observacao
	return s.repo.UpdateGraduacao(ctx, atual)
}

// Historico agrega status atual, graus e intervalos de faixa do aluno.
type Historico struct {
	Status     *StatusAluno     `json:"status,omitempty"`
	Graus      []GrauHistorico  `json:"graus"`
	Graduacoes []GraduacaoFaixa `json:"graduacoes"`
}

func (s *Service) HistoricoCompleto(ctx context.Context, alunoID uuid.UUID, now time.Time) (Historico, error) {
	h := Historico{Graus: []GrauHistorico{}, Graduacoes: []GraduacaoFaixa{}}

	status, err := s.StatusGraduacao(ctx, alunoID, now)
	if err == nil {
		h.Status = &status
	} else if !errors.Is(err, ErrAlunoSemFaixa) {
		return Historico{}, err
	}

	graus, err := s.repo.ListGrausByAluno(ctx, alunoID)
	if err != nil {
		return Historico{}, err
	}
	if graus != nil {
		h.Graus = graus
	}

	grads, err := s.repo.ListGraduacoes(ctx, alunoID)
	if err != nil {
		return Historico{}, err
	}
	if grads != nil {
		h.Graduacoes = grads
	}
	return h, nil
}
