package financeiro

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type billingRepository interface {
	GetPlano(ctx context.Context, id uuid.UUID) (Plano, error)
	ListPlanos(ctx context.Context, unidadeID uuid.UUID, somenteAtivos bool) ([]Plano, error)
	InsertPlano(ctx context.Context, p Plano) (Plano, error)
	GetAssinatura(ctx context.Context, id uuid.UUID) (Assinatura, error)
	ExisteAtivaDoAluno(ctx context.Context, alunoID uuid.UUID) (bool, error)
	CountAtivasDoPlano(ctx context.Context, planoID uuid.UUID) (int, error)
	AlunoExiste(ctx context.Context, alunoID uuid.UUID) (bool, error)
	InsertAssinatura(ctx context.Context, a Assinatura) (Assinatura, error)
	UpdateAssinatura(ctx context.Context, a Assinatura) (Assinatura, error)
	ExpirarVencidas(ctx context.Context, hoje time.Time) (int64, error)
	ListAssinaturas(ctx context.Context, unidadeID uuid.UUID, status string, limit, offset int) ([]Assinatura, int, error)
	ListByAluno(ctx context.Context, alunoID uuid.UUID) ([]Assinatura, error)
}

// Service concentra o ciclo de vida de assinaturas.
type Service struct {
	repo billingRepository
}

func NewService(repo billingRepository) *Service {
	return &Service{repo: repo}
}

// CriarAssinaturaInput contém os dados de contratação.
type CriarAssinaturaInput struct {
	AlunoID         uuid.UUID
	PlanoID         uuid.UUID
	UnidadeID       uuid.UUID
	MetodoPagamento string
	DiaVencimento   int
	DataInicio      *time.Time
}

// Criar contrata um plano para o aluno.
func (s *Service) Criar(ctx context.Context, input CriarAssinaturaInput, now time.Time) (Assinatura, error) {
	metodo := strings.ToUpper(strings.TrimSpace(input.MetodoPagamento))
	if !metodosPagamento[metodo] {
		return Assinatura{}, ErrMetodoPagamento
	}

	existe, err := s.repo.AlunoExiste(ctx, input.AlunoID)
	if err != nil {
		return Assinatura{}, err
	}
	if !existe {
		return Assinatura{}, errors.New("aluno não encontrado")
	}

	plano, err := s.repo.GetPlano(ctx, input.PlanoID)
	if err != nil {
		return Assinatura{}, err
	}
	if !plano.Ativo {
		return Assinatura{}, ErrPlanoNaoEncontrado
	}

	ativa, err := s.repo.ExisteAtivaDoAluno(ctx, input.AlunoID)
	if err != nil {
		return Assinatura{}, err
	}
	if ativa {
		return Assinatura{}, ErrAssinaturaAtivaExiste
	}

	if plano.MaxAlunos != nil {
		ocupadas, err := s.repo.CountAtivasDoPlano(ctx, plano.ID)
		if err != nil {
			return Assinatura{}, err
		}
		if ocupadas >= *plano.MaxAlunos {
			return Assinatura{}, ErrPlanoLotado
		}
	}

	inicio := now
	if input.DataInicio != nil {
		inicio = *input.DataInicio
	}
	fim := inicio.AddDate(0, plano.DuracaoMeses, 0)
	if fim.Before(now) {
		return Assinatura{}, errors.New("data de término no passado")
	}

	cobranca := ProximaCobranca(now, input.DiaVencimento)
	return s.repo.InsertAssinatura(ctx, Assinatura{
		AlunoID:         input.AlunoID,
		PlanoID:         plano.ID,
		UnidadeID:       input.UnidadeID,
		Status:          StatusAtiva,
		MetodoPagamento: metodo,
		Valor:           plano.Valor,
		DataInicio:      inicio,
		DataFim:         fim,
		ProximaCobranca: &cobranca,
		DiaVencimento:   input.DiaVencimento,
	})
}

// Pausar suspende uma assinatura ativa.
func (s *Service) Pausar(ctx context.Context, id uuid.UUID) (Assinatura, error) {
	a, err := s.repo.GetAssinatura(ctx, id)
	if err != nil {
		return Assinatura{}, err
	}
	if a.Status != StatusAtiva {
		return Assinatura{}, ErrTransicaoInvalida
	}
	a.Status = StatusPausada
	a.ProximaCobranca = nil
	return s.repo.UpdateAssinatura(ctx, a)
}

// Reativar volta uma assinatura pausada para ativa.
func (s *Service) Reativar(ctx context.Context, id uuid.UUID, now time.Time) (Assinatura, error) {
	a, err := s.repo.GetAssinatura(ctx, id)
	if err != nil {
		return Assinatura{}, err
	}
	if a.Status != StatusPausada {
		return Assinatura{}, ErrTransicaoInvalida
	}
	a.Status = StatusAtiva
	cobranca := ProximaCobranca(now, a.DiaVencimento)
	a.ProximaCobranca = &cobranca
	return s.repo.UpdateAssinatura(ctx, a)
}

// Cancelar encerra a assinatura em definitivo.
func (s *Service) Cancelar(ctx context.Context, id uuid.UUID, canceladoPor *uuid.UUID, motivo *string, now time.Time) (Assinatura, error) {
	a, err := s.repo.GetAssinatura(ctx, id)
	if err != nil {
		return Assinatura{}, err
	}
	if a.Status == StatusCancelada {
		return Assinatura{}, ErrTransicaoInvalida
	}
	a.Status = StatusCancelada
	a.ProximaCobranca = nil
	a.CanceladoPor = canceladoPor
	a.CanceladoEm = &now
	a.MotivoCancelamento = motivo
	return s.repo.UpdateAssinatura(ctx, a)
}

// Renovar estende a assinatura por mais um mês.
func (s *Service) Renovar(ctx context.Context, id uuid.UUID, now time.Time) (Assinatura, error) {
	a, err := s.repo.GetAssinatura(ctx, id)
	if err != nil {
		return Assinatura{}, err
	}
	if a.Status == StatusCancelada {
		return Assinatura{}, ErrTransicaoInvalida
	}
	a.Status = StatusAtiva
	a.DataFim = a.DataFim.AddDate(0, 1, 0)
	cobranca := ProximaCobranca(now, a.DiaVencimento)
	a.ProximaCobranca = &cobranca
	return s.repo.UpdateAssinatura(ctx, a)
}

// MarcarInadimplente sinaliza atraso sem encerrar a assinatura.
func (s *Service) MarcarInadimplente(ctx context.Context, id uuid.UUID) (Assinatura, error) {
	a, err := s.repo.GetAssinatura(ctx, id)
	if err != nil {
		return Assinatura{}, err
	}
	if a.Status != StatusAtiva {
		return Assinatura{}, ErrTransicaoInvalida
	}
	a.Status = StatusInadimplente
	return s.repo.UpdateAssinatura(ctx, a)
}

// Listar varre expiradas antes de listar, mantendo a leitura consistente.
func (s *Service) Listar(ctx context.Context, unidadeID uuid.UUID, status string, limit, offset int, now time.Time) ([]Assinatura, int, error) {
	s.expirarVencidas(ctx, now)
	return s.repo.ListAssinaturas(ctx, unidadeID, strings.ToUpper(strings.TrimSpace(status)), limit, offset)
}

func (s *Service) ListarPorAluno(ctx context.Context, alunoID uuid.UUID, now time.Time) ([]Assinatura, error) {
	s.expirarVencidas(ctx, now)
	return s.repo.ListByAluno(ctx, alunoID)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Assinatura, error) {
	return s.repo.GetAssinatura(ctx, id)
}

func (s *Service) ListarPlanos(ctx context.Context, unidadeID uuid.UUID) ([]Plano, error) {
	return s.repo.ListPlanos(ctx, unidadeID, true)
}

// CriarPlano registra um plano comercial.
func (s *Service) CriarPlano(ctx context.Context, p Plano) (Plano, error) {
	if strings.TrimSpace(p.Nome) == "" {
		return Plano{}, errors.New("informe o nome do plano")
	}
	if p.Valor <= 0 {
		return Plano{}, errors.New("valor do plano deve ser positivo")
	}
	if p.DuracaoMeses <= 0 {
		return Plano{}, errors.New("duração do plano deve ser positiva")
	}
	return s.repo.InsertPlano(ctx, p)
}

func (s *Service) expirarVencidas(ctx context.Context, now time.Time) {
	hoje := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if n, err := s.repo.ExpirarVencidas(ctx, hoje); err != nil {
		log.Warn().Err(err).Msg("falha ao expirar assinaturas vencidas")
	} else if n > 0 {
		log.Info().Int64("assinaturas", n).Msg("assinaturas expiradas")
	}
}
