package convenio

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service concentra vínculos de convênio e o registro de eventos de saída.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListarConvenios(ctx context.Context) ([]Convenio, error) {
	return s.repo.ListConvenios(ctx)
}

func (s *Service) HabilitarNaUnidade(ctx context.Context, unidadeID uuid.UUID, convenioCodigo string, percentual *float64) (UnidadeConvenio, error) {
	c, err := s.repo.GetConvenioByCodigo(ctx, strings.ToUpper(strings.TrimSpace(convenioCodigo)))
	if err != nil {
		return UnidadeConvenio{}, err
	}
	return s.repo.HabilitarNaUnidade(ctx, UnidadeConvenio{
		UnidadeID:         unidadeID,
		ConvenioID:        c.ID,
		PercentualRepasse: percentual,
	})
}

func (s *Service) DesabilitarNaUnidade(ctx context.Context, unidadeID uuid.UUID, convenioCodigo string) error {
	c, err := s.repo.GetConvenioByCodigo(ctx, strings.ToUpper(strings.TrimSpace(convenioCodigo)))
	if err != nil {
		return err
	}
	return s.repo.DesabilitarNaUnidade(ctx, unidadeID, c.ID)
}

// VincularAlunoInput descreve a adesão de um aluno a um convênio.
type VincularAlunoInput struct {
	AlunoID        uuid.UUID
	UnidadeID      uuid.UUID
	ConvenioCodigo string
	ConvenioUserID string
	Metadata       map[string]any
}

// VincularAluno cria o vínculo, exigindo convênio habilitado na unidade e
// identificador do parceiro inédito.
func (s *Service) VincularAluno(ctx context.Context, input VincularAlunoInput, now time.Time) (AlunoConvenio, error) {
	userID := strings.TrimSpace(input.ConvenioUserID)
	if userID == "" {
		return AlunoConvenio{}, errors.New("informe o identificador do aluno no convênio")
	}

	c, err := s.repo.GetConvenioByCodigo(ctx, strings.ToUpper(strings.TrimSpace(input.ConvenioCodigo)))
	if err != nil {
		return AlunoConvenio{}, err
	}

	habilitado, err := s.repo.HabilitadoNaUnidade(ctx, input.UnidadeID, c.ID)
	if err != nil {
		return AlunoConvenio{}, err
	}
	if !habilitado {
		return AlunoConvenio{}, ErrNaoHabilitado
	}

	duplicado, err := s.repo.ExisteConvenioUserID(ctx, c.ID, userID)
	if err != nil {
		return AlunoConvenio{}, err
	}
	if duplicado {
		return AlunoConvenio{}, ErrUsuarioDuplicado
	}

	return s.repo.InsertAlunoConvenio(ctx, AlunoConvenio{
		AlunoID:        input.AlunoID,
		ConvenioID:     c.ID,
		UnidadeID:      input.UnidadeID,
		ConvenioUserID: userID,
		DataAtivacao:   now,
		Metadata:       input.Metadata,
	})
}

// PausarVinculo suspende um vínculo ativo.
func (s *Service) PausarVinculo(ctx context.Context, id uuid.UUID) (AlunoConvenio, error) {
	ac, err := s.repo.GetAlunoConvenio(ctx, id)
	if err != nil {
		return AlunoConvenio{}, err
	}
	if ac.Status != StatusAtivo {
		return AlunoConvenio{}, ErrTransicaoInvalida
	}
	return s.repo.UpdateStatusAlunoConvenio(ctx, id, StatusPausado, nil)
}

// ReativarVinculo volta um vínculo pausado para ativo.
func (s *Service) ReativarVinculo(ctx context.Context, id uuid.UUID) (AlunoConvenio, error) {
	ac, err := s.repo.GetAlunoConvenio(ctx, id)
	if err != nil {
		return AlunoConvenio{}, err
	}
	if ac.Status != StatusPausado {
		return AlunoConvenio{}, ErrTransicaoInvalida
	}
	return s.repo.UpdateStatusAlunoConvenio(ctx, id, StatusAtivo, nil)
}

// CancelarVinculo encerra o vínculo e registra o evento de cancelamento.
func (s *Service) CancelarVinculo(ctx context.Context, id uuid.UUID, now time.Time) (AlunoConvenio, error) {
	ac, err := s.repo.GetAlunoConvenio(ctx, id)
	if err != nil {
		return AlunoConvenio{}, err
	}
	if ac.Status == StatusCancelado {
		return AlunoConvenio{}, ErrTransicaoInvalida
	}

	atualizado, err := s.repo.UpdateStatusAlunoConvenio(ctx, id, StatusCancelado, &now)
	if err != nil {
		return AlunoConvenio{}, err
	}
	_, err = s.repo.InsertEvento(ctx, EventoConvenio{AlunoConvenioID: id, Tipo: EventoCancelamento})
	return atualizado, err
}

func (s *Service) ListarVinculos(ctx context.Context, unidadeID *uuid.UUID, status string, limit, offset int) ([]AlunoConvenio, int, error) {
	return s.repo.ListAlunoConvenios(ctx, unidadeID, strings.ToUpper(strings.TrimSpace(status)), limit, offset)
}

// RegistrarCheckin grava um evento de check-in quando o aluno tem convênio
// ativo; sem vínculo é um no-op.
func (s *Service) RegistrarCheckin(ctx context.Context, alunoID, unidadeID, presencaID uuid.UUID) error {
	ac, err := s.repo.GetVinculoAtivoDoAluno(ctx, alunoID)
	if errors.Is(err, ErrVinculoNaoEncontrado) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.repo.InsertEvento(ctx, EventoConvenio{
		AlunoConvenioID: ac.ID,
		PresencaID:      &presencaID,
		Tipo:            EventoCheckin,
	})
	return err
}

func (s *Service) ListarEventos(ctx context.Context, alunoConvenioID *uuid.UUID, limit, offset int) ([]EventoConvenio, error) {
	return s.repo.ListEventos(ctx, alunoConvenioID, limit, offset)
}
