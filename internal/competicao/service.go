package competicao

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// competicaoRepository isola o acesso a dados para permitir stubs nos testes.
type competicaoRepository interface {
	Insert(ctx context.Context, c Competicao) (Competicao, error)
	Get(ctx context.Context, id uuid.UUID) (Competicao, error)
	List(ctx context.Context, unidadeID *uuid.UUID, apenasFuturas bool, ref time.Time, limit, offset int) ([]Competicao, error)
	Update(ctx context.Context, c Competicao) (Competicao, error)
	Delete(ctx context.Context, id uuid.UUID) error
	InsertResultado(ctx context.Context, res AlunoCompeticao) (AlunoCompeticao, bool, error)
	UpdateResultado(ctx context.Context, res AlunoCompeticao) (AlunoCompeticao, error)
	DeleteResultado(ctx context.Context, id uuid.UUID) error
	ListResultados(ctx context.Context, competicaoID uuid.UUID) ([]AlunoCompeticao, error)
	ListResultadosDoAluno(ctx context.Context, alunoID uuid.UUID) ([]ResultadoDoAluno, error)
}

type Service struct {
	repo competicaoRepository
}

func NewService(repo competicaoRepository) *Service {
	return &Service{repo: repo}
}

type CompeticaoInput struct {
	UnidadeID  uuid.UUID
	Nome       string
	Local      *string
	Data       time.Time
	Observacao *string
}

func (in CompeticaoInput) validar() error {
	if strings.TrimSpace(in.Nome) == "" {
		return ErrNomeObrigatorio
	}
	if in.Data.IsZero() {
		return ErrDataObrigatoria
	}
	return nil
}

func (s *Service) Criar(ctx context.Context, input CompeticaoInput) (Competicao, error) {
	if err := input.validar(); err != nil {
		return Competicao{}, err
	}
	return s.repo.Insert(ctx, Competicao{
		UnidadeID:  input.UnidadeID,
		Nome:       strings.TrimSpace(input.Nome),
		Local:      input.Local,
		Data:       input.Data,
		Observacao: input.Observacao,
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Competicao, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Listar(ctx context.Context, unidadeID *uuid.UUID, apenasFuturas bool, ref time.Time, limit, offset int) ([]Competicao, error) {
	return s.repo.List(ctx, unidadeID, apenasFuturas, ref, limit, offset)
}

func (s *Service) Atualizar(ctx context.Context, id uuid.UUID, input CompeticaoInput) (Competicao, error) {
	if err := input.validar(); err != nil {
		return Competicao{}, err
	}
	atual, err := s.repo.Get(ctx, id)
	if err != nil {
		return Competicao{}, err
	}

	atual.Nome = strings.TrimSpace(input.Nome)
	atual.Local = input.Local
	atual.Data = input.Data
	atual.Observacao = input.Observacao
	return s.repo.Update(ctx, atual)
}

func (s *Service) Deletar(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

type ResultadoInput struct {
	AlunoID   uuid.UUID
	Categoria *string
	Peso      *float64
	Colocacao *int
}

func (in ResultadoInput) validar() error {
	if in.Colocacao != nil && *in.Colocacao <= 0 {
		return ErrColocacaoInvalida
	}
	if in.Peso != nil && *in.Peso <= 0 {
		return ErrPesoInvalido
	}
	return nil
}

// RegistrarResultado grava a participação do aluno. Cada aluno tem no máximo
// um resultado por competição.
func (s *Service) RegistrarResultado(ctx context.Context, competicaoID uuid.UUID, input ResultadoInput) (AlunoCompeticao, error) {
	if err := input.validar(); err != nil {
		return AlunoCompeticao{}, err
	}
	if _, err := s.repo.Get(ctx, competicaoID); err != nil {
		return AlunoCompeticao{}, err
	}

	res, inserido, err := s.repo.InsertResultado(ctx, AlunoCompeticao{
		CompeticaoID: competicaoID,
		AlunoID:      input.AlunoID,
		Categoria:    input.Categoria,
		Peso:         input.Peso,
		Colocacao:    input.Colocacao,
	})
	if err != nil {
		return AlunoCompeticao{}, err
	}
	if !inserido {
		return AlunoCompeticao{}, ErrResultadoDuplicado
	}
	return res, nil
}

func (s *Service) AtualizarResultado(ctx context.Context, id uuid.UUID, input ResultadoInput) (AlunoCompeticao, error) {
	if err := input.validar(); err != nil {
		return AlunoCompeticao{}, err
	}
	return s.repo.UpdateResultado(ctx, AlunoCompeticao{
		ID:        id,
		Categoria: input.Categoria,
		Peso:      input.Peso,
		Colocacao: input.Colocacao,
	})
}

func (s *Service) RemoverResultado(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteResultado(ctx, id)
}

func (s *Service) Resultados(ctx context.Context, competicaoID uuid.UUID) ([]AlunoCompeticao, error) {
	if _, err := s.repo.Get(ctx, competicaoID); err != nil {
		return nil, err
	}
	return s.repo.ListResultados(ctx, competicaoID)
}

func (s *Service) ResultadosDoAluno(ctx context.Context, alunoID uuid.UUID) ([]ResultadoDoAluno, error) {
	return s.repo.ListResultadosDoAluno(ctx, alunoID)
}
