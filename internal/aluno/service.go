package aluno

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teamcruz/academia/internal/util"
)

var (
	// ErrCPFInvalido indica CPF com dígitos verificadores incorretos.
	ErrCPFInvalido = errors.New("CPF inválido")
	// ErrStatusInvalido indica status fora do conjunto permitido.
	ErrStatusInvalido = errors.New("status inválido")
)

var statusValidos = map[string]bool{
	"ATIVO":    true,
	"INATIVO":  true,
	"SUSPENSO": true,
}

type alunoRepository interface {
	Insert(ctx context.Context, a Aluno) (Aluno, error)
	GetByID(ctx context.Context, id uuid.UUID) (Aluno, error)
	GetByCPF(ctx context.Context, cpf string) (Aluno, error)
	GetByUsuarioID(ctx context.Context, usuarioID uuid.UUID) (Aluno, error)
	SearchByNome(ctx context.Context, unidadeID *uuid.UUID, nome string, limit int) ([]Aluno, error)
	ListByUnidade(ctx context.Context, unidadeID uuid.UUID, status string, limit, offset int) ([]Aluno, int, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateAlunoInput) (Aluno, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	EhResponsavel(ctx context.Context, responsavelUsuarioID, dependenteID uuid.UUID) (bool, error)
}

// Service concentra as regras de matrícula de alunos.
type Service struct {
	repo alunoRepository
}

func NewService(repo alunoRepository) *Service {
	return &Service{repo: repo}
}

// CreateAlunoInput agrupa os dados de matrícula.
type CreateAlunoInput struct {
	UsuarioID      *uuid.UUID
	UnidadeID      uuid.UUID
	NomeCompleto   string
	CPF            string
	DataNascimento *time.Time
	Genero         *string
	Telefone       *string
	Email          *string
	ResponsavelID  *uuid.UUID
}

func (s *Service) Create(ctx context.Context, input CreateAlunoInput) (Aluno, error) {
	nome := strings.TrimSpace(input.NomeCompleto)
	if len(nome) < 3 {
		return Aluno{}, errors.New("informe o nome completo")
	}
	cpf := util.OnlyDigits(input.CPF)
	if err := util.ValidateCPF(cpf); err != nil {
		return Aluno{}, ErrCPFInvalido
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email != "" {
			if err := util.ValidateEmail(email); err != nil {
				return Aluno{}, errors.New("e-mail inválido")
			}
		}
		input.Email = &email
	}
	if input.ResponsavelID != nil {
		if _, err := s.repo.GetByID(ctx, *input.ResponsavelID); err != nil {
			return Aluno{}, errors.New("responsável não encontrado")
		}
	}

	return s.repo.Insert(ctx, Aluno{
		UsuarioID:      input.UsuarioID,
		UnidadeID:      input.UnidadeID,
		NomeCompleto:   nome,
		CPF:            cpf,
		DataNascimento: input.DataNascimento,
		Genero:         input.Genero,
		Telefone:       input.Telefone,
		Email:          input.Email,
		ResponsavelID:  input.ResponsavelID,
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Aluno, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByCPF localiza aluno pelo CPF (apenas dígitos).
func (s *Service) GetByCPF(ctx context.Context, cpf string) (Aluno, error) {
	digits := util.OnlyDigits(cpf)
	if err := util.ValidateCPF(digits); err != nil {
		return Aluno{}, ErrCPFInvalido
	}
	return s.repo.GetByCPF(ctx, digits)
}

func (s *Service) GetByUsuario(ctx context.Context, usuarioID uuid.UUID) (Aluno, error) {
	return s.repo.GetByUsuarioID(ctx, usuarioID)
}

func (s *Service) Search(ctx context.Context, unidadeID *uuid.UUID, nome string, limit int) ([]Aluno, error) {
	nome = strings.TrimSpace(nome)
	if len(nome) < 2 {
		return nil, errors.New("informe ao menos 2 caracteres para busca")
	}
	return s.repo.SearchByNome(ctx, unidadeID, nome, limit)
}

func (s *Service) List(ctx context.Context, unidadeID uuid.UUID, status string, limit, offset int) ([]Aluno, int, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != "" && !statusValidos[status] {
		return nil, 0, ErrStatusInvalido
	}
	return s.repo.ListByUnidade(ctx, unidadeID, status, limit, offset)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateAlunoInput) (Aluno, error) {
	if input.NomeCompleto != nil {
		nome := strings.TrimSpace(*input.NomeCompleto)
		if len(nome) < 3 {
			return Aluno{}, errors.New("informe o nome completo")
		}
		input.NomeCompleto = &nome
	}
	if input.Status != nil {
		status := strings.ToUpper(strings.TrimSpace(*input.Status))
		if !statusValidos[status] {
			return Aluno{}, ErrStatusInvalido
		}
		input.Status = &status
	}
	return s.repo.Update(ctx, id, input)
}

// Desativar marca o aluno como INATIVO preservando histórico.
func (s *Service) Desativar(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetStatus(ctx, id, "INATIVO")
}

// Reativar volta o aluno para ATIVO.
func (s *Service) Reativar(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetStatus(ctx, id, "ATIVO")
}

// PodeAgirPor confere se o usuário é o próprio aluno ou responsável por ele.
func (s *Service) PodeAgirPor(ctx context.Context, usuarioID, alunoID uuid.UUID) (bool, error) {
	a, err := s.repo.GetByID(ctx, alunoID)
	if err != nil {
		return false, err
	}
	if a.UsuarioID != nil && *a.UsuarioID == usuarioID {
		return true, nil
	}
	return s.repo.EhResponsavel(ctx, usuarioID, alunoID)
}
