package aluno

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

type stubRepo struct {
	alunos map[uuid.UUID]Aluno
}

func newStubRepo() *stubRepo {
	return &stubRepo{alunos: make(map[uuid.UUID]Aluno)}
}

func (s *stubRepo) Insert(_ context.Context, a Aluno) (Aluno, error) {
	for _, existente := range s.alunos {
		if existente.CPF == a.CPF {
			return Aluno{}, ErrCPFDuplicado
		}
	}
	a.ID = uuid.New()
	a.Status = "ATIVO"
	s.alunos[a.ID] = a
	return a, nil
}

func (s *stubRepo) GetByID(_ context.Context, id uuid.UUID) (Aluno, error) {
	a, ok := s.alunos[id]
	if !ok {
		return Aluno{}, ErrNotFound
	}
	return a, nil
}

func (s *stubRepo) GetByCPF(_ context.Context, cpf string) (Aluno, error) {
	for _, a := range s.alunos {
		if a.CPF == cpf {
			return a, nil
		}
	}
	return Aluno{}, ErrNotFound
}

func (s *stubRepo) GetByUsuarioID(_ context.Context, usuarioID uuid.UUID) (Aluno, error) {
	for _, a := range s.alunos {
		if a.UsuarioID != nil && *a.UsuarioID == usuarioID {
			return a, nil
		}
	}
	return Aluno{}, ErrNotFound
}

func (s *stubRepo) SearchByNome(_ context.Context, _ *uuid.UUID, _ string, _ int) ([]Aluno, error) {
	return nil, nil
}

func (s *stubRepo) ListByUnidade(_ context.Context, _ uuid.UUID, _ string, _, _ int) ([]Aluno, int, error) {
	return nil, 0, nil
}

func (s *stubRepo) Update(_ context.Context, id uuid.UUID, input UpdateAlunoInput) (Aluno, error) {
	a, ok := s.alunos[id]
	if !ok {
		return Aluno{}, ErrNotFound
	}
	if input.NomeCompleto != nil {
		a.NomeCompleto = *input.NomeCompleto
	}
	if input.Status != nil {
		a.Status = *input.Status
	}
	s.alunos[id] = a
	return a, nil
}

func (s *stubRepo) SetStatus(_ context.Context, id uuid.UUID, status string) error {
	a, ok := s.alunos[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	s.alunos[id] = a
	return nil
}

func (s *stubRepo) EhResponsavel(_ context.Context, responsavelUsuarioID, dependenteID uuid.UUID) (bool, error) {
	dep, ok := s.alunos[dependenteID]
	if !ok || dep.ResponsavelID == nil {
		return false, nil
	}
	resp, ok := s.alunos[*dep.ResponsavelID]
	if !ok || resp.UsuarioID == nil {
		return false, nil
	}
	return *resp.UsuarioID == responsavelUsuarioID, nil
}

// CPF com dígitos verificadores válidos, usado apenas em teste.
const cpfValido = "52998224725"

func TestCreateNormalizaCPF(t *testing.T) {
	s := NewService(newStubRepo())

	a, err := s.Create(context.Background(), CreateAlunoInput{
		UnidadeID:    uuid.New(),
		NomeCompleto: "  João da Silva ",
		CPF:          "529.982.247-25",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.CPF != cpfValido {
		t.Fatalf("CPF deveria ser normalizado para dígitos, veio %q", a.CPF)
	}
	if a.NomeCompleto != "João da Silva" {
		t.Fatalf("nome deveria ser aparado, veio %q", a.NomeCompleto)
	}
}

func TestCreateRejeitaCPFInvalido(t *testing.T) {
	s := NewService(newStubRepo())

	_, err := s.Create(context.Background(), CreateAlunoInput{
		UnidadeID:    uuid.New(),
		NomeCompleto: "Maria Souza",
		CPF:          "11111111111",
	})
	if err != ErrCPFInvalido {
		t.Fatalf("esperava ErrCPFInvalido, veio %v", err)
	}
}

func TestCreateRejeitaEmailInvalido(t *testing.T) {
	s := NewService(newStubRepo())

	email := "sem-arroba"
	_, err := s.Create(context.Background(), CreateAlunoInput{
		UnidadeID:    uuid.New(),
		NomeCompleto: "Maria Souza",
		CPF:          cpfValido,
		Email:        &email,
	})
	if err == nil {
		t.Fatal("esperava erro para e-mail sem formato válido")
	}
}

func TestGetByCPFRejeitaInvalido(t *testing.T) {
	s := NewService(newStubRepo())

	if _, err := s.GetByCPF(context.Background(), "123"); err != ErrCPFInvalido {
		t.Fatalf("esperava ErrCPFInvalido, veio %v", err)
	}
}

func TestCreateRejeitaCPFDuplicado(t *testing.T) {
	repo := newStubRepo()
	s := NewService(repo)

	input := CreateAlunoInput{UnidadeID: uuid.New(), NomeCompleto: "João da Silva", CPF: cpfValido}
	if _, err := s.Create(context.Background(), input); err != nil {
		t.Fatalf("primeiro create: %v", err)
	}
	if _, err := s.Create(context.Background(), input); err != ErrCPFDuplicado {
		t.Fatalf("esperava ErrCPFDuplicado, veio %v", err)
	}
}

func TestPodeAgirPorResponsavel(t *testing.T) {
	repo := newStubRepo()
	s := NewService(repo)

	usuarioResp := uuid.New()
	resp, _ := repo.Insert(context.Background(), Aluno{
		UsuarioID:    &usuarioResp,
		UnidadeID:    uuid.New(),
		NomeCompleto: "Carlos Pai",
		CPF:          cpfValido,
	})
	dep, _ := repo.Insert(context.Background(), Aluno{
		UnidadeID:     resp.UnidadeID,
		NomeCompleto:  "Carlinhos Filho",
		CPF:           "11144477735",
		ResponsavelID: &resp.ID,
	})

	ok, err := s.PodeAgirPor(context.Background(), usuarioResp, dep.ID)
	if err != nil {
		t.Fatalf("PodeAgirPor: %v", err)
	}
	if !ok {
		t.Fatal("responsável deveria poder agir pelo dependente")
	}

	outro := uuid.New()
	ok, err = s.PodeAgirPor(context.Background(), outro, dep.ID)
	if err != nil {
		t.Fatalf("PodeAgirPor: %v", err)
	}
	if ok {
		t.Fatal("usuário sem vínculo não deveria poder agir pelo dependente")
	}
}
