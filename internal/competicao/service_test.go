package competicao

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type stubRepo struct {
	competicoes map[uuid.UUID]Competicao
	resultados  map[uuid.UUID]AlunoCompeticao
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		competicoes: map[uuid.UUID]Competicao{},
		resultados:  map[uuid.UUID]AlunoCompeticao{},
	}
}

func (r *stubRepo) Insert(_ context.Context, c Competicao) (Competicao, error) {
	c.ID = uuid.New()
	r.competicoes[c.ID] = c
	return c, nil
}

func (r *stubRepo) Get(_ context.Context, id uuid.UUID) (Competicao, error) {
	c, ok := r.competicoes[id]
	if !ok {
		return Competicao{}, ErrNotFound
	}
	return c, nil
}

func (r *stubRepo) List(_ context.Context, _ *uuid.UUID, apenasFuturas bool, ref time.Time, _, _ int) ([]Competicao, error) {
	var out []Competicao
	for _, c := range r.competicoes {
		if apenasFuturas && c.Data.Before(ref) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *stubRepo) Update(_ context.Context, c Competicao) (Competicao, error) {
	if _, ok := r.competicoes[c.ID]; !ok {
		return Competicao{}, ErrNotFound
	}
	r.competicoes[c.ID] = c
	return c, nil
}

func (r *stubRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.competicoes[id]; !ok {
		return ErrNotFound
	}
	delete(r.competicoes, id)
	return nil
}

func (r *stubRepo) InsertResultado(_ context.Context, res AlunoCompeticao) (AlunoCompeticao, bool, error) {
	for _, existente := range r.resultados {
		if existente.CompeticaoID == res.CompeticaoID && existente.AlunoID == res.AlunoID {
			return AlunoCompeticao{}, false, nil
		}
	}
	res.ID = uuid.New()
	r.resultados[res.ID] = res
	return res, true, nil
}

func (r *stubRepo) UpdateResultado(_ context.Context, res AlunoCompeticao) (AlunoCompeticao, error) {
	atual, ok := r.resultados[res.ID]
	if !ok {
		return AlunoCompeticao{}, ErrResultadoNotFound
	}
	atual.Categoria = res.Categoria
	atual.Peso = res.Peso
	atual.Colocacao = res.Colocacao
	r.resultados[res.ID] = atual
	return atual, nil
}

func (r *stubRepo) DeleteResultado(_ context.Context, id uuid.UUID) error {
	if _, ok := r.resultados[id]; !ok {
		return ErrResultadoNotFound
	}
	delete(r.resultados, id)
	return nil
}

func (r *stubRepo) ListResultados(_ context.Context, competicaoID uuid.UUID) ([]AlunoCompeticao, error) {
	var out []AlunoCompeticao
	for _, res := range r.resultados {
		if res.CompeticaoID == competicaoID {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *stubRepo) ListResultadosDoAluno(_ context.Context, alunoID uuid.UUID) ([]ResultadoDoAluno, error) {
	var out []ResultadoDoAluno
	for _, res := range r.resultados {
		if res.AlunoID == alunoID {
			out = append(out, ResultadoDoAluno{AlunoCompeticao: res})
		}
	}
	return out, nil
}

func TestCriarExigeNomeEData(t *testing.T) {
	service := NewService(newStubRepo())
	ctx := context.Background()

	_, err := service.Criar(ctx, CompeticaoInput{Data: time.Now()})
	if !errors.Is(err, ErrNomeObrigatorio) {
		t.Fatalf("err = %v, esperado ErrNomeObrigatorio", err)
	}

	_, err = service.Criar(ctx, CompeticaoInput{Nome: "Copa SP"})
	if !errors.Is(err, ErrDataObrigatoria) {
		t.Fatalf("err = %v, esperado ErrDataObrigatoria", err)
	}
}

func TestRegistrarResultadoDuplicado(t *testing.T) {
	repo := newStubRepo()
	service := NewService(repo)
	ctx := context.Background()

	competicao, err := service.Criar(ctx, CompeticaoInput{
		UnidadeID: uuid.New(),
		Nome:      "Copa TeamCruz",
		Data:      time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Criar: %v", err)
	}

	alunoID := uuid.New()
	colocacao := 1
	if _, err := service.RegistrarResultado(ctx, competicao.ID, ResultadoInput{AlunoID: alunoID, Colocacao: &colocacao}); err != nil {
		t.Fatalf("primeiro resultado: %v", err)
	}

	_, err = service.RegistrarResultado(ctx, competicao.ID, ResultadoInput{AlunoID: alunoID})
	if !errors.Is(err, ErrResultadoDuplicado) {
		t.Fatalf("err = %v, esperado ErrResultadoDuplicado", err)
	}
}

func TestRegistrarResultadoValidaCampos(t *testing.T) {
	repo := newStubRepo()
	service := NewService(repo)
	ctx := context.Background()

	competicao, err := service.Criar(ctx, CompeticaoInput{
		UnidadeID: uuid.New(),
		Nome:      "Open Rio",
		Data:      time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Criar: %v", err)
	}

	zero := 0
	_, err = service.RegistrarResultado(ctx, competicao.ID, ResultadoInput{AlunoID: uuid.New(), Colocacao: &zero})
	if !errors.Is(err, ErrColocacaoInvalida) {
		t.Fatalf("err = %v, esperado ErrColocacaoInvalida", err)
	}

	pesoNegativo := -70.5
	_, err = service.RegistrarResultado(ctx, competicao.ID, ResultadoInput{AlunoID: uuid.New(), Peso: &pesoNegativo})
	if !errors.Is(err, ErrPesoInvalido) {
		t.Fatalf("err = %v, esperado ErrPesoInvalido", err)
	}

	_, err = service.RegistrarResultado(ctx, uuid.New(), ResultadoInput{AlunoID: uuid.New()})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, esperado ErrNotFound", err)
	}
}
