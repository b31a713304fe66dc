package financeiro

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

type stubRepo struct {
	planos      map[uuid.UUID]Plano
	assinaturas map[uuid.UUID]Assinatura
	alunos      map[uuid.UUID]bool
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		planos:      make(map[uuid.UUID]Plano),
		assinaturas: make(map[uuid.UUID]Assinatura),
		alunos:      make(map[uuid.UUID]bool),
	}
}

func (s *stubRepo) GetPlano(_ context.Context, id uuid.UUID) (Plano, error) {
	p, ok := s.planos[id]
	if !ok {
		return Plano{}, ErrPlanoNaoEncontrado
	}
	return p, nil
}

func (s *stubRepo) ListPlanos(_ context.Context, _ uuid.UUID, _ bool) ([]Plano, error) {
	return nil, nil
}

func (s *stubRepo) InsertPlano(_ context.Context, p Plano) (Plano, error) {
	p.ID = uuid.New()
	p.Ativo = true
	s.planos[p.ID] = p
	return p, nil
}

func (s *stubRepo) GetAssinatura(_ context.Context, id uuid.UUID) (Assinatura, error) {
	a, ok := s.assinaturas[id]
	if !ok {
		return Assinatura{}, ErrAssinaturaNaoEncontrada
	}
	return a, nil
}

func (s *stubRepo) ExisteAtivaDoAluno(_ context.Context, alunoID uuid.UUID) (bool, error) {
	for _, a := range s.assinaturas {
		if a.AlunoID == alunoID && a.Status == StatusAtiva {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRepo) CountAtivasDoPlano(_ context.Context, planoID uuid.UUID) (int, error) {
	n := 0
	for _, a := range s.assinaturas {
		if a.PlanoID == planoID && a.Status == StatusAtiva {
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) AlunoExiste(_ context.Context, alunoID uuid.UUID) (bool, error) {
	return s.alunos[alunoID], nil
}

func (s *stubRepo) InsertAssinatura(_ context.Context, a Assinatura) (Assinatura, error) {
	a.ID = uuid.New()
	s.assinaturas[a.ID] = a
	return a, nil
}

func (s *stubRepo) UpdateAssinatura(_ context.Context, a Assinatura) (Assinatura, error) {
	if _, ok := s.assinaturas[a.ID]; !ok {
		return Assinatura{}, ErrAssinaturaNaoEncontrada
	}
	s.assinaturas[a.ID] = a
	return a, nil
}

func (s *stubRepo) ExpirarVencidas(_ context.Context, hoje time.Time) (int64, error) {
	var n int64
	for id, a := range s.assinaturas {
		if a.Status == StatusAtiva && a.DataFim.Before(hoje) {
			a.Status = StatusExpirada
			s.assinaturas[id] = a
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) ListAssinaturas(_ context.Context, _ uuid.UUID, status string, _, _ int) ([]Assinatura, int, error) {
	var out []Assinatura
	for _, a := range s.assinaturas {
		if status == "" || a.Status == status {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

func (s *stubRepo) ListByAluno(_ context.Context, alunoID uuid.UUID) ([]Assinatura, error) {
	var out []Assinatura
	for _, a := range s.assinaturas {
		if a.AlunoID == alunoID {
			out = append(out, a)
		}
	}
	return out, nil
}

var hoje = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func novaAssinatura(t *testing.T, repo *stubRepo, s *Service) Assinatura {
	t.Helper()
	alunoID := uuid.New()
	repo.alunos[alunoID] = true
	plano, err := s.CriarPlano(context.Background(), Plano{UnidadeID: uuid.New(), Nome: "Mensal", Valor: 150, DuracaoMeses: 1})
	if err != nil {
		t.Fatalf("criar plano: %v", err)
	}

	a, err := s.Criar(context.Background(), CriarAssinaturaInput{
		AlunoID:         alunoID,
		PlanoID:         plano.ID,
		UnidadeID:       plano.UnidadeID,
		MetodoPagamento: "PIX",
		DiaVencimento:   5,
	}, hoje)
	if err != nil {
		t.Fatalf("criar assinatura: %v", err)
	}
	return a
}

func TestCriarRejeitaSegundaAtiva(t *testing.T) {
	repo := newStubRepo()
	s := NewService(repo)
	a := novaAssinatura(t, repo, s)

	_, err := s.Criar(context.Background(), CriarAssinaturaInput{
		AlunoID:         a.AlunoID,
		PlanoID:         a.PlanoID,
		UnidadeID:       a.UnidadeID,
		MetodoPagamento: "PIX",
		DiaVencimento:   5,
	}, hoje)
	if err != ErrAssinaturaAtivaExiste {
		t.Fatalf("esperava ErrAssinaturaAtivaExiste, veio %v", err)
	}
}

func TestCriarRespeitaLimiteDoPlano(t *testing.T) {
	repo := newStubRepo()
	s := NewService(repo)

	limite := 1
	plano, _ := s.CriarPlano(context.Background(), Plano{UnidadeID: uuid.New(), Nome: "Turma fechada", Valor: 200, DuracaoMeses: 3})
	plano.MaxAlunos = &limite
	repo.planos[plano.ID] = plano

	primeiro := uuid.New()
	segundo := uuid.New()
	repo.alunos[primeiro] = true
	repo.alunos[segundo] = true

	if _, err := s.Criar(context.Background(), CriarAssinaturaInput{AlunoID: primeiro, PlanoID: plano.ID, UnidadeID: plano.UnidadeID, MetodoPagamento: "CARTAO", DiaVencimento: 10}, hoje); err != nil {
		t.Fatalf("primeira vaga: %v", err)
	}
	if _, err := s.Criar(context.Background(), CriarAssinaturaInput{AlunoID: segundo, PlanoID: plano.ID, UnidadeID: plano.UnidadeID, MetodoPagamento: "CARTAO", DiaVencimento: 10}, hoje); err != ErrPlanoLotado {
		t.Fatalf("esperava ErrPlanoLotado, veio %v", err)
	}
}

func TestTransicoesDeStatus(t *testing.T) {
	repo := newStubRepo()
	s := NewService(repo)
	ctx := context.Background()

	a := novaAssinatura(t, repo, s)

	// Reativar só sai de PAUSADA.
	if _, err := s.Reativar(ctx, a.ID, hoje); err != ErrTransicaoInvalida {
		t.Fatalf("reativar ATIVA deveria falhar, veio %v", err)
	}

	pausada, err := s.Pausar(ctx, a.ID)
	if err != nil {
		t.Fatalf("pausar: %v", err)
	}
	if pausada.Status != StatusPausada {
		t.Fatalf("esperava PAUSADA, veio %s", pausada.Status)
	}
	if pausada.ProximaCobranca != nil {
		t.Fatal("assinatura pausada não mantém próxima cobrança")
	}

	// Pausar de novo falha.
	if _, err := s.Pausar(ctx, a.ID); err != ErrTransicaoInvalida {
		t.Fatalf("pausar PAUSADA deveria falhar, veio %v", err)
	}

	reativada, err := s.Reativar(ctx, a.ID, hoje)
	if err != nil {
		t.Fatalf("reativar: %v", err)
	}
	if reativada.Status != StatusAtiva || reativada.ProximaCobranca == nil {
		t.Fatal("reativação deveria voltar a ATIVA com próxima cobrança")
	}

	cancelada, err := s.Cancelar(ctx, a.ID, nil, nil, hoje)
	if err != nil {
		t.Fatalf("cancelar: %v", err)
	}
	if cancelada.Status != StatusCancelada || cancelada.CanceladoEm == nil {
		t.Fatal("cancelamento deveria registrar status e data")
	}

	// Cancelar de novo e renovar cancelada são rejeitados.
	if _, err := s.Cancelar(ctx, a.ID, nil, nil, hoje); err != ErrTransicaoInvalida {
		t.Fatalf("cancelar CANCELADA deveria falhar, veio %v", err)
	}
	if _, err := s.Renovar(ctx, a.ID, hoje); err != ErrTransicaoInvalida {
		t.Fatalf("renovar CANCELADA deveria falhar, veio %v", err)
	}
}

func TestListarExpiraVencidas(t *testing.T) {
	repo := newStubRepo()
	s := NewService(repo)
	a := novaAssinatura(t, repo, s)

	vencida := repo.assinaturas[a.ID]
	vencida.DataFim = hoje.AddDate(0, 0, -3)
	repo.assinaturas[a.ID] = vencida

	assinaturas, _, err := s.Listar(context.Background(), a.UnidadeID, "", 10, 0, hoje)
	if err != nil {
		t.Fatalf("listar: %v", err)
	}
	if len(assinaturas) != 1 || assinaturas[0].Status != StatusExpirada {
		t.Fatalf("assinatura vencida deveria aparecer como EXPIRADA, veio %+v", assinaturas)
	}
}

func TestProximaCobranca(t *testing.T) {
	// Dia 5 já passou em 10/06: rola para julho.
	got := ProximaCobranca(hoje, 5)
	want := time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("esperava %s, veio %s", want, got)
	}

	// Dia 20 ainda neste mês.
	got = ProximaCobranca(hoje, 20)
	want = time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("esperava %s, veio %s", want, got)
	}

	// Dia 31 em fevereiro ajusta para o último dia.
	fev := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	got = ProximaCobranca(fev, 31)
	want = time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("esperava %s, veio %s", want, got)
	}
}
