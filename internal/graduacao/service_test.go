package graduacao

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// stubGradRepo guarda o estado em memória; abertas simula o número de
// intervalos de faixa sem data final do aluno.
type stubGradRepo struct {
	defs       map[string]FaixaDef
	abertas    int
	faixas     []AlunoFaixa
	graduacoes []GraduacaoFaixa
}

func newStubGradRepo(defs ...FaixaDef) *stubGradRepo {
	s := &stubGradRepo{defs: make(map[string]FaixaDef)}
	for _, d := range defs {
		s.defs[d.Codigo] = d
	}
	return s
}

func (s *stubGradRepo) ListFaixaDefs(_ context.Context, _ string) ([]FaixaDef, error) {
	return nil, nil
}

func (s *stubGradRepo) GetFaixaDefByID(_ context.Context, id uuid.UUID) (FaixaDef, error) {
	for _, d := range s.defs {
		if d.ID == id {
			return d, nil
		}
	}
	return FaixaDef{}, ErrFaixaNaoEncontrada
}

func (s *stubGradRepo) GetFaixaDefByCodigo(_ context.Context, codigo string) (FaixaDef, error) {
	d, ok := s.defs[codigo]
	if !ok {
		return FaixaDef{}, ErrFaixaNaoEncontrada
	}
	return d, nil
}

func (s *stubGradRepo) GetFaixaAtiva(_ context.Context, _ uuid.UUID) (AlunoFaixa, error) {
	for _, af := range s.faixas {
		if af.Ativa {
			return af, nil
		}
	}
	return AlunoFaixa{}, ErrAlunoSemFaixa
}

func (s *stubGradRepo) GetFaixaAtivaForUpdate(ctx context.Context, _ pgx.Tx, alunoID uuid.UUID) (AlunoFaixa, error) {
	return s.GetFaixaAtiva(ctx, alunoID)
}

func (s *stubGradRepo) CountFaixasAbertas(_ context.Context, _ uuid.UUID, _ *uuid.UUID) (int, error) {
	return s.abertas, nil
}

func (s *stubGradRepo) InsertAlunoFaixa(_ context.Context, _ pgx.Tx, af AlunoFaixa) (AlunoFaixa, error) {
	af.ID = uuid.New()
	s.faixas = append(s.faixas, af)
	if af.DtFim == nil {
		s.abertas++
	}
	return af, nil
}

func (s *stubGradRepo) EncerrarFaixa(_ context.Context, _ pgx.Tx, _ uuid.UUID, _ time.Time) error {
	if s.abertas > 0 {
		s.abertas--
	}
	return nil
}

func (s *stubGradRepo) ConcederGrau(_ context.Context, _ pgx.Tx, _ uuid.UUID) (AlunoFaixa, error) {
	return AlunoFaixa{}, nil
}

func (s *stubGradRepo) IncrementarPresenca(_ context.Context, _ pgx.Tx, _ uuid.UUID) (AlunoFaixa, error) {
	return AlunoFaixa{}, nil
}

func (s *stubGradRepo) InsertGrau(_ context.Context, _ pgx.Tx, g GrauHistorico) (GrauHistorico, error) {
	g.ID = uuid.New()
	return g, nil
}

func (s *stubGradRepo) ListGrausByAluno(_ context.Context, _ uuid.UUID) ([]GrauHistorico, error) {
	return nil, nil
}

func (s *stubGradRepo) ListGraduacoes(_ context.Context, _ uuid.UUID) ([]GraduacaoFaixa, error) {
	return s.graduacoes, nil
}

func (s *stubGradRepo) ExisteGraduacaoParaDestino(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return false, nil
}

func (s *stubGradRepo) InsertGraduacao(_ context.Context, _ pgx.Tx, g GraduacaoFaixa) (GraduacaoFaixa, error) {
	g.ID = uuid.New()
	s.graduacoes = append(s.graduacoes, g)
	return g, nil
}

func (s *stubGradRepo) EncerrarGraduacaoAberta(_ context.Context, _ pgx.Tx, _ uuid.UUID, _ time.Time) error {
	return nil
}

func (s *stubGradRepo) GetGraduacao(_ context.Context, id uuid.UUID) (GraduacaoFaixa, error) {
	for _, g := range s.graduacoes {
		if g.ID == id {
			return g, nil
		}
	}
	return GraduacaoFaixa{}, ErrFaixaNaoEncontrada
}

func (s *stubGradRepo) UpdateGraduacao(_ context.Context, g GraduacaoFaixa) (GraduacaoFaixa, error) {
	return g, nil
}

func (s *stubGradRepo) GetUnidadeDoAluno(_ context.Context, _ uuid.UUID) (uuid.UUID, error) {
	return uuid.Nil, nil
}

func (s *stubGradRepo) ListProximosGraduar(_ context.Context, _ FiltrosProximos, _, _ int) ([]ProximoGraduarRow, int, error) {
	return nil, 0, nil
}

// stubTx cobre apenas commit/rollback; os métodos do repositório stub
// ignoram a transação.
type stubTx struct{ pgx.Tx }

func (stubTx) Commit(context.Context) error   { return nil }
func (stubTx) Rollback(context.Context) error { return nil }

type stubBeginner struct{}

func (stubBeginner) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	return stubTx{}, nil
}

func TestIniciarFaixaAbreVinculoComHistorico(t *testing.T) {
	branca := faixaTeste("BRANCA", 20, 4, 1)
	repo := newStubGradRepo(branca)
	s := NewService(repo, stubBeginner{}, nil)

	inicio := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	af, err := s.IniciarFaixa(context.Background(), uuid.New(), "BRANCA", inicio)
	if err != nil {
		t.Fatalf("iniciar faixa: %v", err)
	}
	if !af.Ativa || af.FaixaDefID != branca.ID {
		t.Fatalf("vínculo deveria estar ativo na BRANCA, veio %+v", af)
	}
	if len(repo.graduacoes) != 1 || !repo.graduacoes[0].Aprovado {
		t.Fatalf("esperava um registro de histórico aprovado, veio %+v", repo.graduacoes)
	}
}

func TestIniciarFaixaRejeitaSegundaVigente(t *testing.T) {
	repo := newStubGradRepo(faixaTeste("BRANCA", 20, 4, 1), faixaTeste("AZUL", 40, 4, 2))
	s := NewService(repo, stubBeginner{}, nil)

	alunoID := uuid.New()
	inicio := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := s.IniciarFaixa(context.Background(), alunoID, "BRANCA", inicio); err != nil {
		t.Fatalf("primeira faixa: %v", err)
	}
	if _, err := s.IniciarFaixa(context.Background(), alunoID, "AZUL", inicio); err != ErrIntervaloAberto {
		t.Fatalf("esperava ErrIntervaloAberto, veio %v", err)
	}
	if len(repo.faixas) != 1 {
		t.Fatalf("segunda faixa vigente não deveria ser gravada, veio %d vínculos", len(repo.faixas))
	}
}

func TestAdicionarFaixaHistoricoAtualExigeIntervaloUnico(t *testing.T) {
	repo := newStubGradRepo(faixaTeste("AZUL", 40, 4, 2))
	repo.abertas = 1
	s := NewService(repo, stubBeginner{}, nil)

	_, err := s.AdicionarFaixaHistorico(context.Background(), uuid.New(), FaixaHistoricoInput{
		FaixaDestinoCodigo: "AZUL",
		DtInicio:           time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Atual:              true,
	})
	if err != ErrIntervaloAberto {
		t.Fatalf("esperava ErrIntervaloAberto, veio %v", err)
	}
}
