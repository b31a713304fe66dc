package presenca

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/teamcruz/academia/internal/aluno"
)

type stubRepo struct {
	aulas     map[uuid.UUID]Aula
	presencas map[string]Presenca
}

func newStubRepo() *stubRepo {
	return &stubRepo{aulas: make(map[uuid.UUID]Aula), presencas: make(map[string]Presenca)}
}

func (s *stubRepo) addAula(a Aula) Aula {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	s.aulas[a.ID] = a
	return a
}

func (s *stubRepo) GetAula(_ context.Context, id uuid.UUID) (Aula, error) {
	a, ok := s.aulas[id]
	if !ok {
		return Aula{}, ErrAulaNaoEncontrada
	}
	return a, nil
}

func (s *stubRepo) ListAulasDoDia(_ context.Context, unidadeID uuid.UUID, diaSemana int) ([]Aula, error) {
	var aulas []Aula
	for _, a := range s.aulas {
		if a.UnidadeID == unidadeID && a.DiaSemana == diaSemana && a.Ativo {
			aulas = append(aulas, a)
		}
	}
	return aulas, nil
}

func (s *stubRepo) InsertPresenca(_ context.Context, p Presenca) (Presenca, bool, error) {
	key := p.AlunoID.String() + "|" + p.AulaID.String() + "|" + p.DataPresenca.Format("2006-01-02")
	if _, ok := s.presencas[key]; ok {
		return Presenca{}, false, nil
	}
	p.ID = uuid.New()
	p.Status = "PRESENTE"
	p.CriadoEm = p.HoraCheckin
	s.presencas[key] = p
	return p, true, nil
}

func (s *stubRepo) ListHistorico(_ context.Context, _ uuid.UUID, _, _ int) ([]Presenca, int, error) {
	return nil, 0, nil
}

func (s *stubRepo) CountNoPeriodo(_ context.Context, _ uuid.UUID, _, _ time.Time) (int, error) {
	return len(s.presencas), nil
}

func (s *stubRepo) DatasRecentes(_ context.Context, _ uuid.UUID, _ int) ([]time.Time, error) {
	return nil, nil
}

func (s *stubRepo) UltimoCheckin(_ context.Context, _ uuid.UUID) (*time.Time, error) {
	return nil, nil
}

type stubAlunos struct {
	porCPF     map[string]aluno.Aluno
	porUsuario map[uuid.UUID]aluno.Aluno
	vinculos   map[uuid.UUID]uuid.UUID // dependente -> usuário responsável
}

func (s *stubAlunos) GetByCPF(_ context.Context, cpf string) (aluno.Aluno, error) {
	a, ok := s.porCPF[cpf]
	if !ok {
		return aluno.Aluno{}, aluno.ErrNotFound
	}
	return a, nil
}

func (s *stubAlunos) GetByUsuario(_ context.Context, usuarioID uuid.UUID) (aluno.Aluno, error) {
	a, ok := s.porUsuario[usuarioID]
	if !ok {
		return aluno.Aluno{}, aluno.ErrNotFound
	}
	return a, nil
}

func (s *stubAlunos) PodeAgirPor(_ context.Context, usuarioID, alunoID uuid.UUID) (bool, error) {
	return s.vinculos[alunoID] == usuarioID, nil
}

type stubProgresso struct {
	chamadas int
}

func (s *stubProgresso) IncrementarPresenca(_ context.Context, _ uuid.UUID, _ time.Time) (bool, error) {
	s.chamadas++
	return false, nil
}

// Terça-feira, 19h30.
var agora = time.Date(2025, 6, 3, 19, 30, 0, 0, time.UTC)

func aulaTeste(unidadeID uuid.UUID) Aula {
	return Aula{
		UnidadeID:  unidadeID,
		Modalidade: "Jiu-Jitsu Adulto",
		DiaSemana:  int(agora.Weekday()),
		HoraInicio: "19:00",
		HoraFim:    "20:30",
		Ativo:      true,
	}
}

func TestParseQRPayload(t *testing.T) {
	id := uuid.New()

	aulaID, unidadeID, err := ParseQRPayload("QR-AULA-" + id.String())
	if err != nil || aulaID != id || unidadeID != uuid.Nil {
		t.Fatalf("payload de aula: aula=%s unidade=%s err=%v", aulaID, unidadeID, err)
	}

	aulaID, unidadeID, err = ParseQRPayload("QR-UNIDADE-" + id.String())
	if err != nil || unidadeID != id || aulaID != uuid.Nil {
		t.Fatalf("payload de unidade: aula=%s unidade=%s err=%v", aulaID, unidadeID, err)
	}

	for _, invalido := range []string{"", "QR-AULA-abc", "QR-TURMA-" + id.String(), id.String()} {
		if _, _, err := ParseQRPayload(invalido); err != ErrQRInvalido {
			t.Fatalf("payload %q deveria ser inválido, veio %v", invalido, err)
		}
	}
}

func TestCheckinDuplicadoRetornaConflito(t *testing.T) {
	repo := newStubRepo()
	unidadeID := uuid.New()
	a := repo.addAula(aulaTeste(unidadeID))
	progresso := &stubProgresso{}
	s := NewService(repo, nil, &stubAlunos{}, progresso, nil)
	alunoID := uuid.New()

	if _, err := s.CheckInNome(context.Background(), alunoID, a.ID, agora); err != nil {
		t.Fatalf("primeiro check-in: %v", err)
	}
	if progresso.chamadas != 1 {
		t.Fatalf("check-in deveria incrementar o ciclo uma vez, veio %d", progresso.chamadas)
	}

	_, err := s.CheckInNome(context.Background(), alunoID, a.ID, agora.Add(10*time.Minute))
	if err != ErrCheckinDuplicado {
		t.Fatalf("esperava ErrCheckinDuplicado, veio %v", err)
	}
	if progresso.chamadas != 1 {
		t.Fatal("check-in duplicado não pode incrementar o ciclo de novo")
	}
}

func TestAulaAtivaSemAulaAberta(t *testing.T) {
	repo := newStubRepo()
	unidadeID := uuid.New()
	a := aulaTeste(unidadeID)
	a.HoraInicio = "06:00"
	a.HoraFim = "07:00"
	repo.addAula(a)

	s := NewService(repo, nil, &stubAlunos{}, nil, nil)

	if _, err := s.AulaAtiva(context.Background(), unidadeID, agora); err != ErrNenhumaAulaAtiva {
		t.Fatalf("esperava ErrNenhumaAulaAtiva, veio %v", err)
	}
}

func TestAulaAtivaPreferencia(t *testing.T) {
	unidadeID := uuid.New()
	emAndamento := aulaTeste(unidadeID)
	emAndamento.ID = uuid.New()

	// Só alcançável pela margem de 30 minutos.
	porMargem := aulaTeste(unidadeID)
	porMargem.ID = uuid.New()
	porMargem.HoraInicio = "20:00"
	porMargem.HoraFim = "21:00"

	escolhida, ok := EscolherAulaAtiva([]Aula{porMargem, emAndamento}, agora)
	if !ok {
		t.Fatal("deveria haver aula ativa")
	}
	if escolhida.ID != emAndamento.ID {
		t.Fatal("aula em andamento deveria ter preferência sobre aula na margem")
	}
}

func TestCheckinForaDaJanela(t *testing.T) {
	repo := newStubRepo()
	unidadeID := uuid.New()
	a := repo.addAula(aulaTeste(unidadeID))
	s := NewService(repo, nil, &stubAlunos{}, nil, nil)

	// 31 minutos depois do fim da aula.
	tarde := time.Date(2025, 6, 3, 21, 1, 0, 0, time.UTC)
	if _, err := s.CheckInNome(context.Background(), uuid.New(), a.ID, tarde); err != ErrAulaFechada {
		t.Fatalf("esperava ErrAulaFechada, veio %v", err)
	}
}

func TestCheckinResponsavelExigeVinculo(t *testing.T) {
	repo := newStubRepo()
	unidadeID := uuid.New()
	a := repo.addAula(aulaTeste(unidadeID))

	responsavel := uuid.New()
	dependente := uuid.New()
	alunos := &stubAlunos{vinculos: map[uuid.UUID]uuid.UUID{dependente: responsavel}}
	s := NewService(repo, nil, alunos, nil, nil)

	if _, err := s.CheckInResponsavel(context.Background(), responsavel, dependente, a.ID, agora); err != nil {
		t.Fatalf("responsável com vínculo: %v", err)
	}

	outro := uuid.New()
	if _, err := s.CheckInResponsavel(context.Background(), outro, dependente, a.ID, agora); err != ErrSemVinculo {
		t.Fatalf("esperava ErrSemVinculo, veio %v", err)
	}
}

func TestSequenciaDeDias(t *testing.T) {
	hoje := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	datas := []time.Time{hoje, hoje.AddDate(0, 0, -1), hoje.AddDate(0, 0, -2), hoje.AddDate(0, 0, -5)}

	if got := sequencia(datas, agora); got != 3 {
		t.Fatalf("esperava sequência 3, veio %d", got)
	}
	if got := sequencia(nil, agora); got != 0 {
		t.Fatalf("sem presenças a sequência é 0, veio %d", got)
	}
	// Última presença anteontem quebra a sequência.
	if got := sequencia([]time.Time{hoje.AddDate(0, 0, -2)}, agora); got != 0 {
		t.Fatalf("sequência quebrada deveria ser 0, veio %d", got)
	}
}
