package presenca

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/teamcruz/academia/internal/aluno"
	"github.com/teamcruz/academia/internal/graduacao"
)

// AttendanceRepository abstrai o acesso a aulas e presenças.
type AttendanceRepository interface {
	GetAula(ctx context.Context, id uuid.UUID) (Aula, error)
	ListAulasDoDia(ctx context.Context, unidadeID uuid.UUID, diaSemana int) ([]Aula, error)
	InsertPresenca(ctx context.Context, p Presenca) (Presenca, bool, error)
	ListHistorico(ctx context.Context, alunoID uuid.UUID, limit, offset int) ([]Presenca, int, error)
	CountNoPeriodo(ctx context.Context, alunoID uuid.UUID, inicio, fim time.Time) (int, error)
	DatasRecentes(ctx context.Context, alunoID uuid.UUID, limit int) ([]time.Time, error)
	UltimoCheckin(ctx context.Context, alunoID uuid.UUID) (*time.Time, error)
}

type alunoDirectory interface {
	GetByCPF(ctx context.Context, cpf string) (aluno.Aluno, error)
	GetByUsuario(ctx context.Context, usuarioID uuid.UUID) (aluno.Aluno, error)
	PodeAgirPor(ctx context.Context, usuarioID, alunoID uuid.UUID) (bool, error)
}

type progressoService interface {
	IncrementarPresenca(ctx context.Context, alunoID uuid.UUID, now time.Time) (bool, error)
}

type convenioNotifier interface {
	RegistrarCheckin(ctx context.Context, alunoID, unidadeID, presencaID uuid.UUID) error
}

// Service orquestra o fluxo de check-in.
type Service struct {
	repo      AttendanceRepository
	cache     *redis.Client
	alunos    alunoDirectory
	progresso progressoService
	convenios convenioNotifier
}

func NewService(repo AttendanceRepository, cache *redis.Client, alunos alunoDirectory, progresso progressoService, convenios convenioNotifier) *Service {
	return &Service{repo: repo, cache: cache, alunos: alunos, progresso: progresso, convenios: convenios}
}

// AulaAtiva resolve a aula aberta para check-in na unidade, com cache curto.
func (s *Service) AulaAtiva(ctx context.Context, unidadeID uuid.UUID, now time.Time) (Aula, error) {
	key := fmt.Sprintf("presenca:aula-ativa:%s", unidadeID.String())
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var a Aula
			if json.Unmarshal(data, &a) == nil && a.AbertaParaCheckin(now) {
				return a, nil
			}
		}
	}

	aulas, err := s.repo.ListAulasDoDia(ctx, unidadeID, int(now.Weekday()))
	if err != nil {
		return Aula{}, err
	}
	ativa, ok := EscolherAulaAtiva(aulas, now)
	if !ok {
		return Aula{}, ErrNenhumaAulaAtiva
	}

	if s.cache != nil {
		if payload, err := json.Marshal(ativa); err == nil {
			_ = s.cache.Set(ctx, key, payload, 60*time.Second).Err()
		}
	}
	return ativa, nil
}

// CheckinResult devolve o registro criado e se o ciclo rendeu grau automático.
type CheckinResult struct {
	Presenca      Presenca `json:"presenca"`
	GrauConcedido bool     `json:"grau_concedido"`
}

// CheckInQR aceita QR-AULA-<uuid> (aula direta) e QR-UNIDADE-<uuid> (resolve a
// aula ativa da unidade).
func (s *Service) CheckInQR(ctx context.Context, payload string, alunoID uuid.UUID, now time.Time) (CheckinResult, error) {
	aulaID, unidadeID, err := ParseQRPayload(payload)
	if err != nil {
		return CheckinResult{}, err
	}

	var a Aula
	if aulaID != uuid.Nil {
		a, err = s.repo.GetAula(ctx, aulaID)
	} else {
		a, err = s.AulaAtiva(ctx, unidadeID, now)
	}
	if err != nil {
		return CheckinResult{}, err
	}

	return s.registrar(ctx, alunoID, a, MetodoQRCode, nil, now)
}

// CheckInCPF resolve o aluno pelos dígitos do CPF.
func (s *Service) CheckInCPF(ctx context.Context, cpf string, aulaID uuid.UUID, now time.Time) (CheckinResult, error) {
	a, err := s.alunos.GetByCPF(ctx, cpf)
	if err != nil {
		return CheckinResult{}, err
	}
	return s.checkinNaAula(ctx, a.ID, aulaID, MetodoCPF, nil, now)
}

// CheckInNome registra o aluno escolhido após busca por nome.
func (s *Service) CheckInNome(ctx context.Context, alunoID, aulaID uuid.UUID, now time.Time) (CheckinResult, error) {
	return s.checkinNaAula(ctx, alunoID, aulaID, MetodoNome, nil, now)
}

// CheckInManual é o auto check-in do aluno autenticado.
func (s *Service) CheckInManual(ctx context.Context, usuarioID, aulaID uuid.UUID, now time.Time) (CheckinResult, error) {
	a, err := s.alunos.GetByUsuario(ctx, usuarioID)
	if err != nil {
		return CheckinResult{}, err
	}
	return s.checkinNaAula(ctx, a.ID, aulaID, MetodoManual, nil, now)
}

// CheckInResponsavel registra presença do dependente em nome do responsável.
func (s *Service) CheckInResponsavel(ctx context.Context, responsavelUsuarioID, dependenteID, aulaID uuid.UUID, now time.Time) (CheckinResult, error) {
	ok, err := s.alunos.PodeAgirPor(ctx, responsavelUsuarioID, dependenteID)
	if err != nil {
		return CheckinResult{}, err
	}
	if !ok {
		return CheckinResult{}, ErrSemVinculo
	}
	return s.checkinNaAula(ctx, dependenteID, aulaID, MetodoResponsavel, nil, now)
}

// CheckInFacial registra presença com método FACIAL a partir da recepção.
// O reconhecimento em si acontece fora daqui.
func (s *Service) CheckInFacial(ctx context.Context, alunoID, aulaID uuid.UUID, now time.Time) (CheckinResult, error) {
	return s.checkinNaAula(ctx, alunoID, aulaID, MetodoFacial, nil, now)
}

func (s *Service) checkinNaAula(ctx context.Context, alunoID, aulaID uuid.UUID, metodo string, obs *string, now time.Time) (CheckinResult, error) {
	a, err := s.repo.GetAula(ctx, aulaID)
	if err != nil {
		return CheckinResult{}, err
	}
	return s.registrar(ctx, alunoID, a, metodo, obs, now)
}

func (s *Service) registrar(ctx context.Context, alunoID uuid.UUID, a Aula, metodo string, obs *string, now time.Time) (CheckinResult, error) {
	if !a.AbertaParaCheckin(now) {
		return CheckinResult{}, ErrAulaFechada
	}

	dia := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	p, inserted, err := s.repo.InsertPresenca(ctx, Presenca{
		AlunoID:      alunoID,
		AulaID:       a.ID,
		UnidadeID:    a.UnidadeID,
		DataPresenca: dia,
		HoraCheckin:  now,
		Metodo:       metodo,
		Observacoes:  obs,
	})
	if err != nil {
		return CheckinResult{}, err
	}
	if !inserted {
		return CheckinResult{}, ErrCheckinDuplicado
	}

	result := CheckinResult{Presenca: p}

	if s.progresso != nil {
		grau, err := s.progresso.IncrementarPresenca(ctx, alunoID, now)
		switch {
		case err == nil:
			result.GrauConcedido = grau
		case errors.Is(err, graduacao.ErrAlunoSemFaixa):
			// Check-in vale mesmo sem faixa ativa.
		default:
			log.Warn().Err(err).Str("aluno", alunoID.String()).Msg("falha ao incrementar ciclo de graduação")
		}
	}

	if s.convenios != nil {
		if err := s.convenios.RegistrarCheckin(ctx, alunoID, a.UnidadeID, p.ID); err != nil {
			log.Warn().Err(err).Str("aluno", alunoID.String()).Msg("falha ao registrar evento de convênio")
		}
	}

	return result, nil
}

// Estatisticas resume a frequência do aluno.
type Estatisticas struct {
	TotalMes       int        `json:"total_mes"`
	SequenciaAtual int        `json:"sequencia_atual"`
	UltimoCheckin  *time.Time `json:"ultimo_checkin,omitempty"`
}

func (s *Service) Estatisticas(ctx context.Context, alunoID uuid.UUID, now time.Time) (Estatisticas, error) {
	inicioMes := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	totalMes, err := s.repo.CountNoPeriodo(ctx, alunoID, inicioMes, inicioMes.AddDate(0, 1, 0))
	if err != nil {
		return Estatisticas{}, err
	}

	datas, err := s.repo.DatasRecentes(ctx, alunoID, 60)
	if err != nil {
		return Estatisticas{}, err
	}

	ultimo, err := s.repo.UltimoCheckin(ctx, alunoID)
	if err != nil {
		return Estatisticas{}, err
	}

	return Estatisticas{
		TotalMes:       totalMes,
		SequenciaAtual: sequencia(datas, now),
		UltimoCheckin:  ultimo,
	}, nil
}

// sequencia conta dias consecutivos com presença terminando hoje ou ontem.
func sequencia(datas []time.Time, now time.Time) int {
	if len(datas) == 0 {
		return 0
	}
	hoje := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	esperado := hoje
	if !mesmaData(datas[0], hoje) {
		esperado = hoje.AddDate(0, 0, -1)
		if !mesmaData(datas[0], esperado) {
			return 0
		}
	}

	streak := 0
	for _, d := range datas {
		if !mesmaData(d, esperado) {
			break
		}
		streak++
		esperado = esperado.AddDate(0, 0, -1)
	}
	return streak
}

func mesmaData(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func (s *Service) Historico(ctx context.Context, alunoID uuid.UUID, limit, offset int) ([]Presenca, int, error) {
	return s.repo.ListHistorico(ctx, alunoID, limit, offset)
}
