package presenca

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/teamcruz/academia/internal/aluno"
	"github.com/teamcruz/academia/internal/http/middleware"
	"github.com/teamcruz/academia/internal/util"
)

// Handler orquestra rotas de presença e check-in.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/presenca", func(r chi.Router) {
		r.Get("/aula-ativa", h.handleAulaAtiva)
		r.Post("/checkin/qr", h.handleCheckinQR)
		r.Post("/checkin/cpf", h.handleCheckinCPF)
		r.Post("/checkin/nome", h.handleCheckinNome)
		r.Post("/checkin/manual", h.handleCheckinManual)
		r.Post("/checkin/responsavel", h.handleCheckinResponsavel)
		r.With(middleware.RequireStaff).Post("/checkin/facial", h.handleCheckinFacial)
		r.Get("/historico/{alunoID}", h.handleHistorico)
		r.Get("/estatisticas/{alunoID}", h.handleEstatisticas)
	})
}

func (h *Handler) handleAulaAtiva(w http.ResponseWriter, r *http.Request) {
	raw := middleware.GetUnidade(r.Context())
	if raw == "" {
		raw = r.URL.Query().Get("unidade_id")
	}
	unidadeID, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "informe a unidade", nil)
		return
	}

	a, err := h.service.AulaAtiva(r.Context(), unidadeID, util.Now())
	if err != nil {
		if errors.Is(err, ErrNenhumaAulaAtiva) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleCheckinQR(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Payload string     `json:"payload"`
		AlunoID *uuid.UUID `json:"aluno_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	alunoID, err := h.resolverAluno(r, payload.AlunoID)
	if err != nil {
		h.writeCheckinError(w, err)
		return
	}

	result, err := h.service.CheckInQR(r.Context(), payload.Payload, alunoID, util.Now())
	if err != nil {
		h.writeCheckinError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleCheckinCPF(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CPF    string    `json:"cpf"`
		AulaID uuid.UUID `json:"aula_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	result, err := h.service.CheckInCPF(r.Context(), payload.CPF, payload.AulaID, util.Now())
	if err != nil {
		h.writeCheckinError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleCheckinNome(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AlunoID uuid.UUID `json:"aluno_id"`
		AulaID  uuid.UUID `json:"aula_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	result, err := h.service.CheckInNome(r.Context(), payload.AlunoID, payload.AulaID, util.Now())
	if err != nil {
		h.writeCheckinError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleCheckinManual(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AulaID uuid.UUID `json:"aula_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	usuarioID, err := uuid.Parse(middleware.GetSubject(r.Context()))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "sessão inválida", nil)
		return
	}

	result, err := h.service.CheckInManual(r.Context(), usuarioID, payload.AulaID, util.Now())
	if err != nil {
		h.writeCheckinError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleCheckinResponsavel(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		DependenteID uuid.UUID `json:"dependente_id"`
		AulaID       uuid.UUID `json:"aula_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	usuarioID, err := uuid.Parse(middleware.GetSubject(r.Context()))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "sessão inválida", nil)
		return
	}

	result, err := h.service.CheckInResponsavel(r.Context(), usuarioID, payload.DependenteID, payload.AulaID, util.Now())
	if err != nil {
		h.writeCheckinError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleCheckinFacial(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AlunoID uuid.UUID `json:"aluno_id"`
		AulaID  uuid.UUID `json:"aula_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	result, err := h.service.CheckInFacial(r.Context(), payload.AlunoID, payload.AulaID, util.Now())
	if err != nil {
		h.writeCheckinError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleHistorico(w http.ResponseWriter, r *http.Request) {
	alunoID, err := uuid.Parse(chi.URLParam(r, "alunoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "aluno inválido", nil)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	presencas, total, err := h.service.Historico(r.Context(), alunoID, limit, offset)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if presencas == nil {
		presencas = []Presenca{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"presencas": presencas, "total": total})
}

func (h *Handler) handleEstatisticas(w http.ResponseWriter, r *http.Request) {
	alunoID, err := uuid.Parse(chi.URLParam(r, "alunoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "aluno inválido", nil)
		return
	}

	stats, err := h.service.Estatisticas(r.Context(), alunoID, util.Now())
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// resolverAluno usa o aluno do corpo quando vier (tablet/recepção) ou o aluno
// vinculado ao usuário autenticado.
func (h *Handler) resolverAluno(r *http.Request, doCorpo *uuid.UUID) (uuid.UUID, error) {
	if doCorpo != nil {
		return *doCorpo, nil
	}
	usuarioID, err := uuid.Parse(middleware.GetSubject(r.Context()))
	if err != nil {
		return uuid.Nil, errors.New("sessão inválida")
	}
	a, err := h.service.alunos.GetByUsuario(r.Context(), usuarioID)
	if err != nil {
		return uuid.Nil, err
	}
	return a.ID, nil
}

func (h *Handler) writeCheckinError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrCheckinDuplicado):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, ErrQRInvalido), errors.Is(err, ErrAulaFechada):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, ErrAulaNaoEncontrada), errors.Is(err, ErrNenhumaAulaAtiva), errors.Is(err, aluno.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrSemVinculo):
		writeError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, aluno.ErrCPFInvalido):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	default:
		writeInternalError(w, err)
	}
}

func writeInternalError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("presenca handler error")
	writeError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
}

// Helpers de resposta JSON compatíveis com o resto do projeto.
type successEnvelope struct {
	Data  any `json:"data"`
	Error any `json:"error"`
}

type errorEnvelope struct {
	Data  any            `json:"data"`
	Error *errorResponse `json:"error"`
}

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(successEnvelope{Data: payload, Error: nil})
}

func writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Data: nil, Error: &errorResponse{Code: code, Message: message, Details: details}})
}
