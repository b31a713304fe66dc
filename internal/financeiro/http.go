package financeiro

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/teamcruz/academia/internal/http/middleware"
	"github.com/teamcruz/academia/internal/util"
)

// Handler orquestra rotas financeiras.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/financeiro", func(r chi.Router) {
		r.Get("/planos", h.handleListarPlanos)
		r.Post("/planos", h.handleCriarPlano)
		r.Route("/assinaturas", func(r chi.Router) {
			r.Get("/", h.handleListar)
			r.Post("/", h.handleCriar)
			r.Get("/aluno/{alunoID}", h.handleListarPorAluno)
			r.Get("/{id}", h.handleGet)
			r.Post("/{id}/pausar", h.handlePausar)
			r.Post("/{id}/reativar", h.handleReativar)
			r.Post("/{id}/cancelar", h.handleCancelar)
			r.Post("/{id}/renovar", h.handleRenovar)
		})
	})
}

func (h *Handler) handleListarPlanos(w http.ResponseWriter, r *http.Request) {
	unidadeID, err := scopedUnidade(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "informe a unidade", nil)
		return
	}

	planos, err := h.service.ListarPlanos(r.Context(), unidadeID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if planos == nil {
		planos = []Plano{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"planos": planos})
}

func (h *Handler) handleCriarPlano(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UnidadeID    *uuid.UUID `json:"unidade_id"`
		Nome         string     `json:"nome"`
		Valor        float64    `json:"valor"`
		DuracaoMeses int        `json:"duracao_meses"`
		MaxAlunos    *int       `json:"max_alunos"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	unidadeID, err := scopedUnidade(r)
	if err != nil {
		if payload.UnidadeID == nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "informe a unidade", nil)
			return
		}
		unidadeID = *payload.UnidadeID
	}

	plano, err := h.service.CriarPlano(r.Context(), Plano{
		UnidadeID:    unidadeID,
		Nome:         payload.Nome,
		Valor:        payload.Valor,
		DuracaoMeses: payload.DuracaoMeses,
		MaxAlunos:    payload.MaxAlunos,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusCreated, plano)
}

func (h *Handler) handleListar(w http.ResponseWriter, r *http.Request) {
	unidadeID, err := scopedUnidade(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "informe a unidade", nil)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	assinaturas, total, err := h.service.Listar(r.Context(), unidadeID, r.URL.Query().Get("status"), limit, offset, util.Now())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if assinaturas == nil {
		assinaturas = []Assinatura{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"assinaturas": assinaturas, "total": total})
}

func (h *Handler) handleListarPorAluno(w http.ResponseWriter, r *http.Request) {
	alunoID, err := uuid.Parse(chi.URLParam(r, "alunoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "aluno inválido", nil)
		return
	}

	assinaturas, err := h.service.ListarPorAluno(r.Context(), alunoID, util.Now())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if assinaturas == nil {
		assinaturas = []Assinatura{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"assinaturas": assinaturas})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "assinatura inválida", nil)
		return
	}

	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeAssinaturaError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleCriar(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AlunoID         uuid.UUID  `json:"aluno_id"`
		PlanoID         uuid.UUID  `json:"plano_id"`
		UnidadeID       *uuid.UUID `json:"unidade_id"`
		MetodoPagamento string     `json:"metodo_pagamento"`
		DiaVencimento   int        `json:"dia_vencimento"`
		DataInicio      *time.Time `json:"data_inicio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	unidadeID, err := scopedUnidade(r)
	if err != nil {
		if payload.UnidadeID == nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "informe a unidade", nil)
			return
		}
		unidadeID = *payload.UnidadeID
	}

	a, err := h.service.Criar(r.Context(), CriarAssinaturaInput{
		AlunoID:         payload.AlunoID,
		PlanoID:         payload.PlanoID,
		UnidadeID:       unidadeID,
		MetodoPagamento: payload.MetodoPagamento,
		DiaVencimento:   payload.DiaVencimento,
		DataInicio:      payload.DataInicio,
	}, util.Now())
	if err != nil {
		h.writeAssinaturaError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) handlePausar(w http.ResponseWriter, r *http.Request) {
	h.transicao(w, r, func(id uuid.UUID) (Assinatura, error) {
		return h.service.Pausar(r.Context(), id)
	})
}

func (h *Handler) handleReativar(w http.ResponseWriter, r *http.Request) {
	h.transicao(w, r, func(id uuid.UUID) (Assinatura, error) {
		return h.service.Reativar(r.Context(), id, util.Now())
	})
}

func (h *Handler) handleRenovar(w http.ResponseWriter, r *http.Request) {
	h.transicao(w, r, func(id uuid.UUID) (Assinatura, error) {
		return h.service.Renovar(r.Context(), id, util.Now())
	})
}

func (h *Handler) handleCancelar(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Motivo *string `json:"motivo"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
			return
		}
	}

	var canceladoPor *uuid.UUID
	if sub := middleware.GetSubject(r.Context()); sub != "" {
		if id, err := uuid.Parse(sub); err == nil {
			canceladoPor = &id
		}
	}

	h.transicao(w, r, func(id uuid.UUID) (Assinatura, error) {
		return h.service.Cancelar(r.Context(), id, canceladoPor, payload.Motivo, util.Now())
	})
}

func (h *Handler) transicao(w http.ResponseWriter, r *http.Request, fn func(uuid.UUID) (Assinatura, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "assinatura inválida", nil)
		return
	}

	a, err := fn(id)
	if err != nil {
		h.writeAssinaturaError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) writeAssinaturaError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAssinaturaNaoEncontrada), errors.Is(err, ErrPlanoNaoEncontrado):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrAssinaturaAtivaExiste), errors.Is(err, ErrPlanoLotado), errors.Is(err, ErrTransicaoInvalida):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, ErrMetodoPagamento):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	default:
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	}
}

func scopedUnidade(r *http.Request) (uuid.UUID, error) {
	raw := middleware.GetUnidade(r.Context())
	if raw == "" {
		raw = r.URL.Query().Get("unidade_id")
	}
	return uuid.Parse(raw)
}

func writeInternalError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("financeiro handler error")
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
