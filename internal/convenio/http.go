package convenio

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/teamcruz/academia/internal/http/middleware"
	"github.com/teamcruz/academia/internal/util"
)

// Handler orquestra rotas de convênios.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/convenios", func(r chi.Router) {
		r.Get("/", h.handleListar)
		r.Post("/unidades", h.handleHabilitar)
		r.Post("/unidades/desabilitar", h.handleDesabilitar)
		r.Route("/alunos", func(r chi.Router) {
			r.Get("/", h.handleListarVinculos)
			r.Post("/", h.handleVincular)
			r.Post("/{id}/pausar", h.handlePausar)
			r.Post("/{id}/reativar", h.handleReativar)
			r.Post("/{id}/cancelar", h.handleCancelar)
		})
		r.Get("/eventos", h.handleListarEventos)
	})
}

func (h *Handler) handleListar(w http.ResponseWriter, r *http.Request) {
	convenios, err := h.service.ListarConvenios(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if convenios == nil {
		convenios = []Convenio{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"convenios": convenios})
}

func (h *Handler) handleHabilitar(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UnidadeID         *uuid.UUID `json:"unidade_id"`
		Codigo            string     `json:"codigo"`
		PercentualRepasse *float64   `json:"percentual_repasse"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	unidadeID, err := resolverUnidade(r, payload.UnidadeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "informe a unidade", nil)
		return
	}

	uc, err := h.service.HabilitarNaUnidade(r.Context(), unidadeID, payload.Codigo, payload.PercentualRepasse)
	if err != nil {
		h.writeConvenioError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, uc)
}

func (h *Handler) handleDesabilitar(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UnidadeID *uuid.UUID `json:"unidade_id"`
		Codigo    string     `json:"codigo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	unidadeID, err := resolverUnidade(r, payload.UnidadeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "informe a unidade", nil)
		return
	}

	if err := h.service.DesabilitarNaUnidade(r.Context(), unidadeID, payload.Codigo); err != nil {
		h.writeConvenioError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleVincular(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AlunoID        uuid.UUID      `json:"aluno_id"`
		UnidadeID      *uuid.UUID     `json:"unidade_id"`
		Codigo         string         `json:"codigo"`
		ConvenioUserID string         `json:"convenio_user_id"`
		Metadata       map[string]any `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	unidadeID, err := resolverUnidade(r, payload.UnidadeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "informe a unidade", nil)
		return
	}

	ac, err := h.service.VincularAluno(r.Context(), VincularAlunoInput{
		AlunoID:        payload.AlunoID,
		UnidadeID:      unidadeID,
		ConvenioCodigo: payload.Codigo,
		ConvenioUserID: payload.ConvenioUserID,
		Metadata:       payload.Metadata,
	}, util.Now())
	if err != nil {
		h.writeConvenioError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ac)
}

func (h *Handler) handleListarVinculos(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	var unidadeID *uuid.UUID
	if id, err := resolverUnidade(r, nil); err == nil {
		unidadeID = &id
	}

	vinculos, total, err := h.service.ListarVinculos(r.Context(), unidadeID, r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if vinculos == nil {
		vinculos = []AlunoConvenio{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"vinculos": vinculos, "total": total})
}

func (h *Handler) handlePausar(w http.ResponseWriter, r *http.Request) {
	h.transicao(w, r, h.service.PausarVinculo)
}

func (h *Handler) handleReativar(w http.ResponseWriter, r *http.Request) {
	h.transicao(w, r, h.service.ReativarVinculo)
}

func (h *Handler) handleCancelar(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "vínculo inválido", nil)
		return
	}

	ac, err := h.service.CancelarVinculo(r.Context(), id, util.Now())
	if err != nil {
		h.writeConvenioError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ac)
}

func (h *Handler) handleListarEventos(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	var alunoConvenioID *uuid.UUID
	if raw := r.URL.Query().Get("aluno_convenio_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "aluno_convenio_id inválido", nil)
			return
		}
		alunoConvenioID = &id
	}

	eventos, err := h.service.ListarEventos(r.Context(), alunoConvenioID, limit, offset)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if eventos == nil {
		eventos = []EventoConvenio{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"eventos": eventos})
}

func (h *Handler) transicao(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) (AlunoConvenio, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "vínculo inválido", nil)
		return
	}

	ac, err := fn(r.Context(), id)
	if err != nil {
		h.writeConvenioError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ac)
}

func (h *Handler) writeConvenioError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrConvenioNaoEncontrado), errors.Is(err, ErrVinculoNaoEncontrado):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrUsuarioDuplicado), errors.Is(err, ErrTransicaoInvalida):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, ErrNaoHabilitado):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	default:
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	}
}

func resolverUnidade(r *http.Request, doCorpo *uuid.UUID) (uuid.UUID, error) {
	if doCorpo != nil {
		return *doCorpo, nil
	}
	raw := middleware.GetUnidade(r.Context())
	if raw == "" {
		raw = r.URL.Query().Get("unidade_id")
	}
	return uuid.Parse(raw)
}

func writeInternalError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("convenio handler error")
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
