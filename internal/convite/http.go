package convite

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/teamcruz/academia/internal/http/middleware"
	"github.com/teamcruz/academia/internal/util"
)

// Handler expõe a gestão de convites (autenticada) e o fluxo público de cadastro.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registra as rotas autenticadas de gestão de convites.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/convites-cadastro", func(r chi.Router) {
		r.Get("/", h.handleListar)
		r.Post("/", h.handleCriar)
		r.Post("/{id}/reenviar", h.handleReenviar)
		r.Delete("/{id}", h.handleCancelar)
	})
}

// RegisterPublicRoutes registra validação de token e conclusão de cadastro,
// acessíveis sem autenticação pelo formulário de registro.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/convites-cadastro/validar/{token}", h.handleValidarToken)
	r.Post("/convites-cadastro/completar", h.handleCompletar)
}

func (h *Handler) handleCriar(w http.ResponseWriter, r *http.Request) {
	var input CriarConviteInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	if input.UnidadeID == uuid.Nil {
		if id, err := scopedUnidade(r); err == nil {
			input.UnidadeID = id
		}
	}
	if criador, err := uuid.Parse(middleware.GetSubject(r.Context())); err == nil {
		input.CriadoPor = &criador
	}

	convite, err := h.service.Criar(r.Context(), input, util.Now())
	if err != nil {
		h.writeConviteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, convite)
}

func (h *Handler) handleListar(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	var unidadeID *uuid.UUID
	if id, err := scopedUnidade(r); err == nil {
		unidadeID = &id
	}

	convites, err := h.service.Listar(r.Context(), unidadeID, limit, offset)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if convites == nil {
		convites = []ConviteComLinks{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"convites": convites})
}

func (h *Handler) handleReenviar(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "convite inválido", nil)
		return
	}

	convite, err := h.service.Reenviar(r.Context(), id, util.Now())
	if err != nil {
		h.writeConviteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convite)
}

func (h *Handler) handleCancelar(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "convite inválido", nil)
		return
	}

	if err := h.service.Cancelar(r.Context(), id); err != nil {
		h.writeConviteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleValidarToken(w http.ResponseWriter, r *http.Request) {
	resultado, err := h.service.ValidarToken(r.Context(), chi.URLParam(r, "token"), util.Now())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultado)
}

func (h *Handler) handleCompletar(w http.ResponseWriter, r *http.Request) {
	var input CompletarCadastroInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	resultado, err := h.service.CompletarCadastro(r.Context(), input, util.Now())
	if err != nil {
		h.writeConviteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resultado)
}

func (h *Handler) writeConviteError(w http.ResponseWriter, err error) {
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &ve):
		detalhes := make(map[string]string, len(ve))
		for _, fe := range ve {
			detalhes[fe.Field()] = fe.Tag()
		}
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", detalhes)
	case errors.Is(err, ErrConviteNaoEncontrado):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrConviteUsado), errors.Is(err, ErrConviteExpirado),
		errors.Is(err, ErrCPFCadastrado), errors.Is(err, ErrEmailCadastrado):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, ErrCPFInvalido), errors.Is(err, ErrSenhaExigida),
		errors.Is(err, ErrEmailExigido), errors.Is(err, ErrDataInvalida),
		errors.Is(err, ErrUnidadeVazia), errors.Is(err, ErrMenorSemResponsavel),
		errors.Is(err, ErrTipoInvalido):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	default:
		writeInternalError(w, err)
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
	log.Error().Err(err).Msg("convite handler error")
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
