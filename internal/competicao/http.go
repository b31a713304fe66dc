package competicao

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

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/competicoes", func(r chi.Router) {
		r.Get("/", h.handleListar)
		r.Post("/", h.handleCriar)
		r.Get("/aluno/{alunoID}", h.handleResultadosDoAluno)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Put("/", h.handleAtualizar)
			r.Delete("/", h.handleDeletar)
			r.Get("/resultados", h.handleResultados)
			r.Post("/resultados", h.handleRegistrarResultado)
		})
		r.Put("/resultados/{resultadoID}", h.handleAtualizarResultado)
		r.Delete("/resultados/{resultadoID}", h.handleRemoverResultado)
	})
}

type competicaoPayload struct {
	UnidadeID  *uuid.UUID `json:"unidade_id"`
	Nome       string     `json:"nome"`
	Local      *string    `json:"local"`
	Data       string     `json:"data"`
	Observacao *string    `json:"observacao"`
}

func (p competicaoPayload) toInput(unidadeID uuid.UUID) (CompeticaoInput, error) {
	input := CompeticaoInput{
		UnidadeID:  unidadeID,
		Nome:       p.Nome,
		Local:      p.Local,
		Observacao: p.Observacao,
	}
	if p.Data != "" {
		data, err := time.Parse("2006-01-02", p.Data)
		if err != nil {
			return CompeticaoInput{}, ErrDataObrigatoria
		}
		input.Data = data
	}
	return input, nil
}

func (h *Handler) handleCriar(w http.ResponseWriter, r *http.Request) {
	var payload competicaoPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	unidadeID, err := scopedUnidade(r, payload.UnidadeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "informe a unidade", nil)
		return
	}

	input, err := payload.toInput(unidadeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	competicao, err := h.service.Criar(r.Context(), input)
	if err != nil {
		h.writeCompeticaoError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, competicao)
}

func (h *Handler) handleListar(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	apenasFuturas := r.URL.Query().Get("futuras") == "true"

	var unidadeID *uuid.UUID
	if id, err := scopedUnidade(r, nil); err == nil {
		unidadeID = &id
	}

	competicoes, err := h.service.Listar(r.Context(), unidadeID, apenasFuturas, util.Now(), limit, offset)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if competicoes == nil {
		competicoes = []Competicao{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"competicoes": competicoes})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "competição inválida", nil)
		return
	}

	competicao, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeCompeticaoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, competicao)
}

func (h *Handler) handleAtualizar(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "competição inválida", nil)
		return
	}

	var payload competicaoPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	input, err := payload.toInput(uuid.Nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	competicao, err := h.service.Atualizar(r.Context(), id, input)
	if err != nil {
		h.writeCompeticaoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, competicao)
}

func (h *Handler) handleDeletar(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "competição inválida", nil)
		return
	}

	if err := h.service.Deletar(r.Context(), id); err != nil {
		h.writeCompeticaoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type resultadoPayload struct {
	AlunoID   uuid.UUID `json:"aluno_id"`
	Categoria *string   `json:"categoria"`
	Peso      *float64  `json:"peso"`
	Colocacao *int      `json:"colocacao"`
}

func (h *Handler) handleRegistrarResultado(w http.ResponseWriter, r *http.Request) {
	competicaoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "competição inválida", nil)
		return
	}

	var payload resultadoPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	resultado, err := h.service.RegistrarResultado(r.Context(), competicaoID, ResultadoInput{
		AlunoID:   payload.AlunoID,
		Categoria: payload.Categoria,
		Peso:      payload.Peso,
		Colocacao: payload.Colocacao,
	})
	if err != nil {
		h.writeCompeticaoError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resultado)
}

func (h *Handler) handleAtualizarResultado(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "resultadoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "resultado inválido", nil)
		return
	}

	var payload resultadoPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	resultado, err := h.service.AtualizarResultado(r.Context(), id, ResultadoInput{
		AlunoID:   payload.AlunoID,
		Categoria: payload.Categoria,
		Peso:      payload.Peso,
		Colocacao: payload.Colocacao,
	})
	if err != nil {
		h.writeCompeticaoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultado)
}

func (h *Handler) handleRemoverResultado(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "resultadoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "resultado inválido", nil)
		return
	}

	if err := h.service.RemoverResultado(r.Context(), id); err != nil {
		h.writeCompeticaoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleResultados(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "competição inválida", nil)
		return
	}

	resultados, err := h.service.Resultados(r.Context(), id)
	if err != nil {
		h.writeCompeticaoError(w, err)
		return
	}
	if resultados == nil {
		resultados = []AlunoCompeticao{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"resultados": resultados})
}

func (h *Handler) handleResultadosDoAluno(w http.ResponseWriter, r *http.Request) {
	alunoID, err := uuid.Parse(chi.URLParam(r, "alunoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "aluno inválido", nil)
		return
	}

	resultados, err := h.service.ResultadosDoAluno(r.Context(), alunoID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if resultados == nil {
		resultados = []ResultadoDoAluno{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"resultados": resultados})
}

func (h *Handler) writeCompeticaoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrResultadoNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrResultadoDuplicado):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, ErrNomeObrigatorio), errors.Is(err, ErrDataObrigatoria),
		errors.Is(err, ErrColocacaoInvalida), errors.Is(err, ErrPesoInvalido):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	default:
		writeInternalError(w, err)
	}
}

func scopedUnidade(r *http.Request, doCorpo *uuid.UUID) (uuid.UUID, error) {
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
	log.Error().Err(err).Msg("competicao handler error")
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
