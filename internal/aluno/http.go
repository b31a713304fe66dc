package aluno

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/teamcruz/academia/internal/http/middleware"
)

// Handler orquestra rotas de alunos.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/alunos", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/busca", h.handleSearch)
		r.Get("/cpf/{cpf}", h.handleGetByCPF)
		r.Get("/{id}", h.handleGet)
		r.Patch("/{id}", h.handleUpdate)
		r.Post("/{id}/desativar", h.handleDesativar)
		r.Post("/{id}/reativar", h.handleReativar)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	unidadeID, err := scopedUnidade(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "informe a unidade", nil)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	status := r.URL.Query().Get("status")

	alunos, total, err := h.service.List(r.Context(), unidadeID, status, limit, offset)
	if err != nil {
		if errors.Is(err, ErrStatusInvalido) {
			writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
			return
		}
		writeInternalError(w, err)
		return
	}
	if alunos == nil {
		alunos = []Aluno{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"alunos": alunos, "total": total})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	nome := r.URL.Query().Get("nome")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	var unidadeID *uuid.UUID
	if id, err := scopedUnidade(r); err == nil {
		unidadeID = &id
	}

	alunos, err := h.service.Search(r.Context(), unidadeID, nome, limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	if alunos == nil {
		alunos = []Aluno{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"alunos": alunos})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "aluno inválido", nil)
		return
	}

	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", ErrNotFound.Error(), nil)
			return
		}
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleGetByCPF(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.GetByCPF(r.Context(), chi.URLParam(r, "cpf"))
	if err != nil {
		switch {
		case errors.Is(err, ErrCPFInvalido):
			writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", ErrNotFound.Error(), nil)
		default:
			writeInternalError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, a)
}

type alunoPayload struct {
	NomeCompleto   string     `json:"nome_completo"`
	CPF            string     `json:"cpf"`
	DataNascimento *time.Time `json:"data_nascimento"`
	Genero         *string    `json:"genero"`
	Telefone       *string    `json:"telefone"`
	Email          *string    `json:"email"`
	ResponsavelID  *uuid.UUID `json:"responsavel_id"`
	UsuarioID      *uuid.UUID `json:"usuario_id"`
	UnidadeID      *uuid.UUID `json:"unidade_id"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload alunoPayload
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

	a, err := h.service.Create(r.Context(), CreateAlunoInput{
		UsuarioID:      payload.UsuarioID,
		UnidadeID:      unidadeID,
		NomeCompleto:   payload.NomeCompleto,
		CPF:            payload.CPF,
		DataNascimento: payload.DataNascimento,
		Genero:         payload.Genero,
		Telefone:       payload.Telefone,
		Email:          payload.Email,
		ResponsavelID:  payload.ResponsavelID,
	})
	if err != nil {
		if errors.Is(err, ErrCPFDuplicado) {
			writeError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
			return
		}
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "aluno inválido", nil)
		return
	}

	var payload struct {
		NomeCompleto   *string    `json:"nome_completo"`
		DataNascimento *time.Time `json:"data_nascimento"`
		Genero         *string    `json:"genero"`
		Telefone       *string    `json:"telefone"`
		Email          *string    `json:"email"`
		ResponsavelID  *uuid.UUID `json:"responsavel_id"`
		Status         *string    `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	a, err := h.service.Update(r.Context(), id, UpdateAlunoInput{
		NomeCompleto:   payload.NomeCompleto,
		DataNascimento: payload.DataNascimento,
		Genero:         payload.Genero,
		Telefone:       payload.Telefone,
		Email:          payload.Email,
		ResponsavelID:  payload.ResponsavelID,
		Status:         payload.Status,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", ErrNotFound.Error(), nil)
		case errors.Is(err, ErrStatusInvalido):
			writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		default:
			writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		}
		return
	}

	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleDesativar(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.service.Desativar)
}

func (h *Handler) handleReativar(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.service.Reativar)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "aluno inválido", nil)
		return
	}

	if err := fn(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", ErrNotFound.Error(), nil)
			return
		}
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// scopedUnidade resolve a unidade a partir do escopo ou da query string.
func scopedUnidade(r *http.Request) (uuid.UUID, error) {
	raw := middleware.GetUnidade(r.Context())
	if raw == "" {
		raw = r.URL.Query().Get("unidade_id")
	}
	return uuid.Parse(raw)
}

func writeInternalError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("aluno handler error")
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
