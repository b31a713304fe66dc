package viacep

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// Handler expõe a consulta pública de CEP usada pelo formulário de cadastro.
type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/enderecos/cep/{cep}", h.handleConsultar)
}

func (h *Handler) handleConsultar(w http.ResponseWriter, r *http.Request) {
	endereco, err := h.client.Consultar(r.Context(), chi.URLParam(r, "cep"))
	switch {
	case errors.Is(err, ErrCEPInvalido):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	case errors.Is(err, ErrCEPNaoEncontrado):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
		return
	case err != nil:
		log.Warn().Err(err).Msg("viacep: consulta falhou")
		writeError(w, http.StatusBadGateway, "INTERNAL", "serviço de CEP indisponível", nil)
		return
	}
	writeJSON(w, http.StatusOK, endereco)
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
