package graduacao

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

// Handler orquestra rotas de graduação e progresso.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/progresso", func(r chi.Router) {
		r.Get("/{alunoID}", h.handleHistoricoCompleto)
		r.Get("/{alunoID}/status", h.handleStatus)
	})
	r.Route("/graduacao", func(r chi.Router) {
		r.Get("/faixas", h.handleListarFaixas)
		r.Get("/proximos-graduar", h.handleProximosGraduar)
		r.Get("/historico", h.handleHistorico)
		r.Post("/{alunoID}/grau", h.handleConcederGrau)
		r.Post("/{alunoID}/faixa", h.handleGraduarFaixa)
		r.Post("/{alunoID}/faixa/iniciar", h.handleIniciarFaixa)
		r.Post("/{alunoID}/historico/grau", h.handleAdicionarGrauHistorico)
		r.Post("/{alunoID}/historico/faixa", h.handleAdicionarFaixaHistorico)
		r.Put("/historico/faixa/{id}", h.handleEditarFaixaHistorico)
	})
}

func (h *Handler) handleListarFaixas(w http.ResponseWriter, r *http.Request) {
	faixas, err := h.service.ListarFaixas(r.Context(), r.URL.Query().Get("categoria"))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if faixas == nil {
		faixas = []FaixaDef{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"faixas": faixas})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	alunoID, err := uuid.Parse(chi.URLParam(r, "alunoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "aluno inválido", nil)
		return
	}

	status, err := h.service.StatusGraduacao(r.Context(), alunoID, util.Now())
	if err != nil {
		if errors.Is(err, ErrAlunoSemFaixa) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", ErrAlunoSemFaixa.Error(), nil)
			return
		}
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleHistoricoCompleto(w http.ResponseWriter, r *http.Request) {
	alunoID, err := uuid.Parse(chi.URLParam(r, "alunoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "aluno inválido", nil)
		return
	}

	historico, err := h.service.HistoricoCompleto(r.Context(), alunoID, util.Now())
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, historico)
}

func (h *Handler) handleHistorico(w http.ResponseWriter, r *http.Request) {
	alunoID, err := uuid.Parse(r.URL.Query().Get("aluno_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "informe aluno_id", nil)
		return
	}

	historico, err := h.service.HistoricoCompleto(r.Context(), alunoID, util.Now())
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, historico)
}

func (h *Handler) handleProximosGraduar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	filtros := FiltrosProximos{
		Categoria:   q.Get("categoria"),
		FaixaCodigo: q.Get("faixa"),
	}
	if raw := middleware.GetUnidade(r.Context()); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			filtros.UnidadeID = &id
		}
	} else if raw := q.Get("unidade_id"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			filtros.UnidadeID = &id
		}
	}

	itens, total, err := h.service.ProximosGraduar(r.Context(), filtros, limit, offset, util.Now())
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"alunos": itens, "total": total})
}

func (h *Handler) handleConcederGrau(w http.ResponseWriter, r *http.Request) {
	alunoID, err := uuid.Parse(chi.URLParam(r, "alunoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "aluno inválido", nil)
		return
	}

	var payload struct {
		Observacao *string `json:"observacao"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
			return
		}
	}

	input := ConcederGrauInput{Origem: OrigemManual, Observacao: payload.Observacao}
	if sub := middleware.GetSubject(r.Context()); sub != "" {
		if id, err := uuid.Parse(sub); err == nil {
			input.ConcedidoPor = &id
		}
	}

	grau, err := h.service.ConcederGrau(r.Context(), alunoID, input, util.Now())
	if err != nil {
		switch {
		case errors.Is(err, ErrAlunoSemFaixa):
			writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
		case errors.Is(err, ErrGrausMaximos):
			writeError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
		default:
			writeInternalError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, grau)
}

func (h *Handler) handleGraduarFaixa(w http.ResponseWriter, r *http.Request) {
	alunoID, err := uuid.Parse(chi.URLParam(r, "alunoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "aluno inválido", nil)
		return
	}

	var payload struct {
		FaixaDestino string  `json:"faixa_destino"`
		Evento       *string `json:"evento"`
		Observacao   *string `json:"observacao"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	status, err := h.service.GraduarFaixa(r.Context(), alunoID, GraduarFaixaInput{
		FaixaDestinoCodigo: payload.FaixaDestino,
		Evento:             payload.Evento,
		Observacao:         payload.Observacao,
	}, util.Now())
	if err != nil {
		switch {
		case errors.Is(err, ErrAlunoSemFaixa), errors.Is(err, ErrFaixaNaoEncontrada):
			writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
		case errors.Is(err, ErrPromocaoInvalida):
			writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		case errors.Is(err, ErrPromocaoDuplicada):
			writeError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
		default:
			writeInternalError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleIniciarFaixa(w http.ResponseWriter, r *http.Request) {
	alunoID, err := uuid.Parse(chi.URLParam(r, "alunoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "aluno inválido", nil)
		return
	}

	var payload struct {
		Faixa    string     `json:"faixa"`
		DtInicio *time.Time `json:"dt_inicio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	inicio := util.Now()
	if payload.DtInicio != nil {
		inicio = *payload.DtInicio
	}

	af, err := h.service.IniciarFaixa(r.Context(), alunoID, payload.Faixa, inicio)
	if err != nil {
		switch {
		case errors.Is(err, ErrFaixaNaoEncontrada):
			writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
		case errors.Is(err, ErrIntervaloAberto):
			writeError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
		default:
			writeInternalError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, af)
}

func (h *Handler) handleAdicionarGrauHistorico(w http.ResponseWriter, r *http.Request) {
	alunoID, err := uuid.Parse(chi.URLParam(r, "alunoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "aluno inválido", nil)
		return
	}

	var payload struct {
		Faixa       string    `json:"faixa"`
		GrauNum     int       `json:"grau_num"`
		DtConcessao time.Time `json:"dt_concessao"`
		Observacao  *string   `json:"observacao"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	input := GrauHistoricoInput{
		FaixaCodigo: payload.Faixa,
		GrauNum:     payload.GrauNum,
		DtConcessao: payload.DtConcessao,
		Observacao:  payload.Observacao,
	}
	if sub := middleware.GetSubject(r.Context()); sub != "" {
		if id, err := uuid.Parse(sub); err == nil {
			input.ConcedidoPor = &id
		}
	}

	grau, err := h.service.AdicionarGrauHistorico(r.Context(), alunoID, input)
	if err != nil {
		if errors.Is(err, ErrFaixaNaoEncontrada) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	writeJSON(w, http.StatusCreated, grau)
}

type faixaHistoricoPayload struct {
	FaixaDestino string     `json:"faixa_destino"`
	DtInicio     time.Time  `json:"dt_inicio"`
	DtFim        *time.Time `json:"dt_fim"`
	Atual        bool       `json:"atual"`
	Observacao   *string    `json:"observacao"`
}

func (p faixaHistoricoPayload) toInput() FaixaHistoricoInput {
	return FaixaHistoricoInput{
		FaixaDestinoCodigo: p.FaixaDestino,
		DtInicio:           p.DtInicio,
		DtFim:              p.DtFim,
		Atual:              p.Atual,
		Observacao:         p.Observacao,
	}
}

func (h *Handler) handleAdicionarFaixaHistorico(w http.ResponseWriter, r *http.Request) {
	alunoID, err := uuid.Parse(chi.URLParam(r, "alunoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "aluno inválido", nil)
		return
	}

	var payload faixaHistoricoPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	grad, err := h.service.AdicionarFaixaHistorico(r.Context(), alunoID, payload.toInput())
	if err != nil {
		h.writeHistoricoError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, grad)
}

func (h *Handler) handleEditarFaixaHistorico(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "registro inválido", nil)
		return
	}

	var payload faixaHistoricoPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	grad, err := h.service.EditarFaixaHistorico(r.Context(), id, payload.toInput())
	if err != nil {
		h.writeHistoricoError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, grad)
}

func (h *Handler) writeHistoricoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrFaixaNaoEncontrada):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrIntervaloAberto):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, ErrDatasInvalidas):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	default:
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	}
}

func writeInternalError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("graduacao handler error")
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
