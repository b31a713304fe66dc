package convenio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/teamcruz/academia/internal/config"
)

type stubQueue struct {
	pendentes     []EventoPendente
	maxTentativas int

	enviados map[uuid.UUID]int
	falhas   map[uuid.UUID]string
	statuses map[uuid.UUID]*int
}

func newStubQueue() *stubQueue {
	return &stubQueue{
		enviados: map[uuid.UUID]int{},
		falhas:   map[uuid.UUID]string{},
		statuses: map[uuid.UUID]*int{},
	}
}

func (q *stubQueue) ListEventosPendentes(_ context.Context, maxTentativas, _ int) ([]EventoPendente, error) {
	q.maxTentativas = maxTentativas
	var out []EventoPendente
	for _, p := range q.pendentes {
		if p.Evento.Enviado || p.Evento.Tentativas >= maxTentativas {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (q *stubQueue) MarcarEnviado(_ context.Context, eventoID uuid.UUID, responseStatus int, _ time.Time) error {
	q.enviados[eventoID] = responseStatus
	return nil
}

func (q *stubQueue) RegistrarFalha(_ context.Context, eventoID uuid.UUID, responseStatus *int, erro string) error {
	q.falhas[eventoID] = erro
	q.statuses[eventoID] = responseStatus
	for i := range q.pendentes {
		if q.pendentes[i].Evento.ID == eventoID {
			q.pendentes[i].Evento.Tentativas++
		}
	}
	return nil
}

func eventoPendenteTeste(apiURL string) EventoPendente {
	return EventoPendente{
		Evento: EventoConvenio{
			ID:              uuid.New(),
			AlunoConvenioID: uuid.New(),
			Tipo:            EventoCheckin,
			CriadoEm:        time.Now().UTC(),
		},
		APIURL:         apiURL,
		ConvenioCodigo: "GYMPASS",
		ConvenioUserID: "gp-123",
	}
}

func novoDispatcher(queue *stubQueue) *Dispatcher {
	cfg := config.ConvenioConfig{DispatchTimeout: 2 * time.Second, MaxTentativas: 3}
	return NewDispatcher(queue, cfg, zerolog.Nop())
}

func TestRunOnceMarcaEnviado(t *testing.T) {
	var recebido eventoPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&recebido); err != nil {
			t.Errorf("decodificar payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	queue := newStubQueue()
	pendente := eventoPendenteTeste(server.URL)
	queue.pendentes = []EventoPendente{pendente}

	if err := novoDispatcher(queue).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	status, ok := queue.enviados[pendente.Evento.ID]
	if !ok {
		t.Fatal("evento deveria ter sido marcado como enviado")
	}
	if status != http.StatusAccepted {
		t.Fatalf("response_status = %d, esperado %d", status, http.StatusAccepted)
	}
	if recebido.ConvenioUserID != "gp-123" {
		t.Fatalf("convenio_user_id enviado = %q", recebido.ConvenioUserID)
	}
	if recebido.Tipo != EventoCheckin {
		t.Fatalf("tipo enviado = %q", recebido.Tipo)
	}
}

func TestRunOnceRegistraFalha(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	queue := newStubQueue()
	pendente := eventoPendenteTeste(server.URL)
	queue.pendentes = []EventoPendente{pendente}

	if err := novoDispatcher(queue).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(queue.enviados) != 0 {
		t.Fatal("evento não deveria ter sido marcado como enviado")
	}
	if queue.falhas[pendente.Evento.ID] == "" {
		t.Fatal("falha deveria ter sido registrada")
	}
	status := queue.statuses[pendente.Evento.ID]
	if status == nil || *status != http.StatusBadGateway {
		t.Fatalf("response_status da falha = %v, esperado %d", status, http.StatusBadGateway)
	}
}

func TestRunOnceRespeitaMaxTentativas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	queue := newStubQueue()
	pendente := eventoPendenteTeste(server.URL)
	pendente.Evento.Tentativas = 3
	queue.pendentes = []EventoPendente{pendente}

	dispatcher := novoDispatcher(queue)
	if err := dispatcher.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if queue.maxTentativas != 3 {
		t.Fatalf("maxTentativas propagado = %d, esperado 3", queue.maxTentativas)
	}
	if len(queue.falhas) != 0 {
		t.Fatal("evento esgotado não deveria ter sido reenviado")
	}
}
