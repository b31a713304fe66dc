package convenio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/teamcruz/academia/internal/config"
)

// eventQueue é o recorte do repositório que o dispatcher consome.
type eventQueue interface {
	ListEventosPendentes(ctx context.Context, maxTentativas, limit int) ([]EventoPendente, error)
	MarcarEnviado(ctx context.Context, eventoID uuid.UUID, responseStatus int, quando time.Time) error
	RegistrarFalha(ctx context.Context, eventoID uuid.UUID, responseStatus *int, erro string) error
}

// Dispatcher envia eventos pendentes ao parceiro em loop periódico.
type Dispatcher struct {
	queue  eventQueue
	cfg    config.ConvenioConfig
	client *http.Client
	logger zerolog.Logger

	once   sync.Once
	cancel context.CancelFunc
}

func NewDispatcher(queue eventQueue, cfg config.ConvenioConfig, logger zerolog.Logger) *Dispatcher {
	timeout := cfg.DispatchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		queue:  queue,
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Start inicia o loop periódico. Safe para chamar múltiplas vezes.
func (d *Dispatcher) Start(parent context.Context) {
	d.once.Do(func() {
		ctx, cancel := context.WithCancel(parent)
		d.cancel = cancel
		go d.runLoop(ctx)
	})
}

// Stop encerra o loop periódico.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *Dispatcher) runLoop(ctx context.Context) {
	interval := d.cfg.DispatchInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info().Dur("interval", interval).Msg("convenio: dispatcher iniciado")

	if err := d.RunOnce(ctx); err != nil {
		d.logger.Error().Err(err).Msg("convenio: primeira execução falhou")
	}

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("convenio: dispatcher encerrado")
			return
		case <-ticker.C:
			if err := d.RunOnce(ctx); err != nil {
				d.logger.Error().Err(err).Msg("convenio: execução periódica falhou")
			}
		}
	}
}

// RunOnce drena a fila de eventos pendentes uma vez.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	maxTentativas := d.cfg.MaxTentativas
	if maxTentativas <= 0 {
		maxTentativas = 5
	}

	pendentes, err := d.queue.ListEventosPendentes(ctx, maxTentativas, 50)
	if err != nil {
		return fmt.Errorf("listar eventos pendentes: %w", err)
	}

	for _, p := range pendentes {
		if err := d.enviar(ctx, p); err != nil {
			d.logger.Warn().Err(err).
				Str("evento", p.Evento.ID.String()).
				Str("convenio", p.ConvenioCodigo).
				Msg("convenio: envio falhou")
		}
	}
	return nil
}

// eventoPayload é o corpo enviado ao parceiro.
type eventoPayload struct {
	EventoID       string  `json:"evento_id"`
	Tipo           string  `json:"tipo"`
	ConvenioUserID string  `json:"convenio_user_id"`
	PresencaID     *string `json:"presenca_id,omitempty"`
	Timestamp      string  `json:"timestamp"`
}

func (d *Dispatcher) enviar(ctx context.Context, p EventoPendente) error {
	payload := eventoPayload{
		EventoID:       p.Evento.ID.String(),
		Tipo:           p.Evento.Tipo,
		ConvenioUserID: p.ConvenioUserID,
		Timestamp:      p.Evento.CriadoEm.UTC().Format(time.RFC3339),
	}
	if p.Evento.PresencaID != nil {
		id := p.Evento.PresencaID.String()
		payload.PresencaID = &id
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	requestCtx, cancel := context.WithTimeout(ctx, d.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, p.APIURL, bytes.NewReader(body))
	if err != nil {
		return d.falha(ctx, p.Evento.ID, nil, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return d.falha(ctx, p.Evento.ID, nil, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return d.queue.MarcarEnviado(ctx, p.Evento.ID, resp.StatusCode, time.Now().UTC())
	}
	return d.falha(ctx, p.Evento.ID, &resp.StatusCode, fmt.Errorf("parceiro respondeu %d", resp.StatusCode))
}

func (d *Dispatcher) falha(ctx context.Context, eventoID uuid.UUID, status *int, cause error) error {
	if err := d.queue.RegistrarFalha(ctx, eventoID, status, cause.Error()); err != nil {
		return err
	}
	return cause
}
