package viacep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/teamcruz/academia/internal/util"
)

const defaultBaseURL = "https://viacep.com.br/ws"

var (
	ErrCEPInvalido      = errors.New("CEP deve conter 8 dígitos")
	ErrCEPNaoEncontrado = errors.New("CEP não encontrado")
)

// Endereco é a resposta do ViaCEP já normalizada.
type Endereco struct {
	CEP         string `json:"cep"`
	Logradouro  string `json:"logradouro"`
	Complemento string `json:"complemento,omitempty"`
	Bairro      string `json:"bairro"`
	Cidade      string `json:"cidade"`
	Estado      string `json:"estado"`
}

// Client consulta o serviço público ViaCEP.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New cria o cliente; baseURL vazio usa o endpoint público.
func New(baseURL string) *Client {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(base, "/"),
	}
}

// Consultar busca o endereço de um CEP. Aceita o CEP com ou sem máscara.
func (c *Client) Consultar(ctx context.Context, cep string) (Endereco, error) {
	digitos := util.OnlyDigits(cep)
	if len(digitos) != 8 {
		return Endereco{}, ErrCEPInvalido
	}

	endpoint := fmt.Sprintf("%s/%s/json/", c.baseURL, digitos)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Endereco{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Endereco{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return Endereco{}, ErrCEPInvalido
	}
	if resp.StatusCode != http.StatusOK {
		return Endereco{}, fmt.Errorf("viacep: status %d", resp.StatusCode)
	}

	// O ViaCEP responde 200 com {"erro": true} para CEP inexistente.
	var payload struct {
		CEP         string `json:"cep"`
		Logradouro  string `json:"logradouro"`
		Complemento string `json:"complemento"`
		Bairro      string `json:"bairro"`
		Localidade  string `json:"localidade"`
		UF          string `json:"uf"`
		Erro        any    `json:"erro"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Endereco{}, err
	}
	if payload.Erro != nil && payload.Erro != false {
		return Endereco{}, ErrCEPNaoEncontrado
	}

	return Endereco{
		CEP:         util.OnlyDigits(payload.CEP),
		Logradouro:  payload.Logradouro,
		Complemento: payload.Complemento,
		Bairro:      payload.Bairro,
		Cidade:      payload.Localidade,
		Estado:      payload.UF,
	}, nil
}
