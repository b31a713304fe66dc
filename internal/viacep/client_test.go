package viacep

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConsultarNormalizaResposta(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/01001000/json/" {
			t.Errorf("path inesperado: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"cep": "01001-000",
			"logradouro": "Praça da Sé",
			"complemento": "lado ímpar",
			"bairro": "Sé",
			"localidade": "São Paulo",
			"uf": "SP"
		}`))
	}))
	defer server.Close()

	endereco, err := New(server.URL).Consultar(context.Background(), "01001-000")
	if err != nil {
		t.Fatalf("Consultar: %v", err)
	}
	if endereco.CEP != "01001000" {
		t.Fatalf("cep = %q, esperado sem máscara", endereco.CEP)
	}
	if endereco.Cidade != "São Paulo" || endereco.Estado != "SP" {
		t.Fatalf("cidade/estado inesperados: %+v", endereco)
	}
}

func TestConsultarCEPInexistente(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"erro": true}`))
	}))
	defer server.Close()

	_, err := New(server.URL).Consultar(context.Background(), "99999999")
	if !errors.Is(err, ErrCEPNaoEncontrado) {
		t.Fatalf("err = %v, esperado ErrCEPNaoEncontrado", err)
	}
}

func TestConsultarCEPMalformado(t *testing.T) {
	_, err := New("").Consultar(context.Background(), "1234")
	if !errors.Is(err, ErrCEPInvalido) {
		t.Fatalf("err = %v, esperado ErrCEPInvalido", err)
	}
}
