package convite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var agora = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func conviteTeste(fn func(c *ConviteCadastro)) ConviteCadastro {
	c := ConviteCadastro{
		Token:         "abc123",
		TipoCadastro:  TipoAluno,
		DataExpiracao: agora.Add(validadePadrao),
	}
	if fn != nil {
		fn(&c)
	}
	return c
}

func TestAvaliarConvite(t *testing.T) {
	cases := []struct {
		nome    string
		convite ConviteCadastro
		want    error
	}{
		{"valido", conviteTeste(nil), nil},
		{"usado", conviteTeste(func(c *ConviteCadastro) { c.Usado = true }), ErrConviteUsado},
		{"expirado", conviteTeste(func(c *ConviteCadastro) {
			c.DataExpiracao = agora.Add(-time.Hour)
		}), ErrConviteExpirado},
		{"usado tem precedencia sobre expirado", conviteTeste(func(c *ConviteCadastro) {
			c.Usado = true
			c.DataExpiracao = agora.Add(-time.Hour)
		}), ErrConviteUsado},
	}

	for _, tc := range cases {
		t.Run(tc.nome, func(t *testing.T) {
			if err := AvaliarConvite(tc.convite, agora); !errors.Is(err, tc.want) {
				t.Fatalf("AvaliarConvite = %v, esperado %v", err, tc.want)
			}
		})
	}
}

func TestLinkWhatsApp(t *testing.T) {
	telefone := "(11) 98765-4321"
	nome := "Maria"
	link := "https://app.teamcruz.com.br/register?convite=abc"

	got := LinkWhatsApp(&telefone, link, &nome)
	if got == nil {
		t.Fatal("link não deveria ser nil")
	}
	if !strings.HasPrefix(*got, "https://wa.me/5511987654321?text=") {
		t.Fatalf("prefixo inesperado: %s", *got)
	}
	if !strings.Contains(*got, "Maria") {
		t.Fatalf("mensagem deveria citar o nome: %s", *got)
	}

	if LinkWhatsApp(nil, link, &nome) != nil {
		t.Fatal("sem telefone deveria devolver nil")
	}
	vazio := "--"
	if LinkWhatsApp(&vazio, link, nil) != nil {
		t.Fatal("telefone sem dígitos deveria devolver nil")
	}
}

func TestIdadeEm(t *testing.T) {
	cases := []struct {
		nome       string
		nascimento time.Time
		want       int
	}{
		{"adulto", time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC), 35},
		{"faz 18 hoje", time.Date(2007, 6, 10, 0, 0, 0, 0, time.UTC), 18},
		{"faz 18 amanha", time.Date(2007, 6, 11, 0, 0, 0, 0, time.UTC), 17},
		{"crianca", time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), 7},
	}

	for _, tc := range cases {
		t.Run(tc.nome, func(t *testing.T) {
			if got := idadeEm(tc.nascimento, agora); got != tc.want {
				t.Fatalf("idadeEm = %d, esperado %d", got, tc.want)
			}
		})
	}
}

// stubConviteRepo responde convites em memória; só os métodos de leitura
// usados por ValidarToken têm comportamento real.
type stubConviteRepo struct {
	convites map[string]ConviteCadastro
	unidades map[uuid.UUID]string
}

func newStubConviteRepo() *stubConviteRepo {
	return &stubConviteRepo{
		convites: make(map[string]ConviteCadastro),
		unidades: make(map[uuid.UUID]string),
	}
}

func (s *stubConviteRepo) Insert(_ context.Context, c ConviteCadastro) (ConviteCadastro, error) {
	c.ID = uuid.New()
	s.convites[c.Token] = c
	return c, nil
}

func (s *stubConviteRepo) GetByToken(_ context.Context, token string) (ConviteCadastro, error) {
	c, ok := s.convites[token]
	if !ok {
		return ConviteCadastro{}, ErrConviteNaoEncontrado
	}
	return c, nil
}

func (s *stubConviteRepo) GetByID(_ context.Context, id uuid.UUID) (ConviteCadastro, error) {
	for _, c := range s.convites {
		if c.ID == id {
			return c, nil
		}
	}
	return ConviteCadastro{}, ErrConviteNaoEncontrado
}

func (s *stubConviteRepo) ListByUnidade(_ context.Context, _ *uuid.UUID, _, _ int) ([]ConviteCadastro, error) {
	return nil, nil
}

func (s *stubConviteRepo) RenovarExpiracao(_ context.Context, _ uuid.UUID, _ time.Time) error {
	return nil
}

func (s *stubConviteRepo) Delete(_ context.Context, _ uuid.UUID) error { return nil }

func (s *stubConviteRepo) GetUnidadeNome(_ context.Context, unidadeID uuid.UUID) (string, error) {
	return s.unidades[unidadeID], nil
}

func (s *stubConviteRepo) CPFExiste(_ context.Context, _ string) (bool, error) { return false, nil }

func (s *stubConviteRepo) EmailUsuarioExiste(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (s *stubConviteRepo) InsertEndereco(_ context.Context, _ pgx.Tx, _ Endereco) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (s *stubConviteRepo) InsertUsuario(_ context.Context, _ pgx.Tx, _, _, _ string) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (s *stubConviteRepo) VincularUsuarioUnidade(_ context.Context, _ pgx.Tx, _, _ uuid.UUID, _ string) error {
	return nil
}

func (s *stubConviteRepo) InsertResponsavel(_ context.Context, _ pgx.Tx, _ NovoResponsavel) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (s *stubConviteRepo) InsertAluno(_ context.Context, _ pgx.Tx, _ NovoAluno) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (s *stubConviteRepo) MarcarUsado(_ context.Context, _ pgx.Tx, _ uuid.UUID, _ *uuid.UUID, _ time.Time) error {
	return nil
}

func TestValidarTokenMensagensPublicas(t *testing.T) {
	repo := newStubConviteRepo()
	unidadeID := uuid.New()
	repo.unidades[unidadeID] = "TeamCruz Matriz"

	nome := "João"
	valido := conviteTeste(func(c *ConviteCadastro) {
		c.Token = "tok-valido"
		c.UnidadeID = unidadeID
		c.NomePreCadastro = &nome
	})
	usado := conviteTeste(func(c *ConviteCadastro) {
		c.Token = "tok-usado"
		c.Usado = true
	})
	expirado := conviteTeste(func(c *ConviteCadastro) {
		c.Token = "tok-expirado"
		c.DataExpiracao = agora.Add(-time.Hour)
	})
	for _, c := range []ConviteCadastro{valido, usado, expirado} {
		if _, err := repo.Insert(context.Background(), c); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	s := NewService(repo, nil, nil, nil, "https://app.teamcruz.com.br")

	cases := []struct {
		nome     string
		token    string
		valido   bool
		mensagem string
	}{
		{"inexistente", "tok-fantasma", false, "Convite não encontrado"},
		{"usado", "tok-usado", false, "Este convite já foi utilizado"},
		{"expirado", "tok-expirado", false, "Este convite expirou"},
		{"valido", "tok-valido", true, "Token válido"},
	}

	for _, tc := range cases {
		t.Run(tc.nome, func(t *testing.T) {
			got, err := s.ValidarToken(context.Background(), tc.token, agora)
			if err != nil {
				t.Fatalf("ValidarToken: %v", err)
			}
			if got.Valido != tc.valido || got.Mensagem != tc.mensagem {
				t.Fatalf("resultado = {%v %q}, esperado {%v %q}", got.Valido, got.Mensagem, tc.valido, tc.mensagem)
			}
		})
	}

	t.Run("valido ecoa pre-cadastro", func(t *testing.T) {
		got, err := s.ValidarToken(context.Background(), "tok-valido", agora)
		if err != nil {
			t.Fatalf("ValidarToken: %v", err)
		}
		if got.Convite == nil || got.Convite.Unidade.Nome != "TeamCruz Matriz" {
			t.Fatalf("esperava dados da unidade, veio %+v", got.Convite)
		}
		if got.Convite.NomePreCadastro == nil || *got.Convite.NomePreCadastro != "João" {
			t.Fatalf("esperava nome do pré-cadastro, veio %+v", got.Convite.NomePreCadastro)
		}
	})
}
