package convite

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/teamcruz/academia/internal/util"
)

const (
	TipoAluno       = "ALUNO"
	TipoResponsavel = "RESPONSAVEL"

	// validade padrão de um convite de cadastro.
	validadePadrao = 7 * 24 * time.Hour
)

var (
	ErrConviteNaoEncontrado = errors.New("Convite não encontrado")
	ErrConviteUsado         = errors.New("Este convite já foi utilizado")
	ErrConviteExpirado      = errors.New("Este convite expirou")
	ErrTipoInvalido         = errors.New("tipo de cadastro inválido")
	ErrCPFCadastrado        = errors.New("CPF já cadastrado no sistema")
	ErrEmailCadastrado      = errors.New("Email já cadastrado no sistema")
)

// ConviteCadastro é um convite de auto-cadastro enviado a um futuro aluno ou
// responsável. O token dá acesso ao formulário público de registro.
type ConviteCadastro struct {
	ID              uuid.UUID  `json:"id"`
	Token           string     `json:"token"`
	TipoCadastro    string     `json:"tipo_cadastro"`
	UnidadeID       uuid.UUID  `json:"unidade_id"`
	NomePreCadastro *string    `json:"nome_pre_cadastro,omitempty"`
	Email           *string    `json:"email,omitempty"`
	Telefone        *string    `json:"telefone,omitempty"`
	CPF             *string    `json:"cpf,omitempty"`
	DataExpiracao   time.Time  `json:"data_expiracao"`
	Usado           bool       `json:"usado"`
	UsadoEm         *time.Time `json:"usado_em,omitempty"`
	UsuarioCriadoID *uuid.UUID `json:"usuario_criado_id,omitempty"`
	CriadoPor       *uuid.UUID `json:"criado_por,omitempty"`
	CriadoEm        time.Time  `json:"criado_em"`
}

// ConviteComLinks agrega o convite aos links prontos para envio.
type ConviteComLinks struct {
	ConviteCadastro
	Link         string  `json:"link"`
	LinkWhatsApp *string `json:"link_whatsapp,omitempty"`
}

// DadosPreCadastro é a projeção pública devolvida na validação do token.
type DadosPreCadastro struct {
	TipoCadastro    string      `json:"tipo_cadastro"`
	Unidade         UnidadeInfo `json:"unidade"`
	NomePreCadastro *string     `json:"nome_pre_cadastro,omitempty"`
	Email           *string     `json:"email,omitempty"`
	Telefone        *string     `json:"telefone,omitempty"`
	CPF             *string     `json:"cpf,omitempty"`
}

type UnidadeInfo struct {
	ID   uuid.UUID `json:"id"`
	Nome string    `json:"nome"`
}

// ValidacaoToken é a resposta pública de GET /convites-cadastro/validar/{token}.
type ValidacaoToken struct {
	Valido   bool              `json:"valido"`
	Mensagem string            `json:"mensagem"`
	Convite  *DadosPreCadastro `json:"convite,omitempty"`
}

// Endereco é o endereço opcional informado no cadastro público.
type Endereco struct {
	CEP         string  `json:"cep" validate:"omitempty,len=8"`
	Logradouro  *string `json:"logradouro,omitempty"`
	Numero      *string `json:"numero,omitempty"`
	Complemento *string `json:"complemento,omitempty"`
	Bairro      *string `json:"bairro,omitempty"`
	Cidade      *string `json:"cidade,omitempty"`
	Estado      *string `json:"estado,omitempty" validate:"omitempty,len=2"`
}

// NovoResponsavel e NovoAluno são as linhas criadas dentro da transação de cadastro.
type NovoResponsavel struct {
	UsuarioID    *uuid.UUID
	NomeCompleto string
	CPF          string
	Telefone     *string
	Email        *string
	EnderecoID   *uuid.UUID
}

type NovoAluno struct {
	UsuarioID      *uuid.UUID
	UnidadeID      uuid.UUID
	NomeCompleto   string
	CPF            string
	DataNascimento time.Time
	Genero         *string
	Telefone       *string
	Email          *string
	ResponsavelID  *uuid.UUID
	EnderecoID     *uuid.UUID
	DataMatricula  time.Time
}

// LinkWhatsApp monta o deep link do WhatsApp com a mensagem de convite.
// Retorna nil quando não há telefone.
func LinkWhatsApp(telefone *string, link string, nome *string) *string {
	if telefone == nil {
		return nil
	}
	digitos := util.OnlyDigits(*telefone)
	if digitos == "" {
		return nil
	}

	mensagem := fmt.Sprintf("Olá! Seu link de cadastro está pronto: %s", link)
	if nome != nil && *nome != "" {
		mensagem = fmt.Sprintf("Olá %s! Seu link de cadastro está pronto: %s", *nome, link)
	}

	wa := fmt.Sprintf("https://wa.me/55%s?text=%s", digitos, url.QueryEscape(mensagem))
	return &wa
}
