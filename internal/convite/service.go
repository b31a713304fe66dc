package convite

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/teamcruz/academia/internal/auth"
	"github.com/teamcruz/academia/internal/db"
	"github.com/teamcruz/academia/internal/email"
	"github.com/teamcruz/academia/internal/graduacao"
	"github.com/teamcruz/academia/internal/util"
)

var (
	ErrCPFInvalido         = errors.New("CPF inválido")
	ErrSenhaExigida        = errors.New("senha é obrigatória para criar o acesso")
	ErrEmailExigido        = errors.New("e-mail é obrigatório para criar o acesso")
	ErrDataInvalida        = errors.New("data de nascimento inválida")
	ErrUnidadeVazia        = errors.New("unidade é obrigatória")
	ErrMenorSemResponsavel = errors.New("cadastro de menor de idade exige os dados do responsável")
)

// iniciadorFaixa abstrai o vínculo da faixa inicial após a matrícula.
type iniciadorFaixa interface {
	IniciarFaixa(ctx context.Context, alunoID uuid.UUID, faixaCodigo string, inicio time.Time) (graduacao.AlunoFaixa, error)
}

// conviteRepository é o recorte do repositório usado pelo serviço;
// testes substituem por um stub em memória.
type conviteRepository interface {
	Insert(ctx context.Context, c ConviteCadastro) (ConviteCadastro, error)
	GetByToken(ctx context.Context, token string) (ConviteCadastro, error)
	GetByID(ctx context.Context, id uuid.UUID) (ConviteCadastro, error)
	ListByUnidade(ctx context.Context, unidadeID *uuid.UUID, limit, offset int) ([]ConviteCadastro, error)
	RenovarExpiracao(ctx context.Context, id uuid.UUID, novaExpiracao time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetUnidadeNome(ctx context.Context, unidadeID uuid.UUID) (string, error)
	CPFExiste(ctx context.Context, cpf string) (bool, error)
	EmailUsuarioExiste(ctx context.Context, email string) (bool, error)
	InsertEndereco(ctx context.Context, tx pgx.Tx, e Endereco) (uuid.UUID, error)
	InsertUsuario(ctx context.Context, tx pgx.Tx, nome, email, senhaHash string) (uuid.UUID, error)
	VincularUsuarioUnidade(ctx context.Context, tx pgx.Tx, usuarioID, unidadeID uuid.UUID, papel string) error
	InsertResponsavel(ctx context.Context, tx pgx.Tx, in NovoResponsavel) (uuid.UUID, error)
	InsertAluno(ctx context.Context, tx pgx.Tx, in NovoAluno) (uuid.UUID, error)
	MarcarUsado(ctx context.Context, tx pgx.Tx, conviteID uuid.UUID, usuarioCriadoID *uuid.UUID, quando time.Time) error
}

// Service cuida de convites de cadastro e do fluxo público de matrícula.
type Service struct {
	repo        conviteRepository
	pool        db.Beginner
	mailer      email.Mailer
	faixas      iniciadorFaixa
	frontendURL string
	validate    *validator.Validate
}

func NewService(repo conviteRepository, pool db.Beginner, mailer email.Mailer, faixas iniciadorFaixa, frontendURL string) *Service {
	return &Service{
		repo:        repo,
		pool:        pool,
		mailer:      mailer,
		faixas:      faixas,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		validate:    validator.New(),
	}
}

type CriarConviteInput struct {
	TipoCadastro    string     `json:"tipo_cadastro" validate:"required,oneof=ALUNO RESPONSAVEL"`
	UnidadeID       uuid.UUID  `json:"unidade_id"`
	NomePreCadastro *string    `json:"nome_pre_cadastro,omitempty"`
	Email           *string    `json:"email,omitempty" validate:"omitempty,email"`
	Telefone        *string    `json:"telefone,omitempty"`
	CPF             *string    `json:"cpf,omitempty"`
	CriadoPor       *uuid.UUID `json:"-"`
}

// Criar gera o convite com token aleatório e os links de envio.
func (s *Service) Criar(ctx context.Context, input CriarConviteInput, now time.Time) (ConviteComLinks, error) {
	if err := s.validate.Struct(input); err != nil {
		return ConviteComLinks{}, err
	}
	if input.UnidadeID == uuid.Nil {
		return ConviteComLinks{}, ErrUnidadeVazia
	}

	token, err := gerarToken()
	if err != nil {
		return ConviteComLinks{}, err
	}

	convite, err := s.repo.Insert(ctx, ConviteCadastro{
		Token:           token,
		TipoCadastro:    input.TipoCadastro,
		UnidadeID:       input.UnidadeID,
		NomePreCadastro: input.NomePreCadastro,
		Email:           input.Email,
		Telefone:        input.Telefone,
		CPF:             input.CPF,
		DataExpiracao:   now.Add(validadePadrao),
		CriadoPor:       input.CriadoPor,
	})
	if err != nil {
		return ConviteComLinks{}, err
	}

	resultado := s.comLinks(convite)
	s.enviarPorEmail(ctx, resultado)
	return resultado, nil
}

// Listar devolve os convites da unidade (ou de todas) com links reconstruídos.
func (s *Service) Listar(ctx context.Context, unidadeID *uuid.UUID, limit, offset int) ([]ConviteComLinks, error) {
	convites, err := s.repo.ListByUnidade(ctx, unidadeID, limit, offset)
	if err != nil {
		return nil, err
	}

	out := make([]ConviteComLinks, 0, len(convites))
	for _, c := range convites {
		out = append(out, s.comLinks(c))
	}
	return out, nil
}

// Reenviar estende a validade por mais sete dias e dispara o e-mail novamente.
func (s *Service) Reenviar(ctx context.Context, id uuid.UUID, now time.Time) (ConviteComLinks, error) {
	convite, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return ConviteComLinks{}, err
	}
	if convite.Usado {
		return ConviteComLinks{}, ErrConviteUsado
	}

	convite.DataExpiracao = now.Add(validadePadrao)
	if err := s.repo.RenovarExpiracao(ctx, id, convite.DataExpiracao); err != nil {
		return ConviteComLinks{}, err
	}

	resultado := s.comLinks(convite)
	s.enviarPorEmail(ctx, resultado)
	return resultado, nil
}

func (s *Service) Cancelar(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// AvaliarConvite aplica as regras de uso e validade de um convite.
func AvaliarConvite(c ConviteCadastro, now time.Time) error {
	if c.Usado {
		return ErrConviteUsado
	}
	if now.After(c.DataExpiracao) {
		return ErrConviteExpirado
	}
	return nil
}

// ValidarToken é a consulta pública do formulário de registro. Nunca devolve
// erro de negócio: o resultado carrega o motivo em texto.
func (s *Service) ValidarToken(ctx context.Context, token string, now time.Time) (ValidacaoToken, error) {
	convite, err := s.repo.GetByToken(ctx, token)
	if errors.Is(err, ErrConviteNaoEncontrado) {
		return ValidacaoToken{Valido: false, Mensagem: "Convite não encontrado"}, nil
	}
	if err != nil {
		return ValidacaoToken{}, err
	}

	switch AvaliarConvite(convite, now) {
	case ErrConviteUsado:
		return ValidacaoToken{Valido: false, Mensagem: "Este convite já foi utilizado"}, nil
	case ErrConviteExpirado:
		return ValidacaoToken{Valido: false, Mensagem: "Este convite expirou"}, nil
	}

	nomeUnidade, err := s.repo.GetUnidadeNome(ctx, convite.UnidadeID)
	if err != nil {
		return ValidacaoToken{}, err
	}

	return ValidacaoToken{
		Valido:   true,
		Mensagem: "Token válido",
		Convite: &DadosPreCadastro{
			TipoCadastro:    convite.TipoCadastro,
			Unidade:         UnidadeInfo{ID: convite.UnidadeID, Nome: nomeUnidade},
			NomePreCadastro: convite.NomePreCadastro,
			Email:           convite.Email,
			Telefone:        convite.Telefone,
			CPF:             convite.CPF,
		},
	}, nil
}

type ResponsavelInput struct {
	NomeCompleto string  `json:"nome_completo" validate:"required,min=3"`
	CPF          string  `json:"cpf" validate:"required"`
	Telefone     *string `json:"telefone,omitempty"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
}

type CompletarCadastroInput struct {
	Token          string            `json:"token" validate:"required"`
	NomeCompleto   string            `json:"nome_completo" validate:"required,min=3"`
	CPF            string            `json:"cpf" validate:"required"`
	Email          string            `json:"email" validate:"omitempty,email"`
	Telefone       string            `json:"telefone"`
	DataNascimento string            `json:"data_nascimento" validate:"required,datetime=2006-01-02"`
	Genero         string            `json:"genero" validate:"omitempty,oneof=MASCULINO FEMININO OUTRO"`
	Senha          string            `json:"senha" validate:"omitempty,min=8"`
	FaixaAtual     string            `json:"faixa_atual"`
	Endereco       *Endereco         `json:"endereco,omitempty"`
	Responsavel    *ResponsavelInput `json:"responsavel,omitempty"`
}

type ResultadoCadastro struct {
	Sucesso   bool       `json:"success"`
	Mensagem  string     `json:"message"`
	PessoaID  uuid.UUID  `json:"pessoa_id"`
	UsuarioID *uuid.UUID `json:"usuario_id,omitempty"`
}

// CompletarCadastro conclui a matrícula pública: valida o convite e o payload,
// e grava endereço, usuário, aluno/responsável e o consumo do convite em uma
// única transação.
func (s *Service) CompletarCadastro(ctx context.Context, input CompletarCadastroInput, now time.Time) (ResultadoCadastro, error) {
	if err := s.validate.Struct(input); err != nil {
		return ResultadoCadastro{}, err
	}

	convite, err := s.repo.GetByToken(ctx, input.Token)
	if err != nil {
		return ResultadoCadastro{}, err
	}
	if err := AvaliarConvite(convite, now); err != nil {
		return ResultadoCadastro{}, err
	}

	cpf := util.OnlyDigits(input.CPF)
	if err := util.ValidateCPF(cpf); err != nil {
		return ResultadoCadastro{}, ErrCPFInvalido
	}
	if existe, err := s.repo.CPFExiste(ctx, cpf); err != nil {
		return ResultadoCadastro{}, err
	} else if existe {
		return ResultadoCadastro{}, ErrCPFCadastrado
	}

	nascimento, err := time.Parse("2006-01-02", input.DataNascimento)
	if err != nil {
		return ResultadoCadastro{}, ErrDataInvalida
	}

	idade := idadeEm(nascimento, now)
	criaUsuario := convite.TipoCadastro == TipoResponsavel || idade >= 18
	if criaUsuario {
		if input.Email == "" {
			return ResultadoCadastro{}, ErrEmailExigido
		}
		if input.Senha == "" {
			return ResultadoCadastro{}, ErrSenhaExigida
		}
		if existe, err := s.repo.EmailUsuarioExiste(ctx, input.Email); err != nil {
			return ResultadoCadastro{}, err
		} else if existe {
			return ResultadoCadastro{}, ErrEmailCadastrado
		}
	}
	if convite.TipoCadastro == TipoAluno && idade < 18 && input.Responsavel == nil {
		return ResultadoCadastro{}, ErrMenorSemResponsavel
	}

	var senhaHash string
	if criaUsuario {
		senhaHash, err = auth.Hash(input.Senha)
		if err != nil {
			return ResultadoCadastro{}, err
		}
	}

	var resultado ResultadoCadastro
	err = db.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		var enderecoID *uuid.UUID
		if input.Endereco != nil && input.Endereco.CEP != "" {
			id, err := s.repo.InsertEndereco(ctx, tx, *input.Endereco)
			if err != nil {
				return fmt.Errorf("criar endereço: %w", err)
			}
			enderecoID = &id
		}

		var usuarioID *uuid.UUID
		if criaUsuario {
			id, err := s.repo.InsertUsuario(ctx, tx, input.NomeCompleto, input.Email, senhaHash)
			if err != nil {
				return fmt.Errorf("criar usuário: %w", err)
			}
			usuarioID = &id

			papel := "ALUNO"
			if convite.TipoCadastro == TipoResponsavel {
				papel = "RESPONSAVEL"
			}
			if err := s.repo.VincularUsuarioUnidade(ctx, tx, id, convite.UnidadeID, papel); err != nil {
				return fmt.Errorf("vincular usuário à unidade: %w", err)
			}
		}

		telefone := optional(input.Telefone)
		emailPtr := optional(strings.ToLower(input.Email))

		if convite.TipoCadastro == TipoResponsavel {
			pessoaID, err := s.repo.InsertResponsavel(ctx, tx, NovoResponsavel{
				UsuarioID:    usuarioID,
				NomeCompleto: strings.TrimSpace(input.NomeCompleto),
				CPF:          cpf,
				Telefone:     telefone,
				Email:        emailPtr,
				EnderecoID:   enderecoID,
			})
			if err != nil {
				return fmt.Errorf("criar responsável: %w", err)
			}
			resultado.PessoaID = pessoaID
		} else {
			var responsavelID *uuid.UUID
			if input.Responsavel != nil {
				respCPF := util.OnlyDigits(input.Responsavel.CPF)
				if err := util.ValidateCPF(respCPF); err != nil {
					return ErrCPFInvalido
				}
				id, err := s.repo.InsertResponsavel(ctx, tx, NovoResponsavel{
					NomeCompleto: strings.TrimSpace(input.Responsavel.NomeCompleto),
					CPF:          respCPF,
					Telefone:     input.Responsavel.Telefone,
					Email:        input.Responsavel.Email,
				})
				if err != nil {
					return fmt.Errorf("criar responsável do menor: %w", err)
				}
				responsavelID = &id
			}

			pessoaID, err := s.repo.InsertAluno(ctx, tx, NovoAluno{
				UsuarioID:      usuarioID,
				UnidadeID:      convite.UnidadeID,
				NomeCompleto:   strings.TrimSpace(input.NomeCompleto),
				CPF:            cpf,
				DataNascimento: nascimento,
				Genero:         optional(input.Genero),
				Telefone:       telefone,
				Email:          emailPtr,
				ResponsavelID:  responsavelID,
				EnderecoID:     enderecoID,
				DataMatricula:  now,
			})
			if err != nil {
				return fmt.Errorf("criar aluno: %w", err)
			}
			resultado.PessoaID = pessoaID
		}

		resultado.UsuarioID = usuarioID
		return s.repo.MarcarUsado(ctx, tx, convite.ID, usuarioID, now)
	})
	if err != nil {
		return ResultadoCadastro{}, err
	}

	if convite.TipoCadastro == TipoAluno && input.FaixaAtual != "" {
		if _, err := s.faixas.IniciarFaixa(ctx, resultado.PessoaID, strings.ToUpper(input.FaixaAtual), now); err != nil {
			log.Warn().Err(err).
				Str("aluno", resultado.PessoaID.String()).
				Str("faixa", input.FaixaAtual).
				Msg("convite: faixa inicial não vinculada")
		}
	}

	resultado.Sucesso = true
	resultado.Mensagem = "Cadastro completado com sucesso!"
	return resultado, nil
}

func (s *Service) comLinks(c ConviteCadastro) ConviteComLinks {
	link := fmt.Sprintf("%s/register?convite=%s&unidade=%s", s.frontendURL, c.Token, c.UnidadeID)
	return ConviteComLinks{
		ConviteCadastro: c,
		Link:            link,
		LinkWhatsApp:    LinkWhatsApp(c.Telefone, link, c.NomePreCadastro),
	}
}

// enviarPorEmail dispara o convite por e-mail quando há destinatário. Falha só
// vira log: o link continua disponível na resposta.
func (s *Service) enviarPorEmail(ctx context.Context, c ConviteComLinks) {
	if c.Email == nil || *c.Email == "" {
		return
	}

	nome := ""
	if c.NomePreCadastro != nil {
		nome = *c.NomePreCadastro
	}
	msg := email.Mensagem{
		Para:     *c.Email,
		NomePara: nome,
		Assunto:  "Seu convite de matrícula",
		Texto:    fmt.Sprintf("Olá! Complete seu cadastro pelo link: %s\nO convite vale até %s.", c.Link, c.DataExpiracao.Format("02/01/2006")),
	}
	if err := s.mailer.Enviar(ctx, msg); err != nil {
		log.Warn().Err(err).Str("convite", c.ID.String()).Msg("convite: envio de e-mail falhou")
	}
}

func gerarToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// idadeEm calcula a idade completa na data de referência.
func idadeEm(nascimento, ref time.Time) int {
	anos := ref.Year() - nascimento.Year()
	aniversario := time.Date(ref.Year(), nascimento.Month(), nascimento.Day(), 0, 0, 0, 0, time.UTC)
	if ref.Before(aniversario) {
		anos--
	}
	return anos
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
