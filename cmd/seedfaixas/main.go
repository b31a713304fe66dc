package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/teamcruz/academia/internal/db"
	"github.com/teamcruz/academia/internal/graduacao"
)

// Catálogo padrão de faixas da equipe. A PRETA e as faixas de mestre progridem
// por tempo, as demais por contagem de aulas.
var faixas = []graduacao.FaixaDef{
	{Codigo: "BRANCA", NomeExibicao: "Branca", CorHex: "#FFFFFF", Ordem: 1, GrausMax: 4, AulasPorGrau: 20, Categoria: graduacao.CategoriaAdulto},
	{Codigo: "AZUL", NomeExibicao: "Azul", CorHex: "#0066CC", Ordem: 2, GrausMax: 4, AulasPorGrau: 40, Categoria: graduacao.CategoriaAdulto},
	{Codigo: "ROXA", NomeExibicao: "Roxa", CorHex: "#660099", Ordem: 3, GrausMax: 4, AulasPorGrau: 40, Categoria: graduacao.CategoriaAdulto},
	{Codigo: "MARROM", NomeExibicao: "Marrom", CorHex: "#663300", Ordem: 4, GrausMax: 4, AulasPorGrau: 40, Categoria: graduacao.CategoriaAdulto},
	{Codigo: "PRETA", NomeExibicao: "Preta", CorHex: "#000000", Ordem: 5, GrausMax: 6, AulasPorGrau: 0, Categoria: graduacao.CategoriaAdulto},
	{Codigo: "CORAL", NomeExibicao: "Coral", CorHex: "#FF4040", Ordem: 6, GrausMax: 1, AulasPorGrau: 0, Categoria: graduacao.CategoriaMestre},
	{Codigo: "VERMELHA", NomeExibicao: "Vermelha", CorHex: "#CC0000", Ordem: 7, GrausMax: 1, AulasPorGrau: 0, Categoria: graduacao.CategoriaMestre},
	{Codigo: "CINZA", NomeExibicao: "Cinza", CorHex: "#999999", Ordem: 1, GrausMax: 4, AulasPorGrau: 20, Categoria: graduacao.CategoriaInfantil},
	{Codigo: "AMARELA", NomeExibicao: "Amarela", CorHex: "#FFCC00", Ordem: 2, GrausMax: 4, AulasPorGrau: 20, Categoria: graduacao.CategoriaInfantil},
	{Codigo: "LARANJA", NomeExibicao: "Laranja", CorHex: "#FF6600", Ordem: 3, GrausMax: 4, AulasPorGrau: 20, Categoria: graduacao.CategoriaInfantil},
	{Codigo: "VERDE", NomeExibicao: "Verde", CorHex: "#009933", Ordem: 4, GrausMax: 4, AulasPorGrau: 20, Categoria: graduacao.CategoriaInfantil},
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	_ = godotenv.Load()

	ctx := context.Background()

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		log.Fatal().Msg("defina DB_DSN ou DATABASE_URL")
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível conectar ao banco")
	}
	defer pool.Close()

	for _, f := range faixas {
		tag, err := pool.Exec(ctx, `
			INSERT INTO teamcruz.faixa_defs (codigo, nome_exibicao, cor_hex, ordem, graus_max, aulas_por_grau, categoria, ativo)
			VALUES ($1, $2, $3, $4, $5, $6, $7, true)
			ON CONFLICT (codigo) DO UPDATE SET
				nome_exibicao = EXCLUDED.nome_exibicao,
				cor_hex = EXCLUDED.cor_hex,
				ordem = EXCLUDED.ordem,
				graus_max = EXCLUDED.graus_max,
				aulas_por_grau = EXCLUDED.aulas_por_grau,
				categoria = EXCLUDED.categoria,
				ativo = true
		`, f.Codigo, f.NomeExibicao, f.CorHex, f.Ordem, f.GrausMax, f.AulasPorGrau, f.Categoria)
		if err != nil {
			log.Fatal().Err(err).Str("faixa", f.Codigo).Msg("falha ao gravar faixa")
		}
		log.Info().Str("faixa", f.Codigo).Str("resultado", tag.String()).Msg("faixa aplicada")
	}

	log.Info().Int("total", len(faixas)).Msg("catálogo de faixas atualizado")
}
