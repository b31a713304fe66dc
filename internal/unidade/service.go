package unidade

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Service contém as regras de negócio para cadastro e resolução de unidades.
type Service struct {
	repo     *Repository
	cache    sync.Map
	cacheTTL time.Duration
}

type cachedUnidade struct {
	unidade  Unidade
	expireAt time.Time
}

// NewService cria uma nova instância de Service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo, cacheTTL: 2 * time.Minute}
}

// Get busca unidade por id com cache em memória.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Unidade, error) {
	if v, ok := s.cache.Load(id); ok {
		entry := v.(cachedUnidade)
		if time.Now().Before(entry.expireAt) {
			copia := entry.unidade
			return &copia, nil
		}
		s.cache.Delete(id)
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Store(id, cachedUnidade{unidade: *u, expireAt: time.Now().Add(s.cacheTTL)})

	copia := *u
	return &copia, nil
}

// GetBySlug busca unidade pelo slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Unidade, error) {
	return s.repo.GetBySlug(ctx, slug)
}

// List devolve as unidades cadastradas.
func (s *Service) List(ctx context.Context, somenteAtivas bool) ([]Unidade, error) {
	return s.repo.List(ctx, somenteAtivas)
}

// Create registra uma nova unidade.
func (s *Service) Create(ctx context.Context, input CreateUnidadeInput) (*Unidade, error) {
	input.Nome = strings.TrimSpace(input.Nome)
	if input.Nome == "" {
		return nil, errors.New("nome obrigatório")
	}
	input.Slug = normalizeSlug(input.Slug)
	if input.Slug == "" {
		return nil, errors.New("slug obrigatório")
	}
	if input.Config == nil {
		input.Config = map[string]any{}
	}

	u, err := s.repo.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	s.cache.Store(u.ID, cachedUnidade{unidade: *u, expireAt: time.Now().Add(s.cacheTTL)})
	return u, nil
}

// UpdateConfig substitui o JSON de configuração da unidade.
func (s *Service) UpdateConfig(ctx context.Context, unidadeID uuid.UUID, config map[string]any) error {
	if config == nil {
		config = map[string]any{}
	}

	if err := s.repo.UpdateConfig(ctx, unidadeID, config); err != nil {
		return err
	}

	s.cache.Delete(unidadeID)
	return nil
}

func normalizeSlug(slug string) string {
	slug = strings.TrimSpace(strings.ToLower(slug))
	slug = strings.ReplaceAll(slug, " ", "-")
	return slug
}
