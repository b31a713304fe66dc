package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/teamcruz/academia/internal/repo"
)

var (
	// ErrForbidden indica ausência de permissão.
	ErrForbidden = errors.New("acesso negado")
)

// RBACService opera regras de escopo e papéis por unidade.
type RBACService struct {
	repo *repo.Queries
}

// NewRBACService cria nova instância.
func NewRBACService(r *repo.Queries) *RBACService {
	return &RBACService{repo: r}
}

// ValidateUnidadeAccess garante que usuário possua vínculo com a unidade solicitada.
func (s *RBACService) ValidateUnidadeAccess(ctx context.Context, usuarioID uuid.UUID, unidadeID uuid.UUID) (repo.UnidadeComPapel, error) {
	unidades, err := s.repo.ListUnidadesByUsuario(ctx, usuarioID)
	if err != nil {
		return repo.UnidadeComPapel{}, err
	}
	for _, u := range unidades {
		if u.UnidadeID == unidadeID {
			return u, nil
		}
	}
	return repo.UnidadeComPapel{}, ErrForbidden
}
