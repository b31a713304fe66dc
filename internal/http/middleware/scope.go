package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/teamcruz/academia/internal/service"
)

// Scope valida unidade ativa para rotas protegidas do backoffice.
// Papéis globais (MASTER/ADMIN) acessam qualquer unidade.
func Scope(rbac *service.RBACService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.ToLower(GetAudience(r.Context())) != "backoffice" {
				next.ServeHTTP(w, r)
				return
			}

			unidadeID := r.Header.Get("X-Unidade")
			if unidadeID == "" {
				unidadeID = r.URL.Query().Get("unidade_id")
			}
			if unidadeID == "" {
				next.ServeHTTP(w, r)
				return
			}

			uid, err := uuid.Parse(unidadeID)
			if err != nil {
				writeScopeError(w, http.StatusBadRequest, "VALIDATION", "Unidade inválida")
				return
			}

			subject := GetSubject(r.Context())
			subUUID, err := uuid.Parse(subject)
			if err != nil {
				writeScopeError(w, http.StatusUnauthorized, "AUTH", "subject inválido")
				return
			}

			if hasGlobalRole(GetRoles(r.Context())) {
				next.ServeHTTP(w, r.WithContext(SetUnidade(r.Context(), uid.String())))
				return
			}

			_, err = rbac.ValidateUnidadeAccess(r.Context(), subUUID, uid)
			if err != nil {
				status := http.StatusForbidden
				code := "FORBIDDEN"
				if err != service.ErrForbidden {
					status = http.StatusInternalServerError
					code = "INTERNAL"
				}
				writeScopeError(w, status, code, err.Error())
				return
			}

			ctx := SetUnidade(r.Context(), uid.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func hasGlobalRole(roles []string) bool {
	for _, role := range roles {
		switch strings.ToUpper(strings.TrimSpace(role)) {
		case "MASTER", "ADMIN":
			return true
		}
	}
	return false
}

func writeScopeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
