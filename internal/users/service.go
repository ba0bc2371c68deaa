package users

import (
	"context"

	"github.com/guillecro/leyesabiertas-core/internal/models"
)

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// UpsertFromClaims creates or updates a user using OIDC claims map
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error) {
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	if sub == "" {
		return nil, nil
	}
	u := &models.User{
		Sub:   sub,
		Email: email,
		Name:  name,
		Roles: RolesFromClaims(claims),
	}
	return s.repo.UpsertBySub(ctx, u)
}

func (s *Service) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	return s.repo.GetBySub(ctx, sub)
}

// RolesFromClaims extracts role names from either a flat "roles" claim or
// the Keycloak "realm_access.roles" shape.
func RolesFromClaims(claims map[string]interface{}) []string {
	var out []string
	appendRoles := func(v interface{}) {
		list, ok := v.([]interface{})
		if !ok {
			return
		}
		for _, r := range list {
			if s, ok := r.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	if v, ok := claims["roles"]; ok {
		appendRoles(v)
	}
	if ra, ok := claims["realm_access"].(map[string]interface{}); ok {
		appendRoles(ra["roles"])
	}
	return out
}
