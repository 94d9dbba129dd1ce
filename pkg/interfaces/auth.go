package interfaces

import (
	"context"
)

// Principal описывает аутентифицированного пользователя
type Principal struct {
	UserID   string
	Username string
	Email    string
	Roles    []string
}

// HasAnyRole проверяет наличие хотя бы одной роли из списка
func (p *Principal) HasAnyRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range p.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// AuthPort определяет интерфейс для работы с аутентификацией
type AuthPort interface {
	// Authenticate проверяет bearer-токен и возвращает пользователя
	Authenticate(ctx context.Context, token string) (*Principal, error)
}
