package auth

import (
	"context"

	"github.com/iudanet/leadsauth/pkg/api"
)

// Transport операции API, используемые сервисом авторизации
type Transport interface {
	Register(ctx context.Context, email, password string) (*api.UserInfo, error)
	Login(ctx context.Context, email, password string) (*api.UserInfo, error)
	AdminLogin(ctx context.Context, email, password string) (*api.UserInfo, error)
	Me(ctx context.Context) (*api.UserInfo, error)
	Logout(ctx context.Context) error
}

// CookieClearer удаляет локальные cookies сессии
type CookieClearer interface {
	Clear(ctx context.Context) error
}
