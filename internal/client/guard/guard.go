// Package guard решает, можно ли открыть маршрут при текущем состоянии сессии.
package guard

import (
	"errors"
	"strings"

	"github.com/iudanet/leadsauth/internal/client/session"
)

// ErrNotInitialized решение запрошено до стартовой проверки who-am-I
var ErrNotInitialized = errors.New("session state is not initialized")

// Kind класс маршрута
type Kind int

const (
	KindUnknown Kind = iota
	KindPublic
	KindUser
	KindAdmin
	KindGuest
	KindAdminGuest
)

func (k Kind) String() string {
	switch k {
	case KindPublic:
		return "public"
	case KindUser:
		return "user"
	case KindAdmin:
		return "admin"
	case KindGuest:
		return "guest"
	case KindAdminGuest:
		return "admin-guest"
	default:
		return "unknown"
	}
}

// Целевые маршруты перенаправлений
const (
	PathLogin          = "/login"
	PathAdminLogin     = "/admin/login"
	PathContacts       = "/contacts"
	PathAdminDashboard = "/admin/dashboard"
)

// Decision результат проверки маршрута. При Allow == false RedirectTo не пуст.
type Decision struct {
	Kind       Kind
	Allow      bool
	RedirectTo string
}

// StateSource источник состояния сессии
type StateSource interface {
	Snapshot() session.Snapshot
}

var exact = map[string]Kind{
	"/":                KindPublic,
	"/contact":         KindPublic,
	"/contacts":        KindUser,
	"/admin/dashboard": KindAdmin,
	"/admin/leads":     KindAdmin,
	"/admin/users":     KindAdmin,
	"/login":           KindGuest,
	"/register":        KindGuest,
	"/admin/login":     KindAdminGuest,
}

// маршруты с одним параметром: префикс и класс
var parameterized = []struct {
	prefix string
	kind   Kind
}{
	{prefix: "/contacts/", kind: KindUser},
	{prefix: "/admin/users/", kind: KindAdmin},
}

// Classify определяет класс маршрута. Query и fragment игнорируются.
func Classify(path string) Kind {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	if kind, ok := exact[path]; ok {
		return kind
	}
	for _, p := range parameterized {
		rest, ok := strings.CutPrefix(path, p.prefix)
		if ok && rest != "" && !strings.Contains(rest, "/") {
			return p.kind
		}
	}
	return KindUnknown
}

// Admit проверяет доступ к маршруту по текущему состоянию
func Admit(state StateSource, path string) (Decision, error) {
	return Decide(state.Snapshot(), path)
}

// Decide чистая функция решения по снимку состояния
func Decide(snap session.Snapshot, path string) (Decision, error) {
	if !snap.Initialized {
		return Decision{}, ErrNotInitialized
	}

	kind := Classify(path)
	allow := Decision{Kind: kind, Allow: true}
	redirect := func(to string) (Decision, error) {
		return Decision{Kind: kind, RedirectTo: to}, nil
	}

	switch kind {
	case KindUser:
		if !snap.Authenticated {
			return redirect(PathLogin)
		}
		if snap.IsAdmin {
			return redirect(PathAdminDashboard)
		}
	case KindAdmin:
		if !snap.Authenticated || !snap.IsAdmin {
			return redirect(PathAdminLogin)
		}
	case KindGuest:
		if snap.Authenticated {
			return redirect(homeFor(snap.IsAdmin))
		}
	case KindAdminGuest:
		if snap.Authenticated && snap.IsAdmin {
			return redirect(PathAdminDashboard)
		}
	}
	return allow, nil
}

func homeFor(isAdmin bool) string {
	if isAdmin {
		return PathAdminDashboard
	}
	return PathContacts
}
