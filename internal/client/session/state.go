// Package session хранит клиентское зеркало состояния авторизации.
// Единственный экземпляр State создается при старте клиента и передается по ссылке.
package session

import "sync"

// Snapshot копия состояния авторизации
type Snapshot struct {
	Authenticated bool
	IsAdmin       bool
	// Initialized выставляется стартовой проверкой who-am-I; до этого решения о маршрутах не принимаются
	Initialized bool
}

// State состояние авторизации клиента. Изменяется только через именованные переходы.
type State struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewState создает пустое, неинициализированное состояние
func NewState() *State {
	return &State{}
}

// Snapshot возвращает копию текущего состояния
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Initialize результат стартовой проверки who-am-I
func (s *State) Initialize(authenticated, isAdmin bool) {
	s.set(Snapshot{Authenticated: authenticated, IsAdmin: authenticated && isAdmin, Initialized: true})
}

// LoggedIn успешный вход, вход администратора или регистрация
func (s *State) LoggedIn(isAdmin bool) {
	s.set(Snapshot{Authenticated: true, IsAdmin: isAdmin, Initialized: s.Snapshot().Initialized})
}

// Confirmed успешный who-am-I или обновление сессии
func (s *State) Confirmed(isAdmin bool) {
	s.LoggedIn(isAdmin)
}

// LoggedOut выход пользователя
func (s *State) LoggedOut() {
	s.clear()
}

// RenewalFailed неудачное обновление сессии
func (s *State) RenewalFailed() {
	s.clear()
}

func (s *State) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Authenticated = false
	s.snap.IsAdmin = false
}

func (s *State) set(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}
