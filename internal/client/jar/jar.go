// Package jar реализует http.CookieJar, переживающий перезапуск клиента.
// Сопоставление cookies с URL выполняет net/http/cookiejar, хранилище только дублирует записи.
package jar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/iudanet/leadsauth/internal/client/storage"
)

// Jar persistent cookie jar
type Jar struct {
	mu     sync.Mutex
	jar    *cookiejar.Jar
	store  storage.CookieStorage
	logger *slog.Logger
	now    func() time.Time
}

var _ http.CookieJar = (*Jar)(nil)

// New создает jar и загружает в него неистекшие cookies из хранилища
func New(ctx context.Context, store storage.CookieStorage, logger *slog.Logger) (*Jar, error) {
	j := &Jar{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	if err := j.load(ctx); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Jar) load(ctx context.Context) error {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("failed to create cookie jar: %w", err)
	}

	records, err := j.store.ListCookies(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cookies: %w", err)
	}

	now := j.now()
	for _, rec := range records {
		if rec.Expired(now) {
			if err := j.store.DeleteCookie(ctx, rec.Key()); err != nil {
				j.logger.WarnContext(ctx, "failed to drop expired cookie", slog.String("name", rec.Name), slog.Any("error", err))
			}
			continue
		}
		origin, err := url.Parse(rec.Origin)
		if err != nil {
			j.logger.WarnContext(ctx, "skipping cookie with invalid origin", slog.String("origin", rec.Origin))
			continue
		}
		inner.SetCookies(origin, []*http.Cookie{toCookie(rec)})
	}

	j.mu.Lock()
	j.jar = inner
	j.mu.Unlock()
	return nil
}

// SetCookies сохраняет cookies ответа в памяти и в хранилище.
// Ошибка хранилища не прерывает запрос: cookies остаются в памяти до конца процесса.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)

	ctx := context.Background()
	now := j.now()
	for _, c := range cookies {
		rec := toRecord(u, c, now)
		var err error
		if rec.Expired(now) {
			err = j.store.DeleteCookie(ctx, rec.Key())
		} else {
			err = j.store.SaveCookie(ctx, rec)
		}
		if err != nil {
			j.logger.Warn("failed to persist cookie", slog.String("name", c.Name), slog.Any("error", err))
		}
	}
}

// Cookies возвращает cookies для запроса к u
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Clear удаляет все cookies из памяти и хранилища
func (j *Jar) Clear(ctx context.Context) error {
	if err := j.store.ClearCookies(ctx); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}
	return j.load(ctx)
}

func toRecord(u *url.URL, c *http.Cookie, now time.Time) *storage.CookieRecord {
	rec := &storage.CookieRecord{
		Origin:   u.Scheme + "://" + u.Host,
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
		SameSite: int(c.SameSite),
	}
	if rec.Path == "" {
		rec.Path = defaultPath(u.Path)
	}

	// MaxAge приоритетнее Expires; в хранилище всегда абсолютное время
	switch {
	case c.MaxAge < 0:
		rec.Expires = now
	case c.MaxAge > 0:
		rec.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
	case !c.Expires.IsZero():
		rec.Expires = c.Expires
	}
	return rec
}

func toCookie(rec *storage.CookieRecord) *http.Cookie {
	return &http.Cookie{
		Name:     rec.Name,
		Value:    rec.Value,
		Domain:   rec.Domain,
		Path:     rec.Path,
		Expires:  rec.Expires,
		Secure:   rec.Secure,
		HttpOnly: rec.HttpOnly,
		SameSite: http.SameSite(rec.SameSite),
	}
}

// defaultPath путь по умолчанию из RFC 6265 5.1.4
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := len(p) - 1
	for i > 0 && p[i] != '/' {
		i--
	}
	if i == 0 {
		return "/"
	}
	return p[:i]
}
