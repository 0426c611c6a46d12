package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const cookiePrefix = "cookie:"

type storedCookie struct {
	Value    string    `json:"value"`
	Expires  time.Time `json:"expires,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// Jar is an http.CookieJar for a single site whose cookies live in the
// Store, so they survive restarts the way browser cookies do.
type Jar struct {
	store *Store
	site  *url.URL
	now   func() time.Time
}

func NewJar(s *Store, site *url.URL) *Jar {
	return &Jar{store: s, site: site, now: time.Now}
}

// Cookie returns the live value of a site cookie.
func (j *Jar) Cookie(ctx context.Context, name string) (string, bool, error) {
	c, ok, err := j.load(ctx, name)
	if err != nil || !ok {
		return "", false, err
	}
	return c.Value, true, nil
}

// Write stores a cookie with browser semantics: a negative MaxAge or a
// past expiry deletes it.
func (j *Jar) Write(ctx context.Context, c *http.Cookie) error {
	now := j.now()
	sc := storedCookie{Value: c.Value, HttpOnly: c.HttpOnly}
	switch {
	case c.MaxAge < 0:
		return j.store.Delete(ctx, cookiePrefix+c.Name)
	case c.MaxAge > 0:
		sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
	case !c.Expires.IsZero():
		if !c.Expires.After(now) {
			return j.store.Delete(ctx, cookiePrefix+c.Name)
		}
		sc.Expires = c.Expires
	}
	raw, err := json.Marshal(sc)
	if err != nil {
		return err
	}
	return j.store.Set(ctx, cookiePrefix+c.Name, string(raw))
}

func (j *Jar) load(ctx context.Context, name string) (*storedCookie, bool, error) {
	raw, ok, err := j.store.Get(ctx, cookiePrefix+name)
	if err != nil || !ok {
		return nil, false, err
	}
	var sc storedCookie
	if err := json.Unmarshal([]byte(raw), &sc); err != nil {
		return nil, false, j.store.Delete(ctx, cookiePrefix+name)
	}
	if !sc.Expires.IsZero() && !sc.Expires.After(j.now()) {
		return nil, false, j.store.Delete(ctx, cookiePrefix+name)
	}
	return &sc, true, nil
}

// SetCookies implements http.CookieJar. Cookies for other hosts are ignored.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if !j.sameSite(u) {
		return
	}
	for _, c := range cookies {
		_ = j.Write(context.Background(), c)
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	if !j.sameSite(u) {
		return nil
	}
	ctx := context.Background()
	var out []*http.Cookie
	for _, name := range j.names(ctx) {
		c, ok, err := j.load(ctx, name)
		if err != nil || !ok {
			continue
		}
		out = append(out, &http.Cookie{Name: name, Value: c.Value})
	}
	return out
}

func (j *Jar) names(ctx context.Context) []string {
	keys, err := j.store.Keys(ctx, cookiePrefix)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, strings.TrimPrefix(k, cookiePrefix))
	}
	return names
}

func (j *Jar) sameSite(u *url.URL) bool {
	return u != nil && strings.EqualFold(u.Hostname(), j.site.Hostname())
}
