package seed

import (
	"net/http"
	"time"
)

// CookieJar is the narrow cookie surface ingestion needs.
type CookieJar interface {
	Value(name string) (string, bool)
	Delete(name string)
}

// HTTPCookieJar reads from the request and expires cookies on the response.
type HTTPCookieJar struct {
	r       *http.Request
	w       http.ResponseWriter
	secure  bool
	deleted map[string]bool
}

func NewHTTPCookieJar(w http.ResponseWriter, r *http.Request) *HTTPCookieJar {
	return &HTTPCookieJar{r: r, w: w, secure: r.TLS != nil, deleted: map[string]bool{}}
}

func (j *HTTPCookieJar) Value(name string) (string, bool) {
	if j.deleted[name] {
		return "", false
	}
	c, err := j.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (j *HTTPCookieJar) Delete(name string) {
	j.deleted[name] = true
	http.SetCookie(j.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   j.secure,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	})
}
