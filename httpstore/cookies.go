package httpstore

import (
	"net/http"
	"time"

	"github.com/authemhq/authem"
)

// ClientCookies implements [authem.ClientStore] over an HTTP exchange.
// Reads come from the inbound request's cookies; writes go to the response.
// Values are signed, so Get only returns payloads whose signature verified.
type ClientCookies struct {
	r      *http.Request
	w      http.ResponseWriter
	signer *signer

	// overlay makes same-request writes observable to later reads, the way
	// a browser would present them on the next request.
	overlay map[string]string
	deleted map[string]bool
}

// NewClientCookies binds a client cookie store to one HTTP exchange.
func NewClientCookies(w http.ResponseWriter, r *http.Request, secret []byte) (*ClientCookies, error) {
	s, err := newSigner(secret)
	if err != nil {
		return nil, err
	}
	return &ClientCookies{
		r:       r,
		w:       w,
		signer:  s,
		overlay: make(map[string]string),
		deleted: make(map[string]bool),
	}, nil
}

func (c *ClientCookies) Get(key string) (string, bool) {
	if c.deleted[key] {
		return "", false
	}
	if v, ok := c.overlay[key]; ok {
		return v, true
	}

	cookie, err := c.r.Cookie(key)
	if err != nil {
		return "", false
	}
	return c.signer.open(cookie.Value)
}

func (c *ClientCookies) Set(key string, payload authem.ClientCookie) {
	sealed, err := c.signer.seal(payload.Value, payload.Expires)
	if err != nil {
		return
	}

	http.SetCookie(c.w, &http.Cookie{
		Name:     key,
		Value:    sealed,
		Path:     "/",
		Domain:   payload.Domain,
		Expires:  payload.Expires,
		HttpOnly: payload.HTTPOnly,
		SameSite: http.SameSiteLaxMode,
	})

	delete(c.deleted, key)
	c.overlay[key] = payload.Value
}

func (c *ClientCookies) Delete(key string) {
	http.SetCookie(c.w, &http.Cookie{
		Name:     key,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	})

	delete(c.overlay, key)
	c.deleted[key] = true
}
