package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/boutique/storefront/internal/backend"
	"github.com/boutique/storefront/internal/cart"
	"github.com/boutique/storefront/internal/logging"
	"github.com/boutique/storefront/internal/session"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	headerRefreshToken = "X-Refresh-Token"
	headerAccessToken  = "X-Access-Token"
	headerCartNotice   = "X-Cart-Notice"
	cookieMaxAge       = 60 * 60 * 48

	noticeMergeFailed  = "merge_failed"
	warningMergeFailed = "your saved cart items could not be added to your account cart"
)

type (
	ctxKeySession struct{}
	ctxKeyNotice  struct{}
)

// RequestIDMiddleware echoes the request id chi assigned back to the caller.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestID := middleware.GetReqID(r.Context()); requestID != "" {
			w.Header().Set(middleware.RequestIDHeader, requestID)
		}
		next.ServeHTTP(w, r)
	})
}

type SessionOptions struct {
	CookieName string
	Secure     bool
}

// SessionMiddleware resolves the shopper's session from its cookie, issuing a
// new id when the cookie is missing or not one of ours.
func SessionMiddleware(registry *session.Registry, opts SessionOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sessionID string
			if c, err := r.Cookie(opts.CookieName); err == nil {
				if _, errParse := uuid.Parse(c.Value); errParse == nil {
					sessionID = c.Value
				}
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     opts.CookieName,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   cookieMaxAge,
					HttpOnly: true,
					Secure:   opts.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			sess := registry.Get(sessionID)
			log := logging.FromContext(r.Context(), logrus.StandardLogger()).WithField("session", sessionID)
			ctx := context.WithValue(r.Context(), ctxKeySession{}, sess)
			ctx = logging.WithLogger(ctx, log)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(ctxKeySession{}).(*session.Session)
	return sess
}

// CredentialsMiddleware forwards the caller's bearer token to the backend. A
// token refreshed while serving the request is sent back in X-Access-Token.
func CredentialsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		access := bearerToken(r.Header.Get("Authorization"))
		if access == "" {
			next.ServeHTTP(w, r)
			return
		}
		creds := backend.NewCredentials(access, r.Header.Get(headerRefreshToken))
		ctx := backend.WithCredentials(r.Context(), creds)
		next.ServeHTTP(&tokenWriter{ResponseWriter: w, creds: creds}, r.WithContext(ctx))
	})
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

type tokenWriter struct {
	http.ResponseWriter
	creds       *backend.Credentials
	wroteHeader bool
}

func (w *tokenWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		if token, ok := w.creds.Refreshed(); ok {
			w.Header().Set(headerAccessToken, token)
		}
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *tokenWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(p)
}

func (w *tokenWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// CartSyncMiddleware keeps the session cart in the mode matching the caller:
// a bearer token switches it to the server cart, merging the anonymous lines
// once. A failed sync is logged and the request goes on. A failed merge is
// also reported to the shopper through X-Cart-Notice and the warning field
// of cart and checkout responses.
func CartSyncMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := sessionFrom(r.Context())
			if sess == nil {
				next.ServeHTTP(w, r)
				return
			}

			syncCtx, cancel := context.WithTimeout(r.Context(), timeout)
			err := sess.Cart.Sync(syncCtx, backend.Authenticated(r.Context()))
			cancel()
			if err != nil {
				log := logging.FromContext(r.Context(), logrus.StandardLogger()).WithError(err)
				var mergeErr *cart.MergeError
				if errors.As(err, &mergeErr) {
					log.WithField("lines", mergeErr.Lines).Warn("anonymous cart was not merged")
					w.Header().Set(headerCartNotice, noticeMergeFailed)
					r = r.WithContext(context.WithValue(r.Context(), ctxKeyNotice{}, warningMergeFailed))
				} else {
					log.Warn("cart sync failed")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// cartNotice is the warning left for the shopper by CartSyncMiddleware, if any.
func cartNotice(ctx context.Context) string {
	notice, _ := ctx.Value(ctxKeyNotice{}).(string)
	return notice
}
