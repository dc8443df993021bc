package identity

import (
	"net/http"
	"strings"
	"time"

	"storefront/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	AccessTokenCookie = "access_token"
	GuestCookie       = "guest_session"
	GuestHeader       = "X-Guest-Session"
)

type Resolver struct {
	secret        []byte
	guestTTL      time.Duration
	secureCookies bool
}

func NewResolver(secret string, guestTTL time.Duration, secureCookies bool) *Resolver {
	return &Resolver{
		secret:        []byte(secret),
		guestTTL:      guestTTL,
		secureCookies: secureCookies,
	}
}

// Middleware attaches the owner key to every request. A valid access token
// yields an account owner; otherwise the guest session token is used, and one
// is issued when the visitor has none.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		guestToken := guestTokenFromRequest(r)

		var owner OwnerKey
		if claims, ok := res.parseAccessToken(ExtractAccessToken(r)); ok {
			owner = AccountOwner(claims.userID)
			ctx = WithAccount(ctx, claims.email, claims.role)
		}

		if !owner.Valid() {
			if guestToken == "" {
				guestToken = uuid.NewString()
				res.SetGuestCookie(w, guestToken)
				logger.FromCtx(ctx).Debug("issued guest session")
			}
			owner = SessionOwner(guestToken)
		}

		ctx = WithOwner(ctx, owner)
		ctx = WithGuestToken(ctx, guestToken)
		ctx = logger.WithOwner(ctx, owner.String())

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetGuestCookie stores a long-lived guest session token on the client.
func (res *Resolver) SetGuestCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     GuestCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(res.guestTTL),
		MaxAge:   int(res.guestTTL.Seconds()),
		HttpOnly: true,
		Secure:   res.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// RotateGuestToken replaces the visitor's guest token after a session upgrade,
// so the merged anonymous cart cannot be merged a second time.
func (res *Resolver) RotateGuestToken(w http.ResponseWriter) string {
	token := uuid.NewString()
	res.SetGuestCookie(w, token)
	return token
}

type accessClaims struct {
	userID uint
	email  string
	role   string
}

func (res *Resolver) parseAccessToken(tokenStr string) (accessClaims, bool) {
	if tokenStr == "" || len(res.secret) == 0 {
		return accessClaims{}, false
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return res.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		logger.L().Debug("rejected access token", zap.Error(err))
		return accessClaims{}, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return accessClaims{}, false
	}

	uid, ok := claims["user_id"].(float64)
	if !ok || uid <= 0 {
		return accessClaims{}, false
	}

	out := accessClaims{userID: uint(uid)}
	out.email, _ = claims["email"].(string)
	out.role, _ = claims["role"].(string)
	return out, true
}

func ExtractAccessToken(r *http.Request) string {
	// Cookie (preferred)
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	// Authorization header (fallback)
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}

func guestTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(GuestCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return strings.TrimSpace(r.Header.Get(GuestHeader))
}
