package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// Capability is what a request asks the gate for.
type Capability int

const (
	CapRead Capability = iota
	CapWrite
)

// RoleAdmin grants CapWrite.
const RoleAdmin = "admin"

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed token")
	errTokenInvalid  = echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// Principal is the authorized caller. Handlers do not interpret it.
type Principal struct {
	Subject string
	Roles   []string
}

// Gate decides whether a request may use a capability. A denial is an
// error, usually an *echo.HTTPError carrying 401 or 403.
type Gate interface {
	Authorize(ctx echo.Context, c Capability) (Principal, error)
}

// GateFunc adapts a function to Gate.
type GateFunc func(ctx echo.Context, c Capability) (Principal, error)

// Authorize calls f.
func (f GateFunc) Authorize(ctx echo.Context, c Capability) (Principal, error) {
	return f(ctx, c)
}

// Claims are the JWT claims the gate reads.
type Claims struct {
	jwt.StandardClaims
	Roles []string `json:"roles,omitempty"`
}

func (c *Claims) hasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// JWTGate accepts HS256 bearer tokens signed with its secret. Any valid
// token may read; writing needs the admin role.
type JWTGate struct {
	secret []byte
}

// NewJWTGate returns a gate checking tokens against secret. With an empty
// secret every request is refused.
func NewJWTGate(secret string) *JWTGate {
	return &JWTGate{secret: []byte(secret)}
}

func (g *JWTGate) Authorize(ctx echo.Context, c Capability) (Principal, error) {
	header := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if len(g.secret) == 0 || !strings.HasPrefix(header, "Bearer ") {
		return Principal{}, errUnauthorized
	}

	claims := new(Claims)
	_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil {
		return Principal{}, errTokenInvalid
	}
	if c == CapWrite && !claims.hasRole(RoleAdmin) {
		return Principal{}, errHttpForbidden
	}
	return Principal{Subject: claims.Subject, Roles: claims.Roles}, nil
}

// GenerateToken signs claims for subject with secret, valid for ttl.
func GenerateToken(secret, subject string, ttl time.Duration, roles ...string) (string, error) {
	now := time.Now()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   subject,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
		Roles: roles,
	}
	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	return ss, errors.Wrap(err, "signing token")
}

const contextPrincipalKey = "principal"

func gateMiddleware(gate Gate, c Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, err := gate.Authorize(ctx, c)
			if err != nil {
				return err
			}
			ctx.Set(contextPrincipalKey, p)
			return next(ctx)
		}
	}
}
