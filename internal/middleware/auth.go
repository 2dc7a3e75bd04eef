package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/opendrive/server/internal/config"
	"github.com/opendrive/server/pkg/logger"
	"github.com/opendrive/server/pkg/utils"
)

const sessionKey = "session"

// Session is the browser state for one request: who is logged in and which
// folder they are looking at.
type Session struct {
	Username     string
	ResolvedPath string
	WebPath      string
}

type SessionMiddleware struct {
	Cookie config.SessionConfig
}

func NewSessionMiddleware(cfg config.SessionConfig) *SessionMiddleware {
	return &SessionMiddleware{Cookie: cfg}
}

// Load decodes the session cookie, if any, into the request locals. A bad or
// expired cookie is dropped and the request continues anonymously.
func (m *SessionMiddleware) Load(c *fiber.Ctx) error {
	raw := strings.TrimSpace(c.Cookies(m.Cookie.CookieName))
	if raw == "" {
		return c.Next()
	}

	claims, err := utils.ValidateSessionToken(raw)
	if err != nil {
		logger.Warn("session_invalid", map[string]interface{}{
			"ip":    c.IP(),
			"path":  c.Path(),
			"error": err.Error(),
		})
		m.Clear(c)
		return c.Next()
	}

	setSession(c, &Session{
		Username:     claims.Username,
		ResolvedPath: claims.ResolvedPath,
		WebPath:      claims.WebPath,
	})
	return c.Next()
}

// RequireUser sends anonymous requests to the login page.
func RequireUser(c *fiber.Ctx) error {
	if GetSession(c) == nil {
		return utils.Redirect(c, "/login")
	}
	return c.Next()
}

// Save signs session into the cookie and makes it visible to the rest of the
// request.
func (m *SessionMiddleware) Save(c *fiber.Ctx, session *Session) error {
	token, err := utils.GenerateSessionToken(session.Username, session.ResolvedPath, session.WebPath)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     m.Cookie.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(utils.SessionLifetime()),
		HTTPOnly: true,
		Secure:   m.Cookie.SecureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	setSession(c, session)
	return nil
}

func (m *SessionMiddleware) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     m.Cookie.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   m.Cookie.SecureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	c.Locals(sessionKey, nil)
	c.Locals(logger.UsernameKey, nil)
}

func GetSession(c *fiber.Ctx) *Session {
	value := c.Locals(sessionKey)
	if value == nil {
		return nil
	}
	session, ok := value.(*Session)
	if !ok || session.Username == "" {
		return nil
	}
	return session
}

func setSession(c *fiber.Ctx, session *Session) {
	c.Locals(sessionKey, session)
	c.Locals(logger.UsernameKey, session.Username)
}
