package handlers

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gofiber/fiber/v2"
	"github.com/opendrive/server/internal/middleware"
	"github.com/opendrive/server/internal/services"
	"github.com/opendrive/server/pkg/logger"
	"github.com/opendrive/server/pkg/utils"
)

const (
	msgLoginFailed   = "Username and password given does not match any user."
	msgUsernameTaken = "This username is already taken!"
	msgPasswordsDiff = "Passwords do not match."
)

// Usernames end up in URLs and as root folder names.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

type AuthHandler struct {
	Users    *services.UserService
	Access   *services.AccessService
	Sessions *middleware.SessionMiddleware
}

func NewAuthHandler(users *services.UserService, access *services.AccessService, sessions *middleware.SessionMiddleware) *AuthHandler {
	return &AuthHandler{Users: users, Access: access, Sessions: sessions}
}

type loginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

func (f *loginForm) Validate() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.Username, validation.Required),
		validation.Field(&f.Password, validation.Required),
	)
}

type signupForm struct {
	Username        string `form:"username"`
	Email           string `form:"email"`
	Password        string `form:"password"`
	ConfirmPassword string `form:"confirm_password"`
}

func (f *signupForm) Validate() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.Username, validation.Required, validation.Length(1, 64), validation.Match(usernamePattern)),
		validation.Field(&f.Email, validation.Required, validation.Length(1, 255), is.EmailFormat),
		// bcrypt ignores everything past 72 bytes.
		validation.Field(&f.Password, validation.Required, validation.Length(1, 72)),
		validation.Field(&f.ConfirmPassword, validation.Required),
	)
}

func (h *AuthHandler) Index(c *fiber.Ctx) error {
	session := middleware.GetSession(c)
	if session == nil {
		return utils.Redirect(c, "/login")
	}
	return utils.Redirect(c, rootPath(session.Username))
}

func (h *AuthHandler) LoginPage(c *fiber.Ctx) error {
	h.Sessions.Clear(c)
	return render(c, fiber.StatusOK, "login", fiber.Map{"Title": "Log in"})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	h.Sessions.Clear(c)

	var form loginForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid form")
	}
	form.Username = strings.TrimSpace(form.Username)

	formData := fiber.Map{"Username": form.Username}
	if err := form.Validate(); err != nil {
		return render(c, fiber.StatusBadRequest, "login", fiber.Map{"Title": "Log in", "Error": msgLoginFailed, "Form": formData})
	}

	user, err := h.Users.Authenticate(c.UserContext(), form.Username, form.Password)
	if errors.Is(err, services.ErrUserNotFound) {
		logger.Warn("login_failed", map[string]interface{}{
			"username": form.Username,
			"ip":       c.IP(),
		})
		return render(c, fiber.StatusUnauthorized, "login", fiber.Map{"Title": "Log in", "Error": msgLoginFailed, "Form": formData})
	}
	if err != nil {
		return err
	}

	root, err := h.Access.EnsureRoot(c.UserContext(), user.Name)
	if err != nil {
		return err
	}

	webPath := h.Access.WebPath(user.Name, root)
	if err := h.Sessions.Save(c, &middleware.Session{
		Username:     user.Name,
		ResolvedPath: root.Path,
		WebPath:      webPath,
	}); err != nil {
		return err
	}

	logger.InfoWithUser(user.Name, "login_success", map[string]interface{}{
		"ip": c.IP(),
	})
	return utils.Redirect(c, webPath)
}

func (h *AuthHandler) SignupPage(c *fiber.Ctx) error {
	h.Sessions.Clear(c)
	return render(c, fiber.StatusOK, "signup", fiber.Map{"Title": "Sign up"})
}

func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	h.Sessions.Clear(c)

	var form signupForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid form")
	}
	form.Username = strings.TrimSpace(form.Username)
	form.Email = strings.TrimSpace(form.Email)

	formData := fiber.Map{"Username": form.Username, "Email": form.Email}
	signupError := func(status int, message string) error {
		return render(c, status, "signup", fiber.Map{"Title": "Sign up", "Error": message, "Form": formData})
	}

	if err := form.Validate(); err != nil {
		return signupError(fiber.StatusBadRequest, err.Error())
	}

	ctx := c.UserContext()
	_, err := h.Users.GetUser(ctx, form.Username, form.Email)
	if err == nil {
		return signupError(fiber.StatusConflict, msgUsernameTaken)
	}
	if !errors.Is(err, services.ErrUserNotFound) {
		return err
	}

	if form.Password != form.ConfirmPassword {
		return signupError(fiber.StatusBadRequest, msgPasswordsDiff)
	}

	hash, err := utils.HashPassword(form.Password)
	if err != nil {
		return err
	}

	user, err := h.Users.AddUser(ctx, form.Username, form.Email, hash)
	if errors.Is(err, services.ErrUsernameTaken) {
		return signupError(fiber.StatusConflict, msgUsernameTaken)
	}
	if err != nil {
		return err
	}

	if _, err := h.Access.Folders.AddFolder(ctx, user.Name, user.Name, h.Access.DriveRoot); err != nil {
		if deleteErr := h.Users.DeleteUser(ctx, user.Name); deleteErr != nil {
			logger.ErrorWithUser(user.Name, "signup_rollback_failed", deleteErr, nil)
		}
		return err
	}

	logger.InfoWithUser(user.Name, "user_signup", map[string]interface{}{
		"email": user.Email,
		"ip":    c.IP(),
	})
	return utils.Redirect(c, "/")
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if session := middleware.GetSession(c); session != nil {
		logger.InfoWithUser(session.Username, "logout", nil)
	}
	h.Sessions.Clear(c)
	return utils.Redirect(c, "/login")
}
