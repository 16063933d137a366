package http

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

// AuthService is what the handlers need from the orchestrator.
type AuthService interface {
	Register(ctx context.Context, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
}

type AuthHandler struct {
	users    AuthService
	validate *validator.Validate
	logger   logging.Logger
}

func NewAuthHandler(users AuthService, l logging.Logger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		validate: newValidator(),
		logger:   l.With("module", "http_handler"),
	}
}

func (h *AuthHandler) bind(c *fiber.Ctx) (*CredentialsRequest, error) {
	var input CredentialsRequest
	if err := c.BodyParser(&input); err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(MessageResponse{Message: msgInvalidBody})
	}
	if err := h.validate.Struct(&input); err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(MessageResponse{Message: validationMessage(err)})
	}
	return &input, nil
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	input, err := h.bind(c)
	if input == nil {
		return err
	}

	token, err := h.users.Register(c.UserContext(), input.Email, input.Password)
	if err != nil {
		if errors.Is(err, common.ErrUserExists) {
			return c.Status(fiber.StatusBadRequest).JSON(MessageResponse{Message: msgUserExists})
		}
		h.logger.Error(c.UserContext(), "register failed", "error", err, "request_id", requestID(c))
		return c.Status(fiber.StatusInternalServerError).JSON(MessageResponse{Message: msgInternal})
	}

	return c.Status(fiber.StatusCreated).JSON(TokenResponse{Message: msgRegistered, Token: token})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	input, err := h.bind(c)
	if input == nil {
		return err
	}

	token, err := h.users.Login(c.UserContext(), input.Email, input.Password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) || errors.Is(err, common.ErrUserNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(MessageResponse{Message: msgInvalidCreds})
		}
		h.logger.Error(c.UserContext(), "login failed", "error", err, "request_id", requestID(c))
		return c.Status(fiber.StatusInternalServerError).JSON(MessageResponse{Message: msgInternal})
	}

	return c.Status(fiber.StatusCreated).JSON(TokenResponse{Message: msgLoggedIn, Token: token})
}

func (h *AuthHandler) Health(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(HealthResponse{Success: true, Message: msgServerRunning})
}
