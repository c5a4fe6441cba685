// handlers/api/register.go
package api

import (
	"errors"

	"mailsift/storage"
	"mailsift/utils"

	"github.com/gofiber/fiber/v2"
)

// RegisterHandler serves credential registration.
type RegisterHandler struct {
	store storage.CredentialStore
}

func NewRegisterHandler(store storage.CredentialStore) *RegisterHandler {
	return &RegisterHandler{store: store}
}

type registerRequest struct {
	Email       string `json:"email"`
	AppPassword string `json:"appPassword"`
}

// HandleRegister handles POST /register with a JSON body of
// {email, appPassword}. Re-registering an existing email is rejected.
func (h *RegisterHandler) HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request body", err)
	}

	if req.Email == "" || req.AppPassword == "" {
		return utils.BadRequestError("Both email and appPassword are required", nil)
	}

	if _, err := h.store.Insert(req.Email, req.AppPassword); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return utils.ConflictError("Email is already registered", err)
		}
		return utils.InternalServerError("Failed to store credentials", err)
	}

	utils.Log.Info("Registered credentials for %s", req.Email)
	return c.JSON(fiber.Map{"message": "Registration successful"})
}
