// handlers/api/emails.go
package api

import (
	"errors"
	"strconv"

	"mailsift/classifier"
	"mailsift/config"
	"mailsift/models"
	"mailsift/storage"
	"mailsift/utils"

	"github.com/gofiber/fiber/v2"
)

// EmailHandler serves the categorized-inbox endpoint.
type EmailHandler struct {
	config *config.Config
	store  storage.CredentialStore
	model  classifier.Predictor
	dial   Dialer
}

// NewEmailHandler wires the handler to the real IMAP dialer.
func NewEmailHandler(cfg *config.Config, store storage.CredentialStore, model classifier.Predictor) *EmailHandler {
	return &EmailHandler{config: cfg, store: store, model: model, dial: NewClient}
}

// HandleUpdateEmails handles GET /update-emails?email=<address>. It fetches
// the most recent messages from the user's inbox, classifies each one and
// returns them grouped by category.
func (h *EmailHandler) HandleUpdateEmails(c *fiber.Ctx) error {
	email := c.Query("email")
	if email == "" {
		return utils.BadRequestError("Missing email query parameter", nil)
	}

	credential, err := h.store.Lookup(email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return utils.UnauthorizedError("No credentials registered for this email", err)
		}
		return utils.InternalServerError("Failed to load credentials", err)
	}

	result, err := h.categorizeMailbox(credential)
	if err != nil {
		if errors.Is(err, ErrAuthFailed) {
			return utils.UnauthorizedError("Mailbox rejected the stored credentials", err)
		}
		return utils.InternalServerError("Failed to fetch emails", err)
	}

	return c.JSON(result)
}

// categorizeMailbox runs one fetch-extract-classify pass over the trailing
// window of the user's inbox. The session is used serially and closed before
// returning.
func (h *EmailHandler) categorizeMailbox(credential *models.Credential) (models.CategorizedEmails, error) {
	mailbox, err := h.dial(h.config, credential.Email, credential.Secret)
	if err != nil {
		return nil, err
	}
	defer mailbox.Close()

	ids, err := mailbox.ListRecentIDs(h.config.IMAP.FetchWindow)
	if err != nil {
		return nil, err
	}

	log := utils.Log.WithField("email", credential.Email)
	result := make(models.CategorizedEmails)

	for _, id := range ids {
		msg, err := mailbox.FetchRaw(id)
		if err != nil {
			// One bad message must not abort the batch
			log.Warn("Skipping message %d: %v", id, err)
			continue
		}

		content := ExtractMessage(msg.Raw)
		category := h.model.Classify(content.Subject, utils.StripTags(content.Body))

		result[category] = append(result[category], models.Email{
			ID:       strconv.FormatUint(uint64(id), 10),
			Subject:  content.Subject,
			From:     content.From,
			Body:     content.Body,
			Category: category,
			GmailID:  msg.GmailID,
		})
	}

	return result, nil
}
