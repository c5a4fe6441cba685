package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"mailsift/config"
	"mailsift/models"
	"mailsift/storage"
	"mailsift/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailbox struct {
	messages map[uint32][]byte
	failIDs  map[uint32]bool
	closed   int
}

func (m *fakeMailbox) ListRecentIDs(window uint32) ([]uint32, error) {
	var ids []uint32
	for id := range m.messages {
		ids = append(ids, id)
	}
	for id := range m.failIDs {
		ids = append(ids, id)
	}
	if window > 0 && uint32(len(ids)) > window {
		ids = ids[uint32(len(ids))-window:]
	}
	return ids, nil
}

func (m *fakeMailbox) FetchRaw(id uint32) (*RawMessage, error) {
	if m.failIDs[id] {
		return nil, &FetchError{ID: id, Err: fmt.Errorf("connection reset")}
	}
	raw, ok := m.messages[id]
	if !ok {
		return nil, &FetchError{ID: id, Err: fmt.Errorf("no such message")}
	}
	return &RawMessage{ID: id, UID: id, Raw: raw, GmailID: fmt.Sprintf("gm-%d", id)}, nil
}

func (m *fakeMailbox) Close() error {
	m.closed++
	return nil
}

type fakePredictor struct {
	category string
}

func (p *fakePredictor) Classify(subject, body string) string {
	return p.category
}

type fakeStore struct {
	credentials map[string]*models.Credential
	insertErr   error
}

func (s *fakeStore) Lookup(email string) (*models.Credential, error) {
	cred, ok := s.credentials[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cred, nil
}

func (s *fakeStore) Insert(email, secret string) (*models.Credential, error) {
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	cred := &models.Credential{ID: "new", Email: email, Secret: secret}
	if s.credentials == nil {
		s.credentials = make(map[string]*models.Credential)
	}
	s.credentials[email] = cred
	return cred, nil
}

// newTestApp builds a fiber app with the same error mapping the server uses.
func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if appErr, ok := err.(*utils.AppError); ok {
				code = appErr.Code
			} else if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			if code >= fiber.StatusInternalServerError {
				return c.Status(code).JSON(fiber.Map{"error": "Internal server error"})
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.IMAP.FetchWindow = 100
	return cfg
}

func testMessage(subject, body string) []byte {
	return crlf(
		"From: sender@example.com",
		"Subject: "+subject,
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	)
}

func newEmailApp(handler *EmailHandler) *fiber.App {
	app := newTestApp()
	app.Get("/update-emails", handler.HandleUpdateEmails)
	return app
}

func TestHandleUpdateEmails(t *testing.T) {
	mailbox := &fakeMailbox{
		messages: map[uint32][]byte{
			1: testMessage("Invoice due", "pay up"),
			2: testMessage("Party time", "this weekend"),
			3: testMessage("Newsletter", "weekly digest"),
		},
	}

	handler := &EmailHandler{
		config: testConfig(),
		store: &fakeStore{credentials: map[string]*models.Credential{
			"user@example.com": {Email: "user@example.com", Secret: "app-pass"},
		}},
		model: &fakePredictor{category: "updates"},
		dial: func(cfg *config.Config, email, password string) (Mailbox, error) {
			return mailbox, nil
		},
	}

	app := newEmailApp(handler)
	resp, err := app.Test(httptest.NewRequest("GET", "/update-emails?email=user@example.com", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result models.CategorizedEmails
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &result))

	require.Contains(t, result, "updates")
	assert.Len(t, result["updates"], 3)
	assert.Equal(t, 1, mailbox.closed)

	for _, email := range result["updates"] {
		assert.Equal(t, "updates", email.Category)
		assert.Equal(t, "sender@example.com", email.From)
		assert.True(t, strings.HasPrefix(email.GmailID, "gm-"))
	}
}

func TestHandleUpdateEmailsMissingParam(t *testing.T) {
	handler := &EmailHandler{config: testConfig(), store: &fakeStore{}}

	app := newEmailApp(handler)
	resp, err := app.Test(httptest.NewRequest("GET", "/update-emails", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleUpdateEmailsUnknownEmail(t *testing.T) {
	handler := &EmailHandler{config: testConfig(), store: &fakeStore{}}

	app := newEmailApp(handler)
	resp, err := app.Test(httptest.NewRequest("GET", "/update-emails?email=nobody@example.com", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHandleUpdateEmailsAuthFailure(t *testing.T) {
	handler := &EmailHandler{
		config: testConfig(),
		store: &fakeStore{credentials: map[string]*models.Credential{
			"user@example.com": {Email: "user@example.com", Secret: "revoked"},
		}},
		model: &fakePredictor{category: "updates"},
		dial: func(cfg *config.Config, email, password string) (Mailbox, error) {
			return nil, fmt.Errorf("%w: LOGIN rejected", ErrAuthFailed)
		},
	}

	app := newEmailApp(handler)
	resp, err := app.Test(httptest.NewRequest("GET", "/update-emails?email=user@example.com", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHandleUpdateEmailsSkipsFailedFetches(t *testing.T) {
	mailbox := &fakeMailbox{
		messages: map[uint32][]byte{
			1: testMessage("First", "ok"),
			2: testMessage("Second", "ok"),
		},
		failIDs: map[uint32]bool{3: true},
	}

	handler := &EmailHandler{
		config: testConfig(),
		store: &fakeStore{credentials: map[string]*models.Credential{
			"user@example.com": {Email: "user@example.com", Secret: "app-pass"},
		}},
		model: &fakePredictor{category: "inbox"},
		dial: func(cfg *config.Config, email, password string) (Mailbox, error) {
			return mailbox, nil
		},
	}

	app := newEmailApp(handler)
	resp, err := app.Test(httptest.NewRequest("GET", "/update-emails?email=user@example.com", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result models.CategorizedEmails
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &result))

	assert.Len(t, result["inbox"], 2)
	assert.Equal(t, 1, mailbox.closed)
}

func TestHandleUpdateEmailsInternalErrorHidesDetails(t *testing.T) {
	handler := &EmailHandler{
		config: testConfig(),
		store: &fakeStore{credentials: map[string]*models.Credential{
			"user@example.com": {Email: "user@example.com", Secret: "app-pass"},
		}},
		model: &fakePredictor{category: "inbox"},
		dial: func(cfg *config.Config, email, password string) (Mailbox, error) {
			return nil, fmt.Errorf("dial tcp 10.0.0.1:993: i/o timeout")
		},
	}

	app := newEmailApp(handler)
	resp, err := app.Test(httptest.NewRequest("GET", "/update-emails?email=user@example.com", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Internal server error")
	assert.NotContains(t, string(body), "10.0.0.1")
}
