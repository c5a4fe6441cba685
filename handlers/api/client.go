// handlers/api/client.go
package api

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sort"

	"mailsift/config"
	"mailsift/utils"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/charset"
)

func init() {
	// Decode non-UTF-8 envelope fields instead of erroring out
	imap.CharsetReader = charset.Reader
}

// gmailMsgIDItem is the Gmail extension fetch item carrying the stable
// cross-session message id. Non-Gmail servers simply never return it.
const gmailMsgIDItem imap.FetchItem = "X-GM-MSGID"

// ErrAuthFailed indicates the mailbox rejected the user's credential.
var ErrAuthFailed = errors.New("mailbox authentication failed")

// FetchError wraps a single-message fetch failure. The orchestrator skips
// the message and continues the batch.
type FetchError struct {
	ID  uint32
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch message %d: %v", e.ID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RawMessage is one fetched message: undecoded RFC 822 bytes plus provider
// extension metadata.
type RawMessage struct {
	ID      uint32
	UID     uint32
	Raw     []byte
	GmailID string
}

// Mailbox is the session surface the categorization pipeline depends on.
// Sessions are not safe for concurrent commands; callers use them serially
// and close them exactly once.
type Mailbox interface {
	ListRecentIDs(window uint32) ([]uint32, error)
	FetchRaw(id uint32) (*RawMessage, error)
	Close() error
}

// Dialer opens an authenticated mailbox session for a user.
type Dialer func(cfg *config.Config, email, password string) (Mailbox, error)

// Client represents an IMAP client wrapper
type Client struct {
	client *client.Client
	folder string
}

// NewClient connects to the configured IMAP server over TLS, authenticates
// and selects the inbox read-only.
func NewClient(cfg *config.Config, email, password string) (Mailbox, error) {
	dialer := &net.Dialer{Timeout: cfg.IMAPTimeout()}
	c, err := client.DialWithDialerTLS(dialer, cfg.IMAPAddr(), nil)
	if err != nil {
		utils.Log.Error("DialTLS %s connection err: %v", cfg.IMAPAddr(), err)
		return nil, fmt.Errorf("connection error: %v", err)
	}
	c.Timeout = cfg.IMAPTimeout()

	if err := c.Login(email, password); err != nil {
		c.Logout()
		utils.Log.Error("IMAP login failed for %s: %v", email, err)
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	if _, err := c.Select(cfg.IMAP.Folder, true); err != nil {
		c.Logout()
		return nil, fmt.Errorf("error selecting folder %s: %v", cfg.IMAP.Folder, err)
	}

	return &Client{client: c, folder: cfg.IMAP.Folder}, nil
}

// Close closes the IMAP connection
func (c *Client) Close() error {
	return c.client.Logout()
}

// ListRecentIDs returns the ids of the most recent messages, ascending by
// arrival. At most window ids are returned; fewer when the mailbox is
// smaller than the window.
func (c *Client) ListRecentIDs(window uint32) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.DeletedFlag}

	ids, err := c.client.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("error searching folder %s: %v", c.folder, err)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if window > 0 && uint32(len(ids)) > window {
		ids = ids[uint32(len(ids))-window:]
	}

	return ids, nil
}

// FetchRaw retrieves one message's raw bytes without marking it read, along
// with the Gmail extension id when the server provides one.
func (c *Client) FetchRaw(id uint32) (*RawMessage, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(id)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid, gmailMsgIDItem}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.client.Fetch(seqSet, items, messages)
	}()

	var msg *imap.Message
	for m := range messages {
		msg = m
	}

	if err := <-done; err != nil {
		return nil, &FetchError{ID: id, Err: err}
	}
	if msg == nil {
		return nil, &FetchError{ID: id, Err: errors.New("server returned no data")}
	}

	r := msg.GetBody(section)
	if r == nil {
		return nil, &FetchError{ID: id, Err: errors.New("server returned no body section")}
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &FetchError{ID: id, Err: err}
	}

	return &RawMessage{
		ID:      id,
		UID:     msg.Uid,
		Raw:     raw,
		GmailID: gmailID(msg),
	}, nil
}

// gmailID pulls the X-GM-MSGID value out of the fetch response items.
// go-imap keeps attributes it does not recognize as raw values.
func gmailID(msg *imap.Message) string {
	v, ok := msg.Items[gmailMsgIDItem]
	if !ok || v == nil {
		return ""
	}

	switch value := v.(type) {
	case string:
		return value
	case imap.RawString:
		return string(value)
	default:
		return fmt.Sprint(value)
	}
}
