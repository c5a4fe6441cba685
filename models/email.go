package models

// Email represents one fetched and classified message.
type Email struct {
	ID       string `json:"id"`
	Subject  string `json:"subject"`
	From     string `json:"from"`
	Body     string `json:"body"`
	Category string `json:"category"`
	// GmailID is the provider-assigned stable message id (X-GM-MSGID).
	// Empty when the server does not expose one.
	GmailID string `json:"gmail_id"`
}

// CategorizedEmails maps a category label to the messages assigned to it,
// in fetch order.
type CategorizedEmails map[string][]Email
