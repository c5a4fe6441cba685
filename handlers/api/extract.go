// handlers/api/extract.go
package api

import (
	"bytes"
	"io"
	"mime"
	"strings"

	"mailsift/utils"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// UnreadableBody is the sentinel body for messages with no usable text part.
const UnreadableBody = "Unable to Read Body"

// ExtractedContent is the decoded view of one raw message.
type ExtractedContent struct {
	Subject string
	From    string
	Body    string
}

// ExtractMessage parses raw RFC 822 bytes into a subject, a raw From header
// and a single best-effort body. It never fails: malformed messages degrade
// to the sentinel body.
func ExtractMessage(raw []byte) ExtractedContent {
	content := ExtractedContent{Body: UnreadableBody}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if mr == nil {
		if err != nil {
			utils.Log.Warn("Failed to parse message: %v", err)
		}
		return content
	}

	content.Subject = decodeSubject(mr.Header)
	content.From = mr.Header.Get("From")
	content.Body = extractBody(mr)

	return content
}

// decodeSubject resolves RFC 2047 encoded-words in the Subject header,
// falling back to a permissive decoder for charsets go-message rejects.
func decodeSubject(header mail.Header) string {
	subject, err := header.Subject()
	if err == nil {
		return subject
	}

	raw := header.Get("Subject")
	decoder := mime.WordDecoder{CharsetReader: permissiveCharsetReader}
	if decoded, err := decoder.DecodeHeader(raw); err == nil {
		return decoded
	}
	if subject != "" {
		return subject
	}
	return raw
}

// permissiveCharsetReader resolves charsets through the IANA index and passes
// input through untouched when the charset is unknown. Decoding never fails.
func permissiveCharsetReader(cs string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(strings.ToLower(cs))
	if err != nil || enc == nil {
		return input, nil
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}

// extractBody walks the message parts in document order. The first inline
// text/html part wins and stops the walk: later parts are often signatures
// or decoration that should not override the primary content. When no HTML
// part qualifies, the first text/plain part is used instead.
func extractBody(mr *mail.Reader) string {
	var plainBody string
	var havePlain bool

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}

		unknownCharset := message.IsUnknownCharset(err)
		if err != nil && !unknownCharset && !message.IsUnknownEncoding(err) {
			break
		}
		if part == nil {
			// Unknown transfer encoding leaves nothing to read; keep walking
			continue
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			// Attachments never provide the body
			continue
		}

		contentType, params, ctErr := header.ContentType()
		if ctErr != nil {
			contentType = "text/plain"
		}

		// On an unknown charset the part body is left as raw undecoded
		// bytes. Decode them best-effort; charsets the IANA index does not
		// know either pass through untouched.
		body := io.Reader(part.Body)
		if unknownCharset {
			if decoded, decErr := permissiveCharsetReader(params["charset"], body); decErr == nil {
				body = decoded
			}
		}

		switch {
		case strings.HasPrefix(contentType, "text/html"):
			data, _ := io.ReadAll(body)
			if len(data) == 0 {
				// An empty part must not mask a later usable one
				continue
			}
			return utils.SanitizeHTML(string(data))
		case strings.HasPrefix(contentType, "text/plain") && !havePlain:
			data, _ := io.ReadAll(body)
			if len(data) == 0 {
				continue
			}
			plainBody = string(data)
			havePlain = true
		}
	}

	if !havePlain {
		return UnreadableBody
	}
	return plainBody
}
