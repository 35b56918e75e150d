package digest

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// ErrNoDigestFiles is returned when a directory holds no .eml files
var ErrNoDigestFiles = errors.New("no .eml files found")

// Message is a digest as read from disk, with envelope metadata when the
// input was an RFC 822 message
type Message struct {
	Path    string
	Subject string
	From    string
	Date    string
	Body    string // Plain text handed to the Extractor
}

// LoadFile reads a digest from path. Both .eml messages and bare
// plain-text digests are accepted.
func LoadFile(path string) (*Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read digest: %w", err)
	}

	msg, err := Unwrap(data)
	if err != nil {
		return nil, err
	}
	msg.Path = path
	return msg, nil
}

// Unwrap extracts the text body from an email message. Input that does not
// look like a message is returned verbatim as the body.
func Unwrap(raw []byte) (*Message, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil || !looksLikeMessage(msg.Header) {
		return &Message{Body: normalizeNewlines(string(raw))}, nil
	}

	body, err := extractBody(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return nil, fmt.Errorf("read message body: %w", err)
	}

	return &Message{
		Subject: decodeHeader(msg.Header.Get("Subject")),
		From:    decodeHeader(msg.Header.Get("From")),
		Date:    msg.Header.Get("Date"),
		Body:    normalizeNewlines(body),
	}, nil
}

// LatestInDir returns the most recently modified .eml file in dir
func LatestInDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read dir: %w", err)
	}

	var latest string
	var latestTime time.Time
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".eml") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestTime) {
			latest = filepath.Join(dir, entry.Name())
			latestTime = info.ModTime()
		}
	}

	if latest == "" {
		return "", fmt.Errorf("%w in %s", ErrNoDigestFiles, dir)
	}
	return latest, nil
}

func looksLikeMessage(h mail.Header) bool {
	for _, key := range []string{"From", "Subject", "Date", "Content-Type", "Message-Id"} {
		if h.Get(key) != "" {
			return true
		}
	}
	return false
}

// decodeHeader decodes RFC 2047 encoded headers
func decodeHeader(header string) string {
	if header == "" {
		return ""
	}
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

func extractBody(contentType, transferEncoding string, r io.Reader) (string, error) {
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return extractMultipartBody(r, params["boundary"])
	}

	body, err := io.ReadAll(decodeTransfer(transferEncoding, r))
	if err != nil {
		return "", err
	}

	if mediaType == "text/html" {
		return htmlToText(string(body)), nil
	}
	return string(body), nil
}

// extractMultipartBody prefers text/plain parts over text/html ones
func extractMultipartBody(r io.Reader, boundary string) (string, error) {
	if boundary == "" {
		return "", errors.New("multipart message without boundary")
	}

	mr := multipart.NewReader(r, boundary)
	var textParts, htmlParts []string

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		mediaType, params, parseErr := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if parseErr != nil {
			mediaType = "text/plain"
		}

		content, readErr := io.ReadAll(decodeTransfer(part.Header.Get("Content-Transfer-Encoding"), part))
		_ = part.Close()
		if readErr != nil {
			continue
		}

		switch {
		case mediaType == "text/plain":
			textParts = append(textParts, string(content))
		case mediaType == "text/html":
			htmlParts = append(htmlParts, htmlToText(string(content)))
		case strings.HasPrefix(mediaType, "multipart/"):
			nested, nestedErr := extractMultipartBody(bytes.NewReader(content), params["boundary"])
			if nestedErr == nil && nested != "" {
				textParts = append(textParts, nested)
			}
		}
	}

	if len(textParts) > 0 {
		return strings.Join(textParts, "\n"), nil
	}
	return strings.Join(htmlParts, "\n"), nil
}

// decodeTransfer undoes Content-Transfer-Encoding. multipart.Reader already
// decodes quoted-printable parts and drops the header for them.
func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	default:
		return r
	}
}

// htmlToText keeps text nodes and line structure, skipping scripts and styles
func htmlToText(content string) string {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return content
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode {
			switch n.Data {
			case "br", "p", "div", "tr", "li", "pre":
				buf.WriteString("\n")
			}
		}
	}

	walk(doc)
	return buf.String()
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
