// Package multipart splits MIME multipart response bodies into typed parts.
package multipart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	stdmultipart "mime/multipart"
	"regexp"
	"strings"
)

// ErrNoBoundary is returned when a content type carries no boundary parameter.
var ErrNoBoundary = errors.New("multipart: missing boundary")

var boundaryParam = regexp.MustCompile(`(?i)(?:^|;)\s*boundary\s*=\s*"?([^";]+)"?`)

// parseContentType returns the lowercased media type and boundary of a
// Content-Type value. Unquoted boundaries holding tspecials such as
// "uuid:..." are rejected by mime.ParseMediaType; those fall back to a
// plain scan of the header.
func parseContentType(contentType string) (mediaType, boundary string) {
	mt, params, err := mime.ParseMediaType(contentType)
	if err == nil {
		return mt, params["boundary"]
	}
	mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if m := boundaryParam.FindStringSubmatch(contentType); m != nil {
		boundary = strings.TrimSpace(m[1])
	}
	return mediaType, boundary
}

// Part is one decoded body part.
type Part struct {
	ContentType string // raw Content-Type header value
	Body        []byte
}

// MediaType returns the lowercased media type of the part without parameters.
func (p Part) MediaType() string {
	mt, _ := parseContentType(p.ContentType)
	return mt
}

// IsMultipart reports whether a Content-Type header announces a multipart body.
func IsMultipart(contentType string) bool {
	mt, _ := parseContentType(contentType)
	return strings.HasPrefix(mt, "multipart/")
}

// Boundary extracts the boundary token from a Content-Type header value.
func Boundary(contentType string) (string, error) {
	_, boundary := parseContentType(contentType)
	if boundary == "" {
		return "", ErrNoBoundary
	}
	return boundary, nil
}

// Decode splits body on the given boundary. Part bodies are returned byte
// for byte, without the line break that precedes the next boundary and
// without any transfer decoding.
func Decode(body []byte, boundary string) ([]Part, error) {
	if boundary == "" {
		return nil, ErrNoBoundary
	}
	reader := stdmultipart.NewReader(bytes.NewReader(body), boundary)

	var parts []Part
	for {
		p, err := reader.NextRawPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("multipart: reading part %d: %w", len(parts)+1, err)
		}
		data, err := io.ReadAll(p)
		p.Close()
		if err != nil {
			return nil, fmt.Errorf("multipart: reading part %d body: %w", len(parts)+1, err)
		}
		parts = append(parts, Part{
			ContentType: p.Header.Get("Content-Type"),
			Body:        data,
		})
	}
	return parts, nil
}

// DecodeResponse decodes a body using the boundary of its Content-Type header.
func DecodeResponse(contentType string, body []byte) ([]Part, error) {
	boundary, err := Boundary(contentType)
	if err != nil {
		return nil, err
	}
	return Decode(body, boundary)
}

// Find returns the first part with the given media type.
func Find(parts []Part, mediaType string) (Part, bool) {
	for _, p := range parts {
		if p.MediaType() == mediaType {
			return p, true
		}
	}
	return Part{}, false
}
