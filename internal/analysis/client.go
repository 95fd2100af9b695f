package analysis

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const (
	// Endpoint is the analyzer path images are posted to.
	Endpoint = "/analyze"
	// FieldName is the multipart field carrying the image.
	FieldName = "image"

	maxResponseBytes = 8 << 20
)

// Upload is an image file selected by the user.
type Upload struct {
	Filename string
	Data     []byte
}

// Empty reports whether nothing usable was selected.
func (u *Upload) Empty() bool {
	return u == nil || u.Filename == "" || len(u.Data) == 0
}

// ContentType sniffs the image type from the file contents.
func (u *Upload) ContentType() string {
	return http.DetectContentType(u.Data)
}

// Client posts images to the analyzer.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient returns a client for the analyzer rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Analyze sends one image and returns the decoded result. Errors are
// ErrTransport (wrapped), *ServerError or *MalformedError.
func (c *Client) Analyze(ctx context.Context, up Upload) (*Result, error) {
	body, contentType, err := multipartBody(up)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	c.logger.Debug("analyze",
		"file", up.Filename,
		"bytes", len(up.Data),
		"status", resp.StatusCode,
		"dur", time.Since(start).Round(time.Millisecond),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ServerError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	return Decode(bytes.NewReader(data))
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func multipartBody(up Upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FieldName, quoteEscaper.Replace(up.Filename)))
	h.Set("Content-Type", up.ContentType())
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(up.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
