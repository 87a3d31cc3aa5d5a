package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yungbote/deepchat-backend/internal/logger"
)

// TextExtractor is the typed extraction capability: document bytes in,
// plain text out. File-format internals live behind this interface.
type TextExtractor interface {
	Extract(ctx context.Context, doc Document) (string, error)
}

// ---- plain text ----

type plainTextExtractor struct{}

func NewPlainTextExtractor() TextExtractor { return plainTextExtractor{} }

func (plainTextExtractor) Extract(_ context.Context, doc Document) (string, error) {
	if utf8.Valid(doc.Bytes) {
		return string(doc.Bytes), nil
	}
	// Legacy uploads arrive in single-byte encodings now and then; a
	// latin-1 reinterpretation keeps every byte representable.
	runes := make([]rune, len(doc.Bytes))
	for i, b := range doc.Bytes {
		runes[i] = rune(b)
	}
	return string(runes), nil
}

// ---- pdf (external extraction service) ----

type pdfExtractor struct {
	log        *logger.Logger
	serviceURL string
	httpClient *http.Client
}

// NewPDFExtractor calls an external PDF extraction service that answers
// with the document's plain text.
func NewPDFExtractor(log *logger.Logger, serviceURL string) TextExtractor {
	return &pdfExtractor{
		log:        log.With("service", "PDFExtractor"),
		serviceURL: strings.TrimRight(serviceURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type extractResponse struct {
	Text  string `json:"text"`
	Pages int    `json:"pages"`
	Error string `json:"error,omitempty"`
}

func (p *pdfExtractor) Extract(ctx context.Context, doc Document) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serviceURL+"/extract", bytes.NewReader(doc.Bytes))
	if err != nil {
		return "", &ExtractionError{Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &ExtractionError{Reason: fmt.Sprintf("extraction service unreachable: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ExtractionError{Reason: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &ExtractionError{Reason: fmt.Sprintf("extraction service status %d", resp.StatusCode)}
	}

	var result extractResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", &ExtractionError{Reason: fmt.Sprintf("bad extraction payload: %v", err)}
	}
	if result.Error != "" {
		return "", &ExtractionError{Reason: result.Error}
	}

	p.log.Debug("PDF text extracted", "file_name", doc.FileName, "pages", result.Pages, "chars", len(result.Text))
	return result.Text, nil
}

// ---- routing ----

type compositeExtractor struct {
	pdf  TextExtractor
	text TextExtractor
}

// NewExtractor routes by media type: PDFs to the extraction service,
// textual payloads to the direct decoder.
func NewExtractor(log *logger.Logger, pdfServiceURL string) TextExtractor {
	return &compositeExtractor{
		pdf:  NewPDFExtractor(log, pdfServiceURL),
		text: NewPlainTextExtractor(),
	}
}

func (c *compositeExtractor) Extract(ctx context.Context, doc Document) (string, error) {
	switch {
	case doc.MediaType == MediaTypePDF:
		return c.pdf.Extract(ctx, doc)
	case strings.HasPrefix(doc.MediaType, "text/"):
		return c.text.Extract(ctx, doc)
	default:
		return "", &ExtractionError{Reason: fmt.Sprintf("unsupported file type %q", doc.MediaType)}
	}
}
