package services

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/yungbote/deepchat-backend/internal/cache"
)

const (
	MediaTypePDF  = "application/pdf"
	MediaTypeText = "text/plain"
)

// Document is an immutable uploaded artifact. Identity is derived from the
// bytes, never assigned, so byte-identical re-uploads share a hash no
// matter the filename or uploader.
type Document struct {
	Bytes     []byte
	FileName  string
	MediaType string
}

// NewDocument trusts the declared media type when present and falls back
// to content sniffing.
func NewDocument(raw []byte, fileName, declaredType string) Document {
	mediaType := normalizeMediaType(declaredType)
	if mediaType == "" {
		mediaType = normalizeMediaType(mimetype.Detect(raw).String())
	}
	return Document{
		Bytes:     raw,
		FileName:  fileName,
		MediaType: mediaType,
	}
}

func (d Document) Hash() string {
	return cache.HashBytes(d.Bytes)
}

func (d Document) Size() int64 {
	return int64(len(d.Bytes))
}

func normalizeMediaType(mt string) string {
	mt = strings.TrimSpace(strings.ToLower(mt))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}
