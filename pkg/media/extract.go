package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go"
	"github.com/tidwall/gjson"
)

// ExtractPurpose is the upload purpose that makes an OpenAI-compatible
// provider (Moonshot among them) extract a document's text.
const ExtractPurpose = "file-extract"

// ErrUnsupportedDocument is returned for files the extractor does not take.
var ErrUnsupportedDocument = errors.New("unsupported document type")

// Extractor turns an uploaded document into plain text.
type Extractor interface {
	Extract(ctx context.Context, doc io.Reader, filename string) (string, error)
}

var documentTypes = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// DocumentType returns the content type sent for filename, or
// ErrUnsupportedDocument.
func DocumentType(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	ct, ok := documentTypes[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDocument, filepath.Base(filename))
	}
	return ct, nil
}

// ChatBaseURL derives the API base URL from a chat completions endpoint,
// e.g. https://api.moonshot.cn/v1/chat/completions gives
// https://api.moonshot.cn/v1.
func ChatBaseURL(endpoint string) (string, error) {
	base, ok := strings.CutSuffix(strings.TrimRight(endpoint, "/"), "/chat/completions")
	if !ok || base == "" {
		return "", fmt.Errorf("%q is not an OpenAI-compatible chat endpoint", endpoint)
	}
	return base, nil
}

// Extract uploads doc to the files endpoint and returns the text the
// provider extracted from it.
func (c *Client) Extract(ctx context.Context, doc io.Reader, filename string) (string, error) {
	ct, err := DocumentType(filename)
	if err != nil {
		return "", err
	}
	name := filepath.Base(filename)

	file, err := c.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(doc, name, ct),
		Purpose: openai.FilePurpose(ExtractPurpose),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", name, err)
	}

	resp, err := c.client.Files.Content(ctx, file.ID)
	if err != nil {
		return "", fmt.Errorf("fetching text of %s: %w", name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading text of %s: %w", name, err)
	}

	text := documentText(body)
	if text == "" {
		return "", fmt.Errorf("no text extracted from %s", name)
	}
	return text, nil
}

// documentText unwraps {"content": ...} bodies; anything else is the text.
func documentText(body []byte) string {
	if gjson.ValidBytes(body) {
		if content := gjson.GetBytes(body, "content"); content.Type == gjson.String {
			return strings.TrimSpace(content.String())
		}
	}
	return strings.TrimSpace(string(body))
}
