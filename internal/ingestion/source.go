package ingestion

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/TedTes/genres-sub000/internal/cache"
	"github.com/TedTes/genres-sub000/internal/types"
)

// IsRemote reports whether a document reference is an http(s) URL.
func IsRemote(ref string) bool {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// SourceMarker returns the canonical cache-key component for a resume input.
// Raw text is used as-is; local documents are content-addressed; remote
// documents are identified by URL so no download happens before a cache check.
func SourceMarker(input types.ResumeInput) (string, error) {
	if err := input.Validate(); err != nil {
		return "", err
	}
	kind := input.InputType()
	if kind == types.InputTypeText {
		return "text:" + input.Text, nil
	}

	ref := input.Reference()
	if IsRemote(ref) {
		return cache.URLMarker(string(kind), ref), nil
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", &ExtractionError{Format: kind, Path: ref, Cause: fmt.Errorf("failed to read document: %w", err)}
	}
	return cache.FileMarker(string(kind), data), nil
}
