package cache

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// keyVersion is bumped whenever the result shape changes incompatibly.
const keyVersion = "v1"

// KeyBuilder derives content-addressed cache keys.
type KeyBuilder struct {
	Namespace string
}

// NewKeyBuilder creates a key builder; an empty namespace uses "resume-optimizer".
func NewKeyBuilder(namespace string) KeyBuilder {
	if namespace == "" {
		namespace = "resume-optimizer"
	}
	return KeyBuilder{Namespace: namespace}
}

// ResultKeyInput is everything that influences an optimization result.
type ResultKeyInput struct {
	// ResumeSource is the resume text or its canonical file marker
	ResumeSource   string
	JobDescription string
	Options        any
	ModelIdentity  string
	// Settings are the scoring, gap and guardrail tunables in effect
	Settings any
}

// ResultKey hashes every semantically relevant input. Fields are length-prefixed
// so no two different inputs can collide by concatenation.
func (b KeyBuilder) ResultKey(in ResultKeyInput) (string, error) {
	opts, err := json.Marshal(in.Options)
	if err != nil {
		return "", &Error{Op: "key", Backend: "-", Cause: err}
	}
	settings, err := json.Marshal(in.Settings)
	if err != nil {
		return "", &Error{Op: "key", Backend: "-", Cause: err}
	}
	h, _ := blake2b.New256(nil)
	for _, part := range []string{keyVersion, in.ResumeSource, in.JobDescription, string(opts), in.ModelIdentity, string(settings)} {
		writeField(h, part)
	}
	return b.Namespace + ":result:" + hex.EncodeToString(h.Sum(nil)), nil
}

// EmbeddingKey addresses one embedding vector of text under a given embedder.
func (b KeyBuilder) EmbeddingKey(embedderIdentity, text string) string {
	h, _ := blake2b.New256(nil)
	writeField(h, keyVersion)
	writeField(h, embedderIdentity)
	writeField(h, text)
	return b.Namespace + ":embedding:" + hex.EncodeToString(h.Sum(nil))
}

// FileMarker is the canonical marker of a local document: its type and content hash.
func FileMarker(inputType string, content []byte) string {
	sum := blake2b.Sum256(content)
	return inputType + ":file:" + hex.EncodeToString(sum[:])
}

// URLMarker is the canonical marker of a remote document.
func URLMarker(inputType, url string) string {
	return inputType + ":url:" + strings.TrimSpace(url)
}

func writeField(w io.Writer, s string) {
	var n [8]byte
	l := uint64(len(s))
	for i := 0; i < 8; i++ {
		n[i] = byte(l >> (8 * i))
	}
	_, _ = w.Write(n[:])
	_, _ = w.Write([]byte(s))
}
