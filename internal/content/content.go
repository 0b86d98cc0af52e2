// Package content implements the reconciliation engine's content pipeline:
// decrypt, validate UTF-8, render, then expand inline secret tokens, in
// that fixed order. It depends only on the Decryptor/Renderer contracts
// defined here, never on a concrete crypto or template library — concrete
// implementations live under internal/adapters and are wired in by the CLI.
package content

import (
	"bytes"
	"regexp"
	"unicode/utf8"

	"github.com/guisu-dev/guisu/internal/attr"
	"github.com/guisu-dev/guisu/internal/core"
)

// Decryptor decrypts file content and inline secret tokens. A Decrypt
// failure fails the whole file; DecryptInline is best-effort from the
// pipeline's point of view: a token is left untouched rather than failing
// the whole file when decryption of that one token fails (the source may
// hold tokens for identities the current run doesn't have).
type Decryptor interface {
	Decrypt(data []byte) ([]byte, error)
	DecryptInline(text string) (string, error)
}

// Renderer renders a template string against a context.
type Renderer interface {
	Render(source string, context map[string]any) (string, error)
}

// NoOpDecryptor returns data unchanged; used for sources with no encrypted
// entries and in tests that don't exercise the crypto adapter.
type NoOpDecryptor struct{}

func (NoOpDecryptor) Decrypt(data []byte) ([]byte, error)      { return data, nil }
func (NoOpDecryptor) DecryptInline(text string) (string, error) { return text, nil }

// NoOpRenderer returns the template source unchanged.
type NoOpRenderer struct{}

func (NoOpRenderer) Render(source string, _ map[string]any) (string, error) { return source, nil }

// inlineSecretPattern matches an inline age-encrypted token embedded in
// otherwise plaintext content, e.g. a line like `API_KEY=age:YWdlLWVuY3J5…=`.
var inlineSecretPattern = regexp.MustCompile(`age:[A-Za-z0-9+/]+=*`)

// binarySniffWindow is how much of the start of a file is checked for a NUL
// byte before deciding it's binary and skipping the template step.
const binarySniffWindow = 8192

// Pipeline runs the ordered decrypt -> render -> inline-secret-expand
// sequence described by the reconciliation engine's content-processing
// component.
type Pipeline struct {
	Decryptor Decryptor
	Renderer  Renderer
}

// NewNoOpPipeline returns a Pipeline that neither decrypts nor renders,
// useful for entries that carry neither attribute and for tests.
func NewNoOpPipeline() *Pipeline {
	return &Pipeline{Decryptor: NoOpDecryptor{}, Renderer: NoOpRenderer{}}
}

// Process runs data through the pipeline for one entry. pathForErrors is
// used only to annotate error messages and the renderer's error output.
func (p *Pipeline) Process(data []byte, attrs attr.Attributes, ctx map[string]any, pathForErrors string) ([]byte, error) {
	if attrs.Encrypted {
		plain, err := p.Decryptor.Decrypt(data)
		if err != nil {
			return nil, &core.ContentError{Stage: "decrypt", Path: pathForErrors, Err: err}
		}
		data = plain
	}

	// Binary sniffing only matters for files carrying the template
	// attribute: a non-template file never enters the render step
	// regardless of its content, so there is nothing to guard here.
	if attrs.Template && !looksBinary(data) {
		if !utf8.Valid(data) {
			return nil, &core.ContentError{Stage: "utf8", Path: pathForErrors, Err: core.ErrInvalidUTF8}
		}
		rendered, err := p.Renderer.Render(string(data), ctx)
		if err != nil {
			return nil, &core.ContentError{Stage: "render", Path: pathForErrors, Err: err}
		}
		data = []byte(rendered)
	}

	expanded := ExpandInlineSecrets(string(data), p.Decryptor)
	return []byte(expanded), nil
}

func looksBinary(data []byte) bool {
	n := len(data)
	if n > binarySniffWindow {
		n = binarySniffWindow
	}
	return bytes.IndexByte(data[:n], 0) != -1
}

// ExpandInlineSecrets replaces every `age:...` token in text with its
// decrypted plaintext. A token that fails to decrypt (wrong identity, not
// actually valid ciphertext) is left untouched rather than failing the
// whole operation, matching the pipeline's best-effort inline-decrypt
// policy.
func ExpandInlineSecrets(text string, d Decryptor) string {
	return inlineSecretPattern.ReplaceAllStringFunc(text, func(token string) string {
		plain, err := d.DecryptInline(token)
		if err != nil {
			return token
		}
		return plain
	})
}
