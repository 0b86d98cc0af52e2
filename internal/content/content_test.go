package content

import (
	"fmt"
	"testing"

	"github.com/guisu-dev/guisu/internal/adapters/template"
	"github.com/guisu-dev/guisu/internal/attr"
)

type fakeDecryptor struct{ plain map[string]string }

func (f fakeDecryptor) Decrypt(data []byte) ([]byte, error) {
	if v, ok := f.plain[string(data)]; ok {
		return []byte(v), nil
	}
	return data, nil
}

func (f fakeDecryptor) DecryptInline(token string) (string, error) {
	if v, ok := f.plain[token]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unknown token")
}

// TestProcessTemplate covers S2: a plain template renders against context,
// through the real Go-template renderer against spec's literal bare-name
// syntax, not a stand-in that accepts any `{{...}}` span.
func TestProcessTemplate(t *testing.T) {
	p := &Pipeline{Decryptor: NoOpDecryptor{}, Renderer: template.GoTemplateRenderer{}}
	out, err := p.Process([]byte("name = {{ username }}"), attr.Attributes{Template: true}, map[string]any{"username": "alice"}, "home/.gitconfig.j2")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if string(out) != "name = alice" {
		t.Errorf("got %q", out)
	}
}

// TestProcessEncrypted covers S3: an encrypted non-template file only decrypts.
func TestProcessEncrypted(t *testing.T) {
	d := fakeDecryptor{plain: map[string]string{"ciphertext": "s3cret\n"}}
	p := &Pipeline{Decryptor: d, Renderer: NoOpRenderer{}}
	out, err := p.Process([]byte("ciphertext"), attr.Attributes{Encrypted: true}, nil, "home/secret.age")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if string(out) != "s3cret\n" {
		t.Errorf("got %q", out)
	}
}

// TestProcessEncryptedTemplate covers S4: decrypt then render, in that
// order, through the real Go-template renderer against spec's literal
// bare-name syntax.
func TestProcessEncryptedTemplate(t *testing.T) {
	d := fakeDecryptor{plain: map[string]string{"enc-body": "TOKEN={{ token }}"}}
	p := &Pipeline{Decryptor: d, Renderer: template.GoTemplateRenderer{}}
	out, err := p.Process([]byte("enc-body"), attr.Attributes{Encrypted: true, Template: true}, map[string]any{"token": "ABC"}, "home/.env.j2.age")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if string(out) != "TOKEN=ABC" {
		t.Errorf("got %q", out)
	}
}

func TestProcessSkipsRenderForBinaryTemplate(t *testing.T) {
	p := &Pipeline{Decryptor: NoOpDecryptor{}, Renderer: template.GoTemplateRenderer{}}
	binary := append([]byte{0x00, 0x01}, []byte("{{ whatever }}")...)
	out, err := p.Process(binary, attr.Attributes{Template: true}, map[string]any{"whatever": "x"}, "bin.j2")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if string(out) != string(binary) {
		t.Errorf("binary content should pass through unrendered, got %q", out)
	}
}

func TestExpandInlineSecretsBestEffort(t *testing.T) {
	d := fakeDecryptor{plain: map[string]string{"age:knownvalue": "hunter2"}}
	got := ExpandInlineSecrets("TOKEN=age:knownvalue OTHER=age:unknownvalue", d)
	want := "TOKEN=hunter2 OTHER=age:unknownvalue"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
