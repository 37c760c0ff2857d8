package util

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	_ "embed"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"html"
	"log"
	rnd "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed version.txt
var embeddedVersion string

type RsaKeyPair struct {
	Private string
	Public  string
}

func GetVersion() string {
	return strings.TrimSpace(embeddedVersion)
}

func GetNameAndVersion() string {
	return fmt.Sprintf("%s / %s", Name, GetVersion())
}

func RandomString(length int) string {
	rnd.Seed(time.Now().UnixNano())
	b := make([]byte, length)
	rnd.Read(b)
	return fmt.Sprintf("%x", b)[:length]
}

func NormalizeInput(text string) string {
	normalized := strings.Replace(text, "\n", " ", -1)
	normalized = html.EscapeString(normalized)
	return normalized
}

// NormalizeTitle flattens an entry title to a single trimmed line. No
// escaping happens here; titles are stored raw and escaped exactly once
// when rendered into Note content.
func NormalizeTitle(text string) string {
	return strings.TrimSpace(strings.Replace(text, "\n", " ", -1))
}

func PrettyPrint(i interface{}) string {
	s, _ := json.MarshalIndent(i, "", " ")
	return string(s)
}

// GeneratePemKeypair creates the RSA key pair backing a federating
// account. The private key is PKCS1, the public key PKIX so that remote
// servers can verify our signatures with standard tooling.
func GeneratePemKeypair() *RsaKeyPair {
	bitSize := 2048

	key, err := rsa.GenerateKey(rand.Reader, bitSize)
	if err != nil {
		panic(err)
	}

	keyPEM := pem.EncodeToMemory(
		&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		},
	)

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		panic(err)
	}

	pubPEM := pem.EncodeToMemory(
		&pem.Block{
			Type:  "PUBLIC KEY",
			Bytes: pubBytes,
		},
	)

	return &RsaKeyPair{Private: string(keyPEM[:]), Public: string(pubPEM[:])}
}

// The goldmark instance is initialized once and shared. Parser
// configuration never changes and goldmark is safe for concurrent use.
var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once
)

func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return markdownInstance
}

// RenderMarkdown converts a markdown body to HTML.
func RenderMarkdown(input string) string {
	var buf bytes.Buffer
	if err := getMarkdown().Convert([]byte(input), &buf); err != nil {
		log.Printf("Markdown: render failed, falling back to escaped text: %v", err)
		return "<p>" + html.EscapeString(input) + "</p>"
	}
	return buf.String()
}

// RenderEntryContent renders a federated entry as it appears in Note
// objects: the title as an h1 followed by the rendered markdown body.
func RenderEntryContent(title, body string) string {
	return fmt.Sprintf("<h1>%s</h1>\n%s", html.EscapeString(title), RenderMarkdown(body))
}
