package activitypub

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"testing"
	"time"
)

// generateTestKeyPair generates an RSA key pair for testing
func generateTestKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	return privateKey, &privateKey.PublicKey
}

// calculateDigest calculates SHA-256 digest for a request body
func calculateDigest(body []byte) string {
	hash := sha256.Sum256(body)
	return "SHA-256=" + base64.StdEncoding.EncodeToString(hash[:])
}

func privateKeyToPEM(key *rsa.PrivateKey) string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
}

func publicKeyToPEM(t *testing.T, key *rsa.PublicKey) string {
	t.Helper()
	keyBytes, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		t.Fatalf("Failed to marshal public key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: keyBytes,
	}))
}

func makeSignedRequest(t *testing.T, privateKey *rsa.PrivateKey, keyId string) *http.Request {
	t.Helper()
	body := []byte(`{"type":"Follow"}`)
	req, err := http.NewRequest("POST", "https://remote.example/users/bob/inbox", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("Digest", calculateDigest(body))

	if err := SignRequest(req, privateKey, keyId); err != nil {
		t.Fatalf("SignRequest failed: %v", err)
	}
	return req
}

func TestSignAndVerifyRoundtrip(t *testing.T) {
	privateKey, publicKey := generateTestKeyPair(t)
	keyId := "https://local.example/users/alice#main-key"

	req := makeSignedRequest(t, privateKey, keyId)

	if req.Header.Get("Signature") == "" {
		t.Fatal("SignRequest should set the Signature header")
	}

	actorURI, err := VerifyRequest(req, publicKeyToPEM(t, publicKey))
	if err != nil {
		t.Fatalf("VerifyRequest failed: %v", err)
	}
	if actorURI != "https://local.example/users/alice" {
		t.Errorf("Expected actor URI without fragment, got %q", actorURI)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	privateKey, _ := generateTestKeyPair(t)
	_, otherPublicKey := generateTestKeyPair(t)
	keyId := "https://local.example/users/alice#main-key"

	req := makeSignedRequest(t, privateKey, keyId)

	if _, err := VerifyRequest(req, publicKeyToPEM(t, otherPublicKey)); err == nil {
		t.Error("Verification with a different key should fail")
	}
}

func TestVerifyRejectsTamperedRequest(t *testing.T) {
	privateKey, publicKey := generateTestKeyPair(t)
	keyId := "https://local.example/users/alice#main-key"

	req := makeSignedRequest(t, privateKey, keyId)
	req.Header.Set("Date", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))

	if _, err := VerifyRequest(req, publicKeyToPEM(t, publicKey)); err == nil {
		t.Error("Verification of a tampered request should fail")
	}
}

func TestVerifyRejectsUnsignedRequest(t *testing.T) {
	_, publicKey := generateTestKeyPair(t)

	req, _ := http.NewRequest("POST", "https://remote.example/inbox", nil)
	if _, err := VerifyRequest(req, publicKeyToPEM(t, publicKey)); err == nil {
		t.Error("Verification without a signature should fail")
	}
}

func TestParsePrivateKey(t *testing.T) {
	privateKey, _ := generateTestKeyPair(t)

	parsed, err := ParsePrivateKey(privateKeyToPEM(privateKey))
	if err != nil {
		t.Fatalf("ParsePrivateKey failed: %v", err)
	}
	if parsed.N.Cmp(privateKey.N) != 0 {
		t.Error("Parsed key does not match original")
	}

	if _, err := ParsePrivateKey("not a pem"); err == nil {
		t.Error("ParsePrivateKey should reject garbage")
	}
}

func TestParsePublicKey(t *testing.T) {
	_, publicKey := generateTestKeyPair(t)

	parsed, err := ParsePublicKey(publicKeyToPEM(t, publicKey))
	if err != nil {
		t.Fatalf("ParsePublicKey failed: %v", err)
	}
	if parsed.N.Cmp(publicKey.N) != 0 {
		t.Error("Parsed key does not match original")
	}

	if _, err := ParsePublicKey("not a pem"); err == nil {
		t.Error("ParsePublicKey should reject garbage")
	}
}
