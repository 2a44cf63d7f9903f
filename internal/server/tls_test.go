package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"resumeforge/internal/config"
	"resumeforge/internal/errors"
)

// selfSignedPair returns PEM-encoded certificate and key expiring at
// notAfter.
func selfSignedPair(t *testing.T, notAfter time.Time) (certPEM, keyPEM []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}

func testTLSLogger(t *testing.T) *errors.Logger {
	t.Helper()
	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	return logger
}

func TestCertManagerLoadsFromContent(t *testing.T) {
	certPEM, keyPEM := selfSignedPair(t, time.Now().Add(30*24*time.Hour))

	cm, err := NewCertManager(config.TLSConfig{
		Enabled:     true,
		CertContent: string(certPEM),
		KeyContent:  string(keyPEM),
	}, testTLSLogger(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cert, err := cm.GetCertificate(nil)
	if err != nil || cert == nil {
		t.Fatalf("GetCertificate: %v", err)
	}

	timeToExpiry, err := cm.CheckExpiry()
	if err != nil {
		t.Fatalf("CheckExpiry: %v", err)
	}
	if timeToExpiry < 29*24*time.Hour {
		t.Errorf("got time to expiry %v", timeToExpiry)
	}

	// Inline content has no files to watch.
	if err := cm.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if cm.Watching() {
		t.Error("content-based certificates must not start a watcher")
	}
}

func TestCertManagerLoadsFromFiles(t *testing.T) {
	certPEM, keyPEM := selfSignedPair(t, time.Now().Add(time.Hour))

	dir := t.TempDir()
	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")
	if err := os.WriteFile(certFile, certPEM, 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	cfg := config.TLSConfig{
		Enabled:  true,
		CertFile: certFile,
		KeyFile:  keyFile,
	}
	cfg.Watch.Enabled = true
	cfg.Watch.DebounceDelay = 10 * time.Millisecond

	cm, err := NewCertManager(cfg, testTLSLogger(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cm.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		if err := cm.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	}()
	if !cm.Watching() {
		t.Fatal("watcher should be running")
	}

	// Rotate to a certificate with a later expiry and wait for the
	// debounced reload to pick it up.
	newCert, newKey := selfSignedPair(t, time.Now().Add(90*24*time.Hour))
	if err := os.WriteFile(certFile, newCert, 0o600); err != nil {
		t.Fatalf("rotate cert: %v", err)
	}
	if err := os.WriteFile(keyFile, newKey, 0o600); err != nil {
		t.Fatalf("rotate key: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if ttl, err := cm.CheckExpiry(); err == nil && ttl > 30*24*time.Hour {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("rotated certificate was not reloaded")
}

func TestCertManagerRejectsGarbage(t *testing.T) {
	_, err := NewCertManager(config.TLSConfig{
		Enabled:     true,
		CertContent: "not a certificate",
		KeyContent:  "not a key",
	}, testTLSLogger(t))
	if err == nil {
		t.Fatal("expected an error for invalid PEM content")
	}
}

func TestCertManagerExpiredCertificate(t *testing.T) {
	certPEM, keyPEM := selfSignedPair(t, time.Now().Add(-time.Minute))

	cm, err := NewCertManager(config.TLSConfig{
		Enabled:     true,
		CertContent: string(certPEM),
		KeyContent:  string(keyPEM),
	}, testTLSLogger(t))
	if err != nil {
		t.Fatalf("loading an expired certificate should succeed: %v", err)
	}

	timeToExpiry, err := cm.CheckExpiry()
	if err != nil {
		t.Fatalf("CheckExpiry: %v", err)
	}
	if timeToExpiry > 0 {
		t.Errorf("expired certificate reports %v to expiry", timeToExpiry)
	}
}
