package tlsroots

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeServingPair(t *testing.T, certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	serial, _ := rand.Int(rand.Reader, big.NewInt(1_000_000))
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"CredGate Test"},
			CommonName:   "credgate.internal",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost", "credgate.internal"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	if err := os.WriteFile(certFile, certPEM, 0o644); err != nil {
		t.Fatalf("WriteFile(cert) error = %v", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey() error = %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		t.Fatalf("WriteFile(key) error = %v", err)
	}
}

func newTestWatcher(t *testing.T, opts ...WatcherOption) (*Watcher, string, string) {
	t.Helper()

	dir := t.TempDir()
	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")
	writeServingPair(t, certFile, keyFile)

	opts = append([]WatcherOption{WithLogger(quietLogger())}, opts...)
	w, err := NewWatcher(certFile, keyFile, opts...)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	return w, certFile, keyFile
}

func TestNewWatcher_LoadsInitialPair(t *testing.T) {
	w, _, _ := newTestWatcher(t)
	defer w.Stop()

	cert, err := w.GetCertificate(nil)
	if err != nil {
		t.Fatalf("GetCertificate() error = %v", err)
	}
	if cert == nil {
		t.Fatal("GetCertificate() returned nil after construction")
	}
}

func TestNewWatcher_InvalidPair(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")
	os.WriteFile(certFile, []byte("not a cert"), 0o644)
	os.WriteFile(keyFile, []byte("not a key"), 0o600)

	if _, err := NewWatcher(certFile, keyFile); err == nil {
		t.Error("NewWatcher() should fail when the pair cannot be parsed")
	}
}

func TestNewWatcher_MissingFiles(t *testing.T) {
	if _, err := NewWatcher("/nonexistent/cert.pem", "/nonexistent/key.pem"); err == nil {
		t.Error("NewWatcher() should fail for missing files")
	}
}

func TestWatcher_StartStop(t *testing.T) {
	w, _, _ := newTestWatcher(t, WithDebounce(100*time.Millisecond))

	w.StartAsync()
	time.Sleep(50 * time.Millisecond)
	w.Stop()
}

func TestWatcher_ReloadOnRotation(t *testing.T) {
	w, certFile, keyFile := newTestWatcher(t, WithDebounce(50*time.Millisecond))

	before, err := w.GetCertificate(nil)
	if err != nil {
		t.Fatalf("GetCertificate() error = %v", err)
	}

	w.StartAsync()
	defer w.Stop()
	time.Sleep(100 * time.Millisecond)

	// Rotate the pair on disk, as an ACME renewal would.
	writeServingPair(t, certFile, keyFile)
	time.Sleep(300 * time.Millisecond)

	after, err := w.GetCertificate(nil)
	if err != nil {
		t.Fatalf("GetCertificate() error = %v", err)
	}
	if after == nil {
		t.Fatal("GetCertificate() returned nil after rotation")
	}
	if string(after.Certificate[0]) == string(before.Certificate[0]) {
		t.Error("serving certificate was not reloaded after rotation")
	}
}

func TestWatcher_Options(t *testing.T) {
	logger := quietLogger()
	w, _, _ := newTestWatcher(t, WithLogger(logger), WithDebounce(200*time.Millisecond))
	defer w.Stop()

	if w.logger != logger {
		t.Error("WithLogger() option not applied")
	}
	if w.debounce != 200*time.Millisecond {
		t.Errorf("debounce = %v, want 200ms", w.debounce)
	}
}

func TestWatcher_ServesThroughTLSConfig(t *testing.T) {
	w, _, _ := newTestWatcher(t)
	defer w.Stop()

	cfg := &tls.Config{
		GetCertificate: w.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}

	cert, err := cfg.GetCertificate(&tls.ClientHelloInfo{})
	if err != nil {
		t.Fatalf("GetCertificate() error = %v", err)
	}
	if cert == nil {
		t.Fatal("GetCertificate() returned nil")
	}
}
