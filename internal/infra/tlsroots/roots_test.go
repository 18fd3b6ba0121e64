package tlsroots

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewPool(t *testing.T) {
	pool, err := NewPool()
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	if pool.Pool() == nil {
		t.Fatal("Pool() returned nil")
	}
}

func TestNewEmptyPool(t *testing.T) {
	pool := NewEmptyPool()
	if pool.Pool() == nil {
		t.Fatal("Pool() returned nil")
	}
}

func TestAddCertPEM(t *testing.T) {
	pool := NewEmptyPool()
	if err := pool.AddCertPEM(gatewayCAPEM(t)); err != nil {
		t.Fatalf("AddCertPEM() error = %v", err)
	}
}

func TestAddCertPEM_NoCerts(t *testing.T) {
	pool := NewEmptyPool()

	if err := pool.AddCertPEM(nil); err != ErrNoCertsFound {
		t.Errorf("AddCertPEM(nil) error = %v, want %v", err, ErrNoCertsFound)
	}
	if err := pool.AddCertPEM([]byte("ca_file points at garbage")); err != ErrNoCertsFound {
		t.Errorf("AddCertPEM(garbage) error = %v, want %v", err, ErrNoCertsFound)
	}

	// A key-only PEM file has blocks but no certificates.
	keyOnly := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: []byte{0x01}})
	if err := pool.AddCertPEM(keyOnly); err != ErrNoCertsFound {
		t.Errorf("AddCertPEM(key-only) error = %v, want %v", err, ErrNoCertsFound)
	}
}

func TestAddCertPEM_InvalidCert(t *testing.T) {
	pool := NewEmptyPool()

	bad := pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: []byte("not DER"),
	})
	if err := pool.AddCertPEM(bad); err == nil {
		t.Error("AddCertPEM() should fail on undecodable certificate bytes")
	}
}

func TestAddCertPEM_Bundle(t *testing.T) {
	// ca_file may hold a bundle (old and new gateway CA during rotation).
	pool := NewEmptyPool()
	bundle := append(gatewayCAPEM(t), gatewayCAPEM(t)...)
	if err := pool.AddCertPEM(bundle); err != nil {
		t.Fatalf("AddCertPEM() error = %v", err)
	}
}

func TestAddCertFile(t *testing.T) {
	pool := NewEmptyPool()

	caFile := filepath.Join(t.TempDir(), "gateway-ca.pem")
	if err := os.WriteFile(caFile, gatewayCAPEM(t), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := pool.AddCertFile(caFile); err != nil {
		t.Fatalf("AddCertFile() error = %v", err)
	}
}

func TestAddCertFile_NotFound(t *testing.T) {
	pool := NewEmptyPool()
	if err := pool.AddCertFile("/nonexistent/gateway-ca.pem"); err == nil {
		t.Error("AddCertFile() expected error for missing file")
	}
}

func TestTLSConfig(t *testing.T) {
	pool := NewEmptyPool()

	cfg := pool.TLSConfig()
	if cfg == nil {
		t.Fatal("TLSConfig() returned nil")
	}
	if cfg.RootCAs != pool.Pool() {
		t.Error("TLSConfig().RootCAs is not the pool")
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("TLSConfig().MinVersion = %#x, want TLS 1.2", cfg.MinVersion)
	}
}

func TestTLSConfig_VerifiesPrivateCA(t *testing.T) {
	ca := gatewayCA(t)

	pool := NewEmptyPool()
	pool.AddCert(ca)

	opts := x509.VerifyOptions{Roots: pool.Pool()}
	if _, err := ca.Verify(opts); err != nil {
		t.Fatalf("Verify() against trusted pool error = %v", err)
	}

	empty := NewEmptyPool()
	if _, err := ca.Verify(x509.VerifyOptions{Roots: empty.Pool()}); err == nil {
		t.Error("Verify() should fail against an empty pool")
	}
}

// gatewayCA creates a self-signed CA like the one operators issue for
// a private credgate-server deployment.
func gatewayCA(t *testing.T) *x509.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"CredGate Test"},
			CommonName:   "credgate.internal",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate() error = %v", err)
	}
	return cert
}

func gatewayCAPEM(t *testing.T) []byte {
	t.Helper()
	return pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: gatewayCA(t).Raw,
	})
}
