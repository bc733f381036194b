// Package tlscred builds the tls.Config values this runtime's Conn hands
// to crypto/tls, covering only the handshake contract (ALPN negotiation to
// "h2", minimum version, certificate sourcing): everything past the
// handshake itself is crypto/tls's problem, not this package's.
package tlscred

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"golang.org/x/crypto/acme/autocert"
)

// base returns the tls.Config shared by every credential this package
// builds: TLS 1.2 minimum, TLS 1.3 maximum, and "h2" as the sole ALPN
// protocol offered.
func base() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS13,
		NextProtos: []string{"h2"},
	}
}

// ForClient returns a client-side tls.Config that verifies the server's
// certificate against the system root pool, with serverName used for both
// SNI and hostname verification.
func ForClient(serverName string) *tls.Config {
	cfg := base()
	cfg.ServerName = serverName
	return cfg
}

// ForInsecureClient returns a client-side tls.Config that skips server
// certificate verification. It exists for loopback tests only; it must
// never be wired to a credential reachable from production configuration.
func ForInsecureClient() *tls.Config {
	cfg := base()
	cfg.InsecureSkipVerify = true
	return cfg
}

// ForServerCertFile returns a server-side tls.Config that presents the
// certificate/key pair at certFile/keyFile.
func ForServerCertFile(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	cfg := base()
	cfg.Certificates = []tls.Certificate{cert}
	return cfg, nil
}

// ForServerAutocert returns a server-side tls.Config whose certificates
// are obtained and renewed automatically from an ACME CA (e.g. Let's
// Encrypt) for the given hosts, cached under cacheDir.
func ForServerAutocert(cacheDir string, hosts ...string) *tls.Config {
	mgr := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(hosts...),
		Cache:      autocert.DirCache(cacheDir),
	}
	cfg := mgr.TLSConfig()
	cfg.MinVersion = tls.VersionTLS12
	cfg.MaxVersion = tls.VersionTLS13
	cfg.NextProtos = appendH2(cfg.NextProtos)
	return cfg
}

// ForClientCAFile returns a client-side tls.Config trusting only the CA
// certificate(s) in caFile, for deployments that don't rely on the system
// root pool.
func ForClientCAFile(caFile, serverName string) (*tls.Config, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, ErrBadCAFile
	}
	cfg := base()
	cfg.RootCAs = pool
	cfg.ServerName = serverName
	return cfg, nil
}

func appendH2(protos []string) []string {
	for _, p := range protos {
		if p == "h2" {
			return protos
		}
	}
	return append(protos, "h2")
}
