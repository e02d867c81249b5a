package gateway

import (
	"context"
	"crypto/tls"
	"encoding/pem"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcncl/enphase-api/internal/errors"
)

// Trust downloads the certificate host presents and stores it in certFile
// as PEM, so later connections can be pinned to it.
func Trust(ctx context.Context, host, certFile string) error {
	addr, err := dialAddress(host)
	if err != nil {
		return errors.NewInputError(fmt.Sprintf("invalid gateway host %q", host), err)
	}

	dialer := &tls.Dialer{Config: &tls.Config{InsecureSkipVerify: true}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.NewFetchError("connecting to "+addr, err)
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return errors.NewFetchError(addr, fmt.Errorf("no certificate presented"))
	}

	if dir := filepath.Dir(certFile); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.NewOutputError("failed to create "+dir, err)
		}
	}

	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certs[0].Raw})
	if err := os.WriteFile(certFile, data, 0o644); err != nil {
		return errors.NewOutputError("failed to write "+certFile, err)
	}
	return nil
}

// dialAddress turns "https://envoy.local" or "envoy.local:8443" into host:port.
func dialAddress(host string) (string, error) {
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	u, err := url.Parse(host)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("missing host name")
	}
	port := u.Port()
	if port == "" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
