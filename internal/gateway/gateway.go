// Package gateway talks to an Enphase IQ Gateway on the local network.
package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mcncl/enphase-api/internal/config"
	"github.com/mcncl/enphase-api/internal/errors"
	"github.com/mcncl/enphase-api/internal/models"
	"github.com/mcncl/enphase-api/internal/parser"
)

// validToken is the exact page the gateway serves for an accepted token.
const validToken = "<!DOCTYPE html><h2>Valid token.</h2>\n"

// Gateway is an authenticated session with one gateway. The session cookie
// obtained by Login is sent with every later call.
type Gateway struct {
	base   string
	client *http.Client
	log    logrus.FieldLogger
}

// Request is one API call.
type Request struct {
	// Method defaults to GET.
	Method string
	// Path is the request target, e.g. "/production.json?details=1".
	Path string
	// JSON is sent as an application/json body when set.
	JSON []byte
	// Form is sent verbatim as a form body when set and JSON is not.
	Form string
	// Raw asks for the response text rather than JSON.
	Raw bool
}

// Sample is the body of a response.
type Sample struct {
	Body string
	Raw  bool
}

// Value decodes a JSON sample. An empty body is nil.
func (s Sample) Value() (models.JSONValue, error) {
	if strings.TrimSpace(s.Body) == "" {
		return nil, nil
	}
	return parser.Value(s.Body)
}

// New creates a gateway client for cfg. When cfg.Gateway.CertFile exists
// only that certificate is trusted, whatever host name it was issued for;
// otherwise the connection is not verified at all.
func New(cfg *config.Config, log logrus.FieldLogger) (*Gateway, error) {
	tlsConfig, err := tlsConfigFor(cfg.Gateway.CertFile)
	if err != nil {
		return nil, err
	}
	if tlsConfig.VerifyPeerCertificate == nil {
		log.WithField("cert_file", cfg.Gateway.CertFile).Warn("No gateway certificate, connections will not be verified")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig

	return &Gateway{
		base: cfg.BaseURL(),
		client: &http.Client{
			Transport: transport,
			Jar:       jar,
			Timeout:   cfg.Gateway.Timeout,
		},
		log: log,
	}, nil
}

func tlsConfigFor(certFile string) (*tls.Config, error) {
	if certFile == "" {
		return &tls.Config{InsecureSkipVerify: true}, nil
	}
	data, err := os.ReadFile(certFile)
	if os.IsNotExist(err) {
		return &tls.Config{InsecureSkipVerify: true}, nil
	}
	if err != nil {
		return nil, errors.NewInputError(fmt.Sprintf("failed to read %s", certFile), err)
	}
	return pinnedTLS(data)
}

// pinnedTLS trusts the certificates in pemData without checking the host
// name; the gateway's certificate is issued for its serial number.
func pinnedTLS(pemData []byte) (*tls.Config, error) {
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(pemData) {
		return nil, errors.NewInputError("gateway certificate", fmt.Errorf("no PEM certificate found"))
	}

	return &tls.Config{
		// Verification happens below, against roots only.
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return fmt.Errorf("gateway presented no certificate")
			}
			certs := make([]*x509.Certificate, 0, len(rawCerts))
			for _, raw := range rawCerts {
				cert, err := x509.ParseCertificate(raw)
				if err != nil {
					return err
				}
				certs = append(certs, cert)
			}
			intermediates := x509.NewCertPool()
			for _, cert := range certs[1:] {
				intermediates.AddCert(cert)
			}
			_, err := certs[0].Verify(x509.VerifyOptions{Roots: roots, Intermediates: intermediates})
			return err
		},
	}, nil
}

// Login exchanges a JWT for a session cookie.
func (g *Gateway) Login(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base+"/auth/check_jwt", nil)
	if err != nil {
		return errors.NewFetchError("login", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return errors.NewFetchError("login", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewFetchError("login", err)
	}
	if resp.StatusCode != http.StatusOK || string(body) != validToken {
		return errors.NewFetchError(fmt.Sprintf("login returned %s", resp.Status), errors.ErrLoginFailed)
	}

	g.log.Debug("Gateway session established")
	return nil
}

// Call performs one API call.
func (g *Gateway) Call(ctx context.Context, r Request) (Sample, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	what := method + " " + r.Path

	var body io.Reader
	contentType := ""
	switch {
	case len(r.JSON) > 0:
		body = bytes.NewReader(r.JSON)
		contentType = "application/json"
	case r.Form != "":
		body = strings.NewReader(r.Form)
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, method, g.base+r.Path, body)
	if err != nil {
		return Sample{}, errors.NewFetchError(what, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Sample{}, errors.NewFetchError(what, err)
	}
	defer resp.Body.Close()

	// Sessions expire after ten minutes of inactivity.
	if resp.StatusCode == http.StatusUnauthorized {
		return Sample{}, errors.NewFetchError(what+" returned "+resp.Status, errors.ErrSessionExpired)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Sample{}, errors.NewFetchError(what, err)
	}

	sample := Sample{Body: string(data), Raw: r.Raw}
	if !r.Raw && len(bytes.TrimSpace(data)) > 0 && !json.Valid(data) {
		return Sample{}, errors.NewParsingError(what, errors.ErrInvalidJSON)
	}
	return sample, nil
}
