package certs

import (
	"context"
	"crypto/tls"
	"math"
	"net"
	"net/url"
	"time"
)

const dialTimeout = 10 * time.Second

// Status describes the leaf TLS certificate of one monitored endpoint.
type Status struct {
	Endpoint  string `json:"endpoint"`
	Status    string `json:"status"` // valid | expiring | expired | unreachable
	Issuer    string `json:"issuer,omitempty"`
	NotAfter  string `json:"not_after,omitempty"` // RFC3339
	DaysLeft  int    `json:"days_until_expiry"`
	CheckedAt string `json:"checked_at"` // RFC3339
}

// Check dials the TLS endpoint and returns a Status describing its leaf
// certificate. warnDays controls the valid/expiring boundary.
//
// Returns nil for non-HTTPS endpoints — there is no TLS certificate to
// inspect. Uses a 10-second dial timeout so a slow or unreachable host does
// not block the monitor loop indefinitely.
func Check(ctx context.Context, endpoint string, insecure bool, warnDays int) *Status {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme != "https" {
		return nil
	}

	st := &Status{
		Endpoint:  endpoint,
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
	}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		// No explicit port in the URL — append the HTTPS default.
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			InsecureSkipVerify: insecure, //nolint:gosec // user-configured
		},
	}

	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		st.Status = "unreachable"
		return st
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		st.Status = "unreachable"
		return st
	}

	leaf := peerCerts[0]
	daysLeft := time.Until(leaf.NotAfter).Hours() / 24

	st.NotAfter = leaf.NotAfter.UTC().Format(time.RFC3339)
	st.Issuer = leaf.Issuer.CommonName
	st.DaysLeft = int(math.Floor(daysLeft))

	switch {
	case daysLeft <= 0:
		st.Status = "expired"
	case daysLeft <= float64(warnDays):
		st.Status = "expiring"
	default:
		st.Status = "valid"
	}

	return st
}
