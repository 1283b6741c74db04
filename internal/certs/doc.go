// Package certs monitors mTLS certificate health. Check dials a TLS endpoint
// and classifies its leaf certificate (valid, expiring, expired,
// unreachable); Monitor runs the checks on an interval, serves the cached
// inventory to the REST API, and broadcasts cert_expiry_warning envelopes
// for certificates inside the warning window.
package certs
