// Package smtp delivers escalation messages over SMTP with mandatory TLS
// and PLAIN authentication.
package smtp
