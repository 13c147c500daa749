// Package journal keeps an append-only CBOR audit trail of check-ins,
// expiries and delivery outcomes. The switch state itself is never
// restored from it.
package journal
