// Package httpapi serves the audit pipeline over HTTP: submit audits, check
// dependency health, and inspect the run ledger.
package httpapi
