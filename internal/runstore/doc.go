// Package runstore persists the audit run ledger and completed reports in
// SQLite.
package runstore
