// Package notify sends run lifecycle notifications to an ntfy-compatible
// webhook endpoint.
package notify
