// Command guardian audits video content against a compliance rule index and
// serves the audit API.
package main
