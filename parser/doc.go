// Package parser turns raw generator and log output into JSON values.
//
// ExtractJSON pulls the JSON object out of free-form generator text.
// DecodeOutput decodes that candidate, and ParseJSONLines decodes newline-delimited
// JSON streams such as the audit log.
package parser
