// Package utils provides input validation for the HTTP transport.
//
// Validators return descriptive errors suitable for 400 responses:
//   - ValidateID: session IDs and other identifiers
//   - ValidateLabel: session labels (free text, no control characters)
//   - ValidateArgs: client-supplied session arguments
package utils
