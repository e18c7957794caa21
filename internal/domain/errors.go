package domain

import "errors"

// Error kinds shared across catalogues. Handlers map these to HTTP
// status codes; nothing else is surfaced as a request failure.
var (
	// ErrSchemaViolation: the request did not parse to the expected
	// record shape. 400 with a field-path message.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrBatchTooLarge: the request exceeded the configured batch cap.
	ErrBatchTooLarge = errors.New("batch too large")

	// ErrCatalogueUnavailable: the catalogue was not loaded. 500; the
	// service reports unhealthy on the next health probe.
	ErrCatalogueUnavailable = errors.New("catalogue unavailable")

	// ErrUnknownExplanation: no retained trace for the requested id.
	ErrUnknownExplanation = errors.New("unknown explanation id")
)
