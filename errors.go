package hrgraph

import "errors"

var (
	// ErrConfigMissing is returned when a required configuration value is
	// absent. Startup fails before any network call is attempted.
	ErrConfigMissing = errors.New("hrgraph: required configuration missing")

	// ErrSchemaViolation marks an extracted node or relationship that falls
	// outside the schema catalog. Violating elements are dropped during
	// ingestion; they are never persisted.
	ErrSchemaViolation = errors.New("hrgraph: schema violation")

	// ErrIngestionFailed is returned when a document cannot be processed.
	// It is fatal for that document only; other documents in the batch
	// are unaffected.
	ErrIngestionFailed = errors.New("hrgraph: ingestion failed")

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("hrgraph: unsupported document format")

	// ErrParsingFailed is returned when document parsing fails.
	ErrParsingFailed = errors.New("hrgraph: parsing failed")

	// ErrEmbeddingFailed is returned when embedding generation fails.
	ErrEmbeddingFailed = errors.New("hrgraph: embedding generation failed")

	// ErrRetrievalFailed is returned when a retrieval request cannot be
	// served (embedding, search, or completion call unavailable). It is
	// fatal per request and surfaces to the caller.
	ErrRetrievalFailed = errors.New("hrgraph: retrieval failed")

	// ErrLLMUnavailable is returned when the language-model service is
	// unreachable.
	ErrLLMUnavailable = errors.New("hrgraph: LLM provider unavailable")

	// ErrNoResults is returned when retrieval yields no matching chunks.
	ErrNoResults = errors.New("hrgraph: no results found")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("hrgraph: store is closed")

	// ErrDocumentNotFound is returned when a document path is not in the
	// ingest ledger.
	ErrDocumentNotFound = errors.New("hrgraph: document not found")
)
