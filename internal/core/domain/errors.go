package domain

import "errors"

// Domain errors - used across all layers.
// Adapters wrap these with fmt.Errorf("%w") so callers can match on kind
// with errors.Is. A provider failure may wrap two of them, e.g. both
// ErrEmbeddingProvider and ErrProviderTimeout.
var (
	// ErrConfiguration indicates a bad strategy, provider name or setting
	ErrConfiguration = errors.New("configuration error")

	// ErrExtraction indicates a document could not be read or is not a valid document
	ErrExtraction = errors.New("extraction failed")

	// ErrEmbeddingProvider indicates the embedding provider call failed
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrGeneration indicates the language model provider call failed
	ErrGeneration = errors.New("generation failed")

	// ErrProviderTimeout indicates a provider call exceeded its deadline.
	// This is the only provider error that is safe to retry.
	ErrProviderTimeout = errors.New("provider timeout")

	// ErrProviderAuth indicates the provider rejected the configured credentials
	ErrProviderAuth = errors.New("provider authentication failed")

	// ErrStorage indicates a persistence read or write failed
	ErrStorage = errors.New("storage error")

	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrCorruptIndex indicates a persisted index is unreadable or was built
	// with a different embedding dimension than the one configured
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrUninitializedIndex indicates the vector index was never built or loaded
	ErrUninitializedIndex = errors.New("index not initialized")

	// ErrInvalidQuery indicates the query is empty, too short or asks for a bad top_k
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidUpload indicates an uploaded document was rejected (missing, empty, too large)
	ErrInvalidUpload = errors.New("invalid upload")

	// ErrUnsupportedMediaType indicates no extractor handles the uploaded file type
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrIndexBusy indicates another writer holds the lock for the index path
	ErrIndexBusy = errors.New("index busy")
)

// IsRetryable reports whether an operation that failed with err may succeed
// if attempted again later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProviderTimeout) || errors.Is(err, ErrIndexBusy)
}

// IsClientError reports whether err was caused by the caller rather than
// by a provider or the storage layer.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidQuery) ||
		errors.Is(err, ErrInvalidUpload) ||
		errors.Is(err, ErrUnsupportedMediaType) ||
		errors.Is(err, ErrUninitializedIndex)
}
