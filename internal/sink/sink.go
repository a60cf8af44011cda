package sink

// Sink consumes opaque log records.
// Implementations must be safe for concurrent use.
type Sink interface {
	// Append persists a single record. Records that do not already end
	// in a newline gain exactly one.
	Append(p []byte) error

	// Sync flushes buffered data to stable storage.
	Sync() error

	// Close flushes any buffered data and releases resources.
	Close() error
}
