package interfaces

// Repository defines the interface for index persistence backends
type Repository interface {
	Index() IndexRepository

	// Close releases the backend connection. Safe to call on
	// connectionless backends.
	Close() error
}
