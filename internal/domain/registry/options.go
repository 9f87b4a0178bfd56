package registry

// Option applies a configuration option to the in-memory registry.
type Option func(*inMemoryRegistry)

// WithCapacity pre-sizes the registry for the expected number of participants.
func WithCapacity(capacity int) Option {
	return func(r *inMemoryRegistry) {
		if capacity > 0 {
			r.capacity = capacity
		}
	}
}
