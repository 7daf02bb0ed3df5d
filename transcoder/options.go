package transcoder

// Options configures encode and decode limits.
type Options struct {
	// MaxVectorLength bounds the element count of vectors.
	MaxVectorLength uint32
	// MaxStringLength bounds strings, in UTF-16 code units.
	MaxStringLength uint32
	// MaxBufferLength bounds raw buffer values, in bytes.
	MaxBufferLength uint32
}

// DefaultOptions returns default limits.
func DefaultOptions() Options {
	return Options{
		MaxVectorLength: 1 << 24,
		MaxStringLength: 1 << 24,
		MaxBufferLength: 1 << 30,
	}
}
