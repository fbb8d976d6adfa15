package serial

// Limits caps the sizes a Deserializer will accept for variable-length
// values, bounding the memory a malicious or malformed peer can force it
// to allocate. A zero value in any field means "no limit" for that field.
type Limits struct {
	MaxStringLen    int
	MaxContainerLen int
	MaxStreamLen    int64
}

// DefaultLimits returns a conservative set of limits suitable for
// untrusted wire input.
func DefaultLimits() Limits {
	return Limits{
		MaxStringLen:    64 * 1024,
		MaxContainerLen: 64 * 1024,
		MaxStreamLen:    16 * 1024 * 1024,
	}
}
