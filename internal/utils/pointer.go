package utils

// Ptr returns a pointer to v. Convenience helper for optional wire fields
// where the address of a literal or computed value is needed.
//
// Example:
//
//	req.Temperature = utils.Ptr(0.7)
func Ptr[T any](v T) *T {
	return &v
}
