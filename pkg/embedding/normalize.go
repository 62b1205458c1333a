package embedding

// Normalize pads or truncates vec to exactly dim entries so that every
// persisted embedding matches the configured storage dimension regardless of
// the provider's native dimension. Shorter vectors are zero-padded;
// longer vectors are truncated, which is lossy and deliberately accepted to
// keep the storage schema stable across provider swaps.
func Normalize(vec []float32, dim int) []float32 {
	if dim <= 0 {
		return nil
	}

	out := make([]float32, dim)
	copy(out, vec)
	return out
}
