package ingestion_engine

import "fmt"

// DimensionMismatchError is returned when a provider's vectors do not have the
// configured length. Retrying cannot fix it.
type DimensionMismatchError struct {
	Got  int
	Want int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: got %d, want %d", e.Got, e.Want)
}

func (e *DimensionMismatchError) Terminal() bool { return true }
