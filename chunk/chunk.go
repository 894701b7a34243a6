// Package chunk splits ordered sequences into bounded batches and joins
// translated batches back together.
package chunk

// DefaultSize is the per-request text limit of the Primary engine.
const DefaultSize = 50

// Split divides items into consecutive parts of at most size elements.
// A size <= 0 yields a single part. An empty input yields no parts.
// Parts share the backing array of items.
func Split[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}
	parts := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		parts = append(parts, items[i:end:end])
	}
	return parts
}

// Join concatenates parts in order.
func Join[T any](parts [][]T) []T {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]T, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Sizes returns the length of every part, in order.
func Sizes[T any](parts [][]T) []int {
	sizes := make([]int, len(parts))
	for i, p := range parts {
		sizes[i] = len(p)
	}
	return sizes
}
