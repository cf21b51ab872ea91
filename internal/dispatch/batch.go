package dispatch

import "github.com/ignite/newsletter-engine/internal/domain"

// Batch is one contiguous slice of the audience. Index is 1-based for
// human-readable error messages.
type Batch struct {
	Index       int
	Total       int
	Subscribers []domain.Subscriber
}

// Partition splits subscribers into batches of at most size, preserving
// order. The last batch may be smaller. A non-positive size yields a
// single batch.
func Partition(subscribers []domain.Subscriber, size int) []Batch {
	if len(subscribers) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(subscribers)
	}

	total := (len(subscribers) + size - 1) / size
	batches := make([]Batch, 0, total)
	for start := 0; start < len(subscribers); start += size {
		end := start + size
		if end > len(subscribers) {
			end = len(subscribers)
		}
		batches = append(batches, Batch{
			Index:       len(batches) + 1,
			Total:       total,
			Subscribers: subscribers[start:end],
		})
	}
	return batches
}
