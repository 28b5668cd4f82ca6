package storage

import "workbench/internal/domain"

// BatchFailure is one record a batch write rejected, with every reason the store gave.
type BatchFailure[T any] struct {
	Record  T
	Reasons []string
}

// BatchResult splits a batch write into what was stored and what was not.
// Callers must look at both lists.
type BatchResult[T any] struct {
	Succeeded []T
	Failed    []BatchFailure[T]
	// Positions holds, for each Succeeded record, its index in the submitted batch.
	Positions []int
}

// First returns the first stored record.
func (b BatchResult[T]) First() (T, bool) {
	if len(b.Succeeded) == 0 {
		var zero T
		return zero, false
	}
	return b.Succeeded[0], true
}

// Reasons flattens every failure reason, in batch order.
func (b BatchResult[T]) Reasons() []string {
	var out []string
	for _, f := range b.Failed {
		out = append(out, f.Reasons...)
	}
	return out
}

// Err aggregates the failures into a PersistenceError, or returns nil when there are none.
func (b BatchResult[T]) Err(operation string) error {
	if len(b.Failed) == 0 {
		return nil
	}
	return &domain.PersistenceError{Operation: operation, Reasons: b.Reasons()}
}

func failureReasons(r RecordResult, fallback string) []string {
	if len(r.Errors) > 0 {
		return append([]string(nil), r.Errors...)
	}
	if r.Message != "" {
		return []string{r.Message}
	}
	return []string{fallback}
}

// collectBatch turns a store envelope into a BatchResult. Results are matched to the
// submitted records by position; a missing result counts as a failure.
func collectBatch[T any](resp *BatchResponse, submitted []T, decode func(Record) (T, error)) BatchResult[T] {
	var out BatchResult[T]
	if resp == nil {
		resp = &BatchResponse{Message: "store returned no response"}
	}

	n := max(len(submitted), len(resp.Results))
	for i := 0; i < n; i++ {
		var rec T
		if i < len(submitted) {
			rec = submitted[i]
		}
		if i >= len(resp.Results) {
			reason := resp.Message
			if reason == "" {
				reason = "no result returned for record"
			}
			out.Failed = append(out.Failed, BatchFailure[T]{Record: rec, Reasons: []string{reason}})
			continue
		}

		r := resp.Results[i]
		if !r.Success {
			out.Failed = append(out.Failed, BatchFailure[T]{Record: rec, Reasons: failureReasons(r, "unknown error")})
			continue
		}
		decoded, err := decode(r.Data)
		if err != nil {
			out.Failed = append(out.Failed, BatchFailure[T]{Record: rec, Reasons: []string{err.Error()}})
			continue
		}
		out.Succeeded = append(out.Succeeded, decoded)
		out.Positions = append(out.Positions, i)
	}
	return out
}
