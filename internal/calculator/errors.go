package calculator

import "errors"

var (
	// ErrMissingJobID is returned when a work order has no job id.
	ErrMissingJobID = errors.New("work order is missing jobId")
	// ErrMissingStoreNumber is returned when a work order or dispenser has no store number.
	ErrMissingStoreNumber = errors.New("record is missing storeNumber")
)
