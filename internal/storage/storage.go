package storage

import "escrowScope/internal/model"

// Storage defines a sink for normalized log records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}
