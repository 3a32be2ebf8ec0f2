package storage

import "tokenArena/internal/model"

// ResultSink receives the outcome records of applied operations.
type ResultSink interface {
	PutResultBatch(results []model.ResultRecord) error
}
