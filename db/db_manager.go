package db

import (
	"context"
	"log/slog"

	"memeatlas/models"
)

// OperationWithResult represents a database operation that returns a result
type OperationWithResult struct {
	Execute func() (interface{}, error)
	Result  chan OperationResult
}

// OperationResult contains the result of an operation
type OperationResult struct {
	Data  interface{}
	Error error
}

// DBManager manages serialized access to the database
type DBManager struct {
	resultOpQueue chan OperationWithResult
	stopping      chan struct{}
}

// NewDBManager creates a new database manager
func NewDBManager() *DBManager {
	m := &DBManager{
		resultOpQueue: make(chan OperationWithResult, 100),
		stopping:      make(chan struct{}),
	}

	go m.worker()
	slog.Info("db_manager_started")

	return m
}

// worker processes operations one at a time
func (m *DBManager) worker() {
	for {
		select {
		case op := <-m.resultOpQueue:
			data, err := op.Execute()
			op.Result <- OperationResult{Data: data, Error: err}
		case <-m.stopping:
			return
		}
	}
}

// ExecuteOperationWithResult queues a database operation and waits for its result
func (m *DBManager) ExecuteOperationWithResult(execute func() (interface{}, error)) (interface{}, error) {
	resultChan := make(chan OperationResult, 1)
	m.resultOpQueue <- OperationWithResult{
		Execute: execute,
		Result:  resultChan,
	}
	result := <-resultChan
	return result.Data, result.Error
}

// Stop stops the database manager
func (m *DBManager) Stop() {
	close(m.stopping)
}

// UpsertLocation serializes location upserts
func (m *DBManager) UpsertLocation(ctx context.Context, repo LocationRepository, location *models.LocationRecord) (*models.LocationRecord, error) {
	result, err := m.ExecuteOperationWithResult(func() (interface{}, error) {
		return repo.Upsert(ctx, location)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.LocationRecord), nil
}

// CreateMeme serializes meme inserts
func (m *DBManager) CreateMeme(ctx context.Context, repo MemeRepository, meme *models.MemeRecord) (*models.MemeRecord, error) {
	result, err := m.ExecuteOperationWithResult(func() (interface{}, error) {
		return repo.Create(ctx, meme)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.MemeRecord), nil
}
