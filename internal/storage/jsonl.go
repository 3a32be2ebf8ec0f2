package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tokenArena/internal/model"
)

// JsonlSink writes result records to a JSONL file.
type JsonlSink struct {
	path string
	mu   sync.Mutex
}

func NewJsonlSink(path string) *JsonlSink {
	return &JsonlSink{path: path}
}

// PutResultBatch appends a batch of result records as JSON lines.
func (s *JsonlSink) PutResultBatch(results []model.ResultRecord) error {
	if len(results) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range results {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal result record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write result record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
