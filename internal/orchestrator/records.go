package orchestrator

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/arbiterhq/arbiter/internal/model"
)

// RecordStore persists evaluation records as one JSON object per line,
// append-only. A record is re-appended on every status change; replay keeps
// the last line per (task, method), which makes interrupted runs resumable.
// Each record is written with a single write call so readers never see a
// half-written record; a torn final line after a crash fails to parse and is
// skipped on replay.
type RecordStore struct {
	mu      sync.Mutex
	file    *os.File
	records map[string]*model.EvaluationRecord
}

// OpenRecordStore opens (creating it if needed) the record log at path and
// replays any existing records.
func OpenRecordStore(path string) (*RecordStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create record dir: %w", err)
	}

	records := make(map[string]*model.EvaluationRecord)
	if existing, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(existing)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var rec model.EvaluationRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				continue // Torn or corrupt line
			}
			records[rec.Key()] = &rec
		}
		_ = existing.Close()
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("replay records: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("open records: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open records for append: %w", err)
	}

	return &RecordStore{file: file, records: records}, nil
}

// Get returns a copy of the record for (taskID, method), if any.
func (s *RecordStore) Get(taskID, method string) (*model.EvaluationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[model.RecordKey(taskID, method)]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

// Put appends the record to the log and updates the in-memory view.
func (s *RecordStore) Put(rec *model.EvaluationRecord) error {
	rec.UpdatedAt = time.Now().UTC()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	cp := *rec
	s.records[rec.Key()] = &cp
	return nil
}

// All returns every known record, ordered by task then method.
func (s *RecordStore) All() []*model.EvaluationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.EvaluationRecord, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TaskID != out[j].TaskID {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// Close flushes and closes the log.
func (s *RecordStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}
