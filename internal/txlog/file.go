package txlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"

	"github.com/natefinch/atomic"
	"github.com/sirupsen/logrus"
)

var ErrCorruptLog = errors.New("transaction log is corrupt")

// FileLog keeps the whole history as a JSON array in a single file.
type FileLog struct {
	path   string
	logger logrus.FieldLogger
	mu     sync.Mutex
}

func NewFileLog(path string, logger logrus.FieldLogger) *FileLog {
	return &FileLog{path: path, logger: logger}
}

// Append refuses to write when the existing history cannot be read, so a
// corrupt file is never replaced by a shorter one.
func (l *FileLog) Append(ctx context.Context, record Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	docs, err := l.load()
	if err != nil {
		return err
	}
	docs = append(docs, newRecordDoc(record))

	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transaction log: %w", err)
	}
	if err := atomic.WriteFile(l.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write transaction log %s: %w", l.path, err)
	}
	return nil
}

func (l *FileLog) ListFor(ctx context.Context, userID string) []Record {
	docs, err := l.load()
	if err != nil {
		l.logger.WithError(err).WithField("user_id", userID).Warn("transaction history unavailable")
		return []Record{}
	}

	records := make([]Record, 0)
	for _, doc := range docs {
		if doc.UserID != userID {
			continue
		}
		record, err := doc.record()
		if err != nil {
			l.logger.WithError(err).WithField("user_id", userID).Warn("skipping malformed transaction record")
			continue
		}
		records = append(records, record)
	}
	sortNewestFirst(records)
	return records
}

func (l *FileLog) load() ([]recordDoc, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []recordDoc{}, nil
		}
		return nil, fmt.Errorf("read transaction log %s: %w", l.path, err)
	}

	var docs []recordDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptLog, err)
	}
	return docs, nil
}

// sortNewestFirst orders by timestamp, later appends first on ties.
func sortNewestFirst(records []Record) {
	slices.Reverse(records)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
}
