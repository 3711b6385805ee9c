package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	klog "github.com/Klingon-tech/coinvault/internal/log"
)

// RecordPrefix is the key prefix under which all records live.
// A record is stored at rec/<table>/<id>.
const RecordPrefix = "rec/"

// ErrRecordNotFound is returned when a record does not exist.
var ErrRecordNotFound = errors.New("record not found")

// RecordStore stores JSON documents in named tables on top of a DB.
// It is safe for concurrent use.
type RecordStore struct {
	db DB
	mu sync.RWMutex
}

// NewRecordStore creates a record store backed by db.
func NewRecordStore(db DB) *RecordStore {
	return &RecordStore{db: db}
}

func (s *RecordStore) table(name string) (*PrefixDB, error) {
	if name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("invalid table name %q", name)
	}
	return NewPrefixDB(s.db, []byte(RecordPrefix+name+"/")), nil
}

func checkID(id string) error {
	if id == "" || strings.Contains(id, "/") {
		return fmt.Errorf("invalid record id %q", id)
	}
	return nil
}

// Save marshals record to JSON and stores it as table/id, replacing any
// existing record with the same id.
func (s *RecordStore) Save(ctx context.Context, table, id string, record any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := s.table(table)
	if err != nil {
		return err
	}
	if err := checkID(id); err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", table, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := t.Put([]byte(id), data); err != nil {
		return fmt.Errorf("save %s/%s: %w", table, id, err)
	}
	klog.Storage.Debug().Str("table", table).Str("id", id).Int("bytes", len(data)).Msg("Record saved")
	return nil
}

// Get loads table/id into out. Returns ErrRecordNotFound if it does not exist.
func (s *RecordStore) Get(ctx context.Context, table, id string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := s.table(table)
	if err != nil {
		return err
	}
	if err := checkID(id); err != nil {
		return err
	}

	s.mu.RLock()
	data, err := t.Get([]byte(id))
	s.mu.RUnlock()
	if errors.Is(err, ErrKeyNotFound) {
		return fmt.Errorf("%s/%s: %w", table, id, ErrRecordNotFound)
	}
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", table, id, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal %s/%s: %w", table, id, err)
	}
	return nil
}

// Query decodes every record in table whose top-level fields equal the
// filter values into out, which must point to a slice. String fields are
// compared by value, other fields by their JSON text. A nil or empty filter
// matches every record. Records come back in id order.
func (s *RecordStore) Query(ctx context.Context, table string, filter map[string]string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := s.table(table)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	n := 0

	s.mu.RLock()
	err = t.ForEach(nil, func(key, value []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := matches(value, filter)
		if err != nil {
			return fmt.Errorf("record %s/%s: %w", table, key, err)
		}
		if !ok {
			return nil
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		buf.Write(value)
		n++
		return nil
	})
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	buf.WriteByte(']')

	if err := json.Unmarshal(buf.Bytes(), out); err != nil {
		return fmt.Errorf("decode %s query result: %w", table, err)
	}
	return nil
}

// Delete removes table/id. Returns ErrRecordNotFound if it does not exist.
func (s *RecordStore) Delete(ctx context.Context, table, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := s.table(table)
	if err != nil {
		return err
	}
	if err := checkID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := t.Has([]byte(id))
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, err)
	}
	if !ok {
		return fmt.Errorf("%s/%s: %w", table, id, ErrRecordNotFound)
	}
	if err := t.Delete([]byte(id)); err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, err)
	}
	klog.Storage.Debug().Str("table", table).Str("id", id).Msg("Record deleted")
	return nil
}

// DeleteWhere removes every record in table matching filter in a single
// batch and returns how many were removed. A nil filter matches every
// record.
func (s *RecordStore) DeleteWhere(ctx context.Context, table string, filter map[string]string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t, err := s.table(table)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var ids [][]byte
	err = t.ForEach(nil, func(key, value []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := matches(value, filter)
		if err != nil {
			return fmt.Errorf("record %s/%s: %w", table, key, err)
		}
		if ok {
			ids = append(ids, clone(key))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	b := t.NewBatch()
	for _, id := range ids {
		if err := b.Delete(id); err != nil {
			return 0, fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	if err := b.Commit(); err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}
	klog.Storage.Debug().Str("table", table).Int("records", len(ids)).Msg("Records deleted")
	return len(ids), nil
}

func matches(doc []byte, filter map[string]string) (bool, error) {
	if len(filter) == 0 {
		return true, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return false, err
	}
	for name, want := range filter {
		raw, ok := fields[name]
		if !ok {
			return false, nil
		}
		var str string
		if err := json.Unmarshal(raw, &str); err == nil {
			if str != want {
				return false, nil
			}
			continue
		}
		if string(bytes.TrimSpace(raw)) != want {
			return false, nil
		}
	}
	return true, nil
}
