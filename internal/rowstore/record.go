// Package rowstore is the table storage behind the local backend. Rows travel
// as Records: JSON-shaped maps whose timestamp columns hold time.Time values.
package rowstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modernplatform/modern-platform/internal/backend"
)

// TableAccounts holds local password accounts.
const TableAccounts = "auth_users"

// Unique lists, per table, the columns besides "id" that must be unique.
var Unique = map[string][]string{
	backend.TableProfiles:        nil,
	backend.TablePosts:           nil,
	backend.TableContactMessages: nil,
	TableAccounts:                {"email"},
}

var timestampColumns = map[string]bool{"created_at": true, "updated_at": true}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Record is one stored row.
type Record map[string]any

// Store is an unscoped table store.
type Store interface {
	Select(ctx context.Context, table string, q backend.Query) ([]Record, error)
	// Insert assigns "id" and "created_at" when absent and returns the stored row.
	Insert(ctx context.Context, table string, rec Record) (Record, error)
	// Update sets "updated_at" and returns the number of matched rows.
	Update(ctx context.Context, table string, eq map[string]string, patch Record) (int64, error)
	Delete(ctx context.Context, table string, eq map[string]string) (int64, error)
}

// ToRecord converts a json-tagged value into a Record.
func ToRecord(v any) (Record, error) {
	if r, ok := v.(Record); ok {
		return r.clone(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	rec.parseTimestamps()
	return rec, nil
}

// Decode writes records into dest through json tags. dest is a pointer to a
// slice for many records or a pointer to a struct for one.
func Decode(src any, dest any) error {
	if dest == nil {
		return nil
	}
	b, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	return nil
}

func (r Record) clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		if nested, ok := v.(Record); ok {
			v = nested.clone()
		}
		out[k] = v
	}
	return out
}

func (r Record) parseTimestamps() {
	for k := range timestampColumns {
		s, ok := r[k].(string)
		if !ok {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			r[k] = t.UTC()
		}
	}
}

// Matches reports whether every equality filter holds for r.
func (r Record) Matches(eq map[string]string) bool {
	for k, want := range eq {
		v, ok := r[k]
		if !ok || v == nil || fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}

// prepareInsert fills database defaults.
func prepareInsert(rec Record, now time.Time) Record {
	out := rec.clone()
	if id, _ := out["id"].(string); id == "" {
		out["id"] = uuid.NewString()
	}
	if _, ok := out["created_at"]; !ok {
		out["created_at"] = now.UTC()
	}
	return out
}

func preparePatch(patch Record, now time.Time) Record {
	out := patch.clone()
	delete(out, "id")
	delete(out, "created_at")
	out["updated_at"] = now.UTC()
	return out
}

// shape applies the selected column list to rec and to its embedded row.
func shape(rec Record, q backend.Query) Record {
	out := rec
	if len(q.Columns) > 0 {
		out = make(Record, len(q.Columns)+1)
		for _, c := range q.Columns {
			if v, ok := rec[c]; ok {
				out[c] = v
			}
		}
	}
	if q.Embed != nil {
		emb, _ := rec[q.Embed.As].(Record)
		if emb != nil && len(q.Embed.Columns) > 0 {
			trimmed := make(Record, len(q.Embed.Columns))
			for _, c := range q.Embed.Columns {
				trimmed[c] = emb[c]
			}
			emb = trimmed
		}
		if emb == nil {
			out[q.Embed.As] = nil
		} else {
			out[q.Embed.As] = emb
		}
	}
	return out
}

// sortRecords orders rows by one column; rows missing the column sort last.
func sortRecords(rows []Record, o *backend.Order) {
	if o == nil {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		c := compareValues(rows[i][o.Column], rows[j][o.Column])
		if o.Desc {
			return c > 0
		}
		return c < 0
	})
}

func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func checkIdent(names ...string) error {
	for _, n := range names {
		if !identRe.MatchString(n) {
			return fmt.Errorf("invalid identifier %q", n)
		}
	}
	return nil
}

func checkQuery(table string, q backend.Query) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	if err := checkIdent(q.Columns...); err != nil {
		return err
	}
	for k := range q.Eq {
		if err := checkIdent(k); err != nil {
			return err
		}
	}
	if q.Order != nil {
		if err := checkIdent(q.Order.Column); err != nil {
			return err
		}
	}
	if q.Embed != nil {
		if err := checkIdent(q.Embed.Table, q.Embed.Column, q.Embed.As); err != nil {
			return err
		}
		if err := checkIdent(q.Embed.Columns...); err != nil {
			return err
		}
	}
	return nil
}

func recordKeys(r Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
