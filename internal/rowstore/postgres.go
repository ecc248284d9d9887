package rowstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/modernplatform/modern-platform/internal/backend"
)

// PostgresStore maps tables one-to-one onto PostgreSQL tables created by the
// migrations in internal/database/migrations. Rows cross the driver as JSON.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

func quote(name string) string { return pgx.Identifier{name}.Sanitize() }

// where renders equality filters against alias t; comparisons are textual so
// uuid and text columns accept the same string filters.
func where(eq map[string]string, args []any) (string, []any) {
	if len(eq) == 0 {
		return "", args
	}
	keys := make([]string, 0, len(eq))
	for k := range eq {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, eq[k])
		parts = append(parts, fmt.Sprintf("t.%s::text = $%d", quote(k), len(args)))
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func (s *PostgresStore) Select(ctx context.Context, table string, q backend.Query) ([]Record, error) {
	if err := checkQuery(table, q); err != nil {
		return nil, err
	}
	row := "to_jsonb(t.*)"
	if q.Embed != nil {
		row = fmt.Sprintf("to_jsonb(t.*) || jsonb_build_object('%s', (SELECT to_jsonb(e.*) FROM %s e WHERE e.id::text = t.%s::text LIMIT 1))",
			q.Embed.As, quote(q.Embed.Table), quote(q.Embed.Column))
	}
	sql := fmt.Sprintf("SELECT %s FROM %s t", row, quote(table))
	cond, args := where(q.Eq, nil)
	sql += cond
	if q.Order != nil {
		dir := "ASC"
		if q.Order.Desc {
			dir = "DESC"
		}
		sql += fmt.Sprintf(" ORDER BY t.%s %s", quote(q.Order.Column), dir)
	}
	if q.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		rec, err := recordFromJSON(raw)
		if err != nil {
			return nil, err
		}
		if q.Embed != nil {
			if nested, ok := rec[q.Embed.As].(map[string]any); ok {
				emb := Record(nested)
				emb.parseTimestamps()
				rec[q.Embed.As] = emb
			}
		}
		out = append(out, shape(rec, q))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return out, nil
}

func (s *PostgresStore) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	row := prepareInsert(rec, s.now())
	cols := recordKeys(row)
	if err := checkIdent(cols...); err != nil {
		return nil, err
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
	}
	list := strings.Join(quoted, ", ")
	payload, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encode %s row: %w", table, err)
	}
	sql := fmt.Sprintf("INSERT INTO %[1]s AS t (%[2]s) SELECT %[2]s FROM json_populate_record(NULL::%[1]s, $1::json) RETURNING to_jsonb(t.*)",
		quote(table), list)
	var raw []byte
	if err := s.pool.QueryRow(ctx, sql, string(payload)).Scan(&raw); err != nil {
		return nil, mapPgError(table, "insert", err)
	}
	return recordFromJSON(raw)
}

func (s *PostgresStore) Update(ctx context.Context, table string, eq map[string]string, patch Record) (int64, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}
	p := preparePatch(patch, s.now())
	cols := recordKeys(p)
	if err := checkIdent(cols...); err != nil {
		return 0, err
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = p.%s", quote(c), quote(c))
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("encode %s patch: %w", table, err)
	}
	cond, args := where(eq, []any{string(payload)})
	sql := fmt.Sprintf("UPDATE %[1]s AS t SET %[2]s FROM json_populate_record(NULL::%[1]s, $1::json) AS p%[3]s",
		quote(table), strings.Join(sets, ", "), cond)
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapPgError(table, "update", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Delete(ctx context.Context, table string, eq map[string]string) (int64, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}
	cond, args := where(eq, nil)
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s AS t%s", quote(table), cond), args...)
	if err != nil {
		return 0, mapPgError(table, "delete", err)
	}
	return tag.RowsAffected(), nil
}

func recordFromJSON(raw []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	rec.parseTimestamps()
	return rec, nil
}

func mapPgError(table, op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &backend.APIError{Kind: backend.ErrConflict, Code: pgErr.Code, Message: pgErr.Message}
	}
	return fmt.Errorf("%s %s: %w", op, table, err)
}
