package local

import (
	"context"
	"fmt"

	"github.com/modernplatform/modern-platform/internal/backend"
	"github.com/modernplatform/modern-platform/internal/rowstore"
)

// ownerColumn names, per writable table, the column that must equal the
// caller's account id. Tables missing here and from insertOnly are closed.
var ownerColumn = map[string]string{
	backend.TableProfiles: "id",
	backend.TablePosts:    "user_id",
}

// insertOnly tables accept rows from anyone and expose none.
var insertOnly = map[string]bool{
	backend.TableContactMessages: true,
}

// Rows implements backend.Rows with row-level policies over a rowstore.Store.
type Rows struct {
	store    rowstore.Store
	verifier *verifier
}

func policyError(table string) error {
	return &backend.APIError{Kind: backend.ErrForbidden, Status: 403, Code: "42501",
		Message: fmt.Sprintf("new row violates row-level security policy for table %q", table)}
}

func (r *Rows) Select(ctx context.Context, table string, q backend.Query, dest any) error {
	if _, err := r.verifier.subject(ctx); err != nil {
		return err
	}
	if insertOnly[table] {
		return rowstore.Decode([]rowstore.Record{}, dest)
	}
	if _, ok := ownerColumn[table]; !ok {
		return policyError(table)
	}
	if q.Embed != nil {
		if _, ok := ownerColumn[q.Embed.Table]; !ok {
			return policyError(q.Embed.Table)
		}
	}
	recs, err := r.store.Select(ctx, table, q)
	if err != nil {
		return err
	}
	return rowstore.Decode(recs, dest)
}

func (r *Rows) Insert(ctx context.Context, table string, row any, dest any) error {
	sub, err := r.verifier.subject(ctx)
	if err != nil {
		return err
	}
	rec, err := rowstore.ToRecord(row)
	if err != nil {
		return err
	}
	if !insertOnly[table] {
		col, ok := ownerColumn[table]
		if !ok || sub == "" || fmt.Sprint(rec[col]) != sub {
			return policyError(table)
		}
	}
	if id, _ := rec["id"].(string); id == "" {
		delete(rec, "id")
	}
	stored, err := r.store.Insert(ctx, table, rec)
	if err != nil {
		return err
	}
	if insertOnly[table] {
		return nil
	}
	return rowstore.Decode(stored, dest)
}

// scope narrows eq to rows the caller owns.
func (r *Rows) scope(ctx context.Context, table string, eq map[string]string) (map[string]string, string, error) {
	sub, err := r.verifier.subject(ctx)
	if err != nil {
		return nil, "", err
	}
	col, ok := ownerColumn[table]
	if !ok {
		return nil, "", policyError(table)
	}
	if sub == "" {
		return nil, "", &backend.APIError{Kind: backend.ErrUnauthorized, Status: 401, Message: "not authenticated"}
	}
	scoped := make(map[string]string, len(eq)+1)
	for k, v := range eq {
		scoped[k] = v
	}
	if want, ok := scoped[col]; ok && want != sub {
		return nil, col, nil
	}
	scoped[col] = sub
	return scoped, col, nil
}

func (r *Rows) Update(ctx context.Context, table string, eq map[string]string, patch any) error {
	scoped, col, err := r.scope(ctx, table, eq)
	if err != nil {
		return err
	}
	if scoped == nil {
		return backend.ErrNotFound
	}
	rec, err := rowstore.ToRecord(patch)
	if err != nil {
		return err
	}
	if v, ok := rec[col]; ok && fmt.Sprint(v) != scoped[col] {
		return policyError(table)
	}
	n, err := r.store.Update(ctx, table, scoped, rec)
	if err != nil {
		return err
	}
	if n == 0 {
		return backend.ErrNotFound
	}
	return nil
}

func (r *Rows) Delete(ctx context.Context, table string, eq map[string]string) error {
	scoped, _, err := r.scope(ctx, table, eq)
	if err != nil {
		return err
	}
	if scoped == nil {
		return backend.ErrNotFound
	}
	n, err := r.store.Delete(ctx, table, scoped)
	if err != nil {
		return err
	}
	if n == 0 {
		return backend.ErrNotFound
	}
	return nil
}
