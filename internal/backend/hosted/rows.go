package hosted

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/modernplatform/modern-platform/internal/backend"
)

// Rows implements backend.Rows with PostgREST.
type Rows struct{ c *client }

// selectParam renders the PostgREST select list, embeds included.
func selectParam(q backend.Query) string {
	cols := "*"
	if len(q.Columns) > 0 {
		cols = strings.Join(q.Columns, ",")
	}
	if q.Embed == nil {
		return cols
	}
	embedCols := "*"
	if len(q.Embed.Columns) > 0 {
		embedCols = strings.Join(q.Embed.Columns, ",")
	}
	rel := q.Embed.Table
	if q.Embed.As != "" && q.Embed.As != q.Embed.Table {
		rel = q.Embed.As + ":" + q.Embed.Table
	}
	return fmt.Sprintf("%s,%s(%s)", cols, rel, embedCols)
}

func filter(r *resty.Request, eq map[string]string) *resty.Request {
	for k, v := range eq {
		r.SetQueryParam(k, "eq."+v)
	}
	return r
}

func (r *Rows) Select(ctx context.Context, table string, q backend.Query, dest any) error {
	req := filter(r.c.request(ctx), q.Eq).SetQueryParam("select", selectParam(q))
	if q.Order != nil {
		dir := "asc"
		if q.Order.Desc {
			dir = "desc"
		}
		req.SetQueryParam("order", q.Order.Column+"."+dir)
	}
	if q.Limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(q.Limit))
	}
	resp, err := req.Get("/rest/v1/" + table)
	if err != nil {
		return fmt.Errorf("select %s: %w", table, err)
	}
	if resp.IsError() {
		return apiError(resp)
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), dest); err != nil {
		return fmt.Errorf("decode %s rows: %w", table, err)
	}
	return nil
}

func (r *Rows) Insert(ctx context.Context, table string, row any, dest any) error {
	prefer := "return=minimal"
	if dest != nil {
		prefer = "return=representation"
	}
	resp, err := r.c.request(ctx).
		SetHeader("Prefer", prefer).
		SetBody(row).
		Post("/rest/v1/" + table)
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	if resp.IsError() {
		return apiError(resp)
	}
	if dest == nil {
		return nil
	}
	return decodeFirst(table, resp.Body(), dest)
}

func (r *Rows) Update(ctx context.Context, table string, eq map[string]string, patch any) error {
	resp, err := filter(r.c.request(ctx), eq).
		SetHeader("Prefer", "return=representation").
		SetBody(patch).
		Patch("/rest/v1/" + table)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	if resp.IsError() {
		return apiError(resp)
	}
	return affected(resp.Body())
}

func (r *Rows) Delete(ctx context.Context, table string, eq map[string]string) error {
	resp, err := filter(r.c.request(ctx), eq).
		SetHeader("Prefer", "return=representation").
		Delete("/rest/v1/" + table)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	if resp.IsError() {
		return apiError(resp)
	}
	return affected(resp.Body())
}

// affected maps an empty representation to ErrNotFound: row-level security
// hides rows the caller may not touch.
func affected(body []byte) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("decode representation: %w", err)
	}
	if len(rows) == 0 {
		return backend.ErrNotFound
	}
	return nil
}

func decodeFirst(table string, body []byte, dest any) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("decode %s representation: %w", table, err)
	}
	if len(rows) == 0 {
		return backend.ErrNotFound
	}
	if err := json.Unmarshal(rows[0], dest); err != nil {
		return fmt.Errorf("decode %s row: %w", table, err)
	}
	return nil
}
