package admin

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

type page[T any] struct {
	Data  []T     `json:"data"`
	Total *int    `json:"total,omitempty"`
	Next  *string `json:"next,omitempty"`
}

// List fetches one page of at most ceiling entities from a collection. A
// collection that reports more entities than the ceiling fails with
// ErrPageCeilingExceeded instead of returning a truncated view: a diff against
// a partial listing would delete everything beyond the first page.
func List[T any](ctx context.Context, c *Client, path string, ceiling int) ([]T, error) {
	if ceiling <= 0 {
		return nil, fmt.Errorf("admin: list %s: page ceiling must be positive", path)
	}
	resp, err := c.Get(ctx, withSize(path, ceiling))
	if err != nil {
		return nil, err
	}
	var p page[T]
	if err := resp.Decode(&p); err != nil {
		return nil, fmt.Errorf("admin: list %s: %w", path, err)
	}

	total := len(p.Data)
	if p.Total != nil {
		total = *p.Total
	}
	if total > ceiling {
		return nil, fmt.Errorf("%w: %s reports %d entities, ceiling is %d", ErrPageCeilingExceeded, path, total, ceiling)
	}
	if p.Next != nil && strings.TrimSpace(*p.Next) != "" {
		return nil, fmt.Errorf("%w: %s has more than %d entities", ErrPageCeilingExceeded, path, ceiling)
	}
	if p.Data == nil {
		return []T{}, nil
	}
	return p.Data, nil
}

// Lookup fetches one entity. A 404 is reported as found=false, not an error.
func Lookup[T any](ctx context.Context, c *Client, path string) (T, bool, error) {
	var out T
	resp, err := c.Get(ctx, path)
	if err != nil {
		if IsNotFound(err) {
			return out, false, nil
		}
		return out, false, err
	}
	if err := resp.Decode(&out); err != nil {
		return out, false, err
	}
	return out, true, nil
}

func withSize(path string, size int) string {
	u, err := url.Parse(path)
	if err != nil {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + "size=" + strconv.Itoa(size)
	}
	q := u.Query()
	q.Set("size", strconv.Itoa(size))
	u.RawQuery = q.Encode()
	return u.String()
}
