package entase

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"stagehall/models"
)

// maxPages is a hard stop against pathological payloads (for example a
// cursor URL that keeps pointing at itself). Normal datasets terminate via
// the rule list long before this.
const maxPages = 10000

// FetchAll walks every page of a list endpoint and returns the accumulated
// raw records. The Entase API has grown several pagination conventions
// across versions; each is handled by one rule in pageRules, evaluated in
// priority order with first match wins. When no rule matches the walk stops,
// so ambiguous payloads can never loop forever.
func (c *Client) FetchAll(ctx context.Context, path string, baseParams url.Values) ([]models.RawRecord, error) {
	var records []models.RawRecord

	page := 1
	cursorURL := ""

	for fetched := 0; fetched < maxPages; fetched++ {
		var payload any
		var err error
		if cursorURL != "" {
			// Cursor URLs are followed verbatim, bypassing normal query
			// construction, until a rule yields a page number again.
			payload, err = c.FetchURL(ctx, cursorURL, 0, 0)
		} else {
			params := url.Values{}
			for k, vals := range baseParams {
				for _, v := range vals {
					params.Add(k, v)
				}
			}
			params.Set("page", strconv.Itoa(page))
			payload, err = c.Fetch(ctx, path, FetchOptions{Params: params})
		}
		if err != nil {
			return nil, fmt.Errorf("fetch page %d of %s: %w", page, path, err)
		}

		records = append(records, extractItems(payload)...)

		next, ok := nextPage(payload, page)
		if !ok {
			break
		}
		if next.url != "" {
			cursorURL = next.url
			continue
		}
		// A numeric next page must move forward, otherwise we would refetch
		// the same page forever.
		if next.page <= page {
			break
		}
		page = next.page
		cursorURL = ""
	}

	return records, nil
}

// extractItems pulls the record list out of a page payload. The response is
// either a bare array or an object with the list under one of a few known
// keys (including the v2 {resource: {data: [...]}} envelope).
func extractItems(payload any) []models.RawRecord {
	switch v := payload.(type) {
	case []any:
		return toRecords(v)
	case map[string]any:
		if res, ok := v["resource"].(map[string]any); ok {
			if data, ok := res["data"].([]any); ok {
				return toRecords(data)
			}
		}
		for _, key := range []string{"data", "items", "results", "list"} {
			if list, ok := v[key].([]any); ok {
				return toRecords(list)
			}
		}
	}
	return nil
}

func toRecords(list []any) []models.RawRecord {
	records := make([]models.RawRecord, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			records = append(records, models.RawRecord(m))
		}
	}
	return records
}

// nextHop describes where the walker goes after the current page: either an
// exact cursor URL or a page number.
type nextHop struct {
	page int
	url  string
}

// pageRule inspects a page payload and reports the next hop if this
// convention applies. Rules must return ok=false when their keys are absent
// so evaluation falls through to the next rule.
type pageRule func(payload map[string]any, current int) (nextHop, bool)

// pageRules in priority order. New upstream pagination conventions are
// supported by appending a rule, never by deepening an existing one.
var pageRules = []pageRule{
	ruleResourceCursor,
	rulePaginationNext,
	rulePaginationTotal,
	ruleMeta,
	ruleLinksNext,
	ruleTopLevelNext,
	ruleTopLevelTotal,
}

func nextPage(payload any, current int) (nextHop, bool) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nextHop{}, false
	}
	for _, rule := range pageRules {
		if hop, ok := rule(obj, current); ok {
			return hop, true
		}
	}
	return nextHop{}, false
}

// ruleResourceCursor handles the v2 envelope:
// {resource: {data: [...], cursor: {hasMore, nextURL}}}.
func ruleResourceCursor(payload map[string]any, _ int) (nextHop, bool) {
	res, ok := payload["resource"].(map[string]any)
	if !ok {
		return nextHop{}, false
	}
	cursor, ok := res["cursor"].(map[string]any)
	if !ok {
		return nextHop{}, false
	}
	hasMore, _ := cursor["hasMore"].(bool)
	nextURL := asString(cursor["nextURL"])
	if !hasMore || nextURL == "" {
		// The envelope matched but reports exhaustion. Claiming the match
		// with an empty hop stops the walk instead of falling through to
		// unrelated rules; the walker treats a non-advancing hop as the end.
		return nextHop{}, true
	}
	return nextHop{url: nextURL}, true
}

// rulePaginationNext handles {pagination: {next: <number | cursor URL>}}.
func rulePaginationNext(payload map[string]any, _ int) (nextHop, bool) {
	p, ok := payload["pagination"].(map[string]any)
	if !ok {
		return nextHop{}, false
	}
	if n, ok := asInt(p["next"]); ok {
		return nextHop{page: n}, true
	}
	if s := asString(p["next"]); s != "" {
		return nextHop{url: s}, true
	}
	return nextHop{}, false
}

// rulePaginationTotal handles {pagination: {page, total_pages}}.
func rulePaginationTotal(payload map[string]any, _ int) (nextHop, bool) {
	p, ok := payload["pagination"].(map[string]any)
	if !ok {
		return nextHop{}, false
	}
	pageNum, okPage := asInt(p["page"])
	total, okTotal := asInt(p["total_pages"])
	if !okPage || !okTotal {
		return nextHop{}, false
	}
	if pageNum >= total {
		return nextHop{}, false
	}
	return nextHop{page: pageNum + 1}, true
}

// ruleMeta handles {meta: {next | next_page | current_page + last_page}}.
func ruleMeta(payload map[string]any, _ int) (nextHop, bool) {
	meta, ok := payload["meta"].(map[string]any)
	if !ok {
		return nextHop{}, false
	}
	if n, ok := asInt(meta["next"]); ok {
		return nextHop{page: n}, true
	}
	if n, ok := asInt(meta["next_page"]); ok {
		return nextHop{page: n}, true
	}
	cur, okCur := asInt(meta["current_page"])
	last, okLast := asInt(meta["last_page"])
	if okCur && okLast && cur < last {
		return nextHop{page: cur + 1}, true
	}
	return nextHop{}, false
}

// ruleLinksNext handles {links: {next: <cursor URL>}}.
func ruleLinksNext(payload map[string]any, _ int) (nextHop, bool) {
	links, ok := payload["links"].(map[string]any)
	if !ok {
		return nextHop{}, false
	}
	if s := asString(links["next"]); s != "" {
		return nextHop{url: s}, true
	}
	return nextHop{}, false
}

// ruleTopLevelNext handles top-level next_page / next values.
func ruleTopLevelNext(payload map[string]any, _ int) (nextHop, bool) {
	if n, ok := asInt(payload["next_page"]); ok {
		return nextHop{page: n}, true
	}
	if n, ok := asInt(payload["next"]); ok {
		return nextHop{page: n}, true
	}
	if s := asString(payload["next"]); s != "" {
		return nextHop{url: s}, true
	}
	return nextHop{}, false
}

// ruleTopLevelTotal handles a top-level total_pages compared against the
// walker's own page counter.
func ruleTopLevelTotal(payload map[string]any, current int) (nextHop, bool) {
	total, ok := asInt(payload["total_pages"])
	if !ok {
		return nextHop{}, false
	}
	if current >= total {
		return nextHop{}, false
	}
	return nextHop{page: current + 1}, true
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
