package entase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/net/html"

	"stagehall/models"
)

// Candidate source fields per canonical attribute. The upstream schema has
// drifted across API versions, so every canonical field is resolved by
// trying these paths in order and taking the first present non-empty value.
// Paths with a dot descend one level into a nested object.
var productionFields = map[string][]string{
	"id":           {"ID", "id", "productionID", "production_id"},
	"title":        {"title", "name", "productionTitle"},
	"category":     {"category", "type", "genre"},
	"author":       {"author", "authorName", "meta.author"},
	"story":        {"story", "about", "description"},
	"synopsis":     {"synopsis", "shortDescription", "summary"},
	"posterUrl":    {"posterURL", "poster_url", "photos.poster", "images.poster"},
	"imageUrl":     {"imageURL", "image_url", "photos.cover", "images.cover"},
	"landscapeUrl": {"landscapeURL", "landscape_url", "photos.landscape", "images.landscape"},
	"updatedAt":    {"updatedAt", "updated_at", "modified"},
}

var eventFields = map[string][]string{
	"id":              {"ID", "id", "eventID", "event_id"},
	"productionId":    {"productionID", "production_id", "productionId"},
	"productionSlug":  {"productionSlug", "production_slug", "production.slug"},
	"productionTitle": {"productionTitle", "production.title"},
	"start":           {"start", "startTime", "starts_at", "time", "date"},
	"end":             {"end", "endTime", "ends_at"},
	"status":          {"status", "state"},
}

// pick resolves a candidate list against a raw record, first present value
// wins. Empty strings do not count as present.
func pick(raw models.RawRecord, candidates []string) any {
	for _, path := range candidates {
		var v any
		if key, sub, ok := strings.Cut(path, "."); ok {
			nested, isMap := raw[key].(map[string]any)
			if !isMap {
				continue
			}
			v = nested[sub]
		} else {
			v = raw[path]
		}
		if v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

// SanitizeText stringifies and trims a value; empty or whitespace-only
// input collapses to nil.
func SanitizeText(v any) *string {
	s := stringify(v)
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// SanitizeStory converts upstream rich text into plain text: script and
// style blocks are dropped entirely (tags and content), every remaining tag
// is stripped, and whitespace runs collapse to single spaces.
func SanitizeStory(v any) *string {
	s := stringify(v)
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(s))
	skipDepth := 0
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if isDroppedTag(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if isDroppedTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
				b.WriteByte(' ')
			}
		}
	}

	out := strings.Join(strings.Fields(b.String()), " ")
	if out == "" {
		return nil
	}
	return &out
}

func isDroppedTag(name string) bool {
	return name == "script" || name == "style"
}

// Slugify derives a URL-safe slug: transliterate to ASCII, lowercase,
// replace runs of anything outside [a-z0-9] with a single hyphen, and trim
// leading/trailing hyphens. Returns fallback when nothing survives.
func Slugify(value, fallback string) string {
	s := strings.ToLower(unidecode.Unidecode(value))

	var b strings.Builder
	b.Grow(len(s))
	prevHyphen := true // suppress a leading hyphen
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevHyphen = false
			continue
		}
		if !prevHyphen {
			b.WriteByte('-')
			prevHyphen = true
		}
	}

	out := strings.Trim(b.String(), "-")
	if out == "" {
		return fallback
	}
	return out
}

// dateLayouts in trial order for NormalizeDate.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeDate parses an upstream date value into a UTC instant. Strings
// try the known layouts; numbers are treated as Unix seconds (milliseconds
// when implausibly large). Unparsable input yields nil, never an error.
func NormalizeDate(v any) *time.Time {
	switch d := v.(type) {
	case string:
		d = strings.TrimSpace(d)
		if d == "" {
			return nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, d); err == nil {
				utc := t.UTC()
				return &utc
			}
		}
		return nil
	case float64:
		if d <= 0 {
			return nil
		}
		sec := int64(d)
		// Anything past the year 33658 in seconds is really milliseconds.
		if sec > 1e12 {
			sec /= 1000
		}
		t := time.Unix(sec, 0).UTC()
		return &t
	}
	return nil
}

// stringify renders the primitive JSON types to a string. Upstream ids in
// particular arrive as both strings and numbers.
func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

// URLVerifier checks that an asset URL is worth keeping. Satisfied by
// *AssetVerifier; the indirection keeps the mapping functions free of I/O
// in tests.
type URLVerifier interface {
	Verify(ctx context.Context, rawURL string) *string
}

// MapProductions converts raw upstream productions into canonical records.
// Records without a usable id are dropped silently; that is a data-shape
// anomaly, not an error. When verifier is non-nil each image URL is checked
// for reachability and dropped when unreachable.
func MapProductions(ctx context.Context, raws []models.RawRecord, verifier URLVerifier) []models.CanonicalProduction {
	out := make([]models.CanonicalProduction, 0, len(raws))
	for _, raw := range raws {
		prod, ok := MapProduction(ctx, raw, verifier)
		if !ok {
			continue
		}
		out = append(out, prod)
	}
	return out
}

// MapProduction normalizes one raw production. ok is false when the record
// yields no id.
func MapProduction(ctx context.Context, raw models.RawRecord, verifier URLVerifier) (models.CanonicalProduction, bool) {
	id := strings.TrimSpace(stringify(pick(raw, productionFields["id"])))
	if id == "" {
		return models.CanonicalProduction{}, false
	}

	title := strings.TrimSpace(stringify(pick(raw, productionFields["title"])))
	category := strings.TrimSpace(stringify(pick(raw, productionFields["category"])))

	prod := models.CanonicalProduction{
		ID:           id,
		Slug:         Slugify(title, "production-"+Slugify(id, id)),
		Title:        title,
		Category:     category,
		Author:       SanitizeText(pick(raw, productionFields["author"])),
		Story:        SanitizeStory(pick(raw, productionFields["story"])),
		Synopsis:     SanitizeText(pick(raw, productionFields["synopsis"])),
		PosterURL:    verifyURL(ctx, verifier, pick(raw, productionFields["posterUrl"])),
		ImageURL:     verifyURL(ctx, verifier, pick(raw, productionFields["imageUrl"])),
		LandscapeURL: verifyURL(ctx, verifier, pick(raw, productionFields["landscapeUrl"])),
		UpdatedAt:    NormalizeDate(pick(raw, productionFields["updatedAt"])),
		Raw:          raw,
	}
	return prod, true
}

// MapEvents converts raw upstream events into canonical records, dropping
// any without a usable id.
func MapEvents(raws []models.RawRecord) []models.CanonicalEvent {
	out := make([]models.CanonicalEvent, 0, len(raws))
	for _, raw := range raws {
		ev, ok := MapEvent(raw)
		if !ok {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// MapEvent normalizes one raw event. The production slug prefers an
// explicit upstream slug, then a slug derived from the production title,
// then a synthetic value built from the production id, so linkage stays
// resolvable whenever the upstream gave us anything to work with.
func MapEvent(raw models.RawRecord) (models.CanonicalEvent, bool) {
	id := strings.TrimSpace(stringify(pick(raw, eventFields["id"])))
	if id == "" {
		return models.CanonicalEvent{}, false
	}

	productionID := strings.TrimSpace(stringify(pick(raw, eventFields["productionId"])))

	slug := strings.TrimSpace(stringify(pick(raw, eventFields["productionSlug"])))
	if slug == "" {
		title := strings.TrimSpace(stringify(pick(raw, eventFields["productionTitle"])))
		fallback := ""
		if productionID != "" {
			fallback = "production-" + Slugify(productionID, productionID)
		}
		slug = Slugify(title, fallback)
	}

	ev := models.CanonicalEvent{
		ID:             id,
		ProductionID:   productionID,
		ProductionSlug: slug,
		StartTime:      NormalizeDate(pick(raw, eventFields["start"])),
		EndTime:        NormalizeDate(pick(raw, eventFields["end"])),
		Status:         SanitizeText(pick(raw, eventFields["status"])),
		Raw:            raw,
	}
	return ev, true
}

func verifyURL(ctx context.Context, verifier URLVerifier, v any) *string {
	u := SanitizeText(v)
	if u == nil || verifier == nil {
		return u
	}
	return verifier.Verify(ctx, *u)
}
