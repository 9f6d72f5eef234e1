package aggregate

import (
	"errors"
	"strings"

	"github.com/ivory-showcase/showcase-backend/internal/showcase/domain"
)

const DefaultPageSize = 6

// SearchMode selects which fields a search term is matched against
type SearchMode string

const (
	SearchAll   SearchMode = "all"
	SearchName  SearchMode = "name"
	SearchOwner SearchMode = "owner"
)

var ErrInvalidSearchMode = errors.New("invalid search mode")

// ParseSearchMode parses a mode name; the empty string means all.
func ParseSearchMode(s string) (SearchMode, error) {
	switch SearchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SearchAll:
		return SearchAll, nil
	case SearchName:
		return SearchName, nil
	case SearchOwner:
		return SearchOwner, nil
	default:
		return "", ErrInvalidSearchMode
	}
}

// Query is the caller-owned search and page state
type Query struct {
	Term     string
	Mode     SearchMode
	Page     int
	PageSize int
}

// Page is one slice of the display collection
type Page struct {
	Items      []domain.ProjectRecord
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

// Apply runs the showcase filter, search, dedup and pagination in order.
func Apply(records []domain.ProjectRecord, q Query) Page {
	return Paginate(Dedup(Search(FilterShowcase(records), q.Term, q.Mode)), q.Page, q.PageSize)
}

// FilterShowcase keeps records with a non-blank showcase URL.
func FilterShowcase(records []domain.ProjectRecord) []domain.ProjectRecord {
	out := make([]domain.ProjectRecord, 0, len(records))
	for _, r := range records {
		if strings.TrimSpace(r.ShowcaseURL) != "" {
			out = append(out, r)
		}
	}
	return out
}

// Search keeps the records matching term under mode.
func Search(records []domain.ProjectRecord, term string, mode SearchMode) []domain.ProjectRecord {
	if term == "" {
		return records
	}
	out := make([]domain.ProjectRecord, 0, len(records))
	for _, r := range records {
		if Matches(r, term, mode) {
			out = append(out, r)
		}
	}
	return out
}

// Matches reports whether r matches term. The name is checked first; the
// owner is only consulted when the name did not match.
func Matches(r domain.ProjectRecord, term string, mode SearchMode) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)

	if mode == SearchAll || mode == SearchName {
		if r.SiteName != "" && strings.Contains(strings.ToLower(r.SiteName), term) {
			return true
		}
	}
	if mode == SearchAll || mode == SearchOwner {
		if r.Owner != "" && strings.Contains(strings.ToLower(r.Owner), term) {
			return true
		}
	}
	return false
}

// Dedup keeps one record per site name: the first seen, unless a later one
// has a strictly higher quality. A zero or missing quality counts as absent.
func Dedup(records []domain.ProjectRecord) []domain.ProjectRecord {
	index := make(map[string]int, len(records))
	out := make([]domain.ProjectRecord, 0, len(records))
	for _, r := range records {
		name := r.Name()
		i, seen := index[name]
		if !seen {
			index[name] = len(out)
			out = append(out, r)
			continue
		}
		if outranks(r, out[i]) {
			out[i] = r
		}
	}
	return out
}

func outranks(challenger, kept domain.ProjectRecord) bool {
	if !hasQuality(challenger) {
		return false
	}
	return !hasQuality(kept) || *challenger.Quality > *kept.Quality
}

func hasQuality(r domain.ProjectRecord) bool {
	return r.Quality != nil && *r.Quality != 0
}

// Paginate returns the 1-based page of records. A page below 1 is treated
// as the first; a page past the end has no items.
func Paginate(records []domain.ProjectRecord, page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}

	total := len(records)
	p := Page{
		Items:      []domain.ProjectRecord{},
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: total / size,
	}
	if total%size != 0 {
		p.TotalPages++
	}

	// Checked before multiplying so huge pages cannot overflow.
	if page > p.TotalPages {
		return p
	}
	start := (page - 1) * size
	end := min(start+size, total)
	p.Items = records[start:end]
	return p
}
