package normalize

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/ivory-showcase/showcase-backend/internal/ledger"
	"github.com/ivory-showcase/showcase-backend/internal/showcase/domain"
	"go.uber.org/zap"
)

// isoLayout matches the millisecond UTC form used for every stored date.
const isoLayout = "2006-01-02T15:04:05.000Z"

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	time.RFC1123Z,
	time.RFC1123,
	"Jan 2, 2006",
	"January 2, 2006",
}

var errUnparsableDate = errors.New("unparsable date")

// Normalizer turns raw metadata objects into project records.
type Normalizer struct {
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Normalizer)

// WithClock overrides the clock used by the expiry gate.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

func New(logger *zap.Logger, opts ...Option) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Normalizer{
		logger: logger.Named("normalize"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NormalizeAll normalizes every detail, using its position as the record id,
// and drops the ones that decode to nothing.
func (n *Normalizer) NormalizeAll(details []ledger.ObjectDetail) []domain.ProjectRecord {
	out := make([]domain.ProjectRecord, 0, len(details))
	for i, d := range details {
		if rec := n.Normalize(d, i); rec != nil {
			out = append(out, *rec)
		}
	}
	return out
}

// Normalize decodes one object into a project record. It returns nil when
// the metadata structure is incomplete or the project has expired.
func (n *Normalizer) Normalize(detail ledger.ObjectDetail, index int) *domain.ProjectRecord {
	entries, err := DecodeContents(detail.Content)
	if err != nil {
		n.logger.Warn("invalid or incomplete metadata structure",
			zap.String("object_id", detail.ObjectID),
			zap.Error(err),
		)
		return nil
	}

	rec := &domain.ProjectRecord{
		ID:       index,
		ParentID: detail.ParentID,
		BlobID:   detail.ObjectID,
	}

	var expiredAt, endAt *time.Time
	for _, e := range entries {
		switch e.Key {
		case "startDate", "expiredDate", "end_date":
			stored, at, err := coerceDate(e.Value)
			if err != nil {
				n.logger.Error("error parsing date",
					zap.String("object_id", detail.ObjectID),
					zap.Error(&DecodeError{Path: "contents." + e.Key, Err: err}),
				)
			}
			switch e.Key {
			case "startDate":
				rec.StartDate = stored
			case "expiredDate":
				rec.ExpiredDate = stored
				if at != nil {
					expiredAt = at
				}
			case "end_date":
				rec.EndDate = stored
				if at != nil {
					endAt = at
				}
			}
		case "status":
			rec.Status = parseInt(e.Value)
		case "epochs":
			rec.Epochs = parseInt(e.Value)
		case "ownership":
			rec.Ownership = parseInt(e.Value)
		case "isBuild":
			rec.IsBuild = e.Value == "true"
		case "site-name":
			rec.SiteName = e.Value
		case "owner":
			rec.Owner = e.Value
		case "showcase_url":
			rec.ShowcaseURL = e.Value
		case "quality":
			rec.Quality = parseQuality(e.Value)
		default:
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[e.Key] = e.Value
		}
	}

	now := n.now()
	for _, at := range []*time.Time{expiredAt, endAt} {
		if at != nil && at.Before(now) {
			n.logger.Info("project is expired",
				zap.String("site_name", rec.SiteName),
				zap.Time("expiry", *at),
			)
			return nil
		}
	}
	return rec
}

// coerceDate returns the ISO form of v and its instant. On failure the raw
// value is returned unchanged with a nil instant.
func coerceDate(v string) (string, *time.Time, error) {
	s := strings.TrimSpace(v)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return t.Format(isoLayout), &t, nil
		}
	}
	return v, nil, errUnparsableDate
}

// parseInt reads a base-10 integer from the leading digits of v, after
// optional whitespace and sign. Values without digits yield an invalid Int.
func parseInt(v string) *domain.Int {
	s := strings.TrimLeftFunc(v, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return &domain.Int{}
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return &domain.Int{}
	}
	return &domain.Int{Value: n, Valid: true}
}

func parseQuality(v string) *float64 {
	q, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(q) || math.IsInf(q, 0) {
		return nil
	}
	return &q
}
