package domain

import (
	"encoding/json"
	"strconv"
)

// Stage names one step of the fetch cascade
type Stage string

const (
	StageOwned   Stage = "owned"
	StageFields  Stage = "fields"
	StageDetails Stage = "details"
)

// Stages lists the cascade stages in execution order
var Stages = []Stage{StageOwned, StageFields, StageDetails}

// UnnamedProject is the dedup key of records without a site name
const UnnamedProject = "Unnamed Project"

// Int is an integer metadata value. Valid is false when the raw value had
// no leading digits; such values serialize as null.
type Int struct {
	Value int64
	Valid bool
}

func (i Int) MarshalJSON() ([]byte, error) {
	if !i.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, i.Value, 10), nil
}

// ProjectRecord is one normalized project decoded from a metadata object.
type ProjectRecord struct {
	ID       int    // position in the object-detail sequence
	ParentID string // blob the metadata hangs off
	BlobID   string // metadata object id

	SiteName    string
	Owner       string
	ShowcaseURL string

	StartDate   string
	ExpiredDate string
	EndDate     string

	Status    *Int
	Epochs    *Int
	Ownership *Int

	IsBuild bool
	Quality *float64

	// Extra holds metadata keys with no typed field.
	Extra map[string]string
}

// Name returns the site name or the unnamed fallback.
func (p ProjectRecord) Name() string {
	if p.SiteName == "" {
		return UnnamedProject
	}
	return p.SiteName
}

// MarshalJSON flattens the record into the metadata key space, so passthrough
// keys sit next to the typed ones. A passthrough key named id, parentId or
// blobId replaces the base field of the same name.
func (p ProjectRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+16)
	out["id"] = p.ID
	out["parentId"] = p.ParentID
	out["blobId"] = p.BlobID
	out["isBuild"] = p.IsBuild
	for k, v := range p.Extra {
		out[k] = v
	}

	setString := func(key, v string) {
		if v != "" {
			out[key] = v
		}
	}
	setString("site-name", p.SiteName)
	setString("owner", p.Owner)
	setString("showcase_url", p.ShowcaseURL)
	setString("startDate", p.StartDate)
	setString("expiredDate", p.ExpiredDate)
	setString("end_date", p.EndDate)

	setInt := func(key string, v *Int) {
		if v != nil {
			out[key] = *v
		}
	}
	setInt("status", p.Status)
	setInt("epochs", p.Epochs)
	setInt("ownership", p.Ownership)

	if p.Quality != nil {
		out["quality"] = *p.Quality
	}

	return json.Marshal(out)
}
