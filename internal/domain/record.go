package domain

import (
	"slices"
	"time"

	"github.com/totegamma/culturebridge"
)

type Price struct {
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Frequency string `json:"frequency,omitempty"`
}

// Fields are the scalar, user-editable parts of a content record.
type Fields struct {
	Title        string   `json:"title"`
	Summary      string   `json:"summary,omitempty"`
	Content      string   `json:"content"`
	Category     string   `json:"category,omitempty"`
	Hashtags     []string `json:"hashtags,omitempty"`
	Location     string   `json:"location,omitempty"`
	Price        *Price   `json:"price,omitempty"`
	Region       string   `json:"region,omitempty"`
	HeritageType string   `json:"heritageType,omitempty"`
	Language     string   `json:"language,omitempty"`
}

// FieldUpdates carries only the fields the caller wants to change.
type FieldUpdates struct {
	Title        *string   `json:"title,omitempty"`
	Summary      *string   `json:"summary,omitempty"`
	Content      *string   `json:"content,omitempty"`
	Category     *string   `json:"category,omitempty"`
	Hashtags     *[]string `json:"hashtags,omitempty"`
	Location     *string   `json:"location,omitempty"`
	Price        *Price    `json:"price,omitempty"`
	Region       *string   `json:"region,omitempty"`
	HeritageType *string   `json:"heritageType,omitempty"`
	Language     *string   `json:"language,omitempty"`
}

// Apply returns the updated fields and whether anything actually changed.
func (u FieldUpdates) Apply(f Fields) (Fields, bool) {
	next := f
	next.Hashtags = slices.Clone(f.Hashtags)
	changed := false

	setString := func(dst *string, v *string) {
		if v != nil && *dst != *v {
			*dst = *v
			changed = true
		}
	}

	setString(&next.Title, u.Title)
	setString(&next.Summary, u.Summary)
	setString(&next.Content, u.Content)
	setString(&next.Category, u.Category)
	setString(&next.Location, u.Location)
	setString(&next.Region, u.Region)
	setString(&next.HeritageType, u.HeritageType)
	setString(&next.Language, u.Language)

	if u.Hashtags != nil && !slices.Equal(next.Hashtags, *u.Hashtags) {
		next.Hashtags = slices.Clone(*u.Hashtags)
		changed = true
	}
	if u.Price != nil && (f.Price == nil || *f.Price != *u.Price) {
		p := *u.Price
		next.Price = &p
		changed = true
	}

	return next, changed
}

// ContentRecord is one revision of a replaceable shop product or heritage contribution.
type ContentRecord struct {
	Address               culturebridge.Address `json:"address"`
	RevisionID            string                `json:"revisionId"`
	Fields                Fields                `json:"fields"`
	Attachments           []Attachment          `json:"attachments"`
	PublishedAt           time.Time             `json:"publishedAt"`
	CreatedAt             time.Time             `json:"createdAt"`
	PublishedDestinations []string              `json:"publishedDestinations,omitempty"`
}

// StableID is the logical identifier shared by every revision.
func (r ContentRecord) StableID() string {
	return r.Address.Identifier
}

// RelayResult is the outcome of publishing one revision to one relay.
type RelayResult struct {
	Relay       string       `json:"relay"`
	Outcome     RelayOutcome `json:"outcome"`
	ErrorDetail string       `json:"errorDetail,omitempty"`
}

// SplitResults partitions relay results into accepted relays and the rest.
func SplitResults(results []RelayResult) ([]string, []RelayResult) {
	var accepted []string
	var rejected []RelayResult
	for _, r := range results {
		if r.Outcome == RelayAccepted {
			accepted = append(accepted, r.Relay)
		} else {
			rejected = append(rejected, r)
		}
	}
	return accepted, rejected
}
