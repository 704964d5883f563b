package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/totegamma/culturebridge"
	"github.com/totegamma/culturebridge/nostr"
	"github.com/totegamma/culturebridge/schemas"
)

// RecordFromEvent decodes a signed revision into a content record.
func RecordFromEvent(ev nostr.Event) (ContentRecord, error) {
	if !nostr.IsParameterizedReplaceable(ev.Kind) {
		return ContentRecord{}, fmt.Errorf("kind %d is not replaceable", ev.Kind)
	}
	d := ev.Tags.GetD()
	if d == "" {
		return ContentRecord{}, fmt.Errorf("event %s has no d tag", ev.ID)
	}

	marker := schemas.MarkerForKind(ev.Kind)
	r := ContentRecord{
		Address: culturebridge.Address{
			Kind:       ev.Kind,
			PubKey:     ev.PubKey,
			Identifier: d,
		},
		RevisionID: ev.ID,
		CreatedAt:  ev.CreatedAt.Time(),
		Fields: Fields{
			Title:        ev.Tags.Value("title"),
			Summary:      ev.Tags.Value("summary"),
			Content:      ev.Content,
			Category:     ev.Tags.Value("category"),
			Location:     ev.Tags.Value("location"),
			Region:       ev.Tags.Value("region"),
			HeritageType: ev.Tags.Value("heritage_type"),
			Language:     ev.Tags.Value("language"),
		},
	}

	r.PublishedAt = r.CreatedAt
	if v := ev.Tags.Value("published_at"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			r.PublishedAt = time.Unix(ts, 0).UTC()
		}
	}

	for _, t := range ev.Tags.FindAll("t") {
		if v := t.Value(); v != "" && v != marker {
			r.Fields.Hashtags = append(r.Fields.Hashtags, v)
		}
	}

	if p := ev.Tags.Find("price"); len(p) >= 3 {
		price := &Price{Amount: p[1], Currency: p[2]}
		if len(p) >= 4 {
			price.Frequency = p[3]
		}
		r.Fields.Price = price
	}

	for _, t := range ev.Tags.FindAll("imeta") {
		a, ok := attachmentFromImeta(t)
		if ok {
			r.Attachments = append(r.Attachments, a)
		}
	}
	if len(r.Attachments) == 0 {
		for _, t := range ev.Tags.FindAll("image") {
			if url := t.Value(); url != "" {
				r.Attachments = append(r.Attachments, Attachment{
					ID:        url,
					URL:       url,
					MediaKind: MediaKindImage,
				})
			}
		}
	}

	return r, nil
}

// EventFromRecord builds the unsigned event for a revision.
func EventFromRecord(r ContentRecord, createdAt nostr.Timestamp) nostr.Event {
	f := r.Fields
	tags := nostr.Tags{
		{"d", r.Address.Identifier},
		{"title", f.Title},
	}
	if f.Summary != "" {
		tags = append(tags, nostr.Tag{"summary", f.Summary})
	}
	if !r.PublishedAt.IsZero() {
		tags = append(tags, nostr.Tag{"published_at", strconv.FormatInt(r.PublishedAt.Unix(), 10)})
	}
	if marker := schemas.MarkerForKind(r.Address.Kind); marker != "" {
		tags = append(tags, nostr.Tag{"t", marker})
	}
	for _, h := range f.Hashtags {
		tags = append(tags, nostr.Tag{"t", h})
	}
	if f.Category != "" {
		tags = append(tags, nostr.Tag{"category", f.Category})
	}
	if f.Location != "" {
		tags = append(tags, nostr.Tag{"location", f.Location})
	}
	if f.Region != "" {
		tags = append(tags, nostr.Tag{"region", f.Region})
	}
	if f.HeritageType != "" {
		tags = append(tags, nostr.Tag{"heritage_type", f.HeritageType})
	}
	if f.Language != "" {
		tags = append(tags, nostr.Tag{"language", f.Language})
	}
	if f.Price != nil {
		price := nostr.Tag{"price", f.Price.Amount, f.Price.Currency}
		if f.Price.Frequency != "" {
			price = append(price, f.Price.Frequency)
		}
		tags = append(tags, price)
	}

	imageTagged := false
	for _, a := range r.Attachments {
		if !imageTagged && a.MediaKind == MediaKindImage && a.URL != "" {
			tags = append(tags, nostr.Tag{"image", a.URL})
			imageTagged = true
		}
		tags = append(tags, imetaFromAttachment(a))
	}

	return nostr.Event{
		PubKey:    r.Address.PubKey,
		CreatedAt: createdAt,
		Kind:      r.Address.Kind,
		Tags:      tags,
		Content:   f.Content,
	}
}

func imetaFromAttachment(a Attachment) nostr.Tag {
	tag := nostr.Tag{"imeta", "url " + a.URL}
	add := func(k, v string) {
		if v != "" {
			tag = append(tag, k+" "+v)
		}
	}
	add("m", a.MimeType)
	add("x", a.ContentHash)
	if a.ByteSize > 0 {
		add("size", strconv.FormatInt(a.ByteSize, 10))
	}
	if a.Width > 0 && a.Height > 0 {
		add("dim", fmt.Sprintf("%dx%d", a.Width, a.Height))
	}
	if a.Duration > 0 {
		add("duration", strconv.FormatFloat(a.Duration.Seconds(), 'f', -1, 64))
	}
	add("alt", a.Alt)
	add("name", a.DisplayName)
	add("id", a.ID)
	return tag
}

func attachmentFromImeta(tag nostr.Tag) (Attachment, bool) {
	var a Attachment
	for _, entry := range tag[1:] {
		k, v, ok := strings.Cut(entry, " ")
		if !ok {
			continue
		}
		switch k {
		case "url":
			a.URL = v
		case "m":
			a.MimeType = v
		case "x":
			a.ContentHash = v
		case "size":
			a.ByteSize, _ = strconv.ParseInt(v, 10, 64)
		case "dim":
			w, h, ok := strings.Cut(v, "x")
			if ok {
				a.Width, _ = strconv.Atoi(w)
				a.Height, _ = strconv.Atoi(h)
			}
		case "duration":
			if secs, err := strconv.ParseFloat(v, 64); err == nil {
				a.Duration = time.Duration(secs * float64(time.Second))
			}
		case "alt":
			a.Alt = v
		case "name":
			a.DisplayName = v
		case "id":
			a.ID = v
		}
	}
	if a.URL == "" {
		return Attachment{}, false
	}
	if a.ID == "" {
		a.ID = a.ContentHash
		if a.ID == "" {
			a.ID = a.URL
		}
	}
	if kind, ok := KindFromMIME(a.MimeType); ok {
		a.MediaKind = kind
	} else {
		a.MediaKind = MediaKindImage
	}
	return a, true
}
