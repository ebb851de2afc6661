package domain

import (
	"path"
	"strings"
	"time"
)

// FeedItem represents a single announcement from the exchange feed
type FeedItem struct {
	ID          string // unique per feed, stable across polls
	GUID        string
	Title       string // company name for exchange announcements
	Subject     string // text after "|SUBJECT:" in the description, if any
	Description string
	Link        string
	RawPubDate  string    // publish date as it appears in the feed
	Published   time.Time // zero if the feed date could not be parsed
	Attachments []string
}

// HasPublished reports whether the publish timestamp was parsed
func (f FeedItem) HasPublished() bool {
	return !f.Published.IsZero()
}

// InWindow reports whether the item falls into the lookback window ending at now.
// Items without a parsed publish date are always in the window.
func (f FeedItem) InWindow(now time.Time, lookback time.Duration) bool {
	if !f.HasPublished() || lookback <= 0 {
		return true
	}
	return !f.Published.Before(now.Add(-lookback))
}

// AttachmentExt returns lower-cased extension of the attachment url, without query string
func AttachmentExt(link string) string {
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		link = link[:i]
	}
	return strings.ToLower(path.Ext(link))
}
