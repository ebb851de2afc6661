// Package feed parses the exchange announcements feed into domain items and names downloaded files
package feed

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/umputun/announcer/pkg/domain"
)

// PubDateLayout is the date format used by the exchange feed, e.g. "08-Aug-2025 14:31:29"
const PubDateLayout = "02-Jan-2006 15:04:05"

// subjectMarker separates the announcement body from its subject in item descriptions
const subjectMarker = "|SUBJECT:"

// ist is the exchange time zone, the feed dates carry no zone. India has no DST.
var ist = time.FixedZone("IST", 5*3600+1800)

// Parser converts raw feed documents into feed items
type Parser struct {
	policy *bluemonday.Policy
}

// NewParser creates a new feed parser
func NewParser() *Parser {
	return &Parser{policy: bluemonday.StrictPolicy()}
}

// Parse parses rss/atom data. Items keep the feed order.
func (p *Parser) Parse(data []byte) ([]domain.FeedItem, error) {
	fp := gofeed.NewParser()
	feed, err := fp.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	res := make([]domain.FeedItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		fi := domain.FeedItem{
			GUID:        strings.TrimSpace(item.GUID),
			Title:       p.clean(item.Title),
			Description: p.clean(item.Description),
			Link:        strings.TrimSpace(item.Link),
			RawPubDate:  strings.TrimSpace(item.Published),
		}
		if fi.RawPubDate == "" {
			fi.RawPubDate = strings.TrimSpace(item.Updated)
		}

		// set published time, exchange layout first as gofeed would read it as UTC
		if ts, ok := ParsePubDate(fi.RawPubDate); ok {
			fi.Published = ts
		} else if item.PublishedParsed != nil {
			fi.Published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			fi.Published = *item.UpdatedParsed
		}

		if i := strings.Index(fi.Description, subjectMarker); i >= 0 {
			fi.Subject = strings.TrimSpace(fi.Description[i+len(subjectMarker):])
		}

		fi.Attachments = attachments(item)
		fi.ID = ItemID(fi)
		res = append(res, fi)
	}
	return res, nil
}

// clean strips markup and entities
func (p *Parser) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(p.policy.Sanitize(s)))
}

// ParsePubDate parses the exchange date layout in exchange time zone
func ParsePubDate(s string) (time.Time, bool) {
	ts, err := time.ParseInLocation(PubDateLayout, strings.TrimSpace(s), ist)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// ItemID makes the identifier used for the seen cache, title, raw publish date and link.
// A company may file several announcements within the same second, the link tells them apart.
// Items without title and date fall back to guid, then link.
func ItemID(item domain.FeedItem) string {
	if item.Title != "" || item.RawPubDate != "" {
		return item.Title + "-" + item.RawPubDate + "-" + item.Link
	}
	if item.GUID != "" {
		return item.GUID
	}
	return item.Link
}

// attachments collects the item link and enclosures, without duplicates
func attachments(item *gofeed.Item) []string {
	var res []string
	seen := map[string]bool{}
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		res = append(res, u)
	}
	add(item.Link)
	for _, enc := range item.Enclosures {
		if enc != nil {
			add(enc.URL)
		}
	}
	return res
}
