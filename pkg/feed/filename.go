package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/umputun/announcer/pkg/domain"
)

const maxFilenameLen = 200

var (
	reNotAlnumSpace = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	reSpaces        = regexp.MustCompile(`\s+`)
	reNotWord       = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	reUnderscores   = regexp.MustCompile(`_{2,}`)
)

// SafeFilename builds a file name from company and raw publish date, e.g.
// "Reliance Industries Ltd", "09-Aug-2025 20:27:19", ".../a.pdf" -> "Reliance_Industries_Ltd_09Aug2025_202719.pdf".
// Unusable names fall back to a timestamped generic one, now is used for missing dates and the fallback.
func SafeFilename(company, rawPubDate, link string, now time.Time) string {
	ext := domain.AttachmentExt(link)
	if ext == "" || reNotWord.MatchString(ext[1:]) {
		ext = ".pdf"
	}

	name := reNotAlnumSpace.ReplaceAllString(company, "")
	name = reSpaces.ReplaceAllString(strings.TrimSpace(name), "_")

	date := now.Format("02Jan2006_150405")
	if rawPubDate != "" {
		date = strings.NewReplacer("-", "", ":", "", " ", "_").Replace(rawPubDate)
		date = reNotWord.ReplaceAllString(date, "")
	}

	res := reUnderscores.ReplaceAllString(name+"_"+date, "_")
	res = strings.Trim(res, "_")
	if res == "" || len(res)+len(ext) < 5 {
		return fmt.Sprintf("NSE_Announcement_%s%s", now.Format("20060102_150405"), ext)
	}
	if len(res)+len(ext) > maxFilenameLen {
		res = res[:maxFilenameLen-10]
	}
	return res + ext
}

// AttachmentFilename names the n-th attachment of an item. The name ends with a short hash of the
// attachment url, so attachments of announcements sharing company and publish date don't collide.
func AttachmentFilename(item domain.FeedItem, n int, now time.Time) string {
	link := item.Attachments[n]
	name := SafeFilename(item.Title, item.RawPubDate, link, now)
	ext := domain.AttachmentExt(name)
	base := strings.TrimSuffix(name, ext)
	suffix := "_" + urlHash(link)
	if len(base)+len(suffix)+len(ext) > maxFilenameLen {
		base = base[:maxFilenameLen-len(suffix)-len(ext)]
	}
	return base + suffix + ext
}

// urlHash returns first 8 hex chars of sha256 of the url
func urlHash(link string) string {
	sum := sha256.Sum256([]byte(link))
	return hex.EncodeToString(sum[:4])
}
