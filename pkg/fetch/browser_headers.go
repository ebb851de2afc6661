package fetch

import (
	"math/rand"
	"net/http"
)

const (
	feedAccept = "application/rss+xml,application/xml;q=0.9,text/xml;q=0.8,text/html;q=0.7,*/*;q=0.5"
	fileAccept = "application/pdf,application/xml,text/xml,*/*;q=0.8"
)

// acceptLanguages contains common browser Accept-Language values
var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.9",
	"en-IN,en;q=0.9,hi;q=0.8",
	"en-US,en;q=0.9,hi;q=0.8",
}

// addBrowserHeaders adds browser-like headers, the exchange drops requests that don't look like a browser
func addBrowserHeaders(req *http.Request, userAgent string, target Target) {
	req.Header.Set("User-Agent", userAgent)

	if target.Kind() == "file" {
		req.Header.Set("Accept", fileAccept)
	} else {
		req.Header.Set("Accept", feedAccept)
		req.Header.Set("Cache-Control", "no-cache")
	}

	// randomized language
	req.Header.Set("Accept-Language", acceptLanguages[rand.Intn(len(acceptLanguages))]) //nolint:gosec // non-cryptographic randomness is fine for header variation

	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	// dnt - 30% chance
	if rand.Float32() < 0.3 { //nolint:gosec // non-cryptographic randomness is fine
		req.Header.Set("DNT", "1")
	}
}
