// Package extract finds email addresses in rendered HTML.
//
// Extraction is a pure text scan: the rendered document is matched against
// an address-shaped regex in source order, then mailto: anchors are decoded
// and appended for addresses the body scan missed (obfuscated or
// percent-encoded links). Duplicate body matches are kept as found.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// emailRe matches an address shape: local part, @, dotted domain with a
// final suffix of at least two letters.
var emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// Emails returns the email-shaped substrings found in the document, in
// order of first appearance. The result is nil when nothing matches.
func Emails(html string) []string {
	if html == "" {
		return nil
	}

	emails := emailRe.FindAllString(html, -1)

	seen := make(map[string]bool, len(emails))
	for _, e := range emails {
		seen[e] = true
	}
	for _, e := range mailtoAddresses(html) {
		if !seen[e] {
			seen[e] = true
			emails = append(emails, e)
		}
	}
	return emails
}

// mailtoAddresses harvests addresses from mailto: anchors. Links carry
// addresses the body scan can miss when the visible text is obfuscated.
func mailtoAddresses(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var addrs []string
	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		addr := strings.TrimPrefix(href, "mailto:")
		// Strip ?subject=... and friends.
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		if decoded, err := url.QueryUnescape(addr); err == nil {
			addr = decoded
		}
		addr = strings.TrimSpace(addr)
		if emailRe.FindString(addr) == addr && addr != "" {
			addrs = append(addrs, addr)
		}
	})
	return addrs
}
