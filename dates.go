package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// purchaseDateLayouts are tried in order. Retailer order pages render dates
// in several shapes ("Jul 29, 2024", "7/29/2024", "7/29/24", ISO) and the
// layouts must all resolve to the same calendar date.
var purchaseDateLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"1/2/2006",
	"1/2/06",
	"2006-01-02",
	"Jan 2 2006",
}

// orderDatePrefixes are label fragments stripped before parsing.
var orderDatePrefixes = []string{
	"Order placed",
	"Ordered on",
	"Placed on",
	"Purchased",
	"Date:",
}

// ParsePurchaseDate parses a purchase date string scraped off an order page.
// Label prefixes and surrounding whitespace are removed first.
func ParsePurchaseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, prefix := range orderDatePrefixes {
		if strings.HasPrefix(strings.ToLower(s), strings.ToLower(prefix)) {
			s = strings.TrimSpace(s[len(prefix):])
		}
	}
	s = strings.TrimSpace(strings.Trim(s, ":"))
	s = strings.Join(strings.Fields(s), " ")

	for _, layout := range purchaseDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized purchase date %q", s)
}

// urlDatePattern matches a date embedded in an order-detail URL, e.g.
// ".../orders/2024-07-29/..." or "...?orderDate=2024/07/29".
var urlDatePattern = regexp.MustCompile(`(20\d{2})[-/](\d{1,2})[-/](\d{1,2})`)

// DateFromURL pulls an embedded calendar date out of a URL, the last-resort
// source before giving up on a purchase date entirely.
func DateFromURL(u string) (time.Time, bool) {
	m := urlDatePattern.FindStringSubmatch(u)
	if m == nil {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// dateProbe is one (selector, pattern, layout) candidate location for the
// purchase date. An empty pattern takes the element's whole text; an empty
// layout tries every known layout.
type dateProbe struct {
	selector string
	pattern  string
	layout   string
}

// extractPurchaseDate walks the retailer's date probes, then the URL
// fallback. The second return is false when no date could be determined;
// callers substitute the unknown-date directory in that case.
func extractPurchaseDate(d dom, probes []dateProbe) (time.Time, bool) {
	for _, p := range probes {
		text, ok := d.Text(p.selector)
		if !ok || text == "" {
			continue
		}
		candidate := text
		if p.pattern != "" {
			re, err := regexp.Compile(p.pattern)
			if err != nil {
				continue
			}
			m := re.FindString(text)
			if m == "" {
				continue
			}
			candidate = m
		}
		if p.layout != "" {
			if t, err := time.Parse(p.layout, strings.TrimSpace(candidate)); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
			}
			continue
		}
		if t, err := ParsePurchaseDate(candidate); err == nil {
			return t, true
		}
	}

	if t, ok := DateFromURL(d.PageURL()); ok {
		return t, true
	}
	return time.Time{}, false
}
