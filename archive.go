package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const unknownDateDir = "unknown_date"

// unknownOrderNumber is the placeholder when no order number could be
// extracted. It is deliberately excluded from dedup matching: a leftover
// "unknown" file must never halt enumeration for every later unknown order.
const unknownOrderNumber = "unknown"

// archiveDir maps a purchase date to its one canonical directory:
// <base>/<company>/<retailer>/<year>/<month-abbrev>, or the unknown_date
// sibling when the date could not be determined.
func archiveDir(base, company, retailer string, purchased time.Time, dateKnown bool) string {
	if !dateKnown {
		return filepath.Join(base, company, retailer, unknownDateDir)
	}
	return filepath.Join(base, company, retailer, purchased.Format("2006"), purchased.Format("Jan"))
}

// archiveIndex answers "was this order already downloaded" by scanning the
// target directory for a filename containing the order number. Listings are
// cached per directory so the dedup check during a long enumeration does not
// re-read the same directory for every order.
type archiveIndex struct {
	listings *lru.Cache[string, []string]
}

func newArchiveIndex() *archiveIndex {
	cache, _ := lru.New[string, []string](64)
	return &archiveIndex{listings: cache}
}

func (a *archiveIndex) entries(dir string) []string {
	if cached, ok := a.listings.Get(dir); ok {
		return cached
	}
	dirents, err := os.ReadDir(dir)
	if err != nil {
		// Missing directory means no prior downloads.
		a.listings.Add(dir, nil)
		return nil
	}
	names := make([]string, 0, len(dirents))
	for _, de := range dirents {
		if !de.IsDir() {
			names = append(names, de.Name())
		}
	}
	a.listings.Add(dir, names)
	return names
}

// Contains reports whether a prior run already saved an invoice for this
// order number into dir.
func (a *archiveIndex) Contains(dir, orderNumber string) bool {
	if orderNumber == "" || orderNumber == unknownOrderNumber {
		return false
	}
	for _, name := range a.entries(dir) {
		if strings.Contains(name, orderNumber) {
			return true
		}
	}
	return false
}

// Invalidate drops the cached listing for dir after a new file lands there.
func (a *archiveIndex) Invalidate(dir string) {
	a.listings.Remove(dir)
}
