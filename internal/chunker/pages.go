package chunker

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var pageMarkerRe = regexp.MustCompile(`\[PAGE_(\d+)\]\n?`)

// pageStart records that page begins at rune offset off of the marker-free text.
type pageStart struct {
	off  int
	page int
}

type pageIndex []pageStart

// splitPageMarkers removes [PAGE_n] markers and returns where each page starts.
func splitPageMarkers(text string) (string, pageIndex) {
	locs := pageMarkerRe.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return text, nil
	}
	var b strings.Builder
	b.Grow(len(text))
	pages := make(pageIndex, 0, len(locs))
	prev, off := 0, 0
	for _, loc := range locs {
		seg := text[prev:loc[0]]
		b.WriteString(seg)
		off += utf8.RuneCountInString(seg)
		page, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err == nil {
			pages = append(pages, pageStart{off: off, page: page})
		}
		prev = loc[1]
	}
	b.WriteString(text[prev:])
	return b.String(), pages
}

// at returns the page of the chunk runes[start:end]. A page that starts inside the
// chunk after nothing but whitespace wins; otherwise the page in effect at start;
// otherwise the first page starting inside the chunk.
func (p pageIndex) at(runes []rune, start, end int) (int, bool) {
	if len(p) == 0 {
		return 0, false
	}
	current, found := 0, false
	for _, ps := range p {
		if ps.off <= start {
			current, found = ps.page, true
			continue
		}
		if ps.off >= end {
			break
		}
		if !found || onlySpace(runes[start:ps.off]) {
			return ps.page, true
		}
		break
	}
	return current, found
}

func onlySpace(rs []rune) bool {
	for _, r := range rs {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
