// Package pagerange turns user range text and thumbnail clicks into page
// selections. A selection is always sorted ascending, free of duplicates and
// bounded to [1, total].
package pagerange

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Parse reads comma-separated tokens, each a page number or a "start-end"
// pair. Tokens that do not parse, or pages outside [1,total], are dropped.
func Parse(text string, total int) []int {
	seen := make(map[int]struct{})
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if strings.Contains(part, "-") {
			bounds := strings.Split(part, "-")
			start, ok1 := leadingInt(bounds[0])
			end, ok2 := leadingInt(bounds[1])
			if !ok1 || !ok2 {
				continue
			}
			for i := max(1, start); i <= min(total, end); i++ {
				seen[i] = struct{}{}
			}
			continue
		}
		n, ok := leadingInt(part)
		if ok && n >= 1 && n <= total {
			seen[n] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// leadingInt parses an optionally signed run of leading digits, ignoring
// anything after it ("12abc" is 12). Values beyond int32 saturate.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil || n > math.MaxInt32 {
		n = math.MaxInt32
	}
	if neg {
		n = -n
	}
	return int(n), true
}

// Toggle removes page from sel when present, otherwise inserts it in order.
// The input slice is not modified.
func Toggle(sel []int, page int) []int {
	i := sort.SearchInts(sel, page)
	if i < len(sel) && sel[i] == page {
		out := make([]int, 0, len(sel)-1)
		out = append(out, sel[:i]...)
		return append(out, sel[i+1:]...)
	}
	out := make([]int, 0, len(sel)+1)
	out = append(out, sel[:i]...)
	out = append(out, page)
	return append(out, sel[i:]...)
}

// SelectAll returns [1..total].
func SelectAll(total int) []int {
	if total <= 0 {
		return []int{}
	}
	out := make([]int, total)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// SelectAllText is the range text shown after "select all".
func SelectAllText(total int) string {
	return "1-" + strconv.Itoa(total)
}

// Normalize dedupes, drops out-of-range pages and sorts.
func Normalize(pages []int, total int) []int {
	seen := make(map[int]struct{}, len(pages))
	for _, p := range pages {
		if p < 1 || p > total {
			continue
		}
		seen[p] = struct{}{}
	}
	return sortedKeys(seen)
}

// Format renders a selection compactly, collapsing consecutive runs: [1 2 3 6] -> "1-3,6".
func Format(sel []int) string {
	var b strings.Builder
	for i := 0; i < len(sel); {
		j := i
		for j+1 < len(sel) && sel[j+1] == sel[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(sel[i]))
		if j > i {
			b.WriteByte('-')
			b.WriteString(strconv.Itoa(sel[j]))
		}
		i = j + 1
	}
	return b.String()
}

// Contains reports whether page is in the sorted selection.
func Contains(sel []int, page int) bool {
	i := sort.SearchInts(sel, page)
	return i < len(sel) && sel[i] == page
}

func sortedKeys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
