// Package reconcile applies AI-suggested edits to a text buffer. Edit
// offsets come from a generator whose view of the document may be seconds
// stale, so they are treated as search hints: the original text is located
// by content search near the hinted position and never trusted positionally.
// All offsets are rune offsets, matching how positions are counted on the
// wire.
package reconcile

import "sort"

// searchWindow is how far (in runes) on either side of the hinted span the
// original text is searched for.
const searchWindow = 50

// Edit is one suggested change. Start and End are hints; when Original is
// non-empty the true span is resolved by searching for it near the hint.
type Edit struct {
	Kind        string `json:"type"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
}

// ApplyOne resolves and applies edits[index] against content, returning the
// new content and the remaining pending edits. Remaining edits whose hinted
// start falls at or after the resolved span have their hints shifted by the
// length delta so they stay approximately valid. If the original text
// cannot be found within the search window the edit is discarded and the
// content is returned unchanged: dropping a suggestion is preferred over
// splicing it at a guessed location.
func ApplyOne(content string, edits []Edit, index int) (string, []Edit) {
	if index < 0 || index >= len(edits) {
		return content, edits
	}
	edit := edits[index]
	runes := []rune(content)

	start, end, found := resolveSpan(runes, edit)

	remaining := make([]Edit, 0, len(edits)-1)
	remaining = append(remaining, edits[:index]...)
	remaining = append(remaining, edits[index+1:]...)

	if !found {
		return content, remaining
	}

	replacement := []rune(edit.Replacement)
	out := make([]rune, 0, len(runes)-(end-start)+len(replacement))
	out = append(out, runes[:start]...)
	out = append(out, replacement...)
	out = append(out, runes[end:]...)

	diff := len(replacement) - (end - start)
	for i := range remaining {
		if remaining[i].Start >= end {
			remaining[i].Start += diff
			remaining[i].End += diff
		}
	}
	return string(out), remaining
}

// ApplyAll applies every edit, processing in descending order of hinted
// start. Applying back-to-front keeps lower-offset hints valid without any
// shifting, which suffices because edits from one generation batch are
// assumed to target disjoint text. Unresolvable edits are dropped.
func ApplyAll(content string, edits []Edit) string {
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start > sorted[j].Start
	})

	runes := []rune(content)
	for _, edit := range sorted {
		start, end, found := resolveSpan(runes, edit)
		if !found {
			continue
		}
		replacement := []rune(edit.Replacement)
		out := make([]rune, 0, len(runes)-(end-start)+len(replacement))
		out = append(out, runes[:start]...)
		out = append(out, replacement...)
		out = append(out, runes[end:]...)
		runes = out
	}
	return string(runes)
}

// resolveSpan turns an edit's hinted span into an exact one. With a
// non-empty Original the span is wherever Original occurs inside the search
// window around the hint; without one the (clamped) hint is trusted, the
// pure-insertion case.
func resolveSpan(content []rune, edit Edit) (start, end int, found bool) {
	if edit.Original == "" {
		start = clamp(edit.Start, 0, len(content))
		end = clamp(edit.End, start, len(content))
		return start, end, true
	}

	original := []rune(edit.Original)
	windowStart := clamp(edit.Start-searchWindow, 0, len(content))
	windowEnd := clamp(edit.End+searchWindow, windowStart, len(content))

	offset := indexRunes(content[windowStart:windowEnd], original)
	if offset < 0 {
		return 0, 0, false
	}
	start = windowStart + offset
	return start, start + len(original), true
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
