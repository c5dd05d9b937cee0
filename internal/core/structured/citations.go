package structured

import (
	"bufio"
	"regexp"
	"strings"
)

var sourceHeader = regexp.MustCompile(`(?i)^source\s+(\d+)\s*\|`)

// normalizeText lowercases and collapses whitespace.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// normalizeLabel is normalizeText with a leading "source:" removed.
func normalizeLabel(s string) string {
	n := normalizeText(s)
	if rest, ok := strings.CutPrefix(n, "source:"); ok {
		n = strings.TrimSpace(rest)
	}
	return n
}

// HarvestSourceLabels returns the "Source n | title | ..." header lines found in the
// given context strings, in order of first appearance.
func HarvestSourceLabels(contexts ...string) []string {
	var labels []string
	seen := map[string]struct{}{}
	for _, c := range contexts {
		sc := bufio.NewScanner(strings.NewReader(c))
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if !sourceHeader.MatchString(line) {
				continue
			}
			if _, ok := seen[line]; ok {
				continue
			}
			seen[line] = struct{}{}
			labels = append(labels, line)
		}
	}
	return labels
}

// NormalizeCitations maps each citation label onto the known label it equals after
// lowercasing, collapsing whitespace and dropping a "source:" prefix. Unmatched labels
// are kept verbatim. Duplicate (label, rationale) pairs are dropped.
func NormalizeCitations(citations []Citation, knownLabels []string) []Citation {
	lookup := make(map[string]string, len(knownLabels))
	for _, label := range knownLabels {
		key := normalizeLabel(label)
		if _, taken := lookup[key]; !taken {
			lookup[key] = label
		}
	}

	out := make([]Citation, 0, len(citations))
	seen := make(map[[2]string]struct{}, len(citations))
	for _, c := range citations {
		label := c.SourceLabel
		if canonical, ok := lookup[normalizeLabel(c.SourceLabel)]; ok {
			label = canonical
		}
		key := [2]string{label, c.Rationale}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Citation{SourceLabel: label, Rationale: c.Rationale})
	}
	return out
}
