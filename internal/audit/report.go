// Package audit extracts findings from the markdown audit report a build produces.
//
// The parser is a best-effort heuristic, not a markdown grammar. Malformed
// input never fails: anything it cannot classify gets SeverityInfo.
package audit

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Severity classifies a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// Rank orders severities; lower is more severe.
func (s Severity) Rank() int {
	for i, v := range Severities {
		if v == s {
			return i
		}
	}
	return len(Severities)
}

// Finding is one issue section of a report. Title is the heading text as
// written, including any bracket tag. Line is zero when the report does not
// point at a source line.
type Finding struct {
	Severity       Severity
	Title          string
	Description    string
	Line           int
	Recommendation string
}

var (
	headingRe        = regexp.MustCompile(`^#{2,3}\s+(.*)$`)
	titleTagRe       = regexp.MustCompile(`(?i)[\[(]\s*(critical|high|medium|low|info)\s*[\])]`)
	lineRefRe        = regexp.MustCompile(`(?i)\blines?\s*[:#]?\s*(\d+)`)
	shortLineRefRe   = regexp.MustCompile(`\bL(\d+)\b`)
	recommendationRe = regexp.MustCompile(`(?is)\**recommendations?\**\s*:\**\s*(.+?)(?:\n\s*\n|\z)`)
)

const severityWords = `(critical|high|medium|low|info)`

type section struct {
	title string
	body  []string
}

// ParseReport splits markdown on level-2 and level-3 headings and returns one
// Finding per section. Text before the first such heading is ignored, as are
// sections whose title starts with "audit" or "summary".
func ParseReport(markdown string) []Finding {
	normalized := strings.ReplaceAll(markdown, "\r\n", "\n")
	var sections []section
	var current *section
	for _, line := range strings.Split(normalized, "\n") {
		if m := headingRe.FindStringSubmatch(strings.TrimRight(line, " \t")); m != nil {
			sections = append(sections, section{title: strings.TrimSpace(m[1])})
			current = &sections[len(sections)-1]
			continue
		}
		if current != nil {
			current.body = append(current.body, line)
		}
	}

	var findings []Finding
	for _, s := range sections {
		if s.title == "" || isHeaderSection(s.title) {
			continue
		}
		description := strings.TrimSpace(strings.Join(s.body, "\n"))
		findings = append(findings, Finding{
			Severity:       classify(s.title, normalized),
			Title:          s.title,
			Description:    description,
			Line:           lineReference(description),
			Recommendation: recommendation(description),
		})
	}
	return findings
}

func isHeaderSection(title string) bool {
	lower := strings.ToLower(title)
	return strings.HasPrefix(lower, "audit") || strings.HasPrefix(lower, "summary")
}

// classify looks for a tag in the title first, then for a "severity: <level>"
// phrase somewhere after the title text in the document.
func classify(title, document string) Severity {
	if m := titleTagRe.FindStringSubmatch(title); m != nil {
		return Severity(strings.ToLower(m[1]))
	}
	re, err := regexp.Compile(`(?is)` + regexp.QuoteMeta(title) + `.*?severity\W{0,4}` + severityWords)
	if err != nil {
		return SeverityInfo
	}
	if m := re.FindStringSubmatch(document); m != nil {
		return Severity(strings.ToLower(m[1]))
	}
	return SeverityInfo
}

func lineReference(description string) int {
	for _, re := range []*regexp.Regexp{lineRefRe, shortLineRefRe} {
		if m := re.FindStringSubmatch(description); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

func recommendation(description string) string {
	if m := recommendationRe.FindStringSubmatch(description); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// Summary counts findings per severity.
type Summary map[Severity]int

// Summarize counts findings per severity. Every severity is present in the result.
func Summarize(findings []Finding) Summary {
	s := make(Summary, len(Severities))
	for _, sev := range Severities {
		s[sev] = 0
	}
	for _, f := range findings {
		s[f.Severity]++
	}
	return s
}

// Highest returns the most severe severity present, or SeverityInfo when empty.
func Highest(findings []Finding) Severity {
	best := SeverityInfo
	for _, f := range findings {
		if f.Severity.Rank() < best.Rank() {
			best = f.Severity
		}
	}
	return best
}

// IsReport reports whether an artifact path looks like an audit report.
func IsReport(relativePath string) bool {
	base := strings.ToLower(path.Base(relativePath))
	return strings.HasSuffix(base, ".md") && strings.Contains(base, "audit")
}
