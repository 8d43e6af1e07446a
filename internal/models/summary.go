package models

import (
	"regexp"
	"strings"
)

// Session summaries are stored as one markdown blob with two delimited
// blocks. The markers are a wire contract: clients and the summary endpoint
// both key on the exact text.
const (
	SummaryPublicBegin = "===PUBLIC_BEGIN==="
	SummaryPublicEnd   = "===PUBLIC_END==="
	SummaryCoachBegin  = "===COACH_BEGIN==="
	SummaryCoachEnd    = "===COACH_END==="
)

type Summary struct {
	Public string
	Coach  string
}

var (
	summaryPublicRe = regexp.MustCompile(`(?is)===PUBLIC_BEGIN===\s*(.*?)\s*===PUBLIC_END===`)
	summaryCoachRe  = regexp.MustCompile(`(?is)===COACH_BEGIN===\s*(.*?)\s*===COACH_END===`)
)

// EncodeSummary renders the stored blob form.
func EncodeSummary(s Summary) string {
	var b strings.Builder
	b.WriteString(SummaryPublicBegin + "\n")
	b.WriteString(s.Public)
	b.WriteString("\n" + SummaryPublicEnd + "\n\n")
	b.WriteString(SummaryCoachBegin + "\n")
	b.WriteString(s.Coach)
	b.WriteString("\n" + SummaryCoachEnd)
	return b.String()
}

// DecodeSummary parses a stored blob. Blobs written before the marker
// convention carry no markers at all; those are treated as all-public.
func DecodeSummary(blob string) Summary {
	pub := summaryPublicRe.FindStringSubmatch(blob)
	coach := summaryCoachRe.FindStringSubmatch(blob)

	s := Summary{}
	if pub != nil {
		s.Public = strings.TrimSpace(pub[1])
	} else {
		// Marker-less legacy blob. Strip any coach block so coach-only notes
		// never leak into the public text.
		s.Public = strings.TrimSpace(summaryCoachRe.ReplaceAllString(blob, ""))
	}
	if coach != nil {
		s.Coach = strings.TrimSpace(coach[1])
	}
	return s
}
