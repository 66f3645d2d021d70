package enrich

import (
	"strings"
)

// Verdict is the severity class a provider assigned to an indicator.
type Verdict string

const (
	VerdictError      Verdict = "error"
	VerdictNoData     Verdict = "no_data"
	VerdictClean      Verdict = "clean"
	VerdictSuspicious Verdict = "suspicious"
	VerdictMalicious  Verdict = "malicious"
)

// verdictOrder lists verdicts from least to most severe.
var verdictOrder = []Verdict{
	VerdictError,
	VerdictNoData,
	VerdictClean,
	VerdictSuspicious,
	VerdictMalicious,
}

var verdictLabels = map[Verdict]string{
	VerdictMalicious:  "MALICIOUS",
	VerdictSuspicious: "SUSPICIOUS",
	VerdictClean:      "CLEAN",
	VerdictNoData:     "NO RECORD",
	VerdictError:      "ERROR",
}

// Verdicts returns all verdict classes, least severe first.
func Verdicts() []Verdict {
	out := make([]Verdict, len(verdictOrder))
	copy(out, verdictOrder)
	return out
}

// Severity returns the rank of v in the severity order, or -1 for an unknown verdict.
func (v Verdict) Severity() int {
	for i, candidate := range verdictOrder {
		if candidate == v {
			return i
		}
	}
	return -1
}

// Valid reports whether v is one of the five verdict classes.
func (v Verdict) Valid() bool { return v.Severity() >= 0 }

// Label returns the display label used on badges.
func (v Verdict) Label() string {
	if l, ok := verdictLabels[v]; ok {
		return l
	}
	return strings.ToUpper(string(v))
}

// ParseVerdict normalises s into a Verdict.
func ParseVerdict(s string) (Verdict, bool) {
	v := Verdict(strings.ToLower(strings.TrimSpace(s)))
	return v, v.Valid()
}

// IOCType is the kind of indicator produced by extraction.
type IOCType string

const (
	TypeIPv4   IOCType = "ipv4"
	TypeIPv6   IOCType = "ipv6"
	TypeDomain IOCType = "domain"
	TypeURL    IOCType = "url"
	TypeMD5    IOCType = "md5"
	TypeSHA1   IOCType = "sha1"
	TypeSHA256 IOCType = "sha256"
	TypeCVE    IOCType = "cve"
)

// Hash types are covered by three providers, network types by two.
var providerCounts = map[IOCType]int{
	TypeIPv4:   2,
	TypeIPv6:   2,
	TypeDomain: 2,
	TypeURL:    2,
	TypeMD5:    3,
	TypeSHA1:   3,
	TypeSHA256: 3,
}

// IOCTypes returns every indicator kind the console understands, enrichable ones first.
func IOCTypes() []IOCType {
	return []IOCType{TypeIPv4, TypeIPv6, TypeDomain, TypeURL, TypeMD5, TypeSHA1, TypeSHA256, TypeCVE}
}

// ExpectedProviders returns how many providers report for an indicator of type t.
// Non-enrichable types return 0.
func ExpectedProviders(t IOCType) int {
	return providerCounts[IOCType(strings.ToLower(string(t)))]
}

// Enrichable reports whether indicators of type t enter the aggregation pipeline.
func (t IOCType) Enrichable() bool { return ExpectedProviders(t) > 0 }

// ItemKind discriminates the EnrichmentItem union.
type ItemKind string

const (
	KindResult ItemKind = "result"
	KindError  ItemKind = "error"
)

// EnrichmentItem is one provider's answer for one indicator, as returned by
// the status endpoint. Result fields are zero for error items and vice versa.
type EnrichmentItem struct {
	Kind     ItemKind `json:"type"`
	IOCValue string   `json:"ioc_value"`
	IOCType  IOCType  `json:"ioc_type"`
	Provider string   `json:"provider"`

	Verdict        Verdict        `json:"verdict,omitempty"`
	DetectionCount int            `json:"detection_count,omitempty"`
	TotalEngines   int            `json:"total_engines,omitempty"`
	ScanDate       *string        `json:"scan_date,omitempty"`
	RawStats       map[string]any `json:"raw_stats,omitempty"`

	Error string `json:"error,omitempty"`
}

// IsError reports whether the item is a provider failure.
func (it EnrichmentItem) IsError() bool { return it.Kind == KindError }

// Key returns the dedup key of the item.
func (it EnrichmentItem) Key() ItemKey {
	return ItemKey{Value: it.IOCValue, Provider: it.Provider}
}

// wellFormed reports whether the item carries enough to be applied.
func (it EnrichmentItem) wellFormed() bool {
	if it.IOCValue == "" || it.Provider == "" {
		return false
	}
	return it.Kind == KindResult || it.Kind == KindError
}

// EffectiveVerdict maps the item onto a verdict class. Errors are VerdictError,
// results with a missing or unknown verdict are VerdictNoData.
func (it EnrichmentItem) EffectiveVerdict() Verdict {
	if it.IsError() {
		return VerdictError
	}
	if v, ok := ParseVerdict(string(it.Verdict)); ok {
		return v
	}
	return VerdictNoData
}

// ItemKey identifies an (indicator, provider) pair.
type ItemKey struct {
	Value    string
	Provider string
}

func (k ItemKey) String() string { return k.Value + "|" + k.Provider }

// JobStatus is the payload of GET /enrichment/status/{job_id}. Results is a
// growing snapshot, not a delta.
type JobStatus struct {
	Total    int              `json:"total"`
	Done     int              `json:"done"`
	Complete bool             `json:"complete"`
	Results  []EnrichmentItem `json:"results"`
}
