package ted

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"tender_watch/internal/domain/tender"
)

// noticeURLPrefix is used to synthesize a canonical link when the notice
// carries no html links of its own.
const noticeURLPrefix = "https://ted.europa.eu/fr/notice/-/detail/"

// DefaultFields is the field list requested from the TED search API when
// the caller does not supply one.
var DefaultFields = []string{
	"ND",               // notice document identifier
	"TI",               // title (multilingual)
	"publication-date", //
	"buyer-name",       // multilingual
	"CY",               // buyer country (list)
	"NC",               // notice classification (CPV)
	"DT",               // deadline time (list)
	"DS",               // dispatch date
	"RC",               // region code (NUTS)
	"TVH",              // total value high
	"TVL",              // total value low
	"notice-type",      //
	"PR",               // procedure type
	"links",            //
}

// MultilingualText decodes a TED text field that may be a plain string, a
// map of language code to string, or a map of language code to a list of
// strings. Keeping the decode in one place avoids type sniffing in the
// normalization logic.
type MultilingualText map[string][]string

func (m *MultilingualText) UnmarshalJSON(b []byte) error {
	if isJSONNull(b) {
		*m = nil
		return nil
	}
	var plain string
	if err := json.Unmarshal(b, &plain); err == nil {
		*m = MultilingualText{"": {plain}}
		return nil
	}
	var byLang map[string]json.RawMessage
	if err := json.Unmarshal(b, &byLang); err != nil {
		// Unexpected shape, treat as absent.
		*m = nil
		return nil
	}
	out := make(MultilingualText, len(byLang))
	for lang, raw := range byLang {
		var one string
		if err := json.Unmarshal(raw, &one); err == nil {
			out[lang] = []string{one}
			continue
		}
		var many []string
		if err := json.Unmarshal(raw, &many); err == nil {
			out[lang] = many
		}
	}
	*m = out
	return nil
}

// Resolve picks the text in the preferred language, then English, then
// French, then any available language. The second return is false when no
// text was found and the caller should fall back to its sentinel.
func (m MultilingualText) Resolve(preferred string) (string, bool) {
	if len(m) == 0 {
		return "", false
	}
	if vals, ok := m[""]; ok && len(vals) > 0 && vals[0] != "" {
		return vals[0], true
	}
	for _, lang := range []string{preferred, "eng", "fra"} {
		if vals, ok := m[lang]; ok && len(vals) > 0 && vals[0] != "" {
			return vals[0], true
		}
	}
	// Any available language, in deterministic order.
	langs := make([]string, 0, len(m))
	for lang := range m {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		if vals := m[lang]; len(vals) > 0 && vals[0] != "" {
			return vals[0], true
		}
	}
	return "", false
}

// StringList decodes a TED field that may be a JSON array of strings or
// numbers, or a single scalar.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	if isJSONNull(b) {
		*l = nil
		return nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(b, &arr); err == nil {
		out := make(StringList, 0, len(arr))
		for _, el := range arr {
			var s string
			if err := json.Unmarshal(el, &s); err == nil {
				out = append(out, s)
				continue
			}
			var n json.Number
			if err := json.Unmarshal(el, &n); err == nil {
				out = append(out, n.String())
			}
		}
		*l = out
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s == "" {
			*l = nil
			return nil
		}
		*l = StringList{s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*l = StringList{n.String()}
	}
	return nil
}

// First returns the head of the list, or false when the field was absent
// or empty.
func (l StringList) First() (string, bool) {
	if len(l) == 0 {
		return "", false
	}
	return l[0], true
}

// FlexFloat decodes a numeric field that upstream may send as a JSON
// number or as a numeric string. Anything unparseable is treated as
// absent, never as an error.
type FlexFloat struct {
	value float64
	valid bool
}

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	if isJSONNull(b) {
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		f.value, f.valid = n, true
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			f.value, f.valid = v, true
		}
	}
	return nil
}

// Get returns the parsed value, or false when none was present.
func (f FlexFloat) Get() (float64, bool) {
	return f.value, f.valid
}

// NoticeLinks holds the per-language document links of a notice.
type NoticeLinks struct {
	HTML map[string]string `json:"html"`
}

// Notice is one raw record from the TED search API.
type Notice struct {
	ID                string           `json:"ND"`
	PublicationNumber string           `json:"publication-number"`
	Title             MultilingualText `json:"TI"`
	BuyerName         MultilingualText `json:"buyer-name"`
	Countries         StringList       `json:"CY"`
	Classification    StringList       `json:"NC"`
	Deadlines         StringList       `json:"DT"`
	Regions           StringList       `json:"RC"`
	ValueHigh         FlexFloat        `json:"TVH"`
	ValueLow          FlexFloat        `json:"TVL"`
	ProcedureTypes    StringList       `json:"PR"`
	PublicationDate   string           `json:"publication-date"`
	Links             NoticeLinks      `json:"links"`
}

// ParseDate converts the date formats seen across TED API versions into a
// time.Time. Supported, in order:
//
//	YYYYMMDD                     legacy format
//	YYYY-MM-DD+HH:MM             v3 date with offset, offset dropped
//	YYYY-MM-DDZ                  v3 date with Z suffix
//	full ISO-8601 datetime       with or without offset
//	YYYY-MM-DD prefix            first 10 characters
func ParseDate(s string) (time.Time, error) {
	if len(s) == 8 && isDigits(s) {
		t, err := time.Parse("20060102", s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
		}
		return t, nil
	}
	if i := strings.IndexByte(s, '+'); i > 0 && !strings.Contains(s, "T") && len(s) > 10 {
		if t, err := time.Parse("2006-01-02", s[:i]); err == nil {
			return t, nil
		}
	}
	if len(s) == 11 && strings.HasSuffix(s, "Z") {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t, nil
		}
	}
	normalized := s
	if strings.HasSuffix(normalized, "Z") {
		normalized = strings.TrimSuffix(normalized, "Z") + "+00:00"
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, normalized); err == nil {
			return t, nil
		}
	}
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %q", s)
}

// isJSONNull reports an explicit JSON null, which every decode type must
// treat as an absent field rather than a zero value.
func isJSONNull(b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NoticeToTender normalizes one raw notice into a Tender. An error means
// the record is unusable (no identifier, malformed dates, negative value);
// callers are expected to log it and skip the record.
func NoticeToTender(raw []byte) (*tender.Tender, error) {
	var n Notice
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("decode notice: %w", err)
	}

	id := n.ID
	if id == "" {
		id = n.PublicationNumber
	}
	if id == "" {
		return nil, fmt.Errorf("notice has no identifier")
	}

	title, ok := n.Title.Resolve("fra")
	if !ok {
		title = tender.FallbackTitle
	}
	buyer, ok := n.BuyerName.Resolve("fra")
	if !ok {
		buyer = tender.FallbackBuyer
	}

	country := tender.FallbackCountry
	if c, ok := n.Countries.First(); ok && strings.TrimSpace(c) != "" {
		country = strings.ToUpper(strings.TrimSpace(c))
	}

	var pubDate time.Time
	if n.PublicationDate == "" {
		// Last resort: the API guarantees a publication date in practice,
		// but a stored record must always carry one.
		pubDate = time.Now()
	} else {
		var err error
		pubDate, err = ParseDate(n.PublicationDate)
		if err != nil {
			return nil, fmt.Errorf("publication date: %w", err)
		}
	}

	var deadline *time.Time
	if d, ok := n.Deadlines.First(); ok && d != "" {
		t, err := ParseDate(d)
		if err != nil {
			return nil, fmt.Errorf("deadline: %w", err)
		}
		deadline = &t
	}

	var value *float64
	if v, ok := n.ValueHigh.Get(); ok {
		value = &v
	} else if v, ok := n.ValueLow.Get(); ok {
		value = &v
	}
	if value != nil && *value < 0 {
		return nil, fmt.Errorf("negative estimated value %v", *value)
	}

	var region *string
	if r, ok := n.Regions.First(); ok && r != "" {
		region = &r
	}
	var procedure *string
	if p, ok := n.ProcedureTypes.First(); ok && p != "" {
		procedure = &p
	}

	return &tender.Tender{
		NoticeID:           id,
		Title:              title,
		BuyerName:          buyer,
		BuyerCountry:       country,
		EstimatedValue:     value,
		Currency:           "EUR", // TED reports values in EUR
		Deadline:           deadline,
		PublicationDate:    pubDate,
		CPVCodes:           cpvCodes(n.Classification),
		ProcedureType:      procedure,
		PlaceOfPerformance: region,
		URL:                noticeURL(n.Links, id),
	}, nil
}

// cpvCodes copies the classification list, splitting any comma-separated
// entries and dropping empty segments.
func cpvCodes(classification StringList) []string {
	codes := make([]string, 0, len(classification))
	for _, entry := range classification {
		for _, code := range strings.Split(entry, ",") {
			if code = strings.TrimSpace(code); code != "" {
				codes = append(codes, code)
			}
		}
	}
	return codes
}

// noticeURL picks the notice link, preferring French, then English, then
// any language, then a synthesized canonical URL.
func noticeURL(links NoticeLinks, noticeID string) string {
	if u := links.HTML["FRA"]; u != "" {
		return u
	}
	if u := links.HTML["ENG"]; u != "" {
		return u
	}
	langs := make([]string, 0, len(links.HTML))
	for lang := range links.HTML {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		if u := links.HTML[lang]; u != "" {
			return u
		}
	}
	return noticeURLPrefix + noticeID
}

// noticeIdentifier extracts the notice ID from a raw record for log
// messages, tolerating records that fail full decoding.
func noticeIdentifier(raw []byte) string {
	var partial struct {
		ID                string `json:"ND"`
		PublicationNumber string `json:"publication-number"`
	}
	if err := json.Unmarshal(raw, &partial); err != nil {
		return ""
	}
	if partial.ID != "" {
		return partial.ID
	}
	return partial.PublicationNumber
}
