package ted

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tender_watch/internal/domain/tender"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"legacy compact", "20240115", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"date with offset", "2024-01-15+01:00", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"date with Z", "2024-01-15Z", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"full iso with offset", "2024-01-15T14:30:00+01:00", time.Date(2024, 1, 15, 14, 30, 0, 0, time.FixedZone("", 3600)), false},
		{"full iso with Z", "2024-01-15T14:30:00Z", time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC), false},
		{"iso without offset", "2024-01-15T14:30:00", time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC), false},
		{"plain date", "2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"date prefix of junk", "2024-01-15somethingelse", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"unparseable", "not-a-date", time.Time{}, true},
		{"empty", "", time.Time{}, true},
		{"eight nondigits", "abcdefgh", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestMultilingualTextResolve(t *testing.T) {
	tests := []struct {
		name      string
		input     MultilingualText
		preferred string
		want      string
		wantOK    bool
	}{
		{"empty", nil, "fra", "", false},
		{"preferred wins", MultilingualText{"fra": {"Titre"}, "eng": {"Title"}}, "fra", "Titre", true},
		{"english fallback", MultilingualText{"eng": {"Title"}, "deu": {"Titel"}}, "fra", "Title", true},
		{"french fallback", MultilingualText{"fra": {"Titre"}, "deu": {"Titel"}}, "spa", "Titre", true},
		{"any language deterministic", MultilingualText{"nld": {"Titel NL"}, "deu": {"Titel DE"}}, "fra", "Titel DE", true},
		{"plain string", MultilingualText{"": {"Plain"}}, "fra", "Plain", true},
		{"from null", mustUnmarshalText(`null`), "fra", "", false},
		{"empty values skipped", MultilingualText{"fra": {""}, "eng": {"Title"}}, "fra", "Title", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.input.Resolve(tt.preferred)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func mustUnmarshalText(raw string) MultilingualText {
	var m MultilingualText
	if err := m.UnmarshalJSON([]byte(raw)); err != nil {
		panic(err)
	}
	return m
}

func TestStringListUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  StringList
	}{
		{"array of strings", `["a","b"]`, StringList{"a", "b"}},
		{"array of numbers", `[1, 2.5]`, StringList{"1", "2.5"}},
		{"mixed array", `["a", 7]`, StringList{"a", "7"}},
		{"scalar string", `"solo"`, StringList{"solo"}},
		{"scalar number", `42`, StringList{"42"}},
		{"empty string", `""`, nil},
		{"null", `null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got StringList
			require.NoError(t, got.UnmarshalJSON([]byte(tt.input)))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("unexpected list (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFlexFloat(t *testing.T) {
	var f FlexFloat
	require.NoError(t, f.UnmarshalJSON([]byte(`1500000.5`)))
	v, ok := f.Get()
	assert.True(t, ok)
	assert.Equal(t, 1500000.5, v)

	var fromString FlexFloat
	require.NoError(t, fromString.UnmarshalJSON([]byte(`" 2500000 "`)))
	v, ok = fromString.Get()
	assert.True(t, ok)
	assert.Equal(t, 2500000.0, v)

	var junk FlexFloat
	require.NoError(t, junk.UnmarshalJSON([]byte(`"n/a"`)))
	_, ok = junk.Get()
	assert.False(t, ok)

	var null FlexFloat
	require.NoError(t, null.UnmarshalJSON([]byte(`null`)))
	_, ok = null.Get()
	assert.False(t, ok)
}

func TestNoticeToTender(t *testing.T) {
	raw := []byte(`{
		"ND": "123456-2024",
		"TI": {"fra": ["Construction d'une ecole"], "eng": ["School construction"]},
		"buyer-name": {"fra": ["Ville de Lyon"]},
		"CY": ["fra"],
		"NC": ["45000000, 45210000"],
		"DT": ["20250115"],
		"RC": ["FRK26"],
		"TVH": "2500000",
		"PR": ["open"],
		"publication-date": "2024-06-01+02:00",
		"links": {"html": {"FRA": "https://ted.europa.eu/fr/notice/-/detail/123456-2024"}}
	}`)

	got, err := NoticeToTender(raw)
	require.NoError(t, err)

	assert.Equal(t, "123456-2024", got.NoticeID)
	assert.Equal(t, "Construction d'une ecole", got.Title)
	assert.Equal(t, "Ville de Lyon", got.BuyerName)
	assert.Equal(t, "FRA", got.BuyerCountry)
	require.NotNil(t, got.EstimatedValue)
	assert.Equal(t, 2500000.0, *got.EstimatedValue)
	assert.Equal(t, "EUR", got.Currency)
	require.NotNil(t, got.Deadline)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), got.Deadline.UTC())
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), got.PublicationDate.UTC())
	assert.Equal(t, []string{"45000000", "45210000"}, got.CPVCodes)
	require.NotNil(t, got.ProcedureType)
	assert.Equal(t, "open", *got.ProcedureType)
	require.NotNil(t, got.PlaceOfPerformance)
	assert.Equal(t, "FRK26", *got.PlaceOfPerformance)
	assert.Equal(t, "https://ted.europa.eu/fr/notice/-/detail/123456-2024", got.URL)
}

func TestNoticeToTenderSentinels(t *testing.T) {
	raw := []byte(`{"ND": "999-2024", "publication-date": "2024-06-01"}`)

	got, err := NoticeToTender(raw)
	require.NoError(t, err)

	assert.Equal(t, tender.FallbackTitle, got.Title)
	assert.Equal(t, tender.FallbackBuyer, got.BuyerName)
	assert.Equal(t, tender.FallbackCountry, got.BuyerCountry)
	assert.Nil(t, got.EstimatedValue)
	assert.Nil(t, got.Deadline)
	assert.Empty(t, got.CPVCodes)
	assert.Equal(t, "https://ted.europa.eu/fr/notice/-/detail/999-2024", got.URL)
}

func TestNoticeToTenderFallsBackToPublicationNumber(t *testing.T) {
	raw := []byte(`{"publication-number": "555-2024", "publication-date": "2024-06-01"}`)
	got, err := NoticeToTender(raw)
	require.NoError(t, err)
	assert.Equal(t, "555-2024", got.NoticeID)
}

func TestNoticeToTenderValueLowFallback(t *testing.T) {
	raw := []byte(`{"ND": "1-2024", "publication-date": "2024-06-01", "TVL": 100.0}`)
	got, err := NoticeToTender(raw)
	require.NoError(t, err)
	require.NotNil(t, got.EstimatedValue)
	assert.Equal(t, 100.0, *got.EstimatedValue)
}

func TestNoticeToTenderNullValueFields(t *testing.T) {
	// An explicit null high value must not mask the low value.
	raw := []byte(`{"ND": "1-2024", "publication-date": "2024-06-01", "TVH": null, "TVL": 100.0}`)
	got, err := NoticeToTender(raw)
	require.NoError(t, err)
	require.NotNil(t, got.EstimatedValue)
	assert.Equal(t, 100.0, *got.EstimatedValue)

	raw = []byte(`{"ND": "2-2024", "publication-date": "2024-06-01", "TVH": null, "TVL": null, "TI": null, "DT": null}`)
	got, err = NoticeToTender(raw)
	require.NoError(t, err)
	assert.Nil(t, got.EstimatedValue)
	assert.Nil(t, got.Deadline)
	assert.Equal(t, tender.FallbackTitle, got.Title)
}

func TestNoticeToTenderRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no identifier", `{"publication-date": "2024-06-01"}`},
		{"bad publication date", `{"ND": "1-2024", "publication-date": "junk"}`},
		{"bad deadline", `{"ND": "1-2024", "publication-date": "2024-06-01", "DT": ["junk"]}`},
		{"negative value", `{"ND": "1-2024", "publication-date": "2024-06-01", "TVH": -5}`},
		{"not json", `not json at all`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NoticeToTender([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestNoticeURLLanguagePreference(t *testing.T) {
	assert.Equal(t, "fr-link", noticeURL(NoticeLinks{HTML: map[string]string{"FRA": "fr-link", "ENG": "en-link"}}, "1"))
	assert.Equal(t, "en-link", noticeURL(NoticeLinks{HTML: map[string]string{"ENG": "en-link", "DEU": "de-link"}}, "1"))
	assert.Equal(t, "de-link", noticeURL(NoticeLinks{HTML: map[string]string{"NLD": "nl-link", "DEU": "de-link"}}, "1"))
	assert.Equal(t, noticeURLPrefix+"1", noticeURL(NoticeLinks{}, "1"))
}
