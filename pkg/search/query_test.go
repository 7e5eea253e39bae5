package search

import (
	"errors"
	"net/url"
	"reflect"
	"testing"
)

func TestQuery_Values(t *testing.T) {
	tests := []struct {
		name     string
		query    Query
		expected url.Values
	}{
		{
			name:     "text",
			query:    Text("Register to vote"),
			expected: url.Values{"q": {"Register to vote"}},
		},
		{
			name:     "count and start",
			query:    Query{Text: "Register to vote", Count: Int(50), Start: Int(0)},
			expected: url.Values{"q": {"Register to vote"}, "count": {"50"}, "start": {"0"}},
		},
		{
			name:     "order",
			query:    Query{Order: "-public_timestamp"},
			expected: url.Values{"order": {"-public_timestamp"}},
		},
		{
			name:     "repeated fields",
			query:    Query{Fields: []string{"title", "link"}},
			expected: url.Values{"fields": {"title", "link"}},
		},
		{
			name: "facets",
			query: Query{}.
				Filter("format", "guide").
				WithFacet(FacetReject, "organisations", "hm-revenue-customs").
				WithFacet(FacetAggregate, "mainstream_browse_pages", "10").
				WithFacet(FacetFacet, "organisations", "5"),
			expected: url.Values{
				"filter_format":                     {"guide"},
				"reject_organisations":              {"hm-revenue-customs"},
				"aggregate_mainstream_browse_pages": {"10"},
				"facet_organisations":               {"5"},
			},
		},
		{
			name:     "total is never sent",
			query:    Query{Text: "x", Total: 10},
			expected: url.Values{"q": {"x"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.Values(); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Values() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestQuery_Merge(t *testing.T) {
	defaults := Query{Text: "default", Fields: []string{"title"}, Count: Int(10)}.Filter("format", "guide")
	call := Query{Text: "call", Start: Int(20)}.Filter("format", "answer").Filter("organisations", "hmrc")

	merged := defaults.Merge(call)

	if merged.Text != "call" {
		t.Errorf("Text = %q, want call value", merged.Text)
	}
	if merged.Count == nil || *merged.Count != 10 {
		t.Errorf("Count = %v, want default 10", merged.Count)
	}
	if merged.Start == nil || *merged.Start != 20 {
		t.Errorf("Start = %v, want 20", merged.Start)
	}
	if !reflect.DeepEqual(merged.Fields, []string{"title"}) {
		t.Errorf("Fields = %v, want default", merged.Fields)
	}
	wantFilters := map[string]string{"format": "answer", "organisations": "hmrc"}
	if !reflect.DeepEqual(merged.Facets[FacetFilter], wantFilters) {
		t.Errorf("filters = %v, want %v", merged.Facets[FacetFilter], wantFilters)
	}

	// Defaults untouched.
	if defaults.Facets[FacetFilter]["format"] != "guide" {
		t.Error("Merge modified the default facets")
	}
}

func TestQuery_MergeKeepsDefaultText(t *testing.T) {
	merged := Text("Register to vote").Merge(Query{Count: Int(2)})
	if merged.Text != "Register to vote" {
		t.Errorf("Text = %q, want default text", merged.Text)
	}
}

func TestQuery_WithFacetCopies(t *testing.T) {
	base := Query{}.Filter("format", "guide")
	derived := base.Filter("format", "answer")

	if base.Facets[FacetFilter]["format"] != "guide" {
		t.Error("WithFacet modified the receiver")
	}
	if derived.Facets[FacetFilter]["format"] != "answer" {
		t.Error("WithFacet did not set the value")
	}
}

func TestQuery_IsEmpty(t *testing.T) {
	tests := []struct {
		name     string
		query    Query
		expected bool
	}{
		{"zero", Query{}, true},
		{"total only", Query{Total: 5}, true},
		{"empty facet map", Query{Facets: map[FacetKind]map[string]string{FacetFilter: {}}}, true},
		{"text", Text("x"), false},
		{"count zero", Query{Count: Int(0)}, false},
		{"start zero", Query{Start: Int(0)}, false},
		{"fields", Query{Fields: []string{"title"}}, false},
		{"facet", Query{}.Filter("format", "guide"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.IsEmpty(); got != tt.expected {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestQuery_Validate(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		err   error
	}{
		{"valid", Text("x"), nil},
		{"negative start", Query{Start: Int(-1)}, ErrInvalidOption},
		{"negative count", Query{Count: Int(-1)}, ErrInvalidOption},
		{"negative total", Query{Total: -1}, ErrInvalidOption},
		{"unknown facet kind", Query{}.WithFacet("boost", "title", "2"), ErrUnknownOption},
		{"empty facet field", Query{}.Filter("", "guide"), ErrInvalidOption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.query.Validate(); !errors.Is(err, tt.err) {
				t.Errorf("Validate() = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestQueryFromMap(t *testing.T) {
	q, err := QueryFromMap(map[string]any{
		"q":             "Potato",
		"count":         100,
		"start":         float64(200),
		"total":         "500",
		"order":         "-public_timestamp",
		"fields":        []any{"title", "link"},
		"filter_format": "employment_tribunal_decision",
		"reject_format": "guide",
		"facet_topics":  10,
	})
	if err != nil {
		t.Fatalf("QueryFromMap() error = %v", err)
	}

	if q.Text != "Potato" || q.Order != "-public_timestamp" || q.Total != 500 {
		t.Errorf("scalars = %+v", q)
	}
	if q.Count == nil || *q.Count != 100 || q.Start == nil || *q.Start != 200 {
		t.Errorf("count/start = %v/%v", q.Count, q.Start)
	}
	if !reflect.DeepEqual(q.Fields, []string{"title", "link"}) {
		t.Errorf("Fields = %v", q.Fields)
	}
	if q.Facets[FacetFilter]["format"] != "employment_tribunal_decision" ||
		q.Facets[FacetReject]["format"] != "guide" ||
		q.Facets[FacetFacet]["topics"] != "10" {
		t.Errorf("Facets = %v", q.Facets)
	}
}

func TestQueryFromMap_NestedFacets(t *testing.T) {
	q, err := QueryFromMap(map[string]any{
		"filter": map[string]any{"format": "employment_tribunal_decision"},
		"reject": map[string]any{"link": "/browse"},
	})
	if err != nil {
		t.Fatalf("QueryFromMap() error = %v", err)
	}

	want := "filter_format=employment_tribunal_decision&reject_link=%2Fbrowse"
	if got := q.Values().Encode(); got != want {
		t.Errorf("Values() = %q, want %q", got, want)
	}
}

func TestQueryFromMap_Errors(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]any
		err     error
		message string
	}{
		{
			name:    "fields not a list",
			options: map[string]any{"fields": "title"},
			err:     ErrFieldsNotList,
			message: "fields parameter must be a list",
		},
		{
			name:    "unknown key",
			options: map[string]any{"boost_title": 2},
			err:     ErrUnknownOption,
		},
		{
			name:    "bare prefix",
			options: map[string]any{"filter_": "x"},
			err:     ErrUnknownOption,
		},
		{
			name:    "facet kind not a map",
			options: map[string]any{"filter": "format"},
			err:     ErrInvalidOption,
		},
		{
			name:    "count not a number",
			options: map[string]any{"count": "lots"},
			err:     ErrInvalidOption,
		},
		{
			name:    "fractional start",
			options: map[string]any{"start": 1.5},
			err:     ErrInvalidOption,
		},
		{
			name:    "negative count",
			options: map[string]any{"count": -10},
			err:     ErrInvalidOption,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := QueryFromMap(tt.options)
			if !errors.Is(err, tt.err) {
				t.Fatalf("QueryFromMap() error = %v, want %v", err, tt.err)
			}
			if tt.message != "" && err.Error() != tt.message {
				t.Errorf("Error message = %q, want %q", err.Error(), tt.message)
			}
		})
	}
}
