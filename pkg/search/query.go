package search

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// MaxPerPage is the largest page the search API returns and the page size
// GetAll uses by default.
const MaxPerPage = 1000

// Validation errors. They are returned before any request is made.
var (
	ErrNoQuery       = errors.New("no search query")
	ErrFieldsNotList = errors.New("fields parameter must be a list")
	ErrUnknownOption = errors.New("unknown search option")
	ErrInvalidOption = errors.New("invalid search option")
)

// FacetKind selects how a facet parameter is applied.
// https://docs.publishing.service.gov.uk/repos/search-api/using-the-search-api.html#using-faceted-search-parameters
type FacetKind string

const (
	FacetFilter    FacetKind = "filter"
	FacetReject    FacetKind = "reject"
	FacetAggregate FacetKind = "aggregate"
	FacetFacet     FacetKind = "facet"
)

var facetKinds = []FacetKind{FacetFilter, FacetReject, FacetAggregate, FacetFacet}

// Query holds search parameters. Nil and zero fields are omitted from the
// request.
type Query struct {
	// Text is the search phrase (q).
	Text string

	// Start is the offset of the first result.
	Start *int

	// Count is the page size. GetAll uses it as the page size, capped at
	// MaxPerPage.
	Count *int

	// Order is the sort order, e.g. "-public_timestamp".
	Order string

	// Fields lists the document fields to return.
	Fields []string

	// Facets maps each facet kind to field -> value, sent as <kind>_<field>.
	Facets map[FacetKind]map[string]string

	// Total overrides the result count GetAll paginates over and skips the
	// count request. Never sent to the API.
	Total int
}

// Text returns a query searching for q.
func Text(q string) Query {
	return Query{Text: q}
}

// Int returns a pointer to v, for Start and Count.
func Int(v int) *int {
	return &v
}

// WithFacet returns a copy of q with <kind>_<field>=value set.
func (q Query) WithFacet(kind FacetKind, field, value string) Query {
	out := q
	out.Facets = make(map[FacetKind]map[string]string, len(q.Facets)+1)
	for k, fields := range q.Facets {
		out.Facets[k] = copyFields(fields)
	}
	if out.Facets[kind] == nil {
		out.Facets[kind] = make(map[string]string)
	}
	out.Facets[kind][field] = value
	return out
}

// Filter returns a copy of q with filter_<field>=value set.
func (q Query) Filter(field, value string) Query {
	return q.WithFacet(FacetFilter, field, value)
}

// Merge returns q overridden by every field set in call. Facets are merged
// per field, call values winning.
func (q Query) Merge(call Query) Query {
	out := q
	if call.Text != "" {
		out.Text = call.Text
	}
	if call.Start != nil {
		out.Start = call.Start
	}
	if call.Count != nil {
		out.Count = call.Count
	}
	if call.Order != "" {
		out.Order = call.Order
	}
	if call.Fields != nil {
		out.Fields = call.Fields
	}
	if call.Total != 0 {
		out.Total = call.Total
	}

	if len(q.Facets) > 0 || len(call.Facets) > 0 {
		out.Facets = make(map[FacetKind]map[string]string)
		for _, src := range []map[FacetKind]map[string]string{q.Facets, call.Facets} {
			for kind, fields := range src {
				if out.Facets[kind] == nil {
					out.Facets[kind] = make(map[string]string, len(fields))
				}
				for field, value := range fields {
					out.Facets[kind][field] = value
				}
			}
		}
	}
	return out
}

// IsEmpty reports whether q has no parameter to send.
func (q Query) IsEmpty() bool {
	if q.Text != "" || q.Start != nil || q.Count != nil || q.Order != "" || len(q.Fields) > 0 {
		return false
	}
	for _, fields := range q.Facets {
		if len(fields) > 0 {
			return false
		}
	}
	return true
}

// Validate checks the parameters that the type system cannot.
func (q Query) Validate() error {
	if q.Start != nil && *q.Start < 0 {
		return fmt.Errorf("%w: start must be >= 0 (got %d)", ErrInvalidOption, *q.Start)
	}
	if q.Count != nil && *q.Count < 0 {
		return fmt.Errorf("%w: count must be >= 0 (got %d)", ErrInvalidOption, *q.Count)
	}
	if q.Total < 0 {
		return fmt.Errorf("%w: total must be >= 0 (got %d)", ErrInvalidOption, q.Total)
	}
	for kind, fields := range q.Facets {
		if !isFacetKind(kind) {
			return fmt.Errorf("%w: facet kind %q", ErrUnknownOption, kind)
		}
		for field := range fields {
			if field == "" {
				return fmt.Errorf("%w: empty %s field name", ErrInvalidOption, kind)
			}
		}
	}
	return nil
}

// Values encodes q as search API query parameters.
func (q Query) Values() url.Values {
	params := url.Values{}
	if q.Text != "" {
		params.Set("q", q.Text)
	}
	// https://docs.publishing.service.gov.uk/repos/search-api/using-the-search-api.html#pagination
	if q.Count != nil {
		params.Set("count", strconv.Itoa(*q.Count))
	}
	if q.Start != nil {
		params.Set("start", strconv.Itoa(*q.Start))
	}
	if q.Order != "" {
		params.Set("order", q.Order)
	}
	// https://github.com/alphagov/search-api/blob/main/config/schema/field_definitions.json
	for _, field := range q.Fields {
		params.Add("fields", field)
	}
	for _, kind := range facetKinds {
		fields := q.Facets[kind]
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			params.Add(string(kind)+"_"+name, fields[name])
		}
	}
	return params
}

// QueryFromMap builds a Query from loosely typed options, such as a decoded
// YAML or JSON file. Recognised keys are q, start, count, order, fields,
// total, any key prefixed with filter_, reject_, aggregate_ or facet_, and
// the bare kinds (filter, reject, aggregate, facet) holding a map of field
// to value.
func QueryFromMap(options map[string]any) (Query, error) {
	var q Query

	for key, value := range options {
		var err error
		switch key {
		case "q":
			q.Text = fmt.Sprint(value)
		case "start":
			var v int
			v, err = toInt(key, value)
			q.Start = &v
		case "count":
			var v int
			v, err = toInt(key, value)
			q.Count = &v
		case "total":
			q.Total, err = toInt(key, value)
		case "order":
			q.Order = fmt.Sprint(value)
		case "fields":
			q.Fields, err = toStrings(value)
		case string(FacetFilter), string(FacetReject), string(FacetAggregate), string(FacetFacet):
			fields, ok := value.(map[string]any)
			if !ok {
				return Query{}, fmt.Errorf("%w: %s must be a map of field to value", ErrInvalidOption, key)
			}
			for field, v := range fields {
				q = q.WithFacet(FacetKind(key), field, fmt.Sprint(v))
			}
		default:
			kind, field, ok := splitFacetKey(key)
			if !ok {
				return Query{}, fmt.Errorf("%w: %q", ErrUnknownOption, key)
			}
			q = q.WithFacet(kind, field, fmt.Sprint(value))
		}
		if err != nil {
			return Query{}, err
		}
	}

	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}

func splitFacetKey(key string) (FacetKind, string, bool) {
	for _, kind := range facetKinds {
		prefix := string(kind) + "_"
		if field, ok := strings.CutPrefix(key, prefix); ok && field != "" {
			return kind, field, true
		}
	}
	return "", "", false
}

func isFacetKind(kind FacetKind) bool {
	for _, k := range facetKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func toInt(key string, value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%w: %s must be a whole number (got %v)", ErrInvalidOption, key, v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be a number (got %q)", ErrInvalidOption, key, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number (got %T)", ErrInvalidOption, key, value)
	}
}

func toStrings(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out, nil
	default:
		return nil, ErrFieldsNotList
	}
}

func copyFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
