package main

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/Sternrassler/govuk-api-client/internal/testutil"
)

func tribunalSearch(query url.Values) testutil.MockResponse {
	if query.Get("count") == "0" {
		return testutil.NewJSONResponse(`{"total": 3, "start": 0, "results": []}`)
	}
	return testutil.NewJSONResponse(`{"total": 3, "start": 0, "results": [
		{"title": "A v B", "link": "/a-v-b"},
		{"title": "C v D", "link": "/c-v-d"},
		{"title": "No link"}
	]}`)
}

func TestExportCommand(t *testing.T) {
	mock := testutil.NewMockGovUK()
	defer mock.Close()
	mock.SetSearch(tribunalSearch)
	mock.SetContent("a-v-b", testutil.NewJSONResponse(`{"title": "A v B", "document_type": "employment_tribunal_decision"}`))
	mock.SetContent("c-v-d", testutil.NewJSONResponse(`{"title": "C v D", "document_type": "employment_tribunal_decision"}`))

	output := filepath.Join(t.TempDir(), "data.json")
	_, err := runCLI(t, mock, "export", "Potato",
		"--filter", "format=employment_tribunal_decision",
		"--concurrency", "2",
		"-o", output)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	var items []map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("Output is not a JSON array: %v\n%s", err, data)
	}

	titles := make([]string, 0, len(items))
	for _, item := range items {
		titles = append(titles, item["title"].(string))
	}
	sort.Strings(titles)
	if len(titles) != 2 || titles[0] != "A v B" || titles[1] != "C v D" {
		t.Errorf("Exported titles = %v", titles)
	}

	// The search requests ask for title and link only.
	for _, u := range mock.Requests() {
		if u.Path != "/api/search.json" {
			continue
		}
		if fields := u.Query()["fields"]; len(fields) != 2 || fields[0] != "title" || fields[1] != "link" {
			t.Errorf("Search request fields = %v", fields)
		}
	}
}

func TestExportCommand_NoResults(t *testing.T) {
	mock := testutil.NewMockGovUK()
	defer mock.Close()

	output := filepath.Join(t.TempDir(), "data.json")
	if _, err := runCLI(t, mock, "export", "Nothing", "-o", output); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]\n" {
		t.Errorf("Expected empty array, got %q", data)
	}
	// Only the count request is made.
	if mock.GetRequestCount() != 1 {
		t.Errorf("Expected 1 request, got %d", mock.GetRequestCount())
	}
}

func TestExportCommand_ContentFailure(t *testing.T) {
	mock := testutil.NewMockGovUK()
	defer mock.Close()
	mock.SetSearch(tribunalSearch)
	mock.SetContent("a-v-b", testutil.NewJSONResponse(`{"title": "A v B"}`))

	output := filepath.Join(t.TempDir(), "data.json")
	if _, err := runCLI(t, mock, "export", "Potato", "-o", output); err == nil {
		t.Fatal("Expected error when a content item is missing")
	}
}

func TestResultLinks(t *testing.T) {
	links := resultLinks([]map[string]any{
		{"link": "/a"},
		{"link": ""},
		{"title": "no link"},
		{"link": 42},
		{"link": "/b"},
	})
	if len(links) != 2 || links[0] != "/a" || links[1] != "/b" {
		t.Errorf("resultLinks() = %v", links)
	}
}
