package note

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/Strob0t/NoteVault/internal/domain"
)

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, []string{}},
		{"trim and drop empty", []string{" go ", "", "  ", "db"}, []string{"go", "db"}},
		{"collapse duplicates", []string{"go", "go ", "db", "go"}, []string{"go", "db"}},
		{"case sensitive", []string{"Go", "go"}, []string{"Go", "go"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTags(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeTags(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCreateRequestValidate(t *testing.T) {
	tests := []struct {
		name      string
		req       CreateRequest
		wantField string
	}{
		{name: "valid", req: CreateRequest{Title: " T ", Content: " C ", Tags: []string{"a"}}},
		{name: "blank title", req: CreateRequest{Title: "   ", Content: "c"}, wantField: "title"},
		{name: "long title", req: CreateRequest{Title: strings.Repeat("x", 201), Content: "c"}, wantField: "title"},
		{name: "title at limit", req: CreateRequest{Title: strings.Repeat("é", 200), Content: "c"}},
		{name: "blank content", req: CreateRequest{Title: "t", Content: "\n"}, wantField: "content"},
		{name: "long content", req: CreateRequest{Title: "t", Content: strings.Repeat("x", 10001)}, wantField: "content"},
		{name: "long tag", req: CreateRequest{Title: "t", Content: "c", Tags: []string{strings.Repeat("x", 51)}}, wantField: "tags"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Normalize()
			err := tt.req.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var v *domain.ValidationError
			if !errors.As(err, &v) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if v.Fields[0].Field != tt.wantField {
				t.Errorf("field = %q, want %q", v.Fields[0].Field, tt.wantField)
			}
		})
	}
}

func TestCreateRequestNormalize(t *testing.T) {
	req := CreateRequest{Title: "  Hello ", Content: " body ", Tags: []string{" a", "", "a"}}
	req.Normalize()
	if req.Title != "Hello" || req.Content != "body" {
		t.Errorf("not trimmed: %+v", req)
	}
	if !reflect.DeepEqual(req.Tags, []string{"a"}) {
		t.Errorf("tags = %q", req.Tags)
	}
}

func TestUpdateRequest(t *testing.T) {
	title := "  New  "
	tags := []string{"x", " x "}
	req := UpdateRequest{Title: &title, Tags: &tags}
	req.Normalize()
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}
	if !req.HasContentChanges() {
		t.Error("expected content changes")
	}

	n := Note{Title: "Old", Content: "keep", Tags: []string{"old"}}
	req.Apply(&n)
	if n.Title != "New" || n.Content != "keep" || !reflect.DeepEqual(n.Tags, []string{"x"}) {
		t.Errorf("Apply produced %+v", n)
	}

	empty := ""
	bad := UpdateRequest{Content: &empty}
	bad.Normalize()
	if err := bad.Validate(); err == nil {
		t.Error("empty content in update should fail")
	}

	archived := true
	if (&UpdateRequest{Archived: &archived}).HasContentChanges() {
		t.Error("archived-only update has no content changes")
	}
}

func TestListFilter(t *testing.T) {
	f := ListFilter{Search: "  go  ", Tags: []string{"a", "a", ""}}
	f.Normalize()
	if err := f.Validate(); err != nil {
		t.Fatal(err)
	}
	if f.Page != 1 || f.PageSize != DefaultPageSize || f.Search != "go" {
		t.Errorf("defaults not applied: %+v", f)
	}
	if f.Offset() != 0 {
		t.Errorf("Offset = %d, want 0", f.Offset())
	}

	f = ListFilter{Page: 3, PageSize: 20}
	f.Normalize()
	if f.Offset() != 40 {
		t.Errorf("Offset = %d, want 40", f.Offset())
	}

	tests := []struct {
		name string
		f    ListFilter
	}{
		{"negative page", ListFilter{Page: -1}},
		{"limit too large", ListFilter{PageSize: 101}},
		{"search too long", ListFilter{Search: strings.Repeat("s", 101)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.f.Normalize()
			if err := tt.f.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseTags(t *testing.T) {
	if got := ParseTags(""); got != nil {
		t.Errorf("ParseTags(\"\") = %q, want nil", got)
	}
	if got := ParseTags("work, home,,work"); !reflect.DeepEqual(got, []string{"work", "home"}) {
		t.Errorf("ParseTags = %q", got)
	}
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name  string
		page  int
		size  int
		total int
		want  Pagination
	}{
		{"empty", 1, 10, 0, Pagination{CurrentPage: 1, TotalPages: 0, TotalCount: 0, Limit: 10}},
		{"first of three", 1, 10, 25, Pagination{CurrentPage: 1, TotalPages: 3, TotalCount: 25, HasNextPage: true, Limit: 10}},
		{"middle", 2, 10, 25, Pagination{CurrentPage: 2, TotalPages: 3, TotalCount: 25, HasNextPage: true, HasPrevPage: true, Limit: 10}},
		{"last exact", 2, 5, 10, Pagination{CurrentPage: 2, TotalPages: 2, TotalCount: 10, HasPrevPage: true, Limit: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewPagination(ListFilter{Page: tt.page, PageSize: tt.size}, tt.total)
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
