package repository

import "testing"

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name                  string
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{name: "defaults", limit: 0, offset: 0, wantLimit: 50, wantOffset: 0},
		{name: "negative offset", limit: 10, offset: -5, wantLimit: 10, wantOffset: 0},
		{name: "too large", limit: 10000, offset: 20, wantLimit: 50, wantOffset: 20},
		{name: "passthrough", limit: 25, offset: 75, wantLimit: 25, wantOffset: 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := normalizePage(tt.limit, tt.offset)
			if limit != tt.wantLimit || offset != tt.wantOffset {
				t.Fatalf("normalizePage(%d, %d) = (%d, %d), want (%d, %d)",
					tt.limit, tt.offset, limit, offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

type fakeRow struct {
	values []any
}

func (f fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = f.values[i].(string)
		case **string:
			if v, ok := f.values[i].(string); ok {
				*p = &v
			} else {
				*p = nil
			}
		}
	}
	return nil
}

func TestScanAuthor(t *testing.T) {
	author, err := scanAuthor(fakeRow{values: []any{"a1", "Ada", "ada@authors.imagehub.local", nil}})
	if err != nil {
		t.Fatalf("scanAuthor: %v", err)
	}
	if author.ID != "a1" || author.Name != "Ada" || author.Email != "ada@authors.imagehub.local" {
		t.Fatalf("unexpected author %+v", author)
	}
}
