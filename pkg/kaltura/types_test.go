package kaltura

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
)

func TestEntry_RawPassthrough(t *testing.T) {
	doc := `{"id":"0_abc","name":"Lecture","createdAt":1700000000,"referenceId":"ref-1","tags":"a,b","customField":{"x":1}}`

	var e Entry
	if err := json.Unmarshal([]byte(doc), &e); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if e.RecordID() != "0_abc" || e.OrderingKey() != 1700000000 || e.ReferenceID != "ref-1" {
		t.Errorf("unexpected entry: %+v", e)
	}

	out, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != doc {
		t.Errorf("Marshal() = %s, want original document", out)
	}
}

func TestEntry_MarshalLocal(t *testing.T) {
	e := Entry{ID: "0_x", CreatedAt: 5}
	out, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back["id"] != "0_x" || back["createdAt"] != float64(5) {
		t.Errorf("unexpected document: %s", out)
	}
}

func TestParseMediaType(t *testing.T) {
	tests := []struct {
		in      string
		want    MediaType
		wantErr bool
	}{
		{in: "video", want: MediaTypeVideo},
		{in: "AUDIO", want: MediaTypeAudio},
		{in: "image", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMediaType(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrConfiguration) {
					t.Errorf("expected ErrConfiguration, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseMediaType(%q) = %v, %v", tt.in, got, err)
			}
		})
	}
}

func TestFilter_WithIsCopy(t *testing.T) {
	base := MediaEntryFilter().WithOrderBy(OrderCreatedAtAsc)
	anchored := base.WithCreatedAtGreaterThanOrEqual(42)

	if _, ok := base["createdAtGreaterThanOrEqual"]; ok {
		t.Error("With must not mutate the receiver")
	}
	if anchored["createdAtGreaterThanOrEqual"] != int64(42) {
		t.Errorf("lower bound = %v", anchored["createdAtGreaterThanOrEqual"])
	}
	if anchored.ObjectType() != "KalturaMediaEntryFilter" {
		t.Errorf("ObjectType() = %q", anchored.ObjectType())
	}

	ids := BaseEntryFilter().WithIDIn([]string{"0_a", "0_b"})
	if ids["idIn"] != "0_a,0_b" {
		t.Errorf("idIn = %v", ids["idIn"])
	}
}

func TestESearchResponse_Entries(t *testing.T) {
	doc := `{"objects":[{"object":{"id":"0_a","referenceId":"r1"}},{"object":{"id":"0_b","referenceId":"r2"}}],"totalCount":2}`

	resp, err := Decode[ESearchResponse]([]byte(doc))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	entries := resp.Entries()
	if len(entries) != 2 || entries[1].ID != "0_b" || entries[1].ReferenceID != "r2" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestDecode_Empty(t *testing.T) {
	if _, err := Decode[Entry](nil); err == nil {
		t.Error("expected error for empty response")
	}
}
