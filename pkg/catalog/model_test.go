package catalog

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestThumbnail_ResolvedURL(t *testing.T) {
	tests := []struct {
		name      string
		thumbnail Thumbnail
		want      string
	}{
		{
			name:      "http path is upgraded",
			thumbnail: Thumbnail{Path: "http://i.annihil.us/u/prod/marvel/i/mg/c/e0/535fecbbb9784", Extension: "jpg"},
			want:      "https://i.annihil.us/u/prod/marvel/i/mg/c/e0/535fecbbb9784.jpg",
		},
		{
			name:      "https path is kept",
			thumbnail: Thumbnail{Path: "https://example.com/image", Extension: "png"},
			want:      "https://example.com/image.png",
		},
		{
			name:      "no extension",
			thumbnail: Thumbnail{Path: "http://example.com/image"},
			want:      "https://example.com/image",
		},
		{
			name:      "empty path",
			thumbnail: Thumbnail{Extension: "jpg"},
			want:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.thumbnail.ResolvedURL(); got != tt.want {
				t.Errorf("ResolvedURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestItem_RelatedResourceURIs(t *testing.T) {
	item := Item{
		ID: 1,
		Variants: []Summary{
			{ResourceURI: "http://gateway.marvel.com/v1/public/comics/2", Name: "Variant A"},
			{ResourceURI: "  ", Name: "Broken"},
			{ResourceURI: "http://gateway.marvel.com/v1/public/comics/3", Name: "Variant B"},
		},
	}

	want := []string{
		"http://gateway.marvel.com/v1/public/comics/2",
		"http://gateway.marvel.com/v1/public/comics/3",
	}
	if got := item.RelatedResourceURIs(); !reflect.DeepEqual(got, want) {
		t.Errorf("RelatedResourceURIs() = %v, want %v", got, want)
	}

	if got := (Item{}).RelatedResourceURIs(); len(got) != 0 {
		t.Errorf("RelatedResourceURIs() on empty item = %v, want empty", got)
	}
}

func TestItem_CreatorsCollectionURI(t *testing.T) {
	if got := (Item{}).CreatorsCollectionURI(); got != "" {
		t.Errorf("CreatorsCollectionURI() = %q, want empty", got)
	}

	item := Item{Creators: &CreatorList{CollectionURI: "http://gateway.marvel.com/v1/public/comics/1/creators"}}
	if got := item.CreatorsCollectionURI(); got != "http://gateway.marvel.com/v1/public/comics/1/creators" {
		t.Errorf("CreatorsCollectionURI() = %q", got)
	}
}

func TestItem_DecodeWireFormat(t *testing.T) {
	raw := `{
		"id": 82967,
		"title": "Marvel Previews (2017)",
		"description": null,
		"thumbnail": {"path": "http://i.annihil.us/u/prod/marvel/i/mg/c/80/5e3d7536c8ada", "extension": "jpg"},
		"variants": [{"resourceURI": "http://gateway.marvel.com/v1/public/comics/82965", "name": "Marvel Previews (2017)"}],
		"creators": {"available": 1, "collectionURI": "http://gateway.marvel.com/v1/public/comics/82967/creators",
			"items": [{"resourceURI": "http://gateway.marvel.com/v1/public/creators/10021", "name": "Jim Nausedas", "role": "editor"}]}
	}`

	var item Item
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if item.ID != 82967 {
		t.Errorf("ID = %d, want 82967", item.ID)
	}
	if item.Description != "" {
		t.Errorf("Description = %q, want empty for null", item.Description)
	}
	if len(item.RelatedResourceURIs()) != 1 {
		t.Errorf("RelatedResourceURIs() len = %d, want 1", len(item.RelatedResourceURIs()))
	}
	if item.Creators == nil || item.Creators.Items[0].Role != "editor" {
		t.Errorf("Creators not decoded: %+v", item.Creators)
	}
}
