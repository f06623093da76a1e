package asset

import (
	"encoding/json"
	"testing"
)

func TestClassifyType(t *testing.T) {
	cases := []struct {
		path string
		want MediaType
	}{
		{"photos/red-bicycle.JPG", TypeImage},
		{"a.jpeg", TypeImage},
		{"a.png", TypeImage},
		{"a.gif", TypeImage},
		{"a.webp", TypeImage},
		{"clips/ride.mp4", TypeVideo},
		{"clips/ride.MOV", TypeVideo},
		{"a.avi", TypeVideo},
		{"a.mkv", TypeVideo},
		{"a.webm", TypeVideo},
		{"a.flv", TypeVideo},
		{"notes.txt", TypeUnknown},
		{"archive.tar.gz", TypeUnknown},
		{"noextension", TypeUnknown},
	}
	for _, tc := range cases {
		if got := ClassifyType(tc.path); got != tc.want {
			t.Errorf("ClassifyType(%q) = %s, want %s", tc.path, got, tc.want)
		}
	}
}

func TestNewRecordDefaults(t *testing.T) {
	rec := NewRecord("abc", "media/a.jpg")
	if rec.Identity != "abc" || rec.SourcePath != "media/a.jpg" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Type != TypeUnknown {
		t.Fatalf("new record type should be unknown, got %s", rec.Type)
	}
	if rec.BaseName != "" || rec.DescriptionPath != "" {
		t.Fatal("naming fields must start empty")
	}
	if rec.CompletedStages.Len() != 0 {
		t.Fatal("completed stages must start empty")
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Fatal("timestamps must be set")
	}
}

func TestMarkCompleted(t *testing.T) {
	rec := NewRecord("abc", "a.jpg")
	before := rec.UpdatedAt
	rec.MarkCompleted(StageNaming)
	if !rec.HasCompleted(StageNaming) {
		t.Fatal("stage not recorded")
	}
	if rec.UpdatedAt.Before(before) {
		t.Fatal("UpdatedAt went backwards")
	}
}

func TestRecordJSONShape(t *testing.T) {
	rec := NewRecord("h1", "a.jpg")
	rec.BaseName = "red-bicycle"
	rec.Type = TypeImage
	rec.MarkCompleted(StageNaming)
	rec.Outputs = Outputs{
		Type:       TypeImage,
		PagePath:   "html/red-bicycle.html",
		ImageFiles: []ImageFile{{Format: "jpg", Width: 640, Path: "images/red-bicycle-640w.jpg"}},
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"identity", "sourcePath", "baseName", "completedStages", "assetType", "outputs"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("serialized record missing %q: %s", key, data)
		}
	}

	var roundTrip Record
	if err := json.Unmarshal(data, &roundTrip); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if !roundTrip.HasCompleted(StageNaming) {
		t.Fatal("round trip lost completed stage")
	}
	if roundTrip.Outputs.ImageFiles[0].Width != 640 {
		t.Fatalf("round trip lost manifest: %+v", roundTrip.Outputs)
	}
}

func TestCloneIsDeep(t *testing.T) {
	rec := NewRecord("h1", "a.jpg")
	rec.MarkCompleted(StageNaming)
	rec.Outputs.ImageFiles = []ImageFile{{Format: "jpg", Width: 640, Path: "p"}}

	clone := rec.Clone()
	clone.MarkCompleted(StageImageDerivatives)
	clone.Outputs.ImageFiles[0].Path = "changed"

	if rec.HasCompleted(StageImageDerivatives) {
		t.Fatal("clone shares stage set")
	}
	if rec.Outputs.ImageFiles[0].Path != "p" {
		t.Fatal("clone shares manifest slice")
	}
}
