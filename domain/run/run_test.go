package run

import (
	"errors"
	"testing"

	"curiesuite/domain/core"
)

func TestNewEncodesParams(t *testing.T) {
	r, err := New(KindBlast, "lysozyme", map[string]int{"max_hits": 10})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := core.ParseRunID(r.ID.String()); err != nil {
		t.Errorf("run id is not a UUID: %v", err)
	}
	var p map[string]int
	if err := r.DecodeParams(&p); err != nil {
		t.Fatalf("DecodeParams: %v", err)
	}
	if p["max_hits"] != 10 {
		t.Errorf("max_hits = %d, want 10", p["max_hits"])
	}
}

func TestNewRejectsUnknownKind(t *testing.T) {
	if _, err := New(Kind("plot"), "", nil); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestAttachReplacesByName(t *testing.T) {
	r := &Run{ID: core.NewRunID()}
	r.Attach(Text("q_BLAST.fasta", MediaFASTA, ">query\nAAA\n"))
	r.Attach(Text("q_BLAST.fasta", MediaFASTA, ">query\nCCC\n"))
	r.Attach(Text("q_align.fasta", MediaFASTA, ">query\nC-C\n"))

	if len(r.Artifacts) != 2 {
		t.Fatalf("len(Artifacts) = %d, want 2", len(r.Artifacts))
	}
	a, err := r.Artifact("q_BLAST.fasta")
	if err != nil {
		t.Fatalf("Artifact: %v", err)
	}
	if string(a.Data) != ">query\nCCC\n" {
		t.Errorf("artifact was not replaced: %q", a.Data)
	}
	if _, err := r.Artifact("missing.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing artifact error = %v, want not found", err)
	}
}

func TestArtifactETagTracksContent(t *testing.T) {
	a := Text("a.csv", MediaCSV, "x\n1\n")
	b := Text("a.csv", MediaCSV, "x\n2\n")
	if a.ETag() == b.ETag() {
		t.Error("different contents share an ETag")
	}
	if a.ETag() != Text("other.csv", MediaCSV, "x\n1\n").ETag() {
		t.Error("same contents produced different ETags")
	}
}
