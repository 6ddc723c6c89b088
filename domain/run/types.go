package run

import (
	"encoding/json"
	"fmt"
	"time"

	"curiesuite/domain/core"
)

// Kind names the tool that produced a run
type Kind string

const (
	KindBlast  Kind = "blast"
	KindCurve  Kind = "curve"
	KindPixels Kind = "pixels"
	KindStats  Kind = "stats"
)

// Valid reports whether k is a known tool
func (k Kind) Valid() bool {
	switch k {
	case KindBlast, KindCurve, KindPixels, KindStats:
		return true
	}
	return false
}

// Run is one recorded execution of a tool: its parameters, the result lines
// shown on screen and the files offered for download
type Run struct {
	ID        core.RunID      `json:"id"`
	Kind      Kind            `json:"kind"`
	Title     string          `json:"title"`
	Params    json.RawMessage `json:"params"`
	Summary   []string        `json:"summary"`
	Artifacts []Artifact      `json:"artifacts"`
	CreatedAt time.Time       `json:"created_at"`
	Elapsed   time.Duration   `json:"elapsed"`
}

// New starts a run record with encoded parameters
func New(kind Kind, title string, params interface{}) (*Run, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown run kind %q", kind)
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode run parameters: %w", err)
	}
	return &Run{
		ID:        core.NewRunID(),
		Kind:      kind,
		Title:     title,
		Params:    raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Attach adds or replaces an artifact by name
func (r *Run) Attach(a Artifact) {
	for i := range r.Artifacts {
		if r.Artifacts[i].Name == a.Name {
			r.Artifacts[i] = a
			return
		}
	}
	r.Artifacts = append(r.Artifacts, a)
}

// Artifact looks an artifact up by file name
func (r *Run) Artifact(name string) (Artifact, error) {
	for _, a := range r.Artifacts {
		if a.Name == name {
			return a, nil
		}
	}
	return Artifact{}, fmt.Errorf("%w: %s in run %s", core.ErrArtifactNotFound, name, r.ID)
}

// DecodeParams unmarshals the stored parameters into v
func (r *Run) DecodeParams(v interface{}) error {
	return json.Unmarshal(r.Params, v)
}
