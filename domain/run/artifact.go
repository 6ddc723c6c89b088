package run

import "curiesuite/domain/core"

// Media types of downloadable artifacts
const (
	MediaFASTA = "text/x-fasta"
	MediaCSV   = "text/csv"
	MediaXLSX  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MediaPNG   = "image/png"
	MediaText  = "text/plain"
)

// Artifact is a file produced by a run
type Artifact struct {
	Name      string `json:"name" db:"name"`
	MediaType string `json:"media_type" db:"media_type"`
	Data      []byte `json:"-" db:"data"`
}

// NewArtifact builds an artifact
func NewArtifact(name, mediaType string, data []byte) Artifact {
	return Artifact{Name: name, MediaType: mediaType, Data: data}
}

// Text builds a text artifact
func Text(name, mediaType, body string) Artifact {
	return NewArtifact(name, mediaType, []byte(body))
}

// ETag is a strong validator for the artifact contents
func (a Artifact) ETag() string {
	return `"` + core.NewHash(a.Data).Short() + `"`
}

// Size in bytes
func (a Artifact) Size() int { return len(a.Data) }
