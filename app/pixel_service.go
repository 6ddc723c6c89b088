package app

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"path/filepath"
	"strings"
	"time"

	"curiesuite/adapters/excel"
	"curiesuite/domain/pixel"
	"curiesuite/domain/run"
	"curiesuite/internal/errors"
	"curiesuite/internal/pixelcount"
	"curiesuite/ports"

	"github.com/rs/zerolog"
)

// Upload is one uploaded file
type Upload struct {
	Name string
	Data []byte
}

// PixelRequest counts gray levels in a range across a batch of images.
// Preview names the image rendered for display, the first one when empty.
type PixelRequest struct {
	Title        string      `json:"title"`
	Images       []Upload    `json:"-"`
	Range        pixel.Range `json:"range"`
	Highlight    bool        `json:"highlight"`
	Preview      string      `json:"preview"`
	PreviewWidth int         `json:"preview_width"`
}

// PixelResult holds the per file counts and the rendered preview
type PixelResult struct {
	Run     *run.Run
	Counts  []pixel.Count
	Preview string
}

// PixelService runs the pixel counting tab
type PixelService struct {
	runs ports.RunRepository
	log  zerolog.Logger
}

// NewPixelService creates a pixel service
func NewPixelService(runs ports.RunRepository, log zerolog.Logger) *PixelService {
	return &PixelService{runs: runs, log: log.With().Str("component", "pixel_service").Logger()}
}

// Count decodes every image, counts in-range pixels and renders the preview
func (s *PixelService) Count(ctx context.Context, req PixelRequest) (*PixelResult, error) {
	if len(req.Images) == 0 {
		return nil, errors.InvalidInput("upload at least one image")
	}
	if err := req.Range.Validate(); err != nil {
		return nil, errors.InvalidInput(err.Error())
	}
	if req.Preview == "" {
		req.Preview = req.Images[0].Name
	}
	if req.PreviewWidth <= 0 {
		req.PreviewWidth = 800
	}

	start := time.Now()
	stem := FileStem(req.Title, "pixel_counts")
	r, err := run.New(run.KindPixels, stem, req)
	if err != nil {
		return nil, errors.Wrap(err, "record run")
	}

	res := &PixelResult{Run: r}
	rows := make([][]string, 0, len(req.Images))
	for _, up := range req.Images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, format, err := pixelcount.Decode(bytes.NewReader(up.Data))
		if err != nil {
			return nil, errors.InvalidInputf("%s: %v", up.Name, err)
		}
		gray := pixelcount.Grayscale(img)
		in, total := pixelcount.Count(gray, req.Range)
		c := pixel.Count{FileName: up.Name, InRange: in, Total: total}
		res.Counts = append(res.Counts, c)
		rows = append(rows, c.Record())
		r.Summary = append(r.Summary, fmt.Sprintf("%s: %d of %d pixels (%.2f%%)", c.FileName, c.InRange, c.Total, c.Percentage()))
		s.log.Debug().Str("file", up.Name).Str("format", format).Int("in_range", in).Int("total", total).Msg("image counted")

		if up.Name == req.Preview && res.Preview == "" {
			var buf bytes.Buffer
			preview := pixelcount.Preview(pixelcount.Render(gray, req.Range, req.Highlight), req.PreviewWidth)
			if err := png.Encode(&buf, preview); err != nil {
				return nil, errors.Wrap(err, "encode preview")
			}
			res.Preview = FileStem(strings.TrimSuffix(up.Name, filepath.Ext(up.Name)), "image") + "_processed.png"
			r.Attach(run.NewArtifact(res.Preview, run.MediaPNG, buf.Bytes()))
		}
	}

	artifacts, err := tableArtifacts(stem, excel.Sheet{Name: "Pixel Counts", Headers: pixel.CountHeaders, Rows: rows})
	if err != nil {
		return nil, err
	}
	for _, a := range artifacts {
		r.Attach(a)
	}
	r.Elapsed = time.Since(start)
	s.log.Info().Int("images", len(res.Counts)).Int("lower", req.Range.Lower).Int("upper", req.Range.Upper).Msg("pixels counted")

	if err := s.runs.Save(ctx, r); err != nil {
		return nil, errors.Wrap(err, "save pixel run")
	}
	return res, nil
}
