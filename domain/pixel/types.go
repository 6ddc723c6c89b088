package pixel

import (
	"fmt"
	"strconv"
)

// Range is an inclusive grayscale window within 0..255
type Range struct {
	Lower int `form:"lower" json:"lower" binding:"gte=0,lte=255"`
	Upper int `form:"upper" json:"upper" binding:"gte=0,lte=255,gtefield=Lower"`
}

// FullRange covers every gray level
func FullRange() Range { return Range{Lower: 0, Upper: 255} }

// Validate checks the bounds
func (r Range) Validate() error {
	if r.Lower < 0 || r.Upper > 255 || r.Lower > r.Upper {
		return fmt.Errorf("grayscale range [%d, %d] must satisfy 0 <= lower <= upper <= 255", r.Lower, r.Upper)
	}
	return nil
}

// Contains reports whether level lies in the window
func (r Range) Contains(level uint8) bool {
	return int(level) >= r.Lower && int(level) <= r.Upper
}

// Count is the tally for one image
type Count struct {
	FileName string `json:"file_name"`
	InRange  int    `json:"pixel_count"`
	Total    int    `json:"total_pixels"`
}

// Percentage of pixels in range, 0 for an empty image
func (c Count) Percentage() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.InRange) / float64(c.Total) * 100
}

// CountHeaders are the export columns
var CountHeaders = []string{"File Name", "Pixel Count", "Total Pixels", "Percentage"}

// Record renders the count as an export row
func (c Count) Record() []string {
	return []string{
		c.FileName,
		strconv.Itoa(c.InRange),
		strconv.Itoa(c.Total),
		strconv.FormatFloat(c.Percentage(), 'f', -1, 64),
	}
}
