package grid

// ThumbSize is one selectable thumbnail size preset.
type ThumbSize struct {
	Name   string
	Pixels int
}

// ThumbSizes is the size table, largest first. Index 2 (Medium) is the
// default; out-of-range indices fall back to fallbackThumbPixels.
var ThumbSizes = []ThumbSize{
	{Name: "Extra Large", Pixels: 256},
	{Name: "Large", Pixels: 192},
	{Name: "Medium", Pixels: 128},
	{Name: "Small", Pixels: 96},
	{Name: "Mini", Pixels: 76},
}

const (
	DefaultThumbSizeIndex = 2
	fallbackThumbPixels   = 128
)
