package scenegen

import (
	"math"
	"strconv"
	"strings"
)

// Dimensions is a concrete render size sent to the provider.
type Dimensions struct {
	Width  int
	Height int
}

// supportedRatios is the finite set of render sizes the provider accepts,
// keyed by canonical aspect string.
var supportedRatios = []struct {
	name string
	dims Dimensions
}{
	{"16:9", Dimensions{Width: 1920, Height: 1080}},
	{"9:16", Dimensions{Width: 1080, Height: 1920}},
	{"1:1", Dimensions{Width: 1080, Height: 1080}},
	{"4:3", Dimensions{Width: 1440, Height: 1080}},
	{"21:9", Dimensions{Width: 2560, Height: 1080}},
}

// ResolveDimensions maps an aspect-ratio string to render dimensions. Exact
// table entries win; anything else that parses as W:H snaps to the entry with
// the nearest ratio. Unparseable input falls back to 16:9.
func ResolveDimensions(aspect string) Dimensions {
	aspect = strings.TrimSpace(aspect)
	for _, entry := range supportedRatios {
		if entry.name == aspect {
			return entry.dims
		}
	}

	ratio, ok := parseRatio(aspect)
	if !ok {
		return supportedRatios[0].dims
	}

	best := supportedRatios[0]
	bestDiff := math.Abs(ratioOf(best.dims) - ratio)
	for _, entry := range supportedRatios[1:] {
		diff := math.Abs(ratioOf(entry.dims) - ratio)
		if diff < bestDiff {
			best = entry
			bestDiff = diff
		}
	}
	return best.dims
}

func parseRatio(aspect string) (float64, bool) {
	parts := strings.SplitN(aspect, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	width, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || width <= 0 {
		return 0, false
	}
	height, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || height <= 0 {
		return 0, false
	}
	return width / height, true
}

func ratioOf(dims Dimensions) float64 {
	return float64(dims.Width) / float64(dims.Height)
}
