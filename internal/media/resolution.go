package media

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownResolution is returned when a resolution name is not in the
// tier table. An unknown name is a configuration error, never a silent
// no-op.
var ErrUnknownResolution = errors.New("unknown resolution")

// resolutionTiers maps named output quality presets to their canonical
// landscape frame size. Portrait sources swap the axes at lookup time.
var resolutionTiers = map[string]Size{
	"8k":    {Width: 7680, Height: 4320},
	"4k":    {Width: 3840, Height: 2160},
	"1080p": {Width: 1920, Height: 1080},
	"720p":  {Width: 1280, Height: 720},
	"540p":  {Width: 960, Height: 540},
	"480p":  {Width: 854, Height: 480},
	"360p":  {Width: 640, Height: 360},
	"240p":  {Width: 426, Height: 240},
	"144p":  {Width: 256, Height: 144},
}

// LookupResolution returns the target size for a named resolution tier.
// Names are case-insensitive. Unknown names fail with ErrUnknownResolution.
func LookupResolution(name string) (Size, error) {
	size, ok := resolutionTiers[strings.ToLower(name)]
	if !ok {
		return Size{}, fmt.Errorf("%w: %q (valid: %s)", ErrUnknownResolution, name, strings.Join(ResolutionNames(), ", "))
	}
	return size, nil
}

// ResolutionNames returns the valid tier names, largest first.
func ResolutionNames() []string {
	return []string{"8k", "4k", "1080p", "720p", "540p", "480p", "360p", "240p", "144p"}
}
