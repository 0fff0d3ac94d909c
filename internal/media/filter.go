package media

import (
	"fmt"
	"strings"
)

// Size is a target output frame size in pixels. Both dimensions are
// positive integers.
type Size struct {
	Width  int
	Height int
}

// Op is a single geometric filter operation. Ops serialize to ffmpeg filter
// syntax only at the invocation boundary; chain composition stays testable
// without string matching.
type Op interface {
	filter() string
}

// ScaleMode selects how a Scale op treats the source aspect ratio.
type ScaleMode int

const (
	// ScaleExact scales to exactly the given dimensions.
	ScaleExact ScaleMode = iota
	// ScaleCover scales to the smallest size that fully covers the target
	// box, preserving aspect ratio. Pair with Crop for crop-to-fit output.
	ScaleCover
	// ScaleShrink scales down to fit within the target box, preserving
	// aspect ratio. Never upscales past the target.
	ScaleShrink
)

// Transpose rotates a frame by 90 degrees. Dir follows ffmpeg transpose
// semantics: 1 is clockwise, 2 is counterclockwise.
type Transpose struct {
	Dir int
}

func (t Transpose) filter() string { return fmt.Sprintf("transpose=%d", t.Dir) }

// Scale resizes a frame to the given box according to Mode.
type Scale struct {
	Width  int
	Height int
	Mode   ScaleMode
}

func (s Scale) filter() string {
	switch s.Mode {
	case ScaleCover:
		return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", s.Width, s.Height)
	case ScaleShrink:
		return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", s.Width, s.Height)
	default:
		return fmt.Sprintf("scale=%d:%d", s.Width, s.Height)
	}
}

// Crop cuts a centered region of the given size from the frame.
type Crop struct {
	Width  int
	Height int
}

func (c Crop) filter() string { return fmt.Sprintf("crop=%d:%d", c.Width, c.Height) }

// FPS resamples the frame rate.
type FPS struct {
	N int
}

func (f FPS) filter() string { return fmt.Sprintf("fps=%d", f.N) }

// EvenDimensions rounds both frame dimensions down to the nearest even
// number. Most encoders reject odd dimensions.
type EvenDimensions struct{}

func (EvenDimensions) filter() string { return "scale=trunc(iw/2)*2:trunc(ih/2)*2" }

// Chain is an ordered sequence of filter operations. Order matters:
// rotation changes the content dimensions, so rotate ops must precede
// scale and crop ops. A chain is built fresh per invocation and never
// mutated after construction.
type Chain []Op

// Rotation returns the chain of transpose ops for the given angle.
// 180 degrees is expressed as a double transpose.
func Rotation(angle Angle) Chain {
	switch angle {
	case Angle90:
		return Chain{Transpose{Dir: 1}}
	case Angle270:
		return Chain{Transpose{Dir: 2}}
	case Angle180:
		return Chain{Transpose{Dir: 1}, Transpose{Dir: 1}}
	default:
		return nil
	}
}

// BuildChain builds the filter chain for the given rotation, optional
// target size and crop policy. With cropToFit the source is scaled to
// cover the target box and center-cropped to exactly fill it; otherwise
// it is scaled down to fit within the box with even output dimensions.
// Returns an empty chain when no rotation and no size are requested.
func BuildChain(angle Angle, size *Size, cropToFit bool) Chain {
	c := Rotation(angle)
	if size == nil {
		return c
	}
	if cropToFit {
		return append(c,
			Scale{Width: size.Width, Height: size.Height, Mode: ScaleCover},
			Crop{Width: size.Width, Height: size.Height},
		)
	}
	return append(c,
		Scale{Width: size.Width, Height: size.Height, Mode: ScaleShrink},
		EvenDimensions{},
	)
}

// WithFPS appends a frame rate op to the chain.
func (c Chain) WithFPS(n int) Chain {
	return append(c, FPS{N: n})
}

// CropToFit appends cover-scale and center-crop ops for the given size.
func (c Chain) CropToFit(size Size) Chain {
	return append(c,
		Scale{Width: size.Width, Height: size.Height, Mode: ScaleCover},
		Crop{Width: size.Width, Height: size.Height},
	)
}

// FitWithin appends shrink-scale and even-dimension ops for the given size.
func (c Chain) FitWithin(size Size) Chain {
	return append(c,
		Scale{Width: size.Width, Height: size.Height, Mode: ScaleShrink},
		EvenDimensions{},
	)
}

// Empty reports whether the chain contains no operations.
func (c Chain) Empty() bool { return len(c) == 0 }

// String serializes the chain to ffmpeg -vf syntax.
func (c Chain) String() string {
	parts := make([]string, 0, len(c))
	for _, op := range c {
		parts = append(parts, op.filter())
	}
	return strings.Join(parts, ",")
}
