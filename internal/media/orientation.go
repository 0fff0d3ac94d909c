package media

import (
	"errors"
	"fmt"
)

// ErrOrientation is returned when image orientation metadata cannot be read
// or holds a value outside the EXIF enumeration.
var ErrOrientation = errors.New("orientation detection failed")

// Angle is a normalized clockwise rotation, one of 0, 90, 180 or 270
// degrees, needed to present media upright.
type Angle int

// Normalized rotation angles.
const (
	Angle0   Angle = 0
	Angle90  Angle = 90
	Angle180 Angle = 180
	Angle270 Angle = 270
)

// exifAngles maps the eight EXIF Orientation values to the clockwise
// rotation that presents the image upright. Mirrored variants (2, 4, 5, 7)
// map to the same angle as their unmirrored counterparts; the horizontal
// flip is not corrected.
var exifAngles = map[int]Angle{
	1: Angle0,
	2: Angle0,
	3: Angle180,
	4: Angle180,
	5: Angle270,
	6: Angle90,
	7: Angle90,
	8: Angle270,
}

// AngleFromEXIF maps a raw EXIF Orientation value (1-8) to its normalized
// rotation angle. Values outside the EXIF enumeration fail with
// ErrOrientation rather than guessing.
func AngleFromEXIF(raw int) (Angle, error) {
	angle, ok := exifAngles[raw]
	if !ok {
		return Angle0, fmt.Errorf("%w: EXIF orientation value %d out of range", ErrOrientation, raw)
	}
	return angle, nil
}

// AngleFromRotationTag maps a raw stream rotation tag, as written by the
// muxer, to the normalized clockwise rotation to apply. A -90 tag needs a
// 90 degree clockwise rotation, a 90 tag needs 270 (90 counterclockwise),
// and either 180 variant needs 180. Any other value, including the absent
// default of 0, needs no rotation; that is a policy default, not a failure.
func AngleFromRotationTag(raw int) Angle {
	switch raw {
	case -90:
		return Angle90
	case 90:
		return Angle270
	case 180, -180:
		return Angle180
	default:
		return Angle0
	}
}
