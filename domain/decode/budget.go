package decode

import (
	"fmt"
	"time"
)

const (
	MinDeadline  = 50 * time.Millisecond
	MaxDeadline  = 5 * time.Second
	MinPasses    = 1
	MaxPasses    = 64
	defaultQuick = 900 * time.Millisecond
)

// Budget bounds a decode run by wall time and pass count.
type Budget struct {
	Deadline  time.Duration
	MaxPasses int
}

// Normalize clamps b into a finite, small range. A zero deadline becomes the
// quick default; a zero pass count becomes MaxPasses.
func (b Budget) Normalize() Budget {
	switch {
	case b.Deadline <= 0:
		b.Deadline = defaultQuick
	case b.Deadline < MinDeadline:
		b.Deadline = MinDeadline
	case b.Deadline > MaxDeadline:
		b.Deadline = MaxDeadline
	}
	switch {
	case b.MaxPasses <= 0:
		b.MaxPasses = MaxPasses
	case b.MaxPasses > MaxPasses:
		b.MaxPasses = MaxPasses
	}
	return b
}

// TransformKind enumerates the image transforms tried per pass.
type TransformKind int

const (
	Identity TransformKind = iota
	Scale
	Rotate
	Invert
)

// Region selects which part of the still a pass decodes.
type Region int

const (
	RegionROI Region = iota
	RegionFull
)

func (r Region) String() string {
	if r == RegionFull {
		return "full"
	}
	return "roi"
}

// Transform describes how a pass derived its image from the still.
type Transform struct {
	Kind   TransformKind
	Region Region
	Factor float64 // Scale
	Angle  int     // Rotate, degrees counter-clockwise
}

func (t Transform) String() string {
	var k string
	switch t.Kind {
	case Scale:
		k = fmt.Sprintf("scale x%.2f", t.Factor)
	case Rotate:
		k = fmt.Sprintf("rotate %d", t.Angle)
	case Invert:
		k = "invert"
	default:
		k = "identity"
	}
	return t.Region.String() + "/" + k
}

// Attempt is a successful decode pass.
type Attempt struct {
	Value         string
	Format        string
	Transform     Transform
	Pass          int
	Elapsed       time.Duration
	ChecksumValid bool
	Full          bool
}
