// Package assigner computes the aspect-ratio bucket key of a stored image.
package assigner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/disintegration/imaging"

	"github.com/sgaunet/aspectidx/pkg/backend"
)

// ErrZeroDimension is returned for images with a zero width or height.
var ErrZeroDimension = errors.New("image has a zero dimension")

// Assigner maps a stored file to its aspect-ratio bucket key. Assignment is
// idempotent and pure with respect to the file's bytes.
type Assigner interface {
	AssignBucket(ctx context.Context, b backend.Backend, ref string) (string, error)
}

// Func adapts a plain function to the Assigner interface.
type Func func(ctx context.Context, b backend.Backend, ref string) (string, error)

// AssignBucket calls f.
func (f Func) AssignBucket(ctx context.Context, b backend.Backend, ref string) (string, error) {
	return f(ctx, b, ref)
}

// ImageAssigner decodes the stored image and derives its reduced W:H ratio.
type ImageAssigner struct{}

// NewImageAssigner creates a new image assigner.
func NewImageAssigner() *ImageAssigner {
	return &ImageAssigner{}
}

// AssignBucket reads the image bytes through the backend, decodes them and
// returns the canonical ratio key for the image's dimensions.
func (a *ImageAssigner) AssignBucket(ctx context.Context, b backend.Backend, ref string) (string, error) {
	data, err := b.Read(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("AssignBucket: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("AssignBucket: failed to decode %s: %w", ref, err)
	}
	bounds := img.Bounds()
	return RatioKey(bounds.Dx(), bounds.Dy())
}

// RatioKey canonicalizes a width/height pair into a reduced "W:H" key,
// e.g. 1920x1080 -> "16:9".
func RatioKey(width, height int) (string, error) {
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("RatioKey: %dx%d: %w", width, height, ErrZeroDimension)
	}
	d := gcd(width, height)
	return strconv.Itoa(width/d) + ":" + strconv.Itoa(height/d), nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
