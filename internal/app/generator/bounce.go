// Package generator produces moving shapes the way the shapes demo does: each shape
// travels in a straight line and bounces off the edges of the canvas.
package generator

import (
	"context"
	"time"

	"github.com/ajmhs/training-listeners-read-write/internal/domain"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

// Canvas bounds used by the shapes demo.
const (
	CanvasWidth  = 240
	CanvasHeight = 270
)

// Bouncer moves a single shape around the canvas.
type Bouncer struct {
	shape  domain.ShapeTypeExtended
	dx, dy int32
	spin   float32
}

// NewBouncer starts a shape of the given color in the middle of the canvas.
func NewBouncer(color string, size int32) *Bouncer {
	if size <= 0 {
		size = 30
	}
	return &Bouncer{
		shape: domain.ShapeTypeExtended{
			Color:     color,
			X:         CanvasWidth / 2,
			Y:         CanvasHeight / 2,
			ShapeSize: size,
			FillKind:  domain.SolidFill,
		},
		dx:   3,
		dy:   2,
		spin: 5,
	}
}

// Next advances the shape by one step and returns its new state.
func (b *Bouncer) Next() domain.ShapeTypeExtended {
	half := b.shape.ShapeSize / 2
	b.shape.X += b.dx
	b.shape.Y += b.dy

	if b.shape.X < half {
		b.shape.X = half
		b.dx = -b.dx
	} else if b.shape.X > CanvasWidth-half {
		b.shape.X = CanvasWidth - half
		b.dx = -b.dx
	}
	if b.shape.Y < half {
		b.shape.Y = half
		b.dy = -b.dy
	} else if b.shape.Y > CanvasHeight-half {
		b.shape.Y = CanvasHeight - half
		b.dy = -b.dy
	}

	b.shape.Angle += b.spin
	if b.shape.Angle >= 360 {
		b.shape.Angle -= 360
	}
	return b.shape
}

// Run writes a new position every interval until ctx is done or count samples have been
// written (count 0 means no limit). It disposes the instance before returning.
func (b *Bouncer) Run(ctx context.Context, w ports.Writer, interval time.Duration, count uint64) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var written uint64
	for count == 0 || written < count {
		select {
		case <-ctx.Done():
			return w.Dispose(b.shape.Color)
		case <-ticker.C:
			if err := w.Write(b.Next()); err != nil {
				return err
			}
			written++
		}
	}
	return w.Dispose(b.shape.Color)
}
