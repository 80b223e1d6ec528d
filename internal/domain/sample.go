package domain

import (
	"fmt"
	"time"
)

// ShapeTypeName is the registered type name of ShapeTypeExtended on every feed.
const ShapeTypeName = "ShapeTypeExtended"

// ShapeFillKind describes how a shape is painted.
type ShapeFillKind int32

const (
	SolidFill ShapeFillKind = iota
	TransparentFill
	HorizontalHatchFill
	VerticalHatchFill
)

func (k ShapeFillKind) String() string {
	switch k {
	case SolidFill:
		return "SOLID_FILL"
	case TransparentFill:
		return "TRANSPARENT_FILL"
	case HorizontalHatchFill:
		return "HORIZONTAL_HATCH_FILL"
	case VerticalHatchFill:
		return "VERTICAL_HATCH_FILL"
	default:
		return fmt.Sprintf("ShapeFillKind(%d)", int32(k))
	}
}

// ShapeTypeExtended is the payload carried on shape topics. Color is the instance key.
type ShapeTypeExtended struct {
	Color     string        `json:"color"`
	X         int32         `json:"x"`
	Y         int32         `json:"y"`
	ShapeSize int32         `json:"shapesize"`
	FillKind  ShapeFillKind `json:"fillKind"`
	Angle     float32       `json:"angle"`
}

func (s ShapeTypeExtended) String() string {
	return fmt.Sprintf("[color: %s, x: %d, y: %d, shapesize: %d, fillKind: %s, angle: %g]",
		s.Color, s.X, s.Y, s.ShapeSize, s.FillKind, s.Angle)
}

// InstanceState tells whether the instance a sample refers to is still alive.
type InstanceState int

const (
	InstanceAlive InstanceState = iota
	InstanceDisposed
	InstanceNoWriters
)

func (s InstanceState) String() string {
	switch s {
	case InstanceAlive:
		return "ALIVE"
	case InstanceDisposed:
		return "NOT_ALIVE_DISPOSED"
	case InstanceNoWriters:
		return "NOT_ALIVE_NO_WRITERS"
	default:
		return fmt.Sprintf("InstanceState(%d)", int(s))
	}
}

// SampleInfo is the metadata delivered alongside every sample.
type SampleInfo struct {
	Valid              bool          `json:"valid"`
	InstanceState      InstanceState `json:"instance_state"`
	SourceTimestamp    time.Time     `json:"source_ts"`
	ReceptionTimestamp time.Time     `json:"reception_ts"`
	PublicationHandle  string        `json:"publication_handle"`
	SequenceNumber     uint64        `json:"seq"`
}

// Sample is one unit delivered by a feed. Data is meaningful only when Info.Valid is set;
// otherwise only Data.Color (the instance key) is populated.
type Sample struct {
	Data ShapeTypeExtended `json:"data"`
	Info SampleInfo        `json:"info"`
}

// SubscriptionMatchedStatus reports changes in the set of writers matched with a reader.
type SubscriptionMatchedStatus struct {
	TotalCount         int
	TotalCountChange   int
	CurrentCount       int
	CurrentCountChange int
}
