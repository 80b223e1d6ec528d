package shapesub

import (
	"github.com/ajmhs/training-listeners-read-write/internal/collector"
	"github.com/ajmhs/training-listeners-read-write/internal/domain"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

// Shape is the payload carried on shape topics.
type Shape = domain.ShapeTypeExtended

// FillKind describes how a shape is painted.
type FillKind = domain.ShapeFillKind

const (
	SolidFill           = domain.SolidFill
	TransparentFill     = domain.TransparentFill
	HorizontalHatchFill = domain.HorizontalHatchFill
	VerticalHatchFill   = domain.VerticalHatchFill
)

// ShapeTypeName is the type name shapes are registered under.
const ShapeTypeName = domain.ShapeTypeName

// Sample is one delivered shape plus its metadata. Only samples with Info.Valid carry data.
type Sample = domain.Sample

// SampleInfo is the metadata delivered alongside every sample.
type SampleInfo = domain.SampleInfo

// MatchedStatus reports publishers joining or leaving a subscription.
type MatchedStatus = domain.SubscriptionMatchedStatus

// Connector joins a domain and returns a Feed (loopback, NATS, OPC UA or custom).
type Connector = ports.Connector

// Feed creates subscriptions and writers on one domain.
type Feed = ports.Feed

// Subscription delivers samples on one topic to its listener.
type Subscription = ports.Subscription

// Writer publishes shapes on one topic.
type Writer = ports.Writer

// Listener receives data-available and subscription-matched callbacks.
type Listener = ports.Listener

// ListenerFuncs builds a Listener from plain functions; nil callbacks do nothing.
type ListenerFuncs = ports.ListenerFuncs

// SampleReader hands out the samples available to a listener.
type SampleReader = ports.SampleReader

// Sink consumes batches of valid samples.
type Sink = ports.Sink

// Observability emits metrics/logs about received, invalid and dropped samples.
type Observability = ports.Observability

// Field is a structured log/metric field used by Observability implementations.
type Field = ports.Field

// State is the lifecycle phase a run ended in.
type State = collector.State

const (
	StateDrained   = collector.StateDrained
	StateCancelled = collector.StateCancelled
)

// Errors surfaced by feeds.
var (
	ErrFeedClosed        = ports.ErrFeedClosed
	ErrInvalidTopic      = ports.ErrInvalidTopic
	ErrTopicTypeMismatch = ports.ErrTopicTypeMismatch
	ErrReadOnlyFeed      = ports.ErrReadOnlyFeed
)
