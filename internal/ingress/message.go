// Package ingress reads transform messages from serial ports, UDP sockets,
// packet captures or stdin and feeds them into a tfbuffer.Buffer.
package ingress

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/tfcache/internal/tf"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrEmptyMessage is returned for messages that carry no transforms.
	ErrEmptyMessage = errors.New("message has no transforms")
	// ErrZeroRotation is returned when a rotation quaternion has zero length.
	ErrZeroRotation = errors.New("rotation quaternion has zero length")
)

// Time is a ROS-style stamp split into seconds and nanoseconds.
type Time struct {
	Secs  uint32 `json:"secs"`
	Nsecs uint32 `json:"nsecs"`
}

// Header carries the stamp and parent frame of one transform.
type Header struct {
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// Vector3 is a translation in metres.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is a rotation in x, y, z, w order.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// TransformBody is the geometric part of a TransformStamped.
type TransformBody struct {
	Translation Vector3    `json:"translation"`
	Rotation    Quaternion `json:"rotation"`
}

// TransformStamped is one parent -> child transform on the wire.
type TransformStamped struct {
	Header       Header        `json:"header"`
	ChildFrameID string        `json:"child_frame_id"`
	Transform    TransformBody `json:"transform"`
}

// Message is one line of the ingress stream.
type Message struct {
	Transforms []TransformStamped `json:"transforms"`
	Static     bool               `json:"static,omitempty"`
}

// DecodeMessage parses one JSON line into samples. The returned bool reports
// whether the message was flagged static.
func DecodeMessage(line []byte) ([]tf.Stamped, bool, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, false, fmt.Errorf("failed to decode transform message: %w", err)
	}
	if len(msg.Transforms) == 0 {
		return nil, msg.Static, ErrEmptyMessage
	}

	samples := make([]tf.Stamped, 0, len(msg.Transforms))
	for i, ts := range msg.Transforms {
		s, err := ts.toStamped()
		if err != nil {
			return nil, msg.Static, fmt.Errorf("transform %d (%s -> %s): %w", i, ts.Header.FrameID, ts.ChildFrameID, err)
		}
		samples = append(samples, s)
	}
	return samples, msg.Static, nil
}

// EncodeMessage renders samples as one JSON line without the trailing newline.
func EncodeMessage(samples []tf.Stamped, static bool) ([]byte, error) {
	msg := Message{Transforms: make([]TransformStamped, 0, len(samples)), Static: static}
	for _, s := range samples {
		msg.Transforms = append(msg.Transforms, fromStamped(s))
	}
	return json.Marshal(msg)
}

func (ts TransformStamped) toStamped() (tf.Stamped, error) {
	r := ts.Transform.Rotation
	norm := math.Sqrt(r.X*r.X + r.Y*r.Y + r.Z*r.Z + r.W*r.W)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return tf.Stamped{}, ErrZeroRotation
	}
	t := ts.Transform.Translation
	return tf.Stamped{
		Stamp:         tf.NewStamp(ts.Header.Stamp.Secs, ts.Header.Stamp.Nsecs),
		ParentFrameID: ts.Header.FrameID,
		ChildFrameID:  ts.ChildFrameID,
		Transform: tf.NewTransform(
			r3.Vec{X: t.X, Y: t.Y, Z: t.Z},
			quat.Number{Real: r.W, Imag: r.X, Jmag: r.Y, Kmag: r.Z},
		),
	}, nil
}

func fromStamped(s tf.Stamped) TransformStamped {
	tr, q := s.Transform.Translation, s.Transform.Rotation
	return TransformStamped{
		Header: Header{
			Stamp:   Time{Secs: s.Stamp.Sec, Nsecs: s.Stamp.Nsec},
			FrameID: s.ParentFrameID,
		},
		ChildFrameID: s.ChildFrameID,
		Transform: TransformBody{
			Translation: Vector3{X: tr.X, Y: tr.Y, Z: tr.Z},
			Rotation:    Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real},
		},
	}
}
