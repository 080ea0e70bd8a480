package simlink

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"github.com/eytandecker/quadpilot/pkg/types"
)

var (
	statePayloadSize = len(StateFields) * 8
	forcePayloadSize = 6 * 8 // force xyz, point xyz
)

// ParseStatePayload decodes a packed MsgVehicleState payload laid out in
// StateFields order.
func ParseStatePayload(data []byte) (types.VehicleState, error) {
	if len(data) < statePayloadSize {
		return types.VehicleState{}, fmt.Errorf("payload too short: got %d bytes, need %d", len(data), statePayloadSize)
	}

	vals := make([]float64, len(StateFields))
	for i := range StateFields {
		v, err := decodeFloat64(data[i*8:])
		if err != nil {
			return types.VehicleState{}, fmt.Errorf("parse field %s: %w", StateFields[i].Name, err)
		}
		vals[i] = v
	}

	vec := func(i int) r3.Vector { return r3.Vector{X: vals[i*3], Y: vals[i*3+1], Z: vals[i*3+2]} }
	st := types.VehicleState{
		Position:      vec(0),
		Orientation:   vec(1),
		Forward:       vec(2),
		Up:            vec(3),
		Right:         vec(4),
		LocalVelocity: vec(5),
	}
	for _, m := range types.Motors {
		st.Mounts[m] = vec(6 + int(m))
	}
	return st, nil
}

// EncodeStatePayload packs a state into the MsgVehicleState layout.
func EncodeStatePayload(st types.VehicleState) []byte { //nolint:gocritic
	vecs := []r3.Vector{st.Position, st.Orientation, st.Forward, st.Up, st.Right, st.LocalVelocity}
	vecs = append(vecs, st.Mounts[:]...)
	return appendVectors(make([]byte, 0, statePayloadSize), vecs...)
}

// EncodeForcePayload packs a force and its world application point.
func EncodeForcePayload(force, point r3.Vector) []byte {
	return appendVectors(make([]byte, 0, forcePayloadSize), force, point)
}

// DecodeForcePayload is the inverse of EncodeForcePayload.
func DecodeForcePayload(data []byte) (force, point r3.Vector, err error) {
	if len(data) < forcePayloadSize {
		return r3.Vector{}, r3.Vector{}, fmt.Errorf("force payload too short: got %d bytes, need %d", len(data), forcePayloadSize)
	}
	f := func(i int) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:])) }
	return r3.Vector{X: f(0), Y: f(1), Z: f(2)}, r3.Vector{X: f(3), Y: f(4), Z: f(5)}, nil
}

func appendVectors(buf []byte, vecs ...r3.Vector) []byte {
	for _, v := range vecs {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.X))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Y))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Z))
	}
	return buf
}
