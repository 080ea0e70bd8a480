package simlink

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eytandecker/quadpilot/pkg/types"
)

func sampleState() types.VehicleState {
	return types.VehicleState{
		Position:      r3.Vector{X: 12.5, Y: 118, Z: -40},
		Orientation:   r3.Vector{X: 2.5, Y: 271, Z: 359},
		Forward:       r3.Vector{Z: 1},
		Up:            r3.Vector{Y: 1},
		Right:         r3.Vector{X: 1},
		LocalVelocity: r3.Vector{Z: 3.25},
		Mounts: [4]r3.Vector{
			types.RearLeft:   {X: 11.5, Y: 118, Z: -41},
			types.RearRight:  {X: 13.5, Y: 118, Z: -41},
			types.FrontLeft:  {X: 11.5, Y: 118, Z: -39},
			types.FrontRight: {X: 13.5, Y: 118, Z: -39},
		},
	}
}

func TestStateFieldsLayout(t *testing.T) {
	require.Len(t, StateFields, 30)
	assert.Equal(t, "POSITION X", StateFields[0].Name)
	assert.Equal(t, "MOUNT FRONT RIGHT Z", StateFields[29].Name)
	for _, f := range StateFields {
		assert.Equal(t, 8, f.Size, f.Name)
	}
}

func TestParseStatePayload(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    types.VehicleState
		wantErr bool
	}{
		{name: "encoded state", data: EncodeStatePayload(sampleState()), want: sampleState()},
		{name: "all-zero payload", data: make([]byte, statePayloadSize), want: types.VehicleState{}},
		{name: "truncated payload", data: make([]byte, 50), wantErr: true},
		{name: "empty payload", data: []byte{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := ParseStatePayload(tt.data)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, st)
		})
	}
}

func TestStatePayloadFieldOffsets(t *testing.T) {
	data := make([]byte, statePayloadSize)
	// Field 4 is ORIENTATION Y, field 27 is MOUNT FRONT RIGHT X.
	binary.LittleEndian.PutUint64(data[4*8:], math.Float64bits(90))
	binary.LittleEndian.PutUint64(data[27*8:], math.Float64bits(-7))

	st, err := ParseStatePayload(data)
	require.NoError(t, err)
	assert.Equal(t, 90.0, st.Orientation.Y)
	assert.Equal(t, -7.0, st.Mounts[types.FrontRight].X)
}

func TestForcePayload(t *testing.T) {
	data := EncodeForcePayload(r3.Vector{Y: 2.44}, r3.Vector{X: 1, Y: 120, Z: -1})
	require.Len(t, data, forcePayloadSize)

	force, point, err := DecodeForcePayload(data)
	require.NoError(t, err)
	assert.Equal(t, r3.Vector{Y: 2.44}, force)
	assert.Equal(t, r3.Vector{X: 1, Y: 120, Z: -1}, point)

	_, _, err = DecodeForcePayload(data[:40])
	assert.Error(t, err)
}

func TestFieldRegistry(t *testing.T) {
	r := NewFieldRegistry()

	f, ok := r.Get("UP Y")
	require.True(t, ok)
	assert.Equal(t, "unit", f.Unit)

	assert.NoError(t, r.Validate("LOCAL VELOCITY Z"))
	err := r.Validate("PLANE LATITUDE")
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Contains(t, err.Error(), "PLANE LATITUDE")
}
