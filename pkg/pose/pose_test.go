package pose

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutputMode(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputMode
		wantErr bool
	}{
		{"quaternion", ModeQuaternion, false},
		{"QUAT", ModeQuaternion, false},
		{"euler", ModeEuler, false},
		{"angles", ModeEuler, false},
		{"MATRIX", ModeMatrix, false},
		{" matrix ", ModeMatrix, false},
		{"", ModeUnset, true},
		{"pose", ModeUnset, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseHemisphere(t *testing.T) {
	tests := []struct {
		in      string
		want    Hemisphere
		wantErr bool
	}{
		{"front", HemisphereFront, false},
		{"REAR", HemisphereRear, false},
		{"back", HemisphereRear, false},
		{"left", HemisphereFront, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHemisphere(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseMaxRange(t *testing.T) {
	tests := []struct {
		in      string
		want    MaxRange
		wantErr bool
	}{
		{"36in", Range36In, false},
		{"36", Range36In, false},
		{"72in", Range72In, false},
		{"72", Range72In, false},
		{"100in", Range36In, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMaxRange(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestModeFields(t *testing.T) {
	assert.Equal(t, 4, ModeQuaternion.Fields())
	assert.Equal(t, 3, ModeEuler.Fields())
	assert.Equal(t, 9, ModeMatrix.Fields())
	assert.Equal(t, 0, ModeUnset.Fields())
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		mode    OutputMode
		payload string
		wantPos Vec3
		wantOri Orientation
		wantErr bool
	}{
		{
			name:    "quaternion",
			mode:    ModeQuaternion,
			payload: "1.5,-2.25,3.0,1.0,0.0,0.0,0.0",
			wantPos: Vec3{X: 1.5, Y: -2.25, Z: 3.0},
			wantOri: Quaternion{1, 0, 0, 0},
		},
		{
			name:    "euler",
			mode:    ModeEuler,
			payload: "0,0,0,90.0,-45.5,10.25",
			wantPos: Vec3{},
			wantOri: Euler{Azimuth: 90, Elevation: -45.5, Roll: 10.25},
		},
		{
			name:    "matrix",
			mode:    ModeMatrix,
			payload: "1,2,3,1,0,0,0,1,0,0,0,1",
			wantPos: Vec3{X: 1, Y: 2, Z: 3},
			wantOri: Matrix3{1, 0, 0, 0, 1, 0, 0, 0, 1},
		},
		{
			name:    "payload with spaces",
			mode:    ModeEuler,
			payload: " 1, 2, 3, 4, 5, 6 ",
			wantPos: Vec3{X: 1, Y: 2, Z: 3},
			wantOri: Euler{Azimuth: 4, Elevation: 5, Roll: 6},
		},
		{
			name:    "too few fields",
			mode:    ModeQuaternion,
			payload: "1,2,3,1,0,0",
			wantErr: true,
		},
		{
			name:    "too many fields",
			mode:    ModeEuler,
			payload: "1,2,3,4,5,6,7",
			wantErr: true,
		},
		{
			name:    "non-numeric field",
			mode:    ModeEuler,
			payload: "1,2,abc,4,5,6",
			wantErr: true,
		},
		{
			name:    "mode unset",
			mode:    ModeUnset,
			payload: "1,2,3",
			wantErr: true,
		},
		{
			name:    "empty payload",
			mode:    ModeQuaternion,
			payload: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, ori, err := Decode(tt.mode, []byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPos, pos)
			assert.Equal(t, tt.wantOri, ori)
			assert.Equal(t, tt.mode, ori.Mode())
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	pos := Vec3{X: 1.25, Y: -3.5, Z: 0.125}
	q := Quaternion{0.7071, 0, 0, 0.7071}

	payload := Encode(pos, q)
	gotPos, gotOri, err := Decode(ModeQuaternion, payload)

	require.NoError(t, err)
	assert.InDelta(t, pos.X, gotPos.X, 1e-6)
	assert.InDelta(t, pos.Y, gotPos.Y, 1e-6)
	assert.InDelta(t, pos.Z, gotPos.Z, 1e-6)
	assert.Equal(t, ModeQuaternion, gotOri.Mode())
}

func TestSampleOK(t *testing.T) {
	ok := Sample{SensorID: 0, Orientation: Quaternion{1, 0, 0, 0}}
	assert.True(t, ok.OK())

	failed := Failed(1, time.Now(), errors.New("boom"))
	assert.False(t, failed.OK())
	assert.Nil(t, failed.Orientation)
	assert.Equal(t, 1, failed.SensorID)
}

func TestSweepOK(t *testing.T) {
	now := time.Now()

	empty := Sweep{Timestamp: now}
	assert.True(t, empty.OK())

	allGood := Sweep{Timestamp: now, Samples: []Sample{
		{SensorID: 0, Orientation: Quaternion{1, 0, 0, 0}},
		{SensorID: 1, Orientation: Quaternion{1, 0, 0, 0}},
	}}
	assert.True(t, allGood.OK())

	partial := Sweep{Timestamp: now, Samples: []Sample{
		{SensorID: 0, Orientation: Quaternion{1, 0, 0, 0}},
		Failed(1, now, errors.New("timeout")),
	}}
	assert.False(t, partial.OK())
	assert.Len(t, partial.Samples, 2)
	assert.True(t, partial.Samples[0].OK())
}
