// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package img

import (
	"bytes"
	"math"
	"testing"
)

func TestPNGRoundTripRGB(t *testing.T) {
	f := NewImageFromNaxisn([]int32{4, 3, 3}, nil)
	for i := range f.Data {
		f.Data[i] = float32((i * 17) % 256)
	}

	buf := bytes.Buffer{}
	if err := f.WritePNG(&buf, 1.0); err != nil {
		t.Fatalf("encode: %s", err.Error())
	}
	g, err := NewImageFromReader(bytes.NewReader(buf.Bytes()), 0)
	if err != nil {
		t.Fatalf("decode: %s", err.Error())
	}

	if !EqualInt32Slice(g.Naxisn, f.Naxisn) {
		t.Fatalf("dimensions %v, expected %v", g.Naxisn, f.Naxisn)
	}
	for i, v := range g.Data {
		if v != f.Data[i] {
			t.Errorf("sample %d is %f, expected %f", i, v, f.Data[i])
		}
	}
}

func TestPNGRoundTripAlpha(t *testing.T) {
	f := NewImageFromNaxisn([]int32{4, 2, 4}, nil)
	size := int(f.Width() * f.Height())
	for i := 0; i < size; i++ {
		f.Data[i], f.Data[i+size], f.Data[i+2*size] = float32(10*i), float32(10*i+1), float32(10*i+2)
		f.Data[i+3*size] = 255
	}
	// a fully masked pixel must keep its color values across a write/read cycle
	f.Data[1], f.Data[1+size], f.Data[1+2*size], f.Data[1+3*size] = 120, 130, 140, 0
	f.Data[2+3*size] = 128

	buf := bytes.Buffer{}
	if err := f.WritePNG(&buf, 1.0); err != nil {
		t.Fatalf("encode: %s", err.Error())
	}
	g, err := NewImageFromReader(bytes.NewReader(buf.Bytes()), 0)
	if err != nil {
		t.Fatalf("decode: %s", err.Error())
	}

	if g.Channels() != 4 || !g.HasAlpha() {
		t.Fatalf("channels %d, expected 4 with alpha", g.Channels())
	}
	for i, v := range g.Data {
		if v != f.Data[i] {
			t.Errorf("sample %d is %f, expected %f", i, v, f.Data[i])
		}
	}
}

func TestPNGRoundTripGray(t *testing.T) {
	f := NewImageFromNaxisn([]int32{5, 3}, nil)
	for i := range f.Data {
		f.Data[i] = float32((i * 31) % 256)
	}

	buf := bytes.Buffer{}
	if err := f.WritePNG(&buf, 1.0); err != nil {
		t.Fatalf("encode: %s", err.Error())
	}
	g, err := NewImageFromReader(bytes.NewReader(buf.Bytes()), 0)
	if err != nil {
		t.Fatalf("decode: %s", err.Error())
	}

	if g.Channels() != 1 {
		t.Fatalf("channels %d, expected 1", g.Channels())
	}
	for i, v := range g.Data {
		if v != f.Data[i] {
			t.Errorf("sample %d is %f, expected %f", i, v, f.Data[i])
		}
	}
}

func TestTIFF16RoundTripGray(t *testing.T) {
	f := NewImageFromNaxisn([]int32{3, 3}, nil)
	for i := range f.Data {
		f.Data[i] = float32((i * 29) % 256)
	}

	buf := bytes.Buffer{}
	if err := f.WriteTIFF16(&buf, 1.0); err != nil {
		t.Fatalf("encode: %s", err.Error())
	}
	g, err := NewImageFromReader(bytes.NewReader(buf.Bytes()), 0)
	if err != nil {
		t.Fatalf("decode: %s", err.Error())
	}

	if g.Channels() != 1 {
		t.Fatalf("channels %d, expected 1", g.Channels())
	}
	for i, v := range g.Data {
		if v != f.Data[i] {
			t.Errorf("sample %d is %f, expected %f", i, v, f.Data[i])
		}
	}
}

func TestTIFF16RoundTripAlpha(t *testing.T) {
	f := NewImageFromNaxisn([]int32{4, 2, 4}, nil)
	size := int(f.Width() * f.Height())
	for i := 0; i < size; i++ {
		f.Data[i], f.Data[i+size], f.Data[i+2*size] = float32(10*i), float32(10*i+1), float32(10*i+2)
		f.Data[i+3*size] = 255
	}
	// a fully masked pixel must keep its color values across a write/read cycle
	f.Data[1], f.Data[1+size], f.Data[1+2*size], f.Data[1+3*size] = 120, 130, 140, 0
	f.Data[2+3*size] = 128

	buf := bytes.Buffer{}
	if err := f.WriteTIFF16(&buf, 1.0); err != nil {
		t.Fatalf("encode: %s", err.Error())
	}
	g, err := NewImageFromReader(bytes.NewReader(buf.Bytes()), 0)
	if err != nil {
		t.Fatalf("decode: %s", err.Error())
	}

	if g.Channels() != 4 || !g.HasAlpha() {
		t.Fatalf("channels %d, expected 4 with alpha", g.Channels())
	}
	for i, v := range g.Data {
		if v != f.Data[i] {
			t.Errorf("sample %d is %f, expected %f", i, v, f.Data[i])
		}
	}
}

func TestExport8(t *testing.T) {
	if v := export8(100, 1.0); v != 100 {
		t.Errorf("identity export is %d, expected 100", v)
	}
	if v := export8(300, 1.0); v != 255 {
		t.Errorf("clamped export is %d, expected 255", v)
	}
	if v := export8(-5, 1.0); v != 0 {
		t.Errorf("negative export is %d, expected 0", v)
	}
	if v := export8(float32(math.NaN()), 1.0); v != 0 {
		t.Errorf("NaN export is %d, expected 0", v)
	}
	// gamma 2.0: 255*sqrt(64/255) rounds to 128
	if v := export8(64, 0.5); v != 128 {
		t.Errorf("gamma export is %d, expected 128", v)
	}
	if v := export16(100, 1.0); v != 25700 {
		t.Errorf("16-bit export is %d, expected 25700", v)
	}
}

func TestToRGB(t *testing.T) {
	mono := NewImageFromNaxisn([]int32{2, 2}, []float32{1, 2, 3, 4})
	rgb := mono.ToRGB()
	expected := []float32{1, 2, 3, 4, 1, 2, 3, 4, 1, 2, 3, 4}
	for i, v := range rgb.Data {
		if v != expected[i] {
			t.Errorf("sample %d is %f, expected %f", i, v, expected[i])
		}
	}

	rgba := NewImageFromNaxisn([]int32{2, 1, 4}, []float32{10, 20, 30, 40, 50, 60, 255, 0})
	rgb2 := rgba.ToRGB()
	expected2 := []float32{10, 20, 30, 40, 50, 60}
	if len(rgb2.Data) != len(expected2) {
		t.Fatalf("length %d, expected %d", len(rgb2.Data), len(expected2))
	}
	for i, v := range rgb2.Data {
		if v != expected2[i] {
			t.Errorf("sample %d is %f, expected %f", i, v, expected2[i])
		}
	}
}

func TestCrop(t *testing.T) {
	f := NewImageFromNaxisn([]int32{4, 3, 3}, nil)
	size := int32(4 * 3)
	for c := int32(0); c < 3; c++ {
		for i := int32(0); i < size; i++ {
			f.Data[c*size+i] = float32(c*100 + i)
		}
	}
	f.CentX, f.CentY = 2, 1.5

	g := f.Crop(1, 1, 2, 2)
	if g.Width() != 2 || g.Height() != 2 || g.Channels() != 3 {
		t.Fatalf("cropped to %s, expected 2x2x3", g.DimensionsToString())
	}
	for c := int32(0); c < 3; c++ {
		expected := []float32{float32(c*100 + 5), float32(c*100 + 6), float32(c*100 + 9), float32(c*100 + 10)}
		for i, v := range g.Channel(c) {
			if v != expected[i] {
				t.Errorf("channel %d sample %d is %f, expected %f", c, i, v, expected[i])
			}
		}
	}
	if g.CentX != 1 || g.CentY != 0.5 {
		t.Errorf("centroid (%f,%f), expected (1,0.5)", g.CentX, g.CentY)
	}
}

func TestFillRing(t *testing.T) {
	f := NewImageFromNaxisn([]int32{11, 11}, nil)
	f.FillRing(5, 5, 2, 3, []float32{7})

	cases := []struct {
		x, y     int32
		expected float32
	}{
		{5, 5, 0}, // inside the inner radius
		{6, 5, 0},
		{7, 5, 7}, // distance 2, on the inner radius
		{8, 5, 7}, // distance 3, on the outer radius
		{5, 8, 7},
		{9, 5, 0}, // outside the outer radius
		{0, 0, 0},
	}
	for _, c := range cases {
		if v := f.Data[c.y*11+c.x]; v != c.expected {
			t.Errorf("pixel (%d,%d) is %f, expected %f", c.x, c.y, v, c.expected)
		}
	}
}

func TestDimensionsToString(t *testing.T) {
	f := NewImageFromNaxisn([]int32{4, 3, 3}, nil)
	if s := f.DimensionsToString(); s != "4x3x3" {
		t.Errorf("dimensions are %s, expected 4x3x3", s)
	}
}
