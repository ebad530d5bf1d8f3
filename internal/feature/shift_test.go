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

package feature

import (
	"testing"
)

func TestShiftsIdentical(t *testing.T) {
	shiftX, shiftY:=Shifts([]float32{5, 5, 5}, []float32{7, 7, 7})
	for i:=range shiftX {
		if shiftX[i]!=0 || shiftY[i]!=0 {
			t.Errorf("shift %d is (%d,%d), expected (0,0)", i, shiftX[i], shiftY[i])
		}
	}
}

func TestShiftsRounding(t *testing.T) {
	shiftX, shiftY:=Shifts([]float32{10, 12.6}, []float32{3.0, 3.4})
	if shiftX[0]!=-1 || shiftX[1]!=1 {
		t.Errorf("x shifts (%d,%d), expected (-1,1)", shiftX[0], shiftX[1])
	}
	if shiftY[0]!=0 || shiftY[1]!=0 {
		t.Errorf("y shifts (%d,%d), expected (0,0)", shiftY[0], shiftY[1])
	}
}

func TestCropWindows(t *testing.T) {
	x0, y0, outW, outH, err:=CropWindows([]int32{-1, 1}, []int32{0, 0}, 10, 8)
	if err!=nil { t.Fatalf("crop windows: %s", err.Error()) }
	if outW!=8 || outH!=8 {
		t.Errorf("output %dx%d, expected 8x8", outW, outH)
	}
	if x0[0]!=0 || x0[1]!=2 || y0[0]!=0 || y0[1]!=0 {
		t.Errorf("origins (%d,%d) and (%d,%d), expected (0,0) and (2,0)", x0[0], y0[0], x0[1], y0[1])
	}
	// crop windows stay within the original image
	for i:=range x0 {
		if x0[i]<0 || x0[i]+outW>10 || y0[i]<0 || y0[i]+outH>8 {
			t.Errorf("window %d at (%d,%d) exceeds the 10x8 input", i, x0[i], y0[i])
		}
	}
}

func TestCropWindowsDegenerate(t *testing.T) {
	if _, _, _, _, err:=CropWindows([]int32{0, 5}, []int32{0, 0}, 5, 5); err==nil {
		t.Errorf("expected an error when the shift spread consumes the image width")
	}
}
