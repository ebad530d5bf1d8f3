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
	"fmt"
	"math"
)

// Rounds per-image feature centroids into integral alignment shifts
// relative to the stack's mean centroid. All channels of an image share
// one shift, sub-pixel registration is not attempted
func Shifts(centX, centY []float32) (shiftX, shiftY []int32) {
	meanX, meanY:=float64(0), float64(0)
	for i:=range centX {
		meanX+=float64(centX[i])
		meanY+=float64(centY[i])
	}
	n:=float64(len(centX))
	meanX, meanY=meanX/n, meanY/n

	shiftX, shiftY=make([]int32, len(centX)), make([]int32, len(centY))
	for i:=range centX {
		shiftX[i]=int32(math.Round(float64(centX[i])-meanX))
		shiftY[i]=int32(math.Round(float64(centY[i])-meanY))
	}
	return shiftX, shiftY
}

// Derives per-image crop origins and the common output size from integral
// shifts. The output extent shrinks by the shift spread per axis, which
// keeps every crop window within its image. Fails when the spread consumes
// an entire axis
func CropWindows(shiftX, shiftY []int32, width, height int32) (x0, y0 []int32, outWidth, outHeight int32, err error) {
	minX, maxX:=minMaxInt32(shiftX)
	minY, maxY:=minMaxInt32(shiftY)
	outWidth, outHeight=width-(maxX-minX), height-(maxY-minY)
	if outWidth<=0 || outHeight<=0 {
		return nil, nil, 0, 0, fmt.Errorf("degenerate alignment: shift spread %dx%d consumes the %dx%d image", maxX-minX, maxY-minY, width, height)
	}

	x0, y0=make([]int32, len(shiftX)), make([]int32, len(shiftY))
	for i:=range shiftX {
		x0[i]=shiftX[i]-minX
		y0[i]=shiftY[i]-minY
	}
	return x0, y0, outWidth, outHeight, nil
}

func minMaxInt32(a []int32) (min, max int32) {
	min, max=a[0], a[0]
	for _,v:=range a[1:] {
		if v<min { min=v }
		if v>max { max=v }
	}
	return min, max
}
