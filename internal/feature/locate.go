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

// Package feature locates the dominant bright feature of an image and
// derives the integral shifts and crop windows to register a burst on it.
package feature

import (
	"fmt"
	"math"

	"github.com/mlnoga/burststack/internal/img"
	"github.com/mlnoga/burststack/internal/median"
	"github.com/mlnoga/burststack/internal/stats"
)

// Locates the dominant bright feature in planar image data, returning its
// (x,y) centroid. Each channel plane is median-smoothed independently with
// the given radius, treating out-of-bounds neighbors as zero. A logistic
// mask 1/(1+exp(threshold-smoothed)) then weighs every sample, and the mass
// centroid is accumulated across all channels. Fails when the total mass is
// zero, which happens when the exponential overflows float32 for thresholds
// far above the data
func Locate(data []float32, width, channels, radius int32, threshold float32) (x, y float32, err error) {
	size:=int32(len(data))/channels
	height:=size/width
	smoothed:=make([]float32, size)
	sumM, sumMX, sumMY:=float64(0), float64(0), float64(0)

	for c:=int32(0); c<channels; c++ {
		median.MedianFilter(smoothed, data[c*size:(c+1)*size], width, radius)
		i:=0
		for yy:=int32(0); yy<height; yy++ {
			for xx:=int32(0); xx<width; xx++ {
				m:=1.0/(1.0+float32(math.Exp(float64(threshold-smoothed[i]))))
				sumM +=float64(m)
				sumMX+=float64(m)*float64(xx)
				sumMY+=float64(m)*float64(yy)
				i++
			}
		}
	}

	if sumM==0 {
		return 0, 0, fmt.Errorf("no feature mass above threshold %g, cannot align", threshold)
	}
	return float32(sumMX/sumM), float32(sumMY/sumM), nil
}

// Locates the alignment feature in an image, using the color channels only
// so a validity mask cannot dilute the feature mass. A non-positive
// threshold is resolved from the image statistics first
func LocateInImage(f *img.Image, radius int32, threshold float32, mode stats.LSEstimatorMode) (x, y float32, err error) {
	threshold=ResolveThreshold(f, threshold, mode)
	cch:=f.ColorChannels()
	size:=f.Width()*f.Height()
	return Locate(f.Data[:size*cch], f.Width(), cch, radius, threshold)
}

// Effective mask threshold for an image. Non-positive configured values
// derive the threshold from the brightness distribution as the location
// estimate plus four scales
func ResolveThreshold(f *img.Image, threshold float32, mode stats.LSEstimatorMode) float32 {
	if threshold>0 { return threshold }
	loc, scale:=f.Stats.LocationScale(mode)
	return loc+4*scale
}
