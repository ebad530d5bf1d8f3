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
	"fmt"
	"strings"
	"github.com/mlnoga/burststack/internal/stats"
)

// A decoded raster image.
// Samples are stored as float32 in the 8-bit range [0,255], channel plane by
// channel plane: Data[c*W*H + y*W + x]. An even channel count (2 or 4) means
// the last channel is an alpha/validity mask, where zero marks an invalid sample.
type Image struct {
	ID       int         // Sequential ID number, for log output. Counted upwards from 0
	FileName string      // Original file name, if any, for log output.

	Naxisn []int32       // Axis dimensions. Most quickly varying dimension first (i.e. X,Y[,C])
	Pixels int32         // Number of samples in the image. Product of Naxisn[]

	Data   []float32     // The image data

	Exposure float32     // Image exposure in seconds, from camera metadata if present

	Stats  *stats.Stats  // Basic image statistics: min, mean, max

	CentX, CentY   float32 // Detected feature centroid, filled in by alignment
	ShiftX, ShiftY int32   // Integer alignment shift applied to this image
}

// Creates an image from given naxisn. Data is not copied, allocated if nil. naxisn is deep copied
func NewImageFromNaxisn(naxisn []int32, data []float32) *Image {
	numPixels:=int32(1)
	for _,naxis:=range(naxisn) {
		numPixels*=naxis
	}
	if data==nil {
		data=make([]float32, numPixels)
	}
	return &Image{
		ID:       0,
		FileName: "",
		Naxisn:   append([]int32(nil), naxisn...), // clone slice
		Pixels:   numPixels,
		Data:     data,
		Exposure: 0,
		Stats:    stats.NewStats(data, naxisn[0]),
	}
}

// Creates an image with the shape and metadata of the given image. A new data array is allocated
func NewImageFromImage(src *Image) *Image {
	data:=make([]float32, src.Pixels)
	return &Image{
		ID:       src.ID,
		FileName: src.FileName,
		Naxisn:   append([]int32(nil), src.Naxisn...), // clone slice
		Pixels:   src.Pixels,
		Data:     data,
		Exposure: src.Exposure,
		Stats:    stats.NewStats(data, src.Naxisn[0]),
	}
}

// Image width in pixels
func (f *Image) Width() int32 {
	return f.Naxisn[0]
}

// Image height in pixels
func (f *Image) Height() int32 {
	if len(f.Naxisn)<2 { return 1 }
	return f.Naxisn[1]
}

// Number of channels, including an alpha channel if present
func (f *Image) Channels() int32 {
	if len(f.Naxisn)<3 { return 1 }
	return f.Naxisn[2]
}

// An even channel count designates the last channel as an alpha/validity mask
func (f *Image) HasAlpha() bool {
	return f.Channels()%2==0
}

// Number of color channels, excluding the alpha channel if present
func (f *Image) ColorChannels() int32 {
	ch:=f.Channels()
	if ch%2==0 { return ch-1 }
	return ch
}

// Returns the data slice for the given channel plane
func (f *Image) Channel(ch int32) []float32 {
	size:=f.Width()*f.Height()
	return f.Data[ch*size:(ch+1)*size]
}

func (f *Image) DimensionsToString() string {
	b:=strings.Builder{}
	for i,naxis:=range(f.Naxisn) {
		if i>0 {
			fmt.Fprintf(&b, "x%d", naxis)
		} else {
			fmt.Fprintf(&b, "%d", naxis)
		}
	}
	return b.String()
}

// Returns a three-channel copy of the image. Single-channel data is replicated
// into all three planes, existing color planes are copied, alpha is dropped
func (f *Image) ToRGB() *Image {
	width, height:=f.Width(), f.Height()
	size:=width*height
	rgb:=NewImageFromNaxisn([]int32{width, height, 3}, nil)
	rgb.ID, rgb.FileName, rgb.Exposure = f.ID, f.FileName, f.Exposure
	if f.Channels()>=3 {
		copy(rgb.Data, f.Data[:3*size])
	} else {
		mono:=f.Data[:size]
		copy(rgb.Data[      :  size], mono)
		copy(rgb.Data[  size:2*size], mono)
		copy(rgb.Data[2*size:      ], mono)
	}
	return rgb
}

// Returns a copy cropped to the given origin and size, all channel planes
// moving together. Feature centroid coordinates shift with the origin
func (f *Image) Crop(x0, y0, width, height int32) *Image {
	naxisn:=[]int32{width, height}
	if len(f.Naxisn)>2 {
		naxisn=append(naxisn, f.Channels())
	}
	res:=NewImageFromNaxisn(naxisn, nil)
	res.ID, res.FileName, res.Exposure = f.ID, f.FileName, f.Exposure
	res.CentX, res.CentY = f.CentX-float32(x0), f.CentY-float32(y0)

	srcW, srcSize:=f.Width(), f.Width()*f.Height()
	resSize:=width*height
	for c:=int32(0); c<f.Channels(); c++ {
		for y:=int32(0); y<height; y++ {
			src :=f.Data[c*srcSize+(y0+y)*srcW+x0:]
			copy(res.Data[c*resSize+y*width:c*resSize+(y+1)*width], src[:width])
		}
	}
	return res
}

// Fills a ring of given inner and outer radius around (xc,yc), writing vals[c]
// into each channel plane c. Used to mark detected features for diagnostics
func (f *Image) FillRing(xc, yc, inner, outer float32, vals []float32) {
	width, height:=f.Width(), f.Height()
	size:=width*height
	innerSq, outerSq:=inner*inner, outer*outer
	for y:=-outer; y<=outer; y+=0.5 {
		for x:=-outer; x<=outer; x+=0.5 {
			distSq:=y*y+x*x
			if distSq>=innerSq && distSq<=outerSq+1e-6 {
				xx, yy:=int32(xc+x), int32(yc+y)
				if xx>=0 && xx<width && yy>=0 && yy<height {
					index:=yy*width+xx
					for c:=int32(0); c<int32(len(vals)) && c<f.Channels(); c++ {
						f.Data[index+c*size]=vals[c]
					}
				}
			}
		}
	}
}

// Equal tells whether a and b contain the same elements.
// A nil argument is equivalent to an empty slice.
func EqualInt32Slice(a, b []int32) bool {
    if len(a) != len(b) {
        return false
    }
    for i, v := range a {
        if v != b[i] {
            return false
        }
    }
    return true
}
