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


package median

import (
	"testing"
	"github.com/valyala/fastrand"
)

func TestMedianFloat32Slice9(t *testing.T) {
	rng:=fastrand.RNG{}
	for iter:=0; iter<100; iter++ {
		// random permutation of 1..9, median must be 5
		arr:=[]float32{1,2,3,4,5,6,7,8,9}
		for j:=0; j<len(arr); j++ {
			k:=rng.Uint32n(uint32(len(arr)))
			arr[j], arr[k] = arr[k], arr[j]
		}
		res:=MedianFloat32Slice9(arr)
		if res!=5 {
			t.Logf("median of permutation got %f expect 5\n", res)
			t.Fail()
		}
	}
}

func TestMedianFilterImpulse(t *testing.T) {
	// a single bright pixel in a dark field is rejected everywhere
	width, height:=int32(8), int32(6)
	data:=make([]float32, width*height)
	data[3*width+4]=200
	output:=make([]float32, width*height)

	MedianFilter(output, data, width, 1)
	for i, o:=range output {
		if o!=0 {
			t.Errorf("output[%d] got %f expect 0", i, o)
		}
	}
}

func TestMedianFilterConstantBoundary(t *testing.T) {
	// neighbors outside the array count as zero: corners of a constant image
	// see a majority of zeros at radius 1, edges and interior do not
	width, height:=int32(6), int32(5)
	data:=make([]float32, width*height)
	for i:=range data {
		data[i]=100
	}
	output:=make([]float32, width*height)
	MedianFilter(output, data, width, 1)

	for y:=int32(0); y<height; y++ {
		for x:=int32(0); x<width; x++ {
			o:=output[y*width+x]
			corner:=(x==0 || x==width-1) && (y==0 || y==height-1)
			if corner {
				if o!=0 {
					t.Errorf("corner (%d,%d) got %f expect 0", x, y, o)
				}
			} else if o!=100 {
				t.Errorf("pixel (%d,%d) got %f expect 100", x, y, o)
			}
		}
	}
}

func TestMedianFilterRadius2(t *testing.T) {
	// 5x5 window on a wide bright plateau keeps the plateau's interior
	width, height:=int32(12), int32(12)
	data:=make([]float32, width*height)
	for y:=int32(2); y<10; y++ {
		for x:=int32(2); x<10; x++ {
			data[y*width+x]=50
		}
	}
	output:=make([]float32, width*height)
	MedianFilter(output, data, width, 2)

	// center of the plateau sees a full window of 50s
	if got:=output[6*width+6]; got!=50 {
		t.Errorf("plateau center got %f expect 50", got)
	}
	// far corner sees only zeros
	if got:=output[0]; got!=0 {
		t.Errorf("corner got %f expect 0", got)
	}
}
