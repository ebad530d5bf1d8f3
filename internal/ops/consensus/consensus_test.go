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

package consensus

import (
	"io"
	"testing"

	"github.com/mlnoga/burststack/internal/img"
	"github.com/mlnoga/burststack/internal/ops"
	"github.com/mlnoga/burststack/internal/stats"
)

func testContext() *ops.Context {
	return ops.NewContext(io.Discard, stats.LSESCMedianQn)
}

func promise(f *img.Image) ops.Promise {
	return func() (*img.Image, error) { return f, nil }
}

func uniformFrame(id, width, height, channels int32, value float32) *img.Image {
	naxisn:=[]int32{width, height}
	if channels>1 { naxisn=append(naxisn, channels) }
	f:=img.NewImageFromNaxisn(naxisn, nil)
	f.ID=int(id)
	size:=width*height
	for c:=int32(0); c<channels; c++ {
		v:=value
		if c==channels-1 && channels%2==0 { v=255 } // valid mask
		for i:=int32(0); i<size; i++ {
			f.Data[c*size+i]=v
		}
	}
	return f
}

func materializeBoth(t *testing.T, op *OpConsensus, frames []*img.Image, c *ops.Context) (rmean, routliers *img.Image) {
	t.Helper()
	ins:=make([]ops.Promise, len(frames))
	for i,f:=range frames { ins[i]=promise(f) }
	outs, err:=op.MakePromises(ins, c)
	if err!=nil { t.Fatalf("make promises: %s", err.Error()) }
	if len(outs)!=2 { t.Fatalf("%d output promises, expected 2", len(outs)) }
	rmean, err=outs[0]()
	if err!=nil { t.Fatalf("materialize mean: %s", err.Error()) }
	routliers, err=outs[1]()
	if err!=nil { t.Fatalf("materialize outliers: %s", err.Error()) }
	return rmean, routliers
}

// A single deviant sample in a stack of five: the robust mean must stay at the
// consensus value, while the outlier image must recover the deviant value
func TestConsensusOutlier(t *testing.T) {
	frames:=make([]*img.Image, 5)
	for i:=range frames {
		frames[i]=uniformFrame(int32(i), 4, 4, 1, 100)
	}
	outlierIdx:=int32(1*4+2)
	frames[4].Data[outlierIdx]=200

	op:=NewOpConsensus(4, 32, 0, true, "")
	rmean, routliers:=materializeBoth(t, op, frames, testContext())

	for i,v:=range rmean.Data {
		if v!=100 {
			t.Errorf("robust mean %f at %d, expected 100", v, i)
		}
	}
	for i,v:=range routliers.Data {
		expected:=float32(100)
		if int32(i)==outlierIdx { expected=200 }
		if v!=expected {
			t.Errorf("outlier image %f at %d, expected %f", v, i, expected)
		}
	}
	if routliers.ID!=1 {
		t.Errorf("outlier image ID %d, expected 1", routliers.ID)
	}
	if rmean.Exposure!=0 || routliers.Exposure!=0 {
		t.Errorf("exposure sums (%f,%f), expected zero for frames without metadata", rmean.Exposure, routliers.Exposure)
	}
}

// With a reference equal to every sample all deviations vanish, and both
// outputs reproduce the input value exactly
func TestConsensusReference(t *testing.T) {
	frames:=[]*img.Image{
		uniformFrame(0, 4, 4, 1, 137),
		uniformFrame(1, 4, 4, 1, 137),
		uniformFrame(2, 4, 4, 1, 137),
	}
	c:=testContext()
	c.RefFrame=uniformFrame(99, 4, 4, 1, 137)

	op:=NewOpConsensus(4, 32, 0.5, true, "")
	rmean, routliers:=materializeBoth(t, op, frames, c)

	for i:=range rmean.Data {
		if rmean.Data[i]!=137 || routliers.Data[i]!=137 {
			t.Fatalf("outputs (%f,%f) at %d, expected (137,137)", rmean.Data[i], routliers.Data[i], i)
		}
	}
}

func TestConsensusReferenceDimsMismatch(t *testing.T) {
	frames:=[]*img.Image{
		uniformFrame(0, 4, 4, 1, 100),
		uniformFrame(1, 4, 4, 1, 100),
	}
	c:=testContext()
	c.RefFrame=uniformFrame(99, 8, 8, 1, 100)

	op:=NewOpConsensusDefault()
	outs, err:=op.MakePromises([]ops.Promise{promise(frames[0]), promise(frames[1])}, c)
	if err!=nil { t.Fatalf("make promises: %s", err.Error()) }
	if _, err:=outs[0](); err==nil {
		t.Errorf("expected an error for a reference with differing dimensions")
	}
}

// Binding colors judges a pixel by the mean deviation across its channels,
// so a deviation in one channel also down-weights the clean channels
func TestConsensusBindColors(t *testing.T) {
	makeFrames:=func() []*img.Image {
		frames:=[]*img.Image{
			uniformFrame(0, 4, 4, 3, 100),
			uniformFrame(1, 4, 4, 3, 100),
			uniformFrame(2, 4, 4, 3, 100),
		}
		frames[2].Data[0*16+(1*4+1)]=228 // red channel deviates at pixel (1,1)
		return frames
	}

	opBind:=NewOpConsensus(4, 32, 0.5, true, "")
	rmeanBind, _:=materializeBoth(t, opBind, makeFrames(), testContext())

	opFree:=NewOpConsensus(4, 32, 0.5, false, "")
	rmeanFree, _:=materializeBoth(t, opFree, makeFrames(), testContext())

	i:=int32(1*4+1)
	size:=int32(16)
	if r:=rmeanBind.Data[0*size+i]; r!=101 {
		t.Errorf("bound red %f, expected 101", r)
	}
	if r:=rmeanFree.Data[0*size+i]; r!=100 {
		t.Errorf("unbound red %f, expected 100", r)
	}
	for ch:=int32(1); ch<3; ch++ {
		if v:=rmeanBind.Data[ch*size+i]; v!=100 {
			t.Errorf("bound channel %d is %f, expected 100", ch, v)
		}
		if v:=rmeanFree.Data[ch*size+i]; v!=100 {
			t.Errorf("unbound channel %d is %f, expected 100", ch, v)
		}
	}
}

// Masked samples are excluded from the estimate entirely, and pixels where
// every sample is masked become zero
func TestConsensusAlpha(t *testing.T) {
	frames:=[]*img.Image{
		uniformFrame(0, 4, 4, 2, 50),
		uniformFrame(1, 4, 4, 2, 99),
		uniformFrame(2, 4, 4, 2, 180),
	}
	size:=int32(16)
	soleValid:=int32(2*4+2)
	allMasked:=int32(3*4+3)
	frames[0].Data[size+soleValid]=0
	frames[1].Data[size+soleValid]=0
	for _,f:=range frames { f.Data[size+allMasked]=0 }

	op:=NewOpConsensusDefault()
	rmean, routliers:=materializeBoth(t, op, frames, testContext())

	if rmean.Channels()!=1 || routliers.Channels()!=1 {
		t.Fatalf("outputs have %d and %d channels, expected 1 without mask", rmean.Channels(), routliers.Channels())
	}
	if rmean.Data[soleValid]!=180 || routliers.Data[soleValid]!=180 {
		t.Errorf("sole valid sample gave (%f,%f), expected (180,180)", rmean.Data[soleValid], routliers.Data[soleValid])
	}
	if rmean.Data[allMasked]!=0 || routliers.Data[allMasked]!=0 {
		t.Errorf("all-masked pixel gave (%f,%f), expected (0,0)", rmean.Data[allMasked], routliers.Data[allMasked])
	}
	for i,v:=range rmean.Data {
		if int32(i)==soleValid || int32(i)==allMasked { continue }
		if v<50 || v>180 {
			t.Errorf("robust mean %f at %d outside the sample range [50,180]", v, i)
		}
	}
}

// Two runs over the same stack must produce bitwise identical outputs,
// regardless of how rows are distributed over workers
func TestConsensusDeterminism(t *testing.T) {
	makeFrames:=func() []*img.Image {
		x:=uint32(12345)
		frames:=make([]*img.Image, 4)
		for i:=range frames {
			f:=uniformFrame(int32(i), 16, 16, 3, 0)
			for j:=range f.Data {
				x=x*1664525+1013904223
				f.Data[j]=float32(x>>24)
			}
			frames[i]=f
		}
		return frames
	}

	rmean1, routliers1:=materializeBoth(t, NewOpConsensusDefault(), makeFrames(), testContext())
	rmean2, routliers2:=materializeBoth(t, NewOpConsensusDefault(), makeFrames(), testContext())

	for i:=range rmean1.Data {
		if rmean1.Data[i]!=rmean2.Data[i] {
			t.Fatalf("robust means differ at %d: %f vs %f", i, rmean1.Data[i], rmean2.Data[i])
		}
		if routliers1.Data[i]!=routliers2.Data[i] {
			t.Fatalf("outlier images differ at %d: %f vs %f", i, routliers1.Data[i], routliers2.Data[i])
		}
	}
	for i,v:=range rmean1.Data {
		if v<0 || v>255 {
			t.Errorf("robust mean %f at %d outside [0,255]", v, i)
		}
	}
}

func TestConsensusBadParameters(t *testing.T) {
	frames:=[]*img.Image{uniformFrame(0, 4, 4, 1, 100), uniformFrame(1, 4, 4, 1, 100)}
	c:=testContext()

	if _, _, err:=NewOpConsensus(3, 32, 0.5, true, "").Apply(frames, c); err==nil {
		t.Errorf("expected an error for odd exponent 3")
	}
	if _, _, err:=NewOpConsensus(0, 32, 0.5, true, "").Apply(frames, c); err==nil {
		t.Errorf("expected an error for exponent 0")
	}
	if _, _, err:=NewOpConsensus(4, 0, 0.5, true, "").Apply(frames, c); err==nil {
		t.Errorf("expected an error for zero scale")
	}
}

func TestConsensusDimsMismatch(t *testing.T) {
	frames:=[]*img.Image{uniformFrame(0, 4, 4, 1, 100), uniformFrame(1, 8, 8, 1, 100)}
	op:=NewOpConsensusDefault()
	outs, err:=op.MakePromises([]ops.Promise{promise(frames[0]), promise(frames[1])}, testContext())
	if err!=nil { t.Fatalf("make promises: %s", err.Error()) }
	if _, err:=outs[0](); err==nil {
		t.Errorf("expected an error for frames with differing dimensions")
	}
	if _, err:=outs[1](); err==nil {
		t.Errorf("expected the shared error from the second promise")
	}
}

func TestMedianStack(t *testing.T) {
	frames:=[]*img.Image{
		uniformFrame(0, 4, 4, 2, 10),
		uniformFrame(1, 4, 4, 2, 20),
		uniformFrame(2, 4, 4, 2, 90),
	}
	size:=int32(16)
	partMasked:=int32(0)
	allMasked :=int32(1*4+1)
	frames[2].Data[size+partMasked]=0
	for _,f:=range frames { f.Data[size+allMasked]=0 }

	op:=NewOpMedianStackDefault()
	outs, err:=op.MakePromises([]ops.Promise{promise(frames[0]), promise(frames[1]), promise(frames[2])}, testContext())
	if err!=nil { t.Fatalf("make promises: %s", err.Error()) }
	if len(outs)!=1 { t.Fatalf("%d output promises, expected 1", len(outs)) }
	result, err:=outs[0]()
	if err!=nil { t.Fatalf("materialize: %s", err.Error()) }

	if result.Channels()!=1 {
		t.Fatalf("output has %d channels, expected 1 without mask", result.Channels())
	}
	for i,v:=range result.Data {
		expected:=float32(20)         // median of 10, 20 and 90
		if int32(i)==partMasked { expected=15 } // median of 10 and 20 averages
		if int32(i)==allMasked  { expected=0 }
		if v!=expected {
			t.Errorf("median %f at %d, expected %f", v, i, expected)
		}
	}
}

func TestMedianStackIdentical(t *testing.T) {
	frames:=make([]*img.Image, 4)
	for i:=range frames {
		frames[i]=uniformFrame(int32(i), 8, 8, 3, 42)
		frames[i].Exposure=0.25
	}
	op:=NewOpMedianStackDefault()
	outs, err:=op.MakePromises([]ops.Promise{promise(frames[0]), promise(frames[1]), promise(frames[2]), promise(frames[3])}, testContext())
	if err!=nil { t.Fatalf("make promises: %s", err.Error()) }
	result, err:=outs[0]()
	if err!=nil { t.Fatalf("materialize: %s", err.Error()) }

	if result.Channels()!=3 {
		t.Fatalf("output has %d channels, expected 3", result.Channels())
	}
	for i,v:=range result.Data {
		if v!=42 {
			t.Errorf("median %f at %d, expected 42", v, i)
		}
	}
	if result.Exposure!=1.0 {
		t.Errorf("exposure sum %f, expected 1.0", result.Exposure)
	}
}
