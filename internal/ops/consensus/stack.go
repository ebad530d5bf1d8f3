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
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"github.com/mlnoga/burststack/internal/img"
	"github.com/mlnoga/burststack/internal/median"
	"github.com/mlnoga/burststack/internal/ops"
)

// Stacks an aligned burst into a single image with the per-pixel, per-channel
// median. Takes n inputs and produces one output. Even channel counts treat the
// last channel as a validity mask, masked samples are excluded; the output
// carries no mask
type OpMedianStack struct {
	ops.OpBase
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpMedianStackDefault() })} // register the operator for JSON decoding

func NewOpMedianStackDefault() *OpMedianStack {
	return &OpMedianStack{
		OpBase : ops.OpBase{Type: "median", Active: true},
	}
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpMedianStack) UnmarshalJSON(data []byte) error {
	type defaults OpMedianStack
	def:=defaults( *NewOpMedianStackDefault() )
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpMedianStack(def)
	return nil
}

func (op *OpMedianStack) MakePromises(ins []ops.Promise, c *ops.Context) (outs []ops.Promise, err error) {
	if len(ins)==0 { return nil, errors.New(fmt.Sprintf("%s operator needs inputs", op.Type)) }

	out:=func() (f *img.Image, err error) {
		fs, err:=ops.MaterializeAll(ins, c.MaxThreads, false) // materialize all input promises
		if err!=nil { return nil, err }
		return op.Apply(fs, c)
	}
	return []ops.Promise{out}, nil
}

// Stacks the frames with the masked median. Limits parallelism to the number of available cores
func (op *OpMedianStack) Apply(frames []*img.Image, c *ops.Context) (result *img.Image, err error) {
	for _,f:=range frames[1:] {
		if !img.EqualInt32Slice(f.Naxisn, frames[0].Naxisn) {
			return nil, errors.New(fmt.Sprintf("%d: dimensions %s differ from %s of frame %d, cannot stack",
				                               f.ID, f.DimensionsToString(), frames[0].DimensionsToString(), frames[0].ID))
		}
	}
	fmt.Fprintf(c.Log, "Median stacking %d frames:\n", len(frames))

	width, height:=frames[0].Width(), frames[0].Height()
	colorCh:=frames[0].ColorChannels()
	naxisn:=[]int32{width, height}
	if colorCh>1 { naxisn=append(naxisn, colorCh) }
	result=img.NewImageFromNaxisn(naxisn, nil)

	// split rows into work packages of about 8 MB, no fewer than 8*NumCPU(), capped at one row
	numBatches:=4*len(frames)*int(width)*int(height)*int(frames[0].Channels())/(8192*1024)
	if numBatches<8*runtime.NumCPU() { numBatches=8*runtime.NumCPU() }
	if numBatches>int(height) { numBatches=int(height) }
	rowsPerBatch:=(int(height)+numBatches-1)/numBatches
	sem:=make(chan bool, runtime.NumCPU())

	countersLock, numNoValid:=sync.Mutex{}, int32(0)
	progressLock, progress:=sync.Mutex{}, float32(0)
	for lower:=0; lower<int(height); lower+=rowsPerBatch {
		upper:=lower+rowsPerBatch
		if upper>int(height) { upper=int(height) }

		sem <- true
		go func(lower, upper int) {
			defer func() { <-sem }()

			noValid:=medianRows(frames, lower, upper, result.Data)

			if noValid>0 {
				countersLock.Lock()
				numNoValid+=noValid
				countersLock.Unlock()
			}

			progressLock.Lock()
			progress+=float32(upper-lower)/float32(height)
			fmt.Fprintf(c.Log, "\r%d%%", int(progress*100))
			progressLock.Unlock()
		}(lower, upper)
	}
	for i:=0; i<cap(sem); i++ {  // wait for goroutines to finish
		sem <- true
	}
	fmt.Fprintf(c.Log, "\r")

	if numNoValid>0 {
		fmt.Fprintf(c.Log, "All-masked %d pixels (%.2f%%) set to zero\n",
		            numNoValid, float32(numNoValid)*100.0/float32(int(width)*int(height)))
	}

	exposureSum:=float32(0)
	for _,f:=range frames { exposureSum+=f.Exposure }
	result.Exposure=exposureSum
	return result, nil
}

// Computes the masked median for the rows [yLo, yHi). Returns the count of all-masked pixels
func medianRows(frames []*img.Image, yLo, yHi int, resData []float32) (noValid int32) {
	width   :=int(frames[0].Width())
	size    :=int(frames[0].Width()*frames[0].Height())
	channels:=int(frames[0].Channels())
	colorCh :=int(frames[0].ColorChannels())
	hasAlpha:=frames[0].HasAlpha()

	gathered:=make([]float32, len(frames))

	for y:=yLo; y<yHi; y++ {
		for x:=0; x<width; x++ {
			i:=y*width+x
			for ch:=0; ch<colorCh; ch++ {
				n:=0
				for _,f:=range frames {
					if hasAlpha && f.Data[(channels-1)*size+i]==0 { continue }
					gathered[n]=f.Data[ch*size+i]
					n++
				}
				if n==0 {
					// no consensus exists where every sample is masked, fall back to zero
					resData[ch*size+i]=0
					if ch==0 { noValid++ }
					continue
				}
				resData[ch*size+i]=float32(math.Round(float64(median.MedianFloat32(gathered[:n]))))
			}
		}
	}
	return noValid
}
