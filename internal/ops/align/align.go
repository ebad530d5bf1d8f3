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


package align

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/mlnoga/burststack/internal/img"
	"github.com/mlnoga/burststack/internal/feature"
	"github.com/mlnoga/burststack/internal/ops"
)

// Registers a burst of frames on their common bright feature. Takes n inputs and
// produces n outputs, each cropped to the common window so the feature overlaps.
// All channels of a frame move by one integral shift
type OpAlign struct {
	ops.OpBase
	Radius       int32           `json:"radius"`     // feature smoothing radius
	Threshold    float32         `json:"threshold"`  // logistic mask threshold, <=0 derives from image stats
	SaveMarked   *ops.OpSave     `json:"saveMarked"` // optional diagnostic with marker rings at detected centroids
	mutex        sync.Mutex      `json:"-"`
	materialized []*img.Image    `json:"-"`
	err          error           `json:"-"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpAlignDefault() })} // register the operator for JSON decoding

func NewOpAlignDefault() *OpAlign { return NewOpAlign(2, 32, ops.NewOpSaveDefault()) }

func NewOpAlign(radius int32, threshold float32, saveMarked *ops.OpSave) *OpAlign {
	return &OpAlign{
		OpBase     : ops.OpBase{Type: "align", Active: true},
		Radius     : radius,
		Threshold  : threshold,
		SaveMarked : saveMarked,
	}
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpAlign) UnmarshalJSON(data []byte) error {
	type defaults OpAlign
	def:=defaults( *NewOpAlignDefault() )
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpAlign(def)
	return nil
}

// Creates separate output promises for each input promise.
// The first of them to acquire the mutex materializes all inputs and aligns them
func (op *OpAlign) MakePromises(ins []ops.Promise, c *ops.Context) (outs []ops.Promise, err error) {
	if len(ins)==0 { return nil, errors.New(fmt.Sprintf("%s operator needs inputs", op.Type)) }

	outs=make([]ops.Promise, len(ins))
	for i,_:=range(ins) {
		outs[i]=op.applySingle(i, ins, c)
	}
	return outs, nil
}

func (op *OpAlign) applySingle(i int, ins []ops.Promise, c *ops.Context) ops.Promise {
	return func() (f *img.Image, err error) {
		op.mutex.Lock()
		if op.err!=nil {               // alignment failed in a prior thread
			op.mutex.Unlock()
			return nil, op.err
		}
		if op.materialized!=nil {      // alignment already happened, hand out this slot
			mat:=op.materialized[i]
			op.materialized[i]=nil     // remove reference to free memory
			op.mutex.Unlock()
			return mat, nil
		}
		defer op.mutex.Unlock()        // else release lock later when alignment is complete

		frames, err:=ops.MaterializeAll(ins, c.MaxThreads, false)
		if err!=nil { op.err=err; return nil, err }

		aligned, err:=op.alignAll(frames, c)
		if err!=nil { op.err=err; return nil, err }

		op.materialized=aligned
		mat:=op.materialized[i]
		op.materialized[i]=nil
		return mat, nil
	}
}

// Aligns and crops all frames. Fails without touching any frame when their
// dimensions differ, or when the shift spread leaves no common window
func (op *OpAlign) alignAll(frames []*img.Image, c *ops.Context) (aligned []*img.Image, err error) {
	for _,f:=range frames[1:] {
		if !img.EqualInt32Slice(f.Naxisn, frames[0].Naxisn) {
			return nil, errors.New(fmt.Sprintf("%d: dimensions %s differ from %s of frame %d, cannot align",
				                               f.ID, f.DimensionsToString(), frames[0].DimensionsToString(), frames[0].ID))
		}
	}

	centX, centY, err:=op.locateAll(frames, c)
	if err!=nil { return nil, err }

	shiftX, shiftY:=feature.Shifts(centX, centY)
	for i,f:=range frames {
		f.CentX, f.CentY = centX[i], centY[i]
		f.ShiftX, f.ShiftY = shiftX[i], shiftY[i]
		fmt.Fprintf(c.Log, "%d: Feature centroid (%.2f,%.2f), shift (%+d,%+d)\n", f.ID, centX[i], centY[i], shiftX[i], shiftY[i])
	}

	width, height:=frames[0].Width(), frames[0].Height()
	x0, y0, outW, outH, err:=feature.CropWindows(shiftX, shiftY, width, height)
	if err!=nil { return nil, err }
	fmt.Fprintf(c.Log, "Aligning %d frames to common %dx%d window\n", len(frames), outW, outH)

	if op.SaveMarked!=nil && op.SaveMarked.IsActive() {
		if err:=op.saveMarked(frames, c); err!=nil { return nil, err }
	}

	aligned=make([]*img.Image, len(frames))
	for i,f:=range frames {
		if x0[i]==0 && y0[i]==0 && outW==width && outH==height {
			aligned[i]=f           // no-op crop, reuse the frame
			continue
		}
		aligned[i]=f.Crop(x0[i], y0[i], outW, outH)
		aligned[i].ShiftX, aligned[i].ShiftY = shiftX[i], shiftY[i]
	}
	return aligned, nil
}

// Locates the feature centroid in all frames, bounded by MaxThreads in parallel
func (op *OpAlign) locateAll(frames []*img.Image, c *ops.Context) (centX, centY []float32, err error) {
	centX, centY=make([]float32, len(frames)), make([]float32, len(frames))
	errs:=make([]error, len(frames))
	limiter:=make(chan bool, c.MaxThreads)
	for i, f := range(frames) {
		limiter <- true
		go func(i int, theF *img.Image) {
			defer func() { <-limiter }()
			centX[i], centY[i], errs[i]=feature.LocateInImage(theF, op.Radius, op.Threshold, c.LSEstimatorMode)
		}(i, f)
	}
	for i:=0; i<cap(limiter); i++ {  // wait for goroutines to finish
		limiter <- true
	}
	for i, e:=range errs {
		if e!=nil {
			if err==nil {
				err=errors.New(fmt.Sprintf("%d: %s", frames[i].ID, e.Error()))
			} else {
				err=errors.New(fmt.Sprintf("%s; %d: %s", err.Error(), frames[i].ID, e.Error()))
			}
		}
	}
	return centX, centY, err
}

// Writes an RGB copy of every frame with a marker ring at its detected
// centroid, one hue per frame index
func (op *OpAlign) saveMarked(frames []*img.Image, c *ops.Context) error {
	outer:=float32(4*(op.Radius+1))
	for i,f:=range frames {
		hue:=float64(i)*360.0/float64(len(frames))
		r, g, b:=colorful.Hsv(hue, 1, 1).RGB255()
		marked:=f.ToRGB()
		marked.FillRing(f.CentX, f.CentY, outer-2, outer, []float32{float32(r), float32(g), float32(b)})
		if _, err:=op.SaveMarked.Apply(marked, c); err!=nil { return err }
	}
	return nil
}
