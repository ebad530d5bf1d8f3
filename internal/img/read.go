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
	"bufio"
	"image"
	"image/color"
	_ "image/gif"  // register decoders for image.Decode
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"

	"github.com/mlnoga/burststack/internal/stats"
	_ "golang.org/x/image/tiff" // register TIFF decoder
)

// Read an image from a file. PNG, JPEG, GIF and TIFF are decoded based on content,
// 16-bit sources are scaled into the 8-bit range.
func NewImageFromFile(fileName string, id int) (*Image, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	f, err := NewImageFromReader(bufio.NewReader(file), id)
	if err != nil {
		return nil, err
	}
	f.FileName = fileName
	return f, nil
}

// Read an image from a reader, converting into the planar float32 representation.
// Sources with translucent pixels keep their alpha channel as a validity mask.
func NewImageFromReader(reader io.Reader, id int) (*Image, error) {
	src, _, err := image.Decode(reader)
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	width, height := int32(bounds.Dx()), int32(bounds.Dy())
	size := width * height

	var channels int32
	switch src.(type) {
	case *image.Gray, *image.Gray16:
		channels = 1
	default:
		channels = 3
		if hasTranslucency(src) {
			channels = 4
		}
	}

	data := make([]float32, size*channels)
	min, max, sum := float32(math.MaxFloat32), float32(-math.MaxFloat32), float64(0)

	i := int32(0)
	switch channels {
	case 1:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				c := color.Gray16Model.Convert(src.At(x, y)).(color.Gray16)
				gray := float32(c.Y) * (1.0 / 257.0)
				data[i] = gray
				if gray < min {
					min = gray
				}
				if gray > max {
					max = gray
				}
				sum += float64(gray)
				i++
			}
		}
	case 3:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				r16, g16, b16, _ := src.At(x, y).RGBA()
				r := float32(r16) * (1.0 / 257.0)
				g := float32(g16) * (1.0 / 257.0)
				b := float32(b16) * (1.0 / 257.0)
				data[i], data[i+size], data[i+2*size] = r, g, b
				min, max, sum = updateMMS(min, max, sum, r, g, b)
				i++
			}
		}
	case 4:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				// read non-premultiplied values where the source provides them,
				// so masked pixels keep their color values
				var r, g, b, a float32
				switch c := src.At(x, y).(type) {
				case color.NRGBA:
					r, g, b, a = float32(c.R), float32(c.G), float32(c.B), float32(c.A)
				case color.NRGBA64:
					r = float32(c.R) * (1.0 / 257.0)
					g = float32(c.G) * (1.0 / 257.0)
					b = float32(c.B) * (1.0 / 257.0)
					a = float32(c.A) * (1.0 / 257.0)
				default:
					c64 := color.NRGBA64Model.Convert(c).(color.NRGBA64)
					r = float32(c64.R) * (1.0 / 257.0)
					g = float32(c64.G) * (1.0 / 257.0)
					b = float32(c64.B) * (1.0 / 257.0)
					a = float32(c64.A) * (1.0 / 257.0)
				}
				data[i], data[i+size], data[i+2*size] = r, g, b
				data[i+3*size] = a
				min, max, sum = updateMMS(min, max, sum, r, g, b)
				i++
			}
		}
	}

	f := &Image{
		ID:     id,
		Naxisn: []int32{width, height, channels},
		Pixels: size * channels,
		Data:   data,
	}
	if channels == 1 {
		f.Naxisn = f.Naxisn[:2]
	}

	// statistics cover the color samples only, excluding any alpha plane
	colorSamples := data[: size*f.ColorChannels()]
	mean := float32(sum / float64(len(colorSamples)))
	f.Stats = stats.NewStatsWithMMM(colorSamples, width, min, max, mean)

	return f, nil
}

func updateMMS(min, max float32, sum float64, vals ...float32) (float32, float32, float64) {
	for _, v := range vals {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += float64(v)
	}
	return min, max, sum
}

// Reports whether any pixel is not fully opaque
func hasTranslucency(src image.Image) bool {
	if o, ok := src.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	bounds := src.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if _, _, _, a := src.At(x, y).RGBA(); a < 0xffff {
				return true
			}
		}
	}
	return false
}
