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
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/tiff"
)

// Write an image to 8-bit PNG with the given gamma. Alpha is preserved when present.
func (f *Image) WritePNGToFile(fileName string, gamma float32) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	defer writer.Flush()

	return f.WritePNG(writer, gamma)
}

// Write an image to 8-bit PNG with the given gamma. Alpha is preserved when present.
func (f *Image) WritePNG(writer io.Writer, gamma float32) error {
	width, height := int(f.Width()), int(f.Height())
	size := width * height
	gammaInv := float64(1.0 / gamma)

	if f.ColorChannels() == 1 {
		out := image.NewGray(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			yoffset := y * width
			for x := 0; x < width; x++ {
				out.SetGray(x, y, color.Gray{export8(f.Data[yoffset+x], gammaInv)})
			}
		}
		return png.Encode(writer, out)
	}

	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	hasAlpha := f.HasAlpha()
	for y := 0; y < height; y++ {
		yoffset := y * width
		for x := 0; x < width; x++ {
			r := export8(f.Data[yoffset+x], gammaInv)
			g := export8(f.Data[yoffset+x+size], gammaInv)
			b := export8(f.Data[yoffset+x+size*2], gammaInv)
			a := uint8(255)
			if hasAlpha {
				// the validity mask is written as is, without gamma
				a = export8(f.Data[yoffset+x+size*3], 1.0)
			}
			out.SetNRGBA(x, y, color.NRGBA{r, g, b, a})
		}
	}
	return png.Encode(writer, out)
}

// Write an image to JPEG with the given gamma and quality. Alpha is dropped.
func (f *Image) WriteJPGToFile(fileName string, gamma float32, quality int) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	defer writer.Flush()

	return f.WriteJPG(writer, gamma, quality)
}

// Write an image to JPEG with the given gamma and quality. Alpha is dropped.
func (f *Image) WriteJPG(writer io.Writer, gamma float32, quality int) error {
	width, height := int(f.Width()), int(f.Height())
	size := width * height
	gammaInv := float64(1.0 / gamma)

	if f.ColorChannels() == 1 {
		out := image.NewGray(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			yoffset := y * width
			for x := 0; x < width; x++ {
				out.SetGray(x, y, color.Gray{export8(f.Data[yoffset+x], gammaInv)})
			}
		}
		return jpeg.Encode(writer, out, &jpeg.Options{Quality: quality})
	}

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		yoffset := y * width
		for x := 0; x < width; x++ {
			r := export8(f.Data[yoffset+x], gammaInv)
			g := export8(f.Data[yoffset+x+size], gammaInv)
			b := export8(f.Data[yoffset+x+size*2], gammaInv)
			out.SetRGBA(x, y, color.RGBA{r, g, b, 255})
		}
	}
	return jpeg.Encode(writer, out, &jpeg.Options{Quality: quality})
}

// Write an image to 16-bit TIFF with the given gamma. Alpha is preserved when present.
func (f *Image) WriteTIFF16ToFile(fileName string, gamma float32) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	defer writer.Flush()

	return f.WriteTIFF16(writer, gamma)
}

// Write an image to 16-bit TIFF with the given gamma. Alpha is preserved when present.
func (f *Image) WriteTIFF16(writer io.Writer, gamma float32) error {
	width, height := int(f.Width()), int(f.Height())
	size := width * height
	gammaInv := float64(1.0 / gamma)

	if f.ColorChannels() == 1 {
		out := image.NewGray16(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			yoffset := y * width
			for x := 0; x < width; x++ {
				out.SetGray16(x, y, color.Gray16{export16(f.Data[yoffset+x], gammaInv)})
			}
		}
		return tiff.Encode(writer, out, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	}

	// non-premultiplied like the PNG path, masked pixels keep their color values
	out := image.NewNRGBA64(image.Rect(0, 0, width, height))
	hasAlpha := f.HasAlpha()
	for y := 0; y < height; y++ {
		yoffset := y * width
		for x := 0; x < width; x++ {
			r := export16(f.Data[yoffset+x], gammaInv)
			g := export16(f.Data[yoffset+x+size], gammaInv)
			b := export16(f.Data[yoffset+x+size*2], gammaInv)
			a := uint16(65535)
			if hasAlpha {
				a = export16(f.Data[yoffset+x+size*3], 1.0)
			}
			out.SetNRGBA64(x, y, color.NRGBA64{r, g, b, a})
		}
	}
	return tiff.Encode(writer, out, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// Converts a sample in [0,255] to an 8-bit value, replacing NaNs with zeros
// for export, else the encoders break
func export8(v float32, gammaInv float64) uint8 {
	if math.IsNaN(float64(v)) || v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	if gammaInv != 1.0 {
		v = 255 * float32(math.Pow(float64(v)*(1.0/255.0), gammaInv))
	}
	return uint8(v + 0.5)
}

// Converts a sample in [0,255] to a 16-bit value, replacing NaNs with zeros
// for export, else the encoders break
func export16(v float32, gammaInv float64) uint16 {
	if math.IsNaN(float64(v)) || v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	if gammaInv != 1.0 {
		v = 255 * float32(math.Pow(float64(v)*(1.0/255.0), gammaInv))
	}
	return uint16(v*257.0 + 0.5)
}
