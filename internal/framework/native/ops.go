package native

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/Brownie44l1/fer-emotion/internal/network"
)

// conv2D lowers each sample to an im2col matrix of shape
// (outH*outW) x (k*k*inC) and multiplies it with W viewed as
// (k*k*inC) x outC, which yields the output directly in HWC order.
func conv2D(l *layer, in []float32, n int) []float32 {
	inH, inW, inC := l.in[0], l.in[1], l.in[2]
	outH, outW, outC := l.out[0], l.out[1], l.out[2]
	k, stride := l.def.Kernel, l.def.Stride
	padTop := network.PadBefore(inH, k, stride, l.def.Padding)
	padLeft := network.PadBefore(inW, k, stride, l.def.Padding)

	rows, cols := outH*outW, k*k*inC
	patches := make([]float32, rows*cols)
	out := make([]float32, n*rows*outC)
	weights := blas32.General{Rows: cols, Cols: outC, Stride: outC, Data: l.w.data}

	for s := 0; s < n; s++ {
		sample := in[s*inH*inW*inC : (s+1)*inH*inW*inC]
		clear(patches)
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				row := patches[(oy*outW+ox)*cols:]
				for ky := 0; ky < k; ky++ {
					y := oy*stride - padTop + ky
					if y < 0 || y >= inH {
						continue
					}
					for kx := 0; kx < k; kx++ {
						x := ox*stride - padLeft + kx
						if x < 0 || x >= inW {
							continue
						}
						copy(row[(ky*k+kx)*inC:(ky*k+kx+1)*inC], sample[(y*inW+x)*inC:(y*inW+x+1)*inC])
					}
				}
			}
		}

		dst := out[s*rows*outC : (s+1)*rows*outC]
		for r := 0; r < rows; r++ {
			copy(dst[r*outC:(r+1)*outC], l.b.data)
		}
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
			blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: patches},
			weights, 1,
			blas32.General{Rows: rows, Cols: outC, Stride: outC, Data: dst})
	}
	return out
}

// maxPool2D takes the maximum over each window; padded positions never win.
func maxPool2D(l *layer, in []float32, n int) []float32 {
	inH, inW, c := l.in[0], l.in[1], l.in[2]
	outH, outW := l.out[0], l.out[1]
	k, stride := l.def.Kernel, l.def.Stride
	padTop := network.PadBefore(inH, k, stride, l.def.Padding)
	padLeft := network.PadBefore(inW, k, stride, l.def.Padding)

	out := make([]float32, n*outH*outW*c)
	for s := 0; s < n; s++ {
		sample := in[s*inH*inW*c : (s+1)*inH*inW*c]
		dst := out[s*outH*outW*c : (s+1)*outH*outW*c]
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				cell := dst[(oy*outW+ox)*c : (oy*outW+ox+1)*c]
				for ch := range cell {
					cell[ch] = float32(math.Inf(-1))
				}
				for ky := 0; ky < k; ky++ {
					y := oy*stride - padTop + ky
					if y < 0 || y >= inH {
						continue
					}
					for kx := 0; kx < k; kx++ {
						x := ox*stride - padLeft + kx
						if x < 0 || x >= inW {
							continue
						}
						src := sample[(y*inW+x)*c : (y*inW+x+1)*c]
						for ch, v := range src {
							if v > cell[ch] {
								cell[ch] = v
							}
						}
					}
				}
			}
		}
	}
	return out
}

// dense multiplies the flattened batch (n x in) with W (in x units).
func dense(l *layer, in []float32, n int) []float32 {
	inSize, units := l.in.Size(), l.def.Units
	out := make([]float32, n*units)
	for s := 0; s < n; s++ {
		copy(out[s*units:(s+1)*units], l.b.data)
	}
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		blas32.General{Rows: n, Cols: inSize, Stride: inSize, Data: in},
		blas32.General{Rows: inSize, Cols: units, Stride: units, Data: l.w.data},
		1,
		blas32.General{Rows: n, Cols: units, Stride: units, Data: out})
	return out
}

// activate applies act in place; softmax normalises each width-sized row.
func activate(act network.Activation, v []float32, width int) {
	switch act {
	case network.ReLU:
		for i, x := range v {
			if x < 0 {
				v[i] = 0
			}
		}
	case network.Softmax:
		for start := 0; start+width <= len(v); start += width {
			softmax(v[start : start+width])
		}
	}
}

func softmax(row []float32) {
	maxV := row[0]
	for _, x := range row[1:] {
		if x > maxV {
			maxV = x
		}
	}
	var sum float64
	for i, x := range row {
		e := math.Exp(float64(x - maxV))
		row[i] = float32(e)
		sum += e
	}
	for i := range row {
		row[i] = float32(float64(row[i]) / sum)
	}
}
