package surface

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
)

// ErrUnknownFilter is returned by SetFilter for a filter function this
// package does not implement.
var ErrUnknownFilter = errors.New("surface: unknown filter function")

// Rec. 709 luma weights, as used by CSS filter color matrices.
const (
	lumaR = 0.2126
	lumaG = 0.7152
	lumaB = 0.0722
)

// colorMatrix is a 4x5 row-major color transform: each output channel
// is a linear combination of (r, g, b, a, 1). Channel values and the
// offset column live in the 0..1 domain.
type colorMatrix [20]float64

func identityMatrix() colorMatrix {
	var m colorMatrix
	m[0], m[6], m[12], m[18] = 1, 1, 1, 1
	return m
}

// compose returns the matrix equivalent to applying first, then m.
func (m colorMatrix) compose(first colorMatrix) colorMatrix {
	var out colorMatrix
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			sum := 0.0
			for k := 0; k < 4; k++ {
				sum += m[row*5+k] * first[k*5+col]
			}
			out[row*5+col] = sum
		}
		// Offset column: m.linear * first.offset + m.offset
		sum := m[row*5+4]
		for k := 0; k < 4; k++ {
			sum += m[row*5+k] * first[k*5+4]
		}
		out[row*5+4] = sum
	}
	return out
}

func contrastMatrix(v float64) colorMatrix {
	m := identityMatrix()
	off := 0.5 - 0.5*v
	m[0], m[6], m[12] = v, v, v
	m[4], m[9], m[14] = off, off, off
	return m
}

func brightnessMatrix(v float64) colorMatrix {
	m := identityMatrix()
	m[0], m[6], m[12] = v, v, v
	return m
}

// saturateMatrix scales chroma around the Rec. 709 luma axis.
// s=1 is identity, s=0 is full grayscale.
func saturateMatrix(s float64) colorMatrix {
	m := identityMatrix()
	m[0] = lumaR + (1-lumaR)*s
	m[1] = lumaG * (1 - s)
	m[2] = lumaB * (1 - s)
	m[5] = lumaR * (1 - s)
	m[6] = lumaG + (1-lumaG)*s
	m[7] = lumaB * (1 - s)
	m[10] = lumaR * (1 - s)
	m[11] = lumaG * (1 - s)
	m[12] = lumaB + (1-lumaB)*s
	return m
}

func sepiaMatrix(v float64) colorMatrix {
	// Full-strength sepia coefficients, lerped against identity by v.
	full := colorMatrix{
		0.393, 0.769, 0.189, 0, 0,
		0.349, 0.686, 0.168, 0, 0,
		0.272, 0.534, 0.131, 0, 0,
		0, 0, 0, 1, 0,
	}
	id := identityMatrix()
	var m colorMatrix
	for i := range m {
		m[i] = id[i]*(1-v) + full[i]*v
	}
	return m
}

func invertMatrix(v float64) colorMatrix {
	m := identityMatrix()
	scale := 1 - 2*v
	m[0], m[6], m[12] = scale, scale, scale
	m[4], m[9], m[14] = v, v, v
	return m
}

// opacityMatrix scales every channel: the surface stores
// alpha-premultiplied pixels, so the color components must shrink with
// alpha or encoders see R/G/B exceeding A.
func opacityMatrix(v float64) colorMatrix {
	m := identityMatrix()
	m[0], m[6], m[12], m[18] = v, v, v, v
	return m
}

// parseFilter compiles a filter expression into one composed color
// matrix. An empty expression or "none" yields (identity, false).
func parseFilter(expr string) (colorMatrix, bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == "none" {
		return identityMatrix(), false, nil
	}

	matrix := identityMatrix()
	for _, token := range strings.Fields(expr) {
		fn, arg, err := splitFunc(token)
		if err != nil {
			return colorMatrix{}, false, err
		}

		var step colorMatrix
		switch fn {
		case "contrast":
			step = contrastMatrix(arg)
		case "brightness":
			step = brightnessMatrix(arg)
		case "saturate":
			step = saturateMatrix(arg)
		case "grayscale":
			// grayscale(v) is saturate(1-v) with the same luma weights
			step = saturateMatrix(1 - clamp01(arg))
		case "sepia":
			step = sepiaMatrix(clamp01(arg))
		case "invert":
			step = invertMatrix(clamp01(arg))
		case "opacity":
			step = opacityMatrix(clamp01(arg))
		default:
			return colorMatrix{}, false, fmt.Errorf("%w: %q", ErrUnknownFilter, fn)
		}
		// Later functions apply to the output of earlier ones.
		matrix = step.compose(matrix)
	}
	return matrix, true, nil
}

// splitFunc parses one "name(arg)" token. The argument is a
// non-negative number or percentage.
func splitFunc(token string) (string, float64, error) {
	open := strings.IndexByte(token, '(')
	if open <= 0 || !strings.HasSuffix(token, ")") {
		return "", 0, fmt.Errorf("surface: malformed filter function %q", token)
	}

	name := token[:open]
	raw := strings.TrimSpace(token[open+1 : len(token)-1])
	if raw == "" {
		return "", 0, fmt.Errorf("surface: filter function %q missing argument", name)
	}

	scale := 1.0
	if strings.HasSuffix(raw, "%") {
		raw = strings.TrimSuffix(raw, "%")
		scale = 0.01
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", 0, fmt.Errorf("surface: invalid argument in %q: %w", token, err)
	}
	v *= scale
	if v < 0 {
		return "", 0, fmt.Errorf("surface: negative argument in %q", token)
	}
	return name, v, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// applyMatrix transforms every pixel of img in place.
func applyMatrix(img *image.RGBA, m colorMatrix) {
	pix := img.Pix
	for i := 0; i < len(pix); i += 4 {
		r := float64(pix[i]) / 255
		g := float64(pix[i+1]) / 255
		b := float64(pix[i+2]) / 255
		a := float64(pix[i+3]) / 255

		nr := m[0]*r + m[1]*g + m[2]*b + m[3]*a + m[4]
		ng := m[5]*r + m[6]*g + m[7]*b + m[8]*a + m[9]
		nb := m[10]*r + m[11]*g + m[12]*b + m[13]*a + m[14]
		na := m[15]*r + m[16]*g + m[17]*b + m[18]*a + m[19]

		pix[i] = clampByte(nr)
		pix[i+1] = clampByte(ng)
		pix[i+2] = clampByte(nb)
		pix[i+3] = clampByte(na)
	}
}

func clampByte(v float64) byte {
	v *= 255
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v + 0.5)
}
