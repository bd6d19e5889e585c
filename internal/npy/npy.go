// Package npy reads and writes NumPy .npy (format 1.0, little-endian
// float32, C order) and .npz archives. Prepared datasets and target scalers
// stay byte-compatible with the arrays the original batch scripts persist
// via np.save / np.savez.
package npy

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var magic = []byte("\x93NUMPY")

var headerRe = regexp.MustCompile(`'descr':\s*'([^']+)',\s*'fortran_order':\s*(True|False),\s*'shape':\s*\(([^)]*)\)`)

// SaveFloat32 writes a float32 array of the given shape to path.
func SaveFloat32(path string, shape []int, data []float32) error {
	n := 1
	for _, d := range shape {
		n *= d
	}
	if n != len(data) {
		return fmt.Errorf("shape %v does not match %d elements", shape, len(data))
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := writeFloat32(f, shape, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// LoadFloat32 reads a float32 array and its shape from path.
func LoadFloat32(path string) ([]int, []float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	shape, data, err := readFloat32(f)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return shape, data, nil
}

// SaveNPZ writes named one-dimensional float32 arrays as an .npz archive.
func SaveNPZ(path string, arrays map[string][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, data := range arrays {
		w, err := zw.Create(name + ".npy")
		if err != nil {
			return fmt.Errorf("npz entry %s: %w", name, err)
		}
		if err := writeFloat32(w, []int{len(data)}, data); err != nil {
			return fmt.Errorf("npz entry %s: %w", name, err)
		}
	}
	return zw.Close()
}

// LoadNPZ reads every float32 array from an .npz archive.
func LoadNPZ(path string) (map[string][]float32, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer zr.Close()

	out := make(map[string][]float32, len(zr.File))
	for _, entry := range zr.File {
		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("npz entry %s: %w", entry.Name, err)
		}
		_, data, err := readFloat32(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("npz entry %s: %w", entry.Name, err)
		}
		out[strings.TrimSuffix(entry.Name, ".npy")] = data
	}
	return out, nil
}

func writeFloat32(w io.Writer, shape []int, data []float32) error {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	shapeStr := strings.Join(dims, ", ")
	if len(shape) == 1 {
		shapeStr += ","
	}
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%s), }", shapeStr)

	// Total header (magic + version + len + dict) padded to 64 bytes, ending '\n'.
	base := len(magic) + 2 + 2
	pad := 64 - (base+len(header)+1)%64
	if pad == 64 {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"

	var buf bytes.Buffer
	buf.Write(magic)
	buf.WriteByte(1)
	buf.WriteByte(0)
	if err := binary.Write(&buf, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	buf.WriteString(header)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}

	raw := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}
	_, err := w.Write(raw)
	return err
}

func readFloat32(r io.Reader) ([]int, []float32, error) {
	head := make([]byte, len(magic)+2)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, nil, err
	}
	if !bytes.Equal(head[:len(magic)], magic) {
		return nil, nil, fmt.Errorf("not an npy file")
	}
	if head[len(magic)] != 1 {
		return nil, nil, fmt.Errorf("unsupported npy version %d.%d", head[len(magic)], head[len(magic)+1])
	}
	var hlen uint16
	if err := binary.Read(r, binary.LittleEndian, &hlen); err != nil {
		return nil, nil, err
	}
	hdr := make([]byte, hlen)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, nil, err
	}
	m := headerRe.FindStringSubmatch(string(hdr))
	if m == nil {
		return nil, nil, fmt.Errorf("malformed npy header %q", hdr)
	}
	if m[1] != "<f4" {
		return nil, nil, fmt.Errorf("unsupported dtype %s", m[1])
	}
	if m[2] != "False" {
		return nil, nil, fmt.Errorf("fortran order not supported")
	}

	var shape []int
	total := 1
	for _, part := range strings.Split(m[3], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return nil, nil, fmt.Errorf("bad shape %q: %w", m[3], err)
		}
		shape = append(shape, d)
		total *= d
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	if len(raw) < 4*total {
		return nil, nil, fmt.Errorf("truncated npy payload: want %d bytes, have %d", 4*total, len(raw))
	}
	data := make([]float32, total)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return shape, data, nil
}
