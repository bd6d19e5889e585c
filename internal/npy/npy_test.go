package npy

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadFloat32(t *testing.T) {
	tests := []struct {
		name  string
		shape []int
		data  []float32
	}{
		{"vetor", []int{4}, []float32{1, -2.5, 3.25, 0}},
		{"matriz", []int{2, 3}, []float32{1, 2, 3, 4, 5, 6}},
		{"tensor", []int{2, 2, 2}, []float32{1, 2, 3, 4, 5, 6, 7, 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "arr.npy")
			if err := SaveFloat32(path, tt.shape, tt.data); err != nil {
				t.Fatal(err)
			}
			shape, data, err := LoadFloat32(path)
			if err != nil {
				t.Fatal(err)
			}
			if len(shape) != len(tt.shape) {
				t.Fatalf("shape rank: got %v, want %v", shape, tt.shape)
			}
			for i := range shape {
				if shape[i] != tt.shape[i] {
					t.Fatalf("shape: got %v, want %v", shape, tt.shape)
				}
			}
			for i := range data {
				if data[i] != tt.data[i] {
					t.Fatalf("value %d: got %v, want %v", i, data[i], tt.data[i])
				}
			}
		})
	}
}

func TestSaveFloat32ShapeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arr.npy")
	if err := SaveFloat32(path, []int{3}, []float32{1, 2}); err == nil {
		t.Fatal("expected shape mismatch error")
	}
}

func TestHeaderLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arr.npy")
	if err := SaveFloat32(path, []int{5}, []float32{1, 2, 3, 4, 5}); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if string(raw[:6]) != "\x93NUMPY" {
		t.Fatalf("bad magic: %q", raw[:6])
	}
	if raw[6] != 1 || raw[7] != 0 {
		t.Fatalf("version: got %d.%d, want 1.0", raw[6], raw[7])
	}
	hlen := binary.LittleEndian.Uint16(raw[8:10])
	// np.load expects the data section to start on a 64-byte boundary.
	if (10+int(hlen))%64 != 0 {
		t.Errorf("header end %d not 64-byte aligned", 10+int(hlen))
	}
	if raw[10+int(hlen)-1] != '\n' {
		t.Errorf("header does not end with newline")
	}
}

func TestNPZRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scaler.npz")
	arrays := map[string][]float32{
		"mean":  {1.5},
		"scale": {0.25},
	}
	if err := SaveNPZ(path, arrays); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadNPZ(path)
	if err != nil {
		t.Fatal(err)
	}
	for name, want := range arrays {
		got, ok := loaded[name]
		if !ok {
			t.Fatalf("array %q missing", name)
		}
		if len(got) != len(want) || got[0] != want[0] {
			t.Fatalf("array %q: got %v, want %v", name, got, want)
		}
	}
}
