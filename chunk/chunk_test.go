package chunk

import (
	"fmt"
	"reflect"
	"testing"
)

func seq(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("line %d", i)
	}
	return out
}

func TestSplitSizes(t *testing.T) {
	tests := []struct {
		name string
		n    int
		size int
		want []int
	}{
		{"subtitle batches", 120, 50, []int{50, 50, 20}},
		{"exact multiple", 100, 50, []int{50, 50}},
		{"smaller than size", 3, 50, []int{3}},
		{"size one", 3, 1, []int{1, 1, 1}},
		{"zero size means one part", 7, 0, []int{7}},
		{"negative size means one part", 7, -2, []int{7}},
		{"empty input", 0, 10, []int{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Sizes(Split(seq(tc.n), tc.size))
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("sizes = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSplitJoinReconstructs(t *testing.T) {
	for n := 0; n <= 40; n++ {
		for size := 1; size <= 12; size++ {
			in := seq(n)
			parts := Split(in, size)
			for _, p := range parts {
				if len(p) > size {
					t.Fatalf("n=%d size=%d: part of length %d", n, size, len(p))
				}
			}
			out := Join(parts)
			if len(in) == 0 && len(out) == 0 {
				continue
			}
			if !reflect.DeepEqual(out, in) {
				t.Fatalf("n=%d size=%d: Join(Split) = %v, want %v", n, size, out, in)
			}
		}
	}
}

func TestSplitPartsDoNotClobberEachOther(t *testing.T) {
	in := seq(5)
	parts := Split(in, 2)
	parts[0] = append(parts[0], "extra")
	if in[2] != "line 2" {
		t.Fatalf("append on a part overwrote the next part: %q", in[2])
	}
}
