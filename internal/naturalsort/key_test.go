package naturalsort_test

import (
	"slices"
	"testing"

	"stillcut/internal/naturalsort"
)

func TestSortOrdersDigitRunsNumerically(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "simple numeric suffix",
			input: []string{"a10.png", "a2.png", "a1.png"},
			want:  []string{"a1.png", "a2.png", "a10.png"},
		},
		{
			name:  "digits before letters",
			input: []string{"imgA.png", "img10.png", "img2.png"},
			want:  []string{"img2.png", "img10.png", "imgA.png"},
		},
		{
			name:  "case insensitive text",
			input: []string{"b.jpg", "C.jpg", "a.jpg"},
			want:  []string{"a.jpg", "b.jpg", "C.jpg"},
		},
		{
			name:  "multiple digit runs",
			input: []string{"s2e10.wav", "s2e2.wav", "s10e1.wav", "s1e5.wav"},
			want:  []string{"s1e5.wav", "s2e2.wav", "s2e10.wav", "s10e1.wav"},
		},
		{
			name:  "zero padded",
			input: []string{"003.jpg", "010.jpg", "001.jpg", "002.jpg"},
			want:  []string{"001.jpg", "002.jpg", "003.jpg", "010.jpg"},
		},
		{
			name:  "digits longer than int64",
			input: []string{"x99999999999999999999999.png", "x100000000000000000000000.png", "x5.png"},
			want:  []string{"x5.png", "x99999999999999999999999.png", "x100000000000000000000000.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Clone(tt.input)
			naturalsort.Sort(got)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("Sort(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCompareIsTotal(t *testing.T) {
	pairs := [][2]string{
		{"a01.png", "a1.png"},
		{"A.png", "a.png"},
		{"", "a"},
		{"photo", "photo.jpg"},
	}
	for _, pair := range pairs {
		a := naturalsort.KeyOf(pair[0])
		b := naturalsort.KeyOf(pair[1])
		ab := a.Compare(b)
		ba := b.Compare(a)
		if ab == 0 || ab != -ba {
			t.Fatalf("compare(%q,%q)=%d compare(%q,%q)=%d; want strict antisymmetric order", pair[0], pair[1], ab, pair[1], pair[0], ba)
		}
	}
	if naturalsort.KeyOf("same").Compare(naturalsort.KeyOf("same")) != 0 {
		t.Fatal("expected equal names to compare equal")
	}
}

func TestLess(t *testing.T) {
	if !naturalsort.Less("img2.png", "img10.png") {
		t.Fatal("expected img2 < img10")
	}
	if !naturalsort.Less("img10.png", "imgA.png") {
		t.Fatal("expected img10 < imgA")
	}
	if naturalsort.Less("img10.png", "img2.png") {
		t.Fatal("expected img10 not < img2")
	}
}

func TestSortIsDeterministic(t *testing.T) {
	input := []string{"b2", "a10", "a2", "B1", "a1"}
	first := slices.Clone(input)
	second := slices.Clone(input)
	slices.Reverse(second)
	naturalsort.Sort(first)
	naturalsort.Sort(second)
	if !slices.Equal(first, second) {
		t.Fatalf("order depends on input order: %v vs %v", first, second)
	}
}
