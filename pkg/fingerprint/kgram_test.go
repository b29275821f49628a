package fingerprint

import (
	"errors"
	"reflect"
	"testing"
)

func TestHashKGrams_Count(t *testing.T) {
	tests := []struct {
		text string
		k    int
		want int
	}{
		{"abcdef", 1, 6},
		{"abcdef", 3, 4},
		{"abcdef", 6, 1},
		{"x", 1, 1},
	}
	for _, tt := range tests {
		hashes, err := HashKGrams(tt.text, tt.k)
		if err != nil {
			t.Fatalf("HashKGrams(%q, %d) error = %v", tt.text, tt.k, err)
		}
		if len(hashes) != tt.want {
			t.Errorf("HashKGrams(%q, %d) returned %d hashes, want %d", tt.text, tt.k, len(hashes), tt.want)
		}
	}
}

func TestHashKGrams_Stable(t *testing.T) {
	a, err := HashKGrams("abcabc", 3)
	if err != nil {
		t.Fatal(err)
	}
	b, err := HashKGrams("abcabc", 3)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("hashes differ between runs: %v vs %v", a, b)
	}
	if a[0] != a[3] {
		t.Errorf("equal windows hash differently: %x vs %x", a[0], a[3])
	}
	if a[0] == a[1] {
		t.Errorf("distinct windows %q and %q collided", "abc", "bca")
	}

	// The same window in another document hashes identically.
	c, err := HashKGrams("zzabc", 3)
	if err != nil {
		t.Fatal(err)
	}
	if c[2] != a[0] {
		t.Errorf("cross-document hash mismatch: %x vs %x", c[2], a[0])
	}
}

func TestHashKGrams_Errors(t *testing.T) {
	if _, err := HashKGrams("ab", 3); !errors.Is(err, ErrDegenerateInput) {
		t.Errorf("short text error = %v, want ErrDegenerateInput", err)
	}
	if _, err := HashKGrams("", 1); !errors.Is(err, ErrDegenerateInput) {
		t.Errorf("empty text error = %v, want ErrDegenerateInput", err)
	}
	if _, err := HashKGrams("abc", 0); !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("k=0 error = %v, want ErrInvalidThreshold", err)
	}
}
