package corrector

import (
	"math"
	"testing"
)

func TestCorrect(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"turkish upper dotted", "AYŞE YILMAZ", "ayse yilmaz"},
		{"ascii typed", "Ayse Yilmaz", "ayse yilmaz"},
		{"capital dotted i", "İSMAİL", "ismail"},
		{"dotless i", "ılgın", "ilgin"},
		{"whitespace collapsed", "  Mehmet \t  Can  ", "mehmet can"},
		{"punctuation", "Öztürk-Şahin, Elif.", "ozturk sahin elif"},
		{"digit lookalikes in name", "AY5E Y1LMAZ", "ayse yilmaz"},
		{"zero in name", "G0KHAN", "gokhan"},
		{"pure digits kept", "Ali 2", "ali 2"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Correct(tt.in); got != tt.want {
				t.Errorf("Correct(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCorrectIdempotent(t *testing.T) {
	for _, in := range []string{"AYŞE YILMAZ", "G0KHAN  Öz", "İÇİN ığüşöç"} {
		once := Correct(in)
		if twice := Correct(once); twice != once {
			t.Errorf("Correct not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalizeStudentNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0007", "7"},
		{"7", "7"},
		{" 00 7 ", "7"},
		{"000", "0"},
		{"1O5", "105"},
		{"", ""},
		{"12S", "125"},
	}
	for _, tt := range tests {
		if got := NormalizeStudentNumber(tt.in); got != tt.want {
			t.Errorf("NormalizeStudentNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeNationalID(t *testing.T) {
	if got := NormalizeNationalID("123 456-789.01"); got != "12345678901" {
		t.Errorf("got %q", got)
	}
	if got := NormalizeNationalID("abc"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestNormalizeClass(t *testing.T) {
	for _, in := range []string{"8A", "8-a", "8 / A", " 8a "} {
		if got := NormalizeClass(in); got != "8a" {
			t.Errorf("NormalizeClass(%q) = %q, want 8a", in, got)
		}
	}
	if NormalizeClass("8A") == NormalizeClass("8B") {
		t.Error("different classes normalized equal")
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical after correction", "AYŞE YILMAZ", "Ayse Yilmaz", 1, 1},
		{"swapped tokens", "Yılmaz Ayşe", "Ayşe Yılmaz", 1, 1},
		{"one typo", "Ayse Yilmax", "Ayse Yilmaz", 0.9, 0.95},
		{"unrelated", "Mehmet Kaya", "Ayse Yilmaz", 0, 0.4},
		{"empty", "", "Ayse", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if got < tt.min || got > tt.max {
				t.Errorf("Similarity(%q, %q) = %v, want within [%v, %v]", tt.a, tt.b, got, tt.min, tt.max)
			}
		})
	}
}

func TestRatioSymmetricAndBounded(t *testing.T) {
	pairs := [][2]string{
		{"ayse yilmaz", "ayse yilmas"},
		{"ali veli", "veli"},
		{"kemal", "cemal sunal"},
	}
	for _, p := range pairs {
		ab, ba := Ratio(p[0], p[1]), Ratio(p[1], p[0])
		if math.Abs(ab-ba) > 1e-12 {
			t.Errorf("Ratio not symmetric for %v: %v vs %v", p, ab, ba)
		}
		if ab < 0 || ab > 1 {
			t.Errorf("Ratio out of range for %v: %v", p, ab)
		}
		if bound := RatioBound(p[0], p[1]); ab > bound+1e-12 {
			t.Errorf("Ratio %v exceeds length bound %v for %v", ab, bound, p)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"şeker", "seker", 1},
	}
	for _, tt := range tests {
		if got := levenshtein([]rune(tt.a), []rune(tt.b)); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
