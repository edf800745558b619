package base62

import (
	"math"
	"math/rand"
	"testing"

	"github.com/ceyewan/shortlink/xerrors"
)

func TestEncode(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{1, "1"},
		{9, "9"},
		{10, "a"},
		{35, "z"},
		{36, "A"},
		{61, "Z"},
		{62, "10"},
		{3843, "ZZ"},
		{3844, "100"},
		{math.MaxInt64, "aZl8N0y58M7"},
	}

	for _, c := range cases {
		got, err := Encode(c.n)
		if err != nil {
			t.Errorf("Encode(%d) error: %v", c.n, err)
			continue
		}
		if got != c.want {
			t.Errorf("Encode(%d) = %q, want %q", c.n, got, c.want)
		}
	}
}

func TestDecode(t *testing.T) {
	cases := []struct {
		s    string
		want int64
	}{
		{"0", 0},
		{"1", 1},
		{"a", 10},
		{"Z", 61},
		{"10", 62},
		{"100", 3844},
		{"aZl8N0y58M7", math.MaxInt64},
		{"00010", 62}, // 前导零不影响数值
	}

	for _, c := range cases {
		got, err := Decode(c.s)
		if err != nil {
			t.Errorf("Decode(%q) error: %v", c.s, err)
			continue
		}
		if got != c.want {
			t.Errorf("Decode(%q) = %d, want %d", c.s, got, c.want)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		if _, err := Decode(""); !xerrors.Is(err, ErrEmptyInput) {
			t.Errorf("Decode(\"\") = %v, want ErrEmptyInput", err)
		}
	})

	t.Run("invalid character", func(t *testing.T) {
		for _, s := range []string{"abc-", "_", "abc def", "短链"} {
			if _, err := Decode(s); !xerrors.Is(err, ErrInvalidCharacter) {
				t.Errorf("Decode(%q) = %v, want ErrInvalidCharacter", s, err)
			}
		}
	})

	t.Run("overflow", func(t *testing.T) {
		// math.MaxInt64 编码为 "aZl8N0y58M7"，任何更大的同长或更长输入都溢出
		for _, s := range []string{"aZl8N0y58M8", "ZZZZZZZZZZZ", "100000000000"} {
			if _, err := Decode(s); !xerrors.Is(err, ErrOverflow) {
				t.Errorf("Decode(%q) = %v, want ErrOverflow", s, err)
			}
		}
	})
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10000; i++ {
		n := rng.Int63()
		encoded, err := Encode(n)
		if err != nil {
			t.Fatalf("Encode(%d) error: %v", n, err)
		}
		got, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(Encode(%d)) error: %v", n, err)
		}
		if got != n {
			t.Fatalf("Decode(Encode(%d)) = %d", n, got)
		}
	}
}

func TestEncodeOrderPreserving(t *testing.T) {
	// 同长度编码保持字典序之外的数值序：长度优先，长度相同按字母表序
	prev, _ := Encode(0)
	for n := int64(1); n < 10000; n++ {
		cur, err := Encode(n)
		if err != nil {
			t.Fatalf("Encode(%d) error: %v", n, err)
		}
		if len(cur) < len(prev) {
			t.Fatalf("Encode(%d) shorter than Encode(%d)", n, n-1)
		}
		prev = cur
	}
}

func TestEncodeNegative(t *testing.T) {
	for _, n := range []int64{-1, -62, math.MinInt64} {
		if _, err := Encode(n); !xerrors.Is(err, ErrNegativeValue) {
			t.Errorf("Encode(%d) = %v, want ErrNegativeValue", n, err)
		}
	}
}

func TestValid(t *testing.T) {
	valid := []string{"0", "abcXYZ", "aZl8N0y58M7"}
	invalid := []string{"", "abc-", "a b", "中文"}

	for _, s := range valid {
		if !Valid(s) {
			t.Errorf("Valid(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if Valid(s) {
			t.Errorf("Valid(%q) = true, want false", s)
		}
	}
}

func FuzzRoundTrip(f *testing.F) {
	f.Add(int64(0))
	f.Add(int64(62))
	f.Add(int64(math.MaxInt64))
	f.Fuzz(func(t *testing.T, n int64) {
		if n < 0 {
			t.Skip()
		}
		encoded, err := Encode(n)
		if err != nil {
			t.Fatalf("Encode(%d) error: %v", n, err)
		}
		got, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(Encode(%d)) error: %v", n, err)
		}
		if got != n {
			t.Fatalf("Decode(Encode(%d)) = %d", n, got)
		}
	})
}
