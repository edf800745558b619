// Package base62 提供 int64 与 Base62 字符串之间的双向编解码。
//
// 字母表按 [0-9a-zA-Z] 排列，数字越大字符串越长，
// 同一数值的编码结果唯一，适合作为短链接码。
package base62

import (
	"math"
	"strings"

	"github.com/ceyewan/shortlink/xerrors"
)

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const base = int64(len(alphabet))

var (
	// ErrEmptyInput 输入为空字符串
	ErrEmptyInput = xerrors.New("base62: empty input")

	// ErrInvalidCharacter 输入包含字母表之外的字符
	ErrInvalidCharacter = xerrors.New("base62: invalid character")

	// ErrNegativeValue 输入为负数
	ErrNegativeValue = xerrors.New("base62: negative value")

	// ErrOverflow 解码结果超出 int64 范围
	ErrOverflow = xerrors.New("base62: value overflows int64")
)

// 字符到数值的反查表，非法字符为 -1
var decodeTable = func() [256]int64 {
	var t [256]int64
	for i := range t {
		t[i] = -1
	}
	for i, ch := range alphabet {
		t[ch] = int64(i)
	}
	return t
}()

// Encode 将非负整数编码为 Base62 字符串。
//
// Encode(0) 返回 "0"；负数返回 ErrNegativeValue。
func Encode(n int64) (string, error) {
	if n < 0 {
		return "", xerrors.Wrapf(ErrNegativeValue, "%d", n)
	}
	if n == 0 {
		return "0", nil
	}

	// int64 最多 11 个 Base62 字符
	var buf [11]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = alphabet[n%base]
		n /= base
	}
	return string(buf[i:]), nil
}

// Decode 将 Base62 字符串解码为 int64。
//
// 输入为空、含非法字符或超出 int64 范围时返回错误。
func Decode(s string) (int64, error) {
	if s == "" {
		return 0, ErrEmptyInput
	}

	var n int64
	for i := 0; i < len(s); i++ {
		v := decodeTable[s[i]]
		if v < 0 {
			return 0, xerrors.Wrapf(ErrInvalidCharacter, "position %d: %q", i, s[i])
		}
		if n > (math.MaxInt64-v)/base {
			return 0, xerrors.Wrapf(ErrOverflow, "input %q", s)
		}
		n = n*base + v
	}
	return n, nil
}

// Valid 判断字符串是否只包含 Base62 字母表字符。
func Valid(s string) bool {
	if s == "" {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return r > 255 || decodeTable[r] < 0
	}) < 0
}
