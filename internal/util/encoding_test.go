package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeBytes(t *testing.T) {
	assert.Equal(t, "", DecodeBytes(nil, ""))
	assert.Equal(t, "Zürich", DecodeBytes([]byte("Zürich"), "windows-1251"))

	// "Привет" in windows-1251
	cp1251 := []byte{0xcf, 0xf0, 0xe8, 0xe2, 0xe5, 0xf2}
	assert.Equal(t, "Привет", DecodeBytes(cp1251, "windows-1251"))
	assert.Equal(t, "Привет", DecodeBytes(cp1251, "CP1251"))

	// 未知 codepage 回退到 windows-1252
	assert.Equal(t, "café", DecodeBytes([]byte{'c', 'a', 'f', 0xe9}, "unknown"))
	assert.Equal(t, "café", Decode(string([]byte{'c', 'a', 'f', 0xe9}), ""))
}

func TestKnownCharset(t *testing.T) {
	assert.True(t, KnownCharset("windows-1251"))
	assert.True(t, KnownCharset(" KOI8_R "))
	assert.True(t, KnownCharset("cp1250"))
	assert.False(t, KnownCharset("utf-16"))
}
