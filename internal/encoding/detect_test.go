package encoding_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/encoding"
)

const header = "Data da compra;Referência externa;Créditos gravação\n"

func TestNewUTF8Reader(t *testing.T) {
	latin1, err := charmap.Windows1252.NewEncoder().Bytes([]byte(header))
	require.NoError(t, err)

	utf16le, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(header))
	require.NoError(t, err)

	utf16be, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(header))
	require.NoError(t, err)

	tests := []struct {
		name        string
		input       []byte
		wantCharset []encoding.Charset
	}{
		{name: "UTF8", input: []byte(header), wantCharset: []encoding.Charset{encoding.UTF8}},
		{name: "UTF8BOM", input: append([]byte{0xEF, 0xBB, 0xBF}, header...), wantCharset: []encoding.Charset{encoding.UTF8BOM}},
		{name: "UTF16LE", input: utf16le, wantCharset: []encoding.Charset{encoding.UTF16LE}},
		{name: "UTF16BE", input: utf16be, wantCharset: []encoding.Charset{encoding.UTF16BE}},
		// Both single-byte Latin decoders agree on the accented letters used here.
		{name: "SingleByteLatin", input: latin1, wantCharset: []encoding.Charset{encoding.Windows1252, encoding.ISO88599}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, charset, err := encoding.NewUTF8Reader(bytes.NewReader(tt.input))
			require.NoError(t, err)
			assert.Contains(t, tt.wantCharset, charset)

			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, header, string(got))
		})
	}
}

func TestNewUTF8Reader_Empty(t *testing.T) {
	r, charset, err := encoding.NewUTF8Reader(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, encoding.UTF8, charset)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewUTF8Reader_RuneAcrossSniffWindow(t *testing.T) {
	// Pad so a two-byte "ç" straddles the 4096-byte sniff window.
	input := strings.Repeat("a", 4095) + "ção\n"

	r, charset, err := encoding.NewUTF8Reader(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, encoding.UTF8, charset)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, input, string(got))
}
