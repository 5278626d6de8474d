package docenc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeToBytes(t *testing.T, build func(e *Encoder)) []byte {
	t.Helper()
	var out bytes.Buffer
	scratch := make([]byte, 256)
	e := NewEncoder(func(p []byte) SinkStatus {
		out.Write(p)
		return SinkOK
	}, scratch)
	build(e)
	require.NoError(t, e.Flush())
	return out.Bytes()
}

func TestEncoder_ObjectOrdering(t *testing.T) {
	got := encodeToBytes(t, func(e *Encoder) {
		e.BeginObjectUnnamed()
		e.AddInt("z", 1)
		e.AddInt("a", 2)
		e.AddInt("m", 3)
		e.EndContainer()
	})
	assert.Equal(t, `{"z":1,"a":2,"m":3}`, string(got))
}

func TestEncoder_NestedContainers(t *testing.T) {
	got := encodeToBytes(t, func(e *Encoder) {
		e.BeginObjectUnnamed()
		e.BeginArray("items")
		e.AddInt("", 1)
		e.AddInt("", 2)
		e.BeginObjectUnnamed()
		e.AddString("name", "leaf")
		e.EndContainer()
		e.EndContainer()
		e.AddBool("ok", true)
		e.EndContainer()
	})
	assert.Equal(t, `{"items":[1,2,{"name":"leaf"}],"ok":true}`, string(got))
}

func TestEncoder_StringEscaping(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"plain", "hello", `"hello"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := encodeToBytes(t, func(e *Encoder) {
				e.AddString("", tc.in)
			})
			assert.Equal(t, tc.want, string(got))
		})
	}
}

// TestEncoder_StringEscaping_RejectsUnrecognisedControlByte covers
// spec.md §4.A's INVALID_CHARACTER rule: a control byte below 0x20 with no
// short escape fails the encode rather than being silently re-encoded.
func TestEncoder_StringEscaping_RejectsUnrecognisedControlByte(t *testing.T) {
	var out bytes.Buffer
	e := NewEncoder(func(p []byte) SinkStatus {
		out.Write(p)
		return SinkOK
	}, make([]byte, 256))
	e.AddString("", "a\x01b")
	assert.ErrorIs(t, e.Err(), ErrInvalidCharacter)
}

// recognisedControlEscapes is the set of control bytes below 0x20 with a
// short escape; every other byte in that range is ErrInvalidCharacter.
var recognisedControlEscapes = map[byte]bool{
	'\b': true, '\f': true, '\n': true, '\r': true, '\t': true,
}

func TestEncoder_EscapeSafety(t *testing.T) {
	for b := 0; b < 0x20; b++ {
		s := string([]byte{byte(b)})
		var out bytes.Buffer
		e := NewEncoder(func(p []byte) SinkStatus {
			out.Write(p)
			return SinkOK
		}, make([]byte, 256))
		e.AddString("", s)

		if !recognisedControlEscapes[byte(b)] {
			require.ErrorIs(t, e.Err(), ErrInvalidCharacter, "byte 0x%02x", b)
			continue
		}
		require.NoError(t, e.Flush())

		body := out.String()
		require.True(t, len(body) >= 2 && body[0] == '"' && body[len(body)-1] == '"')
		inner := body[1 : len(body)-1]
		for i := 0; i < len(inner); i++ {
			if inner[i] < 0x20 {
				t.Fatalf("unescaped control byte in output for input 0x%02x: %q", b, body)
			}
		}
	}
}

func TestEncoder_HexBytes(t *testing.T) {
	got := encodeToBytes(t, func(e *Encoder) {
		e.AddHexBytes("", []byte{0xDE, 0xAD, 0xBE, 0xEF})
	})
	assert.Equal(t, `"DEADBEEF"`, string(got))
}

func TestEncoder_UUID(t *testing.T) {
	var id [16]byte
	for i := range id {
		id[i] = byte(i)
	}
	got := encodeToBytes(t, func(e *Encoder) {
		e.AddUUID("", id)
	})
	assert.Equal(t, `"00010203-0405-0607-0809-0a0b0c0d0e0f"`, string(got))
}

func TestEncoder_RawPassthroughValid(t *testing.T) {
	got := encodeToBytes(t, func(e *Encoder) {
		e.AddRawPassthrough("", []byte(`{"x":1}`))
	})
	assert.Equal(t, `{"x":1}`, string(got))
}

func TestEncoder_RawPassthroughInvalidSubstitutes(t *testing.T) {
	got := encodeToBytes(t, func(e *Encoder) {
		e.AddRawPassthrough("", []byte(`)(garbage`))
	})
	assert.Contains(t, string(got), `"error"`)
	assert.Contains(t, string(got), `"json_data":")(garbage"`)
}

func TestEncoder_DepthExceeded(t *testing.T) {
	var out bytes.Buffer
	e := NewEncoder(func(p []byte) SinkStatus { out.Write(p); return SinkOK }, make([]byte, 64))
	e.SetMaxDepth(2)
	e.BeginObjectUnnamed()
	e.BeginObject("a")
	e.BeginObject("b")
	assert.ErrorIs(t, e.Err(), ErrDepthExceeded)
}

func TestEncoder_NameRequiredInObject(t *testing.T) {
	var out bytes.Buffer
	e := NewEncoder(func(p []byte) SinkStatus { out.Write(p); return SinkOK }, make([]byte, 64))
	e.BeginObjectUnnamed()
	e.AddInt("", 1)
	assert.ErrorIs(t, e.Err(), ErrNameRequired)
}

func TestEncoder_NameDisallowedInArray(t *testing.T) {
	var out bytes.Buffer
	e := NewEncoder(func(p []byte) SinkStatus { out.Write(p); return SinkOK }, make([]byte, 64))
	e.BeginArrayUnnamed()
	e.AddInt("x", 1)
	assert.ErrorIs(t, e.Err(), ErrNameDisallowed)
}

func TestEncoder_SinkFailureStopsEncoding(t *testing.T) {
	calls := 0
	e := NewEncoder(func(p []byte) SinkStatus {
		calls++
		return SinkCannotAddData
	}, make([]byte, 4))
	e.BeginObjectUnnamed()
	e.AddString("key", "a long value that forces more than one flush through the tiny scratch buffer")
	assert.ErrorIs(t, e.Err(), ErrCannotAddData)
	assert.GreaterOrEqual(t, calls, 1)
}

func TestEncoder_StreamingStringElement(t *testing.T) {
	got := encodeToBytes(t, func(e *Encoder) {
		e.BeginStringElement("")
		e.AppendStringChunk("hello ")
		e.AppendStringChunk("world")
		e.EndStringElement()
	})
	assert.Equal(t, `"hello world"`, string(got))
}

func TestEncoder_StreamingHexElement(t *testing.T) {
	got := encodeToBytes(t, func(e *Encoder) {
		e.BeginHexElement("")
		e.AppendHexChunk([]byte{0xAB})
		e.AppendHexChunk([]byte{0xCD})
		e.EndHexElement()
	})
	assert.Equal(t, `"ABCD"`, string(got))
}

func TestEncoder_TextFileElement(t *testing.T) {
	content := []byte("line one\nline \"two\"\n")
	pos := 0
	read := func(buf []byte) (int, bool, error) {
		n := copy(buf, content[pos:])
		pos += n
		return n, pos >= len(content), nil
	}
	got := encodeToBytes(t, func(e *Encoder) {
		e.AddTextFileElement("", read)
	})
	assert.Equal(t, `"line one\nline \"two\"\n"`, string(got))
}
