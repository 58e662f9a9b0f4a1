package chasm_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chasm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var moduleHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestCompileHeader(t *testing.T) {
	binary, err := chasm.Compile([]byte("print 12"))
	require.NoError(t, err)
	assert.Equal(t, moduleHeader, binary[:8])
}

// An empty program still compiles to a full module: print type and
// import, memory import, the exported main with no locals and an
// empty body.
func TestCompileEmptyProgram(t *testing.T) {
	binary, err := chasm.Compile(nil)
	require.NoError(t, err)
	expected := append([]byte{}, moduleHeader...)
	expected = append(expected,
		// type: (f32) -> (), () -> ()
		0x01, 0x08, 0x02, 0x60, 0x01, 0x7d, 0x00, 0x60, 0x00, 0x00,
		// import: env.print type 0, env.memory min 1 page
		0x02, 0x1b, 0x02,
		0x03, 'e', 'n', 'v', 0x05, 'p', 'r', 'i', 'n', 't', 0x00, 0x00,
		0x03, 'e', 'n', 'v', 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00, 0x01,
		// function: main uses type 1
		0x03, 0x02, 0x01, 0x01,
		// export: "main" is function 1
		0x07, 0x08, 0x01, 0x04, 'm', 'a', 'i', 'n', 0x00, 0x01,
		// code: zero f32 locals, end
		0x0a, 0x06, 0x01, 0x04, 0x01, 0x00, 0x7d, 0x0b,
	)
	assert.Equal(t, expected, binary)
}

func TestCompileDeterminism(t *testing.T) {
	source, err := os.ReadFile(filepath.Join("examples", "mandelbrot.chasm"))
	require.NoError(t, err)
	first, err := chasm.Compile(source)
	require.NoError(t, err)
	second, err := chasm.Compile(source)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompileSectionOrder(t *testing.T) {
	binary, err := chasm.Compile([]byte("proc a() print 1 endproc a()"))
	require.NoError(t, err)
	ids := []byte{}
	for i := 8; i < len(binary); {
		ids = append(ids, binary[i])
		size, n := readUleb(binary[i+1:])
		i += 1 + n + int(size)
	}
	assert.Equal(t, []byte{1, 2, 3, 7, 10}, ids)
}

func TestCompileExamples(t *testing.T) {
	sources, err := filepath.Glob(filepath.Join("examples", "*.chasm"))
	require.NoError(t, err)
	require.NotEmpty(t, sources)
	for _, path := range sources {
		source, err := os.ReadFile(path)
		require.NoError(t, err)
		binary, err := chasm.Compile(source)
		assert.NoError(t, err, path)
		assert.Equal(t, moduleHeader, binary[:8], path)
	}
}

// Compile must return a module or one of the enumerated errors for any
// input, and never fault.
func TestCompileNeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"print",
		"proc",
		"endproc endif endwhile",
		"((((((((",
		strings.Repeat("(", 1000),
		"var = 1",
		"setpixel(1)",
		"setpixel(1,2,3",
		"print -",
		"print .e-12",
		"\x00\xff\xfe\x80garbage$$$",
		"proc main() endproc",
		"while (1<2) endwhile",
	}
	for _, source := range inputs {
		binary, err := chasm.Compile([]byte(source))
		if err != nil {
			var cerr chasm.Error
			assert.ErrorAs(t, err, &cerr, "%q", source)
		} else {
			assert.Equal(t, moduleHeader, binary[:8], "%q", source)
		}
	}
}

func readUleb(b []byte) (value uint64, n int) {
	var shift uint
	for {
		c := b[n]
		n++
		value |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return value, n
		}
		shift += 7
	}
}
