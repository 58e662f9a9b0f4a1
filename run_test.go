package chasm_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"chasm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
)

// envModule is a hand-assembled module registered under the name
// "env": it re-exports host.print and provides the one-page linear
// memory that compiled programs import.
var envModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type: (f32) -> ()
	0x01, 0x05, 0x01, 0x60, 0x01, 0x7d, 0x00,
	// import: host.print
	0x02, 0x0e, 0x01, 0x04, 'h', 'o', 's', 't', 0x05, 'p', 'r', 'i', 'n', 't', 0x00, 0x00,
	// memory: min 1 page
	0x05, 0x03, 0x01, 0x00, 0x01,
	// exports: print (function 0), memory (memory 0)
	0x07, 0x12, 0x02,
	0x05, 'p', 'r', 'i', 'n', 't', 0x00, 0x00,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
}

// runModule executes a compiled module under wazero and returns the
// print transcript and the 100x100 output buffer.
func runModule(t *testing.T, binary []byte) (string, []byte) {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	var out strings.Builder
	_, err := r.NewHostModuleBuilder("host").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, x float32) {
			out.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
			out.WriteByte('\n')
		}).
		Export("print").
		Instantiate(ctx)
	require.NoError(t, err)

	env, err := r.InstantiateWithConfig(ctx, envModule, wazero.NewModuleConfig().WithName("env"))
	require.NoError(t, err)

	mod, err := r.InstantiateWithConfig(ctx, binary, wazero.NewModuleConfig().WithName("program"))
	require.NoError(t, err)
	_, err = mod.ExportedFunction("main").Call(ctx)
	require.NoError(t, err)

	view, ok := env.ExportedMemory("memory").Read(0, 10000)
	require.True(t, ok)
	return out.String(), append([]byte(nil), view...)
}

type runTest struct {
	source string
	output string
}

var runTests = []runTest{
	{"print 12", "12\n"},
	{"print -8", "-8\n"},
	{"print 12 print -8 print 44 print 0.1 print -1e-02", "12\n-8\n44\n0.1\n-0.01\n"},
	{"print (1 + 1)", "2\n"},
	{"print ((3*2) - (21/7))", "3\n"},
	{"var a = 12 print a", "12\n"},
	{"var b = (46*72) b = (b/46) print b", "72\n"},
	{`
     var a = 0
     var b = 1
     var i = 0
     while (i < 10)
        print a
        b = (a + b)
        a = (b - a)
        i = (i + 1)
     endwhile`,
		"0\n1\n1\n2\n3\n5\n8\n13\n21\n34\n"},
	{"if (1==1) print 1 endif print 2", "1\n2\n"},
	{"if (1==2) print 1 endif print 2", "2\n"},
	{"if (1==1) print 1 else print 3 endif print 2", "1\n2\n"},
	{"if (1==2) print 1 else print 3 endif print 2", "3\n2\n"},
	{"if ((1<2) && (2<3)) print 1 endif", "1\n"},
	{"proc a(x) print x endproc a(10)", "10\n"},
	{"proc func(a,b,c) print (a+(b+c)) endproc func(5,2,7)", "14\n"},
	{"proc func(a,b,c) x = 14 print ((a+(b+c))/x) endproc a = 5 m = 2 n = 7 func(a,m,n)", "1\n"},
	{`
     proc A () B() endproc
     proc B () print 5 endproc
     A()`,
		"5\n"},
	{`
     proc A (x) B(x, 2) endproc
     proc B (x, y) C(x, y, 4) endproc
     proc C (x, y, z) print ((x+y)+z) endproc
     A(1)`,
		"7\n"},
	// the intrinsic leaves x, y and color behind as caller locals
	{"print 0 setpixel(0, 1, 2) print x print y print color", "0\n0\n1\n2\n"},
}

func TestCompileAndRun(t *testing.T) {
	for _, test := range runTests {
		t.Logf("running test '%s'", test.source)
		binary, err := chasm.Compile([]byte(test.source))
		require.NoError(t, err)
		output, _ := runModule(t, binary)
		assert.Equal(t, test.output, output)
	}
}

func TestSetpixelWritesMemory(t *testing.T) {
	binary, err := chasm.Compile([]byte("setpixel(12, 8, 255)"))
	require.NoError(t, err)
	_, buffer := runModule(t, binary)
	assert.Equal(t, byte(255), buffer[8*100+12])
}

func TestGradientExample(t *testing.T) {
	source, err := os.ReadFile(filepath.Join("examples", "gradient.chasm"))
	require.NoError(t, err)
	binary, err := chasm.Compile(source)
	require.NoError(t, err)
	_, buffer := runModule(t, binary)
	// each row y holds trunc((y/100)*255)
	assert.Equal(t, byte(0), buffer[0])
	assert.Equal(t, byte(127), buffer[50*100+50])
	assert.Equal(t, byte(252), buffer[99*100+99])
}

func TestFibonacciExample(t *testing.T) {
	source, err := os.ReadFile(filepath.Join("examples", "fibonacci.chasm"))
	require.NoError(t, err)
	binary, err := chasm.Compile(source)
	require.NoError(t, err)
	output, _ := runModule(t, binary)
	assert.Equal(t, "0\n1\n1\n2\n3\n5\n8\n13\n21\n34\n", output)
}
