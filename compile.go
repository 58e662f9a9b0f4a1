// Package chasm is a single-pass compiler from the chasm toy language
// to the WebAssembly binary format. Compilation is one fused walk of
// the grammar: the parser checks operand types and emits instruction
// bytes as it goes, with no intermediate representation.
package chasm

// Compile translates chasm source text into a complete WebAssembly
// module. The module imports the function env.print (one f32
// parameter, no result) and the linear memory env.memory (minimum one
// page), and exports the program entry point as "main" at function
// index 1. After main runs, bytes 0..10000 of the memory hold the
// 100x100 row-major output buffer written by setpixel calls.
func Compile(source []byte) ([]byte, error) {
	procedures, err := Parse(source)
	if err != nil {
		return nil, err
	}

	binary := append([]byte(nil), moduleHeader...)

	// type section: the print type at index 0, then one type per
	// procedure, each taking NumParam f32 parameters and returning
	// nothing
	var sec []byte
	sec = appendUleb(sec, uint64(1+len(procedures)))
	sec = append(sec, typeFunc)
	sec = appendUleb(sec, 1)
	sec = append(sec, valF32)
	sec = appendUleb(sec, 0)
	for _, proc := range procedures {
		sec = append(sec, typeFunc)
		sec = appendUleb(sec, uint64(proc.NumParam))
		for i := uint32(0); i < proc.NumParam; i++ {
			sec = append(sec, valF32)
		}
		sec = appendUleb(sec, 0)
	}
	binary = appendSection(binary, secType, sec)

	// import section: env.print lands at function index 0, and
	// env.memory supplies the shared output buffer
	sec = sec[:0]
	sec = appendUleb(sec, 2)
	sec = appendName(sec, "env")
	sec = appendName(sec, "print")
	sec = append(sec, importFunc)
	sec = appendUleb(sec, 0)
	sec = appendName(sec, "env")
	sec = appendName(sec, "memory")
	sec = append(sec, importMemory, limitsMin)
	sec = appendUleb(sec, 1)
	binary = appendSection(binary, secImport, sec)

	// function section: procedures are sorted by index, so the type of
	// the procedure at index i sits at type index i
	sec = sec[:0]
	sec = appendUleb(sec, uint64(len(procedures)))
	for _, proc := range procedures {
		sec = appendUleb(sec, uint64(proc.Idx))
	}
	binary = appendSection(binary, secFunction, sec)

	// export section: the top-level program
	sec = sec[:0]
	sec = appendUleb(sec, 1)
	sec = appendName(sec, "main")
	sec = append(sec, exportFunc)
	sec = appendUleb(sec, 1)
	binary = appendSection(binary, secExport, sec)

	// code section: each body already carries its locals declaration
	sec = sec[:0]
	sec = appendUleb(sec, uint64(len(procedures)))
	for _, proc := range procedures {
		sec = appendUleb(sec, uint64(len(proc.Code)))
		sec = append(sec, proc.Code...)
	}
	binary = appendSection(binary, secCode, sec)

	return binary, nil
}
