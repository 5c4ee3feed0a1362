// Package shadercache implements the on-disk shader IR cache
// described in spec.md §4.8, grounded on
// original_source/src/dxvk/dxvk_shader_cache.{h,cpp} (DxvkShaderCache)
// and dxvk_shader_ir.{h,cpp} (DxvkIrShader, DxvkIrShaderCreateInfo).
//
// The DXBC/SPIR-V IR conversion and lowering passes dxvk_shader_ir.cpp
// performs (front-end conversion, binding-model rewrite, push-data
// packing) are a full shader compiler backend and are out of scope
// here; see DESIGN.md. This package implements the cache file format
// and the lazy get_code contract spec.md §4.8 step 5 and §8 scenario 5
// actually make testable: a shader's IR blob, metadata and layout
// round-trip through two append-only files keyed by name plus a hash
// of its create-time options.
package shadercache

import "github.com/cespare/xxhash/v2"

// XfbEntry mirrors one transform-feedback binding
// (dxbc_spv::ir::IoXfbInfo), part of a shader's create-time options.
type XfbEntry struct {
	SemanticName  string
	SemanticIndex uint32
	ComponentMask uint32
	Stream        uint32
	Buffer        uint32
	Offset        uint32
	Stride        uint32
}

// CreateInfo is the compile-time shader configuration that, together
// with the shader's name, forms the cache lookup key
// (DxvkIrShaderCreateInfo).
type CreateInfo struct {
	Options           uint64
	FlatShadingInputs uint32
	RasterizedStream  int32
	XfbEntries        []XfbEntry
}

// hash folds CreateInfo into the 64-bit digest the cache's LUT key
// uses (spec.md §4.8: "create-info-hash-of-options-and-xfb-entries").
func (c CreateInfo) hash() uint64 {
	d := xxhash.New()
	var buf [8]byte
	putU64(buf[:], c.Options)
	d.Write(buf[:])
	putU64(buf[:], uint64(c.FlatShadingInputs))
	d.Write(buf[:])
	putU64(buf[:], uint64(uint32(c.RasterizedStream)))
	d.Write(buf[:])
	for _, x := range c.XfbEntries {
		d.Write([]byte(x.SemanticName))
		putU64(buf[:], uint64(x.SemanticIndex))
		d.Write(buf[:])
		putU64(buf[:], uint64(x.ComponentMask))
		d.Write(buf[:])
		putU64(buf[:], uint64(x.Stream))
		d.Write(buf[:])
		putU64(buf[:], uint64(x.Buffer))
		d.Write(buf[:])
		putU64(buf[:], uint64(x.Offset))
		d.Write(buf[:])
		putU64(buf[:], uint64(x.Stride))
		d.Write(buf[:])
	}
	return d.Sum64()
}

// Metadata is the subset of a compiled shader's properties the cache
// stores verbatim rather than re-deriving from its IR (DxvkShaderMetadata,
// narrowed to the fields this package's round-trip contract needs).
type Metadata struct {
	Stage        uint32
	InputMask    uint64
	OutputMask   uint64
	PushDataSize uint32
}

// PushDataBlock is one push-constant range a shader's layout reserves
// (spec.md §4.8 step 3).
type PushDataBlock struct {
	Offset, Size uint32
}

// Layout mirrors DxvkPipelineLayoutBuilder's serialized shape closely
// enough to round-trip through the cache.
type Layout struct {
	StageMask    uint32
	PushDataMask uint32
	PushData     []PushDataBlock
	BindingCount uint32
}

// Bindings/Linkage are the link-time fix-up inputs get_code applies
// (spec.md §4.8 step 5): descriptor-set-layout assignments and
// pipeline-state-dependent rewrites (flat-shading mask, GS input
// topology, dual-source blend, FS output swizzles, tessellation
// patch-constant locations).
type Bindings struct {
	SetBindings map[uint32]uint32
}

type Linkage struct {
	GSInputTopology      uint32
	DualSourceBlend      bool
	FSOutputSwizzle      [8]uint32
	TessPatchConstantLoc uint32
}

// Shader is one converted, cacheable shader (DxvkIrShader, narrowed to
// the cache's view of it: the IR blob plus the metadata/layout the
// cache persists alongside it).
type Shader struct {
	Name       string
	CreateInfo CreateInfo
	Metadata   Metadata
	Layout     Layout
	IR         []byte
}

// NewShader builds a Shader from the already-converted IR and its
// accompanying metadata/layout (the result of pipeline steps 1-4,
// which this package does not perform).
func NewShader(name string, info CreateInfo, metadata Metadata, layout Layout, ir []byte) *Shader {
	return &Shader{
		Name:       name,
		CreateInfo: info,
		Metadata:   metadata,
		Layout:     layout,
		IR:         append([]byte(nil), ir...),
	}
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
