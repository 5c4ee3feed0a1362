package shadercache

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.ErrorLevel)
	return logrus.NewEntry(l)
}

func waitDrained(t *testing.T, c *Cache) {
	t.Helper()
	// The writer batches asynchronously; give it a moment to flush
	// before asserting on-disk visibility.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		n := len(c.queue)
		c.mu.Unlock()
		if n == 0 {
			time.Sleep(20 * time.Millisecond)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCacheMissOnEmptyCache(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	info := CreateInfo{Options: 0, FlatShadingInputs: 0x3}
	if s := c.Lookup("s1", info); s != nil {
		t.Fatal("expected miss on empty cache")
	}
}

func TestCacheAddThenLookupRoundTrips(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	info := CreateInfo{Options: 7, FlatShadingInputs: 0x3}
	metadata := Metadata{Stage: 1, InputMask: 0xff, OutputMask: 0x1, PushDataSize: 16}
	layout := Layout{
		StageMask:    1,
		PushDataMask: 1,
		PushData:     []PushDataBlock{{Offset: 0, Size: 16}},
		BindingCount: 3,
	}
	ir := []byte{1, 2, 3, 4, 5}
	shader := NewShader("s1", info, metadata, layout, ir)

	c.Add(shader)
	waitDrained(t, c)

	got := c.Lookup("s1", info)
	if got == nil {
		t.Fatal("expected hit after add drains")
	}
	if got.Metadata.Stage != metadata.Stage {
		t.Fatalf("metadata.Stage = %d, want %d", got.Metadata.Stage, metadata.Stage)
	}
	if got.Metadata != metadata {
		t.Fatalf("metadata = %+v, want %+v", got.Metadata, metadata)
	}
	if got.Layout.BindingCount != layout.BindingCount {
		t.Fatalf("layout.BindingCount = %d, want %d", got.Layout.BindingCount, layout.BindingCount)
	}
	if !bytes.Equal(got.IR, ir) {
		t.Fatalf("IR = %v, want %v", got.IR, ir)
	}
}

func TestCacheVisibleAcrossSeparateHandles(t *testing.T) {
	dir := t.TempDir()
	c1, err := Open(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	info := CreateInfo{Options: 42}
	shader := NewShader("s2", info, Metadata{Stage: 2}, Layout{}, []byte{9, 9})
	c1.Add(shader)
	waitDrained(t, c1)
	if err := c1.Close(); err != nil {
		t.Fatal(err)
	}

	c2, err := Open(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer c2.Close()

	got := c2.Lookup("s2", info)
	if got == nil {
		t.Fatal("expected a second cache handle over the same directory to observe the entry")
	}
	if got.Metadata.Stage != 2 {
		t.Fatalf("metadata.Stage = %d, want 2", got.Metadata.Stage)
	}
}

func TestCacheGetCodeDeterministic(t *testing.T) {
	s := NewShader("s3", CreateInfo{}, Metadata{}, Layout{}, []byte{1, 2, 3})
	bindings := Bindings{SetBindings: map[uint32]uint32{0: 4, 1: 5}}
	linkage := Linkage{GSInputTopology: 1}

	a := s.GetCode(bindings, linkage)
	b := s.GetCode(bindings, linkage)
	if !bytes.Equal(a, b) {
		t.Fatal("GetCode must be deterministic for identical inputs")
	}

	linkage.DualSourceBlend = true
	c := s.GetCode(bindings, linkage)
	if bytes.Equal(a, c) {
		t.Fatal("GetCode must change when linkage changes")
	}
}

func TestDefaultPathsHonorsShaderCachePathEnv(t *testing.T) {
	t.Setenv("DXVK_SHADER_CACHE_PATH", "/tmp/whatever-cache-dir")
	if got := DefaultPaths(); got != "/tmp/whatever-cache-dir" {
		t.Fatalf("DefaultPaths() = %q, want explicit override", got)
	}
}

func TestExecutableNameIsStableSixteenHexDigits(t *testing.T) {
	a := ExecutableName("/usr/bin/game/game.exe")
	b := ExecutableName("/usr/bin/game/game.exe")
	if a != b {
		t.Fatal("ExecutableName must be deterministic for the same path")
	}
	if len(a) != 16 {
		t.Fatalf("ExecutableName() = %q, want 16 hex digits", a)
	}
	if c := ExecutableName("/opt/other/game.exe"); c == a {
		t.Fatal("ExecutableName should differ for a different path")
	}
}

func TestOpenNamesFilesAfterExecutableHash(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if !strings.HasSuffix(c.lutPath, ".dxvk.lut") || !strings.HasSuffix(c.binPath, ".dxvk.bin") {
		t.Fatalf("cache files %q / %q do not follow the \"${hash16}.dxvk.{lut,bin}\" naming", c.lutPath, c.binPath)
	}
}
