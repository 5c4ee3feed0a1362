package dxvkenv

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestShaderCacheEnabledByDefault(t *testing.T) {
	t.Setenv("DXVK_SHADER_CACHE", "")
	if !ShaderCacheEnabled() {
		t.Fatal("an unset DXVK_SHADER_CACHE must leave the cache enabled")
	}
}

func TestShaderCacheDisabledByZero(t *testing.T) {
	t.Setenv("DXVK_SHADER_CACHE", "0")
	if ShaderCacheEnabled() {
		t.Fatal("DXVK_SHADER_CACHE=0 must disable the cache")
	}
}

func TestMaxFrameRateParsesValue(t *testing.T) {
	t.Setenv("DXVK_FRAME_RATE", "144")
	if got := MaxFrameRate(); got != 144 {
		t.Fatalf("MaxFrameRate() = %v, want 144", got)
	}
}

func TestMaxFrameRateDefaultsToUncapped(t *testing.T) {
	t.Setenv("DXVK_FRAME_RATE", "")
	if got := MaxFrameRate(); got != 0 {
		t.Fatalf("MaxFrameRate() = %v, want 0", got)
	}
}

func TestMaxFrameRateIgnoresGarbage(t *testing.T) {
	t.Setenv("DXVK_FRAME_RATE", "not-a-number")
	if got := MaxFrameRate(); got != 0 {
		t.Fatalf("MaxFrameRate() = %v, want 0 on parse failure", got)
	}
}

func TestLogLevelDefaultsToInfo(t *testing.T) {
	t.Setenv("DXVK_LOG_LEVEL", "")
	if got := LogLevel(); got != logrus.InfoLevel {
		t.Fatalf("LogLevel() = %v, want Info", got)
	}
}

func TestLogLevelParsesKnownNames(t *testing.T) {
	t.Setenv("DXVK_LOG_LEVEL", "debug")
	if got := LogLevel(); got != logrus.DebugLevel {
		t.Fatalf("LogLevel() = %v, want Debug", got)
	}
}
