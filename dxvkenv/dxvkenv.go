// Package dxvkenv reads the environment variables spec.md §6
// prescribes by exact name: DXVK_SHADER_CACHE, DXVK_SHADER_CACHE_PATH,
// DXVK_FRAME_RATE, plus DXVK_LOG_LEVEL for the logging setup SPEC_FULL
// §7a adds. Each is read directly with os.Getenv rather than through a
// struct-tag config loader; see DESIGN.md's standard-library
// justification.
package dxvkenv

import (
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// ShaderCacheEnabled reports whether DXVK_SHADER_CACHE permits the
// shader cache to run. "0" disables it; any other value, including an
// unset variable, enables it (spec.md §6).
func ShaderCacheEnabled() bool {
	return os.Getenv("DXVK_SHADER_CACHE") != "0"
}

// ShaderCachePath returns an explicit DXVK_SHADER_CACHE_PATH override,
// or "" if unset, letting the caller fall back to
// shadercache.DefaultPaths.
func ShaderCachePath() string {
	return os.Getenv("DXVK_SHADER_CACHE_PATH")
}

// MaxFrameRate parses DXVK_FRAME_RATE as the latency limiter's forced
// frame rate cap. A missing or unparsable value returns 0, meaning
// uncapped.
func MaxFrameRate() float64 {
	v := os.Getenv("DXVK_FRAME_RATE")
	if v == "" {
		return 0
	}
	rate, err := strconv.ParseFloat(v, 64)
	if err != nil || rate < 0 {
		return 0
	}
	return rate
}

// LogLevel parses DXVK_LOG_LEVEL into a logrus level, following
// spec.md §7's err/warn/info/debug vocabulary. An unset or unrecognized
// value defaults to logrus.InfoLevel.
func LogLevel() logrus.Level {
	switch strings.ToLower(os.Getenv("DXVK_LOG_LEVEL")) {
	case "err", "error":
		return logrus.ErrorLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "debug":
		return logrus.DebugLevel
	case "trace":
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}
