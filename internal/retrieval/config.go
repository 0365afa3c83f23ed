package retrieval

import (
	"os"
	"strconv"

	"github.com/54b3r/priorart-go/internal/lexical"
	"github.com/54b3r/priorart-go/internal/vectorindex"
)

const (
	// DefaultTopK is the result count when a caller does not ask for one.
	DefaultTopK = 5
	// MaxTopK caps caller-requested result counts.
	MaxTopK = 50
	// defaultSampleSize is how many store records the sample fallback returns.
	defaultSampleSize = 3
)

// Config holds retrieval tuning parameters.
type Config struct {
	// TopK is the default result count. Defaults to DefaultTopK.
	TopK int
	// ScanLimit bounds how many records lexical search inspects.
	ScanLimit int
	// DistanceScale is the divisor in max(0, 1 - distance/scale). It depends
	// on the embedding model's vector norms; 2 suits unit-length vectors.
	DistanceScale float64
	// SampleSize is how many store records the sample fallback returns.
	// Values above 4 would produce non-positive synthetic scores.
	SampleSize int
}

// ConfigFromEnv reads RETRIEVAL_TOP_K, RETRIEVAL_SCAN_LIMIT and
// RETRIEVAL_DISTANCE_SCALE. Unset or invalid values fall back to defaults.
func ConfigFromEnv() Config {
	return Config{
		TopK:          getEnvInt("RETRIEVAL_TOP_K", DefaultTopK),
		ScanLimit:     getEnvInt("RETRIEVAL_SCAN_LIMIT", lexical.DefaultScanLimit),
		DistanceScale: getEnvFloat("RETRIEVAL_DISTANCE_SCALE", vectorindex.DefaultDistanceScale),
	}
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	c.TopK = min(c.TopK, MaxTopK)
	if c.ScanLimit <= 0 {
		c.ScanLimit = lexical.DefaultScanLimit
	}
	if c.DistanceScale <= 0 {
		c.DistanceScale = vectorindex.DefaultDistanceScale
	}
	if c.SampleSize <= 0 || c.SampleSize > 4 {
		c.SampleSize = defaultSampleSize
	}
	return c
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}
