// Package bytesize renders and parses byte counts for sweep summaries,
// journals, and configuration.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteSize is a size in bytes with a human-readable String form. Config
// files can spell it as a plain number or with a unit suffix ("512MiB",
// "1Gi", "100MB").
type ByteSize uint64

// Binary size constants
const (
	B   ByteSize = 1
	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

// Decimal size constants
const (
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB
)

// suffixes is ordered longest-first so "MiB" matches before "B".
var suffixes = []struct {
	name string
	mult ByteSize
}{
	{"kib", KiB}, {"mib", MiB}, {"gib", GiB}, {"tib", TiB},
	{"ki", KiB}, {"mi", MiB}, {"gi", GiB}, {"ti", TiB},
	{"kb", KB}, {"mb", MB}, {"gb", GB}, {"tb", TB},
	{"k", KB}, {"m", MB}, {"g", GB}, {"t", TB},
	{"b", B},
}

// Parse converts a human-readable size like "512MiB", "1Gi", "100MB", or
// "1048576" into a ByteSize. Binary suffixes multiply by 1024, decimal ones
// by 1000; matching is case-insensitive.
func Parse(s string) (ByteSize, error) {
	in := strings.TrimSpace(strings.ToLower(s))
	if in == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	mult := B
	num := in
	for _, suf := range suffixes {
		if strings.HasSuffix(in, suf.name) {
			mult = suf.mult
			num = strings.TrimSpace(strings.TrimSuffix(in, suf.name))
			break
		}
	}
	if num == "" {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}

	if strings.Contains(num, ".") {
		f, err := strconv.ParseFloat(num, 64)
		if err != nil || f < 0 {
			return 0, fmt.Errorf("invalid byte size %q", s)
		}
		return ByteSize(f * float64(mult)), nil
	}

	n, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}
	return ByteSize(n) * mult, nil
}

// UnmarshalText implements encoding.TextUnmarshaler so ByteSize fields
// decode directly from config files.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := Parse(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// String returns a human-readable representation of the byte size.
func (b ByteSize) String() string {
	switch {
	case b >= TiB:
		return fmt.Sprintf("%.2fTiB", float64(b)/float64(TiB))
	case b >= GiB:
		return fmt.Sprintf("%.2fGiB", float64(b)/float64(GiB))
	case b >= MiB:
		return fmt.Sprintf("%.2fMiB", float64(b)/float64(MiB))
	case b >= KiB:
		return fmt.Sprintf("%.2fKiB", float64(b)/float64(KiB))
	default:
		return fmt.Sprintf("%dB", uint64(b))
	}
}

// Uint64 returns the ByteSize as a uint64.
func (b ByteSize) Uint64() uint64 {
	return uint64(b)
}

// Delta is the difference between two free-space observations. It can go
// negative when other writers land data on the filesystem mid-sweep.
type Delta int64

// DeltaOf returns the change in free space from before to after.
func DeltaOf(before, after uint64) Delta {
	return Delta(int64(after) - int64(before))
}

// String renders the delta with a sign, so a summary line never claims
// space was freed when the filesystem actually grew fuller.
func (d Delta) String() string {
	if d < 0 {
		return "-" + ByteSize(-d).String()
	}
	return ByteSize(d).String()
}

// Freed returns the freed byte count, clamping concurrent-writer noise to zero.
func (d Delta) Freed() uint64 {
	if d < 0 {
		return 0
	}
	return uint64(d)
}
