package encoding

import (
	"fmt"
	"strconv"
	"strings"
)

// Strategy is a rate-control profile for the per-tile encoder.
type Strategy int

const (
	ConstQP Strategy = iota
	DefaultConstQP
	CBR
	VBR
	VBV
	None
	VBRCQ23
	VBRLookahead

	strategyCount
)

type strategyProfile struct {
	name         string
	needsBitrate bool
	flags        func(kbps int) []string
}

func withUnit(v int, unit string) string {
	return strconv.Itoa(v) + unit
}

// strategyProfiles maps each Strategy to its encoder flags. The array length
// pins the table to the enumeration.
var strategyProfiles = [strategyCount]strategyProfile{
	ConstQP: {name: "constqp", flags: func(int) []string {
		return []string{"-rc", "constqp", "-qp", "28"}
	}},
	DefaultConstQP: {name: "default_constqp", flags: func(int) []string {
		return []string{"-rc", "constqp", "-qp", "-1"}
	}},
	CBR: {name: "cbr", needsBitrate: true, flags: func(b int) []string {
		return []string{"-rc", "cbr", "-cbr", "1",
			"-b:v", withUnit(b, "k"), "-maxrate", withUnit(b, "k"), "-minrate", withUnit(b, "k"), "-bufsize", withUnit(2*b, "k")}
	}},
	VBR: {name: "vbr", needsBitrate: true, flags: func(b int) []string {
		return []string{"-rc", "vbr_hq", "-b:v", withUnit(b, "K"), "-cq", "28"}
	}},
	VBV: {name: "vbv", needsBitrate: true, flags: func(b int) []string {
		return []string{"-rc", "vbr", "-preset", "hq", "-b:v", withUnit(b, "K"), "-maxrate", withUnit(2*b, "K"), "-bufsize", withUnit(4*b, "K")}
	}},
	None: {name: "none", flags: func(int) []string {
		return nil
	}},
	VBRCQ23: {name: "vbr_cq23", needsBitrate: true, flags: func(b int) []string {
		return []string{"-rc", "vbr_hq", "-b:v", withUnit(b, "K"), "-bufsize", withUnit(4*b, "K"), "-cq", "23"}
	}},
	VBRLookahead: {name: "vbr_lookahead", needsBitrate: true, flags: func(b int) []string {
		return []string{"-rc", "vbr", "-b:v", withUnit(b, "K"), "-bufsize", withUnit(4*b, "K"), "-rc-lookahead", "32", "-no-scenecut", "1"}
	}},
}

// ParseStrategy returns the Strategy named by s (case-insensitive).
func ParseStrategy(s string) (Strategy, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, p := range strategyProfiles {
		if p.name == name {
			return Strategy(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedEncodingStrategy, s)
}

// Strategies lists every supported strategy in table order.
func Strategies() []Strategy {
	out := make([]Strategy, strategyCount)
	for i := range out {
		out[i] = Strategy(i)
	}
	return out
}

func (s Strategy) valid() bool {
	return s >= 0 && s < strategyCount
}

func (s Strategy) String() string {
	if !s.valid() {
		return "Strategy(" + strconv.Itoa(int(s)) + ")"
	}
	return strategyProfiles[s].name
}

// NeedsBitrate reports whether the strategy caps each tile's bitrate.
func (s Strategy) NeedsBitrate() bool {
	return s.valid() && strategyProfiles[s].needsBitrate
}

// Flags returns the encoder rate-control flags for a tile encoded at kbps.
func (s Strategy) Flags(kbps int) ([]string, error) {
	if !s.valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedEncodingStrategy, s)
	}
	p := strategyProfiles[s]
	if p.needsBitrate && kbps <= 0 {
		return nil, fmt.Errorf("%w: %s at %d kbps", ErrBitrateRequired, p.name, kbps)
	}
	return p.flags(kbps), nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedEncodingStrategy, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(b []byte) error {
	v, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
