// Package decode turns raw wire lines from the acquisition device into
// validated, range-clamped frames. All functions are pure: decoding the same
// line twice yields the same result and touches no shared state.
package decode

import (
	"strconv"
	"strings"

	"github.com/cardialab/ekgraph/schema"
	"github.com/pkg/errors"
)

var (
	// ErrMalformedToken marks a line containing a token that does not
	// parse as an integer. The whole frame is discarded.
	ErrMalformedToken = errors.New("malformed token")

	// ErrChannelCount marks a line whose token count does not match the
	// configured channel count. The whole frame is discarded.
	ErrChannelCount = errors.New("channel count mismatch")

	// ErrEmptyBatch marks a batch line with no values at all.
	ErrEmptyBatch = errors.New("empty batch")
)

// Clamp saturates v to the 12-bit ADC range. Out-of-range values come from
// occasional garbled serial bytes; they are clamped, never rejected.
func Clamp(v int) int {
	if v < schema.ValueMin {
		return schema.ValueMin
	}
	if v > schema.ValueMax {
		return schema.ValueMax
	}
	return v
}

// IsComment reports whether line carries no sample data: blank lines and
// device status lines starting with '#'. These are skipped upstream without
// counting as errors.
func IsComment(line string) bool {
	line = strings.TrimSpace(line)
	return line == "" || strings.HasPrefix(line, "#")
}

// DecodeHexFrame parses a fixed multi-channel line of the form
// "800,801,...,80B": comma-separated base-16 tokens without 0x prefixes,
// exactly channels of them. No partial frames: any bad token or a count
// mismatch rejects the whole line.
func DecodeHexFrame(line string, channels int) (schema.Frame, error) {
	tokens := strings.Split(strings.TrimSpace(line), ",")
	if len(tokens) != channels {
		return nil, errors.Wrapf(ErrChannelCount, "got %d tokens, want %d", len(tokens), channels)
	}

	frame := make(schema.Frame, len(tokens))
	for i, tok := range tokens {
		v, err := strconv.ParseInt(strings.TrimSpace(tok), 16, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedToken, "token %d %q", i, tok)
		}
		frame[i] = Clamp(int(v))
	}
	return frame, nil
}

// DecodeDecimalPair parses the legacy dual-channel shape "[a0,a1]": a
// bracketed pair of decimal (not hex) integers.
func DecodeDecimalPair(line string) (schema.Frame, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "]") {
		return nil, errors.Wrap(ErrMalformedToken, "missing brackets")
	}

	tokens := strings.Split(line[1:len(line)-1], ",")
	if len(tokens) != 2 {
		return nil, errors.Wrapf(ErrChannelCount, "got %d tokens, want 2", len(tokens))
	}

	frame := make(schema.Frame, 2)
	for i, tok := range tokens {
		v, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedToken, "token %d %q", i, tok)
		}
		frame[i] = Clamp(v)
	}
	return frame, nil
}

// DecodeHexBatch parses a single-channel batch line: a variable-length
// comma-separated hex list, one batch per 100 ms at up to ~860 samples/sec.
// Empty tokens (trailing commas) are skipped; a batch with no values at all
// is rejected.
func DecodeHexBatch(line string) (schema.Frame, error) {
	tokens := strings.Split(strings.TrimSpace(line), ",")

	frame := make(schema.Frame, 0, len(tokens))
	for i, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		v, err := strconv.ParseInt(tok, 16, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedToken, "token %d %q", i, tok)
		}
		frame = append(frame, Clamp(int(v)))
	}

	if len(frame) == 0 {
		return nil, ErrEmptyBatch
	}
	return frame, nil
}
