package decode

import (
	"strconv"
	"strings"

	"github.com/cardialab/ekgraph/schema"
	"github.com/pkg/errors"
)

// DecodeBracketGroups parses the diagnostic wire shape
// "[d0,...,d11],[d0,...,d11],...": multiple bracket groups per message, each
// a decimal sample set for all channels. This shape is consumed by the
// log-only inspection server; it never feeds the rolling buffers.
func DecodeBracketGroups(msg string, channels int) ([]schema.Frame, error) {
	msg = strings.TrimSpace(msg)

	var groups []schema.Frame
	for len(msg) > 0 {
		open := strings.IndexByte(msg, '[')
		if open < 0 {
			break
		}
		close_ := strings.IndexByte(msg[open:], ']')
		if close_ < 0 {
			return nil, errors.Wrap(ErrMalformedToken, "unterminated group")
		}

		inner := msg[open+1 : open+close_]
		msg = msg[open+close_+1:]

		tokens := strings.Split(inner, ",")
		if len(tokens) != channels {
			return nil, errors.Wrapf(ErrChannelCount, "group has %d tokens, want %d", len(tokens), channels)
		}

		frame := make(schema.Frame, len(tokens))
		for i, tok := range tokens {
			v, err := strconv.Atoi(strings.TrimSpace(tok))
			if err != nil {
				return nil, errors.Wrapf(ErrMalformedToken, "token %d %q", i, tok)
			}
			frame[i] = Clamp(v)
		}
		groups = append(groups, frame)
	}

	if len(groups) == 0 {
		return nil, errors.Wrap(ErrMalformedToken, "no bracket groups")
	}
	return groups, nil
}

// GroupStats summarizes bracket groups for the diagnostic log: value range
// and mean over (at most) the first few sets, mirroring what an operator
// wants to eyeball when checking lead placement.
type GroupStats struct {
	Sets     int
	Channels int
	Min      int
	Max      int
	Avg      float64
}

func SummarizeGroups(groups []schema.Frame, sampleSets int) GroupStats {
	stats := GroupStats{
		Sets: len(groups),
		Min:  schema.ValueMax,
		Max:  schema.ValueMin,
	}
	if len(groups) == 0 {
		stats.Min = 0
		return stats
	}
	stats.Channels = len(groups[0])

	n := len(groups)
	if sampleSets > 0 && sampleSets < n {
		n = sampleSets
	}

	sum, count := 0, 0
	for _, g := range groups[:n] {
		for _, v := range g {
			if v < stats.Min {
				stats.Min = v
			}
			if v > stats.Max {
				stats.Max = v
			}
			sum += v
			count++
		}
	}
	if count > 0 {
		stats.Avg = float64(sum) / float64(count)
	}
	return stats
}
