package decode

import (
	"testing"

	"github.com/cardialab/ekgraph/schema"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	for _, tc := range []struct {
		in, want int
	}{
		{-500, 0},
		{-1, 0},
		{0, 0},
		{2048, 2048},
		{4095, 4095},
		{4096, 4095},
		{9000, 4095},
	} {
		require.Equal(t, tc.want, Clamp(tc.in))
		require.Equal(t, Clamp(tc.in), Clamp(Clamp(tc.in)), "clamp must be idempotent")
	}
}

func TestIsComment(t *testing.T) {
	require.True(t, IsComment(""))
	require.True(t, IsComment("   "))
	require.True(t, IsComment("# sampling at 860 SPS"))
	require.True(t, IsComment("  # status"))
	require.False(t, IsComment("800,801"))
}

func TestDecodeHexFrame(t *testing.T) {
	frame, err := DecodeHexFrame("800,801,802,803,804,805,806,807,808,809,80A,80B", 12)
	require.NoError(t, err)
	require.Equal(t, schema.Frame{
		2048, 2049, 2050, 2051, 2052, 2053,
		2054, 2055, 2056, 2057, 2058, 2059,
	}, frame)
}

func TestDecodeHexFrameLowercase(t *testing.T) {
	frame, err := DecodeHexFrame("fff,0", 2)
	require.NoError(t, err)
	require.Equal(t, schema.Frame{4095, 0}, frame)
}

func TestDecodeHexFrameClamps(t *testing.T) {
	// 2000 hex = 8192, beyond the 12-bit range
	frame, err := DecodeHexFrame("2000,0,1,2,3,4,5,6,7,8,9,A", 12)
	require.NoError(t, err)
	require.Equal(t, 4095, frame[0])
}

func TestDecodeHexFrameChannelCount(t *testing.T) {
	_, err := DecodeHexFrame("800,801,802", 12)
	require.Error(t, err)
	require.ErrorIs(t, errors.Cause(err), ErrChannelCount)
}

func TestDecodeHexFrameMalformedToken(t *testing.T) {
	frame, err := DecodeHexFrame("1,2,xyz,4,5,6,7,8,9,10,11,12", 12)
	require.Error(t, err)
	require.ErrorIs(t, errors.Cause(err), ErrMalformedToken)
	require.Nil(t, frame, "no partial frame on malformed input")
}

func TestDecodeDecimalPair(t *testing.T) {
	frame, err := DecodeDecimalPair("[1024,3000]")
	require.NoError(t, err)
	require.Equal(t, schema.Frame{1024, 3000}, frame)
}

func TestDecodeDecimalPairClamps(t *testing.T) {
	frame, err := DecodeDecimalPair("[-5,5000]")
	require.NoError(t, err)
	require.Equal(t, schema.Frame{0, 4095}, frame)
}

func TestDecodeDecimalPairRejects(t *testing.T) {
	_, err := DecodeDecimalPair("1024,3000")
	require.ErrorIs(t, errors.Cause(err), ErrMalformedToken)

	_, err = DecodeDecimalPair("[1024]")
	require.ErrorIs(t, errors.Cause(err), ErrChannelCount)

	_, err = DecodeDecimalPair("[1024,3000,12]")
	require.ErrorIs(t, errors.Cause(err), ErrChannelCount)

	_, err = DecodeDecimalPair("[10,abc]")
	require.ErrorIs(t, errors.Cause(err), ErrMalformedToken)
}

func TestDecodeHexBatch(t *testing.T) {
	frame, err := DecodeHexBatch("800,801,802,")
	require.NoError(t, err)
	require.Equal(t, schema.Frame{2048, 2049, 2050}, frame)
}

func TestDecodeHexBatchSingle(t *testing.T) {
	frame, err := DecodeHexBatch("FFF")
	require.NoError(t, err)
	require.Equal(t, schema.Frame{4095}, frame)
}

func TestDecodeHexBatchRejects(t *testing.T) {
	_, err := DecodeHexBatch("800,nope,802")
	require.ErrorIs(t, errors.Cause(err), ErrMalformedToken)

	_, err = DecodeHexBatch(",,,")
	require.ErrorIs(t, errors.Cause(err), ErrEmptyBatch)
}

func TestDecodeBracketGroups(t *testing.T) {
	groups, err := DecodeBracketGroups("[1,2,3,4],[5,6,7,8]", 4)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Equal(t, schema.Frame{1, 2, 3, 4}, groups[0])
	require.Equal(t, schema.Frame{5, 6, 7, 8}, groups[1])
}

func TestDecodeBracketGroupsChannelCount(t *testing.T) {
	_, err := DecodeBracketGroups("[1,2,3]", 4)
	require.ErrorIs(t, errors.Cause(err), ErrChannelCount)
}

func TestSummarizeGroups(t *testing.T) {
	groups := []schema.Frame{
		{100, 200},
		{300, 400},
		{4095, 0},
	}
	stats := SummarizeGroups(groups, 2)
	require.Equal(t, 3, stats.Sets)
	require.Equal(t, 2, stats.Channels)
	require.Equal(t, 100, stats.Min)
	require.Equal(t, 400, stats.Max)
	require.InDelta(t, 250.0, stats.Avg, 1e-9)
}
