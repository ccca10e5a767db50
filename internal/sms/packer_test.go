package sms

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/MimeLyc/seabridge/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloads(segs []Segment) []string {
	ret := make([]string, len(segs))
	for i, s := range segs {
		ret[i] = s.Payload()
	}
	return ret
}

func TestPack_ShortMessageSingleSegment(t *testing.T) {
	text := "Hello teacher, see you tomorrow at 3pm for the parent meeting."
	require.Equal(t, 62, len(text))

	segs, err := Pack(text, 160)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, text, segs[0].Text)
	assert.Equal(t, 1, segs[0].TotalCount)
	assert.NotContains(t, segs[0].Text, "(1/1)")
}

func TestPack_FiveHundredCharsGivesFourNumberedSegments(t *testing.T) {
	text := strings.Repeat("abcd ", 100)
	require.Equal(t, 500, len(text))

	first, err := Pack(text, 160)
	require.NoError(t, err)
	require.Len(t, first, 4)
	for i, s := range first {
		assert.True(t, strings.HasPrefix(s.Text, fmt.Sprintf("(%d/4) ", i+1)), s.Text)
		assert.LessOrEqual(t, utf8.RuneCountInString(s.Text), 160)
		assert.Equal(t, 4, s.TotalCount)
	}

	for i := 0; i < 5; i++ {
		again, err := Pack(text, 160)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestPack_NoWordDropped(t *testing.T) {
	text := "Dear parents, " + strings.Repeat("please remember the permission slip for Friday's museum visit. ", 12)

	segs, err := Pack(text, 160)
	require.NoError(t, err)
	require.Greater(t, len(segs), 1)
	for _, s := range segs {
		assert.LessOrEqual(t, utf8.RuneCountInString(s.Text), 160)
	}
	assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(payloads(segs), " ")))
}

func TestPack_OversizedWordIsCutAcrossSegments(t *testing.T) {
	long := strings.Repeat("x", 200)
	text := "link: " + long + " thanks"

	segs, err := Pack(text, 160)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(segs), 2)
	for _, s := range segs {
		assert.LessOrEqual(t, utf8.RuneCountInString(s.Text), 160)
	}

	joined := strings.Join(payloads(segs), "")
	assert.Equal(t, strings.ReplaceAll(text, " ", ""), strings.ReplaceAll(joined, " ", ""))
}

func TestPack_PrefixWidthGrowsWithTwoDigitCounts(t *testing.T) {
	text := strings.Repeat("word ", 400)

	segs, err := Pack(text, 160)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(segs), 10)

	last := segs[len(segs)-1]
	assert.True(t, strings.HasPrefix(last.Text, fmt.Sprintf("(%d/%d) ", len(segs), len(segs))))
	for _, s := range segs {
		assert.LessOrEqual(t, utf8.RuneCountInString(s.Text), 160)
	}
	assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(payloads(segs), " ")))
}

func TestPack_CountsRunesNotBytes(t *testing.T) {
	text := strings.Repeat("xin chào ", 30)

	segs, err := Pack(text, 160)
	require.NoError(t, err)
	for _, s := range segs {
		assert.LessOrEqual(t, utf8.RuneCountInString(s.Text), 160)
	}
	assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(payloads(segs), " ")))
}

func TestPack_EdgeCases(t *testing.T) {
	segs, err := Pack("   ", 160)
	require.NoError(t, err)
	assert.Empty(t, segs)

	segs, err = Pack("hi", 0)
	require.NoError(t, err)
	require.Len(t, segs, 1)

	_, err = Pack("hi", 5)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Validation))
}
