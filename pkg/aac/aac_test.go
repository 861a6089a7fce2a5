// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package aac_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/q191201771/m2ts/pkg/aac"
	"github.com/q191201771/m2ts/pkg/base"
	"github.com/q191201771/naza/pkg/assert"
)

func TestAscContext(t *testing.T) {
	ctx, err := aac.NewAscContext([]byte{0x12, 0x10})
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(2), ctx.AudioObjectType)
	assert.Equal(t, uint8(aac.AscSamplingFrequencyIndex44100), ctx.SamplingFrequencyIndex)
	assert.Equal(t, uint8(2), ctx.ChannelConfiguration)
	assert.Equal(t, []byte{0x12, 0x10}, ctx.Pack())

	sr, err := ctx.GetSamplingFrequency()
	assert.Equal(t, nil, err)
	assert.Equal(t, 44100, sr)

	_, err = aac.NewAscContext([]byte{0x12})
	assert.Equal(t, true, errors.Is(err, base.ErrShortBuffer))

	ctx.SamplingFrequencyIndex = 15
	_, err = ctx.GetSamplingFrequency()
	assert.Equal(t, true, errors.Is(err, base.ErrSamplingFrequencyIndex))
}

func TestAdtsHeader(t *testing.T) {
	ascCtx := aac.AscContext{AudioObjectType: 2, SamplingFrequencyIndex: 3, ChannelConfiguration: 1}
	h := ascCtx.PackAdtsHeader(100)
	assert.Equal(t, aac.AdtsHeaderLength, len(h))
	assert.Equal(t, []byte{0xFF, 0xF1, 0x4C, 0x40, 0x0D, 0x7F, 0xFC}, h)

	ctx, err := aac.NewAdtsHeaderContext(h)
	assert.Equal(t, nil, err)
	assert.Equal(t, ascCtx, ctx.AscCtx)
	assert.Equal(t, uint16(107), ctx.AdtsLength)
	assert.Equal(t, uint8(1), ctx.ProtectionAbsent)
	assert.Equal(t, aac.AdtsHeaderLength, ctx.HeaderLength())

	asc, err := aac.MakeAscWithAdtsHeader(h)
	assert.Equal(t, nil, err)
	assert.Equal(t, ascCtx.Pack(), asc)

	_, err = aac.NewAdtsHeaderContext([]byte{0xFF, 0xE1, 0x4C, 0x40, 0x0D, 0x7F, 0xFC})
	assert.Equal(t, true, errors.Is(err, base.ErrAdtsSyncword))
	_, err = aac.NewAdtsHeaderContext(h[:5])
	assert.Equal(t, true, errors.Is(err, base.ErrShortBuffer))

	// 带CRC的头，aac_frame_length小于9
	withCrc := append([]byte(nil), h...)
	withCrc[1] &= 0xFE
	withCrc[3], withCrc[4], withCrc[5] = 0x40, 0x01, 0x1F
	_, err = aac.NewAdtsHeaderContext(withCrc)
	assert.Equal(t, true, errors.Is(err, base.ErrAac))
}

func TestIterateAdtsFrames(t *testing.T) {
	ascCtx := aac.AscContext{AudioObjectType: 2, SamplingFrequencyIndex: 4, ChannelConfiguration: 2}
	var b []byte
	for _, n := range []int{10, 20, 30} {
		b = append(b, ascCtx.PackAdtsHeader(n)...)
		b = append(b, bytes.Repeat([]byte{uint8(n)}, n)...)
	}

	var frames [][]byte
	consumed, err := aac.IterateAdtsFrames(b, func(ctx *aac.AdtsHeaderContext, frame []byte) {
		assert.Equal(t, ascCtx, ctx.AscCtx)
		frames = append(frames, append([]byte(nil), frame...))
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, len(b), consumed)
	assert.Equal(t, 3, len(frames))
	assert.Equal(t, bytes.Repeat([]byte{20}, 20), frames[1])

	// 最后一帧不完整
	frames = nil
	consumed, err = aac.IterateAdtsFrames(b[:len(b)-1], func(ctx *aac.AdtsHeaderContext, frame []byte) {
		frames = append(frames, frame)
	})
	assert.Equal(t, true, errors.Is(err, base.ErrShortBuffer))
	assert.Equal(t, 17+27, consumed)
	assert.Equal(t, 2, len(frames))

	// 头都不完整时不报错
	consumed, err = aac.IterateAdtsFrames(b[:3], func(ctx *aac.AdtsHeaderContext, frame []byte) {})
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, consumed)
}
