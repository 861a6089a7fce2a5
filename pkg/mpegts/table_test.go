// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"testing"

	"github.com/q191201771/m2ts/pkg/aac"
	"github.com/q191201771/naza/pkg/assert"
)

func makeSection(version, sn, lsn uint8, body byte) ([]byte, PsiSectionHeader) {
	section := NewGenericSection(0x80, 1, version, sn, lsn, []byte{body}).Pack()
	h, _ := ParsePsiSectionHeader(section)
	return section, h
}

func TestTable_Aggregate(t *testing.T) {
	tbl := newTable(0x80, 1)
	assert.Equal(t, versionNone, tbl.LastVersion())
	assert.Equal(t, false, tbl.IsInit())

	s0, h0 := makeSection(0, 0, 2, 0xA)
	s1, h1 := makeSection(0, 1, 2, 0xB)
	s2, h2 := makeSection(0, 2, 2, 0xC)

	// 乱序到达，最后一个section到达时还缺section 1
	assert.Equal(t, TableStatusNone, tbl.pushAggregate(&h0, s0))
	assert.Equal(t, TableStatusNone, tbl.pushAggregate(&h2, s2))
	assert.Equal(t, TableStatusNone, tbl.pushAggregate(&h1, s1))
	assert.Equal(t, TableStatusFound, tbl.pushAggregate(&h2, s2))
	assert.Equal(t, uint8(0), tbl.LastVersion())
	assert.Equal(t, [][]byte{s0, s1, s2}, tbl.Sections)
	assert.Equal(t, TableStatusFound, tbl.Status)

	// 轮播
	for _, s := range []struct {
		h *PsiSectionHeader
		b []byte
	}{{&h0, s0}, {&h1, s1}} {
		assert.Equal(t, TableStatusNone, tbl.pushAggregate(s.h, s.b))
	}
	prev := tbl.Sections[0]
	assert.Equal(t, TableStatusRepeat, tbl.pushAggregate(&h2, s2))
	// 相同的section复用之前的内存块
	assert.Equal(t, true, &prev[0] == &tbl.Sections[0][0])

	// 版本号相同但是内容变了
	s1x, h1x := makeSection(0, 1, 2, 0xD)
	tbl.pushAggregate(&h0, s0)
	tbl.pushAggregate(&h1x, s1x)
	assert.Equal(t, TableStatusUpdate, tbl.pushAggregate(&h2, s2))

	// 版本变化，重新开始收集
	n0, nh0 := makeSection(1, 0, 1, 0xE)
	n1, nh1 := makeSection(1, 1, 1, 0xF)
	tbl.pushAggregate(&h0, s0)
	assert.Equal(t, TableStatusNone, tbl.pushAggregate(&nh0, n0))
	assert.Equal(t, TableStatusUpdate, tbl.pushAggregate(&nh1, n1))
	assert.Equal(t, uint8(1), tbl.LastVersion())
	assert.Equal(t, uint8(1), tbl.LastSectionNumber)
	assert.Equal(t, 2, len(tbl.Sections))

	// section_number大于last_section_number
	bad, bh := makeSection(2, 3, 1, 0x0)
	assert.Equal(t, TableStatusNone, tbl.pushAggregate(&bh, bad))
	assert.Equal(t, uint8(1), tbl.LastVersion())
}

func TestTable_Individual(t *testing.T) {
	tbl := newTable(0x80, 1)
	s0, h0 := makeSection(3, 0, 1, 0xA)
	s1, h1 := makeSection(3, 1, 1, 0xB)

	assert.Equal(t, TableStatusFound, tbl.pushIndividual(&h1, s1))
	assert.Equal(t, TableStatusFound, tbl.pushIndividual(&h0, s0))
	assert.Equal(t, TableStatusRepeat, tbl.pushIndividual(&h1, s1))

	s1x, h1x := makeSection(4, 1, 1, 0xB)
	assert.Equal(t, TableStatusUpdate, tbl.pushIndividual(&h1x, s1x))
	assert.Equal(t, uint8(4), tbl.LastVersion())

	tbl.reset()
	assert.Equal(t, false, tbl.IsInit())
	assert.Equal(t, TableStatusFound, tbl.pushIndividual(&h0, s0))
}

func TestTableEvent(t *testing.T) {
	assert.Equal(t, EventPatFound, tableEvent(EventPatFound, TableStatusFound))
	assert.Equal(t, EventPmtUpdate, tableEvent(EventPmtFound, TableStatusUpdate))
	assert.Equal(t, EventIntRepeat, tableEvent(EventIntFound, TableStatusRepeat))
	assert.Equal(t, "SDT_UPDATE", tableEvent(EventSdtFound, TableStatusUpdate).String())
}

func TestIsPcrJumpBackward(t *testing.T) {
	ms := uint64(27000)
	assert.Equal(t, false, isPcrJumpBackward(1000*ms, 1100*ms))
	assert.Equal(t, false, isPcrJumpBackward(1000*ms, 900*ms))
	assert.Equal(t, true, isPcrJumpBackward(1000*ms, 700*ms))
	// 回绕
	assert.Equal(t, false, isPcrJumpBackward(PcrMax-10*ms, 10*ms))
}

func TestFindSync(t *testing.T) {
	b := make([]byte, 3*TsPacketSize)
	b[10] = syncByte
	b[20] = syncByte
	b[20+TsPacketSize] = syncByte
	// 10后面188字节不是0x47
	assert.Equal(t, 20, findSync(b))

	// 数据不够188字节时，0x47即可
	assert.Equal(t, 2, findSync([]byte{0x0, 0x1, syncByte, 0x0}))
	assert.Equal(t, 3, findSync([]byte{0x0, 0x1, 0x2}))
}

func TestReframe_MpegVideo(t *testing.T) {
	var out captureOutput
	r := &mpegVideoReframer{}

	// sequence_header + picture_header(picture_coding_type=2)
	data := []byte{0x0, 0x0, 0x1, 0xB3, 0x1, 0x2, 0x0, 0x0, 0x1, 0x0, 0x0, 0x10, 0xFF, 0xFF}
	r.Reframe(&PesPacket{Data: data}, &out)
	assert.Equal(t, 1, len(out.aus))
	assert.Equal(t, PesFlagFrameP, out.aus[0].Flags)

	data[11] = 0x08
	r.Reframe(&PesPacket{Data: data}, &out)
	assert.Equal(t, PesFlagFrameI|PesFlagRap, out.aus[1].Flags)
}

func TestReframe_Hevc(t *testing.T) {
	var out captureOutput
	r := &hevcReframer{}

	// VPS + IDR_W_RADL
	r.Reframe(&PesPacket{Data: []byte{0x0, 0x0, 0x0, 0x1, 0x40, 0x1, 0xC, 0x0, 0x0, 0x1, 0x26, 0x1, 0xAF}}, &out)
	// TRAIL_R
	r.Reframe(&PesPacket{Data: []byte{0x0, 0x0, 0x0, 0x1, 0x2, 0x1, 0xD0}}, &out)
	assert.Equal(t, 2, len(out.aus))
	assert.Equal(t, PesFlagFrameI|PesFlagRap, out.aus[0].Flags)
	assert.Equal(t, uint32(0), out.aus[1].Flags)
}

func TestReframe_AdtsAcrossPes(t *testing.T) {
	var out captureOutput
	r := &adtsReframer{}

	ctx := aac.AscContext{AudioObjectType: 2, SamplingFrequencyIndex: 3, ChannelConfiguration: 1}
	frame := append(ctx.PackAdtsHeader(20), make([]byte, 20)...)
	stream := append(append([]byte(nil), frame...), frame...)

	// 第二帧被切成两半
	r.Reframe(&PesPacket{Data: stream[:40], Pts: 1000}, &out)
	assert.Equal(t, 1, len(out.aus))
	assert.Equal(t, 1, len(out.ascs))
	r.Reframe(&PesPacket{Data: stream[40:], Pts: 5000}, &out)
	assert.Equal(t, 2, len(out.aus))
	assert.Equal(t, 20, len(out.aus[1].Data))
	assert.Equal(t, 1, len(out.ascs))

	// 不是ADTS的数据原样输出
	r.Reset()
	r.Reframe(&PesPacket{Data: []byte{0x1, 0x2, 0x3, 0x4, 0x5, 0x6, 0x7, 0x8, 0x9}}, &out)
	assert.Equal(t, 3, len(out.aus))
	assert.Equal(t, 9, len(out.aus[2].Data))
}

type captureOutput struct {
	aus  []PesPacket
	ascs [][]byte
}

func (c *captureOutput) OnAccessUnit(pkt *PesPacket) {
	c.aus = append(c.aus, *pkt)
}

func (c *captureOutput) OnAacConfig(asc []byte, ascCtx aac.AscContext) {
	c.ascs = append(c.ascs, asc)
}
