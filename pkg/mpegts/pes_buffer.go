// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"github.com/q191201771/m2ts/pkg/aac"
)

// PesBuffer 一个PID上的PES重组
//
// 声明了PES_packet_length时收满即输出，否则等到下一个payload_unit_start时输出
type PesBuffer struct {
	d      *Demuxer
	stream *Stream

	mode     FramingMode
	reframer Reframer

	cc       int8
	buf      []byte
	declared int // PES_packet_length + 6，0表示长度不限
	waitPusi bool
	rap      bool

	// 最近一次PES头中的时间戳，没有时间戳的PES沿用
	pts uint64
	dts uint64
}

func newPesBuffer(d *Demuxer, s *Stream, mode FramingMode, reframer Reframer) *PesBuffer {
	return &PesBuffer{
		d:        d,
		stream:   s,
		mode:     mode,
		reframer: reframer,
		cc:       -1,
	}
}

func (b *PesBuffer) process(pkt *TsPacket) {
	if b.mode == FramingModeSkip {
		return
	}
	if pkt.Header.Err == 1 {
		b.drop()
		return
	}
	if pkt.Header.Adaptation&AdaptationFieldControlNo == 0 {
		return
	}

	pusi := pkt.Header.PayloadUnitStart == 1
	cc := int8(pkt.Header.Cc)
	if b.cc >= 0 {
		if cc == b.cc {
			// 有些复用器会在带PCR的PES起始packet上重复cc
			if !pusi || pkt.Header.Adaptation != AdaptationFieldControlFollowed {
				b.d.stats.Duplicates.Increment()
				return
			}
		} else if cc != (b.cc+1)&0x0F && !pkt.discontinuity() {
			b.d.stats.CcErrors.Increment()
			b.d.debugf("pes cc error. pid=%d, expect=%d, got=%d", b.stream.Pid, (b.cc+1)&0x0F, cc)
			b.drop()
		}
	}
	b.cc = cc

	if pusi {
		b.flush(true)
		// 回调中可能切换成了Skip
		if b.mode == FramingModeSkip {
			return
		}
		b.waitPusi = false
		b.rap = pkt.randomAccess()
		b.buf = append(b.buf[:0], pkt.Payload...)
		b.declared = 0
	} else {
		if b.waitPusi || len(b.buf) == 0 {
			return
		}
		b.buf = append(b.buf, pkt.Payload...)
	}

	if b.declared == 0 && len(b.buf) >= pesStartCodeLength {
		if l := int(b.buf[4])<<8 | int(b.buf[5]); l != 0 {
			b.declared = pesStartCodeLength + l
		}
	}
	if b.declared != 0 && len(b.buf) >= b.declared {
		b.buf = b.buf[:b.declared]
		b.flush(false)
		return
	}
	if len(b.buf) > b.d.option.MaxPesSize {
		b.d.stats.DroppedPes.Increment()
		b.d.debugf("pes too large. pid=%d, size=%d", b.stream.Pid, len(b.buf))
		b.drop()
	}
}

// flush 输出当前缓存的PES
//
// @param interrupted: 被新的payload_unit_start打断，声明了长度但没有收满的PES被丢弃
func (b *PesBuffer) flush(interrupted bool) {
	if len(b.buf) == 0 {
		return
	}
	defer func() {
		b.buf = b.buf[:0]
		b.declared = 0
	}()

	if interrupted && b.declared != 0 && len(b.buf) < b.declared {
		b.d.stats.DroppedPes.Increment()
		b.d.debugf("pes length mismatch. pid=%d, declared=%d, got=%d", b.stream.Pid, b.declared, len(b.buf))
		return
	}

	h, err := ParsePesHeader(b.buf)
	if err != nil {
		b.d.stats.DroppedPes.Increment()
		b.d.debugf("parse pes header failed. pid=%d, err=%+v", b.stream.Pid, err)
		return
	}
	b.d.stats.PesPackets.Increment()

	pkt := PesPacket{
		Data:     b.buf[h.HeaderLength:],
		StreamId: h.StreamId,
		Stream:   b.stream,
		Flags:    PesFlagAuStart | PesFlagAuEnd,
	}
	if h.HasPts() {
		b.pts = h.Pts
		b.dts = h.Dts
		pkt.Flags |= PesFlagHasPts
		if h.HasDts() {
			pkt.Flags |= PesFlagHasDts
		}
		if p := b.stream.Program; p != nil && !p.HasFirstDts {
			p.FirstDts = b.dts
			p.HasFirstDts = true
		}
	}
	pkt.Pts = b.pts
	pkt.Dts = b.dts
	if b.rap {
		pkt.Flags |= PesFlagRap
	}

	switch {
	case b.mode == FramingModeRaw:
		b.OnAccessUnit(&pkt)
	case b.stream.Flags&StreamFlagSl != 0:
		b.d.dispatch(&Event{Type: EventSlPck, Pid: b.stream.Pid, Stream: b.stream, Pes: &pkt})
	case b.reframer != nil:
		b.reframer.Reframe(&pkt, b)
	default:
		b.OnAccessUnit(&pkt)
	}
}

// OnAccessUnit 输出一个PES_PCK
func (b *PesBuffer) OnAccessUnit(pkt *PesPacket) {
	b.d.dispatch(&Event{Type: EventPesPck, Pid: b.stream.Pid, Stream: b.stream, Pes: pkt})
}

// OnAacConfig 输出一个AAC_CFG
func (b *PesBuffer) OnAacConfig(asc []byte, ascCtx aac.AscContext) {
	b.d.dispatch(&Event{
		Type:   EventAacCfg,
		Pid:    b.stream.Pid,
		Stream: b.stream,
		AacConfig: &AacConfigEvent{
			Asc:    asc,
			AscCtx: ascCtx,
			Stream: b.stream,
		},
	})
}

func (b *PesBuffer) setMode(mode FramingMode) {
	if mode == b.mode {
		return
	}
	b.mode = mode
	b.reset()
	if mode == FramingModeSkip {
		b.buf = nil
	}
}

func (b *PesBuffer) drop() {
	b.buf = b.buf[:0]
	b.declared = 0
	b.waitPusi = true
}

func (b *PesBuffer) reset() {
	b.cc = -1
	b.buf = b.buf[:0]
	b.declared = 0
	b.waitPusi = false
	b.rap = false
	if b.reframer != nil {
		b.reframer.Reset()
	}
}
