// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts_test

import (
	"bytes"

	"github.com/q191201771/m2ts/pkg/mpegts"
)

// 测试用的TS流构造器，按PID维护continuity_counter
type tsBuilder struct {
	ccs map[uint16]uint8
	buf bytes.Buffer
}

func newTsBuilder() *tsBuilder {
	return &tsBuilder{
		ccs: make(map[uint16]uint8),
	}
}

func (b *tsBuilder) section(pid uint16, section []byte) []byte {
	cc := b.ccs[pid]
	out := mpegts.PacketizeSection(pid, &cc, section)
	b.ccs[pid] = cc
	b.buf.Write(out)
	return out
}

func (b *tsBuilder) pat(version uint8, programs ...mpegts.PatProgramElement) []byte {
	return b.section(mpegts.PidPat, mpegts.NewPatSection(1, version, programs).Pack())
}

func (b *tsBuilder) pmt(pmtPid, number uint16, version uint8, pcrPid uint16, elements ...mpegts.PmtProgramElement) []byte {
	return b.section(pmtPid, mpegts.NewPmtSection(number, version, pcrPid, nil, elements).Pack())
}

func (b *tsBuilder) frame(pid uint16, sid uint8, pts, dts uint64, key bool, raw []byte) []byte {
	f := mpegts.Frame{
		Pts: pts,
		Dts: dts,
		Cc:  b.ccs[pid] - 1,
		Pid: pid,
		Sid: sid,
		Key: key,
		Raw: raw,
	}
	out := f.Pack()
	b.ccs[pid] = f.Cc + 1
	b.buf.Write(out)
	return out
}

func (b *tsBuilder) packet(pkt *mpegts.TsPacket) []byte {
	out := make([]byte, mpegts.TsPacketSize)
	if err := pkt.Pack(out); err != nil {
		panic(err)
	}
	b.buf.Write(out)
	return out
}

func (b *tsBuilder) null() []byte {
	out := make([]byte, mpegts.TsPacketSize)
	for i := range out {
		out[i] = 0xFF
	}
	out[0] = 0x47
	out[1] = 0x1F
	out[2] = 0xFF
	out[3] = 0x10
	b.buf.Write(out)
	return out
}

func (b *tsBuilder) bytes() []byte {
	return b.buf.Bytes()
}

// 打包出来的section，修改后用于构造异常输入
func patSection(version uint8, programs ...mpegts.PatProgramElement) []byte {
	return mpegts.NewPatSection(1, version, programs).Pack()
}

// ---------------------------------------------------------------------------------------------------------------------

type eventRecorder struct {
	types []mpegts.EventType
	pes   []mpegts.PesPacket
	pcrs  []mpegts.PcrPacket
	pids  []uint16
	ascs  [][]byte
	secs  []mpegts.SectionEvent
}

func (r *eventRecorder) onEvent(evt *mpegts.Event) {
	r.types = append(r.types, evt.Type)
	r.pids = append(r.pids, evt.Pid)
	switch evt.Type {
	case mpegts.EventPesPck, mpegts.EventSlPck:
		p := *evt.Pes
		p.Data = append([]byte(nil), p.Data...)
		// Stream属于各自的demuxer，比较事件内容时不关心
		p.Stream = nil
		r.pes = append(r.pes, p)
	case mpegts.EventPesPcr:
		r.pcrs = append(r.pcrs, *evt.Pcr)
	case mpegts.EventAacCfg:
		r.ascs = append(r.ascs, append([]byte(nil), evt.AacConfig.Asc...))
	case mpegts.EventDvbGeneral:
		se := *evt.Section
		se.Data = append([]byte(nil), se.Data...)
		r.secs = append(r.secs, se)
	}
}

func (r *eventRecorder) count(typ mpegts.EventType) int {
	n := 0
	for _, t := range r.types {
		if t == typ {
			n++
		}
	}
	return n
}

func (r *eventRecorder) countPid(pid uint16) int {
	n := 0
	for _, p := range r.pids {
		if p == pid {
			n++
		}
	}
	return n
}

// annexb格式的IDR帧，slice_type为7(I)
func avcIdr(n int) []byte {
	b := bytes.Repeat([]byte{0xAB}, n)
	copy(b, []byte{0x0, 0x0, 0x0, 0x1, 0x65, 0x88})
	return b
}

// annexb格式的非IDR帧，slice_type为5(P)
func avcP(n int) []byte {
	b := bytes.Repeat([]byte{0xAB}, n)
	// first_mb_in_slice=0 '1', slice_type=5 '00110'
	copy(b, []byte{0x0, 0x0, 0x0, 0x1, 0x41, 0x98})
	return b
}
