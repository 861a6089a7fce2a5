// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"github.com/q191201771/naza/pkg/bele"
)

type sectionMode uint8

const (
	sectionModeAggregate  sectionMode = iota // 凑齐整张表后回调
	sectionModeIndividual                    // 每个section单独回调
	sectionModeDirect                        // 不经过 Table，直接回调
)

const sectionBufferSize = psiShortHeaderLength + MaxSectionLength

// sectionHandler section或者整张表完成时的回调
//
// 直接模式下 t 为nil，status为 TableStatusNone。
// section只在回调期间有效
type sectionHandler func(f *SectionFilter, t *Table, status TableStatus, h *PsiSectionHeader, section []byte)

// SectionFilter 一个PID上的section重组
//
// Idle -> Collecting -> Complete -> Idle
type SectionFilter struct {
	d      *Demuxer
	stream *Stream

	cc       int8   // -1表示还没有收到过
	buf      []byte // 第一次使用时申请
	length   int    // 当前section的总长度，包含3字节头，0表示还不知道
	waitPusi bool   // 出错后等待下一个payload_unit_start

	tables  map[uint32]*Table
	mode    sectionMode
	handler sectionHandler
}

func newSectionFilter(d *Demuxer, s *Stream, mode sectionMode, handler sectionHandler) *SectionFilter {
	return &SectionFilter{
		d:       d,
		stream:  s,
		cc:      -1,
		tables:  make(map[uint32]*Table),
		mode:    mode,
		handler: handler,
	}
}

func (f *SectionFilter) Stream() *Stream {
	return f.stream
}

func (f *SectionFilter) process(pkt *TsPacket) {
	if pkt.Header.Err == 1 {
		f.drop()
		return
	}
	if pkt.Header.Adaptation&AdaptationFieldControlNo == 0 {
		// 没有payload的packet不增加continuity_counter
		return
	}

	cc := int8(pkt.Header.Cc)
	if f.cc >= 0 {
		if cc == f.cc {
			f.d.stats.Duplicates.Increment()
			return
		}
		if cc != (f.cc+1)&0x0F && !pkt.discontinuity() {
			f.d.stats.CcErrors.Increment()
			f.d.debugf("section cc error. pid=%d, expect=%d, got=%d", f.stream.Pid, (f.cc+1)&0x0F, cc)
			f.drop()
		}
	}
	f.cc = cc

	p := pkt.Payload
	if len(p) == 0 {
		return
	}

	if pkt.Header.PayloadUnitStart == 0 {
		if f.waitPusi || len(f.buf) == 0 {
			return
		}
		f.feed(p, false)
		return
	}

	ptr := int(p[0])
	if 1+ptr > len(p) {
		f.d.stats.SectionErrors.Increment()
		f.d.debugf("invalid pointer field. pid=%d, pointer=%d, payload=%d", f.stream.Pid, ptr, len(p))
		f.drop()
		return
	}
	if !f.waitPusi && len(f.buf) != 0 {
		f.feed(p[1:1+ptr], false)
		if len(f.buf) != 0 {
			// 上一个section没有收完就被打断了
			f.d.stats.SectionErrors.Increment()
		}
	}
	f.resetBuffer()
	f.waitPusi = false
	f.feed(p[1+ptr:], true)
}

// @param allowNew: 只有payload_unit_start的packet中，一个section结束后可以紧跟着开始新的section
func (f *SectionFilter) feed(data []byte, allowNew bool) {
	for len(data) != 0 {
		if len(f.buf) == 0 {
			// 剩余的都是填充
			if data[0] == 0xFF {
				return
			}
			if f.buf == nil {
				f.buf = make([]byte, 0, sectionBufferSize)
			}
		}

		if f.length == 0 {
			n := min(psiShortHeaderLength-len(f.buf), len(data))
			f.buf = append(f.buf, data[:n]...)
			data = data[n:]
			if len(f.buf) < psiShortHeaderLength {
				return
			}
			sl := int(bele.BeUint16(f.buf[1:]) & 0x0FFF)
			if sl > MaxSectionLength {
				f.d.stats.OversizedSections.Increment()
				f.d.debugf("section too long. pid=%d, length=%d", f.stream.Pid, sl)
				f.drop()
				return
			}
			f.length = psiShortHeaderLength + sl
		}

		n := min(f.length-len(f.buf), len(data))
		f.buf = append(f.buf, data[:n]...)
		data = data[n:]
		if len(f.buf) < f.length {
			return
		}

		f.complete(f.buf)
		f.resetBuffer()
		if !allowNew {
			return
		}
	}
}

func (f *SectionFilter) complete(section []byte) {
	h, err := ParsePsiSectionHeader(section)
	if err != nil {
		f.d.stats.SectionErrors.Increment()
		f.d.debugf("parse section header failed. pid=%d, err=%+v", f.stream.Pid, err)
		return
	}

	if h.SectionSyntaxIndicator == 1 || h.TableId == TsPsiIdTot {
		if len(section) < psiShortHeaderLength+crc32Length ||
			(h.SectionSyntaxIndicator == 1 && len(section) < psiLongHeaderLength+crc32Length) {
			f.d.stats.SectionErrors.Increment()
			return
		}
		if !VerifyCrc32(section) {
			f.d.stats.CrcErrors.Increment()
			f.d.debugf("section crc error. pid=%d, table id=%d", f.stream.Pid, h.TableId)
			return
		}
	}
	// 还未生效的表
	if h.SectionSyntaxIndicator == 1 && h.CurrentNextIndicator == 0 {
		return
	}
	f.d.stats.Sections.Increment()

	if f.mode == sectionModeDirect {
		f.handler(f, nil, TableStatusNone, &h, section)
		return
	}

	key := tableKey(h.TableId, h.TableIdExtension)
	t, ok := f.tables[key]
	if !ok {
		t = newTable(h.TableId, h.TableIdExtension)
		f.tables[key] = t
	}

	var status TableStatus
	if f.mode == sectionModeIndividual || h.SectionSyntaxIndicator == 0 {
		status = t.pushIndividual(&h, section)
	} else {
		status = t.pushAggregate(&h, section)
	}
	if status != TableStatusNone {
		f.handler(f, t, status, &h, section)
	}
}

func (f *SectionFilter) resetBuffer() {
	f.buf = f.buf[:0]
	f.length = 0
}

func (f *SectionFilter) drop() {
	f.resetBuffer()
	f.waitPusi = true
}

// 丢弃所有未完成以及已聚合的状态
func (f *SectionFilter) reset() {
	f.cc = -1
	f.resetBuffer()
	f.waitPusi = false
	f.tables = make(map[uint32]*Table)
}
