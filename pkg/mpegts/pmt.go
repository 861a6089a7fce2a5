// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"fmt"

	"github.com/q191201771/m2ts/pkg/base"
	"github.com/q191201771/naza/pkg/nazabits"
)

// Pmt
//
// ----------------------------------------
// Program Map Table
// <iso13818-1.pdf> <2.4.4.8> <page 64/174>
// table_id                 [8b]  *
// section_syntax_indicator [1b]
// 0                        [1b]
// reserved                 [2b]
// section_length           [12b] **
// program_number           [16b] **
// reserved                 [2b]
// version_number           [5b]
// current_next_indicator   [1b]  *
// section_number           [8b]  *
// last_section_number      [8b]  *
// reserved                 [3b]
// PCR_PID                  [13b] **
// reserved                 [4b]
// program_info_length      [12b] **
// -----loop-----
// stream_type              [8b]  *
// reserved                 [3b]
// elementary_PID           [13b] **
// reserved                 [4b]
// ES_info_length_length    [12b] **
// --------------
// CRC32                    [32b] ****
// ----------------------------------------
type Pmt struct {
	ProgramNumber   uint16
	Version         uint8
	PcrPid          uint16
	ProgramInfo     []Descriptor
	ProgramElements []PmtProgramElement
}

type PmtProgramElement struct {
	StreamType  uint8
	Pid         uint16
	Descriptors []Descriptor

	// 描述符循环无法解析时为true，此时Descriptors只包含能解析的部分
	BadDescriptors bool
}

// ParsePmt
//
// 某个ES的描述符循环有问题时，只丢弃这部分描述符，不影响其他ES
//
// @param section: 完整的section，包括头和CRC_32
func ParsePmt(section []byte) (pmt Pmt, err error) {
	h, err := ParsePsiSectionHeader(section)
	if err != nil {
		return
	}
	if h.SectionSyntaxIndicator == 0 {
		return pmt, fmt.Errorf("%w. pmt without section syntax", base.ErrMpegtsSection)
	}
	pmt.ProgramNumber = h.TableIdExtension
	pmt.Version = h.VersionNumber

	data := sectionPayload(section)
	if len(data) < 4 {
		return pmt, base.NewErrShortBuffer(4, len(data), "pmt")
	}
	br := nazabits.NewBitReader(data)
	_, _ = br.ReadBits8(3)
	pmt.PcrPid, _ = br.ReadBits16(13)
	_, _ = br.ReadBits8(4)
	pil, _ := br.ReadBits16(12)
	pos := 4
	if pos+int(pil) > len(data) {
		return pmt, base.NewErrShortBuffer(pos+int(pil), len(data), "pmt program info")
	}
	if pil != 0 {
		pmt.ProgramInfo, err = ParseDescriptors(data[pos : pos+int(pil)])
		if err != nil {
			Log.Warnf("parse pmt program info failed. program=%d, err=%+v", pmt.ProgramNumber, err)
			err = nil
		}
	}
	pos += int(pil)

	for pos+5 <= len(data) {
		var ppe PmtProgramElement
		br := nazabits.NewBitReader(data[pos:])
		ppe.StreamType, _ = br.ReadBits8(8)
		_, _ = br.ReadBits8(3)
		ppe.Pid, _ = br.ReadBits16(13)
		_, _ = br.ReadBits8(4)
		length, _ := br.ReadBits16(12)
		pos += 5

		end := pos + int(length)
		if end > len(data) {
			ppe.BadDescriptors = true
			end = len(data)
		}
		var derr error
		ppe.Descriptors, derr = ParseDescriptors(data[pos:end])
		if derr != nil {
			ppe.BadDescriptors = true
		}
		pos = end
		pmt.ProgramElements = append(pmt.ProgramElements, ppe)
	}
	return
}

func (pmt *Pmt) SearchPid(pid uint16) *PmtProgramElement {
	for i := range pmt.ProgramElements {
		if pmt.ProgramElements[i].Pid == pid {
			return &pmt.ProgramElements[i]
		}
	}
	return nil
}
