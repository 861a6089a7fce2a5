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

// ---------------------------------------------------------------------------------------------------
// Program association section
// <iso13818-1.pdf> <2.4.4.3> <page 61/174>
// table_id                 [8b] *
// section_syntax_indicator [1b]
// '0'                      [1b]
// reserved                 [2b]
// section_length           [12b] **
// transport_stream_id      [16b] **
// reserved                 [2b]
// version_number           [5b]
// current_next_indicator   [1b]  *
// section_number           [8b]  *
// last_section_number      [8b]  *
// -----loop-----
// program_number           [16b] **
// reserved                 [3b]
// program_map_PID          [13b] ** if program_number == 0 then network_PID else then program_map_PID
// --------------
// CRC_32                   [32b] ****
// ---------------------------------------------------------------------------------------------------
type Pat struct {
	TransportStreamId uint16
	Version           uint8

	// 不包括program_number为0的项
	Programs []PatProgramElement

	// program_number为0时的PID，没有时为0
	NetworkPid uint16
}

type PatProgramElement struct {
	ProgramNumber uint16
	Pid           uint16
}

// ParsePat
//
// @param section: 完整的section，包括头和CRC_32
func ParsePat(section []byte) (pat Pat, err error) {
	h, err := ParsePsiSectionHeader(section)
	if err != nil {
		return
	}
	if h.SectionSyntaxIndicator == 0 {
		return pat, fmt.Errorf("%w. pat without section syntax", base.ErrMpegtsSection)
	}
	pat.TransportStreamId = h.TableIdExtension
	pat.Version = h.VersionNumber

	data := sectionPayload(section)
	if len(data)%4 != 0 {
		Log.Warnf("pat program loop length invalid. len=%d", len(data))
	}
	br := nazabits.NewBitReader(data)
	for i := 0; i+4 <= len(data); i += 4 {
		var ppe PatProgramElement
		ppe.ProgramNumber, _ = br.ReadBits16(16)
		_, _ = br.ReadBits8(3)
		ppe.Pid, _ = br.ReadBits16(13)
		if ppe.ProgramNumber == 0 {
			pat.NetworkPid = ppe.Pid
			continue
		}
		pat.Programs = append(pat.Programs, ppe)
	}
	return
}

func (pat *Pat) SearchPid(pid uint16) bool {
	for _, ppe := range pat.Programs {
		if pid == ppe.Pid {
			return true
		}
	}
	return false
}

func (pat *Pat) SearchProgram(number uint16) *PatProgramElement {
	for i := range pat.Programs {
		if pat.Programs[i].ProgramNumber == number {
			return &pat.Programs[i]
		}
	}
	return nil
}
