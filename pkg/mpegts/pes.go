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
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabits"
)

// -----------------------------------------------------------
// <iso13818-1.pdf>
// <2.4.3.6 PES packet> <page 49/174>
// <Table E.1 - PES packet header example> <page 142/174>
// <F.0.2 PES packet> <page 144/174>
// packet_start_code_prefix  [24b] *** always 0x00, 0x00, 0x01
// stream_id                 [8b]  *
// PES_packet_length         [16b] **
// '10'                      [2b]
// PES_scrambling_control    [2b]
// PES_priority              [1b]
// data_alignment_indicator  [1b]
// copyright                 [1b]
// original_or_copy          [1b]  *
// PTS_DTS_flags             [2b]
// ESCR_flag                 [1b]
// ES_rate_flag              [1b]
// DSM_trick_mode_flag       [1b]
// additional_copy_info_flag [1b]
// PES_CRC_flag              [1b]
// PES_extension_flag        [1b]  *
// PES_header_data_length    [8b]  *
// -----------------------------------------------------------
type PesHeader struct {
	StreamId     uint8
	PacketLength uint16 // 为0表示长度不限，视频流常见

	Scrambling       uint8
	Priority         uint8
	DataAlignment    uint8
	Copyright        uint8
	OriginalOrCopy   uint8
	PtsDtsFlags      uint8
	EscrFlag         uint8
	EsRateFlag       uint8
	DsmTrickModeFlag uint8
	AddCopyInfoFlag  uint8
	CrcFlag          uint8
	ExtensionFlag    uint8
	HeaderDataLength uint8

	Pts uint64
	Dts uint64 // 没有DTS时等于PTS

	// 整个PES头的长度，ES数据从这里开始
	HeaderLength int
}

const (
	pesStartCodeLength = 6 // packet_start_code_prefix, stream_id, PES_packet_length
	pesOptionalLength  = 3 // '10' 到 PES_header_data_length
)

// HasPts PTS_DTS_flags为'10'或'11'
func (h *PesHeader) HasPts() bool {
	return h.PtsDtsFlags&0x2 != 0
}

func (h *PesHeader) HasDts() bool {
	return h.PtsDtsFlags == 0x3
}

// ParsePesHeader
//
// @param b: 从packet_start_code_prefix开始，至少包含整个PES头
func ParsePesHeader(b []byte) (h PesHeader, err error) {
	if len(b) < pesStartCodeLength {
		return h, base.NewErrShortBuffer(pesStartCodeLength, len(b), "pes header")
	}
	if bele.BeUint24(b) != 1 {
		return h, fmt.Errorf("%w. start code=%x", base.ErrMpegtsPes, b[:3])
	}
	h.StreamId = b[3]
	h.PacketLength = bele.BeUint16(b[4:])
	h.HeaderLength = pesStartCodeLength

	if !hasOptionalPesHeader(h.StreamId) {
		return
	}

	if len(b) < pesStartCodeLength+pesOptionalLength {
		return h, base.NewErrShortBuffer(pesStartCodeLength+pesOptionalLength, len(b), "pes optional header")
	}
	br := nazabits.NewBitReader(b[pesStartCodeLength:])
	marker, _ := br.ReadBits8(2)
	if marker != 0x2 {
		return h, fmt.Errorf("%w. marker=%d", base.ErrMpegtsPes, marker)
	}
	h.Scrambling, _ = br.ReadBits8(2)
	h.Priority, _ = br.ReadBits8(1)
	h.DataAlignment, _ = br.ReadBits8(1)
	h.Copyright, _ = br.ReadBits8(1)
	h.OriginalOrCopy, _ = br.ReadBits8(1)
	h.PtsDtsFlags, _ = br.ReadBits8(2)
	h.EscrFlag, _ = br.ReadBits8(1)
	h.EsRateFlag, _ = br.ReadBits8(1)
	h.DsmTrickModeFlag, _ = br.ReadBits8(1)
	h.AddCopyInfoFlag, _ = br.ReadBits8(1)
	h.CrcFlag, _ = br.ReadBits8(1)
	h.ExtensionFlag, _ = br.ReadBits8(1)
	h.HeaderDataLength, _ = br.ReadBits8(8)

	h.HeaderLength = pesStartCodeLength + pesOptionalLength + int(h.HeaderDataLength)
	if len(b) < h.HeaderLength {
		return h, base.NewErrShortBuffer(h.HeaderLength, len(b), "pes header data")
	}

	// '01'是禁止的值，按没有时间戳处理
	switch h.PtsDtsFlags {
	case 0x2:
		if h.HeaderDataLength < 5 {
			return h, fmt.Errorf("%w. pts_dts_flags=%d, header_data_length=%d", base.ErrMpegtsPes, h.PtsDtsFlags, h.HeaderDataLength)
		}
		_, h.Pts = readPts(b[9:])
		h.Dts = h.Pts
	case 0x3:
		if h.HeaderDataLength < 10 {
			return h, fmt.Errorf("%w. pts_dts_flags=%d, header_data_length=%d", base.ErrMpegtsPes, h.PtsDtsFlags, h.HeaderDataLength)
		}
		_, h.Pts = readPts(b[9:])
		_, h.Dts = readPts(b[14:])
	default:
		h.PtsDtsFlags = 0
	}
	return
}

// <iso13818-1.pdf> <Table 2-21> 这些stream_id后面直接是PES_packet_data_byte
func hasOptionalPesHeader(sid uint8) bool {
	switch sid {
	case StreamIdProgramStreamMap,
		StreamIdPaddingStream,
		StreamIdPrivateStream2,
		StreamIdEcm,
		StreamIdEmm,
		StreamIdProgramStreamDirectory,
		StreamIdDsmcc,
		StreamIdH2221TypeE:
		return false
	}
	return true
}

// read pts or dts
func readPts(b []byte) (fb uint8, pts uint64) {
	fb = b[0] >> 4
	pts |= uint64((b[0]>>1)&0x07) << 30
	pts |= (uint64(b[1])<<8 | uint64(b[2])) >> 1 << 15
	pts |= (uint64(b[3])<<8 | uint64(b[4])) >> 1
	return
}
