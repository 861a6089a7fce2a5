// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

// MPEG: Moving Picture Experts Group

const (
	TsPacketSize = 188

	syncByte uint8 = 0x47
)

// 固定PID
const (
	PidPat  uint16 = 0x0000
	PidCat  uint16 = 0x0001
	PidTsdt uint16 = 0x0002
	PidNit  uint16 = 0x0010
	PidSdt  uint16 = 0x0011 // SDT/BAT/ST
	PidEit  uint16 = 0x0012 // EIT/ST/CIT
	PidRst  uint16 = 0x0013
	PidTdt  uint16 = 0x0014 // TDT/TOT/ST
	PidNull uint16 = 0x1FFF

	// PidReservedEnd [0x0000, 0x001F] 是标准保留的PID
	PidReservedEnd uint16 = 0x001F

	PidMax = 0x1FFF
)

// adaptation_field_control
const (
	AdaptationFieldControlReserved = 0 // 保留位，按照标准应该丢弃
	AdaptationFieldControlNo       = 1 // 没有adaptation_field，只有payload
	AdaptationFieldControlOnly     = 2 // 只有adaptation_field，没有payload
	AdaptationFieldControlFollowed = 3 // adaptation_field后面跟着payload
)

// stream_type
//
// <iso13818-1.pdf> <Table 2-29> <page 66/174>
const (
	StreamTypeMpeg1Video     uint8 = 0x01
	StreamTypeMpeg2Video     uint8 = 0x02
	StreamTypeMpeg1Audio     uint8 = 0x03
	StreamTypeMpeg2Audio     uint8 = 0x04
	StreamTypePrivateSection uint8 = 0x05
	StreamTypePrivateData    uint8 = 0x06
	StreamTypeMheg           uint8 = 0x07
	StreamTypeDsmcc          uint8 = 0x08
	StreamTypeH2221          uint8 = 0x09
	StreamTypeDsmccA         uint8 = 0x0A
	StreamTypeDsmccB         uint8 = 0x0B
	StreamTypeDsmccC         uint8 = 0x0C
	StreamTypeDsmccD         uint8 = 0x0D
	StreamTypeAux            uint8 = 0x0E
	StreamTypeAac            uint8 = 0x0F // ADTS
	StreamTypeMpeg4Video     uint8 = 0x10
	StreamTypeAacLatm        uint8 = 0x11
	StreamTypeMpeg4Pes       uint8 = 0x12 // SL-packetized stream or FlexMux stream carried in PES packets
	StreamTypeMpeg4Section   uint8 = 0x13 // SL-packetized stream or FlexMux stream carried in 14496_sections
	StreamTypeDsmccSdp       uint8 = 0x14
	StreamTypeMetadataPes    uint8 = 0x15
	StreamTypeAvc            uint8 = 0x1B
	StreamTypeSvc            uint8 = 0x1F
	StreamTypeMvc            uint8 = 0x20
	StreamTypeJpeg2000       uint8 = 0x21
	StreamTypeHevc           uint8 = 0x24
	StreamTypeHevcTemporal   uint8 = 0x25
	StreamTypeMvcd           uint8 = 0x26
	StreamTypeShvc           uint8 = 0x28
	StreamTypeShvcTemporal   uint8 = 0x29
	StreamTypeMhvc           uint8 = 0x2A
	StreamTypeMhvcTemporal   uint8 = 0x2B
	StreamTypeMhasMain       uint8 = 0x2D
	StreamTypeMhasAux        uint8 = 0x2E
	StreamTypeQualitySection uint8 = 0x2F
	StreamTypeMoreSection    uint8 = 0x30
	StreamTypeHevcMcts       uint8 = 0x31
	StreamTypeVvc            uint8 = 0x33
	StreamTypeDcii           uint8 = 0x80
	StreamTypeAc3            uint8 = 0x81
	StreamTypeDts            uint8 = 0x82
	StreamTypeTrueHd         uint8 = 0x83
	StreamTypeEac3           uint8 = 0x84
	StreamTypeDtsHd          uint8 = 0x85
	StreamTypeScte35         uint8 = 0x86
	StreamTypeEac3Atsc       uint8 = 0x87
	StreamTypeDtsDcii        uint8 = 0x8A
	StreamTypeMpe            uint8 = 0x90 // DVB MPE sections
	StreamTypeVc1            uint8 = 0xEA
)

// stream_id
//
// <iso13818-1.pdf> <Table 2-22> <page 52/174>
const (
	StreamIdProgramStreamMap       uint8 = 0xBC
	StreamIdPrivateStream1         uint8 = 0xBD
	StreamIdPaddingStream          uint8 = 0xBE
	StreamIdPrivateStream2         uint8 = 0xBF
	StreamIdAudio                  uint8 = 0xC0 // 0xC0 ~ 0xDF
	StreamIdVideo                  uint8 = 0xE0 // 0xE0 ~ 0xEF
	StreamIdEcm                    uint8 = 0xF0
	StreamIdEmm                    uint8 = 0xF1
	StreamIdDsmcc                  uint8 = 0xF2
	StreamIdH2221TypeE             uint8 = 0xF8
	StreamIdProgramStreamDirectory uint8 = 0xFF
)

// PCR/PTS 时钟
const (
	// 90kHz的PTS/DTS是33位
	maxPts uint64 = 1 << 33

	// PCR = base * 300 + ext，单位27MHz
	PcrMax uint64 = maxPts * 300

	// 超过该值的回退视为时钟不连续，单位27MHz，即200毫秒
	pcrBackwardThreshold uint64 = 200 * 27000
)
