// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"github.com/q191201771/m2ts/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabits"
)

// 这里只解析到能区分表结构的程度，描述符内容原样交给上层

// Cat
//
// <iso13818-1.pdf> <2.4.4.6> <page 63/174>
// table_id, section_syntax_indicator ... last_section_number 同PAT
// -----loop-----
// descriptor()
// --------------
// CRC_32
type Cat struct {
	Version     uint8
	Descriptors []Descriptor
}

func ParseCat(section []byte) (cat Cat, err error) {
	h, err := ParsePsiSectionHeader(section)
	if err != nil {
		return
	}
	cat.Version = h.VersionNumber
	cat.Descriptors, err = ParseDescriptors(sectionPayload(section))
	return
}

// Sdt
//
// <EN 300 468> <5.2.3> Service Description Table
// table_id                     [8b]
// section_syntax_indicator     [1b]
// reserved_future_use          [1b]
// reserved                     [2b]
// section_length               [12b]
// transport_stream_id          [16b]
// reserved                     [2b]
// version_number               [5b]
// current_next_indicator       [1b]
// section_number               [8b]
// last_section_number          [8b]
// original_network_id          [16b]
// reserved_future_use          [8b]
// -----loop-----
// service_id                   [16b]
// reserved_future_use          [6b]
// EIT_schedule_flag            [1b]
// EIT_present_following_flag   [1b]
// running_status               [3b]
// free_CA_mode                 [1b]
// descriptors_loop_length      [12b]
// descriptor()
// --------------
// CRC_32                       [32b]
type Sdt struct {
	TransportStreamId uint16
	OriginalNetworkId uint16
	Version           uint8
	Services          []SdtService
}

type SdtService struct {
	ServiceId           uint16
	EitSchedule         uint8
	EitPresentFollowing uint8
	RunningStatus       uint8
	FreeCaMode          uint8
	Descriptors         []Descriptor
}

// ParseSdt 可以传入同一个表的多个section，service循环依次拼接
func ParseSdt(sections [][]byte) (sdt Sdt, err error) {
	for i, section := range sections {
		h, err := ParsePsiSectionHeader(section)
		if err != nil {
			return sdt, err
		}
		data := sectionPayload(section)
		if len(data) < 3 {
			return sdt, base.NewErrShortBuffer(3, len(data), "sdt")
		}
		if i == 0 {
			sdt.TransportStreamId = h.TableIdExtension
			sdt.Version = h.VersionNumber
			sdt.OriginalNetworkId = bele.BeUint16(data)
		}

		for pos := 3; pos+5 <= len(data); {
			var s SdtService
			br := nazabits.NewBitReader(data[pos:])
			s.ServiceId, _ = br.ReadBits16(16)
			_, _ = br.ReadBits8(6)
			s.EitSchedule, _ = br.ReadBits8(1)
			s.EitPresentFollowing, _ = br.ReadBits8(1)
			s.RunningStatus, _ = br.ReadBits8(3)
			s.FreeCaMode, _ = br.ReadBits8(1)
			length, _ := br.ReadBits16(12)
			pos += 5
			if pos+int(length) > len(data) {
				Log.Warnf("sdt service descriptors truncated. service=%d, length=%d, remain=%d", s.ServiceId, length, len(data)-pos)
				length = uint16(len(data) - pos)
			}
			// 描述符循环解析失败时保留能解析出来的部分
			s.Descriptors, _ = ParseDescriptors(data[pos : pos+int(length)])
			pos += int(length)
			sdt.Services = append(sdt.Services, s)
		}
	}
	return
}

// IntTable IP/MAC Notification Table
//
// <EN 301 192> <8.4.4.1>
// table_id                     [8b]  0x4C
// ...
// action_type                  [8b]  table_id_extension的高8位
// platform_id_hash             [8b]  table_id_extension的低8位
// reserved                     [2b]
// version_number               [5b]
// current_next_indicator       [1b]
// section_number               [8b]
// last_section_number          [8b]
// platform_id                  [24b]
// processing_order             [8b]
// platform_descriptor_loop()
// ...
// CRC_32                       [32b]
//
// 表的具体内容不在这里解析，Sections是完整的原始section
type IntTable struct {
	ActionType      uint8
	PlatformIdHash  uint8
	PlatformId      uint32
	ProcessingOrder uint8
	Version         uint8
	Sections        [][]byte
}

func ParseInt(sections [][]byte) (t IntTable, err error) {
	if len(sections) == 0 {
		return t, base.NewErrShortBuffer(1, 0, "int sections")
	}
	h, err := ParsePsiSectionHeader(sections[0])
	if err != nil {
		return
	}
	t.ActionType = uint8(h.TableIdExtension >> 8)
	t.PlatformIdHash = uint8(h.TableIdExtension)
	t.Version = h.VersionNumber
	data := sectionPayload(sections[0])
	if len(data) < 4 {
		return t, base.NewErrShortBuffer(4, len(data), "int")
	}
	t.PlatformId = bele.BeUint24(data)
	t.ProcessingOrder = data[3]
	t.Sections = sections
	return
}

// IpDatagram DVB MPE datagram_section
//
// <EN 301 192> <7.1>
// table_id                     [8b]  0x3E
// section_syntax_indicator     [1b]
// private_indicator            [1b]
// reserved                     [2b]
// section_length               [12b]
// MAC_address_6                [8b]
// MAC_address_5                [8b]
// reserved                     [2b]
// payload_scrambling_control   [2b]
// address_scrambling_control   [2b]
// LLC_SNAP_flag                [1b]
// current_next_indicator       [1b]
// section_number               [8b]
// last_section_number          [8b]
// MAC_address_4 ~ MAC_address_1 [32b]
// -----if LLC_SNAP_flag == 1-----
// LLC_SNAP()                   [64b]
// -----else-----
// IP_datagram_data_byte        [n*8b]
// ---------------
// CRC_32 or checksum           [32b]
type IpDatagram struct {
	// MAC_address_1是最高字节
	Mac [6]byte

	PayloadScrambling uint8
	AddressScrambling uint8
	LlcSnap           bool
	SectionNumber     uint8
	LastSectionNumber uint8

	// 去掉了LLC/SNAP头的IP数据报
	Data []byte
}

const llcSnapLength = 8

// ParseIpDatagram
//
// @param section: 完整的section，Data引用section的内存
func ParseIpDatagram(section []byte) (d IpDatagram, err error) {
	if len(section) < 12+crc32Length {
		return d, base.NewErrShortBuffer(12+crc32Length, len(section), "mpe datagram section")
	}
	d.Mac[5] = section[3]
	d.Mac[4] = section[4]
	br := nazabits.NewBitReader(section[5:6])
	_, _ = br.ReadBits8(2)
	d.PayloadScrambling, _ = br.ReadBits8(2)
	d.AddressScrambling, _ = br.ReadBits8(2)
	llcSnap, _ := br.ReadBits8(1)
	d.LlcSnap = llcSnap == 1
	d.SectionNumber = section[6]
	d.LastSectionNumber = section[7]
	d.Mac[3] = section[8]
	d.Mac[2] = section[9]
	d.Mac[1] = section[10]
	d.Mac[0] = section[11]

	start := 12
	if d.LlcSnap {
		start += llcSnapLength
	}
	end := len(section) - crc32Length
	if start > end {
		return d, base.NewErrShortBuffer(start+crc32Length, len(section), "mpe llc/snap")
	}
	d.Data = section[start:end]
	return
}
