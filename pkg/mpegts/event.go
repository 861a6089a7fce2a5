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

type EventType int

const (
	EventPatFound EventType = iota + 1
	EventPatUpdate
	EventPatRepeat
	EventPmtFound
	EventPmtUpdate
	EventPmtRepeat
	EventSdtFound
	EventSdtUpdate
	EventSdtRepeat
	EventCatFound
	EventCatUpdate
	EventCatRepeat
	EventIntFound
	EventIntUpdate
	EventIntRepeat
	EventPesPck
	EventPesPcr
	EventSlPck
	EventIpDatagram
	EventAacCfg
	EventDvbGeneral

	eventTypeMax
)

var eventTypeNames = [eventTypeMax]string{
	EventPatFound:   "PAT_FOUND",
	EventPatUpdate:  "PAT_UPDATE",
	EventPatRepeat:  "PAT_REPEAT",
	EventPmtFound:   "PMT_FOUND",
	EventPmtUpdate:  "PMT_UPDATE",
	EventPmtRepeat:  "PMT_REPEAT",
	EventSdtFound:   "SDT_FOUND",
	EventSdtUpdate:  "SDT_UPDATE",
	EventSdtRepeat:  "SDT_REPEAT",
	EventCatFound:   "CAT_FOUND",
	EventCatUpdate:  "CAT_UPDATE",
	EventCatRepeat:  "CAT_REPEAT",
	EventIntFound:   "INT_FOUND",
	EventIntUpdate:  "INT_UPDATE",
	EventIntRepeat:  "INT_REPEAT",
	EventPesPck:     "PES_PCK",
	EventPesPcr:     "PES_PCR",
	EventSlPck:      "SL_PCK",
	EventIpDatagram: "IP_DATAGRAM",
	EventAacCfg:     "AAC_CFG",
	EventDvbGeneral: "DVB_GENERAL",
}

func (t EventType) String() string {
	if t <= 0 || t >= eventTypeMax {
		return "UNKNOWN"
	}
	return eventTypeNames[t]
}

// 表状态到事件的映射，顺序与 TableStatus 一致
func tableEvent(found EventType, status TableStatus) EventType {
	return found + EventType(status-TableStatusFound)
}

// Event 回调给上层的事件
//
// 根据 Type 只有对应的一个字段有效，其余为nil。
// 注意，事件中引用的所有内存块（包括 PesPacket.Data 等切片）只在回调期间有效，上层需要保留的话自行拷贝
type Event struct {
	Type   EventType
	Pid    uint16
	Stream *Stream // 产生事件的流

	Pat       *Pat            // PAT_*
	Program   *Program        // PMT_*，Program.Pmt 是刚解析出来的PMT
	Sdt       *Sdt            // SDT_*
	Cat       *Cat            // CAT_*
	Int       *IntTable       // INT_*
	Pes       *PesPacket      // PES_PCK, SL_PCK
	Pcr       *PcrPacket      // PES_PCR
	Datagram  *IpDatagram     // IP_DATAGRAM
	AacConfig *AacConfigEvent // AAC_CFG
	Section   *SectionEvent   // DVB_GENERAL, 以及 SL_PCK 中来自section的数据
}

// OnEvent 同步回调。回调中不能再调用同一个 Demuxer 的 ProcessData
type OnEvent func(evt *Event)

const (
	PesFlagRap     uint32 = 1 << iota // 随机访问点
	PesFlagAuStart                    // 数据从一个AU的开头开始
	PesFlagAuEnd                      // 数据到一个AU的结尾结束
	PesFlagFrameI
	PesFlagFrameP
	PesFlagFrameB
	PesFlagHasPts
	PesFlagHasDts
)

type PesPacket struct {
	Data     []byte
	Pts      uint64 // 90KHz
	Dts      uint64 // 没有DTS时等于PTS
	Flags    uint32
	StreamId uint8
	Stream   *Stream
}

func (p *PesPacket) IsRap() bool {
	return p.Flags&PesFlagRap != 0
}

type PcrPacket struct {
	Pcr           uint64 // 27MHz，PCR_base * 300 + PCR_ext
	Discontinuity bool
	Pid           uint16 // 携带PCR的PID，可能与 Stream.Pid 不同
	Stream        *Stream
}

// PcrBase 90KHz
func (p *PcrPacket) PcrBase() uint64 {
	return p.Pcr / 300
}

type AacConfigEvent struct {
	Asc    []byte
	AscCtx aac.AscContext
	Stream *Stream
}

// SectionEvent 原样上抛的section
type SectionEvent struct {
	TableId           uint8
	ExtId             uint16
	Version           uint8
	SectionNumber     uint8
	LastSectionNumber uint8
	Status            TableStatus
	Data              []byte // 完整的section，从table_id开始，包含CRC
}
