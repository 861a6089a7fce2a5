// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"github.com/q191201771/naza/pkg/nazaatomic"
)

// Stats Demuxer的统计，可以在其他协程中读取
type Stats struct {
	Packets         nazaatomic.Uint64
	ResyncBytes     nazaatomic.Uint64 // 重新同步时跳过的字节数
	PacketErrors    nazaatomic.Uint64 // adaptation field非法
	TransportErrors nazaatomic.Uint64 // transport_error_indicator
	Scrambled       nazaatomic.Uint64
	CcErrors        nazaatomic.Uint64
	Duplicates      nazaatomic.Uint64

	Sections          nazaatomic.Uint64 // 通过校验的section
	CrcErrors         nazaatomic.Uint64
	SectionErrors     nazaatomic.Uint64
	OversizedSections nazaatomic.Uint64

	PesPackets nazaatomic.Uint64
	DroppedPes nazaatomic.Uint64

	Events [eventTypeMax]nazaatomic.Uint64
}

type StatsSnapshot struct {
	Packets         uint64 `json:"packets"`
	ResyncBytes     uint64 `json:"resync_bytes"`
	PacketErrors    uint64 `json:"packet_errors"`
	TransportErrors uint64 `json:"transport_errors"`
	Scrambled       uint64 `json:"scrambled"`
	CcErrors        uint64 `json:"cc_errors"`
	Duplicates      uint64 `json:"duplicates"`

	Sections          uint64 `json:"sections"`
	CrcErrors         uint64 `json:"crc_errors"`
	SectionErrors     uint64 `json:"section_errors"`
	OversizedSections uint64 `json:"oversized_sections"`

	PesPackets uint64 `json:"pes_packets"`
	DroppedPes uint64 `json:"dropped_pes"`

	Events map[string]uint64 `json:"events"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	ss := StatsSnapshot{
		Packets:           s.Packets.Load(),
		ResyncBytes:       s.ResyncBytes.Load(),
		PacketErrors:      s.PacketErrors.Load(),
		TransportErrors:   s.TransportErrors.Load(),
		Scrambled:         s.Scrambled.Load(),
		CcErrors:          s.CcErrors.Load(),
		Duplicates:        s.Duplicates.Load(),
		Sections:          s.Sections.Load(),
		CrcErrors:         s.CrcErrors.Load(),
		SectionErrors:     s.SectionErrors.Load(),
		OversizedSections: s.OversizedSections.Load(),
		PesPackets:        s.PesPackets.Load(),
		DroppedPes:        s.DroppedPes.Load(),
		Events:            make(map[string]uint64),
	}
	for i := EventPatFound; i < eventTypeMax; i++ {
		if n := s.Events[i].Load(); n != 0 {
			ss.Events[i.String()] = n
		}
	}
	return ss
}
