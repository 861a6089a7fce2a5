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

// StreamKind 由PMT中的stream_type决定PID上的数据按section还是PES处理
type StreamKind uint8

const (
	StreamKindUnsupported StreamKind = iota
	StreamKindVideoPes               // PES，并且可以继承所在节目的PCR
	StreamKindPes
	StreamKindPrivatePes // 0x06 等私有PES，需要根据描述符确定能否处理
	StreamKindSection
)

func (k StreamKind) String() string {
	switch k {
	case StreamKindVideoPes:
		return "VIDEO_PES"
	case StreamKindPes:
		return "PES"
	case StreamKindPrivatePes:
		return "PRIVATE_PES"
	case StreamKindSection:
		return "SECTION"
	}
	return "UNSUPPORTED"
}

// DefaultStreamKindTable 默认的stream_type映射表，不在表中的stream_type按 StreamKindUnsupported 处理
//
// 可以通过 DemuxerOption.StreamKindTable 替换
var DefaultStreamKindTable = map[uint8]StreamKind{
	StreamTypeMpeg1Video:   StreamKindVideoPes,
	StreamTypeMpeg2Video:   StreamKindVideoPes,
	StreamTypeDcii:         StreamKindVideoPes,
	StreamTypeMpeg4Video:   StreamKindVideoPes,
	StreamTypeMpeg4Pes:     StreamKindVideoPes,
	StreamTypeAvc:          StreamKindVideoPes,
	StreamTypeSvc:          StreamKindVideoPes,
	StreamTypeMvcd:         StreamKindVideoPes,
	StreamTypeHevc:         StreamKindVideoPes,
	StreamTypeHevcMcts:     StreamKindVideoPes,
	StreamTypeHevcTemporal: StreamKindVideoPes,
	StreamTypeShvc:         StreamKindVideoPes,
	StreamTypeShvcTemporal: StreamKindVideoPes,
	StreamTypeMhvc:         StreamKindVideoPes,
	StreamTypeMhvcTemporal: StreamKindVideoPes,
	StreamTypeVvc:          StreamKindVideoPes,
	StreamTypeVc1:          StreamKindVideoPes,

	StreamTypeMpeg1Audio: StreamKindPes,
	StreamTypeMpeg2Audio: StreamKindPes,
	StreamTypeAac:        StreamKindPes,
	StreamTypeAacLatm:    StreamKindPes,
	StreamTypeAc3:        StreamKindPes,
	StreamTypeEac3:       StreamKindPes,
	StreamTypeEac3Atsc:   StreamKindPes,
	StreamTypeDts:        StreamKindPes,
	StreamTypeDtsHd:      StreamKindPes,
	StreamTypeTrueHd:     StreamKindPes,
	StreamTypeDtsDcii:    StreamKindPes,
	StreamTypeMhasMain:   StreamKindPes,
	StreamTypeMhasAux:    StreamKindPes,

	StreamTypeMetadataPes: StreamKindPes,

	StreamTypePrivateData: StreamKindPrivatePes,

	StreamTypePrivateSection: StreamKindSection,
	StreamTypeDsmccA:         StreamKindSection,
	StreamTypeDsmccB:         StreamKindSection,
	StreamTypeDsmccC:         StreamKindSection,
	StreamTypeDsmccD:         StreamKindSection,
	StreamTypeMpeg4Section:   StreamKindSection,
	StreamTypeQualitySection: StreamKindSection,
	StreamTypeMoreSection:    StreamKindSection,
	StreamTypeMpe:            StreamKindSection,
	StreamTypeScte35:         StreamKindSection,
}

// FramingMode PES流的输出方式，运行时可以通过 Demuxer.SetFramingMode 切换
type FramingMode uint8

const (
	FramingModeDefault FramingMode = iota // 有reframer时按AU输出，否则输出整个PES payload
	FramingModeRaw                        // 不做AU边界检测，原样输出PES payload
	FramingModeSkip                       // 丢弃该PID上的所有数据，不分配内存
)

func (m FramingMode) String() string {
	switch m {
	case FramingModeDefault:
		return "DEFAULT"
	case FramingModeRaw:
		return "RAW"
	case FramingModeSkip:
		return "SKIP"
	}
	return "UNKNOWN"
}

const (
	StreamFlagSection    uint32 = 1 << iota
	StreamFlagPes               // 与 StreamFlagSection 互斥
	StreamFlagSl                // MPEG-4 SL 打包
	StreamFlagInheritPcr        // 节目的PCR PID上没有绑定流时，PCR归属于这个流
	StreamFlagMpe               // DVB multiprotocol encapsulation
	StreamFlagInt               // IP/MAC notification table
	StreamFlagPsi               // PAT、PMT以及默认SI过滤器
)

// Stream 绑定在一个PID上的逻辑流，section和PES二选一
type Stream struct {
	Pid        uint16
	StreamType uint8
	Kind       StreamKind
	Flags      uint32

	// 以下字段来自PMT中该ES的描述符
	Mpeg4EsId          uint16
	Lang               string // ISO-639，3字节
	ComponentTag       int    // -1表示没有
	DataBroadcastId    uint16
	RegistrationFormat uint32
	Descriptors        []Descriptor

	// 所属节目，PAT、CAT等默认过滤器为nil
	Program *Program

	sec *SectionFilter
	pes *PesBuffer
}

func (s *Stream) IsSection() bool {
	return s.Flags&StreamFlagSection != 0
}

func (s *Stream) IsPes() bool {
	return s.Flags&StreamFlagPes != 0
}

// FramingMode section流返回 FramingModeDefault
func (s *Stream) FramingMode() FramingMode {
	if s.pes == nil {
		return FramingModeDefault
	}
	return s.pes.mode
}

// Table 返回该PID上 (table_id, table_id_extension) 对应的表，没有收到过则返回nil
func (s *Stream) Table(tableId uint8, extId uint16) *Table {
	if s.sec == nil {
		return nil
	}
	return s.sec.tables[tableKey(tableId, extId)]
}

// ----- private -------------------------------------------------------------------------------------------------------

func newSectionStream(d *Demuxer, pid uint16, flags uint32, mode sectionMode, handler sectionHandler) *Stream {
	s := &Stream{
		Pid:          pid,
		Kind:         StreamKindSection,
		Flags:        StreamFlagSection | flags,
		ComponentTag: -1,
	}
	s.sec = newSectionFilter(d, s, mode, handler)
	return s
}

// 用PMT中ES的描述符补充流的信息
//
// @return: 私有PES无法识别时返回false，调用方应忽略该ES
func (s *Stream) applyDescriptors(ds []Descriptor) bool {
	s.Descriptors = ds
	privateKnown := false
	for i := range ds {
		d := &ds[i]
		switch d.Tag {
		case DescriptorTagISO639LanguageAndAudioType:
			if len(d.Data) >= 3 {
				s.Lang = string(d.Data[:3])
			}
		case DescriptorTagSl:
			if len(d.Data) >= 2 {
				s.Mpeg4EsId = bele.BeUint16(d.Data)
				s.Flags |= StreamFlagSl
			}
		case DescriptorTagStreamIdentifier:
			if len(d.Data) >= 1 {
				s.ComponentTag = int(d.Data[0])
			}
		case DescriptorTagDataBroadcastId:
			if len(d.Data) >= 2 {
				s.DataBroadcastId = bele.BeUint16(d.Data)
				switch s.DataBroadcastId {
				case dataBroadcastIdMpe:
					s.Flags |= StreamFlagMpe
				case dataBroadcastIdInt:
					s.Flags |= StreamFlagInt
				}
			}
		case DescriptorTagRegistration:
			if len(d.Data) >= 4 {
				s.RegistrationFormat = d.Registration.FormatIdentifier
				switch s.RegistrationFormat {
				case ac3Identifier, vc1Identifier, opusIdentifier, hevcIdentifier:
					privateKnown = true
				}
			}
		case DescriptorTagAC3, DescriptorTagEnhancedAC3, DescriptorTagSubtitling, DescriptorTagTeletext,
			DescriptorTagVBIData:
			privateKnown = true
		}
	}

	switch s.StreamType {
	case StreamTypeMpe:
		s.Flags |= StreamFlagMpe
	case StreamTypeMpeg4Section, StreamTypeMpeg4Pes:
		s.Flags |= StreamFlagSl
	}

	if s.Kind == StreamKindPrivatePes && !privateKnown {
		return false
	}
	return true
}
