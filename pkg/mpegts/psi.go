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

// PsiId table_id
//
// <iso13818-1.pdf> <Table 2-31> <page 69/174>
// <EN 300 468> <Table 2>
const (
	TsPsiIdPas            = 0x00 // program_association_section
	TsPsiIdCas            = 0x01 // conditional_access_section (CA_section)
	TsPsiIdPms            = 0x02 // TS_program_map_section
	TsPsiIdDs             = 0x03 // TS_description_section
	TsPsiIdSds            = 0x04 // ISO_IEC_14496_scene_description_section
	TsPsiIdOds            = 0x05 // ISO_IEC_14496_object_descriptor_section
	TsPsiIdIso138181Start = 0x06 // ITU-T Rec. H.222.0 | ISO/IEC 13818-1 reserved
	TsPsiIdIso138181End   = 0x37
	TsPsiIdIso138186Start = 0x38 // Defined in ISO/IEC 13818-6
	TsPsiIdMpeDatagram    = 0x3E // DSM-CC section with private data, DVB MPE datagram_section
	TsPsiIdIso138186End   = 0x3F
	TsPsiIdUserStart      = 0x40 // User private
	TsPsiIdNitActual      = 0x40
	TsPsiIdNitOther       = 0x41
	TsPsiIdSdtActual      = 0x42
	TsPsiIdSdtOther       = 0x46
	TsPsiIdBat            = 0x4A
	TsPsiIdInt            = 0x4C // IP/MAC notification table, EN 301 192
	TsPsiIdEitPfActual    = 0x4E
	TsPsiIdEitPfOther     = 0x4F
	TsPsiIdEitScheduleMin = 0x50
	TsPsiIdEitScheduleMax = 0x6F
	TsPsiIdTdt            = 0x70
	TsPsiIdRst            = 0x71
	TsPsiIdSt             = 0x72
	TsPsiIdTot            = 0x73
	TsPsiIdUserEnd        = 0xFE
	TsPsiIdForbidden      = 0xFF // forbidden
)

const (
	DescriptorTagAC3                        = 0x6a
	DescriptorTagAVCVideo                   = 0x28
	DescriptorTagCa                         = 0x09
	DescriptorTagComponent                  = 0x50
	DescriptorTagContent                    = 0x54
	DescriptorTagDataBroadcastId            = 0x66
	DescriptorTagDataStreamAlignment        = 0x6
	DescriptorTagEnhancedAC3                = 0x7a
	DescriptorTagExtendedEvent              = 0x4e
	DescriptorTagExtension                  = 0x7f
	DescriptorTagFmc                        = 0x1f
	DescriptorTagIod                        = 0x1d
	DescriptorTagISO639LanguageAndAudioType = 0xa
	DescriptorTagLocalTimeOffset            = 0x58
	DescriptorTagMaximumBitrate             = 0xe
	DescriptorTagNetworkName                = 0x40
	DescriptorTagParentalRating             = 0x55
	DescriptorTagPrivateDataIndicator       = 0xf
	DescriptorTagPrivateDataSpecifier       = 0x5f
	DescriptorTagRegistration               = 0x5
	DescriptorTagService                    = 0x48
	DescriptorTagShortEvent                 = 0x4d
	DescriptorTagSl                         = 0x1e
	DescriptorTagStreamIdentifier           = 0x52
	DescriptorTagSubtitling                 = 0x59
	DescriptorTagTeletext                   = 0x56
	DescriptorTagVBIData                    = 0x45
	DescriptorTagVBITeletext                = 0x46
)

// registration_descriptor中的format_identifier
const (
	opusIdentifier = 0x4f707573 // Opus
	ac3Identifier  = 0x41432d33 // AC-3
	vc1Identifier  = 0x56432d31 // VC-1
	hevcIdentifier = 0x48455643 // HEVC
)

// data_broadcast_id_descriptor中的data_broadcast_id
const (
	dataBroadcastIdMpe uint16 = 0x0005
	dataBroadcastIdInt uint16 = 0x000B
)

const (
	psiShortHeaderLength = 3 // table_id到section_length
	psiLongHeaderLength  = 8 // table_id到last_section_number
	crc32Length          = 4

	// MaxSectionLength section_length的上限，加上3字节头正好4096
	MaxSectionLength = 4093
)

// ---------------------------------------------------------------------------------------------------
// <iso13818-1.pdf> <2.4.4.10> <page 71/174>
// table_id                 [8b]  *
// section_syntax_indicator [1b]
// private_indicator        [1b]
// reserved                 [2b]
// section_length           [12b] **
// -----if section_syntax_indicator == 1-----
// table_id_extension       [16b] **
// reserved                 [2b]
// version_number           [5b]
// current_next_indicator   [1b]  *
// section_number           [8b]  *
// last_section_number      [8b]  *
// ---------------------------------------------------------------------------------------------------
type PsiSectionHeader struct {
	TableId                uint8
	SectionSyntaxIndicator uint8
	PrivateIndicator       uint8
	SectionLength          uint16
	TableIdExtension       uint16
	VersionNumber          uint8
	CurrentNextIndicator   uint8
	SectionNumber          uint8
	LastSectionNumber      uint8
}

func ParsePsiSectionHeader(b []byte) (h PsiSectionHeader, err error) {
	if len(b) < psiShortHeaderLength {
		return h, base.NewErrShortBuffer(psiShortHeaderLength, len(b), "psi section header")
	}
	br := nazabits.NewBitReader(b)
	h.TableId, _ = br.ReadBits8(8)
	h.SectionSyntaxIndicator, _ = br.ReadBits8(1)
	h.PrivateIndicator, _ = br.ReadBits8(1)
	_, _ = br.ReadBits8(2)
	h.SectionLength, _ = br.ReadBits16(12)
	if h.SectionSyntaxIndicator == 0 {
		return
	}

	if len(b) < psiLongHeaderLength {
		return h, base.NewErrShortBuffer(psiLongHeaderLength, len(b), "psi section header")
	}
	h.TableIdExtension, _ = br.ReadBits16(16)
	_, _ = br.ReadBits8(2)
	h.VersionNumber, _ = br.ReadBits8(5)
	h.CurrentNextIndicator, _ = br.ReadBits8(1)
	h.SectionNumber, _ = br.ReadBits8(8)
	h.LastSectionNumber, _ = br.ReadBits8(8)
	return
}

// sectionPayload 去掉长头和CRC_32之后的部分，调用方保证是通过了CRC校验的完整section
func sectionPayload(section []byte) []byte {
	if len(section) < psiLongHeaderLength+crc32Length {
		return nil
	}
	return section[psiLongHeaderLength : len(section)-crc32Length]
}

// ---------------------------------------------------------------------------------------------------------------------

// Descriptor
//
// <iso13818-1.pdf> <2.6> <page 79/174>
// descriptor_tag    [8b]
// descriptor_length [8b]
// ...
type Descriptor struct {
	Length       uint8
	Tag          uint8
	Data         []byte // 不包括tag和length这2字节
	Registration DescriptorRegistration
	Extension    DescriptorExtension
}

type DescriptorRegistration struct {
	AdditionalIdentificationInfo []byte
	FormatIdentifier             uint32
}

type DescriptorExtension struct {
	Tag     uint8
	Unknown []byte
}

// ParseDescriptors 解析描述符循环
//
// 循环被截断时，返回已经解析出来的描述符以及错误
func ParseDescriptors(b []byte) (ds []Descriptor, err error) {
	for pos := 0; pos < len(b); {
		if pos+2 > len(b) || pos+2+int(b[pos+1]) > len(b) {
			return ds, fmt.Errorf("%w. pos=%d, len=%d", base.ErrMpegtsDescriptor, pos, len(b))
		}
		d := Descriptor{
			Tag:    b[pos],
			Length: b[pos+1],
		}
		d.Data = b[pos+2 : pos+2+int(d.Length)]
		switch d.Tag {
		case DescriptorTagRegistration:
			if len(d.Data) >= 4 {
				d.Registration.FormatIdentifier = bele.BeUint32(d.Data)
				d.Registration.AdditionalIdentificationInfo = d.Data[4:]
			}
		case DescriptorTagExtension:
			if len(d.Data) >= 1 {
				d.Extension.Tag = d.Data[0]
				d.Extension.Unknown = d.Data[1:]
			}
		}
		ds = append(ds, d)
		pos += 2 + int(d.Length)
	}
	return
}

func findDescriptor(ds []Descriptor, tag uint8) *Descriptor {
	for i := range ds {
		if ds[i].Tag == tag {
			return &ds[i]
		}
	}
	return nil
}

// ----- section writer ------------------------------------------------------------------------------------------------

// PsiSection 用于生成section，比如构造测试流
type PsiSection struct {
	header  PsiSectionHeader
	hasCrc  bool
	patData PatSpecificData
	pmtData PmtSpecificData
	body    []byte
}

type PatSpecificData struct {
	pes []PatProgramElement
}

type PmtSpecificData struct {
	pcrPid      uint16
	programInfo []Descriptor
	pes         []PmtProgramElement
}

func NewPatSection(transportStreamId uint16, version uint8, programs []PatProgramElement) *PsiSection {
	psi := newLongSection(TsPsiIdPas, transportStreamId, version, 0, 0)
	psi.patData.pes = programs
	return psi
}

func NewPmtSection(programNumber uint16, version uint8, pcrPid uint16, programInfo []Descriptor, elements []PmtProgramElement) *PsiSection {
	psi := newLongSection(TsPsiIdPms, programNumber, version, 0, 0)
	psi.pmtData.pcrPid = pcrPid
	psi.pmtData.programInfo = programInfo
	psi.pmtData.pes = elements
	return psi
}

// NewGenericSection 长语法的section，body为last_section_number之后、CRC_32之前的部分
func NewGenericSection(tableId uint8, tableIdExtension uint16, version uint8, sectionNumber, lastSectionNumber uint8, body []byte) *PsiSection {
	psi := newLongSection(tableId, tableIdExtension, version, sectionNumber, lastSectionNumber)
	psi.body = body
	return psi
}

// NewShortSection 短语法的section，比如TDT（没有CRC_32）、TOT（有CRC_32）
func NewShortSection(tableId uint8, body []byte, hasCrc bool) *PsiSection {
	return &PsiSection{
		header: PsiSectionHeader{
			TableId: tableId,
		},
		hasCrc: hasCrc,
		body:   body,
	}
}

// Pack 生成完整的section，不包括pointer_field
func (psi *PsiSection) Pack() []byte {
	sectionLength := psi.calcPsiSectionLength()
	section := make([]byte, psiShortHeaderLength+int(sectionLength))
	bw := nazabits.NewBitWriter(section)

	psi.writePsiTableHeader(&bw, sectionLength)
	pos := psiShortHeaderLength
	if psi.header.SectionSyntaxIndicator == 1 {
		psi.writePsiTableSyntaxSectionHeader(&bw)
		pos = psiLongHeaderLength
	}

	switch {
	case psi.body != nil:
		copy(section[pos:], psi.body)
	case psi.header.TableId == TsPsiIdPas:
		psi.writePatSection(&bw)
	case psi.header.TableId == TsPsiIdPms:
		psi.writePmtSection(&bw)
	}

	if psi.hasCrc {
		appendCrc32(section)
	}
	return section
}

func newLongSection(tableId uint8, tableIdExtension uint16, version uint8, sectionNumber, lastSectionNumber uint8) *PsiSection {
	return &PsiSection{
		header: PsiSectionHeader{
			TableId:                tableId,
			SectionSyntaxIndicator: 1,
			TableIdExtension:       tableIdExtension,
			VersionNumber:          version,
			CurrentNextIndicator:   1,
			SectionNumber:          sectionNumber,
			LastSectionNumber:      lastSectionNumber,
		},
		hasCrc: true,
	}
}

func (psi *PsiSection) writePsiTableHeader(bw *nazabits.BitWriter, sectionLength uint16) {
	bw.WriteBits8(8, psi.header.TableId)
	bw.WriteBit(psi.header.SectionSyntaxIndicator)
	bw.WriteBit(0)
	bw.WriteBits8(2, 0xff)
	bw.WriteBits16(12, sectionLength)
}

func (psi *PsiSection) writePsiTableSyntaxSectionHeader(bw *nazabits.BitWriter) {
	bw.WriteBits16(16, psi.header.TableIdExtension)
	bw.WriteBits8(2, 0xff)
	bw.WriteBits8(5, psi.header.VersionNumber)
	bw.WriteBit(psi.header.CurrentNextIndicator)
	bw.WriteBits8(8, psi.header.SectionNumber)
	bw.WriteBits8(8, psi.header.LastSectionNumber)
}

func (psi *PsiSection) calcPsiSectionLength() (length uint16) {
	if psi.header.SectionSyntaxIndicator == 1 {
		// Table ID extension(16 bits)+Reserved bits(2 bits)+Version number(5 bits)+Current next Indicator(1 bit)+Section number(8 bits)+Last section number(8 bits)
		length += 5
	}

	switch {
	case psi.body != nil:
		length += uint16(len(psi.body))
	case psi.header.TableId == TsPsiIdPas:
		length += psi.calcPatSectionLength()
	case psi.header.TableId == TsPsiIdPms:
		length += psi.calcPmtSectionLength()
	}

	if psi.hasCrc {
		length += crc32Length
	}
	return
}

func (psi *PsiSection) calcPatSectionLength() uint16 {
	return uint16(4 * len(psi.patData.pes))
}

func (psi *PsiSection) calcPmtSectionLength() uint16 {
	// Reserved bits(3 bits)+PCR PID(13 bits)+Reserved bits(4 bits)+Program info length(12 bits)
	length := 4 + calcDescriptorsLength(psi.pmtData.programInfo)
	for _, pe := range psi.pmtData.pes {
		length += 5 + calcDescriptorsLength(pe.Descriptors)
	}
	return length
}

func (psi *PsiSection) writePatSection(bw *nazabits.BitWriter) {
	for _, pe := range psi.patData.pes {
		bw.WriteBits16(16, pe.ProgramNumber)
		bw.WriteBits8(3, 0xff)
		bw.WriteBits16(13, pe.Pid)
	}
}

func (psi *PsiSection) writePmtSection(bw *nazabits.BitWriter) {
	bw.WriteBits8(3, 0xff)
	bw.WriteBits16(13, psi.pmtData.pcrPid)
	writeDescriptorsWithLength(bw, psi.pmtData.programInfo)

	for _, pe := range psi.pmtData.pes {
		bw.WriteBits8(8, pe.StreamType)
		bw.WriteBits8(3, 0xff)
		bw.WriteBits16(13, pe.Pid)
		writeDescriptorsWithLength(bw, pe.Descriptors)
	}
}

func calcDescriptorsLength(ds []Descriptor) uint16 {
	length := uint16(0)
	for _, d := range ds {
		length += 2 + uint16(len(d.payload()))
	}
	return length
}

func writeDescriptorsWithLength(bw *nazabits.BitWriter, ds []Descriptor) {
	bw.WriteBits8(4, 0xff)
	bw.WriteBits16(12, calcDescriptorsLength(ds))
	for _, d := range ds {
		payload := d.payload()
		bw.WriteBits8(8, d.Tag)
		bw.WriteBits8(8, uint8(len(payload)))
		for _, b := range payload {
			bw.WriteBits8(8, b)
		}
	}
}

// payload 优先使用Data，没有时根据tag由结构化字段生成
func (d *Descriptor) payload() []byte {
	if d.Data != nil {
		return d.Data
	}
	switch d.Tag {
	case DescriptorTagRegistration:
		b := make([]byte, 4+len(d.Registration.AdditionalIdentificationInfo))
		bele.BePutUint32(b, d.Registration.FormatIdentifier)
		copy(b[4:], d.Registration.AdditionalIdentificationInfo)
		return b
	case DescriptorTagExtension:
		return append([]byte{d.Extension.Tag}, d.Extension.Unknown...)
	}
	return nil
}

// PacketizeSection 把一个完整的section切分成TS Packet，首个packet带pointer_field，最后一个packet用0xFF填充
//
// @param cc: 输入输出参数，每生成一个packet加1
func PacketizeSection(pid uint16, cc *uint8, section []byte) []byte {
	data := make([]byte, 1+len(section))
	copy(data[1:], section)

	var out []byte
	for first := true; len(data) > 0 || first; first = false {
		packet := make([]byte, TsPacketSize)
		packet[0] = syncByte
		packet[1] = uint8(pid>>8) & 0x1F
		if first {
			packet[1] |= 0x40
		}
		packet[2] = uint8(pid)
		packet[3] = 0x10 | (*cc & 0x0F)
		*cc++

		n := copy(packet[4:], data)
		for i := 4 + n; i < TsPacketSize; i++ {
			packet[i] = 0xFF
		}
		data = data[n:]
		out = append(out, packet...)
	}
	return out
}
