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
	"github.com/q191201771/naza/pkg/nazabits"
)

// ------------------------------------------------
// <iso13818-1.pdf> <2.4.3.2> <page 36/174>
// sync_byte                    [8b]  * always 0x47
// transport_error_indicator    [1b]
// payload_unit_start_indicator [1b]
// transport_priority           [1b]
// PID                          [13b] **
// transport_scrambling_control [2b]
// adaptation_field_control     [2b]
// continuity_counter           [4b]  *
// ------------------------------------------------
type TsPacketHeader struct {
	Sync             uint8
	Err              uint8
	PayloadUnitStart uint8
	Prio             uint8
	Pid              uint16
	Scra             uint8
	Adaptation       uint8
	Cc               uint8
}

// ----------------------------------------------------------
// <iso13818-1.pdf> <Table 2-6> <page 40/174>
// adaptation_field_length              [8b] * 不包括自己这1字节
// discontinuity_indicator              [1b]
// random_access_indicator              [1b]
// elementary_stream_priority_indicator [1b]
// PCR_flag                             [1b]
// OPCR_flag                            [1b]
// splicing_point_flag                  [1b]
// transport_private_data_flag          [1b]
// adaptation_field_extension_flag      [1b] *
// -----if PCR_flag == 1-----
// program_clock_reference_base         [33b]
// reserved                             [6b]
// program_clock_reference_extension    [9b] ******
// -----if OPCR_flag == 1-----
// original_program_clock_reference_base      [33b]
// reserved                                   [6b]
// original_program_clock_reference_extension [9b] ******
// -----if splicing_point_flag == 1-----
// splice_countdown                     [8b] *
// -----if transport_private_data_flag == 1-----
// transport_private_data_length        [8b] *
// private_data_byte                    [n*8b]
// -----if adaptation_field_extension_flag == 1-----
// adaptation_field_extension_length    [8b] *
// ...                                  [n*8b]
// -----
// stuffing_byte                        [n*8b] always 0xFF
// ----------------------------------------------------------
type TsPacketAdaptation struct {
	Length uint8

	Discontinuity     uint8
	RandomAccess      uint8
	EsPriority        uint8
	PcrFlag           uint8
	OpcrFlag          uint8
	SplicingPointFlag uint8
	PrivateDataFlag   uint8
	ExtensionFlag     uint8

	PcrBase  uint64
	PcrExt   uint16
	OpcrBase uint64
	OpcrExt  uint16

	SpliceCountdown int8
	PrivateData     []byte
	Extension       []byte // 不包括adaptation_field_extension_length这1字节

	StuffingLength int
}

// TsPacket
//
// 注意，Payload 以及 TsPacketAdaptation 中的切片都引用解析时传入的内存块
type TsPacket struct {
	Header     TsPacketHeader
	Adaptation *TsPacketAdaptation // adaptation_field_control为1时为nil
	Payload    []byte              // 没有payload时为长度为0的切片
}

// ParseTsPacketHeader 解析4字节TS Packet header，调用方保证长度
func ParseTsPacketHeader(b []byte) (h TsPacketHeader) {
	br := nazabits.NewBitReader(b)
	h.Sync, _ = br.ReadBits8(8)
	h.Err, _ = br.ReadBits8(1)
	h.PayloadUnitStart, _ = br.ReadBits8(1)
	h.Prio, _ = br.ReadBits8(1)
	h.Pid, _ = br.ReadBits16(13)
	h.Scra, _ = br.ReadBits8(2)
	h.Adaptation, _ = br.ReadBits8(2)
	h.Cc, _ = br.ReadBits8(4)
	return
}

// ParseTsPacketAdaptation
//
// @param b: 从adaptation_field_length开始
func ParseTsPacketAdaptation(b []byte) (f TsPacketAdaptation, err error) {
	if len(b) < 1 {
		return f, base.NewErrShortBuffer(1, len(b), "adaptation field")
	}
	f.Length = b[0]
	if int(f.Length)+1 > len(b) {
		return f, base.NewErrMpegtsAdaptationField(0, int(f.Length))
	}
	// adaptation_field_length为0是合法的，只用来填充1字节
	if f.Length == 0 {
		return
	}

	body := b[1 : 1+int(f.Length)]
	br := nazabits.NewBitReader(body)
	f.Discontinuity, _ = br.ReadBits8(1)
	f.RandomAccess, _ = br.ReadBits8(1)
	f.EsPriority, _ = br.ReadBits8(1)
	f.PcrFlag, _ = br.ReadBits8(1)
	f.OpcrFlag, _ = br.ReadBits8(1)
	f.SplicingPointFlag, _ = br.ReadBits8(1)
	f.PrivateDataFlag, _ = br.ReadBits8(1)
	f.ExtensionFlag, _ = br.ReadBits8(1)
	pos := 1

	if f.PcrFlag == 1 {
		if pos+6 > len(body) {
			return f, base.NewErrMpegtsAdaptationField(0, int(f.Length))
		}
		f.PcrBase, f.PcrExt = readPcr(body[pos:])
		pos += 6
	}
	if f.OpcrFlag == 1 {
		if pos+6 > len(body) {
			return f, base.NewErrMpegtsAdaptationField(0, int(f.Length))
		}
		f.OpcrBase, f.OpcrExt = readPcr(body[pos:])
		pos += 6
	}
	if f.SplicingPointFlag == 1 {
		if pos+1 > len(body) {
			return f, base.NewErrMpegtsAdaptationField(0, int(f.Length))
		}
		f.SpliceCountdown = int8(body[pos])
		pos++
	}
	if f.PrivateDataFlag == 1 {
		if pos+1 > len(body) || pos+1+int(body[pos]) > len(body) {
			return f, base.NewErrMpegtsAdaptationField(0, int(f.Length))
		}
		l := int(body[pos])
		f.PrivateData = body[pos+1 : pos+1+l]
		pos += 1 + l
	}
	if f.ExtensionFlag == 1 {
		if pos+1 > len(body) || pos+1+int(body[pos]) > len(body) {
			return f, base.NewErrMpegtsAdaptationField(0, int(f.Length))
		}
		l := int(body[pos])
		f.Extension = body[pos+1 : pos+1+l]
		pos += 1 + l
	}
	f.StuffingLength = len(body) - pos
	return
}

// Pcr 27MHz
func (f *TsPacketAdaptation) Pcr() uint64 {
	return f.PcrBase*300 + uint64(f.PcrExt)
}

// Opcr 27MHz
func (f *TsPacketAdaptation) Opcr() uint64 {
	return f.OpcrBase*300 + uint64(f.OpcrExt)
}

// ParseTsPacket 解析一个完整的188字节TS Packet
//
// transport_error_indicator置位的packet依然按结构解析，是否丢弃由调用方决定
//
// @param b: 函数返回后，TsPacket 中的切片依然引用b
func ParseTsPacket(b []byte) (pkt TsPacket, err error) {
	if len(b) < TsPacketSize {
		return pkt, base.NewErrShortBuffer(TsPacketSize, len(b), "ts packet")
	}
	if b[0] != syncByte {
		return pkt, base.NewErrMpegtsSync(0)
	}
	pkt.Header = ParseTsPacketHeader(b)

	pos := 4
	switch pkt.Header.Adaptation {
	case AdaptationFieldControlNo:
		// noop
	case AdaptationFieldControlOnly, AdaptationFieldControlFollowed:
		af, err := ParseTsPacketAdaptation(b[4:TsPacketSize])
		if err != nil {
			return pkt, err
		}
		if pkt.Header.Adaptation == AdaptationFieldControlOnly && af.Length > 183 {
			return pkt, base.NewErrMpegtsAdaptationField(pkt.Header.Adaptation, int(af.Length))
		}
		if pkt.Header.Adaptation == AdaptationFieldControlFollowed && af.Length > 182 {
			return pkt, base.NewErrMpegtsAdaptationField(pkt.Header.Adaptation, int(af.Length))
		}
		pkt.Adaptation = &af
		pos += 1 + int(af.Length)
	default:
		// 保留值，按标准解码器应丢弃payload
		pkt.Payload = b[TsPacketSize:TsPacketSize]
		return pkt, nil
	}

	if pkt.Header.Adaptation == AdaptationFieldControlOnly {
		pos = TsPacketSize
	}
	pkt.Payload = b[pos:TsPacketSize]
	return pkt, nil
}

func (pkt *TsPacket) discontinuity() bool {
	return pkt.Adaptation != nil && pkt.Adaptation.Discontinuity == 1
}

func (pkt *TsPacket) randomAccess() bool {
	return pkt.Adaptation != nil && pkt.Adaptation.RandomAccess == 1
}

// Pack 把 TsPacket 序列化成188字节，写入out
//
// adaptation field的长度以 TsPacketAdaptation.Length 为准，字段之后剩余的部分用0xFF填充，
// payload必须正好填满剩余空间
func (pkt *TsPacket) Pack(out []byte) error {
	if len(out) < TsPacketSize {
		return base.NewErrShortBuffer(TsPacketSize, len(out), "ts packet")
	}

	h := pkt.Header
	bw := nazabits.NewBitWriter(out)
	bw.WriteBits8(8, syncByte)
	bw.WriteBit(h.Err)
	bw.WriteBit(h.PayloadUnitStart)
	bw.WriteBit(h.Prio)
	bw.WriteBits16(13, h.Pid)
	bw.WriteBits8(2, h.Scra)
	bw.WriteBits8(2, h.Adaptation)
	bw.WriteBits8(4, h.Cc)

	pos := 4
	if pkt.Adaptation != nil {
		n, err := pkt.Adaptation.pack(out[4:TsPacketSize])
		if err != nil {
			return err
		}
		pos += n
	}

	if len(pkt.Payload) != TsPacketSize-pos {
		return base.NewErrShortBuffer(TsPacketSize-pos, len(pkt.Payload), "ts packet payload")
	}
	copy(out[pos:], pkt.Payload)
	return nil
}

// Size 序列化后的长度，包含adaptation_field_length这1字节
func (f *TsPacketAdaptation) Size() int {
	return 1 + int(f.Length)
}

// FieldsSize 标志位和各可选字段的长度，不包括stuffing
func (f *TsPacketAdaptation) FieldsSize() int {
	n := 1
	if f.PcrFlag == 1 {
		n += 6
	}
	if f.OpcrFlag == 1 {
		n += 6
	}
	if f.SplicingPointFlag == 1 {
		n++
	}
	if f.PrivateDataFlag == 1 {
		n += 1 + len(f.PrivateData)
	}
	if f.ExtensionFlag == 1 {
		n += 1 + len(f.Extension)
	}
	return n
}

func (f *TsPacketAdaptation) pack(out []byte) (int, error) {
	out[0] = f.Length
	if f.Length == 0 {
		return 1, nil
	}
	fieldsSize := f.FieldsSize()
	if fieldsSize > int(f.Length) || 1+int(f.Length) > len(out) {
		return 0, base.NewErrMpegtsAdaptationField(0, int(f.Length))
	}

	body := out[1 : 1+int(f.Length)]
	bw := nazabits.NewBitWriter(body)
	bw.WriteBit(f.Discontinuity)
	bw.WriteBit(f.RandomAccess)
	bw.WriteBit(f.EsPriority)
	bw.WriteBit(f.PcrFlag)
	bw.WriteBit(f.OpcrFlag)
	bw.WriteBit(f.SplicingPointFlag)
	bw.WriteBit(f.PrivateDataFlag)
	bw.WriteBit(f.ExtensionFlag)
	pos := 1
	if f.PcrFlag == 1 {
		packPcr(body[pos:], f.PcrBase, f.PcrExt)
		pos += 6
	}
	if f.OpcrFlag == 1 {
		packPcr(body[pos:], f.OpcrBase, f.OpcrExt)
		pos += 6
	}
	if f.SplicingPointFlag == 1 {
		body[pos] = uint8(f.SpliceCountdown)
		pos++
	}
	if f.PrivateDataFlag == 1 {
		body[pos] = uint8(len(f.PrivateData))
		pos += 1 + copy(body[pos+1:], f.PrivateData)
	}
	if f.ExtensionFlag == 1 {
		body[pos] = uint8(len(f.Extension))
		pos += 1 + copy(body[pos+1:], f.Extension)
	}
	for ; pos < len(body); pos++ {
		body[pos] = 0xFF
	}
	return 1 + int(f.Length), nil
}

// ----- private -------------------------------------------------------------------------------------------------------

// 读取PCR或OPCR，共6字节
func readPcr(b []byte) (pcrBase uint64, pcrExt uint16) {
	pcrBase = uint64(b[0])<<25 | uint64(b[1])<<17 | uint64(b[2])<<9 | uint64(b[3])<<1 | uint64(b[4])>>7
	pcrExt = uint16(b[4]&0x01)<<8 | uint16(b[5])
	return
}

// 写入PCR或OPCR，共6字节，reserved的6位填1
func packPcr(out []byte, pcrBase uint64, pcrExt uint16) {
	out[0] = uint8(pcrBase >> 25)
	out[1] = uint8(pcrBase >> 17)
	out[2] = uint8(pcrBase >> 9)
	out[3] = uint8(pcrBase >> 1)
	out[4] = uint8(pcrBase<<7) | 0x7e | uint8(pcrExt>>8)&0x01
	out[5] = uint8(pcrExt)
}
