// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

// Frame 帧数据，用于打包成mpegts格式的数据
type Frame struct {
	Pts uint64 // =(毫秒 * 90)
	Dts uint64
	Cc  uint8 // continuity_counter of TS Header

	// PID of PES Header
	Pid uint16

	// stream_id of PES Header
	// 音频 mpegts.StreamIdAudio
	// 视频 mpegts.StreamIdVideo
	Sid uint8

	// 音频 全部为false
	// 视频 关键帧为true，非关键帧为false
	// 关键帧的首个packet带上PCR以及random_access_indicator
	Key bool

	// 音频AAC 格式为ADTS
	// 视频AVC 格式为Annexb
	Raw []byte
}

// PCR比DTS提前的量，90KHz
const pcrDelay uint64 = 63000

// Pack 把一帧数据打包成PES，再切分成TS packet
//
// 注意，内部会增加 Frame.Cc 的值.
//
// @return: 内存块为独立申请，调度结束后，内部不再持有
func (frame *Frame) Pack() []byte {
	data := append(frame.packPesHeader(), frame.Raw...)
	out := make([]byte, 0, (len(data)/(TsPacketSize-4)+2)*TsPacketSize)

	first := true
	for len(data) != 0 {
		frame.Cc++

		pkt := TsPacket{
			Header: TsPacketHeader{
				Sync:       syncByte,
				Pid:        frame.Pid,
				Adaptation: AdaptationFieldControlNo,
				Cc:         frame.Cc & 0x0F,
			},
		}
		if first {
			pkt.Header.PayloadUnitStart = 1
			if frame.Key {
				pkt.Adaptation = &TsPacketAdaptation{
					RandomAccess: 1,
					PcrFlag:      1,
				}
				if frame.Dts > pcrDelay {
					pkt.Adaptation.PcrBase = frame.Dts - pcrDelay
				}
				pkt.Adaptation.Length = uint8(pkt.Adaptation.FieldsSize())
			}
			first = false
		}

		space := TsPacketSize - 4
		if pkt.Adaptation != nil {
			space -= pkt.Adaptation.Size()
		}
		// 最后一个packet，不够的部分在adaptation field中用0xFF填充
		if stuff := space - len(data); stuff > 0 {
			if pkt.Adaptation == nil {
				pkt.Adaptation = &TsPacketAdaptation{Length: uint8(stuff - 1)}
			} else {
				pkt.Adaptation.Length += uint8(stuff)
			}
			space = len(data)
		}
		if pkt.Adaptation != nil {
			pkt.Header.Adaptation = AdaptationFieldControlFollowed
		}

		pkt.Payload = data[:space]
		data = data[space:]

		n := len(out)
		out = out[:n+TsPacketSize]
		_ = pkt.Pack(out[n:])
	}
	return out
}

// -----PES Header------------
// packet_start_code_prefix
// stream_id
// PES_packet_length
// '10'
// PES_scrambling_control    0
// PES_priority              0
// data_alignment_indicator  0
// copyright                 0
// original_or_copy          0
// PTS_DTS_flags
// ESCR_flag                 0
// ES_rate_flag              0
// DSM_trick_mode_flag       0
// additional_copy_info_flag 0
// PES_CRC_flag              0
// PES_extension_flag        0
// PES_header_data_length
// ---------------------------
func (frame *Frame) packPesHeader() []byte {
	headerSize := 5
	flags := uint8(0x80)
	if frame.Dts != frame.Pts {
		headerSize += 5
		flags |= 0x40
	}

	// PES Header剩余3字节 + PTS/PTS长度 + 整个帧的长度
	pesSize := len(frame.Raw) + headerSize + 3
	if pesSize > 0xFFFF {
		pesSize = 0
	}

	out := make([]byte, pesStartCodeLength+pesOptionalLength+headerSize, pesStartCodeLength+pesOptionalLength+headerSize+len(frame.Raw))
	out[2] = 0x01
	out[3] = frame.Sid
	out[4] = uint8(pesSize >> 8)
	out[5] = uint8(pesSize)
	out[6] = 0x80
	out[7] = flags
	out[8] = uint8(headerSize)
	packPts(out[9:], flags>>6, frame.Pts)
	if frame.Dts != frame.Pts {
		packPts(out[14:], 1, frame.Dts)
	}
	return out
}

// 注意，除PTS外，DTS也使用这个函数打包
func packPts(out []byte, fb uint8, pts uint64) {
	var val uint64
	out[0] = (fb << 4) | (uint8(pts>>29) & 0x0E) | 1

	val = (((pts >> 15) & 0x7FFF) << 1) | 1
	out[1] = uint8(val >> 8)
	out[2] = uint8(val)

	val = ((pts & 0x7FFF) << 1) | 1
	out[3] = uint8(val >> 8)
	out[4] = uint8(val)
}
