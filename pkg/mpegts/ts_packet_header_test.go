// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/q191201771/m2ts/pkg/base"
	"github.com/q191201771/m2ts/pkg/mpegts"
	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/nazalog"
)

func TestParseTsPacket(t *testing.T) {
	b := newTsBuilder()
	out := b.frame(testVideoPid, mpegts.StreamIdVideo, 90000, 90000, true, avcIdr(300))
	assert.Equal(t, 2*mpegts.TsPacketSize, len(out))

	pkt, err := mpegts.ParseTsPacket(out)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(0x47), pkt.Header.Sync)
	assert.Equal(t, uint8(1), pkt.Header.PayloadUnitStart)
	assert.Equal(t, testVideoPid, pkt.Header.Pid)
	assert.Equal(t, uint8(mpegts.AdaptationFieldControlFollowed), pkt.Header.Adaptation)
	assert.Equal(t, uint8(0), pkt.Header.Cc)
	assert.IsNotNil(t, pkt.Adaptation)
	assert.Equal(t, uint8(7), pkt.Adaptation.Length)
	assert.Equal(t, uint8(1), pkt.Adaptation.RandomAccess)
	assert.Equal(t, uint8(1), pkt.Adaptation.PcrFlag)
	assert.Equal(t, uint64(27000), pkt.Adaptation.PcrBase)
	assert.Equal(t, uint64(27000*300), pkt.Adaptation.Pcr())
	assert.Equal(t, 176, len(pkt.Payload))

	// 最后一个packet用adaptation field填充
	pkt, err = mpegts.ParseTsPacket(out[mpegts.TsPacketSize:])
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(0), pkt.Header.PayloadUnitStart)
	assert.Equal(t, uint8(1), pkt.Header.Cc)
	assert.Equal(t, 314-176, len(pkt.Payload))
	assert.Equal(t, int(pkt.Adaptation.Length)-1, pkt.Adaptation.StuffingLength)

	_, err = mpegts.ParseTsPacket(out[:100])
	assert.Equal(t, true, errors.Is(err, base.ErrShortBuffer))
	_, err = mpegts.ParseTsPacket(out[1:])
	assert.Equal(t, true, errors.Is(err, base.ErrMpegtsSync))
}

func TestParseTsPacket_AdaptationOverflow(t *testing.T) {
	pkt := make([]byte, mpegts.TsPacketSize)
	copy(pkt, []byte{0x47, 0x01, 0x00, 0x30, 183})
	_, err := mpegts.ParseTsPacket(pkt)
	assert.Equal(t, true, errors.Is(err, base.ErrMpegtsAdaptationField))

	// 只有adaptation field时最大183
	pkt[3] = 0x20
	p, err := mpegts.ParseTsPacket(pkt)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(p.Payload))

	// 声明了PCR但是长度不够
	copy(pkt, []byte{0x47, 0x01, 0x00, 0x30, 0x03, 0x10})
	_, err = mpegts.ParseTsPacket(pkt)
	assert.Equal(t, true, errors.Is(err, base.ErrMpegtsAdaptationField))
}

func TestTsPacket_PackAllFields(t *testing.T) {
	payload := bytes.Repeat([]byte{0x3C}, 153)
	in := mpegts.TsPacket{
		Header: mpegts.TsPacketHeader{
			Sync:             0x47,
			PayloadUnitStart: 1,
			Prio:             1,
			Pid:              0x55,
			Adaptation:       mpegts.AdaptationFieldControlFollowed,
			Cc:               9,
		},
		Adaptation: &mpegts.TsPacketAdaptation{
			Length:            30,
			Discontinuity:     1,
			RandomAccess:      1,
			EsPriority:        1,
			PcrFlag:           1,
			OpcrFlag:          1,
			SplicingPointFlag: 1,
			PrivateDataFlag:   1,
			ExtensionFlag:     1,
			PcrBase:           0x1FFFFFFFF,
			PcrExt:            299,
			OpcrBase:          12345,
			OpcrExt:           7,
			SpliceCountdown:   -3,
			PrivateData:       []byte{1, 2, 3},
			Extension:         []byte{0x00},
		},
		Payload: payload,
	}
	assert.Equal(t, 20, in.Adaptation.FieldsSize())

	out := make([]byte, mpegts.TsPacketSize)
	assert.Equal(t, nil, in.Pack(out))

	pkt, err := mpegts.ParseTsPacket(out)
	assert.Equal(t, nil, err)
	assert.Equal(t, in.Header, pkt.Header)
	af := pkt.Adaptation
	assert.Equal(t, uint8(30), af.Length)
	assert.Equal(t, uint64(0x1FFFFFFFF), af.PcrBase)
	assert.Equal(t, uint16(299), af.PcrExt)
	assert.Equal(t, uint64(12345*300+7), af.Opcr())
	assert.Equal(t, int8(-3), af.SpliceCountdown)
	assert.Equal(t, []byte{1, 2, 3}, af.PrivateData)
	assert.Equal(t, []byte{0x00}, af.Extension)
	assert.Equal(t, 10, af.StuffingLength)
	assert.Equal(t, payload, pkt.Payload)

	again := make([]byte, mpegts.TsPacketSize)
	assert.Equal(t, nil, pkt.Pack(again))
	assert.Equal(t, out, again)

	// payload长度和剩余空间不匹配
	in.Payload = payload[1:]
	assert.IsNotNil(t, in.Pack(out))
	// 字段超过了声明的长度
	in.Payload = payload
	in.Adaptation.Length = 10
	assert.IsNotNil(t, in.Pack(out))
}

// 解析再打包，字节完全一致
func TestTsPacket_RoundTrip(t *testing.T) {
	b := newTsBuilder()
	b.pat(0, mpegts.PatProgramElement{ProgramNumber: 1, Pid: testPmtPid})
	info := []mpegts.Descriptor{{Tag: 0x80, Data: bytes.Repeat([]byte{0x5A}, 200)}}
	b.section(testPmtPid, mpegts.NewPmtSection(1, 0, testVideoPid, info, []mpegts.PmtProgramElement{videoEs}).Pack())
	for i, n := range []int{1, 170, 171, 176, 177, 183, 184, 1000} {
		b.frame(testVideoPid, mpegts.StreamIdVideo, uint64(i)*3600+90000, uint64(i)*3600+90000, i%2 == 0, avcIdr(n+6))
		b.frame(testAudioPid, mpegts.StreamIdAudio, uint64(i)*1800, uint64(i)*1800, false, adtsFrames(n))
	}
	b.null()

	stream := b.bytes()
	out := make([]byte, mpegts.TsPacketSize)
	for i := 0; i < len(stream); i += mpegts.TsPacketSize {
		in := stream[i : i+mpegts.TsPacketSize]
		pkt, err := mpegts.ParseTsPacket(in)
		assert.Equal(t, nil, err)
		assert.Equal(t, nil, pkt.Pack(out))
		assert.Equal(t, in, out)
	}
}

func TestPacketizeSection(t *testing.T) {
	section := mpegts.NewGenericSection(0x80, 7, 2, 0, 0, bytes.Repeat([]byte{0x01}, 400)).Pack()
	assert.Equal(t, 412, len(section))

	cc := uint8(14)
	out := mpegts.PacketizeSection(0x1000, &cc, section)
	assert.Equal(t, 3*mpegts.TsPacketSize, len(out))
	assert.Equal(t, uint8(17), cc)

	var got []byte
	for i := 0; i < len(out); i += mpegts.TsPacketSize {
		pkt, err := mpegts.ParseTsPacket(out[i : i+mpegts.TsPacketSize])
		assert.Equal(t, nil, err)
		assert.Equal(t, uint16(0x1000), pkt.Header.Pid)
		assert.Equal(t, uint8(14+i/mpegts.TsPacketSize)&0x0F, pkt.Header.Cc)
		if i == 0 {
			assert.Equal(t, uint8(1), pkt.Header.PayloadUnitStart)
			assert.Equal(t, uint8(0), pkt.Payload[0])
			got = append(got, pkt.Payload[1:]...)
		} else {
			assert.Equal(t, uint8(0), pkt.Header.PayloadUnitStart)
			got = append(got, pkt.Payload...)
		}
	}
	assert.Equal(t, section, got[:len(section)])
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, len(got)-len(section)), got[len(section):])
}

// ---------------------------------------------------------------------------------------------------------------------

func FuzzParseTsPacket(f *testing.F) {
	stream := buildBasicStream()
	for i := 0; i < len(stream); i += mpegts.TsPacketSize {
		f.Add(stream[i : i+mpegts.TsPacketSize])
	}
	f.Add([]byte{0x47})
	f.Add(bytes.Repeat([]byte{0x47}, mpegts.TsPacketSize))

	f.Fuzz(func(t *testing.T, data []byte) {
		pkt, err := mpegts.ParseTsPacket(data)
		if err != nil {
			return
		}
		if len(pkt.Payload) > mpegts.TsPacketSize-4 {
			t.Fatalf("payload too long. len=%d", len(pkt.Payload))
		}
		// 能解析的packet重新打包不应该panic
		out := make([]byte, mpegts.TsPacketSize)
		_ = pkt.Pack(out)
	})
}

func FuzzDemuxerProcessData(f *testing.F) {
	f.Add(buildBasicStream())
	f.Add([]byte{0x47, 0x40, 0x00, 0x10, 0x00, 0x00, 0xBF, 0xFF})
	f.Add(bytes.Repeat([]byte{0x47, 0x00}, 500))

	// 异常输入会打大量日志，拖慢fuzz
	old := mpegts.Log.GetOption()
	_ = mpegts.Log.Init(func(option *nazalog.Option) {
		*option = old
		option.Level = nazalog.LevelError
	})
	f.Cleanup(func() {
		_ = mpegts.Log.Init(func(option *nazalog.Option) {
			*option = old
		})
	})

	f.Fuzz(func(t *testing.T, data []byte) {
		d := mpegts.NewDemuxer(func(evt *mpegts.Event) {
			_ = evt.Type.String()
		}, func(option *mpegts.DemuxerOption) {
			option.EnableNit = true
			option.EnableEit = true
			option.EnableTdtTot = true
		})
		_ = d.ProcessData(data)
		_ = d.Flush()
	})
}
