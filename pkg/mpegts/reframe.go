// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"bytes"
	"errors"

	"github.com/q191201771/m2ts/pkg/aac"
	"github.com/q191201771/m2ts/pkg/avc"
	"github.com/q191201771/m2ts/pkg/base"
	"github.com/q191201771/m2ts/pkg/h2645"
	"github.com/q191201771/m2ts/pkg/hevc"
)

// ReframeOutput reframer的输出
type ReframeOutput interface {
	OnAccessUnit(pkt *PesPacket)
	OnAacConfig(asc []byte, ascCtx aac.AscContext)
}

// Reframer 把一个PES的payload切分成AU，并补充随机访问点、帧类型等标志
//
// pkt以及pkt.Data只在调用期间有效
type Reframer interface {
	Reframe(pkt *PesPacket, out ReframeOutput)
	Reset()
}

type NewReframer func(s *Stream) Reframer

// DefaultReframers 按stream_type选择默认的reframer，可以通过 DemuxerOption.Reframers 替换
var DefaultReframers = map[uint8]NewReframer{
	StreamTypeAvc:        func(s *Stream) Reframer { return &avcReframer{} },
	StreamTypeHevc:       func(s *Stream) Reframer { return &hevcReframer{} },
	StreamTypeMpeg1Video: func(s *Stream) Reframer { return &mpegVideoReframer{} },
	StreamTypeMpeg2Video: func(s *Stream) Reframer { return &mpegVideoReframer{} },
	StreamTypeAac:        func(s *Stream) Reframer { return &adtsReframer{} },
}

// ----- h264 ----------------------------------------------------------------------------------------------------------

type avcReframer struct{}

func (r *avcReframer) Reframe(pkt *PesPacket, out ReframeOutput) {
	sliceFound := false
	h2645.IterateNaluAnnexb(pkt.Data, func(nal []byte) {
		switch avc.ParseNaluType(nal[0]) {
		case avc.NaluTypeIdrSlice:
			pkt.Flags |= PesFlagRap
			fallthrough
		case avc.NaluTypeSlice:
			if sliceFound {
				return
			}
			sliceFound = true
			if st, err := avc.ParseSliceType(nal); err == nil {
				pkt.Flags |= frameFlag(st)
			}
		}
	})
	out.OnAccessUnit(pkt)
}

func (r *avcReframer) Reset() {}

func frameFlag(sliceType uint8) uint32 {
	switch sliceType {
	case avc.SliceTypeI, avc.SliceTypeSI:
		return PesFlagFrameI
	case avc.SliceTypeP, avc.SliceTypeSP:
		return PesFlagFrameP
	case avc.SliceTypeB:
		return PesFlagFrameB
	}
	return 0
}

// ----- h265 ----------------------------------------------------------------------------------------------------------

type hevcReframer struct{}

func (r *hevcReframer) Reframe(pkt *PesPacket, out ReframeOutput) {
	h2645.IterateNaluAnnexb(pkt.Data, func(nal []byte) {
		if hevc.IsIrapNalu(hevc.ParseNaluType(nal[0])) {
			pkt.Flags |= PesFlagRap | PesFlagFrameI
		}
	})
	out.OnAccessUnit(pkt)
}

func (r *hevcReframer) Reset() {}

// ----- mpeg1/2 video -------------------------------------------------------------------------------------------------

var mpegVideoPictureStartCode = []byte{0x0, 0x0, 0x1, 0x0}

type mpegVideoReframer struct{}

// <iso13818-2> picture_header
// picture_start_code  [32b]
// temporal_reference  [10b]
// picture_coding_type [3b] 1=I 2=P 3=B
func (r *mpegVideoReframer) Reframe(pkt *PesPacket, out ReframeOutput) {
	if i := bytes.Index(pkt.Data, mpegVideoPictureStartCode); i >= 0 && i+6 <= len(pkt.Data) {
		switch (pkt.Data[i+5] >> 3) & 0x07 {
		case 1:
			pkt.Flags |= PesFlagFrameI | PesFlagRap
		case 2:
			pkt.Flags |= PesFlagFrameP
		case 3:
			pkt.Flags |= PesFlagFrameB
		}
	}
	out.OnAccessUnit(pkt)
}

func (r *mpegVideoReframer) Reset() {}

// ----- aac adts ------------------------------------------------------------------------------------------------------

// ADTS帧可能跨PES，未消费完的尾部留到下一个PES
const adtsMaxRemain = 8192

type adtsReframer struct {
	asc    []byte
	remain []byte
}

func (r *adtsReframer) Reframe(pkt *PesPacket, out ReframeOutput) {
	data := pkt.Data
	if len(r.remain) != 0 {
		r.remain = append(r.remain, data...)
		data = r.remain
	}

	pts := pkt.Pts
	var frames int
	consumed, err := aac.IterateAdtsFrames(data, func(ctx *aac.AdtsHeaderContext, frame []byte) {
		asc := ctx.AscCtx.Pack()
		if !bytes.Equal(asc, r.asc) {
			r.asc = asc
			out.OnAacConfig(asc, ctx.AscCtx)
		}

		au := *pkt
		au.Data = frame
		au.Pts = pts
		au.Dts = pts
		au.Flags = pkt.Flags | PesFlagRap | PesFlagAuStart | PesFlagAuEnd
		out.OnAccessUnit(&au)

		if sr, err := ctx.AscCtx.GetSamplingFrequency(); err == nil {
			pts += uint64(aac.AdtsSamplesPerFrame * 90000 / sr)
		}
		frames++
	})
	if err != nil && !errors.Is(err, base.ErrShortBuffer) {
		// 不是ADTS，还没有输出过的话原样输出
		r.remain = r.remain[:0]
		if frames == 0 {
			out.OnAccessUnit(pkt)
		}
		return
	}

	left := data[consumed:]
	if len(left) > adtsMaxRemain {
		left = nil
	}
	r.remain = append(r.remain[:0], left...)
}

func (r *adtsReframer) Reset() {
	r.asc = nil
	r.remain = r.remain[:0]
}
