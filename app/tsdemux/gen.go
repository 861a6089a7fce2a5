// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"io"

	"github.com/q191201771/m2ts/pkg/aac"
	"github.com/q191201771/m2ts/pkg/mpegts"
)

const (
	genPmtPid   uint16 = 0x1000
	genVideoPid uint16 = 0x100
	genAudioPid uint16 = 0x101

	genProgramNumber = 1
	genFps           = 25
	genGop           = 25
	genStartDts      = 90000
)

var genAscCtx = aac.AscContext{
	AudioObjectType:        2,
	SamplingFrequencyIndex: aac.AscSamplingFrequencyIndex44100,
	ChannelConfiguration:   2,
}

// SampleGenerator 生成一段H264+AAC的测试流，每个关键帧前重复一次PAT和PMT
type SampleGenerator struct {
	w io.Writer

	patCc uint8
	pmtCc uint8
	video mpegts.Frame
	audio mpegts.Frame
}

func NewSampleGenerator(w io.Writer) *SampleGenerator {
	return &SampleGenerator{
		w: w,
		video: mpegts.Frame{
			Cc:  15,
			Pid: genVideoPid,
			Sid: mpegts.StreamIdVideo,
		},
		audio: mpegts.Frame{
			Cc:  15,
			Pid: genAudioPid,
			Sid: mpegts.StreamIdAudio,
		},
	}
}

// Generate
//
// @param seconds: 生成的时长
func (g *SampleGenerator) Generate(seconds int) error {
	videoFrames := seconds * genFps
	audioFrames := seconds * 44100 / aac.AdtsSamplesPerFrame

	var vi, ai int
	for vi < videoFrames || ai < audioFrames {
		vdts := uint64(genStartDts + vi*90000/genFps)
		adts := uint64(genStartDts + ai*aac.AdtsSamplesPerFrame*90000/44100)
		if vi < videoFrames && (ai >= audioFrames || vdts <= adts) {
			if err := g.writeVideo(vi, vdts); err != nil {
				return err
			}
			vi++
		} else {
			if err := g.writeAudio(ai, adts); err != nil {
				return err
			}
			ai++
		}
	}
	return nil
}

func (g *SampleGenerator) writePsi() error {
	pat := mpegts.NewPatSection(1, 0, []mpegts.PatProgramElement{
		{ProgramNumber: genProgramNumber, Pid: genPmtPid},
	})
	pmt := mpegts.NewPmtSection(genProgramNumber, 0, genVideoPid, nil, []mpegts.PmtProgramElement{
		{StreamType: mpegts.StreamTypeAvc, Pid: genVideoPid},
		{StreamType: mpegts.StreamTypeAac, Pid: genAudioPid},
	})
	if _, err := g.w.Write(mpegts.PacketizeSection(mpegts.PidPat, &g.patCc, pat.Pack())); err != nil {
		return err
	}
	_, err := g.w.Write(mpegts.PacketizeSection(genPmtPid, &g.pmtCc, pmt.Pack()))
	return err
}

func (g *SampleGenerator) writeVideo(i int, dts uint64) error {
	key := i%genGop == 0
	if key {
		if err := g.writePsi(); err != nil {
			return err
		}
	}
	g.video.Pts = dts
	g.video.Dts = dts
	g.video.Key = key
	g.video.Raw = sampleAvcFrame(i, key)
	_, err := g.w.Write(g.video.Pack())
	return err
}

func (g *SampleGenerator) writeAudio(i int, pts uint64) error {
	raw := make([]byte, 200+i%50)
	for j := range raw {
		raw[j] = byte(i + j)
	}
	g.audio.Pts = pts
	g.audio.Dts = pts
	g.audio.Raw = append(genAscCtx.PackAdtsHeader(len(raw)), raw...)
	_, err := g.w.Write(g.audio.Pack())
	return err
}

// 只有NAL头和slice头开头几个字节是有意义的，其余为填充
func sampleAvcFrame(i int, key bool) []byte {
	var head []byte
	size := 800
	if key {
		// AUD, IDR slice(I)
		head = []byte{0, 0, 0, 1, 0x09, 0x10, 0, 0, 0, 1, 0x65, 0x88, 0x84}
		size = 6000
	} else {
		// AUD, non-IDR slice(P)
		head = []byte{0, 0, 0, 1, 0x09, 0x30, 0, 0, 0, 1, 0x41, 0x9a}
	}
	out := make([]byte, size)
	copy(out, head)
	for j := len(head); j < size; j++ {
		out[j] = byte(0x80 | (i+j)&0x7f)
	}
	return out
}
