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
	"context"
	"errors"
	"testing"

	"github.com/asticode/go-astits"
	"github.com/q191201771/m2ts/pkg/mpegts"
	"github.com/q191201771/naza/pkg/assert"
)

// 自己打包的流用astits解析
func TestCrossCheck_AstitsDemux(t *testing.T) {
	b := newTsBuilder()
	declareProgram(b, videoEs, audioEs)
	raws := make(map[uint16][][]byte)
	for i := 0; i < 5; i++ {
		v := avcP(100 + i*400)
		a := adtsFrames(50 + i*30)
		b.frame(testVideoPid, mpegts.StreamIdVideo, uint64(i)*3600+90000, uint64(i)*3600+90000, i == 0, v)
		b.frame(testAudioPid, mpegts.StreamIdAudio, uint64(i)*1920+90000, uint64(i)*1920+90000, false, a)
		raws[testVideoPid] = append(raws[testVideoPid], v)
		raws[testAudioPid] = append(raws[testAudioPid], a)
	}

	// 不同PID之间的输出顺序取决于astits内部实现，按PID分别比较
	dmx := astits.NewDemuxer(context.Background(), bytes.NewReader(b.bytes()))
	got := make(map[uint16][][]byte)
	for {
		d, err := dmx.NextData()
		if err != nil {
			assert.Equal(t, true, errors.Is(err, astits.ErrNoMorePackets))
			break
		}
		if d.PMT != nil {
			assert.Equal(t, testVideoPid, d.PMT.PCRPID)
			assert.Equal(t, 2, len(d.PMT.ElementaryStreams))
		}
		if d.PES == nil {
			continue
		}
		pid := d.FirstPacket.Header.PID
		got[pid] = append(got[pid], d.PES.Data)
		assert.IsNotNil(t, d.PES.Header.OptionalHeader.PTS)
	}
	assert.Equal(t, raws, got)
}

// astits打包的流用Demuxer解析
func TestCrossCheck_AstitsMux(t *testing.T) {
	var buf bytes.Buffer
	mux := astits.NewMuxer(context.Background(), &buf)
	err := mux.AddElementaryStream(astits.PMTElementaryStream{
		ElementaryPID: testVideoPid,
		StreamType:    astits.StreamTypeH264Video,
	})
	assert.Equal(t, nil, err)
	mux.SetPCRPID(testVideoPid)

	var raws [][]byte
	for i := 0; i < 4; i++ {
		raw := avcP(200 + i*500)
		if i == 0 {
			raw = avcIdr(200)
		}
		_, err = mux.WriteData(&astits.MuxerData{
			PID: testVideoPid,
			AdaptationField: &astits.PacketAdaptationField{
				RandomAccessIndicator: i == 0,
			},
			PES: &astits.PESData{
				Header: &astits.PESHeader{
					OptionalHeader: &astits.PESOptionalHeader{
						MarkerBits:      2,
						PTSDTSIndicator: astits.PTSDTSIndicatorOnlyPTS,
						PTS:             &astits.ClockReference{Base: int64(90000 + i*3600)},
					},
					StreamID: mpegts.StreamIdVideo,
				},
				Data: raw,
			},
		})
		assert.Equal(t, nil, err)
		raws = append(raws, raw)
	}

	var r eventRecorder
	d := mpegts.NewDemuxer(r.onEvent)
	assert.Equal(t, nil, d.ProcessData(buf.Bytes()))
	assert.Equal(t, nil, d.Flush())

	assert.Equal(t, mpegts.EventPatFound, r.types[0])
	assert.Equal(t, 1, r.count(mpegts.EventPmtFound))
	assert.Equal(t, len(raws), len(r.pes))
	for i, pes := range r.pes {
		assert.Equal(t, raws[i], pes.Data)
		assert.Equal(t, uint64(90000+i*3600), pes.Pts)
	}
	assert.Equal(t, true, r.pes[0].Flags&mpegts.PesFlagFrameI != 0)
	assert.Equal(t, true, r.pes[1].Flags&mpegts.PesFlagFrameP != 0)
	assert.Equal(t, uint64(0), d.Stats().CcErrors.Load())
}
