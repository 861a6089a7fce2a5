// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

// 在PES数据之前处理，同一个packet里先上报PES_PCR
func (d *Demuxer) handlePcr(pid uint16, s *Stream, af *TsPacketAdaptation) {
	var p *Program
	if s != nil && s.IsPes() {
		p = s.Program
	} else {
		// PCR PID上没有绑定PES流，归属到节目中的流
		p = d.findProgramByPcrPid(pid)
		if p == nil {
			return
		}
		s = p.pcrStream()
	}

	pcr := PcrPacket{
		Pcr:           af.Pcr(),
		Discontinuity: af.Discontinuity == 1,
		Pid:           pid,
		Stream:        s,
	}
	if p != nil {
		if p.hasLastPcr && isPcrJumpBackward(p.lastPcr, pcr.Pcr) {
			pcr.Discontinuity = true
		}
		p.lastPcr = pcr.Pcr
		p.hasLastPcr = true
	}

	spid := pid
	if s != nil {
		spid = s.Pid
	}
	d.dispatch(&Event{Type: EventPesPcr, Pid: spid, Stream: s, Pcr: &pcr})
}

func (d *Demuxer) findProgramByPcrPid(pid uint16) *Program {
	for _, p := range d.programs {
		if p.PcrPid == pid {
			return p
		}
	}
	return nil
}

// 优先是可以继承PCR的视频流，其次是第一个PES流
func (p *Program) pcrStream() *Stream {
	var first *Stream
	for _, s := range p.Streams {
		if !s.IsPes() {
			continue
		}
		if s.Flags&StreamFlagInheritPcr != 0 {
			return s
		}
		if first == nil {
			first = s
		}
	}
	return first
}

// 回退超过200毫秒，并且不是在 PcrMax 附近回绕
func isPcrJumpBackward(last, curr uint64) bool {
	if curr >= last {
		return false
	}
	diff := last - curr
	return diff > pcrBackwardThreshold && diff < PcrMax/2
}
