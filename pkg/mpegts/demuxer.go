// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"encoding/hex"
	"fmt"

	"github.com/q191201771/m2ts/pkg/base"
	"github.com/q191201771/naza/pkg/nazalog"
)

// Demuxer 把TS字节流解复用成表、section、PES以及PCR事件
//
// 非协程安全，所有方法需要在同一个协程中调用，或者由调用方串行化。
// Stats 可以在其他协程中读取
type Demuxer struct {
	uniqueKey string
	option    DemuxerOption
	onEvent   OnEvent

	streams  [PidMax + 1]*Stream
	programs []*Program
	nitPid   uint16 // PAT中program_number为0的条目

	remain []byte // 不足一个packet的尾部数据，总是以0x47开头
	synced bool

	stats       Stats
	logDump     base.LogDump
	dispatching bool
}

// NewDemuxer
//
// @param onEvent: 可以为nil，此时只做解析和统计
func NewDemuxer(onEvent OnEvent, modOptions ...ModDemuxerOption) *Demuxer {
	option := defaultDemuxerOption
	for _, fn := range modOptions {
		fn(&option)
	}
	if option.StreamKindTable == nil {
		option.StreamKindTable = DefaultStreamKindTable
	}
	if option.MaxPesSize <= 0 {
		option.MaxPesSize = defaultDemuxerOption.MaxPesSize
	}

	d := &Demuxer{
		uniqueKey: base.GenUkTsDemuxer(),
		option:    option,
		onEvent:   onEvent,
		remain:    make([]byte, 0, TsPacketSize),
		logDump:   base.NewLogDump(Log, 1),
	}
	d.streams[PidPat] = newSectionStream(d, PidPat, StreamFlagPsi, sectionModeAggregate, d.onPatSection)
	Log.Infof("[%s] lifecycle new mpegts demuxer. demuxer=%p", d.uniqueKey, d)
	return d
}

// ProcessData 输入任意长度的TS数据
//
// 不足一个packet的尾部数据缓存在内部，和下一次输入拼接。
// 丢失同步时跳过数据直到找到下一个同步字节，并返回一次 base.ErrMpegtsSync ，后续输入继续正常解析
//
// @param b: 函数返回后内部不再持有
func (d *Demuxer) ProcessData(b []byte) error {
	if d.dispatching {
		return base.ErrMpegtsReentrant
	}

	if len(d.remain) != 0 {
		n := min(TsPacketSize-len(d.remain), len(b))
		d.remain = append(d.remain, b[:n]...)
		b = b[n:]
		if len(d.remain) < TsPacketSize {
			return nil
		}
		d.processPacket(d.remain)
		d.remain = d.remain[:0]
	}

	skipped := 0
	for len(b) != 0 {
		if b[0] != syncByte || (!d.synced && !isSyncCandidate(b)) {
			d.synced = false
			n := findSync(b)
			skipped += n
			b = b[n:]
			continue
		}
		d.synced = true
		if len(b) < TsPacketSize {
			d.remain = append(d.remain[:0], b...)
			break
		}
		d.processPacket(b[:TsPacketSize])
		b = b[TsPacketSize:]
	}

	if skipped != 0 {
		d.stats.ResyncBytes.Add(uint64(skipped))
		Log.Warnf("[%s] lost sync, skipped %d bytes.", d.uniqueKey, skipped)
		return base.NewErrMpegtsSync(skipped)
	}
	return nil
}

// Flush 输入结束时调用，输出所有长度不限的PES
//
// 如果还有不足一个packet的数据，丢弃并返回 base.ErrMpegtsTruncated
func (d *Demuxer) Flush() error {
	if d.dispatching {
		return base.ErrMpegtsReentrant
	}
	for _, s := range d.streams {
		if s != nil && s.pes != nil && s.pes.mode != FramingModeSkip {
			s.pes.flush(true)
		}
	}
	if n := len(d.remain); n != 0 {
		d.remain = d.remain[:0]
		return base.NewErrMpegtsTruncated(n)
	}
	return nil
}

// ResetParsers 丢弃所有未完成的section、表以及PES，保留节目和流的绑定关系
//
// 比如切换频道或者输入不连续时调用
func (d *Demuxer) ResetParsers() {
	d.remain = d.remain[:0]
	d.synced = false
	for _, s := range d.streams {
		if s == nil {
			continue
		}
		if s.sec != nil {
			s.sec.reset()
		}
		if s.pes != nil {
			s.pes.reset()
		}
	}
	for _, p := range d.programs {
		p.hasLastPcr = false
	}
}

// SetFramingMode 运行时修改PES流的输出方式，可以在回调中调用
func (d *Demuxer) SetFramingMode(pid uint16, mode FramingMode) error {
	if pid > PidMax || d.streams[pid] == nil {
		return base.NewErrMpegtsPid(base.ErrMpegtsPidUnbound, pid)
	}
	s := d.streams[pid]
	if s.pes == nil {
		return base.NewErrMpegtsPid(base.ErrMpegtsNotPesStream, pid)
	}
	s.pes.setMode(mode)
	return nil
}

// Programs 当前的节目列表，包括等待销毁的节目
//
// 返回的是拷贝，Program本身只读，不要修改
func (d *Demuxer) Programs() []*Program {
	ret := make([]*Program, len(d.programs))
	copy(ret, d.programs)
	return ret
}

// Stream PID上绑定的流，没有时返回nil
func (d *Demuxer) Stream(pid uint16) *Stream {
	if pid > PidMax {
		return nil
	}
	return d.streams[pid]
}

func (d *Demuxer) Stats() *Stats {
	return &d.stats
}

func (d *Demuxer) UniqueKey() string {
	return d.uniqueKey
}

// ----- private -------------------------------------------------------------------------------------------------------

func (d *Demuxer) processPacket(b []byte) {
	d.stats.Packets.Increment()

	pkt, err := ParseTsPacket(b)
	if err != nil {
		d.stats.PacketErrors.Increment()
		d.debugf("parse ts packet failed. err=%+v", err)
		if d.logDump.ShouldDump() {
			d.logDump.Outf("[%s] invalid ts packet:\n%s", d.uniqueKey, hex.Dump(b))
		}
		return
	}
	if pkt.Header.Err == 1 {
		d.stats.TransportErrors.Increment()
	}

	pid := pkt.Header.Pid
	s := d.route(pid)

	if pkt.Header.Err == 0 && pkt.Adaptation != nil && pkt.Adaptation.PcrFlag == 1 {
		d.handlePcr(pid, s, pkt.Adaptation)
		// 回调中可能修改了绑定关系
		s = d.streams[pid]
	}
	if s == nil {
		return
	}
	if pkt.Header.Scra != 0 {
		d.stats.Scrambled.Increment()
		return
	}

	if s.sec != nil {
		s.sec.process(&pkt)
	} else if s.pes != nil {
		s.pes.process(&pkt)
	}
}

// route PID上绑定的流，保留PID上的默认过滤器在第一次收到数据时安装
func (d *Demuxer) route(pid uint16) *Stream {
	if s := d.streams[pid]; s != nil {
		return s
	}
	if pid > PidReservedEnd && (pid != d.nitPid || pid == PidNull) {
		return nil
	}

	var s *Stream
	switch {
	case pid == PidCat && d.option.EnableCat:
		s = newSectionStream(d, pid, StreamFlagPsi, sectionModeAggregate, d.onCatSection)
	case (pid == PidNit || pid == d.nitPid) && d.option.EnableNit:
		s = newSectionStream(d, pid, StreamFlagPsi, sectionModeAggregate, d.onNitSection)
	case pid == PidSdt && d.option.EnableSdt:
		s = newSectionStream(d, pid, StreamFlagPsi, sectionModeAggregate, d.onSdtSection)
	case pid == PidEit && d.option.EnableEit:
		s = newSectionStream(d, pid, StreamFlagPsi, sectionModeIndividual, d.onIndividualSection)
	case pid == PidTdt && d.option.EnableTdtTot:
		s = newSectionStream(d, pid, StreamFlagPsi, sectionModeIndividual, d.onIndividualSection)
	default:
		return nil
	}
	Log.Debugf("[%s] default filter installed. pid=%d", d.uniqueKey, pid)
	d.streams[pid] = s
	return s
}

func (d *Demuxer) dispatch(evt *Event) {
	d.stats.Events[evt.Type].Increment()
	if d.onEvent == nil {
		return
	}
	d.dispatching = true
	defer func() {
		d.dispatching = false
	}()
	d.onEvent(evt)
}

func (d *Demuxer) debugf(format string, v ...interface{}) {
	if Log.GetOption().Level > nazalog.LevelDebug {
		return
	}
	Log.Out(nazalog.LevelDebug, 2, fmt.Sprintf("[%s] ", d.uniqueKey)+fmt.Sprintf(format, v...))
}

// 0x47，并且188字节之后也是0x47（或者数据已经不够188字节）
func isSyncCandidate(b []byte) bool {
	return b[0] == syncByte && (len(b) <= TsPacketSize || b[TsPacketSize] == syncByte)
}

// @return: 下一个同步位置的偏移，找不到时返回len(b)
func findSync(b []byte) int {
	for i := 1; i < len(b); i++ {
		if isSyncCandidate(b[i:]) {
			return i
		}
	}
	return len(b)
}
