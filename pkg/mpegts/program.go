// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

// Program 由PAT声明、PMT配置的节目
//
// Unknown -> Declared(PAT) -> Configured(PMT) -> Torn down
type Program struct {
	Number  uint16
	PmtPid  uint16
	PcrPid  uint16 // 收到PMT之前为 PidNull
	Streams []*Stream
	Pmt     *Pmt // 最近一次解析出来的PMT，收到PMT之前为nil

	Iod         []byte       // MPEG-4 initial object descriptor，不做解析
	Descriptors []Descriptor // program_info中除IOD以外的描述符

	FirstDts    uint64
	HasFirstDts bool

	pendingTeardown bool
	lastPcr         uint64
	hasLastPcr      bool
}

func (p *Program) IsConfigured() bool {
	return p.Pmt != nil
}

func (p *Program) Stream(pid uint16) *Stream {
	for _, s := range p.Streams {
		if s.Pid == pid {
			return s
		}
	}
	return nil
}

// ----- PAT -----------------------------------------------------------------------------------------------------------

func (d *Demuxer) onPatSection(f *SectionFilter, t *Table, status TableStatus, h *PsiSectionHeader, section []byte) {
	if t.TableId != TsPsiIdPas {
		return
	}

	var pat Pat
	for i, s := range t.Sections {
		p, err := ParsePat(s)
		if err != nil {
			Log.Warnf("[%s] parse pat failed. section=%d, err=%+v", d.uniqueKey, i, err)
			return
		}
		if i == 0 {
			pat = p
			continue
		}
		pat.Programs = append(pat.Programs, p.Programs...)
		if p.NetworkPid != 0 {
			pat.NetworkPid = p.NetworkPid
		}
	}

	switch status {
	case TableStatusFound, TableStatusUpdate:
		d.applyPat(&pat)
	case TableStatusRepeat:
		d.confirmPatRepeat(&pat)
	}

	d.dispatch(&Event{Type: tableEvent(EventPatFound, status), Pid: f.stream.Pid, Stream: f.stream, Pat: &pat})
}

func (d *Demuxer) applyPat(pat *Pat) {
	if pat.NetworkPid != 0 && pat.NetworkPid != d.nitPid {
		d.nitPid = pat.NetworkPid
	}

	// 被移除的节目等下一次PAT仍然不包含时再销毁，防止单次PAT出错
	var removed []*Program
	kept := make([]*Program, 0, len(d.programs))
	for _, p := range d.programs {
		e := pat.SearchProgram(p.Number)
		if e == nil {
			if p.pendingTeardown {
				removed = append(removed, p)
				continue
			}
			p.pendingTeardown = true
			Log.Infof("[%s] program missing from pat, pending teardown. number=%d", d.uniqueKey, p.Number)
			kept = append(kept, p)
			continue
		}
		p.pendingTeardown = false
		if e.Pid != p.PmtPid {
			Log.Infof("[%s] program pmt pid changed. number=%d, pmt pid=%d->%d", d.uniqueKey, p.Number, p.PmtPid, e.Pid)
			d.unbindPmt(p)
			p.PmtPid = e.Pid
			d.bindPmt(p)
		}
		kept = append(kept, p)
	}
	d.programs = kept
	for _, p := range removed {
		d.teardownProgram(p)
	}

	for _, e := range pat.Programs {
		if d.findProgram(e.ProgramNumber) != nil {
			continue
		}
		p := &Program{
			Number: e.ProgramNumber,
			PmtPid: e.Pid,
			PcrPid: PidNull,
		}
		d.programs = append(d.programs, p)
		Log.Infof("[%s] program declared. number=%d, pmt pid=%d", d.uniqueKey, p.Number, p.PmtPid)
		d.bindPmt(p)
	}
}

func (d *Demuxer) confirmPatRepeat(pat *Pat) {
	var removed []*Program
	kept := make([]*Program, 0, len(d.programs))
	for _, p := range d.programs {
		if p.pendingTeardown && pat.SearchProgram(p.Number) == nil {
			removed = append(removed, p)
			continue
		}
		p.pendingTeardown = false
		kept = append(kept, p)
	}
	d.programs = kept
	for _, p := range removed {
		d.teardownProgram(p)
	}
}

// 多个节目可以共用一个PMT PID，section按table_id_extension区分
func (d *Demuxer) bindPmt(p *Program) {
	if p.PmtPid <= PidReservedEnd || p.PmtPid >= PidNull {
		Log.Warnf("[%s] invalid pmt pid. number=%d, pid=%d", d.uniqueKey, p.Number, p.PmtPid)
		return
	}
	if s := d.streams[p.PmtPid]; s != nil {
		if s.Flags&StreamFlagPsi != 0 {
			return
		}
		Log.Warnf("[%s] pmt pid already bound to an es, rebind. number=%d, pid=%d", d.uniqueKey, p.Number, p.PmtPid)
		d.unbindStream(s)
	}
	d.streams[p.PmtPid] = newSectionStream(d, p.PmtPid, StreamFlagPsi, sectionModeAggregate, d.onPmtSection)
}

func (d *Demuxer) unbindPmt(p *Program) {
	for _, other := range d.programs {
		if other != p && other.PmtPid == p.PmtPid {
			return
		}
	}
	if s := d.streams[p.PmtPid]; s != nil && s.Flags&StreamFlagPsi != 0 {
		d.streams[p.PmtPid] = nil
	}
}

// 调用时p已经不在 Demuxer.programs 中
func (d *Demuxer) teardownProgram(p *Program) {
	Log.Infof("[%s] program torn down. number=%d, pmt pid=%d", d.uniqueKey, p.Number, p.PmtPid)
	for _, s := range p.Streams {
		d.unbindStream(s)
	}
	p.Streams = nil
	d.unbindPmt(p)
}

func (d *Demuxer) findProgram(number uint16) *Program {
	for _, p := range d.programs {
		if p.Number == number {
			return p
		}
	}
	return nil
}

// ----- PMT -----------------------------------------------------------------------------------------------------------

func (d *Demuxer) onPmtSection(f *SectionFilter, t *Table, status TableStatus, h *PsiSectionHeader, section []byte) {
	if t.TableId != TsPsiIdPms {
		return
	}
	p := d.findProgram(t.ExtId)
	if p == nil || p.PmtPid != f.stream.Pid {
		d.debugf("pmt of unknown program. pid=%d, number=%d", f.stream.Pid, t.ExtId)
		return
	}
	if len(t.Sections) > 1 {
		Log.Warnf("[%s] multi-section pmt, only the first one is used. number=%d, sections=%d", d.uniqueKey, p.Number, len(t.Sections))
	}

	pmt, err := ParsePmt(t.Sections[0])
	if err != nil {
		Log.Warnf("[%s] parse pmt failed. number=%d, err=%+v", d.uniqueKey, p.Number, err)
		return
	}
	p.Pmt = &pmt
	if status != TableStatusRepeat {
		d.applyPmt(p, &pmt)
	}

	d.dispatch(&Event{Type: tableEvent(EventPmtFound, status), Pid: f.stream.Pid, Stream: f.stream, Program: p})
}

func (d *Demuxer) applyPmt(p *Program, pmt *Pmt) {
	p.PcrPid = pmt.PcrPid
	p.Iod = nil
	p.Descriptors = nil
	for _, desc := range pmt.ProgramInfo {
		if desc.Tag == DescriptorTagIod {
			p.Iod = append([]byte(nil), desc.Data...)
			continue
		}
		p.Descriptors = append(p.Descriptors, desc)
	}

	streams := make([]*Stream, 0, len(pmt.ProgramElements))
	for i := range pmt.ProgramElements {
		es := &pmt.ProgramElements[i]
		kind, ok := d.option.StreamKindTable[es.StreamType]
		if !ok || kind == StreamKindUnsupported {
			d.debugf("unsupported stream type. number=%d, pid=%d, stream type=%d", p.Number, es.Pid, es.StreamType)
			continue
		}
		if es.Pid <= PidReservedEnd || es.Pid >= PidNull {
			Log.Warnf("[%s] es pid is reserved, ignore. number=%d, pid=%d", d.uniqueKey, p.Number, es.Pid)
			continue
		}
		if containsPid(streams, es.Pid) {
			Log.Warnf("[%s] duplicated es pid in pmt, ignore. number=%d, pid=%d", d.uniqueKey, p.Number, es.Pid)
			continue
		}
		existing := d.streams[es.Pid]
		if existing != nil && (existing.Flags&StreamFlagPsi != 0 || existing.Program != p) {
			Log.Warnf("[%s] es pid already bound elsewhere, ignore. number=%d, pid=%d", d.uniqueKey, p.Number, es.Pid)
			continue
		}
		if es.BadDescriptors {
			Log.Warnf("[%s] es descriptor loop is broken, keep the parsed part. number=%d, pid=%d", d.uniqueKey, p.Number, es.Pid)
		}

		s := &Stream{
			Pid:          es.Pid,
			StreamType:   es.StreamType,
			Kind:         kind,
			ComponentTag: -1,
			Program:      p,
		}
		if !s.applyDescriptors(es.Descriptors) {
			Log.Warnf("[%s] unknown private stream, ignore. number=%d, pid=%d", d.uniqueKey, p.Number, es.Pid)
			continue
		}
		if kind == StreamKindSection {
			s.Flags |= StreamFlagSection
		} else {
			s.Flags |= StreamFlagPes
			if kind == StreamKindVideoPes {
				s.Flags |= StreamFlagInheritPcr
			}
		}

		if existing != nil && sameStreamConfig(existing, s) {
			existing.Descriptors = s.Descriptors
			existing.ComponentTag = s.ComponentTag
			existing.DataBroadcastId = s.DataBroadcastId
			existing.RegistrationFormat = s.RegistrationFormat
			streams = append(streams, existing)
			continue
		}
		if existing != nil {
			d.unbindStream(existing)
		}
		d.bindStream(s)
		streams = append(streams, s)
	}

	// 上一次PMT中有，这一次没有的流
	for _, old := range p.Streams {
		if !containsStream(streams, old) {
			d.unbindStream(old)
		}
	}
	p.Streams = streams
}

func (d *Demuxer) bindStream(s *Stream) {
	if s.IsSection() {
		switch {
		case s.Flags&StreamFlagMpe != 0:
			s.sec = newSectionFilter(d, s, sectionModeDirect, d.onMpeSection)
		case s.Flags&StreamFlagInt != 0:
			s.sec = newSectionFilter(d, s, sectionModeAggregate, d.onIntSection)
		case s.Flags&StreamFlagSl != 0:
			s.sec = newSectionFilter(d, s, sectionModeAggregate, d.onSlSection)
		default:
			s.sec = newSectionFilter(d, s, sectionModeDirect, d.onPrivateSection)
		}
	} else {
		var r Reframer
		if nr, ok := d.option.Reframers[s.StreamType]; ok && nr != nil {
			r = nr(s)
		}
		s.pes = newPesBuffer(d, s, d.option.DefaultFramingMode, r)
	}
	d.streams[s.Pid] = s
	Log.Infof("[%s] stream bound. pid=%d, stream type=%d, kind=%s", d.uniqueKey, s.Pid, s.StreamType, s.Kind)
}

func (d *Demuxer) unbindStream(s *Stream) {
	if d.streams[s.Pid] != s {
		return
	}
	d.streams[s.Pid] = nil
	Log.Infof("[%s] stream unbound. pid=%d, stream type=%d", d.uniqueKey, s.Pid, s.StreamType)
}

func sameStreamConfig(a, b *Stream) bool {
	return a.StreamType == b.StreamType &&
		a.Kind == b.Kind &&
		a.Flags == b.Flags &&
		a.Mpeg4EsId == b.Mpeg4EsId &&
		a.Lang == b.Lang
}

func containsPid(streams []*Stream, pid uint16) bool {
	for _, s := range streams {
		if s.Pid == pid {
			return true
		}
	}
	return false
}

func containsStream(streams []*Stream, s *Stream) bool {
	for _, item := range streams {
		if item == s {
			return true
		}
	}
	return false
}
