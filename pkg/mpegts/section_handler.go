// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

// 默认过滤器以及PMT中section类型的流的回调

func (d *Demuxer) onCatSection(f *SectionFilter, t *Table, status TableStatus, h *PsiSectionHeader, section []byte) {
	if t.TableId != TsPsiIdCas {
		return
	}
	cat, err := ParseCat(t.Sections[0])
	if err != nil {
		Log.Warnf("[%s] parse cat failed, keep the parsed part. err=%+v", d.uniqueKey, err)
	}
	d.dispatch(&Event{Type: tableEvent(EventCatFound, status), Pid: f.stream.Pid, Stream: f.stream, Cat: &cat})
}

// SDT/BAT共用一个PID，只处理当前传输流的SDT
func (d *Demuxer) onSdtSection(f *SectionFilter, t *Table, status TableStatus, h *PsiSectionHeader, section []byte) {
	if t.TableId != TsPsiIdSdtActual {
		return
	}
	sdt, err := ParseSdt(t.Sections)
	if err != nil {
		Log.Warnf("[%s] parse sdt failed. err=%+v", d.uniqueKey, err)
		return
	}
	d.dispatch(&Event{Type: tableEvent(EventSdtFound, status), Pid: f.stream.Pid, Stream: f.stream, Sdt: &sdt})
}

// NIT整张表凑齐后，每个section上报一次
func (d *Demuxer) onNitSection(f *SectionFilter, t *Table, status TableStatus, h *PsiSectionHeader, section []byte) {
	if t.TableId != TsPsiIdNitActual && t.TableId != TsPsiIdNitOther {
		return
	}
	if status == TableStatusRepeat && !d.option.SendRepeatedSections {
		return
	}
	for _, s := range t.Sections {
		d.dispatchSection(f, t, status, s)
	}
}

// EIT、TDT/TOT每个section单独上报
func (d *Demuxer) onIndividualSection(f *SectionFilter, t *Table, status TableStatus, h *PsiSectionHeader, section []byte) {
	switch f.stream.Pid {
	case PidEit:
		if t.TableId < TsPsiIdEitPfActual || t.TableId > TsPsiIdEitScheduleMax {
			return
		}
	case PidTdt:
		if t.TableId != TsPsiIdTdt && t.TableId != TsPsiIdTot {
			return
		}
	}
	if status == TableStatusRepeat && !d.option.SendRepeatedSections {
		return
	}
	d.dispatchSection(f, t, status, section)
}

// MPEG-4 SL打包的section，每个section的payload作为一个SL_PCK
func (d *Demuxer) onSlSection(f *SectionFilter, t *Table, status TableStatus, h *PsiSectionHeader, section []byte) {
	if status == TableStatusRepeat && !d.option.SendRepeatedSections {
		return
	}
	for _, s := range t.Sections {
		pkt := PesPacket{
			Data:   sectionPayload(s),
			Flags:  PesFlagAuStart | PesFlagAuEnd,
			Stream: f.stream,
		}
		se := newSectionEvent(t, status, s)
		d.dispatch(&Event{Type: EventSlPck, Pid: f.stream.Pid, Stream: f.stream, Pes: &pkt, Section: &se})
	}
}

func (d *Demuxer) onMpeSection(f *SectionFilter, t *Table, status TableStatus, h *PsiSectionHeader, section []byte) {
	if h.TableId != TsPsiIdMpeDatagram {
		return
	}
	dg, err := ParseIpDatagram(section)
	if err != nil {
		d.debugf("parse mpe datagram failed. pid=%d, err=%+v", f.stream.Pid, err)
		return
	}
	d.dispatch(&Event{Type: EventIpDatagram, Pid: f.stream.Pid, Stream: f.stream, Datagram: &dg})
}

func (d *Demuxer) onIntSection(f *SectionFilter, t *Table, status TableStatus, h *PsiSectionHeader, section []byte) {
	if t.TableId != TsPsiIdInt {
		return
	}
	it, err := ParseInt(t.Sections)
	if err != nil {
		Log.Warnf("[%s] parse int failed. pid=%d, err=%+v", d.uniqueKey, f.stream.Pid, err)
		return
	}
	d.dispatch(&Event{Type: tableEvent(EventIntFound, status), Pid: f.stream.Pid, Stream: f.stream, Int: &it})
}

// 不认识的私有section原样上报
func (d *Demuxer) onPrivateSection(f *SectionFilter, t *Table, status TableStatus, h *PsiSectionHeader, section []byte) {
	se := SectionEvent{
		TableId:           h.TableId,
		ExtId:             h.TableIdExtension,
		Version:           h.VersionNumber,
		SectionNumber:     h.SectionNumber,
		LastSectionNumber: h.LastSectionNumber,
		Status:            status,
		Data:              section,
	}
	d.dispatch(&Event{Type: EventDvbGeneral, Pid: f.stream.Pid, Stream: f.stream, Section: &se})
}

func (d *Demuxer) dispatchSection(f *SectionFilter, t *Table, status TableStatus, section []byte) {
	se := newSectionEvent(t, status, section)
	d.dispatch(&Event{Type: EventDvbGeneral, Pid: f.stream.Pid, Stream: f.stream, Section: &se})
}

func newSectionEvent(t *Table, status TableStatus, section []byte) SectionEvent {
	se := SectionEvent{
		TableId: t.TableId,
		ExtId:   t.ExtId,
		Version: t.Version,
		Status:  status,
		Data:    section,
	}
	if h, err := ParsePsiSectionHeader(section); err == nil {
		se.SectionNumber = h.SectionNumber
		se.LastSectionNumber = h.LastSectionNumber
	}
	return se
}
