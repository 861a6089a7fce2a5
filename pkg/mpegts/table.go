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
)

type TableStatus uint8

const (
	TableStatusNone   TableStatus = iota // 还没有凑齐
	TableStatusFound                     // 第一次凑齐
	TableStatusUpdate                    // version_number变化，或者内容变化
	TableStatusRepeat                    // version_number相同并且所有section逐字节相同
)

func (s TableStatus) String() string {
	switch s {
	case TableStatusFound:
		return "FOUND"
	case TableStatusUpdate:
		return "UPDATE"
	case TableStatusRepeat:
		return "REPEAT"
	}
	return "NONE"
}

const versionNone uint8 = 0xFF

// Table 一个PID上 (table_id, table_id_extension) 对应的表
//
// Sections 保存最近一次凑齐的表的所有section，已经保存的内存块不会再被修改
type Table struct {
	TableId           uint8
	ExtId             uint16
	Version           uint8
	LastSectionNumber uint8
	Sections          [][]byte // 每个元素是完整的section，从table_id开始，包含CRC
	Status            TableStatus

	isInit      bool
	lastVersion uint8

	// 正在收集的一轮
	collecting bool
	curVersion uint8
	curLsn     uint8
	pending    [][]byte
}

func newTable(tableId uint8, extId uint16) *Table {
	return &Table{
		TableId:     tableId,
		ExtId:       extId,
		lastVersion: versionNone,
	}
}

// LastVersion 上一次凑齐的表的version_number，没有凑齐过时返回0xFF
func (t *Table) LastVersion() uint8 {
	return t.lastVersion
}

func (t *Table) IsInit() bool {
	return t.isInit
}

// 聚合模式，section_number等于last_section_number并且所有section都收到时，整张表完成
//
// @param section: 调用结束后不再持有，需要保存时内部拷贝
func (t *Table) pushAggregate(h *PsiSectionHeader, section []byte) TableStatus {
	if h.SectionNumber > h.LastSectionNumber {
		return TableStatusNone
	}
	if !t.collecting || h.VersionNumber != t.curVersion || h.LastSectionNumber != t.curLsn {
		t.collecting = true
		t.curVersion = h.VersionNumber
		t.curLsn = h.LastSectionNumber
		t.pending = make([][]byte, int(h.LastSectionNumber)+1)
	}
	t.pending[h.SectionNumber] = t.retain(h, section)

	if h.SectionNumber != h.LastSectionNumber {
		return TableStatusNone
	}
	for _, s := range t.pending {
		if s == nil {
			return TableStatusNone
		}
	}

	status := TableStatusUpdate
	if !t.isInit {
		status = TableStatusFound
	} else if t.curVersion == t.Version && sameSections(t.pending, t.Sections) {
		status = TableStatusRepeat
	}

	t.Sections = t.pending
	t.Version = t.curVersion
	t.LastSectionNumber = t.curLsn
	t.Status = status
	t.isInit = true
	t.lastVersion = t.curVersion

	t.collecting = false
	t.pending = nil
	return status
}

// 独立模式，每个section单独上报，和上一次收到的同一个section_number的section比较
func (t *Table) pushIndividual(h *PsiSectionHeader, section []byte) TableStatus {
	if h.SectionNumber > h.LastSectionNumber {
		return TableStatusNone
	}
	if len(t.Sections) != int(h.LastSectionNumber)+1 {
		ss := make([][]byte, int(h.LastSectionNumber)+1)
		copy(ss, t.Sections)
		t.Sections = ss
	}

	prev := t.Sections[h.SectionNumber]
	status := TableStatusUpdate
	if prev == nil {
		status = TableStatusFound
	} else if h.VersionNumber == t.Version && bytes.Equal(prev, section) {
		status = TableStatusRepeat
	}

	t.Sections[h.SectionNumber] = t.retain(h, section)
	t.Version = h.VersionNumber
	t.LastSectionNumber = h.LastSectionNumber
	t.Status = status
	t.isInit = true
	t.lastVersion = h.VersionNumber
	return status
}

func (t *Table) reset() {
	*t = *newTable(t.TableId, t.ExtId)
}

// 与上一轮相同的section直接复用已经保存的内存块，轮播时不产生新的分配
func (t *Table) retain(h *PsiSectionHeader, section []byte) []byte {
	if t.isInit && h.VersionNumber == t.Version && int(h.SectionNumber) < len(t.Sections) {
		if prev := t.Sections[h.SectionNumber]; bytes.Equal(prev, section) {
			return prev
		}
	}
	return append([]byte(nil), section...)
}

func sameSections(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func tableKey(tableId uint8, extId uint16) uint32 {
	return uint32(tableId)<<16 | uint32(extId)
}
