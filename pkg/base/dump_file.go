// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabytes"
)

// DumpFile 把解复用出来的数据单元按记录写入文件，方便离线比对
//
// 每条记录的格式：
//
//	ver       uint32
//	pid       uint32
//	len       uint32
//	timestamp uint32, 单位毫秒，一般是pts/90
//	body      [len]byte
type DumpFile struct {
	file *os.File
}

type DumpFileMessage struct {
	Ver       uint32
	Pid       uint32
	Len       uint32
	Timestamp uint32
	Body      []byte
}

const dumpFileVersion = 1

func NewDumpFile() *DumpFile {
	return &DumpFile{}
}

func (d *DumpFile) OpenToWrite(filename string) (err error) {
	dir := filepath.Dir(filename)
	if err = os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	d.file, err = os.Create(filename)
	return
}

func (d *DumpFile) OpenToRead(filename string) (err error) {
	d.file, err = os.Open(filename)
	return
}

func (d *DumpFile) Write(pid uint16, timestamp uint32, b []byte) error {
	_, err := d.file.Write(d.pack(pid, timestamp, b))
	return err
}

func (d *DumpFile) ReadOneMessage() (m DumpFileMessage, err error) {
	var h [16]byte
	if _, err = io.ReadFull(d.file, h[:]); err != nil {
		return
	}
	m.Ver = bele.BeUint32(h[:])
	m.Pid = bele.BeUint32(h[4:])
	m.Len = bele.BeUint32(h[8:])
	m.Timestamp = bele.BeUint32(h[12:])
	if m.Ver != dumpFileVersion {
		err = fmt.Errorf("%w. ver=%d", ErrDumpFileVersion, m.Ver)
		return
	}
	m.Body = make([]byte, m.Len)
	_, err = io.ReadFull(d.file, m.Body)
	return
}

func (d *DumpFile) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}

// ---------------------------------------------------------------------------------------------------------------------

func (m *DumpFileMessage) DebugString() string {
	return fmt.Sprintf("ver: %d, pid: %d, len: %d, timestamp: %d, hex: %s",
		m.Ver, m.Pid, m.Len, m.Timestamp, hex.Dump(nazabytes.Prefix(m.Body, 16)))
}

// ---------------------------------------------------------------------------------------------------------------------

func (d *DumpFile) pack(pid uint16, timestamp uint32, b []byte) []byte {
	ret := make([]byte, len(b)+16)
	bele.BePutUint32(ret, dumpFileVersion)
	bele.BePutUint32(ret[4:], uint32(pid))
	bele.BePutUint32(ret[8:], uint32(len(b)))
	bele.BePutUint32(ret[12:], timestamp)
	copy(ret[16:], b)
	return ret
}
