// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/q191201771/m2ts/pkg/base"
	"github.com/q191201771/naza/pkg/assert"
)

func TestDumpFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "a", "test.dump")

	df := base.NewDumpFile()
	assert.Equal(t, nil, df.OpenToWrite(filename))
	assert.Equal(t, nil, df.Write(0x100, 1000, []byte("hello")))
	assert.Equal(t, nil, df.Write(0x101, 1040, []byte{}))
	assert.Equal(t, nil, df.Write(0x100, 1080, []byte("world!")))
	assert.Equal(t, nil, df.Close())

	df = base.NewDumpFile()
	assert.Equal(t, nil, df.OpenToRead(filename))
	var ms []base.DumpFileMessage
	for {
		m, err := df.ReadOneMessage()
		if err == io.EOF {
			break
		}
		assert.Equal(t, nil, err)
		ms = append(ms, m)
	}
	assert.Equal(t, nil, df.Close())

	assert.Equal(t, 3, len(ms))
	assert.Equal(t, uint32(0x100), ms[0].Pid)
	assert.Equal(t, uint32(1000), ms[0].Timestamp)
	assert.Equal(t, []byte("hello"), ms[0].Body)
	assert.Equal(t, uint32(0), ms[1].Len)
	assert.Equal(t, uint32(6), ms[2].Len)
	assert.Equal(t, []byte("world!"), ms[2].Body)
	assert.IsNotNil(t, ms[2].DebugString())
}

func TestDumpFile_BadVersion(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "bad.dump")
	err := os.WriteFile(filename, []byte{0, 0, 0, 9, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0}, 0644)
	assert.Equal(t, nil, err)

	df := base.NewDumpFile()
	assert.Equal(t, nil, df.OpenToRead(filename))
	defer df.Close()
	_, err = df.ReadOneMessage()
	assert.Equal(t, true, errors.Is(err, base.ErrDumpFileVersion))
}

func TestDumpFile_CloseWithoutOpen(t *testing.T) {
	assert.Equal(t, nil, base.NewDumpFile().Close())
}
