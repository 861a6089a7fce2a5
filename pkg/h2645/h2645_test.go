// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package h2645_test

import (
	"testing"

	"github.com/q191201771/m2ts/pkg/h2645"
	"github.com/q191201771/naza/pkg/assert"
)

func TestIterateNaluStartCode(t *testing.T) {
	b := []byte{0x0, 0x0, 0x0, 0x1, 0x67, 0x0, 0x0, 0x1, 0x68}
	pos, length := h2645.IterateNaluStartCode(b, 0)
	assert.Equal(t, 4, pos)
	assert.Equal(t, 4, length)
	pos, length = h2645.IterateNaluStartCode(b, pos)
	assert.Equal(t, 8, pos)
	assert.Equal(t, 3, length)
	pos, _ = h2645.IterateNaluStartCode(b, pos)
	assert.Equal(t, -1, pos)
	pos, _ = h2645.IterateNaluStartCode(nil, 0)
	assert.Equal(t, -1, pos)
}

func TestIterateNaluAnnexb(t *testing.T) {
	b := []byte{
		0xAA, // 起始码之前的数据被忽略
		0x0, 0x0, 0x0, 0x1, 0x67, 0xAA, 0x0,
		0x0, 0x0, 0x1, 0x68, 0xBB,
		0x0, 0x0, 0x1,
		0x0, 0x0, 0x1, 0x65, 0xCC, 0x0, 0x0,
	}
	var nals [][]byte
	h2645.IterateNaluAnnexb(b, func(nal []byte) {
		nals = append(nals, nal)
	})
	assert.Equal(t, [][]byte{
		{0x67, 0xAA},
		{0x68, 0xBB},
		{0x65, 0xCC},
	}, nals)

	nals = nil
	h2645.IterateNaluAnnexb([]byte{0x65, 0x88}, func(nal []byte) {
		nals = append(nals, nal)
	})
	assert.Equal(t, 0, len(nals))
}
