// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package h2645

// 无特殊说明的函数则同时支持h264和h265两种格式

var (
	NaluStartCode3 = []byte{0x0, 0x0, 0x1}
	NaluStartCode4 = []byte{0x0, 0x0, 0x0, 0x1}
)

// IterateNaluStartCode 从start位置开始查找下一个起始码
//
// @return pos: 起始码后第一个字节的位置，找不到时为-1
// @return length: 起始码的长度，3或4
func IterateNaluStartCode(nalu []byte, start int) (pos, length int) {
	if nalu == nil || start >= len(nalu) {
		return -1, -1
	}
	count := 0
	for i := range nalu[start:] {
		switch nalu[start+i] {
		case 0:
			count++
		case 1:
			if count >= 2 {
				return start + i + 1, min(count, 3) + 1
			}
			count = 0
		default:
			count = 0
		}
	}
	return -1, -1
}

// IterateNaluAnnexb 遍历Annexb格式的nalu流
//
// 第一个起始码之前的数据被忽略，nal中不包含起始码，结尾的0x00尾随零会被去除
func IterateNaluAnnexb(nals []byte, handler func(nal []byte)) {
	prev, _ := IterateNaluStartCode(nals, 0)
	if prev == -1 {
		return
	}
	for {
		pos, length := IterateNaluStartCode(nals, prev)
		if pos == -1 {
			emitTrimmed(nals[prev:], handler)
			return
		}
		emitTrimmed(nals[prev:pos-length], handler)
		prev = pos
	}
}

func emitTrimmed(nal []byte, handler func(nal []byte)) {
	for len(nal) > 0 && nal[len(nal)-1] == 0 {
		nal = nal[:len(nal)-1]
	}
	if len(nal) != 0 {
		handler(nal)
	}
}
