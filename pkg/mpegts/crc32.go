// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"github.com/q191201771/naza/pkg/bele"
	"github.com/snksoft/crc"
)

// CRC32/MPEG-2
//
// <iso13818-1.pdf> <Annex A> <page 118/174>
// 多项式0x04C11DB7，初始值0xFFFFFFFF，输入输出都不反转，结果不取反
var crc32Mpeg2 = crc.NewTable(&crc.Parameters{
	Width:      32,
	Polynomial: 0x04C11DB7,
	ReflectIn:  false,
	ReflectOut: false,
	Init:       0xFFFFFFFF,
	FinalXor:   0,
})

// CalcCrc32 计算b的CRC32/MPEG-2
func CalcCrc32(b []byte) uint32 {
	return crc32Mpeg2.CRC32(crc32Mpeg2.CalculateCRC(b))
}

// UpdateCrc32 在crc的基础上继续计算，首次传入0xFFFFFFFF
func UpdateCrc32(c uint32, b []byte) uint32 {
	return crc32Mpeg2.CRC32(crc32Mpeg2.UpdateCrc(uint64(c), b))
}

// VerifyCrc32 校验一个完整的section，最后4字节是CRC_32
//
// 对整个section（包括CRC_32）计算，结果为0即校验通过
func VerifyCrc32(section []byte) bool {
	if len(section) < 4 {
		return false
	}
	return CalcCrc32(section) == 0
}

// appendCrc32 在section尾部写入CRC_32，section需预留4字节
func appendCrc32(section []byte) {
	n := len(section) - 4
	bele.BePutUint32(section[n:], CalcCrc32(section[:n]))
}
