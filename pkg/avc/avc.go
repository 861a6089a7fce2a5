// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avc

import (
	"fmt"

	"github.com/q191201771/m2ts/pkg/base"
	"github.com/q191201771/naza/pkg/nazabits"
)

var NaluUintTypeMapping = map[uint8]string{
	1: "SLICE",
	5: "IDR",
	6: "SEI",
	7: "SPS",
	8: "PPS",
	9: "AUD",
}

var SliceTypeMapping = map[uint8]string{
	0: "P",
	1: "B",
	2: "I",
	3: "SP",
	4: "SI",
}

const (
	NaluTypeSlice    uint8 = 1
	NaluTypeIdrSlice uint8 = 5
	NaluTypeSei      uint8 = 6
	NaluTypeSps      uint8 = 7
	NaluTypePps      uint8 = 8
	NaluTypeAud      uint8 = 9
)

const (
	SliceTypeP  uint8 = 0
	SliceTypeB  uint8 = 1
	SliceTypeI  uint8 = 2
	SliceTypeSP uint8 = 3
	SliceTypeSI uint8 = 4
)

func ParseNaluType(v uint8) uint8 {
	return v & 0x1f
}

// ParseSliceType
//
// @param nalu: 包含1字节nal header
//
// slice_header() 开头两个字段:
// first_mb_in_slice ue(v)
// slice_type        ue(v)  5~9 与 0~4 含义相同
func ParseSliceType(nalu []byte) (uint8, error) {
	if len(nalu) < 2 {
		return 0, base.NewErrShortBuffer(2, len(nalu), "avc slice")
	}
	typ := ParseNaluType(nalu[0])
	if typ != NaluTypeSlice && typ != NaluTypeIdrSlice {
		return 0, fmt.Errorf("%w. not a slice. nalu type=%d", base.ErrAvc, typ)
	}

	br := nazabits.NewBitReader(nalu[1:])
	if _, err := br.ReadGolomb(); err != nil {
		return 0, err
	}
	st, err := br.ReadGolomb()
	if err != nil {
		return 0, err
	}
	if st > 9 {
		return 0, fmt.Errorf("%w. slice type=%d", base.ErrAvc, st)
	}
	if st > 4 {
		st -= 5
	}
	return uint8(st), nil
}

func ParseNaluTypeReadable(v uint8) string {
	ret, ok := NaluUintTypeMapping[ParseNaluType(v)]
	if !ok {
		return "unknown"
	}
	return ret
}

func ParseSliceTypeReadable(nalu []byte) string {
	t, err := ParseSliceType(nalu)
	if err != nil {
		return "unknown"
	}
	return SliceTypeMapping[t]
}
