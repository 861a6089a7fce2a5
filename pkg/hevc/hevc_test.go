// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package hevc_test

import (
	"testing"

	"github.com/q191201771/m2ts/pkg/hevc"
	"github.com/q191201771/naza/pkg/assert"
)

func TestParseNaluType(t *testing.T) {
	assert.Equal(t, hevc.NaluTypeVps, hevc.ParseNaluType(0x40))
	assert.Equal(t, hevc.NaluTypeSps, hevc.ParseNaluType(0x42))
	assert.Equal(t, hevc.NaluTypePps, hevc.ParseNaluType(0x44))
	assert.Equal(t, hevc.NaluTypeSliceIdr, hevc.ParseNaluType(0x26))
	assert.Equal(t, hevc.NaluTypeSliceTrailR, hevc.ParseNaluType(0x02))
}

func TestIsIrapNalu(t *testing.T) {
	for typ := uint8(0); typ < 64; typ++ {
		assert.Equal(t, typ >= 16 && typ <= 23, hevc.IsIrapNalu(typ))
	}
	assert.Equal(t, true, hevc.IsVclNalu(hevc.NaluTypeSliceTrailN))
	assert.Equal(t, true, hevc.IsVclNalu(hevc.NaluTypeSliceCranut))
	assert.Equal(t, false, hevc.IsVclNalu(hevc.NaluTypeSei))
}
