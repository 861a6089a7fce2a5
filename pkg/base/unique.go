// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/unique"

const (
	UkPreTsDemuxer = "TSDEMUX"
)

func GenUkTsDemuxer() string {
	return siUkTsDemuxer.GenUniqueKey()
}

var siUkTsDemuxer *unique.SingleGenerator

func init() {
	siUkTsDemuxer = unique.NewSingleGenerator(UkPreTsDemuxer)
}
