// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

type DemuxerOption struct {
	// 默认过滤器，在对应的保留PID上第一次收到数据时安装
	EnableCat    bool // PID 0x0001
	EnableNit    bool // PID 0x0010，或者PAT中program_number为0的PID
	EnableSdt    bool // PID 0x0011
	EnableEit    bool // PID 0x0012
	EnableTdtTot bool // PID 0x0014

	// 内容没有变化的NIT、EIT、TDT/TOT、SL section也上报
	SendRepeatedSections bool

	// stream_type到 StreamKind 的映射
	StreamKindTable map[uint8]StreamKind

	// stream_type到reframer的映射，只在 FramingModeDefault 下生效
	Reframers map[uint8]NewReframer

	// PES流绑定时的初始输出方式
	DefaultFramingMode FramingMode

	// 长度不限的PES最多缓存的字节数，超过后丢弃
	MaxPesSize int
}

var defaultDemuxerOption = DemuxerOption{
	EnableCat:            true,
	EnableNit:            false,
	EnableSdt:            true,
	EnableEit:            false,
	EnableTdtTot:         false,
	SendRepeatedSections: false,
	StreamKindTable:      DefaultStreamKindTable,
	Reframers:            DefaultReframers,
	DefaultFramingMode:   FramingModeDefault,
	MaxPesSize:           4 * 1024 * 1024,
}

type ModDemuxerOption func(option *DemuxerOption)
