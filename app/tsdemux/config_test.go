// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"testing"

	"github.com/q191201771/m2ts/pkg/base"
	"github.com/q191201771/m2ts/pkg/mpegts"
	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/nazalog"
)

func TestParseConf_Default(t *testing.T) {
	config, err := parseConf([]byte("{}"))
	assert.Equal(t, nil, err)
	assert.Equal(t, base.ConfVersion, config.ConfVersion)
	assert.Equal(t, true, config.Demuxer.EnableCat)
	assert.Equal(t, true, config.Demuxer.EnableSdt)
	assert.Equal(t, false, config.Demuxer.EnableNit)
	assert.Equal(t, 4*1024*1024, config.Demuxer.MaxPesSize)
	assert.Equal(t, "default", config.Demuxer.FramingMode)
	assert.Equal(t, 128*mpegts.TsPacketSize, config.Input.ReadBufSize)
	assert.Equal(t, false, config.Metrics.Enable)
	assert.Equal(t, ":9101", config.Metrics.Addr)
	assert.Equal(t, nazalog.LevelInfo, config.Log.Level)
	assert.Equal(t, true, config.Log.IsToStdout)
}

func TestParseConf(t *testing.T) {
	raw := `{
  "conf_version": "v0.1.0",
  "demuxer": {"enable_cat": false, "enable_tdt_tot": true, "framing_mode": "RAW", "max_pes_size": 1024},
  "input": {"read_buf_size": 1880},
  "metrics": {"enable": true, "addr": "127.0.0.1:9200"},
  "log": {"level": 3, "is_to_stdout": false}
}`
	config, err := parseConf([]byte(raw))
	assert.Equal(t, nil, err)
	assert.Equal(t, false, config.Demuxer.EnableCat)
	assert.Equal(t, true, config.Demuxer.EnableTdtTot)
	assert.Equal(t, true, config.Demuxer.EnableSdt)
	assert.Equal(t, 1880, config.Input.ReadBufSize)
	assert.Equal(t, true, config.Metrics.Enable)
	assert.Equal(t, "127.0.0.1:9200", config.Metrics.Addr)
	assert.Equal(t, nazalog.LevelWarn, config.Log.Level)
	assert.Equal(t, false, config.Log.IsToStdout)

	var option mpegts.DemuxerOption
	config.Demuxer.ModOption()(&option)
	assert.Equal(t, false, option.EnableCat)
	assert.Equal(t, true, option.EnableTdtTot)
	assert.Equal(t, mpegts.FramingModeRaw, option.DefaultFramingMode)
	assert.Equal(t, 1024, option.MaxPesSize)
}

func TestParseConf_Error(t *testing.T) {
	_, err := parseConf([]byte("{"))
	assert.IsNotNil(t, err)
	_, err = parseConf([]byte(`{"demuxer": {"framing_mode": "au"}}`))
	assert.IsNotNil(t, err)
	_, err = parseConf([]byte(`{"input": {"read_buf_size": 0}}`))
	assert.IsNotNil(t, err)
}

func TestLoadConf(t *testing.T) {
	config, err := LoadConf("../../conf/tsdemux.conf.json")
	assert.Equal(t, nil, err)
	assert.Equal(t, base.ConfVersion, config.ConfVersion)
	assert.Equal(t, 24064, config.Input.ReadBufSize)

	_, err = LoadConf("/not/exist/tsdemux.conf.json")
	assert.IsNotNil(t, err)
}

func TestLoadConf_Toml(t *testing.T) {
	config, err := LoadConf("../../conf/tsdemux.conf.toml")
	assert.Equal(t, nil, err)
	assert.Equal(t, base.ConfVersion, config.ConfVersion)
	assert.Equal(t, true, config.Demuxer.EnableCat)
	assert.Equal(t, 4194304, config.Demuxer.MaxPesSize)
	assert.Equal(t, 24064, config.Input.ReadBufSize)
	assert.Equal(t, []string{"live/*"}, config.Input.SrtAllow)
	assert.Equal(t, nazalog.LevelInfo, config.Log.Level)

	_, err = tomlToJson([]byte("a = "))
	assert.IsNotNil(t, err)
}
