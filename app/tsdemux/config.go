// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/q191201771/m2ts/pkg/base"
	"github.com/q191201771/m2ts/pkg/mpegts"
	"github.com/q191201771/naza/pkg/nazaerrors"
	"github.com/q191201771/naza/pkg/nazajson"
	"github.com/q191201771/naza/pkg/nazalog"
)

type Config struct {
	ConfVersion string         `json:"conf_version"`
	Demuxer     DemuxerConfig  `json:"demuxer"`
	Input       InputConfig    `json:"input"`
	Metrics     MetricsConfig  `json:"metrics"`
	Log         nazalog.Option `json:"log"`
}

type DemuxerConfig struct {
	EnableCat            bool   `json:"enable_cat"`
	EnableNit            bool   `json:"enable_nit"`
	EnableSdt            bool   `json:"enable_sdt"`
	EnableEit            bool   `json:"enable_eit"`
	EnableTdtTot         bool   `json:"enable_tdt_tot"`
	SendRepeatedSections bool   `json:"send_repeated_sections"`
	MaxPesSize           int    `json:"max_pes_size"`
	FramingMode          string `json:"framing_mode"` // default, raw, skip
}

type InputConfig struct {
	ReadBufSize int `json:"read_buf_size"`

	// srt listener，只在带 srt 编译标签时生效
	SrtLatencyMs int      `json:"srt_latency_ms"`
	SrtMaxConn   int      `json:"srt_max_conn"`
	SrtAllow     []string `json:"srt_allow"` // streamid中r的白名单，支持通配符*，为空时不限制
}

type MetricsConfig struct {
	Enable bool   `json:"enable"`
	Addr   string `json:"addr"`
}

// LoadConf
//
// 支持json和toml两种格式，根据文件后缀区分，字段名相同
//
// @param confFile: 为空时全部使用默认值
func LoadConf(confFile string) (*Config, error) {
	rawContent := []byte("{}")
	if confFile != "" {
		var err error
		if rawContent, err = os.ReadFile(confFile); err != nil {
			return nil, nazaerrors.Wrap(err)
		}
		if strings.EqualFold(filepath.Ext(confFile), ".toml") {
			if rawContent, err = tomlToJson(rawContent); err != nil {
				return nil, err
			}
		}
	}
	return parseConf(rawContent)
}

// tomlToJson 转成json后走同一套默认值逻辑
func tomlToJson(rawContent []byte) ([]byte, error) {
	var m map[string]interface{}
	if err := toml.Unmarshal(rawContent, &m); err != nil {
		return nil, nazaerrors.Wrap(err)
	}
	return json.Marshal(m)
}

func parseConf(rawContent []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(rawContent, &config); err != nil {
		return nil, nazaerrors.Wrap(err)
	}

	j, err := nazajson.New(rawContent)
	if err != nil {
		return nil, nazaerrors.Wrap(err)
	}

	// 配置不存在时，设置默认值
	if !j.Exist("conf_version") {
		config.ConfVersion = base.ConfVersion
	}
	if !j.Exist("demuxer.enable_cat") {
		config.Demuxer.EnableCat = true
	}
	if !j.Exist("demuxer.enable_sdt") {
		config.Demuxer.EnableSdt = true
	}
	if !j.Exist("demuxer.max_pes_size") {
		config.Demuxer.MaxPesSize = 4 * 1024 * 1024
	}
	if !j.Exist("demuxer.framing_mode") {
		config.Demuxer.FramingMode = "default"
	}
	if !j.Exist("input.read_buf_size") {
		config.Input.ReadBufSize = 128 * mpegts.TsPacketSize
	}
	if !j.Exist("input.srt_latency_ms") {
		config.Input.SrtLatencyMs = 120
	}
	if !j.Exist("input.srt_max_conn") {
		config.Input.SrtMaxConn = 16
	}
	if !j.Exist("metrics.addr") {
		config.Metrics.Addr = ":9101"
	}
	if !j.Exist("log.level") {
		config.Log.Level = nazalog.LevelInfo
	}
	if !j.Exist("log.filename") {
		config.Log.Filename = "./logs/tsdemux.log"
	}
	if !j.Exist("log.is_to_stdout") {
		config.Log.IsToStdout = true
	}
	if !j.Exist("log.is_rotate_daily") {
		config.Log.IsRotateDaily = true
	}
	if !j.Exist("log.timestamp_flag") {
		config.Log.TimestampFlag = true
	}
	if !j.Exist("log.timestamp_with_ms_flag") {
		config.Log.TimestampWithMsFlag = true
	}
	if !j.Exist("log.level_flag") {
		config.Log.LevelFlag = true
	}
	if !j.Exist("log.short_file_flag") {
		config.Log.ShortFileFlag = true
	}
	if !j.Exist("log.assert_behavior") {
		config.Log.AssertBehavior = nazalog.AssertError
	}

	// 检查配置必须项
	if config.ConfVersion != base.ConfVersion {
		nazalog.Warnf("conf version mismatch. expected=%s, actual=%s", base.ConfVersion, config.ConfVersion)
	}
	if config.Input.ReadBufSize <= 0 {
		return nil, fmt.Errorf("invalid input.read_buf_size. value=%d", config.Input.ReadBufSize)
	}
	if _, err = parseFramingMode(config.Demuxer.FramingMode); err != nil {
		return nil, err
	}

	return &config, nil
}

// ModOption 把配置转换成 mpegts.NewDemuxer 的参数
func (c *DemuxerConfig) ModOption() mpegts.ModDemuxerOption {
	mode, _ := parseFramingMode(c.FramingMode)
	return func(option *mpegts.DemuxerOption) {
		option.EnableCat = c.EnableCat
		option.EnableNit = c.EnableNit
		option.EnableSdt = c.EnableSdt
		option.EnableEit = c.EnableEit
		option.EnableTdtTot = c.EnableTdtTot
		option.SendRepeatedSections = c.SendRepeatedSections
		option.DefaultFramingMode = mode
		if c.MaxPesSize > 0 {
			option.MaxPesSize = c.MaxPesSize
		}
	}
}

func parseFramingMode(s string) (mpegts.FramingMode, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return mpegts.FramingModeDefault, nil
	case "raw":
		return mpegts.FramingModeRaw, nil
	case "skip":
		return mpegts.FramingModeSkip, nil
	}
	return mpegts.FramingModeDefault, fmt.Errorf("invalid demuxer.framing_mode. value=%s", s)
}
