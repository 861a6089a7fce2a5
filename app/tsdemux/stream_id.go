// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"errors"
	"strings"

	"github.com/IGLOU-EU/go-wildcard/v2"
)

var errInvalidStreamId = errors.New("tsdemux: invalid srt streamid")

const streamIdPrefix = "#!::"

// StreamId SRT access control中定义的streamid格式
//
// e.g. #!::r=live/test,m=publish
type StreamId struct {
	User      string // u
	Host      string // h
	Resource  string // r
	SessionId string // s
	Type      string // t
	Mode      string // m
}

func parseStreamId(streamId string) (*StreamId, error) {
	if !strings.HasPrefix(streamId, streamIdPrefix) {
		return nil, errInvalidStreamId
	}

	id := &StreamId{}
	for _, item := range strings.Split(strings.TrimPrefix(streamId, streamIdPrefix), ",") {
		kv := strings.SplitN(item, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, errInvalidStreamId
		}
		switch kv[0] {
		case "u":
			id.User = kv[1]
		case "h":
			id.Host = kv[1]
		case "r":
			id.Resource = kv[1]
		case "s":
			id.SessionId = kv[1]
		case "t":
			id.Type = kv[1]
		case "m":
			id.Mode = kv[1]
		}
	}
	// 没有r时使用h
	if id.Resource == "" {
		id.Resource = id.Host
	}
	return id, nil
}

// IsPublish m缺省时为request，即拉流
func (id *StreamId) IsPublish() bool {
	return strings.EqualFold(id.Mode, "publish")
}

// Allowed Resource匹配patterns中的任意一个，patterns为空时不做限制
//
// pattern中可以使用 * 匹配任意个字符，e.g. live/*
func (id *StreamId) Allowed(patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if wildcard.Match(p, id.Resource) {
			return true
		}
	}
	return false
}
