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

	"github.com/q191201771/naza/pkg/assert"
)

func TestParseStreamId(t *testing.T) {
	id, err := parseStreamId("#!::u=chef,r=live/test,m=publish,t=stream,s=abc")
	assert.Equal(t, nil, err)
	assert.Equal(t, "chef", id.User)
	assert.Equal(t, "live/test", id.Resource)
	assert.Equal(t, "stream", id.Type)
	assert.Equal(t, "abc", id.SessionId)
	assert.Equal(t, true, id.IsPublish())

	id, err = parseStreamId("#!::h=test110,m=PUBLISH")
	assert.Equal(t, nil, err)
	assert.Equal(t, "test110", id.Host)
	assert.Equal(t, "test110", id.Resource)
	assert.Equal(t, true, id.IsPublish())

	// 值中允许出现'='
	id, err = parseStreamId("#!::r=a=b")
	assert.Equal(t, nil, err)
	assert.Equal(t, "a=b", id.Resource)
	assert.Equal(t, false, id.IsPublish())

	_, err = parseStreamId("live/test")
	assert.Equal(t, errInvalidStreamId, err)
	_, err = parseStreamId("#!::r")
	assert.Equal(t, errInvalidStreamId, err)
	_, err = parseStreamId("#!::=x")
	assert.Equal(t, errInvalidStreamId, err)
}

func TestStreamId_Allowed(t *testing.T) {
	id, err := parseStreamId("#!::r=live/test,m=publish")
	assert.Equal(t, nil, err)
	assert.Equal(t, true, id.Allowed(nil))
	assert.Equal(t, true, id.Allowed([]string{"live/*"}))
	assert.Equal(t, true, id.Allowed([]string{"vod/*", "live/test"}))
	assert.Equal(t, false, id.Allowed([]string{"vod/*"}))
	assert.Equal(t, false, id.Allowed([]string{"live/test2"}))
}
