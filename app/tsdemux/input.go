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
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/q191201771/m2ts/pkg/base"
	"github.com/q191201771/naza/pkg/nazalog"
)

const srtScheme = "srt://"

// runInput 根据input的形式选择数据来源，文件和标准输入读完即返回，srt一直监听
func runInput(input string, config *Config, sm *SessionManager, opt SessionOption) error {
	switch {
	case strings.HasPrefix(input, srtScheme):
		return runSrtListener(strings.TrimPrefix(input, srtScheme), config, sm, opt)
	case input == "-":
		return runOneReader("stdin", os.Stdin, config, sm, opt)
	case strings.Contains(input, "://"):
		return fmt.Errorf("%w. input=%s", base.ErrUnsupportedInput, input)
	}

	fp, err := os.Open(input)
	if err != nil {
		if os.IsNotExist(err) {
			return base.ErrFileNotExist
		}
		return err
	}
	defer fp.Close()
	return runOneReader(input, fp, config, sm, opt)
}

func runOneReader(name string, r io.Reader, config *Config, sm *SessionManager, opt SessionOption) error {
	s, err := NewDemuxSession(name, &config.Demuxer, opt)
	if err != nil {
		return err
	}
	sm.Add(s)
	defer sm.Remove(s)

	err = feedFromReader(s, r, config.Input.ReadBufSize)
	if cerr := s.Close(); cerr != nil {
		nazalog.Warnf("[%s] flush. err=%+v", s.UniqueKey(), cerr)
	}
	return err
}

// feedFromReader 循环读取直到EOF。解析错误只打日志，不中断
func feedFromReader(s *DemuxSession, r io.Reader, bufSize int) error {
	buf := make([]byte, bufSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if perr := s.Feed(buf[:n]); perr != nil {
				nazalog.Debugf("[%s] process data. err=%+v", s.UniqueKey(), perr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
