// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"

	"github.com/asticode/go-astits"
	"github.com/q191201771/naza/pkg/nazalog"
	"golang.org/x/sync/errgroup"
)

type PidCountDiff struct {
	Pid    uint16
	Ours   int
	Theirs int
}

// countPesWithAstits 使用 go-astits 解析整个文件，统计每个PID上的PES个数
func countPesWithAstits(ctx context.Context, r io.Reader) (map[uint16]int, error) {
	dmx := astits.NewDemuxer(ctx, r)
	ret := make(map[uint16]int)
	for {
		d, err := dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				return ret, nil
			}
			return ret, err
		}
		if d.PES != nil && d.FirstPacket != nil {
			ret[d.FirstPacket.Header.PID]++
		}
	}
}

func diffPesCount(ours, theirs map[uint16]int) []PidCountDiff {
	pids := make(map[uint16]struct{})
	for pid := range ours {
		pids[pid] = struct{}{}
	}
	for pid := range theirs {
		pids[pid] = struct{}{}
	}

	var ret []PidCountDiff
	for pid := range pids {
		if ours[pid] != theirs[pid] {
			ret = append(ret, PidCountDiff{Pid: pid, Ours: ours[pid], Theirs: theirs[pid]})
		}
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Pid < ret[j].Pid
	})
	return ret
}

// runCmp 用两个解复用器分别并行解析同一个文件，对比每个PID上的PES个数
//
// 注意，音频的一个PES中可能有多个ADTS帧，此时 PES_PCK 的个数会多于PES的个数，可以把framing_mode配置成raw再对比
func runCmp(filename string, config *Config) (bool, error) {
	var ours, theirs map[uint16]int
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		fp, err := os.Open(filename)
		if err != nil {
			return err
		}
		defer fp.Close()
		theirs, err = countPesWithAstits(ctx, fp)
		return err
	})
	g.Go(func() error {
		fp, err := os.Open(filename)
		if err != nil {
			return err
		}
		defer fp.Close()
		s, err := NewDemuxSession(filename, &config.Demuxer, SessionOption{DumpPid: -1})
		if err != nil {
			return err
		}
		if err = feedFromReader(s, fp, config.Input.ReadBufSize); err != nil {
			return err
		}
		_ = s.Close()
		ours = s.PesCount()
		return nil
	})
	if err := g.Wait(); err != nil {
		return false, err
	}

	diffs := diffPesCount(ours, theirs)
	for _, d := range diffs {
		nazalog.Warnf("pes count mismatch. pid=%d, ours=%d, astits=%d", d.Pid, d.Ours, d.Theirs)
	}
	nazalog.Infof("cmp done. pids=%d, diffs=%d", len(theirs), len(diffs))
	return len(diffs) == 0, nil
}
