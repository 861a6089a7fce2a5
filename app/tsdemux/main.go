// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/q191201771/m2ts/pkg/base"
	"github.com/q191201771/naza/pkg/bininfo"
	"github.com/q191201771/naza/pkg/nazalog"
)

// tsdemux 解析mpegts流，打印其中的PSI/SI表、PES、PCR等事件
//
// 输入可以是文件、标准输入、或者srt推流（需要 srt 编译标签）

type flagArgs struct {
	confFile string
	input    string
	gen      string
	genSec   int
	dumpPid  int
	dumpFile string
	cmp      bool
}

func main() {
	args := parseFlag()
	config := loadConf(args.confFile)
	initLog(config.Log)
	nazalog.Infof("bininfo: %s", bininfo.StringifySingleLine())
	nazalog.Infof("version: %s", base.M2tsFullInfo)

	if args.gen != "" {
		if err := runGen(args.gen, args.genSec); err != nil {
			nazalog.Errorf("gen failed. file=%s, err=%+v", args.gen, err)
			base.OsExitAndWaitPressIfWindows(1)
		}
		nazalog.Infof("gen succ. file=%s", args.gen)
		if args.input == "" {
			return
		}
	}

	if args.cmp {
		same, err := runCmp(args.input, config)
		if err != nil {
			nazalog.Errorf("cmp failed. file=%s, err=%+v", args.input, err)
			base.OsExitAndWaitPressIfWindows(1)
		}
		if !same {
			base.OsExitAndWaitPressIfWindows(2)
		}
		return
	}

	sm := NewSessionManager()
	go base.RunSignalHandler(sm.LogStats)
	if config.Metrics.Enable {
		go runHttpServer(config.Metrics.Addr, sm)
	}

	opt := SessionOption{
		DumpPid:      args.dumpPid,
		DumpFilename: args.dumpFile,
	}
	if err := runInput(args.input, config, sm, opt); err != nil {
		nazalog.Errorf("run input failed. input=%s, err=%+v", args.input, err)
		base.OsExitAndWaitPressIfWindows(1)
	}
}

func parseFlag() flagArgs {
	var args flagArgs
	binInfoFlag := flag.Bool("v", false, "show bin info")
	flag.StringVar(&args.confFile, "c", "", "specify conf file, use default values if empty")
	flag.StringVar(&args.input, "i", "", "input: file path, '-' for stdin, or srt://[host]:port")
	flag.StringVar(&args.gen, "gen", "", "write a synthetic sample stream to this file")
	flag.IntVar(&args.genSec, "gen_sec", 10, "duration in seconds of the synthetic sample stream")
	flag.IntVar(&args.dumpPid, "dump_pid", -1, "dump every PES_PCK of this pid")
	flag.StringVar(&args.dumpFile, "dump_file", "./dump/pes.dump", "file for -dump_pid")
	flag.BoolVar(&args.cmp, "cmp", false, "compare per-pid PES count with go-astits, input must be a file")
	flag.Parse()
	if *binInfoFlag {
		_, _ = fmt.Fprint(os.Stderr, bininfo.StringifyMultiLine())
		_, _ = fmt.Fprintln(os.Stderr, base.M2tsFullInfo)
		os.Exit(0)
	}
	if args.input == "" && args.gen == "" {
		flag.Usage()
		_, _ = fmt.Fprintf(os.Stderr, `
Example:
  ./bin/tsdemux -i ./testdata/test.ts
  ./bin/tsdemux -c ./conf/tsdemux.conf.json -i - < ./testdata/test.ts
  ./bin/tsdemux -c ./conf/tsdemux.conf.json -i srt://:6001
  ./bin/tsdemux -i ./testdata/test.ts -dump_pid 256 -dump_file ./dump/256.dump
  ./bin/tsdemux -i ./testdata/test.ts -cmp
  ./bin/tsdemux -gen ./testdata/sample.ts -gen_sec 10
`)
		base.OsExitAndWaitPressIfWindows(1)
	}
	if args.cmp && (args.input == "-" || args.input == "") {
		_, _ = fmt.Fprintln(os.Stderr, "-cmp needs a file input")
		base.OsExitAndWaitPressIfWindows(1)
	}
	return args
}

func loadConf(confFile string) *Config {
	config, err := LoadConf(confFile)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load conf failed. file=%s err=%+v\n", confFile, err)
		base.OsExitAndWaitPressIfWindows(1)
	}
	return config
}

func initLog(opt nazalog.Option) {
	if err := nazalog.Init(func(option *nazalog.Option) {
		*option = opt
	}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "initial log failed. err=%+v\n", err)
		base.OsExitAndWaitPressIfWindows(1)
	}
	nazalog.Info("initial log succ.")
}

func runGen(filename string, seconds int) error {
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer fp.Close()
	w := bufio.NewWriter(fp)
	if err = NewSampleGenerator(w).Generate(seconds); err != nil {
		return err
	}
	return w.Flush()
}
