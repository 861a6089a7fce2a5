// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"errors"
	"fmt"
)

// ----- 通用的 ---------------------------------------------------------------------------------------------------------

var (
	ErrShortBuffer     = errors.New("m2ts: buffer too short")
	ErrFileNotExist    = errors.New("m2ts: file not exist")
	ErrDumpFileVersion = errors.New("m2ts: invalid dump file version")
)

func NewErrShortBuffer(need, actual int, msg string) error {
	return fmt.Errorf("%w. need=%d, actual=%d, msg=%s", ErrShortBuffer, need, actual, msg)
}

// ----- pkg/aac -------------------------------------------------------------------------------------------------------

var (
	ErrAac                    = errors.New("m2ts.aac: fxxk")
	ErrAdtsSyncword           = errors.New("m2ts.aac: invalid adts syncword")
	ErrSamplingFrequencyIndex = errors.New("m2ts.aac: invalid sampling frequency index")
)

// ----- pkg/avc -------------------------------------------------------------------------------------------------------

var ErrAvc = errors.New("m2ts.avc: fxxk")

// ----- pkg/mpegts ----------------------------------------------------------------------------------------------------

var (
	ErrMpegtsSync            = errors.New("m2ts.mpegts: sync byte not found")
	ErrMpegtsTruncated       = errors.New("m2ts.mpegts: truncated trailing packet")
	ErrMpegtsAdaptationField = errors.New("m2ts.mpegts: invalid adaptation field")
	ErrMpegtsSection         = errors.New("m2ts.mpegts: invalid section")
	ErrMpegtsPes             = errors.New("m2ts.mpegts: invalid pes")
	ErrMpegtsDescriptor      = errors.New("m2ts.mpegts: invalid descriptor loop")
	ErrMpegtsPidUnbound      = errors.New("m2ts.mpegts: pid not bound to any stream")
	ErrMpegtsNotPesStream    = errors.New("m2ts.mpegts: pid not bound to a pes stream")
	ErrMpegtsReentrant       = errors.New("m2ts.mpegts: demuxer called from its own event callback")
)

func NewErrMpegtsSync(skipped int) error {
	return fmt.Errorf("%w. skipped=%d", ErrMpegtsSync, skipped)
}

func NewErrMpegtsTruncated(remain int) error {
	return fmt.Errorf("%w. remain=%d", ErrMpegtsTruncated, remain)
}

func NewErrMpegtsAdaptationField(afc uint8, length int) error {
	return fmt.Errorf("%w. afc=%d, length=%d", ErrMpegtsAdaptationField, afc, length)
}

func NewErrMpegtsPid(err error, pid uint16) error {
	return fmt.Errorf("%w. pid=%d", err, pid)
}

// ----- app/tsdemux ---------------------------------------------------------------------------------------------------

var ErrUnsupportedInput = errors.New("m2ts.tsdemux: unsupported input")
