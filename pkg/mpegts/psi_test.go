// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts_test

import (
	"errors"
	"testing"

	"github.com/q191201771/m2ts/pkg/base"
	"github.com/q191201771/m2ts/pkg/mpegts"
	"github.com/q191201771/naza/pkg/assert"
)

func TestParsePat(t *testing.T) {
	section := mpegts.NewPatSection(7, 3, []mpegts.PatProgramElement{
		{ProgramNumber: 0, Pid: 0x10},
		{ProgramNumber: 1, Pid: 0x1000},
		{ProgramNumber: 2, Pid: 0x1001},
	}).Pack()
	assert.Equal(t, true, mpegts.VerifyCrc32(section))

	pat, err := mpegts.ParsePat(section)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint16(7), pat.TransportStreamId)
	assert.Equal(t, uint8(3), pat.Version)
	assert.Equal(t, uint16(0x10), pat.NetworkPid)
	assert.Equal(t, []mpegts.PatProgramElement{
		{ProgramNumber: 1, Pid: 0x1000},
		{ProgramNumber: 2, Pid: 0x1001},
	}, pat.Programs)
}

func TestParsePmt(t *testing.T) {
	programInfo := []mpegts.Descriptor{
		{Tag: mpegts.DescriptorTagRegistration, Registration: mpegts.DescriptorRegistration{FormatIdentifier: 0x48444D56}},
	}
	elements := []mpegts.PmtProgramElement{
		{StreamType: mpegts.StreamTypeAvc, Pid: 0x100},
		{StreamType: mpegts.StreamTypeAac, Pid: 0x101, Descriptors: []mpegts.Descriptor{
			{Tag: mpegts.DescriptorTagISO639LanguageAndAudioType, Data: []byte{'e', 'n', 'g', 0}},
		}},
	}
	section := mpegts.NewPmtSection(1, 5, 0x100, programInfo, elements).Pack()

	pmt, err := mpegts.ParsePmt(section)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint16(1), pmt.ProgramNumber)
	assert.Equal(t, uint8(5), pmt.Version)
	assert.Equal(t, uint16(0x100), pmt.PcrPid)
	assert.Equal(t, 1, len(pmt.ProgramInfo))
	assert.Equal(t, uint32(0x48444D56), pmt.ProgramInfo[0].Registration.FormatIdentifier)
	assert.Equal(t, 2, len(pmt.ProgramElements))
	assert.Equal(t, mpegts.StreamTypeAvc, pmt.ProgramElements[0].StreamType)
	assert.Equal(t, uint16(0x100), pmt.ProgramElements[0].Pid)
	assert.Equal(t, 0, len(pmt.ProgramElements[0].Descriptors))
	assert.Equal(t, mpegts.StreamTypeAac, pmt.ProgramElements[1].StreamType)
	assert.Equal(t, 1, len(pmt.ProgramElements[1].Descriptors))
	assert.Equal(t, uint8(mpegts.DescriptorTagISO639LanguageAndAudioType), pmt.ProgramElements[1].Descriptors[0].Tag)
	assert.Equal(t, []byte{'e', 'n', 'g', 0}, pmt.ProgramElements[1].Descriptors[0].Data)
	assert.Equal(t, false, pmt.ProgramElements[1].BadDescriptors)
}

func TestParsePatPmt_ShortSection(t *testing.T) {
	section := mpegts.NewShortSection(mpegts.TsPsiIdPas, []byte{0, 1, 0xF0, 0}, true).Pack()
	_, err := mpegts.ParsePat(section)
	assert.Equal(t, true, errors.Is(err, base.ErrMpegtsSection))

	section = mpegts.NewShortSection(mpegts.TsPsiIdPms, []byte{0xE1, 0, 0xF0, 0}, true).Pack()
	_, err = mpegts.ParsePmt(section)
	assert.Equal(t, true, errors.Is(err, base.ErrMpegtsSection))

	_, err = mpegts.ParsePat([]byte{0})
	assert.Equal(t, true, errors.Is(err, base.ErrShortBuffer))
}

func TestParseDescriptors(t *testing.T) {
	b := []byte{
		0x05, 0x04, 'H', 'E', 'V', 'C',
		0x7f, 0x02, 0x0e, 0x01,
		0x0a, 0x04, 'c', 'h', 'i', 0x00,
	}
	ds, err := mpegts.ParseDescriptors(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, 3, len(ds))
	assert.Equal(t, uint32(0x48455643), ds[0].Registration.FormatIdentifier)
	assert.Equal(t, uint8(0x0e), ds[1].Extension.Tag)
	assert.Equal(t, []byte{0x01}, ds[1].Extension.Unknown)
	assert.Equal(t, uint8(4), ds[2].Length)

	// 最后一个描述符被截断，返回前面的
	ds, err = mpegts.ParseDescriptors(b[:14])
	assert.Equal(t, true, errors.Is(err, base.ErrMpegtsDescriptor))
	assert.Equal(t, 2, len(ds))

	ds, err = mpegts.ParseDescriptors(nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(ds))
}
