/*
Copyright 2024 The WeaveCore Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

 http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package bdx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendInitRoundTripNarrowWithInlineMetadata(t *testing.T) {
	s, err := NewSendInit(1, true, false, false, 256, false, 0, 1024, "firmware.bin", []byte{0xAA, 0xBB})
	require.NoError(t, err)

	buf, err := s.Pack()
	require.NoError(t, err)

	got, err := ParseSendInit(buf)
	require.NoError(t, err)
	require.True(t, s.Equal(got))
	require.False(t, got.WideRange)
	require.False(t, got.StartOffsetPresent)
	require.True(t, got.DefiniteLength)
}

func TestSendInitRoundTripWideWithStartOffset(t *testing.T) {
	s, err := NewSendInit(2, false, true, false, 512, true, 4096, 0, "update.img", nil)
	require.NoError(t, err)

	buf, err := s.Pack()
	require.NoError(t, err)

	got, err := ParseSendInit(buf)
	require.NoError(t, err)
	require.True(t, s.Equal(got))
	require.True(t, got.WideRange)
	require.True(t, got.StartOffsetPresent)
	require.False(t, got.DefiniteLength, "zero length means indefinite")
}

func TestSendInitMetadataWriteCallbackIsIdempotent(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	s, err := NewSendInit(1, true, false, false, 64, false, 0, 10, "x", nil)
	require.NoError(t, err)
	s.MetaDataWriteCallback = func(buf []byte) (int, error) {
		return copy(buf, payload), nil
	}

	length, err := s.PackedLength()
	require.NoError(t, err)

	buf, err := s.Pack()
	require.NoError(t, err)
	require.Len(t, buf, length)

	got, err := ParseSendInit(buf)
	require.NoError(t, err)
	require.Equal(t, payload, got.MetaData)
}

func TestSendAcceptRejectsMultipleTransferModeBits(t *testing.T) {
	_, err := NewSendAccept(1, ModeSenderDrive|ModeReceiverDrive, 128, nil)
	require.ErrorIs(t, err, ErrInvalidTransferMode)

	_, err = NewSendAccept(1, 0, 128, nil)
	require.ErrorIs(t, err, ErrInvalidTransferMode)
}

func TestSendAcceptRoundTrip(t *testing.T) {
	a, err := NewSendAccept(3, ModeAsynchronous, 128, []byte("meta"))
	require.NoError(t, err)

	buf := a.Pack()
	require.Len(t, buf, a.PackedLength())

	got, err := ParseSendAccept(buf)
	require.NoError(t, err)
	require.True(t, a.Equal(got))
}

func TestReceiveAcceptRoundTripWide(t *testing.T) {
	a, err := NewReceiveAccept(1, ModeReceiverDrive, 64, true, 1<<40, nil)
	require.NoError(t, err)

	buf := a.Pack()
	require.Len(t, buf, a.PackedLength())

	got, err := ParseReceiveAccept(buf)
	require.NoError(t, err)
	require.True(t, a.Equal(got))
	require.Equal(t, uint64(1<<40), got.Length)
}

func TestReceiveAcceptRejectsMultipleTransferModeBits(t *testing.T) {
	_, err := NewReceiveAccept(1, ModeSenderDrive|ModeAsynchronous, 64, false, 10, nil)
	require.ErrorIs(t, err, ErrInvalidTransferMode)
}

func TestBlockQueryRoundTrip(t *testing.T) {
	q := NewBlockQuery(7)
	buf := q.Pack()
	require.Len(t, buf, 1)

	got, err := ParseBlockQuery(buf)
	require.NoError(t, err)
	require.True(t, q.Equal(got))
}

func TestBlockQueryV1UsesFourByteCounter(t *testing.T) {
	q := NewBlockQueryV1(0x01020304)
	buf := q.Pack()
	require.Len(t, buf, 4)

	got, err := ParseBlockQueryV1(buf)
	require.NoError(t, err)
	require.True(t, q.Equal(got))
}

func TestBlockSendRoundTripBorrowsDataFromBuffer(t *testing.T) {
	data := []byte("the quick brown fox")
	s := NewBlockSend(9, data)

	buf := s.Pack()
	got, err := ParseBlockSend(buf)
	require.NoError(t, err)
	require.True(t, s.Equal(got))

	// Data is a window into the packed buffer, not a copy.
	require.Equal(t, &buf[1], &got.Data[0])
}

func TestBlockSendV1RoundTrip(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	s := NewBlockSendV1(0xFFFFFFFE, data)

	buf := s.Pack()
	got, err := ParseBlockSendV1(buf)
	require.NoError(t, err)
	require.True(t, s.Equal(got))
}

func TestBlockSendEqualityComparesOnlyFirstLengthBytes(t *testing.T) {
	a := &BlockSend{BlockCounter: 1, Length: 3, Data: []byte{1, 2, 3, 99, 99}}
	b := &BlockSend{BlockCounter: 1, Length: 3, Data: []byte{1, 2, 3}}
	require.True(t, a.Equal(b))
}

func TestSendInitPackRejectsOversizedMetadataCallback(t *testing.T) {
	s, err := NewSendInit(1, true, false, false, 64, false, 0, 10, "x", nil)
	require.NoError(t, err)
	s.MetaDataWriteCallback = func(buf []byte) (int, error) {
		return len(buf) + 1, nil
	}
	_, err = s.Pack()
	require.ErrorIs(t, err, ErrMetadataTooLarge)
}

func TestSendInitRejectsMultipleTransferModeBits(t *testing.T) {
	_, err := NewSendInit(1, true, true, false, 64, false, 0, 10, "x", nil)
	require.ErrorIs(t, err, ErrInvalidTransferMode)
}
