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

package tlv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestScalarRoundTrip exercises P1: parse(pack(v)) == v for each scalar kind.
func TestScalarRoundTrip(t *testing.T) {
	w := NewGrowableWriter()
	require.NoError(t, w.PutBool(ContextTag(1), true))
	require.NoError(t, w.PutInt(ContextTag(2), -12345))
	require.NoError(t, w.PutUInt(ContextTag(3), 987654321))
	require.NoError(t, w.PutString(ContextTag(4), "fw.img"))
	require.NoError(t, w.PutBytes(ContextTag(5), []byte{1, 2, 3, 4}))
	require.NoError(t, w.PutNull(ContextTag(6)))
	require.NoError(t, w.PutFloat64(ContextTag(7), 3.5))
	require.NoError(t, w.Finalize())

	r := NewReader(w.Bytes())

	ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	b, err := r.GetBool()
	require.NoError(t, err)
	require.True(t, b)

	ok, err = r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	iv, err := r.GetInt()
	require.NoError(t, err)
	require.EqualValues(t, -12345, iv)

	ok, err = r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	uv, err := r.GetUInt()
	require.NoError(t, err)
	require.EqualValues(t, 987654321, uv)

	ok, err = r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	s, err := r.GetString()
	require.NoError(t, err)
	require.Equal(t, "fw.img", s)

	ok, err = r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	bs, err := r.GetBytes()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, bs)

	ok, err = r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, KindNull, r.CurrentKind())

	ok, err = r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	fv, err := r.GetFloat64()
	require.NoError(t, err)
	require.Equal(t, 3.5, fv)

	ok, err = r.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStructureUniqueness(t *testing.T) {
	w := NewGrowableWriter()
	require.NoError(t, w.StartContainer(AnonymousTag(), KindStructure))
	require.NoError(t, w.PutInt(ContextTag(1), 1))
	err := w.PutInt(ContextTag(1), 2)
	require.ErrorIs(t, err, ErrDuplicateStructureTag)
}

func TestNestedContainerRoundTrip(t *testing.T) {
	w := NewGrowableWriter()
	require.NoError(t, w.StartContainer(AnonymousTag(), KindStructure))
	require.NoError(t, w.PutString(ContextTag(1), "outer"))
	require.NoError(t, w.StartContainer(ContextTag(2), KindArray))
	require.NoError(t, w.PutInt(AnonymousTag(), 1))
	require.NoError(t, w.PutInt(AnonymousTag(), 2))
	require.NoError(t, w.EndContainer())
	require.NoError(t, w.EndContainer())
	require.NoError(t, w.Finalize())

	r := NewReader(w.Bytes())
	ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, r.EnterContainer())

	ok, err = r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	s, err := r.GetString()
	require.NoError(t, err)
	require.Equal(t, "outer", s)

	ok, err = r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	kind, isContainer := r.ContainerKind()
	require.True(t, isContainer)
	require.Equal(t, KindArray, kind)
	require.NoError(t, r.EnterContainer())

	var got []int64
	for {
		ok, err := r.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		v, err := r.GetInt()
		require.NoError(t, err)
		got = append(got, v)
	}
	require.Equal(t, []int64{1, 2}, got)
	require.NoError(t, r.ExitContainer())

	ok, err = r.Next()
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, r.ExitContainer())
}

func TestSkipOverUnenteredContainer(t *testing.T) {
	w := NewGrowableWriter()
	require.NoError(t, w.StartContainer(AnonymousTag(), KindStructure))
	require.NoError(t, w.StartContainer(ContextTag(1), KindArray))
	require.NoError(t, w.PutInt(AnonymousTag(), 99))
	require.NoError(t, w.EndContainer())
	require.NoError(t, w.PutInt(ContextTag(2), 42))
	require.NoError(t, w.EndContainer())
	require.NoError(t, w.Finalize())

	r := NewReader(w.Bytes())
	ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, r.EnterContainer())

	ok, err = r.Next() // the array; not entered
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.Next() // must skip over the array's contents to the sibling int
	require.NoError(t, err)
	require.True(t, ok)
	v, err := r.GetInt()
	require.NoError(t, err)
	require.EqualValues(t, 42, v)
}

func TestBufferTooSmall(t *testing.T) {
	w := NewWriter(make([]byte, 2))
	err := w.PutBytes(ContextTag(1), []byte("too long for two bytes"))
	require.ErrorIs(t, err, ErrBufferTooSmall)
}

func TestWriterClosedAfterFinalize(t *testing.T) {
	w := NewGrowableWriter()
	require.NoError(t, w.PutInt(ContextTag(1), 1))
	require.NoError(t, w.Finalize())
	require.NoError(t, w.Finalize()) // idempotent
	err := w.PutInt(ContextTag(2), 2)
	require.ErrorIs(t, err, ErrWriterClosed)
}

func TestPutPreEncodedContainer(t *testing.T) {
	inner := NewGrowableWriter()
	require.NoError(t, inner.StartContainer(ContextTag(9), KindStructure))
	require.NoError(t, inner.PutInt(ContextTag(1), 7))
	require.NoError(t, inner.EndContainer())
	require.NoError(t, inner.Finalize())

	w := NewGrowableWriter()
	require.NoError(t, w.StartContainer(AnonymousTag(), KindStructure))
	require.NoError(t, w.PutPreEncodedContainer(ContextTag(55), inner.Bytes()))
	require.NoError(t, w.EndContainer())
	require.NoError(t, w.Finalize())

	r := NewReader(w.Bytes())
	ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, r.EnterContainer())

	ok, err = r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ContextTag(55), r.CurrentTag())
	require.NoError(t, r.EnterContainer())
	ok, err = r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	v, err := r.GetInt()
	require.NoError(t, err)
	require.EqualValues(t, 7, v)
}

func TestCopyContainerRewritesOuterTagOnly(t *testing.T) {
	src := NewGrowableWriter()
	require.NoError(t, src.StartContainer(ContextTag(1), KindStructure))
	require.NoError(t, src.PutInt(ContextTag(2), 5))
	require.NoError(t, src.EndContainer())
	require.NoError(t, src.Finalize())

	r := NewReader(src.Bytes())
	ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)

	dst := NewGrowableWriter()
	require.NoError(t, dst.CopyContainer(ContextTag(100), r))
	require.NoError(t, dst.Finalize())

	out := NewReader(dst.Bytes())
	ok, err = out.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ContextTag(100), out.CurrentTag())
	require.NoError(t, out.EnterContainer())
	ok, err = out.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ContextTag(2), out.CurrentTag())
	v, err := out.GetInt()
	require.NoError(t, err)
	require.EqualValues(t, 5, v)
}
