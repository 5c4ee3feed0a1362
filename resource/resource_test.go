package resource

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResourceAcquireReleaseRefcount(t *testing.T) {
	var r Resource
	r.Init()

	r.IncRef()
	require.False(t, r.DecRef())

	r.IncRef()
	r.IncRef()
	require.False(t, r.DecRef())
	require.True(t, r.DecRef())
}

func TestResourceReadWriteUseCounts(t *testing.T) {
	var r Resource
	r.Init()

	r.Acquire(AccessRead)
	require.True(t, r.IsInUse(AccessRead))
	require.False(t, r.IsInUse(AccessWrite))

	r.Acquire(AccessWrite)
	require.True(t, r.IsInUse(AccessRead)) // pending write counts as pending read
	require.True(t, r.IsInUse(AccessWrite))

	require.False(t, r.Release(AccessWrite))
	require.True(t, r.IsInUse(AccessRead))
	require.False(t, r.IsInUse(AccessWrite))

	require.True(t, r.Release(AccessRead))
}

func TestResourceConvertRef(t *testing.T) {
	var r Resource
	r.Init()

	r.Acquire(AccessRead)
	require.True(t, r.IsInUse(AccessRead))

	r.ConvertRef(AccessRead, AccessWrite)
	require.True(t, r.IsInUse(AccessWrite))

	require.True(t, r.Release(AccessWrite))
}

func TestResourceCookieUnique(t *testing.T) {
	var a, b Resource
	a.Init()
	b.Init()
	require.NotEqual(t, a.Cookie(), b.Cookie())
}
