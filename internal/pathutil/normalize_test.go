package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const bs = DefaultSeparator

func TestNormalize(t *testing.T) {
	assert.Equal(t, `C:\Data`, Normalize(`  C:\Data\\ `, bs))
	assert.Equal(t, `C:\`, Normalize(`C:\`, bs))
	assert.Equal(t, `\`, Normalize(`\`, bs))
	assert.Equal(t, "/srv/data", Normalize("/srv/data/", '/'))
	assert.Equal(t, "/", Normalize("/", '/'))
	assert.Equal(t, "", Normalize("", bs))
}

func TestIsImmediateChild(t *testing.T) {
	tests := []struct {
		parent, child string
		want          bool
	}{
		{`C:\Data`, `C:\Data\Sub`, true},
		{`C:\Data`, `C:\Data\Sub\Deep`, false},
		{`C:\Data`, `C:\DataX`, false},
		{`C:\Data`, `C:\Data`, false},
		{`C:\Data`, `C:\Data\`, false},
		{`C:\`, `C:\Data`, true},
		{`C:\`, `C:\Data\Sub`, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsImmediateChild(tt.parent, tt.child, bs), "%s -> %s", tt.parent, tt.child)
	}
}

func TestParentAndBase(t *testing.T) {
	assert.Equal(t, `C:\Data`, Parent(`C:\Data\Sub`, bs))
	assert.Equal(t, `C:\`, Parent(`C:\Data`, bs))
	assert.Equal(t, "", Parent(`C:\`, bs))
	assert.Equal(t, "", Parent("Data", bs))
	assert.Equal(t, "/", Parent("/home", '/'))

	assert.Equal(t, "Sub", Base(`C:\Data\Sub`, bs))
	assert.Equal(t, `C:\`, Base(`C:\`, bs))
	assert.Equal(t, "Data", Base("Data", bs))
}

func TestUpperBound(t *testing.T) {
	prefix := ChildPrefix(`C:\Data`, bs)
	assert.Equal(t, `C:\Data\`, prefix)
	upper := UpperBound(prefix, bs)
	assert.Equal(t, `C:\Data]`, upper)

	for _, p := range []string{`C:\Data\a`, `C:\Data\zzz\yyy`, "C:\\Data\\\xfe"} {
		assert.True(t, p >= prefix && p < upper, p)
	}
	for _, p := range []string{`C:\Data`, `C:\DataX`, `C:\Datb`} {
		assert.False(t, p >= prefix && p < upper, p)
	}
}
