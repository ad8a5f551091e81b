package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSimplePolicy(t *testing.T) {
	req := require.New(t)

	p, err := NewSimplePolicy("")
	req.NoError(err)
	req.Equal(RetainHistory, p.OnRoomEmpty("r"))

	p, err = NewSimplePolicy(" Purge ")
	req.NoError(err)
	req.Equal(PurgeHistory, p.OnRoomEmpty("r"))
	req.Equal(KickMember, p.OnBackPressure("r", "c"))

	_, err = NewSimplePolicy("forever")
	req.Error(err)
}
