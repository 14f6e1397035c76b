package apns_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-apns-pusher/pkg/apns"
)

func TestDevices(t *testing.T) {
	t.Run("Happy Path - insertion order is kept", func(t *testing.T) {
		devices, err := apns.NewDevices(
			apns.Device{Token: "b"},
			apns.Device{Token: "a", Badge: 3},
			apns.Device{Token: "b", Sound: "ping.aiff"},
		)
		require.NoError(t, err)

		assert.Equal(t, 3, devices.Len())
		assert.Equal(t, []string{"b", "a", "b"}, devices.Tokens())
		assert.Equal(t, 3, devices.All()[1].Badge)
	})

	t.Run("All returns a copy", func(t *testing.T) {
		devices, err := apns.NewDevices(apns.Device{Token: "a"})
		require.NoError(t, err)

		all := devices.All()
		all[0].Token = "changed"

		assert.Equal(t, "a", devices.All()[0].Token)
	})

	t.Run("Invalid - empty token", func(t *testing.T) {
		devices, err := apns.NewDevices()
		require.NoError(t, err)

		err = devices.Add(apns.Device{})

		var invalid *apns.InvalidDeviceError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, "Token", invalid.Field)
		assert.Equal(t, 0, devices.Len())
	})

	t.Run("Invalid - negative badge", func(t *testing.T) {
		_, err := apns.NewDevices(apns.Device{Token: "a", Badge: -1})

		var invalid *apns.InvalidDeviceError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, "Badge", invalid.Field)
	})
}
