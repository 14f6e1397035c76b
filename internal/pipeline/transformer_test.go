package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-apns-pusher/internal/pipeline"
)

func TestBatchRequestTransformer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	testCases := []struct {
		name                  string
		input                 string
		expectError           bool
		expectedErrorContains string
		expectedDevices       int
	}{
		{
			name: "Happy Path - Full document",
			input: `{
				"alert": {"title": "Hi", "body": "There"},
				"sound": "default", "badge": 1, "category": "chat",
				"custom": {"msg_id": "123"},
				"topic": "com.test.app", "priority": 10, "expiration": 1700000000,
				"push_type": "alert", "collapse_id": "c1",
				"id": "123e4567-e89b-12d3-a456-426614174000",
				"devices": [{"token": "aaaa"}, {"token": "bbbb", "badge": 4, "sound": "ping.aiff"}]
			}`,
			expectedDevices: 2,
		},
		{
			name:            "Happy Path - No devices",
			input:           `{"alert": {"body": "Hi"}, "devices": []}`,
			expectedDevices: 0,
		},
		{
			name:                  "Failure - Malformed JSON",
			input:                 `{"alert":`,
			expectError:           true,
			expectedErrorContains: "failed to unmarshal batch document",
		},
		{
			name:                  "Failure - Empty alert",
			input:                 `{"alert": {}, "devices": [{"token": "aaaa"}]}`,
			expectError:           true,
			expectedErrorContains: "invalid batch: message",
		},
		{
			name:                  "Failure - Bad priority",
			input:                 `{"alert": {"body": "x"}, "priority": 7}`,
			expectError:           true,
			expectedErrorContains: "priority",
		},
		{
			name:                  "Failure - Bad id",
			input:                 `{"alert": {"body": "x"}, "id": "nope"}`,
			expectError:           true,
			expectedErrorContains: "id \"nope\"",
		},
		{
			name:                  "Failure - Device without token",
			input:                 `{"alert": {"body": "x"}, "devices": [{"badge": 1}]}`,
			expectError:           true,
			expectedErrorContains: "invalid batch: devices",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := pipeline.BatchRequestTransformer(ctx, []byte(tc.input))

			if tc.expectError {
				require.Error(t, err)
				assert.ErrorIs(t, err, pipeline.ErrInvalidBatch)
				assert.Contains(t, err.Error(), tc.expectedErrorContains)
				assert.Nil(t, req)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, req.Message)
			assert.Equal(t, tc.expectedDevices, req.Devices.Len())
		})
	}

	t.Run("Headers and payload are carried over", func(t *testing.T) {
		req, err := pipeline.BatchRequestTransformer(ctx, []byte(`{
			"alert": {"body": "Hi"}, "topic": "com.test.app", "priority": 5,
			"custom": {"msg_id": "123"}, "devices": [{"token": "aaaa"}]
		}`))
		require.NoError(t, err)

		h := req.Message.Headers()
		assert.Equal(t, "com.test.app", h.Get("apns-topic"))
		assert.Equal(t, "5", h.Get("apns-priority"))
		assert.Equal(t, "123", req.Message.BasePayload()["msg_id"])
	})
}
