package apns_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-apns-pusher/internal/platform/apns"
	push "github.com/tinywideclouds/go-apns-pusher/pkg/apns"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, msg *push.Message, devices *push.Devices) (*push.Results, error) {
	args := m.Called(ctx, msg, devices)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*push.Results), args.Error(1)
}

func (m *MockSender) Close() error {
	return m.Called().Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// response parses a canned APNS reply.
func response(token, status, body string) *push.Response {
	return push.Parse(token, []byte("HTTP/2 "+status+"\r\n\r\n"), []byte(body))
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	msg, err := push.NewMessage(push.Alert{Title: "Hello iOS"}, push.WithTopic("com.test.app"))
	require.NoError(t, err)

	t.Run("Happy Path - Success", func(t *testing.T) {
		sender := new(MockSender)
		dispatcher := apns.NewDispatcher(sender, newTestLogger())
		devices, err := push.NewDevices(push.Device{Token: "token-1"})
		require.NoError(t, err)

		// Arrange
		results := push.NewResults(response("token-1", "200", ""))
		sender.On("Send", ctx, msg, devices).Return(results, nil)

		// Act
		receipt, invalid, got, err := dispatcher.Dispatch(ctx, msg, devices)

		// Assert
		require.NoError(t, err)
		assert.Empty(t, invalid)
		assert.Equal(t, "success:1 invalid:0 total_fail:0", receipt.String())
		assert.Same(t, results, got)
		sender.AssertExpectations(t)
	})

	t.Run("Self-Healing - Bad and Unregistered tokens", func(t *testing.T) {
		sender := new(MockSender)
		dispatcher := apns.NewDispatcher(sender, newTestLogger())
		devices, err := push.NewDevices(
			push.Device{Token: "bad-token"},
			push.Device{Token: "gone-token"},
			push.Device{Token: "topic-wrong"},
		)
		require.NoError(t, err)

		// Arrange
		sender.On("Send", ctx, msg, devices).Return(push.NewResults(
			response("bad-token", "400", `{"reason":"BadDeviceToken"}`),
			response("gone-token", "410", `{"reason":"Unregistered","timestamp":1600000000}`),
			response("topic-wrong", "400", `{"reason":"TopicDisallowed"}`),
		), nil)

		// Act
		receipt, invalid, _, err := dispatcher.Dispatch(ctx, msg, devices)

		// Assert
		require.NoError(t, err)
		require.Len(t, invalid, 2)
		assert.Equal(t, "bad-token", invalid[0].Token)
		assert.Equal(t, "gone-token", invalid[1].Token)
		assert.Equal(t, apns.Receipt{Success: 0, Invalid: 2, Failed: 3}, receipt)
	})

	t.Run("Batch Failure - No HTTP/2", func(t *testing.T) {
		sender := new(MockSender)
		dispatcher := apns.NewDispatcher(sender, newTestLogger())
		devices, err := push.NewDevices(push.Device{Token: "token-1"})
		require.NoError(t, err)

		// Arrange
		sender.On("Send", ctx, msg, devices).Return(nil, &push.NoHttp2SupportError{Transport: "test"})

		// Act
		_, _, _, err = dispatcher.Dispatch(ctx, msg, devices)

		// Assert
		var noH2 *push.NoHttp2SupportError
		assert.True(t, errors.As(err, &noH2))
	})

	t.Run("Empty batch is skipped", func(t *testing.T) {
		sender := new(MockSender)
		dispatcher := apns.NewDispatcher(sender, newTestLogger())
		devices, err := push.NewDevices()
		require.NoError(t, err)

		receipt, invalid, results, err := dispatcher.Dispatch(ctx, msg, devices)

		require.NoError(t, err)
		assert.Zero(t, receipt)
		assert.Nil(t, invalid)
		assert.Nil(t, results)
		sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})
}
