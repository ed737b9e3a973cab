package errs

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	reqErr := &RequestError{Method: "GET", Path: "/parser/status/1", StatusCode: 404, Payload: map[string]any{"detail": "Task not found"}}

	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindUnknown},
		{errors.New("plain"), KindUnknown},
		{&ValidationError{Err: ErrEmptySamples}, KindValidation},
		{reqErr, KindRequest},
		{&NotFoundError{TaskID: "1", Err: reqErr}, KindNotFound},
		{&StateError{TaskID: "1", Op: "fetch", State: "running", Err: ErrNotCompleted}, KindState},
		{errors.Wrap(&StateError{TaskID: "1", Op: "poll", State: "running", Err: ErrPollInFlight}, "poll"), KindState},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, KindOf(tc.err), "%v", tc.err)
	}
}

func TestRequestErrorMessage(t *testing.T) {
	err := &RequestError{Method: "POST", Path: "/parser/cancel/x", StatusCode: 400, Payload: map[string]any{"detail": "Cannot cancel task in 'completed' status"}}
	assert.Equal(t, "POST /parser/cancel/x: status 400: Cannot cancel task in 'completed' status", err.Error())

	netErr := &RequestError{Method: "GET", Path: "/config", Message: "connection refused"}
	assert.Equal(t, "GET /config: connection refused", netErr.Error())
}

func TestSentinelsSurviveWrapping(t *testing.T) {
	err := errors.Wrap(&ValidationError{Field: "fields", Err: ErrNoFields}, "create task")
	require.ErrorIs(t, err, ErrNoFields)
	assert.True(t, IsNotFoundStatus(&RequestError{StatusCode: 404}))
	assert.False(t, IsNotFoundStatus(&RequestError{StatusCode: 500}))
}
