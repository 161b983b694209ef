package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingRequest struct{ Value string }

type otherRequest struct{}

func TestDispatcherRoutesByRequestType(t *testing.T) {
	d := NewDispatcher()

	err := d.Register(pingRequest{}, func(ctx context.Context, req Request) (interface{}, error) {
		return "pong:" + req.(pingRequest).Value, nil
	})
	require.NoError(t, err)
	err = d.Register(otherRequest{}, func(ctx context.Context, req Request) (interface{}, error) {
		return nil, errors.New("boom")
	})
	require.NoError(t, err)

	res, err := d.Send(context.Background(), pingRequest{Value: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "pong:hello", res)

	_, err = d.Send(context.Background(), otherRequest{})
	assert.EqualError(t, err, "boom")
}

func TestDispatcherRejectsDuplicateRegistration(t *testing.T) {
	d := NewDispatcher()
	fn := func(ctx context.Context, req Request) (interface{}, error) { return nil, nil }

	require.NoError(t, d.Register(pingRequest{}, fn))
	err := d.Register(pingRequest{}, fn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestDispatcherRejectsNilRequest(t *testing.T) {
	d := NewDispatcher()
	err := d.Register(nil, func(ctx context.Context, req Request) (interface{}, error) { return nil, nil })
	assert.Error(t, err)
}

func TestDispatcherUnknownRequestFails(t *testing.T) {
	d := NewDispatcher()
	_, err := d.Send(context.Background(), pingRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler registered")
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	d := NewDispatcher()
	fn := func(ctx context.Context, req Request) (interface{}, error) { return nil, nil }
	d.MustRegister(pingRequest{}, fn)
	assert.Panics(t, func() { d.MustRegister(pingRequest{}, fn) })
}

func TestRegisteredTypesSorted(t *testing.T) {
	d := NewDispatcher()
	fn := func(ctx context.Context, req Request) (interface{}, error) { return nil, nil }
	require.NoError(t, d.Register(pingRequest{}, fn))
	require.NoError(t, d.Register(otherRequest{}, fn))

	types := d.RegisteredTypes()
	require.Len(t, types, 2)
	assert.Equal(t, []string{"command.otherRequest", "command.pingRequest"}, types)
}

func TestTypedSend(t *testing.T) {
	d := NewDispatcher()
	require.NoError(t, d.Register(pingRequest{}, func(ctx context.Context, req Request) (interface{}, error) {
		return "pong", nil
	}))

	res, err := Send[string](context.Background(), d, pingRequest{})
	require.NoError(t, err)
	assert.Equal(t, "pong", res)

	_, err = Send[int](context.Background(), d, pingRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned")
}
