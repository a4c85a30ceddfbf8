package rews

import (
	"github.com/pkg/errors"
)

var (
	ErrConnectionClosed = errors.New("connection has been closed")
	ErrCannotConnect    = errors.New("connection cannot be established")
	ErrNotOpen          = errors.New("transport is not open")
	ErrTerminated       = errors.New("client has been terminated")
	ErrAlreadyOpen      = errors.New("client is already open")
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
)
