package gpix

import "errors"

// Errors returned by the compute pipeline. They are always wrapped with
// context, classify with [errors.Is]. None of them is retried internally.
var (
	ErrPlatformUnsupported   = errors.New("no compute backend available")
	ErrAdapterUnavailable    = errors.New("no suitable adapter")
	ErrDeviceCreationFailed  = errors.New("device creation failed")
	ErrInvalidBufferSize     = errors.New("invalid buffer size")
	ErrBindingLayoutMismatch = errors.New("binding layout mismatch")
	ErrMapTimeout            = errors.New("buffer map timed out")
	ErrMapAborted            = errors.New("buffer map aborted")
	ErrShaderCompile         = errors.New("shader compile error")

	ErrUsageMismatch   = errors.New("buffer usage does not cover operation")
	ErrInvalidDispatch = errors.New("invalid dispatch plan")
	ErrInvalidImage    = errors.New("invalid pixel buffer")
)
