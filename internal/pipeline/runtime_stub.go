//go:build !govips || !cgo

package pipeline

func Startup(_ int) error {
	return nil
}

func Shutdown() {}

func newTransformer() (Transformer, error) {
	return stdTransformer{}, nil
}
