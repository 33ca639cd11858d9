package htmldoc

import (
	"context"
	"fmt"
	"os"

	"github.com/mj1618/user-routine/internal/platform"
)

func init() {
	platform.Register("html", open)
}

func open(_ context.Context, opts platform.OpenOptions) (*platform.Provider, error) {
	if opts.HTMLPath == "" {
		return nil, fmt.Errorf("html driver needs an HTML file path")
	}
	f, err := os.Open(opts.HTMLPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := Parse(f)
	if err != nil {
		return nil, err
	}
	return &platform.Provider{Document: doc}, nil
}
