package generator

import (
	"context"
	"errors"
	"strings"
)

// FallbackRefiner tries each refiner in order and returns the first
// non-empty description.
type FallbackRefiner struct {
	refiners []Refiner
}

// NewFallbackRefiner drops nil entries. It returns nil when nothing is left,
// which disables refinement.
func NewFallbackRefiner(refiners ...Refiner) *FallbackRefiner {
	kept := make([]Refiner, 0, len(refiners))
	for _, r := range refiners {
		if r != nil {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &FallbackRefiner{refiners: kept}
}

func (f *FallbackRefiner) Name() string {
	names := make([]string, 0, len(f.refiners))
	for _, r := range f.refiners {
		names = append(names, r.Name())
	}
	return strings.Join(names, "+")
}

func (f *FallbackRefiner) Refine(ctx context.Context, prompt string) (string, error) {
	var errs []error
	for _, r := range f.refiners {
		out, err := r.Refine(ctx, prompt)
		if err == nil && strings.TrimSpace(out) != "" {
			return out, nil
		}
		if err == nil {
			err = errors.New("generator: " + r.Name() + " returned an empty description")
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", errors.Join(errs...)
}
