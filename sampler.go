package maybenot

import "github.com/zoobzio/maybenot/rng"

// sampler is a package-local alias for rng.Source, used throughout the
// engine so call sites don't need to import rng directly just to name the
// parameter type.
type sampler = rng.Source
