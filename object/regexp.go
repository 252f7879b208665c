package object

// Regexp is a compile-time-only value: the constant-pool entry a
// regex literal compiles to.  It records the pattern and flags; the
// VM instantiates a live RegExp object (via the standard library's
// constructor hook) whenever the constant is loaded, so this kind is
// never observable from scripts.
type Regexp struct {
	// Pattern holds the body of the literal.
	Pattern string

	// Flags holds the trailing flag characters.
	Flags string
}

// Type returns the type of this value.
func (r *Regexp) Type() Type { return "REGEXP" }

// Inspect returns a string-representation of the given value.
func (r *Regexp) Inspect() string { return "/" + r.Pattern + "/" + r.Flags }

// True returns the truthiness of the value.
func (r *Regexp) True() bool { return true }
