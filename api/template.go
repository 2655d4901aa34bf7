// Package api defines the schema of rule-template files. Templates are
// authored outside the tool (one HCL file per document type in the
// templates directory) and control which fields scale and how.
package api

// Template is the root of one rule-template file.
type Template struct {
	// Scales optionally declares the supported scale factor set, as
	// tokens like "2" or "3:2". Every template file that declares
	// scales must declare the same set.
	Scales []string `hcl:"scales,optional"`
	// Document configures the document type this file is about.
	Document *Document `hcl:"document,block"`
}

// Document describes one document type: how its files are recognized and
// the transform rules that apply to it.
type Document struct {
	// Type is a short identifier, e.g. "nl2mat".
	Type string `hcl:"type,label"`
	// Match is the filename glob that selects files of this type.
	Match string `hcl:"match"`
	// Root is the required tag of the document's root element.
	Root string `hcl:"root"`
	// Role is "material" or "object".
	Role string `hcl:"role"`
	// Naming selects how scaled filenames are derived: "dir" (default)
	// keeps basenames and relies on the scale-tag directory partition,
	// "stem" appends the scale tag to the file stem.
	Naming string `hcl:"naming,optional"`
	// Assets lists field paths whose values name sibling files (textures,
	// previews) to copy alongside each scaled output.
	Assets []string `hcl:"assets,optional"`
	// Rules are the per-field transform rules.
	Rules []Rule `hcl:"rule,block"`
}

// Rule binds a field path to a transform kind. Fields without a rule pass
// through untouched.
type Rule struct {
	Name string `hcl:"name,label"`
	// Path addresses an element ("a/b/c" targets its text content) or an
	// attribute ("a/b/c@attr"), relative to the document root. A "*"
	// segment matches any tag.
	Path string `hcl:"path"`
	// Kind is one of "identity", "scale-linear", "scale-inverse" or
	// "filename-suffix".
	Kind string `hcl:"kind"`
}
