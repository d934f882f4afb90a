package config

// ProjectFile represents the structure of the loam.yaml project file.
type ProjectFile struct {
	Version string `yaml:"version"`

	// Package is the project's own name, used for display only.
	Package string `yaml:"package"`

	// Lua is the target runtime version, e.g. "5.1".
	Lua string `yaml:"lua"`

	// Registry overrides the manifest registry base URL.
	Registry string `yaml:"registry"`

	// Tree overrides the install tree location, relative to the project root.
	Tree string `yaml:"tree"`

	// Cache overrides the download and scratch cache location, which
	// otherwise lives under the user cache directory.
	Cache string `yaml:"cache"`

	// Parallelism bounds concurrent builds; 0 means one per CPU.
	Parallelism int `yaml:"parallelism"`

	// IncludeDev opts development versions into resolution.
	IncludeDev bool `yaml:"includeDev"`

	// Dependencies are root version requests, one declaration per line,
	// e.g. "lpeg >= 1.0" or "argparse ~> 0.7".
	Dependencies []string `yaml:"dependencies"`
}
