package filestore

// Option represents a configuration option for a write
type Option func(*Options)

// Options contains all possible options for file writes
type Options struct {
	// ContentType specifies the MIME type of the file
	ContentType string

	// Metadata contains additional metadata for the file
	Metadata map[string]string

	// Visibility defines the file visibility (public or private)
	Visibility Visibility

	// Overwrite determines whether to overwrite existing files
	Overwrite bool
}

// Visibility represents file visibility
type Visibility string

const (
	// Private means the file is only readable by its owner
	Private Visibility = "private"

	// Public means the file is world readable
	Public Visibility = "public"
)

// WithContentType sets the content type of the file
func WithContentType(contentType string) Option {
	return func(o *Options) {
		o.ContentType = contentType
	}
}

// WithMetadata sets additional metadata for the file
func WithMetadata(metadata map[string]string) Option {
	return func(o *Options) {
		o.Metadata = metadata
	}
}

// WithVisibility sets the file visibility
func WithVisibility(visibility Visibility) Option {
	return func(o *Options) {
		o.Visibility = visibility
	}
}

// WithOverwrite enables or disables overwriting existing files
func WithOverwrite(overwrite bool) Option {
	return func(o *Options) {
		o.Overwrite = overwrite
	}
}

// ApplyOptions folds the given options into an Options value.
func ApplyOptions(options ...Option) *Options {
	opts := &Options{}
	for _, option := range options {
		option(opts)
	}
	return opts
}
