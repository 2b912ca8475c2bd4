package migrate

import (
	"github.com/dl-alexandre/gdm/internal/utils"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Options controls a migration run
type Options struct {
	// TagFolder is the source-account folder marking migrated documents
	TagFolder string `json:"tagFolder"`
	// PlaceholderTitle is the title an upload carries until its metadata is copied
	PlaceholderTitle string `json:"placeholderTitle"`
	DryRun           bool   `json:"dryRun"`
	// IncludeShared also runs the shared-documents pipeline
	IncludeShared bool `json:"includeShared"`
	// OnlyShared runs the shared-documents pipeline alone
	OnlyShared bool `json:"onlyShared"`
	// Limit caps the documents each pipeline considers; zero means no limit
	Limit int `json:"limit"`
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		TagFolder:        utils.DefaultTagFolderName,
		PlaceholderTitle: utils.DefaultPlaceholderTitle,
	}
}

// Validate checks the options
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.TagFolder, validation.Required, validation.Length(1, 255)),
		validation.Field(&o.PlaceholderTitle, validation.Required, validation.Length(1, 255)),
		validation.Field(&o.Limit, validation.Min(0)),
	)
}

func (o Options) runOwned() bool {
	return !o.OnlyShared
}

func (o Options) runShared() bool {
	return o.IncludeShared || o.OnlyShared
}
