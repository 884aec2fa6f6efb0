package tiler

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// layout of a configuration file. Sections are decoded by value so that keys missing from a
// section keep the value they had before decoding.
type configFile struct {
	TilerOptions
	Index  TilerIndexOptions  `toml:"index"`
	Verify TilerVerifyOptions `toml:"verify"`
}

// Decodes a TOML configuration file into opts. Keys missing from the file leave the current
// values of opts untouched, so defaults must be set before and explicit flags applied after.
func LoadConfigFile(path string, opts *TilerOptions) error {
	if opts.TilerIndexOptions == nil {
		opts.TilerIndexOptions = &TilerIndexOptions{}
	}
	if opts.TilerVerifyOptions == nil {
		opts.TilerVerifyOptions = &TilerVerifyOptions{}
	}

	file := configFile{
		TilerOptions: *opts,
		Index:        *opts.TilerIndexOptions,
		Verify:       *opts.TilerVerifyOptions,
	}
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return errors.Wrapf(err, "cannot parse config file %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return errors.Errorf("unknown keys in config file %s: %v", path, undecoded)
	}

	indexOptions, verifyOptions := opts.TilerIndexOptions, opts.TilerVerifyOptions
	*opts = file.TilerOptions
	*indexOptions = file.Index
	*verifyOptions = file.Verify
	opts.TilerIndexOptions, opts.TilerVerifyOptions = indexOptions, verifyOptions

	// accept lowercase values in the file
	opts.QueueOrder = ParseQueueOrder(string(opts.QueueOrder))
	return nil
}
