package exporter

import (
	"log/slog"

	"github.com/starford/vaultexport/internal/postprocessor"
)

// Config selects the postprocessors of an export run.
type Config struct {
	FlatHierarchy      bool
	Author             string
	HardLineBreaks     bool
	RemoveEmptyAliases bool
	EmbedInfo          bool
	SkipTags           []string
	OnlyTags           []string
	// Workers bounds the number of notes processed concurrently.
	Workers int
	// MaxEmbedDepth bounds nested transclusion. Zero disables embeds.
	MaxEmbedDepth int
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		RemoveEmptyAliases: true,
		EmbedInfo:          true,
		Workers:            4,
		MaxEmbedDepth:      10,
	}
}

// BuildPipelines assembles the note pipeline and the pipeline applied to
// embedded notes before they are spliced into their host.
func BuildPipelines(cfg Config, logger *slog.Logger) (notes, embeds *postprocessor.Pipeline) {
	var steps []postprocessor.Postprocessor
	if len(cfg.SkipTags) > 0 || len(cfg.OnlyTags) > 0 {
		steps = append(steps, postprocessor.FilterByTags(cfg.SkipTags, cfg.OnlyTags))
	}
	if cfg.RemoveEmptyAliases {
		steps = append(steps, postprocessor.RemoveEmptyAliases(logger))
	}
	if cfg.Author != "" {
		steps = append(steps, postprocessor.AddAuthor(cfg.Author))
	}
	if cfg.HardLineBreaks {
		steps = append(steps, postprocessor.SoftbreaksToHardbreaks)
	}
	if cfg.FlatHierarchy {
		steps = append(steps, postprocessor.FlatHierarchy)
	}

	var embedSteps []postprocessor.Postprocessor
	if cfg.HardLineBreaks {
		embedSteps = append(embedSteps, postprocessor.SoftbreaksToHardbreaks)
	}
	if cfg.EmbedInfo {
		embedSteps = append(embedSteps, postprocessor.AddEmbedInfo)
	}

	return postprocessor.NewPipeline(steps...), postprocessor.NewPipeline(embedSteps...)
}
