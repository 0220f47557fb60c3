package defgraph

import (
	"fmt"
	"path"

	"github.com/defview/defgraph/internal/fieldtree"
	"github.com/defview/defgraph/internal/reflink"
	"github.com/defview/defgraph/internal/registry"
)

type stringOption struct {
	value string
	set   bool
}

func (o stringOption) or(fallback string) string {
	if !o.set {
		return fallback
	}
	return o.value
}

// Options configures definition recognition, merge semantics, reference
// detection, and parallelism. The zero value uses the conventions of the def
// corpus (Defs container, defName identity, ParentName/Abstract attributes,
// li list items).
type Options struct {
	containerTag          stringOption
	nameField             stringOption
	nameAttr              stringOption
	parentAttr            stringOption
	abstractAttr          stringOption
	listItemTag           stringOption
	mergeAttr             stringOption
	mergeAppendValue      stringOption
	referencePatterns     []string
	allowAbstractOverride bool
	workers               int
}

// NewOptions returns a default, valid options value.
func NewOptions() Options {
	return Options{}
}

// WithContainerTag sets the document root tag holding definitions.
func (o Options) WithContainerTag(value string) Options {
	o.containerTag = stringOption{value: value, set: true}
	return o
}

// WithNameField sets the child element carrying the definition name.
func (o Options) WithNameField(value string) Options {
	o.nameField = stringOption{value: value, set: true}
	return o
}

// WithNameAttr sets the attribute naming definitions without a name field.
func (o Options) WithNameAttr(value string) Options {
	o.nameAttr = stringOption{value: value, set: true}
	return o
}

// WithParentAttr sets the attribute naming the inherited definition.
func (o Options) WithParentAttr(value string) Options {
	o.parentAttr = stringOption{value: value, set: true}
	return o
}

// WithAbstractAttr sets the attribute marking inheritance-only bases.
func (o Options) WithAbstractAttr(value string) Options {
	o.abstractAttr = stringOption{value: value, set: true}
	return o
}

// WithListItemTag sets the element tag marking list members.
func (o Options) WithListItemTag(value string) Options {
	o.listItemTag = stringOption{value: value, set: true}
	return o
}

// WithMergeAttr sets the attribute carrying a list's merge mode.
func (o Options) WithMergeAttr(value string) Options {
	o.mergeAttr = stringOption{value: value, set: true}
	return o
}

// WithMergeAppendValue sets the merge attribute value selecting append
// semantics.
func (o Options) WithMergeAppendValue(value string) Options {
	o.mergeAppendValue = stringOption{value: value, set: true}
	return o
}

// WithReferencePatterns replaces the field-name patterns gating scalar
// reference candidates (path.Match syntax).
func (o Options) WithReferencePatterns(patterns ...string) Options {
	o.referencePatterns = patterns
	return o
}

// WithAllowAbstractOverride permits a later abstract definition to replace
// an earlier one with the same name.
func (o Options) WithAllowAbstractOverride(value bool) Options {
	o.allowAbstractOverride = value
	return o
}

// WithWorkers bounds parse and scan parallelism (0 uses GOMAXPROCS).
func (o Options) WithWorkers(value int) Options {
	o.workers = value
	return o
}

// Validate validates option values.
func (o Options) Validate() error {
	for _, pattern := range o.referencePatterns {
		if _, err := path.Match(pattern, "probe"); err != nil {
			return fmt.Errorf("reference pattern %q: %w", pattern, err)
		}
	}
	if o.workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", o.workers)
	}
	return nil
}

func (o Options) registryConfig() registry.Config {
	defaults := registry.DefaultConfig()
	return registry.Config{
		ContainerTag:          o.containerTag.or(defaults.ContainerTag),
		NameField:             o.nameField.or(defaults.NameField),
		NameAttr:              o.nameAttr.or(defaults.NameAttr),
		ParentAttr:            o.parentAttr.or(defaults.ParentAttr),
		AbstractAttr:          o.abstractAttr.or(defaults.AbstractAttr),
		AllowAbstractOverride: o.allowAbstractOverride,
		Tree:                  o.treeConfig(),
	}
}

func (o Options) treeConfig() fieldtree.Config {
	defaults := fieldtree.DefaultConfig()
	return fieldtree.Config{
		ListItemTag:      o.listItemTag.or(defaults.ListItemTag),
		MergeAttr:        o.mergeAttr.or(defaults.MergeAttr),
		MergeAppendValue: o.mergeAppendValue.or(defaults.MergeAppendValue),
	}
}

func (o Options) linkConfig() reflink.Config {
	defaults := reflink.DefaultConfig()
	cfg := reflink.Config{
		FieldPatterns: defaults.FieldPatterns,
		NameField:     o.nameField.or(defaults.NameField),
		ListItemTag:   o.listItemTag.or(defaults.ListItemTag),
	}
	if o.referencePatterns != nil {
		cfg.FieldPatterns = o.referencePatterns
	}
	return cfg
}
