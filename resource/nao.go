package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/c360studio/semres/variant"
	"github.com/c360studio/semres/vocabulary/nao"
)

// ErrRatingRange is returned for ratings outside 0-10.
var ErrRatingRange = errors.New("rating must be between 0 and 10")

// MaxRating is the highest nao:numericRating value.
const MaxRating = 10

// Label returns nao:prefLabel, falling back to rdfs:label.
func (r *Resource) Label(ctx context.Context) (string, error) {
	for _, p := range []string{nao.PrefLabel, nao.RDFSLabel} {
		v, err := r.Property(ctx, p)
		if err != nil {
			return "", err
		}
		if v.IsValid() {
			return v.ToString(), nil
		}
	}
	return "", nil
}

// SetLabel sets nao:prefLabel.
func (r *Resource) SetLabel(label string) error {
	return r.SetProperty(nao.PrefLabel, variant.NewString(label))
}

// Description returns nao:description.
func (r *Resource) Description(ctx context.Context) (string, error) {
	v, err := r.Property(ctx, nao.Description)
	if err != nil {
		return "", err
	}
	return v.ToString(), nil
}

// SetDescription sets nao:description.
func (r *Resource) SetDescription(text string) error {
	return r.SetProperty(nao.Description, variant.NewString(text))
}

// Rating returns nao:numericRating, falling back to the legacy nao:hasRating.
func (r *Resource) Rating(ctx context.Context) (int, error) {
	for _, p := range []string{nao.NumericRating, nao.HasRating} {
		v, err := r.Property(ctx, p)
		if err != nil {
			return 0, err
		}
		if v.IsValid() {
			return int(v.ToInt()), nil
		}
	}
	return 0, nil
}

// SetRating sets nao:numericRating.
func (r *Resource) SetRating(rating int) error {
	if rating < 0 || rating > MaxRating {
		return fmt.Errorf("%w: %d", ErrRatingRange, rating)
	}
	return r.SetProperty(nao.NumericRating, variant.NewInt(int64(rating)))
}

// Identifiers returns all nao:identifier values.
func (r *Resource) Identifiers(ctx context.Context) ([]string, error) {
	v, err := r.Property(ctx, nao.Identifier)
	if err != nil {
		return nil, err
	}
	return v.ToStringList(), nil
}

// AddIdentifier adds a nao:identifier value unless already present.
func (r *Resource) AddIdentifier(ctx context.Context, id string) error {
	v, err := r.Property(ctx, nao.Identifier)
	if err != nil {
		return err
	}
	if v.Contains(variant.NewString(id)) {
		return nil
	}
	return r.AddProperty(ctx, nao.Identifier, variant.NewString(id))
}

// Tags returns handles to the nao:Tag resources the resource is tagged with.
// The caller releases them.
func (r *Resource) Tags(ctx context.Context) ([]*Resource, error) {
	v, err := r.Property(ctx, nao.HasTag)
	if err != nil {
		return nil, err
	}
	uris := v.ToResourceList()
	tags := make([]*Resource, 0, len(uris))
	for _, uri := range uris {
		tags = append(tags, r.m.Resource(uri, nao.ClassTag))
	}
	return tags, nil
}

// TagNames returns the labels of the resource's tags.
func (r *Resource) TagNames(ctx context.Context) ([]string, error) {
	tags, err := r.Tags(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, t := range tags {
			t.Release()
		}
	}()

	names := make([]string, 0, len(tags))
	for _, t := range tags {
		label, err := t.Label(ctx)
		if err != nil {
			return nil, err
		}
		names = append(names, label)
	}
	return names, nil
}

// AddTag tags the resource with the tag called name, creating the tag if
// needed. A new tag is written immediately.
func (r *Resource) AddTag(ctx context.Context, name string) error {
	uri, err := r.m.tagURI(ctx, name)
	if err != nil {
		return err
	}
	current, err := r.Property(ctx, nao.HasTag)
	if err != nil {
		return err
	}
	if current.Contains(variant.NewResource(uri)) {
		return nil
	}
	return r.AddProperty(ctx, nao.HasTag, variant.NewResource(uri))
}

// SetTags replaces the resource's tags with the tags called names.
func (r *Resource) SetTags(ctx context.Context, names []string) error {
	uris := make([]string, 0, len(names))
	for _, name := range names {
		uri, err := r.m.tagURI(ctx, name)
		if err != nil {
			return err
		}
		uris = append(uris, uri)
	}
	if len(uris) == 0 {
		return r.RemoveProperty(nao.HasTag)
	}
	return r.SetProperty(nao.HasTag, variant.NewResourceList(uris...))
}

// tagURI resolves the tag called name, creating and syncing it when new.
func (m *Manager) tagURI(ctx context.Context, name string) (string, error) {
	tag := m.Resource(name, nao.ClassTag)
	defer tag.Release()

	uri, err := tag.URI(ctx)
	if err != nil {
		return "", err
	}
	label, err := tag.Label(ctx)
	if err != nil {
		return "", err
	}
	if label == "" {
		if err := tag.SetLabel(name); err != nil {
			return "", err
		}
	}
	if tag.Modified() {
		if err := tag.Sync(ctx); err != nil {
			return "", err
		}
	}
	return uri, nil
}

// IsRelated returns the URIs of related resources.
func (r *Resource) IsRelated(ctx context.Context) ([]string, error) {
	v, err := r.Property(ctx, nao.IsRelated)
	if err != nil {
		return nil, err
	}
	return v.ToResourceList(), nil
}

// AddIsRelated records other as related to the resource.
func (r *Resource) AddIsRelated(ctx context.Context, other *Resource) error {
	uri, err := other.URI(ctx)
	if err != nil {
		return err
	}
	current, err := r.Property(ctx, nao.IsRelated)
	if err != nil {
		return err
	}
	if current.Contains(variant.NewResource(uri)) {
		return nil
	}
	return r.AddProperty(ctx, nao.IsRelated, variant.NewResource(uri))
}
