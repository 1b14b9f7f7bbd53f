package rtx

import (
	"sort"
	"strings"

	"github.com/KeplerC/fog-rtx/internal/domain"
	"github.com/KeplerC/fog-rtx/internal/feature"
	"github.com/KeplerC/fog-rtx/internal/tfrecord"
)

const (
	stepsPrefix    = "steps/"
	metadataPrefix = "episode_metadata/"
)

// stepCountKeys are RLDS step fields holding exactly one value per step, in
// the order they are tried.
var stepCountKeys = []string{"is_first", "is_last", "is_terminal", "reward", "discount"}

// flattenedGroups are the nested step dicts whose keys are lifted to the top.
var flattenedGroups = []string{"observation/", "action/"}

// Feature is one decoded feature of an episode.
type Feature struct {
	// Name is the flattened feature name, e.g. "image" for steps/observation/image.
	Name string
	// Key is the tf.train.Example key it was decoded from.
	Key  string
	Type feature.Type
	Raw  tfrecord.Feature

	steps int
}

// Value returns the feature value at one step: a scalar for scalar types,
// otherwise a slice. Features that do not hold one value per step return the
// whole value for every step.
func (f Feature) Value(step int) any {
	per := f.Type.Elements()
	lo, hi := 0, f.Raw.Len()
	if f.steps > 0 && per*f.steps == f.Raw.Len() {
		lo, hi = step*per, (step+1)*per
	}
	if lo < 0 || hi > f.Raw.Len() || lo >= hi {
		return nil
	}
	text := f.Type.DType == "string"

	switch f.Raw.Kind {
	case tfrecord.KindInt64:
		if f.Type.IsScalar() {
			return f.Raw.Ints[lo]
		}
		return f.Raw.Ints[lo:hi]
	case tfrecord.KindFloat:
		if f.Type.IsScalar() {
			return f.Raw.Floats[lo]
		}
		return f.Raw.Floats[lo:hi]
	case tfrecord.KindBytes:
		if f.Type.IsScalar() {
			if text {
				return string(f.Raw.Bytes[lo])
			}
			return f.Raw.Bytes[lo]
		}
		if text {
			out := make([]string, 0, hi-lo)
			for _, b := range f.Raw.Bytes[lo:hi] {
				out = append(out, string(b))
			}
			return out
		}
		return f.Raw.Bytes[lo:hi]
	default:
		return nil
	}
}

// Episode is one RLDS episode decoded from a tf.train.Example.
type Episode struct {
	Address
	// Source is the shard key the episode was read from.
	Source string
	Steps  int
	// Features are the per-step features, sorted by name.
	Features []Feature
	// Metadata are the episode-level features, sorted by name.
	Metadata []Feature
}

// DecodeEpisode splits a flattened RLDS example into step features and
// episode metadata.
func DecodeEpisode(ex tfrecord.Example) (*Episode, error) {
	var stepKeys, metaKeys []string
	for _, k := range ex.Keys() {
		switch {
		case strings.HasPrefix(k, stepsPrefix):
			stepKeys = append(stepKeys, k)
		case strings.HasPrefix(k, metadataPrefix):
			metaKeys = append(metaKeys, k)
		default:
			metaKeys = append(metaKeys, k)
		}
	}
	if len(stepKeys) == 0 {
		return nil, domain.ErrValidation("example has no steps/ features")
	}

	ep := &Episode{Steps: stepCount(ex)}
	names := flattenNames(stepKeys, stepsPrefix)
	for _, k := range stepKeys {
		raw := ex[k]
		ep.Features = append(ep.Features, Feature{
			Name:  names[k],
			Key:   k,
			Type:  feature.FromExample(raw, ep.Steps),
			Raw:   raw,
			steps: ep.Steps,
		})
	}
	metaNames := flattenNames(metaKeys, metadataPrefix)
	for _, k := range metaKeys {
		raw := ex[k]
		ep.Metadata = append(ep.Metadata, Feature{
			Name:  metaNames[k],
			Key:   k,
			Type:  feature.FromExample(raw, 1),
			Raw:   raw,
			steps: 1,
		})
	}
	sort.Slice(ep.Features, func(i, j int) bool { return ep.Features[i].Name < ep.Features[j].Name })
	sort.Slice(ep.Metadata, func(i, j int) bool { return ep.Metadata[i].Name < ep.Metadata[j].Name })
	return ep, nil
}

func stepCount(ex tfrecord.Example) int {
	for _, k := range stepCountKeys {
		if f, ok := ex[stepsPrefix+k]; ok {
			return f.Len()
		}
	}
	// Without RLDS marker fields, the shortest step feature bounds the length.
	steps := 0
	for k, f := range ex {
		if strings.HasPrefix(k, stepsPrefix) && f.Len() > 0 && (steps == 0 || f.Len() < steps) {
			steps = f.Len()
		}
	}
	return steps
}

// flattenNames strips prefix and the observation/action groups from keys and
// joins the remaining path with underscores. Keys that would collide keep
// their group in the name.
func flattenNames(keys []string, prefix string) map[string]string {
	short := make(map[string]string, len(keys))
	count := make(map[string]int, len(keys))
	for _, k := range keys {
		rest := strings.TrimPrefix(k, prefix)
		for _, g := range flattenedGroups {
			if strings.HasPrefix(rest, g) {
				rest = strings.TrimPrefix(rest, g)
				break
			}
		}
		name := strings.ReplaceAll(rest, "/", "_")
		short[k] = name
		count[name]++
	}
	for _, k := range keys {
		if count[short[k]] > 1 {
			short[k] = strings.ReplaceAll(strings.TrimPrefix(k, prefix), "/", "_")
		}
	}
	return short
}
