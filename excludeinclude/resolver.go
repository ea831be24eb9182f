// Package excludeinclude resolves operator-supplied exclude/force-include
// project references (slugs or numeric IDs, global and per-pack) into two
// integer sets consumed by the File Classifier & Downloader.
package excludeinclude

import (
	"context"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/mcservers/cfinstaller/curseforge"
)

// PerPack holds the excludes/forceIncludes specific to one pack slug.
type PerPack struct {
	Excludes      []string `yaml:"excludes"`
	ForceIncludes []string `yaml:"forceIncludes"`
}

// Content is the whole operator-supplied exclude/include configuration.
type Content struct {
	GlobalExcludes      []string           `yaml:"globalExcludes"`
	GlobalForceIncludes []string           `yaml:"globalForceIncludes"`
	Modpacks            map[string]PerPack `yaml:"modpacks"`
}

// IDs is the resolved, disjoint-purpose pair of integer project ID sets.
type IDs struct {
	Excludes      map[int]bool
	ForceIncludes map[int]bool
}

// Resolve converts slugs or numeric IDs from the given content (global plus
// whatever is specific to slug) into two integer sets. A nil content
// produces two empty sets.
func Resolve(ctx context.Context, client curseforge.Client, categoryInfo curseforge.CategoryInfo, slug string, content *Content) (IDs, error) {
	if content == nil {
		return IDs{Excludes: map[int]bool{}, ForceIncludes: map[int]bool{}}, nil
	}

	var specific *PerPack
	if content.Modpacks != nil {
		if p, ok := content.Modpacks[slug]; ok {
			specific = &p
		}
	}

	var specificExcludes, specificForceIncludes []string
	if specific != nil {
		specificExcludes = specific.Excludes
		specificForceIncludes = specific.ForceIncludes
	}

	excludes, err := resolveSet(ctx, client, categoryInfo, content.GlobalExcludes, specificExcludes)
	if err != nil {
		return IDs{}, err
	}
	forceIncludes, err := resolveSet(ctx, client, categoryInfo, content.GlobalForceIncludes, specificForceIncludes)
	if err != nil {
		return IDs{}, err
	}

	return IDs{Excludes: excludes, ForceIncludes: forceIncludes}, nil
}

func resolveSet(ctx context.Context, client curseforge.Client, categoryInfo curseforge.CategoryInfo, global, specific []string) (map[int]bool, error) {
	ids := make(map[int]bool)

	for _, s := range append(append([]string{}, global...), specific...) {
		if s == "" {
			continue
		}
		if id, err := strconv.Atoi(s); err == nil {
			ids[id] = true
			continue
		}

		id, err := client.SlugToID(ctx, categoryInfo, s)
		if err != nil {
			return nil, err
		}
		log.Debugf("resolved exclude/include slug=%s to id=%d", s, id)
		ids[id] = true
	}

	return ids, nil
}
