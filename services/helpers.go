package services

import (
	"fmt"

	"github.com/leaguecraft/tournament-engine/models"
	"github.com/leaguecraft/tournament-engine/storage"
)

// Cache key layout. Per-tournament keys all share the "tournament:<id>"
// prefix so a single substring invalidation after a write clears every
// cached read for that tournament.
const activeListingKeyPrefix = "tournaments:active"

func tournamentKey(id int) string {
	return fmt.Sprintf("tournament:%d", id)
}

func tournamentEntriesKey(id int) string {
	return fmt.Sprintf("tournament:%d:entries", id)
}

func activeListingKey(filter ListActiveFilter) string {
	format, division := "", ""
	if filter.Format != nil {
		format = string(*filter.Format)
	}
	if filter.Division != nil {
		division = *filter.Division
	}
	return fmt.Sprintf("%s:%s:%s:%d:%d", activeListingKeyPrefix, format, division, filter.Limit, filter.Offset)
}

func populateBannerURL(t *models.Tournament, uploader storage.FileUploader) {
	if t != nil && t.BannerKey != nil && *t.BannerKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*t.BannerKey)
		if url != "" {
			t.BannerURL = &url
		}
	}
}

func entriesToValues(entries []*models.Entry) []models.Entry {
	out := make([]models.Entry, 0, len(entries))
	for _, e := range entries {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}

func matchesToValues(matches []*models.Match) []models.Match {
	out := make([]models.Match, 0, len(matches))
	for _, m := range matches {
		if m != nil {
			out = append(out, *m)
		}
	}
	return out
}
